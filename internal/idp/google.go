package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// GoogleIssuer is the issuer claim of Google ID tokens
	GoogleIssuer = "https://accounts.google.com"

	// YouTubeScope grants read/write access to the user's YouTube account
	YouTubeScope = "https://www.googleapis.com/auth/youtube.force-ssl"

	defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	defaultJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
)

// DefaultScopes are requested when the configuration does not name any
var DefaultScopes = []string{oidc.ScopeOpenID, "email", YouTubeScope}

// GoogleConfig configures the Google provider. The endpoint overrides exist so
// tests can point the provider at local fakes.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
	JWKSURL     string

	// HTTPClient is used for token, userinfo and key set requests
	HTTPClient *http.Client

	// Verifier overrides the ID token verifier built from JWKSURL
	Verifier *oidc.IDTokenVerifier
}

// GoogleProvider implements Provider for Google accounts.
// Identity comes from the verified ID token's `sub` claim; the userinfo
// endpoint is used when the token response carries no ID token.
type GoogleProvider struct {
	config      oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	verifier    *oidc.IDTokenVerifier
}

// googleUserInfoResponse is the OIDC userinfo payload. The legacy v2 endpoint
// reports the subject as `id` and email verification as `verified_email`.
type googleUserInfoResponse struct {
	Sub           string `json:"sub"`
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type idTokenClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// NewGoogleProvider creates a new Google OAuth provider.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig) *GoogleProvider {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}

	verifier := cfg.Verifier
	if verifier == nil {
		jwksURL := cfg.JWKSURL
		if jwksURL == "" {
			jwksURL = defaultJWKSURL
		}
		// Keys are fetched lazily on first verification
		keySet := oidc.NewRemoteKeySet(oidc.ClientContext(context.WithoutCancel(ctx), httpClient), jwksURL)
		verifier = oidc.NewVerifier(GoogleIssuer, keySet, &oidc.Config{ClientID: cfg.ClientID})
	}

	return &GoogleProvider{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
		verifier:    verifier,
	}
}

// Type returns the provider type.
func (p *GoogleProvider) Type() string {
	return "google"
}

// AuthURL generates the consent URL. Offline access and a forced consent prompt
// make Google issue a refresh token on every login.
func (p *GoogleProvider) AuthURL(state string, scopes []string) string {
	cfg := p.config
	if len(scopes) > 0 {
		cfg.Scopes = scopes
	}
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	)
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(p.clientContext(ctx), code)
}

// RefreshToken obtains a new access token using the refresh token grant.
// When Google does not rotate the refresh token the old one is carried over.
func (p *GoogleProvider) RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	if token == nil || token.RefreshToken == "" {
		return nil, errors.New("no refresh token available")
	}
	// Only the refresh token is passed in so the source always hits the token endpoint
	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: token.RefreshToken})
	return src.Token()
}

// UserInfo resolves the account identity for a token from ExchangeCode.
func (p *GoogleProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		return p.identityFromIDToken(ctx, rawIDToken)
	}
	return p.identityFromUserInfo(ctx, token)
}

func (p *GoogleProvider) identityFromIDToken(ctx context.Context, rawIDToken string) (*UserInfo, error) {
	idToken, err := p.verifier.Verify(p.clientContext(ctx), rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
	}
	if claims.Sub == "" {
		return nil, errors.New("ID token has no subject")
	}

	return &UserInfo{
		ProviderType:  p.Type(),
		Subject:       claims.Sub,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

func (p *GoogleProvider) identityFromUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	client := p.config.Client(p.clientContext(ctx), token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user info request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user info: status %d: %s", resp.StatusCode, readLimited(resp.Body, 512))
	}

	var googleUser googleUserInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	subject := googleUser.Sub
	if subject == "" {
		subject = googleUser.ID
	}
	if subject == "" {
		return nil, errors.New("user info has no subject")
	}

	return &UserInfo{
		ProviderType:  p.Type(),
		Subject:       subject,
		Email:         googleUser.Email,
		EmailVerified: googleUser.EmailVerified || googleUser.VerifiedEmail,
		Name:          googleUser.Name,
		Picture:       googleUser.Picture,
	}, nil
}

// clientContext makes the oauth2 package use our HTTP client
func (p *GoogleProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// readLimited reads at most limit bytes of r for error messages
func readLimited(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return string(body)
}
