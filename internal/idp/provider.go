package idp

import (
	"context"

	"golang.org/x/oauth2"
)

// UserInfo is what the identity provider tells us about the authenticated account.
// Subject is the stable account identifier used as the credential key.
type UserInfo struct {
	ProviderType  string `json:"provider_type"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Provider abstracts the identity provider's OAuth2 endpoints.
type Provider interface {
	// Type returns the provider type identifier (e.g., "google").
	Type() string

	// AuthURL builds the consent URL requesting offline access for the given scopes.
	// An empty scope list means the provider's configured defaults.
	AuthURL(state string, scopes []string) string

	// ExchangeCode exchanges a one-time authorization code for tokens.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)

	// RefreshToken runs the refresh-token grant for token.RefreshToken.
	RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)

	// UserInfo derives the account identity from a freshly exchanged token.
	UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error)
}
