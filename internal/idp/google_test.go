package idp

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	jws, err := signer.Sign(payload)
	require.NoError(t, err)
	raw, err := jws.CompactSerialize()
	require.NoError(t, err)
	return raw
}

func staticVerifier(key *rsa.PrivateKey, clientID string) *oidc.IDTokenVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return oidc.NewVerifier(GoogleIssuer, keySet, &oidc.Config{ClientID: clientID})
}

func TestGoogleProvider_AuthURL(t *testing.T) {
	provider := NewGoogleProvider(context.Background(), GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://example.com/auth/callback",
	})

	t.Run("default scopes", func(t *testing.T) {
		authURL := provider.AuthURL("test-state", nil)

		parsed, err := url.Parse(authURL)
		require.NoError(t, err)
		q := parsed.Query()
		assert.Equal(t, "accounts.google.com", parsed.Host)
		assert.Equal(t, "client-id", q.Get("client_id"))
		assert.Equal(t, "https://example.com/auth/callback", q.Get("redirect_uri"))
		assert.Equal(t, "offline", q.Get("access_type"))
		assert.Equal(t, "consent", q.Get("prompt"))
		assert.Equal(t, "test-state", q.Get("state"))
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Contains(t, q.Get("scope"), YouTubeScope)
		assert.Contains(t, q.Get("scope"), "openid")
	})

	t.Run("explicit scopes replace defaults", func(t *testing.T) {
		authURL := provider.AuthURL("s", []string{"email"})
		parsed, err := url.Parse(authURL)
		require.NoError(t, err)
		assert.Equal(t, "email", parsed.Query().Get("scope"))
	})
}

func TestGoogleProvider_ExchangeAndRefresh(t *testing.T) {
	var grants []string
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		grants = append(grants, r.Form.Get("grant_type"))

		resp := map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		switch r.Form.Get("grant_type") {
		case "authorization_code":
			assert.Equal(t, "auth-code", r.Form.Get("code"))
			resp["refresh_token"] = "refresh-1"
		case "refresh_token":
			assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
			resp["access_token"] = "access-2"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer tokenServer.Close()

	provider := NewGoogleProvider(context.Background(), GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://example.com/auth/callback",
		TokenURL:     tokenServer.URL,
	})

	tok, err := provider.ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, 5*time.Second)

	refreshed, err := provider.RefreshToken(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "access-2", refreshed.AccessToken)
	// Google did not rotate the refresh token, the old one is carried over
	assert.Equal(t, "refresh-1", refreshed.RefreshToken)

	assert.Equal(t, []string{"authorization_code", "refresh_token"}, grants)
}

func TestGoogleProvider_RefreshRejected(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
	}))
	defer tokenServer.Close()

	provider := NewGoogleProvider(context.Background(), GoogleConfig{
		ClientID: "client-id",
		TokenURL: tokenServer.URL,
	})

	_, err := provider.RefreshToken(context.Background(), &oauth2.Token{RefreshToken: "revoked"})
	require.Error(t, err)
	var retrieveErr *oauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)

	_, err = provider.RefreshToken(context.Background(), &oauth2.Token{AccessToken: "only-access"})
	assert.Error(t, err)
}

func TestGoogleProvider_UserInfoFromIDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	provider := NewGoogleProvider(context.Background(), GoogleConfig{
		ClientID: "client-id",
		Verifier: staticVerifier(key, "client-id"),
	})

	now := time.Now()
	validClaims := map[string]any{
		"iss":            GoogleIssuer,
		"aud":            "client-id",
		"sub":            "108234",
		"email":          "user@example.com",
		"email_verified": true,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}

	t.Run("valid token", func(t *testing.T) {
		tok := (&oauth2.Token{AccessToken: "a"}).WithExtra(map[string]any{
			"id_token": signIDToken(t, key, validClaims),
		})
		info, err := provider.UserInfo(context.Background(), tok)
		require.NoError(t, err)
		assert.Equal(t, "108234", info.Subject)
		assert.Equal(t, "user@example.com", info.Email)
		assert.True(t, info.EmailVerified)
		assert.Equal(t, "google", info.ProviderType)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := map[string]any{}
		for k, v := range validClaims {
			claims[k] = v
		}
		claims["aud"] = "someone-else"
		tok := (&oauth2.Token{AccessToken: "a"}).WithExtra(map[string]any{
			"id_token": signIDToken(t, key, claims),
		})
		_, err := provider.UserInfo(context.Background(), tok)
		assert.Error(t, err)
	})

	t.Run("signed by unknown key", func(t *testing.T) {
		other, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		tok := (&oauth2.Token{AccessToken: "a"}).WithExtra(map[string]any{
			"id_token": signIDToken(t, other, validClaims),
		})
		_, err = provider.UserInfo(context.Background(), tok)
		assert.Error(t, err)
	})
}

func TestGoogleProvider_UserInfoEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        map[string]any
		wantSubject string
		wantErr     bool
	}{
		{
			name:        "oidc userinfo",
			status:      http.StatusOK,
			body:        map[string]any{"sub": "42", "email": "user@example.com", "email_verified": true},
			wantSubject: "42",
		},
		{
			name:        "legacy id field",
			status:      http.StatusOK,
			body:        map[string]any{"id": "43", "email": "user@example.com", "verified_email": true},
			wantSubject: "43",
		},
		{
			name:    "no subject",
			status:  http.StatusOK,
			body:    map[string]any{"email": "user@example.com"},
			wantErr: true,
		},
		{
			name:    "endpoint error",
			status:  http.StatusUnauthorized,
			body:    map[string]any{"error": "invalid_token"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			provider := NewGoogleProvider(context.Background(), GoogleConfig{
				ClientID:    "client-id",
				UserInfoURL: server.URL,
			})

			info, err := provider.UserInfo(context.Background(), &oauth2.Token{
				AccessToken: "access-token",
				TokenType:   "Bearer",
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, info.Subject)
			assert.True(t, info.EmailVerified)
		})
	}
}
