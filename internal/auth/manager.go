package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dgellow/yt-front/internal/crypto"
	"github.com/dgellow/yt-front/internal/idp"
	"github.com/dgellow/yt-front/internal/log"
	"golang.org/x/oauth2"
)

const (
	// DefaultProviderTimeout bounds every call to the identity provider
	DefaultProviderTimeout = 10 * time.Second

	// DefaultRefreshSkew is how early before expiry a token is considered expiring
	DefaultRefreshSkew = time.Minute
)

// CredentialStore persists token records keyed by identity
type CredentialStore interface {
	UpsertCredentials(ctx context.Context, identity Identity, rec *TokenRecord) error
	FindCredentials(ctx context.Context, identity Identity) (*TokenRecord, error)
}

// Manager owns the token lifecycle: consent URL, code exchange, expiry
// checks and refresh. It holds no per-session state.
type Manager struct {
	provider idp.Provider
	store    CredentialStore
	scopes   []string
	timeout  time.Duration
	now      func() time.Time
	stateKey []byte
}

// Option configures a Manager
type Option func(*Manager)

// WithScopes sets the scopes requested when BuildAuthorizationURL gets none
func WithScopes(scopes []string) Option {
	return func(m *Manager) {
		m.scopes = slices.Clone(scopes)
	}
}

// WithTimeout overrides DefaultProviderTimeout
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithClock injects the time source used for expiry decisions
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithStateKey sets the HMAC key binding OAuth state to a session.
// Without it a random per-process key is used.
func WithStateKey(key []byte) Option {
	return func(m *Manager) {
		m.stateKey = key
	}
}

// NewManager creates a token lifecycle manager
func NewManager(provider idp.Provider, store CredentialStore, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		store:    store,
		timeout:  DefaultProviderTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if len(m.stateKey) == 0 {
		m.stateKey = []byte(crypto.MustGenerateSecureToken())
	}
	return m
}

// BuildAuthorizationURL returns the provider consent URL for state. Explicit
// scopes replace the configured ones. No I/O.
func (m *Manager) BuildAuthorizationURL(state string, scopes ...string) string {
	if len(scopes) == 0 {
		scopes = m.scopes
	}
	return m.provider.AuthURL(state, scopes)
}

// SessionState derives the OAuth state parameter for a browser session
func (m *Manager) SessionState(sessionID string) string {
	return crypto.SignData(sessionID, m.stateKey)
}

// VerifyState checks that state was issued for sessionID
func (m *Manager) VerifyState(sessionID, state string) bool {
	if sessionID == "" || state == "" {
		return false
	}
	return crypto.ValidateSignedData(sessionID, state, m.stateKey)
}

// ExchangeCode trades a one-time authorization code for tokens, resolves the
// account identity and persists the record before returning it.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (*TokenRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrMissingCode
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tok, err := m.provider.ExchangeCode(ctx, code)
	if err != nil {
		if isProviderRejection(err) {
			log.LogWarnWithFields("auth", "Authorization code rejected", map[string]any{
				"error": err.Error(),
			})
			return nil, newError(ErrProviderRejected, err)
		}
		log.LogErrorWithFields("auth", "Authorization code exchange failed", map[string]any{
			"error": err.Error(),
		})
		return nil, newError(ErrExchangeFailed, err)
	}

	info, err := m.provider.UserInfo(ctx, tok)
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to resolve identity", map[string]any{
			"error": err.Error(),
		})
		return nil, newError(ErrIdentity, err)
	}
	if info.Subject == "" {
		return nil, ErrIdentity
	}

	rec := newRecord(Identity(info.Subject), info.Email, tok, m.scopes, m.now())
	if err := m.store.UpsertCredentials(ctx, rec.Identity, rec); err != nil {
		log.LogErrorWithFields("auth", "Failed to store credentials", map[string]any{
			"identity": rec.Identity,
			"error":    err.Error(),
		})
		return nil, newError(ErrStorage, err)
	}

	log.LogInfoWithFields("auth", "Authorization code exchanged", map[string]any{
		"identity":    rec.Identity,
		"email":       rec.Email,
		"expiry":      rec.Expiry,
		"refreshable": rec.Refreshable(),
	})
	return rec, nil
}

// IsExpiring reports whether rec expires within skew of the manager's clock
func (m *Manager) IsExpiring(rec *TokenRecord, skew time.Duration) bool {
	return IsExpiring(rec, skew, m.now())
}

// Expired reports whether rec is already past its expiry
func (m *Manager) Expired(rec *TokenRecord) bool {
	return rec.Expired(m.now())
}

// IsExpiring reports whether rec expires within skew of now. A zero expiry
// never expires, matching oauth2.Token.
func IsExpiring(rec *TokenRecord, skew time.Duration, now time.Time) bool {
	if rec.Expiry.IsZero() {
		return false
	}
	return !now.Before(rec.Expiry.Add(-skew))
}

// Refresh runs the refresh-token grant for rec and persists the result
// before returning it. rec itself is never modified.
func (m *Manager) Refresh(ctx context.Context, rec *TokenRecord) (*TokenRecord, error) {
	if !rec.Refreshable() {
		return nil, ErrNotRefreshable
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tok, err := m.provider.RefreshToken(ctx, rec.OAuth2Token())
	if err != nil {
		if isProviderRejection(err) {
			log.LogWarnWithFields("auth", "Refresh token rejected", map[string]any{
				"identity": rec.Identity,
				"error":    err.Error(),
			})
			return nil, newError(ErrRefreshRejected, err)
		}
		log.LogErrorWithFields("auth", "Token refresh failed", map[string]any{
			"identity": rec.Identity,
			"error":    err.Error(),
		})
		return nil, newError(ErrRefreshFailed, err)
	}

	next := newRecord(rec.Identity, rec.Email, tok, rec.Scopes, m.now())
	if next.RefreshToken == "" {
		next.RefreshToken = rec.RefreshToken
	}

	if err := m.store.UpsertCredentials(ctx, next.Identity, next); err != nil {
		log.LogErrorWithFields("auth", "Failed to store refreshed credentials", map[string]any{
			"identity": next.Identity,
			"error":    err.Error(),
		})
		return nil, newError(ErrStorage, err)
	}

	log.LogInfoWithFields("auth", "Token refreshed", map[string]any{
		"identity": next.Identity,
		"expiry":   next.Expiry,
		"rotated":  tok.RefreshToken != "" && tok.RefreshToken != rec.RefreshToken,
	})
	return next, nil
}

// Restore loads the persisted record for identity
func (m *Manager) Restore(ctx context.Context, identity Identity) (*TokenRecord, error) {
	rec, err := m.store.FindCredentials(ctx, identity)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// isProviderRejection separates OAuth error responses (bad code, revoked
// grant) from transport failures and provider outages.
func isProviderRejection(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return false
	}
	if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
		return false
	}
	return true
}
