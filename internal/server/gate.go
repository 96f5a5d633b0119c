package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/yt-front/internal/auth"
	"github.com/dgellow/yt-front/internal/cookie"
	jsonwriter "github.com/dgellow/yt-front/internal/json"
	"github.com/dgellow/yt-front/internal/log"
	"github.com/dgellow/yt-front/internal/servicecontext"
	"github.com/dgellow/yt-front/internal/session"
	"golang.org/x/sync/singleflight"
)

// Gate admits a request only when its session holds a usable access token,
// refreshing it first when it is about to expire. Refreshes for one session
// run once no matter how many requests arrive together; across processes the
// session version check keeps a newer token from being overwritten.
type Gate struct {
	manager  *auth.Manager
	sessions session.Binding
	skew     time.Duration
	flights  singleflight.Group
}

// NewGate creates a gate. A non-positive skew uses auth.DefaultRefreshSkew.
func NewGate(manager *auth.Manager, sessions session.Binding, skew time.Duration) *Gate {
	if skew <= 0 {
		skew = auth.DefaultRefreshSkew
	}
	return &Gate{
		manager:  manager,
		sessions: sessions,
		skew:     skew,
	}
}

// NewGateMiddleware rejects unauthenticated requests with 401 and hands
// authenticated ones an immutable auth.Credentials in the context
func NewGateMiddleware(gate *Gate) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sessionID, ok := servicecontext.GetSessionID(ctx)
			if !ok {
				sessionID, _ = cookie.GetSession(r)
			}

			creds, err := gate.Authenticate(ctx, sessionID)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err)
				return
			}

			ctx = servicecontext.WithSessionID(ctx, sessionID)
			ctx = servicecontext.WithCredentials(ctx, creds)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authenticate returns credentials for sessionID, refreshing at most once
func (g *Gate) Authenticate(ctx context.Context, sessionID string) (auth.Credentials, error) {
	if sessionID == "" {
		return auth.Credentials{}, auth.ErrUnauthorized
	}

	s, err := g.resolve(ctx, sessionID)
	if err != nil {
		return auth.Credentials{}, err
	}

	rec, err := g.usable(s.Record)
	if err != nil {
		return auth.Credentials{}, err
	}
	if rec == nil {
		rec, err = g.refresh(ctx, sessionID)
		if err != nil {
			log.LogWarnWithFields("gate", "Request rejected after refresh failure", map[string]any{
				"session":   log.SessionRef(sessionID),
				"kind":      auth.KindOf(err),
				"retryable": auth.KindOf(err).Retryable(),
			})
			return auth.Credentials{}, err
		}
	}

	return auth.NewCredentials(sessionID, rec), nil
}

// usable returns rec when it can be dispatched as is, nil when it needs a
// refresh, or an error when it can never be used again
func (g *Gate) usable(rec *auth.TokenRecord) (*auth.TokenRecord, error) {
	if !g.manager.IsExpiring(rec, g.skew) {
		return rec, nil
	}
	if rec.Refreshable() {
		return nil, nil
	}
	// Without a refresh token the remaining lifetime is all there is
	if g.manager.Expired(rec) {
		return nil, auth.ErrNotRefreshable
	}
	return rec, nil
}

func (g *Gate) resolve(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := g.sessions.Resolve(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, auth.ErrUnauthorized
		}
		log.LogErrorWithFields("gate", "Failed to resolve session", map[string]any{
			"session": log.SessionRef(sessionID),
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", auth.ErrStorage, err)
	}
	if !s.HasCredentials() {
		return nil, auth.ErrUnauthorized
	}
	return s, nil
}

// refresh runs at most one refresh per session at a time. Callers that arrive
// while one is in flight share its result. The flight is detached from the
// first caller's cancellation so a dropped request cannot fail the others.
func (g *Gate) refresh(ctx context.Context, sessionID string) (*auth.TokenRecord, error) {
	v, err, shared := g.flights.Do(sessionID, func() (any, error) {
		return g.refreshSession(context.WithoutCancel(ctx), sessionID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.LogTraceWithFields("gate", "Shared in-flight refresh", map[string]any{
			"session": log.SessionRef(sessionID),
		})
	}
	return v.(*auth.TokenRecord), nil
}

func (g *Gate) refreshSession(ctx context.Context, sessionID string) (*auth.TokenRecord, error) {
	// Re-read: a previous flight may have finished between our first read and now
	s, err := g.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	rec, err := g.usable(s.Record)
	if err != nil || rec != nil {
		return rec, err
	}
	rec = s.Record

	// Another session of the same account may already hold a fresher token
	if stored, err := g.manager.Restore(ctx, rec.Identity); err == nil && stored != nil && !g.manager.IsExpiring(stored, g.skew) {
		log.LogDebugWithFields("gate", "Adopting stored credentials", map[string]any{
			"session":  log.SessionRef(sessionID),
			"identity": stored.Identity,
		})
		return g.commit(ctx, sessionID, stored, s.Version)
	}

	next, err := g.manager.Refresh(ctx, rec)
	if err != nil {
		return nil, err
	}
	return g.commit(ctx, sessionID, next, s.Version)
}

// commit writes rec back to the session if nothing changed since version was
// read. On conflict the newer stored record wins when it is still usable.
func (g *Gate) commit(ctx context.Context, sessionID string, rec *auth.TokenRecord, version uint64) (*auth.TokenRecord, error) {
	_, err := g.sessions.Update(ctx, sessionID, rec, version)
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, session.ErrVersionConflict):
		latest, rerr := g.sessions.Resolve(ctx, sessionID)
		if rerr == nil && latest.HasCredentials() && !g.manager.IsExpiring(latest.Record, g.skew) {
			log.LogDebugWithFields("gate", "Session updated concurrently, using newer credentials", map[string]any{
				"session": log.SessionRef(sessionID),
				"version": latest.Version,
			})
			return latest.Record, nil
		}
		// The newer write is no better than ours; use ours for this request
		// without overwriting it.
		return rec, nil
	case errors.Is(err, session.ErrSessionNotFound):
		return nil, auth.ErrUnauthorized
	default:
		log.LogErrorWithFields("gate", "Failed to store refreshed credentials in session", map[string]any{
			"session": log.SessionRef(sessionID),
			"error":   err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", auth.ErrStorage, err)
	}
}

// writeAuthError reports an authentication failure with its kind and whether
// retrying without a new login can help
func writeAuthError(w http.ResponseWriter, status int, err error) {
	kind := auth.KindOf(err)
	if kind == "" {
		kind = auth.KindUnauthorized
	}
	resp := jsonwriter.ErrorResponse{
		Error:     string(kind),
		Message:   authMessage(err),
		Retryable: kind.Retryable(),
	}
	jsonwriter.WriteErrorResponse(w, status, resp)
}

func authMessage(err error) string {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return "authentication required"
}
