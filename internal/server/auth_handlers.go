package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/dgellow/yt-front/internal/audit"
	"github.com/dgellow/yt-front/internal/auth"
	jsonwriter "github.com/dgellow/yt-front/internal/json"
	"github.com/dgellow/yt-front/internal/log"
	"github.com/dgellow/yt-front/internal/servicecontext"
	"github.com/dgellow/yt-front/internal/session"
)

// AuthHandlers serves the login flow: consent URL, provider callback and
// session status. They run behind NewSessionMiddleware.
type AuthHandlers struct {
	manager   *auth.Manager
	sessions  session.Binding
	recorder  *audit.Recorder
	clientURL string
	now       func() time.Time
}

// NewAuthHandlers creates new auth handlers with dependency injection
func NewAuthHandlers(manager *auth.Manager, sessions session.Binding, recorder *audit.Recorder, clientURL string) *AuthHandlers {
	return &AuthHandlers{
		manager:   manager,
		sessions:  sessions,
		recorder:  recorder,
		clientURL: clientURL,
		now:       time.Now,
	}
}

// AuthURLResponse is returned by AuthURLHandler
type AuthURLResponse struct {
	URL string `json:"url"`
}

// StatusResponse is returned by StatusHandler
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Email         string `json:"email,omitempty"`
}

// AuthURLHandler returns the Google consent URL bound to the caller's session
func (h *AuthHandlers) AuthURLHandler(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := servicecontext.GetSessionID(r.Context())
	if !ok {
		jsonwriter.WriteInternalServerError(w, "No session")
		return
	}

	url := h.manager.BuildAuthorizationURL(h.manager.SessionState(sessionID))
	_ = jsonwriter.Write(w, AuthURLResponse{URL: url})
}

// CallbackHandler completes the authorization code flow. Tokens are attached
// to the session only when every step succeeded.
func (h *AuthHandlers) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	sessionID, ok := servicecontext.GetSessionID(ctx)
	if !ok {
		jsonwriter.WriteInternalServerError(w, "No session")
		return
	}

	if errParam := query.Get("error"); errParam != "" {
		details := errParam
		if desc := query.Get("error_description"); desc != "" {
			details += ": " + desc
		}
		log.LogWarnWithFields("auth", "Consent denied or failed at provider", map[string]any{
			"session": log.SessionRef(sessionID),
			"error":   errParam,
		})
		writeCallbackError(w, auth.ErrProviderRejected, details)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeCallbackError(w, auth.ErrMissingCode, "")
		return
	}

	if !h.manager.VerifyState(sessionID, query.Get("state")) {
		log.LogWarnWithFields("auth", "OAuth state mismatch", map[string]any{
			"session": log.SessionRef(sessionID),
		})
		writeCallbackError(w, auth.ErrInvalidState, "")
		return
	}

	rec, err := h.manager.ExchangeCode(ctx, code)
	if err != nil {
		writeCallbackError(w, err, causeOf(err))
		return
	}

	if _, err := h.sessions.Attach(ctx, sessionID, rec); err != nil {
		log.LogErrorWithFields("auth", "Failed to attach credentials to session", map[string]any{
			"session":  log.SessionRef(sessionID),
			"identity": rec.Identity,
			"error":    err.Error(),
		})
		if errors.Is(err, session.ErrSessionNotFound) {
			writeCallbackError(w, auth.ErrUnauthorized, "session expired during login")
			return
		}
		writeCallbackError(w, auth.ErrStorage, "")
		return
	}

	h.recorder.Record(ctx, audit.Event{
		Type:      audit.EventLogin,
		SessionID: sessionID,
		Identity:  string(rec.Identity),
		Details: map[string]any{
			"email":       rec.Email,
			"refreshable": rec.Refreshable(),
		},
	})

	log.LogInfoWithFields("auth", "Login complete", map[string]any{
		"session":  log.SessionRef(sessionID),
		"identity": rec.Identity,
	})
	http.Redirect(w, r, h.clientURL, http.StatusFound)
}

// StatusHandler reports whether the session holds usable tokens. It never refreshes.
func (h *AuthHandlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := servicecontext.GetSessionID(ctx)
	if !ok {
		_ = jsonwriter.Write(w, StatusResponse{})
		return
	}

	s, err := h.sessions.Resolve(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			_ = jsonwriter.Write(w, StatusResponse{})
			return
		}
		log.LogErrorWithFields("auth", "Failed to resolve session", map[string]any{
			"session": log.SessionRef(sessionID),
			"error":   err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Session store unavailable")
		return
	}

	resp := StatusResponse{Authenticated: s.Authenticated(h.now())}
	if resp.Authenticated {
		resp.Email = s.Record.Email
	}
	_ = jsonwriter.Write(w, resp)
}

// writeCallbackError always answers 500: the browser lands here straight from
// the provider and any failure means login did not happen
func writeCallbackError(w http.ResponseWriter, err error, details string) {
	kind := auth.KindOf(err)
	if kind == "" {
		kind = auth.KindExchangeFailed
	}
	jsonwriter.WriteErrorResponse(w, http.StatusInternalServerError, jsonwriter.ErrorResponse{
		Error:     string(kind),
		Message:   authMessage(err),
		Retryable: kind.Retryable(),
		Details:   details,
	})
}

// causeOf returns the message of the error an auth.Error wraps
func causeOf(err error) string {
	var authErr *auth.Error
	if errors.As(err, &authErr) && authErr.Err != nil {
		return authErr.Err.Error()
	}
	return ""
}
