package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/dgellow/yt-front/internal/cookie"
	jsonwriter "github.com/dgellow/yt-front/internal/json"
	"github.com/dgellow/yt-front/internal/log"
	"github.com/dgellow/yt-front/internal/servicecontext"
	"github.com/dgellow/yt-front/internal/session"
)

// MiddlewareFunc is a function that wraps an http.Handler
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware chains multiple middleware functions. The first one runs innermost.
func ChainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

// NewCORSMiddleware adds CORS headers for the configured browser origins.
// Requests carry the session cookie, so origins are never wildcarded.
func NewCORSMiddleware(allowedOrigins []string) MiddlewareFunc {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// If origin not allowed, don't set Access-Control-Allow-Origin header
			if origin != "" && allowedMap[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriterDelegator wraps http.ResponseWriter to capture status and bytes written
// while properly delegating all optional interfaces through Unwrap
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriterDelegator {
	return &responseWriterDelegator{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (r *responseWriterDelegator) Status() int {
	return r.status
}

func (r *responseWriterDelegator) BytesWritten() int {
	return r.written
}

func (r *responseWriterDelegator) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseWriterDelegator) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController
func (r *responseWriterDelegator) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

var _ http.ResponseWriter = (*responseWriterDelegator)(nil)

// NewLoggerMiddleware logs one line per request. Query strings are omitted:
// the OAuth callback carries the authorization code there.
func NewLoggerMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       wrapped.BytesWritten(),
				"remote_addr": r.RemoteAddr,
			}
			if id, ok := servicecontext.GetSessionID(r.Context()); ok {
				fields["session"] = log.SessionRef(id)
			}

			log.LogInfoWithFields(prefix, "request", fields)
		})
	}
}

// NewRecoverMiddleware recovers from panics
func NewRecoverMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.LogErrorWithFields(prefix, "Recovered from panic", map[string]any{
						"panic": err,
						"path":  r.URL.Path,
					})
					jsonwriter.WriteInternalServerError(w, "Internal Server Error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// NewSessionMiddleware makes sure every request carries a live session. A
// missing, unknown or expired cookie gets a fresh anonymous session and a new
// cookie. The session ID is placed in the request context.
func NewSessionMiddleware(sessions session.Binding, ttl time.Duration) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if id, err := cookie.GetSession(r); err == nil && id != "" {
				_, err := sessions.Resolve(ctx, id)
				switch {
				case err == nil:
					next.ServeHTTP(w, r.WithContext(servicecontext.WithSessionID(ctx, id)))
					return
				case !errors.Is(err, session.ErrSessionNotFound):
					log.LogErrorWithFields("session", "Failed to resolve session", map[string]any{
						"session": log.SessionRef(id),
						"error":   err.Error(),
					})
					jsonwriter.WriteInternalServerError(w, "Session store unavailable")
					return
				}
				log.LogDebugWithFields("session", "Unknown or expired session, issuing a new one", map[string]any{
					"session": log.SessionRef(id),
				})
			}

			s, err := sessions.Create(ctx)
			if err != nil {
				log.LogErrorWithFields("session", "Failed to create session", map[string]any{
					"error": err.Error(),
				})
				jsonwriter.WriteInternalServerError(w, "Session store unavailable")
				return
			}
			cookie.SetSession(w, s.ID, ttl)

			log.LogDebugWithFields("session", "Session created", map[string]any{
				"session": log.SessionRef(s.ID),
			})
			next.ServeHTTP(w, r.WithContext(servicecontext.WithSessionID(ctx, s.ID)))
		})
	}
}
