package server

import (
	"net/http"
	"time"

	"github.com/dgellow/yt-front/internal/session"
)

// Routes holds everything NewRouter wires into the mux
type Routes struct {
	Auth           *AuthHandlers
	API            *APIHandlers
	Gate           *Gate
	Sessions       session.Binding
	SessionTTL     time.Duration
	AllowedOrigins []string
}

// NewRouter registers every endpoint with its middleware stack. Login routes
// get a session on first contact; API routes sit behind the gate.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()

	cors := NewCORSMiddleware(routes.AllowedOrigins)
	sessions := NewSessionMiddleware(routes.Sessions, routes.SessionTTL)
	gate := NewGateMiddleware(routes.Gate)

	authMiddleware := []MiddlewareFunc{
		sessions,
		NewRecoverMiddleware("auth"),
		NewLoggerMiddleware("auth"),
		cors,
	}
	apiMiddleware := []MiddlewareFunc{
		gate,
		NewRecoverMiddleware("api"),
		NewLoggerMiddleware("api"),
		cors,
	}

	mux.Handle("GET /health", NewHealthHandler())

	mux.Handle("GET /auth/url", ChainMiddleware(http.HandlerFunc(routes.Auth.AuthURLHandler), authMiddleware...))
	mux.Handle("GET /auth/callback", ChainMiddleware(http.HandlerFunc(routes.Auth.CallbackHandler), authMiddleware...))
	mux.Handle("GET /auth/status", ChainMiddleware(http.HandlerFunc(routes.Auth.StatusHandler), authMiddleware...))

	mux.Handle("GET /api/video/{videoId}", ChainMiddleware(http.HandlerFunc(routes.API.GetVideoHandler), apiMiddleware...))
	mux.Handle("PUT /api/video/{videoId}", ChainMiddleware(http.HandlerFunc(routes.API.UpdateTitleHandler), apiMiddleware...))
	mux.Handle("POST /api/comment/{videoId}", ChainMiddleware(http.HandlerFunc(routes.API.AddCommentHandler), apiMiddleware...))
	mux.Handle("DELETE /api/comment/{commentId}", ChainMiddleware(http.HandlerFunc(routes.API.DeleteCommentHandler), apiMiddleware...))
	mux.Handle("GET /api/events", ChainMiddleware(http.HandlerFunc(routes.API.EventsHandler), apiMiddleware...))

	// Preflight requests carry no cookie and match no method-specific route
	mux.Handle("OPTIONS /", cors(http.NotFoundHandler()))

	return mux
}
