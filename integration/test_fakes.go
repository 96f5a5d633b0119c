package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	fakeGooglePort  = "9090"
	fakeYouTubePort = "9091"

	testAuthCode     = "test-auth-code"
	testAccessToken  = "test-access-token"
	testRefreshToken = "test-refresh-token"
	testSubject      = "integration-user"
	testEmail        = "test@test.com"
)

// FakeGoogleServer plays Google's consent, token and userinfo endpoints.
// Consent is granted immediately.
type FakeGoogleServer struct {
	server *http.Server
	port   string
}

// NewFakeGoogleServer creates a new fake Google server
func NewFakeGoogleServer(port string) *FakeGoogleServer {
	mux := http.NewServeMux()

	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		redirectURI := r.URL.Query().Get("redirect_uri")
		state := r.URL.Query().Get("state")
		http.Redirect(w, r, fmt.Sprintf("%s?code=%s&state=%s", redirectURI, testAuthCode, state), http.StatusFound)
	})

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		grantType := r.FormValue("grant_type")
		valid := (grantType == "authorization_code" && r.FormValue("code") == testAuthCode) ||
			(grantType == "refresh_token" && r.FormValue("refresh_token") == testRefreshToken)
		if !valid {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "Invalid authorization code",
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  testAccessToken,
			"refresh_token": testRefreshToken,
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})

	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testAccessToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sub":            testSubject,
			"email":          testEmail,
			"email_verified": true,
		})
	})

	// Stands in for the frontend the proxy redirects to after login
	mux.HandleFunc("/app", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("logged in"))
	})

	return &FakeGoogleServer{
		server: &http.Server{Addr: ":" + port, Handler: mux},
		port:   port,
	}
}

// Start starts the fake Google server
func (m *FakeGoogleServer) Start() error {
	return startFake(m.server)
}

// Stop stops the fake Google server
func (m *FakeGoogleServer) Stop() error {
	return stopFake(m.server)
}

// FakeYouTubeServer serves the YouTube Data API calls the proxy makes and
// rejects any bearer token but the one the fake Google server issues
type FakeYouTubeServer struct {
	server *http.Server
	port   string
}

// NewFakeYouTubeServer creates a new fake YouTube server
func NewFakeYouTubeServer(port string) *FakeYouTubeServer {
	mux := http.NewServeMux()

	authorized := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testAccessToken {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"error": map[string]any{"code": 401, "message": "Invalid Credentials"},
				})
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("GET /youtube/v3/videos", authorized(func(w http.ResponseWriter, r *http.Request) {
		items := []any{}
		for _, id := range strings.Split(r.URL.Query().Get("id"), ",") {
			if id == "vid1" {
				items = append(items, map[string]any{
					"id":      id,
					"snippet": map[string]any{"title": "Integration video", "categoryId": "22"},
				})
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}))

	mux.HandleFunc("PUT /youtube/v3/videos", authorized(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, body)
	}))

	mux.HandleFunc("POST /youtube/v3/commentThreads", authorized(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["id"] = "thread-1"
		writeJSON(w, http.StatusOK, body)
	}))

	mux.HandleFunc("DELETE /youtube/v3/comments", authorized(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	return &FakeYouTubeServer{
		server: &http.Server{Addr: ":" + port, Handler: mux},
		port:   port,
	}
}

// Start starts the fake YouTube server
func (s *FakeYouTubeServer) Start() error {
	return startFake(s.server)
}

// Stop stops the fake YouTube server
func (s *FakeYouTubeServer) Stop() error {
	return stopFake(s.server)
}

func startFake(server *http.Server) error {
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	// Wait for the listener
	for range 20 {
		resp, err := http.Get("http://localhost" + server.Addr + "/")
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("fake server on %s did not start", server.Addr)
}

func stopFake(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
