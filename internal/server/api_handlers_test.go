package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgellow/yt-front/internal/audit"
	"github.com/dgellow/yt-front/internal/auth"
	jsonwriter "github.com/dgellow/yt-front/internal/json"
	"github.com/dgellow/yt-front/internal/servicecontext"
	"github.com/dgellow/yt-front/internal/testutil"
	"github.com/dgellow/yt-front/internal/youtube"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	ytapi "google.golang.org/api/youtube/v3"
)

type apiHarness struct {
	youtube *testutil.MockYouTube
	store   *testutil.MockStorage
	creds   auth.Credentials
	mux     *http.ServeMux
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	h := &apiHarness{
		youtube: &testutil.MockYouTube{},
		store:   &testutil.MockStorage{},
		creds: auth.NewCredentials("session-1", &auth.TokenRecord{
			Identity:    testIdentity,
			Email:       "user@example.com",
			AccessToken: "access-1",
			Expiry:      time.Now().Add(time.Hour),
		}),
	}
	handlers := NewAPIHandlers(h.youtube, audit.NewRecorder(h.store, time.Second), h.store)

	// Stand-in for the gate: every request is authenticated as h.creds
	withCreds := func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next(w, r.WithContext(servicecontext.WithCredentials(r.Context(), h.creds)))
		})
	}

	h.mux = http.NewServeMux()
	h.mux.Handle("GET /api/video/{videoId}", withCreds(handlers.GetVideoHandler))
	h.mux.Handle("PUT /api/video/{videoId}", withCreds(handlers.UpdateTitleHandler))
	h.mux.Handle("POST /api/comment/{videoId}", withCreds(handlers.AddCommentHandler))
	h.mux.Handle("DELETE /api/comment/{commentId}", withCreds(handlers.DeleteCommentHandler))
	h.mux.Handle("GET /api/events", withCreds(handlers.EventsHandler))
	return h
}

func (h *apiHarness) serve(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.mux.ServeHTTP(w, req)
	return w
}

func eventOfType(eventType audit.EventType) any {
	return mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == eventType && e.Identity == string(testIdentity) && e.SessionID == "session-1"
	})
}

func TestAPIHandlers_AuditOnlyAfterSuccess(t *testing.T) {
	h := newAPIHarness(t)
	h.youtube.On("AddComment", mock.Anything, h.creds, "vid1", "hello").
		Return(nil, &youtube.Error{Status: http.StatusForbidden, Message: "commentsDisabled"})

	w := h.serve("POST", "/api/comment/vid1", `{"comment":"hello"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var body jsonwriter.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "downstream_error", body.Error)
	assert.Equal(t, "commentsDisabled", body.Message)
	assert.False(t, body.Retryable)

	h.store.AssertNotCalled(t, "RecordEvent", mock.Anything, mock.Anything)
}

func TestAPIHandlers_AuditDetails(t *testing.T) {
	h := newAPIHarness(t)
	h.youtube.On("UpdateTitle", mock.Anything, h.creds, "vid1", "New").
		Return(&ytapi.Video{Id: "vid1", Snippet: &ytapi.VideoSnippet{Title: "New"}}, nil)
	h.store.On("RecordEvent", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.EventTitleUpdate &&
			e.Details["videoId"] == "vid1" &&
			e.Details["newTitle"] == "New" &&
			e.ID != "" && !e.Timestamp.IsZero()
	})).Return(nil).Once()

	w := h.serve("PUT", "/api/video/vid1", `{"title":"New"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	h.store.AssertExpectations(t)
}

func TestAPIHandlers_AuditFailureDoesNotFailRequest(t *testing.T) {
	h := newAPIHarness(t)
	h.youtube.On("DeleteComment", mock.Anything, h.creds, "c1").Return(nil)
	h.store.On("RecordEvent", mock.Anything, eventOfType(audit.EventCommentDelete)).
		Return(errors.New("firestore unavailable"))

	w := h.serve("DELETE", "/api/comment/c1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	h.store.AssertExpectations(t)
}

func TestAPIHandlers_TransportErrorIsRetryable(t *testing.T) {
	h := newAPIHarness(t)
	h.youtube.On("GetVideo", mock.Anything, h.creds, "vid1").
		Return(nil, errors.New("dial tcp: connection refused"))

	w := h.serve("GET", "/api/video/vid1", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body jsonwriter.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.True(t, body.Retryable)
}

func TestAPIHandlers_Events(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLimit int
	}{
		{name: "default limit", query: "", wantLimit: defaultEventsLimit},
		{name: "explicit limit", query: "?limit=5", wantLimit: 5},
		{name: "capped limit", query: "?limit=1000", wantLimit: maxEventsLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAPIHarness(t)
			h.store.On("RecentEvents", mock.Anything, testIdentity, tt.wantLimit).Return(nil, nil)

			w := h.serve("GET", "/api/events"+tt.query, "")

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"events":[]}`, w.Body.String())
			h.store.AssertExpectations(t)
		})
	}

	t.Run("store failure", func(t *testing.T) {
		h := newAPIHarness(t)
		h.store.On("RecentEvents", mock.Anything, testIdentity, defaultEventsLimit).
			Return(nil, errors.New("deadline exceeded"))

		w := h.serve("GET", "/api/events", "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestAPIHandlers_WithoutGate(t *testing.T) {
	handlers := NewAPIHandlers(&testutil.MockYouTube{}, audit.NewRecorder(nil, 0), &testutil.MockStorage{})

	w := httptest.NewRecorder()
	handlers.GetVideoHandler(w, httptest.NewRequest("GET", "/api/video/vid1", nil).WithContext(context.Background()))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
