package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgellow/yt-front/internal/audit"
	"github.com/dgellow/yt-front/internal/auth"
	jsonwriter "github.com/dgellow/yt-front/internal/json"
	"github.com/dgellow/yt-front/internal/log"
	"github.com/dgellow/yt-front/internal/servicecontext"
	"github.com/dgellow/yt-front/internal/youtube"
)

const (
	defaultEventsLimit = 20
	maxEventsLimit     = 100
)

// EventLister reads back audit events for one identity
type EventLister interface {
	RecentEvents(ctx context.Context, identity auth.Identity, limit int) ([]audit.Event, error)
}

// APIHandlers proxy YouTube operations with the caller's credentials. They
// run behind NewGateMiddleware.
type APIHandlers struct {
	youtube  youtube.API
	recorder *audit.Recorder
	events   EventLister
}

// NewAPIHandlers creates the YouTube proxy handlers
func NewAPIHandlers(yt youtube.API, recorder *audit.Recorder, events EventLister) *APIHandlers {
	return &APIHandlers{
		youtube:  yt,
		recorder: recorder,
		events:   events,
	}
}

// CommentRequest is the body of AddCommentHandler
type CommentRequest struct {
	Comment string `json:"comment"`
}

// TitleRequest is the body of UpdateTitleHandler
type TitleRequest struct {
	Title string `json:"title"`
}

// GetVideoHandler returns the video's snippet, or {} when it does not exist
func (h *APIHandlers) GetVideoHandler(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.credentials(w, r)
	if !ok {
		return
	}
	videoID := r.PathValue("videoId")

	video, err := h.youtube.GetVideo(r.Context(), creds, videoID)
	if err != nil {
		writeDownstreamError(w, err)
		return
	}
	h.record(r.Context(), creds, audit.EventVideoFetch, map[string]any{"videoId": videoID})

	if video == nil {
		_ = jsonwriter.Write(w, map[string]any{})
		return
	}
	_ = jsonwriter.Write(w, video)
}

// AddCommentHandler posts a top-level comment
func (h *APIHandlers) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.credentials(w, r)
	if !ok {
		return
	}
	videoID := r.PathValue("videoId")

	var req CommentRequest
	if err := jsonwriter.ReadRequest(r, &req); err != nil {
		jsonwriter.WriteBadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Comment) == "" {
		jsonwriter.WriteBadRequest(w, "comment is required")
		return
	}

	thread, err := h.youtube.AddComment(r.Context(), creds, videoID, req.Comment)
	if err != nil {
		writeDownstreamError(w, err)
		return
	}
	h.record(r.Context(), creds, audit.EventCommentAdd, map[string]any{
		"videoId": videoID,
		"comment": req.Comment,
	})
	_ = jsonwriter.Write(w, thread)
}

// UpdateTitleHandler renames a video
func (h *APIHandlers) UpdateTitleHandler(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.credentials(w, r)
	if !ok {
		return
	}
	videoID := r.PathValue("videoId")

	var req TitleRequest
	if err := jsonwriter.ReadRequest(r, &req); err != nil {
		jsonwriter.WriteBadRequest(w, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		jsonwriter.WriteBadRequest(w, "title is required")
		return
	}

	video, err := h.youtube.UpdateTitle(r.Context(), creds, videoID, req.Title)
	if err != nil {
		writeDownstreamError(w, err)
		return
	}
	h.record(r.Context(), creds, audit.EventTitleUpdate, map[string]any{
		"videoId":  videoID,
		"newTitle": req.Title,
	})
	_ = jsonwriter.Write(w, video)
}

// DeleteCommentHandler removes a comment
func (h *APIHandlers) DeleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.credentials(w, r)
	if !ok {
		return
	}
	commentID := r.PathValue("commentId")

	if err := h.youtube.DeleteComment(r.Context(), creds, commentID); err != nil {
		writeDownstreamError(w, err)
		return
	}
	h.record(r.Context(), creds, audit.EventCommentDelete, map[string]any{"commentId": commentID})
	_ = jsonwriter.Write(w, map[string]bool{"success": true})
}

// EventsHandler lists the caller's recent audit events, newest first
func (h *APIHandlers) EventsHandler(w http.ResponseWriter, r *http.Request) {
	creds, ok := h.credentials(w, r)
	if !ok {
		return
	}

	limit := defaultEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			jsonwriter.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventsLimit)
	}

	events, err := h.events.RecentEvents(r.Context(), creds.Identity, limit)
	if err != nil {
		log.LogErrorWithFields("api", "Failed to list events", map[string]any{
			"identity": creds.Identity,
			"error":    err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to list events")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	_ = jsonwriter.Write(w, map[string]any{"events": events})
}

func (h *APIHandlers) credentials(w http.ResponseWriter, r *http.Request) (auth.Credentials, bool) {
	creds, ok := servicecontext.GetCredentials(r.Context())
	if !ok {
		// Route registered without the gate
		log.LogError("API handler reached without credentials: %s", r.URL.Path)
		jsonwriter.WriteUnauthorized(w, "authentication required")
		return auth.Credentials{}, false
	}
	return creds, true
}

func (h *APIHandlers) record(ctx context.Context, creds auth.Credentials, eventType audit.EventType, details map[string]any) {
	h.recorder.Record(ctx, audit.Event{
		Type:      eventType,
		SessionID: creds.SessionID,
		Identity:  string(creds.Identity),
		Details:   details,
	})
}

// writeDownstreamError propagates a YouTube failure with its status
func writeDownstreamError(w http.ResponseWriter, err error) {
	var ytErr *youtube.Error
	if errors.As(err, &ytErr) {
		jsonwriter.WriteErrorResponse(w, ytErr.Status, jsonwriter.ErrorResponse{
			Error:     "downstream_error",
			Message:   ytErr.Message,
			Retryable: ytErr.Retryable(),
		})
		return
	}
	jsonwriter.WriteErrorResponse(w, http.StatusInternalServerError, jsonwriter.ErrorResponse{
		Error:     "downstream_error",
		Message:   err.Error(),
		Retryable: true,
	})
}
