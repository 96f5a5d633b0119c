package audit

import (
	"context"
	"time"

	"github.com/dgellow/yt-front/internal/log"
	"github.com/google/uuid"
)

// EventType names an auditable action
type EventType string

const (
	EventLogin         EventType = "LOGIN"
	EventVideoFetch    EventType = "VIDEO_FETCH"
	EventCommentAdd    EventType = "COMMENT_ADD"
	EventTitleUpdate   EventType = "TITLE_UPDATE"
	EventCommentDelete EventType = "COMMENT_DELETE"
)

// DefaultTimeout bounds a single sink write
const DefaultTimeout = 2 * time.Second

// Event records one user action performed through the proxy
type Event struct {
	ID        string         `json:"id" firestore:"id"`
	Type      EventType      `json:"type" firestore:"type"`
	SessionID string         `json:"session_id,omitempty" firestore:"session_id,omitempty"`
	Identity  string         `json:"identity,omitempty" firestore:"identity,omitempty"`
	Details   map[string]any `json:"details,omitempty" firestore:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp" firestore:"timestamp"`
}

// Sink persists audit events
type Sink interface {
	RecordEvent(ctx context.Context, event Event) error
}

// Recorder writes events to a sink. Failures are logged and never returned:
// an audit outage must not fail the user's request.
type Recorder struct {
	sink    Sink
	timeout time.Duration
	now     func() time.Time
}

// NewRecorder creates a recorder; a nil sink only logs events
func NewRecorder(sink Sink, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if sink == nil {
		sink = LogSink{}
	}
	return &Recorder{sink: sink, timeout: timeout, now: time.Now}
}

// Record fills in ID and timestamp and writes the event synchronously
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now().UTC()
	}

	// The request may already be finishing; audit writes get their own deadline
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.sink.RecordEvent(ctx, event); err != nil {
		log.LogWarnWithFields("audit", "Failed to record event", map[string]any{
			"type":    event.Type,
			"eventId": event.ID,
			"session": log.SessionRef(event.SessionID),
			"error":   err.Error(),
		})
	}
}

// LogSink writes events to the structured log only
type LogSink struct{}

func (LogSink) RecordEvent(_ context.Context, event Event) error {
	log.LogInfoWithFields("audit", string(event.Type), map[string]any{
		"eventId":  event.ID,
		"session":  log.SessionRef(event.SessionID),
		"identity": event.Identity,
		"details":  event.Details,
	})
	return nil
}

// MultiSink fans events out to several sinks; the first error is returned
// after every sink has been tried.
type MultiSink []Sink

func (m MultiSink) RecordEvent(ctx context.Context, event Event) error {
	var first error
	for _, s := range m {
		if err := s.RecordEvent(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
