package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) RecordEvent(ctx context.Context, event Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestRecorderFillsIDAndTimestamp(t *testing.T) {
	sink := &mockSink{}
	var got Event
	sink.On("RecordEvent", mock.Anything, mock.AnythingOfType("audit.Event")).
		Run(func(args mock.Arguments) { got = args.Get(1).(Event) }).
		Return(nil)

	r := NewRecorder(sink, time.Second)
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	r.Record(context.Background(), Event{
		Type:      EventVideoFetch,
		SessionID: "session-1",
		Details:   map[string]any{"videoId": "abc"},
	})

	sink.AssertExpectations(t)
	assert.Len(t, got.ID, 36)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got.Timestamp)
	assert.Equal(t, EventVideoFetch, got.Type)
	assert.Equal(t, "abc", got.Details["videoId"])
}

func TestRecorderSwallowsSinkFailure(t *testing.T) {
	sink := &mockSink{}
	sink.On("RecordEvent", mock.Anything, mock.Anything).Return(errors.New("firestore down"))

	r := NewRecorder(sink, time.Second)
	assert.NotPanics(t, func() {
		r.Record(context.Background(), Event{Type: EventCommentAdd})
	})
	sink.AssertNumberOfCalls(t, "RecordEvent", 1)
}

func TestRecorderOutlivesCanceledRequest(t *testing.T) {
	sink := &mockSink{}
	sink.On("RecordEvent", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			require.NoError(t, ctx.Err())
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
		}).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewRecorder(sink, time.Second).Record(ctx, Event{Type: EventTitleUpdate})
	sink.AssertExpectations(t)
}

func TestMultiSink(t *testing.T) {
	failing := &mockSink{}
	failing.On("RecordEvent", mock.Anything, mock.Anything).Return(errors.New("boom"))
	ok := &mockSink{}
	ok.On("RecordEvent", mock.Anything, mock.Anything).Return(nil)

	err := MultiSink{failing, ok, LogSink{}}.RecordEvent(context.Background(), Event{Type: EventLogin})
	assert.EqualError(t, err, "boom")
	ok.AssertNumberOfCalls(t, "RecordEvent", 1)
}
