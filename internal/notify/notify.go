package notify

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind names a user-visible notification.
type Kind string

const (
	// KindReloginRequired tells the user the session ended and they must
	// log in again.
	KindReloginRequired Kind = "relogin_required"
	// KindLoginFailed reports a rejected or failed login attempt.
	KindLoginFailed Kind = "login_failed"
	// KindUnverified reports a login against an unconfirmed account.
	KindUnverified Kind = "account_unverified"
	// KindLoggedOut reports an explicit logout.
	KindLoggedOut Kind = "logged_out"
	// KindProfileOffline reports that profile data was served from cache.
	KindProfileOffline Kind = "profile_offline"
)

// Event is one notification for the presentation layer.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	UserID    string    `json:"user_id,omitempty"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
}

// Sink receives dispatched events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// LoggerSink logs events at Info.
type LoggerSink struct {
	Logger *zap.Logger
}

func (s LoggerSink) Emit(_ context.Context, event Event) {
	if s.Logger == nil {
		return
	}
	s.Logger.Info(event.Message,
		zap.String("notification_id", event.ID),
		zap.String("kind", string(event.Kind)),
		zap.String("user_id", event.UserID),
		zap.String("error", event.Error),
	)
}
