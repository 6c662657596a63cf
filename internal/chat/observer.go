package chat

import (
	"time"

	"github.com/google/uuid"
	"github.com/namikmesic/boardmate-chat/internal/stream"
)

// StreamInfo identifies one send.
type StreamInfo struct {
	ID        uuid.UUID
	Assistant string
	Session   string
	StartedAt time.Time
}

// Outcome values reported to observers.
const (
	OutcomeCompleted = "completed" // done record received
	OutcomeEnded     = "ended"     // body ended without a terminal record
	OutcomeFailed    = "failed"
	OutcomeCanceled  = "canceled"
)

type Outcome struct {
	Status        string
	ErrorCode     string
	ErrorMessage  string
	ContentLength int
	Summary       stream.Summary
	FinishedAt    time.Time
}

// Observer receives telemetry for every stream a controller runs. Events are
// only reported while the stream is the active one. Implementations must not
// block.
type Observer interface {
	StreamStarted(info StreamInfo)
	StreamEvent(info StreamInfo, ev stream.Event)
	StreamEnded(info StreamInfo, outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) StreamStarted(StreamInfo) {}

func (nopObserver) StreamEvent(StreamInfo, stream.Event) {}

func (nopObserver) StreamEnded(StreamInfo, Outcome) {}
