package dispatch

//go:generate mockgen -source=dispatch.go -destination=./mocks/mock_dispatch.go -package=mocks

import (
	"context"
	"time"

	"github.com/google/uuid"

	"kniti.io/focus-monitor/internal/batch"
)

// Event is a flushed batch handed to downstream processing. It is never mutated after creation.
type Event struct {
	ID          string          `json:"id"`
	RollID      int64           `json:"roll_id"`
	Samples     []int64         `json:"samples"`
	Kind        batch.FlushKind `json:"kind"`
	Camera      string          `json:"camera,omitempty"`
	TriggeredAt time.Time       `json:"triggered_at"`
}

// NewEvent builds an event with a fresh ID. samples must already be a private copy.
func NewEvent(rollID int64, samples []int64, kind batch.FlushKind, camera string, at time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		RollID:      rollID,
		Samples:     samples,
		Kind:        kind,
		Camera:      camera,
		TriggeredAt: at,
	}
}

// Processor runs the downstream work for one event.
type Processor interface {
	Process(ctx context.Context, ev Event) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, ev Event) error

func (f ProcessorFunc) Process(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Dispatcher launches processing for an event without blocking the caller.
// It returns false when the event was not accepted.
type Dispatcher interface {
	Dispatch(ev Event) bool
}
