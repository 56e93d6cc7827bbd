package sink

import (
	"context"
	"time"
)

//go:generate mockgen -source=sink.go -destination=./mocks/mock_sink.go -package=mocks

// Report is the focus verdict for one camera of a flushed batch.
type Report struct {
	EventID      string    `json:"event_id"`
	RollID       int64     `json:"roll_id"`
	FlushKind    string    `json:"flush_kind"`
	Samples      []int64   `json:"samples"`
	Camera       string    `json:"camera"`
	Directory    string    `json:"directory"`
	Images       int       `json:"images"`
	FailedImages int       `json:"failed_images"`
	AverageScore float64   `json:"average_score"`
	Blurry       bool      `json:"blurry"`
	TriggeredAt  time.Time `json:"triggered_at"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Sink publishes focus reports.
type Sink interface {
	Publish(ctx context.Context, r Report) error
}
