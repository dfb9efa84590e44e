// Package history defines the best-effort recorder that captures assignment
// snapshots for future model training. Recording failures never fail the
// assignment that triggered them.
package history

import (
	"context"
	"time"

	"github.com/emsgrid/dispatchd/core/model"
)

// Record pairs the request snapshot with the decision taken on it.
type Record struct {
	Request    model.DispatchRequest    `json:"request"`
	Decision   model.AssignmentDecision `json:"decision"`
	RecordedAt time.Time                `json:"recorded_at"`
}

// Recorder persists assignment records.
type Recorder interface {
	RecordAssignment(ctx context.Context, rec Record) error
	Close() error
}

// NopRecorder discards every record.
type NopRecorder struct{}

func (NopRecorder) RecordAssignment(context.Context, Record) error { return nil }
func (NopRecorder) Close() error                                   { return nil }
