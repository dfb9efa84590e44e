// Package metrics defines the narrow recorder interfaces the core emits
// observability data through. Implementations live in infra/metrics.
package metrics

import (
	"time"

	"github.com/emsgrid/dispatchd/core/model"
)

// AssignmentEvent describes one completed (or failed) assignment decision.
type AssignmentEvent struct {
	DispatchID string
	VehicleID  string
	Strategy   model.Strategy
	Fallback   bool
	Severity   int
	DistanceKm float64
	Confidence float64
	Duration   time.Duration
	Failed     bool
	ErrorKind  string
	Time       time.Time
}

// Sink records assignment events for observability purposes.
type Sink interface {
	RecordAssignment(ev AssignmentEvent) error
}

// DriftIssueEvent describes one issue raised by a drift check.
type DriftIssueEvent struct {
	Check    string
	Type     string
	Severity string
	Time     time.Time
}

// DriftRecorder records drift issues. Sinks implement it optionally.
type DriftRecorder interface {
	RecordDriftIssue(ev DriftIssueEvent) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment(AssignmentEvent) error { return nil }

func (NopSink) RecordDriftIssue(DriftIssueEvent) error { return nil }
