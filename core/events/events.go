// Package events defines the domain events published on the internal bus.
package events

import (
	"time"

	"github.com/emsgrid/dispatchd/core/model"
)

// RequestEvent is published when a dispatch request enters the pipeline.
type RequestEvent struct {
	Request model.DispatchRequest
}

// DecisionEvent is published for every completed assignment decision.
type DecisionEvent struct {
	Decision model.AssignmentDecision
	Duration time.Duration
}

// FallbackEvent is published when the learned strategy fell back to the
// deterministic engine.
type FallbackEvent struct {
	DispatchID string
	Reason     string
}

// FailureEvent is published when a request terminates without a decision.
type FailureEvent struct {
	DispatchID string
	Kind       string
	Err        error
}

// DriftEvent is published when a drift check detects issues.
type DriftEvent struct {
	Check    string
	Severity string
	Issues   int
}
