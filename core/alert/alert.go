// Package alert defines the sink the drift monitor raises alerts through,
// together with the alert taxonomy shared with external responders.
package alert

import (
	"context"
	"time"
)

// Severity orders alerts for triage.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Type classifies what triggered the alert.
type Type string

const (
	TypeDriftDetected Type = "DRIFT_DETECTED"
	TypeDegradation   Type = "PERFORMANCE_DEGRADATION"
	TypeHighFallback  Type = "HIGH_FALLBACK_RATE"
	TypeLowConfidence Type = "LOW_CONFIDENCE"
	TypeDataQuality   Type = "DATA_QUALITY"
	TypeServiceDown   Type = "SERVICE_DOWN"
)

// Alert is one raised notification.
type Alert struct {
	Type        Type
	Severity    Severity
	Title       string
	Description string
	Details     map[string]any
	Time        time.Time
}

// Sink receives alerts. Raising is the drift monitor's sole side effect.
type Sink interface {
	Raise(ctx context.Context, a Alert) error
}

// NopSink discards alerts.
type NopSink struct{}

func (NopSink) Raise(context.Context, Alert) error { return nil }

// MultiSink fans an alert out to several sinks. The first error is returned
// after every sink has been tried.
type MultiSink []Sink

func (m MultiSink) Raise(ctx context.Context, a Alert) error {
	var first error
	for _, s := range m {
		if err := s.Raise(ctx, a); err != nil && first == nil {
			first = err
		}
	}
	return first
}
