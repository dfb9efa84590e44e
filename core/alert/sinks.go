package alert

import (
	"context"

	"github.com/emsgrid/dispatchd/core/logger"
	"github.com/emsgrid/dispatchd/internal/eventbus"
)

// LogSink writes alerts to the structured log.
type LogSink struct {
	log logger.Logger
}

// NewLogSink returns a sink logging through the given logger.
func NewLogSink(log logger.Logger) *LogSink { return &LogSink{log: log} }

// Raise logs the alert at a level matching its severity.
func (s *LogSink) Raise(_ context.Context, a Alert) error {
	fields := map[string]any{
		"type":        string(a.Type),
		"severity":    string(a.Severity),
		"description": a.Description,
	}
	for k, v := range a.Details {
		fields[k] = v
	}
	switch a.Severity {
	case SeverityCritical, SeverityHigh:
		s.log.Errorf("alert %s [%s]: %s", a.Type, a.Severity, a.Title)
	case SeverityMedium:
		s.log.Warnf("alert %s [%s]: %s", a.Type, a.Severity, a.Title)
	default:
		s.log.Infof("alert %s [%s]: %s", a.Type, a.Severity, a.Title)
	}
	s.log.Debugw("alert details", fields)
	return nil
}

// BusSink publishes alerts on the internal event bus so other components
// (for example the retraining trigger) can react without coupling to the
// monitor.
type BusSink struct {
	bus eventbus.EventBus
}

// NewBusSink returns a sink publishing on the given bus.
func NewBusSink(bus eventbus.EventBus) *BusSink { return &BusSink{bus: bus} }

// Raise publishes the alert as an event.
func (s *BusSink) Raise(_ context.Context, a Alert) error {
	s.bus.Publish(a)
	return nil
}
