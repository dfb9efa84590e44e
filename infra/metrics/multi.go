package metrics

import coremetrics "github.com/emsgrid/dispatchd/core/metrics"

// MultiSink fans assignment events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAssignment forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordAssignment(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordDriftIssue forwards drift findings to the sinks that support them.
func (m *MultiSink) RecordDriftIssue(ev coremetrics.DriftIssueEvent) error {
	var first error
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.DriftRecorder); ok {
			if err := rec.RecordDriftIssue(ev); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
