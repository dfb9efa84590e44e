package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/emsgrid/dispatchd/core/metrics"
)

// PromSink records assignment events in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	confidence  *prometheus.HistogramVec
	latency     *prometheus.HistogramVec
	distance    prometheus.Histogram
	drift       *prometheus.CounterVec
}

// NewPromSink registers assignment metrics on the default Prometheus
// registerer. The metrics server is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_assignments_total",
		Help: "Total number of assignment decisions",
	}, []string{"strategy", "fallback", "result"})
	confidence := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_confidence",
		Help:    "Confidence of completed assignment decisions",
		Buckets: prometheus.LinearBuckets(0.5, 0.05, 11),
	}, []string{"strategy"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_decision_seconds",
		Help:    "Time from request receipt to assignment decision",
		Buckets: prometheus.DefBuckets,
	}, []string{"strategy"})
	distance := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatch_distance_km",
		Help:    "Distance between incident and assigned vehicle",
		Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 50},
	})
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_drift_issues_total",
		Help: "Total number of issues raised by the drift checks",
	}, []string{"check", "type", "severity"})

	if err := reg.Register(assignments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assignments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(confidence); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			confidence = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(distance); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			distance = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(drift); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			drift = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		assignments: assignments,
		confidence:  confidence,
		latency:     latency,
		distance:    distance,
		drift:       drift,
	}, nil
}

// RecordAssignment increments the counters and histograms for one decision.
func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	result := "assigned"
	if ev.Failed {
		result = ev.ErrorKind
	}
	s.assignments.WithLabelValues(string(ev.Strategy), strconv.FormatBool(ev.Fallback), result).Inc()
	s.latency.WithLabelValues(string(ev.Strategy)).Observe(ev.Duration.Seconds())
	if !ev.Failed {
		s.confidence.WithLabelValues(string(ev.Strategy)).Observe(ev.Confidence)
		s.distance.Observe(ev.DistanceKm)
	}
	return nil
}

// RecordDriftIssue increments the drift issue counter.
func (s *PromSink) RecordDriftIssue(ev coremetrics.DriftIssueEvent) error {
	s.drift.WithLabelValues(ev.Check, ev.Type, ev.Severity).Inc()
	return nil
}
