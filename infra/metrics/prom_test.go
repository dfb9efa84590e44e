package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/emsgrid/dispatchd/core/metrics"
	"github.com/emsgrid/dispatchd/core/model"
)

func TestPromSinkRecordAssignment(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	ev := coremetrics.AssignmentEvent{
		DispatchID: "d1",
		VehicleID:  "v1",
		Strategy:   model.StrategyDeterministic,
		Severity:   3,
		DistanceKm: 4.2,
		Confidence: 0.9,
		Duration:   150 * time.Millisecond,
	}
	if err := sink.RecordAssignment(ev); err != nil {
		t.Fatalf("record: %v", err)
	}

	expected := `
# HELP dispatch_assignments_total Total number of assignment decisions
# TYPE dispatch_assignments_total counter
dispatch_assignments_total{fallback="false",result="assigned",strategy="deterministic"} 1
`
	if err := testutil.CollectAndCompare(sink.assignments, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if c := testutil.CollectAndCount(sink.confidence); c == 0 {
		t.Errorf("confidence not recorded")
	}
	if c := testutil.CollectAndCount(sink.distance); c == 0 {
		t.Errorf("distance not recorded")
	}
}

func TestPromSinkRecordFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	ev := coremetrics.AssignmentEvent{
		DispatchID: "d2",
		Strategy:   model.StrategyLearned,
		Failed:     true,
		ErrorKind:  "NoVehicleAvailable",
	}
	if err := sink.RecordAssignment(ev); err != nil {
		t.Fatalf("record: %v", err)
	}

	expected := `
# HELP dispatch_assignments_total Total number of assignment decisions
# TYPE dispatch_assignments_total counter
dispatch_assignments_total{fallback="false",result="NoVehicleAvailable",strategy="learned"} 1
`
	if err := testutil.CollectAndCompare(sink.assignments, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	// failed decisions must not pollute the confidence and distance histograms
	if c := testutil.CollectAndCount(sink.confidence); c != 0 {
		t.Errorf("confidence recorded for a failed decision")
	}
}

func TestPromSinkRecordDriftIssue(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	ev := coremetrics.DriftIssueEvent{Check: "prediction_drift", Type: "CONFIDENCE_DRIFT", Severity: "HIGH"}
	if err := sink.RecordDriftIssue(ev); err != nil {
		t.Fatalf("record: %v", err)
	}

	expected := `
# HELP dispatch_drift_issues_total Total number of issues raised by the drift checks
# TYPE dispatch_drift_issues_total counter
dispatch_drift_issues_total{check="prediction_drift",severity="HIGH",type="CONFIDENCE_DRIFT"} 1
`
	if err := testutil.CollectAndCompare(sink.drift, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first sink: %v", err)
	}
	second, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}

	ev := coremetrics.AssignmentEvent{Strategy: model.StrategyDeterministic}
	if err := first.RecordAssignment(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := second.RecordAssignment(ev); err != nil {
		t.Fatalf("record: %v", err)
	}

	got := testutil.ToFloat64(second.assignments.WithLabelValues("deterministic", "false", "assigned"))
	if got != 2 {
		t.Fatalf("expected both sinks to share a counter, got %v", got)
	}
}
