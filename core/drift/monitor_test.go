package drift

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/emsgrid/dispatchd/core/dispatch/logging"
	"github.com/emsgrid/dispatchd/core/model"
	"github.com/emsgrid/dispatchd/infra/logger"
)

var testBaseline = Baseline{ConfidenceMean: 0.91, ConfidenceStd: 0.08, FallbackRate: 0.02}

func seedLearned(t *testing.T, store *logging.MemoryStore, ts time.Time, confidences ...float64) {
	t.Helper()
	for i, c := range confidences {
		dec := &model.AssignmentDecision{Confidence: c, Strategy: model.StrategyLearned}
		err := store.Append(context.Background(), model.StrategyOutcome{
			ID:         fmt.Sprintf("o-%d-%d", ts.Unix(), i),
			DispatchID: fmt.Sprintf("d-%d-%d", ts.Unix(), i),
			Strategy:   model.StrategyLearned,
			Learned:    dec,
			Timestamp:  ts,
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

func seedFailed(t *testing.T, store *logging.MemoryStore, ts time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := store.Append(context.Background(), model.StrategyOutcome{
			ID:         fmt.Sprintf("f-%d-%d", ts.Unix(), i),
			DispatchID: fmt.Sprintf("fd-%d-%d", ts.Unix(), i),
			Strategy:   model.StrategyLearned,
			Error:      "no vehicle available",
			Timestamp:  ts,
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newTestMonitor(store *logging.MemoryStore, now time.Time) *Monitor {
	m := NewMonitor(Config{Baseline: testBaseline}, store, logger.NopLogger{})
	m.now = func() time.Time { return now }
	return m
}

func findIssue(issues []Issue, typ IssueType) *Issue {
	for i := range issues {
		if issues[i].Type == typ {
			return &issues[i]
		}
	}
	return nil
}

func TestPredictionDriftHighSeverity(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	// Baseline mean 0.91, window mean 0.75: 17.6% relative deviation.
	seedLearned(t, store, now.Add(-time.Hour), repeat(0.75, 12)...)

	m := newTestMonitor(store, now)
	snap, err := m.CheckPredictionDrift(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !snap.Drifting || snap.InsufficientData {
		t.Fatalf("expected drift finding: %+v", snap)
	}
	issue := findIssue(snap.Issues, IssueConfidenceDrift)
	if issue == nil {
		t.Fatalf("missing confidence drift issue: %+v", snap.Issues)
	}
	if issue.Severity != SeverityHigh {
		t.Fatalf("17.6%% deviation should be HIGH, got %s", issue.Severity)
	}
	if issue.DeltaPct < 17 || issue.DeltaPct > 18 {
		t.Fatalf("expected ~17.6%% delta, got %v", issue.DeltaPct)
	}
	if snap.Severity != SeverityHigh {
		t.Fatalf("snapshot severity should aggregate to HIGH, got %s", snap.Severity)
	}
}

func TestPredictionDriftMediumSeverity(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	// Mean 0.85 against baseline 0.91: 6.6% deviation, above 5% but below 15%.
	seedLearned(t, store, now.Add(-time.Hour), repeat(0.85, 12)...)

	m := newTestMonitor(store, now)
	snap, err := m.CheckPredictionDrift(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	issue := findIssue(snap.Issues, IssueConfidenceDrift)
	if issue == nil || issue.Severity != SeverityMedium {
		t.Fatalf("expected MEDIUM confidence drift, got %+v", snap.Issues)
	}
}

func TestPredictionDriftVarianceShift(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	// Identical samples: window std 0 against baseline std 0.08.
	seedLearned(t, store, now.Add(-time.Hour), repeat(0.91, 12)...)

	m := newTestMonitor(store, now)
	snap, err := m.CheckPredictionDrift(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	issue := findIssue(snap.Issues, IssueVarianceDrift)
	if issue == nil || issue.Severity != SeverityMedium {
		t.Fatalf("expected MEDIUM variance drift, got %+v", snap.Issues)
	}
	// Mean matches the baseline exactly, so no confidence drift.
	if findIssue(snap.Issues, IssueConfidenceDrift) != nil {
		t.Fatalf("unexpected confidence drift: %+v", snap.Issues)
	}
}

func TestPredictionDriftInsufficientData(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	seedLearned(t, store, now.Add(-time.Hour), repeat(0.5, 5)...)

	m := newTestMonitor(store, now)
	snap, err := m.CheckPredictionDrift(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !snap.InsufficientData {
		t.Fatal("5 samples is below the statistical minimum")
	}
	if snap.Drifting || len(snap.Issues) != 0 || snap.Severity != SeverityNone {
		t.Fatalf("no drift determination should be reported: %+v", snap)
	}
}

func TestDegradationAgainstPrecedingWindow(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	// Previous window (72h..24h ago) at 0.9, current window at 0.8: -11.1%.
	seedLearned(t, store, now.Add(-48*time.Hour), repeat(0.9, 12)...)
	seedLearned(t, store, now.Add(-time.Hour), repeat(0.8, 12)...)

	m := newTestMonitor(store, now)
	snap, err := m.CheckDegradation(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	issue := findIssue(snap.Issues, IssueDegradation)
	if issue == nil {
		t.Fatalf("missing degradation issue: %+v", snap)
	}
	if issue.Severity != SeverityHigh {
		t.Fatalf("-11%% drop should be HIGH, got %s", issue.Severity)
	}
	if issue.DeltaPct > -11 || issue.DeltaPct < -12 {
		t.Fatalf("expected ~-11.1%% change, got %v", issue.DeltaPct)
	}
}

func TestDegradationStableWindows(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	seedLearned(t, store, now.Add(-48*time.Hour), repeat(0.85, 12)...)
	seedLearned(t, store, now.Add(-time.Hour), repeat(0.84, 12)...)

	m := newTestMonitor(store, now)
	snap, err := m.CheckDegradation(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if snap.Drifting {
		t.Fatalf("-1.2%% change is inside the threshold: %+v", snap.Issues)
	}
}

func TestDegradationInsufficientComparisonWindow(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	seedLearned(t, store, now.Add(-time.Hour), repeat(0.8, 12)...)

	m := newTestMonitor(store, now)
	snap, err := m.CheckDegradation(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !snap.InsufficientData {
		t.Fatal("empty comparison window should report insufficient data")
	}
}

func TestDataQualityNullRate(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	seedLearned(t, store, now.Add(-time.Hour), repeat(0.9, 12)...)
	seedFailed(t, store, now.Add(-time.Hour), 2) // 2 of 14 without a result

	m := newTestMonitor(store, now)
	snap, err := m.CheckDataQuality(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	issue := findIssue(snap.Issues, IssueHighNullRate)
	if issue == nil || issue.Severity != SeverityMedium {
		t.Fatalf("14%% null rate should be MEDIUM, got %+v", snap.Issues)
	}
}

func TestDataQualityNullRateHigh(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	seedLearned(t, store, now.Add(-time.Hour), repeat(0.9, 10)...)
	seedFailed(t, store, now.Add(-time.Hour), 5) // 5 of 15

	m := newTestMonitor(store, now)
	snap, err := m.CheckDataQuality(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	issue := findIssue(snap.Issues, IssueHighNullRate)
	if issue == nil || issue.Severity != SeverityHigh {
		t.Fatalf("33%% null rate should be HIGH, got %+v", snap.Issues)
	}
}

func TestDataQualityIQROutliers(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	vals := append(repeat(0.9, 10), 0.2, 0.2)
	seedLearned(t, store, now.Add(-time.Hour), vals...)

	m := newTestMonitor(store, now)
	snap, err := m.CheckDataQuality(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if snap.OutliersSkipped {
		t.Fatal("12 samples meet the minimum, check must run")
	}
	issue := findIssue(snap.Issues, IssueOutliers)
	if issue == nil {
		t.Fatalf("missing outlier issue: %+v", snap.Issues)
	}
	if snap.Current.OutlierRate < 0.16 || snap.Current.OutlierRate > 0.17 {
		t.Fatalf("expected 2/12 outlier rate, got %v", snap.Current.OutlierRate)
	}
}

func TestDataQualityOutlierCheckSkippedBelowMinimum(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	seedLearned(t, store, now.Add(-time.Hour), 0.9, 0.2, 0.2)

	m := newTestMonitor(store, now)
	snap, err := m.CheckDataQuality(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !snap.OutliersSkipped {
		t.Fatal("below the minimum the outlier check must be skipped, not reported as zero")
	}
	if findIssue(snap.Issues, IssueOutliers) != nil {
		t.Fatalf("no outlier issue expected: %+v", snap.Issues)
	}
}

func TestWindowAccuracyFromValidations(t *testing.T) {
	store := logging.NewMemoryStore()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	seedLearned(t, store, now.Add(-time.Hour), repeat(0.9, 12)...)
	for i := 0; i < 4; i++ {
		err := store.AppendValidation(context.Background(), model.ValidationRecord{
			DispatchID: fmt.Sprintf("d-%d", i),
			Correct:    i < 3,
			Timestamp:  now.Add(-time.Hour),
		})
		if err != nil {
			t.Fatalf("append validation: %v", err)
		}
	}

	m := newTestMonitor(store, now)
	snap, err := m.CheckPredictionDrift(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if snap.Current.Accuracy != 0.75 {
		t.Fatalf("expected accuracy 0.75, got %v", snap.Current.Accuracy)
	}
}
