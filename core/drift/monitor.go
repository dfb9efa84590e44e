// Package drift compares live outcome statistics against a training-time
// baseline and a trailing comparison window. The monitor only classifies and
// reports; retraining is triggered by whoever consumes its alerts.
package drift

import (
	"context"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/emsgrid/dispatchd/core/dispatch/logging"
	"github.com/emsgrid/dispatchd/core/logger"
	"github.com/emsgrid/dispatchd/core/model"
)

// Severity classifies how badly a metric has drifted.
type Severity string

const (
	SeverityNone   Severity = "NONE"
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// rank orders severities for the max() aggregation.
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// IssueType names a detected drift condition.
type IssueType string

const (
	IssueConfidenceDrift IssueType = "CONFIDENCE_DRIFT"
	IssueVarianceDrift   IssueType = "VARIANCE_DRIFT"
	IssueDegradation     IssueType = "PERFORMANCE_DEGRADATION"
	IssueHighNullRate    IssueType = "HIGH_NULL_RATE"
	IssueOutliers        IssueType = "OUTLIERS_DETECTED"
)

// Issue is one detected drift condition.
type Issue struct {
	Type      IssueType `json:"type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Current   float64   `json:"current"`
	Reference float64   `json:"reference"`
	DeltaPct  float64   `json:"delta_pct"`
}

// Metrics are the window statistics a snapshot reports.
type Metrics struct {
	MeanConfidence float64 `json:"mean_confidence"`
	StdDev         float64 `json:"std_dev"`
	Accuracy       float64 `json:"accuracy"`
	FallbackRate   float64 `json:"fallback_rate"`
	NullRate       float64 `json:"null_rate"`
	OutlierRate    float64 `json:"outlier_rate"`
	SampleCount    int     `json:"sample_count"`
}

// Baseline holds the fixed training-time reference values. These are
// configuration, never learned at runtime.
type Baseline struct {
	ConfidenceMean float64 `json:"confidence_mean"`
	ConfidenceStd  float64 `json:"confidence_std"`
	FallbackRate   float64 `json:"fallback_rate"`
	Accuracy       float64 `json:"accuracy"`
}

// Snapshot is the immutable result of one check over one window. Every
// invocation produces a fresh snapshot; nothing is cached or mutated.
type Snapshot struct {
	Check            string    `json:"check"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Current          Metrics   `json:"current"`
	Baseline         Baseline  `json:"baseline"`
	Issues           []Issue   `json:"issues"`
	Severity         Severity  `json:"severity"`
	Drifting         bool      `json:"drifting"`
	InsufficientData bool      `json:"insufficient_data"`
	OutliersSkipped  bool      `json:"outliers_skipped,omitempty"`
}

// Config tunes the monitor thresholds.
type Config struct {
	Baseline Baseline `json:"baseline"`
	// DriftThreshold is the relative confidence deviation (fraction) that
	// flags CONFIDENCE_DRIFT.
	DriftThreshold float64 `json:"drift_threshold"`
	// HighDriftPct escalates CONFIDENCE_DRIFT to HIGH severity.
	HighDriftPct float64 `json:"high_drift_pct"`
	// VarianceThreshold is the absolute standard-deviation deviation that
	// flags VARIANCE_DRIFT.
	VarianceThreshold float64 `json:"variance_threshold"`
	// DegradationPct / DegradationHighPct bound the trailing-window check.
	DegradationPct     float64 `json:"degradation_pct"`
	DegradationHighPct float64 `json:"degradation_high_pct"`
	// NullRateWarn / NullRateHigh bound the missing-result check.
	NullRateWarn float64 `json:"null_rate_warn"`
	NullRateHigh float64 `json:"null_rate_high"`
	// OutlierRateWarn flags the IQR outlier proportion.
	OutlierRateWarn float64 `json:"outlier_rate_warn"`
	// MinSamples is the statistical minimum below which checks report
	// "no drift determination possible" instead of a result.
	MinSamples int `json:"min_samples"`
	// WindowHours / ComparisonHours size the analysis windows.
	WindowHours     int `json:"window_hours"`
	ComparisonHours int `json:"comparison_hours"`
	// IntervalSeconds is the periodic runner cadence.
	IntervalSeconds int `json:"interval_seconds"`
	// FallbackWarnRate / FallbackCriticalRate and MinConfidence drive the
	// runner's operational threshold alerts.
	FallbackWarnRate     float64 `json:"fallback_warn_rate"`
	FallbackCriticalRate float64 `json:"fallback_critical_rate"`
	MinConfidence        float64 `json:"min_confidence"`
}

// SetDefaults applies the production defaults.
func (c *Config) SetDefaults() {
	if c.DriftThreshold <= 0 {
		c.DriftThreshold = 0.05
	}
	if c.HighDriftPct <= 0 {
		c.HighDriftPct = 15
	}
	if c.VarianceThreshold <= 0 {
		c.VarianceThreshold = 0.05
	}
	if c.DegradationPct <= 0 {
		c.DegradationPct = 5
	}
	if c.DegradationHighPct <= 0 {
		c.DegradationHighPct = 10
	}
	if c.NullRateWarn <= 0 {
		c.NullRateWarn = 0.05
	}
	if c.NullRateHigh <= 0 {
		c.NullRateHigh = 0.20
	}
	if c.OutlierRateWarn <= 0 {
		c.OutlierRateWarn = 0.05
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 10
	}
	if c.WindowHours <= 0 {
		c.WindowHours = 24
	}
	if c.ComparisonHours <= 0 {
		c.ComparisonHours = 72
	}
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 300
	}
	if c.FallbackWarnRate <= 0 {
		c.FallbackWarnRate = 0.05
	}
	if c.FallbackCriticalRate <= 0 {
		c.FallbackCriticalRate = 0.10
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.75
	}
}

// Monitor runs the drift checks. It is read-only over the outcome log and
// holds no mutable state, so concurrent runs over overlapping windows are
// safe by construction.
type Monitor struct {
	cfg   Config
	store logging.OutcomeStore
	log   logger.Logger
	now   func() time.Time
}

// NewMonitor creates a monitor over the given outcome store.
func NewMonitor(cfg Config, store logging.OutcomeStore, log logger.Logger) *Monitor {
	cfg.SetDefaults()
	return &Monitor{cfg: cfg, store: store, log: log, now: time.Now}
}

// windowMetrics gathers the statistics for a window of learned-strategy
// outcomes plus the window-wide null/fallback counts.
func (m *Monitor) windowMetrics(ctx context.Context, start, end time.Time) (Metrics, []float64, error) {
	vals, err := logging.RawConfidences(ctx, m.store, logging.OutcomeQuery{
		Start: start, End: end, Strategy: model.StrategyLearned,
	})
	if err != nil {
		return Metrics{}, nil, err
	}
	counts, err := logging.CountsByOutcome(ctx, m.store, logging.OutcomeQuery{Start: start, End: end})
	if err != nil {
		return Metrics{}, nil, err
	}

	met := Metrics{SampleCount: len(vals)}
	if len(vals) > 0 {
		met.MeanConfidence = stat.Mean(vals, nil)
		if len(vals) > 1 {
			met.StdDev = stat.StdDev(vals, nil)
		}
	}
	if counts.Total > 0 {
		met.NullRate = float64(counts.Null) / float64(counts.Total)
		met.FallbackRate = float64(counts.Fallback) / float64(counts.Total)
	}

	if recs, err := m.store.QueryValidations(ctx, start, end); err == nil && len(recs) > 0 {
		correct := 0
		for _, v := range recs {
			if v.Correct {
				correct++
			}
		}
		met.Accuracy = float64(correct) / float64(len(recs))
	}
	return met, vals, nil
}

// CheckPredictionDrift compares the current window against the fixed
// training-time baseline.
func (m *Monitor) CheckPredictionDrift(ctx context.Context) (Snapshot, error) {
	end := m.now()
	start := end.Add(-time.Duration(m.cfg.WindowHours) * time.Hour)
	snap := Snapshot{Check: "prediction_drift", Start: start, End: end, Baseline: m.cfg.Baseline, Severity: SeverityNone}

	met, _, err := m.windowMetrics(ctx, start, end)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Current = met
	if met.SampleCount < m.cfg.MinSamples {
		snap.InsufficientData = true
		return snap, nil
	}

	if base := m.cfg.Baseline.ConfidenceMean; base > 0 {
		deltaPct := math.Abs(met.MeanConfidence-base) / base * 100
		if deltaPct > m.cfg.DriftThreshold*100 {
			sev := SeverityMedium
			if deltaPct > m.cfg.HighDriftPct {
				sev = SeverityHigh
			}
			direction := "increased"
			if met.MeanConfidence < base {
				direction = "decreased"
			}
			snap.Issues = append(snap.Issues, Issue{
				Type:      IssueConfidenceDrift,
				Severity:  sev,
				Message:   "mean confidence has " + direction + " relative to the training baseline",
				Current:   met.MeanConfidence,
				Reference: base,
				DeltaPct:  deltaPct,
			})
		}
	}

	if dev := math.Abs(met.StdDev - m.cfg.Baseline.ConfidenceStd); dev > m.cfg.VarianceThreshold {
		snap.Issues = append(snap.Issues, Issue{
			Type:      IssueVarianceDrift,
			Severity:  SeverityMedium,
			Message:   "confidence variance has shifted significantly",
			Current:   met.StdDev,
			Reference: m.cfg.Baseline.ConfidenceStd,
			DeltaPct:  dev,
		})
	}

	snap.finish()
	return snap, nil
}

// CheckDegradation compares the current window against the immediately
// preceding comparison window, not the fixed baseline.
func (m *Monitor) CheckDegradation(ctx context.Context) (Snapshot, error) {
	end := m.now()
	curStart := end.Add(-time.Duration(m.cfg.WindowHours) * time.Hour)
	prevStart := end.Add(-time.Duration(m.cfg.ComparisonHours) * time.Hour)
	snap := Snapshot{Check: "performance_degradation", Start: curStart, End: end, Baseline: m.cfg.Baseline, Severity: SeverityNone}

	cur, _, err := m.windowMetrics(ctx, curStart, end)
	if err != nil {
		return Snapshot{}, err
	}
	prev, _, err := m.windowMetrics(ctx, prevStart, curStart)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Current = cur
	if cur.SampleCount < m.cfg.MinSamples || prev.SampleCount < m.cfg.MinSamples {
		snap.InsufficientData = true
		return snap, nil
	}

	if prev.MeanConfidence > 0 {
		changePct := (cur.MeanConfidence - prev.MeanConfidence) / prev.MeanConfidence * 100
		if changePct < -m.cfg.DegradationPct {
			sev := SeverityMedium
			if changePct < -m.cfg.DegradationHighPct {
				sev = SeverityHigh
			}
			snap.Issues = append(snap.Issues, Issue{
				Type:      IssueDegradation,
				Severity:  sev,
				Message:   "confidence dropped versus the preceding comparison window",
				Current:   cur.MeanConfidence,
				Reference: prev.MeanConfidence,
				DeltaPct:  changePct,
			})
		}
	}

	snap.finish()
	return snap, nil
}

// CheckDataQuality inspects the window for missing results and confidence
// outliers. The IQR outlier rule needs MinSamples values; below that the
// outlier check is skipped rather than reported as zero drift.
func (m *Monitor) CheckDataQuality(ctx context.Context) (Snapshot, error) {
	end := m.now()
	start := end.Add(-time.Duration(m.cfg.WindowHours) * time.Hour)
	snap := Snapshot{Check: "data_quality", Start: start, End: end, Baseline: m.cfg.Baseline, Severity: SeverityNone}

	met, vals, err := m.windowMetrics(ctx, start, end)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Current = met

	if met.NullRate > m.cfg.NullRateWarn {
		sev := SeverityMedium
		if met.NullRate > m.cfg.NullRateHigh {
			sev = SeverityHigh
		}
		snap.Issues = append(snap.Issues, Issue{
			Type:      IssueHighNullRate,
			Severity:  sev,
			Message:   "records without a result payload exceed the threshold",
			Current:   met.NullRate,
			Reference: m.cfg.NullRateWarn,
			DeltaPct:  met.NullRate * 100,
		})
	}

	if len(vals) < m.cfg.MinSamples {
		snap.OutliersSkipped = true
		snap.finish()
		return snap, nil
	}

	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1
	lower, upper := q1-1.5*iqr, q3+1.5*iqr

	outliers := 0
	for _, v := range sorted {
		if v < lower || v > upper {
			outliers++
		}
	}
	snap.Current.OutlierRate = float64(outliers) / float64(len(sorted))
	if snap.Current.OutlierRate > m.cfg.OutlierRateWarn {
		snap.Issues = append(snap.Issues, Issue{
			Type:      IssueOutliers,
			Severity:  SeverityMedium,
			Message:   "confidence outliers exceed the threshold",
			Current:   snap.Current.OutlierRate,
			Reference: m.cfg.OutlierRateWarn,
			DeltaPct:  snap.Current.OutlierRate * 100,
		})
	}

	snap.finish()
	return snap, nil
}

// finish derives the overall severity and drift flag from the issue list.
func (s *Snapshot) finish() {
	s.Severity = SeverityNone
	for _, is := range s.Issues {
		if is.Severity.rank() > s.Severity.rank() {
			s.Severity = is.Severity
		}
	}
	s.Drifting = len(s.Issues) > 0
}
