package dispatch

import (
	"context"
	"math"
	"time"

	"github.com/emsgrid/dispatchd/core/dispatch/logging"
	"github.com/emsgrid/dispatchd/core/model"
)

// StrategyStats summarises the confidence distribution of one strategy's
// recorded results over a window.
type StrategyStats struct {
	Count          int     `json:"count"`
	MeanConfidence float64 `json:"mean_confidence"`
	MinConfidence  float64 `json:"min_confidence"`
	MaxConfidence  float64 `json:"max_confidence"`
}

// ComparisonReport contrasts the two strategies over a window.
type ComparisonReport struct {
	Start          time.Time     `json:"start"`
	End            time.Time     `json:"end"`
	Policy         string        `json:"policy"`
	Deterministic  StrategyStats `json:"deterministic"`
	Learned        StrategyStats `json:"learned"`
	DeltaPct       float64       `json:"delta_pct"` // learned vs deterministic, percentage points relative to deterministic
	LearnedBetter  bool          `json:"learned_better"`
	Recommendation string        `json:"recommendation"`
}

// Compare builds the comparison report for the window. Records contribute to
// a strategy's stats whenever that strategy's payload was evaluated, so
// shadow evaluations count too.
func (r *Router) Compare(ctx context.Context, start, end time.Time) (ComparisonReport, error) {
	recs, err := r.store.Query(ctx, logging.OutcomeQuery{Start: start, End: end})
	if err != nil {
		return ComparisonReport{}, err
	}

	report := ComparisonReport{Start: start, End: end, Policy: string(r.policy)}
	for _, rec := range recs {
		accumulate(&report.Deterministic, rec.Deterministic)
		accumulate(&report.Learned, rec.Learned)
	}
	finalize(&report.Deterministic)
	finalize(&report.Learned)

	if report.Deterministic.MeanConfidence > 0 {
		report.DeltaPct = (report.Learned.MeanConfidence - report.Deterministic.MeanConfidence) /
			report.Deterministic.MeanConfidence * 100
	}
	report.LearnedBetter = report.DeltaPct > 0
	report.Recommendation = recommendation(report)
	return report, nil
}

// accumulate abuses MeanConfidence as a running sum until finalize.
func accumulate(s *StrategyStats, dec *model.AssignmentDecision) {
	if dec == nil {
		return
	}
	if s.Count == 0 {
		s.MinConfidence = dec.Confidence
		s.MaxConfidence = dec.Confidence
	}
	s.Count++
	s.MeanConfidence += dec.Confidence
	s.MinConfidence = math.Min(s.MinConfidence, dec.Confidence)
	s.MaxConfidence = math.Max(s.MaxConfidence, dec.Confidence)
}

func finalize(s *StrategyStats) {
	if s.Count > 0 {
		s.MeanConfidence /= float64(s.Count)
	}
}

// recommendation maps the confidence delta to rollout advice.
func recommendation(rep ComparisonReport) string {
	if rep.Deterministic.Count == 0 || rep.Learned.Count == 0 {
		return "insufficient data: both strategies need recorded results"
	}
	switch {
	case rep.DeltaPct > 10:
		return "learned strategy showing significant improvement; consider gradual rollout"
	case rep.DeltaPct > 5:
		return "learned strategy showing moderate improvement; continue testing"
	case rep.DeltaPct > 0:
		return "learned strategy slightly better; collect more data"
	case rep.DeltaPct > -5:
		return "results are similar; both strategies are viable"
	default:
		return "deterministic strategy more reliable; learned strategy needs optimization"
	}
}
