// Package logging persists the append-only experiment log consumed by the
// drift monitor and the router's comparison reports.
package logging

import (
	"context"
	"time"

	"github.com/emsgrid/dispatchd/core/model"
)

// OutcomeQuery filters outcome records by time window and strategy.
type OutcomeQuery struct {
	Start    time.Time
	End      time.Time
	Strategy model.Strategy // empty matches every strategy
}

// matches reports whether the record satisfies the query.
func (q OutcomeQuery) matches(o model.StrategyOutcome) bool {
	if !q.Start.IsZero() && o.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && o.Timestamp.After(q.End) {
		return false
	}
	if q.Strategy != "" && o.Strategy != q.Strategy {
		return false
	}
	return true
}

// OutcomeStore is the append-only log of strategy outcomes and validation
// records. Appended records are immutable; Query returns copies.
type OutcomeStore interface {
	Append(ctx context.Context, o model.StrategyOutcome) error
	AppendValidation(ctx context.Context, v model.ValidationRecord) error
	Query(ctx context.Context, q OutcomeQuery) ([]model.StrategyOutcome, error)
	QueryValidations(ctx context.Context, start, end time.Time) ([]model.ValidationRecord, error)
	Close() error
}

// RawConfidences returns the confidence values of every non-null result in
// the window, in append order.
func RawConfidences(ctx context.Context, s OutcomeStore, q OutcomeQuery) ([]float64, error) {
	recs, err := s.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	var vals []float64
	for _, r := range recs {
		if res := r.Result(); res != nil {
			vals = append(vals, res.Confidence)
		}
	}
	return vals, nil
}

// MeanConfidence averages the confidences of non-null results in the window.
// The boolean is false when the window holds no usable samples.
func MeanConfidence(ctx context.Context, s OutcomeStore, q OutcomeQuery) (float64, bool, error) {
	vals, err := RawConfidences(ctx, s, q)
	if err != nil {
		return 0, false, err
	}
	if len(vals) == 0 {
		return 0, false, nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true, nil
}

// Counts summarises a window: totals per strategy, null results and
// fallbacks.
type Counts struct {
	Total      int
	ByStrategy map[model.Strategy]int
	Null       int
	Fallback   int
}

// CountsByOutcome tallies the window.
func CountsByOutcome(ctx context.Context, s OutcomeStore, q OutcomeQuery) (Counts, error) {
	recs, err := s.Query(ctx, q)
	if err != nil {
		return Counts{}, err
	}
	c := Counts{ByStrategy: make(map[model.Strategy]int)}
	for _, r := range recs {
		c.Total++
		c.ByStrategy[r.Strategy]++
		res := r.Result()
		if res == nil {
			c.Null++
			continue
		}
		if res.Fallback {
			c.Fallback++
		}
	}
	return c, nil
}
