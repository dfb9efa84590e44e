package prediction

import (
	"context"
	"time"
)

// MockEngine returns configurable predictions for tests and local runs.
type MockEngine struct {
	// Results maps dispatch id to the result to return.
	Results map[string]Result
	// Err, when set, is returned for every call.
	Err error
	// Delay is applied before responding, allowing timeout paths to be
	// exercised deterministically.
	Delay time.Duration
}

// Predict returns the configured result for the dispatch id.
func (m MockEngine) Predict(ctx context.Context, f Features) (Result, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if m.Err != nil {
		return Result{}, m.Err
	}
	if r, ok := m.Results[f.DispatchID]; ok {
		return r, nil
	}
	return Result{}, nil
}

// PredictBatch applies Predict to each feature vector.
func (m MockEngine) PredictBatch(ctx context.Context, fs []Features) ([]Result, error) {
	out := make([]Result, 0, len(fs))
	for _, f := range fs {
		r, err := m.Predict(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
