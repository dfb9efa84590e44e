package logging

import (
	"context"
	"sync"
	"time"

	"github.com/emsgrid/dispatchd/core/model"
)

// MemoryStore keeps outcomes in memory. Used by tests and as the default
// store when no backend is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	outcomes    []model.StrategyOutcome
	validations []model.ValidationRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Append stores the outcome.
func (s *MemoryStore) Append(ctx context.Context, o model.StrategyOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	s.mu.Unlock()
	return nil
}

// AppendValidation stores the validation record.
func (s *MemoryStore) AppendValidation(ctx context.Context, v model.ValidationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.validations = append(s.validations, v)
	s.mu.Unlock()
	return nil
}

// Query returns matching outcomes in append order.
func (s *MemoryStore) Query(ctx context.Context, q OutcomeQuery) ([]model.StrategyOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.StrategyOutcome
	for _, o := range s.outcomes {
		if q.matches(o) {
			res = append(res, o)
		}
	}
	return res, nil
}

// QueryValidations returns validation records inside the window.
func (s *MemoryStore) QueryValidations(ctx context.Context, start, end time.Time) ([]model.ValidationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.ValidationRecord
	for _, v := range s.validations {
		if !start.IsZero() && v.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && v.Timestamp.After(end) {
			continue
		}
		res = append(res, v)
	}
	return res, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
