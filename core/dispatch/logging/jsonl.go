package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/emsgrid/dispatchd/core/model"
)

// JSONLStore stores the outcome log as one JSON document per line. Outcomes
// and validation records go to separate files so the validation stream can
// be replayed independently during retraining.
type JSONLStore struct {
	outcomePath    string
	validationPath string
	mu             sync.Mutex
}

// NewJSONLStore creates both files if needed and returns the store.
func NewJSONLStore(outcomePath, validationPath string) (*JSONLStore, error) {
	for _, p := range []string{outcomePath, validationPath} {
		f, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, err
		}
		if cerr := f.Close(); cerr != nil {
			return nil, cerr
		}
	}
	return &JSONLStore{outcomePath: outcomePath, validationPath: validationPath}, nil
}

func appendLine(path string, v any) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(v)
}

// Append writes the outcome as a JSON line.
func (s *JSONLStore) Append(ctx context.Context, o model.StrategyOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLine(s.outcomePath, o)
}

// AppendValidation writes the validation record as a JSON line.
func (s *JSONLStore) AppendValidation(ctx context.Context, v model.ValidationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLine(s.validationPath, v)
}

// Query scans the outcome file and returns matching records. Unparseable
// lines are skipped rather than failing the whole query.
func (s *JSONLStore) Query(ctx context.Context, q OutcomeQuery) ([]model.StrategyOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.outcomePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var res []model.StrategyOutcome
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var o model.StrategyOutcome
		if err := json.Unmarshal(scanner.Bytes(), &o); err != nil {
			continue
		}
		if q.matches(o) {
			res = append(res, o)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// QueryValidations scans the validation file for records inside the window.
func (s *JSONLStore) QueryValidations(ctx context.Context, start, end time.Time) ([]model.ValidationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.validationPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var res []model.ValidationRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var v model.ValidationRecord
		if err := json.Unmarshal(scanner.Bytes(), &v); err != nil {
			continue
		}
		if !start.IsZero() && v.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && v.Timestamp.After(end) {
			continue
		}
		res = append(res, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close is a no-op; files are opened per operation.
func (s *JSONLStore) Close() error { return nil }
