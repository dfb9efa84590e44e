package history

import (
	"context"
	"encoding/json"
	"os"
	"sync"
)

// JSONLRecorder appends one JSON document per line to a file.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder opens or creates the file at path in append mode.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{file: f, enc: json.NewEncoder(f)}, nil
}

// RecordAssignment writes the record as a single JSON line.
func (r *JSONLRecorder) RecordAssignment(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(rec)
}

// Close closes the underlying file.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
