package history

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/emsgrid/dispatchd/core/model"
)

func TestJSONLRecorderAppends(t *testing.T) {
	path := t.TempDir() + "/assignments.log"
	rec, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}

	ctx := context.Background()
	for _, id := range []string{"d1", "d2"} {
		err := rec.RecordAssignment(ctx, Record{
			Request:    model.DispatchRequest{ID: id, Severity: 3},
			Decision:   model.AssignmentDecision{DispatchID: id, VehicleID: "v1"},
			RecordedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()

	var got []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	if got[0].Request.ID != "d1" || got[1].Decision.DispatchID != "d2" {
		t.Fatalf("records out of order: %+v", got)
	}
}

func TestJSONLRecorderHonoursCancelledContext(t *testing.T) {
	path := t.TempDir() + "/assignments.log"
	rec, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	defer func() { _ = rec.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rec.RecordAssignment(ctx, Record{}); err == nil {
		t.Fatal("expected context error")
	}
}
