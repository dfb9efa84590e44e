package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	coremetrics "github.com/emsgrid/dispatchd/core/metrics"
	"github.com/emsgrid/dispatchd/core/model"
)

func TestInfluxSinkRecordAssignment(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	ev := coremetrics.AssignmentEvent{
		DispatchID: "d1",
		VehicleID:  "v1",
		Strategy:   model.StrategyLearned,
		Severity:   4,
		DistanceKm: 3.14159,
		Confidence: 0.875,
		Duration:   120 * time.Millisecond,
		Time:       time.Now(),
	}
	if err := sink.RecordAssignment(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}

	for _, want := range []string{
		"assignment_event",
		`dispatch_id=d1`,
		`strategy=learned`,
		`vehicle_id=v1`,
		`distance_km=3.142`,
		`confidence=0.875`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("line protocol missing %q: %s", want, body)
		}
	}
}

func TestInfluxSinkRecordFailureTagsErrorKind(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	ev := coremetrics.AssignmentEvent{
		DispatchID: "d2",
		Strategy:   model.StrategyDeterministic,
		Failed:     true,
		ErrorKind:  "NoCrewAvailable",
		Time:       time.Now(),
	}
	if err := sink.RecordAssignment(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if !strings.Contains(body, "error_kind=NoCrewAvailable") {
		t.Errorf("failure tag missing: %s", body)
	}
	if strings.Contains(body, "confidence=") {
		t.Errorf("failed decision must not carry a confidence field: %s", body)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatal("health endpoint never probed")
	}
}
