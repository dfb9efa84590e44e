package dispatch

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/emsgrid/dispatchd/core/geo"
	"github.com/emsgrid/dispatchd/core/model"
	"github.com/emsgrid/dispatchd/core/prediction"
	"github.com/emsgrid/dispatchd/infra/logger"
)

func newLearned(pred prediction.Engine, timeoutSec int) (*LearnedClient, *RuleEngine) {
	eng := NewRuleEngine(EngineConfig{}, nil, logger.NopLogger{})
	cli := NewLearnedClient(LearnedConfig{TimeoutSeconds: timeoutSec}, pred, eng, logger.NopLogger{})
	return cli, eng
}

func TestLearnedAssignUsesPrediction(t *testing.T) {
	req := testRequest(3)
	pred := prediction.MockEngine{Results: map[string]prediction.Result{
		"disp-1": {VehicleID: "v-far", Confidence: 0.88},
	}}
	cli, _ := newLearned(pred, 5)

	dec, err := cli.Assign(context.Background(), req)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if dec.VehicleID != "v-far" {
		t.Fatalf("expected predicted vehicle v-far, got %s", dec.VehicleID)
	}
	if dec.Strategy != model.StrategyLearned || dec.Fallback {
		t.Fatalf("unexpected strategy flags: %+v", dec)
	}
	if dec.Confidence != 0.88 {
		t.Fatalf("expected model confidence 0.88, got %v", dec.Confidence)
	}
	if dec.DistanceKm <= 5 {
		t.Fatalf("distance should be the predicted vehicle's real distance, got %v", dec.DistanceKm)
	}
}

func TestLearnedAssignScoresCandidates(t *testing.T) {
	req := testRequest(3)
	pred := prediction.MockEngine{Results: map[string]prediction.Result{
		"disp-1": {VehicleID: "v-far", Confidence: 0.88},
	}}
	cli, _ := newLearned(pred, 5)

	dec, err := cli.Assign(context.Background(), req)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	// v-near outranks v-far on the weighted criteria and v-busy scores zero
	// availability, so the model's pick sits second of three.
	if !strings.Contains(dec.Reasoning, "scored 2 of 3") {
		t.Fatalf("reasoning should carry the candidate ranking, got %q", dec.Reasoning)
	}
	want := geo.Distance(req.Latitude, req.Longitude, 48.93, 2.45)
	if math.Abs(dec.DistanceKm-want) > 1e-9 {
		t.Fatalf("distance should come from the scorer breakdown: want %v, got %v", want, dec.DistanceKm)
	}
}

func TestLearnedAssignFallsBackOnError(t *testing.T) {
	req := testRequest(3)
	pred := prediction.MockEngine{Err: errors.New("model down")}
	cli, eng := newLearned(pred, 5)

	dec, err := cli.Assign(context.Background(), req)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !dec.Fallback {
		t.Fatal("expected fallback flag")
	}

	// Apart from the flag the decision matches the engine's own output.
	direct, err := eng.Assign(context.Background(), req)
	if err != nil {
		t.Fatalf("direct assign: %v", err)
	}
	if dec.VehicleID != direct.VehicleID || !reflect.DeepEqual(dec.CrewIDs, direct.CrewIDs) {
		t.Fatalf("fallback decision differs from engine output:\nfallback: %+v\ndirect:   %+v", dec, direct)
	}
}

func TestLearnedAssignFallsBackOnTimeout(t *testing.T) {
	req := testRequest(3)
	pred := prediction.MockEngine{
		Results: map[string]prediction.Result{"disp-1": {VehicleID: "v-far", Confidence: 0.9}},
		Delay:   200 * time.Millisecond,
	}
	eng := NewRuleEngine(EngineConfig{}, nil, logger.NopLogger{})
	cli := &LearnedClient{pred: pred, engine: eng, timeout: 10 * time.Millisecond, log: logger.NopLogger{}}

	dec, err := cli.Assign(context.Background(), req)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !dec.Fallback {
		t.Fatal("timeout should trigger fallback")
	}
	if dec.VehicleID != "v-near" {
		t.Fatalf("fallback should pick the nearest vehicle, got %s", dec.VehicleID)
	}
}

func TestLearnedAssignRejectsUnknownVehicle(t *testing.T) {
	req := testRequest(3)
	pred := prediction.MockEngine{Results: map[string]prediction.Result{
		"disp-1": {VehicleID: "ghost", Confidence: 0.99},
	}}
	cli, _ := newLearned(pred, 5)

	dec, err := cli.Assign(context.Background(), req)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !dec.Fallback {
		t.Fatal("prediction of an absent vehicle must fall back")
	}
}

func TestLearnedAssignRejectsUnavailableVehicle(t *testing.T) {
	req := testRequest(3)
	pred := prediction.MockEngine{Results: map[string]prediction.Result{
		"disp-1": {VehicleID: "v-busy", Confidence: 0.99},
	}}
	cli, _ := newLearned(pred, 5)

	dec, err := cli.Assign(context.Background(), req)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !dec.Fallback {
		t.Fatal("prediction of a busy vehicle must fall back")
	}
}

func TestLearnedAssignRejectsOutOfRangeConfidence(t *testing.T) {
	req := testRequest(3)
	pred := prediction.MockEngine{Results: map[string]prediction.Result{
		"disp-1": {VehicleID: "v-near", Confidence: 1.5},
	}}
	cli, _ := newLearned(pred, 5)

	dec, err := cli.Assign(context.Background(), req)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !dec.Fallback {
		t.Fatal("confidence above 1 must fall back")
	}
}

func TestLearnedFallbackPropagatesEngineError(t *testing.T) {
	req := testRequest(3)
	req.Vehicles = nil
	pred := prediction.MockEngine{Err: errors.New("model down")}
	cli, _ := newLearned(pred, 5)

	_, err := cli.Assign(context.Background(), req)
	if KindOf(err) != KindNoVehicle {
		t.Fatalf("expected %s from the fallback path, got %v", KindNoVehicle, err)
	}
}

func TestAssignFeaturesReconstructsFallbackRequest(t *testing.T) {
	f := prediction.Features{
		DispatchID: "disp-2",
		Latitude:   48.85, Longitude: 2.35,
		Severity:          3,
		VehiclesAvailable: 2,
		CrewAvailable:     3,
		CrewSenior:        1,
		CrewJunior:        2,
	}
	pred := prediction.MockEngine{Err: errors.New("model down")}
	cli, _ := newLearned(pred, 5)

	dec, err := cli.AssignFeatures(context.Background(), f)
	if err != nil {
		t.Fatalf("assign features: %v", err)
	}
	if !dec.Fallback {
		t.Fatal("expected fallback")
	}
	if dec.VehicleID != "veh-1" {
		t.Fatalf("expected synthesised vehicle, got %s", dec.VehicleID)
	}
	if len(dec.CrewIDs) != 2 {
		t.Fatalf("severity 3 needs 2 crew, got %v", dec.CrewIDs)
	}
}
