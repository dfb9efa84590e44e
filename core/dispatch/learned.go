package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/emsgrid/dispatchd/core/geo"
	"github.com/emsgrid/dispatchd/core/logger"
	"github.com/emsgrid/dispatchd/core/model"
	"github.com/emsgrid/dispatchd/core/prediction"
)

// LearnedClient wraps the prediction collaborator with timeout and fallback
// semantics. It owns no decision logic beyond call, validate, else fall back
// to the deterministic engine.
type LearnedClient struct {
	pred    prediction.Engine
	engine  *RuleEngine
	timeout time.Duration
	log     logger.Logger
}

// NewLearnedClient builds the client. The engine is the mandatory fallback.
func NewLearnedClient(cfg LearnedConfig, pred prediction.Engine, engine *RuleEngine, log logger.Logger) *LearnedClient {
	cfg.SetDefaults()
	return &LearnedClient{
		pred:    pred,
		engine:  engine,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		log:     log,
	}
}

// Assign asks the collaborator for a prediction and falls back to the
// deterministic engine on timeout, transport error or an invalid result.
// Fallback decisions carry the deterministic strategy with Fallback set;
// the original request snapshot is used directly since it is still at hand.
func (c *LearnedClient) Assign(ctx context.Context, req model.DispatchRequest) (model.AssignmentDecision, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.pred.Predict(cctx, prediction.FromRequest(req))
	if err != nil {
		c.log.Warnf("prediction unavailable for dispatch %s, falling back: %v", req.ID, err)
		return c.fallback(ctx, req)
	}
	if !c.validResult(req, res) {
		c.log.Warnf("prediction for dispatch %s rejected (vehicle %q, confidence %v), falling back",
			req.ID, res.VehicleID, res.Confidence)
		return c.fallback(ctx, req)
	}

	crew, err := c.engine.assignCrew(req)
	if err != nil {
		return c.fallback(ctx, req)
	}

	// Cross-check the model's pick against the rule-based candidate ranking.
	// The scorer supplies the decision's distance and the reasoning context;
	// the confidence stays the model's own.
	ranked := geo.Rank(req.Vehicles, req.Incident(), req.Severity, req.RequiredType,
		c.engine.cfg.Weights, c.engine.cfg.Params)
	var pick geo.ScoreBreakdown
	position := 0
	for i, sb := range ranked {
		if sb.VehicleID == res.VehicleID {
			pick = sb
			position = i + 1
			break
		}
	}

	return model.AssignmentDecision{
		DispatchID:   req.ID,
		VehicleID:    res.VehicleID,
		CrewIDs:      crew.ids,
		NurseID:      crew.nurseID,
		SpecialistID: crew.specialistID,
		DistanceKm:   pick.DistanceKm,
		Confidence:   res.Confidence,
		Strategy:     model.StrategyLearned,
		Reasoning: fmt.Sprintf("model picked vehicle %s, scored %d of %d (separation %.2f); %s",
			res.VehicleID, position, len(ranked), geo.Confidence(ranked), crew.reasoning),
		Timestamp: time.Now(),
	}, nil
}

// AssignFeatures is the entry point for callers that only hold the flattened
// feature representation. The fallback path reconstructs the request shape
// from the aggregate counts via the inverse feature mapping.
func (c *LearnedClient) AssignFeatures(ctx context.Context, f prediction.Features) (model.AssignmentDecision, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := f.ReconstructRequest()
	res, err := c.pred.Predict(cctx, f)
	if err != nil {
		c.log.Warnf("prediction unavailable for dispatch %s, falling back: %v", f.DispatchID, err)
		return c.fallback(ctx, req)
	}
	if !c.validResult(req, res) {
		return c.fallback(ctx, req)
	}

	crew, err := c.engine.assignCrew(req)
	if err != nil {
		return c.fallback(ctx, req)
	}
	return model.AssignmentDecision{
		DispatchID:   f.DispatchID,
		VehicleID:    res.VehicleID,
		CrewIDs:      crew.ids,
		NurseID:      crew.nurseID,
		SpecialistID: crew.specialistID,
		Confidence:   res.Confidence,
		Strategy:     model.StrategyLearned,
		Reasoning:    "model ranked vehicle " + res.VehicleID + " first; " + crew.reasoning,
		Timestamp:    time.Now(),
	}, nil
}

// validResult enforces the snapshot invariant: the predicted vehicle must be
// present and available in the request, and the confidence must be in [0,1].
func (c *LearnedClient) validResult(req model.DispatchRequest, res prediction.Result) bool {
	if res.VehicleID == "" || res.Confidence < 0 || res.Confidence > 1 {
		return false
	}
	for _, v := range req.Vehicles {
		if v.ID == res.VehicleID && v.Available() {
			return true
		}
	}
	return false
}

// fallback delegates to the deterministic engine, tagging the decision. A
// fallback failure surfaces the engine's own error kind.
func (c *LearnedClient) fallback(ctx context.Context, req model.DispatchRequest) (model.AssignmentDecision, error) {
	dec, err := c.engine.Assign(ctx, req)
	if err != nil {
		return model.AssignmentDecision{}, err
	}
	dec.Fallback = true
	return dec, nil
}
