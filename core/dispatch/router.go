package dispatch

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/emsgrid/dispatchd/core/dispatch/logging"
	"github.com/emsgrid/dispatchd/core/logger"
	"github.com/emsgrid/dispatchd/core/model"
)

// Policy names a traffic splitting strategy.
type Policy string

const (
	PolicyRandomWeighted Policy = "random_weighted"
	PolicyRoundRobin     Policy = "round_robin"
	PolicyTimeOfDay      Policy = "time_of_day"
	// PolicyWeightBased decides exactly like PolicyRandomWeighted. It is
	// kept as a distinct named value so experiment cohorts can be told
	// apart in the outcome log.
	PolicyWeightBased Policy = "weight_based"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyRandomWeighted, PolicyRoundRobin, PolicyTimeOfDay, PolicyWeightBased:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown routing policy %q", s)
	}
}

// Router splits dispatch traffic between the deterministic and learned
// strategies. Routers are safe for concurrent use; the round-robin counter
// is the only shared mutable state and is advanced atomically.
type Router struct {
	policy    Policy
	weight    float64
	peakStart int
	peakEnd   int
	counter   atomic.Uint64
	store     logging.OutcomeStore
	log       logger.Logger

	// Injectable for deterministic tests.
	randFloat func() float64
	now       func() time.Time
}

// NewRouter builds a router from the validated config. The store receives
// one StrategyOutcome per routed request.
func NewRouter(cfg RouterConfig, store logging.OutcomeStore, log logger.Logger) (*Router, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, _ := ParsePolicy(cfg.Policy)
	return &Router{
		policy:    policy,
		weight:    cfg.LearnedWeight,
		peakStart: cfg.PeakStartHour,
		peakEnd:   cfg.PeakEndHour,
		store:     store,
		log:       log,
		randFloat: rand.Float64,
		now:       time.Now,
	}, nil
}

// Policy returns the configured splitting policy.
func (r *Router) Policy() Policy { return r.policy }

// Decide picks the strategy for the given request id.
func (r *Router) Decide(requestID string) model.Strategy {
	switch r.policy {
	case PolicyRoundRobin:
		return r.decideRoundRobin()
	case PolicyTimeOfDay:
		return r.decideTimeOfDay()
	default: // random_weighted and its weight_based alias
		return r.decideWeighted(r.weight)
	}
}

func (r *Router) decideWeighted(p float64) model.Strategy {
	if r.randFloat() < p {
		return model.StrategyLearned
	}
	return model.StrategyDeterministic
}

// decideRoundRobin routes every round(1/weight)-th request to the learned
// strategy. The increment-then-read on the shared counter keeps the cadence
// exact under concurrency.
func (r *Router) decideRoundRobin() model.Strategy {
	n := r.counter.Add(1)
	threshold := uint64(math.Round(1 / r.weight))
	if threshold == 0 {
		threshold = 1
	}
	if n%threshold == 0 {
		return model.StrategyLearned
	}
	return model.StrategyDeterministic
}

// decideTimeOfDay favours the learned strategy inside the peak window.
func (r *Router) decideTimeOfDay() model.Strategy {
	hour := r.now().Hour()
	p := 0.3
	if hour >= r.peakStart && hour < r.peakEnd {
		p = 0.7
	}
	return r.decideWeighted(p)
}

// RecordOutcome appends one experiment log entry. When both strategies were
// evaluated for the request, both payloads are attached for offline
// comparison. Append failures are logged and swallowed: recording is
// fire-and-forget relative to the decision path.
func (r *Router) RecordOutcome(ctx context.Context, dispatchID string, used model.Strategy, det, learned *model.AssignmentDecision, decisionErr error) {
	if r.store == nil {
		return
	}
	o := model.StrategyOutcome{
		ID:            uuid.NewString(),
		DispatchID:    dispatchID,
		Strategy:      used,
		Policy:        string(r.policy),
		Deterministic: det,
		Learned:       learned,
		Timestamp:     r.now(),
	}
	if decisionErr != nil {
		o.Error = decisionErr.Error()
	}
	if err := r.store.Append(ctx, o); err != nil {
		r.log.Warnf("outcome append failed for dispatch %s: %v", dispatchID, err)
	}
}

// UsageCounts returns per-strategy routing counts over the window.
func (r *Router) UsageCounts(ctx context.Context, start, end time.Time) (map[model.Strategy]int, error) {
	c, err := logging.CountsByOutcome(ctx, r.store, logging.OutcomeQuery{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	return c.ByStrategy, nil
}
