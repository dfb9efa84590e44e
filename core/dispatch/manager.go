package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/emsgrid/dispatchd/core/events"
	"github.com/emsgrid/dispatchd/core/logger"
	"github.com/emsgrid/dispatchd/core/metrics"
	"github.com/emsgrid/dispatchd/core/model"
	"github.com/emsgrid/dispatchd/internal/eventbus"
)

// Manager drives one dispatch request through the pipeline: route, assign,
// then record the outcome. Outcome, metrics and event publication are
// fire-and-forget: none of them can fail or delay the decision already
// computed.
type Manager struct {
	router  *Router
	engine  *RuleEngine
	learned *LearnedClient
	metrics metrics.Sink
	bus     eventbus.EventBus
	log     logger.Logger
	now     func() time.Time
}

// NewManager wires the pipeline. Router, engine and learned client are
// mandatory; metrics and bus may be nil.
func NewManager(router *Router, engine *RuleEngine, learned *LearnedClient, sink metrics.Sink, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if router == nil || engine == nil || learned == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Manager{
		router:  router,
		engine:  engine,
		learned: learned,
		metrics: sink,
		bus:     bus,
		log:     log,
		now:     time.Now,
	}, nil
}

// Handle routes and decides one request. The returned error carries the
// specific assignment error kind on terminal failure.
func (m *Manager) Handle(ctx context.Context, req model.DispatchRequest) (model.AssignmentDecision, error) {
	start := m.now()
	if m.bus != nil {
		m.bus.Publish(events.RequestEvent{Request: req})
	}

	strategy := m.router.Decide(req.ID)
	m.log.Debugw("strategy routed", map[string]any{
		"dispatch_id": req.ID,
		"strategy":    string(strategy),
		"policy":      string(m.router.Policy()),
	})

	var (
		dec model.AssignmentDecision
		err error
	)
	switch strategy {
	case model.StrategyLearned:
		dec, err = m.learned.Assign(ctx, req)
	default:
		dec, err = m.engine.Assign(ctx, req)
	}

	elapsed := m.now().Sub(start)
	m.record(ctx, req, strategy, dec, err, elapsed)
	if err != nil {
		return model.AssignmentDecision{}, err
	}
	return dec, nil
}

// record persists the outcome and emits metrics and events. Failures here
// are logged, never propagated.
func (m *Manager) record(ctx context.Context, req model.DispatchRequest, routed model.Strategy, dec model.AssignmentDecision, decErr error, elapsed time.Duration) {
	var det, lrn *model.AssignmentDecision
	if decErr == nil {
		d := dec
		if dec.Strategy == model.StrategyLearned {
			lrn = &d
		} else {
			det = &d
		}
	}
	m.router.RecordOutcome(ctx, req.ID, routed, det, lrn, decErr)

	ev := metrics.AssignmentEvent{
		DispatchID: req.ID,
		Strategy:   routed,
		Severity:   req.Severity,
		Duration:   elapsed,
		Time:       m.now(),
	}
	if decErr != nil {
		ev.Failed = true
		ev.ErrorKind = string(KindOf(decErr))
	} else {
		ev.VehicleID = dec.VehicleID
		ev.Fallback = dec.Fallback
		ev.DistanceKm = dec.DistanceKm
		ev.Confidence = dec.Confidence
	}
	if err := m.metrics.RecordAssignment(ev); err != nil {
		m.log.Errorf("metrics error for dispatch %s: %v", req.ID, err)
	}

	if m.bus == nil {
		return
	}
	if decErr != nil {
		m.bus.Publish(events.FailureEvent{DispatchID: req.ID, Kind: string(KindOf(decErr)), Err: decErr})
		return
	}
	if dec.Fallback {
		m.bus.Publish(events.FallbackEvent{DispatchID: req.ID, Reason: "prediction unavailable"})
	}
	m.bus.Publish(events.DecisionEvent{Decision: dec, Duration: elapsed})
}
