package dispatch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/emsgrid/dispatchd/core/geo"
	"github.com/emsgrid/dispatchd/core/history"
	"github.com/emsgrid/dispatchd/core/logger"
	"github.com/emsgrid/dispatchd/core/model"
)

// RuleEngine implements the deterministic assignment strategy: nearest
// available vehicle inside the service radius, then severity-indexed crew
// composition. All failures are terminal for the request; there is no retry.
type RuleEngine struct {
	cfg     EngineConfig
	history history.Recorder
	log     logger.Logger
	now     func() time.Time
}

// NewRuleEngine creates an engine. A nil recorder disables history capture.
func NewRuleEngine(cfg EngineConfig, rec history.Recorder, log logger.Logger) *RuleEngine {
	cfg.SetDefaults()
	if rec == nil {
		rec = history.NopRecorder{}
	}
	return &RuleEngine{cfg: cfg, history: rec, log: log, now: time.Now}
}

// Assign selects a vehicle and crew for the request. The returned decision
// references only resources present and available in the request snapshot.
func (e *RuleEngine) Assign(ctx context.Context, req model.DispatchRequest) (model.AssignmentDecision, error) {
	if !geo.ValidCoordinates(req.Latitude, req.Longitude) {
		return model.AssignmentDecision{}, newError(KindInvalidLocation,
			"incident coordinates (%v, %v) are out of range", req.Latitude, req.Longitude)
	}

	vehicle, distanceKm, vehicleConf, err := e.selectVehicle(req)
	if err != nil {
		return model.AssignmentDecision{}, err
	}

	crew, err := e.assignCrew(req)
	if err != nil {
		return model.AssignmentDecision{}, err
	}

	decision := model.AssignmentDecision{
		DispatchID:   req.ID,
		VehicleID:    vehicle.ID,
		CrewIDs:      crew.ids,
		NurseID:      crew.nurseID,
		SpecialistID: crew.specialistID,
		DistanceKm:   distanceKm,
		Confidence:   (vehicleConf + crew.confidence) / 2,
		Strategy:     model.StrategyDeterministic,
		Reasoning: fmt.Sprintf("nearest vehicle %s at %.2fkm (crew tier %s); %s",
			vehicle.ID, distanceKm, vehicle.CrewTier, crew.reasoning),
		Timestamp: e.now(),
	}

	// Best effort: a failed history write must never fail the assignment.
	if err := e.history.RecordAssignment(ctx, history.Record{
		Request:    req,
		Decision:   decision,
		RecordedAt: e.now(),
	}); err != nil {
		e.log.Warnf("history record failed for dispatch %s: %v", req.ID, err)
	}

	return decision, nil
}

// selectVehicle picks the nearest available vehicle within the service
// radius. Equidistant candidates break by id ascending.
func (e *RuleEngine) selectVehicle(req model.DispatchRequest) (model.Vehicle, float64, float64, error) {
	type scored struct {
		v  model.Vehicle
		km float64
	}
	var candidates []scored
	for _, v := range req.Vehicles {
		if !v.Available() {
			continue
		}
		km := geo.Distance(req.Latitude, req.Longitude, v.Latitude, v.Longitude)
		if km > e.cfg.MaxServiceRadiusKm {
			continue
		}
		candidates = append(candidates, scored{v: v, km: km})
	}
	if len(candidates) == 0 {
		return model.Vehicle{}, 0, 0, newError(KindNoVehicle,
			"no available vehicle within %.0fkm of dispatch %s", e.cfg.MaxServiceRadiusKm, req.ID)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].km != candidates[j].km {
			return candidates[i].km < candidates[j].km
		}
		return candidates[i].v.ID < candidates[j].v.ID
	})

	best := candidates[0]
	e.log.Debugw("vehicle selected", map[string]any{
		"dispatch_id": req.ID,
		"vehicle_id":  best.v.ID,
		"distance_km": best.km,
	})
	return best.v, best.km, DistanceConfidence(best.km), nil
}

type crewAssignment struct {
	ids          []string
	nurseID      string
	specialistID string
	confidence   float64
	reasoning    string
}

// assignCrew fills the severity rule's tier slots. A slot prefers its exact
// tier and substitutes the other tier before failing; substitution lowers
// the crew confidence to 0.6.
func (e *RuleEngine) assignCrew(req model.DispatchRequest) (crewAssignment, error) {
	rule := ruleForSeverity(req.Severity)

	var seniors, juniors []model.CrewMember
	for _, c := range req.Crew {
		if !c.Available() {
			continue
		}
		if c.Tier == model.TierSenior {
			seniors = append(seniors, c)
		} else {
			juniors = append(juniors, c)
		}
	}

	var out crewAssignment
	substituted := false
	take := func(pool *[]model.CrewMember) string {
		m := (*pool)[0]
		*pool = (*pool)[1:]
		return m.ID
	}

	for _, tier := range rule.Tiers {
		preferred, other := &seniors, &juniors
		if tier == model.TierJunior {
			preferred, other = &juniors, &seniors
		}
		switch {
		case len(*preferred) > 0:
			out.ids = append(out.ids, take(preferred))
		case len(*other) > 0:
			out.ids = append(out.ids, take(other))
			substituted = true
		default:
			return crewAssignment{}, newError(KindNoCrew,
				"no crew member of any tier remains for a %s slot on dispatch %s", tier, req.ID)
		}
	}

	if rule.Nurse {
		for _, n := range req.Nurses {
			if n.Status == model.StatusAvailable {
				out.nurseID = n.ID
				break
			}
		}
	}
	if rule.Specialist {
		for _, s := range req.Specialists {
			if s.Status == model.StatusAvailable {
				out.specialistID = s.ID
				break
			}
		}
	}

	out.confidence = 0.9
	if len(out.ids) < rule.MinCrew || substituted {
		out.confidence = 0.6
	}

	out.reasoning = fmt.Sprintf("severity %d: %d crew", req.Severity, len(out.ids))
	if out.nurseID != "" {
		out.reasoning += " + nurse " + out.nurseID
	}
	if out.specialistID != "" {
		out.reasoning += " + specialist " + out.specialistID
	}
	return out, nil
}
