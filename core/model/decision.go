package model

import "time"

// Strategy identifies which assignment algorithm produced a decision.
type Strategy string

const (
	StrategyDeterministic Strategy = "deterministic"
	StrategyLearned       Strategy = "learned"
)

// AssignmentDecision is the outcome of one dispatch request. A decision is
// produced exactly once per request and never mutated; post-hoc outcome data
// (actual response time, correctness) is recorded separately as a
// ValidationRecord linked by dispatch id.
type AssignmentDecision struct {
	DispatchID   string    `json:"dispatch_id"`
	VehicleID    string    `json:"vehicle_id,omitempty"`
	CrewIDs      []string  `json:"crew_ids"`
	NurseID      string    `json:"nurse_id,omitempty"`
	SpecialistID string    `json:"specialist_id,omitempty"`
	DistanceKm   float64   `json:"distance_km"`
	Confidence   float64   `json:"confidence"` // [0,1]
	Strategy     Strategy  `json:"strategy"`
	Fallback     bool      `json:"fallback"`
	Reasoning    string    `json:"reasoning"`
	Timestamp    time.Time `json:"timestamp"`
}

// StrategyOutcome is one experiment log entry recorded at decision time.
// When both strategies were evaluated for comparison the payload of each is
// attached; otherwise only the one actually used is set. Records are
// append-only and read-only after creation.
type StrategyOutcome struct {
	ID            string              `json:"id"`
	DispatchID    string              `json:"dispatch_id"`
	Strategy      Strategy            `json:"strategy"`
	Policy        string              `json:"policy"`
	Deterministic *AssignmentDecision `json:"deterministic,omitempty"`
	Learned       *AssignmentDecision `json:"learned,omitempty"`
	Error         string              `json:"error,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

// Result returns the decision payload that was produced, or nil when the
// request failed before producing one. The payload is keyed by the engine
// that actually decided, not the routed strategy: a learned request that fell
// back carries its decision under Deterministic while Strategy stays learned.
func (o StrategyOutcome) Result() *AssignmentDecision {
	if o.Learned != nil {
		return o.Learned
	}
	return o.Deterministic
}

// ValidationRecord links post-hoc ground truth to a decision.
type ValidationRecord struct {
	DispatchID        string    `json:"dispatch_id"`
	ActualResponseMin float64   `json:"actual_response_min"`
	Satisfaction      int       `json:"satisfaction"` // 1-5
	Correct           bool      `json:"correct"`
	Timestamp         time.Time `json:"timestamp"`
}
