package model

import "time"

// Severity grades an incident from 1 to 5. The scale is used by two
// consumers with different conventions: the candidate scorer boosts
// severity 1 (critical call-out) and dampens severity 5 (routine
// transfer), while the crew rule table sizes the crew up as the value
// grows. See the crew rules in core/dispatch for the full table.
const (
	SeverityMin = 1
	SeverityMax = 5
)

// CrewTier classifies a crew member's qualification level.
type CrewTier string

const (
	TierSenior CrewTier = "senior"
	TierJunior CrewTier = "junior"
)

// VehicleType identifies the equipment class of a response vehicle.
type VehicleType string

const (
	VehicleBasic    VehicleType = "basic"
	VehicleAdvanced VehicleType = "advanced"
)

// StatusAvailable marks a vehicle or crew member as dispatchable.
const StatusAvailable = "available"

// Location is a WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Vehicle is a snapshot of a response vehicle at request time.
type Vehicle struct {
	ID             string      `json:"id"`
	Latitude       float64     `json:"latitude"`
	Longitude      float64     `json:"longitude"`
	Status         string      `json:"status"`
	CrewTier       CrewTier    `json:"crew_tier"`
	Type           VehicleType `json:"type"`
	AvgResponseMin float64     `json:"avg_response_min"` // historical average response time in minutes
}

// Available reports whether the vehicle can be dispatched.
func (v Vehicle) Available() bool { return v.Status == StatusAvailable }

// CrewMember is a snapshot of a dispatchable crew member.
type CrewMember struct {
	ID     string   `json:"id"`
	Tier   CrewTier `json:"tier"`
	Status string   `json:"status"`
}

// Available reports whether the crew member can be assigned.
func (c CrewMember) Available() bool { return c.Status == StatusAvailable }

// SupportStaff is a nurse or specialist available for assignment.
type SupportStaff struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// VitalSigns carries optional patient vitals reported by the caller.
type VitalSigns struct {
	HeartRate    int     `json:"heart_rate"`
	SystolicBP   int     `json:"systolic_bp"`
	OxygenSatPct float64 `json:"oxygen_sat_pct"`
}

// DispatchRequest describes one incoming emergency requiring a vehicle and
// crew assignment. Instances are treated as immutable snapshots: the
// available-resource lists reflect the fleet at the moment the request was
// accepted and are never updated afterwards.
type DispatchRequest struct {
	ID           string         `json:"id"`
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
	Severity     int            `json:"severity"` // 1-5
	Symptoms     string         `json:"symptoms,omitempty"`
	Vitals       *VitalSigns    `json:"vitals,omitempty"`
	Vehicles     []Vehicle      `json:"vehicles"`
	Crew         []CrewMember   `json:"crew"`
	Nurses       []SupportStaff `json:"nurses,omitempty"`
	Specialists  []SupportStaff `json:"specialists,omitempty"`
	Destination  *Location      `json:"destination,omitempty"`
	RequiredType VehicleType    `json:"required_type,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Incident returns the incident coordinates as a Location.
func (r DispatchRequest) Incident() Location {
	return Location{Latitude: r.Latitude, Longitude: r.Longitude}
}
