package geo

import (
	"math"
	"sort"

	"github.com/emsgrid/dispatchd/core/model"
)

// Weights controls the relative importance of each scoring criterion.
// Callers are expected to keep the weights summing to 1.0; anything else is
// clamped by renormalising before use.
type Weights struct {
	Distance     float64 `json:"distance"`
	Availability float64 `json:"availability"`
	TypeMatch    float64 `json:"type_match"`
	History      float64 `json:"history"`
}

// DefaultWeights mirrors the calibrated production weighting.
func DefaultWeights() Weights {
	return Weights{Distance: 0.40, Availability: 0.30, TypeMatch: 0.20, History: 0.10}
}

// normalized returns the weights scaled so they sum to 1.0. Weights that sum
// to zero or contain non-finite values fall back to the defaults.
func (w Weights) normalized() Weights {
	sum := w.Distance + w.Availability + w.TypeMatch + w.History
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return DefaultWeights()
	}
	return Weights{
		Distance:     w.Distance / sum,
		Availability: w.Availability / sum,
		TypeMatch:    w.TypeMatch / sum,
		History:      w.History / sum,
	}
}

// Params bounds the normalisation of the scoring criteria.
type Params struct {
	// MaxRadiusKm caps the distance normalisation: a candidate this far
	// away scores zero on the distance criterion.
	MaxRadiusKm float64 `json:"max_radius_km"`
	// PartialTypeCredit is the type-match score for a non-exact match.
	PartialTypeCredit float64 `json:"partial_type_credit"`
	// MaxAvgResponseMin caps the responsiveness normalisation.
	MaxAvgResponseMin float64 `json:"max_avg_response_min"`
	// CriticalBoost multiplies the combined score for severity 1.
	CriticalBoost float64 `json:"critical_boost"`
	// RoutinePenalty multiplies the combined score for severity 5.
	RoutinePenalty float64 `json:"routine_penalty"`
	// AvgSpeedKmh is used to estimate the arrival time.
	AvgSpeedKmh float64 `json:"avg_speed_kmh"`
}

// SetDefaults applies the production defaults to unset fields.
func (p *Params) SetDefaults() {
	if p.MaxRadiusKm <= 0 {
		p.MaxRadiusKm = 30
	}
	if p.PartialTypeCredit <= 0 {
		p.PartialTypeCredit = 0.7
	}
	if p.MaxAvgResponseMin <= 0 {
		p.MaxAvgResponseMin = 30
	}
	if p.CriticalBoost <= 0 {
		p.CriticalBoost = 1.2
	}
	if p.RoutinePenalty <= 0 {
		p.RoutinePenalty = 0.8
	}
	if p.AvgSpeedKmh <= 0 {
		p.AvgSpeedKmh = 40
	}
}

// ScoreBreakdown carries a candidate's sub-scores and weighted total.
type ScoreBreakdown struct {
	VehicleID         string  `json:"vehicle_id"`
	DistanceKm        float64 `json:"distance_km"`
	DistanceScore     float64 `json:"distance_score"`
	AvailabilityScore float64 `json:"availability_score"`
	TypeMatchScore    float64 `json:"type_match_score"`
	HistoryScore      float64 `json:"history_score"`
	Total             float64 `json:"total"`
	EstimatedArrival  int     `json:"estimated_arrival_min"`
}

// Score rates one candidate against the incident location. Severity 1
// boosts the combined score and severity 5 dampens it; all other severities
// leave it unchanged.
func Score(v model.Vehicle, target model.Location, severity int, requiredType model.VehicleType, w Weights, p Params) ScoreBreakdown {
	p.SetDefaults()
	w = w.normalized()

	distanceKm := Distance(target.Latitude, target.Longitude, v.Latitude, v.Longitude)
	distanceScore := 0.0
	if !math.IsInf(distanceKm, 1) {
		distanceScore = math.Max(0, 1-distanceKm/p.MaxRadiusKm)
	}

	availabilityScore := 0.0
	if v.Available() {
		availabilityScore = 1.0
	}

	typeMatchScore := p.PartialTypeCredit
	if requiredType == "" || v.Type == requiredType {
		typeMatchScore = 1.0
	}

	historyScore := math.Max(0, 1-v.AvgResponseMin/p.MaxAvgResponseMin)

	total := distanceScore*w.Distance +
		availabilityScore*w.Availability +
		typeMatchScore*w.TypeMatch +
		historyScore*w.History

	switch severity {
	case 1:
		total *= p.CriticalBoost
	case 5:
		total *= p.RoutinePenalty
	}

	eta := 0
	if !math.IsInf(distanceKm, 1) {
		eta = int(distanceKm / p.AvgSpeedKmh * 60)
	}

	return ScoreBreakdown{
		VehicleID:         v.ID,
		DistanceKm:        distanceKm,
		DistanceScore:     distanceScore,
		AvailabilityScore: availabilityScore,
		TypeMatchScore:    typeMatchScore,
		HistoryScore:      historyScore,
		Total:             total,
		EstimatedArrival:  eta,
	}
}

// Rank scores every candidate and returns them best-first. Ties on the total
// break by vehicle id ascending so rankings are reproducible.
func Rank(vehicles []model.Vehicle, target model.Location, severity int, requiredType model.VehicleType, w Weights, p Params) []ScoreBreakdown {
	ranked := make([]ScoreBreakdown, 0, len(vehicles))
	for _, v := range vehicles {
		ranked = append(ranked, Score(v, target, severity, requiredType, w, p))
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].VehicleID < ranked[j].VehicleID
	})
	return ranked
}

// Confidence derives a [0,1] confidence from a best-first ranking. It
// reflects how separated the winner is from the runner-up, not the absolute
// quality of the winner.
func Confidence(ranked []ScoreBreakdown) float64 {
	if len(ranked) < 2 {
		return 0.95
	}
	return math.Min(1.0, 0.5+0.5*(ranked[0].Total-ranked[1].Total))
}
