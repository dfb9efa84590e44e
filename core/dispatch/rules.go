package dispatch

import "github.com/emsgrid/dispatchd/core/model"

// crewRule prescribes the crew composition for one severity level.
type crewRule struct {
	MinCrew     int
	Tiers       []model.CrewTier
	Nurse       bool
	Specialist  bool
	Description string
}

// crewRules indexes the composition table by severity. Higher values demand
// larger and more senior crews; unknown severities fall back to level 3.
var crewRules = map[int]crewRule{
	5: {
		MinCrew:     3,
		Tiers:       []model.CrewTier{model.TierSenior, model.TierSenior, model.TierJunior},
		Nurse:       true,
		Specialist:  true,
		Description: "critical case - 3 crew + nurse + specialist",
	},
	4: {
		MinCrew:     2,
		Tiers:       []model.CrewTier{model.TierSenior, model.TierJunior},
		Nurse:       true,
		Description: "high severity - 2 crew + nurse",
	},
	3: {
		MinCrew:     2,
		Tiers:       []model.CrewTier{model.TierJunior, model.TierJunior},
		Description: "medium severity - 2 crew",
	},
	2: {
		MinCrew:     1,
		Tiers:       []model.CrewTier{model.TierJunior},
		Description: "low-medium severity - 1 crew",
	},
	1: {
		MinCrew:     1,
		Tiers:       []model.CrewTier{model.TierJunior},
		Description: "low severity - 1 crew",
	},
}

// ruleForSeverity returns the crew rule for the severity, defaulting to the
// medium rule when the level is out of range.
func ruleForSeverity(severity int) crewRule {
	if r, ok := crewRules[severity]; ok {
		return r
	}
	return crewRules[3]
}

// DistanceConfidence bands the vehicle-selection confidence by distance.
// The breakpoints are fixed, not a continuous function.
func DistanceConfidence(km float64) float64 {
	switch {
	case km <= 2:
		return 0.95
	case km <= 5:
		return 0.85
	case km <= 10:
		return 0.70
	default:
		return 0.50
	}
}
