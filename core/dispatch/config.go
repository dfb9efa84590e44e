package dispatch

import (
	"fmt"

	"github.com/emsgrid/dispatchd/core/geo"
)

// EngineConfig holds the deterministic engine settings.
type EngineConfig struct {
	// MaxServiceRadiusKm excludes vehicles farther than this from selection.
	MaxServiceRadiusKm float64 `json:"max_service_radius_km"`
	// Weights and Params tune the shared candidate scorer.
	Weights geo.Weights `json:"weights"`
	Params  geo.Params  `json:"params"`
}

// SetDefaults applies sane defaults.
func (c *EngineConfig) SetDefaults() {
	if c.MaxServiceRadiusKm <= 0 {
		c.MaxServiceRadiusKm = 15
	}
	zero := geo.Weights{}
	if c.Weights == zero {
		c.Weights = geo.DefaultWeights()
	}
	c.Params.SetDefaults()
}

// RouterConfig selects and tunes the traffic splitting policy.
type RouterConfig struct {
	// Policy is one of random_weighted, round_robin, time_of_day,
	// weight_based.
	Policy string `json:"policy"`
	// LearnedWeight is the learned strategy's traffic share in (0,1].
	LearnedWeight float64 `json:"learned_weight"`
	// PeakStartHour and PeakEndHour bound the time_of_day peak window.
	PeakStartHour int `json:"peak_start_hour"`
	PeakEndHour   int `json:"peak_end_hour"`
}

// SetDefaults applies sane defaults.
func (c *RouterConfig) SetDefaults() {
	if c.Policy == "" {
		c.Policy = string(PolicyRandomWeighted)
	}
	if c.LearnedWeight <= 0 || c.LearnedWeight > 1 {
		c.LearnedWeight = 0.5
	}
	if c.PeakStartHour == 0 && c.PeakEndHour == 0 {
		c.PeakStartHour, c.PeakEndHour = 9, 17
	}
}

// Validate checks the policy name and the peak window.
func (c RouterConfig) Validate() error {
	if _, err := ParsePolicy(c.Policy); err != nil {
		return err
	}
	if c.PeakStartHour < 0 || c.PeakStartHour > 23 || c.PeakEndHour < 0 || c.PeakEndHour > 24 {
		return fmt.Errorf("peak window %d-%d out of range", c.PeakStartHour, c.PeakEndHour)
	}
	if c.PeakEndHour <= c.PeakStartHour {
		return fmt.Errorf("peak window %d-%d is empty", c.PeakStartHour, c.PeakEndHour)
	}
	return nil
}

// LearnedConfig bounds the learned strategy client.
type LearnedConfig struct {
	// TimeoutSeconds caps each prediction call. The client never blocks
	// longer than this before switching to the fallback path.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *LearnedConfig) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 5
	}
}
