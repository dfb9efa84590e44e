package config

import "fmt"

// OutcomeLogConfig selects the backing store for the strategy outcome log.
type OutcomeLogConfig struct {
	// Backend selects the store type: "jsonl" or "memory".
	Backend string `json:"backend"`
	// Path is the outcome file location (jsonl backend).
	Path string `json:"path"`
	// ValidationPath is the validation record file location (jsonl backend).
	ValidationPath string `json:"validation_path"`
}

// SetDefaults applies sane defaults.
func (c *OutcomeLogConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "outcomes.log"
	}
	if c.ValidationPath == "" {
		c.ValidationPath = "validations.log"
	}
}

// Validate checks mandatory fields.
func (c OutcomeLogConfig) Validate() error {
	if c.Backend != "jsonl" && c.Backend != "memory" {
		return fmt.Errorf("unknown outcome backend %s", c.Backend)
	}
	if c.Backend == "jsonl" && (c.Path == "" || c.ValidationPath == "") {
		return fmt.Errorf("jsonl backend requires path and validation_path")
	}
	return nil
}

// HistoryConfig controls the training-snapshot recorder.
type HistoryConfig struct {
	// Enabled toggles recording entirely.
	Enabled bool `json:"enabled"`
	// Path is the JSONL file assignments are appended to.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *HistoryConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "assignments.log"
	}
}

// MetricsConfig configures the observability sinks.
type MetricsConfig struct {
	// PrometheusAddr is the listen address of the /metrics endpoint; empty
	// disables the server.
	PrometheusAddr string       `json:"prometheus_addr"`
	Influx         InfluxConfig `json:"influx"`
}

// InfluxConfig points at an InfluxDB instance. An unreachable instance
// degrades to a no-op sink at startup.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// Enabled reports whether an endpoint is configured.
func (c InfluxConfig) Enabled() bool { return c.URL != "" }
