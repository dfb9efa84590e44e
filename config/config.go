// Package config loads the service configuration from a JSON or YAML file
// with optional environment overrides (K_SECTION__KEY form).
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/emsgrid/dispatchd/core/dispatch"
	"github.com/emsgrid/dispatchd/core/drift"
	"github.com/emsgrid/dispatchd/infra/mqtt"
	"github.com/emsgrid/dispatchd/infra/prediction"
)

type Config struct {
	MQTT       mqtt.Config            `json:"mqtt"`
	Engine     dispatch.EngineConfig  `json:"engine"`
	Router     dispatch.RouterConfig  `json:"router"`
	Learned    dispatch.LearnedConfig `json:"learned"`
	Prediction prediction.Config      `json:"prediction"`
	Drift      drift.Config           `json:"drift"`
	Metrics    MetricsConfig          `json:"metrics"`
	Outcomes   OutcomeLogConfig       `json:"outcomes"`
	History    HistoryConfig          `json:"history"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies every section's defaults.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Engine.SetDefaults()
	c.Router.SetDefaults()
	c.Learned.SetDefaults()
	c.Prediction.SetDefaults()
	c.Drift.SetDefaults()
	c.Outcomes.SetDefaults()
	c.History.SetDefaults()
}

// Validate checks the sections that carry mandatory fields.
func (c *Config) Validate() error {
	if err := c.Router.Validate(); err != nil {
		return err
	}
	if err := c.Outcomes.Validate(); err != nil {
		return err
	}
	return nil
}
