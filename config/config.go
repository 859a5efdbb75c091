package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tavi-ops/dispatchd/core/discovery"
	"github.com/tavi-ops/dispatchd/core/metrics"
	"github.com/tavi-ops/dispatchd/infra/ai"
	"github.com/tavi-ops/dispatchd/infra/messaging"
	"github.com/tavi-ops/dispatchd/infra/places"
)

type Config struct {
	AI           ai.Config           `json:"ai"`
	GooglePlaces places.GoogleConfig `json:"google_places"`
	Yelp         places.YelpConfig   `json:"yelp"`
	Messaging    messaging.Config    `json:"messaging"`
	Discovery    discovery.Config    `json:"discovery"`
	Conversation ConversationConfig  `json:"conversation"`
	Automation   AutomationConfig    `json:"automation"`
	Simulation   SimulationConfig    `json:"simulation"`
	Metrics      metrics.Config      `json:"metrics"`
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
	// A missing file is fine: defaults plus env overrides give a working
	// simulation-mode setup out of the box.
	if _, serr := os.Stat(path); serr == nil {
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(serr) {
		return nil, serr
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.AI.SetDefaults()
	cfg.Discovery.SetDefaults()
	cfg.Conversation.SetDefaults()
	cfg.Automation.SetDefaults()
	cfg.Simulation.SetDefaults()
	if err := cfg.Conversation.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Automation.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
