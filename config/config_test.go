package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tavi-ops/dispatchd/core/model"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `ai:
  api_key: "sk-test"
  model: "gpt-4o-mini"
google_places:
  api_key: "gk"
yelp:
  api_key: "yk"
messaging:
  gateway_url: "https://gw.example.test"
  from_email: "dispatch@example.test"
discovery:
  radius_meters: 15000
  max_vendors: 10
conversation:
  turn_caps:
    sms: 2
    email: 3
    voice: 1
automation:
  max_confirm_attempts: 2
  confirm_pacing_seconds: 1
simulation:
  seed: 42
  responses: true
metrics:
  sinks:
    - type: "nop"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"ai.api_key", cfg.AI.APIKey, "sk-test"},
		{"ai.model", cfg.AI.Model, "gpt-4o-mini"},
		{"google.api_key", cfg.GooglePlaces.APIKey, "gk"},
		{"yelp.api_key", cfg.Yelp.APIKey, "yk"},
		{"messaging.gateway", cfg.Messaging.GatewayURL, "https://gw.example.test"},
		{"discovery.radius", cfg.Discovery.RadiusMeters, 15000},
		{"discovery.max_vendors", cfg.Discovery.MaxVendors, 10},
		{"conversation.sms", cfg.Conversation.TurnCaps["sms"], 2},
		{"automation.attempts", cfg.Automation.MaxConfirmAttempts, 2},
		{"simulation.seed", cfg.Simulation.Seed, int64(42)},
		{"simulation.responses", cfg.Simulation.Responses, true},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: got %v want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Discovery.RadiusMeters != 20000 {
		t.Errorf("default radius: got %d", cfg.Discovery.RadiusMeters)
	}
	if cfg.Conversation.TurnCaps["email"] != 3 {
		t.Errorf("default email cap: got %d", cfg.Conversation.TurnCaps["email"])
	}
	if cfg.Automation.MaxConfirmAttempts != 0 {
		t.Errorf("attempts should default to unbounded, got %d", cfg.Automation.MaxConfirmAttempts)
	}
	caps := cfg.Conversation.Caps()
	if caps[model.ChannelSMS] != 2 || caps[model.ChannelVoice] != 1 {
		t.Errorf("caps conversion wrong: %v", caps)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("ai:\n  model: \"gpt-4o-mini\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("K_AI__API_KEY", "sk-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.AI.APIKey != "sk-env" {
		t.Errorf("env override: got %q", cfg.AI.APIKey)
	}
}

func TestLoadRejectsUnknownChannel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "conversation:\n  turn_caps:\n    carrier_pigeon: 5\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	t.Setenv("K_AI__API_KEY", "sk-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Discovery.RadiusMeters != 20000 {
		t.Errorf("default radius: got %d", cfg.Discovery.RadiusMeters)
	}
	if cfg.AI.APIKey != "sk-env" {
		t.Errorf("env override without file: got %q", cfg.AI.APIKey)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
