package config

import (
	"fmt"
	"time"

	"github.com/tavi-ops/dispatchd/core/conversation"
	"github.com/tavi-ops/dispatchd/core/model"
)

// ConversationConfig bounds automated negotiation per channel.
type ConversationConfig struct {
	// TurnCaps maps channel names to the maximum number of automated
	// replies. Unknown channels are rejected by Validate.
	TurnCaps map[string]int `json:"turn_caps"`
}

// SetDefaults applies the default per-channel budgets.
func (c *ConversationConfig) SetDefaults() {
	if len(c.TurnCaps) == 0 {
		c.TurnCaps = map[string]int{"sms": 2, "email": 3, "voice": 1}
	}
}

// Validate checks channel names and cap values.
func (c ConversationConfig) Validate() error {
	for name, n := range c.TurnCaps {
		if _, ok := model.ParseChannel(name); !ok {
			return fmt.Errorf("unknown channel %q in turn_caps", name)
		}
		if n < 0 {
			return fmt.Errorf("negative turn cap for %q", name)
		}
	}
	return nil
}

// Caps converts the section into the conversation package's representation.
func (c ConversationConfig) Caps() conversation.TurnCaps {
	caps := conversation.TurnCaps{}
	for name, n := range c.TurnCaps {
		ch, _ := model.ParseChannel(name)
		caps[ch] = n
	}
	return caps
}

// AutomationConfig tunes the dispatch pipeline.
type AutomationConfig struct {
	// MaxConfirmAttempts optionally bounds how many ranked vendors are
	// tried. Zero tries every ranked candidate.
	MaxConfirmAttempts   int `json:"max_confirm_attempts"`
	ConfirmPacingSeconds int `json:"confirm_pacing_seconds"`
}

// SetDefaults applies sane defaults.
func (c *AutomationConfig) SetDefaults() {
	if c.ConfirmPacingSeconds <= 0 {
		c.ConfirmPacingSeconds = 2
	}
}

// Validate checks bounds.
func (c AutomationConfig) Validate() error {
	if c.MaxConfirmAttempts < 0 || c.MaxConfirmAttempts > 10 {
		return fmt.Errorf("max_confirm_attempts %d is out of range", c.MaxConfirmAttempts)
	}
	return nil
}

// Pacing returns the confirmation pacing as a duration.
func (c AutomationConfig) Pacing() time.Duration {
	return time.Duration(c.ConfirmPacingSeconds) * time.Second
}

// SimulationConfig controls the simulated vendor replies and approvals used
// when no live integrations are configured.
type SimulationConfig struct {
	// Seed makes simulated replies and approval draws reproducible.
	Seed int64 `json:"seed"`
	// Responses enables simulated vendor replies.
	Responses bool `json:"responses"`
}

// SetDefaults enables simulation with a fixed seed.
func (c *SimulationConfig) SetDefaults() {
	if c.Seed == 0 {
		c.Seed = 1
	}
}
