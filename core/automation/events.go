// Package automation orchestrates the end-to-end dispatch pipeline for a work
// order: vendor discovery, quote solicitation, response collection, ranking
// and the confirmation handshake. Progress is streamed to the caller as
// events; at most one run per work order is in flight at any time.
package automation

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline step numbers as reported in progress events.
const (
	StepDiscovery    = 1
	StepSolicitation = 2
	StepCollection   = 3
	StepRanking      = 4
	StepConfirmation = 5

	// FatalStep marks an event that aborts the whole run.
	FatalStep = -1
)

// StepStatus is the state of one pipeline step.
type StepStatus int

const (
	StatusInProgress StepStatus = iota
	StatusCompleted
	StatusError
)

func (s StepStatus) String() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its wire string.
func (s StepStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// ProgressEvent is one update on a running pipeline. Step is FatalStep when
// the run aborts.
type ProgressEvent struct {
	WorkOrderID uuid.UUID      `json:"work_order_id"`
	Step        int            `json:"step"`
	Status      StepStatus     `json:"status"`
	Message     string         `json:"message"`
	Data        map[string]any `json:"data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
