// Package metrics defines the observability contracts for the dispatch
// pipeline. Sinks are instantiated from configuration through the factory
// registry; the infra/metrics package registers the built-in implementations.
package metrics

import (
	"time"

	"github.com/google/uuid"
)

// DispatchOutcome represents one confirmation attempt against one vendor.
type DispatchOutcome struct {
	WorkOrderID uuid.UUID
	VendorID    uuid.UUID
	Attempt     int
	// Stage names where the attempt ended: "dispatched", "facility_declined"
	// or "vendor_declined".
	Stage     string
	Accepted  bool
	Price     float64
	Composite float64
	Time      time.Time
}

// MetricsSink records dispatch outcomes for observability purposes.
type MetricsSink interface {
	RecordDispatchOutcome(outcomes []DispatchOutcome) error
}

// DiscoveryEvent captures data about a vendor discovery cycle.
type DiscoveryEvent struct {
	WorkOrderID uuid.UUID
	Trade       string
	Vendors     int
	FromLive    bool
	Time        time.Time
}

// DiscoveryRecorder records discovery cycles.
type DiscoveryRecorder interface {
	RecordDiscovery(ev DiscoveryEvent) error
}

// QuoteEvent is a snapshot of a quote when a vendor reply lands.
type QuoteEvent struct {
	WorkOrderID uuid.UUID
	VendorID    uuid.UUID
	Channel     string
	Price       float64
	Composite   float64
	Time        time.Time
}

// QuoteRecorder records received quotes.
type QuoteRecorder interface {
	RecordQuote(ev QuoteEvent) error
}

// EscalationEvent records a conversation handed to a human operator.
type EscalationEvent struct {
	WorkOrderID uuid.UUID
	VendorID    uuid.UUID
	Channel     string
	Reason      string
	Time        time.Time
}

// EscalationRecorder records operator escalations.
type EscalationRecorder interface {
	RecordEscalation(ev EscalationEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDispatchOutcome([]DispatchOutcome) error { return nil }
func (NopSink) RecordDiscovery(DiscoveryEvent) error          { return nil }
func (NopSink) RecordQuote(QuoteEvent) error                  { return nil }
func (NopSink) RecordEscalation(EscalationEvent) error        { return nil }
