package model

import (
	"time"

	"github.com/google/uuid"
)

// WorkOrderStatus tracks a work order through the dispatch lifecycle.
type WorkOrderStatus int

const (
	StatusSubmitted WorkOrderStatus = iota
	StatusDiscoveringVendors
	StatusAwaitingApproval
	StatusContactingVendors
	StatusEvaluatingQuotes
	StatusVendorSelected
	StatusAwaitingFacilityConfirmation
	StatusAwaitingVendorDispatch
	StatusDispatched
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

// String returns the wire representation of the status.
func (s WorkOrderStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusDiscoveringVendors:
		return "discovering_vendors"
	case StatusAwaitingApproval:
		return "awaiting_approval"
	case StatusContactingVendors:
		return "contacting_vendors"
	case StatusEvaluatingQuotes:
		return "evaluating_quotes"
	case StatusVendorSelected:
		return "vendor_selected"
	case StatusAwaitingFacilityConfirmation:
		return "awaiting_facility_confirmation"
	case StatusAwaitingVendorDispatch:
		return "awaiting_vendor_dispatch"
	case StatusDispatched:
		return "dispatched"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseWorkOrderStatus maps a wire string to its status. Unrecognized input
// maps to StatusSubmitted with ok=false so callers can tell parsing failed.
func ParseWorkOrderStatus(s string) (WorkOrderStatus, bool) {
	for st := StatusSubmitted; st <= StatusCancelled; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StatusSubmitted, false
}

// TerminalForAutomation reports whether the orchestrator refuses to run on a
// work order in this state.
func (s WorkOrderStatus) TerminalForAutomation() bool {
	switch s {
	case StatusDispatched, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Location identifies where the work is to be performed.
type Location struct {
	Address   string  `json:"address"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
	Zip       string  `json:"zip,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// WorkOrder is a single request for trade service at a location.
type WorkOrder struct {
	ID          uuid.UUID
	Title       string
	Description string
	Trade       TradeType
	Location    Location
	Urgency     string
	Status      WorkOrderStatus

	FacilityManagerName  string
	FacilityManagerEmail string

	// SelectedVendorID is non-nil only while a confirmation attempt for that
	// vendor is pending or has succeeded.
	SelectedVendorID          *uuid.UUID
	FacilityConfirmedAt       *time.Time
	VendorDispatchConfirmedAt *time.Time

	PreferredDate *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
