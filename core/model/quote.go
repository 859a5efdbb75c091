package model

import (
	"time"

	"github.com/google/uuid"
)

// QuoteStatus tracks a quote from creation to acceptance or rejection.
type QuoteStatus int

const (
	QuotePending QuoteStatus = iota
	QuoteRequested
	QuoteReceived
	QuoteAccepted
	QuoteRejected
	QuoteExpired
)

func (s QuoteStatus) String() string {
	switch s {
	case QuotePending:
		return "pending"
	case QuoteRequested:
		return "requested"
	case QuoteReceived:
		return "received"
	case QuoteAccepted:
		return "accepted"
	case QuoteRejected:
		return "rejected"
	case QuoteExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ParseQuoteStatus maps a wire string to its status. Unrecognized input maps
// to QuotePending with ok=false.
func ParseQuoteStatus(s string) (QuoteStatus, bool) {
	for st := QuotePending; st <= QuoteExpired; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return QuotePending, false
}

// Quote is one vendor's offer against one work order. Quotes are never hard
// deleted; a rejected or expired quote remains for audit.
type Quote struct {
	ID          uuid.UUID
	WorkOrderID uuid.UUID
	VendorID    uuid.UUID

	Status   QuoteStatus
	Price    *float64
	Currency string

	AvailabilityDate       *time.Time
	EstimatedDurationHours *float64
	QuoteText              string

	PriceScore        *float64
	QualityScore      *float64
	AvailabilityScore *float64
	CompositeScore    *float64

	RequestedAt *time.Time
	ReceivedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
