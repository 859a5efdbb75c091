package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/tavi-ops/dispatchd/core/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// WorkOrderStore persists work orders. Every mutation is an independent,
// immediately committed unit; callers re-fetch rather than cache state that a
// prior step may have mutated.
type WorkOrderStore interface {
	GetWorkOrder(ctx context.Context, id uuid.UUID) (model.WorkOrder, error)
	PutWorkOrder(ctx context.Context, wo model.WorkOrder) error
}

// VendorStore persists vendors. Upserts are keyed by phone number when
// present, falling back to the place-search provider identifier.
type VendorStore interface {
	GetVendor(ctx context.Context, id uuid.UUID) (model.Vendor, error)
	FindVendorByPhone(ctx context.Context, phone string) (model.Vendor, error)
	FindVendorByPlaceID(ctx context.Context, placeID string) (model.Vendor, error)
	PutVendor(ctx context.Context, v model.Vendor) error
}

// QuoteStore persists quotes. QuotesForWorkOrder returns quotes in insertion
// order, which the ranking step relies on for stable tie-breaking.
type QuoteStore interface {
	GetQuote(ctx context.Context, id uuid.UUID) (model.Quote, error)
	QuotesForWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]model.Quote, error)
	QuoteForPair(ctx context.Context, workOrderID, vendorID uuid.UUID) (model.Quote, error)
	PutQuote(ctx context.Context, q model.Quote) error
}

// CommunicationStore is the append-only log of all messages exchanged.
type CommunicationStore interface {
	AppendCommunication(ctx context.Context, entry model.CommunicationLog) error
	// ChannelHistory returns the conversation with one vendor on one channel
	// for one work order, oldest first.
	ChannelHistory(ctx context.Context, workOrderID, vendorID uuid.UUID, ch model.Channel) ([]model.CommunicationLog, error)
	CommunicationsForWorkOrder(ctx context.Context, workOrderID uuid.UUID) ([]model.CommunicationLog, error)
}

// Store aggregates all persistence concerns of the dispatch pipeline.
type Store interface {
	WorkOrderStore
	VendorStore
	QuoteStore
	CommunicationStore
}
