package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tavi-ops/dispatchd/core/model"
	corestore "github.com/tavi-ops/dispatchd/core/store"
)

// MemoryStore implements core/store.Store with in-process maps. Each method is
// one atomic, immediately committed unit, matching the commit-per-operation
// contract concurrent pipeline tasks rely on. Values are copied on the way in
// and out so callers never share mutable state with the store.
type MemoryStore struct {
	mu sync.RWMutex

	workOrders map[uuid.UUID]model.WorkOrder
	vendors    map[uuid.UUID]model.Vendor

	quotes     map[uuid.UUID]model.Quote
	quoteOrder map[uuid.UUID][]uuid.UUID // work order -> quote ids, insertion order

	comms map[uuid.UUID][]model.CommunicationLog // work order -> entries, append order
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workOrders: make(map[uuid.UUID]model.WorkOrder),
		vendors:    make(map[uuid.UUID]model.Vendor),
		quotes:     make(map[uuid.UUID]model.Quote),
		quoteOrder: make(map[uuid.UUID][]uuid.UUID),
		comms:      make(map[uuid.UUID][]model.CommunicationLog),
	}
}

func (s *MemoryStore) GetWorkOrder(_ context.Context, id uuid.UUID) (model.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wo, ok := s.workOrders[id]
	if !ok {
		return model.WorkOrder{}, corestore.ErrNotFound
	}
	return wo, nil
}

func (s *MemoryStore) PutWorkOrder(_ context.Context, wo model.WorkOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wo.UpdatedAt = time.Now().UTC()
	s.workOrders[wo.ID] = wo
	return nil
}

func (s *MemoryStore) GetVendor(_ context.Context, id uuid.UUID) (model.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vendors[id]
	if !ok {
		return model.Vendor{}, corestore.ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) FindVendorByPhone(_ context.Context, phone string) (model.Vendor, error) {
	if phone == "" {
		return model.Vendor{}, corestore.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.vendors {
		if v.Phone == phone {
			return v, nil
		}
	}
	return model.Vendor{}, corestore.ErrNotFound
}

func (s *MemoryStore) FindVendorByPlaceID(_ context.Context, placeID string) (model.Vendor, error) {
	if placeID == "" {
		return model.Vendor{}, corestore.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.vendors {
		if v.GooglePlaceID == placeID {
			return v, nil
		}
	}
	return model.Vendor{}, corestore.ErrNotFound
}

func (s *MemoryStore) PutVendor(_ context.Context, v model.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.UpdatedAt = time.Now().UTC()
	s.vendors[v.ID] = v
	return nil
}

func (s *MemoryStore) GetQuote(_ context.Context, id uuid.UUID) (model.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[id]
	if !ok {
		return model.Quote{}, corestore.ErrNotFound
	}
	return q, nil
}

func (s *MemoryStore) QuotesForWorkOrder(_ context.Context, workOrderID uuid.UUID) ([]model.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.quoteOrder[workOrderID]
	out := make([]model.Quote, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.quotes[id])
	}
	return out, nil
}

func (s *MemoryStore) QuoteForPair(_ context.Context, workOrderID, vendorID uuid.UUID) (model.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.quoteOrder[workOrderID] {
		if q := s.quotes[id]; q.VendorID == vendorID {
			return q, nil
		}
	}
	return model.Quote{}, corestore.ErrNotFound
}

func (s *MemoryStore) PutQuote(_ context.Context, q model.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.UpdatedAt = time.Now().UTC()
	if _, exists := s.quotes[q.ID]; !exists {
		s.quoteOrder[q.WorkOrderID] = append(s.quoteOrder[q.WorkOrderID], q.ID)
	}
	s.quotes[q.ID] = q
	return nil
}

func (s *MemoryStore) AppendCommunication(_ context.Context, entry model.CommunicationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.comms[entry.WorkOrderID] = append(s.comms[entry.WorkOrderID], entry)
	return nil
}

func (s *MemoryStore) ChannelHistory(_ context.Context, workOrderID, vendorID uuid.UUID, ch model.Channel) ([]model.CommunicationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CommunicationLog
	for _, e := range s.comms[workOrderID] {
		if e.Channel != ch {
			continue
		}
		if e.VendorID == nil || *e.VendorID != vendorID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) CommunicationsForWorkOrder(_ context.Context, workOrderID uuid.UUID) ([]model.CommunicationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CommunicationLog, len(s.comms[workOrderID]))
	copy(out, s.comms[workOrderID])
	return out, nil
}
