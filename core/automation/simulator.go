package automation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"github.com/tavi-ops/dispatchd/core/conversation"
	"github.com/tavi-ops/dispatchd/core/logger"
	"github.com/tavi-ops/dispatchd/core/model"
	"github.com/tavi-ops/dispatchd/core/store"
)

// InboundHandler processes a vendor reply against a quote. Satisfied by
// conversation.Manager.
type InboundHandler interface {
	HandleInbound(ctx context.Context, quoteID uuid.UUID, ch model.Channel, subject, message string) error
}

// SimulatedVendorResponder generates a vendor reply per requested quote so
// the pipeline completes end-to-end without live vendors. Replies are routed
// through the same inbound path webhook traffic would take. The coordinator
// collects quotes concurrently, so rng draws are serialized.
type SimulatedVendorResponder struct {
	store   store.Store
	handler InboundHandler
	mu      sync.Mutex
	rng     *rand.Rand
	log     logger.Logger
}

// NewSimulatedVendorResponder seeds the simulated reply source.
func NewSimulatedVendorResponder(st store.Store, handler InboundHandler, seed int64, log logger.Logger) (*SimulatedVendorResponder, error) {
	if st == nil || handler == nil || log == nil {
		return nil, errors.New("automation: nil store, handler or logger")
	}
	return &SimulatedVendorResponder{
		store:   st,
		handler: handler,
		rng:     rand.New(rand.NewSource(seed)),
		log:     log,
	}, nil
}

// CollectResponse fabricates one reply for a requested quote. Quotes in any
// other state are left alone.
func (s *SimulatedVendorResponder) CollectResponse(ctx context.Context, wo model.WorkOrder, q model.Quote) error {
	if q.Status != model.QuoteRequested {
		return nil
	}
	vendor, err := s.store.GetVendor(ctx, q.VendorID)
	if err != nil {
		return fmt.Errorf("load vendor %s: %w", q.VendorID, err)
	}
	ch, msg := s.compose(vendor, wo)
	if err := s.handler.HandleInbound(ctx, q.ID, ch, "", msg); err != nil {
		return fmt.Errorf("simulated reply from %s: %w", vendor.BusinessName, err)
	}
	return nil
}

// compose draws the channel and reply text in one critical section so
// sequential calls stay reproducible for a given seed.
func (s *SimulatedVendorResponder) compose(vendor model.Vendor, wo model.WorkOrder) (model.Channel, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := model.ChannelEmail
	switch {
	case vendor.HasChannel(model.ChannelSMS) && vendor.HasChannel(model.ChannelEmail):
		if s.rng.Intn(2) == 0 {
			ch = model.ChannelSMS
		}
	case vendor.HasChannel(model.ChannelSMS):
		ch = model.ChannelSMS
	}

	price := 150 + s.rng.Intn(351)
	days := 1 + s.rng.Intn(7)
	hours := 2 + s.rng.Intn(7)

	templates := []string{
		"Hi, we can handle the %s work for $%d. We're available in %d days and expect it to take about %d hours.",
		"Thanks for reaching out! For the %s work it's $%d, available in %d days, roughly %d hours on site.",
		"Yes we do %s. Quote: $%d total. Earliest start is %d days out, figure %d hours of work.",
		"We'd be glad to help with the %s job. $%d flat, can start in %d days, should take %d hours.",
	}
	return ch, fmt.Sprintf(templates[s.rng.Intn(len(templates))], wo.Trade, price, days, hours)
}

var _ ResponseCollector = (*SimulatedVendorResponder)(nil)
var _ InboundHandler = (*conversation.Manager)(nil)
