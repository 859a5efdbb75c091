package automation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tavi-ops/dispatchd/core/confirm"
	"github.com/tavi-ops/dispatchd/core/logger"
	"github.com/tavi-ops/dispatchd/core/metrics"
	"github.com/tavi-ops/dispatchd/core/model"
	"github.com/tavi-ops/dispatchd/core/store"
	"github.com/tavi-ops/dispatchd/internal/eventbus"
)

var (
	// ErrAlreadyRunning reports a duplicate Run for a work order.
	ErrAlreadyRunning = errors.New("dispatch already running for this work order")
	// ErrNoPricedQuotes reports that ranking found nothing to confirm.
	ErrNoPricedQuotes = errors.New("no vendor returned a priced quote")
	// ErrCandidatesExhausted reports that every ranked vendor declined.
	ErrCandidatesExhausted = errors.New("no vendor could be confirmed")
)

// Discoverer finds candidate vendors for a work order and opens pending
// quotes for them.
type Discoverer interface {
	Discover(ctx context.Context, wo model.WorkOrder) ([]model.Vendor, error)
}

// QuoteRequester sends the initial outreach for one quote.
type QuoteRequester interface {
	RequestQuote(ctx context.Context, quoteID uuid.UUID) error
}

// ResponseCollector gathers one vendor's reply for a requested quote. In
// production replies arrive via webhooks and no collector is wired; the
// simulated collector generates a reply per quote so the pipeline completes
// without live vendors.
type ResponseCollector interface {
	CollectResponse(ctx context.Context, wo model.WorkOrder, q model.Quote) error
}

// Confirmer runs the two-party confirmation handshake for one quote.
type Confirmer interface {
	Confirm(ctx context.Context, workOrderID, quoteID uuid.UUID, attempt int) (confirm.Result, error)
}

// Config tunes the pipeline.
type Config struct {
	// MaxConfirmAttempts optionally bounds how many ranked vendors are
	// tried. Zero means the whole ranked list.
	MaxConfirmAttempts int `json:"max_confirm_attempts"`
	// ConfirmPacing is the delay between consecutive confirmation attempts.
	ConfirmPacing time.Duration `json:"confirm_pacing"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ConfirmPacing <= 0 {
		c.ConfirmPacing = 2 * time.Second
	}
}

// Coordinator drives the dispatch pipeline for work orders.
type Coordinator struct {
	store     store.Store
	discovery Discoverer
	contact   QuoteRequester
	collector ResponseCollector
	confirmer Confirmer
	registry  *Registry
	bus       *eventbus.TypedBus[ProgressEvent]
	sink      metrics.MetricsSink
	cfg       Config
	log       logger.Logger
	now       func() time.Time
}

// NewCoordinator wires the pipeline. collector may be nil when replies arrive
// via webhooks; sink may be nil for no observability.
func NewCoordinator(st store.Store, d Discoverer, qr QuoteRequester, rc ResponseCollector, cf Confirmer, sink metrics.MetricsSink, cfg Config, log logger.Logger) (*Coordinator, error) {
	if st == nil || d == nil || qr == nil || cf == nil || log == nil {
		return nil, errors.New("automation: nil store, discoverer, requester, confirmer or logger")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	cfg.SetDefaults()
	return &Coordinator{
		store:     st,
		discovery: d,
		contact:   qr,
		collector: rc,
		confirmer: cf,
		registry:  NewRegistry(),
		bus:       eventbus.NewTyped[ProgressEvent](),
		sink:      sink,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}, nil
}

// Events exposes the observer bus; subscribers see events from every run.
func (c *Coordinator) Events() *eventbus.TypedBus[ProgressEvent] {
	return c.bus
}

// Running reports whether a pipeline run is in flight for the work order.
func (c *Coordinator) Running(id uuid.UUID) bool {
	return c.registry.Running(id)
}

// Run starts the pipeline for one work order and returns its progress
// stream. The channel closes when the run finishes. If a run is already in
// flight the stream carries a single fatal event.
func (c *Coordinator) Run(ctx context.Context, workOrderID uuid.UUID) <-chan ProgressEvent {
	ch := make(chan ProgressEvent, 256)
	release, ok := c.registry.Acquire(workOrderID)
	if !ok {
		ch <- c.event(workOrderID, FatalStep, StatusError, ErrAlreadyRunning.Error(), nil)
		close(ch)
		return ch
	}
	go func() {
		defer release()
		defer close(ch)
		c.run(ctx, workOrderID, ch)
	}()
	return ch
}

func (c *Coordinator) run(ctx context.Context, workOrderID uuid.UUID, ch chan<- ProgressEvent) {
	emit := func(ev ProgressEvent) {
		c.bus.Publish(ev)
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}

	wo, err := c.store.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		emit(c.event(workOrderID, FatalStep, StatusError, fmt.Sprintf("load work order: %v", err), nil))
		return
	}
	if wo.Status.TerminalForAutomation() {
		emit(c.event(workOrderID, FatalStep, StatusError, fmt.Sprintf("work order is %s, nothing to do", wo.Status), nil))
		return
	}

	if err := c.discover(ctx, wo, emit); err != nil {
		return
	}

	if err := c.solicit(ctx, wo, emit); err != nil {
		return
	}

	c.collect(ctx, wo, emit)

	ranked, err := c.rank(ctx, wo, emit)
	if err != nil {
		return
	}

	c.confirmRanked(ctx, wo, ranked, emit)
}

func (c *Coordinator) discover(ctx context.Context, wo model.WorkOrder, emit func(ProgressEvent)) error {
	// A rolled-back run already has its quotes; re-discovery would hit the
	// providers again for the same candidates.
	existing, err := c.store.QuotesForWorkOrder(ctx, wo.ID)
	if err != nil {
		emit(c.event(wo.ID, FatalStep, StatusError, fmt.Sprintf("load quotes: %v", err), nil))
		return err
	}
	if len(existing) > 0 {
		emit(c.event(wo.ID, StepDiscovery, StatusCompleted, fmt.Sprintf("reusing %d existing quotes", len(existing)), map[string]any{"quotes": len(existing)}))
		return nil
	}

	emit(c.event(wo.ID, StepDiscovery, StatusInProgress, fmt.Sprintf("searching for %s vendors near %s", wo.Trade, wo.Location.Address), nil))

	wo.Status = model.StatusDiscoveringVendors
	if err := c.store.PutWorkOrder(ctx, wo); err != nil {
		emit(c.event(wo.ID, FatalStep, StatusError, fmt.Sprintf("update work order: %v", err), nil))
		return err
	}

	vendors, err := c.discovery.Discover(ctx, wo)
	if err != nil {
		emit(c.event(wo.ID, StepDiscovery, StatusError, fmt.Sprintf("vendor discovery failed: %v", err), nil))
		emit(c.event(wo.ID, FatalStep, StatusError, "aborting: no vendors available", nil))
		return err
	}
	if len(vendors) == 0 {
		emit(c.event(wo.ID, FatalStep, StatusError, "no vendors found for this trade and location", nil))
		return errors.New("no vendors found")
	}

	if rec, ok := c.sink.(metrics.DiscoveryRecorder); ok {
		_ = rec.RecordDiscovery(metrics.DiscoveryEvent{
			WorkOrderID: wo.ID,
			Trade:       wo.Trade.String(),
			Vendors:     len(vendors),
			Time:        c.now(),
		})
	}

	emit(c.event(wo.ID, StepDiscovery, StatusCompleted, fmt.Sprintf("found %d vendors", len(vendors)), map[string]any{"vendors": len(vendors)}))
	return nil
}

func (c *Coordinator) solicit(ctx context.Context, wo model.WorkOrder, emit func(ProgressEvent)) error {
	wo.Status = model.StatusContactingVendors
	if err := c.store.PutWorkOrder(ctx, wo); err != nil {
		emit(c.event(wo.ID, FatalStep, StatusError, fmt.Sprintf("update work order: %v", err), nil))
		return err
	}

	quotes, err := c.store.QuotesForWorkOrder(ctx, wo.ID)
	if err != nil {
		emit(c.event(wo.ID, FatalStep, StatusError, fmt.Sprintf("load quotes: %v", err), nil))
		return err
	}
	var pending []model.Quote
	for _, q := range quotes {
		if q.Status == model.QuotePending {
			pending = append(pending, q)
		}
	}

	total := len(pending)
	emit(c.event(wo.ID, StepSolicitation, StatusInProgress, fmt.Sprintf("requesting quotes from %d vendors", total), map[string]any{"total": total}))

	// Outreach fans out concurrently; progress is reported in completion
	// order, not request order.
	done := make(chan uuid.UUID)
	var wg sync.WaitGroup
	for _, q := range pending {
		wg.Add(1)
		go func(quoteID uuid.UUID) {
			defer wg.Done()
			if err := c.contact.RequestQuote(ctx, quoteID); err != nil {
				c.log.Warnf("quote request %s failed: %v", quoteID, err)
			}
			select {
			case done <- quoteID:
			case <-ctx.Done():
			}
		}(q.ID)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for range done {
		completed++
		emit(c.event(wo.ID, StepSolicitation, StatusInProgress, fmt.Sprintf("contacted %d/%d vendors", completed, total), map[string]any{"completed": completed, "total": total}))
	}

	emit(c.event(wo.ID, StepSolicitation, StatusCompleted, fmt.Sprintf("quote requests sent to %d vendors", total), map[string]any{"total": total}))
	return nil
}

func (c *Coordinator) collect(ctx context.Context, wo model.WorkOrder, emit func(ProgressEvent)) {
	quotes, err := c.store.QuotesForWorkOrder(ctx, wo.ID)
	if err != nil {
		emit(c.event(wo.ID, StepCollection, StatusError, fmt.Sprintf("load quotes: %v", err), nil))
		return
	}
	var requested []model.Quote
	for _, q := range quotes {
		if q.Status == model.QuoteRequested {
			requested = append(requested, q)
		}
	}
	total := len(requested)
	emit(c.event(wo.ID, StepCollection, StatusInProgress, fmt.Sprintf("collecting responses from %d vendors", total), map[string]any{"total": total}))

	if c.collector == nil || total == 0 {
		emit(c.event(wo.ID, StepCollection, StatusCompleted, "vendor responses collected", nil))
		return
	}

	// Simulated replies fan out concurrently; progress is reported in
	// completion order, not request order.
	done := make(chan error)
	var wg sync.WaitGroup
	for _, q := range requested {
		wg.Add(1)
		go func(q model.Quote) {
			defer wg.Done()
			err := c.collector.CollectResponse(ctx, wo, q)
			select {
			case done <- err:
			case <-ctx.Done():
			}
		}(q)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	completed, failed := 0, 0
	for err := range done {
		completed++
		if err != nil {
			failed++
			// Replies that did land are still usable.
			c.log.Warnf("response collection for %s: %v", wo.ID, err)
		}
		emit(c.event(wo.ID, StepCollection, StatusInProgress, fmt.Sprintf("collected %d/%d responses", completed, total), map[string]any{"completed": completed, "total": total}))
	}
	if failed > 0 {
		emit(c.event(wo.ID, StepCollection, StatusError, fmt.Sprintf("response collection incomplete: %d of %d failed", failed, total), map[string]any{"failed": failed, "total": total}))
		return
	}
	emit(c.event(wo.ID, StepCollection, StatusCompleted, fmt.Sprintf("responses collected from %d vendors", total), map[string]any{"total": total}))
}

func (c *Coordinator) rank(ctx context.Context, wo model.WorkOrder, emit func(ProgressEvent)) ([]model.Quote, error) {
	// Collection may have touched the work order; rank against fresh state.
	if fresh, err := c.store.GetWorkOrder(ctx, wo.ID); err == nil {
		wo = fresh
	}
	wo.Status = model.StatusEvaluatingQuotes
	if err := c.store.PutWorkOrder(ctx, wo); err != nil {
		emit(c.event(wo.ID, FatalStep, StatusError, fmt.Sprintf("update work order: %v", err), nil))
		return nil, err
	}

	emit(c.event(wo.ID, StepRanking, StatusInProgress, "ranking received quotes", nil))

	quotes, err := c.store.QuotesForWorkOrder(ctx, wo.ID)
	if err != nil {
		emit(c.event(wo.ID, FatalStep, StatusError, fmt.Sprintf("load quotes: %v", err), nil))
		return nil, err
	}

	ranked := RankQuotes(quotes)
	if len(ranked) == 0 {
		emit(c.event(wo.ID, FatalStep, StatusError, ErrNoPricedQuotes.Error(), nil))
		return nil, ErrNoPricedQuotes
	}

	emit(c.event(wo.ID, StepRanking, StatusCompleted, fmt.Sprintf("%d priced quotes ranked", len(ranked)), map[string]any{"quotes": len(ranked)}))
	return ranked, nil
}

func (c *Coordinator) confirmRanked(ctx context.Context, wo model.WorkOrder, ranked []model.Quote, emit func(ProgressEvent)) {
	attempts := len(ranked)
	if c.cfg.MaxConfirmAttempts > 0 && c.cfg.MaxConfirmAttempts < attempts {
		attempts = c.cfg.MaxConfirmAttempts
	}

	for i := 0; i < attempts; i++ {
		q := ranked[i]
		attempt := i + 1
		if i > 0 {
			select {
			case <-time.After(c.cfg.ConfirmPacing):
			case <-ctx.Done():
				emit(c.event(wo.ID, FatalStep, StatusError, "dispatch cancelled", nil))
				return
			}
		}

		vendor, err := c.store.GetVendor(ctx, q.VendorID)
		if err != nil {
			c.log.Errorf("load vendor %s: %v", q.VendorID, err)
			continue
		}
		emit(c.event(wo.ID, StepConfirmation, StatusInProgress, fmt.Sprintf("confirming with %s (attempt %d/%d)", vendor.BusinessName, attempt, attempts), map[string]any{"attempt": attempt, "vendor": vendor.BusinessName}))

		res, err := c.confirmer.Confirm(ctx, wo.ID, q.ID, attempt)
		if err != nil {
			emit(c.event(wo.ID, StepConfirmation, StatusError, fmt.Sprintf("confirmation with %s failed: %v", vendor.BusinessName, err), nil))
			continue
		}

		c.recordOutcome(wo.ID, q, attempt, res)
		if res.Success {
			emit(c.event(wo.ID, StepConfirmation, StatusCompleted, fmt.Sprintf("work order dispatched to %s", vendor.BusinessName), map[string]any{"vendor": vendor.BusinessName, "attempt": attempt}))
			return
		}
		emit(c.event(wo.ID, StepConfirmation, StatusInProgress, fmt.Sprintf("%s declined: %s", vendor.BusinessName, res.Reason), map[string]any{"attempt": attempt, "reason": res.Reason}))
	}

	emit(c.event(wo.ID, FatalStep, StatusError, ErrCandidatesExhausted.Error(), nil))
}

func (c *Coordinator) recordOutcome(workOrderID uuid.UUID, q model.Quote, attempt int, res confirm.Result) {
	stage := "dispatched"
	if !res.Success {
		stage = "vendor_declined"
		if strings.HasPrefix(res.Reason, "facility:") {
			stage = "facility_declined"
		}
	}
	out := metrics.DispatchOutcome{
		WorkOrderID: workOrderID,
		VendorID:    q.VendorID,
		Attempt:     attempt,
		Stage:       stage,
		Accepted:    res.Success,
		Time:        c.now(),
	}
	if q.Price != nil {
		out.Price = *q.Price
	}
	if q.CompositeScore != nil {
		out.Composite = *q.CompositeScore
	}
	if err := c.sink.RecordDispatchOutcome([]metrics.DispatchOutcome{out}); err != nil {
		c.log.Warnf("record dispatch outcome: %v", err)
	}
}

func (c *Coordinator) event(workOrderID uuid.UUID, step int, status StepStatus, msg string, data map[string]any) ProgressEvent {
	return ProgressEvent{
		WorkOrderID: workOrderID,
		Step:        step,
		Status:      status,
		Message:     msg,
		Data:        data,
		Timestamp:   c.now().UTC(),
	}
}

// RankQuotes filters to priced quotes and orders them by composite score,
// best first. Ties keep insertion order.
func RankQuotes(quotes []model.Quote) []model.Quote {
	var ranked []model.Quote
	for _, q := range quotes {
		if q.Price != nil && q.Status != model.QuoteRejected && q.Status != model.QuoteExpired {
			ranked = append(ranked, q)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return compositeOf(ranked[i]) > compositeOf(ranked[j])
	})
	return ranked
}

func compositeOf(q model.Quote) float64 {
	if q.CompositeScore == nil {
		return -1
	}
	return *q.CompositeScore
}
