package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tavi-ops/dispatchd/core/confirm"
	"github.com/tavi-ops/dispatchd/core/model"
	infralog "github.com/tavi-ops/dispatchd/infra/logger"
	infrastore "github.com/tavi-ops/dispatchd/infra/store"
)

type fakeDiscoverer struct {
	st      *infrastore.MemoryStore
	vendors int
	err     error
}

func (f *fakeDiscoverer) Discover(ctx context.Context, wo model.WorkOrder) ([]model.Vendor, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Vendor
	for i := 0; i < f.vendors; i++ {
		v := model.Vendor{ID: uuid.New(), BusinessName: "Vendor", Phone: "+1-555-0100", QualityScore: 7}
		if err := f.st.PutVendor(ctx, v); err != nil {
			return nil, err
		}
		q := model.Quote{ID: uuid.New(), WorkOrderID: wo.ID, VendorID: v.ID, Status: model.QuotePending}
		if err := f.st.PutQuote(ctx, q); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type fakeRequester struct {
	st *infrastore.MemoryStore
}

func (f fakeRequester) RequestQuote(ctx context.Context, quoteID uuid.UUID) error {
	q, err := f.st.GetQuote(ctx, quoteID)
	if err != nil {
		return err
	}
	q.Status = model.QuoteRequested
	return f.st.PutQuote(ctx, q)
}

// fakeCollector prices each requested quote with a distinct composite so
// ranking order is predictable. Collection runs concurrently, so the counter
// is guarded.
type fakeCollector struct {
	st *infrastore.MemoryStore
	mu sync.Mutex
	n  int
}

func (f *fakeCollector) CollectResponse(ctx context.Context, _ model.WorkOrder, q model.Quote) error {
	f.mu.Lock()
	i := f.n
	f.n++
	f.mu.Unlock()

	got, err := f.st.GetQuote(ctx, q.ID)
	if err != nil {
		return err
	}
	price := 200.0 + float64(i)*50
	comp := 90.0 - float64(i)*10
	got.Price = &price
	got.CompositeScore = &comp
	got.Status = model.QuoteReceived
	return f.st.PutQuote(ctx, got)
}

type scriptedConfirmer struct {
	results []confirm.Result
	calls   []uuid.UUID
	block   chan struct{}
}

func (s *scriptedConfirmer) Confirm(_ context.Context, _, quoteID uuid.UUID, attempt int) (confirm.Result, error) {
	if s.block != nil {
		<-s.block
	}
	s.calls = append(s.calls, quoteID)
	if attempt-1 < len(s.results) {
		return s.results[attempt-1], nil
	}
	return confirm.Result{Reason: "vendor: unavailable"}, nil
}

func newTestCoordinator(t *testing.T, st *infrastore.MemoryStore, vendors int, cf Confirmer) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(st, &fakeDiscoverer{st: st, vendors: vendors}, fakeRequester{st: st}, &fakeCollector{st: st}, cf, nil,
		Config{ConfirmPacing: time.Millisecond}, infralog.NopLogger{})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return c
}

func seedWorkOrder(t *testing.T, st *infrastore.MemoryStore) model.WorkOrder {
	t.Helper()
	wo := model.WorkOrder{ID: uuid.New(), Trade: model.TradeHVAC, Status: model.StatusSubmitted, Location: model.Location{Address: "9 Oak Ave"}}
	if err := st.PutWorkOrder(context.Background(), wo); err != nil {
		t.Fatalf("put work order: %v", err)
	}
	return wo
}

func drain(t *testing.T, ch <-chan ProgressEvent) []ProgressEvent {
	t.Helper()
	var events []ProgressEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("pipeline did not finish in time")
		}
	}
}

func last(events []ProgressEvent) ProgressEvent {
	return events[len(events)-1]
}

func TestRunDispatchesFirstVendor(t *testing.T) {
	st := infrastore.NewMemoryStore()
	ctx := context.Background()
	wo := seedWorkOrder(t, st)
	cf := &scriptedConfirmer{results: []confirm.Result{{Success: true}}}
	c := newTestCoordinator(t, st, 3, cf)

	events := drain(t, c.Run(ctx, wo.ID))

	fin := last(events)
	if fin.Step != StepConfirmation || fin.Status != StatusCompleted {
		t.Fatalf("expected confirmation completed, got %+v", fin)
	}
	if len(cf.calls) != 1 {
		t.Fatalf("expected 1 confirmation attempt, got %d", len(cf.calls))
	}

	steps := map[int]bool{}
	for _, ev := range events {
		steps[ev.Step] = true
	}
	for _, s := range []int{StepDiscovery, StepSolicitation, StepCollection, StepRanking, StepConfirmation} {
		if !steps[s] {
			t.Fatalf("missing events for step %d", s)
		}
	}
}

func TestRunFallsBackToNextVendor(t *testing.T) {
	st := infrastore.NewMemoryStore()
	ctx := context.Background()
	wo := seedWorkOrder(t, st)
	cf := &scriptedConfirmer{results: []confirm.Result{
		{Reason: "facility: too expensive"},
		{Success: true},
	}}
	c := newTestCoordinator(t, st, 3, cf)

	events := drain(t, c.Run(ctx, wo.ID))

	if len(cf.calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(cf.calls))
	}
	fin := last(events)
	if fin.Status != StatusCompleted {
		t.Fatalf("expected success on second attempt, got %+v", fin)
	}
	// Attempts follow composite ranking, so the best quote is tried first.
	quotes, _ := st.QuotesForWorkOrder(ctx, wo.ID)
	ranked := RankQuotes(quotes)
	if cf.calls[0] != ranked[0].ID || cf.calls[1] != ranked[1].ID {
		t.Fatal("confirmation attempts out of ranked order")
	}
}

func TestRunAllVendorsDecline(t *testing.T) {
	st := infrastore.NewMemoryStore()
	ctx := context.Background()
	wo := seedWorkOrder(t, st)
	cf := &scriptedConfirmer{results: []confirm.Result{
		{Reason: "facility: no"},
		{Reason: "vendor: no"},
		{Reason: "vendor: no"},
	}}
	c := newTestCoordinator(t, st, 3, cf)

	events := drain(t, c.Run(ctx, wo.ID))

	fin := last(events)
	if fin.Step != FatalStep || fin.Status != StatusError {
		t.Fatalf("expected fatal event, got %+v", fin)
	}
	if len(cf.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(cf.calls))
	}
}

func TestCollectionReportsPerQuoteProgress(t *testing.T) {
	st := infrastore.NewMemoryStore()
	ctx := context.Background()
	wo := seedWorkOrder(t, st)
	cf := &scriptedConfirmer{results: []confirm.Result{{Success: true}}}
	c := newTestCoordinator(t, st, 3, cf)

	events := drain(t, c.Run(ctx, wo.ID))

	progress := 0
	for _, ev := range events {
		if ev.Step != StepCollection || ev.Status != StatusInProgress {
			continue
		}
		done, ok := ev.Data["completed"]
		if !ok {
			continue
		}
		progress++
		if total := ev.Data["total"]; total != 3 {
			t.Fatalf("expected total 3, got %v", total)
		}
		if n, _ := done.(int); n < 1 || n > 3 {
			t.Fatalf("completed out of range: %v", done)
		}
	}
	if progress != 3 {
		t.Fatalf("expected 3 per-quote collection events, got %d", progress)
	}
}

func TestRunTriesEntireRankedList(t *testing.T) {
	st := infrastore.NewMemoryStore()
	ctx := context.Background()
	wo := seedWorkOrder(t, st)
	cf := &scriptedConfirmer{results: []confirm.Result{
		{Reason: "facility: no"},
		{Reason: "vendor: no"},
		{Reason: "vendor: no"},
		{Reason: "facility: no"},
	}}
	c := newTestCoordinator(t, st, 4, cf)

	events := drain(t, c.Run(ctx, wo.ID))

	if len(cf.calls) != 4 {
		t.Fatalf("every ranked vendor must be tried, got %d attempts", len(cf.calls))
	}
	if fin := last(events); fin.Step != FatalStep {
		t.Fatalf("expected fatal event after exhaustion, got %+v", fin)
	}
}

func TestMaxConfirmAttemptsBoundsTheList(t *testing.T) {
	st := infrastore.NewMemoryStore()
	ctx := context.Background()
	wo := seedWorkOrder(t, st)
	cf := &scriptedConfirmer{results: []confirm.Result{
		{Reason: "facility: no"},
		{Reason: "vendor: no"},
	}}
	c, err := NewCoordinator(st, &fakeDiscoverer{st: st, vendors: 4}, fakeRequester{st: st}, &fakeCollector{st: st}, cf, nil,
		Config{MaxConfirmAttempts: 2, ConfirmPacing: time.Millisecond}, infralog.NopLogger{})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	drain(t, c.Run(ctx, wo.ID))
	if len(cf.calls) != 2 {
		t.Fatalf("expected the explicit bound to hold, got %d attempts", len(cf.calls))
	}
}

func TestRunReusesExistingQuotes(t *testing.T) {
	st := infrastore.NewMemoryStore()
	ctx := context.Background()
	wo := seedWorkOrder(t, st)
	vendor := model.Vendor{ID: uuid.New(), BusinessName: "Vendor", Phone: "+1-555-0100"}
	if err := st.PutVendor(ctx, vendor); err != nil {
		t.Fatalf("put vendor: %v", err)
	}
	price, comp := 300.0, 75.0
	q := model.Quote{ID: uuid.New(), WorkOrderID: wo.ID, VendorID: vendor.ID, Status: model.QuoteReceived, Price: &price, CompositeScore: &comp}
	if err := st.PutQuote(ctx, q); err != nil {
		t.Fatalf("put quote: %v", err)
	}

	// The discoverer errors when invoked, so a passing run proves it was
	// skipped.
	cf := &scriptedConfirmer{results: []confirm.Result{{Success: true}}}
	c, err := NewCoordinator(st, &fakeDiscoverer{st: st, err: errors.New("providers must not be hit")}, fakeRequester{st: st}, nil, cf, nil,
		Config{ConfirmPacing: time.Millisecond}, infralog.NopLogger{})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	events := drain(t, c.Run(ctx, wo.ID))

	if fin := last(events); fin.Step != StepConfirmation || fin.Status != StatusCompleted {
		t.Fatalf("expected dispatch from existing quotes, got %+v", fin)
	}
	if events[0].Step != StepDiscovery || events[0].Status != StatusCompleted {
		t.Fatalf("expected discovery to complete by reuse, got %+v", events[0])
	}
	if events[0].Data["quotes"] != 1 {
		t.Fatalf("expected reused quote count, got %v", events[0].Data)
	}
}

func TestRunNoPricedQuotes(t *testing.T) {
	st := infrastore.NewMemoryStore()
	ctx := context.Background()
	wo := seedWorkOrder(t, st)
	cf := &scriptedConfirmer{}
	c, err := NewCoordinator(st, &fakeDiscoverer{st: st, vendors: 2}, fakeRequester{st: st}, nil, cf, nil,
		Config{ConfirmPacing: time.Millisecond}, infralog.NopLogger{})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	// Without a collector no quote ever gets a price.
	events := drain(t, c.Run(ctx, wo.ID))

	fin := last(events)
	if fin.Step != FatalStep {
		t.Fatalf("expected fatal event, got %+v", fin)
	}
	if len(cf.calls) != 0 {
		t.Fatal("confirmation must not run without priced quotes")
	}
}

func TestRunRejectsTerminalWorkOrder(t *testing.T) {
	st := infrastore.NewMemoryStore()
	ctx := context.Background()
	wo := model.WorkOrder{ID: uuid.New(), Status: model.StatusDispatched}
	if err := st.PutWorkOrder(ctx, wo); err != nil {
		t.Fatalf("put work order: %v", err)
	}
	c := newTestCoordinator(t, st, 1, &scriptedConfirmer{})

	events := drain(t, c.Run(ctx, wo.ID))
	if len(events) != 1 || events[0].Step != FatalStep {
		t.Fatalf("expected single fatal event, got %+v", events)
	}
}

func TestRunSingleFlight(t *testing.T) {
	st := infrastore.NewMemoryStore()
	ctx := context.Background()
	wo := seedWorkOrder(t, st)
	cf := &scriptedConfirmer{results: []confirm.Result{{Success: true}}, block: make(chan struct{})}
	c := newTestCoordinator(t, st, 1, cf)

	first := c.Run(ctx, wo.ID)

	// Wait until the run is provably in flight.
	deadline := time.After(5 * time.Second)
	for !c.Running(wo.ID) {
		select {
		case <-deadline:
			t.Fatal("run never started")
		case <-time.After(time.Millisecond):
		}
	}

	second := drain(t, c.Run(ctx, wo.ID))
	if len(second) != 1 || second[0].Step != FatalStep {
		t.Fatalf("expected immediate fatal event on duplicate run, got %+v", second)
	}

	close(cf.block)
	events := drain(t, first)
	if last(events).Status != StatusCompleted {
		t.Fatalf("first run must complete, got %+v", last(events))
	}

	// A finished run releases the slot.
	if c.Running(wo.ID) {
		t.Fatal("registry must be released after the run")
	}
}

func TestRankQuotes(t *testing.T) {
	p1, p2 := 100.0, 200.0
	c1, c2 := 60.0, 80.0
	unpriced := model.Quote{ID: uuid.New()}
	low := model.Quote{ID: uuid.New(), Price: &p1, CompositeScore: &c1}
	high := model.Quote{ID: uuid.New(), Price: &p2, CompositeScore: &c2}
	rejected := model.Quote{ID: uuid.New(), Price: &p1, CompositeScore: &c2, Status: model.QuoteRejected}

	ranked := RankQuotes([]model.Quote{unpriced, low, high, rejected})
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked quotes, got %d", len(ranked))
	}
	if ranked[0].ID != high.ID || ranked[1].ID != low.ID {
		t.Fatal("quotes not in composite order")
	}
}

func TestRankQuotesStableOnTies(t *testing.T) {
	p := 100.0
	c := 70.0
	a := model.Quote{ID: uuid.New(), Price: &p, CompositeScore: &c}
	b := model.Quote{ID: uuid.New(), Price: &p, CompositeScore: &c}
	ranked := RankQuotes([]model.Quote{a, b})
	if ranked[0].ID != a.ID || ranked[1].ID != b.ID {
		t.Fatal("tied quotes must keep insertion order")
	}
}
