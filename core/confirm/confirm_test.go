package confirm

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/tavi-ops/dispatchd/core/contact"
	"github.com/tavi-ops/dispatchd/core/model"
	"github.com/tavi-ops/dispatchd/core/store"
	infralog "github.com/tavi-ops/dispatchd/infra/logger"
	infrastore "github.com/tavi-ops/dispatchd/infra/store"
)

type scriptedApprovals struct {
	facility Decision
	vendor   Decision
}

func (s scriptedApprovals) FacilityDecision(_ context.Context, _ model.WorkOrder, _ model.Quote, _ int) (Decision, error) {
	return s.facility, nil
}

func (s scriptedApprovals) VendorDecision(_ context.Context, _ model.Vendor, _ model.Quote, _ int) (Decision, error) {
	return s.vendor, nil
}

type okMessenger struct{ sends int }

func (m *okMessenger) Send(_ context.Context, _ model.Channel, _, _, _ string) (contact.SendResult, error) {
	m.sends++
	return contact.SendResult{OK: true, ExternalID: "sim"}, nil
}

func seed(t *testing.T) (*infrastore.MemoryStore, model.WorkOrder, model.Quote) {
	t.Helper()
	st := infrastore.NewMemoryStore()
	ctx := context.Background()
	wo := model.WorkOrder{
		ID:                   uuid.New(),
		Trade:                model.TradeElectrical,
		Status:               model.StatusEvaluatingQuotes,
		Location:             model.Location{Address: "12 Main St"},
		FacilityManagerName:  "Sam",
		FacilityManagerEmail: "sam@facility.test",
	}
	if err := st.PutWorkOrder(ctx, wo); err != nil {
		t.Fatalf("put work order: %v", err)
	}
	vendor := model.Vendor{ID: uuid.New(), BusinessName: "Reliable Electrical", Phone: "+1-555-0102"}
	if err := st.PutVendor(ctx, vendor); err != nil {
		t.Fatalf("put vendor: %v", err)
	}
	price := 420.0
	q := model.Quote{ID: uuid.New(), WorkOrderID: wo.ID, VendorID: vendor.ID, Status: model.QuoteReceived, Price: &price}
	if err := st.PutQuote(ctx, q); err != nil {
		t.Fatalf("put quote: %v", err)
	}
	return st, wo, q
}

func TestConfirmBothApprove(t *testing.T) {
	st, wo, q := seed(t)
	msgr := &okMessenger{}
	o, err := NewOrchestrator(st, scriptedApprovals{facility: Decision{Approved: true}, vendor: Decision{Approved: true}}, msgr, infralog.NopLogger{})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}

	res, err := o.Confirm(context.Background(), wo.ID, q.ID, 1)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	got, _ := st.GetWorkOrder(context.Background(), wo.ID)
	if got.Status != model.StatusDispatched {
		t.Fatalf("expected dispatched, got %s", got.Status)
	}
	if got.SelectedVendorID == nil || *got.SelectedVendorID != q.VendorID {
		t.Fatalf("expected selected vendor %s, got %v", q.VendorID, got.SelectedVendorID)
	}
	if got.FacilityConfirmedAt == nil || got.VendorDispatchConfirmedAt == nil {
		t.Fatal("expected both confirmation timestamps")
	}
	gq, _ := st.GetQuote(context.Background(), q.ID)
	if gq.Status != model.QuoteAccepted {
		t.Fatalf("expected accepted quote, got %s", gq.Status)
	}
	if msgr.sends != 2 {
		t.Fatalf("expected 2 notifications, got %d", msgr.sends)
	}
}

func TestConfirmFacilityDeclinesRollsBack(t *testing.T) {
	st, wo, q := seed(t)
	o, _ := NewOrchestrator(st, scriptedApprovals{facility: Decision{Reason: "too expensive"}}, nil, infralog.NopLogger{})

	res, err := o.Confirm(context.Background(), wo.ID, q.ID, 1)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Reason != "facility: too expensive" {
		t.Fatalf("unexpected reason %q", res.Reason)
	}

	got, _ := st.GetWorkOrder(context.Background(), wo.ID)
	if got.Status != model.StatusEvaluatingQuotes {
		t.Fatalf("expected rollback to evaluating, got %s", got.Status)
	}
	if got.SelectedVendorID != nil || got.FacilityConfirmedAt != nil {
		t.Fatal("expected selection cleared")
	}
	gq, _ := st.GetQuote(context.Background(), q.ID)
	if gq.Status != model.QuoteReceived {
		t.Fatalf("quote must stay received, got %s", gq.Status)
	}
}

func TestConfirmVendorDeclinesRollsBack(t *testing.T) {
	st, wo, q := seed(t)
	o, _ := NewOrchestrator(st, scriptedApprovals{facility: Decision{Approved: true}, vendor: Decision{Reason: "fully booked"}}, nil, infralog.NopLogger{})

	res, err := o.Confirm(context.Background(), wo.ID, q.ID, 2)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Reason != "vendor: fully booked" {
		t.Fatalf("unexpected reason %q", res.Reason)
	}

	got, _ := st.GetWorkOrder(context.Background(), wo.ID)
	if got.Status != model.StatusEvaluatingQuotes {
		t.Fatalf("expected rollback to evaluating, got %s", got.Status)
	}
	// The facility timestamp set mid-handshake must also be cleared.
	if got.FacilityConfirmedAt != nil || got.VendorDispatchConfirmedAt != nil {
		t.Fatal("expected confirmation timestamps cleared")
	}
	gq, _ := st.GetQuote(context.Background(), q.ID)
	if gq.Status != model.QuoteReceived {
		t.Fatalf("quote must stay received, got %s", gq.Status)
	}
}

func TestConfirmLogsHandshakeMessages(t *testing.T) {
	st, wo, q := seed(t)
	o, _ := NewOrchestrator(st, scriptedApprovals{facility: Decision{Approved: true}, vendor: Decision{Approved: true}}, &okMessenger{}, infralog.NopLogger{})

	if _, err := o.Confirm(context.Background(), wo.ID, q.ID, 1); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	comms, _ := st.CommunicationsForWorkOrder(context.Background(), wo.ID)
	if len(comms) != 2 {
		t.Fatalf("expected 2 handshake entries, got %d", len(comms))
	}
	if comms[0].Metadata["type"] != "facility_confirmation_request" {
		t.Fatalf("expected facility request first, got %v", comms[0].Metadata)
	}
	if comms[1].Metadata["type"] != "vendor_dispatch_request" {
		t.Fatalf("expected vendor request second, got %v", comms[1].Metadata)
	}
}

// statusRecorder captures every committed work order status in order.
type statusRecorder struct {
	store.Store
	statuses []model.WorkOrderStatus
}

func (r *statusRecorder) PutWorkOrder(ctx context.Context, wo model.WorkOrder) error {
	r.statuses = append(r.statuses, wo.Status)
	return r.Store.PutWorkOrder(ctx, wo)
}

func TestConfirmCommitsSelectionBeforeFacilityRequest(t *testing.T) {
	st, wo, q := seed(t)
	rec := &statusRecorder{Store: st}
	o, _ := NewOrchestrator(rec, scriptedApprovals{facility: Decision{Approved: true}, vendor: Decision{Approved: true}}, &okMessenger{}, infralog.NopLogger{})

	if _, err := o.Confirm(context.Background(), wo.ID, q.ID, 1); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	want := []model.WorkOrderStatus{
		model.StatusVendorSelected,
		model.StatusAwaitingFacilityConfirmation,
		model.StatusAwaitingVendorDispatch,
		model.StatusDispatched,
	}
	if len(rec.statuses) != len(want) {
		t.Fatalf("expected %d transitions, got %v", len(want), rec.statuses)
	}
	for i, s := range want {
		if rec.statuses[i] != s {
			t.Fatalf("transition %d: expected %s, got %s", i, s, rec.statuses[i])
		}
	}
}

func TestSimulatedApprovalsDeterministic(t *testing.T) {
	a := NewSimulatedApprovals(7)
	b := NewSimulatedApprovals(7)
	for i := 1; i <= 5; i++ {
		da, _ := a.FacilityDecision(context.Background(), model.WorkOrder{}, model.Quote{}, i)
		db, _ := b.FacilityDecision(context.Background(), model.WorkOrder{}, model.Quote{}, i)
		if da.Approved != db.Approved {
			t.Fatalf("same seed must agree at attempt %d", i)
		}
	}
}
