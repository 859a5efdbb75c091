// Package confirm runs the two-party confirmation handshake for a selected
// quote: facility manager first, then the vendor. Either party declining rolls
// the work order back so the next-ranked vendor can be tried.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/tavi-ops/dispatchd/core/contact"
	"github.com/tavi-ops/dispatchd/core/logger"
	"github.com/tavi-ops/dispatchd/core/model"
	"github.com/tavi-ops/dispatchd/core/store"
)

// Decision is one party's answer to a confirmation request.
type Decision struct {
	Approved bool
	Reason   string
}

// ApprovalSource answers confirmation requests. The simulated implementation
// stands in for the manual approval flows that run out of band.
type ApprovalSource interface {
	FacilityDecision(ctx context.Context, wo model.WorkOrder, q model.Quote, attempt int) (Decision, error)
	VendorDecision(ctx context.Context, vendor model.Vendor, q model.Quote, attempt int) (Decision, error)
}

// SimulatedApprovals approves with fixed odds: the facility manager gets
// pickier with every retry, the vendor's willingness stays flat.
type SimulatedApprovals struct {
	rng *rand.Rand
}

// NewSimulatedApprovals seeds the simulated decision source.
func NewSimulatedApprovals(seed int64) *SimulatedApprovals {
	return &SimulatedApprovals{rng: rand.New(rand.NewSource(seed))}
}

func (s *SimulatedApprovals) FacilityDecision(_ context.Context, _ model.WorkOrder, _ model.Quote, attempt int) (Decision, error) {
	odds := 0.8 - 0.15*float64(attempt-1)
	if s.rng.Float64() < odds {
		return Decision{Approved: true}, nil
	}
	return Decision{Reason: "facility manager declined the quoted terms"}, nil
}

func (s *SimulatedApprovals) VendorDecision(_ context.Context, _ model.Vendor, _ model.Quote, _ int) (Decision, error) {
	if s.rng.Float64() < 0.85 {
		return Decision{Approved: true}, nil
	}
	return Decision{Reason: "vendor no longer available for the requested window"}, nil
}

// Result reports the outcome of one confirmation attempt.
type Result struct {
	Success bool
	// Reason is set when Success is false.
	Reason string
}

// Orchestrator drives the handshake and owns its state transitions.
type Orchestrator struct {
	store     store.Store
	approvals ApprovalSource
	messenger contact.Messenger
	log       logger.Logger
	now       func() time.Time
}

// NewOrchestrator creates a confirmation orchestrator. messenger may be nil;
// notification sends are then skipped.
func NewOrchestrator(st store.Store, approvals ApprovalSource, messenger contact.Messenger, log logger.Logger) (*Orchestrator, error) {
	if st == nil || approvals == nil || log == nil {
		return nil, errors.New("confirm: nil store, approvals or logger")
	}
	return &Orchestrator{store: st, approvals: approvals, messenger: messenger, log: log, now: time.Now}, nil
}

// Confirm attempts the full handshake for one quote. On success the work
// order ends up dispatched with both confirmation timestamps set and the
// quote accepted. On either party declining, every change is rolled back and
// the returned Result explains which side balked.
func (o *Orchestrator) Confirm(ctx context.Context, workOrderID, quoteID uuid.UUID, attempt int) (Result, error) {
	wo, err := o.store.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return Result{}, fmt.Errorf("load work order %s: %w", workOrderID, err)
	}
	q, err := o.store.GetQuote(ctx, quoteID)
	if err != nil {
		return Result{}, fmt.Errorf("load quote %s: %w", quoteID, err)
	}
	vendor, err := o.store.GetVendor(ctx, q.VendorID)
	if err != nil {
		return Result{}, fmt.Errorf("load vendor %s: %w", q.VendorID, err)
	}

	// Commit the selection first, then ask the facility manager.
	vendorID := vendor.ID
	wo.SelectedVendorID = &vendorID
	wo.Status = model.StatusVendorSelected
	if err := o.store.PutWorkOrder(ctx, wo); err != nil {
		return Result{}, err
	}
	o.notifyFacility(ctx, wo, vendor, q)

	wo.Status = model.StatusAwaitingFacilityConfirmation
	if err := o.store.PutWorkOrder(ctx, wo); err != nil {
		return Result{}, err
	}

	facility, err := o.approvals.FacilityDecision(ctx, wo, q, attempt)
	if err != nil {
		o.rollback(ctx, wo, q)
		return Result{}, fmt.Errorf("facility decision: %w", err)
	}
	if !facility.Approved {
		o.log.Infof("facility declined %s for work order %s: %s", vendor.BusinessName, wo.ID, facility.Reason)
		o.rollback(ctx, wo, q)
		return Result{Reason: "facility: " + facility.Reason}, nil
	}

	now := o.now().UTC()
	wo.FacilityConfirmedAt = &now
	wo.Status = model.StatusAwaitingVendorDispatch
	if err := o.store.PutWorkOrder(ctx, wo); err != nil {
		return Result{}, err
	}
	o.notifyVendor(ctx, wo, vendor, q)

	vdec, err := o.approvals.VendorDecision(ctx, vendor, q, attempt)
	if err != nil {
		o.rollback(ctx, wo, q)
		return Result{}, fmt.Errorf("vendor decision: %w", err)
	}
	if !vdec.Approved {
		o.log.Infof("vendor %s declined dispatch for work order %s: %s", vendor.BusinessName, wo.ID, vdec.Reason)
		o.rollback(ctx, wo, q)
		return Result{Reason: "vendor: " + vdec.Reason}, nil
	}

	done := o.now().UTC()
	wo.VendorDispatchConfirmedAt = &done
	wo.Status = model.StatusDispatched
	if err := o.store.PutWorkOrder(ctx, wo); err != nil {
		return Result{}, err
	}
	q.Status = model.QuoteAccepted
	if err := o.store.PutQuote(ctx, q); err != nil {
		return Result{}, err
	}

	o.log.Infof("work order %s dispatched to %s", wo.ID, vendor.BusinessName)
	return Result{Success: true}, nil
}

// rollback undoes every handshake mutation so the next-ranked vendor starts
// from a clean slate.
func (o *Orchestrator) rollback(ctx context.Context, wo model.WorkOrder, q model.Quote) {
	wo.SelectedVendorID = nil
	wo.FacilityConfirmedAt = nil
	wo.VendorDispatchConfirmedAt = nil
	wo.Status = model.StatusEvaluatingQuotes
	if err := o.store.PutWorkOrder(ctx, wo); err != nil {
		o.log.Errorf("rollback work order %s: %v", wo.ID, err)
	}
	if q.Status == model.QuoteAccepted {
		q.Status = model.QuoteReceived
		if err := o.store.PutQuote(ctx, q); err != nil {
			o.log.Errorf("rollback quote %s: %v", q.ID, err)
		}
	}
}

func (o *Orchestrator) notifyFacility(ctx context.Context, wo model.WorkOrder, vendor model.Vendor, q model.Quote) {
	price := "an unquoted amount"
	if q.Price != nil {
		price = fmt.Sprintf("$%.2f", *q.Price)
	}
	body := fmt.Sprintf("Hi %s, we recommend %s for the %s work at %s for %s. Please confirm to proceed.",
		wo.FacilityManagerName, vendor.BusinessName, wo.Trade, wo.Location.Address, price)
	o.send(ctx, wo, nil, model.ChannelEmail, wo.FacilityManagerEmail, "Vendor recommendation - approval needed", body, "facility_confirmation_request")
}

func (o *Orchestrator) notifyVendor(ctx context.Context, wo model.WorkOrder, vendor model.Vendor, q model.Quote) {
	ch := model.ChannelSMS
	recipient := vendor.Phone
	if !vendor.HasChannel(ch) {
		ch = model.ChannelEmail
		recipient = vendor.Email
	}
	body := fmt.Sprintf("Good news %s - your quote for the %s job at %s was approved. Please confirm you can dispatch.",
		vendor.BusinessName, wo.Trade, wo.Location.Address)
	vendorID := vendor.ID
	o.send(ctx, wo, &vendorID, ch, recipient, "", body, "vendor_dispatch_request")
}

func (o *Orchestrator) send(ctx context.Context, wo model.WorkOrder, vendorID *uuid.UUID, ch model.Channel, recipient, subject, body, kind string) {
	ok := false
	externalID := ""
	if o.messenger != nil && recipient != "" {
		res, err := o.messenger.Send(ctx, ch, recipient, subject, body)
		if err != nil {
			o.log.Warnf("%s notification failed: %v", kind, err)
		} else {
			ok = res.OK
			externalID = res.ExternalID
		}
	}
	entry := model.CommunicationLog{
		ID:               uuid.New(),
		WorkOrderID:      wo.ID,
		VendorID:         vendorID,
		Channel:          ch,
		Direction:        model.DirectionOutbound,
		Subject:          subject,
		Message:          body,
		SentSuccessfully: ok,
		ExternalID:       externalID,
		Metadata:         map[string]any{"type": kind},
		Timestamp:        o.now().UTC(),
	}
	if err := o.store.AppendCommunication(ctx, entry); err != nil {
		o.log.Errorf("log %s: %v", kind, err)
	}
}
