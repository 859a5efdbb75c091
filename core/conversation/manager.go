// Package conversation manages turn-bounded vendor negotiations. Each inbound
// vendor message is parsed for quote details, answered automatically while the
// channel's turn budget allows, and escalated to a human operator otherwise.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tavi-ops/dispatchd/core/logger"
	"github.com/tavi-ops/dispatchd/core/metrics"
	"github.com/tavi-ops/dispatchd/core/model"
	"github.com/tavi-ops/dispatchd/core/scoring"
	"github.com/tavi-ops/dispatchd/core/store"
)

// ExtractedInfo carries quote fields parsed out of a vendor message. A nil
// field means the message did not mention it.
type ExtractedInfo struct {
	Price            *float64
	AvailabilityDays *int
	DurationHours    *float64
}

// ExtractionRequest is everything the extractor sees for one inbound message.
type ExtractionRequest struct {
	Message   string
	History   []model.CommunicationLog
	WorkOrder model.WorkOrder
	Vendor    model.Vendor
	Channel   model.Channel
	// TurnCount is the number of outbound messages already sent on this
	// channel, the initial quote request included.
	TurnCount int
}

// ExtractionResult is the extractor's verdict on one inbound message.
type ExtractionResult struct {
	Info *ExtractedInfo
	// Response is the suggested reply. When NeedsHuman is set it is a draft
	// for the operator, otherwise it is sent as-is.
	Response string
	// NeedsHuman requests escalation instead of an automated reply.
	NeedsHuman bool
	Reason     string
	// ConversationComplete marks the negotiation finished; no further
	// automated replies go out on this channel.
	ConversationComplete bool
}

// Extractor parses vendor messages. Implementations must not fail the
// pipeline: on any internal error they return a NeedsHuman result instead.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) ExtractionResult
}

// TurnCaps bounds the number of outbound messages per channel. The initial
// quote request counts against the cap.
type TurnCaps map[model.Channel]int

// DefaultTurnCaps reflects how much back-and-forth each medium tolerates.
func DefaultTurnCaps() TurnCaps {
	return TurnCaps{
		model.ChannelSMS:   2,
		model.ChannelEmail: 3,
		model.ChannelVoice: 1,
	}
}

const closingMessage = "Thank you for the information. Our team will review your quote and follow up with next steps."

// Manager handles inbound vendor messages for in-flight quotes.
type Manager struct {
	store     store.Store
	extractor Extractor
	caps      TurnCaps
	sink      metrics.MetricsSink
	log       logger.Logger
	now       func() time.Time
}

// NewManager creates a conversation manager. caps may be nil to use
// DefaultTurnCaps; sink may be nil for no observability.
func NewManager(st store.Store, extractor Extractor, caps TurnCaps, sink metrics.MetricsSink, log logger.Logger) (*Manager, error) {
	if st == nil || extractor == nil || log == nil {
		return nil, errors.New("conversation: nil store, extractor or logger")
	}
	if caps == nil {
		caps = DefaultTurnCaps()
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Manager{store: st, extractor: extractor, caps: caps, sink: sink, log: log, now: time.Now}, nil
}

// HandleInbound processes one vendor message against a quote. The inbound
// entry is always logged; what follows depends on the turn budget and the
// extractor's verdict.
func (m *Manager) HandleInbound(ctx context.Context, quoteID uuid.UUID, ch model.Channel, subject, message string) error {
	q, err := m.store.GetQuote(ctx, quoteID)
	if err != nil {
		return fmt.Errorf("load quote %s: %w", quoteID, err)
	}
	wo, err := m.store.GetWorkOrder(ctx, q.WorkOrderID)
	if err != nil {
		return fmt.Errorf("load work order %s: %w", q.WorkOrderID, err)
	}
	vendor, err := m.store.GetVendor(ctx, q.VendorID)
	if err != nil {
		return fmt.Errorf("load vendor %s: %w", q.VendorID, err)
	}

	history, err := m.store.ChannelHistory(ctx, wo.ID, vendor.ID, ch)
	if err != nil {
		return fmt.Errorf("load channel history: %w", err)
	}
	turns := outboundTurns(history)

	if err := m.logEntry(ctx, wo.ID, vendor.ID, ch, model.DirectionInbound, subject, message, true, nil); err != nil {
		return err
	}

	// Over budget: close out with a fixed message, no extraction.
	if cap, ok := m.caps[ch]; ok && turns >= cap {
		m.log.Infof("turn cap reached for %s on %s (%d turns), closing conversation", vendor.BusinessName, ch, turns)
		return m.logEntry(ctx, wo.ID, vendor.ID, ch, model.DirectionOutbound, "", closingMessage, true,
			map[string]any{"type": "turn_cap_closing"})
	}

	res := m.extractor.Extract(ctx, ExtractionRequest{
		Message:   message,
		History:   history,
		WorkOrder: wo,
		Vendor:    vendor,
		Channel:   ch,
		TurnCount: turns,
	})

	if res.Info != nil {
		if err := m.applyInfo(ctx, q, vendor, ch, res.Info); err != nil {
			return err
		}
	}

	if res.NeedsHuman {
		m.log.Warnf("escalating conversation with %s on %s: %s", vendor.BusinessName, ch, res.Reason)
		if rec, ok := m.sink.(metrics.EscalationRecorder); ok {
			if err := rec.RecordEscalation(metrics.EscalationEvent{
				WorkOrderID: wo.ID,
				VendorID:    vendor.ID,
				Channel:     ch.String(),
				Reason:      res.Reason,
				Time:        m.now(),
			}); err != nil {
				m.log.Warnf("record escalation: %v", err)
			}
		}
		return m.logEntry(ctx, wo.ID, vendor.ID, ch, model.DirectionOutbound, "", res.Response, false,
			map[string]any{"type": "escalation", "reason": res.Reason})
	}

	if res.ConversationComplete {
		m.log.Infof("conversation with %s on %s complete", vendor.BusinessName, ch)
		if res.Response == "" {
			return nil
		}
	}

	if res.Response == "" {
		return nil
	}
	return m.logEntry(ctx, wo.ID, vendor.ID, ch, model.DirectionOutbound, "", res.Response, true,
		map[string]any{"type": "auto_reply"})
}

// applyInfo merges extracted fields into the quote, rescoring it and marking
// it received once any detail lands.
func (m *Manager) applyInfo(ctx context.Context, q model.Quote, vendor model.Vendor, ch model.Channel, info *ExtractedInfo) error {
	now := m.now().UTC()
	updated := false
	if info.Price != nil {
		q.Price = info.Price
		updated = true
	}
	if info.AvailabilityDays != nil {
		d := now.AddDate(0, 0, *info.AvailabilityDays)
		q.AvailabilityDate = &d
		updated = true
	}
	if info.DurationHours != nil {
		q.EstimatedDurationHours = info.DurationHours
		updated = true
	}
	if !updated {
		return nil
	}

	if q.Status == model.QuotePending || q.Status == model.QuoteRequested {
		q.Status = model.QuoteReceived
	}
	if q.ReceivedAt == nil {
		q.ReceivedAt = &now
	}
	scoring.RescoreQuote(&q, vendor, now)
	if err := m.store.PutQuote(ctx, q); err != nil {
		return fmt.Errorf("update quote %s: %w", q.ID, err)
	}
	if rec, ok := m.sink.(metrics.QuoteRecorder); ok {
		ev := metrics.QuoteEvent{
			WorkOrderID: q.WorkOrderID,
			VendorID:    q.VendorID,
			Channel:     ch.String(),
			Time:        now,
		}
		if q.Price != nil {
			ev.Price = *q.Price
		}
		if q.CompositeScore != nil {
			ev.Composite = *q.CompositeScore
		}
		if err := rec.RecordQuote(ev); err != nil {
			m.log.Warnf("record quote: %v", err)
		}
	}
	m.log.Debugf("quote %s updated from %s reply", q.ID, vendor.BusinessName)
	return nil
}

func (m *Manager) logEntry(ctx context.Context, woID, vendorID uuid.UUID, ch model.Channel, dir model.Direction, subject, message string, sent bool, meta map[string]any) error {
	entry := model.CommunicationLog{
		ID:               uuid.New(),
		WorkOrderID:      woID,
		VendorID:         &vendorID,
		Channel:          ch,
		Direction:        dir,
		Subject:          subject,
		Message:          message,
		SentSuccessfully: sent,
		Metadata:         meta,
		Timestamp:        m.now().UTC(),
	}
	if err := m.store.AppendCommunication(ctx, entry); err != nil {
		return fmt.Errorf("append communication: %w", err)
	}
	return nil
}

// outboundTurns counts successfully sent outbound messages in a channel
// history, the initial quote request included. Escalation drafts and failed
// sends do not consume the budget.
func outboundTurns(history []model.CommunicationLog) int {
	n := 0
	for _, e := range history {
		if e.Direction == model.DirectionOutbound && e.SentSuccessfully {
			n++
		}
	}
	return n
}
