// Package contact solicits quotes from vendors over every channel they are
// reachable on, logging each attempt to the communication log.
package contact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tavi-ops/dispatchd/core/logger"
	"github.com/tavi-ops/dispatchd/core/model"
	"github.com/tavi-ops/dispatchd/core/store"
)

// SendResult reports the outcome of one provider send.
type SendResult struct {
	OK         bool
	ExternalID string
}

// Messenger sends one message on one channel. Implementations without
// provider credentials fall back to a simulated send that still reports
// success, so the pipeline is testable without live integrations.
type Messenger interface {
	Send(ctx context.Context, ch model.Channel, recipient, subject, body string) (SendResult, error)
}

// MessageWriter composes the channel-appropriate outreach text for a vendor.
type MessageWriter interface {
	ContactMessage(ctx context.Context, wo model.WorkOrder, vendorName string, ch model.Channel) (string, error)
}

// Service requests quotes from vendors.
type Service struct {
	store     store.Store
	messenger Messenger
	writer    MessageWriter
	log       logger.Logger
	now       func() time.Time
}

// NewService creates a contact service. writer may be nil; a static template
// is used instead.
func NewService(st store.Store, messenger Messenger, writer MessageWriter, log logger.Logger) (*Service, error) {
	if st == nil || messenger == nil || log == nil {
		return nil, errors.New("contact: nil store, messenger or logger")
	}
	return &Service{store: st, messenger: messenger, writer: writer, log: log, now: time.Now}, nil
}

// RequestQuote marks the quote requested and reaches out to its vendor on
// every available channel. Transport failures are logged, never fatal.
func (s *Service) RequestQuote(ctx context.Context, quoteID uuid.UUID) error {
	q, err := s.store.GetQuote(ctx, quoteID)
	if err != nil {
		return fmt.Errorf("load quote %s: %w", quoteID, err)
	}
	wo, err := s.store.GetWorkOrder(ctx, q.WorkOrderID)
	if err != nil {
		return fmt.Errorf("load work order %s: %w", q.WorkOrderID, err)
	}
	vendor, err := s.store.GetVendor(ctx, q.VendorID)
	if err != nil {
		return fmt.Errorf("load vendor %s: %w", q.VendorID, err)
	}

	now := s.now().UTC()
	q.Status = model.QuoteRequested
	q.RequestedAt = &now
	if err := s.store.PutQuote(ctx, q); err != nil {
		return err
	}

	sent := 0
	for _, ch := range []model.Channel{model.ChannelEmail, model.ChannelSMS, model.ChannelVoice} {
		if !vendor.HasChannel(ch) {
			continue
		}
		if s.sendOn(ctx, ch, wo, vendor) {
			sent++
		}
	}

	vendor.LastContactedAt = &now
	if err := s.store.PutVendor(ctx, vendor); err != nil {
		return err
	}

	s.log.Infof("requested quote %s from %s over %d channel(s)", q.ID, vendor.BusinessName, sent)
	return nil
}

func (s *Service) sendOn(ctx context.Context, ch model.Channel, wo model.WorkOrder, vendor model.Vendor) bool {
	body := s.composeMessage(ctx, wo, vendor, ch)
	subject := ""
	recipient := vendor.Phone
	if ch == model.ChannelEmail {
		recipient = vendor.Email
		subject = fmt.Sprintf("Service Opportunity - %s work", wo.Trade)
	}

	res, err := s.messenger.Send(ctx, ch, recipient, subject, body)
	ok := err == nil && res.OK
	if err != nil {
		s.log.Warnf("%s send to %s failed: %v", ch, vendor.BusinessName, err)
	}

	vendorID := vendor.ID
	entry := model.CommunicationLog{
		ID:               uuid.New(),
		WorkOrderID:      wo.ID,
		VendorID:         &vendorID,
		Channel:          ch,
		Direction:        model.DirectionOutbound,
		Subject:          subject,
		Message:          body,
		SentSuccessfully: ok,
		ExternalID:       res.ExternalID,
		Metadata:         map[string]any{"type": "quote_request"},
		Timestamp:        s.now().UTC(),
	}
	if aerr := s.store.AppendCommunication(ctx, entry); aerr != nil {
		s.log.Errorf("log %s outreach for %s: %v", ch, vendor.BusinessName, aerr)
	}
	return ok
}

func (s *Service) composeMessage(ctx context.Context, wo model.WorkOrder, vendor model.Vendor, ch model.Channel) string {
	if s.writer != nil {
		msg, err := s.writer.ContactMessage(ctx, wo, vendor.BusinessName, ch)
		if err == nil && msg != "" {
			return msg
		}
		if err != nil {
			s.log.Warnf("message generation failed for %s, using template: %v", vendor.BusinessName, err)
		}
	}
	return FallbackMessage(wo, vendor.BusinessName, ch)
}

// FallbackMessage is the static outreach template used when no message
// writer is available.
func FallbackMessage(wo model.WorkOrder, vendorName string, ch model.Channel) string {
	trade := wo.Trade.String()
	loc := wo.Location.Address
	switch ch {
	case model.ChannelSMS:
		return fmt.Sprintf("Hi %s! Need %s work at %s. Available for a quote? Reply with rate & availability.", vendorName, trade, loc)
	case model.ChannelVoice:
		return fmt.Sprintf("Hello, calling about a %s job opportunity at %s. Are you available to provide a quote?", trade, loc)
	default:
		return fmt.Sprintf("Dear %s,\n\nWe have a %s job at %s that needs attention.\n\nDetails:\n%s\n\nCould you provide a quote and your availability?\n", vendorName, trade, loc, wo.Description)
	}
}
