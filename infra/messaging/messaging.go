// Package messaging sends outbound vendor and facility messages. A unified
// HTTP gateway carries all three channels; without a configured gateway the
// simulated sender logs each message and reports success so the pipeline
// works in development.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tavi-ops/dispatchd/core/contact"
	"github.com/tavi-ops/dispatchd/core/model"
	"github.com/tavi-ops/dispatchd/infra/logger"
)

// Config holds messaging gateway settings.
type Config struct {
	GatewayURL string `json:"gateway_url"`
	APIKey     string `json:"api_key"`
	FromEmail  string `json:"from_email"`
	FromPhone  string `json:"from_phone"`
}

// New returns a gateway sender when a gateway is configured, otherwise the
// simulated sender.
func New(cfg Config) contact.Messenger {
	if cfg.GatewayURL != "" {
		return NewGatewaySender(cfg)
	}
	return NewSimulatedSender()
}

// SimulatedSender logs each message and reports success.
type SimulatedSender struct {
	log logger.Logger
	seq atomic.Uint64
}

// NewSimulatedSender creates a simulated sender.
func NewSimulatedSender() *SimulatedSender {
	return &SimulatedSender{log: logger.New("sim-messenger")}
}

// Send pretends to deliver the message.
func (s *SimulatedSender) Send(_ context.Context, ch model.Channel, recipient, subject, body string) (contact.SendResult, error) {
	id := fmt.Sprintf("sim-%s-%d", ch, s.seq.Add(1))
	s.log.Infof("[simulated %s] to=%s subject=%q len=%d", ch, recipient, subject, len(body))
	return contact.SendResult{OK: true, ExternalID: id}, nil
}

// GatewaySender posts messages to a unified messaging gateway.
type GatewaySender struct {
	cfg    Config
	client *http.Client
	log    logger.Logger
}

// NewGatewaySender creates a gateway-backed sender.
func NewGatewaySender(cfg Config) *GatewaySender {
	return &GatewaySender{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger.New("gateway-messenger"),
	}
}

type gatewayRequest struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

type gatewayResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Send delivers one message through the gateway.
func (g *GatewaySender) Send(ctx context.Context, ch model.Channel, recipient, subject, body string) (contact.SendResult, error) {
	from := g.cfg.FromPhone
	if ch == model.ChannelEmail {
		from = g.cfg.FromEmail
	}
	payload, err := json.Marshal(gatewayRequest{
		Channel: ch.String(),
		To:      recipient,
		From:    from,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return contact.SendResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.GatewayURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return contact.SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	res, err := g.client.Do(req)
	if err != nil {
		return contact.SendResult{}, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return contact.SendResult{}, fmt.Errorf("gateway status %d", res.StatusCode)
	}

	var gr gatewayResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return contact.SendResult{}, err
	}
	return contact.SendResult{OK: gr.Status != "failed", ExternalID: gr.ID}, nil
}

var (
	_ contact.Messenger = (*SimulatedSender)(nil)
	_ contact.Messenger = (*GatewaySender)(nil)
)
