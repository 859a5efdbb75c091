// Package ai implements message understanding and generation on the OpenAI
// chat completions API. Without an API key every method degrades to a local
// heuristic so the pipeline still runs end-to-end in development.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"

	"github.com/tavi-ops/dispatchd/core/contact"
	"github.com/tavi-ops/dispatchd/core/conversation"
	"github.com/tavi-ops/dispatchd/core/model"
	"github.com/tavi-ops/dispatchd/infra/logger"
)

// Config holds the OpenAI connection settings.
type Config struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

// SetDefaults applies the default model.
func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = string(openai.ChatModelGPT4oMini)
	}
}

// Client talks to the chat completions API. The zero api field marks offline
// mode.
type Client struct {
	api   *openai.Client
	model openai.ChatModel
	log   logger.Logger
}

// New creates an AI client. Without an API key the client runs offline.
func New(cfg Config, log logger.Logger) *Client {
	cfg.SetDefaults()
	c := &Client{model: openai.ChatModel(cfg.Model), log: log}
	if cfg.APIKey != "" {
		api := openai.NewClient(option.WithAPIKey(cfg.APIKey))
		c.api = &api
	} else {
		log.Warnf("no OpenAI API key configured, using offline heuristics")
	}
	return c
}

// Offline reports whether the client runs without a live API.
func (c *Client) Offline() bool { return c.api == nil }

const extractionSystemPrompt = `You are a service coordinator negotiating trade work quotes with vendors. ` +
	`Given the vendor's latest message, reply with a JSON object containing: ` +
	`"price" (number or null), "availability_days" (integer days until the vendor can start, or null), ` +
	`"duration_hours" (number or null), "response" (your reply to the vendor, short and professional), ` +
	`"needs_human" (boolean, true when the vendor asks something you cannot answer), ` +
	`"reason" (string, why a human is needed), ` +
	`"conversation_complete" (boolean, true when price and availability are both known). ` +
	`Respond with JSON only.`

// Extract parses one vendor message. It never fails the pipeline: any API or
// parse error yields a needs-human result with a polite holding reply.
func (c *Client) Extract(ctx context.Context, req conversation.ExtractionRequest) conversation.ExtractionResult {
	if c.api == nil {
		return extractOffline(req)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Work order: %s work, %q.\n", req.WorkOrder.Trade, req.WorkOrder.Description)
	fmt.Fprintf(&sb, "Channel: %s, automated replies so far: %d.\n", req.Channel, req.TurnCount)
	if len(req.History) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, e := range req.History {
			fmt.Fprintf(&sb, "[%s] %s\n", e.Direction, e.Message)
		}
	}
	fmt.Fprintf(&sb, "Vendor's message: %s", req.Message)

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionSystemPrompt),
			openai.UserMessage(sb.String()),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		c.log.Errorf("chat completion: %v", err)
		return conversation.ExtractionResult{
			NeedsHuman: true,
			Reason:     fmt.Sprintf("extraction failed: %v", err),
			Response:   "Thank you for your response. We will review and get back to you shortly.",
		}
	}
	if len(resp.Choices) == 0 {
		return conversation.ExtractionResult{
			NeedsHuman: true,
			Reason:     "empty completion",
			Response:   "Thank you for your response. We will review and get back to you shortly.",
		}
	}
	return decodeExtraction(resp.Choices[0].Message.Content)
}

// decodeExtraction maps the model's JSON reply onto an ExtractionResult.
// Malformed JSON escalates rather than guessing.
func decodeExtraction(raw string) conversation.ExtractionResult {
	raw = stripFences(raw)
	if !gjson.Valid(raw) {
		return conversation.ExtractionResult{
			NeedsHuman: true,
			Reason:     "unparseable extraction output",
			Response:   "Thank you for your response. We will review and get back to you shortly.",
		}
	}

	res := conversation.ExtractionResult{
		Response:             gjson.Get(raw, "response").String(),
		NeedsHuman:           gjson.Get(raw, "needs_human").Bool(),
		Reason:               gjson.Get(raw, "reason").String(),
		ConversationComplete: gjson.Get(raw, "conversation_complete").Bool(),
	}

	info := &conversation.ExtractedInfo{}
	found := false
	if v := gjson.Get(raw, "price"); v.Exists() && v.Type == gjson.Number {
		p := v.Float()
		info.Price = &p
		found = true
	}
	if v := gjson.Get(raw, "availability_days"); v.Exists() && v.Type == gjson.Number {
		d := int(v.Int())
		info.AvailabilityDays = &d
		found = true
	}
	if v := gjson.Get(raw, "duration_hours"); v.Exists() && v.Type == gjson.Number {
		h := v.Float()
		info.DurationHours = &h
		found = true
	}
	if found {
		res.Info = info
	}
	return res
}

// SearchQueries asks the model for place-search phrases tailored to the work
// order.
func (c *Client) SearchQueries(ctx context.Context, wo model.WorkOrder) ([]string, error) {
	if c.api == nil {
		return nil, fmt.Errorf("ai: offline")
	}

	prompt := fmt.Sprintf(`Generate up to 3 short local-business search queries to find %s vendors for this job: %q. `+
		`Reply with a JSON object {"queries": ["..."]} only.`, wo.Trade, wo.Description)
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion")
	}

	raw := stripFences(resp.Choices[0].Message.Content)
	var queries []string
	for _, q := range gjson.Get(raw, "queries").Array() {
		if s := strings.TrimSpace(q.String()); s != "" {
			queries = append(queries, s)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries in completion")
	}
	return queries, nil
}

// ContactMessage writes the channel-appropriate initial outreach text.
func (c *Client) ContactMessage(ctx context.Context, wo model.WorkOrder, vendorName string, ch model.Channel) (string, error) {
	if c.api == nil {
		return "", fmt.Errorf("ai: offline")
	}

	var style string
	switch ch {
	case model.ChannelSMS:
		style = "a text message under 300 characters"
	case model.ChannelVoice:
		style = "a short spoken script for a phone call"
	default:
		style = "a professional email"
	}
	prompt := fmt.Sprintf(`Write %s to %s asking for a quote on %s work at %s. Job details: %q. Urgency: %s. `+
		`Ask for their rate and availability. Reply with the message text only.`,
		style, vendorName, wo.Trade, wo.Location.Address, wo.Description, wo.Urgency)

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// stripFences removes a markdown code fence the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

var (
	_ conversation.Extractor = (*Client)(nil)
	_ contact.MessageWriter  = (*Client)(nil)
)
