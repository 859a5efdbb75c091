package ai

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tavi-ops/dispatchd/core/conversation"
)

var (
	priceRe    = regexp.MustCompile(`\$\s*([0-9]+(?:,[0-9]{3})*(?:\.[0-9]{1,2})?)`)
	daysRe     = regexp.MustCompile(`(?i)(?:in|within)\s+([0-9]+)\s+days?|([0-9]+)\s+days?\s+out`)
	hoursRe    = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s+hours?`)
	tomorrowRe = regexp.MustCompile(`(?i)\btomorrow\b`)
	todayRe    = regexp.MustCompile(`(?i)\btoday\b|\bright away\b|\bimmediately\b`)
)

// extractOffline parses vendor messages with plain patterns. It covers the
// formats vendors actually use for price and timing; anything it cannot place
// still yields a usable reply.
func extractOffline(req conversation.ExtractionRequest) conversation.ExtractionResult {
	info := &conversation.ExtractedInfo{}
	found := false

	if m := priceRe.FindStringSubmatch(req.Message); m != nil {
		if p, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			info.Price = &p
			found = true
		}
	}

	switch {
	case todayRe.MatchString(req.Message):
		d := 0
		info.AvailabilityDays = &d
		found = true
	case tomorrowRe.MatchString(req.Message):
		d := 1
		info.AvailabilityDays = &d
		found = true
	default:
		if m := daysRe.FindStringSubmatch(req.Message); m != nil {
			s := m[1]
			if s == "" {
				s = m[2]
			}
			if d, err := strconv.Atoi(s); err == nil {
				info.AvailabilityDays = &d
				found = true
			}
		}
	}

	if m := hoursRe.FindStringSubmatch(req.Message); m != nil {
		if h, err := strconv.ParseFloat(m[1], 64); err == nil {
			info.DurationHours = &h
			found = true
		}
	}

	res := conversation.ExtractionResult{}
	if found {
		res.Info = info
	}

	switch {
	case info.Price != nil && info.AvailabilityDays != nil:
		res.ConversationComplete = true
		res.Response = "Thank you, we have everything we need. Our team will review your quote and follow up shortly."
	case info.Price != nil:
		res.Response = "Thanks for the quote. When would you be available to start?"
	case info.AvailabilityDays != nil:
		res.Response = "Thanks. Could you share your rate for this job?"
	case isQuestion(req.Message):
		res.NeedsHuman = true
		res.Reason = "vendor asked a question the heuristics cannot answer"
		res.Response = "Thank you for your response. We will review and get back to you shortly."
	default:
		res.Response = fmt.Sprintf("Thanks for getting back to us. Could you share your rate and availability for the %s work?", req.WorkOrder.Trade)
	}
	return res
}

func isQuestion(msg string) bool {
	return strings.Contains(msg, "?") && !priceRe.MatchString(msg)
}
