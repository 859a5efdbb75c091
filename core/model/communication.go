package model

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies the medium a message was exchanged on.
type Channel int

const (
	ChannelSMS Channel = iota
	ChannelEmail
	ChannelVoice
	ChannelSystem
)

func (c Channel) String() string {
	switch c {
	case ChannelSMS:
		return "sms"
	case ChannelEmail:
		return "email"
	case ChannelVoice:
		return "voice"
	case ChannelSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ParseChannel maps a wire string to its channel. Unrecognized input maps to
// ChannelSystem with ok=false.
func ParseChannel(s string) (Channel, bool) {
	for c := ChannelSMS; c <= ChannelSystem; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return ChannelSystem, false
}

// Direction of a communication entry.
type Direction int

const (
	DirectionOutbound Direction = iota
	DirectionInbound
)

func (d Direction) String() string {
	if d == DirectionInbound {
		return "inbound"
	}
	return "outbound"
}

// CommunicationLog is an immutable append-only record of one message on one
// channel. Conversation turn counts are reconstructed from these entries.
type CommunicationLog struct {
	ID          uuid.UUID
	WorkOrderID uuid.UUID
	VendorID    *uuid.UUID

	Channel   Channel
	Direction Direction
	Subject   string
	Message   string

	// SentSuccessfully is false for escalation entries awaiting a human
	// operator as well as failed provider sends.
	SentSuccessfully bool
	ExternalID       string
	Metadata         map[string]any

	Timestamp time.Time
}
