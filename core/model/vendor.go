package model

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is a third-party service provider candidate.
type Vendor struct {
	ID           uuid.UUID
	BusinessName string
	Phone        string
	Email        string
	Website      string
	Address      string
	Latitude     float64
	Longitude    float64

	TradeSpecialties []TradeType

	GoogleRating      float64
	GoogleReviewCount int
	YelpRating        float64
	YelpReviewCount   int

	// QualityScore is the Bayesian-shrunk review score on a 0-10 scale.
	QualityScore float64

	GooglePlaceID  string
	YelpBusinessID string

	LastContactedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasChannel reports whether the vendor is reachable on the given channel.
func (v Vendor) HasChannel(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return v.Email != ""
	case ChannelSMS, ChannelVoice:
		return v.Phone != ""
	}
	return false
}
