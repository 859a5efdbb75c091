// Package scoring computes vendor quality scores and quote composite scores.
// All functions are pure; the rest of the pipeline calls in here whenever a
// review rating or a quote field changes.
package scoring

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/tavi-ops/dispatchd/core/model"
)

const (
	// reviewConfidence is the review count at which a source's raw rating
	// and the baseline carry equal weight.
	reviewConfidence = 25.0
	// baselineRating is the conservative prior on the 0-5 review scale.
	baselineRating = 3.5

	googleWeight = 0.6
	yelpWeight   = 0.4

	priceWeight        = 0.4
	qualityWeight      = 0.4
	availabilityWeight = 0.2

	// DefaultQualityScore is used on the 0-100 scale when the vendor has no
	// quality score yet.
	DefaultQualityScore = 50.0
)

// bayesian shrinks a raw 0-5 rating toward the baseline until the review
// volume earns it back. A vendor with 2 five-star reviews must not outrank
// one with 300 reviews at 4.0.
func bayesian(rating float64, reviews int) float64 {
	v := float64(reviews)
	return (v/(v+reviewConfidence))*rating + (reviewConfidence/(v+reviewConfidence))*baselineRating
}

// VendorQuality combines Google and Yelp review data into a 0-10 score.
// A missing source (rating 0) is skipped; with neither source the baseline
// applies.
func VendorQuality(googleRating float64, googleReviews int, yelpRating float64, yelpReviews int) float64 {
	var g, y float64
	if googleRating > 0 {
		g = bayesian(googleRating, googleReviews)
	}
	if yelpRating > 0 {
		y = bayesian(yelpRating, yelpReviews)
	}

	var combined float64
	switch {
	case g > 0 && y > 0:
		combined = g*googleWeight + y*yelpWeight
	case g > 0:
		combined = g
	case y > 0:
		combined = y
	default:
		combined = baselineRating
	}
	return combined * 2
}

// PriceScore maps a price to a 0-100 score with linear decay; lower price
// scores higher.
func PriceScore(price float64) float64 {
	s := 100 - price/10
	if s < 0 {
		return 0
	}
	return s
}

// AvailabilityScore maps days-until-available to a 0-100 score; sooner
// scores higher.
func AvailabilityScore(daysUntilAvailable int) float64 {
	s := 100 - 5*float64(daysUntilAvailable)
	if s < 0 {
		return 0
	}
	return s
}

// QualityScore100 rescales a 0-10 vendor quality score to 0-100. A nil input
// yields DefaultQualityScore.
func QualityScore100(quality10 *float64) float64 {
	if quality10 == nil {
		return DefaultQualityScore
	}
	return *quality10 * 10
}

// Composite computes the weighted mean of the sub-scores that are present
// (weights price 0.4, quality 0.4, availability 0.2). The weights are
// renormalized over the present components, so a missing sub-score degrades
// gracefully instead of counting as zero. Returns nil when every sub-score
// is missing.
func Composite(price, quality, availability *float64) *float64 {
	var scores, weights []float64
	if price != nil {
		scores = append(scores, *price)
		weights = append(weights, priceWeight)
	}
	if quality != nil {
		scores = append(scores, *quality)
		weights = append(weights, qualityWeight)
	}
	if availability != nil {
		scores = append(scores, *availability)
		weights = append(weights, availabilityWeight)
	}
	if len(scores) == 0 {
		return nil
	}
	c := stat.Mean(scores, weights)
	return &c
}

// RescoreQuote recomputes the quote's component and composite scores from its
// current fields and the owning vendor's quality score.
func RescoreQuote(q *model.Quote, vendor model.Vendor, now time.Time) {
	if q.Price != nil {
		ps := PriceScore(*q.Price)
		q.PriceScore = &ps
	}
	qs := DefaultQualityScore
	if vendor.QualityScore > 0 {
		qs = QualityScore100(&vendor.QualityScore)
	}
	q.QualityScore = &qs
	if q.AvailabilityDate != nil {
		days := int(q.AvailabilityDate.Sub(now).Hours() / 24)
		as := AvailabilityScore(days)
		q.AvailabilityScore = &as
	}
	q.CompositeScore = Composite(q.PriceScore, q.QualityScore, q.AvailabilityScore)
}
