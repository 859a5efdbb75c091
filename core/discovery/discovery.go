// Package discovery finds candidate vendors for a work order via external
// place and review providers, scores them, and seeds pending quotes.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tavi-ops/dispatchd/core/logger"
	"github.com/tavi-ops/dispatchd/core/model"
	"github.com/tavi-ops/dispatchd/core/scoring"
	"github.com/tavi-ops/dispatchd/core/store"
)

// Place is one candidate business returned by a place-search provider.
type Place struct {
	ID          string
	Name        string
	Phone       string
	Email       string
	Website     string
	Address     string
	Latitude    float64
	Longitude   float64
	Rating      float64
	ReviewCount int
}

// Review is secondary review data from an independent provider.
type Review struct {
	BusinessID  string
	Rating      float64
	ReviewCount int
}

// PlaceSearcher queries an external place-search provider.
type PlaceSearcher interface {
	Search(ctx context.Context, query string, loc model.Location, radiusMeters int) ([]Place, error)
}

// ReviewSearcher looks up secondary review data for a business.
type ReviewSearcher interface {
	Lookup(ctx context.Context, name, address string) (*Review, error)
}

// QueryGenerator produces search phrases tailored to the work order. An error
// or a nil generator falls back to the static trade table.
type QueryGenerator interface {
	SearchQueries(ctx context.Context, wo model.WorkOrder) ([]string, error)
}

// Config bounds the discovery step.
type Config struct {
	// RadiusMeters is the driving-radius search bound. Roughly a thirty
	// minute drive at city speed.
	RadiusMeters int `json:"radius_meters"`
	// MaxVendors caps the number of candidates processed per run.
	MaxVendors int `json:"max_vendors"`
	// MaxQueries caps how many generated phrases are searched.
	MaxQueries int `json:"max_queries"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = 20000
	}
	if c.MaxVendors <= 0 {
		c.MaxVendors = 30
	}
	if c.MaxQueries <= 0 {
		c.MaxQueries = 3
	}
}

// Service discovers vendors for work orders.
type Service struct {
	store   store.Store
	places  PlaceSearcher
	reviews ReviewSearcher
	queries QueryGenerator
	cfg     Config
	log     logger.Logger
	now     func() time.Time
}

// NewService creates a discovery service. places, reviews and queries may be
// nil; each absence is handled by the documented fallback.
func NewService(st store.Store, places PlaceSearcher, reviews ReviewSearcher, queries QueryGenerator, cfg Config, log logger.Logger) (*Service, error) {
	if st == nil || log == nil {
		return nil, errors.New("discovery: nil store or logger")
	}
	cfg.SetDefaults()
	return &Service{
		store:   st,
		places:  places,
		reviews: reviews,
		queries: queries,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}, nil
}

// Discover searches for vendors matching the work order's trade, scores them,
// upserts vendor records, creates a pending quote per vendor not already
// quoted, and returns the vendors ordered by quality score descending.
func (s *Service) Discover(ctx context.Context, wo model.WorkOrder) ([]model.Vendor, error) {
	places, err := s.searchPlaces(ctx, wo)
	if err != nil || len(places) == 0 {
		if err != nil {
			s.log.Warnf("place search failed, falling back to mock vendors: %v", err)
		} else {
			s.log.Warnf("no places found for %s, falling back to mock vendors", wo.Trade)
		}
		places = mockPlaces(wo)
	}

	vendors := make([]model.Vendor, 0, len(places))
	for _, p := range places {
		v, err := s.upsertVendor(ctx, p, wo.Trade)
		if err != nil {
			s.log.Errorf("vendor upsert failed for %s: %v", p.Name, err)
			continue
		}
		vendors = append(vendors, v)
		s.log.Debugw("vendor scored", map[string]any{
			"vendor":  v.BusinessName,
			"quality": v.QualityScore,
		})
	}

	sort.SliceStable(vendors, func(i, j int) bool {
		return vendors[i].QualityScore > vendors[j].QualityScore
	})

	for _, v := range vendors {
		if err := s.ensurePendingQuote(ctx, wo.ID, v.ID); err != nil {
			return nil, fmt.Errorf("seed quote for %s: %w", v.BusinessName, err)
		}
	}

	s.log.Infof("discovered %d vendors for work order %s", len(vendors), wo.ID)
	return vendors, nil
}

// searchPlaces runs each search phrase against the place provider and merges
// the results, de-duplicating by provider identifier.
func (s *Service) searchPlaces(ctx context.Context, wo model.WorkOrder) ([]Place, error) {
	if s.places == nil {
		return nil, errors.New("no place searcher configured")
	}

	phrases := s.searchPhrases(ctx, wo)

	seen := make(map[string]struct{})
	var merged []Place
	var lastErr error
	for _, phrase := range phrases {
		results, err := s.places.Search(ctx, phrase, wo.Location, s.cfg.RadiusMeters)
		if err != nil {
			lastErr = err
			s.log.Warnf("place search %q failed: %v", phrase, err)
			continue
		}
		for _, p := range results {
			if p.ID == "" {
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			merged = append(merged, p)
			if len(merged) >= s.cfg.MaxVendors {
				return merged, nil
			}
		}
	}
	if len(merged) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return merged, nil
}

// searchPhrases prefers generated queries and falls back to the static trade
// table when the generator is absent or errors.
func (s *Service) searchPhrases(ctx context.Context, wo model.WorkOrder) []string {
	if s.queries != nil {
		qs, err := s.queries.SearchQueries(ctx, wo)
		if err == nil && len(qs) > 0 {
			if len(qs) > s.cfg.MaxQueries {
				qs = qs[:s.cfg.MaxQueries]
			}
			return qs
		}
		if err != nil {
			s.log.Warnf("query generation failed, using static queries: %v", err)
		}
	}
	base := wo.Trade.SearchQuery()
	return []string{base, "licensed " + base}
}

func (s *Service) upsertVendor(ctx context.Context, p Place, trade model.TradeType) (model.Vendor, error) {
	var review *Review
	if s.reviews != nil {
		r, err := s.reviews.Lookup(ctx, p.Name, p.Address)
		if err != nil {
			s.log.Debugf("review lookup failed for %s: %v", p.Name, err)
		} else {
			review = r
		}
	}

	var yelpRating float64
	var yelpReviews int
	var yelpID string
	if review != nil {
		yelpRating = review.Rating
		yelpReviews = review.ReviewCount
		yelpID = review.BusinessID
	}

	quality := scoring.VendorQuality(p.Rating, p.ReviewCount, yelpRating, yelpReviews)

	existing, err := s.store.FindVendorByPhone(ctx, p.Phone)
	if errors.Is(err, store.ErrNotFound) {
		existing, err = s.store.FindVendorByPlaceID(ctx, p.ID)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.Vendor{}, err
	}

	v := existing
	if errors.Is(err, store.ErrNotFound) {
		v = model.Vendor{ID: uuid.New(), CreatedAt: s.now().UTC()}
	}
	v.BusinessName = p.Name
	v.Phone = p.Phone
	v.Email = p.Email
	v.Website = p.Website
	v.Address = p.Address
	v.Latitude = p.Latitude
	v.Longitude = p.Longitude
	v.GoogleRating = p.Rating
	v.GoogleReviewCount = p.ReviewCount
	v.YelpRating = yelpRating
	v.YelpReviewCount = yelpReviews
	v.GooglePlaceID = p.ID
	v.YelpBusinessID = yelpID
	v.QualityScore = quality
	if !hasTrade(v.TradeSpecialties, trade) {
		v.TradeSpecialties = append(v.TradeSpecialties, trade)
	}

	if err := s.store.PutVendor(ctx, v); err != nil {
		return model.Vendor{}, err
	}
	return v, nil
}

// ensurePendingQuote creates a pending quote unless one already exists for
// the (work order, vendor) pair.
func (s *Service) ensurePendingQuote(ctx context.Context, workOrderID, vendorID uuid.UUID) error {
	_, err := s.store.QuoteForPair(ctx, workOrderID, vendorID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return s.store.PutQuote(ctx, model.Quote{
		ID:          uuid.New(),
		WorkOrderID: workOrderID,
		VendorID:    vendorID,
		Status:      model.QuotePending,
		Currency:    "USD",
		CreatedAt:   s.now().UTC(),
	})
}

func hasTrade(specialties []model.TradeType, t model.TradeType) bool {
	for _, s := range specialties {
		if s == t {
			return true
		}
	}
	return false
}
