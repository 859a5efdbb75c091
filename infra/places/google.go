// Package places implements the external vendor lookup providers: Google
// Places for candidate businesses and Yelp for secondary review data.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tavi-ops/dispatchd/core/discovery"
	"github.com/tavi-ops/dispatchd/core/model"
	"github.com/tavi-ops/dispatchd/infra/logger"
)

const googleBaseURL = "https://maps.googleapis.com/maps/api/place"

// GoogleConfig holds the Google Places credentials.
type GoogleConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// GoogleClient queries the Google Places text search API.
type GoogleClient struct {
	cfg    GoogleConfig
	client *http.Client
	log    logger.Logger
}

// NewGoogleClient creates a Places client.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = googleBaseURL
	}
	return &GoogleClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger.New("google-places"),
	}
}

type googleSearchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID          string  `json:"place_id"`
		Name             string  `json:"name"`
		FormattedAddress string  `json:"formatted_address"`
		Rating           float64 `json:"rating"`
		UserRatingsTotal int     `json:"user_ratings_total"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type googleDetailsResponse struct {
	Status string `json:"status"`
	Result struct {
		FormattedPhoneNumber string `json:"formatted_phone_number"`
		Website              string `json:"website"`
	} `json:"result"`
}

// Search runs a text search around the work order location.
func (g *GoogleClient) Search(ctx context.Context, query string, loc model.Location, radiusMeters int) ([]discovery.Place, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("radius", fmt.Sprintf("%d", radiusMeters))
	q.Set("key", g.cfg.APIKey)
	if loc.Latitude != 0 || loc.Longitude != 0 {
		q.Set("location", fmt.Sprintf("%f,%f", loc.Latitude, loc.Longitude))
	} else if loc.Address != "" {
		q.Set("query", query+" near "+loc.Address)
	}

	var resp googleSearchResponse
	if err := g.get(ctx, g.cfg.BaseURL+"/textsearch/json?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places search status %s", resp.Status)
	}

	places := make([]discovery.Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		p := discovery.Place{
			ID:          r.PlaceID,
			Name:        r.Name,
			Address:     r.FormattedAddress,
			Rating:      r.Rating,
			ReviewCount: r.UserRatingsTotal,
			Latitude:    r.Geometry.Location.Lat,
			Longitude:   r.Geometry.Location.Lng,
		}
		g.fillDetails(ctx, &p)
		places = append(places, p)
	}
	return places, nil
}

// fillDetails fetches phone and website for one place. Detail failures leave
// the place usable without contact data.
func (g *GoogleClient) fillDetails(ctx context.Context, p *discovery.Place) {
	q := url.Values{}
	q.Set("place_id", p.ID)
	q.Set("fields", "formatted_phone_number,website")
	q.Set("key", g.cfg.APIKey)

	var resp googleDetailsResponse
	if err := g.get(ctx, g.cfg.BaseURL+"/details/json?"+q.Encode(), &resp); err != nil {
		g.log.Warnf("place details for %s: %v", p.Name, err)
		return
	}
	if resp.Status != "OK" {
		return
	}
	p.Phone = resp.Result.FormattedPhoneNumber
	p.Website = resp.Result.Website
}

func (g *GoogleClient) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	res, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("places api status %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

var _ discovery.PlaceSearcher = (*GoogleClient)(nil)
