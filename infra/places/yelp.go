package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tavi-ops/dispatchd/core/discovery"
	"github.com/tavi-ops/dispatchd/infra/logger"
)

const yelpBaseURL = "https://api.yelp.com/v3"

// YelpConfig holds the Yelp Fusion credentials.
type YelpConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// YelpClient looks up secondary review data on the Yelp Fusion API.
type YelpClient struct {
	cfg    YelpConfig
	client *http.Client
	log    logger.Logger
}

// NewYelpClient creates a Yelp client.
func NewYelpClient(cfg YelpConfig) *YelpClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = yelpBaseURL
	}
	return &YelpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger.New("yelp"),
	}
}

type yelpSearchResponse struct {
	Businesses []struct {
		ID          string  `json:"id"`
		Rating      float64 `json:"rating"`
		ReviewCount int     `json:"review_count"`
	} `json:"businesses"`
}

// Lookup finds the best Yelp match for a business by name and address. A
// miss returns (nil, nil).
func (y *YelpClient) Lookup(ctx context.Context, name, address string) (*discovery.Review, error) {
	q := url.Values{}
	q.Set("term", name)
	q.Set("location", address)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.cfg.BaseURL+"/businesses/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+y.cfg.APIKey)

	res, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yelp api status %d", res.StatusCode)
	}

	var resp yelpSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, err
	}
	if len(resp.Businesses) == 0 {
		return nil, nil
	}
	b := resp.Businesses[0]
	return &discovery.Review{BusinessID: b.ID, Rating: b.Rating, ReviewCount: b.ReviewCount}, nil
}

var _ discovery.ReviewSearcher = (*YelpClient)(nil)
