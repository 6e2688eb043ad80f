// Package prices fetches spot price series over HTTP and keeps the
// in-memory horizon the scheduler plans against.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/homebatt/homebatt/core/model"
)

// Config defines settings for the spot price source.
type Config struct {
	URL             string        `json:"url"`
	Token           string        `json:"token"`
	Timeout         time.Duration `json:"timeout"`
	RefreshInterval time.Duration `json:"refresh_interval"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = time.Hour
	}
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("prices: url is required")
	}
	return nil
}

// pricePoint is one slot of the provider response.
type pricePoint struct {
	StartsAt time.Time `json:"startsAt"`
	Total    float64   `json:"total"`
	Energy   float64   `json:"energy"`
	Tax      float64   `json:"tax"`
}

// Client retrieves upcoming spot prices from an HTTP endpoint.
type Client struct {
	url    string
	token  string
	client *http.Client
}

// NewClient creates a client for the configured endpoint.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		url:    cfg.URL,
		token:  cfg.Token,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Fetch retrieves the published price horizon and converts it into an
// ordered interval series.
func (c *Client) Fetch(ctx context.Context) ([]model.PriceInterval, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	var points []pricePoint
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		return nil, fmt.Errorf("failed to decode prices: %w", err)
	}
	return toIntervals(points), nil
}

// toIntervals converts provider points into an ordered interval series.
// Slot indexes derive from the slot start time so gaps in the feed stay
// visible to the scheduler.
func toIntervals(points []pricePoint) []model.PriceInterval {
	intervals := make([]model.PriceInterval, 0, len(points))
	for _, p := range points {
		if p.StartsAt.IsZero() {
			continue
		}
		start := p.StartsAt.Truncate(model.IntervalDuration)
		intervals = append(intervals, model.PriceInterval{
			StartsAt:      start,
			Total:         p.Total,
			Index:         int(start.Unix() / int64(model.IntervalDuration.Seconds())),
			IntervalOfDay: model.SlotOfDay(start),
		})
	}
	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].StartsAt.Before(intervals[j].StartsAt)
	})
	return intervals
}
