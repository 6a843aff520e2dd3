package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/penang-gov/surveillance/internal/shared/config"
	"github.com/penang-gov/surveillance/internal/shared/metrics"
)

// Result is a single geocoding candidate
type Result struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// Client resolves free-text addresses against a Nominatim-compatible service
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a geocoding client from config
func NewClient(cfg config.GeocoderConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// nominatimResult mirrors the upstream response shape; coordinates arrive
// as strings
type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search geocodes a free-text query, biased to Malaysia
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("countrycodes", "my")
	params.Set("limit", "5")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "penang-surveillance/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordGeocodeRequest("error")
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordGeocodeRequest("error")
		return nil, fmt.Errorf("geocoding service returned %d", resp.StatusCode)
	}

	var raw []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		metrics.RecordGeocodeRequest("error")
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lng, lngErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lngErr != nil {
			continue
		}
		results = append(results, Result{
			DisplayName: r.DisplayName,
			Lat:         lat,
			Lng:         lng,
		})
	}

	if len(results) == 0 {
		metrics.RecordGeocodeRequest("miss")
	} else {
		metrics.RecordGeocodeRequest("hit")
	}
	return results, nil
}

// Health probes the geocoding service
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "penang-surveillance/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("geocoding service returned %d", resp.StatusCode)
	}
	return nil
}
