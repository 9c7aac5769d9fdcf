// Package shipping integrates with the external carrier: fee quotes,
// delivery lead times, and the mapping of the carrier's tracking
// vocabulary onto order statuses.
package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ryxel/internal/model"

	"github.com/rs/zerolog"
)

// Quote is a shipping fee quote for a destination and weight.
type Quote struct {
	Fee       int64 `json:"fee"`
	ServiceID int   `json:"serviceId"`
}

// Client talks to the carrier's pricing and lead-time APIs.
type Client interface {
	// Quote resolves the shipping fee for a destination and shipment weight.
	Quote(ctx context.Context, toDistrictID int, toWardCode string, weightGrams int) (*Quote, error)

	// LeadTime resolves the expected delivery date for a service and destination.
	LeadTime(ctx context.Context, serviceID, toDistrictID int, toWardCode string) (time.Time, error)
}

// httpClient implements Client against the carrier's HTTP API.
type httpClient struct {
	baseURL        string
	token          string
	fromDistrictID int
	hc             *http.Client
	logger         zerolog.Logger
}

// Config holds carrier client configuration.
type Config struct {
	BaseURL        string
	Token          string
	FromDistrictID int
	Timeout        time.Duration
}

// NewClient creates a carrier HTTP client.
func NewClient(cfg Config, logger zerolog.Logger) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		baseURL:        cfg.BaseURL,
		token:          cfg.Token,
		fromDistrictID: cfg.FromDistrictID,
		hc:             &http.Client{Timeout: timeout},
		logger:         logger.With().Str("component", "shipping-client").Logger(),
	}
}

// Quote resolves the shipping fee. Errors are wrapped as
// model.ErrExternalService so a carrier outage fails the enclosing
// checkout without leaking transport details to the caller.
func (c *httpClient) Quote(ctx context.Context, toDistrictID int, toWardCode string, weightGrams int) (*Quote, error) {
	payload := map[string]any{
		"from_district_id": c.fromDistrictID,
		"to_district_id":   toDistrictID,
		"to_ward_code":     toWardCode,
		"weight":           weightGrams,
	}

	var out struct {
		Fee       int64 `json:"fee"`
		ServiceID int   `json:"service_id"`
	}

	if err := c.post(ctx, "/shipping-order/fee", payload, &out); err != nil {
		c.logger.Error().
			Err(err).
			Int("to_district_id", toDistrictID).
			Str("to_ward_code", toWardCode).
			Int("weight_grams", weightGrams).
			Msg("shipping fee quote failed")
		return nil, fmt.Errorf("%w: shipping fee quote: %v", model.ErrExternalService, err)
	}

	c.logger.Debug().
		Int64("fee", out.Fee).
		Int("service_id", out.ServiceID).
		Msg("shipping fee quoted")

	return &Quote{Fee: out.Fee, ServiceID: out.ServiceID}, nil
}

// LeadTime resolves the expected delivery date.
func (c *httpClient) LeadTime(ctx context.Context, serviceID, toDistrictID int, toWardCode string) (time.Time, error) {
	payload := map[string]any{
		"from_district_id": c.fromDistrictID,
		"to_district_id":   toDistrictID,
		"to_ward_code":     toWardCode,
		"service_id":       serviceID,
	}

	var out struct {
		LeadTime int64 `json:"leadtime"` // unix seconds
	}

	if err := c.post(ctx, "/shipping-order/leadtime", payload, &out); err != nil {
		c.logger.Warn().Err(err).Msg("lead time lookup failed")
		return time.Time{}, fmt.Errorf("%w: lead time lookup: %v", model.ErrExternalService, err)
	}

	return time.Unix(out.LeadTime, 0), nil
}

func (c *httpClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Token", c.token)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("carrier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("carrier returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode carrier response: %w", err)
	}

	return nil
}
