// Package payment integrates with the external payment gateway:
// checkout session creation, direct session queries for
// reconciliation, refunds, and webhook signature verification.
package payment

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

// Session is a gateway checkout session. PaymentID and Paid are only
// meaningful once the gateway has processed a charge.
type Session struct {
	ID          string `json:"id"`
	RedirectURL string `json:"redirectUrl"`
	PaymentID   string `json:"paymentId"`
	Amount      int64  `json:"amount"`
	Paid        bool   `json:"paid"`
}

// Event is a verified payment webhook payload.
type Event struct {
	OrderCode string `json:"orderCode"`
	SessionID string `json:"sessionId"`
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount"`
	Paid      bool   `json:"paid"`
}

// Gateway talks to the payment gateway's API.
type Gateway interface {
	// CreateCheckoutSession opens a gateway checkout session for an
	// unpaid order and returns the redirect URL for the client.
	CreateCheckoutSession(ctx context.Context, order *model.Order, items []model.OrderItem, successURL string) (*Session, error)

	// FindSessionByOrderCode queries the gateway directly for the most
	// recent session correlated to the order. Returns nil when the
	// gateway knows of none. Used by reconciliation to cover missed
	// webhooks.
	FindSessionByOrderCode(ctx context.Context, orderCode string) (*Session, error)

	// Refund refunds the given amount against a payment.
	Refund(ctx context.Context, paymentID string, amount int64) error
}

// httpGateway implements Gateway against the gateway's HTTP API.
type httpGateway struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	logger  zerolog.Logger
}

// Config holds payment gateway client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewGateway creates a payment gateway HTTP client.
func NewGateway(cfg Config, logger zerolog.Logger) Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpGateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		hc:      &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "payment-gateway").Logger(),
	}
}

// CreateCheckoutSession opens a checkout session for the order.
func (g *httpGateway) CreateCheckoutSession(ctx context.Context, order *model.Order, items []model.OrderItem, successURL string) (*Session, error) {
	lineItems := make([]map[string]any, len(items))
	for i, item := range items {
		lineItems[i] = map[string]any{
			"variant_id": item.VariantID,
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice,
		}
	}

	payload := map[string]any{
		"client_reference_id": order.OrderCode,
		"amount":              order.Total,
		"line_items":          lineItems,
		"success_url":         successURL,
	}

	var out struct {
		ID          string `json:"id"`
		RedirectURL string `json:"url"`
	}

	if err := g.do(ctx, http.MethodPost, "/v1/checkout/sessions", payload, &out); err != nil {
		g.logger.Error().Err(err).Str("order_code", order.OrderCode).Msg("failed to create checkout session")
		return nil, fmt.Errorf("%w: create checkout session: %v", model.ErrExternalService, err)
	}

	g.logger.Info().
		Str("order_code", order.OrderCode).
		Str("session_id", out.ID).
		Msg("checkout session created")

	return &Session{ID: out.ID, RedirectURL: out.RedirectURL, Amount: order.Total}, nil
}

// FindSessionByOrderCode queries the gateway for a session correlated
// to the order code.
func (g *httpGateway) FindSessionByOrderCode(ctx context.Context, orderCode string) (*Session, error) {
	var out struct {
		Sessions []struct {
			ID        string `json:"id"`
			PaymentID string `json:"payment_id"`
			Amount    int64  `json:"amount"`
			Paid      bool   `json:"paid"`
		} `json:"sessions"`
	}

	path := fmt.Sprintf("/v1/checkout/sessions?client_reference_id=%s", orderCode)
	if err := g.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("%w: query checkout sessions: %v", model.ErrExternalService, err)
	}

	if len(out.Sessions) == 0 {
		return nil, nil
	}

	// The gateway returns sessions newest first.
	s := out.Sessions[0]
	return &Session{ID: s.ID, PaymentID: s.PaymentID, Amount: s.Amount, Paid: s.Paid}, nil
}

// Refund refunds the given amount against a payment.
func (g *httpGateway) Refund(ctx context.Context, paymentID string, amount int64) error {
	payload := map[string]any{
		"payment_id": paymentID,
		"amount":     amount,
	}

	if err := g.do(ctx, http.MethodPost, "/v1/refunds", payload, &struct{}{}); err != nil {
		g.logger.Error().
			Err(err).
			Str("payment_id", paymentID).
			Int64("amount", amount).
			Msg("refund failed")
		return fmt.Errorf("%w: refund: %v", model.ErrExternalService, err)
	}

	g.logger.Info().
		Str("payment_id", paymentID).
		Int64("amount", amount).
		Msg("refund issued")

	return nil
}

func (g *httpGateway) do(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.hc.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return nil
}
