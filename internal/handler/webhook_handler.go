package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"ryxel/internal/model"
	"ryxel/internal/service"

	"github.com/rs/zerolog"
)

// signatureHeader carries the gateway's HMAC over the raw request body.
const signatureHeader = "X-Gateway-Signature"

// maxWebhookBody bounds how much of a webhook body is read.
const maxWebhookBody = 1 << 20

// WebhookHandler receives payment gateway and carrier callbacks.
type WebhookHandler struct {
	payments service.PaymentService
	orders   service.OrderService
	logger   zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(payments service.PaymentService, orders service.OrderService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		payments: payments,
		orders:   orders,
		logger:   logger.With().Str("handler", "webhook").Logger(),
	}
}

// Payment handles POST /webhooks/payment. The gateway redelivers on
// anything but 2xx, so every durably evaluated outcome returns 200;
// only a bad signature earns a 400.
func (h *WebhookHandler) Payment(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeBadRequest(w, model.ErrCodeValidation, "unable to read request body", h.logger)
		return
	}

	err = h.payments.ProcessWebhook(r.Context(), payload, r.Header.Get(signatureHeader))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"received": "ok"})
	case errors.Is(err, model.ErrInvalidSignature):
		writeError(w, err, h.logger)
	default:
		// Transient failure; ask the gateway to redeliver.
		writeError(w, err, h.logger)
	}
}

// Shipping handles POST /webhooks/shipping. The carrier offers no
// signature scheme; the route is reachable only through the private
// ingress that terminates the carrier's static IP allow list.
func (h *WebhookHandler) Shipping(w http.ResponseWriter, r *http.Request) {
	var ev model.CarrierEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&ev); err != nil {
		writeBadRequest(w, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if ev.OrderCode == "" {
		writeBadRequest(w, model.ErrCodeValidation, "orderCode is required", h.logger)
		return
	}

	err := h.orders.ApplyCarrierEvent(r.Context(), ev)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"received": "ok"})
	case errors.Is(err, model.ErrOrderNotFound):
		// The carrier tracks shipments we do not know; redelivery would
		// not help.
		h.logger.Warn().
			Str("order_code", ev.OrderCode).
			Str("carrier_status", ev.Status).
			Msg("carrier event for unknown order")
		writeJSON(w, http.StatusOK, map[string]string{"received": "ok"})
	default:
		writeError(w, err, h.logger)
	}
}
