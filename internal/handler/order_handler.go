package handler

import (
	"encoding/json"
	"net/http"

	"ryxel/internal/model"
	"ryxel/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// userIDHeader carries the authenticated user set by the edge proxy.
const userIDHeader = "X-User-ID"

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	checkout service.CheckoutService
	orders   service.OrderService
	payments service.PaymentService
	logger   zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(
	checkout service.CheckoutService,
	orders service.OrderService,
	payments service.PaymentService,
	logger zerolog.Logger,
) *OrderHandler {
	return &OrderHandler{
		checkout: checkout,
		orders:   orders,
		payments: payments,
		logger:   logger.With().Str("handler", "order").Logger(),
	}
}

// userID extracts the authenticated user from the request, or reports
// failure after writing the error response.
func (h *OrderHandler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		writeBadRequest(w, model.ErrCodeUnauthorised, "user identity missing", h.logger)
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		writeBadRequest(w, model.ErrCodeUnauthorised, "user identity malformed", h.logger)
		return uuid.Nil, false
	}

	return id, true
}

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req model.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	resp, err := h.checkout.CreateOrder(r.Context(), userID, &req)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /api/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// GetByCode handles GET /api/orders/{code}.
func (h *OrderHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	resp, err := h.orders.GetByCode(r.Context(), userID, r.PathValue("code"))
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Cancel handles POST /api/orders/{code}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	code := r.PathValue("code")
	if err := h.orders.CancelByUser(r.Context(), userID, code); err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"orderCode": code, "status": string(model.StatusCancelled)})
}

// InitiateCheckout handles POST /api/orders/{code}/checkout.
func (h *OrderHandler) InitiateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	session, err := h.payments.InitiateCheckout(r.Context(), userID, r.PathValue("code"))
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"checkoutId":  session.ID,
		"redirectUrl": session.RedirectURL,
	})
}

// AdvanceStatus handles PATCH /api/orders/{code}/status. Staff only;
// the route sits behind the API key like the rest of the API surface.
func (h *OrderHandler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.OrderStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if !req.Status.IsValid() {
		writeBadRequest(w, model.ErrCodeValidation, "unknown order status", h.logger)
		return
	}

	code := r.PathValue("code")
	if err := h.orders.AdvanceStatus(r.Context(), code, req.Status); err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"orderCode": code, "status": string(req.Status)})
}
