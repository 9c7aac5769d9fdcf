package handler

import (
	"encoding/json"
	"net/http"

	"ryxel/internal/model"
	"ryxel/internal/service"

	"github.com/rs/zerolog"
)

// DiscountHandler handles staff-side discount administration.
type DiscountHandler struct {
	discounts service.DiscountService
	logger    zerolog.Logger
}

// NewDiscountHandler creates a new discount handler.
func NewDiscountHandler(discounts service.DiscountService, logger zerolog.Logger) *DiscountHandler {
	return &DiscountHandler{
		discounts: discounts,
		logger:    logger.With().Str("handler", "discount").Logger(),
	}
}

// GetByCode handles GET /api/discounts/{code}.
func (h *DiscountHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	d, err := h.discounts.GetByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// Update handles PATCH /api/discounts/{code}. Only the fields present
// in the body are applied.
func (h *DiscountHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd model.DiscountUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeBadRequest(w, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	code := r.PathValue("code")
	if err := h.discounts.Update(r.Context(), code, upd); err != nil {
		writeError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}
