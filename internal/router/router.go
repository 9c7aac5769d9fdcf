package router

import (
	"net/http"

	"ryxel/internal/handler"
	"ryxel/internal/middleware"

	"github.com/rs/zerolog"
)

// New creates the HTTP router with all routes and middleware configured.
func New(
	orderHandler *handler.OrderHandler,
	discountHandler *handler.DiscountHandler,
	webhookHandler *handler.WebhookHandler,
	apiKey string,
	logger zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	mux.HandleFunc("POST /api/orders", orderHandler.Create)
	mux.HandleFunc("GET /api/orders", orderHandler.List)
	mux.HandleFunc("GET /api/orders/{code}", orderHandler.GetByCode)
	mux.HandleFunc("POST /api/orders/{code}/cancel", orderHandler.Cancel)
	mux.HandleFunc("POST /api/orders/{code}/checkout", orderHandler.InitiateCheckout)
	mux.HandleFunc("PATCH /api/orders/{code}/status", orderHandler.AdvanceStatus)

	mux.HandleFunc("GET /api/discounts/{code}", discountHandler.GetByCode)
	mux.HandleFunc("PATCH /api/discounts/{code}", discountHandler.Update)

	// Webhook callbacks are exempt from API key auth in the middleware:
	// the payment route is HMAC-verified, the shipping route trusts the
	// carrier ingress allow list.
	mux.HandleFunc("POST /webhooks/payment", webhookHandler.Payment)
	mux.HandleFunc("POST /webhooks/shipping", webhookHandler.Shipping)

	// Apply middleware in order: Recovery -> Logging -> CORS -> APIKeyAuth
	var h http.Handler = mux
	h = middleware.APIKeyAuth(apiKey, logger)(h)
	h = middleware.CORS(h)
	h = middleware.Logging(logger)(h)
	h = middleware.Recovery(logger)(h)

	return h
}
