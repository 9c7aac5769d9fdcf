package service

import (
	"context"

	"ryxel/internal/model"
	"ryxel/internal/payment"

	"github.com/google/uuid"
)

// CheckoutService builds durable orders from cart requests.
type CheckoutService interface {
	// CreateOrder atomically reserves stock, snapshots prices, resolves
	// the shipping fee, consumes the discount and persists the order.
	// On any failure nothing is persisted and no stock is taken.
	CreateOrder(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.OrderResponse, error)
}

// OrderService owns every transition of the order state machine.
type OrderService interface {
	// GetByCode retrieves an order with items and history. When userID
	// is non-nil the order must belong to that user.
	GetByCode(ctx context.Context, userID uuid.UUID, code string) (*model.OrderResponse, error)

	// ListByUser retrieves a user's orders, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)

	// CancelByUser cancels the user's own order. Permitted only while
	// the order is unpaid or pending and within 30 minutes of creation.
	// Restores stock for every line item.
	CancelByUser(ctx context.Context, userID uuid.UUID, code string) error

	// CancelBySystem cancels on behalf of staff or a reconciliation
	// job: no time limit, stock restored.
	CancelBySystem(ctx context.Context, code, description string) error

	// AdvanceStatus drives the staff-side monotonic advance
	// pending -> processing -> shipped -> delivered.
	AdvanceStatus(ctx context.Context, code string, next model.OrderStatus) error

	// MarkPaid is the single paid transition: it records the checkout
	// info and moves unpaid -> pending. Idempotent: an order past
	// unpaid is a no-op. A payment ID already held by another live
	// order is rejected with ErrDuplicatePayment. Both the payment
	// webhook and the unprocessed-payment sweep drive this function.
	MarkPaid(ctx context.Context, code, paymentID, checkoutID string, amount int64) error

	// MarkRefunded transitions a post-payment order to refunded.
	// Stock is not restored.
	MarkRefunded(ctx context.Context, code, description string) error

	// ApplyCarrierEvent applies a shipping webhook event: appends the
	// status history row and advances the order when the carrier
	// status maps to shipped or delivered. Unrecognized statuses are
	// acknowledged without mutation.
	ApplyCarrierEvent(ctx context.Context, ev model.CarrierEvent) error
}

// DiscountService owns staff-side discount administration.
type DiscountService interface {
	// GetByCode retrieves a discount definition.
	GetByCode(ctx context.Context, code string) (*model.Discount, error)

	// Update applies an allow-listed partial update. Fields left nil
	// are untouched; the code and start date are never updatable.
	Update(ctx context.Context, code string, upd model.DiscountUpdate) error
}

// PaymentService handles gateway interaction on behalf of orders.
type PaymentService interface {
	// InitiateCheckout opens a gateway checkout session for an unpaid
	// order. Throttled per (user, order) to blunt client retry storms.
	InitiateCheckout(ctx context.Context, userID uuid.UUID, code string) (*payment.Session, error)

	// ProcessWebhook verifies and applies a payment gateway event.
	ProcessWebhook(ctx context.Context, payload []byte, signature string) error
}
