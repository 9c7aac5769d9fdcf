package repository

import (
	"context"
	"time"

	"ryxel/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxRunner executes a function inside a serializable database
// transaction, retrying a bounded number of times on write conflicts.
type TxRunner interface {
	RunSerializable(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// OrderRepository defines data access for the order aggregate and its
// append-only status history.
type OrderRepository interface {
	// Create inserts the order and its line items within the provided
	// transaction. Subtotal and total are recomputed from the items
	// before insert; values supplied on the order are not trusted.
	Create(ctx context.Context, tx pgx.Tx, order *model.Order, items []model.OrderItem) error

	// GetByCode retrieves an order by its order code, or nil if absent.
	GetByCode(ctx context.Context, code string) (*model.Order, error)

	// GetByCodeForUpdate retrieves an order by code with a row lock held
	// for the duration of the transaction, or nil if absent.
	GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*model.Order, error)

	// GetItems retrieves the line items of an order. Items are immutable
	// after creation.
	GetItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error)

	// GetHistory retrieves the status history of an order, oldest first.
	GetHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusEntry, error)

	// ListByUser retrieves a user's orders, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)

	// HasUnpaidOrder reports whether the user currently has an order in
	// the unpaid status.
	HasUnpaidOrder(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error)

	// SetStatus writes the order status and, when appendHistory is true,
	// appends a {status, description, timestamp} history row. Callers
	// pass false only when an equivalent history row has already been
	// written for the same event.
	SetStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus, description string, appendHistory bool) error

	// AppendHistory appends a history row without touching the order
	// status. Used for carrier sub-statuses that do not advance the order.
	AppendHistory(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus, description string, at time.Time) error

	// RecordPayment stores the gateway checkout info on the order.
	RecordPayment(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, paymentID, checkoutID string, amount int64) error

	// PaymentIDInUse reports whether any other non-cancelled,
	// non-refunded order already holds the given payment ID.
	PaymentIDInUse(ctx context.Context, tx pgx.Tx, paymentID string, excludeOrderID uuid.UUID) (bool, error)

	// SetTracking records carrier code and tracking status.
	SetTracking(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, carrierCode, trackingStatus string) error

	// SetExpectedDelivery records the carrier's expected delivery date.
	SetExpectedDelivery(ctx context.Context, orderID uuid.UUID, at time.Time) error

	// ListUnpaidCreatedBefore retrieves unpaid orders created before the cutoff.
	ListUnpaidCreatedBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error)

	// ListUnpaidCreatedBetween retrieves unpaid orders created in [from, to).
	ListUnpaidCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Order, error)

	// ListProcessingStuckSince retrieves processing orders untouched
	// since before the cutoff.
	ListProcessingStuckSince(ctx context.Context, cutoff time.Time) ([]model.Order, error)

	// ListDuplicatePaymentGroups groups recent non-cancelled,
	// non-refunded orders sharing a payment ID, each group ordered by
	// creation time. Only groups of size > 1 are returned.
	ListDuplicatePaymentGroups(ctx context.Context, since time.Time) (map[string][]model.Order, error)
}

// VariantRepository defines data access for product variants and their
// stock ledger counters.
type VariantRepository interface {
	// GetForUpdate retrieves variants by ID with row locks held, in the
	// order requested. Missing IDs yield a shorter result.
	GetForUpdate(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]model.Variant, error)

	// DecrementStock atomically subtracts quantity from stock and adds
	// it to sold. Returns model.ErrInsufficientStock when fewer than
	// quantity units are available.
	DecrementStock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, quantity int) error

	// RestoreStock returns quantity units to stock and subtracts them
	// from sold, flooring sold at zero.
	RestoreStock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, quantity int) error
}

// DiscountRepository defines data access for discount codes and their
// append-only usage log.
type DiscountRepository interface {
	// GetByCode retrieves a discount by code (case-insensitive), or nil.
	GetByCode(ctx context.Context, code string) (*model.Discount, error)

	// GetByCodeForUpdate is GetByCode with a row lock inside the transaction.
	GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*model.Discount, error)

	// CountUsage returns total recorded uses of the discount.
	CountUsage(ctx context.Context, tx pgx.Tx, code string) (int, error)

	// CountUsageByUser returns how many times the user has consumed the discount.
	CountUsageByUser(ctx context.Context, tx pgx.Tx, code string, userID uuid.UUID) (int, error)

	// RecordUsage appends one usage row; called exactly once per order
	// that applies the discount, inside the order-creating transaction.
	RecordUsage(ctx context.Context, tx pgx.Tx, code string, userID, orderID uuid.UUID) error

	// Deactivate flips is_active off, used when validation finds the
	// discount expired.
	Deactivate(ctx context.Context, tx pgx.Tx, code string) error

	// Update applies an allow-listed partial update.
	Update(ctx context.Context, code string, upd model.DiscountUpdate) error
}
