package repository

import (
	"context"
	"fmt"
	"time"

	"ryxel/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// OrderCodeConstraint is the unique constraint guarding order codes.
// Inserts failing on it are retried with a freshly generated code.
const OrderCodeConstraint = "orders_order_code_key"

const orderColumns = `
	id, order_code, user_id, status, payment_method,
	subtotal, shipping_fee, discount_amount, total,
	shipping_address_id, to_district_id, to_ward_code,
	discount_code, payment_id, checkout_id, paid_amount,
	carrier_code, tracking_status, expected_delivery_date,
	review_count, created_at, updated_at`

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// Create inserts a new order and its line items within the provided
// transaction, recomputing subtotal and total from the items.
func (r *orderRepository) Create(ctx context.Context, tx pgx.Tx, order *model.Order, items []model.OrderItem) error {
	recomputeTotals(order, items)

	query := `
		INSERT INTO orders (
			id, order_code, user_id, status, payment_method,
			subtotal, shipping_fee, discount_amount, total,
			shipping_address_id, to_district_id, to_ward_code,
			discount_code, review_count, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := tx.Exec(ctx, query,
		order.ID, order.OrderCode, order.UserID, order.Status, order.PaymentMethod,
		order.Subtotal, order.ShippingFee, order.DiscountAmount, order.Total,
		order.ShippingAddressID, order.ToDistrictID, order.ToWardCode,
		order.DiscountCode, order.ReviewCount, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_code", order.OrderCode).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	if len(items) > 0 {
		itemQuery := `
			INSERT INTO order_items (id, order_id, product_id, variant_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		batch := &pgx.Batch{}
		for _, item := range items {
			batch.Queue(itemQuery, item.ID, item.OrderID, item.ProductID, item.VariantID,
				item.Quantity, item.UnitPrice, item.Subtotal)
		}

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < len(items); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				r.logger.Error().
					Err(err).
					Str("order_code", order.OrderCode).
					Msg("failed to create order item")
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}
	}

	if err := r.AppendHistory(ctx, tx, order.ID, order.Status, "Order placed", order.CreatedAt); err != nil {
		return err
	}

	r.logger.Debug().
		Str("order_code", order.OrderCode).
		Int("item_count", len(items)).
		Msg("order created successfully")

	return nil
}

// recomputeTotals derives subtotal and total from the line items. The
// invariant total = subtotal + shippingFee - discountAmount is enforced
// here on every item mutation, never trusted from the caller.
func recomputeTotals(order *model.Order, items []model.OrderItem) {
	var subtotal int64
	for i := range items {
		items[i].Subtotal = items[i].UnitPrice * int64(items[i].Quantity)
		subtotal += items[i].Subtotal
	}
	order.Subtotal = subtotal
	order.Total = subtotal + order.ShippingFee - order.DiscountAmount
}

// GetByCode retrieves an order by its order code.
func (r *orderRepository) GetByCode(ctx context.Context, code string) (*model.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE order_code = $1`, orderColumns)
	return r.scanOne(ctx, r.pool.QueryRow(ctx, query, code), code)
}

// GetByCodeForUpdate retrieves an order by code with a row lock.
func (r *orderRepository) GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*model.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE order_code = $1 FOR UPDATE`, orderColumns)
	return r.scanOne(ctx, tx.QueryRow(ctx, query, code), code)
}

func (r *orderRepository) scanOne(ctx context.Context, row pgx.Row, code string) (*model.Order, error) {
	order, err := scanOrder(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("order_code", code).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_code", code).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return order, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.OrderCode, &o.UserID, &o.Status, &o.PaymentMethod,
		&o.Subtotal, &o.ShippingFee, &o.DiscountAmount, &o.Total,
		&o.ShippingAddressID, &o.ToDistrictID, &o.ToWardCode,
		&o.DiscountCode, &o.PaymentID, &o.CheckoutID, &o.PaidAmount,
		&o.CarrierCode, &o.TrackingStatus, &o.ExpectedDeliveryDate,
		&o.ReviewCount, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetItems retrieves the line items of an order.
func (r *orderRepository) GetItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, variant_id, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.VariantID,
			&item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// GetHistory retrieves the status history of an order, oldest first.
func (r *orderRepository) GetHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusEntry, error) {
	query := `
		SELECT status, description, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var entries []model.StatusEntry
	for rows.Next() {
		var e model.StatusEntry
		if err := rows.Scan(&e.Status, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history: %w", err)
	}

	return entries, nil
}

// ListByUser retrieves a user's orders, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, orderColumns)
	return r.list(ctx, query, userID)
}

// HasUnpaidOrder reports whether the user currently has an unpaid order.
// Runs inside the caller's transaction so the query-then-insert pattern
// is covered by the transaction's conflict detection.
func (r *orderRepository) HasUnpaidOrder(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE user_id = $1 AND status = $2)`,
		userID, model.StatusUnpaid,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check unpaid orders: %w", err)
	}
	return exists, nil
}

// SetStatus writes the order status, optionally appending a history row.
func (r *orderRepository) SetStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus, description string, appendHistory bool) error {
	now := time.Now()

	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
		status, now, orderID,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Str("status", string(status)).
			Msg("failed to update order status")
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}

	if appendHistory {
		if err := r.AppendHistory(ctx, tx, orderID, status, description, now); err != nil {
			return err
		}
	}

	r.logger.Debug().
		Str("order_id", orderID.String()).
		Str("status", string(status)).
		Bool("history", appendHistory).
		Msg("order status updated")

	return nil
}

// AppendHistory appends one append-only status history row.
func (r *orderRepository) AppendHistory(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus, description string, at time.Time) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO order_status_history (id, order_id, status, description, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), orderID, status, description, at,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Msg("failed to append status history")
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// RecordPayment stores the gateway checkout info on the order.
func (r *orderRepository) RecordPayment(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, paymentID, checkoutID string, amount int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE orders SET payment_id = $1, checkout_id = $2, paid_amount = $3, updated_at = $4 WHERE id = $5`,
		paymentID, checkoutID, amount, time.Now(), orderID,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Msg("failed to record payment")
		return fmt.Errorf("failed to record payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOrderNotFound
	}
	return nil
}

// PaymentIDInUse reports whether another live order holds the payment ID.
func (r *orderRepository) PaymentIDInUse(ctx context.Context, tx pgx.Tx, paymentID string, excludeOrderID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE payment_id = $1 AND id <> $2 AND status NOT IN ($3, $4)
		)`,
		paymentID, excludeOrderID, model.StatusCancelled, model.StatusRefunded,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check payment id: %w", err)
	}
	return exists, nil
}

// SetTracking records carrier code and tracking status.
func (r *orderRepository) SetTracking(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, carrierCode, trackingStatus string) error {
	_, err := tx.Exec(ctx,
		`UPDATE orders SET carrier_code = $1, tracking_status = $2, updated_at = $3 WHERE id = $4`,
		carrierCode, trackingStatus, time.Now(), orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to set tracking: %w", err)
	}
	return nil
}

// SetExpectedDelivery records the carrier's expected delivery date.
// Best-effort metadata, so it runs outside any transaction.
func (r *orderRepository) SetExpectedDelivery(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET expected_delivery_date = $1, updated_at = $2 WHERE id = $3`,
		at, time.Now(), orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to set expected delivery date: %w", err)
	}
	return nil
}

// ListUnpaidCreatedBefore retrieves unpaid orders created before the cutoff.
func (r *orderRepository) ListUnpaidCreatedBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM orders WHERE status = $1 AND created_at < $2 ORDER BY created_at`,
		orderColumns,
	)
	return r.list(ctx, query, model.StatusUnpaid, cutoff)
}

// ListUnpaidCreatedBetween retrieves unpaid orders created in [from, to).
func (r *orderRepository) ListUnpaidCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Order, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM orders WHERE status = $1 AND created_at >= $2 AND created_at < $3 ORDER BY created_at`,
		orderColumns,
	)
	return r.list(ctx, query, model.StatusUnpaid, from, to)
}

// ListProcessingStuckSince retrieves processing orders untouched since
// before the cutoff.
func (r *orderRepository) ListProcessingStuckSince(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM orders WHERE status = $1 AND updated_at < $2 ORDER BY updated_at`,
		orderColumns,
	)
	return r.list(ctx, query, model.StatusProcessing, cutoff)
}

// ListDuplicatePaymentGroups groups recent live orders sharing a payment ID.
func (r *orderRepository) ListDuplicatePaymentGroups(ctx context.Context, since time.Time) (map[string][]model.Order, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE payment_id IS NOT NULL
		  AND status NOT IN ($1, $2)
		  AND created_at >= $3
		  AND payment_id IN (
			SELECT payment_id FROM orders
			WHERE payment_id IS NOT NULL AND status NOT IN ($1, $2)
			GROUP BY payment_id
			HAVING COUNT(*) > 1
		  )
		ORDER BY payment_id, created_at`,
		orderColumns,
	)

	orders, err := r.list(ctx, query, model.StatusCancelled, model.StatusRefunded, since)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]model.Order)
	for _, o := range orders {
		if o.PaymentID == nil {
			continue
		}
		groups[*o.PaymentID] = append(groups[*o.PaymentID], o)
	}

	// A group can shrink to one row when the sibling fell outside the
	// lookback window; those are left for the stuck-order monitor.
	for pid, group := range groups {
		if len(group) < 2 {
			delete(groups, pid)
		}
	}

	return groups, nil
}

func (r *orderRepository) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query orders")
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
