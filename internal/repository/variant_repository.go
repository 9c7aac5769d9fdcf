package repository

import (
	"context"
	"fmt"

	"ryxel/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// variantRepository implements VariantRepository using PostgreSQL.
type variantRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewVariantRepository creates a new PostgreSQL-backed variant repository.
func NewVariantRepository(pool *pgxpool.Pool, logger zerolog.Logger) VariantRepository {
	return &variantRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "variant").Logger(),
	}
}

// GetForUpdate retrieves variants by ID with row locks held for the
// duration of the transaction. Locking in a consistent order (by id)
// keeps contending checkouts from deadlocking on each other.
func (r *variantRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]model.Variant, error) {
	query := `
		SELECT id, product_id, sku, name, price, stock, sold,
		       weight_grams, length_mm, width_mm, height_mm
		FROM product_variants
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`

	rows, err := tx.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Int("variant_count", len(ids)).Msg("failed to query variants")
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var variants []model.Variant
	for rows.Next() {
		var v model.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Price, &v.Stock, &v.Sold,
			&v.WeightGrams, &v.LengthMM, &v.WidthMM, &v.HeightMM); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}

	return variants, nil
}

// DecrementStock subtracts quantity from stock and adds it to sold in
// one statement. The stock >= quantity predicate makes the check and
// the mutation atomic: zero affected rows means insufficient stock at
// transaction time, regardless of what the cart saw earlier.
func (r *variantRepository) DecrementStock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, quantity int) error {
	tag, err := tx.Exec(ctx,
		`UPDATE product_variants
		 SET stock = stock - $1, sold = sold + $1
		 WHERE id = $2 AND stock >= $1`,
		quantity, variantID,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("variant_id", variantID.String()).
			Int("quantity", quantity).
			Msg("failed to decrement stock")
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Warn().
			Str("variant_id", variantID.String()).
			Int("quantity", quantity).
			Msg("insufficient stock")
		return model.ErrInsufficientStock
	}

	return nil
}

// RestoreStock returns quantity units to stock and subtracts them from
// sold, flooring sold at zero.
func (r *variantRepository) RestoreStock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, quantity int) error {
	_, err := tx.Exec(ctx,
		`UPDATE product_variants
		 SET stock = stock + $1, sold = GREATEST(sold - $1, 0)
		 WHERE id = $2`,
		quantity, variantID,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("variant_id", variantID.String()).
			Int("quantity", quantity).
			Msg("failed to restore stock")
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	return nil
}
