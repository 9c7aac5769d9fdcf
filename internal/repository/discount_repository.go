package repository

import (
	"context"
	"fmt"
	"strings"

	"ryxel/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const discountColumns = `
	code, start_date, end_date, is_active, max_use, max_use_per_user,
	min_order_value, discount_percentage, discount_max_value`

// discountRepository implements DiscountRepository using PostgreSQL.
type discountRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDiscountRepository creates a new PostgreSQL-backed discount repository.
func NewDiscountRepository(pool *pgxpool.Pool, logger zerolog.Logger) DiscountRepository {
	return &discountRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "discount").Logger(),
	}
}

// GetByCode retrieves a discount by code. Codes are stored uppercase.
func (r *discountRepository) GetByCode(ctx context.Context, code string) (*model.Discount, error) {
	query := fmt.Sprintf(`SELECT %s FROM discounts WHERE code = $1`, discountColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, strings.ToUpper(code)), code)
}

// GetByCodeForUpdate is GetByCode with a row lock inside the transaction.
func (r *discountRepository) GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*model.Discount, error) {
	query := fmt.Sprintf(`SELECT %s FROM discounts WHERE code = $1 FOR UPDATE`, discountColumns)
	return r.scanOne(tx.QueryRow(ctx, query, strings.ToUpper(code)), code)
}

func (r *discountRepository) scanOne(row pgx.Row, code string) (*model.Discount, error) {
	var d model.Discount
	err := row.Scan(
		&d.Code, &d.StartDate, &d.EndDate, &d.IsActive, &d.MaxUse, &d.MaxUsePerUser,
		&d.MinOrderValue, &d.DiscountPercentage, &d.DiscountMaxValue,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("code", code).Msg("discount not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("code", code).Msg("failed to query discount")
		return nil, fmt.Errorf("failed to query discount: %w", err)
	}
	return &d, nil
}

// CountUsage returns total recorded uses of the discount.
func (r *discountRepository) CountUsage(ctx context.Context, tx pgx.Tx, code string) (int, error) {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM discount_usages WHERE discount_code = $1`,
		strings.ToUpper(code),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count discount usage: %w", err)
	}
	return count, nil
}

// CountUsageByUser returns how many times the user has consumed the discount.
func (r *discountRepository) CountUsageByUser(ctx context.Context, tx pgx.Tx, code string, userID uuid.UUID) (int, error) {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM discount_usages WHERE discount_code = $1 AND user_id = $2`,
		strings.ToUpper(code), userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count discount usage by user: %w", err)
	}
	return count, nil
}

// RecordUsage appends one usage row inside the order-creating
// transaction, so a failed checkout never spends the discount.
func (r *discountRepository) RecordUsage(ctx context.Context, tx pgx.Tx, code string, userID, orderID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO discount_usages (id, discount_code, user_id, order_id, used_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), strings.ToUpper(code), userID, orderID,
	)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("code", code).
			Str("order_id", orderID.String()).
			Msg("failed to record discount usage")
		return fmt.Errorf("failed to record discount usage: %w", err)
	}
	return nil
}

// Deactivate flips is_active off.
func (r *discountRepository) Deactivate(ctx context.Context, tx pgx.Tx, code string) error {
	_, err := tx.Exec(ctx,
		`UPDATE discounts SET is_active = FALSE WHERE code = $1`,
		strings.ToUpper(code),
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate discount: %w", err)
	}

	r.logger.Info().Str("code", code).Msg("discount deactivated")
	return nil
}

// Update applies an allow-listed partial update. Each settable field is
// named explicitly; there is no generic field merge.
func (r *discountRepository) Update(ctx context.Context, code string, upd model.DiscountUpdate) error {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.EndDate != nil {
		add("end_date", *upd.EndDate)
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	if upd.MaxUse != nil {
		add("max_use", *upd.MaxUse)
	}
	if upd.MaxUsePerUser != nil {
		add("max_use_per_user", *upd.MaxUsePerUser)
	}
	if upd.MinOrderValue != nil {
		add("min_order_value", *upd.MinOrderValue)
	}
	if upd.DiscountPercentage != nil {
		add("discount_percentage", *upd.DiscountPercentage)
	}
	if upd.DiscountMaxValue != nil {
		add("discount_max_value", *upd.DiscountMaxValue)
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, strings.ToUpper(code))
	query := fmt.Sprintf("UPDATE discounts SET %s WHERE code = $%d", strings.Join(sets, ", "), len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("code", code).Msg("failed to update discount")
		return fmt.Errorf("failed to update discount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrInvalidDiscount
	}

	return nil
}
