package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ryxel/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container and connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		t.Fatalf("failed to parse connection string: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	createSchema(t, pool)

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// createSchema creates the database schema for testing.
func createSchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	schema := `
		CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(100) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS product_variants (
			id UUID PRIMARY KEY,
			product_id UUID NOT NULL REFERENCES products(id),
			sku VARCHAR(100) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL DEFAULT '',
			price BIGINT NOT NULL CHECK (price >= 0),
			stock INTEGER NOT NULL CHECK (stock >= 0),
			sold INTEGER NOT NULL DEFAULT 0 CHECK (sold >= 0),
			weight_grams INTEGER NOT NULL DEFAULT 0,
			length_mm INTEGER NOT NULL DEFAULT 0,
			width_mm INTEGER NOT NULL DEFAULT 0,
			height_mm INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			order_code VARCHAR(50) NOT NULL,
			user_id UUID NOT NULL,
			status VARCHAR(20) NOT NULL,
			payment_method VARCHAR(20) NOT NULL,
			subtotal BIGINT NOT NULL DEFAULT 0,
			shipping_fee BIGINT NOT NULL DEFAULT 0,
			discount_amount BIGINT NOT NULL DEFAULT 0,
			total BIGINT NOT NULL DEFAULT 0,
			shipping_address_id UUID NOT NULL,
			to_district_id INTEGER NOT NULL DEFAULT 0,
			to_ward_code VARCHAR(20) NOT NULL DEFAULT '',
			discount_code VARCHAR(50),
			payment_id VARCHAR(100),
			checkout_id VARCHAR(100),
			paid_amount BIGINT,
			carrier_code VARCHAR(20),
			tracking_status VARCHAR(50),
			expected_delivery_date TIMESTAMPTZ,
			review_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT orders_order_code_key UNIQUE (order_code)
		);

		CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
		CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at);
		CREATE INDEX IF NOT EXISTS idx_orders_payment_id ON orders(payment_id) WHERE payment_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS order_items (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id UUID NOT NULL,
			variant_id UUID NOT NULL REFERENCES product_variants(id),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price BIGINT NOT NULL,
			subtotal BIGINT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);

		CREATE TABLE IF NOT EXISTS order_status_history (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			status VARCHAR(20) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_order_status_history_order_id ON order_status_history(order_id);

		CREATE TABLE IF NOT EXISTS discounts (
			code VARCHAR(50) PRIMARY KEY,
			start_date TIMESTAMPTZ NOT NULL,
			end_date TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			max_use INTEGER NOT NULL DEFAULT 0,
			max_use_per_user INTEGER NOT NULL DEFAULT 1,
			min_order_value BIGINT NOT NULL DEFAULT 0,
			discount_percentage INTEGER NOT NULL CHECK (discount_percentage BETWEEN 0 AND 100),
			discount_max_value BIGINT NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS discount_usages (
			id UUID PRIMARY KEY,
			discount_code VARCHAR(50) NOT NULL REFERENCES discounts(code),
			user_id UUID NOT NULL,
			order_id UUID NOT NULL,
			used_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_discount_usages_code ON discount_usages(discount_code);
	`

	_, err := pool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
}

// SeedVariant inserts a product with one variant and returns the variant.
func SeedVariant(t *testing.T, pool *pgxpool.Pool, price int64, stock, weightGrams int) model.Variant {
	t.Helper()

	ctx := context.Background()
	productID := uuid.New()
	variantID := uuid.New()

	_, err := pool.Exec(ctx,
		`INSERT INTO products (id, name, category) VALUES ($1, $2, $3)`,
		productID, "Test Product "+productID.String()[:8], "Test Category",
	)
	if err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO product_variants (id, product_id, sku, name, price, stock, sold, weight_grams)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7)`,
		variantID, productID, "SKU-"+variantID.String()[:8], "Default", price, stock, weightGrams,
	)
	if err != nil {
		t.Fatalf("failed to seed variant: %v", err)
	}

	return model.Variant{
		ID:          variantID,
		ProductID:   productID,
		Price:       price,
		Stock:       stock,
		WeightGrams: weightGrams,
	}
}

// SeedDiscount inserts a discount row.
func SeedDiscount(t *testing.T, pool *pgxpool.Pool, d model.Discount) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`INSERT INTO discounts (code, start_date, end_date, is_active, max_use, max_use_per_user,
		                        min_order_value, discount_percentage, discount_max_value)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.Code, d.StartDate, d.EndDate, d.IsActive, d.MaxUse, d.MaxUsePerUser,
		d.MinOrderValue, d.DiscountPercentage, d.DiscountMaxValue,
	)
	if err != nil {
		t.Fatalf("failed to seed discount %s: %v", d.Code, err)
	}
}

// VariantStock returns the current stock and sold counters of a variant.
func VariantStock(t *testing.T, pool *pgxpool.Pool, variantID uuid.UUID) (stock, sold int) {
	t.Helper()

	err := pool.QueryRow(context.Background(),
		`SELECT stock, sold FROM product_variants WHERE id = $1`, variantID,
	).Scan(&stock, &sold)
	if err != nil {
		t.Fatalf("failed to read variant stock: %v", err)
	}
	return stock, sold
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"discount_usages", "order_status_history", "order_items", "orders", "discounts", "product_variants", "products"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
