package model

import (
	"time"

	"github.com/google/uuid"
)

// Product is the catalog entity an order line item points at. Catalog
// CRUD lives outside this service; only the fields the order engine
// reads are modelled here.
type Product struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Variant is a purchasable product variant. Stock and Sold form the
// stock ledger: Stock never goes negative, Sold increases on order
// creation and decreases (floored at zero) on cancellation. Both are
// mutated only inside order-affecting transactions.
type Variant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"productId" db:"product_id"`
	SKU       string    `json:"sku" db:"sku"`
	Name      string    `json:"name" db:"name"`
	Price     int64     `json:"price" db:"price"`
	Stock     int       `json:"stock" db:"stock"`
	Sold      int       `json:"sold" db:"sold"`

	// Shipment dimensions: weight in grams, dimensions in millimetres.
	WeightGrams int `json:"weightGrams" db:"weight_grams"`
	LengthMM    int `json:"lengthMm" db:"length_mm"`
	WidthMM     int `json:"widthMm" db:"width_mm"`
	HeightMM    int `json:"heightMm" db:"height_mm"`
}
