package model

import "time"

// Discount is a percentage discount code. Codes are case-insensitive
// and stored uppercase. The validity window is [StartDate, EndDate).
type Discount struct {
	Code               string    `json:"code" db:"code"`
	StartDate          time.Time `json:"startDate" db:"start_date"`
	EndDate            time.Time `json:"endDate" db:"end_date"`
	IsActive           bool      `json:"isActive" db:"is_active"`
	MaxUse             int       `json:"maxUse" db:"max_use"`
	MaxUsePerUser      int       `json:"maxUsePerUser" db:"max_use_per_user"`
	MinOrderValue      int64     `json:"minOrderValue" db:"min_order_value"`
	DiscountPercentage int       `json:"discountPercentage" db:"discount_percentage"`
	DiscountMaxValue   int64     `json:"discountMaxValue" db:"discount_max_value"`
}

// DiscountUpdate is the allow-listed partial update for a discount.
// Only non-nil fields are applied; Code, StartDate and the usage log
// are deliberately not updatable.
type DiscountUpdate struct {
	EndDate            *time.Time `json:"endDate,omitempty"`
	IsActive           *bool      `json:"isActive,omitempty"`
	MaxUse             *int       `json:"maxUse,omitempty"`
	MaxUsePerUser      *int       `json:"maxUsePerUser,omitempty"`
	MinOrderValue      *int64     `json:"minOrderValue,omitempty"`
	DiscountPercentage *int       `json:"discountPercentage,omitempty"`
	DiscountMaxValue   *int64     `json:"discountMaxValue,omitempty"`
}
