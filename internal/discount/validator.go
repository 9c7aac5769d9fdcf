// Package discount evaluates discount codes against an order. The
// evaluator is a pure function: it never records usage. The usage
// append happens inside the checkout transaction, atomically with
// order creation, so a failed checkout never spends the discount.
package discount

import (
	"time"

	"ryxel/internal/model"
)

// Reasons a discount fails evaluation.
const (
	ReasonExpired       = "expired"
	ReasonInactive      = "inactive"
	ReasonUsageExceeded = "usage limit reached"
	ReasonBelowMinimum  = "order below minimum value"
)

// Result is the outcome of evaluating a discount against an order.
type Result struct {
	Valid          bool
	DiscountAmount int64

	// Reason is set when Valid is false.
	Reason string

	// Expired signals the caller should deactivate the discount.
	Expired bool
}

// Evaluate checks a discount against the cart subtotal and the user's
// prior usage. Rules short-circuit in order: expired, inactive,
// per-user limit, total limit, minimum order value. The amount is
// subtotal * percentage / 100 capped at DiscountMaxValue.
func Evaluate(d *model.Discount, usedByUser, usedTotal int, cartSubtotal int64, now time.Time) Result {
	if now.After(d.EndDate) || now.Equal(d.EndDate) {
		return Result{Reason: ReasonExpired, Expired: true}
	}

	if !d.IsActive || now.Before(d.StartDate) {
		return Result{Reason: ReasonInactive}
	}

	if d.MaxUsePerUser > 0 && usedByUser >= d.MaxUsePerUser {
		return Result{Reason: ReasonUsageExceeded}
	}

	if d.MaxUse > 0 && usedTotal >= d.MaxUse {
		return Result{Reason: ReasonUsageExceeded}
	}

	if cartSubtotal < d.MinOrderValue {
		return Result{Reason: ReasonBelowMinimum}
	}

	amount := cartSubtotal * int64(d.DiscountPercentage) / 100
	if d.DiscountMaxValue > 0 && amount > d.DiscountMaxValue {
		amount = d.DiscountMaxValue
	}

	return Result{Valid: true, DiscountAmount: amount}
}
