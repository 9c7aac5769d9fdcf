package discount

import (
	"testing"
	"time"

	"ryxel/internal/model"

	"github.com/stretchr/testify/assert"
)

func baseDiscount() *model.Discount {
	now := time.Now()
	return &model.Discount{
		Code:               "SUMMER10",
		StartDate:          now.Add(-24 * time.Hour),
		EndDate:            now.Add(24 * time.Hour),
		IsActive:           true,
		MaxUse:             100,
		MaxUsePerUser:      1,
		MinOrderValue:      100_000,
		DiscountPercentage: 10,
		DiscountMaxValue:   50_000,
	}
}

func TestEvaluate_Valid(t *testing.T) {
	d := baseDiscount()

	res := Evaluate(d, 0, 0, 200_000, time.Now())

	assert.True(t, res.Valid)
	assert.Equal(t, int64(20_000), res.DiscountAmount)
	assert.Empty(t, res.Reason)
}

func TestEvaluate_CapApplies(t *testing.T) {
	d := baseDiscount()

	// 10% of 2,000,000 is 200,000, capped at 50,000.
	res := Evaluate(d, 0, 0, 2_000_000, time.Now())

	assert.True(t, res.Valid)
	assert.Equal(t, int64(50_000), res.DiscountAmount)
}

func TestEvaluate_Expired(t *testing.T) {
	d := baseDiscount()
	d.EndDate = time.Now().Add(-time.Hour)

	res := Evaluate(d, 0, 0, 200_000, time.Now())

	assert.False(t, res.Valid)
	assert.Equal(t, ReasonExpired, res.Reason)
	assert.True(t, res.Expired, "expired discounts must be flagged for deactivation")
}

func TestEvaluate_EndDateIsExclusive(t *testing.T) {
	d := baseDiscount()
	now := time.Now()
	d.EndDate = now

	res := Evaluate(d, 0, 0, 200_000, now)

	assert.False(t, res.Valid)
	assert.Equal(t, ReasonExpired, res.Reason)
}

func TestEvaluate_Inactive(t *testing.T) {
	d := baseDiscount()
	d.IsActive = false

	res := Evaluate(d, 0, 0, 200_000, time.Now())

	assert.False(t, res.Valid)
	assert.Equal(t, ReasonInactive, res.Reason)
	assert.False(t, res.Expired)
}

func TestEvaluate_NotYetStarted(t *testing.T) {
	d := baseDiscount()
	d.StartDate = time.Now().Add(time.Hour)

	res := Evaluate(d, 0, 0, 200_000, time.Now())

	assert.False(t, res.Valid)
	assert.Equal(t, ReasonInactive, res.Reason)
}

func TestEvaluate_PerUserLimit(t *testing.T) {
	d := baseDiscount()

	res := Evaluate(d, 1, 5, 200_000, time.Now())

	assert.False(t, res.Valid)
	assert.Equal(t, ReasonUsageExceeded, res.Reason)
}

func TestEvaluate_TotalLimit(t *testing.T) {
	d := baseDiscount()
	d.MaxUse = 5

	res := Evaluate(d, 0, 5, 200_000, time.Now())

	assert.False(t, res.Valid)
	assert.Equal(t, ReasonUsageExceeded, res.Reason)
}

func TestEvaluate_BelowMinimum(t *testing.T) {
	d := baseDiscount()

	res := Evaluate(d, 0, 0, 99_999, time.Now())

	assert.False(t, res.Valid)
	assert.Equal(t, ReasonBelowMinimum, res.Reason)
}

func TestEvaluate_ExpiredWinsOverOtherRules(t *testing.T) {
	// An expired, inactive, over-used discount on a tiny order must
	// report expired: the rules short-circuit in a fixed order.
	d := baseDiscount()
	d.EndDate = time.Now().Add(-time.Hour)
	d.IsActive = false

	res := Evaluate(d, 5, 500, 1, time.Now())

	assert.Equal(t, ReasonExpired, res.Reason)
}
