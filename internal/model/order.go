package model

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusUnpaid     OrderStatus = "unpaid"
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
)

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

const (
	// PaymentMethodCard is paid through the external gateway; orders start unpaid.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodCOD is cash on delivery; orders start pending.
	PaymentMethodCOD PaymentMethod = "cod"
)

// transitions encodes the order state machine. Absence means the
// transition is rejected.
var transitions = map[OrderStatus][]OrderStatus{
	StatusUnpaid:     {StatusPending, StatusCancelled},
	StatusPending:    {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
}

// CanTransitionTo reports whether the state machine permits moving from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from s.
func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusUnpaid, StatusPending, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// InitialStatus returns the status a freshly created order starts in
// for the given payment method.
func InitialStatus(method PaymentMethod) OrderStatus {
	if method == PaymentMethodCOD {
		return StatusPending
	}
	return StatusUnpaid
}

// CancelWindow is how long after creation a user may cancel their own order.
const CancelWindow = 30 * time.Minute

// MaxReviewCount bounds how many reviews a single order may carry.
const MaxReviewCount = 2

// Order is the aggregate root for the order lifecycle. All monetary
// amounts are integer minor units. Total is always derived as
// subtotal + shipping fee - discount amount by the store layer.
type Order struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	OrderCode     string        `json:"orderCode" db:"order_code"`
	UserID        uuid.UUID     `json:"userId" db:"user_id"`
	Status        OrderStatus   `json:"status" db:"status"`
	PaymentMethod PaymentMethod `json:"paymentMethod" db:"payment_method"`

	Subtotal       int64 `json:"subtotal" db:"subtotal"`
	ShippingFee    int64 `json:"shippingFee" db:"shipping_fee"`
	DiscountAmount int64 `json:"discountAmount" db:"discount_amount"`
	Total          int64 `json:"total" db:"total"`

	// Shipping destination, snapshotted at creation and immutable afterwards.
	ShippingAddressID uuid.UUID `json:"shippingAddressId" db:"shipping_address_id"`
	ToDistrictID      int       `json:"toDistrictId" db:"to_district_id"`
	ToWardCode        string    `json:"toWardCode" db:"to_ward_code"`

	DiscountCode *string `json:"discountCode,omitempty" db:"discount_code"`

	// Gateway checkout info, set once by the paid transition. PaymentID is
	// globally unique across non-cancelled orders.
	PaymentID  *string `json:"paymentId,omitempty" db:"payment_id"`
	CheckoutID *string `json:"checkoutId,omitempty" db:"checkout_id"`
	PaidAmount *int64  `json:"paidAmount,omitempty" db:"paid_amount"`

	CarrierCode          *string    `json:"carrierCode,omitempty" db:"carrier_code"`
	TrackingStatus       *string    `json:"trackingStatus,omitempty" db:"tracking_status"`
	ExpectedDeliveryDate *time.Time `json:"expectedDeliveryDate,omitempty" db:"expected_delivery_date"`

	ReviewCount int `json:"reviewCount" db:"review_count"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// OrderItem is a line item with prices snapshotted at order time.
type OrderItem struct {
	ID        uuid.UUID `json:"-" db:"id"`
	OrderID   uuid.UUID `json:"-" db:"order_id"`
	ProductID uuid.UUID `json:"productId" db:"product_id"`
	VariantID uuid.UUID `json:"variantId" db:"variant_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice int64     `json:"unitPrice" db:"unit_price"`
	Subtotal  int64     `json:"subtotal" db:"subtotal"`
}

// StatusEntry is one append-only row of an order's status history.
type StatusEntry struct {
	Status      OrderStatus `json:"status" db:"status"`
	Description string      `json:"description" db:"description"`
	CreatedAt   time.Time   `json:"timestamp" db:"created_at"`
}

// CheckoutRequest is the payload for creating an order.
type CheckoutRequest struct {
	ShippingAddressID uuid.UUID             `json:"shippingAddressId"`
	ToDistrictID      int                   `json:"toDistrictId"`
	ToWardCode        string                `json:"toWardCode"`
	PaymentMethod     PaymentMethod         `json:"paymentMethod"`
	DiscountCode      *string               `json:"discountCode,omitempty"`
	Items             []CheckoutItemRequest `json:"items"`
}

// CheckoutItemRequest is a single requested line item. Prices are never
// accepted from the client; they are snapshotted from the catalog at
// transaction time.
type CheckoutItemRequest struct {
	ProductID uuid.UUID `json:"productId"`
	VariantID uuid.UUID `json:"variantId"`
	Quantity  int       `json:"quantity"`
}

// OrderResponse is the full order view returned to callers.
type OrderResponse struct {
	Order   *Order        `json:"order"`
	Items   []OrderItem   `json:"items"`
	History []StatusEntry `json:"statusHistory"`
}

// CarrierEvent is an inbound shipping webhook payload.
type CarrierEvent struct {
	OrderCode string    `json:"orderCode"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
