package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ryxel/internal/model"
	"ryxel/internal/shipping"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	orderRepo    *MockOrderRepository
	variantRepo  *MockVariantRepository
	discountRepo *MockDiscountRepository
	shipping     *MockShippingClient
	svc          CheckoutService
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		orderRepo:    new(MockOrderRepository),
		variantRepo:  new(MockVariantRepository),
		discountRepo: new(MockDiscountRepository),
		shipping:     new(MockShippingClient),
	}
	f.svc = NewCheckoutService(stubTxRunner{}, f.orderRepo, f.variantRepo, f.discountRepo, f.shipping, zerolog.Nop())
	return f
}

func validRequest(variantA, variantB model.Variant) *model.CheckoutRequest {
	return &model.CheckoutRequest{
		ShippingAddressID: uuid.New(),
		ToDistrictID:      1442,
		ToWardCode:        "21211",
		PaymentMethod:     model.PaymentMethodCard,
		Items: []model.CheckoutItemRequest{
			{ProductID: variantA.ProductID, VariantID: variantA.ID, Quantity: 2},
			{ProductID: variantB.ProductID, VariantID: variantB.ID, Quantity: 1},
		},
	}
}

func testVariants() (model.Variant, model.Variant) {
	a := model.Variant{
		ID:          uuid.New(),
		ProductID:   uuid.New(),
		SKU:         "TSHIRT-M-BLK",
		Price:       100_000,
		Stock:       10,
		WeightGrams: 400,
	}
	b := model.Variant{
		ID:          uuid.New(),
		ProductID:   uuid.New(),
		SKU:         "MUG-STD",
		Price:       50_000,
		Stock:       5,
		WeightGrams: 250,
	}
	return a, b
}

func TestCheckoutService_CreateOrder_Success(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()
	userID := uuid.New()
	a, b := testVariants()
	req := validRequest(a, b)

	f.orderRepo.On("HasUnpaidOrder", ctx, nil, userID).Return(false, nil)
	f.variantRepo.On("GetForUpdate", ctx, nil, []uuid.UUID{a.ID, b.ID}).Return([]model.Variant{a, b}, nil)
	f.shipping.On("Quote", ctx, 1442, "21211", 1050).Return(&shipping.Quote{Fee: 30_000, ServiceID: 2}, nil)
	f.variantRepo.On("DecrementStock", ctx, nil, a.ID, 2).Return(nil)
	f.variantRepo.On("DecrementStock", ctx, nil, b.ID, 1).Return(nil)

	var created *model.Order
	f.orderRepo.On("Create", ctx, nil, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { created = args.Get(2).(*model.Order) }).
		Return(nil)

	f.shipping.On("LeadTime", ctx, 2, 1442, "21211").Return(time.Time{}, errors.New("carrier timeout"))
	f.orderRepo.On("GetHistory", ctx, mock.Anything).Return([]model.StatusEntry{
		{Status: model.StatusUnpaid, Description: "Order placed"},
	}, nil)

	resp, err := f.svc.CreateOrder(ctx, userID, req)

	require.NoError(t, err)
	require.NotNil(t, resp)
	require.NotNil(t, created)

	assert.Equal(t, model.StatusUnpaid, created.Status, "card orders start unpaid")
	assert.Equal(t, int64(30_000), created.ShippingFee)
	assert.Equal(t, int64(0), created.DiscountAmount)
	assert.True(t, strings.HasPrefix(created.OrderCode, "ORD-"), "order code %q", created.OrderCode)

	// Prices come from the catalog, not the client.
	require.Len(t, resp.Items, 2)
	assert.Equal(t, int64(100_000), resp.Items[0].UnitPrice)
	assert.Equal(t, int64(200_000), resp.Items[0].Subtotal)
	assert.Equal(t, int64(50_000), resp.Items[1].UnitPrice)

	f.orderRepo.AssertExpectations(t)
	f.variantRepo.AssertExpectations(t)
}

func TestCheckoutService_CreateOrder_CODStartsPending(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()
	userID := uuid.New()
	a, b := testVariants()
	req := validRequest(a, b)
	req.PaymentMethod = model.PaymentMethodCOD

	f.orderRepo.On("HasUnpaidOrder", ctx, nil, userID).Return(false, nil)
	f.variantRepo.On("GetForUpdate", ctx, nil, mock.Anything).Return([]model.Variant{a, b}, nil)
	f.shipping.On("Quote", ctx, 1442, "21211", mock.Anything).Return(&shipping.Quote{Fee: 30_000, ServiceID: 2}, nil)
	f.variantRepo.On("DecrementStock", ctx, nil, mock.Anything, mock.Anything).Return(nil)

	var created *model.Order
	f.orderRepo.On("Create", ctx, nil, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { created = args.Get(2).(*model.Order) }).
		Return(nil)
	f.shipping.On("LeadTime", ctx, 2, 1442, "21211").Return(time.Time{}, errors.New("skip"))
	f.orderRepo.On("GetHistory", ctx, mock.Anything).Return([]model.StatusEntry{}, nil)

	_, err := f.svc.CreateOrder(ctx, userID, req)

	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, created.Status)
}

func TestCheckoutService_CreateOrder_AppliesDiscount(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()
	userID := uuid.New()
	a, b := testVariants()
	req := validRequest(a, b)
	code := "summer10"
	req.DiscountCode = &code

	d := &model.Discount{
		Code:               "SUMMER10",
		StartDate:          time.Now().Add(-time.Hour),
		EndDate:            time.Now().Add(time.Hour),
		IsActive:           true,
		MaxUse:             100,
		MaxUsePerUser:      1,
		MinOrderValue:      100_000,
		DiscountPercentage: 10,
		DiscountMaxValue:   20_000,
	}

	f.orderRepo.On("HasUnpaidOrder", ctx, nil, userID).Return(false, nil)
	f.variantRepo.On("GetForUpdate", ctx, nil, mock.Anything).Return([]model.Variant{a, b}, nil)
	f.shipping.On("Quote", ctx, 1442, "21211", mock.Anything).Return(&shipping.Quote{Fee: 30_000, ServiceID: 2}, nil)
	f.discountRepo.On("GetByCodeForUpdate", ctx, nil, "summer10").Return(d, nil)
	f.discountRepo.On("CountUsageByUser", ctx, nil, "SUMMER10", userID).Return(0, nil)
	f.discountRepo.On("CountUsage", ctx, nil, "SUMMER10").Return(3, nil)
	f.discountRepo.On("RecordUsage", ctx, nil, "SUMMER10", userID, mock.Anything).Return(nil)
	f.variantRepo.On("DecrementStock", ctx, nil, mock.Anything, mock.Anything).Return(nil)

	var created *model.Order
	f.orderRepo.On("Create", ctx, nil, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { created = args.Get(2).(*model.Order) }).
		Return(nil)
	f.shipping.On("LeadTime", ctx, 2, 1442, "21211").Return(time.Time{}, errors.New("skip"))
	f.orderRepo.On("GetHistory", ctx, mock.Anything).Return([]model.StatusEntry{}, nil)

	_, err := f.svc.CreateOrder(ctx, userID, req)

	require.NoError(t, err)
	// Subtotal 250,000 at 10% is 25,000, capped at 20,000.
	assert.Equal(t, int64(20_000), created.DiscountAmount)
	require.NotNil(t, created.DiscountCode)
	assert.Equal(t, "SUMMER10", *created.DiscountCode)
	f.discountRepo.AssertExpectations(t)
}

func TestCheckoutService_CreateOrder_RejectsUnknownDiscount(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()
	userID := uuid.New()
	a, b := testVariants()
	req := validRequest(a, b)
	code := "NOPE"
	req.DiscountCode = &code

	f.orderRepo.On("HasUnpaidOrder", ctx, nil, userID).Return(false, nil)
	f.variantRepo.On("GetForUpdate", ctx, nil, mock.Anything).Return([]model.Variant{a, b}, nil)
	f.shipping.On("Quote", ctx, 1442, "21211", mock.Anything).Return(&shipping.Quote{Fee: 30_000, ServiceID: 2}, nil)
	f.discountRepo.On("GetByCodeForUpdate", ctx, nil, "NOPE").Return(nil, nil)

	_, err := f.svc.CreateOrder(ctx, userID, req)

	assert.ErrorIs(t, err, model.ErrInvalidDiscount)
	f.variantRepo.AssertNotCalled(t, "DecrementStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.orderRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutService_CreateOrder_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()
	userID := uuid.New()
	a, b := testVariants()
	req := validRequest(a, b)

	f.orderRepo.On("HasUnpaidOrder", ctx, nil, userID).Return(false, nil)
	f.variantRepo.On("GetForUpdate", ctx, nil, mock.Anything).Return([]model.Variant{a, b}, nil)
	f.shipping.On("Quote", ctx, 1442, "21211", mock.Anything).Return(&shipping.Quote{Fee: 30_000, ServiceID: 2}, nil)
	f.variantRepo.On("DecrementStock", ctx, nil, mock.Anything, mock.Anything).Return(model.ErrInsufficientStock)

	_, err := f.svc.CreateOrder(ctx, userID, req)

	assert.ErrorIs(t, err, model.ErrInsufficientStock)
	f.orderRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutService_CreateOrder_RejectsSecondUnpaidOrder(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()
	userID := uuid.New()
	a, b := testVariants()

	f.orderRepo.On("HasUnpaidOrder", ctx, nil, userID).Return(true, nil)

	_, err := f.svc.CreateOrder(ctx, userID, validRequest(a, b))

	assert.ErrorIs(t, err, model.ErrUnpaidOrderExists)
}

func TestCheckoutService_CreateOrder_ShippingFailureAbortsCheckout(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()
	userID := uuid.New()
	a, b := testVariants()

	f.orderRepo.On("HasUnpaidOrder", ctx, nil, userID).Return(false, nil)
	f.variantRepo.On("GetForUpdate", ctx, nil, mock.Anything).Return([]model.Variant{a, b}, nil)
	f.shipping.On("Quote", ctx, 1442, "21211", mock.Anything).Return(nil, model.ErrExternalService)

	_, err := f.svc.CreateOrder(ctx, userID, validRequest(a, b))

	// Infrastructure causes are not surfaced to the client.
	assert.ErrorIs(t, err, model.ErrCheckoutFailed)
	f.variantRepo.AssertNotCalled(t, "DecrementStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutService_CreateOrder_RetriesOrderCodeCollision(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()
	userID := uuid.New()
	a, b := testVariants()

	collision := &pgconn.PgError{Code: "23505", ConstraintName: "orders_order_code_key"}

	f.orderRepo.On("HasUnpaidOrder", ctx, nil, userID).Return(false, nil)
	f.variantRepo.On("GetForUpdate", ctx, nil, mock.Anything).Return([]model.Variant{a, b}, nil)
	f.shipping.On("Quote", ctx, 1442, "21211", mock.Anything).Return(&shipping.Quote{Fee: 30_000, ServiceID: 2}, nil)
	f.variantRepo.On("DecrementStock", ctx, nil, mock.Anything, mock.Anything).Return(nil)
	f.orderRepo.On("Create", ctx, nil, mock.Anything, mock.Anything).Return(collision).Once()
	f.orderRepo.On("Create", ctx, nil, mock.Anything, mock.Anything).Return(nil).Once()
	f.shipping.On("LeadTime", ctx, 2, 1442, "21211").Return(time.Time{}, errors.New("skip"))
	f.orderRepo.On("GetHistory", ctx, mock.Anything).Return([]model.StatusEntry{}, nil)

	resp, err := f.svc.CreateOrder(ctx, userID, validRequest(a, b))

	require.NoError(t, err)
	require.NotNil(t, resp)
	f.orderRepo.AssertNumberOfCalls(t, "Create", 2)
}

func TestCheckoutService_CreateOrder_ValidatesInput(t *testing.T) {
	f := newCheckoutFixture()
	ctx := context.Background()
	userID := uuid.New()
	a, b := testVariants()

	tests := []struct {
		name   string
		mutate func(*model.CheckoutRequest)
	}{
		{"no items", func(r *model.CheckoutRequest) { r.Items = nil }},
		{"zero quantity", func(r *model.CheckoutRequest) { r.Items[0].Quantity = 0 }},
		{"negative quantity", func(r *model.CheckoutRequest) { r.Items[0].Quantity = -1 }},
		{"unknown payment method", func(r *model.CheckoutRequest) { r.PaymentMethod = "barter" }},
		{"missing address", func(r *model.CheckoutRequest) { r.ShippingAddressID = uuid.Nil }},
		{"missing destination", func(r *model.CheckoutRequest) { r.ToWardCode = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(a, b)
			tt.mutate(req)

			_, err := f.svc.CreateOrder(ctx, userID, req)

			var de *model.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, model.ErrCodeValidation, de.Code)
		})
	}

	f.orderRepo.AssertNotCalled(t, "HasUnpaidOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutService_CreateOrder_MissingVariant(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture()
	userID := uuid.New()
	a, b := testVariants()

	f.orderRepo.On("HasUnpaidOrder", ctx, nil, userID).Return(false, nil)
	// Only one of the two requested variants exists.
	f.variantRepo.On("GetForUpdate", ctx, nil, mock.Anything).Return([]model.Variant{a}, nil)

	_, err := f.svc.CreateOrder(ctx, userID, validRequest(a, b))

	var de *model.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, model.ErrCodeValidation, de.Code)
}
