package handler

import (
	"context"

	"ryxel/internal/model"
	"ryxel/internal/payment"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCheckoutService is a mock implementation of service.CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) CreateOrder(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.OrderResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}

// MockOrderService is a mock implementation of service.OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) GetByCode(ctx context.Context, userID uuid.UUID, code string) (*model.OrderResponse, error) {
	args := m.Called(ctx, userID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OrderResponse), args.Error(1)
}

func (m *MockOrderService) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderService) CancelByUser(ctx context.Context, userID uuid.UUID, code string) error {
	return m.Called(ctx, userID, code).Error(0)
}

func (m *MockOrderService) CancelBySystem(ctx context.Context, code, description string) error {
	return m.Called(ctx, code, description).Error(0)
}

func (m *MockOrderService) AdvanceStatus(ctx context.Context, code string, next model.OrderStatus) error {
	return m.Called(ctx, code, next).Error(0)
}

func (m *MockOrderService) MarkPaid(ctx context.Context, code, paymentID, checkoutID string, amount int64) error {
	return m.Called(ctx, code, paymentID, checkoutID, amount).Error(0)
}

func (m *MockOrderService) MarkRefunded(ctx context.Context, code, description string) error {
	return m.Called(ctx, code, description).Error(0)
}

func (m *MockOrderService) ApplyCarrierEvent(ctx context.Context, ev model.CarrierEvent) error {
	return m.Called(ctx, ev).Error(0)
}

// MockDiscountService is a mock implementation of service.DiscountService.
type MockDiscountService struct {
	mock.Mock
}

func (m *MockDiscountService) GetByCode(ctx context.Context, code string) (*model.Discount, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Discount), args.Error(1)
}

func (m *MockDiscountService) Update(ctx context.Context, code string, upd model.DiscountUpdate) error {
	return m.Called(ctx, code, upd).Error(0)
}

// MockPaymentService is a mock implementation of service.PaymentService.
type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) InitiateCheckout(ctx context.Context, userID uuid.UUID, code string) (*payment.Session, error) {
	args := m.Called(ctx, userID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockPaymentService) ProcessWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}
