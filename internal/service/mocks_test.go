package service

import (
	"context"
	"time"

	"ryxel/internal/model"
	"ryxel/internal/notification"
	"ryxel/internal/payment"
	"ryxel/internal/shipping"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// stubTxRunner invokes the transactional body directly with a nil tx.
// Repositories are mocked, so no real transaction is needed.
type stubTxRunner struct{}

func (stubTxRunner) RunSerializable(_ context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

// MockOrderRepository is a mock implementation of repository.OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, tx pgx.Tx, order *model.Order, items []model.OrderItem) error {
	args := m.Called(ctx, tx, order, items)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByCode(ctx context.Context, code string) (*model.Order, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*model.Order, error) {
	args := m.Called(ctx, tx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) GetItems(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OrderItem), args.Error(1)
}

func (m *MockOrderRepository) GetHistory(ctx context.Context, orderID uuid.UUID) ([]model.StatusEntry, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StatusEntry), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) HasUnpaidOrder(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) SetStatus(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus, description string, appendHistory bool) error {
	args := m.Called(ctx, tx, orderID, status, description, appendHistory)
	return args.Error(0)
}

func (m *MockOrderRepository) AppendHistory(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, status model.OrderStatus, description string, at time.Time) error {
	args := m.Called(ctx, tx, orderID, status, description, at)
	return args.Error(0)
}

func (m *MockOrderRepository) RecordPayment(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, paymentID, checkoutID string, amount int64) error {
	args := m.Called(ctx, tx, orderID, paymentID, checkoutID, amount)
	return args.Error(0)
}

func (m *MockOrderRepository) PaymentIDInUse(ctx context.Context, tx pgx.Tx, paymentID string, excludeOrderID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, paymentID, excludeOrderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) SetTracking(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, carrierCode, trackingStatus string) error {
	args := m.Called(ctx, tx, orderID, carrierCode, trackingStatus)
	return args.Error(0)
}

func (m *MockOrderRepository) SetExpectedDelivery(ctx context.Context, orderID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, orderID, at)
	return args.Error(0)
}

func (m *MockOrderRepository) ListUnpaidCreatedBefore(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListUnpaidCreatedBetween(ctx context.Context, from, to time.Time) ([]model.Order, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListProcessingStuckSince(ctx context.Context, cutoff time.Time) ([]model.Order, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListDuplicatePaymentGroups(ctx context.Context, since time.Time) (map[string][]model.Order, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]model.Order), args.Error(1)
}

// MockVariantRepository is a mock implementation of repository.VariantRepository.
type MockVariantRepository struct {
	mock.Mock
}

func (m *MockVariantRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, ids []uuid.UUID) ([]model.Variant, error) {
	args := m.Called(ctx, tx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Variant), args.Error(1)
}

func (m *MockVariantRepository) DecrementStock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, quantity int) error {
	args := m.Called(ctx, tx, variantID, quantity)
	return args.Error(0)
}

func (m *MockVariantRepository) RestoreStock(ctx context.Context, tx pgx.Tx, variantID uuid.UUID, quantity int) error {
	args := m.Called(ctx, tx, variantID, quantity)
	return args.Error(0)
}

// MockDiscountRepository is a mock implementation of repository.DiscountRepository.
type MockDiscountRepository struct {
	mock.Mock
}

func (m *MockDiscountRepository) GetByCode(ctx context.Context, code string) (*model.Discount, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Discount), args.Error(1)
}

func (m *MockDiscountRepository) GetByCodeForUpdate(ctx context.Context, tx pgx.Tx, code string) (*model.Discount, error) {
	args := m.Called(ctx, tx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Discount), args.Error(1)
}

func (m *MockDiscountRepository) CountUsage(ctx context.Context, tx pgx.Tx, code string) (int, error) {
	args := m.Called(ctx, tx, code)
	return args.Int(0), args.Error(1)
}

func (m *MockDiscountRepository) CountUsageByUser(ctx context.Context, tx pgx.Tx, code string, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, tx, code, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockDiscountRepository) RecordUsage(ctx context.Context, tx pgx.Tx, code string, userID, orderID uuid.UUID) error {
	args := m.Called(ctx, tx, code, userID, orderID)
	return args.Error(0)
}

func (m *MockDiscountRepository) Deactivate(ctx context.Context, tx pgx.Tx, code string) error {
	args := m.Called(ctx, tx, code)
	return args.Error(0)
}

func (m *MockDiscountRepository) Update(ctx context.Context, code string, upd model.DiscountUpdate) error {
	args := m.Called(ctx, code, upd)
	return args.Error(0)
}

// MockShippingClient is a mock implementation of shipping.Client.
type MockShippingClient struct {
	mock.Mock
}

func (m *MockShippingClient) Quote(ctx context.Context, toDistrictID int, toWardCode string, weightGrams int) (*shipping.Quote, error) {
	args := m.Called(ctx, toDistrictID, toWardCode, weightGrams)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shipping.Quote), args.Error(1)
}

func (m *MockShippingClient) LeadTime(ctx context.Context, serviceID, toDistrictID int, toWardCode string) (time.Time, error) {
	args := m.Called(ctx, serviceID, toDistrictID, toWardCode)
	return args.Get(0).(time.Time), args.Error(1)
}

// MockGateway is a mock implementation of payment.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, order *model.Order, items []model.OrderItem, successURL string) (*payment.Session, error) {
	args := m.Called(ctx, order, items, successURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) FindSessionByOrderCode(ctx context.Context, orderCode string) (*payment.Session, error) {
	args := m.Called(ctx, orderCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, paymentID string, amount int64) error {
	args := m.Called(ctx, paymentID, amount)
	return args.Error(0)
}

// MockNotifier is a mock implementation of notification.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID uuid.UUID, msg notification.Message) {
	m.Called(ctx, userID, msg)
}

func (m *MockNotifier) Alert(ctx context.Context, severity notification.Severity, msg notification.Message) {
	m.Called(ctx, severity, msg)
}

// MockOrderService is a mock implementation of OrderService.
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
	args := m.Called(ctx, userID, code)
	return args.Error(0)
}

func (m *MockOrderService) CancelBySystem(ctx context.Context, code, description string) error {
	args := m.Called(ctx, code, description)
	return args.Error(0)
}

func (m *MockOrderService) AdvanceStatus(ctx context.Context, code string, next model.OrderStatus) error {
	args := m.Called(ctx, code, next)
	return args.Error(0)
}

func (m *MockOrderService) MarkPaid(ctx context.Context, code, paymentID, checkoutID string, amount int64) error {
	args := m.Called(ctx, code, paymentID, checkoutID, amount)
	return args.Error(0)
}

func (m *MockOrderService) MarkRefunded(ctx context.Context, code, description string) error {
	args := m.Called(ctx, code, description)
	return args.Error(0)
}

func (m *MockOrderService) ApplyCarrierEvent(ctx context.Context, ev model.CarrierEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// MockTx is a minimal mock implementation of pgx.Tx for tests that
// need a non-nil transaction value.
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit(ctx context.Context) error   { return nil }
func (m *MockTx) Rollback(ctx context.Context) error { return nil }

// Stub methods to satisfy pgx.Tx - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }
