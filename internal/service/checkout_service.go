package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ryxel/internal/discount"
	"ryxel/internal/model"
	"ryxel/internal/ordercode"
	"ryxel/internal/repository"
	"ryxel/internal/shipping"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// orderCodeAttempts bounds regeneration when a generated order code
// collides with an existing one.
const orderCodeAttempts = 3

// checkoutService implements CheckoutService.
type checkoutService struct {
	runner       repository.TxRunner
	orderRepo    repository.OrderRepository
	variantRepo  repository.VariantRepository
	discountRepo repository.DiscountRepository
	shipping     shipping.Client
	logger       zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	runner repository.TxRunner,
	orderRepo repository.OrderRepository,
	variantRepo repository.VariantRepository,
	discountRepo repository.DiscountRepository,
	shippingClient shipping.Client,
	logger zerolog.Logger,
) CheckoutService {
	return &checkoutService{
		runner:       runner,
		orderRepo:    orderRepo,
		variantRepo:  variantRepo,
		discountRepo: discountRepo,
		shipping:     shippingClient,
		logger:       logger.With().Str("service", "checkout").Logger(),
	}
}

// CreateOrder builds a durable order in one atomic transaction:
// unpaid-order guard, price snapshot, shipping fee quote, discount
// consumption, stock decrement, order insert. Any failure aborts the
// whole transaction.
func (s *checkoutService) CreateOrder(ctx context.Context, userID uuid.UUID, req *model.CheckoutRequest) (*model.OrderResponse, error) {
	if err := validateCheckoutRequest(req); err != nil {
		return nil, err
	}

	var (
		created *model.Order
		items   []model.OrderItem
		quote   *shipping.Quote
	)

	var err error
	for attempt := 1; attempt <= orderCodeAttempts; attempt++ {
		err = s.runner.RunSerializable(ctx, func(tx pgx.Tx) error {
			var txErr error
			created, items, quote, txErr = s.createInTx(ctx, tx, userID, req)
			return txErr
		})

		if repository.IsUniqueViolation(err, repository.OrderCodeConstraint) {
			s.logger.Warn().Int("attempt", attempt).Msg("order code collision, regenerating")
			continue
		}
		break
	}
	if err != nil {
		return nil, s.mapCheckoutError(err)
	}

	s.logger.Info().
		Str("order_code", created.OrderCode).
		Str("user_id", userID.String()).
		Int("item_count", len(items)).
		Int64("total", created.Total).
		Msg("order created")

	s.recordExpectedDelivery(ctx, created, quote)

	history, err := s.orderRepo.GetHistory(ctx, created.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_code", created.OrderCode).Msg("failed to load history for response")
	}

	return &model.OrderResponse{Order: created, Items: items, History: history}, nil
}

// createInTx is the transactional body of CreateOrder.
func (s *checkoutService) createInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, req *model.CheckoutRequest) (*model.Order, []model.OrderItem, *shipping.Quote, error) {
	// At most one in-flight unpaid order per user. Query-then-insert is
	// safe here: a racing pair conflicts at commit and one side retries.
	hasUnpaid, err := s.orderRepo.HasUnpaidOrder(ctx, tx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	if hasUnpaid {
		return nil, nil, nil, model.ErrUnpaidOrderExists
	}

	variantIDs := make([]uuid.UUID, 0, len(req.Items))
	quantities := make(map[string]int, len(req.Items))
	for _, item := range req.Items {
		if _, seen := quantities[item.VariantID.String()]; !seen {
			variantIDs = append(variantIDs, item.VariantID)
		}
		quantities[item.VariantID.String()] += item.Quantity
	}

	variants, err := s.variantRepo.GetForUpdate(ctx, tx, variantIDs)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(variants) != len(variantIDs) {
		return nil, nil, nil, model.NewDomainError(model.ErrCodeValidation, "one or more product variants do not exist")
	}

	variantByID := make(map[string]model.Variant, len(variants))
	for _, v := range variants {
		variantByID[v.ID.String()] = v
	}

	// Shipping fee is resolved inside the transaction: a carrier
	// timeout aborts everything, leaving no stock decremented.
	weight := shipping.ShipmentWeightGrams(variants, quantities)
	quote, err := s.shipping.Quote(ctx, req.ToDistrictID, req.ToWardCode, weight)
	if err != nil {
		return nil, nil, nil, err
	}

	now := time.Now()
	orderID := uuid.New()

	// Snapshot unit prices from the catalog as of this transaction.
	// Later catalog price changes never touch this order.
	items := make([]model.OrderItem, len(req.Items))
	var subtotal int64
	for i, item := range req.Items {
		v := variantByID[item.VariantID.String()]
		items[i] = model.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: v.Price,
			Subtotal:  v.Price * int64(item.Quantity),
		}
		subtotal += items[i].Subtotal
	}

	var discountAmount int64
	var discountCode *string
	if req.DiscountCode != nil && *req.DiscountCode != "" {
		discountAmount, discountCode, err = s.applyDiscount(ctx, tx, userID, orderID, *req.DiscountCode, subtotal, now)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	// Stock check happens here, at transaction time, not at cart-add
	// time. Any short line item aborts the whole order.
	for id, qty := range quantities {
		if err := s.variantRepo.DecrementStock(ctx, tx, uuid.MustParse(id), qty); err != nil {
			return nil, nil, nil, err
		}
	}

	order := &model.Order{
		ID:                orderID,
		OrderCode:         ordercode.Generate(userID, now),
		UserID:            userID,
		Status:            model.InitialStatus(req.PaymentMethod),
		PaymentMethod:     req.PaymentMethod,
		ShippingFee:       quote.Fee,
		DiscountAmount:    discountAmount,
		ShippingAddressID: req.ShippingAddressID,
		ToDistrictID:      req.ToDistrictID,
		ToWardCode:        req.ToWardCode,
		DiscountCode:      discountCode,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.orderRepo.Create(ctx, tx, order, items); err != nil {
		return nil, nil, nil, err
	}

	return order, items, quote, nil
}

// applyDiscount validates the code and appends the usage row within
// the order-creating transaction, so a failed checkout never spends
// the discount.
func (s *checkoutService) applyDiscount(ctx context.Context, tx pgx.Tx, userID, orderID uuid.UUID, code string, subtotal int64, now time.Time) (int64, *string, error) {
	d, err := s.discountRepo.GetByCodeForUpdate(ctx, tx, code)
	if err != nil {
		return 0, nil, err
	}
	if d == nil {
		return 0, nil, model.ErrInvalidDiscount
	}

	usedByUser, err := s.discountRepo.CountUsageByUser(ctx, tx, d.Code, userID)
	if err != nil {
		return 0, nil, err
	}
	usedTotal, err := s.discountRepo.CountUsage(ctx, tx, d.Code)
	if err != nil {
		return 0, nil, err
	}

	res := discount.Evaluate(d, usedByUser, usedTotal, subtotal, now)
	if res.Expired {
		if err := s.discountRepo.Deactivate(ctx, tx, d.Code); err != nil {
			return 0, nil, err
		}
	}
	if !res.Valid {
		s.logger.Warn().
			Str("code", d.Code).
			Str("reason", res.Reason).
			Msg("discount rejected")
		return 0, nil, model.ErrInvalidDiscount
	}

	if err := s.discountRepo.RecordUsage(ctx, tx, d.Code, userID, orderID); err != nil {
		return 0, nil, err
	}

	normalized := strings.ToUpper(code)
	return res.DiscountAmount, &normalized, nil
}

// recordExpectedDelivery asks the carrier for a lead time after the
// order committed. Best-effort metadata only.
func (s *checkoutService) recordExpectedDelivery(ctx context.Context, order *model.Order, quote *shipping.Quote) {
	at, err := s.shipping.LeadTime(ctx, quote.ServiceID, order.ToDistrictID, order.ToWardCode)
	if err != nil {
		s.logger.Warn().Err(err).Str("order_code", order.OrderCode).Msg("lead time lookup failed, skipping")
		return
	}

	if err := s.orderRepo.SetExpectedDelivery(ctx, order.ID, at); err != nil {
		s.logger.Warn().Err(err).Str("order_code", order.OrderCode).Msg("failed to record expected delivery date")
		return
	}

	order.ExpectedDeliveryDate = &at
}

// mapCheckoutError decides what surfaces to the caller. Business-rule
// rejections pass through; infrastructure and external failures are
// logged with their cause and collapsed into a generic CheckoutFailed.
func (s *checkoutService) mapCheckoutError(err error) error {
	var de *model.DomainError
	if errors.As(err, &de) {
		switch de.Code {
		case model.ErrCodeValidation,
			model.ErrCodeInsufficientStock,
			model.ErrCodeInvalidDiscount,
			model.ErrCodeUnpaidOrderExists:
			return de
		}
	}

	s.logger.Error().Err(err).Msg("checkout failed")
	return model.ErrCheckoutFailed
}

// validateCheckoutRequest validates structural input before any
// transaction is opened.
func validateCheckoutRequest(req *model.CheckoutRequest) error {
	if req == nil {
		return model.NewDomainError(model.ErrCodeValidation, "request body is required")
	}
	if len(req.Items) == 0 {
		return model.NewDomainError(model.ErrCodeValidation, "order must contain at least one item")
	}
	if req.PaymentMethod != model.PaymentMethodCard && req.PaymentMethod != model.PaymentMethodCOD {
		return model.NewDomainError(model.ErrCodeValidation, fmt.Sprintf("unknown payment method %q", req.PaymentMethod))
	}
	if req.ShippingAddressID == uuid.Nil {
		return model.NewDomainError(model.ErrCodeValidation, "shipping address is required")
	}
	if req.ToDistrictID <= 0 || req.ToWardCode == "" {
		return model.NewDomainError(model.ErrCodeValidation, "shipping destination is required")
	}

	for i, item := range req.Items {
		if item.ProductID == uuid.Nil || item.VariantID == uuid.Nil {
			return model.NewDomainError(model.ErrCodeValidation, fmt.Sprintf("item %d: product and variant are required", i))
		}
		if item.Quantity <= 0 {
			return model.NewDomainError(model.ErrCodeValidation, fmt.Sprintf("item %d: quantity must be greater than zero", i))
		}
	}

	return nil
}
