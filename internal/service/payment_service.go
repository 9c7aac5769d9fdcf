package service

import (
	"context"
	"errors"
	"fmt"

	"ryxel/internal/model"
	"ryxel/internal/payment"
	"ryxel/internal/ratelimit"
	"ryxel/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// paymentService implements PaymentService.
type paymentService struct {
	orderRepo     repository.OrderRepository
	orders        OrderService
	gateway       payment.Gateway
	limiter       *ratelimit.Limiter
	webhookSecret string
	successURL    string
	logger        zerolog.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	orderRepo repository.OrderRepository,
	orders OrderService,
	gateway payment.Gateway,
	limiter *ratelimit.Limiter,
	webhookSecret string,
	successURL string,
	logger zerolog.Logger,
) PaymentService {
	return &paymentService{
		orderRepo:     orderRepo,
		orders:        orders,
		gateway:       gateway,
		limiter:       limiter,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		logger:        logger.With().Str("service", "payment").Logger(),
	}
}

// InitiateCheckout opens a gateway checkout session for an unpaid order.
func (s *paymentService) InitiateCheckout(ctx context.Context, userID uuid.UUID, code string) (*payment.Session, error) {
	if !s.limiter.Allow(ctx, fmt.Sprintf("%s:%s", userID, code)) {
		return nil, model.ErrRateLimited
	}

	order, err := s.orderRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, model.ErrOrderNotFound
	}

	if order.PaymentMethod != model.PaymentMethodCard {
		return nil, model.NewDomainError(model.ErrCodeValidation, "only card orders go through gateway checkout")
	}
	if order.Status != model.StatusUnpaid {
		return nil, model.NewDomainError(model.ErrCodeValidation,
			fmt.Sprintf("order is %s, checkout is only available while unpaid", order.Status))
	}

	items, err := s.orderRepo.GetItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, order, items, s.successURL)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("order_code", code).
		Str("session_id", session.ID).
		Msg("checkout session initiated")

	return session, nil
}

// ProcessWebhook verifies and applies a payment gateway event. Once the
// signature checks out, every outcome except an infrastructure failure
// is final: duplicates, unknown orders and unpaid events are all
// settled and must not be redelivered.
func (s *paymentService) ProcessWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := payment.VerifyEvent(payload, signature, s.webhookSecret)
	if err != nil {
		s.logger.Warn().Err(err).Msg("rejected payment webhook")
		return err
	}

	if !ev.Paid {
		// Session created, payment failed, etc. Nothing to apply.
		s.logger.Info().
			Str("order_code", ev.OrderCode).
			Str("session_id", ev.SessionID).
			Msg("non-payment gateway event, ignoring")
		return nil
	}

	err = s.orders.MarkPaid(ctx, ev.OrderCode, ev.PaymentID, ev.SessionID, ev.Amount)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrOrderNotFound):
		// The gateway knows an order we do not. Log loudly; redelivery
		// would not help.
		s.logger.Error().
			Str("order_code", ev.OrderCode).
			Str("payment_id", ev.PaymentID).
			Msg("payment event references unknown order")
		return nil
	case errors.Is(err, model.ErrDuplicatePayment):
		// Recorded and rejected. The duplicate-payment job owns the repair.
		return nil
	default:
		return err
	}
}
