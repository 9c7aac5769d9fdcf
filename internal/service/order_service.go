package service

import (
	"context"
	"fmt"
	"time"

	"ryxel/internal/model"
	"ryxel/internal/notification"
	"ryxel/internal/repository"
	"ryxel/internal/shipping"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// defaultCarrierCode is recorded when a carrier event arrives for an
// order without a carrier assigned yet.
const defaultCarrierCode = "ghn"

// orderService implements OrderService.
type orderService struct {
	runner      repository.TxRunner
	orderRepo   repository.OrderRepository
	variantRepo repository.VariantRepository
	notifier    notification.Notifier
	logger      zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	runner repository.TxRunner,
	orderRepo repository.OrderRepository,
	variantRepo repository.VariantRepository,
	notifier notification.Notifier,
	logger zerolog.Logger,
) OrderService {
	return &orderService{
		runner:      runner,
		orderRepo:   orderRepo,
		variantRepo: variantRepo,
		notifier:    notifier,
		logger:      logger.With().Str("service", "order").Logger(),
	}
}

// GetByCode retrieves an order with items and history.
func (s *orderService) GetByCode(ctx context.Context, userID uuid.UUID, code string) (*model.OrderResponse, error) {
	order, err := s.orderRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}

	// Ownership check doubles as not-found so order codes cannot be probed.
	if userID != uuid.Nil && order.UserID != userID {
		return nil, model.ErrOrderNotFound
	}

	items, err := s.orderRepo.GetItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	history, err := s.orderRepo.GetHistory(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}

	return &model.OrderResponse{Order: order, Items: items, History: history}, nil
}

// ListByUser retrieves a user's orders, newest first.
func (s *orderService) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// CancelByUser cancels the user's own order within the 30-minute window.
func (s *orderService) CancelByUser(ctx context.Context, userID uuid.UUID, code string) error {
	return s.cancel(ctx, code, "Order cancelled by customer", func(order *model.Order) error {
		if order.UserID != userID {
			return model.ErrOrderNotFound
		}
		if order.Status != model.StatusUnpaid && order.Status != model.StatusPending {
			return model.ErrInvalidTransition
		}
		if time.Since(order.CreatedAt) > model.CancelWindow {
			return model.ErrCancelWindowExpired
		}
		return nil
	})
}

// CancelBySystem cancels on behalf of staff or a reconciliation job.
func (s *orderService) CancelBySystem(ctx context.Context, code, description string) error {
	err := s.cancel(ctx, code, description, func(order *model.Order) error {
		if !order.Status.CanTransitionTo(model.StatusCancelled) {
			return model.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Best-effort: the owner learns their order was cancelled.
	if order, lookupErr := s.orderRepo.GetByCode(ctx, code); lookupErr == nil && order != nil {
		s.notifier.Notify(ctx, order.UserID, notification.Message{
			Title: "Order cancelled",
			Body:  fmt.Sprintf("Your order %s has been cancelled: %s", code, description),
			Data:  map[string]string{"orderCode": code},
		})
	}

	return nil
}

// cancel runs the shared cancellation transaction: guard, stock
// restore per line item, status write with history.
func (s *orderService) cancel(ctx context.Context, code, description string, guard func(*model.Order) error) error {
	return s.runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		order, err := s.orderRepo.GetByCodeForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}
		if order == nil {
			return model.ErrOrderNotFound
		}

		if err := guard(order); err != nil {
			return err
		}

		items, err := s.orderRepo.GetItems(ctx, order.ID)
		if err != nil {
			return err
		}

		for _, item := range items {
			if err := s.variantRepo.RestoreStock(ctx, tx, item.VariantID, item.Quantity); err != nil {
				return err
			}
		}

		if err := s.orderRepo.SetStatus(ctx, tx, order.ID, model.StatusCancelled, description, true); err != nil {
			return err
		}

		s.logger.Info().
			Str("order_code", code).
			Int("items_restored", len(items)).
			Msg("order cancelled, stock restored")

		return nil
	})
}

// AdvanceStatus drives the staff-side monotonic advance.
func (s *orderService) AdvanceStatus(ctx context.Context, code string, next model.OrderStatus) error {
	switch next {
	case model.StatusProcessing, model.StatusShipped, model.StatusDelivered:
	default:
		return model.NewDomainError(model.ErrCodeValidation,
			fmt.Sprintf("status %q is not a staff-advanceable state", next))
	}

	return s.runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		order, err := s.orderRepo.GetByCodeForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}
		if order == nil {
			return model.ErrOrderNotFound
		}

		if !order.Status.CanTransitionTo(next) {
			s.logger.Warn().
				Str("order_code", code).
				Str("from", string(order.Status)).
				Str("to", string(next)).
				Msg("rejected status transition")
			return model.ErrInvalidTransition
		}

		return s.orderRepo.SetStatus(ctx, tx, order.ID, next,
			fmt.Sprintf("Order moved to %s", next), true)
	})
}

// MarkPaid records the gateway checkout info and moves unpaid -> pending.
// This is the only code path that writes checkout.paymentId, which
// keeps the webhook and the reconciliation sweep from racing each
// other: lookup, idempotency guard, duplicate check and transition all
// happen inside one transaction.
func (s *orderService) MarkPaid(ctx context.Context, code, paymentID, checkoutID string, amount int64) error {
	var paidUser *uuid.UUID

	err := s.runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		order, err := s.orderRepo.GetByCodeForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}
		if order == nil {
			return model.ErrOrderNotFound
		}

		// Idempotency guard: duplicate delivery of the same event, or a
		// replay racing a newer transition, lands here and is a no-op.
		if order.Status != model.StatusUnpaid {
			s.logger.Info().
				Str("order_code", code).
				Str("status", string(order.Status)).
				Str("payment_id", paymentID).
				Msg("order already past unpaid, payment event ignored")
			return nil
		}

		inUse, err := s.orderRepo.PaymentIDInUse(ctx, tx, paymentID, order.ID)
		if err != nil {
			return err
		}
		if inUse {
			// Gateway-side charge reuse. Leave the order unpaid; the
			// duplicate-payment job owns the repair.
			s.logger.Error().
				Str("order_code", code).
				Str("payment_id", paymentID).
				Msg("payment id already held by another live order")
			return model.ErrDuplicatePayment
		}

		if err := s.orderRepo.RecordPayment(ctx, tx, order.ID, paymentID, checkoutID, amount); err != nil {
			return err
		}

		if err := s.orderRepo.SetStatus(ctx, tx, order.ID, model.StatusPending, "Payment confirmed", true); err != nil {
			return err
		}

		paidUser = &order.UserID
		return nil
	})
	if err != nil {
		return err
	}

	if paidUser != nil {
		s.logger.Info().
			Str("order_code", code).
			Str("payment_id", paymentID).
			Msg("order marked paid")

		s.notifier.Notify(ctx, *paidUser, notification.Message{
			Title: "Payment received",
			Body:  fmt.Sprintf("We have received payment for order %s.", code),
			Data:  map[string]string{"orderCode": code},
		})
	}

	return nil
}

// MarkRefunded transitions a post-payment order to refunded without
// restoring stock.
func (s *orderService) MarkRefunded(ctx context.Context, code, description string) error {
	return s.runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		order, err := s.orderRepo.GetByCodeForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}
		if order == nil {
			return model.ErrOrderNotFound
		}

		if !order.Status.CanTransitionTo(model.StatusRefunded) {
			return model.ErrInvalidTransition
		}

		return s.orderRepo.SetStatus(ctx, tx, order.ID, model.StatusRefunded, description, true)
	})
}

// ApplyCarrierEvent applies a shipping webhook event.
func (s *orderService) ApplyCarrierEvent(ctx context.Context, ev model.CarrierEvent) error {
	mapping, recognized := shipping.MapStatus(ev.Status)
	if !recognized {
		// Carriers add statuses over time; acknowledge and move on.
		s.logger.Info().
			Str("order_code", ev.OrderCode).
			Str("carrier_status", ev.Status).
			Msg("unrecognized carrier status, ignoring")
		return nil
	}

	at := ev.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	return s.runner.RunSerializable(ctx, func(tx pgx.Tx) error {
		order, err := s.orderRepo.GetByCodeForUpdate(ctx, tx, ev.OrderCode)
		if err != nil {
			return err
		}
		if order == nil {
			return model.ErrOrderNotFound
		}

		carrierCode := defaultCarrierCode
		if order.CarrierCode != nil {
			carrierCode = *order.CarrierCode
		}
		if err := s.orderRepo.SetTracking(ctx, tx, order.ID, carrierCode, ev.Status); err != nil {
			return err
		}

		// Every recognized event lands in the history, even when the
		// top-level status does not move.
		historyStatus := order.Status
		advances := mapping.Advance != "" && order.Status.CanTransitionTo(mapping.Advance)
		if advances {
			historyStatus = mapping.Advance
		}

		if err := s.orderRepo.AppendHistory(ctx, tx, order.ID, historyStatus, mapping.Description, at); err != nil {
			return err
		}

		if advances {
			// History row above already covers this event; skip the
			// second, semantically equivalent row.
			if err := s.orderRepo.SetStatus(ctx, tx, order.ID, mapping.Advance, mapping.Description, false); err != nil {
				return err
			}

			s.logger.Info().
				Str("order_code", ev.OrderCode).
				Str("carrier_status", ev.Status).
				Str("order_status", string(mapping.Advance)).
				Msg("carrier event advanced order status")
		}

		return nil
	})
}
