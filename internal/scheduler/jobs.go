package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"ryxel/internal/model"
	"ryxel/internal/notification"
)

// runStaleUnpaidCleanup cancels unpaid orders older than the expiry so
// their reserved stock returns to the shelf.
func (s *Scheduler) runStaleUnpaidCleanup(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.UnpaidExpiry)

	orders, err := s.orderRepo.ListUnpaidCreatedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("stale unpaid scan failed")
		return
	}

	var cancelled int
	for _, order := range orders {
		err := s.orders.CancelBySystem(ctx, order.OrderCode, "Order cancelled: payment not received in time")
		switch {
		case err == nil:
			cancelled++
		case errors.Is(err, model.ErrInvalidTransition):
			// Paid or cancelled between the scan and this call. Fine.
		default:
			// One bad order must not stop the rest of the batch.
			s.logger.Error().Err(err).Str("order_code", order.OrderCode).Msg("failed to cancel stale unpaid order")
		}
	}

	if len(orders) > 0 {
		s.logger.Info().
			Int("scanned", len(orders)).
			Int("cancelled", cancelled).
			Msg("stale unpaid cleanup finished")
	}
}

// runStuckOrderMonitor flags orders that need human attention: unpaid
// orders approaching expiry, processing orders nobody has touched, and
// payment IDs shared across live orders.
func (s *Scheduler) runStuckOrderMonitor(ctx context.Context) {
	now := time.Now()

	// Unpaid past the nudge threshold but not yet old enough for the
	// cleanup job to cancel.
	stuckUnpaid, err := s.orderRepo.ListUnpaidCreatedBetween(ctx, now.Add(-s.cfg.UnpaidExpiry), now.Add(-s.cfg.StuckUnpaidAfter))
	if err != nil {
		s.logger.Error().Err(err).Msg("stuck unpaid scan failed")
	} else {
		for _, order := range stuckUnpaid {
			s.notifier.Notify(ctx, order.UserID, notification.Message{
				Title: "Complete your payment",
				Body:  fmt.Sprintf("Order %s is waiting for payment and will be cancelled soon.", order.OrderCode),
				Data:  map[string]string{"orderCode": order.OrderCode},
			})
			s.notifier.Alert(ctx, notification.SeverityMedium, notification.Message{
				Title: "Order stuck unpaid",
				Body:  fmt.Sprintf("Order %s has been unpaid for over %s.", order.OrderCode, s.cfg.StuckUnpaidAfter),
				Data:  map[string]string{"orderCode": order.OrderCode},
			})
		}
	}

	stuckProcessing, err := s.orderRepo.ListProcessingStuckSince(ctx, now.Add(-s.cfg.StuckProcessingAfter))
	if err != nil {
		s.logger.Error().Err(err).Msg("stuck processing scan failed")
	} else {
		for _, order := range stuckProcessing {
			s.notifier.Alert(ctx, notification.SeverityHigh, notification.Message{
				Title: "Order stuck in processing",
				Body:  fmt.Sprintf("Order %s has sat in processing for over %s without a shipment.", order.OrderCode, s.cfg.StuckProcessingAfter),
				Data:  map[string]string{"orderCode": order.OrderCode},
			})
		}
	}

	groups, err := s.orderRepo.ListDuplicatePaymentGroups(ctx, now.Add(-s.cfg.DuplicateLookback))
	if err != nil {
		s.logger.Error().Err(err).Msg("duplicate payment scan failed")
		return
	}
	for paymentID, orders := range groups {
		codes := make([]string, len(orders))
		for i, o := range orders {
			codes[i] = o.OrderCode
		}
		s.notifier.Alert(ctx, notification.SeverityCritical, notification.Message{
			Title: "Duplicate payment detected",
			Body:  fmt.Sprintf("Payment %s is recorded against %d orders: %v.", paymentID, len(orders), codes),
			Data:  map[string]string{"paymentId": paymentID},
		})
	}
}

// runPaymentSweep covers the missed-webhook gap: it asks the gateway
// directly about recent unpaid card orders and applies any payment it
// finds through the same transition the webhook uses.
func (s *Scheduler) runPaymentSweep(ctx context.Context) {
	now := time.Now()

	orders, err := s.orderRepo.ListUnpaidCreatedBetween(ctx, now.Add(-s.cfg.PaymentSweepLookback), now)
	if err != nil {
		s.logger.Error().Err(err).Msg("payment sweep scan failed")
		return
	}

	var applied, failures int
	for _, order := range orders {
		session, err := s.gateway.FindSessionByOrderCode(ctx, order.OrderCode)
		if err != nil {
			failures++
			s.logger.Warn().Err(err).Str("order_code", order.OrderCode).Msg("gateway session lookup failed")
			continue
		}
		if session == nil || !session.Paid {
			continue
		}

		err = s.orders.MarkPaid(ctx, order.OrderCode, session.PaymentID, session.ID, session.Amount)
		switch {
		case err == nil:
			applied++
			s.logger.Info().
				Str("order_code", order.OrderCode).
				Str("payment_id", session.PaymentID).
				Msg("recovered payment missed by webhook")
		case errors.Is(err, model.ErrDuplicatePayment):
			// Already flagged by the monitor; the refund job owns it.
		default:
			failures++
			s.logger.Error().Err(err).Str("order_code", order.OrderCode).Msg("failed to apply recovered payment")
		}
	}

	// Every lookup failing points at the gateway or our credentials,
	// not at individual orders.
	if failures > 0 && failures == len(orders) {
		s.notifier.Alert(ctx, notification.SeverityHigh, notification.Message{
			Title: "Payment sweep failing",
			Body:  fmt.Sprintf("All %d gateway lookups in the payment sweep failed.", failures),
		})
	}

	if applied > 0 {
		s.logger.Info().Int("applied", applied).Msg("payment sweep finished")
	}
}

// runDuplicateRefund resolves payment IDs charged against multiple live
// orders: the earliest order keeps the payment, every later one is
// refunded and marked refunded.
func (s *Scheduler) runDuplicateRefund(ctx context.Context) {
	groups, err := s.orderRepo.ListDuplicatePaymentGroups(ctx, time.Now().Add(-s.cfg.DuplicateLookback))
	if err != nil {
		s.logger.Error().Err(err).Msg("duplicate refund scan failed")
		return
	}

	for paymentID, orders := range groups {
		sort.Slice(orders, func(i, j int) bool {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		})

		for _, order := range orders[1:] {
			s.refundDuplicate(ctx, paymentID, order)
		}
	}
}

func (s *Scheduler) refundDuplicate(ctx context.Context, paymentID string, order model.Order) {
	if err := s.gateway.Refund(ctx, paymentID, order.Total); err != nil {
		// No automatic retry: a failed refund needs eyes before money
		// moves again.
		s.logger.Error().
			Err(err).
			Str("order_code", order.OrderCode).
			Str("payment_id", paymentID).
			Msg("duplicate refund failed")
		s.notifier.Alert(ctx, notification.SeverityCritical, notification.Message{
			Title: "Duplicate refund failed",
			Body:  fmt.Sprintf("Refunding payment %s for order %s failed and needs manual review.", paymentID, order.OrderCode),
			Data:  map[string]string{"orderCode": order.OrderCode, "paymentId": paymentID},
		})
		return
	}

	if err := s.orders.MarkRefunded(ctx, order.OrderCode, "Duplicate payment refunded"); err != nil {
		// Money is already back with the customer; only our record is
		// behind. Flag it rather than refund twice.
		s.logger.Error().
			Err(err).
			Str("order_code", order.OrderCode).
			Msg("refund issued but order not marked refunded")
		s.notifier.Alert(ctx, notification.SeverityCritical, notification.Message{
			Title: "Refund recorded at gateway only",
			Body:  fmt.Sprintf("Order %s was refunded at the gateway but could not be marked refunded.", order.OrderCode),
			Data:  map[string]string{"orderCode": order.OrderCode},
		})
		return
	}

	s.notifier.Notify(ctx, order.UserID, notification.Message{
		Title: "Duplicate payment refunded",
		Body:  fmt.Sprintf("A duplicate charge on order %s has been refunded.", order.OrderCode),
		Data:  map[string]string{"orderCode": order.OrderCode},
	})
	s.notifier.Alert(ctx, notification.SeverityCritical, notification.Message{
		Title: "Duplicate payment refunded",
		Body:  fmt.Sprintf("Payment %s was duplicated; order %s has been refunded.", paymentID, order.OrderCode),
		Data:  map[string]string{"orderCode": order.OrderCode, "paymentId": paymentID},
	})

	s.logger.Info().
		Str("order_code", order.OrderCode).
		Str("payment_id", paymentID).
		Int64("amount", order.Total).
		Msg("duplicate payment refunded")
}
