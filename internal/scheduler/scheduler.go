// Package scheduler runs the background reconciliation jobs that keep
// orders, gateway payments and carrier state consistent: stale unpaid
// cleanup, stuck-order monitoring, the unprocessed-payment sweep and
// duplicate-payment refunds.
package scheduler

import (
	"context"
	"sync"
	"time"

	"ryxel/internal/notification"
	"ryxel/internal/payment"
	"ryxel/internal/repository"
	"ryxel/internal/service"

	"github.com/rs/zerolog"
)

// Config holds job intervals and age thresholds.
type Config struct {
	// StaleUnpaidInterval is how often unpaid orders older than
	// UnpaidExpiry are cancelled.
	StaleUnpaidInterval time.Duration
	// UnpaidExpiry is how long an order may sit unpaid before the
	// cleanup job cancels it.
	UnpaidExpiry time.Duration

	// StuckMonitorInterval is how often the monitor scans for orders
	// needing attention.
	StuckMonitorInterval time.Duration
	// StuckUnpaidAfter is the age past which an unpaid order is flagged
	// to its owner and the operator channel.
	StuckUnpaidAfter time.Duration
	// StuckProcessingAfter is the age past which an untouched
	// processing order raises a high-severity alert.
	StuckProcessingAfter time.Duration

	// PaymentSweepInterval is how often the gateway is queried for
	// payments whose webhooks never arrived.
	PaymentSweepInterval time.Duration
	// PaymentSweepLookback bounds how far back the sweep scans unpaid orders.
	PaymentSweepLookback time.Duration

	// DuplicateRefundInterval is how often duplicate payment groups are
	// collected and refunded.
	DuplicateRefundInterval time.Duration
	// DuplicateLookback bounds how far back the refund job scans.
	DuplicateLookback time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		StaleUnpaidInterval:     time.Hour,
		UnpaidExpiry:            24 * time.Hour,
		StuckMonitorInterval:    30 * time.Minute,
		StuckUnpaidAfter:        2 * time.Hour,
		StuckProcessingAfter:    48 * time.Hour,
		PaymentSweepInterval:    15 * time.Minute,
		PaymentSweepLookback:    24 * time.Hour,
		DuplicateRefundInterval: time.Hour,
		DuplicateLookback:       7 * 24 * time.Hour,
	}
}

// Scheduler owns the reconciliation job loops.
type Scheduler struct {
	orderRepo repository.OrderRepository
	orders    service.OrderService
	gateway   payment.Gateway
	notifier  notification.Notifier
	cfg       Config
	logger    zerolog.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New creates a scheduler. Start must be called to begin the loops.
func New(
	orderRepo repository.OrderRepository,
	orders service.OrderService,
	gateway payment.Gateway,
	notifier notification.Notifier,
	cfg Config,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		orderRepo: orderRepo,
		orders:    orders,
		gateway:   gateway,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start launches one goroutine per job. The loops stop when Stop is
// called or the parent context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.launch(ctx, "stale-unpaid-cleanup", s.cfg.StaleUnpaidInterval, s.runStaleUnpaidCleanup)
	s.launch(ctx, "stuck-order-monitor", s.cfg.StuckMonitorInterval, s.runStuckOrderMonitor)
	s.launch(ctx, "unprocessed-payment-sweep", s.cfg.PaymentSweepInterval, s.runPaymentSweep)
	s.launch(ctx, "duplicate-payment-refund", s.cfg.DuplicateRefundInterval, s.runDuplicateRefund)

	s.logger.Info().Msg("reconciliation jobs started")
}

// Stop cancels the loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("reconciliation jobs stopped")
}

func (s *Scheduler) launch(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	if interval <= 0 {
		s.logger.Warn().Str("job", name).Msg("job disabled, interval not set")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				run(ctx)
				s.logger.Debug().
					Str("job", name).
					Dur("took", time.Since(start)).
					Msg("job run finished")
			}
		}
	}()
}
