package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ryxel/internal/config"
	"ryxel/internal/database"
	"ryxel/internal/handler"
	"ryxel/internal/notification"
	"ryxel/internal/payment"
	"ryxel/internal/ratelimit"
	"ryxel/internal/repository"
	"ryxel/internal/router"
	"ryxel/internal/scheduler"
	"ryxel/internal/service"
	"ryxel/internal/shipping"

	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting order API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize repositories and the serializable transaction runner
	runner := repository.NewTxRunner(pool, cfg.Database.TxMaxAttempts, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	variantRepo := repository.NewVariantRepository(pool, logger)
	discountRepo := repository.NewDiscountRepository(pool, logger)

	// Initialize external clients
	shippingClient := shipping.NewClient(shipping.Config{
		BaseURL:        cfg.Shipping.BaseURL,
		Token:          cfg.Shipping.Token,
		FromDistrictID: cfg.Shipping.FromDistrictID,
	}, logger)

	gateway := payment.NewGateway(payment.Config{
		BaseURL: cfg.Payment.BaseURL,
		APIKey:  cfg.Payment.APIKey,
	}, logger)

	// Notifications go to Kafka when enabled, otherwise into the void
	notifier := notification.NewNopNotifier()
	if cfg.Notification.Enabled {
		notifier = notification.NewKafkaNotifier(cfg.Notification.Brokers, cfg.Notification.Topic, logger)
		logger.Info().
			Strs("brokers", cfg.Notification.Brokers).
			Str("topic", cfg.Notification.Topic).
			Msg("kafka notifications enabled")
	}

	// Checkout throttle: shared Redis window when configured, process
	// memory otherwise
	var limiterStore ratelimit.Store
	if cfg.RateLimit.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
		defer redisClient.Close()
		limiterStore = ratelimit.NewRedisStore(redisClient, "checkout")
		logger.Info().Str("addr", cfg.RateLimit.RedisAddr).Msg("using redis rate limit store")
	} else {
		limiterStore = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.New(limiterStore, cfg.RateLimit.Limit, cfg.RateLimit.Window, logger)

	// Initialize services
	orderService := service.NewOrderService(runner, orderRepo, variantRepo, notifier, logger)
	checkoutService := service.NewCheckoutService(runner, orderRepo, variantRepo, discountRepo, shippingClient, logger)
	paymentService := service.NewPaymentService(orderRepo, orderService, gateway, limiter,
		cfg.Payment.WebhookSecret, cfg.Payment.SuccessURL, logger)
	discountService := service.NewDiscountService(discountRepo, logger)

	// Start reconciliation jobs
	if cfg.Scheduler.Enabled {
		sched := scheduler.New(orderRepo, orderService, gateway, notifier, scheduler.Config{
			StaleUnpaidInterval:     cfg.Scheduler.StaleUnpaidInterval,
			UnpaidExpiry:            cfg.Scheduler.UnpaidExpiry,
			StuckMonitorInterval:    cfg.Scheduler.StuckMonitorInterval,
			StuckUnpaidAfter:        cfg.Scheduler.StuckUnpaidAfter,
			StuckProcessingAfter:    cfg.Scheduler.StuckProcessingAfter,
			PaymentSweepInterval:    cfg.Scheduler.PaymentSweepInterval,
			PaymentSweepLookback:    cfg.Scheduler.PaymentSweepLookback,
			DuplicateRefundInterval: cfg.Scheduler.DuplicateRefundInterval,
			DuplicateLookback:       cfg.Scheduler.DuplicateLookback,
		}, logger)
		sched.Start(ctx)
		defer sched.Stop()
	} else {
		logger.Warn().Msg("reconciliation jobs disabled")
	}

	// Initialize HTTP handlers
	orderHandler := handler.NewOrderHandler(checkoutService, orderService, paymentService, logger)
	discountHandler := handler.NewDiscountHandler(discountService, logger)
	webhookHandler := handler.NewWebhookHandler(paymentService, orderService, logger)

	// Initialize router
	mux := router.New(orderHandler, discountHandler, webhookHandler, cfg.Auth.APIKey, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
