package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-payments/internal/config"
	"marketplace-payments/internal/domain/ports/adapter"
	payAdapters "marketplace-payments/internal/infra/adapters/payment"
	pg "marketplace-payments/internal/infra/db/postgres"
	"marketplace-payments/internal/infra/logging"
	"marketplace-payments/internal/infra/metrics"
	red "marketplace-payments/internal/infra/redis"
	"marketplace-payments/internal/infra/sched"
	"marketplace-payments/internal/infra/web"
	"marketplace-payments/internal/infra/worker"
	"marketplace-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop gateway allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	walletRepo := pg.NewWalletRepo(pool)
	sessionRepo := pg.NewPaymentSessionRepo(pool)
	listingRepo := pg.NewListingRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Redis (optional; without it wallet mutations serialize per process only) ----
	var locker usecase.AccountLocker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; cross-instance wallet locking disabled")
	}

	// ---- Use cases ----
	catalog, err := usecase.NewPlanCatalog(cfg.Plans)
	if err != nil {
		logger.Fatal().Err(err).Msg("plan catalog invalid")
	}
	walletUC := usecase.NewWalletUseCase(walletRepo, locker, logger)
	listingUC := usecase.NewListingUseCase(listingRepo, logger)

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Gateway.Paystack.SecretKey != "" {
		gateway, err = payAdapters.NewPaystackGateway(
			cfg.Gateway.Paystack.SecretKey,
			cfg.Gateway.Paystack.BaseURL,
			cfg.Gateway.Paystack.CallbackURL,
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("paystack gateway init failed")
		}
		logger.Info().Str("gateway", gateway.Name()).Msg("payment gateway ready")
	} else {
		// LoadConfig only allows an empty key in dev mode.
		gateway = payAdapters.NewNoopPaymentGateway()
		logger.Warn().Msg("payment gateway: noop (dev mode)")
	}

	paymentUC := usecase.NewPaymentUseCase(sessionRepo, catalog, walletUC, listingUC, gateway, txManager, logger)

	// ---- Confirmation poller ----
	poller := sched.NewConfirmPoller(gateway, sessionRepo, paymentUC, cfg.Poller.Interval, cfg.Poller.MaxAttempts, logger)
	paymentUC.SetWatcher(poller)
	poller.Start(ctx)
	defer poller.Stop()

	// Sessions left open by a previous run go straight back under watch.
	if n, err := paymentUC.ResumePending(ctx, 0); err != nil {
		logger.Error().Err(err).Msg("resume pending sessions failed")
	} else if n > 0 {
		logger.Info().Int("count", n).Msg("resumed open payment sessions")
	}

	// ---- Reconciler ----
	wpool := worker.NewPool(cfg.Reconciler.Workers, logger)
	wpool.Start(ctx)
	defer wpool.Stop()
	reconciler := sched.NewPaymentReconciler(paymentUC, sessionRepo, poller, wpool, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- HTTP API ----
	auth := web.NewAuthManager(cfg.API.JWTSecret, 24*time.Hour)
	server := web.NewServer(fmt.Sprintf(":%d", cfg.API.Port), auth, listingUC, walletUC, paymentUC, *logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
	cancel()
}
