package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/josh-kwaku/starbridge/api"
	"github.com/josh-kwaku/starbridge/internal/chain"
	"github.com/josh-kwaku/starbridge/internal/config"
	"github.com/josh-kwaku/starbridge/internal/handler"
	"github.com/josh-kwaku/starbridge/internal/logging"
	"github.com/josh-kwaku/starbridge/internal/middleware"
	"github.com/josh-kwaku/starbridge/internal/pricing"
	"github.com/josh-kwaku/starbridge/internal/repository"
	"github.com/josh-kwaku/starbridge/internal/service"
	"github.com/josh-kwaku/starbridge/internal/service/payment"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Init("starbridge-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		ConnectTimeout:   cfg.DBConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		n, err := repository.Migrate(ctx, db)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		slog.Info("migrations applied", "count", n)
	}

	registry, err := chain.NewRegistry(cfg.Chain)
	if err != nil {
		return fmt.Errorf("chain registry: %w", err)
	}
	clients := chain.NewClientPool(registry, chain.DialRPC)
	defer clients.Close()

	tokens, err := chain.NewTokenMetadata(clients, cfg.Chain.DecimalsCache, cfg.Chain.RPCTimeout)
	if err != nil {
		return fmt.Errorf("token metadata: %w", err)
	}
	oracle := chain.NewBalanceOracle(registry, clients, tokens, cfg.Chain.RPCTimeout)
	executor, err := chain.NewPayoutExecutor(registry, clients, tokens, cfg.Chain.SignerKey, cfg.Chain.RPCTimeout, cfg.Chain.ReceiptTimeout)
	if err != nil {
		return fmt.Errorf("payout executor: %w", err)
	}
	slog.Info("chain configured",
		"testnet", registry.Testnet(),
		"signer", executor.Signer().Hex(),
	)

	calc := pricing.NewCalculator(pricing.ScheduleFromConfig(cfg.Fees))
	gateway := service.NewGatewayClient(cfg.GatewayURL)

	store := repository.NewDB(db)
	webhookRepo := repository.NewWebhookEventRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	paymentSvc := payment.NewService(
		repository.NewPaymentRepository(store),
		calc,
		registry,
		oracle,
		executor,
		gateway,
	)

	processor := service.NewCompletionProcessor(
		webhookRepo,
		paymentSvc,
		logger.With("component", "completion_processor"),
		cfg.CompletionPollInterval,
		cfg.CompletionBatchSize,
		cfg.CompletionLease,
	)
	go processor.Start(ctx)
	go cleanIdempotencyCache(ctx, idempotencyRepo, time.Hour)

	docsHandler, err := handler.NewDocsHandler(api.Spec)
	if err != nil {
		return err
	}
	healthHandler := handler.NewHealthHandler(store, webhookRepo, version)
	webhookHandler := handler.NewWebhookHandler(webhookRepo, paymentSvc, cfg.WebhookSecret)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, calc, registry)
	vaultHandler := handler.NewVaultHandler(registry, oracle)

	authMw := middleware.Auth(cfg.JWTSecret)
	idempotencyMw := middleware.Idempotency(idempotencyRepo)
	authed := func(h http.HandlerFunc) http.Handler { return authMw(h) }
	operator := func(h http.HandlerFunc) http.Handler { return authMw(middleware.RequireOperator(h)) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)
	mux.HandleFunc("GET /docs", docsHandler.UI)
	mux.HandleFunc("GET /docs/openapi.yaml", docsHandler.Spec)

	mux.HandleFunc("POST /api/v1/webhooks/gateway/pre-checkout", webhookHandler.PreCheckout)
	mux.HandleFunc("POST /api/v1/webhooks/gateway/payments", webhookHandler.ReceivePayment)

	mux.Handle("GET /api/v1/quote", authed(paymentHandler.Quote))
	mux.Handle("POST /api/v1/payments", authMw(idempotencyMw(http.HandlerFunc(paymentHandler.Create))))
	mux.Handle("GET /api/v1/payments/failed", operator(paymentHandler.ListFailed))
	mux.Handle("GET /api/v1/payments/{id}", authed(paymentHandler.Get))
	mux.Handle("GET /api/v1/payments/{id}/events", authed(paymentHandler.Events))
	mux.Handle("POST /api/v1/payments/{id}/refund", authMw(middleware.RequireOperator(idempotencyMw(http.HandlerFunc(paymentHandler.Refund)))))
	mux.Handle("GET /api/v1/buyers/{buyer_id}/payments", authed(paymentHandler.BuyerHistory))
	mux.Handle("GET /api/v1/vaults/{chain}/{token}/balance", operator(vaultHandler.Balance))

	var h http.Handler = mux
	h = middleware.Logging(h)
	h = middleware.Tracing(h)
	h = middleware.Recovery(h)
	h = otelhttp.NewHandler(h, "starbridge-api")

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Chain.ReceiptTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

type expiredCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

func cleanIdempotencyCache(ctx context.Context, repo expiredCleaner, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.CleanExpired(ctx)
			if err != nil {
				slog.Error("idempotency cache cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("idempotency cache cleaned", "removed", n)
			}
		}
	}
}
