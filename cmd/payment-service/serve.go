package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/config"
	invpg "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/inventory/infrastructure/postgres"
	orderapp "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/application"
	orderhttp "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/infrastructure/http"
	orderkafka "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/infrastructure/kafka"
	orderpg "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/infrastructure/postgres"
	payapp "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/application"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/infrastructure/gateway"
	payhttp "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/infrastructure/http"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/infrastructure/memory"
	paymentpg "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/infrastructure/postgres"
	intentredis "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/infrastructure/redis"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/signature"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/pkg/idempotency"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/pkg/logging"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/pkg/outbox"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/pkg/shutdown"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/pkg/tracing"
)

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, intent reaper and outbox relay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")
	return cmd
}

func serve(parent context.Context, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(parent)
	defer cancel()

	tp, err := tracing.Init(ctx, "payment-service", cfg.OTelURL, log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	if migrate {
		if err := orderpg.RunMigrations(cfg.PGURL); err != nil {
			return err
		}
	}

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// dedupe degrades to the database constraints
		log.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "err", err)
	}

	// Orders, stock and commissions
	orders := orderapp.NewService(log, orderpg.NewRepository(log, pool, invpg.NewStock(log)), cfg.Payment.PlatformCommissionPct)

	// Payments
	var intents payapp.IntentStore
	switch cfg.Payment.IntentBackend {
	case "redis":
		intents = intentredis.NewIntentStore(rdb)
	default:
		mem := memory.NewIntentStore()
		go memory.RunSweeper(ctx, log, mem, cfg.Payment.IntentSweepInterval)
		intents = mem
	}
	gw := gateway.NewClient(gateway.Config{
		BaseURL:    cfg.Gateway.BaseURL,
		PublicKey:  cfg.Gateway.PublicKey,
		PrivateKey: cfg.Gateway.PrivateKey,
		Timeout:    cfg.Gateway.Timeout,
		MaxRetries: cfg.Gateway.MaxRetries,
		RPS:        cfg.Gateway.RPS,
	}, log)
	payments := payapp.NewService(log, gw, intents, signature.NewEngine(cfg.Gateway.IntegritySecret), payapp.Options{
		Currency:        cfg.Payment.Currency,
		ReferencePrefix: cfg.Payment.ReferencePrefix,
		RedirectURL:     cfg.Payment.RedirectURL,
		IntentTTL:       cfg.Payment.IntentTTL,
		SignExpiration:  cfg.Payment.SignExpiration,
	}).WithOrderPlacer(orderPlacer{orders: orders})
	webhook := payapp.NewWebhookProcessor(log, cfg.Gateway.EventsSecret,
		orderPayments{orders: orders},
		idempotency.NewStore(rdb, cfg.Payment.WebhookDedupeTTL),
		paymentpg.NewFailureLog(log, pool),
	)

	// Outbox relay
	writer := orderkafka.NewWriter(log, []string{cfg.KafkaAddr})
	defer writer.Close()
	relayID, _ := os.Hostname()
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), outbox.NewDispatcher(log, writer, cfg.OutboxTopic), "payment-service-"+relayID)
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/api", payhttp.NewHandler(log, payments, webhook).Routes())
	r.Mount("/api/admin", orderhttp.NewHandler(log, orders).Routes())

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(r, "payment-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "intent_backend", cfg.Payment.IntentBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	log.Info("payment-service shutdown complete")
	return nil
}
