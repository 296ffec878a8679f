package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ferdiga/subgate/internal"
	"github.com/ferdiga/subgate/internal/auth"
	"github.com/ferdiga/subgate/internal/billing"
	"github.com/ferdiga/subgate/internal/handler"
	"github.com/ferdiga/subgate/internal/middleware"
	"github.com/ferdiga/subgate/internal/postgres"
	"github.com/ferdiga/subgate/internal/queue"
	"github.com/ferdiga/subgate/internal/router"
	"github.com/ferdiga/subgate/internal/routes"
	"github.com/ferdiga/subgate/internal/tasks"
	"github.com/ferdiga/subgate/internal/telemetry"
	"github.com/ferdiga/subgate/internal/token"
	"github.com/ferdiga/subgate/internal/webhook"
	"github.com/ferdiga/subgate/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// pgx pool for the application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Stores
	users := postgres.NewUserStore(pool)
	sessions := postgres.NewSessionStore(pool)
	plans := postgres.NewPlanStore(pool)
	subscriptions := postgres.NewSubscriptionStore(pool)

	// Billing provider
	provider := billing.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	logger.Info("Stripe billing provider initialized")

	// Task broker
	var broker queue.Broker
	switch cfg.Queue.Driver {
	case "nats":
		broker, err = queue.NewNATS(cfg.Queue.NatsURL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
	default:
		broker = queue.NewMemory(cfg.Queue.Buffer)
	}
	defer broker.Close()
	logger.Info("Task broker initialized", "driver", cfg.Queue.Driver)

	// Telemetry
	metrics := telemetry.NewMetrics("subgate")

	// Services
	tokens, err := token.NewService(cfg.Auth.Secret, cfg.Auth.Algorithm, cfg.Auth.AccessTokenDuration, cfg.Auth.RefreshTokenDuration)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	authService := auth.NewService(users, sessions, tokens, logger)

	// Webhook dispatch and worker
	dispatcher := webhook.NewRouter(broker, logger, metrics)
	taskHandlers := tasks.NewHandlers(users, plans, subscriptions, broker, logger)
	taskWorker := worker.New(broker, taskHandlers, tasks.DefaultRetryPolicy(), logger, metrics)

	workerErr := make(chan error, 1)
	go func() {
		workerErr <- taskWorker.Start(ctx)
	}()

	// HTTP
	r := router.New(
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		middleware.Recover,
	)
	routes.Register(r, routes.Deps{
		Auth:          handler.NewAuthHandler(authService, logger, metrics),
		Users:         handler.NewUserHandler(users, provider, logger),
		Plans:         handler.NewPlanHandler(plans, provider, logger),
		Subscriptions: handler.NewSubscriptionHandler(subscriptions, plans, provider, logger),
		Products:      handler.NewProductHandler(subscriptions, logger),
		Webhooks:      handler.NewWebhookHandler(provider, dispatcher, logger, metrics),
		RequireAuth:   middleware.RequireAuth(authService),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if err := <-workerErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
