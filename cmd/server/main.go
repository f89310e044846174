// Package main is the entry point for the stockledger API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"stockledger/internal/config"
	"stockledger/internal/domain/auth"
	"stockledger/internal/domain/catalog"
	"stockledger/internal/domain/engine"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/reports"
	"stockledger/internal/infrastructure/cache"
	v1 "stockledger/internal/infrastructure/http/v1"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/metrics"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
	"stockledger/internal/infrastructure/storage/postgres/report_repo"
	"stockledger/pkg/logger"
	"stockledger/pkg/numerator"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $CONFIG_FILE)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
		Service:     "stockledger-server",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, log)

	log.Infow("starting stockledger server", "version", version, "env", cfg.App.Env)

	// --- Database ---
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:               cfg.Database.URL,
		MaxConns:          cfg.Database.MaxConns,
		MinConns:          cfg.Database.MinConns,
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod: time.Minute,
		ApplicationName:   "stockledger-server",
	})
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)
	outbox := postgres.NewOutboxPublisher(txManager)
	audit, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit", "error", err)
	}

	// --- Repositories ---
	itemRepo := catalog_repo.NewItemRepo(txManager)
	incomingRepo := ledger_repo.NewIncomingRepo(txManager)
	outgoingRepo := ledger_repo.NewOutgoingRepo(txManager)
	reportRepo := report_repo.NewReportRepo(txManager)

	// --- Services ---
	m := metrics.New()

	ledgerService := ledger.NewService(incomingRepo, outgoingRepo)
	catalogService := catalog.NewService(catalog.ServiceConfig{
		Repo:      itemRepo,
		Refs:      ledgerService,
		Codes:     numerator.New(pool),
		TxManager: txManager,
		Events:    outbox,
		Audit:     audit,
	})
	stockEngine, err := engine.New(engine.Config{
		Items:          itemRepo,
		Incoming:       incomingRepo,
		Outgoing:       outgoingRepo,
		TxManager:      txManager,
		Events:         outbox,
		Audit:          audit,
		Metrics:        m,
		ReversalPolicy: engine.ReversalPolicy(cfg.Engine.OutgoingReversal),
		MaxAttempts:    cfg.Engine.MaxAttempts,
	})
	if err != nil {
		log.Fatalw("failed to initialize engine", "error", err)
	}
	reportService := reports.NewService(reportRepo, txManager)

	log.Infow("engine initialized",
		"outgoing_reversal", stockEngine.Policy(),
		"max_attempts", cfg.Engine.MaxAttempts,
	)

	// --- Optional collaborators ---
	extraChecks := map[string]handlers.Pinger{}
	routerCfg := v1.RouterConfig{
		Logger:   log,
		Release:  !cfg.App.IsDevelopment(),
		Items:    catalogService,
		Engine:   stockEngine,
		Ledger:   ledgerService,
		Reports:  reportService,
		History:  audit,
		Metrics:  m,
		InFlight: m.HTTPRequestsInFlight,
	}

	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		store := cache.NewIdempotencyStore(client, cfg.Redis.IdempotencyTTL)
		if err := store.Ping(ctx); err != nil {
			log.Fatalw("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
		}
		routerCfg.Idempotency = store
		extraChecks["redis"] = store
		log.Infow("idempotency enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.IdempotencyTTL)
	} else {
		log.Warn("REDIS_ADDR not set, X-Idempotency-Key is ignored")
	}

	if cfg.Auth.Enabled() {
		jwtCfg := auth.DefaultJWTConfig(cfg.Auth.Secret)
		jwtCfg.Issuer = cfg.Auth.Issuer
		jwtCfg.AccessTokenTTL = cfg.Auth.TokenTTL
		routerCfg.JWTValidator = auth.NewJWTService(jwtCfg)
		log.Info("bearer auth enabled")
	} else {
		log.Warn("JWT_SECRET not set, API is unauthenticated")
	}

	routerCfg.Health = handlers.NewHealthHandler(pool, version, extraChecks)
	router := v1.NewRouter(routerCfg)

	go logPoolStats(ctx, pool)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func logPoolStats(ctx context.Context, pool *postgres.Pool) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pool.LogStats(ctx)
		}
	}
}
