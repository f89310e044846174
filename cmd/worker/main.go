// Package main is the entry point for the stockledger outbox worker.
// It relays committed ledger events from sys_outbox to Kafka.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/infrastructure/messaging/kafka"
	"stockledger/internal/infrastructure/metrics"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

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
		Service:     "stockledger-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting stockledger worker")

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:               cfg.Database.URL,
		MaxConns:          4,
		MinConns:          1,
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod: time.Minute,
		ApplicationName:   "stockledger-worker",
	})
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	m := metrics.New()

	var handler postgres.OutboxHandler
	if len(cfg.Kafka.Brokers) > 0 {
		kcfg := kafka.DefaultConfig()
		kcfg.Brokers = cfg.Kafka.Brokers
		kcfg.Topic = cfg.Kafka.Topic
		kcfg.BatchTimeout = cfg.Kafka.BatchTimeout
		kcfg.RequiredAcks = cfg.Kafka.RequiredAcks

		producer := kafka.NewProducer(kcfg, m)
		defer producer.Close()
		handler = producer
		log.Infow("publishing to kafka", "brokers", kcfg.Brokers, "topic", kcfg.Topic)
	} else {
		handler = kafka.LogHandler{}
		log.Warn("KAFKA_BROKERS not set, outbox events are only logged")
	}

	relay := postgres.NewOutboxRelay(postgres.NewTxManager(pool), cfg.Worker.BatchSize, handler)
	worker := NewWorker(relay, m, cfg.Worker, log)

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddress,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("metrics listening", "addr", cfg.Worker.MetricsAddress)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info("worker stopped")
}
