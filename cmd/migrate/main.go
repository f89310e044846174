// Package main applies the embedded schema migrations.
//
// Usage:
//
//	migrate [-config file.yaml] up|down|status
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"stockledger/db"
	"stockledger/internal/config"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $CONFIG_FILE)")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
		Service:     "stockledger-migrate",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 0
	poolCfg.ApplicationName = "stockledger-migrate"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	sqlDB := stdlib.OpenDBFromPool(pool.Pool)
	defer sqlDB.Close()

	migrator, err := db.NewMigrator(sqlDB)
	if err != nil {
		log.Fatalw("failed to prepare migrations", "error", err)
	}

	if err := run(ctx, migrator, command, log); err != nil {
		log.Fatalw("migration failed", "command", command, "error", err)
	}
}

func run(ctx context.Context, migrator *goose.Provider, command string, log *logger.Logger) error {
	switch command {
	case "up":
		results, err := migrator.Up(ctx)
		for _, r := range results {
			log.Infow("applied", "version", r.Source.Version, "file", r.Source.Path, "duration", r.Duration)
		}
		if err != nil {
			return err
		}
		if len(results) == 0 {
			log.Info("schema is up to date")
		}
		return nil

	case "down":
		r, err := migrator.Down(ctx)
		if err != nil {
			return err
		}
		log.Infow("rolled back", "version", r.Source.Version, "file", r.Source.Path)
		return nil

	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			log.Infow("migration", "version", s.Source.Version, "file", s.Source.Path,
				"state", s.State, "applied_at", s.AppliedAt)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q (want up, down or status)", command)
	}
}
