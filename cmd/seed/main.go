// Package main provides a CLI tool for seeding the catalog and issuing
// development tokens.
//
// Usage:
//
//	seed -items items.yaml           bulk-load stock items
//	seed -token -role admin -sub me  print a bearer token
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/domain/auth"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/catalog_repo"
	"stockledger/pkg/logger"
	"stockledger/pkg/numerator"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $CONFIG_FILE)")
	itemsPath := flag.String("items", "", "YAML file with stock items to load")
	token := flag.Bool("token", false, "print a bearer token and exit")
	role := flag.String("role", auth.RoleAdmin, "token role (clerk or admin)")
	subject := flag.String("sub", "dev", "token subject")
	name := flag.String("name", "Developer", "token display name")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	if *token {
		if err := printToken(cfg.Auth, *subject, *name, *role); err != nil {
			log.Fatalw("failed to issue token", "error", err)
		}
		return
	}

	if *itemsPath == "" {
		log.Fatal("nothing to do: pass -items or -token")
	}

	file, err := loadSeedFile(*itemsPath)
	if err != nil {
		log.Fatalw("failed to read seed file", "path", *itemsPath, "error", err)
	}
	items, err := file.StockItems()
	if err != nil {
		log.Fatalw("invalid seed file", "path", *itemsPath, "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.ApplicationName = "stockledger-seed"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txm := postgres.NewTxManager(pool)
	repo := catalog_repo.NewItemRepo(txm)
	inserter := postgres.NewBatchInserter(txm)

	top := highestGeneratedCode(items)

	var loaded, skipped int64
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		fresh := items[:0]
		for _, item := range items {
			exists, err := repo.ExistsByCode(ctx, item.Code)
			if err != nil {
				return err
			}
			if exists {
				skipped++
				continue
			}
			fresh = append(fresh, item)
		}
		if len(fresh) == 0 {
			return nil
		}
		n, err := postgres.CopyStructs(ctx, inserter, "stock_items", fresh)
		loaded = n
		return err
	})
	if err != nil {
		log.Fatalw("failed to load items", "error", err)
	}

	// Keep generated codes clear of the imported ones.
	if top > 0 {
		if err := numerator.New(pool).SetNext(ctx, numerator.ItemCodes, top); err != nil {
			log.Fatalw("failed to advance item code sequence", "error", err)
		}
	}

	log.Infow("seeding completed", "loaded", loaded, "skipped", skipped)
}

func printToken(cfg config.AuthConfig, subject, name, role string) error {
	if !cfg.Enabled() {
		return errors.New("JWT_SECRET is not set")
	}
	jwtCfg := auth.DefaultJWTConfig(cfg.Secret)
	jwtCfg.Issuer = cfg.Issuer
	jwtCfg.AccessTokenTTL = cfg.TokenTTL

	token, expires, err := auth.NewJWTService(jwtCfg).GenerateAccessToken(subject, name, role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expires.Format(time.RFC3339))
	return nil
}
