package db

import (
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// NewMigrator returns a goose provider over the embedded migrations.
func NewMigrator(sqlDB *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(Migrations, MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return provider, nil
}
