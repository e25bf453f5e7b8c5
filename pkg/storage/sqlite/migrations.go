// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
)

// schemaFS holds the versioned DDL for the servers table.
//
//go:embed migrations/*.sql
var schemaFS embed.FS

func newMigrator(db *sql.DB) (*goose.Provider, error) {
	files, err := fs.Sub(schemaFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("reading embedded schema: %w", err)
	}
	provider, err := goose.NewProvider(database.DialectSQLite3, db, files)
	if err != nil {
		return nil, fmt.Errorf("preparing schema migrator: %w", err)
	}
	return provider, nil
}

// migrate brings the server record schema up to date.
func migrate(ctx context.Context, db *sql.DB) error {
	provider, err := newMigrator(db)
	if err != nil {
		return err
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrating server record schema: %w", err)
	}
	for _, r := range results {
		logger.Debugw("applied schema migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// SchemaVersion reports the applied schema version.
func (d *DB) SchemaVersion(ctx context.Context) (int64, error) {
	provider, err := newMigrator(d.db)
	if err != nil {
		return 0, err
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}
