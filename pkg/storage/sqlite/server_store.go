// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/storage"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

// ServerStore implements storage.ServerStore using SQLite.
type ServerStore struct {
	wrapper *DB
	db      *sql.DB
	now     func() time.Time
}

// NewServerStore creates a new SQLite-backed ServerStore.
func NewServerStore(db *DB) *ServerStore {
	return &ServerStore{wrapper: db, db: db.DB(), now: time.Now}
}

// NewServerStoreFromPath opens the database at path and returns a store
// that owns it.
func NewServerStoreFromPath(ctx context.Context, path string) (*ServerStore, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewServerStore(db), nil
}

// NewServerStoreFromConfig returns the store selected by the configuration.
// An empty path yields a storage.NoopServerStore.
func NewServerStoreFromConfig(ctx context.Context, cfg config.StorageConfig) (storage.ServerStore, error) {
	if cfg.Path == "" {
		return &storage.NoopServerStore{}, nil
	}
	return NewServerStoreFromPath(ctx, cfg.Path)
}

// Close closes the underlying database connection.
func (s *ServerStore) Close() error {
	return s.wrapper.Close()
}

var _ storage.ServerStore = (*ServerStore)(nil)

func checkRecord(server config.ServerConfig) error {
	if strings.TrimSpace(server.Name) == "" {
		return fmt.Errorf("server name is empty: %w", storage.ErrInvalidRecord)
	}
	if server.Transport == "" {
		return fmt.Errorf("server %q has no transport: %w", server.Name, storage.ErrInvalidRecord)
	}
	return nil
}

const serverColumns = `name, enabled, transport, command, json(args), json(env),
			address, network, description, created_at, updated_at`

// Create stores a new server record.
func (s *ServerStore) Create(ctx context.Context, server config.ServerConfig) error {
	if err := checkRecord(server); err != nil {
		return err
	}
	args, env, err := encodeLists(server)
	if err != nil {
		return err
	}
	now := s.now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO servers (
			name, enabled, transport, command, args, env,
			address, network, description, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		server.Name,
		server.IsEnabled(),
		string(server.Transport),
		server.Command,
		args,
		env,
		server.Address,
		server.Network,
		server.Description,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("server %q: %w", server.Name, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("inserting server: %w", err)
	}
	return nil
}

// Get retrieves a server record by name.
func (s *ServerStore) Get(ctx context.Context, name string) (storage.ServerRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers WHERE name = ?`, name)

	rec, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ServerRecord{}, fmt.Errorf("server %q: %w", name, storage.ErrNotFound)
	}
	if err != nil {
		return storage.ServerRecord{}, fmt.Errorf("querying server: %w", err)
	}
	return rec, nil
}

// List returns all server records ordered by name.
func (s *ServerStore) List(ctx context.Context) ([]storage.ServerRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+serverColumns+` FROM servers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying servers: %w", err)
	}
	defer rows.Close()

	out := []storage.ServerRecord{}
	for rows.Next() {
		rec, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning server: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating servers: %w", err)
	}
	return out, nil
}

// Update replaces an existing server record. The creation time is kept.
func (s *ServerStore) Update(ctx context.Context, server config.ServerConfig) error {
	if err := checkRecord(server); err != nil {
		return err
	}
	args, env, err := encodeLists(server)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE servers SET
			enabled = ?, transport = ?, command = ?, args = ?, env = ?,
			address = ?, network = ?, description = ?, updated_at = ?
		WHERE name = ?`,
		server.IsEnabled(),
		string(server.Transport),
		server.Command,
		args,
		env,
		server.Address,
		server.Network,
		server.Description,
		s.now().UTC().Format(time.RFC3339Nano),
		server.Name,
	)
	if err != nil {
		return fmt.Errorf("updating server: %w", err)
	}
	return expectOneRow(res, server.Name)
}

// Delete removes a server record by name.
func (s *ServerStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting server: %w", err)
	}
	return expectOneRow(res, name)
}

func expectOneRow(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("server %q: %w", name, storage.ErrNotFound)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanServer(row scanner) (storage.ServerRecord, error) {
	var (
		rec                  storage.ServerRecord
		enabled              bool
		kind                 string
		args, env            []byte
		createdAt, updatedAt string
	)
	err := row.Scan(
		&rec.Name, &enabled, &kind, &rec.Command, &args, &env,
		&rec.Address, &rec.Network, &rec.Description, &createdAt, &updatedAt,
	)
	if err != nil {
		return storage.ServerRecord{}, err
	}

	rec.Enabled = &enabled
	rec.Transport = transport.Kind(kind)
	if err := decodeJSON(args, &rec.Args); err != nil {
		return storage.ServerRecord{}, fmt.Errorf("decoding args: %w", err)
	}
	if err := decodeJSON(env, &rec.Env); err != nil {
		return storage.ServerRecord{}, fmt.Errorf("decoding env: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return storage.ServerRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return storage.ServerRecord{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return rec, nil
}

func encodeLists(server config.ServerConfig) (args, env string, err error) {
	if args, err = encodeJSON(server.Args); err != nil {
		return "", "", fmt.Errorf("encoding args: %w", err)
	}
	if env, err = encodeJSON(server.Env); err != nil {
		return "", "", fmt.Errorf("encoding env: %w", err)
	}
	return args, env, nil
}

// encodeJSON marshals v for a JSON text column. Nil values become "null".
func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return string(data), nil
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// isUniqueViolation checks whether err is a SQLite primary key or
// UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
