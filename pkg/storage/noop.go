// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"

	"github.com/wanquanY/Plan-A-sub001/pkg/config"
)

// NoopServerStore is used when no database is configured. Writes are
// discarded and reads find nothing.
type NoopServerStore struct{}

var _ ServerStore = (*NoopServerStore)(nil)

// Create is a no-op.
func (*NoopServerStore) Create(context.Context, config.ServerConfig) error {
	return nil
}

// Get always returns ErrNotFound.
func (*NoopServerStore) Get(context.Context, string) (ServerRecord, error) {
	return ServerRecord{}, ErrNotFound
}

// List returns an empty slice.
func (*NoopServerStore) List(context.Context) ([]ServerRecord, error) {
	return []ServerRecord{}, nil
}

// Update is a no-op.
func (*NoopServerStore) Update(context.Context, config.ServerConfig) error {
	return nil
}

// Delete is a no-op.
func (*NoopServerStore) Delete(context.Context, string) error {
	return nil
}

// Close is a no-op.
func (*NoopServerStore) Close() error {
	return nil
}
