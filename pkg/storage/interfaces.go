// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package storage provides persistence for tool server records added at
// runtime, next to the servers declared in the configuration file.
package storage

import (
	"context"
	"time"

	"github.com/wanquanY/Plan-A-sub001/pkg/config"
)

//go:generate mockgen -destination=mocks/mock_server_store.go -package=mocks -source=interfaces.go ServerStore

// ServerRecord is a stored server configuration.
type ServerRecord struct {
	config.ServerConfig

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ServerStore defines the interface for managing server records.
type ServerStore interface {
	// Create stores a new record. It returns ErrAlreadyExists when the name is taken.
	Create(ctx context.Context, server config.ServerConfig) error
	// Get retrieves a record by server name.
	Get(ctx context.Context, name string) (ServerRecord, error)
	// List returns every record ordered by name.
	List(ctx context.Context) ([]ServerRecord, error)
	// Update replaces an existing record.
	Update(ctx context.Context, server config.ServerConfig) error
	// Delete removes a record by server name.
	Delete(ctx context.Context, name string) error
	// Close releases any resources held by the store.
	Close() error
}
