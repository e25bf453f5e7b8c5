// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/storage"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

func newTestStore(t *testing.T) *ServerStore {
	t.Helper()
	store, err := NewServerStoreFromPath(context.Background(), filepath.Join(t.TempDir(), "nested", "servers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func boolPtr(b bool) *bool { return &b }

func TestServerStore_CreateGet(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return created }

	in := config.ServerConfig{
		Name:        "files",
		Transport:   transport.KindStdio,
		Command:     "files-mcp",
		Args:        []string{"--root", "/srv"},
		Env:         map[string]string{"LOG": "debug"},
		Description: "file access",
	}
	require.NoError(t, store.Create(ctx, in))

	got, err := store.Get(ctx, "files")
	require.NoError(t, err)

	want := in
	want.Enabled = boolPtr(true)
	if diff := cmp.Diff(want, got.ServerConfig); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, created, got.UpdatedAt)
}

func TestServerStore_CreateDuplicate(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	sc := config.ServerConfig{Name: "web", Transport: transport.KindStream, Address: "127.0.0.1:9000"}
	require.NoError(t, store.Create(ctx, sc))
	err := store.Create(ctx, sc)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestServerStore_RejectsInvalidRecord(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Create(ctx, config.ServerConfig{Name: " ", Transport: transport.KindStdio}), storage.ErrInvalidRecord)
	assert.ErrorIs(t, store.Create(ctx, config.ServerConfig{Name: "web"}), storage.ErrInvalidRecord)
	assert.ErrorIs(t, store.Update(ctx, config.ServerConfig{Name: ""}), storage.ErrInvalidRecord)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestServerStore_NotFound(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.Update(ctx, config.ServerConfig{Name: "missing", Transport: transport.KindStdio}), storage.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "missing"), storage.ErrNotFound)
}

func TestServerStore_ListOrdered(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	empty, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.Create(ctx, config.ServerConfig{Name: name, Transport: transport.KindStdio, Command: name}))
	}
	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "mid", list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)
	assert.Nil(t, list[0].Args)
	assert.Nil(t, list[0].Env)
}

func TestServerStore_UpdateDelete(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return created }

	require.NoError(t, store.Create(ctx, config.ServerConfig{Name: "web", Transport: transport.KindStream, Address: "a:1"}))

	updated := created.Add(time.Hour)
	store.now = func() time.Time { return updated }
	require.NoError(t, store.Update(ctx, config.ServerConfig{
		Name: "web", Transport: transport.KindStream, Address: "b:2", Enabled: boolPtr(false),
	}))

	got, err := store.Get(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, "b:2", got.Address)
	assert.False(t, got.IsEnabled())
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, updated, got.UpdatedAt)

	require.NoError(t, store.Delete(ctx, "web"))
	_, err = store.Get(ctx, "web")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "servers.db")
	ctx := context.Background()

	first, err := NewServerStoreFromPath(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Create(ctx, config.ServerConfig{Name: "kept", Transport: transport.KindStdio, Command: "x"}))
	require.NoError(t, first.Close())

	second, err := NewServerStoreFromPath(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	_, err = second.Get(ctx, "kept")
	assert.NoError(t, err)

	version, err := second.wrapper.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestNewServerStoreFromConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := NewServerStoreFromConfig(ctx, config.StorageConfig{})
	require.NoError(t, err)
	_, ok := store.(*storage.NoopServerStore)
	assert.True(t, ok, "expected *storage.NoopServerStore, got %T", store)

	store, err = NewServerStoreFromConfig(ctx, config.StorageConfig{Path: filepath.Join(t.TempDir(), "s.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, ok = store.(*ServerStore)
	assert.True(t, ok, "expected *ServerStore, got %T", store)
}
