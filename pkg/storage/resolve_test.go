// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/storage"
	"github.com/wanquanY/Plan-A-sub001/pkg/storage/mocks"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

func TestResolveServers_FileOverridesRecords(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockServerStore(ctrl)
	store.EXPECT().List(gomock.Any()).Return([]storage.ServerRecord{
		{ServerConfig: config.ServerConfig{Name: "web", Transport: transport.KindStream, Address: "db:1"}},
		{ServerConfig: config.ServerConfig{Name: "files", Transport: transport.KindStdio, Command: "files-mcp"}},
	}, nil)

	got, err := storage.ResolveServers(context.Background(), store, map[string]config.ServerConfig{
		"web":   {Transport: transport.KindStream, Address: "file:2"},
		"clock": {Transport: transport.KindStdio, Command: "clock-mcp"},
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"clock", "files", "web"}, []string{got[0].Name, got[1].Name, got[2].Name})
	assert.Equal(t, "file:2", got[2].Address)
}

func TestResolveServers_ListError(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockServerStore(ctrl)
	store.EXPECT().List(gomock.Any()).Return(nil, errors.New("disk gone"))

	_, err := storage.ResolveServers(context.Background(), store, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestNoopServerStore(t *testing.T) {
	t.Parallel()
	store := &storage.NoopServerStore{}
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, config.ServerConfig{Name: "x"}))
	_, err := store.Get(ctx, "x")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, store.Update(ctx, config.ServerConfig{Name: "x"}))
	assert.NoError(t, store.Delete(ctx, "x"))
	assert.NoError(t, store.Close())

	servers, err := storage.ResolveServers(ctx, store, map[string]config.ServerConfig{"only": {}})
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "only", servers[0].Name)
}
