// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
	"github.com/wanquanY/Plan-A-sub001/pkg/toolserver"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

// fleet maps server names to tool servers; names without an entry fail to
// open.
type fleet struct {
	t       *testing.T
	servers map[string]*serverHarness
}

func newFleet(t *testing.T, names ...string) *fleet {
	t.Helper()
	f := &fleet{t: t, servers: make(map[string]*serverHarness)}
	for _, name := range names {
		f.servers[name] = newHarness(t, toolserver.New(name, "1.0.0"))
	}
	return f
}

func (f *fleet) factory(sc config.ServerConfig) transport.Opener {
	if h, ok := f.servers[sc.Name]; ok {
		return h.opener()
	}
	return func(context.Context) (transport.Transport, error) {
		return nil, errOpen
	}
}

func newTestManager(t *testing.T, f *fleet) *Manager {
	t.Helper()
	cfg := testConfig()
	cfg.RetryAttempts = 2
	m := NewManager(cfg, WithOpenerFactory(f.factory))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// refreshRecorder collects refresh callbacks.
type refreshRecorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *refreshRecorder) refresh(_ context.Context, server string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[server]++
	return nil
}

func (r *refreshRecorder) count(server string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[server]
}

func stdioServer(name string) config.ServerConfig {
	return config.ServerConfig{Name: name, Transport: transport.KindStdio, Command: name}
}

func TestManager_StartIsolatesFailures(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newFleet(t, "alpha", "gamma"))

	err := m.Start(context.Background(), []config.ServerConfig{
		stdioServer("alpha"),
		stdioServer("broken"),
		stdioServer("gamma"),
	})
	require.NoError(t, err)

	ready := m.ListReadyConnections()
	require.Len(t, ready, 2)
	assert.Equal(t, "alpha", ready[0].Name())
	assert.Equal(t, "gamma", ready[1].Name())

	statuses := m.Statuses()
	require.Len(t, statuses, 3)
	assert.Equal(t, "broken", statuses[1].Name)
	assert.Equal(t, StateClosed, statuses[1].State)
	assert.NotEmpty(t, statuses[1].LastError)
}

func TestManager_StartSkipsDisabled(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newFleet(t, "alpha", "beta"))
	disabled := false
	beta := stdioServer("beta")
	beta.Enabled = &disabled

	require.NoError(t, m.Start(context.Background(), []config.ServerConfig{stdioServer("alpha"), beta}))

	_, ok := m.GetConnection("beta")
	assert.False(t, ok)
	conn, ok := m.GetConnection("alpha")
	require.True(t, ok)
	assert.True(t, conn.Ready())
}

func TestManager_StartRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newFleet(t, "alpha"))

	err := m.Start(context.Background(), []config.ServerConfig{stdioServer("alpha"), stdioServer("alpha")})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	err = m.Start(context.Background(), []config.ServerConfig{{Transport: transport.KindStdio}})
	assert.Error(t, err)
	assert.Empty(t, m.Statuses())
}

func TestManager_AddAndRemoveServer(t *testing.T) {
	t.Parallel()

	rec := &refreshRecorder{}
	m := newTestManager(t, newFleet(t, "alpha"))
	m.SetRefresher(rec.refresh)

	require.NoError(t, m.AddServer(context.Background(), stdioServer("alpha")))
	assert.ErrorIs(t, m.AddServer(context.Background(), stdioServer("alpha")), ErrAlreadyExists)
	require.Eventually(t, func() bool { return rec.count("alpha") >= 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.RemoveServer(context.Background(), "alpha"))
	_, ok := m.GetConnection("alpha")
	assert.False(t, ok)
	assert.ErrorIs(t, m.RemoveServer(context.Background(), "alpha"), ErrUnknownServer)
	require.Eventually(t, func() bool { return rec.count("alpha") >= 2 }, time.Second, 5*time.Millisecond)
}

func TestManager_AddServerReplacesClosed(t *testing.T) {
	t.Parallel()

	f := newFleet(t)
	m := newTestManager(t, f)

	require.Error(t, m.AddServer(context.Background(), stdioServer("late")))
	conn, ok := m.GetConnection("late")
	require.True(t, ok)
	assert.Equal(t, StateClosed, conn.State())

	// The server becomes reachable; adding it again replaces the dead entry.
	f.servers["late"] = newHarness(t, toolserver.New("late", "1.0.0"))
	require.NoError(t, m.AddServer(context.Background(), stdioServer("late")))
	conn, ok = m.GetConnection("late")
	require.True(t, ok)
	assert.True(t, conn.Ready())
}

func TestManager_ListChangedTriggersRefresh(t *testing.T) {
	t.Parallel()

	f := newFleet(t, "alpha")
	rec := &refreshRecorder{}
	m := newTestManager(t, f)
	m.SetRefresher(rec.refresh)

	require.NoError(t, m.AddServer(context.Background(), stdioServer("alpha")))
	require.Eventually(t, func() bool { return rec.count("alpha") == 1 }, time.Second, 5*time.Millisecond)

	f.servers["alpha"].server.AddTool(protocol.Tool{Name: "fresh"}, func(context.Context, map[string]any) (*protocol.CallToolResult, error) {
		return protocol.TextResult("new"), nil
	})

	require.Eventually(t, func() bool { return rec.count("alpha") >= 2 }, time.Second, 5*time.Millisecond)
}

func TestManager_StateListeners(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newFleet(t, "alpha"))
	var mu sync.Mutex
	seen := map[string][]State{}
	m.OnStateChange(func(name string, _, to State) {
		mu.Lock()
		defer mu.Unlock()
		seen[name] = append(seen[name], to)
	})

	require.NoError(t, m.AddServer(context.Background(), stdioServer("alpha")))
	require.NoError(t, m.Close())

	mu.Lock()
	defer mu.Unlock()
	states := seen["alpha"]
	require.NotEmpty(t, states)
	assert.Equal(t, StateReady, states[len(states)-2])
	assert.Equal(t, StateClosed, states[len(states)-1])
	assert.Empty(t, m.Statuses())
}

func TestManager_RefreshCatalogWithoutRefresher(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, newFleet(t))
	assert.Error(t, m.RefreshCatalog(context.Background(), "alpha"))
}
