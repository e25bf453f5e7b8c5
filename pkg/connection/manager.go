// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

// RefreshFunc rebuilds the catalog entries of one server.
type RefreshFunc func(ctx context.Context, server string) error

// OpenerFactory builds the transport opener for a server configuration.
type OpenerFactory func(sc config.ServerConfig) transport.Opener

// Manager owns the connections to every configured tool server.
type Manager struct {
	cfg       Config
	openerFor OpenerFactory

	mu    sync.RWMutex
	conns map[string]*Connection

	hooksMu   sync.RWMutex
	refresh   RefreshFunc
	listeners []StateListener

	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithOpenerFactory replaces the default transport factory. Tests use it to
// hand out in-memory transports.
func WithOpenerFactory(f OpenerFactory) ManagerOption {
	return func(m *Manager) {
		m.openerFor = f
	}
}

// NewManager creates an empty manager.
func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:       cfg.withDefaults(),
		openerFor: defaultOpener,
		conns:     make(map[string]*Connection),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func defaultOpener(sc config.ServerConfig) transport.Opener {
	return transport.NewOpener(sc.TransportConfig())
}

// SetRefresher registers the callback used to rebuild catalog entries.
func (m *Manager) SetRefresher(fn RefreshFunc) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.refresh = fn
}

// OnStateChange registers a listener for state changes of every connection.
func (m *Manager) OnStateChange(l StateListener) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Start connects every enabled server in parallel. A server that cannot be
// reached is logged and left Closed; it never prevents the others from
// connecting. Start only fails on invalid input.
func (m *Manager) Start(ctx context.Context, servers []config.ServerConfig) error {
	seen := make(map[string]struct{}, len(servers))
	for _, sc := range servers {
		if sc.Name == "" {
			return errors.New("server configuration without a name")
		}
		if _, dup := seen[sc.Name]; dup {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, sc.Name)
		}
		seen[sc.Name] = struct{}{}
	}

	var g errgroup.Group
	for _, sc := range servers {
		if !sc.IsEnabled() {
			logger.Infow("skipping disabled tool server", "server", sc.Name)
			continue
		}
		g.Go(func() error {
			if err := m.AddServer(ctx, sc); err != nil {
				logger.Warnw("tool server unavailable", "server", sc.Name, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// AddServer creates and connects a connection for sc without disturbing the
// others. A Closed connection with the same name is replaced.
func (m *Manager) AddServer(ctx context.Context, sc config.ServerConfig) error {
	if !sc.IsEnabled() {
		return fmt.Errorf("server %s is disabled", sc.Name)
	}

	m.mu.Lock()
	if existing, ok := m.conns[sc.Name]; ok && existing.State() != StateClosed {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyExists, sc.Name)
	}
	conn := New(sc.Name, m.openerFor(sc), m.cfg)
	conn.OnStateChange(m.onStateChange)
	conn.OnNotification(protocol.MethodToolsListChanged, func(context.Context, *protocol.Notification) {
		logger.Debugw("tool list changed", "server", sc.Name)
		m.triggerRefresh(sc.Name)
	})
	m.conns[sc.Name] = conn
	m.mu.Unlock()

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", sc.Name, err)
	}
	return nil
}

// RemoveServer closes and forgets a connection, then drops its catalog
// entries.
func (m *Manager) RemoveServer(ctx context.Context, name string) error {
	m.mu.Lock()
	conn, ok := m.conns[name]
	delete(m.conns, name)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	_ = conn.Close()
	if err := m.RefreshCatalog(ctx, name); err != nil {
		logger.Debugw("catalog refresh after removal failed", "server", name, "error", err)
	}
	return nil
}

// GetConnection returns the connection registered under name.
func (m *Manager) GetConnection(name string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[name]
	return conn, ok
}

// ListReadyConnections returns the Ready connections sorted by name.
func (m *Manager) ListReadyConnections() []*Connection {
	m.mu.RLock()
	out := make([]*Connection, 0, len(m.conns))
	for _, conn := range m.conns {
		if conn.Ready() {
			out = append(out, conn)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Statuses reports every known connection sorted by name.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	out := make([]Status, 0, len(m.conns))
	for _, conn := range m.conns {
		out = append(out, conn.Status())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RefreshCatalog runs the refresh callback for one server.
func (m *Manager) RefreshCatalog(ctx context.Context, name string) error {
	m.hooksMu.RLock()
	fn := m.refresh
	m.hooksMu.RUnlock()
	if fn == nil {
		return errors.New("no catalog refresher registered")
	}
	return fn(ctx, name)
}

// Close closes every connection.
func (m *Manager) Close() error {
	m.cancel()

	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, conn := range m.conns {
		conns = append(conns, conn)
	}
	m.conns = make(map[string]*Connection)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.Close()
		}()
	}
	wg.Wait()
	return nil
}

func (m *Manager) onStateChange(name string, from, to State) {
	m.hooksMu.RLock()
	listeners := append([]StateListener(nil), m.listeners...)
	m.hooksMu.RUnlock()
	for _, l := range listeners {
		l(name, from, to)
	}

	switch to {
	case StateReady, StateClosed:
		m.triggerRefresh(name)
	case StateDegraded:
		logger.Infow("tool server degraded", "server", name, "previous", from)
	}
}

// triggerRefresh rebuilds one server's entries in the background.
func (m *Manager) triggerRefresh(name string) {
	if m.ctx.Err() != nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.RequestTimeout)
		defer cancel()
		if err := m.RefreshCatalog(ctx, name); err != nil {
			logger.Debugw("catalog refresh failed", "server", name, "error", err)
		}
	}()
}
