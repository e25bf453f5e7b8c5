// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wanquanY/Plan-A-sub001/pkg/agent"
	"github.com/wanquanY/Plan-A-sub001/pkg/api"
	"github.com/wanquanY/Plan-A-sub001/pkg/builtin"
	"github.com/wanquanY/Plan-A-sub001/pkg/catalog"
	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/connection"
	"github.com/wanquanY/Plan-A-sub001/pkg/llm"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
	"github.com/wanquanY/Plan-A-sub001/pkg/mcpserver"
	"github.com/wanquanY/Plan-A-sub001/pkg/memory"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
	"github.com/wanquanY/Plan-A-sub001/pkg/storage"
	"github.com/wanquanY/Plan-A-sub001/pkg/storage/sqlite"
	"github.com/wanquanY/Plan-A-sub001/pkg/telemetry"
	"github.com/wanquanY/Plan-A-sub001/pkg/telemetry/providers"
	"github.com/wanquanY/Plan-A-sub001/pkg/versions"
)

const memoryPingTimeout = 3 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the agent gateway",
		Long: `Start the agent gateway.

The gateway connects to every configured tool server, builds the tool catalog
and serves the REST API (and, when enabled, the MCP endpoint) until it
receives an interrupt.`,
		RunE: runServe,
	}
}

// gateway holds the components shared by serve and tools.
type gateway struct {
	cfg     *config.Config
	store   storage.ServerStore
	manager *connection.Manager
	catalog *catalog.Aggregator
}

// startGateway connects the tool servers and builds the catalog. listener,
// when set, observes every connection state change.
func startGateway(ctx context.Context, cfg *config.Config, listener connection.StateListener) (*gateway, error) {
	store, err := sqlite.NewServerStoreFromConfig(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open server store: %w", err)
	}

	servers, err := storage.ResolveServers(ctx, store, cfg.Servers)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	client := protocol.Implementation{Name: cfg.Name, Version: versions.GetVersionInfo().Version}
	manager := connection.NewManager(connection.ConfigFrom(cfg.Connection, client))
	if listener != nil {
		manager.OnStateChange(listener)
	}

	agg := catalog.NewAggregator(catalog.FromManager(manager), catalog.WithSeparator(cfg.Catalog.Separator))
	manager.SetRefresher(agg.RefreshServer)
	if !cfg.Catalog.DisableBuiltins {
		if err := builtin.Register(agg); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	gw := &gateway{cfg: cfg, store: store, manager: manager, catalog: agg}

	logger.Infof("Connecting to %d tool servers", len(servers))
	if err := manager.Start(ctx, servers); err != nil {
		gw.close()
		return nil, fmt.Errorf("failed to start connections: %w", err)
	}
	if err := agg.BuildCatalog(ctx); err != nil {
		gw.close()
		return nil, fmt.Errorf("failed to build tool catalog: %w", err)
	}
	logger.Infof("Tool catalog ready with %d tools", len(agg.Tools()))
	return gw, nil
}

func (g *gateway) close() {
	if err := g.manager.Close(); err != nil {
		logger.Warnf("Failed to close connections: %v", err)
	}
	if err := g.store.Close(); err != nil {
		logger.Warnf("Failed to close server store: %v", err)
	}
}

// newMemory opens the session store. An unreachable Redis is reported and
// kept: the store degrades to empty history until Redis comes back.
func newMemory(ctx context.Context, cfg config.MemoryConfig) memory.Store {
	if cfg.RedisAddr == "" {
		logger.Infof("Session memory disabled (no memory.redis_addr)")
		return memory.NoopStore{}
	}
	store := memory.NewRedisStore(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, memoryPingTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Warnw("session memory unreachable, continuing without history", "address", cfg.RedisAddr, "error", err)
	}
	return store
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	version := versions.GetVersionInfo().Version

	provider, err := providers.NewCompositeProvider(ctx, providers.FromConfig(cfg.Telemetry, version)...)
	if err != nil {
		return fmt.Errorf("failed to create telemetry provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warnf("Failed to shut down telemetry: %v", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(provider.MeterProvider(), provider.TracerProvider())
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	gw, err := startGateway(ctx, cfg, metrics.StateListener())
	if err != nil {
		return err
	}
	defer gw.close()

	mem := newMemory(ctx, cfg.Memory)
	defer func() {
		if err := mem.Close(); err != nil {
			logger.Warnf("Failed to close session memory: %v", err)
		}
	}()

	model := metrics.Model(llm.New(cfg.LLM))
	runner := agent.New(model, metrics.Tools(gw.catalog), mem, agent.ConfigFrom(cfg.Agent))

	deps := api.Deps{
		Agent:         runner,
		Manager:       gw.manager,
		Tools:         gw.catalog,
		Memory:        mem,
		Servers:       gw.store,
		Separator:     cfg.Catalog.Separator,
		ChatRateLimit: cfg.HTTP.ChatRateLimit,
		Metrics:       provider.PrometheusHandler(),
		Middleware:    []func(http.Handler) http.Handler{metrics.HTTPMiddleware},
	}
	if cfg.MCPServer.Enabled {
		srv := mcpserver.New(gw.catalog, mcpserver.Options{Name: cfg.Name, Version: version, Path: cfg.MCPServer.Path})
		deps.MCP = srv.Handler()
		deps.MCPPath = cfg.MCPServer.Path
		logger.Infof("MCP endpoint enabled at %s", cfg.MCPServer.Path)
	}

	logger.Infof("Starting %s at %s", cfg.Name, cfg.HTTP.Address)
	return api.Serve(ctx, cfg.HTTP.Address, api.NewRouter(deps))
}
