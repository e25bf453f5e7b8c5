// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api contains the REST API of the agent gateway.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/wanquanY/Plan-A-sub001/pkg/api/v1"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
	"github.com/wanquanY/Plan-A-sub001/pkg/memory"
	"github.com/wanquanY/Plan-A-sub001/pkg/storage"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Deps are the components served by the API. Optional handlers are
// mounted only when set.
type Deps struct {
	Agent     v1.TurnRunner
	Manager   v1.ServerManager
	Tools     v1.ToolLister
	Memory    memory.Store
	Servers   storage.ServerStore
	Separator string

	// ChatRateLimit caps chat turns per client per minute. Zero disables it.
	ChatRateLimit int

	// Metrics serves /metrics.
	Metrics http.Handler
	// MCP is mounted at MCPPath.
	MCP     http.Handler
	MCPPath string

	// Middleware wraps every route, e.g. telemetry.
	Middleware []func(http.Handler) http.Handler
}

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debugw("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	memStore := d.Memory
	if memStore == nil {
		memStore = memory.NoopStore{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, requestLogger, headersMiddleware)
	r.Use(d.Middleware...)

	var chatRouter http.Handler = v1.ChatRouter(d.Agent)
	if d.ChatRateLimit > 0 {
		chatRouter = newClientRateLimiter(d.ChatRateLimit).Middleware(chatRouter)
	}

	routers := map[string]http.Handler{
		"/health":          v1.HealthcheckRouter(d.Manager, memStore),
		"/api/v1/version":  v1.VersionRouter(),
		"/api/v1/chat":     chatRouter,
		"/api/v1/sessions": v1.SessionRouter(memStore),
		"/api/v1/servers":  v1.ServerRouter(d.Manager, d.Servers, d.Separator),
		"/api/v1/tools":    v1.ToolsRouter(d.Tools),
	}
	if d.Metrics != nil {
		routers["/metrics"] = d.Metrics
	}
	if d.MCP != nil {
		path := d.MCPPath
		if path == "" {
			path = "/mcp"
		}
		routers[path] = d.MCP
	}

	for prefix, router := range routers {
		r.Mount(prefix, router)
	}
	return r
}

// Serve listens on address and serves handler until ctx is cancelled.
func Serve(ctx context.Context, address string, handler http.Handler) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	return ServeListener(ctx, listener, handler)
}

// ServeListener serves handler on an existing listener until ctx is cancelled.
func ServeListener(ctx context.Context, listener net.Listener, handler http.Handler) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	logger.Infow("HTTP server started", "address", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped with error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Infof("HTTP server stopped")
	return nil
}
