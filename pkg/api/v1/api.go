// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package v1 contains the version 1 REST routes of the agent gateway.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stacklok/toolhive-core/httperr"

	"github.com/wanquanY/Plan-A-sub001/pkg/catalog"
	"github.com/wanquanY/Plan-A-sub001/pkg/chat"
	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/connection"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
)

// UserIDHeader carries the caller's identity. Authentication happens in
// front of the gateway.
const UserIDHeader = "X-User-ID"

// maxRequestBodySize bounds JSON request bodies.
const maxRequestBodySize = 1 << 20

// TurnRunner runs one chat turn.
type TurnRunner interface {
	RunTurn(ctx context.Context, sessionID, userID, text string) (chat.Message, error)
}

// ServerManager is the connection manager as seen from the API.
type ServerManager interface {
	Statuses() []connection.Status
	AddServer(ctx context.Context, sc config.ServerConfig) error
	RemoveServer(ctx context.Context, name string) error
	RefreshCatalog(ctx context.Context, name string) error
}

// ToolLister lists the aggregated catalog.
type ToolLister interface {
	Tools() []catalog.Entry
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugw("failed to encode response", "error", err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return httperr.WithCode(fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
		}
		return httperr.WithCode(fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
	}
	return nil
}

func badRequest(format string, args ...any) error {
	return httperr.WithCode(fmt.Errorf(format, args...), http.StatusBadRequest)
}
