// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"errors"
	"time"

	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
)

// State is the lifecycle state of a server connection.
type State string

const (
	// StateDisconnected is the initial state before Connect.
	StateDisconnected State = "disconnected"
	// StateConnecting means a transport is being opened.
	StateConnecting State = "connecting"
	// StateInitializing means the initialize handshake is in flight.
	StateInitializing State = "initializing"
	// StateReady means the server accepts requests.
	StateReady State = "ready"
	// StateDegraded means requests timed out or the transport failed and
	// recovery is in progress.
	StateDegraded State = "degraded"
	// StateError is entered when retries are exhausted. It is immediately
	// followed by StateClosed.
	StateError State = "error"
	// StateClosed is terminal.
	StateClosed State = "closed"
)

var (
	// ErrNotReady is returned for calls on a connection that is not Ready.
	ErrNotReady = errors.New("connection not ready")
	// ErrTimeout is returned when a request exceeds its timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrClosed is returned when the transport is lost or the connection
	// was closed while a request was pending.
	ErrClosed = errors.New("connection closed")
	// ErrHandshake is returned when initialize fails or returns an invalid
	// result.
	ErrHandshake = errors.New("handshake failed")
	// ErrAlreadyExists is returned by the manager for a duplicate server.
	ErrAlreadyExists = errors.New("server already exists")
	// ErrUnknownServer is returned by the manager for an unknown server.
	ErrUnknownServer = errors.New("unknown server")
)

// StateListener observes state transitions. Listeners run synchronously on
// the goroutine that caused the transition and must not block or call Close.
type StateListener func(name string, from, to State)

// Status is a point-in-time summary of a connection.
type Status struct {
	Name            string                      `json:"name"`
	State           State                       `json:"state"`
	ServerInfo      protocol.Implementation     `json:"server_info"`
	ProtocolVersion string                      `json:"protocol_version,omitempty"`
	Capabilities    protocol.ServerCapabilities `json:"capabilities"`
	ReadySince      time.Time                   `json:"ready_since,omitzero"`
	LastError       string                      `json:"last_error,omitempty"`
}
