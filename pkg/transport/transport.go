// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package transport provides line-oriented byte channels to MCP tool servers.
//
// A Transport only moves newline-terminated units. It knows nothing about
// the messages inside them; framing into requests and responses belongs to
// the protocol package.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
)

// Kind selects the transport variant used to reach a server.
type Kind string

const (
	// KindStdio spawns the server as a subprocess and talks over its
	// standard input and output.
	KindStdio Kind = "stdio"
	// KindStream dials a network stream (TCP or unix socket).
	KindStream Kind = "stream"
)

// MaxLineSize bounds a single unit read from a transport.
const MaxLineSize = 4 * 1024 * 1024

var (
	// ErrClosed is returned by operations on a transport that was closed.
	ErrClosed = errors.New("transport closed")
	// ErrUnsupportedKind is returned by Open for an unknown Kind.
	ErrUnsupportedKind = errors.New("unsupported transport kind")
)

// Transport is a bidirectional channel of newline-terminated units.
//
// ReadLine is called from a single reader goroutine. WriteLine is safe for
// concurrent use. Close unblocks a pending ReadLine.
type Transport interface {
	// ReadLine blocks until the next non-empty line arrives. It returns the
	// line without its terminator, or io.EOF once the peer is gone.
	ReadLine() ([]byte, error)
	// WriteLine writes line followed by a newline.
	WriteLine(ctx context.Context, line []byte) error
	// Close releases the channel and any process behind it.
	Close() error
	// Kind reports the variant.
	Kind() Kind
}

// Config describes how to reach one server.
type Config struct {
	Kind Kind
	// Command, Args and Env configure a stdio subprocess.
	Command string
	Args    []string
	Env     map[string]string
	// Network and Address configure a stream dial. Network defaults to tcp.
	Network string
	Address string
	// Stderr receives the subprocess standard error. Defaults to the logger.
	Stderr io.Writer
}

// Opener creates a fresh transport. Connections call it once per attempt.
type Opener func(ctx context.Context) (Transport, error)

// NewOpener returns an Opener for cfg.
func NewOpener(cfg Config) Opener {
	return func(ctx context.Context) (Transport, error) {
		return Open(ctx, cfg)
	}
}

// Open creates a transport for cfg.
func Open(ctx context.Context, cfg Config) (Transport, error) {
	switch cfg.Kind {
	case KindStdio:
		p, err := StartProcess(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	case KindStream:
		return Dial(ctx, cfg.Network, cfg.Address)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, cfg.Kind)
	}
}

// IsRecoverable reports whether err is a transient I/O failure after which
// the channel may still be usable.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
