// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package memory keeps the recent messages of chat sessions.
//
// Each session holds at most MaxMessages messages and each user at most
// MaxSessions sessions; the oldest are dropped first. Memory is a cache: a
// failing backend degrades to empty reads and lost writes, never to errors
// surfaced to the conversation.
package memory

import (
	"context"

	"github.com/wanquanY/Plan-A-sub001/pkg/chat"
)

// Store holds session memory.
type Store interface {
	// Append adds a message to the session and marks it as the user's most
	// recently used session.
	Append(ctx context.Context, sessionID, userID string, msg chat.Message)
	// AppendMany adds messages in order as one write.
	AppendMany(ctx context.Context, sessionID, userID string, msgs []chat.Message)
	// Read returns the session's messages, oldest first.
	Read(ctx context.Context, sessionID string) []chat.Message
	// Clear forgets the session.
	Clear(ctx context.Context, sessionID string)
	// Sessions returns the user's sessions, most recently used first.
	Sessions(ctx context.Context, userID string) []string
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend.
	Close() error
}

// NoopStore remembers nothing. It stands in when no backend is configured.
type NoopStore struct{}

var _ Store = NoopStore{}

// Append does nothing.
func (NoopStore) Append(context.Context, string, string, chat.Message) {}

// AppendMany does nothing.
func (NoopStore) AppendMany(context.Context, string, string, []chat.Message) {}

// Read returns nothing.
func (NoopStore) Read(context.Context, string) []chat.Message { return nil }

// Clear does nothing.
func (NoopStore) Clear(context.Context, string) {}

// Sessions returns nothing.
func (NoopStore) Sessions(context.Context, string) []string { return nil }

// Ping always succeeds.
func (NoopStore) Ping(context.Context) error { return nil }

// Close always succeeds.
func (NoopStore) Close() error { return nil }
