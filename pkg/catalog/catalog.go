// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package catalog merges built-in tools and the tools discovered on every
// Ready tool server into one namespace, and routes invocations back to the
// owner of each tool.
//
// External tools are exposed as "<server><separator><tool>". Built-in tools
// keep their bare names and always take precedence over external tools.
package catalog

import (
	"context"
	"errors"

	"github.com/xeipuuv/gojsonschema"

	"github.com/wanquanY/Plan-A-sub001/pkg/connection"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
)

var (
	// ErrToolNotFound indicates that no catalog entry has the requested name.
	ErrToolNotFound = errors.New("tool not found")

	// ErrBuiltinCollision indicates a built-in tool whose name is already
	// taken or could be mistaken for a namespaced name.
	ErrBuiltinCollision = errors.New("built-in tool name collision")
)

// Entry is one tool of the catalog.
type Entry struct {
	// QualifiedName is the name the model uses to call the tool.
	QualifiedName string `json:"name"`
	// Server owns the tool. It is empty for built-in tools.
	Server string `json:"server,omitempty"`
	// Builtin marks tools implemented in process.
	Builtin bool `json:"builtin,omitempty"`
	// Tool is the tool as declared by its owner.
	Tool protocol.Tool `json:"tool"`

	schema  *gojsonschema.Schema
	handler protocol.ToolHandler
}

// BuiltinTool is a tool implemented in process.
type BuiltinTool struct {
	Tool    protocol.Tool
	Handler protocol.ToolHandler
}

// Server is the view of a tool server connection the catalog needs.
type Server interface {
	Name() string
	Ready() bool
	ListTools(ctx context.Context) ([]protocol.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*protocol.CallToolResult, error)
}

// Source enumerates tool servers.
type Source interface {
	ReadyServers() []Server
	Server(name string) (Server, bool)
}

// FromManager exposes the connections of m as a Source.
func FromManager(m *connection.Manager) Source {
	return managerSource{m: m}
}

type managerSource struct {
	m *connection.Manager
}

func (s managerSource) ReadyServers() []Server {
	conns := s.m.ListReadyConnections()
	out := make([]Server, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (s managerSource) Server(name string) (Server, bool) {
	c, ok := s.m.GetConnection(name)
	if !ok {
		return nil, false
	}
	return c, true
}

// StaticSource is a fixed set of servers. Tests and the tools command use it.
type StaticSource map[string]Server

// ReadyServers returns the Ready servers of the set.
func (s StaticSource) ReadyServers() []Server {
	out := make([]Server, 0, len(s))
	for _, srv := range s {
		if srv.Ready() {
			out = append(out, srv)
		}
	}
	return out
}

// Server looks up a server by name.
func (s StaticSource) Server(name string) (Server, bool) {
	srv, ok := s[name]
	return srv, ok
}
