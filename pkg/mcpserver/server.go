// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package mcpserver re-exports the aggregated tool catalog as a
// streamable-HTTP MCP endpoint, so MCP clients can use every connected
// server's tools through one gateway.
package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wanquanY/Plan-A-sub001/pkg/catalog"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
)

// DefaultPath is the endpoint used when Options.Path is empty.
const DefaultPath = "/mcp"

// Catalog is the tool catalog served over MCP.
type Catalog interface {
	Tools() []catalog.Entry
	CallTool(ctx context.Context, name string, args map[string]any) (*protocol.CallToolResult, error)
	OnChange(l catalog.ChangeListener)
}

// Options configure the server.
type Options struct {
	Name    string
	Version string
	// Path is the HTTP endpoint path.
	Path string
}

// Server serves the catalog over MCP.
type Server struct {
	mcp     *server.MCPServer
	catalog Catalog
	path    string
}

// New creates a server and keeps its tool list in sync with the catalog.
func New(cat Catalog, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "mcpagent"
	}
	if opts.Path == "" {
		opts.Path = DefaultPath
	}

	s := &Server{
		mcp:     server.NewMCPServer(opts.Name, opts.Version, server.WithToolCapabilities(true)),
		catalog: cat,
		path:    opts.Path,
	}
	s.sync(cat.Tools())
	cat.OnChange(s.sync)
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Handler returns the streamable-HTTP handler for the configured path.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithEndpointPath(s.path))
}

// sync replaces the registered tools with the catalog entries.
func (s *Server) sync(entries []catalog.Entry) {
	tools := make([]server.ServerTool, 0, len(entries))
	for _, e := range entries {
		tool, err := toMCPTool(e)
		if err != nil {
			logger.Warnw("skipping tool with unencodable schema", "tool", e.QualifiedName, "error", err)
			continue
		}
		tools = append(tools, server.ServerTool{Tool: tool, Handler: s.handler(e.QualifiedName)})
	}
	s.mcp.SetTools(tools...)
	logger.Debugw("MCP tool list updated", "tools", len(tools))
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := s.catalog.CallTool(ctx, name, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPTool(e catalog.Entry) (mcp.Tool, error) {
	schema := e.Tool.InputSchema
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return mcp.Tool{}, err
	}
	return mcp.Tool{
		Name:           e.QualifiedName,
		Description:    e.Tool.Description,
		RawInputSchema: raw,
	}, nil
}

func toMCPResult(r *protocol.CallToolResult) *mcp.CallToolResult {
	out := &mcp.CallToolResult{IsError: r.IsError, Content: make([]mcp.Content, 0, len(r.Content))}
	for _, c := range r.Content {
		switch c.Type {
		case protocol.ContentTypeImage:
			out.Content = append(out.Content, mcp.NewImageContent(c.Data, c.MimeType))
		default:
			out.Content = append(out.Content, mcp.NewTextContent(c.Text))
		}
	}
	return out
}
