// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package toolserver implements the server side of the tool protocol: it
// answers initialize, list_tools, call_tool and ping over any transport.
//
// It backs the tool-server command and serves as the peer in connection
// tests.
package toolserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

type registeredTool struct {
	tool    protocol.Tool
	handler protocol.ToolHandler
}

// Server dispatches protocol requests to registered tools.
type Server struct {
	info         protocol.Implementation
	instructions string

	mu    sync.RWMutex
	tools map[string]registeredTool

	peersMu sync.Mutex
	peers   map[transport.Transport]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(text string) Option {
	return func(s *Server) {
		s.instructions = text
	}
}

// New creates a server that identifies itself as name/version.
func New(name, version string, opts ...Option) *Server {
	s := &Server{
		info:  protocol.Implementation{Name: name, Version: version},
		tools: make(map[string]registeredTool),
		peers: make(map[transport.Transport]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTool registers or replaces a tool. Connected peers are told the tool
// list changed.
func (s *Server) AddTool(tool protocol.Tool, handler protocol.ToolHandler) {
	if tool.InputSchema == nil {
		tool.InputSchema = map[string]any{"type": "object"}
	}
	s.mu.Lock()
	s.tools[tool.Name] = registeredTool{tool: tool, handler: handler}
	s.mu.Unlock()
	s.NotifyToolsChanged(context.Background())
}

// RemoveTool unregisters a tool and reports whether it existed.
func (s *Server) RemoveTool(name string) bool {
	s.mu.Lock()
	_, ok := s.tools[name]
	delete(s.tools, name)
	s.mu.Unlock()
	if ok {
		s.NotifyToolsChanged(context.Background())
	}
	return ok
}

// Tools returns the registered tool definitions sorted by name.
func (s *Server) Tools() []protocol.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.Tool, 0, len(s.tools))
	for _, rt := range s.tools {
		out = append(out, rt.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NotifyToolsChanged sends the list_changed notification to every peer being
// served.
func (s *Server) NotifyToolsChanged(ctx context.Context) {
	data, err := protocol.Encode(&protocol.Notification{Method: protocol.MethodToolsListChanged})
	if err != nil {
		return
	}
	s.peersMu.Lock()
	peers := make([]transport.Transport, 0, len(s.peers))
	for tr := range s.peers {
		peers = append(peers, tr)
	}
	s.peersMu.Unlock()

	for _, tr := range peers {
		if err := tr.WriteLine(ctx, data); err != nil {
			logger.Debugw("failed to send list_changed notification", "error", err)
		}
	}
}

// Serve reads requests from tr until the peer goes away or ctx is cancelled.
// Requests are handled concurrently, so responses may be written out of
// order. Serve closes tr before returning.
func (s *Server) Serve(ctx context.Context, tr transport.Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.peersMu.Lock()
	s.peers[tr] = struct{}{}
	s.peersMu.Unlock()

	var wg sync.WaitGroup
	defer func() {
		s.peersMu.Lock()
		delete(s.peers, tr)
		s.peersMu.Unlock()
		cancel()
		_ = tr.Close()
		wg.Wait()
	}()

	go func() {
		<-ctx.Done()
		_ = tr.Close()
	}()

	for {
		line, err := tr.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}

		msg, err := protocol.Decode(line)
		if err != nil {
			var decErr *protocol.DecodeError
			if errors.As(err, &decErr) {
				s.write(ctx, tr, decErr.Response())
			}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if resp := s.Handle(ctx, msg); resp != nil {
				s.write(ctx, tr, resp)
			}
		}()
	}
}

func (*Server) write(ctx context.Context, tr transport.Transport, resp *protocol.Response) {
	data, err := protocol.Encode(resp)
	if err != nil {
		logger.Errorw("failed to encode response", "error", err)
		return
	}
	if err := tr.WriteLine(ctx, data); err != nil {
		logger.Debugw("failed to write response", "error", err)
	}
}

// Handle processes one decoded message and returns the response to send, or
// nil for notifications and stray responses.
func (s *Server) Handle(ctx context.Context, msg protocol.Message) *protocol.Response {
	req, ok := msg.(*protocol.Request)
	if !ok {
		return nil
	}

	result, err := s.dispatch(ctx, req)
	if err != nil {
		var obj *protocol.ErrorObject
		if !errors.As(err, &obj) {
			obj = protocol.NewError(protocol.CodeInternalError, "%v", err)
		}
		return &protocol.Response{ID: protocol.IDPtr(req.ID), Error: obj}
	}

	resp, err := protocol.NewResult(req.ID, result)
	if err != nil {
		return protocol.NewErrorResponse(protocol.IDPtr(req.ID), protocol.CodeInternalError, err.Error(), nil)
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, req *protocol.Request) (any, error) {
	switch req.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(req.Params)
	case protocol.MethodListTools:
		return protocol.ListToolsResult{Tools: s.Tools()}, nil
	case protocol.MethodCallTool:
		return s.handleCallTool(ctx, req.Params)
	case protocol.MethodPing:
		return map[string]any{}, nil
	default:
		return nil, protocol.NewError(protocol.CodeMethodNotFound, "Method not found: %s", req.Method)
	}
}

func (s *Server) handleInitialize(params map[string]any) (*protocol.InitializeResult, error) {
	var p protocol.InitializeParams
	if err := protocol.Bind(params, &p); err != nil {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "%v", err)
	}
	logger.Debugw("client initialized", "client", p.ClientInfo.Name, "protocol_version", p.ProtocolVersion)
	return &protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities: protocol.ServerCapabilities{
			Tools: &protocol.ToolsCapability{ListChanged: true},
		},
		ServerInfo:   s.info,
		Instructions: s.instructions,
	}, nil
}

func (s *Server) handleCallTool(ctx context.Context, params map[string]any) (*protocol.CallToolResult, error) {
	var p protocol.CallToolParams
	if err := protocol.Bind(params, &p); err != nil {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "%v", err)
	}
	if p.Name == "" {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "tool name is required")
	}

	s.mu.RLock()
	rt, ok := s.tools[p.Name]
	s.mu.RUnlock()
	if !ok {
		return nil, protocol.NewError(protocol.CodeInvalidParams, "unknown tool: %s", p.Name)
	}

	args := p.Arguments
	if args == nil {
		args = map[string]any{}
	}
	result, err := rt.handler(ctx, args)
	if err != nil {
		return protocol.ErrorResult("%v", err), nil
	}
	if result == nil {
		result = &protocol.CallToolResult{Content: []protocol.Content{}}
	}
	return result, nil
}
