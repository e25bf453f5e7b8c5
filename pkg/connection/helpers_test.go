// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
	"github.com/wanquanY/Plan-A-sub001/pkg/toolserver"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

func testConfig() Config {
	return Config{
		HandshakeTimeout: 2 * time.Second,
		RequestTimeout:   2 * time.Second,
		RetryAttempts:    3,
		RetryDelay:       time.Millisecond,
		TimeoutThreshold: 3,
		ClientInfo:       protocol.Implementation{Name: "connection-test", Version: "0.0.1"},
	}
}

// newToolServer returns a server with echo, sleep and block tools. block
// waits until release is closed or the request is cancelled.
func newToolServer(release <-chan struct{}) *toolserver.Server {
	s := toolserver.New("test-server", "1.2.3")
	s.AddTool(protocol.Tool{Name: "echo"}, func(_ context.Context, args map[string]any) (*protocol.CallToolResult, error) {
		text, _ := args["text"].(string)
		return protocol.TextResult(text), nil
	})
	s.AddTool(protocol.Tool{Name: "sleep"}, func(ctx context.Context, args map[string]any) (*protocol.CallToolResult, error) {
		ms, _ := args["ms"].(float64)
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return protocol.TextResult(fmt.Sprintf("%v", args["tag"])), nil
	})
	s.AddTool(protocol.Tool{Name: "block"}, func(ctx context.Context, _ map[string]any) (*protocol.CallToolResult, error) {
		select {
		case <-release:
			return protocol.TextResult("released"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	return s
}

// serverHarness hands out in-memory transports wired to a tool server and
// counts how many were opened.
type serverHarness struct {
	t      *testing.T
	server *toolserver.Server
	opens  atomic.Int32

	mu      sync.Mutex
	serverT []transport.Transport
	cancel  []context.CancelFunc
}

func newHarness(t *testing.T, s *toolserver.Server) *serverHarness {
	t.Helper()
	h := &serverHarness{t: t, server: s}
	t.Cleanup(h.shutdown)
	return h
}

func (h *serverHarness) opener() transport.Opener {
	return func(context.Context) (transport.Transport, error) {
		h.opens.Add(1)
		client, srv := transport.NewPipe()
		ctx, cancel := context.WithCancel(context.Background())
		h.mu.Lock()
		h.serverT = append(h.serverT, srv)
		h.cancel = append(h.cancel, cancel)
		h.mu.Unlock()
		go func() { _ = h.server.Serve(ctx, srv) }()
		return client, nil
	}
}

// dropCurrent closes the server side of the latest transport.
func (h *serverHarness) dropCurrent() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.serverT); n > 0 {
		_ = h.serverT[n-1].Close()
	}
}

func (h *serverHarness) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cancel := range h.cancel {
		cancel()
	}
}

// scriptedPeer answers requests with a caller-supplied function. A nil
// response means no reply.
type scriptedPeer struct {
	tr transport.Transport
}

func newScriptedOpener(t *testing.T, respond func(peer *scriptedPeer, req *protocol.Request) *protocol.Response) transport.Opener {
	t.Helper()
	return func(context.Context) (transport.Transport, error) {
		client, srv := transport.NewPipe()
		peer := &scriptedPeer{tr: srv}
		t.Cleanup(func() { _ = srv.Close() })
		go func() {
			for {
				line, err := srv.ReadLine()
				if err != nil {
					return
				}
				msg, err := protocol.Decode(line)
				if err != nil {
					continue
				}
				req, ok := msg.(*protocol.Request)
				if !ok {
					continue
				}
				if resp := respond(peer, req); resp != nil {
					peer.send(resp)
				}
			}
		}()
		return client, nil
	}
}

func (p *scriptedPeer) send(msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		return
	}
	_ = p.tr.WriteLine(context.Background(), data)
}

func initializeResult(id int64) *protocol.Response {
	resp, _ := protocol.NewResult(id, protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		ServerInfo:      protocol.Implementation{Name: "scripted", Version: "1"},
	})
	return resp
}

// transitions records state changes for assertions.
type transitions struct {
	mu   sync.Mutex
	seen []State
}

func (r *transitions) listener(_ string, _, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, to)
}

func (r *transitions) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.seen...)
}

func (r *transitions) contains(s State) bool {
	for _, st := range r.states() {
		if st == s {
			return true
		}
	}
	return false
}

var errOpen = errors.New("spawn failed")
