// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package toolserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

func newEchoServer() *Server {
	s := New("echo-server", "1.0.0", WithInstructions("echoes input"))
	s.AddTool(protocol.Tool{
		Name:        "echo",
		Description: "Echo the text argument",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
		},
	}, func(_ context.Context, args map[string]any) (*protocol.CallToolResult, error) {
		text, _ := args["text"].(string)
		return protocol.TextResult(text), nil
	})
	s.AddTool(protocol.Tool{Name: "fail"}, func(context.Context, map[string]any) (*protocol.CallToolResult, error) {
		return nil, errors.New("exploded")
	})
	return s
}

// serve starts s on one end of a pipe and returns the other end.
func serve(t *testing.T, s *Server) transport.Transport {
	t.Helper()
	client, srv := transport.NewPipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Serve(ctx, srv)
	}()
	t.Cleanup(func() {
		cancel()
		_ = client.Close()
		<-done
	})
	return client
}

func roundTrip(t *testing.T, tr transport.Transport, msg protocol.Message) protocol.Message {
	t.Helper()
	data, err := protocol.Encode(msg)
	require.NoError(t, err)
	require.NoError(t, tr.WriteLine(context.Background(), data))
	return readMessage(t, tr)
}

func readMessage(t *testing.T, tr transport.Transport) protocol.Message {
	t.Helper()
	line, err := tr.ReadLine()
	require.NoError(t, err)
	msg, err := protocol.Decode(line)
	require.NoError(t, err)
	return msg
}

func TestServeInitialize(t *testing.T) {
	t.Parallel()

	tr := serve(t, newEchoServer())
	req, err := protocol.NewRequest(1, protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		ClientInfo:      protocol.Implementation{Name: "test", Version: "0"},
	})
	require.NoError(t, err)

	resp, ok := roundTrip(t, tr, req).(*protocol.Response)
	require.True(t, ok)
	require.Nil(t, resp.Error)
	assert.Equal(t, int64(1), *resp.ID)

	var result protocol.InitializeResult
	require.NoError(t, protocol.Bind(resp.Result, &result))
	assert.Equal(t, "echo-server", result.ServerInfo.Name)
	assert.Equal(t, protocol.ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "echoes input", result.Instructions)
	require.NotNil(t, result.Capabilities.Tools)
	assert.True(t, result.Capabilities.Tools.ListChanged)
}

func TestServeListAndCallTools(t *testing.T) {
	t.Parallel()

	tr := serve(t, newEchoServer())

	resp := roundTrip(t, tr, &protocol.Request{ID: 2, Method: protocol.MethodListTools}).(*protocol.Response)
	var list protocol.ListToolsResult
	require.NoError(t, protocol.Bind(resp.Result, &list))
	require.Len(t, list.Tools, 2)
	assert.Equal(t, "echo", list.Tools[0].Name)
	assert.Equal(t, "fail", list.Tools[1].Name)
	assert.Equal(t, map[string]any{"type": "object"}, list.Tools[1].InputSchema)

	call, err := protocol.NewRequest(3, protocol.MethodCallTool, protocol.CallToolParams{
		Name: "echo", Arguments: map[string]any{"text": "hi"},
	})
	require.NoError(t, err)
	resp = roundTrip(t, tr, call).(*protocol.Response)
	var result protocol.CallToolResult
	require.NoError(t, protocol.Bind(resp.Result, &result))
	assert.False(t, result.IsError)
	assert.Equal(t, "hi", result.Text())

	call, err = protocol.NewRequest(4, protocol.MethodCallTool, protocol.CallToolParams{Name: "fail"})
	require.NoError(t, err)
	resp = roundTrip(t, tr, call).(*protocol.Response)
	require.NoError(t, protocol.Bind(resp.Result, &result))
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "exploded")
}

func TestServeErrors(t *testing.T) {
	t.Parallel()

	tr := serve(t, newEchoServer())

	tests := []struct {
		name     string
		msg      protocol.Message
		wantCode protocol.ErrorCode
	}{
		{
			name:     "unknown method",
			msg:      &protocol.Request{ID: 10, Method: "frobnicate"},
			wantCode: protocol.CodeMethodNotFound,
		},
		{
			name:     "unknown tool",
			msg:      &protocol.Request{ID: 11, Method: protocol.MethodCallTool, Params: map[string]any{"name": "nope"}},
			wantCode: protocol.CodeInvalidParams,
		},
		{
			name:     "missing tool name",
			msg:      &protocol.Request{ID: 12, Method: protocol.MethodCallTool, Params: map[string]any{}},
			wantCode: protocol.CodeInvalidParams,
		},
		{
			name:     "malformed call params",
			msg:      &protocol.Request{ID: 13, Method: protocol.MethodCallTool, Params: map[string]any{"name": 7}},
			wantCode: protocol.CodeInvalidParams,
		},
	}

	// Subtests share one transport, so they run sequentially.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, ok := roundTrip(t, tr, tt.msg).(*protocol.Response)
			require.True(t, ok)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.msg.(*protocol.Request).ID, *resp.ID)
		})
	}
}

func TestServeMalformedLine(t *testing.T) {
	t.Parallel()

	tr := serve(t, newEchoServer())
	require.NoError(t, tr.WriteLine(context.Background(), []byte(`{"id":1,"method":`)))

	resp, ok := readMessage(t, tr).(*protocol.Response)
	require.True(t, ok)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeParseError, resp.Error.Code)
	assert.Nil(t, resp.ID)
}

func TestServeIgnoresNotifications(t *testing.T) {
	t.Parallel()

	tr := serve(t, newEchoServer())

	data, err := protocol.Encode(&protocol.Notification{Method: protocol.MethodInitialized})
	require.NoError(t, err)
	require.NoError(t, tr.WriteLine(context.Background(), data))

	// The next message read must be the ping reply, not a reply to the
	// notification.
	resp := roundTrip(t, tr, &protocol.Request{ID: 99, Method: protocol.MethodPing}).(*protocol.Response)
	assert.Equal(t, int64(99), *resp.ID)
	assert.Empty(t, resp.Result)
}

func TestAddToolNotifiesPeers(t *testing.T) {
	t.Parallel()

	s := newEchoServer()
	tr := serve(t, s)

	// Make sure Serve registered the peer before mutating the tool set.
	roundTrip(t, tr, &protocol.Request{ID: 1, Method: protocol.MethodPing})

	go s.AddTool(protocol.Tool{Name: "late"}, func(context.Context, map[string]any) (*protocol.CallToolResult, error) {
		return protocol.TextResult("ok"), nil
	})

	expectListChanged(t, tr)

	removed := make(chan bool, 1)
	go func() { removed <- s.RemoveTool("late") }()
	expectListChanged(t, tr)
	assert.True(t, <-removed)
	assert.False(t, s.RemoveTool("late"))
}

func expectListChanged(t *testing.T, tr transport.Transport) {
	t.Helper()

	msgCh := make(chan protocol.Message, 1)
	go func() {
		line, err := tr.ReadLine()
		if err != nil {
			return
		}
		msg, _ := protocol.Decode(line)
		msgCh <- msg
	}()

	select {
	case msg := <-msgCh:
		n, ok := msg.(*protocol.Notification)
		require.True(t, ok)
		assert.Equal(t, protocol.MethodToolsListChanged, n.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("no list_changed notification received")
	}
}
