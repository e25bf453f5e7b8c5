// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wanquanY/Plan-A-sub001/pkg/catalog"
	"github.com/wanquanY/Plan-A-sub001/pkg/chat"
	"github.com/wanquanY/Plan-A-sub001/pkg/chat/mocks"
	"github.com/wanquanY/Plan-A-sub001/pkg/memory"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
)

func newStore(t *testing.T) (*memory.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := memory.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), memory.Options{KeyPrefix: "agent:"})
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func newTools(t *testing.T) *catalog.Aggregator {
	t.Helper()
	agg := catalog.NewAggregator(catalog.StaticSource{})
	require.NoError(t, agg.Register(catalog.BuiltinTool{
		Tool: protocol.Tool{
			Name: "echo",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"text": map[string]any{"type": "string"}},
			},
		},
		Handler: func(_ context.Context, args map[string]any) (*protocol.CallToolResult, error) {
			text, _ := args["text"].(string)
			return protocol.TextResult("echo: " + text), nil
		},
	}))
	return agg
}

func answer(content string) *chat.Completion {
	return &chat.Completion{Message: chat.Message{Role: chat.RoleAssistant, Content: content}}
}

func toolCall(id, name string, args map[string]any) *chat.Completion {
	return &chat.Completion{Message: chat.Message{
		Role:      chat.RoleAssistant,
		ToolCalls: []chat.ToolCall{{ID: id, Name: name, Arguments: args}},
	}}
}

func roles(msgs []chat.Message) []chat.Role {
	out := make([]chat.Role, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Role)
	}
	return out
}

func TestRunTurn_PlainAnswer(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	store, _ := newStore(t)
	a := New(model, newTools(t), store, Config{SystemPrompt: "be brief"})

	model.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []chat.Message, tools []chat.ToolDefinition) (*chat.Completion, error) {
			require.Len(t, msgs, 2)
			assert.Equal(t, chat.RoleSystem, msgs[0].Role)
			assert.Equal(t, "be brief", msgs[0].Content)
			assert.Equal(t, "hi", msgs[1].Content)
			require.Len(t, tools, 1)
			assert.Equal(t, "echo", tools[0].Name)
			return answer("hello"), nil
		})

	reply, err := a.RunTurn(context.Background(), "s1", "alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", reply.Content)
	assert.Equal(t, chat.RoleAssistant, reply.Role)

	stored := store.Read(context.Background(), "s1")
	assert.Equal(t, []chat.Role{chat.RoleUser, chat.RoleAssistant}, roles(stored))
	assert.Equal(t, []string{"s1"}, store.Sessions(context.Background(), "alice"))
}

func TestRunTurn_ToolRoundTrip(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	store, _ := newStore(t)
	a := New(model, newTools(t), store, Config{})

	gomock.InOrder(
		model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCall("c1", "echo", map[string]any{"text": "ping"}), nil),
		model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []chat.Message, _ []chat.ToolDefinition) (*chat.Completion, error) {
				last := msgs[len(msgs)-1]
				assert.Equal(t, chat.RoleTool, last.Role)
				assert.Equal(t, "c1", last.ToolCallID)
				assert.Equal(t, "echo: ping", last.Content)
				return answer("the tool said ping"), nil
			}),
	)

	reply, err := a.RunTurn(context.Background(), "s1", "alice", "call echo")
	require.NoError(t, err)
	assert.Equal(t, "the tool said ping", reply.Content)

	stored := store.Read(context.Background(), "s1")
	assert.Equal(t, []chat.Role{chat.RoleUser, chat.RoleAssistant, chat.RoleTool, chat.RoleAssistant}, roles(stored))
}

func TestRunTurn_TrimmedHistoryStartsCleanly(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	mr := miniredis.RunT(t)
	store := memory.NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		memory.Options{KeyPrefix: "agent:", MaxMessages: 2})
	t.Cleanup(func() { _ = store.Close() })
	a := New(model, newTools(t), store, Config{})

	gomock.InOrder(
		model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCall("c1", "echo", map[string]any{"text": "ping"}), nil),
		model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(answer("pong"), nil),
		model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []chat.Message, _ []chat.ToolDefinition) (*chat.Completion, error) {
				assert.Equal(t, []chat.Role{chat.RoleAssistant, chat.RoleUser}, roles(msgs))
				return answer("ok"), nil
			}),
	)

	_, err := a.RunTurn(context.Background(), "s1", "alice", "call echo")
	require.NoError(t, err)
	stored := store.Read(context.Background(), "s1")
	require.Equal(t, []chat.Role{chat.RoleTool, chat.RoleAssistant}, roles(stored))

	_, err = a.RunTurn(context.Background(), "s1", "alice", "again")
	require.NoError(t, err)
}

func TestRunTurn_ToolFailureIsReportedToModel(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	a := New(model, newTools(t), nil, Config{})

	gomock.InOrder(
		model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCall("", "missing__tool", nil), nil),
		model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []chat.Message, _ []chat.ToolDefinition) (*chat.Completion, error) {
				call := msgs[len(msgs)-2].ToolCalls[0]
				assert.NotEmpty(t, call.ID)
				last := msgs[len(msgs)-1]
				assert.Equal(t, call.ID, last.ToolCallID)
				assert.Contains(t, last.Content, "error:")
				assert.Contains(t, last.Content, "tool not found")
				return answer("that tool does not exist"), nil
			}),
	)

	reply, err := a.RunTurn(context.Background(), "s1", "alice", "use a missing tool")
	require.NoError(t, err)
	assert.Equal(t, "that tool does not exist", reply.Content)
}

func TestRunTurn_MalformedArgumentsAreReportedToModel(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	var called bool
	agg := catalog.NewAggregator(catalog.StaticSource{})
	require.NoError(t, agg.Register(catalog.BuiltinTool{
		Tool: protocol.Tool{Name: "echo", InputSchema: map[string]any{"type": "object"}},
		Handler: func(context.Context, map[string]any) (*protocol.CallToolResult, error) {
			called = true
			return protocol.TextResult("unexpected"), nil
		},
	}))
	a := New(model, agg, nil, Config{})

	broken := &chat.Completion{Message: chat.Message{
		Role:      chat.RoleAssistant,
		ToolCalls: []chat.ToolCall{{ID: "c1", Name: "echo", ArgumentsError: "invalid character 'o'"}},
	}}
	gomock.InOrder(
		model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).Return(broken, nil),
		model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, msgs []chat.Message, _ []chat.ToolDefinition) (*chat.Completion, error) {
				last := msgs[len(msgs)-1]
				assert.Equal(t, chat.RoleTool, last.Role)
				assert.Equal(t, "c1", last.ToolCallID)
				assert.Contains(t, last.Content, "error: invalid arguments for echo")
				return answer("let me retry"), nil
			}),
	)

	reply, err := a.RunTurn(context.Background(), "s1", "alice", "call echo")
	require.NoError(t, err)
	assert.Equal(t, "let me retry", reply.Content)
	assert.False(t, called)
}

func TestRunTurn_UsesHistory(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	store, _ := newStore(t)
	store.AppendMany(context.Background(), "s1", "alice", []chat.Message{
		{Role: chat.RoleUser, Content: "my name is Alice"},
		{Role: chat.RoleAssistant, Content: "nice to meet you"},
	})
	a := New(model, newTools(t), store, Config{})

	model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []chat.Message, _ []chat.ToolDefinition) (*chat.Completion, error) {
			require.Len(t, msgs, 3)
			assert.Equal(t, "my name is Alice", msgs[0].Content)
			assert.Equal(t, "what is my name?", msgs[2].Content)
			return answer("Alice"), nil
		})

	_, err := a.RunTurn(context.Background(), "s1", "alice", "what is my name?")
	require.NoError(t, err)
	assert.Len(t, store.Read(context.Background(), "s1"), 4)
}

func TestRunTurn_StepLimit(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	store, _ := newStore(t)
	a := New(model, newTools(t), store, Config{MaxSteps: 2})

	withTools := model.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Len(1)).
		Return(toolCall("", "echo", map[string]any{"text": "again"}), nil).
		Times(2)
	model.EXPECT().
		Complete(gomock.Any(), gomock.Any(), gomock.Nil()).
		Return(toolCall("", "echo", map[string]any{"text": "one more"}), nil).
		After(withTools)

	reply, err := a.RunTurn(context.Background(), "s1", "alice", "loop forever")
	require.NoError(t, err)
	assert.Empty(t, reply.ToolCalls)

	stored := store.Read(context.Background(), "s1")
	// user, (assistant, tool) x2, final assistant
	assert.Len(t, stored, 6)
	assert.Empty(t, stored[len(stored)-1].ToolCalls)
}

func TestRunTurn_ModelFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	store, _ := newStore(t)
	a := New(model, newTools(t), store, Config{})

	model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("502 from provider"))

	_, err := a.RunTurn(context.Background(), "s1", "alice", "hi")
	require.ErrorIs(t, err, ErrModelUnavailable)
	assert.Contains(t, err.Error(), "502 from provider")
	assert.Empty(t, store.Read(context.Background(), "s1"))
}

func TestRunTurn_Timeout(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	store, _ := newStore(t)
	a := New(model, newTools(t), store, Config{TurnTimeout: 50 * time.Millisecond})

	model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ []chat.Message, _ []chat.ToolDefinition) (*chat.Completion, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	_, err := a.RunTurn(context.Background(), "s1", "alice", "hi")
	require.ErrorIs(t, err, ErrTurnTimeout)
	assert.NotErrorIs(t, err, ErrModelUnavailable)
	assert.Empty(t, store.Read(context.Background(), "s1"))
}

func TestRunTurn_CallerCancellation(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	a := New(model, newTools(t), nil, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	model.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []chat.Message, []chat.ToolDefinition) (*chat.Completion, error) {
			cancel()
			return nil, context.Canceled
		})

	_, err := a.RunTurn(ctx, "s1", "alice", "hi")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTurn_DegradedMemoryStillAnswers(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mocks.NewMockCompleter(ctrl)
	store, mr := newStore(t)
	mr.Close()
	a := New(model, newTools(t), store, Config{})

	model.EXPECT().Complete(gomock.Any(), gomock.Len(1), gomock.Any()).
		Return(answer("still here"), nil)

	reply, err := a.RunTurn(context.Background(), "s1", "alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, "still here", reply.Content)
}
