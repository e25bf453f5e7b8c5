// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package agent runs chat turns: it asks the model for the next message,
// executes the tool calls it requests and keeps the conversation in session
// memory.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wanquanY/Plan-A-sub001/pkg/chat"
	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
	"github.com/wanquanY/Plan-A-sub001/pkg/memory"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
)

var (
	// ErrTurnTimeout indicates the turn did not finish within its deadline.
	ErrTurnTimeout = errors.New("turn timed out")

	// ErrModelUnavailable indicates the model could not produce an answer.
	ErrModelUnavailable = errors.New("model unavailable")
)

// persistTimeout bounds the final memory write of a turn.
const persistTimeout = 5 * time.Second

// ToolCatalog is the set of tools offered to the model.
type ToolCatalog interface {
	Definitions() []chat.ToolDefinition
	CallTool(ctx context.Context, name string, args map[string]any) (*protocol.CallToolResult, error)
}

// Config tunes the loop.
type Config struct {
	// TurnTimeout bounds a whole turn, tool calls included.
	TurnTimeout time.Duration
	// MaxSteps is the number of model round trips that may request tools.
	// The step after the last one is offered no tools.
	MaxSteps int
	// SystemPrompt is prepended to every conversation when set.
	SystemPrompt string
}

// ConfigFrom converts the file configuration.
func ConfigFrom(c config.AgentConfig) Config {
	return Config{
		TurnTimeout:  c.TurnTimeout.Std(),
		MaxSteps:     c.MaxSteps,
		SystemPrompt: c.SystemPrompt,
	}
}

func (c Config) withDefaults() Config {
	d := config.Default().Agent
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = d.TurnTimeout.Std()
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = d.MaxSteps
	}
	return c
}

// Agent runs chat turns.
type Agent struct {
	model  chat.Completer
	tools  ToolCatalog
	memory memory.Store
	cfg    Config
}

// New creates an agent. A nil store disables memory.
func New(model chat.Completer, tools ToolCatalog, store memory.Store, cfg Config) *Agent {
	if store == nil {
		store = memory.NoopStore{}
	}
	return &Agent{model: model, tools: tools, memory: store, cfg: cfg.withDefaults()}
}

// RunTurn answers one user message in a session.
//
// Tool failures are handed back to the model as tool output and never end
// the turn. A model failure returns ErrModelUnavailable and a missed
// deadline ErrTurnTimeout; in both cases nothing is stored.
func (a *Agent) RunTurn(ctx context.Context, sessionID, userID, text string) (chat.Message, error) {
	turnCtx, cancel := context.WithTimeout(ctx, a.cfg.TurnTimeout)
	defer cancel()

	history := wellFormed(a.memory.Read(turnCtx, sessionID))

	conversation := make([]chat.Message, 0, len(history)+2)
	if a.cfg.SystemPrompt != "" {
		conversation = append(conversation, chat.SystemMessage(a.cfg.SystemPrompt))
	}
	conversation = append(conversation, history...)

	user := chat.UserMessage(text)
	conversation = append(conversation, user)
	added := []chat.Message{user}

	tools := a.tools.Definitions()
	for step := 0; ; step++ {
		offered := tools
		final := step >= a.cfg.MaxSteps
		if final {
			offered = nil
		}

		completion, err := a.model.Complete(turnCtx, conversation, offered)
		if err != nil {
			return chat.Message{}, a.abort(ctx, turnCtx, err)
		}

		reply := completion.Message
		reply.Role = chat.RoleAssistant
		reply.CreatedAt = time.Now().UTC()
		if final && len(reply.ToolCalls) > 0 {
			logger.Warnw("dropping tool calls past the step limit",
				"session", sessionID, "max_steps", a.cfg.MaxSteps, "calls", len(reply.ToolCalls))
			reply.ToolCalls = nil
		}
		for i := range reply.ToolCalls {
			if reply.ToolCalls[i].ID == "" {
				reply.ToolCalls[i].ID = "call_" + uuid.NewString()
			}
		}
		conversation = append(conversation, reply)
		added = append(added, reply)

		if len(reply.ToolCalls) == 0 {
			a.persist(ctx, sessionID, userID, added)
			return reply, nil
		}

		for _, call := range reply.ToolCalls {
			out, err := a.runTool(turnCtx, call)
			if err != nil {
				return chat.Message{}, a.abort(ctx, turnCtx, err)
			}
			conversation = append(conversation, out)
			added = append(added, out)
		}
	}
}

func (a *Agent) runTool(ctx context.Context, call chat.ToolCall) (chat.Message, error) {
	if call.ArgumentsError != "" {
		logger.Warnw("model sent undecodable tool arguments", "tool", call.Name, "call_id", call.ID, "error", call.ArgumentsError)
		return chat.ToolResultMessage(call, fmt.Sprintf("error: invalid arguments for %s: %s", call.Name, call.ArgumentsError)), nil
	}
	logger.Debugw("running tool", "tool", call.Name, "call_id", call.ID)
	result, err := a.tools.CallTool(ctx, call.Name, call.Arguments)
	if err != nil {
		return chat.Message{}, err
	}
	content := result.Text()
	if result.IsError {
		content = "error: " + content
	}
	return chat.ToolResultMessage(call, content), nil
}

// abort maps a failure inside the turn to the error reported to the caller.
func (a *Agent) abort(parent, turnCtx context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return parent.Err()
	case errors.Is(turnCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTurnTimeout, a.cfg.TurnTimeout)
	default:
		return fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
}

// persist stores the turn's messages even when the caller has gone away.
func (a *Agent) persist(ctx context.Context, sessionID, userID string, msgs []chat.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	a.memory.AppendMany(ctx, sessionID, userID, msgs)
}
