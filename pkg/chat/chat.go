// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package chat defines the conversation types shared by session memory, the
// agent loop and the model client.
package chat

import (
	"context"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleSystem is an instruction to the model.
	RoleSystem Role = "system"
	// RoleUser is a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"
	// RoleTool carries the result of a tool call back to the model.
	RoleTool Role = "tool"
)

// Message is one entry of a conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitzero"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	// ArgumentsError is set when the model's arguments could not be
	// decoded. Such a call is answered with an error and never executed.
	ArgumentsError string `json:"arguments_error,omitempty"`
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Completion is the model's answer to one request.
type Completion struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Completer produces the next assistant message for a conversation.
//
//go:generate mockgen -destination=mocks/mock_completer.go -package=mocks -source=chat.go Completer
type Completer interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error)
}

// UserMessage builds a user message stamped with the current time.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// ToolResultMessage builds the message that returns a tool call's output.
func ToolResultMessage(call ToolCall, content string) Message {
	return Message{
		Role:       RoleTool,
		Name:       call.Name,
		Content:    content,
		ToolCallID: call.ID,
		CreatedAt:  time.Now().UTC(),
	}
}
