// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Implementation identifies a client or server by name and version.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsCapability advertises tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities is the capability set a server returns from initialize.
type ServerCapabilities struct {
	Tools        *ToolsCapability `json:"tools,omitempty"`
	Logging      map[string]any   `json:"logging,omitempty"`
	Experimental map[string]any   `json:"experimental,omitempty"`
}

// InitializeParams is sent by the client to open a session.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// InitializeResult is the server's answer to initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// Tool describes one callable tool and the JSON schema of its arguments.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ListToolsResult is the result of list_tools.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams names the tool to invoke and its arguments.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Content types carried in a tool result.
const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
)

// Content is one item of tool output.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// CallToolResult is the result of call_tool. Tool failures are reported with
// IsError set rather than as a JSON-RPC error.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// ToolHandler executes a tool with already-validated arguments.
type ToolHandler func(ctx context.Context, arguments map[string]any) (*CallToolResult, error)

// TextResult returns a successful result holding a single text item.
func TextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: ContentTypeText, Text: text}}}
}

// ErrorResult returns a failed result with a formatted message.
func ErrorResult(format string, args ...any) *CallToolResult {
	return &CallToolResult{
		Content: []Content{{Type: ContentTypeText, Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

// Text joins the text items of the result, one per line. Non-text items are
// summarised by type.
func (r *CallToolResult) Text() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		switch c.Type {
		case ContentTypeText:
			parts = append(parts, c.Text)
		default:
			parts = append(parts, fmt.Sprintf("[%s %s]", c.Type, c.MimeType))
		}
	}
	return strings.Join(parts, "\n")
}

// ToMap converts a typed payload to the open mapping used on the wire.
// A nil input yields a nil map.
func ToMap(v any) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return t, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	return m, nil
}

// Bind decodes an open mapping into the typed payload pointed to by dst.
func Bind(src map[string]any, dst any) error {
	if src == nil {
		src = map[string]any{}
	}
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
