// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package llm is a chat-completion client for OpenAI-compatible APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wanquanY/Plan-A-sub001/pkg/chat"
	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
)

// maxResponseSize bounds the body read from the API.
const maxResponseSize = 8 << 20

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API returned %d: %s", e.StatusCode, e.Message)
}

// Client calls the /chat/completions endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

var _ chat.Completer = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client from configuration.
func New(cfg config.LLMConfig, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout.Std()},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiRequest struct {
	Model    string       `json:"model"`
	Messages []apiMessage `json:"messages"`
	Tools    []apiTool    `json:"tools,omitempty"`
}

type apiMessage struct {
	Role       string        `json:"role"`
	Content    string        `json:"content"`
	Name       string        `json:"name,omitempty"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type apiTool struct {
	Type     string      `json:"type"`
	Function apiFunction `json:"function"`
}

type apiFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

type apiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function apiFunctionCall `json:"function"`
}

type apiFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiResponse struct {
	Choices []struct {
		Message      apiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends the conversation and returns the model's next message.
func (c *Client) Complete(ctx context.Context, messages []chat.Message, tools []chat.ToolDefinition) (*chat.Completion, error) {
	body, err := c.buildRequest(messages, tools)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call model API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("model response has no choices")
	}
	choice := parsed.Choices[0]

	msg := fromAPIMessage(choice.Message)
	logger.Debugw("model completion", "model", c.model, "finish_reason", choice.FinishReason, "tool_calls", len(msg.ToolCalls))
	return &chat.Completion{Message: msg, FinishReason: choice.FinishReason}, nil
}

func (c *Client) buildRequest(messages []chat.Message, tools []chat.ToolDefinition) ([]byte, error) {
	req := apiRequest{
		Model:    c.model,
		Messages: make([]apiMessage, 0, len(messages)),
	}
	for _, m := range messages {
		am, err := toAPIMessage(m)
		if err != nil {
			return nil, err
		}
		req.Messages = append(req.Messages, am)
	}
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object"}
		}
		req.Tools = append(req.Tools, apiTool{
			Type:     "function",
			Function: apiFunction{Name: t.Name, Description: t.Description, Parameters: params},
		})
	}
	return json.Marshal(req)
}

func toAPIMessage(m chat.Message) (apiMessage, error) {
	am := apiMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	if m.Role != chat.RoleTool {
		am.Name = m.Name
	}
	for _, call := range m.ToolCalls {
		args := []byte("{}")
		if len(call.Arguments) > 0 {
			var err error
			if args, err = json.Marshal(call.Arguments); err != nil {
				return apiMessage{}, fmt.Errorf("encode arguments of %s: %w", call.Name, err)
			}
		}
		am.ToolCalls = append(am.ToolCalls, apiToolCall{
			ID:       call.ID,
			Type:     "function",
			Function: apiFunctionCall{Name: call.Name, Arguments: string(args)},
		})
	}
	return am, nil
}

func fromAPIMessage(am apiMessage) chat.Message {
	msg := chat.Message{Role: chat.Role(am.Role), Content: am.Content}
	for _, call := range am.ToolCalls {
		tc := chat.ToolCall{ID: call.ID, Name: call.Function.Name}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &tc.Arguments); err != nil {
				tc.Arguments = nil
				tc.ArgumentsError = err.Error()
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, tc)
	}
	return msg
}

// errorMessage extracts the provider's error text from a response body.
func errorMessage(body []byte, fallback string) string {
	for _, path := range []string{"error.message", "error", "message", "detail"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		return text
	}
	return fallback
}
