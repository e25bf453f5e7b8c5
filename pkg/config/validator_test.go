// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

func TestValidatorValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name: "stdio without command",
			mutate: func(c *Config) {
				c.Servers = map[string]ServerConfig{"a": {Name: "a", Transport: transport.KindStdio}}
			},
			wantErr: "command is required",
		},
		{
			name: "stream without address",
			mutate: func(c *Config) {
				c.Servers = map[string]ServerConfig{"a": {Name: "a", Transport: transport.KindStream}}
			},
			wantErr: "address is required",
		},
		{
			name: "unknown transport",
			mutate: func(c *Config) {
				c.Servers = map[string]ServerConfig{"a": {Name: "a", Transport: "carrier-pigeon"}}
			},
			wantErr: "transport must be one of",
		},
		{
			name: "server name contains separator",
			mutate: func(c *Config) {
				c.Servers = map[string]ServerConfig{"web__search": {Transport: transport.KindStdio, Command: "x"}}
			},
			wantErr: "must not contain the catalog separator",
		},
		{
			name:    "zero max messages",
			mutate:  func(c *Config) { c.Memory.MaxMessages = 0 },
			wantErr: "memory.max_messages",
		},
		{
			name:    "negative keepalive",
			mutate:  func(c *Config) { c.Connection.KeepaliveInterval = -1 },
			wantErr: "keepalive_interval",
		},
		{
			name:    "relative llm url",
			mutate:  func(c *Config) { c.LLM.BaseURL = "/v1" },
			wantErr: "llm.base_url",
		},
		{
			name:    "empty separator",
			mutate:  func(c *Config) { c.Catalog.Separator = "" },
			wantErr: "catalog.separator",
		},
		{
			name:    "negative chat rate limit",
			mutate:  func(c *Config) { c.HTTP.ChatRateLimit = -5 },
			wantErr: "http.chat_rate_limit",
		},
		{
			name: "mcp path without slash",
			mutate: func(c *Config) {
				c.MCPServer.Enabled = true
				c.MCPServer.Path = "mcp"
			},
			wantErr: "mcp_server.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := NewValidator().Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidatorCollectsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Memory.MaxSessions = 0
	cfg.Agent.MaxSteps = 0
	err := NewValidator().Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory.max_sessions")
	assert.Contains(t, err.Error(), "agent.max_steps")
}

func TestValidateNil(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, NewValidator().Validate(nil), ErrInvalidConfig)
}
