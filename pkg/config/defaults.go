// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"sort"
	"time"

	"dario.cat/mergo"
)

// Default constants for operational configuration.
const (
	defaultName = "mcpagent"

	defaultHandshakeTimeout = 10 * time.Second
	defaultRequestTimeout   = 30 * time.Second
	defaultRetryAttempts    = 3
	defaultRetryDelay       = 2 * time.Second
	defaultTimeoutThreshold = 3

	defaultKeyPrefix   = "mcpagent:"
	defaultMaxMessages = 50
	defaultMaxSessions = 10
	defaultMemoryTTL   = 24 * time.Hour

	defaultTurnTimeout = 120 * time.Second
	defaultMaxSteps    = 8

	// DefaultSeparator joins server and tool names.
	DefaultSeparator = "__"

	defaultLLMBaseURL = "https://api.openai.com/v1"
	defaultLLMModel   = "gpt-4o-mini"
	defaultLLMTimeout = 60 * time.Second

	defaultHTTPAddress   = "127.0.0.1:8080"
	defaultMCPServerPath = "/mcp"
)

// Default returns a fully populated configuration with no servers.
// This is the single source of truth for defaults.
func Default() *Config {
	return &Config{
		Name: defaultName,
		Connection: ConnectionConfig{
			HandshakeTimeout: Duration(defaultHandshakeTimeout),
			RequestTimeout:   Duration(defaultRequestTimeout),
			RetryAttempts:    defaultRetryAttempts,
			RetryDelay:       Duration(defaultRetryDelay),
			TimeoutThreshold: defaultTimeoutThreshold,
		},
		Memory: MemoryConfig{
			KeyPrefix:   defaultKeyPrefix,
			MaxMessages: defaultMaxMessages,
			MaxSessions: defaultMaxSessions,
			TTL:         Duration(defaultMemoryTTL),
		},
		Agent: AgentConfig{
			TurnTimeout: Duration(defaultTurnTimeout),
			MaxSteps:    defaultMaxSteps,
		},
		Catalog: CatalogConfig{
			Separator: DefaultSeparator,
		},
		LLM: LLMConfig{
			BaseURL: defaultLLMBaseURL,
			Model:   defaultLLMModel,
			Timeout: Duration(defaultLLMTimeout),
		},
		HTTP: HTTPConfig{
			Address: defaultHTTPAddress,
		},
		MCPServer: MCPServerConfig{
			Path: defaultMCPServerPath,
		},
		Telemetry: TelemetryConfig{
			ServiceName: defaultName,
		},
	}
}

// EnsureDefaults fills every zero-valued field with its default while
// preserving user-provided values.
func (c *Config) EnsureDefaults() {
	if c == nil {
		return
	}
	_ = mergo.Merge(c, Default())
	for name, sc := range c.Servers {
		sc.Name = name
		c.Servers[name] = sc
	}
}

func sortServers(servers []ServerConfig) {
	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })
}
