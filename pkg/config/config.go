// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config provides the configuration model for the agent gateway:
// the tool servers to connect to, connection tuning, session memory, the
// agent loop, the language model endpoint and the HTTP surfaces.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

// Duration is a wrapper around time.Duration that marshals/unmarshals as a duration string.
// Accepts Go duration strings such as "30s", "5m" or "1h30m".
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(dur)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration document.
type Config struct {
	// Name identifies this agent in logs and in the initialize handshake.
	Name string `json:"name" yaml:"name"`

	// Servers maps server name to its configuration. The map key is the
	// server name and becomes the tool namespace prefix.
	Servers map[string]ServerConfig `json:"servers,omitempty" yaml:"servers,omitempty"`

	Connection ConnectionConfig `json:"connection" yaml:"connection"`
	Memory     MemoryConfig     `json:"memory" yaml:"memory"`
	Agent      AgentConfig      `json:"agent" yaml:"agent"`
	Catalog    CatalogConfig    `json:"catalog" yaml:"catalog"`
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	HTTP       HTTPConfig       `json:"http" yaml:"http"`
	MCPServer  MCPServerConfig  `json:"mcp_server" yaml:"mcp_server"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Telemetry  TelemetryConfig  `json:"telemetry" yaml:"telemetry"`
}

// ServerConfig describes one tool server.
type ServerConfig struct {
	// Name is filled from the map key when loading a file.
	Name string `json:"name" yaml:"-"`

	// Enabled defaults to true when omitted.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Transport selects stdio (spawn Command) or stream (dial Address).
	Transport transport.Kind `json:"transport" yaml:"transport"`

	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// Address is host:port for tcp, or a socket path when Network is unix.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	Network string `json:"network,omitempty" yaml:"network,omitempty"`

	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsEnabled reports whether the server should be connected.
func (s ServerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// TransportConfig converts the server entry to a transport configuration.
func (s ServerConfig) TransportConfig() transport.Config {
	return transport.Config{
		Kind:    s.Transport,
		Command: s.Command,
		Args:    s.Args,
		Env:     s.Env,
		Network: s.Network,
		Address: s.Address,
	}
}

// ConnectionConfig tunes every server connection.
type ConnectionConfig struct {
	HandshakeTimeout  Duration `json:"handshake_timeout" yaml:"handshake_timeout"`
	RequestTimeout    Duration `json:"request_timeout" yaml:"request_timeout"`
	RetryAttempts     int      `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay        Duration `json:"retry_delay" yaml:"retry_delay"`
	TimeoutThreshold  int      `json:"timeout_threshold" yaml:"timeout_threshold"`
	KeepaliveInterval Duration `json:"keepalive_interval,omitempty" yaml:"keepalive_interval,omitempty"`
}

// MemoryConfig configures the session memory store.
type MemoryConfig struct {
	// RedisAddr is host:port of the Redis server. Empty disables memory.
	RedisAddr     string   `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisUsername string   `json:"redis_username,omitempty" yaml:"redis_username,omitempty"`
	RedisPassword string   `json:"-" yaml:"redis_password,omitempty"`
	RedisDB       int      `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
	KeyPrefix     string   `json:"key_prefix" yaml:"key_prefix"`
	MaxMessages   int      `json:"max_messages" yaml:"max_messages"`
	MaxSessions   int      `json:"max_sessions" yaml:"max_sessions"`
	TTL           Duration `json:"ttl" yaml:"ttl"`
}

// AgentConfig configures the orchestration loop.
type AgentConfig struct {
	TurnTimeout  Duration `json:"turn_timeout" yaml:"turn_timeout"`
	MaxSteps     int      `json:"max_steps" yaml:"max_steps"`
	SystemPrompt string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// CatalogConfig configures tool aggregation.
type CatalogConfig struct {
	// Separator joins server name and tool name in qualified names.
	Separator string `json:"separator" yaml:"separator"`
	// DisableBuiltins hides the built-in tools.
	DisableBuiltins bool `json:"disable_builtins,omitempty" yaml:"disable_builtins,omitempty"`
}

// LLMConfig points at an OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	BaseURL string   `json:"base_url" yaml:"base_url"`
	Model   string   `json:"model" yaml:"model"`
	APIKey  string   `json:"-" yaml:"api_key,omitempty"`
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// HTTPConfig configures the REST API listener.
type HTTPConfig struct {
	Address string `json:"address" yaml:"address"`
	// ChatRateLimit is the number of chat turns a user may start per minute.
	// Zero disables the limit.
	ChatRateLimit int `json:"chat_rate_limit,omitempty" yaml:"chat_rate_limit,omitempty"`
}

// MCPServerConfig configures the MCP endpoint that re-exports the catalog.
type MCPServerConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Path is mounted on the HTTP listener.
	Path string `json:"path" yaml:"path"`
}

// StorageConfig configures the server-record database.
type StorageConfig struct {
	// Path of the SQLite database. Empty disables the record store.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// Metrics enables the Prometheus /metrics endpoint.
	Metrics bool `json:"metrics" yaml:"metrics"`
	// OTLPEndpoint, when set, exports traces and metrics over OTLP/HTTP.
	OTLPEndpoint string `json:"otlp_endpoint,omitempty" yaml:"otlp_endpoint,omitempty"`
	Insecure     bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	ServiceName  string `json:"service_name" yaml:"service_name"`
}

// ServerList returns the servers sorted by name, with Name populated.
func (c *Config) ServerList() []ServerConfig {
	out := make([]ServerConfig, 0, len(c.Servers))
	for name, sc := range c.Servers {
		sc.Name = name
		out = append(out, sc)
	}
	sortServers(out)
	return out
}
