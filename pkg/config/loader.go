// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g.
// MCPAGENT_MEMORY_REDIS_ADDR for memory.redis_addr.
const EnvPrefix = "MCPAGENT"

// DefaultPath returns the XDG location of the configuration file.
func DefaultPath() (string, error) {
	return xdg.ConfigFile("mcpagent/config.yaml")
}

// DefaultDataFile returns the XDG data location for a file owned by the agent.
func DefaultDataFile(name string) (string, error) {
	return xdg.DataFile(filepath.Join("mcpagent", name))
}

// Load reads the configuration file at path, fills defaults and applies
// environment overrides. An empty path falls back to DefaultPath; a missing
// default file yields the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve default config path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is operator supplied
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !explicit:
		data = nil
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := ApplyEnv(cfg, NewEnvViper()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document and fills defaults. Unknown fields are
// rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	}
	cfg.EnsureDefaults()
	return cfg, nil
}

// NewEnvViper returns a viper instance reading MCPAGENT_* variables.
func NewEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

type envBinding struct {
	key   string
	apply func(c *Config, raw string) error
}

func stringBinding(key string, field func(*Config) *string) envBinding {
	return envBinding{key: key, apply: func(c *Config, raw string) error {
		*field(c) = raw
		return nil
	}}
}

func intBinding(key string, field func(*Config) *int) envBinding {
	return envBinding{key: key, apply: func(c *Config, raw string) error {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*field(c) = n
		return nil
	}}
}

func boolBinding(key string, field func(*Config) *bool) envBinding {
	return envBinding{key: key, apply: func(c *Config, raw string) error {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*field(c) = b
		return nil
	}}
}

func durationBinding(key string, field func(*Config) *Duration) envBinding {
	return envBinding{key: key, apply: func(c *Config, raw string) error {
		if err := field(c).UnmarshalText([]byte(raw)); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	}}
}

var envBindings = []envBinding{
	durationBinding("connection.handshake_timeout", func(c *Config) *Duration { return &c.Connection.HandshakeTimeout }),
	durationBinding("connection.request_timeout", func(c *Config) *Duration { return &c.Connection.RequestTimeout }),
	intBinding("connection.retry_attempts", func(c *Config) *int { return &c.Connection.RetryAttempts }),
	durationBinding("connection.retry_delay", func(c *Config) *Duration { return &c.Connection.RetryDelay }),
	intBinding("connection.timeout_threshold", func(c *Config) *int { return &c.Connection.TimeoutThreshold }),
	durationBinding("connection.keepalive_interval", func(c *Config) *Duration { return &c.Connection.KeepaliveInterval }),
	stringBinding("memory.redis_addr", func(c *Config) *string { return &c.Memory.RedisAddr }),
	stringBinding("memory.redis_username", func(c *Config) *string { return &c.Memory.RedisUsername }),
	stringBinding("memory.redis_password", func(c *Config) *string { return &c.Memory.RedisPassword }),
	intBinding("memory.redis_db", func(c *Config) *int { return &c.Memory.RedisDB }),
	stringBinding("memory.key_prefix", func(c *Config) *string { return &c.Memory.KeyPrefix }),
	intBinding("memory.max_messages", func(c *Config) *int { return &c.Memory.MaxMessages }),
	intBinding("memory.max_sessions", func(c *Config) *int { return &c.Memory.MaxSessions }),
	durationBinding("memory.ttl", func(c *Config) *Duration { return &c.Memory.TTL }),
	durationBinding("agent.turn_timeout", func(c *Config) *Duration { return &c.Agent.TurnTimeout }),
	intBinding("agent.max_steps", func(c *Config) *int { return &c.Agent.MaxSteps }),
	stringBinding("agent.system_prompt", func(c *Config) *string { return &c.Agent.SystemPrompt }),
	stringBinding("catalog.separator", func(c *Config) *string { return &c.Catalog.Separator }),
	stringBinding("llm.base_url", func(c *Config) *string { return &c.LLM.BaseURL }),
	stringBinding("llm.model", func(c *Config) *string { return &c.LLM.Model }),
	stringBinding("llm.api_key", func(c *Config) *string { return &c.LLM.APIKey }),
	durationBinding("llm.timeout", func(c *Config) *Duration { return &c.LLM.Timeout }),
	stringBinding("http.address", func(c *Config) *string { return &c.HTTP.Address }),
	intBinding("http.chat_rate_limit", func(c *Config) *int { return &c.HTTP.ChatRateLimit }),
	boolBinding("mcp_server.enabled", func(c *Config) *bool { return &c.MCPServer.Enabled }),
	stringBinding("mcp_server.path", func(c *Config) *string { return &c.MCPServer.Path }),
	stringBinding("storage.path", func(c *Config) *string { return &c.Storage.Path }),
	boolBinding("telemetry.metrics", func(c *Config) *bool { return &c.Telemetry.Metrics }),
	stringBinding("telemetry.otlp_endpoint", func(c *Config) *string { return &c.Telemetry.OTLPEndpoint }),
}

// EnvKeys lists the configuration keys that accept environment overrides.
func EnvKeys() []string {
	keys := make([]string, 0, len(envBindings))
	for _, b := range envBindings {
		keys = append(keys, b.key)
	}
	return keys
}

// ApplyEnv overrides cfg with every key set in v. Invalid values are
// reported together.
func ApplyEnv(cfg *Config, v *viper.Viper) error {
	var problems []string
	for _, b := range envBindings {
		if !v.IsSet(b.key) {
			continue
		}
		if err := b.apply(cfg, v.GetString(b.key)); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid environment overrides: %s", strings.Join(problems, "; "))
	}
	return nil
}
