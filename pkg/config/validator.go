// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/wanquanY/Plan-A-sub001/pkg/transport"
)

// ErrInvalidConfig indicates invalid configuration was provided.
// Wrapping errors list every problem found.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validator checks a configuration for consistency.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate reports every problem in cfg at once.
func (v *Validator) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", ErrInvalidConfig)
	}

	var problems []string
	add := func(err error) {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}

	add(v.validateCatalog(cfg.Catalog))
	for _, sc := range cfg.ServerList() {
		add(v.ValidateServer(sc, cfg.Catalog.Separator))
	}
	add(v.validateConnection(cfg.Connection))
	add(v.validateMemory(cfg.Memory))
	add(v.validateAgent(cfg.Agent))
	add(v.validateLLM(cfg.LLM))
	add(v.validateHTTP(cfg.HTTP))
	add(v.validateMCPServer(cfg.MCPServer))

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(problems, "\n  - "))
	}
	return nil
}

// ValidateServer checks a single server entry. separator is the catalog
// separator, which must not appear in server names.
func (*Validator) ValidateServer(sc ServerConfig, separator string) error {
	if sc.Name == "" {
		return errors.New("server name is required")
	}
	if separator != "" && strings.Contains(sc.Name, separator) {
		return fmt.Errorf("servers.%s: name must not contain the catalog separator %q", sc.Name, separator)
	}
	switch sc.Transport {
	case transport.KindStdio:
		if sc.Command == "" {
			return fmt.Errorf("servers.%s: command is required for stdio transport", sc.Name)
		}
		if sc.Address != "" {
			return fmt.Errorf("servers.%s: address is not used by stdio transport", sc.Name)
		}
	case transport.KindStream:
		if sc.Address == "" {
			return fmt.Errorf("servers.%s: address is required for stream transport", sc.Name)
		}
		switch sc.Network {
		case "", "tcp", "tcp4", "tcp6", "unix":
		default:
			return fmt.Errorf("servers.%s: unsupported network %q", sc.Name, sc.Network)
		}
	case "":
		return fmt.Errorf("servers.%s: transport is required", sc.Name)
	default:
		return fmt.Errorf("servers.%s: transport must be one of: %s, %s", sc.Name, transport.KindStdio, transport.KindStream)
	}
	return nil
}

func (*Validator) validateCatalog(c CatalogConfig) error {
	if c.Separator == "" {
		return errors.New("catalog.separator must not be empty")
	}
	if strings.ContainsAny(c.Separator, " \t\n") {
		return errors.New("catalog.separator must not contain whitespace")
	}
	return nil
}

func (*Validator) validateConnection(c ConnectionConfig) error {
	switch {
	case c.HandshakeTimeout <= 0:
		return errors.New("connection.handshake_timeout must be positive")
	case c.RequestTimeout <= 0:
		return errors.New("connection.request_timeout must be positive")
	case c.RetryAttempts < 1:
		return errors.New("connection.retry_attempts must be at least 1")
	case c.RetryDelay < 0:
		return errors.New("connection.retry_delay must not be negative")
	case c.TimeoutThreshold < 1:
		return errors.New("connection.timeout_threshold must be at least 1")
	case c.KeepaliveInterval < 0:
		return errors.New("connection.keepalive_interval must not be negative")
	}
	return nil
}

func (*Validator) validateMemory(c MemoryConfig) error {
	switch {
	case c.MaxMessages < 1:
		return errors.New("memory.max_messages must be at least 1")
	case c.MaxSessions < 1:
		return errors.New("memory.max_sessions must be at least 1")
	case c.TTL <= 0:
		return errors.New("memory.ttl must be positive")
	case c.RedisDB < 0:
		return errors.New("memory.redis_db must not be negative")
	}
	return nil
}

func (*Validator) validateAgent(c AgentConfig) error {
	if c.TurnTimeout <= 0 {
		return errors.New("agent.turn_timeout must be positive")
	}
	if c.MaxSteps < 1 {
		return errors.New("agent.max_steps must be at least 1")
	}
	return nil
}

func (*Validator) validateLLM(c LLMConfig) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("llm.base_url %q must be an absolute URL", c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("llm.base_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.Model == "" {
		return errors.New("llm.model is required")
	}
	return nil
}

func (*Validator) validateHTTP(c HTTPConfig) error {
	if c.Address == "" {
		return errors.New("http.address is required")
	}
	if c.ChatRateLimit < 0 {
		return errors.New("http.chat_rate_limit must not be negative")
	}
	return nil
}

func (*Validator) validateMCPServer(c MCPServerConfig) error {
	if c.Enabled && !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("mcp_server.path %q must start with /", c.Path)
	}
	return nil
}
