// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package builtin provides the tools the agent offers without any tool
// server.
package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"
	// Zone data for current_time on hosts without a zoneinfo database.
	_ "time/tzdata"

	"github.com/google/uuid"

	"github.com/wanquanY/Plan-A-sub001/pkg/catalog"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
)

const (
	// CurrentTimeName is the name of the clock tool.
	CurrentTimeName = "current_time"
	// GenerateUUIDName is the name of the UUID tool.
	GenerateUUIDName = "generate_uuid"

	maxUUIDs = 20
)

// Clock returns the current time. Tests replace it.
type Clock func() time.Time

// Tools returns every built-in tool using the system clock.
func Tools() []catalog.BuiltinTool {
	return ToolsWithClock(time.Now)
}

// ToolsWithClock returns every built-in tool reading time from now.
func ToolsWithClock(now Clock) []catalog.BuiltinTool {
	return []catalog.BuiltinTool{
		CurrentTime(now),
		GenerateUUID(),
	}
}

// CurrentTime reports the current time, optionally in an IANA time zone.
func CurrentTime(now Clock) catalog.BuiltinTool {
	return catalog.BuiltinTool{
		Tool: protocol.Tool{
			Name:        CurrentTimeName,
			Description: "Returns the current date and time in RFC 3339 format.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"timezone": map[string]any{
						"type":        "string",
						"description": "IANA time zone name such as Europe/Berlin. Defaults to UTC.",
					},
				},
				"additionalProperties": false,
			},
		},
		Handler: func(_ context.Context, args map[string]any) (*protocol.CallToolResult, error) {
			var params struct {
				Timezone string `json:"timezone"`
			}
			if err := protocol.Bind(args, &params); err != nil {
				return nil, err
			}
			loc := time.UTC
			if params.Timezone != "" {
				l, err := time.LoadLocation(params.Timezone)
				if err != nil {
					return protocol.ErrorResult("unknown time zone %q", params.Timezone), nil
				}
				loc = l
			}
			return protocol.TextResult(now().In(loc).Format(time.RFC3339)), nil
		},
	}
}

// GenerateUUID returns random version 4 UUIDs.
func GenerateUUID() catalog.BuiltinTool {
	return catalog.BuiltinTool{
		Tool: protocol.Tool{
			Name:        GenerateUUIDName,
			Description: "Generates random UUIDs, one per line.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"count": map[string]any{
						"type":    "integer",
						"minimum": 1,
						"maximum": maxUUIDs,
					},
				},
				"additionalProperties": false,
			},
		},
		Handler: func(_ context.Context, args map[string]any) (*protocol.CallToolResult, error) {
			var params struct {
				Count int `json:"count"`
			}
			if err := protocol.Bind(args, &params); err != nil {
				return nil, err
			}
			if params.Count == 0 {
				params.Count = 1
			}
			if params.Count < 0 || params.Count > maxUUIDs {
				return protocol.ErrorResult("count must be between 1 and %d", maxUUIDs), nil
			}
			ids := make([]string, 0, params.Count)
			for range params.Count {
				ids = append(ids, uuid.NewString())
			}
			return protocol.TextResult(strings.Join(ids, "\n")), nil
		},
	}
}

// Register adds every built-in tool to agg.
func Register(agg *catalog.Aggregator) error {
	if err := agg.Register(Tools()...); err != nil {
		return fmt.Errorf("register built-in tools: %w", err)
	}
	return nil
}
