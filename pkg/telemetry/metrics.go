// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/wanquanY/Plan-A-sub001/pkg/chat"
	"github.com/wanquanY/Plan-A-sub001/pkg/connection"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
)

// instrumentationName is the name of this instrumentation package.
const instrumentationName = "github.com/wanquanY/Plan-A-sub001/pkg/telemetry"

// Outcome attribute values.
const (
	outcomeSuccess   = "success"
	outcomeToolError = "tool_error"
	outcomeError     = "error"
)

// DurationBuckets are the histogram boundaries, in seconds, for tool, model
// and HTTP durations.
var DurationBuckets = []float64{
	0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30, 60, 120, 300,
}

// ToolCatalog is the subset of the catalog the agent uses.
type ToolCatalog interface {
	Definitions() []chat.ToolDefinition
	CallTool(ctx context.Context, name string, args map[string]any) (*protocol.CallToolResult, error)
}

// Metrics owns the instruments shared by the gateway components.
type Metrics struct {
	tracer trace.Tracer

	toolCalls     metric.Int64Counter
	toolDuration  metric.Float64Histogram
	modelCalls    metric.Int64Counter
	modelDuration metric.Float64Histogram
	transitions   metric.Int64Counter
	readyServers  metric.Int64UpDownCounter

	httpRequests        metric.Int64Counter
	httpRequestDuration metric.Float64Histogram
	httpActiveRequests  metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on the given providers. Nil providers
// are replaced by noop ones.
func NewMetrics(mp metric.MeterProvider, tp trace.TracerProvider) (*Metrics, error) {
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	meter := mp.Meter(instrumentationName)
	m := &Metrics{tracer: tp.Tracer(instrumentationName)}

	var err error
	if m.toolCalls, err = meter.Int64Counter("mcpagent_tool_calls",
		metric.WithDescription("Total number of tool calls")); err != nil {
		return nil, fmt.Errorf("creating tool call counter: %w", err)
	}
	if m.toolDuration, err = meter.Float64Histogram("mcpagent_tool_call_duration",
		metric.WithDescription("Duration of tool calls in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DurationBuckets...)); err != nil {
		return nil, fmt.Errorf("creating tool duration histogram: %w", err)
	}
	if m.modelCalls, err = meter.Int64Counter("mcpagent_model_calls",
		metric.WithDescription("Total number of model completions")); err != nil {
		return nil, fmt.Errorf("creating model call counter: %w", err)
	}
	if m.modelDuration, err = meter.Float64Histogram("mcpagent_model_call_duration",
		metric.WithDescription("Duration of model completions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DurationBuckets...)); err != nil {
		return nil, fmt.Errorf("creating model duration histogram: %w", err)
	}
	if m.transitions, err = meter.Int64Counter("mcpagent_connection_transitions",
		metric.WithDescription("Connection state transitions")); err != nil {
		return nil, fmt.Errorf("creating transition counter: %w", err)
	}
	if m.readyServers, err = meter.Int64UpDownCounter("mcpagent_ready_servers",
		metric.WithDescription("Number of tool servers in the ready state")); err != nil {
		return nil, fmt.Errorf("creating ready servers gauge: %w", err)
	}
	if m.httpRequests, err = meter.Int64Counter("mcpagent_http_requests",
		metric.WithDescription("Total number of HTTP requests")); err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}
	if m.httpRequestDuration, err = meter.Float64Histogram("mcpagent_http_request_duration",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DurationBuckets...)); err != nil {
		return nil, fmt.Errorf("creating request duration histogram: %w", err)
	}
	if m.httpActiveRequests, err = meter.Int64UpDownCounter("mcpagent_http_active_requests",
		metric.WithDescription("Number of in-flight HTTP requests")); err != nil {
		return nil, fmt.Errorf("creating active request gauge: %w", err)
	}
	return m, nil
}

// StateListener returns a connection listener recording transitions and
// the number of ready servers.
func (m *Metrics) StateListener() connection.StateListener {
	return func(name string, from, to connection.State) {
		ctx := context.Background()
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("server", name),
			attribute.String("from", string(from)),
			attribute.String("to", string(to)),
		))
		switch {
		case to == connection.StateReady && from != connection.StateReady:
			m.readyServers.Add(ctx, 1)
		case from == connection.StateReady && to != connection.StateReady:
			m.readyServers.Add(ctx, -1)
		}
	}
}

// Tools wraps a catalog so that every tool call is counted, timed and traced.
func (m *Metrics) Tools(inner ToolCatalog) ToolCatalog {
	return &instrumentedTools{inner: inner, m: m}
}

type instrumentedTools struct {
	inner ToolCatalog
	m     *Metrics
}

func (t *instrumentedTools) Definitions() []chat.ToolDefinition {
	return t.inner.Definitions()
}

func (t *instrumentedTools) CallTool(ctx context.Context, name string, args map[string]any) (*protocol.CallToolResult, error) {
	ctx, span := t.m.tracer.Start(ctx, "tools/call "+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("mcp.tool.name", name)))
	defer span.End()

	start := time.Now()
	result, err := t.inner.CallTool(ctx, name, args)
	elapsed := time.Since(start)

	outcome := outcomeSuccess
	switch {
	case err != nil:
		outcome = outcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case result != nil && result.IsError:
		outcome = outcomeToolError
		span.SetStatus(codes.Error, "tool returned an error result")
	default:
		span.SetStatus(codes.Ok, "")
	}

	attrs := metric.WithAttributes(
		attribute.String("tool", name),
		attribute.String("outcome", outcome),
	)
	t.m.toolCalls.Add(ctx, 1, attrs)
	t.m.toolDuration.Record(ctx, elapsed.Seconds(), attrs)
	return result, err
}

// Model wraps a completer so that every completion is counted, timed and traced.
func (m *Metrics) Model(inner chat.Completer) chat.Completer {
	return &instrumentedModel{inner: inner, m: m}
}

type instrumentedModel struct {
	inner chat.Completer
	m     *Metrics
}

func (c *instrumentedModel) Complete(
	ctx context.Context, messages []chat.Message, tools []chat.ToolDefinition,
) (*chat.Completion, error) {
	ctx, span := c.m.tracer.Start(ctx, "chat.completion",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("chat.messages", len(messages)),
			attribute.Int("chat.tools", len(tools)),
		))
	defer span.End()

	start := time.Now()
	completion, err := c.inner.Complete(ctx, messages, tools)
	elapsed := time.Since(start)

	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.String("chat.finish_reason", completion.FinishReason),
			attribute.Int("chat.tool_calls", len(completion.Message.ToolCalls)),
		)
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	c.m.modelCalls.Add(ctx, 1, attrs)
	c.m.modelDuration.Record(ctx, elapsed.Seconds(), attrs)
	return completion, err
}
