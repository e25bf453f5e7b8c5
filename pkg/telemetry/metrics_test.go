// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/mock/gomock"

	"github.com/wanquanY/Plan-A-sub001/pkg/chat"
	"github.com/wanquanY/Plan-A-sub001/pkg/chat/mocks"
	"github.com/wanquanY/Plan-A-sub001/pkg/connection"
	"github.com/wanquanY/Plan-A-sub001/pkg/protocol"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp, nil)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			out[md.Name] = md.Data
		}
	}
	return out
}

// sumFor returns the int64 sum value of the data point carrying attr.
func sumFor(t *testing.T, data metricdata.Aggregation, attr attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", data)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
			total += dp.Value
		}
	}
	return total
}

type fakeTools struct {
	result *protocol.CallToolResult
	err    error
}

func (fakeTools) Definitions() []chat.ToolDefinition {
	return []chat.ToolDefinition{{Name: "echo"}}
}

func (f fakeTools) CallTool(context.Context, string, map[string]any) (*protocol.CallToolResult, error) {
	return f.result, f.err
}

func TestTools_RecordsOutcomes(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	ok := m.Tools(fakeTools{result: protocol.TextResult("fine")})
	assert.Len(t, ok.Definitions(), 1)
	_, err := ok.CallTool(ctx, "echo", nil)
	require.NoError(t, err)
	_, _ = ok.CallTool(ctx, "echo", nil)

	failing := m.Tools(fakeTools{result: protocol.ErrorResult("nope")})
	_, err = failing.CallTool(ctx, "echo", nil)
	require.NoError(t, err)

	cancelled := m.Tools(fakeTools{err: context.Canceled})
	_, err = cancelled.CallTool(ctx, "echo", nil)
	require.ErrorIs(t, err, context.Canceled)

	data := collect(t, reader)
	calls := data["mcpagent_tool_calls"]
	assert.Equal(t, int64(2), sumFor(t, calls, attribute.String("outcome", outcomeSuccess)))
	assert.Equal(t, int64(1), sumFor(t, calls, attribute.String("outcome", outcomeToolError)))
	assert.Equal(t, int64(1), sumFor(t, calls, attribute.String("outcome", outcomeError)))

	hist, isHist := data["mcpagent_tool_call_duration"].(metricdata.Histogram[float64])
	require.True(t, isHist)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(4), count)
}

func TestModel_RecordsCalls(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	ctrl := gomock.NewController(t)
	inner := mocks.NewMockCompleter(ctrl)

	gomock.InOrder(
		inner.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&chat.Completion{Message: chat.Message{Role: chat.RoleAssistant, Content: "hi"}, FinishReason: "stop"}, nil),
		inner.EXPECT().Complete(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("boom")),
	)

	model := m.Model(inner)
	got, err := model.Complete(context.Background(), []chat.Message{chat.UserMessage("x")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Message.Content)
	_, err = model.Complete(context.Background(), nil, nil)
	require.Error(t, err)

	calls := collect(t, reader)["mcpagent_model_calls"]
	assert.Equal(t, int64(1), sumFor(t, calls, attribute.String("outcome", outcomeSuccess)))
	assert.Equal(t, int64(1), sumFor(t, calls, attribute.String("outcome", outcomeError)))
}

func TestStateListener_TracksReadyServers(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)
	listen := m.StateListener()

	listen("a", connection.StateInitializing, connection.StateReady)
	listen("b", connection.StateInitializing, connection.StateReady)
	listen("a", connection.StateReady, connection.StateDegraded)
	listen("a", connection.StateDegraded, connection.StateReady)
	listen("b", connection.StateReady, connection.StateClosed)

	data := collect(t, reader)
	ready, ok := data["mcpagent_ready_servers"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, ready.DataPoints, 1)
	assert.Equal(t, int64(1), ready.DataPoints[0].Value)

	assert.Equal(t, int64(3), sumFor(t, data["mcpagent_connection_transitions"], attribute.String("server", "a")))
}

func TestHTTPMiddleware_UsesRoutePattern(t *testing.T) {
	t.Parallel()
	m, reader := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.HTTPMiddleware)
	r.Get("/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	data := collect(t, reader)
	requests := data["mcpagent_http_requests"]
	assert.Equal(t, int64(3), sumFor(t, requests, attribute.String("route", "/sessions/{id}")))
	assert.Equal(t, int64(3), sumFor(t, requests, attribute.String("status_code", "418")))

	active, ok := data["mcpagent_http_active_requests"].(metricdata.Sum[int64])
	require.True(t, ok)
	for _, dp := range active.DataPoints {
		assert.Zero(t, dp.Value)
	}
}

func TestNewMetrics_NilProviders(t *testing.T) {
	t.Parallel()
	m, err := NewMetrics(nil, nil)
	require.NoError(t, err)
	_, err = m.Tools(fakeTools{result: protocol.TextResult("x")}).CallTool(context.Background(), "echo", nil)
	assert.NoError(t, err)
}
