// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-core/env/mocks"
	"github.com/stacklok/toolhive-core/logging"
)

func TestUnstructuredLogsWithEnv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		envValue string
		expected bool
	}{
		{"unset", "", true},
		{"explicit true", "true", true},
		{"explicit false", "false", false},
		{"garbage", "sometimes", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			mockEnv := mocks.NewMockReader(ctrl)
			mockEnv.EXPECT().Getenv(unstructuredLogsEnv).Return(tt.envValue)

			assert.Equal(t, tt.expected, unstructuredLogsWithEnv(mockEnv))
		})
	}
}

func captureSingleton(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := singleton.Load()
	singleton.Store(logging.New(logging.WithOutput(&buf), logging.WithLevel(level)))
	t.Cleanup(func() { singleton.Store(prev) })
	return &buf
}

func TestHelpersWriteToSingleton(t *testing.T) { //nolint:paralleltest // mutates singleton
	tests := []struct {
		name     string
		logFn    func()
		contains string
	}{
		{"Debugf", func() { Debugf("debug %d", 1) }, "debug 1"},
		{"Debugw", func() { Debugw("debug kv", "server", "search") }, "search"},
		{"Infof", func() { Infof("info %s", "formatted") }, "info formatted"},
		{"Infow", func() { Infow("info kv", "key", "val") }, "info kv"},
		{"Warnf", func() { Warnf("warn %s", "formatted") }, "warn formatted"},
		{"Warnw", func() { Warnw("warn kv", "key", "val") }, "warn kv"},
		{"Errorf", func() { Errorf("error %s", "formatted") }, "error formatted"},
		{"Errorw", func() { Errorw("error kv", "key", "val") }, "error kv"},
	}

	for _, tc := range tests { //nolint:paralleltest // mutates singleton
		t.Run(tc.name, func(t *testing.T) {
			buf := captureSingleton(t, slog.LevelDebug)
			tc.logFn()
			assert.Contains(t, buf.String(), tc.contains)
		})
	}
}

func TestDebugSuppressedAtInfo(t *testing.T) { //nolint:paralleltest // mutates singleton
	buf := captureSingleton(t, slog.LevelInfo)
	Debugw("hidden")
	Infow("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestForAddsComponent(t *testing.T) { //nolint:paralleltest // mutates singleton
	buf := captureSingleton(t, slog.LevelInfo)
	For("catalog").Info("rebuilt")
	assert.Contains(t, buf.String(), "catalog")
	assert.Contains(t, buf.String(), "rebuilt")
}

func TestInitializeWithEnv(t *testing.T) { //nolint:paralleltest // mutates singleton
	prev := singleton.Load()
	t.Cleanup(func() { singleton.Store(prev) })

	ctrl := gomock.NewController(t)
	mockEnv := mocks.NewMockReader(ctrl)
	mockEnv.EXPECT().Getenv(unstructuredLogsEnv).Return("false")

	var buf bytes.Buffer
	InitializeWithEnv(mockEnv, Options{Debug: true, Output: &buf})

	Debugw("structured", "answer", 42)

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &record), "structured output must be JSON")
	assert.Contains(t, line, "structured")
	assert.EqualValues(t, 42, record["answer"])
}

func TestGetAndSet(t *testing.T) { //nolint:paralleltest // mutates singleton
	prev := singleton.Load()
	t.Cleanup(func() { singleton.Store(prev) })

	var buf bytes.Buffer
	l := logging.New(logging.WithOutput(&buf))
	Set(l)
	require.Same(t, l, Get())
	Get().Info("via get")
	assert.Contains(t, buf.String(), "via get")
}
