// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger holds the process-wide slog logger used by the agent
// gateway.
//
// The logger is built by toolhive-core/logging. Packages call the
// package-level helpers (Infow, Debugw, ...) or obtain a component scoped
// *slog.Logger with [For] for injection.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-core/env"
	"github.com/stacklok/toolhive-core/logging"
)

// unstructuredLogsEnv switches between text and JSON output.
const unstructuredLogsEnv = "UNSTRUCTURED_LOGS"

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(logging.New())
}

func get() *slog.Logger {
	return singleton.Load()
}

// Get returns the underlying *slog.Logger.
func Get() *slog.Logger {
	return get()
}

// For returns a logger tagged with a component attribute.
func For(component string) *slog.Logger {
	return get().With("component", component)
}

// Set replaces the singleton logger. Tests use it to capture output.
func Set(l *slog.Logger) {
	singleton.Store(l)
}

// Options control Initialize. The zero value logs at info level to stderr,
// in the format selected by UNSTRUCTURED_LOGS.
type Options struct {
	// Debug lowers the level to debug. It is also enabled by the viper
	// "debug" key, which the CLI binds to --debug.
	Debug bool
	// Output defaults to stderr.
	Output io.Writer
}

// Initialize builds the singleton from the process environment.
func Initialize(opts Options) {
	InitializeWithEnv(&env.OSReader{}, opts)
}

// InitializeWithEnv builds the singleton with an injected environment reader.
func InitializeWithEnv(envReader env.Reader, opts Options) {
	var logOpts []logging.Option

	if unstructuredLogsWithEnv(envReader) {
		logOpts = append(logOpts, logging.WithFormat(logging.FormatText))
	}
	if opts.Debug || viper.GetBool("debug") {
		logOpts = append(logOpts, logging.WithLevel(slog.LevelDebug))
	}
	if opts.Output != nil {
		logOpts = append(logOpts, logging.WithOutput(opts.Output))
	}

	singleton.Store(logging.New(logOpts...))
}

func unstructuredLogsWithEnv(envReader env.Reader) bool {
	unstructured, err := strconv.ParseBool(envReader.Getenv(unstructuredLogsEnv))
	if err != nil {
		// unset or unparsable: keep human readable output
		return true
	}
	return unstructured
}

// Debugf logs a formatted message at debug level.
func Debugf(msg string, args ...any) {
	get().Debug(fmt.Sprintf(msg, args...))
}

// Debugw logs a message at debug level with key-value pairs.
func Debugw(msg string, keysAndValues ...any) {
	get().Debug(msg, keysAndValues...)
}

// Infof logs a formatted message at info level.
func Infof(msg string, args ...any) {
	get().Info(fmt.Sprintf(msg, args...))
}

// Infow logs a message at info level with key-value pairs.
func Infow(msg string, keysAndValues ...any) {
	get().Info(msg, keysAndValues...)
}

// Warnf logs a formatted message at warning level.
func Warnf(msg string, args ...any) {
	get().Warn(fmt.Sprintf(msg, args...))
}

// Warnw logs a message at warning level with key-value pairs.
func Warnw(msg string, keysAndValues ...any) {
	get().Warn(msg, keysAndValues...)
}

// Errorf logs a formatted message at error level.
func Errorf(msg string, args ...any) {
	get().Error(fmt.Sprintf(msg, args...))
}

// Errorw logs a message at error level with key-value pairs.
func Errorw(msg string, keysAndValues ...any) {
	get().Error(msg, keysAndValues...)
}

// Fatalf logs a formatted message at error level and exits with status 1.
func Fatalf(msg string, args ...any) {
	get().Error(fmt.Sprintf(msg, args...))
	os.Exit(1)
}
