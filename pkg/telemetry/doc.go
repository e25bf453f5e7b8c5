// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry instruments the agent gateway with OpenTelemetry:
// tool call and model call metrics, connection state gauges and HTTP
// request metrics and spans.
//
// Providers are built by the providers subpackage. When telemetry is
// disabled every instrument is backed by the OpenTelemetry noop
// implementation.
package telemetry
