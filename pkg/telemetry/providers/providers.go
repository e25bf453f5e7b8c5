// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package providers builds the OpenTelemetry meter and tracer providers.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
	"github.com/wanquanY/Plan-A-sub001/pkg/telemetry/providers/otlp"
	"github.com/wanquanY/Plan-A-sub001/pkg/telemetry/providers/prometheus"
)

// defaultSamplingRate applies when tracing is exported over OTLP.
const defaultSamplingRate = 0.1

// Config holds the telemetry configuration for all providers.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// OTLPEndpoint enables OTLP export of metrics and traces when set.
	OTLPEndpoint string
	Headers      map[string]string
	Insecure     bool
	SamplingRate float64

	// EnablePrometheusMetricsPath enables the Prometheus handler.
	EnablePrometheusMetricsPath bool
	IncludeRuntimeMetrics       bool
}

// ProviderOption configures the providers.
type ProviderOption func(*Config) error

// WithServiceName sets the service name.
func WithServiceName(serviceName string) ProviderOption {
	return func(c *Config) error {
		if serviceName == "" {
			return errors.New("service name cannot be empty")
		}
		c.ServiceName = serviceName
		return nil
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(serviceVersion string) ProviderOption {
	return func(c *Config) error {
		c.ServiceVersion = serviceVersion
		return nil
	}
}

// WithOTLPEndpoint sets the OTLP endpoint.
func WithOTLPEndpoint(endpoint string) ProviderOption {
	return func(c *Config) error {
		c.OTLPEndpoint = endpoint
		return nil
	}
}

// WithInsecure disables TLS for OTLP.
func WithInsecure(insecure bool) ProviderOption {
	return func(c *Config) error {
		c.Insecure = insecure
		return nil
	}
}

// WithSamplingRate sets the trace sampling ratio.
func WithSamplingRate(rate float64) ProviderOption {
	return func(c *Config) error {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("sampling rate must be between 0 and 1, got %v", rate)
		}
		c.SamplingRate = rate
		return nil
	}
}

// WithEnablePrometheusMetricsPath enables the Prometheus handler.
func WithEnablePrometheusMetricsPath(enabled bool) ProviderOption {
	return func(c *Config) error {
		c.EnablePrometheusMetricsPath = enabled
		return nil
	}
}

// WithRuntimeMetrics adds Go runtime collectors to the Prometheus registry.
func WithRuntimeMetrics(enabled bool) ProviderOption {
	return func(c *Config) error {
		c.IncludeRuntimeMetrics = enabled
		return nil
	}
}

// FromConfig converts the file configuration into provider options.
func FromConfig(tc config.TelemetryConfig, version string) []ProviderOption {
	opts := []ProviderOption{
		WithEnablePrometheusMetricsPath(tc.Metrics),
		WithRuntimeMetrics(tc.Metrics),
		WithOTLPEndpoint(tc.OTLPEndpoint),
		WithInsecure(tc.Insecure),
		WithServiceVersion(version),
	}
	if tc.ServiceName != "" {
		opts = append(opts, WithServiceName(tc.ServiceName))
	}
	return opts
}

// CompositeProvider bundles the meter provider, the tracer provider, the
// optional Prometheus handler and the shutdown hooks.
type CompositeProvider struct {
	tracerProvider    trace.TracerProvider
	meterProvider     metric.MeterProvider
	prometheusHandler http.Handler
	shutdownFuncs     []func(context.Context) error
}

// NewCompositeProvider creates the providers selected by the options.
func NewCompositeProvider(ctx context.Context, options ...ProviderOption) (*CompositeProvider, error) {
	cfg := Config{ServiceName: "mcpagent", SamplingRate: defaultSamplingRate}
	for _, option := range options {
		if err := option(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.OTLPEndpoint == "" && !cfg.EnablePrometheusMetricsPath {
		logger.Infof("No telemetry configured, using no-op providers")
		return newNoOpProvider(), nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource for service %q: %w", cfg.ServiceName, err)
	}

	p := &CompositeProvider{tracerProvider: tracenoop.NewTracerProvider()}
	if err := p.buildMeterProvider(ctx, cfg, res); err != nil {
		return nil, err
	}
	if err := p.buildTracerProvider(ctx, cfg, res); err != nil {
		_ = p.Shutdown(ctx)
		return nil, err
	}

	logger.Infow("telemetry providers created",
		"prometheus", cfg.EnablePrometheusMetricsPath, "otlp_endpoint", cfg.OTLPEndpoint)
	return p, nil
}

func newNoOpProvider() *CompositeProvider {
	return &CompositeProvider{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  noop.NewMeterProvider(),
	}
}

func otlpConfig(cfg Config) otlp.Config {
	return otlp.Config{
		Endpoint:     cfg.OTLPEndpoint,
		Headers:      cfg.Headers,
		Insecure:     cfg.Insecure,
		SamplingRate: cfg.SamplingRate,
	}
}

func (p *CompositeProvider) buildMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) error {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if cfg.EnablePrometheusMetricsPath {
		reader, handler, err := prometheus.NewReader(prometheus.Config{
			EnableMetricsPath:     true,
			IncludeRuntimeMetrics: cfg.IncludeRuntimeMetrics,
		})
		if err != nil {
			return fmt.Errorf("failed to create prometheus reader: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(reader))
		p.prometheusHandler = handler
	}
	if cfg.OTLPEndpoint != "" {
		reader, err := otlp.NewMetricReader(ctx, otlpConfig(cfg))
		if err != nil {
			return fmt.Errorf("failed to create OTLP metric reader for %s: %w", cfg.OTLPEndpoint, err)
		}
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	p.meterProvider = mp
	p.shutdownFuncs = append(p.shutdownFuncs, mp.Shutdown)
	return nil
}

func (p *CompositeProvider) buildTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) error {
	if cfg.OTLPEndpoint == "" {
		return nil
	}
	tp, err := otlp.NewTracerProvider(ctx, otlpConfig(cfg), res)
	if err != nil {
		return fmt.Errorf("failed to create tracer provider for %s: %w", cfg.OTLPEndpoint, err)
	}
	p.tracerProvider = tp
	p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown)
	return nil
}

// TracerProvider returns the tracer provider.
func (p *CompositeProvider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

// MeterProvider returns the meter provider.
func (p *CompositeProvider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// PrometheusHandler returns the scrape handler, or nil when Prometheus is disabled.
func (p *CompositeProvider) PrometheusHandler() http.Handler {
	return p.prometheusHandler
}

// Shutdown flushes and stops every provider.
func (p *CompositeProvider) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	for i, shutdown := range p.shutdownFuncs {
		if err := shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("provider %d shutdown failed: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
