// Package telemetry configures the OpenTelemetry meter provider
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ejournal/internal/platform/config"
	"ejournal/internal/platform/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	apimetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config selects the OTLP collector; an empty endpoint installs a noop provider
type Config struct {
	Endpoint    string
	ServiceName string
	Interval    time.Duration
}

// ConfigFromEnv reads OTEL_EXPORTER_OTLP_ENDPOINT and OTEL_SERVICE_NAME
func ConfigFromEnv(defaultService string) Config {
	c := config.New().Prefix("OTEL_")
	return Config{
		Endpoint:    c.MayString("EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName: c.MayString("SERVICE_NAME", defaultService),
		Interval:    c.MayDuration("METRIC_INTERVAL", 15*time.Second),
	}
}

// Init installs a global MeterProvider and returns it with its shutdown func
func Init(ctx context.Context, cfg Config) (apimetric.MeterProvider, func(context.Context) error, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "ejournal-gradesync"
	}

	if endpoint == "" {
		mp := noop.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Named("telemetry").Debug().Msg("otlp endpoint unset, metrics disabled")
		return mp, func(context.Context) error { return nil }, nil
	}

	host, insecure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, nil, err
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(host)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create metric exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(service)))
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	logger.Named("telemetry").Info().Str("endpoint", host).Str("service", service).Msg("otlp metrics enabled")
	return mp, mp.Shutdown, nil
}

func parseEndpoint(raw string) (string, bool, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse otlp endpoint: %w", err)
	}
	host := parsed.Host
	if host == "" {
		host = raw
	}
	return host, parsed.Scheme != "https", nil
}
