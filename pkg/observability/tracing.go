package observability

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/ajitpratap0/jira-extract/pkg/errors"
)

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // stdout or none
	SamplingRate float64 `yaml:"sampling_rate"`
	ServiceName  string  `yaml:"service_name"`
}

// ShutdownFunc flushes and stops tracing.
type ShutdownFunc func(context.Context) error

// InitTracing installs a global tracer provider exporting to w (stderr when
// nil). When tracing is disabled it returns a no-op shutdown and leaves
// the default no-op provider in place.
func InitTracing(ctx context.Context, cfg TracingConfig, version string, w io.Writer) (ShutdownFunc, error) {
	if !cfg.Enabled || cfg.Exporter == "none" {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Exporter != "" && cfg.Exporter != "stdout" {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown trace exporter %q", cfg.Exporter)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "jira-extract"
	}
	if w == nil {
		w = os.Stderr
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create trace resource")
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create stdout exporter")
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SamplingRate <= 0 || cfg.SamplingRate >= 1:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SamplingRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
