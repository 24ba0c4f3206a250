package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/station-simulator/internal/logging"
)

// Span exporters understood by InitTracing.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const defaultOTLPEndpoint = "localhost:4317"

// TracingConfig selects where station command spans go. It is the
// `tracing` section of the station config file.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// DefaultTracingConfig has tracing off, with spans going to stderr once it
// is switched on.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{ServiceName: "station-sim", Exporter: ExporterStdout, SampleRatio: 1}
}

// ApplyEnv returns cfg with STATION_TRACING_* and STATION_OTLP_ENDPOINT
// applied. Malformed values are skipped.
func (cfg TracingConfig) ApplyEnv() TracingConfig {
	overrides := []struct {
		key string
		set func(string)
	}{
		{"STATION_TRACING_ENABLED", func(v string) {
			if b, err := strconv.ParseBool(v); err == nil {
				cfg.Enabled = b
			}
		}},
		{"STATION_TRACING_EXPORTER", func(v string) { cfg.Exporter = strings.ToLower(v) }},
		{"STATION_TRACING_SERVICE_NAME", func(v string) { cfg.ServiceName = v }},
		{"STATION_TRACING_SAMPLE_RATIO", func(v string) {
			if r, err := strconv.ParseFloat(v, 64); err == nil && r >= 0 && r <= 1 {
				cfg.SampleRatio = r
			}
		}},
		{"STATION_OTLP_ENDPOINT", func(v string) { cfg.Endpoint = v }},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			o.set(v)
		}
	}
	return cfg
}

// Validate checks the exporter name and sample ratio.
func (cfg TracingConfig) Validate() error {
	switch cfg.exporter() {
	case ExporterStdout, ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter %q is not one of %s, %s", cfg.Exporter, ExporterStdout, ExporterOTLP)
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be in [0, 1], got %v", cfg.SampleRatio)
	}
	return nil
}

func (cfg TracingConfig) exporter() string {
	switch e := strings.ToLower(cfg.Exporter); e {
	case "":
		return ExporterStdout
	case "otlpgrpc":
		return ExporterOTLP
	default:
		return e
	}
}

// InitTracing installs the global tracer provider and propagators for cfg
// and returns the function that flushes and stops it. With tracing disabled
// a no-op provider is installed and shutdown does nothing.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tp, err := newTracerProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.exporter()),
		logging.String("service_name", cfg.ServiceName),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newTracerProvider(ctx context.Context, cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch cfg.exporter() {
	case ExporterOTLP:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		exp, err = otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		exp, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithoutTimestamps())
	}
	if err != nil {
		return nil, fmt.Errorf("create %s span exporter: %w", cfg.exporter(), err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", "station"),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

// ShutdownWithTimeout runs shutdown with a five second budget. Failures are
// logged, not returned.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
