package observability

import (
	"context"
	"testing"

	"github.com/signalsfoundry/station-simulator/internal/logging"
)

func TestTracingConfigApplyEnv(t *testing.T) {
	t.Setenv("STATION_TRACING_ENABLED", "true")
	t.Setenv("STATION_TRACING_EXPORTER", "OTLP")
	t.Setenv("STATION_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("STATION_OTLP_ENDPOINT", "collector:4317")

	cfg := DefaultTracingConfig().ApplyEnv()
	if !cfg.Enabled || cfg.Exporter != "otlp" || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.ServiceName != "station-sim" {
		t.Fatalf("service name = %q, want default", cfg.ServiceName)
	}
}

func TestTracingConfigIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("STATION_TRACING_ENABLED", "maybe")
	t.Setenv("STATION_TRACING_SAMPLE_RATIO", "2")

	cfg := DefaultTracingConfig().ApplyEnv()
	if cfg.Enabled || cfg.SampleRatio != 1 {
		t.Fatalf("malformed env should be ignored, got %+v", cfg)
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), DefaultTracingConfig(), logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Exporter = "zipkin"
	if _, err := InitTracing(context.Background(), cfg, logging.Noop()); err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestTracingConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*TracingConfig)
		wantErr bool
	}{
		{"defaults", func(*TracingConfig) {}, false},
		{"empty exporter means stdout", func(c *TracingConfig) { c.Exporter = "" }, false},
		{"otlpgrpc alias", func(c *TracingConfig) { c.Exporter = "OTLPGRPC" }, false},
		{"unknown exporter", func(c *TracingConfig) { c.Exporter = "jaeger" }, true},
		{"negative ratio", func(c *TracingConfig) { c.SampleRatio = -0.1 }, true},
		{"ratio above one", func(c *TracingConfig) { c.SampleRatio = 1.5 }, true},
	}
	for _, tc := range cases {
		cfg := DefaultTracingConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); (err != nil) != tc.wantErr {
			t.Fatalf("%s: Validate() = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestInitTracingStdoutShutsDown(t *testing.T) {
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	shutdown, err := InitTracing(context.Background(), cfg, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() { _, _ = InitTracing(context.Background(), DefaultTracingConfig(), logging.Noop()) })
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
