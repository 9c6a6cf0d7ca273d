package otelx

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "")
	t.Setenv("APP_ENV", "")
	cfg, err := ConfigFromEnv("journal-service")
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Enabled || cfg.SampleRatio != 1 || cfg.Environment != "local" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ServiceName != "journal-service" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
}

func TestConfigFromEnvRejectsBadRatio(t *testing.T) {
	for _, raw := range []string{"2", "-0.1", "half"} {
		t.Setenv("OTEL_SAMPLING_RATIO", raw)
		if _, err := ConfigFromEnv("booking-service"); err == nil {
			t.Fatalf("ratio %q should be rejected", raw)
		}
	}
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	cfg, err := ConfigFromEnv("booking-service")
	if err != nil || cfg.SampleRatio != 0.25 {
		t.Fatalf("expected 0.25, got %v err=%v", cfg.SampleRatio, err)
	}
}

func TestSetupDisabledInstallsPropagator(t *testing.T) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	fields := otel.GetTextMapPropagator().Fields()
	found := false
	for _, f := range fields {
		if f == "traceparent" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected traceparent propagation, got %v", fields)
	}
	if err := shutdown.Close(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
