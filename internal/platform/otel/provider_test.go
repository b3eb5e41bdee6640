package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/spar/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("SPAR_OTEL_ENDPOINT", "")
	t.Setenv("SPAR_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("SPAR_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("SPAR_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_RejectsMalformedSampleRatio(t *testing.T) {
	t.Setenv("SPAR_OTEL_SAMPLE_RATIO", "often")

	if _, err := otel.Setup(context.Background(), "test-service"); err == nil {
		t.Fatal("expected settings error")
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export happens.
	t.Setenv("SPAR_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("SPAR_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSettingsActive(t *testing.T) {
	tests := []struct {
		name     string
		settings otel.Settings
		want     bool
	}{
		{name: "empty", settings: otel.Settings{}, want: false},
		{name: "endpoint", settings: otel.Settings{Endpoint: "http://collector:4318"}, want: true},
		{name: "disabled", settings: otel.Settings{Endpoint: "http://collector:4318", Enabled: "FALSE"}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.settings.Active(); got != tc.want {
				t.Fatalf("Active() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSetup_NoopShutdownIgnoresCancelledContext(t *testing.T) {
	t.Setenv("SPAR_OTEL_ENDPOINT", "")
	t.Setenv("SPAR_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "noop-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}
