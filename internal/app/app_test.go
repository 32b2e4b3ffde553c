package app

import (
	"testing"

	"github.com/rs/zerolog"

	"ai-speech-upload-service/internal/config"
)

func TestNew_AppliesLogLevel(t *testing.T) {
	cfg := &config.Configuration{
		Observability: config.ObservabilityConfig{LogLevel: "warn", LogFormat: "json"},
	}
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	a := New(cfg, Services{})

	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("expected global level warn, got %s", zerolog.GlobalLevel())
	}
	if a.Validator == nil {
		t.Error("expected default validator")
	}
}

func TestStart_SetsStartupTime(t *testing.T) {
	a := New(&config.Configuration{}, Services{})
	if a.Uptime() != 0 {
		t.Errorf("expected zero uptime before start, got %v", a.Uptime())
	}

	if err := a.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.StartupTime.IsZero() {
		t.Error("expected startup time to be set")
	}
	a.Shutdown()
}
