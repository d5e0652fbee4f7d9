package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode = %q, want release", cfg.GinMode)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath = %q, want /api/v1", cfg.APIBasePath)
	}
	if cfg.HistoryWindow != 50 {
		t.Fatalf("HistoryWindow = %d, want 50", cfg.HistoryWindow)
	}
	if cfg.Services.LLMBaseURL != "http://localhost:8000" {
		t.Fatalf("LLMBaseURL = %q", cfg.Services.LLMBaseURL)
	}
	if cfg.Services.GenerationTimeout != 60*time.Second {
		t.Fatalf("GenerationTimeout = %v", cfg.Services.GenerationTimeout)
	}
	if cfg.Ingest.MinWords != 150 || !cfg.Ingest.RequireStructure {
		t.Fatalf("Ingest = %+v", cfg.Ingest)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limits = %v/%d", cfg.RateRPS, cfg.RateBurst)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("IdempotencyTTL = %v", cfg.IdempotencyTTL)
	}
	if cfg.OTEL.ServiceName != "aria-backend" || cfg.OTEL.Enabled {
		t.Fatalf("OTEL = %+v", cfg.OTEL)
	}
	if len(cfg.CORS.AllowedOrigins) != 0 {
		t.Fatalf("AllowedOrigins = %v, want empty", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9191")
	t.Setenv("GIN_MODE", "TEST")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("HISTORY_WINDOW", "8")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("INGEST_MIN_WORDS", "30")
	t.Setenv("INGEST_REQUIRE_STRUCTURE", "no")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RATE_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Port != "9191" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "test" {
		t.Fatalf("GinMode = %q, want test", cfg.GinMode)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want warn (warning alias)", cfg.LogLevel)
	}
	if cfg.HistoryWindow != 8 {
		t.Fatalf("HistoryWindow = %d", cfg.HistoryWindow)
	}
	if cfg.Services.GenerationTimeout != 5*time.Second {
		t.Fatalf("GenerationTimeout = %v", cfg.Services.GenerationTimeout)
	}
	if cfg.Ingest.MinWords != 30 || cfg.Ingest.RequireStructure {
		t.Fatalf("Ingest = %+v", cfg.Ingest)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.RateRPS != 2.5 {
		t.Fatalf("RateRPS = %v", cfg.RateRPS)
	}
}

func TestLoad_InvalidGinModeFallsBack(t *testing.T) {
	t.Setenv("GIN_MODE", "turbo")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("GinMode = %q, want release", cfg.GinMode)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"negative history window", "HISTORY_WINDOW", "-1"},
		{"zero read timeout", "READ_TIMEOUT", "0s"},
		{"negative rate rps", "RATE_RPS", "-1"},
		{"zero rate burst", "RATE_BURST", "0"},
		{"zero idempotency ttl", "IDEMPOTENCY_TTL", "0s"},
		{"sample ratio above one", "OTEL_TRACES_SAMPLER_ARG", "1.5"},
		{"negative ingest min words", "INGEST_MIN_WORDS", "-5"},
		{"zero llm timeout", "LLM_TIMEOUT", "0s"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestLoad_MalformedNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("HISTORY_WINDOW", "many")
	t.Setenv("RATE_RPS", "fast")
	t.Setenv("LLM_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.HistoryWindow != 50 || cfg.RateRPS != 5.0 || cfg.Services.GenerationTimeout != 60*time.Second {
		t.Fatalf("expected defaults, got window=%d rps=%v llm=%v",
			cfg.HistoryWindow, cfg.RateRPS, cfg.Services.GenerationTimeout)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"api", "/api"},
		{"/api/v1", "/api/v1"},
		{"/api/v1/", "/api/v1"},
		{"  /api/v2//  ", "/api/v2"},
	}
	for _, tc := range cases {
		if got := normalizeBasePath(tc.in); got != tc.want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMustLoad_PanicsOnInvalid(t *testing.T) {
	t.Setenv("PORT", " ")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	_ = MustLoad()
}
