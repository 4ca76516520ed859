package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.MaxSize != 20 {
		t.Errorf("expected default feed size 20, got %d", cfg.Feed.MaxSize)
	}
	if cfg.Triggers.PollInterval != 15*time.Minute {
		t.Errorf("expected default poll interval 15m, got %v", cfg.Triggers.PollInterval)
	}
	if cfg.Triggers.DistanceKm != 5.0 {
		t.Errorf("expected default distance 5km, got %v", cfg.Triggers.DistanceKm)
	}
	if cfg.Triggers.MaxDwell != 30*time.Minute {
		t.Errorf("expected default max dwell 30m, got %v", cfg.Triggers.MaxDwell)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimitRPS != 5 {
		t.Errorf("expected default rate limit 5 req/s, got %d", cfg.Server.RateLimitRPS)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FEED_MAX_SIZE", "50")
	t.Setenv("POLL_INTERVAL", "5m")
	t.Setenv("LOCATION_DISTANCE_KM", "2.5")
	t.Setenv("SUBSCRIBER_ID", "u1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.MaxSize != 50 {
		t.Errorf("expected feed size 50, got %d", cfg.Feed.MaxSize)
	}
	if cfg.Triggers.PollInterval != 5*time.Minute {
		t.Errorf("expected poll interval 5m, got %v", cfg.Triggers.PollInterval)
	}
	if cfg.Triggers.DistanceKm != 2.5 {
		t.Errorf("expected distance 2.5km, got %v", cfg.Triggers.DistanceKm)
	}
	if cfg.Session.SubscriberID != "u1" {
		t.Errorf("expected subscriber u1, got %s", cfg.Session.SubscriberID)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero feed size", "FEED_MAX_SIZE", "0"},
		{"short poll interval", "POLL_INTERVAL", "30s"},
		{"negative distance", "LOCATION_DISTANCE_KM", "-1"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad port", "SERVER_PORT", "70000"},
		{"zero rate limit", "RATE_LIMIT_RPS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
