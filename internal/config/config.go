package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Feed     FeedConfig
	Source   SourceConfig
	Triggers TriggerConfig
	Notify   NotifyConfig
	Worker   WorkerConfig
	Session  SessionConfig
	Location LocationConfig
	DB       DatabaseConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	RateLimitRPS int // per-subscriber request budget, requests per second
}

type FeedConfig struct {
	MaxSize int // per-subscriber feed capacity; oldest entries evicted beyond this
}

type SourceConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type TriggerConfig struct {
	PollInterval time.Duration // periodic background trigger
	DistanceKm   float64       // location trigger fires after moving this far
	MaxDwell     time.Duration // ...or after this long in place, whichever first
}

type NotifyConfig struct {
	WebhookURL string // empty means log-only delivery
	Timeout    time.Duration
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type SessionConfig struct {
	SubscriberID string // empty means no signed-in subscriber; ingestion no-ops
}

type LocationConfig struct {
	DefaultLatitude  float64
	DefaultLongitude float64
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			RateLimitRPS: getEnvInt("RATE_LIMIT_RPS", 5),
		},
		Feed: FeedConfig{
			MaxSize: getEnvInt("FEED_MAX_SIZE", 20),
		},
		Source: SourceConfig{
			URL:     getEnv("OPENWEATHER_URL", "https://api.openweathermap.org/data/2.5/onecall"),
			APIKey:  getEnv("OPENWEATHER_API_KEY", ""),
			Timeout: getEnvDuration("OPENWEATHER_TIMEOUT", 15*time.Second),
		},
		Triggers: TriggerConfig{
			PollInterval: getEnvDuration("POLL_INTERVAL", 15*time.Minute),
			DistanceKm:   getEnvFloat("LOCATION_DISTANCE_KM", 5.0),
			MaxDwell:     getEnvDuration("LOCATION_MAX_DWELL", 30*time.Minute),
		},
		Notify: NotifyConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			Timeout:    getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Session: SessionConfig{
			SubscriberID: getEnv("SUBSCRIBER_ID", ""),
		},
		Location: LocationConfig{
			DefaultLatitude:  getEnvFloat("DEFAULT_LATITUDE", 0),
			DefaultLongitude: getEnvFloat("DEFAULT_LONGITUDE", 0),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/alertfeed.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 1 {
		return fmt.Errorf("rate limit must be at least 1 req/s, got %d", c.Server.RateLimitRPS)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Feed.MaxSize < 1 {
		return fmt.Errorf("feed max size must be at least 1, got %d", c.Feed.MaxSize)
	}
	if c.Triggers.PollInterval < time.Minute {
		return fmt.Errorf("poll interval must be at least 1 minute")
	}
	if c.Triggers.DistanceKm <= 0 {
		return fmt.Errorf("location distance threshold must be positive")
	}
	if c.Triggers.MaxDwell < time.Minute {
		return fmt.Errorf("location max dwell must be at least 1 minute")
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Worker.Count)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
