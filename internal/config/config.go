package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the recording service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	ElevenLabsAPIKey       string
	ElevenLabsBaseURL      string
	ElevenLabsVoiceID      string
	ElevenLabsOutputFormat string
	ElevenLabsTimeout      time.Duration

	DatabaseURL string

	StorageBucket        string
	StorageRegion        string
	StorageEndpoint      string
	StorageAccessKeyID   string
	StorageSecretKey     string
	StoragePublicBaseURL string

	EventHeartbeatInterval time.Duration
	EventIdleTimeout       time.Duration
	EventSweepInterval     time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "vrobo"),
		AllowAnyOrigin:    false,
		ElevenLabsBaseURL: envOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		// The target voice every recording is converted into.
		ElevenLabsVoiceID:      envOrDefault("ELEVENLABS_VOICE_ID", "ThT5KcBeYPX3keUQqHPh"),
		ElevenLabsOutputFormat: envOrDefault("ELEVENLABS_OUTPUT_FORMAT", "mp3_44100_128"),
		ElevenLabsAPIKey:       envTrimmed("ELEVENLABS_API_KEY"),
		DatabaseURL:            envTrimmed("DATABASE_URL"),
		StorageBucket:          envTrimmed("STORAGE_BUCKET"),
		StorageRegion:          envOrDefault("STORAGE_REGION", "us-east-1"),
		StorageEndpoint:        envTrimmed("STORAGE_ENDPOINT"),
		StorageAccessKeyID:     envTrimmed("STORAGE_ACCESS_KEY_ID"),
		StorageSecretKey:       envTrimmed("STORAGE_SECRET_ACCESS_KEY"),
		StoragePublicBaseURL:   envTrimmed("STORAGE_PUBLIC_BASE_URL"),
		ShutdownTimeout:        15 * time.Second,
		ElevenLabsTimeout:      60 * time.Second,
		EventHeartbeatInterval: 30 * time.Second,
		EventIdleTimeout:       2 * time.Minute,
		EventSweepInterval:     15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ElevenLabsTimeout, err = durationFromEnv("ELEVENLABS_TIMEOUT", cfg.ElevenLabsTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.EventHeartbeatInterval, err = durationFromEnv("APP_EVENT_HEARTBEAT_INTERVAL", cfg.EventHeartbeatInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.EventIdleTimeout, err = durationFromEnv("APP_EVENT_IDLE_TIMEOUT", cfg.EventIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.EventSweepInterval, err = durationFromEnv("APP_EVENT_SWEEP_INTERVAL", cfg.EventSweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.ElevenLabsTimeout < time.Second {
		return Config{}, fmt.Errorf("ELEVENLABS_TIMEOUT must be at least 1s")
	}
	if cfg.EventHeartbeatInterval < time.Second {
		return Config{}, fmt.Errorf("APP_EVENT_HEARTBEAT_INTERVAL must be at least 1s")
	}
	if cfg.EventIdleTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_EVENT_IDLE_TIMEOUT must be at least 5s")
	}
	if cfg.EventSweepInterval < time.Second {
		return Config{}, fmt.Errorf("APP_EVENT_SWEEP_INTERVAL must be at least 1s")
	}
	if strings.TrimSpace(cfg.ElevenLabsVoiceID) == "" {
		return Config{}, fmt.Errorf("ELEVENLABS_VOICE_ID must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
