package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.ElevenLabsBaseURL != "https://api.elevenlabs.io" {
		t.Fatalf("ElevenLabsBaseURL = %q, want default", cfg.ElevenLabsBaseURL)
	}
	if cfg.ElevenLabsOutputFormat != "mp3_44100_128" {
		t.Fatalf("ElevenLabsOutputFormat = %q, want %q", cfg.ElevenLabsOutputFormat, "mp3_44100_128")
	}
	if cfg.EventHeartbeatInterval != 30*time.Second {
		t.Fatalf("EventHeartbeatInterval = %v, want 30s", cfg.EventHeartbeatInterval)
	}
	if cfg.EventIdleTimeout != 2*time.Minute {
		t.Fatalf("EventIdleTimeout = %v, want 2m", cfg.EventIdleTimeout)
	}
}

func TestLoadExplicitOverrides(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9090")
	t.Setenv("ELEVENLABS_TIMEOUT", "90s")
	t.Setenv("STORAGE_BUCKET", "voice-clips")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9090" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":9090")
	}
	if cfg.ElevenLabsTimeout != 90*time.Second {
		t.Fatalf("ElevenLabsTimeout = %v, want 90s", cfg.ElevenLabsTimeout)
	}
	if cfg.StorageBucket != "voice-clips" {
		t.Fatalf("StorageBucket = %q, want %q", cfg.StorageBucket, "voice-clips")
	}
}

func TestLoadRejectsTooSmallIntervals(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_EVENT_IDLE_TIMEOUT", "1s")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for too small idle timeout")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_EVENT_HEARTBEAT_INTERVAL", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for unparseable duration")
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_EVENT_HEARTBEAT_INTERVAL",
		"APP_EVENT_IDLE_TIMEOUT",
		"APP_EVENT_SWEEP_INTERVAL",
		"ELEVENLABS_API_KEY",
		"ELEVENLABS_BASE_URL",
		"ELEVENLABS_VOICE_ID",
		"ELEVENLABS_OUTPUT_FORMAT",
		"ELEVENLABS_TIMEOUT",
		"DATABASE_URL",
		"STORAGE_BUCKET",
		"STORAGE_REGION",
		"STORAGE_ENDPOINT",
		"STORAGE_ACCESS_KEY_ID",
		"STORAGE_SECRET_ACCESS_KEY",
		"STORAGE_PUBLIC_BASE_URL",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
