package config

import "testing"

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("BIND_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GIN_MODE", "")

	cfg := FromEnv()
	if cfg.BindAddr != "127.0.0.1:8787" {
		t.Errorf("BindAddr = %q, want default", cfg.BindAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default", cfg.LogLevel)
	}
	if cfg.GinMode != "debug" {
		t.Errorf("GinMode = %q, want gin's own debug default at info level", cfg.GinMode)
	}
}

func TestFromEnvQuietLogLevelDefaultsGinToRelease(t *testing.T) {
	t.Setenv("BIND_ADDR", "")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("GIN_MODE", "")

	cfg := FromEnv()
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q, want release when LOG_LEVEL requests quieter output", cfg.GinMode)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BIND_ADDR", "0.0.0.0:9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GIN_MODE", "debug")

	cfg := FromEnv()
	if cfg.BindAddr != "0.0.0.0:9000" {
		t.Errorf("BindAddr = %q, want override", cfg.BindAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want override", cfg.LogLevel)
	}
	if cfg.GinMode != "debug" {
		t.Errorf("GinMode = %q, want override", cfg.GinMode)
	}
}
