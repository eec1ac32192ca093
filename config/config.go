// Package config reads the process's runtime configuration from the
// environment. Every option is optional and has a documented default, so
// there is no parsing library to pull in: os.LookupEnv is the whole job.
package config

import "os"

// Config is the server's runtime configuration.
type Config struct {
	BindAddr string
	LogLevel string
	GinMode  string
}

// FromEnv reads Config from the process environment, applying defaults for
// anything unset.
func FromEnv() Config {
	logLevel := getenv("LOG_LEVEL", "info")
	return Config{
		BindAddr: getenv("BIND_ADDR", "127.0.0.1:8787"),
		LogLevel: logLevel,
		GinMode:  getenv("GIN_MODE", defaultGinMode(logLevel)),
	}
}

// defaultGinMode leaves gin at its own debug default unless the configured
// log level asks for quieter output, in which case it runs in release mode.
func defaultGinMode(logLevel string) string {
	switch logLevel {
	case "warn", "error":
		return "release"
	default:
		return "debug"
	}
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
