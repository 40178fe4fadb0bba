// Package config provides environment lookups for qrcam commands.
// Command-line flags override everything here.
package config

import (
	"os"
)

// Defaults used when the environment does not say otherwise.
const (
	DefaultPort    = "8080"
	DefaultBackend = "gocv"
	DefaultLevel   = "info"
)

// Environment variable names.
const (
	EnvPort          = "QRCAM_PORT"
	EnvBackend       = "QRCAM_BACKEND"
	EnvSignallingURL = "QRCAM_SIGNALLING_URL"
	EnvProducer      = "QRCAM_PRODUCER"
	EnvLogLevel      = "LOG_LEVEL"
)

// Port returns the HTTP port from QRCAM_PORT or DefaultPort.
func Port() string {
	return lookup(EnvPort, DefaultPort)
}

// Backend returns the capture backend ("gocv" or "webrtc") from
// QRCAM_BACKEND or DefaultBackend.
func Backend() string {
	return lookup(EnvBackend, DefaultBackend)
}

// SignallingURL returns QRCAM_SIGNALLING_URL.
// Falls back to the provided default if not set.
func SignallingURL(defaultURL string) string {
	return lookup(EnvSignallingURL, defaultURL)
}

// Producer returns the preferred remote producer name from QRCAM_PRODUCER.
func Producer() string {
	return os.Getenv(EnvProducer)
}

// LogLevel returns LOG_LEVEL or DefaultLevel.
func LogLevel() string {
	return lookup(EnvLogLevel, DefaultLevel)
}

func lookup(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
