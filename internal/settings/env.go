// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package settings

import (
	"os"
	"strconv"
	"strings"

	"github.com/streamkeep/streamkeep/internal/log"
	"github.com/streamkeep/streamkeep/internal/transcoder"
)

// envOverride records one environment-variable override for debug logging.
type envOverride struct {
	key    string
	source string // "env" or "default"
	masked bool
}

func logOverrides(overrides []envOverride) {
	l := log.WithComponent("settings")
	for _, o := range overrides {
		val := "set"
		if o.masked {
			val = "****"
		}
		l.Debug().Str("key", o.key).Str("source", o.source).Str("value", val).Msg("settings override resolved")
	}
}

var sensitiveKeyParts = []string{"token", "password", "secret", "key", "credential"}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// envString resolves a string setting from the environment, falling back to
// fallback when unset, and records the resolution for debug logging.
func envString(key, fallback string, overrides *[]envOverride) string {
	if v, ok := os.LookupEnv(key); ok {
		*overrides = append(*overrides, envOverride{key: key, source: "env", masked: isSensitive(key)})
		return v
	}
	*overrides = append(*overrides, envOverride{key: key, source: "default", masked: isSensitive(key)})
	return fallback
}

// envInt resolves an integer setting from the environment.
func envInt(key string, fallback int, overrides *[]envOverride) int {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(v); err == nil {
			*overrides = append(*overrides, envOverride{key: key, source: "env"})
			return parsed
		}
	}
	*overrides = append(*overrides, envOverride{key: key, source: "default"})
	return fallback
}

// envFloat resolves a float setting from the environment.
func envFloat(key string, fallback float64, overrides *[]envOverride) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*overrides = append(*overrides, envOverride{key: key, source: "env"})
			return parsed
		}
	}
	*overrides = append(*overrides, envOverride{key: key, source: "default"})
	return fallback
}

// envBool resolves a boolean setting from the environment.
func envBool(key string, fallback bool, overrides *[]envOverride) bool {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*overrides = append(*overrides, envOverride{key: key, source: "env"})
			return parsed
		}
	}
	*overrides = append(*overrides, envOverride{key: key, source: "default"})
	return fallback
}

// Recognized environment variable names (see external interfaces).
const (
	EnvRecordingsPath     = "RECORDERD_RECORDINGS_PATH"
	EnvSettingsPath       = "RECORDERD_SETTINGS_PATH"
	EnvStreamsPath        = "RECORDERD_STREAMS_PATH"
	EnvOutputDir          = "RECORDERD_OUTPUT_DIR"
	EnvLogsDir            = "RECORDERD_LOGS_DIR"
	EnvTranscoderPath     = "RECORDERD_TRANSCODER_PATH"
	EnvContainer          = "RECORDERD_CONTAINER"
	EnvProberHeartbeat    = "PROBER_HEARTBEAT_ENABLED"
	EnvProberHeartbeatInt = "PROBER_HEARTBEAT_INTERVAL"
	EnvLogLevel           = "LOG_LEVEL"
	EnvOTLPEndpoint       = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// FromEnvironment layers environment-variable overrides for the recognized
// RECORDERD_* keys on top of base, returning the merged Settings. Every
// resolution (env or default) is logged at debug level.
func FromEnvironment(base Settings) Settings {
	var overrides []envOverride
	defer func() { logOverrides(overrides) }()

	out := base
	out.TranscoderPath = envString(EnvTranscoderPath, base.TranscoderPath, &overrides)
	out.OutputDir = envString(EnvOutputDir, base.OutputDir, &overrides)
	out.Container = transcoder.Container(envString(EnvContainer, string(base.Container), &overrides))
	return out
}

// BootstrapPaths are the process document and directory locations, read
// once at startup. They are not part of Settings since they govern where
// Settings itself is persisted.
type BootstrapPaths struct {
	RecordingsPath string
	SettingsPath   string
	StreamsPath    string
	LogsDir        string
}

// PathsFromEnvironment resolves the bootstrap document/directory paths.
func PathsFromEnvironment() BootstrapPaths {
	var overrides []envOverride
	defer func() { logOverrides(overrides) }()

	return BootstrapPaths{
		RecordingsPath: envString(EnvRecordingsPath, "./data/recordings.json", &overrides),
		SettingsPath:   envString(EnvSettingsPath, "./data/settings.json", &overrides),
		StreamsPath:    envString(EnvStreamsPath, "./data/streams.json", &overrides),
		LogsDir:        envString(EnvLogsDir, "./data/logs", &overrides),
	}
}

// ProberEnv are the Prober's environment-sourced tuning knobs.
type ProberEnv struct {
	HeartbeatEnabled  bool
	HeartbeatInterval int // seconds
}

// ProberFromEnvironment resolves the prober heartbeat overrides.
func ProberFromEnvironment() ProberEnv {
	var overrides []envOverride
	defer func() { logOverrides(overrides) }()

	return ProberEnv{
		HeartbeatEnabled:  envBool(EnvProberHeartbeat, false, &overrides),
		HeartbeatInterval: envInt(EnvProberHeartbeatInt, 240, &overrides),
	}
}

// LogLevelFromEnvironment resolves the ambient log-level override, carried
// from the logging stack rather than the Settings table.
func LogLevelFromEnvironment() string {
	var overrides []envOverride
	defer func() { logOverrides(overrides) }()
	return envString(EnvLogLevel, "info", &overrides)
}

// OTLPEndpointFromEnvironment resolves the ambient tracing-exporter
// override. An empty return disables export.
func OTLPEndpointFromEnvironment() string {
	var overrides []envOverride
	defer func() { logOverrides(overrides) }()
	return envString(EnvOTLPEndpoint, "", &overrides)
}
