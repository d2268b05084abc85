// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/streamnorm/internal/log"
	"github.com/rs/zerolog"
)

// EnvPrefix is shared by every environment key the loader reads.
const EnvPrefix = "STREAMNORM_"

// lookupEnv returns the value of key when it is set and non-empty, logging
// which source won.
func lookupEnv(logger zerolog.Logger, key string, defaultValue any) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().
			Str("key", key).
			Interface("default", defaultValue).
			Str("source", "default").
			Msg("using default value")
		return "", false
	}
	return v, true
}

func logEnvUsed(logger zerolog.Logger, key string, value any) {
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	lower := strings.ToLower(key)
	if strings.Contains(lower, "token") || strings.Contains(lower, "password") {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Interface("value", value)
	}
	ev.Msg("using environment variable")
}

func logEnvInvalid(logger zerolog.Logger, key, raw, kind string, defaultValue any) {
	logger.Warn().
		Str("key", key).
		Str("value", raw).
		Interface("default", defaultValue).
		Msgf("invalid %s in environment variable, using default", kind)
}

// ParseString reads a string from environment variable or returns default value.
// It logs the source (environment or default) for observability.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	v, ok := lookupEnv(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	logEnvUsed(logger, key, v)
	return v
}

// ParseInt reads an integer from environment variable or returns default value.
// It validates the input and falls back to default on parse errors.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := lookupEnv(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		logEnvInvalid(logger, key, v, "integer", defaultValue)
		return defaultValue
	}
	logEnvUsed(logger, key, i)
	return i
}

// ParseInt64 is ParseInt for byte sizes.
func ParseInt64(key string, defaultValue int64) int64 {
	logger := log.WithComponent("config")
	v, ok := lookupEnv(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		logEnvInvalid(logger, key, v, "integer", defaultValue)
		return defaultValue
	}
	logEnvUsed(logger, key, i)
	return i
}

// ParseFloat reads a float from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	logger := log.WithComponent("config")
	v, ok := lookupEnv(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		logEnvInvalid(logger, key, v, "number", defaultValue)
		return defaultValue
	}
	logEnvUsed(logger, key, f)
	return f
}

// ParseDuration reads a duration from environment variable in Go duration format (e.g. "5s").
// It falls back to default on parse errors or empty variables and logs the choice.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	logger := log.WithComponent("config")
	v, ok := lookupEnv(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		logEnvInvalid(logger, key, v, "duration", defaultValue)
		return defaultValue
	}
	logEnvUsed(logger, key, d)
	return d
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := lookupEnv(logger, key, defaultValue)
	if !ok {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		logEnvUsed(logger, key, true)
		return true
	case "false", "0", "no":
		logEnvUsed(logger, key, false)
		return false
	default:
		logEnvInvalid(logger, key, v, "boolean", defaultValue)
		return defaultValue
	}
}
