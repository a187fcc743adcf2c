// Package logger provides the process-wide structured logger for the plugin host.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the global logger instance.
var Log zerolog.Logger

// Initialize sets up the global logger with configuration.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().
		Str("service", "pluginhost").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// GetLogger returns the global logger instance.
func GetLogger() *zerolog.Logger {
	return &Log
}

// Runtime creates a logger scoped to the lifecycle manager (C12).
func Runtime() *zerolog.Logger {
	l := Log.With().Str("component", "runtime").Logger()
	return &l
}

// Dispatch creates a logger scoped to the host dispatcher (C8).
func Dispatch() *zerolog.Logger {
	l := Log.With().Str("component", "dispatch").Logger()
	return &l
}

// Loader creates a logger scoped to the module host (C11).
func Loader() *zerolog.Logger {
	l := Log.With().Str("component", "loader").Logger()
	return &l
}

// Storage creates a logger scoped to scoped storage (C4).
func Storage() *zerolog.Logger {
	l := Log.With().Str("component", "storage").Logger()
	return &l
}

// Events creates a logger scoped to the event bus (C5).
func Events() *zerolog.Logger {
	l := Log.With().Str("component", "events").Logger()
	return &l
}

// Devtools creates a logger scoped to the inspector surface.
func Devtools() *zerolog.Logger {
	l := Log.With().Str("component", "devtools").Logger()
	return &l
}
