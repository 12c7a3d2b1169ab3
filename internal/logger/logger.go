package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Global logger instance
var (
	Log zerolog.Logger
)

// Initialize sets up the global logger with configuration
func Initialize(level string, pretty bool) {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	if pretty {
		// Pretty console output for development
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	// Set global logger
	Log = log.With().
		Str("service", "tracker-core").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("Logger initialized")
}

// GetLogger returns the global logger instance
func GetLogger() *zerolog.Logger {
	return &Log
}

// Tracker creates a logger for the pipeline orchestrator
func Tracker() *zerolog.Logger {
	l := Log.With().Str("component", "tracker").Logger()
	return &l
}

// Persistence creates a logger for the persistence coordinator
func Persistence() *zerolog.Logger {
	l := Log.With().Str("component", "persistence").Logger()
	return &l
}

// Synchronizer creates a logger for the profile synchronizer
func Synchronizer() *zerolog.Logger {
	l := Log.With().Str("component", "synchronizer").Logger()
	return &l
}

// Cache creates a logger for the cache layer
func Cache() *zerolog.Logger {
	l := Log.With().Str("component", "cache").Logger()
	return &l
}

// Storage creates a logger for the storage driver
func Storage() *zerolog.Logger {
	l := Log.With().Str("component", "storage").Logger()
	return &l
}

// Destination creates a logger for the destination dispatcher
func Destination() *zerolog.Logger {
	l := Log.With().Str("component", "destination").Logger()
	return &l
}

// HTTP creates a logger for HTTP request events
func HTTP() *zerolog.Logger {
	l := Log.With().Str("component", "http").Logger()
	return &l
}
