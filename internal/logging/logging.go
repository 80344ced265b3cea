// Package logging builds the zerolog logger and provides event helpers
// for the trade lifecycle.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "krx-scalper", "logs", "scalper.log"),
		MaxSize:    50,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLoggerWithConfig builds a logger writing to the console, a rotated
// file, or both. An unwritable log directory drops the file sink rather
// than failing startup.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var sinks []io.Writer

	if cfg.Console {
		sinks = append(sinks, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	if cfg.File {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			sinks = append(sinks, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer
	switch len(sinks) {
	case 0:
		out = os.Stdout
	case 1:
		out = sinks[0]
	default:
		out = zerolog.MultiLevelWriter(sinks...)
	}

	return zerolog.New(out).With().Timestamp().Caller().Logger()
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// LogTrade logs a simulated fill.
func LogTrade(logger zerolog.Logger, code, kind string, qty int64, price float64) {
	logger.Info().
		Str("event", "trade").
		Str("code", code).
		Str("kind", kind).
		Int64("quantity", qty).
		Float64("price", price).
		Msg("Trade executed")
}

// LogExit logs a position exit with its realized result.
func LogExit(logger zerolog.Logger, code, reason string, profit, rate float64) {
	logger.Info().
		Str("event", "exit").
		Str("code", code).
		Str("reason", reason).
		Float64("profit", profit).
		Float64("profit_rate", rate).
		Msg("Position closed")
}

// LogSnapshot logs a persistence event.
func LogSnapshot(logger zerolog.Logger, date string, total float64, err error) {
	event := logger.Debug().
		Str("event", "snapshot").
		Str("date", date).
		Float64("total", total)

	if err != nil {
		event.Err(err).Msg("Snapshot save failed")
	} else {
		event.Msg("Snapshot saved")
	}
}
