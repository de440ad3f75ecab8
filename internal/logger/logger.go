// Package logger provides structured logging with optional file rotation.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the logger configuration.
type Config struct {
	Level      string `env:"XCBRIDGECTL_LOG_LEVEL" envDefault:"info"`
	FilePath   string `env:"XCBRIDGECTL_LOG_FILE"`
	MaxSizeMB  int    `env:"XCBRIDGECTL_LOG_MAX_SIZE_MB" envDefault:"5"`
	MaxBackups int    `env:"XCBRIDGECTL_LOG_MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"XCBRIDGECTL_LOG_MAX_AGE_DAYS" envDefault:"30"`
	Compress   bool   `env:"XCBRIDGECTL_LOG_COMPRESS"`
	Console    bool   `env:"XCBRIDGECTL_LOG_CONSOLE" envDefault:"true"`
}

// DefaultConfig returns sensible defaults for an interactive CLI run.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		MaxSizeMB:  5,
		MaxBackups: 3,
		MaxAgeDays: 30,
		Console:    true,
	}
}

var (
	globalLogger   = zerolog.New(os.Stderr).With().Timestamp().Logger()
	prevFileWriter io.Closer
	consoleOut     io.Writer = os.Stderr
)

// Init initializes the global logger with the given configuration.
func Init(cfg Config) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	// Close the file writer from a prior Init call
	Close()

	var writers []io.Writer

	// File output with rotation, in fixed-width columns
	if cfg.FilePath != "" {
		dir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}

		fileWriter := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		prevFileWriter = fileWriter
		writers = append(writers, NewFixedFormatWriter(fileWriter))
	}

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        consoleOut,
			TimeFormat: time.Kitchen,
		})
	}

	var output io.Writer
	switch len(writers) {
	case 0:
		output = io.Discard
	case 1:
		output = writers[0]
	default:
		output = zerolog.MultiLevelWriter(writers...)
	}

	globalLogger = zerolog.New(output).With().Timestamp().Logger()
	return nil
}

// Close flushes and closes the rotating file writer, if any.
func Close() {
	if prevFileWriter != nil {
		prevFileWriter.Close()
		prevFileWriter = nil
	}
}

// WithComponent returns a sub-logger tagged with the component name.
func WithComponent(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}

// Debug starts a debug level event on the global logger.
func Debug() *zerolog.Event {
	return globalLogger.Debug()
}

// Info starts an info level event on the global logger.
func Info() *zerolog.Event {
	return globalLogger.Info()
}

// Warn starts a warn level event on the global logger.
func Warn() *zerolog.Event {
	return globalLogger.Warn()
}

// Error starts an error level event on the global logger.
func Error() *zerolog.Event {
	return globalLogger.Error()
}
