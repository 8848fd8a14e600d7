// Package logger provides structured logging configuration using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration.
type Config struct {
	Level      zerolog.Level
	Format     string // "console" or "json"
	File       string // rotated log file; empty logs to stderr only
	MaxSizeMB  int
	MaxBackups int
}

// NewLogger creates a configured zerolog.Logger.
// The returned closer releases the log file, if any.
func NewLogger(cfg Config) (zerolog.Logger, io.Closer, error) {
	var out io.Writer
	if cfg.Format == "json" {
		out = os.Stderr
	} else {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return zerolog.Nop(), nil, errors.Wrapf(err, "create log directory for %s", cfg.File)
		}
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: cfg.MaxBackups,
		}
		out = zerolog.MultiLevelWriter(out, rotated)
		closer = rotated
	}

	ctx := zerolog.New(out).Level(cfg.Level).With().Timestamp()
	// Add caller location at debug level and below
	if cfg.Level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), closer, nil
}

// DefaultConfig returns the default logger configuration.
// Parses the RHINO_LOG_LEVEL environment variable to set the log level.
// Valid values: DEBUG, INFO, WARN, WARNING, ERROR
// Default: INFO
func DefaultConfig() Config {
	return Config{
		Level:      ParseLevel(os.Getenv("RHINO_LOG_LEVEL")),
		Format:     "console",
		MaxSizeMB:  1,
		MaxBackups: 2,
	}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func init() {
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file)) + ":" + strconv.Itoa(line)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
