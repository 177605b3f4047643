package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerrad567/cadbridge/internal/infrastructure/config"
)

const (
	serviceName = "cadbridge"
	redacted    = "[redacted]"
	logFileMode = 0o600
)

// sensitiveKeys are attribute keys whose values never reach the log.
var sensitiveKeys = map[string]bool{
	"token":         true,
	"secret":        true,
	"password":      true,
	"authorization": true,
	"jwt_secret":    true,
}

// Logger is the slog.Logger every cadbridge component logs through. Each
// entry carries service and version; values under sensitive keys such as
// "token" are replaced with [redacted].
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New builds a logger from the logging section of config.yaml.
//
// Output is "stdout" (default), "stderr" or a file path opened for append.
// When the file cannot be opened the logger writes to stderr and says so
// in its first entry. The MCP front end must use stderr or a file because
// stdout carries the protocol.
func New(cfg config.LoggingConfig, version string) *Logger {
	var (
		w       io.Writer = os.Stdout
		closer  io.Closer
		openErr error
	)
	switch out := strings.TrimSpace(cfg.Output); strings.ToLower(out) {
	case "", "stdout":
	case "stderr":
		w = os.Stderr
	default:
		f, err := openLogFile(out)
		if err != nil {
			w, openErr = os.Stderr, err
			break
		}
		w, closer = f, f
	}

	l := build(cfg, version, w)
	l.closer = closer
	if openErr != nil {
		l.Warn("log file unavailable, using stderr", "path", cfg.Output, "error", openErr)
	}
	return l
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFileMode) //nolint:gosec // path from config
}

func build(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if sensitiveKeys[strings.ToLower(a.Key)] {
				return slog.String(a.Key, redacted)
			}
			return a
		},
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	h = h.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(h)}
}

// parseLevel maps debug, info, warn(ing) and error; anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// With returns a child logger, typically tagged with a component:
//
//	log.With("component", "pump")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Close releases the log file, if New opened one. Child loggers from With
// share the file and must not be used afterwards.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Discard drops everything. For tests.
func Discard() *Logger {
	return build(config.LoggingConfig{Level: "error"}, "test", io.Discard)
}
