// Package logger provides structured logging for the agent core.
// It keeps a scope/message/fields call surface and delegates formatting,
// levels and output handling to zerolog.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Level represents log levels
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a LOG_LEVEL-style string to a Level.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

var global = zerolog.New(io.Discard)

// Init initializes the global logger. When logPath is non-empty the log is
// appended to that file (created with its parent directory if needed);
// otherwise a console writer on stderr is used. Log output never goes to
// stdout: the interactive UI owns it.
func Init(logPath string, level Level, serviceName string) error {
	var w io.Writer
	if logPath != "" {
		if dir := filepath.Dir(logPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = f
	} else {
		w = zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) { cw.Out = os.Stderr })
	}

	global = zerolog.New(w).
		Level(level.zerolog()).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
	return nil
}

func log(ev *zerolog.Event, scope, msg string, fields map[string]any) {
	ev = ev.Str("scope", scope)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// Debug logs a debug message with a scope and optional fields.
func Debug(scope, msg string, fields map[string]any) {
	log(global.Debug(), scope, msg, fields)
}

// Info logs an info message with a scope and optional fields.
func Info(scope, msg string, fields map[string]any) {
	log(global.Info(), scope, msg, fields)
}

// Warn logs a warning with a scope and optional fields.
func Warn(scope, msg string, fields map[string]any) {
	log(global.Warn(), scope, msg, fields)
}

// Error logs an error with a scope and optional fields.
func Error(scope, msg string, fields map[string]any) {
	log(global.Error(), scope, msg, fields)
}
