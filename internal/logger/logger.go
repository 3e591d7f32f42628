// Package logger is the process-wide diagnostic log. It stays silent unless
// InitializeLogger is called with active set.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Logger struct {
	sl     *slog.Logger
	closer io.Closer
	active bool
}

var DiskInspectLogger Logger

// InitializeLogger opens logfilename for appending ("-" means stderr).
func InitializeLogger(active bool, logfilename string, level string) error {
	if !active {
		DiskInspectLogger = Logger{}
		return nil
	}
	var w io.Writer = os.Stderr
	var closer io.Closer
	if logfilename != "" && logfilename != "-" {
		file, err := os.OpenFile(logfilename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
		if err != nil {
			return fmt.Errorf("open log %s: %w", logfilename, err)
		}
		w, closer = file, file
	}
	DiskInspectLogger = New(w, level)
	DiskInspectLogger.closer = closer
	return nil
}

// New builds an active logger writing text records to w.
func New(w io.Writer, level string) Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return Logger{sl: slog.New(h).With("app", "diskinspect"), active: true}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Close releases the log file and silences the logger.
func Close() error {
	c := DiskInspectLogger.closer
	DiskInspectLogger = Logger{}
	if c != nil {
		return c.Close()
	}
	return nil
}

func (logger Logger) Debug(msg string, args ...any) {
	if logger.active {
		logger.sl.Debug(msg, args...)
	}
}

func (logger Logger) Info(msg string, args ...any) {
	if logger.active {
		logger.sl.Info(msg, args...)
	}
}

func (logger Logger) Warning(msg string, args ...any) {
	if logger.active {
		logger.sl.Warn(msg, args...)
	}
}

func (logger Logger) Error(msg any, args ...any) {
	if logger.active {
		logger.sl.Error(fmt.Sprint(msg), args...)
	}
}
