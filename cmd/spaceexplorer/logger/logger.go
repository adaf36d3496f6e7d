// Package logger writes structured logs to a file, keeping them off the
// terminal the TUI owns. Output is discarded until Init enables it.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// L is the process logger. It discards everything until Init is called with
// Enabled set.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

const logName = "spaceexplorer.log"

// Options configures Init.
type Options struct {
	Enabled bool       // leave false to keep logging off
	LogDir  string     // directory for the log file; default ~/.spaceexplorer
	Level   slog.Level // minimum level; default slog.LevelInfo
}

// Init points L at the session log file. Call it from main before the first
// log call. Runs append to one file; sessions are told apart by timestamps.
func Init(opts Options) error {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}

	dir := opts.LogDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, ".spaceexplorer")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, logName),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	level := opts.Level
	if level == 0 {
		level = slog.LevelInfo
	}
	L = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	return nil
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
