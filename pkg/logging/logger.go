// Package logging owns tinydb's process-wide structured logger.
//
// The engine logs through one slog.Logger: Setup installs it at startup,
// subsystems derive child loggers via the With* helpers in context.go, and
// Shutdown closes the log file on exit. Until Setup runs, a stdout text
// logger is in place so early code can log safely.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	mu      sync.RWMutex
	logger  = slog.New(slog.NewTextHandler(os.Stdout, nil))
	logFile *os.File
)

// Setup directs the global logger at path, or stdout when path is empty.
// debug lowers the handler threshold to slog.LevelDebug, which turns on
// the per-page tracing in the buffer pool. Calling Setup again replaces
// the destination and closes the previously opened log file.
func Setup(path string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	mu.Lock()
	defer mu.Unlock()

	if path == "" {
		closeFileLocked()
		logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	closeFileLocked()
	logFile = file
	logger = slog.New(slog.NewTextHandler(file, opts))
	return nil
}

// Shutdown closes the log file opened by Setup, if any, and falls back to
// a stdout logger. Safe to call more than once.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()

	err := closeFileLocked()
	logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	return err
}

// GetLogger returns the current global logger.
func GetLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func closeFileLocked() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
