// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the slog logger shared by solver components.
//
// Output fans out to a console handler (text or JSON) and, when LogDir is
// set, a JSON file named "{service}_{date}.log":
//
//	┌──────────────────────────────────────┐
//	│               Logger                 │
//	│  ┌──────────────┐  ┌──────────────┐  │
//	│  │   console    │  │   log file   │  │
//	│  │ (text/JSON)  │  │ (JSON, opt.) │  │
//	│  └──────────────┘  └──────────────┘  │
//	└──────────────────────────────────────┘
//
// Components never build their own handlers. They take a *slog.Logger
// (see Logger.Slog) and tag it with a "component" attribute.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level is a log severity. Debug < Info < Warn < Error.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps "debug", "info", "warn" or "error" (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures a Logger. The zero value writes Info and above to
// stderr as text.
type Config struct {
	// Level is the minimum level emitted.
	Level Level

	// LogDir enables JSON file logging. "~" expands to the home directory.
	LogDir string

	// Service is attached to every record as "service".
	Service string

	// JSON switches the console handler to JSON.
	JSON bool

	// Quiet disables the console handler.
	Quiet bool

	// Output replaces stderr as the console destination.
	Output io.Writer
}

// =============================================================================
// Logger
// =============================================================================

// Logger owns the slog handlers and the optional log file.
//
// Thread Safety: Safe for concurrent use.
type Logger struct {
	slog *slog.Logger
	file *os.File
	mu   sync.Mutex
}

// New creates a Logger.
//
// Description:
//
//	Builds the console handler unless Quiet, adds a JSON file handler if
//	LogDir is set and can be created, and attaches the service attribute.
//	If every destination is disabled the console is used anyway.
//
// Inputs:
//   - cfg: Logger configuration.
//
// Outputs:
//   - *Logger: Must be closed to release the log file.
//   - error: Non-nil if the log directory or file cannot be opened.
func New(cfg Config) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level.toSlogLevel()}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var handlers []slog.Handler
	if !cfg.Quiet {
		handlers = append(handlers, consoleHandler(out, cfg.JSON, opts))
	}

	l := &Logger{}
	if cfg.LogDir != "" {
		file, err := openLogFile(cfg.LogDir, cfg.Service)
		if err != nil {
			return nil, err
		}
		l.file = file
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = consoleHandler(out, cfg.JSON, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}
	l.slog = slog.New(handler)
	return l, nil
}

func consoleHandler(w io.Writer, json bool, opts *slog.HandlerOptions) slog.Handler {
	if json {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func openLogFile(dir, service string) (*os.File, error) {
	dir = expandPath(dir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}
	if service == "" {
		service = "solver"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}

// Slog returns the underlying logger for injection into components.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// With returns the underlying logger with extra attributes.
func (l *Logger) With(args ...any) *slog.Logger {
	return l.slog.With(args...)
}

// Close syncs and closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := errors.Join(l.file.Sync(), l.file.Close())
	l.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// =============================================================================
// Multi-Handler
// =============================================================================

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			errs = append(errs, handler.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// expandPath expands a leading "~" to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
