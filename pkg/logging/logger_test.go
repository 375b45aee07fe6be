// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_TextConsole(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: LevelInfo, Service: "threatsolve", Output: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Slog().Debug("hidden")
	l.Slog().Info("visible", "instant", 42)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=visible")
	assert.Contains(t, out, "instant=42")
	assert.Contains(t, out, "service=threatsolve")
}

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: LevelDebug, JSON: true, Output: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.With("component", "threat").Debug("filtered", "accepted", 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "filtered", rec["msg"])
	assert.Equal(t, "threat", rec["component"])
	assert.EqualValues(t, 2, rec["accepted"])
}

func TestNew_FileAndConsole(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l, err := New(Config{LogDir: dir, Service: "svc", Output: &buf})
	require.NoError(t, err)

	l.Slog().Warn("both destinations")
	require.NoError(t, l.Close())

	assert.Contains(t, buf.String(), "both destinations")

	matches, err := filepath.Glob(filepath.Join(dir, "svc_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "both destinations", rec["msg"])
	assert.Equal(t, "svc", rec["service"])
}

func TestNew_QuietWithoutFileFallsBackToConsole(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Quiet: true, Output: &buf})
	require.NoError(t, err)
	defer l.Close()

	l.Slog().Info("still here")
	assert.Contains(t, buf.String(), "still here")
}

func TestNew_QuietWithFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l, err := New(Config{Quiet: true, LogDir: dir, Output: &buf})
	require.NoError(t, err)

	l.Slog().Info("file only")
	require.NoError(t, l.Close())

	assert.Empty(t, buf.String())
	matches, err := filepath.Glob(filepath.Join(dir, "solver_*.log"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestNew_UnwritableLogDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := New(Config{LogDir: filepath.Join(file, "logs")})
	assert.Error(t, err)
}

func TestLogger_CloseIsIdempotent(t *testing.T) {
	l, err := New(Config{LogDir: t.TempDir(), Quiet: true})
	require.NoError(t, err)
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	logger := slog.New(h.WithGroup("search"))

	logger.Info("step", "level", 3)
	assert.NotEmpty(t, a.String())
	assert.Empty(t, b.String())

	var rec map[string]any
	require.NoError(t, json.Unmarshal(a.Bytes(), &rec))
	group, ok := rec["search"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 3, group["level"])

	logger.With("run", "r1").Warn("budget")
	assert.Contains(t, a.String(), `"run":"r1"`)
	assert.Contains(t, b.String(), `"run":"r1"`)
	assert.True(t, h.Enabled(context.Background(), slog.LevelInfo))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "logs"), expandPath("~/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
	assert.Equal(t, "rel", expandPath("rel"))
}
