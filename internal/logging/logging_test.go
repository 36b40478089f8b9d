package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ParseLevel(tt.input), tt.input)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, true, slog.LevelInfo)
	l.Debug("hidden")
	l.Info("classified", "category", "factura")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "classified", rec["msg"])
	require.Equal(t, "factura", rec["category"])
}

func TestFromContext(t *testing.T) {
	require.Same(t, slog.Default(), FromContext(context.Background()))
	l := New(&bytes.Buffer{}, false, slog.LevelInfo)
	require.Same(t, l, FromContext(WithLogger(context.Background(), l)))
}
