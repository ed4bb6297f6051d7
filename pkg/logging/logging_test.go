package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogger_JSONAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", true, &buf)

	log.WithComponent("resolver").
		WithURL("https://example.com").
		WithError(errors.New("boom")).
		WithDuration(1500*time.Millisecond).
		Info("extraction finished")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}

	checks := map[string]any{
		"msg":         "extraction finished",
		"component":   "resolver",
		"url":         "https://example.com",
		"error":       "boom",
		"duration_ms": float64(1500),
	}
	for k, want := range checks {
		if rec[k] != want {
			t.Errorf("%s = %v, want %v", k, rec[k], want)
		}
	}
	if _, err := time.Parse(time.RFC3339, rec["time"].(string)); err != nil {
		t.Errorf("time not RFC3339: %v", rec["time"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New("warn", false, &buf)

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message should be logged")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := New("info", false, &buf).WithRequestID("req-1")

	ctx := log.WithContext(context.Background())
	FromContext(ctx).Info("hello")

	if !strings.Contains(buf.String(), "request_id=req-1") {
		t.Errorf("expected request id in output, got %q", buf.String())
	}
}

func TestFromContext_Fallback(t *testing.T) {
	var buf bytes.Buffer
	prev := fallback.Load()
	defer func() {
		if prev != nil {
			fallback.Store(prev)
		}
	}()

	SetDefault(New("info", false, &buf))
	FromContext(context.Background()).Info("from default")

	if !strings.Contains(buf.String(), "from default") {
		t.Errorf("expected default logger to be used, got %q", buf.String())
	}
}

func TestFromContextOr(t *testing.T) {
	var ctxBuf, defBuf bytes.Buffer
	ctxLog := New("info", false, &ctxBuf)
	defLog := New("info", false, &defBuf)

	FromContextOr(context.Background(), defLog).Info("no logger in context")
	FromContextOr(ctxLog.WithContext(context.Background()), defLog).Info("context logger")

	if !strings.Contains(defBuf.String(), "no logger in context") {
		t.Errorf("expected default logger output, got %q", defBuf.String())
	}
	if !strings.Contains(ctxBuf.String(), "context logger") || strings.Contains(defBuf.String(), "context logger") {
		t.Errorf("expected context logger to be used, got ctx=%q def=%q", ctxBuf.String(), defBuf.String())
	}
}
