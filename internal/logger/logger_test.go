package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", false)
	defer Init("info", false)

	Info("hidden")
	Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line leaked at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "k=v") {
		t.Fatalf("missing warn line: %s", out)
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "info", true)
	defer Init("info", false)

	ctx := IntoContext(context.Background(), With("request_id", "r-1"))
	WithContext(ctx).Info("scoped")

	if !strings.Contains(buf.String(), `"request_id":"r-1"`) {
		t.Fatalf("context logger lost attrs: %s", buf.String())
	}
	if WithContext(context.Background()) != Get() {
		t.Fatal("empty context should fall back to default logger")
	}
}
