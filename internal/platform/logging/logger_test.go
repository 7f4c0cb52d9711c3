package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestNewWithWriter_JSONIncludesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, FormatJSON, LevelInfo)

	logger.Info("wrote output", "path", "data/raw/x.csv", "rows", 12)
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, `"msg":"wrote output"`) {
		t.Fatalf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, `"rows":12`) {
		t.Fatalf("expected rows field, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered at info level: %q", out)
	}
}

func TestLogger_ErrorValuesUseNamedError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, FormatJSON, LevelInfo)

	logger.Warn("fetch failed", "error", errors.New("status=503"))
	if !strings.Contains(buf.String(), `"error":"status=503"`) {
		t.Fatalf("expected error field, got %q", buf.String())
	}
}

func TestLogger_ContextAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, FormatJSON, LevelInfo)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "traced")
	if !strings.Contains(buf.String(), "4bf92f3577b34da6a3ce929d0e0e4736") {
		t.Fatalf("expected trace id in output, got %q", buf.String())
	}
}

func TestLogger_OddArgsAndNilReceiver(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, FormatJSON, LevelInfo)
	logger.Info("odd", "dangling")
	if !strings.Contains(buf.String(), `"dangling":null`) {
		t.Fatalf("expected dangling key with null value, got %q", buf.String())
	}

	var nilLogger *Logger
	nilLogger.Info("does not panic")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewWithWriter_ConsoleOmitsColourWhenRedirected(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&buf, FormatConsole, LevelInfo).Warn("rate limited", "attempt", 2)

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("console output to a buffer must not carry ANSI codes: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "rate limited") {
		t.Fatalf("unexpected console output: %q", out)
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "datafetch.log"))
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	defer f.Close()
	if isTerminal(f) {
		t.Fatalf("a regular file is not a terminal")
	}
}
