package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"clipper/internal/services"
)

func TestConsoleHandlerFormatsComponent(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.With(String(FieldComponent, "workflow")).Info("stage started", String("stage", "assembling"))

	line := buf.String()
	if !strings.Contains(line, "[workflow]") {
		t.Fatalf("expected component tag, got %q", line)
	}
	if !strings.Contains(line, "stage=assembling") {
		t.Fatalf("expected attr pair, got %q", line)
	}
}

func TestConsoleHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("suppressed")
	logger.Warn("kept")

	if strings.Contains(buf.String(), "suppressed") {
		t.Fatalf("info record should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn record missing: %q", buf.String())
	}
}

func TestWithContextStampsFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithStage(ctx, "trimming")
	WithContext(ctx, logger).Info("hello")

	line := buf.String()
	if !strings.Contains(line, "job_id=job-1") || !strings.Contains(line, "stage=trimming") {
		t.Fatalf("context fields missing: %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
