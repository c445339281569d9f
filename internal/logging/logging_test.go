package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Options{Level: "info", Format: "text"}, &buf)

	logger.Info("completion registered", "job_id", "job_1")

	output := buf.String()
	if !strings.Contains(output, "completion registered") {
		t.Errorf("expected message in output, got: %s", output)
	}
	if !strings.Contains(output, "job_id=job_1") {
		t.Errorf("expected job_id=job_1 in output, got: %s", output)
	}
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Options{Level: "info", Format: "JSON", Service: "hireflow-server"}, &buf)

	logger.Info("job created", "enrolled", 5)

	output := buf.String()
	for _, want := range []string{`"msg":"job created"`, `"enrolled":5`, `"service":"hireflow-server"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Options{Level: "warn"}, &buf)

	logger.Info("should not appear")
	logger.Warn("dispatch incomplete")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Errorf("INFO message should be filtered at WARN level, got: %s", output)
	}
	if !strings.Contains(output, "dispatch incomplete") {
		t.Errorf("WARN message should appear at WARN level, got: %s", output)
	}
}

func TestNewWithWriter_ChildLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(Options{Level: "debug"}, &buf)
	child := logger.With("component", "dispatch")

	child.Debug("sent", "candidate_id", "c1")

	output := buf.String()
	if !strings.Contains(output, "component=dispatch") || !strings.Contains(output, "candidate_id=c1") {
		t.Errorf("expected component and candidate_id in output, got: %s", output)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Discard logger should not enable WARN")
	}
	if !logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should enable ERROR")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
