package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentApp, Format: "json", Output: &buf})

	logger.WithComponent(ComponentRecurring).InfoContext(context.Background(), "run finished",
		FieldObligationID, "ob-1")

	out := buf.String()
	if !strings.Contains(out, `"component":"recurring"`) {
		t.Errorf("missing component in %s", out)
	}
	if !strings.Contains(out, `"obligation_id":"ob-1"`) {
		t.Errorf("missing obligation id in %s", out)
	}
}

func TestFromContext(t *testing.T) {
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("Component() = %q, want unknown", got)
	}
	logger := Discard().WithComponent(ComponentWorker)
	ctx := NewContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Errorf("FromContext did not return stored logger")
	}
}
