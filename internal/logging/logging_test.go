package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"critical", LevelCritical},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCriticalRendersLevelName(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info", "text")

	Critical(l, "write conflict", "path", "sessoes-cx-1.json")

	out := buf.String()
	for _, want := range []string{"level=CRITICAL", "path=sessoes-cx-1.json"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestCriticalLevelFiltersBelow(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "critical", "json")

	l.Error("ordinary failure")
	Critical(l, "dropped")

	out := buf.String()
	if strings.Contains(out, "ordinary failure") {
		t.Errorf("error logged below critical level: %s", out)
	}
	if !strings.Contains(out, `"level":"CRITICAL"`) {
		t.Errorf("critical entry missing: %s", out)
	}
}
