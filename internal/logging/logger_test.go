package logging

import (
	"log/slog"
	"testing"
)

func TestNewLogger(t *testing.T) {
	if NewLogger("info") == nil {
		t.Fatalf("expected logger")
	}
}

func TestLevelFromString(t *testing.T) {
	cases := map[string]slog.Leveler{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Fatalf("level %q: got %v want %v", in, got, want)
		}
	}
}
