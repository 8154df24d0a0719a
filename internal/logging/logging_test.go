package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewParsesLevel(t *testing.T) {
	cases := map[string]log.Level{
		"debug":  log.DebugLevel,
		" WARN ": log.WarnLevel,
		"error":  log.ErrorLevel,
		"bogus":  log.InfoLevel,
		"":       log.InfoLevel,
	}
	for input, want := range cases {
		if got := New(&bytes.Buffer{}, input).GetLevel(); got != want {
			t.Fatalf("level %q = %v, want %v", input, got, want)
		}
	}
}

func TestNewWritesKeyvals(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug")
	logger.Info("move applied", "from", 1, "to", 3)

	out := buf.String()
	if !strings.Contains(out, "move applied") || !strings.Contains(out, "from=1") {
		t.Fatalf("unexpected log output: %q", out)
	}
}
