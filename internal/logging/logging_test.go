package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestSetLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
		want  log.Level
	}{
		{"debug", "debug", true, log.DebugLevel},
		{"mixed case", " WARN ", true, log.WarnLevel},
		{"unknown", "loud", false, log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(&bytes.Buffer{})
			l.SetLevel(log.InfoLevel)
			if got := SetLevel(l, tt.input); got != tt.ok {
				t.Fatalf("SetLevel(%q) = %v, want %v", tt.input, got, tt.ok)
			}
			if l.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", l.GetLevel(), tt.want)
			}
		})
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	l := With(New(&buf), "deck", "A")
	l.Info("loaded")

	if !strings.Contains(buf.String(), "deck=A") {
		t.Errorf("expected child fields in output, got %q", buf.String())
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil) != log.Default() {
		t.Error("nil logger did not fall back to the default")
	}
	l := New(&bytes.Buffer{})
	if OrDefault(l) != l {
		t.Error("non-nil logger was replaced")
	}
}
