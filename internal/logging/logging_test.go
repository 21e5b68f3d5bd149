package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Warning, &buf, false)

	l.Debug("should not appear")
	l.Info("should not appear either")
	l.Warning("should appear", "key", "value")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("expected debug/info to be filtered out, got: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("expected warning message to be logged, got: %q", out)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Error, &buf, false)
	l.Info("filtered")
	if buf.Len() != 0 {
		t.Fatalf("expected no output at Error level, got: %q", buf.String())
	}

	l.SetLevel(Info)
	l.Info("now visible")
	if !strings.Contains(buf.String(), "now visible") {
		t.Errorf("expected message after SetLevel(Info), got: %q", buf.String())
	}
}

func TestSuppressForcesErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Debug, &buf, true)
	l.Warning("should be suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected suppress to force Error threshold, got: %q", buf.String())
	}
	l.Error("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected error message through, got: %q", buf.String())
	}
}
