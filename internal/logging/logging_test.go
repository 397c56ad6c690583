package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("warn", &buf)
	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected info line to be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 2") {
		t.Fatalf("expected warn line, got %q", out)
	}
}

func TestNamedPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("debug", &buf).Named("queue")
	l.Debugf("opened")
	if !strings.Contains(buf.String(), "[DEBUG] [queue] opened") {
		t.Fatalf("expected component tag, got %q", buf.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Errorf("nothing %s", "happens")
	if l.Named("x") != nil {
		t.Fatalf("expected nil child of nil logger")
	}
}
