package logx

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew_VerboseControlsDebug(t *testing.T) {
	buf := new(bytes.Buffer)
	log := New(buf, false)
	log.Debug("hidden")
	log.Info("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug entry logged without verbose: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "INFO") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected info entry, got %q", buf.String())
	}

	buf.Reset()
	log = New(buf, true)
	log.Debug("visible")
	if !strings.Contains(buf.String(), "DEBUG") || !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected debug entry, got %q", buf.String())
	}
}
