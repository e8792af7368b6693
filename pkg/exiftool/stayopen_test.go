package exiftool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"go.uber.org/multierr"
)

// silentExiftool installs a stand-in that starts but never answers a request.
func silentExiftool(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}

	binary := filepath.Join(t.TempDir(), "exiftool")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\nexec sleep 10\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return binary
}

func writeTarget(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "img_1609459200_photo.jpg")
	if err := os.WriteFile(path, []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestNewStayOpenRunner_MissingBinary(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-exiftool")

	if _, err := NewStayOpenRunner(missing); !errors.Is(err, ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestStayOpenRunner_MissingFileIsToolError(t *testing.T) {
	if _, err := LookPath(""); err != nil {
		t.Skip("exiftool not installed")
	}

	r, err := NewStayOpenRunner("")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	path := filepath.Join(t.TempDir(), "img_1609459200_photo.jpg")
	err = r.Write(context.Background(), path, Assignment{Tag: "DateTime", Value: "2021:01:01 00:00:00"})

	var te *ToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected *ToolError, got %v", err)
	}
	if te.Tag != "DateTime" || te.Path != path {
		t.Fatalf("unexpected error fields %+v", te)
	}
}

func TestStayOpenRunner_CancelledBeforeWrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the context is checked before the process is touched
	r := &StayOpenRunner{}
	if err := r.Write(ctx, "a.jpg", Assignment{Tag: "DateTime", Value: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStayOpenRunner_TimeoutAbandonsHungProcess(t *testing.T) {
	r, err := NewStayOpenRunner(silentExiftool(t))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	path := writeTarget(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Write(ctx, path, Assignment{Tag: "DateTime", Value: "2021:01:01 00:00:00"}) }()

	select {
	case err = <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("write still blocked after the context deadline")
	}

	if !errors.Is(err, ErrExternalTool) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a tool error wrapping the deadline, got %v", err)
	}
	if r.et != nil {
		t.Fatalf("hung process should be dropped")
	}
}

func TestStayOpenRunner_WriterTimeoutCoversEveryField(t *testing.T) {
	r, err := NewStayOpenRunner(silentExiftool(t))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	path := writeTarget(t)
	w := NewWriter(r, Options{Timeout: 100 * time.Millisecond})

	done := make(chan error, 1)
	go func() { done <- w.WriteFields(context.Background(), path, "2021:01:01 00:00:00", "+00:00") }()

	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("WriteFields still blocked after the per-invocation timeout")
	}

	errs := multierr.Errors(err)
	if len(errs) != 6 {
		t.Fatalf("expected 6 failures, got %d: %v", len(errs), err)
	}
	for _, e := range errs {
		if !errors.Is(e, ErrExternalTool) {
			t.Fatalf("expected ErrExternalTool, got %v", e)
		}
	}
}

func TestStayOpenRunner_CancelStopsPendingWrite(t *testing.T) {
	r, err := NewStayOpenRunner(silentExiftool(t))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err = r.Write(ctx, writeTarget(t), Assignment{Tag: "OffsetTime", Value: "+00:00"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
