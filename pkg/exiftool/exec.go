package exiftool

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultBinary is looked up in PATH when no binary path is configured.
const DefaultBinary = "exiftool"

// ExecRunner starts one exiftool process per assignment.
type ExecRunner struct {
	// Binary is the exiftool executable. If empty, DefaultBinary is used.
	Binary string
}

func (r ExecRunner) binary() string {
	if r.Binary == "" {
		return DefaultBinary
	}
	return r.Binary
}

// Write runs `exiftool -<Tag>=<Value> -overwrite_original -- <path>` and waits for it.
// Arguments after `--` are always file names, even when they start with a dash.
func (r ExecRunner) Write(ctx context.Context, path string, a Assignment) error {
	cmd := exec.CommandContext(ctx, r.binary(), a.Arg(), "-overwrite_original", "--", path)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	te := &ToolError{
		Tag:      a.Tag,
		Path:     path,
		ExitCode: -1,
		Output:   strings.TrimSpace(string(out)),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		te.ExitCode = exitErr.ExitCode()
	}
	return te
}

// LookPath reports whether the exiftool binary can be started.
func LookPath(binary string) (string, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	p, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExternalTool, err)
	}
	return p, nil
}
