// Package exiftool writes capture timestamps into image files through the exiftool
// program.
//
// Every field alias is written with its own exiftool request so a failure on one alias
// never prevents the others from being attempted, and every request's status is checked.
package exiftool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrExternalTool marks a failed exiftool invocation.
var ErrExternalTool = errors.New("exiftool failed")

var (
	// DateTimeTags receive the formatted capture time.
	DateTimeTags = []string{"DateTime", "DateTimeOriginal", "DateTimeDigitized"}

	// OffsetTags receive the formatted UTC offset.
	OffsetTags = []string{"OffsetTime", "OffsetTimeOriginal", "OffsetTimeDigitized"}
)

// Assignment is a single field write.
type Assignment struct {
	Tag   string
	Value string
}

// Arg renders the assignment as an exiftool command line argument.
func (a Assignment) Arg() string {
	return "-" + a.Tag + "=" + a.Value
}

// Runner applies one assignment to one file in place, without keeping a backup.
type Runner interface {
	Write(ctx context.Context, path string, a Assignment) error
}

// ToolError describes one failed invocation.
type ToolError struct {
	Tag      string
	Path     string
	ExitCode int // -1 when the process never ran or was killed
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("exiftool %s on %s", e.Tag, e.Path)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(": exit status %d", e.ExitCode)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

func (e *ToolError) Is(target error) bool { return target == ErrExternalTool }

// Options configures a Writer.
type Options struct {
	// Timeout bounds each invocation. Zero means no limit.
	Timeout time.Duration

	// Logger receives one debug entry per invocation. If nil, nothing is logged.
	Logger *zap.Logger
}

// Writer writes the capture time and offset field groups with a Runner.
type Writer struct {
	runner  Runner
	timeout time.Duration
	log     *zap.Logger
}

// NewWriter returns a Writer backed by runner.
func NewWriter(runner Runner, opts Options) *Writer {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{runner: runner, timeout: opts.Timeout, log: log}
}

// WriteFields writes datetime to every DateTimeTags alias and offset to every OffsetTags
// alias of the file at path, one invocation each.
//
// All invocations are attempted. The returned error combines every failure; each one
// matches ErrExternalTool. If ctx is done the remaining invocations are skipped and the
// context error is included.
func (w *Writer) WriteFields(ctx context.Context, path, datetime, offset string) error {
	var errs error
	for _, a := range Assignments(datetime, offset) {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if err := w.write(ctx, path, a); err != nil {
			if ctx.Err() != nil {
				return multierr.Append(errs, ctx.Err())
			}
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (w *Writer) write(parent context.Context, path string, a Assignment) error {
	ctx := parent
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, w.timeout)
		defer cancel()
	}

	start := time.Now()
	err := w.runner.Write(ctx, path, a)
	w.log.Debug("exiftool write",
		zap.String("path", path),
		zap.String("tag", a.Tag),
		zap.String("value", a.Value),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))
	if err == nil {
		return nil
	}
	// cancellation of the batch is not a tool failure
	if parent.Err() != nil {
		return parent.Err()
	}

	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{Tag: a.Tag, Path: path, ExitCode: -1, Err: err}
}

// Assignments lists the six writes for one file, capture time aliases first.
func Assignments(datetime, offset string) []Assignment {
	out := make([]Assignment, 0, len(DateTimeTags)+len(OffsetTags))
	for _, tag := range DateTimeTags {
		out = append(out, Assignment{Tag: tag, Value: datetime})
	}
	for _, tag := range OffsetTags {
		out = append(out, Assignment{Tag: tag, Value: offset})
	}
	return out
}
