// Package batch runs the per-file decode, format and write steps over a directory of
// Procare exports, one file at a time.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/quidome/photo-retime/pkg/createdat"
	"github.com/quidome/photo-retime/pkg/plan"
	"github.com/quidome/photo-retime/pkg/scan"
)

var (
	// ErrNotJPEG is reported for a matched file whose content is not a JPEG image.
	ErrNotJPEG = errors.New("content is not a JPEG image")

	// ErrAborted is returned when the batch stops before every file was handled.
	ErrAborted = errors.New("batch aborted")
)

// FieldWriter persists the two field groups for one file.
type FieldWriter interface {
	WriteFields(ctx context.Context, path, datetime, offset string) error
}

// Result contains the outcome for one file.
type Result struct {
	Operation plan.Operation
	Success   bool
	Error     error
}

// Summary counts the outcomes of a run.
type Summary struct {
	Matched int
	Written int
	Failed  int
	Results []Result
}

// HasFailures reports whether any file failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Options configures the batch.
type Options struct {
	// Location renders the decoded timestamps. If nil, time.Local is used.
	Location *time.Location

	// Scan selects the files of the directory.
	Scan scan.Options

	// Writer persists the fields. It may be nil only in dry-run mode.
	Writer FieldWriter

	// DryRun plans and reports every file without writing.
	DryRun bool

	// CheckContent rejects matched files whose content is not JPEG.
	CheckContent bool

	// Metadata reads the currently embedded timestamp for debug logging.
	// If nil, a default EXIF-based extractor is used.
	Metadata createdat.MetadataExtractor

	// Out receives one line per file. If nil, lines are discarded.
	Out io.Writer

	// Logger receives diagnostics. If nil, nothing is logged.
	Logger *zap.Logger
}

// Run processes every file in dir matched by opts.Scan.
func Run(ctx context.Context, dir string, opts Options) (Summary, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return Summary{}, err
	}
	if !info.IsDir() {
		return Summary{}, fmt.Errorf("%s: not a directory", dir)
	}

	matches, err := scan.Scan(os.DirFS(dir), ".", opts.Scan)
	if err != nil {
		return Summary{}, fmt.Errorf("scan %s: %w", dir, err)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
	}
	return Execute(ctx, paths, opts)
}

// Execute processes paths in order.
//
// A failing file is reported and the batch moves on. Cancelling ctx stops the batch and
// returns the summary so far with an error matching ErrAborted.
func Execute(ctx context.Context, paths []string, opts Options) (Summary, error) {
	if opts.Writer == nil && !opts.DryRun {
		return Summary{}, errors.New("batch: no field writer configured")
	}

	r := newRunner(opts)
	summary := Summary{Matched: len(paths), Results: make([]Result, 0, len(paths))}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return r.abort(summary, err)
		}

		result := r.process(ctx, path)
		if err := ctx.Err(); err != nil && !result.Success {
			return r.abort(summary, err)
		}

		r.report(result)
		summary.Results = append(summary.Results, result)
		if result.Success {
			summary.Written++
		} else {
			summary.Failed++
		}
	}

	r.log.Debug("batch complete",
		zap.Int("matched", summary.Matched),
		zap.Int("written", summary.Written),
		zap.Int("failed", summary.Failed),
		zap.Bool("dry_run", opts.DryRun))
	return summary, nil
}

type runner struct {
	opts     Options
	out      io.Writer
	log      *zap.Logger
	metadata createdat.MetadataExtractor
}

func newRunner(opts Options) *runner {
	r := &runner{opts: opts, out: opts.Out, log: opts.Logger, metadata: opts.Metadata}
	if r.out == nil {
		r.out = io.Discard
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.metadata == nil {
		r.metadata = createdat.ExifExtractor{Location: opts.Location}
	}
	return r
}

func (r *runner) abort(summary Summary, cause error) (Summary, error) {
	r.log.Warn("batch aborted",
		zap.Int("handled", len(summary.Results)),
		zap.Int("matched", summary.Matched),
		zap.Error(cause))
	return summary, fmt.Errorf("%w after %d of %d files: %w", ErrAborted, len(summary.Results), summary.Matched, cause)
}

func (r *runner) process(ctx context.Context, path string) Result {
	op := plan.For(path, r.opts.Location)
	result := Result{Operation: op}

	if err := r.apply(ctx, op); err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	return result
}

func (r *runner) report(result Result) {
	op := result.Operation
	switch {
	case !result.Success:
		fmt.Fprintf(r.out, "Error processing: %s: %v\n", op.SourcePath, result.Error)
		r.log.Debug("file failed", zap.String("path", op.SourcePath), zap.Error(result.Error))
	case r.opts.DryRun:
		fmt.Fprintf(r.out, "Would write: %s: %s %s\n", op.SourcePath, op.DateTime, op.Offset)
	default:
		fmt.Fprintf(r.out, "Done processing: %s\n", op.SourcePath)
	}
}

func (r *runner) apply(ctx context.Context, op plan.Operation) error {
	if !op.OK() {
		return op.Err
	}

	if r.opts.CheckContent {
		mtype, err := mimetype.DetectFile(op.SourcePath)
		if err != nil {
			return fmt.Errorf("detect content type: %w", err)
		}
		if !mtype.Is("image/jpeg") {
			return fmt.Errorf("%w: detected %s", ErrNotJPEG, mtype.String())
		}
	}

	if ce := r.log.Check(zap.DebugLevel, "planned write"); ce != nil {
		fields := []zap.Field{
			zap.String("path", op.SourcePath),
			zap.String("token", op.Stamp.Token),
			zap.String("datetime", op.DateTime),
			zap.String("offset", op.Offset),
		}
		if embedded, tag, ok := r.embedded(op.SourcePath); ok {
			fields = append(fields, zap.Time("embedded", embedded), zap.String("embedded_tag", tag))
		}
		ce.Write(fields...)
	}

	if r.opts.DryRun {
		return nil
	}
	return r.opts.Writer.WriteFields(ctx, op.SourcePath, op.DateTime, op.Offset)
}

func (r *runner) embedded(path string) (time.Time, string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, "", false
	}
	defer f.Close()

	tm, tag, ok, err := r.metadata.CreatedAt(path, f)
	if err != nil || !ok {
		return time.Time{}, "", false
	}
	return tm, tag, true
}
