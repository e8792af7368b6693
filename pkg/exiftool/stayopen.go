package exiftool

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	goexiftool "github.com/barasher/go-exiftool"
)

// StayOpenRunner sends every assignment to a single `exiftool -stay_open` process.
// Each assignment is still its own write request with its own status.
//
// A request that outlives its context leaves the process unusable. The runner drops it
// and starts a new one on the next write.
type StayOpenRunner struct {
	mu     sync.Mutex
	binary string
	et     *goexiftool.Exiftool
}

// NewStayOpenRunner starts exiftool. An empty binary uses the one found in PATH.
func NewStayOpenRunner(binary string) (*StayOpenRunner, error) {
	r := &StayOpenRunner{binary: binary}

	et, err := r.start()
	if err != nil {
		return nil, err
	}
	r.et = et
	return r, nil
}

func (r *StayOpenRunner) start() (*goexiftool.Exiftool, error) {
	var opts []func(*goexiftool.Exiftool) error
	if r.binary != "" {
		opts = append(opts, goexiftool.SetExiftoolBinaryPath(r.binary))
	}

	et, err := goexiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: start stay-open process: %w", ErrExternalTool, err)
	}
	return et, nil
}

// Write overwrites the original file. It returns when the request completes or ctx is
// done, whichever comes first.
func (r *StayOpenRunner) Write(ctx context.Context, path string, a Assignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.et == nil {
		et, err := r.start()
		if err != nil {
			return &ToolError{Tag: a.Tag, Path: path, ExitCode: -1, Err: err}
		}
		r.et = et
	}

	// the request file line is read as an option when it starts with a dash
	file, err := filepath.Abs(path)
	if err != nil {
		return &ToolError{Tag: a.Tag, Path: path, ExitCode: -1, Err: err}
	}

	md := goexiftool.FileMetadata{File: file, Fields: map[string]interface{}{}}
	md.SetString(a.Tag, a.Value)
	batch := []goexiftool.FileMetadata{md}

	et := r.et
	done := make(chan struct{})
	go func() {
		et.WriteMetadata(batch)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.et = nil
		// Close blocks while the request is pending.
		go func() {
			<-done
			_ = et.Close()
		}()
		return &ToolError{Tag: a.Tag, Path: path, ExitCode: -1, Err: ctx.Err()}
	}

	if err := batch[0].Err; err != nil {
		return &ToolError{Tag: a.Tag, Path: path, ExitCode: -1, Err: err}
	}
	return nil
}

// Close stops the exiftool process.
func (r *StayOpenRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.et == nil {
		return nil
	}
	err := r.et.Close()
	r.et = nil
	return err
}
