package plan

import (
	"path/filepath"
	"time"

	"github.com/quidome/photo-retime/pkg/createdat"
)

// Operation is the metadata write planned for one file.
type Operation struct {
	SourcePath string
	Stamp      createdat.Stamp

	// DateTime and Offset are the values written to the EXIF field groups.
	DateTime string
	Offset   string

	// Err is set when the filename does not decode; nothing should be written then.
	Err error
}

// OK reports whether the operation can be applied.
func (op Operation) OK() bool {
	return op.Err == nil
}

// For decodes the filename of src in loc and formats both field values.
func For(src string, loc *time.Location) Operation {
	op := Operation{SourcePath: src}

	stamp, err := createdat.FromFilename(filepath.Base(src), createdat.Options{Location: loc})
	if err != nil {
		op.Err = err
		return op
	}

	op.Stamp = stamp
	op.DateTime = createdat.ExifString(stamp.Time)
	op.Offset = createdat.OffsetString(stamp.Time)
	return op
}

// Plan computes operations for a list of source files, keeping their order.
//
// Files whose names do not decode are kept with Err set so they can be reported.
func Plan(sources []string, loc *time.Location) []Operation {
	operations := make([]Operation, 0, len(sources))
	for _, src := range sources {
		operations = append(operations, For(src, loc))
	}
	return operations
}
