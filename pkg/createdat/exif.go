package createdat

import (
	"io"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// ExifExtractor reads the embedded capture time with goexif.
type ExifExtractor struct {
	// Location is used for EXIF timestamps, which carry no zone. If nil, time.Local is used.
	Location *time.Location
}

// CreatedAt returns the first of DateTimeOriginal, DateTimeDigitized and DateTime that parses.
// Streams without EXIF are reported as not found.
func (e ExifExtractor) CreatedAt(path string, r io.Reader) (time.Time, string, bool, error) {
	x, err := exif.Decode(r)
	if err != nil {
		// Missing or truncated EXIF is expected for these exports.
		return time.Time{}, "", false, nil
	}

	loc := e.Location
	if loc == nil {
		loc = time.Local
	}

	for _, tag := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		if tm, ok := exifTimeFromTag(x, tag, loc); ok {
			return tm, string(tag), true, nil
		}
	}

	return time.Time{}, "", false, nil
}

func exifTimeFromTag(x *exif.Exif, tag exif.FieldName, loc *time.Location) (time.Time, bool) {
	f, err := x.Get(tag)
	if err != nil {
		return time.Time{}, false
	}

	s, err := f.StringVal()
	if err != nil {
		return time.Time{}, false
	}

	tm, err := time.ParseInLocation(ExifLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}

	return tm, true
}
