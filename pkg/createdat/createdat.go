package createdat

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformedFilename is returned when a filename carries no epoch token between the
	// img_ prefix and the _photo/_activity suffix.
	ErrMalformedFilename = errors.New("malformed filename")

	// ErrTimestampOutOfRange is returned when the decoded year is not strictly between
	// 2010 and 2099.
	ErrTimestampOutOfRange = errors.New("timestamp out of range")
)

const (
	minYear = 2010
	maxYear = 2099

	// secondDigits is the width of a whole-second epoch. Any digits beyond it are a
	// fractional-second scale.
	secondDigits = 10
)

// example: img_1650306747855986_photo.jpg
var reEpochToken = regexp.MustCompile(`(?i)img_(\d+)_(?:photo|activity)`)

// Stamp is a capture timestamp decoded from a filename.
type Stamp struct {
	// Token is the numeric run between the filename markers.
	Token string

	// FractionDigits is the number of token digits past the whole seconds.
	FractionDigits int

	// Time is the decoded instant rendered in the requested location.
	Time time.Time
}

// MetadataExtractor reads a timestamp already embedded in a media stream.
//
// Implementations should return (t, tag, true, nil) when a timestamp is found.
// If no timestamp exists, return (time.Time{}, "", false, nil).
type MetadataExtractor interface {
	CreatedAt(path string, r io.Reader) (t time.Time, tag string, ok bool, err error)
}

// Options configures FromFilename and Inspect.
type Options struct {
	// Location is the zone the epoch is rendered in.
	// If nil, time.Local is used.
	Location *time.Location

	// Metadata optionally reads embedded timestamps for Inspect.
	//
	// If nil, a default EXIF-based extractor is used.
	Metadata MetadataExtractor
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// Token returns the epoch token of a filename. Only the first marker-bounded run counts.
func Token(name string) (string, bool) {
	m := reEpochToken.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FromFilename decodes the capture timestamp encoded in name.
//
// Up to ten digits are whole Unix seconds. Longer tokens are seconds scaled by
// 10^(digits-10), so a 16 digit token carries microseconds.
func FromFilename(name string, opts Options) (Stamp, error) {
	token, ok := Token(name)
	if !ok {
		return Stamp{}, fmt.Errorf("%w: %q has no img_<epoch>_photo|activity token", ErrMalformedFilename, name)
	}

	instant, fraction, err := epochFromToken(token)
	if err != nil {
		return Stamp{}, fmt.Errorf("%w: %q: %v", ErrMalformedFilename, name, err)
	}

	local := instant.In(opts.location())
	if y := local.Year(); y <= minYear || y >= maxYear {
		return Stamp{}, fmt.Errorf("%w: token %s decodes to year %d", ErrTimestampOutOfRange, token, y)
	}

	return Stamp{Token: token, FractionDigits: fraction, Time: local}, nil
}

// epochFromToken splits the decimal token instead of dividing a float, so long tokens keep
// full precision down to the nanosecond.
func epochFromToken(token string) (time.Time, int, error) {
	whole, frac := token, ""
	if len(token) > secondDigits {
		whole, frac = token[:secondDigits], token[secondDigits:]
	}

	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return time.Time{}, 0, err
	}

	var nsec int64
	if frac != "" {
		digits := frac
		if len(digits) > 9 {
			digits = digits[:9]
		}
		digits += strings.Repeat("0", 9-len(digits))
		nsec, err = strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return time.Time{}, 0, err
		}
	}

	return time.Unix(sec, nsec), len(frac), nil
}

// Detail reports both views of a file's capture time.
type Detail struct {
	// Filename is the decoded filename timestamp; valid when FilenameErr is nil.
	Filename    Stamp
	FilenameErr error

	// Embedded is the timestamp currently stored in the file, if any.
	Embedded    time.Time
	EmbeddedTag string
}

// Inspect decodes the filename of path and reads the timestamp currently embedded in it.
//
// A filename that does not decode is reported in Detail.FilenameErr rather than returned,
// so callers can still show the embedded value.
func Inspect(fsys fs.FS, path string, opts Options) (Detail, error) {
	path = filepath.Clean(path)

	info, err := fs.Stat(fsys, path)
	if err != nil {
		return Detail{}, err
	}
	if info.IsDir() {
		return Detail{}, fs.ErrInvalid
	}

	var detail Detail
	detail.Filename, detail.FilenameErr = FromFilename(filepath.Base(path), opts)

	metadata := opts.Metadata
	if metadata == nil {
		metadata = ExifExtractor{Location: opts.location()}
	}

	f, err := fsys.Open(path)
	if err != nil {
		return Detail{}, err
	}
	defer f.Close()

	embedded, tag, ok, err := metadata.CreatedAt(path, f)
	if err == nil && ok {
		detail.Embedded = embedded
		detail.EmbeddedTag = tag
	}

	return detail, nil
}
