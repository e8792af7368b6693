package createdat

import (
	"fmt"
	"time"
)

// ExifLayout is the EXIF DateTime format. It has no zone; the offset lives in the
// OffsetTime* fields.
const ExifLayout = "2006:01:02 15:04:05"

// ExifString formats t's wall clock for the EXIF DateTime fields.
func ExifString(t time.Time) string {
	return t.Format(ExifLayout)
}

// OffsetString returns t's UTC offset as ±HH:00 for the EXIF OffsetTime fields.
//
// The wall clock of t is relabelled as UTC and the real instant is subtracted from it,
// which yields UTC minus local; the sign is flipped to get local minus UTC. Only whole
// hours are kept, so +05:30 is written as +05:00.
func OffsetString(t time.Time) string {
	wallAsUTC := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	utcMinusLocal := t.Sub(wallAsUTC)
	hours := -int(utcMinusLocal / time.Hour)
	return fmt.Sprintf("%+03d:00", hours)
}
