// Package createdat recovers a photo's capture timestamp from the epoch encoded in a
// Procare export filename and formats it for the EXIF date and offset fields.
//
// Timestamps already embedded in the file can be read back for comparison, but the
// filename is always the source of truth.
package createdat
