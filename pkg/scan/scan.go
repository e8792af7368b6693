package scan

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// PhotoPattern matches Procare capture photos, e.g. img_1650306747855986_photo.jpg.
	PhotoPattern = "img_*_photo.jpg"

	// ActivityPattern matches Procare activity log images.
	ActivityPattern = "img_*_activity.jpg"
)

type Options struct {
	// MaxDepth limits recursion below root; 0 lists root only and -1 is unlimited.
	MaxDepth int

	// Patterns are path.Match globs tested against each file's base name.
	Patterns []string
}

func DefaultOptions() Options {
	return Options{
		MaxDepth: 0,
		Patterns: []string{PhotoPattern, ActivityPattern},
	}
}

type Record struct {
	Path          string    `json:"path"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	ModTime       time.Time `json:"mod_time"`
}

func Scan(fsys fs.FS, root string, opts Options) ([]string, error) {
	records, err := ScanRecords(fsys, root, opts)
	if err != nil {
		return nil, err
	}

	matches := make([]string, 0, len(records))
	for _, r := range records {
		matches = append(matches, r.Path)
	}
	return matches, nil
}

func ScanRecords(fsys fs.FS, root string, opts Options) ([]Record, error) {
	if opts.MaxDepth < -1 {
		return nil, fs.ErrInvalid
	}
	for _, p := range opts.Patterns {
		if _, err := path.Match(p, ""); err != nil {
			return nil, err
		}
	}

	var matches []Record

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if opts.MaxDepth >= 0 && depth(rel) >= opts.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if opts.MaxDepth >= 0 && depth(rel) > opts.MaxDepth {
			return nil
		}
		if !matchAny(opts.Patterns, d.Name()) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}

		matches = append(matches, Record{
			Path:          filepath.ToSlash(rel),
			FileSizeBytes: info.Size(),
			ModTime:       info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Path < matches[j].Path
	})
	return matches, nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		// patterns were validated up front
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// depth counts the directories between root and rel.
func depth(rel string) int {
	rel = filepath.Clean(rel)
	if rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/")
}
