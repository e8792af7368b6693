package scan

import (
	"reflect"
	"testing"
	"testing/fstest"
)

func TestScan_DefaultPatterns(t *testing.T) {
	fsys := fstest.MapFS{
		"root/img_1650306747855986_photo.jpg":     &fstest.MapFile{Data: []byte("a")},
		"root/img_1609459200_activity.jpg":        &fstest.MapFile{Data: []byte("b")},
		"root/img_1609459200_photo.png":           &fstest.MapFile{Data: []byte("c")},
		"root/IMG_20240102_030405.jpg":            &fstest.MapFile{Data: []byte("d")},
		"root/notes.txt":                          &fstest.MapFile{Data: []byte("e")},
		"root/sub/img_1650306747855986_photo.jpg": &fstest.MapFile{Data: []byte("f")},
	}

	got, err := Scan(fsys, "root", DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"img_1609459200_activity.jpg", "img_1650306747855986_photo.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected result\n got: %#v\nwant: %#v", got, want)
	}
}

func TestScan_PhotosOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"root/img_1_photo.jpg":    &fstest.MapFile{Data: []byte("a")},
		"root/img_2_activity.jpg": &fstest.MapFile{Data: []byte("b")},
	}

	opts := DefaultOptions()
	opts.Patterns = []string{PhotoPattern}

	got, err := Scan(fsys, "root", opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"img_1_photo.jpg"}) {
		t.Fatalf("unexpected result %#v", got)
	}
}

func TestScan_MaxDepth(t *testing.T) {
	fsys := fstest.MapFS{
		"root/img_1_photo.jpg":            &fstest.MapFile{Data: []byte("a")},
		"root/sub/img_2_photo.jpg":        &fstest.MapFile{Data: []byte("b")},
		"root/sub/nested/img_3_photo.jpg": &fstest.MapFile{Data: []byte("c")},
	}

	testCases := []struct {
		name     string
		maxDepth int
		want     []string
	}{
		{
			name:     "depth 0 includes only top-level",
			maxDepth: 0,
			want:     []string{"img_1_photo.jpg"},
		},
		{
			name:     "depth 1 includes one subdirectory",
			maxDepth: 1,
			want:     []string{"img_1_photo.jpg", "sub/img_2_photo.jpg"},
		},
		{
			name:     "unlimited",
			maxDepth: -1,
			want:     []string{"img_1_photo.jpg", "sub/img_2_photo.jpg", "sub/nested/img_3_photo.jpg"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.MaxDepth = tc.maxDepth

			got, err := Scan(fsys, "root", opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("unexpected result\n got: %#v\nwant: %#v", got, tc.want)
			}
		})
	}
}

func TestScanRecords_IncludesSize(t *testing.T) {
	fsys := fstest.MapFS{
		"root/img_1_photo.jpg": &fstest.MapFile{Data: []byte("abc")},
	}

	records, err := ScanRecords(fsys, "root", DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].FileSizeBytes != 3 {
		t.Fatalf("unexpected records %#v", records)
	}
}

func TestScan_InvalidOptions(t *testing.T) {
	fsys := fstest.MapFS{}

	opts := DefaultOptions()
	opts.MaxDepth = -2
	if _, err := Scan(fsys, "root", opts); err == nil {
		t.Fatalf("expected error for max depth, got nil")
	}

	opts = DefaultOptions()
	opts.Patterns = []string{"img_[_photo.jpg"}
	if _, err := Scan(fsys, "root", opts); err == nil {
		t.Fatalf("expected error for bad pattern, got nil")
	}
}

func TestScan_MissingRoot(t *testing.T) {
	if _, err := Scan(fstest.MapFS{}, "root", DefaultOptions()); err == nil {
		t.Fatalf("expected error, got nil")
	}
}
