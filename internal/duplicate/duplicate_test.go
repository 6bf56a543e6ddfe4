package duplicate_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"cocovalidate/internal/coco"
	"cocovalidate/internal/duplicate"
	"cocovalidate/internal/fsprobe"
)

func TestHashImagesBuckets(t *testing.T) {
	fsys := afero.NewMemMapFs()
	files := map[string]string{
		"/images/a.jpg":     "same",
		"/images/b.jpg":     "same",
		"/images/sub/c.jpg": "same",
		"/images/d.jpg":     "different",
	}
	for path, content := range files {
		if err := afero.WriteFile(fsys, path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	images := []coco.Image{
		{ID: 1, FileName: "a.jpg"},
		{ID: 2, FileName: "b.jpg"},
		{ID: 3, FileName: "missing.jpg"},
		{ID: 4, FileName: "d.jpg"},
		{ID: 5, FileName: "sub/c.jpg"},
	}
	ix, err := duplicate.HashImages(fsprobe.New(fsys), "/images", images)
	if err != nil {
		t.Fatalf("HashImages: %v", err)
	}
	if got := ix.DuplicateCount(); got != 2 {
		t.Errorf("DuplicateCount = %d, want 2", got)
	}
	dups := ix.Duplicates()
	if len(dups) != 1 {
		t.Fatalf("Duplicates = %d buckets, want 1", len(dups))
	}
	if diff := cmp.Diff([]int64{1, 2, 5}, dups[0].IDs); diff != "" {
		t.Errorf("bucket ids (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a.jpg", "b.jpg", "sub/c.jpg"}, dups[0].FileNames); diff != "" {
		t.Errorf("bucket names (-want +got):\n%s", diff)
	}
}

func TestHashImagesNoDuplicates(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_ = afero.WriteFile(fsys, "/images/a.jpg", []byte("1"), 0o644)
	_ = afero.WriteFile(fsys, "/images/b.jpg", []byte("2"), 0o644)
	ix, err := duplicate.HashImages(fsprobe.New(fsys), "/images", []coco.Image{
		{ID: 1, FileName: "a.jpg"}, {ID: 2, FileName: "b.jpg"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if ix.DuplicateCount() != 0 || len(ix.Duplicates()) != 0 {
		t.Errorf("expected no duplicates, got %d", ix.DuplicateCount())
	}
}

func TestDuplicateNames(t *testing.T) {
	images := []coco.Image{
		{ID: 1, FileName: "x.jpg"},
		{ID: 2, FileName: "y.jpg"},
		{ID: 3, FileName: "x.jpg"},
		{ID: 4, FileName: "z.jpg"},
		{ID: 5, FileName: "y.jpg"},
		{ID: 6, FileName: "x.jpg"},
	}
	want := []duplicate.NameCount{{FileName: "x.jpg", Count: 3}, {FileName: "y.jpg", Count: 2}}
	if diff := cmp.Diff(want, duplicate.DuplicateNames(images)); diff != "" {
		t.Errorf("DuplicateNames (-want +got):\n%s", diff)
	}
	if got := duplicate.DuplicateNames(images[:2]); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
