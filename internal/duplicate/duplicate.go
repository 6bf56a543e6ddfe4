// Package duplicate finds repeated images inside one annotation file, either
// by content (SHA-256 of the image bytes) or by file name.
package duplicate

import (
	"fmt"
	"path/filepath"

	"cocovalidate/internal/coco"
	"cocovalidate/internal/fsprobe"
)

// Bucket groups the images whose files hash to the same digest, in the order
// they appear in images[].
type Bucket struct {
	Hash      string
	IDs       []int64
	FileNames []string
}

// Index is a content-addressed view of the images of one COCO file.
type Index struct {
	buckets []*Bucket
	byHash  map[string]*Bucket
}

// HashImages hashes every image whose file exists under imageDir. Images
// whose files are missing are skipped; a read failure on an existing file is
// returned.
func HashImages(p *fsprobe.Probe, imageDir string, images []coco.Image) (*Index, error) {
	ix := &Index{byHash: make(map[string]*Bucket)}
	for _, img := range images {
		path := filepath.Join(imageDir, img.FileName)
		if !p.IsFile(path) {
			continue
		}
		sum, err := p.HashFile(path)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", img.ID, err)
		}
		b, ok := ix.byHash[sum]
		if !ok {
			b = &Bucket{Hash: sum}
			ix.byHash[sum] = b
			ix.buckets = append(ix.buckets, b)
		}
		b.IDs = append(b.IDs, img.ID)
		b.FileNames = append(b.FileNames, img.FileName)
	}
	return ix, nil
}

// DuplicateCount is the number of images beyond the first in every bucket.
func (ix *Index) DuplicateCount() int {
	n := 0
	for _, b := range ix.buckets {
		n += len(b.IDs) - 1
	}
	return n
}

// Duplicates returns the buckets holding two or more images.
func (ix *Index) Duplicates() []Bucket {
	var out []Bucket
	for _, b := range ix.buckets {
		if len(b.IDs) > 1 {
			out = append(out, *b)
		}
	}
	return out
}

// NameCount is a file name that occurs more than once in images[].
type NameCount struct {
	FileName string
	Count    int
}

// DuplicateNames counts file_name occurrences and returns the repeated ones
// in order of first appearance.
func DuplicateNames(images []coco.Image) []NameCount {
	counts := make(map[string]int, len(images))
	var order []string
	for _, img := range images {
		if counts[img.FileName] == 0 {
			order = append(order, img.FileName)
		}
		counts[img.FileName]++
	}
	var out []NameCount
	for _, name := range order {
		if counts[name] > 1 {
			out = append(out, NameCount{FileName: name, Count: counts[name]})
		}
	}
	return out
}
