// Package repair implements the auto-fix operations applied to a COCO file.
//
// The operations are pure over a *coco.File: they edit the in-memory tables
// and return a Plan naming the image files that should be deleted from disk.
// Writing the file back and deleting images is the caller's job, which keeps
// every operation testable without a filesystem.
package repair

import (
	"errors"
	"fmt"

	"cocovalidate/internal/coco"
	"cocovalidate/internal/duplicate"
	"cocovalidate/internal/prompt"
)

// ErrRepairFailed is returned when a repair ran but the invariant it should
// have restored still does not hold.
var ErrRepairFailed = errors.New("auto-fix: failure")

// Gate decides whether a repair may touch the disk.
type Gate struct {
	// AutoFix enables repairs at all.
	AutoFix bool

	// Prompt asks Confirmer before each repair. When false every repair is
	// authorized.
	Prompt bool

	Confirmer prompt.Confirmer
}

// Allow reports whether the repair described by question may run.
func (g Gate) Allow(question string) (bool, error) {
	if !g.AutoFix {
		return false, nil
	}
	if !g.Prompt {
		return true, nil
	}
	if g.Confirmer == nil {
		return false, nil
	}
	return g.Confirmer.Confirm(question)
}

// Plan is the outcome of one repair.
type Plan struct {
	// Removed holds the images[] entries that were dropped, in file order.
	Removed []coco.Image

	// Delete lists file names (relative to images/) to remove from disk. A
	// name still referenced by a surviving image is never listed.
	Delete []string

	// Redirected counts annotations that were moved to another image.
	Redirected int
}

// Changed reports whether the repair edited the file.
func (p Plan) Changed() bool {
	return len(p.Removed) > 0 || p.Redirected > 0
}

// DropUnannotated removes every image no annotation points at.
func DropUnannotated(f *coco.File) Plan {
	drop := make(map[int64]bool)
	for _, img := range f.Unannotated() {
		drop[img.ID] = true
	}
	if len(drop) == 0 {
		return Plan{}
	}
	removed := f.RemoveImages(func(img coco.Image) bool { return drop[img.ID] })
	return Plan{Removed: removed, Delete: orphans(f, removed)}
}

// VerifyAnnotated fails with ErrRepairFailed when f still holds images
// without annotations.
func VerifyAnnotated(f *coco.File) error {
	if n := len(f.Unannotated()); n > 0 {
		return fmt.Errorf("%w: %d images without annotations remain", ErrRepairFailed, n)
	}
	return nil
}

// DedupeByHash collapses each bucket of identical images onto its first
// image. Annotations of the other images are redirected to the survivor and
// their entries are removed. Entries sharing the survivor's file name, or
// its id, are left alone: they are not separate copies on disk.
func DedupeByHash(f *coco.File, buckets []duplicate.Bucket) Plan {
	var plan Plan
	for _, b := range buckets {
		if len(b.IDs) < 2 {
			continue
		}
		survivor, ok := imageByID(f, b.IDs[0])
		if !ok {
			continue
		}
		for _, victimID := range b.IDs[1:] {
			if victimID == survivor.ID {
				continue
			}
			victim, ok := imageWith(f, func(img coco.Image) bool {
				return img.ID == victimID && img.FileName != survivor.FileName
			})
			if !ok {
				continue
			}
			plan.Redirected += f.RedirectAnnotations(victim.ID, survivor.ID)
			plan.Removed = append(plan.Removed, f.RemoveImages(func(img coco.Image) bool {
				return img.ID == victim.ID
			})...)
		}
	}
	plan.Delete = orphans(f, plan.Removed)
	return plan
}

// DedupeByName keeps the first images[] entry of every repeated file name
// and drops the rest, redirecting their annotations to the kept entry. No
// file is deleted since the kept entry still references it.
func DedupeByName(f *coco.File) Plan {
	var plan Plan
	kept := make(map[string]int64)
	plan.Removed = f.RemoveImages(func(img coco.Image) bool {
		id, seen := kept[img.FileName]
		if !seen {
			kept[img.FileName] = img.ID
			return false
		}
		plan.Redirected += f.RedirectAnnotations(img.ID, id)
		return true
	})
	return plan
}

func imageByID(f *coco.File, id int64) (coco.Image, bool) {
	return imageWith(f, func(img coco.Image) bool { return img.ID == id })
}

func imageWith(f *coco.File, match func(coco.Image) bool) (coco.Image, bool) {
	for _, img := range f.Images {
		if match(img) {
			return img, true
		}
	}
	return coco.Image{}, false
}

// orphans returns the distinct file names of removed images that no image
// left in f references, in removal order.
func orphans(f *coco.File, removed []coco.Image) []string {
	live := make(map[string]bool, len(f.Images))
	for _, img := range f.Images {
		live[img.FileName] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, img := range removed {
		if live[img.FileName] || seen[img.FileName] {
			continue
		}
		seen[img.FileName] = true
		out = append(out, img.FileName)
	}
	return out
}
