package validate

// duplicates.go: repeated images inside one annotation file.
//
// Detection reads only images[]. A repair needs the whole file; when the
// rest of it does not parse, the repair is skipped and the warning stands.
// A file without a readable images[] is skipped silently because the COCO
// check already reported it.

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"cocovalidate/internal/coco"
	"cocovalidate/internal/diag"
	"cocovalidate/internal/duplicate"
	"cocovalidate/internal/repair"
)

// checkDuplicateImages finds images with identical content under different
// entries.
func (r *run) checkDuplicateImages(path string) error {
	v := r.v
	name := filepath.Base(path)

	f, err := coco.LoadImages(v.probe.Fs(), path)
	if err != nil {
		return nil
	}
	ix, err := duplicate.HashImages(v.probe, v.imageDir, f.Images)
	if err != nil {
		r.log.Warn("duplicate check skipped", zap.String("file", name), zap.Error(err))
		return nil
	}
	count := ix.DuplicateCount()
	if count == 0 {
		return nil
	}
	buckets := ix.Duplicates()

	ok, err := v.gate.Allow("Auto-fix: Do you want to delete duplicate images from your dataset? (y/n): ")
	if err != nil {
		return err
	}
	if ok {
		if full := r.loadForRepair(path); full != nil {
			plan := repair.DedupeByHash(full, buckets)
			if plan.Changed() {
				for _, img := range plan.Delete {
					if err := v.probe.Remove(filepath.Join(v.imageDir, img)); err != nil {
						return err
					}
				}
				if err := full.Save(v.probe, path); err != nil {
					return err
				}
				r.fixed("removed duplicate images",
					zap.String("file", name), zap.Int("images", len(plan.Removed)), zap.Int("redirected", plan.Redirected))
				return nil
			}
			// Only entries sharing a file name collided; the name check handles them.
		}
	}

	lines := make([]string, len(buckets))
	for i, b := range buckets {
		lines[i] = fmt.Sprintf("Images %s are duplicate.", pyStrings(b.FileNames))
	}
	r.detail(lines...)
	r.add(diag.Warningf(`There are %d duplicate images (with same content, but different name) in your dataset. `+
		`Check the "dataset validator log" file in the Dataset Analysis job to see details about those images.`, count))
	return nil
}

// checkDuplicateNames finds file names listed more than once in images[].
func (r *run) checkDuplicateNames(path string) error {
	v := r.v
	name := filepath.Base(path)

	f, err := coco.LoadImages(v.probe.Fs(), path)
	if err != nil {
		return nil
	}
	dups := duplicate.DuplicateNames(f.Images)
	if len(dups) == 0 {
		return nil
	}

	ok, err := v.gate.Allow(fmt.Sprintf(`Auto-fix: Do you want to delete duplicate images in split "%s"? (y/n): `, name))
	if err != nil {
		return err
	}
	if ok {
		if full := r.loadForRepair(path); full != nil {
			plan := repair.DedupeByName(full)
			if err := full.Save(v.probe, path); err != nil {
				return err
			}
			r.fixed("removed repeated image entries",
				zap.String("file", name), zap.Int("images", len(plan.Removed)), zap.Int("redirected", plan.Redirected))
			return nil
		}
	}

	lines := make([]string, len(dups))
	for i, d := range dups {
		lines[i] = fmt.Sprintf(`Image "%s" is duplicated %d times in the "%s" annotation file.`, d.FileName, d.Count, name)
	}
	r.detail(lines...)
	r.add(diag.Warningf("%d images are duplicated in the %s annotation file.", len(dups), name))
	return nil
}

// loadForRepair reads the whole annotation file, or returns nil when it does
// not parse.
func (r *run) loadForRepair(path string) *coco.File {
	f, err := coco.Load(r.v.probe.Fs(), path)
	if err != nil {
		r.log.Debug("repair skipped", zap.String("file", filepath.Base(path)), zap.Error(err))
		return nil
	}
	return f
}
