package validate

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"cocovalidate/internal/coco"
	"cocovalidate/internal/diag"
	"cocovalidate/internal/manifest"
	"cocovalidate/internal/repair"
)

// checkAnnotations validates every split's COCO file against the images on
// disk, then looks for duplicates inside each file and leakage between them.
func (r *run) checkAnnotations(ctx context.Context, info manifestInfo) error {
	v := r.v
	required := !v.opts.SkipAnnotations

	if !v.probe.Exists(v.annDir) && required {
		r.add(diag.Errorf(`The "%s" folder is missing.`, annotationsDir))
		if !v.probe.Exists(v.imageDir) {
			r.add(diag.Errorf(`The "%s" folder is missing.`, imagesDir))
		}
		return nil
	}
	if !v.probe.Exists(v.imageDir) {
		r.add(diag.Errorf(`The "%s" folder is missing.`, imagesDir))
		return nil
	}
	if !required {
		return nil
	}

	for _, name := range info.annFiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(v.annDir, name)
		if !v.probe.Exists(path) {
			r.add(diag.Errorf(`The annotation file "%s" listed in "%s" is missing in the "%s" folder.`,
				name, manifest.FileName, annotationsDir))
			continue
		}
		if err := r.checkCOCO(path, info.labels); err != nil {
			return err
		}
	}

	for _, name := range info.annFiles {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.checkDuplicateImages(filepath.Join(v.annDir, name)); err != nil {
			return err
		}
	}
	for _, name := range info.annFiles {
		if err := r.checkDuplicateNames(filepath.Join(v.annDir, name)); err != nil {
			return err
		}
	}

	for i := range info.annFiles {
		for j := i + 1; j < len(info.annFiles); j++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.checkLeakage(info.annFiles[i], info.annFiles[j], info.splitNames[i], info.splitNames[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkCOCO validates one annotation file: its categories against the
// manifest labels, its images against the disk, and its id tables.
func (r *run) checkCOCO(path string, labels []string) error {
	v := r.v
	name := filepath.Base(path)

	f, err := coco.Load(v.probe.Fs(), path)
	if err != nil {
		r.add(diag.Errorf(`The annotation file "%s" is not formatted correctly: %v.`, name, err))
		return nil
	}

	if !sameSet(f.CategoryNames(), labels) {
		r.add(diag.Errorf(`The category names in the annotation file "%s" do not match the label names in the "%s" file.`,
			name, manifest.FileName))
	}

	var missing []string
	for _, img := range f.Images {
		if !v.probe.Exists(filepath.Join(v.imageDir, img.FileName)) {
			missing = append(missing, img.FileName)
		}
	}
	if len(missing) > 0 {
		r.add(diag.Errorf(`The annotation file "%s" contains %d images that are not found in the "%s" folder.`,
			name, len(missing), imagesDir))
		lines := make([]string, len(missing))
		for i, m := range missing {
			lines[i] = fmt.Sprintf(`Image "%s" from the "%s" annotation file is missing.`, m, name)
		}
		r.detail(lines...)
	}

	if unannotated := f.Unannotated(); len(unannotated) > 0 {
		ok, err := v.gate.Allow(fmt.Sprintf(
			`Auto-fix: remove all images without annotations from the "%s" annotation file? (y/n):`, name))
		if err != nil {
			return err
		}
		if ok {
			if err := r.dropUnannotated(f, path); err != nil {
				return err
			}
		} else {
			r.add(diag.Warningf(`The annotation file "%s" contains %d images that don't have corresponding annotations.`,
				name, len(unannotated)))
			lines := make([]string, len(unannotated))
			for i, img := range unannotated {
				lines[i] = fmt.Sprintf(`Image "%s" from the "%s" annotation file doesn't have any annotations.`,
					img.FileName, name)
			}
			r.detail(lines...)
		}
	}

	if coco.HasDuplicates(f.CategoryIDs()) {
		r.add(diag.Errorf(`The annotation file "%s" contains duplicate category IDs. `+
			`Verify that all categories[N].id are unique.`, name))
	}
	if coco.HasDuplicates(f.ImageIDs()) {
		r.add(diag.Errorf(`The annotation file "%s" contains duplicate image IDs. `+
			`Verify that all images[N].id are unique.`, name))
	}
	if coco.HasDuplicates(f.AnnotationIDs()) {
		r.add(diag.Errorf(`The annotation file "%s" contains duplicate annotation IDs. `+
			`Verify that all annotations[N].id are unique.`, name))
	}

	imageRefs := make([]int64, len(f.Annotations))
	categoryRefs := make([]int64, len(f.Annotations))
	for i, a := range f.Annotations {
		imageRefs[i] = a.ImageID
		categoryRefs[i] = a.CategoryID
	}
	if bad := coco.Missing(imageRefs, f.ImageIDs()); bad != nil {
		r.add(diag.Errorf(`The annotation file "%s" contains annotations with non-existent image IDs: %s. `+
			`Verify all values of annotations[N].image_id are listed under images[M].id in "%s".`,
			name, pyInts(bad), name))
	}
	if bad := coco.Missing(categoryRefs, f.CategoryIDs()); bad != nil {
		r.add(diag.Errorf(`The annotation file "%s" contains annotations with non-existent category IDs: %s, `+
			`where the allowed values are %s. Verify all values of annotations[N].category_id are listed under `+
			`categories[M].id in "%s".`, name, pyInts(bad), pyInts(f.CategoryIDs()), name))
	}
	return nil
}

// dropUnannotated removes unannotated images from f and from disk, then
// re-reads the file to confirm none remain.
func (r *run) dropUnannotated(f *coco.File, path string) error {
	v := r.v
	plan := repair.DropUnannotated(f)
	for _, name := range plan.Delete {
		if err := v.probe.Remove(filepath.Join(v.imageDir, name)); err != nil {
			return err
		}
	}
	if err := f.Save(v.probe, path); err != nil {
		return err
	}
	reloaded, err := coco.Load(v.probe.Fs(), path)
	if err != nil {
		return fmt.Errorf("%w: reread %s: %v", repair.ErrRepairFailed, filepath.Base(path), err)
	}
	if err := repair.VerifyAnnotated(reloaded); err != nil {
		return err
	}
	r.fixed("removed all images without annotations",
		zap.String("file", filepath.Base(path)), zap.Int("images", len(plan.Removed)), zap.Int("deleted", len(plan.Delete)))
	return nil
}

func sameSet(set map[string]bool, items []string) bool {
	other := make(map[string]bool, len(items))
	for _, it := range items {
		other[it] = true
	}
	if len(other) != len(set) {
		return false
	}
	for k := range set {
		if !other[k] {
			return false
		}
	}
	return true
}
