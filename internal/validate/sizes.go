package validate

import (
	"errors"
	"path/filepath"

	"go.uber.org/zap"

	"cocovalidate/internal/coco"
	"cocovalidate/internal/diag"
	"cocovalidate/internal/jsonobj"
	"cocovalidate/internal/manifest"
)

var errMissingSplit = errors.New("split does not name an annotation file")

// checkSplitSizes compares each split's num_examples and num_bytes with the
// images that actually resolve on disk. The manifest is re-read because the
// manifest check may have rewritten it.
func (r *run) checkSplitSizes(splitNames []string) error {
	v := r.v
	m, err := manifest.Load(v.probe.Fs(), v.manifestPath)
	if err != nil {
		return nil
	}
	dirty := false

	for _, splitName := range splitNames {
		changed, err := r.checkSplitSize(m, splitName)
		if err != nil {
			r.log.Debug("split size check failed", zap.String("split", splitName), zap.Error(err))
			r.add(diag.Errorf(`Couldn't verify size and number of images for split "%s".`, splitName))
			continue
		}
		dirty = dirty || changed
	}

	if dirty {
		return m.Save(v.probe, v.manifestPath)
	}
	return nil
}

func (r *run) checkSplitSize(m *manifest.Manifest, splitName string) (changed bool, err error) {
	v := r.v
	split, ok := m.Split(splitName)
	if !ok || split.Entry == nil {
		return false, errMissingSplit
	}
	annFile, ok := split.DatasetName()
	if !ok {
		return false, errMissingSplit
	}
	f, err := coco.LoadImages(v.probe.Fs(), filepath.Join(v.annDir, annFile))
	if err != nil {
		return false, err
	}

	var images int64
	var bytes int64
	for _, img := range f.Images {
		size, err := r.imageSize(img.FileName)
		if err != nil {
			continue
		}
		images++
		bytes += size
	}
	r.stats = append(r.stats, SplitStat{Name: splitName, AnnotationFile: annFile, Images: int(images), Bytes: bytes})

	c1, err := r.checkSplitCount(split.Entry, splitName, images)
	if err != nil {
		return false, err
	}
	c2, err := r.checkSplitBytes(split.Entry, splitName, bytes)
	if err != nil {
		return false, err
	}
	return c1 || c2, nil
}

func (r *run) checkSplitCount(entry *jsonobj.Object, splitName string, found int64) (bool, error) {
	value, present, isInt := entry.Int(manifest.KeyNumExamples)
	switch {
	case !present:
		if !r.v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" doesn't contain an entry for "%s" for split "%s".`,
				manifest.FileName, manifest.KeyNumExamples, splitName))
			return false, nil
		}
	case !isInt:
		if !r.v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" doesn't contain a valid entry for "%s" for split "%s", %d images were found `+
				`in the dataset root directory.`, manifest.FileName, manifest.KeyNumExamples, splitName, found))
			return false, nil
		}
	case value != found:
		if !r.v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" shows %d as number of images in split "%s", but %d images were found in `+
				`the dataset root directory.`, manifest.FileName, value, splitName, found))
			return false, nil
		}
	default:
		return false, nil
	}
	return r.setSplitValue(entry, splitName, manifest.KeyNumExamples, found)
}

func (r *run) checkSplitBytes(entry *jsonobj.Object, splitName string, found int64) (bool, error) {
	value, present, isInt := entry.Int(manifest.KeyNumBytes)
	switch {
	case !present:
		if !r.v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" doesn't contain an entry for "%s" for split "%s".`,
				manifest.FileName, manifest.KeyNumBytes, splitName))
			return false, nil
		}
	case !isInt:
		if !r.v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" doesn't contain a valid entry for "%s" for split "%s", real split size was `+
				`calculated as %d B.`, manifest.FileName, manifest.KeyNumBytes, splitName, found))
			return false, nil
		}
	case value != found:
		if !r.v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" shows %d B as size of split "%s", but real split size was calculated as %d B.`,
				manifest.FileName, value, splitName, found))
			return false, nil
		}
	default:
		return false, nil
	}
	return r.setSplitValue(entry, splitName, manifest.KeyNumBytes, found)
}

func (r *run) setSplitValue(entry *jsonobj.Object, splitName, key string, value int64) (bool, error) {
	if err := entry.Set(key, value); err != nil {
		return false, err
	}
	r.log.Debug("Auto-fix: split value updated",
		zap.String("split", splitName), zap.String("key", key), zap.Int64("value", value))
	return true, nil
}
