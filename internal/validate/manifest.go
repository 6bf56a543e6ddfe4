package validate

// manifest.go: checks on dataset_infos.json.
//
// Structural problems (missing keys, missing splits, bad task template) are
// errors. Derived values (dataset_size, size_in_bytes) and the optional
// descriptive keys are warnings that auto-fix rewrites in place; those fixes
// only touch the manifest, so they never require another run.

import (
	"math"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"cocovalidate/internal/coco"
	"cocovalidate/internal/diag"
	"cocovalidate/internal/manifest"
)

// sizeTolerance is the relative tolerance for size_in_bytes.
const sizeTolerance = 1e-3

// manifestInfo is what the later checks need from the manifest.
type manifestInfo struct {
	// annFiles and splitNames are parallel: the annotation file of every
	// split that names one, in manifest order.
	annFiles   []string
	splitNames []string
	labels     []string
}

func (r *run) checkManifest() (manifestInfo, error) {
	var info manifestInfo
	v := r.v

	m, err := manifest.Load(v.probe.Fs(), v.manifestPath)
	if err != nil {
		r.add(diag.Errorf(`The "%s" file is not formatted correctly: %v.`, manifest.FileName, err))
		return info, nil
	}
	dirty := false

	for _, key := range manifest.RequiredKeys {
		if !m.Info.Has(key) {
			r.add(diag.Errorf(`"%s" is missing the "%s" key.`, manifest.FileName, key))
		}
	}

	for _, key := range manifest.OptionalKeys {
		if m.Info.Has(key) {
			continue
		}
		if !v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" is missing the "%s" key.`, manifest.FileName, key))
			continue
		}
		if err := m.Info.Set(key, ""); err != nil {
			return info, err
		}
		dirty = true
		r.log.Debug("Auto-fix: key added to manifest", zap.String("key", key))
	}

	if m.Info.Has(manifest.KeySplits) {
		r.checkSplitTable(m)
	}
	if m.Info.Has(manifest.KeyTaskTemplates) {
		info.labels = r.checkTaskTemplates(m)
	}

	for _, s := range m.Splits() {
		if name, ok := s.DatasetName(); ok {
			info.annFiles = append(info.annFiles, name)
			info.splitNames = append(info.splitNames, s.Name)
		}
	}

	images, bytes := r.countReferenced(info.annFiles)

	fix := func(key string, value int64) error {
		if err := m.Info.Set(key, value); err != nil {
			return err
		}
		dirty = true
		r.log.Debug("Auto-fix: manifest value updated", zap.String("key", key), zap.Int64("value", value))
		return nil
	}

	switch value, present, isInt := m.Info.Int(manifest.KeyDatasetSize); {
	case !present:
		if !v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" doesn't contain an entry for "%s".`, manifest.FileName, manifest.KeyDatasetSize))
		} else if err := fix(manifest.KeyDatasetSize, images); err != nil {
			return info, err
		}
	case !isInt:
		if !v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" doesn't contain a valid entry for "%s", %d were found in the "%s" directory.`,
				manifest.FileName, manifest.KeyDatasetSize, images, imagesDir))
		} else if err := fix(manifest.KeyDatasetSize, images); err != nil {
			return info, err
		}
	case value != images:
		if !v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" shows %d images in dataset, but %d were found in the "%s" directory.`,
				manifest.FileName, value, images, imagesDir))
		} else if err := fix(manifest.KeyDatasetSize, images); err != nil {
			return info, err
		}
	}

	switch value, present, isInt := m.Info.Int(manifest.KeySizeInBytes); {
	case !present:
		if !v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" doesn't contain an entry for "%s".`, manifest.FileName, manifest.KeySizeInBytes))
		} else if err := fix(manifest.KeySizeInBytes, bytes); err != nil {
			return info, err
		}
	case !isInt:
		if !v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" doesn't contain a valid entry for "%s", %d B size was calculated using the `+
				`dataset root directory.`, manifest.FileName, manifest.KeySizeInBytes, bytes))
		} else if err := fix(manifest.KeySizeInBytes, bytes); err != nil {
			return info, err
		}
	case !isClose(float64(bytes), float64(value), sizeTolerance):
		if !v.opts.AutoFix {
			r.add(diag.Warningf(`"%s" shows %dB as dataset size, but %d B size was calculated using the `+
				`dataset root directory.`, manifest.FileName, value, bytes))
		} else if err := fix(manifest.KeySizeInBytes, bytes); err != nil {
			return info, err
		}
	}

	if dirty {
		if err := m.Save(v.probe, v.manifestPath); err != nil {
			return info, err
		}
	}
	return info, nil
}

// checkSplitTable requires the train, test and validation splits, each
// naming its annotation file.
func (r *run) checkSplitTable(m *manifest.Manifest) {
	if !m.HasSplits() {
		r.add(diag.Errorf(`The "%s" entry in the "%s" file is not an object.`, manifest.KeySplits, manifest.FileName))
		return
	}
	for _, name := range manifest.RequiredSplits {
		s, ok := m.Split(name)
		if !ok {
			r.add(diag.Errorf(`Split "%s" is missing in the splits listed in the "%s" file.`, name, manifest.FileName))
			continue
		}
		if _, ok := s.DatasetName(); !ok {
			r.add(diag.Errorf(`Split "%s" is missing the "%s" key in the "%s" file.`,
				name, manifest.KeyDatasetName, manifest.FileName))
		}
	}
}

// checkTaskTemplates validates the first task template and returns its
// labels.
func (r *run) checkTaskTemplates(m *manifest.Manifest) []string {
	templates, err := m.TaskTemplates()
	if err != nil {
		r.add(diag.Errorf(`Task templates in the "%s" file are not formatted correctly: %v.`, manifest.FileName, err))
		return nil
	}
	if len(templates) == 0 {
		r.add(diag.Errorf(`Task templates in the "%s" file is empty.`, manifest.FileName))
		return nil
	}
	t := templates[0]

	if !t.Has(manifest.KeyTask) {
		r.add(diag.Errorf(`Task templates in the "%s" is missing the "%s" key.`, manifest.FileName, manifest.KeyTask))
	} else {
		task, ok := t.String(manifest.KeyTask)
		if !ok {
			raw, _ := t.Raw(manifest.KeyTask)
			task = string(raw)
		}
		if !ok || !slices.Contains(manifest.TaskKinds, task) {
			r.add(diag.Errorf(`Found unexpected value of "%s" in the "task_templates/task" field inside the "%s" file. `+
				`Expected either "classification", "detection" or "keypoints".`, task, manifest.FileName))
		}
	}

	labels, ok, err := manifest.Labels(t)
	switch {
	case err != nil:
		r.add(diag.Errorf(`Task templates in the "%s" has a malformed "%s" key: %v.`, manifest.FileName, manifest.KeyLabels, err))
		return nil
	case !ok:
		r.add(diag.Errorf(`Task templates in the "%s" is missing the "%s" key.`, manifest.FileName, manifest.KeyLabels))
		return nil
	}
	return labels
}

// countReferenced totals images[] entries and the bytes of their files over
// every annotation file that exists. Only images[] is read; files without a
// readable images[] count as empty and the annotation checks report them.
func (r *run) countReferenced(annFiles []string) (images, bytes int64) {
	v := r.v
	for _, name := range annFiles {
		path := filepath.Join(v.annDir, name)
		if !v.probe.Exists(path) {
			continue
		}
		f, err := coco.LoadImages(v.probe.Fs(), path)
		if err != nil {
			r.log.Debug("annotation file skipped while counting", zap.String("file", name), zap.Error(err))
			continue
		}
		images += int64(len(f.Images))
		for _, img := range f.Images {
			size, err := r.imageSize(img.FileName)
			if err == nil {
				bytes += size
			}
		}
	}
	return images, bytes
}

// imageSize is the size of an image file, or an error when it does not
// resolve under images/.
func (r *run) imageSize(fileName string) (int64, error) {
	return r.v.probe.Size(filepath.Join(r.v.imageDir, fileName))
}

// isClose reports whether a and b agree within a relative tolerance.
func isClose(a, b, rel float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= rel*math.Max(math.Abs(a), math.Abs(b))
}
