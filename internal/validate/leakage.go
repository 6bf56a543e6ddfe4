package validate

import (
	"path/filepath"

	"go.uber.org/zap"

	"cocovalidate/internal/coco"
	"cocovalidate/internal/leakage"
)

// checkLeakage compares the image file names of two splits. Only images[]
// is read; a file without one produces no diagnostic.
func (r *run) checkLeakage(fileA, fileB, splitA, splitB string) error {
	v := r.v
	a, err := coco.LoadImages(v.probe.Fs(), filepath.Join(v.annDir, fileA))
	if err != nil {
		r.log.Debug("leakage check skipped", zap.String("file", fileA), zap.Error(err))
		return nil
	}
	b, err := coco.LoadImages(v.probe.Fs(), filepath.Join(v.annDir, fileB))
	if err != nil {
		r.log.Debug("leakage check skipped", zap.String("file", fileB), zap.Error(err))
		return nil
	}

	th := leakage.Thresholds{Train: v.settings.Thresholds.TrainLeak, TestVal: v.settings.Thresholds.TestValLeak}
	finding, ok := leakage.Detect(
		leakage.Split{Name: splitA, FileNames: a.FileNames()},
		leakage.Split{Name: splitB, FileNames: b.FileNames()},
		th,
	)
	if !ok {
		return nil
	}
	r.detail(finding.LogLines()...)
	r.add(finding.Diagnostic())
	return nil
}
