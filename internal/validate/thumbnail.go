package validate

import (
	"path/filepath"

	"go.uber.org/zap"

	"cocovalidate/internal/diag"
)

// checkThumbnail requires <root>/thumbnail.jpg. With auto-fix the first
// image found under images/ is copied into place.
func (r *run) checkThumbnail() error {
	v := r.v
	thumb := filepath.Join(v.opts.Root, thumbnailName)
	if v.probe.Exists(thumb) {
		return nil
	}
	if !v.opts.AutoFix {
		r.add(diag.Warningf(`The dataset is missing the "%s" file. Pick one image from the dataset, `+
			`name it as "%s" and place it inside the dataset root directory.`, thumbnailName, thumbnailName))
		return nil
	}

	src, ok, err := v.probe.FirstFile(v.imageDir, v.settings.ImageExtensions)
	if err != nil || !ok {
		if err != nil {
			r.log.Debug("thumbnail source lookup failed", zap.Error(err))
		}
		r.add(diag.Errorf("Couldn't find any image to serve as a thumbnail for the dataset."))
		return nil
	}
	if err := v.probe.CopyFile(src, thumb); err != nil {
		r.log.Warn("thumbnail copy failed", zap.String("source", src), zap.Error(err))
		r.add(diag.Errorf("Couldn't find any image to serve as a thumbnail for the dataset."))
		return nil
	}
	r.log.Debug("Auto-fix: thumbnail generated automatically from image", zap.String("image", src))
	return nil
}
