// Package watch re-runs a function whenever a dataset directory changes.
//
// Bursts of events (an editor saving, a copy of many images) are coalesced:
// fn runs once the tree has been quiet for Options.Debounce.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period used when Options.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Dirs are the dataset subdirectories watched besides the root. The first
// one is watched recursively.
var Dirs = []string{"images", "annotations"}

// Options configure Run.
type Options struct {
	Debounce time.Duration

	// Ignore reports whether an event on path (relative to the root,
	// slash-separated) should be dropped.
	Ignore func(rel string) bool

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

// Run calls fn once, then again after every quiet period following a change
// under root, until ctx is done. An error from fn stops the loop and is
// returned; cancellation returns nil.
func Run(ctx context.Context, root string, opts Options, fn func(ctx context.Context) error) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	for i, dir := range Dirs {
		if err := addTree(w, filepath.Join(root, dir), i == 0); err != nil {
			log.Warn("directory not watched", zap.String("dir", dir), zap.Error(err))
		}
	}

	if err := fn(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(opts.Debounce)
	stopTimer(timer)
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, ok := relative(root, ev.Name)
			if !ok || ignored(rel, opts.Ignore) || ev.Op == fsnotify.Chmod {
				continue
			}
			log.Debug("change", zap.String("path", rel), zap.Stringer("op", ev.Op))
			if ev.Op.Has(fsnotify.Create) && underImages(rel) {
				// A new subdirectory of images/ must be watched too.
				if err := addTree(w, ev.Name, true); err != nil {
					log.Debug("new directory not watched", zap.String("path", rel), zap.Error(err))
				}
			}
			if ev.Op.Has(fsnotify.Create) && isWatchedDir(rel) {
				_ = addTree(w, ev.Name, rel == Dirs[0])
			}
			if pending {
				stopTimer(timer)
			}
			timer.Reset(opts.Debounce)
			pending = true

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			pending = false
			if err := fn(ctx); err != nil {
				return err
			}
		}
	}
}

// addTree watches dir and, when recursive, every directory beneath it.
func addTree(w *fsnotify.Watcher, dir string, recursive bool) error {
	if !recursive {
		return w.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != dir {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(path)
	})
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func relative(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// ignored drops temporary files of atomic rewrites and whatever the caller
// rejects.
func ignored(rel string, ignore func(string) bool) bool {
	if strings.Contains(filepath.Base(rel), ".tmp.") {
		return true
	}
	return ignore != nil && ignore(rel)
}

func underImages(rel string) bool {
	return strings.HasPrefix(rel, Dirs[0]+"/")
}

func isWatchedDir(rel string) bool {
	for _, d := range Dirs {
		if rel == d {
			return true
		}
	}
	return false
}
