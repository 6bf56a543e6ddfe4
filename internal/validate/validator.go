// Package validate checks a COCO dataset directory and, when allowed,
// repairs it.
//
// A Validator performs single runs (Run) and drives them to a verdict
// (Validate). Every run derives its state from disk, so a run that repaired
// something asks for another run instead of patching its own findings.
//
// Dataset layout:
//
//	<root>/dataset_infos.json     manifest
//	<root>/thumbnail.jpg
//	<root>/images/**              image files, addressed by images[].file_name
//	<root>/annotations/<split>    one COCO file per split
package validate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"cocovalidate/internal/diag"
	"cocovalidate/internal/fsprobe"
	"cocovalidate/internal/manifest"
	"cocovalidate/internal/prompt"
	"cocovalidate/internal/repair"
	"cocovalidate/internal/settings"
	"cocovalidate/internal/signature"
)

// ErrNoDataset is returned by New when the dataset root does not exist.
var ErrNoDataset = errors.New("dataset path does not exist")

const (
	imagesDir      = "images"
	annotationsDir = "annotations"
	thumbnailName  = "thumbnail.jpg"
)

// Options configure a Validator.
type Options struct {
	// Root is the dataset directory.
	Root string

	// WorkDir holds the side log. Empty disables the side log.
	WorkDir string

	AutoFix       bool
	AutoFixPrompt bool

	// SkipAnnotations skips every check on annotation files and images.
	SkipAnnotations bool

	// Settings defaults to settings.Default().
	Settings *settings.Settings

	// Confirmer answers auto-fix questions when AutoFixPrompt is set.
	Confirmer prompt.Confirmer

	// Signer defaults to a signature.TreeSigner honoring Settings.
	Signer signature.Signer

	// Logger defaults to zap.NewNop().
	Logger *zap.Logger

	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

// Validator validates one dataset.
type Validator struct {
	opts     Options
	settings *settings.Settings
	probe    *fsprobe.Probe
	side     *diag.SideLog
	gate     repair.Gate
	signer   signature.Signer
	log      *zap.Logger
	runID    string

	imageDir     string
	annDir       string
	manifestPath string
}

// New returns a Validator for opts.Root.
func New(opts Options) (*Validator, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	probe := fsprobe.New(opts.Fs)
	if !probe.Exists(opts.Root) {
		return nil, fmt.Errorf("%w: %s", ErrNoDataset, opts.Root)
	}
	s := opts.Settings
	if s == nil {
		s = settings.Default()
	}
	signer := opts.Signer
	if signer == nil {
		signer = signature.TreeSigner{Exclude: s.ExcludeFromSignature}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sidePath := ""
	if opts.WorkDir != "" {
		sidePath = filepath.Join(opts.WorkDir, s.LogFile)
	}
	runID := uuid.NewString()

	return &Validator{
		opts:     opts,
		settings: s,
		probe:    probe,
		side:     diag.NewSideLog(opts.Fs, sidePath),
		gate: repair.Gate{
			AutoFix:   opts.AutoFix,
			Prompt:    opts.AutoFixPrompt,
			Confirmer: opts.Confirmer,
		},
		signer:       signer,
		log:          logger.With(zap.String("run_id", runID)),
		runID:        runID,
		imageDir:     filepath.Join(opts.Root, imagesDir),
		annDir:       filepath.Join(opts.Root, annotationsDir),
		manifestPath: filepath.Join(opts.Root, manifest.FileName),
	}, nil
}

// RunID identifies this Validator in logs and reports.
func (v *Validator) RunID() string { return v.runID }

// LogPath is the side log path, or "" when the side log is disabled.
func (v *Validator) LogPath() string { return v.side.Path() }

// ResetLog empties the side log, creating the working directory if needed.
func (v *Validator) ResetLog() error {
	if !v.side.Enabled() {
		return nil
	}
	if err := v.opts.Fs.MkdirAll(v.opts.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}
	return v.side.Truncate()
}

// SplitStat is a split's image count and byte size as found on disk.
type SplitStat struct {
	Name           string
	AnnotationFile string
	Images         int
	Bytes          int64
}

// Result is the outcome of one run.
type Result struct {
	Diagnostics diag.List

	// Restart is set when a repair changed the dataset and the findings of
	// this run may be stale.
	Restart bool

	Stats []SplitStat
}

// Run performs one validation pass. Findings about the dataset are returned
// as diagnostics; the error is reserved for failures of the validator itself
// (a repair that did not hold, cancellation).
func (v *Validator) Run(ctx context.Context) (Result, error) {
	r := &run{v: v, log: v.log}
	err := r.exec(ctx)
	return Result{Diagnostics: r.diags, Restart: r.restart, Stats: r.stats}, err
}

// run is the state of a single pass.
type run struct {
	v       *Validator
	log     *zap.Logger
	diags   diag.List
	restart bool
	stats   []SplitStat
}

func (r *run) exec(ctx context.Context) error {
	v := r.v
	if !v.probe.IsFile(v.manifestPath) {
		r.add(diag.Errorf(`"%s" does not exist`, manifest.FileName))
		r.add(diag.Critical("^^^^^ Validation stopped due to a critical error"))
		return nil
	}

	if err := r.checkThumbnail(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := r.checkManifest()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.checkAnnotations(ctx, info); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.checkSplitSizes(info.splitNames)
}

func (r *run) add(d diag.Diagnostic) {
	r.diags = append(r.diags, d)
}

// detail mirrors per-item lines to the side log. A log that cannot be
// written loses the lines but not the diagnostic they explain.
func (r *run) detail(lines ...string) {
	if err := r.v.side.Append(lines...); err != nil {
		r.log.Warn("Log file not found or can't be opened", zap.String("path", r.v.side.Path()), zap.Error(err))
	}
}

// fixed records that a repair changed the dataset.
func (r *run) fixed(msg string, fields ...zap.Field) {
	r.restart = true
	r.log.Debug("Auto-fix: "+msg, fields...)
}

// pyInts renders ids the way a list literal prints: [1, 2].
func pyInts(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// pyStrings renders names as a quoted list literal: ['a.jpg', 'b.jpg'].
func pyStrings(names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = "'" + n + "'"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
