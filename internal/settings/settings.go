package settings

// settings.go: validator configuration loaded from .cocovalidate/settings.yaml.
//
// Every field is optional; whatever the file leaves out keeps its default.
// The signature deny list uses the same rule syntax as a permission list:
// bare globs ("cache/**") or globs wrapped in a Read() verb
// ("Read(./cache/**)").

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"cocovalidate/internal/diag"
)

// Dir is the per-dataset settings directory, relative to the dataset root.
const Dir = ".cocovalidate"

// Settings holds validator configuration.
type Settings struct {
	Thresholds Thresholds `yaml:"thresholds"`

	// MaxRuns bounds the validate/repair loop.
	MaxRuns int `yaml:"max_runs"`

	// LogFile is the side log's file name inside the working directory.
	LogFile string `yaml:"log_file"`

	// ImageExtensions are the extensions eligible as a thumbnail source.
	ImageExtensions []string `yaml:"image_extensions"`

	Signature Signature `yaml:"signature"`
}

// Thresholds are the leak ratios above which split leakage is an error.
type Thresholds struct {
	TrainLeak   float64 `yaml:"train_leak"`
	TestValLeak float64 `yaml:"test_val_leak"`
}

// Signature controls which files feed the dataset signature.
type Signature struct {
	// Deny is a list of glob patterns for files left out of the signature.
	// Example: ["Read(./cache/**)", "*.tmp"]
	Deny []string `yaml:"deny"`
}

// Default returns the built-in configuration.
func Default() *Settings {
	return &Settings{
		Thresholds:      Thresholds{TrainLeak: 0.03, TestValLeak: 0.05},
		MaxRuns:         10,
		LogFile:         diag.DefaultLogFile,
		ImageExtensions: []string{".png", ".jpg", ".jpeg", ".bmp", ".gif"},
	}
}

// DefaultPath is where Load looks when no explicit file is given.
func DefaultPath(root string) string {
	return filepath.Join(root, Dir, "settings.yaml")
}

// Load reads the settings file at path on top of Default. A missing file is
// not an error and yields the defaults.
func Load(fsys afero.Fs, path string) (*Settings, error) {
	s := Default()
	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate rejects values the validator cannot work with.
func (s *Settings) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		"thresholds.train_leak":    s.Thresholds.TrainLeak,
		"thresholds.test_val_leak": s.Thresholds.TestValLeak,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", name, v))
		}
	}
	if s.MaxRuns < 1 {
		errs = append(errs, fmt.Errorf("max_runs must be at least 1, got %d", s.MaxRuns))
	}
	if s.LogFile == "" || strings.ContainsAny(s.LogFile, `/\`) {
		errs = append(errs, fmt.Errorf("log_file must be a plain file name, got %q", s.LogFile))
	}
	for _, ext := range s.ImageExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("image extension %q must start with a dot", ext))
		}
	}
	for _, rule := range s.Signature.Deny {
		if _, err := path.Match(parseDenyRule(rule), ""); err != nil {
			errs = append(errs, fmt.Errorf("deny rule %q: %w", rule, err))
		}
	}
	return errors.Join(errs...)
}

// IsDenied reports whether relPath (forward-slash, relative to the dataset
// root) matches any deny rule. Safe to call on a nil *Settings receiver.
func (s *Settings) IsDenied(relPath string) bool {
	if s == nil {
		return false
	}
	for _, rule := range s.Signature.Deny {
		if matchDenyPattern(parseDenyRule(rule), relPath) {
			return true
		}
	}
	return false
}

// ExcludeFromSignature reports whether relPath stays out of the dataset
// signature: the side log, the settings directory, and anything denied.
func (s *Settings) ExcludeFromSignature(relPath string) bool {
	logFile := diag.DefaultLogFile
	if s != nil && s.LogFile != "" {
		logFile = s.LogFile
	}
	if relPath == logFile || matchDenyPattern(Dir+"/**", relPath) {
		return true
	}
	return s.IsDenied(relPath)
}

// parseDenyRule extracts the path glob from a deny rule.
//
//	"Read(./cache/**)" → "cache/**"
//	"cache/**"         → "cache/**"
func parseDenyRule(rule string) string {
	if strings.HasPrefix(rule, "Read(") && strings.HasSuffix(rule, ")") {
		rule = rule[5 : len(rule)-1]
	}
	return strings.TrimPrefix(rule, "./")
}

// matchDenyPattern reports whether p matches a deny glob pattern.
//
// "prefix/**" matches the prefix directory itself and every path beneath it.
// All other patterns use path.Match semantics (single * does not cross /).
func matchDenyPattern(pattern, p string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}
	matched, _ := path.Match(pattern, p)
	return matched
}
