// Package leakage detects images shared between two dataset splits.
//
// Leakage is measured against the smaller split. A pair that involves
// "train" is an error above Thresholds.Train; a test/validation pair is an
// error above Thresholds.TestVal; anything else that leaks is a note.
package leakage

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"cocovalidate/internal/diag"
)

// Thresholds are leak ratios above which a pair is reported as an error.
type Thresholds struct {
	Train   float64
	TestVal float64
}

// DefaultThresholds are 3% for pairs with train and 5% for test/validation.
var DefaultThresholds = Thresholds{Train: 0.03, TestVal: 0.05}

// Split is the image file names of one split.
type Split struct {
	Name      string
	FileNames []string
}

// Finding describes the leakage between two splits.
type Finding struct {
	A, B     string
	Leaked   []string // sorted
	Smaller  string
	Ratio    float64
	Severity diag.Severity
}

// Detect intersects the file names of a and b. ok is false when nothing
// leaks.
func Detect(a, b Split, th Thresholds) (f Finding, ok bool) {
	inA := make(map[string]bool, len(a.FileNames))
	for _, n := range a.FileNames {
		inA[n] = true
	}
	seen := make(map[string]bool)
	var leaked []string
	for _, n := range b.FileNames {
		if inA[n] && !seen[n] {
			seen[n] = true
			leaked = append(leaked, n)
		}
	}
	if len(leaked) == 0 {
		return Finding{}, false
	}
	sort.Strings(leaked)

	smaller := b.Name
	if len(a.FileNames) < len(b.FileNames) {
		smaller = a.Name
	}
	ratio := float64(len(leaked)) / float64(min(len(a.FileNames), len(b.FileNames)))

	return Finding{
		A:        a.Name,
		B:        b.Name,
		Leaked:   leaked,
		Smaller:  smaller,
		Ratio:    ratio,
		Severity: severity(a.Name, b.Name, ratio, th),
	}, true
}

func severity(a, b string, ratio float64, th Thresholds) diag.Severity {
	names := map[string]bool{strings.ToLower(a): true, strings.ToLower(b): true}
	if ratio > th.Train && names["train"] {
		return diag.SeverityError
	}
	if ratio > th.TestVal && names["test"] && (names["val"] || names["validation"]) {
		return diag.SeverityError
	}
	return diag.SeverityNote
}

// Diagnostic renders the finding as one diagnostic.
func (f Finding) Diagnostic() diag.Diagnostic {
	return diag.Diagnostic{
		Severity: f.Severity,
		Text: fmt.Sprintf("Leakage was found between the %q and %q dataset splits as %d images "+
			"(which represents %s%% of the smaller %q split) are duplicated between them.",
			f.A, f.B, len(f.Leaked), Percent(f.Ratio), f.Smaller),
	}
}

// LogLines returns one side-log line per leaked image.
func (f Finding) LogLines() []string {
	out := make([]string, len(f.Leaked))
	for i, name := range f.Leaked {
		out[i] = fmt.Sprintf("Image %q is contained in both the %q and %q split.", name, f.A, f.B)
	}
	return out
}

// Percent renders ratio as a percentage rounded to two decimals, always with
// a fractional part: 0.1 -> "10.0", 0.12346 -> "12.35".
func Percent(ratio float64) string {
	p := math.Round(ratio*100*100) / 100
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
