// Package diag holds the validator's diagnostics and its side log.
//
// A run produces an ordered, append-only list of diagnostics. Per-item
// details (which file is missing, which images leak) are too long for the
// terminal dump, so they are mirrored to a side log file instead.
package diag

import (
	"fmt"
	"strings"
)

// Severity classifies a diagnostic.
type Severity string

const (
	// SeverityCritical stops the current run; nothing after it is checked.
	SeverityCritical Severity = "critical"

	// SeverityError is recorded and blocks the validation mark.
	SeverityError Severity = "error"

	// SeverityWarning is shown to the user but does not block the mark.
	SeverityWarning Severity = "warning"

	// SeverityNote is informational only.
	SeverityNote Severity = "note"
)

// Severities lists every severity, most severe first.
var Severities = []Severity{SeverityCritical, SeverityError, SeverityWarning, SeverityNote}

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityError, SeverityWarning, SeverityNote:
		return true
	}
	return false
}

// Label is the upper-case form used in the message dump.
func (s Severity) Label() string {
	if !s.IsValid() {
		return "UNKNOWN"
	}
	return strings.ToUpper(string(s))
}

// Diagnostic is one finding.
type Diagnostic struct {
	Severity Severity `json:"type" yaml:"type"`
	Text     string   `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	return d.Severity.Label() + ": " + d.Text
}

// Errorf builds an error diagnostic.
func Errorf(format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Text: fmt.Sprintf(format, args...)}
}

// Warningf builds a warning diagnostic.
func Warningf(format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Text: fmt.Sprintf(format, args...)}
}

// Notef builds a note diagnostic.
func Notef(format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityNote, Text: fmt.Sprintf(format, args...)}
}

// Critical builds a critical diagnostic.
func Critical(text string) Diagnostic {
	return Diagnostic{Severity: SeverityCritical, Text: text}
}

// List is an ordered set of diagnostics.
type List []Diagnostic

// Count returns how many diagnostics have severity s.
func (l List) Count(s Severity) int {
	n := 0
	for _, d := range l {
		if d.Severity == s {
			n++
		}
	}
	return n
}

// Has reports whether any diagnostic has severity s.
func (l List) Has(s Severity) bool {
	return l.Count(s) > 0
}

// Filter returns the diagnostics with severity s, in order.
func (l List) Filter(s Severity) List {
	var out List
	for _, d := range l {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}
