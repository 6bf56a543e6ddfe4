package report

// markdown.go: the --report document.
//
// The frontmatter carries the machine-readable verdict; the body lists the
// per-split statistics and the diagnostics grouped by severity. Rendering is
// pure; WriteMarkdown only adds the atomic write.

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"cocovalidate/internal/diag"
	"cocovalidate/internal/fsprobe"
)

// Summary is the report frontmatter.
type Summary struct {
	Dataset     string `yaml:"dataset"`
	RunID       string `yaml:"run_id"`
	Runs        int    `yaml:"runs"`
	Valid       bool   `yaml:"valid"`
	Errors      int    `yaml:"errors"`
	Warnings    int    `yaml:"warnings"`
	Notes       int    `yaml:"notes"`
	Signature   string `yaml:"signature,omitempty"`
	GeneratedAt string `yaml:"generated_at"`
}

// SplitStat describes one split as found on disk.
type SplitStat struct {
	Name           string
	AnnotationFile string
	Images         int
	Bytes          int64
}

// Document is everything a report shows.
type Document struct {
	Summary     Summary
	Splits      []SplitStat
	Diagnostics diag.List
}

var sectionTitles = map[diag.Severity]string{
	diag.SeverityCritical: "Critical",
	diag.SeverityError:    "Errors",
	diag.SeverityWarning:  "Warnings",
	diag.SeverityNote:     "Notes",
}

// RenderMarkdown builds the report document.
func RenderMarkdown(doc Document) ([]byte, error) {
	var b strings.Builder
	s := doc.Summary

	fmt.Fprintf(&b, "# Validation report: %s\n\n", s.Dataset)
	if s.Valid {
		b.WriteString("- **Status**: validated\n")
	} else {
		fmt.Fprintf(&b, "- **Status**: not validated (%d errors)\n", s.Errors)
	}
	fmt.Fprintf(&b, "- **Runs**: %d\n", s.Runs)
	if s.Signature != "" {
		fmt.Fprintf(&b, "- **Signature**: `%s`\n", s.Signature)
	}

	if len(doc.Splits) > 0 {
		var images int
		var bytes int64
		b.WriteString("\n## Splits\n\n")
		b.WriteString("| Split | Annotation file | Images | Size |\n")
		b.WriteString("|-------|-----------------|--------|------|\n")
		for _, sp := range doc.Splits {
			fmt.Fprintf(&b, "| %s | `%s` | %s | %s |\n",
				sp.Name, sp.AnnotationFile, humanize.Comma(int64(sp.Images)), humanize.Bytes(uint64(sp.Bytes)))
			images += sp.Images
			bytes += sp.Bytes
		}
		fmt.Fprintf(&b, "| **total** | | %s | %s |\n", humanize.Comma(int64(images)), humanize.Bytes(uint64(bytes)))
	}

	for _, sev := range diag.Severities {
		group := doc.Diagnostics.Filter(sev)
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", sectionTitles[sev])
		for _, d := range group {
			b.WriteString("- " + d.Text + "\n")
		}
	}

	return WriteFrontmatter(s, b.String())
}

// WriteMarkdown renders doc and writes it atomically to path.
func WriteMarkdown(p *fsprobe.Probe, path string, doc Document) error {
	data, err := RenderMarkdown(doc)
	if err != nil {
		return err
	}
	if err := p.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
