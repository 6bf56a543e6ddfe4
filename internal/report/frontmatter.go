// Package report renders validation results: the terminal dump and the
// optional markdown report with YAML frontmatter.
package report

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// WriteFrontmatter marshals v as YAML frontmatter followed by body.
func WriteFrontmatter(v any, body string) ([]byte, error) {
	fm, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}
