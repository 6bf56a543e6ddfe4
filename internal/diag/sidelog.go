package diag

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
)

// DefaultLogFile is the side log's file name inside the working directory.
const DefaultLogFile = "dataset_validator_log.txt"

// SideLog appends detail lines to a text file. The file is opened for append
// on every call and closed again; concurrent writers are not supported.
// A SideLog with an empty path discards everything.
type SideLog struct {
	fs   afero.Fs
	path string
}

// NewSideLog returns a side log writing to path on fsys.
func NewSideLog(fsys afero.Fs, path string) *SideLog {
	return &SideLog{fs: fsys, path: path}
}

// Path returns the log file path ("" when disabled).
func (s *SideLog) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Enabled reports whether lines are written anywhere.
func (s *SideLog) Enabled() bool {
	return s != nil && s.path != ""
}

// Truncate empties the log file, creating it when needed.
func (s *SideLog) Truncate() error {
	if !s.Enabled() {
		return nil
	}
	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("truncate side log: %w", err)
	}
	return f.Close()
}

// Append writes each line followed by a newline.
func (s *SideLog) Append(lines ...string) error {
	if !s.Enabled() || len(lines) == 0 {
		return nil
	}
	f, err := s.fs.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open side log: %w", err)
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write side log: %w", err)
	}
	return f.Close()
}
