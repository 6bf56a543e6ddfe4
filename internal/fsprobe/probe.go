// Package fsprobe is the validator's window onto the dataset directory.
//
// Reads (existence, sizes, ordered walks, streamed hashing) never mutate the
// tree. The few writes the repairer needs are kept here too so every disk
// mutation goes through one place: rewrites are atomic (temp sibling +
// rename), deletions and the thumbnail copy are plain.
//
// All access goes through an afero.Fs so tests can run against an in-memory
// tree.
package fsprobe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// hashBlockSize bounds memory while hashing large images.
const hashBlockSize = 32 << 10

// Probe wraps an afero.Fs with the operations the validator needs.
type Probe struct {
	fs afero.Fs
}

// New returns a Probe over fsys. A nil fsys means the OS filesystem.
func New(fsys afero.Fs) *Probe {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Probe{fs: fsys}
}

// Fs returns the underlying filesystem.
func (p *Probe) Fs() afero.Fs { return p.fs }

// Exists reports whether path exists (file or directory).
func (p *Probe) Exists(path string) bool {
	_, err := p.fs.Stat(path)
	return err == nil
}

// IsFile reports whether path exists and is not a directory.
func (p *Probe) IsFile(path string) bool {
	info, err := p.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// IsDir reports whether path exists and is a directory.
func (p *Probe) IsDir(path string) bool {
	info, err := p.fs.Stat(path)
	return err == nil && info.IsDir()
}

// Size returns the size of the file at path in bytes.
func (p *Probe) Size(path string) (int64, error) {
	info, err := p.fs.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ReadFile reads the whole file at path.
func (p *Probe) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(p.fs, path)
}

// HashFile returns the hex SHA-256 of the file at path.
func (p *Probe) HashFile(path string) (string, error) {
	return p.Hash(path, nil)
}

// Hash streams the file at path through SHA-256 in fixed-size blocks. When
// tee is non-nil every block is also written to it (progress reporting).
func (p *Probe) Hash(path string, tee io.Writer) (string, error) {
	f, err := p.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	var w io.Writer = h
	if tee != nil {
		w = io.MultiWriter(h, tee)
	}
	if _, err := io.CopyBuffer(w, f, make([]byte, hashBlockSize)); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FirstFile walks dir top-down and returns the first file whose extension
// (case-insensitive) is in exts. Within a directory files are visited before
// subdirectories, both in lexical order.
func (p *Probe) FirstFile(dir string, exts []string) (string, bool, error) {
	entries, err := afero.ReadDir(p.fs, dir)
	if err != nil {
		return "", false, err
	}
	var subdirs []string
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, e.Name())
			continue
		}
		if hasExt(e.Name(), exts) {
			return filepath.Join(dir, e.Name()), true, nil
		}
	}
	for _, sub := range subdirs {
		path, ok, err := p.FirstFile(filepath.Join(dir, sub), exts)
		if err != nil {
			return "", false, err
		}
		if ok {
			return path, true, nil
		}
	}
	return "", false, nil
}

// Files returns every regular file under root as slash-separated paths
// relative to root, sorted lexically.
func (p *Probe) Files(root string) ([]string, error) {
	var out []string
	err := afero.Walk(p.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// WriteFileAtomic writes data to a temporary sibling of path and renames it
// over path, so an interrupted rewrite never leaves a truncated file.
func (p *Probe) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := afero.TempFile(p.fs, dir, base+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", base, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = p.fs.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := p.fs.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := p.fs.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	return nil
}

// Remove deletes the file at path. A missing file is not an error.
func (p *Probe) Remove(path string) error {
	if err := p.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst, preserving permissions.
func (p *Probe) CopyFile(src, dst string) error {
	in, err := p.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := p.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
