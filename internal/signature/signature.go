// Package signature computes the digest that marks a dataset as validated.
//
// The digest covers every file under the dataset root in lexical order of
// its slash-separated relative path. Each file contributes one record
//
//	<relpath> 0x00 <size> 0x00 <hex sha256 of content> '\n'
//
// and the records are themselves hashed with SHA-256. Identical trees give
// identical signatures on every platform; renaming, resizing or editing any
// covered file changes it.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"

	"cocovalidate/internal/fsprobe"
)

// Prefix tags the digest algorithm in a rendered signature.
const Prefix = "sha256:"

// Signer produces a stable digest of a dataset tree.
type Signer interface {
	Sign(fsys afero.Fs, root string) (string, error)
}

// TreeSigner is the default Signer.
type TreeSigner struct {
	// Exclude reports whether a root-relative, slash-separated path is left
	// out of the digest. Nil excludes nothing.
	Exclude func(rel string) bool

	// Progress, when non-nil, receives a byte progress bar.
	Progress io.Writer
}

// Sign hashes the tree under root.
func (s TreeSigner) Sign(fsys afero.Fs, root string) (string, error) {
	p := fsprobe.New(fsys)
	all, err := p.Files(root)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", root, err)
	}

	type entry struct {
		rel  string
		size int64
	}
	var files []entry
	var total int64
	for _, rel := range all {
		if s.Exclude != nil && s.Exclude(rel) {
			continue
		}
		size, err := p.Size(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", rel, err)
		}
		files = append(files, entry{rel: rel, size: size})
		total += size
	}

	var tee io.Writer
	if s.Progress != nil {
		bar := progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(s.Progress),
			progressbar.OptionSetDescription("Signing"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
		tee = bar
	}

	digest := sha256.New()
	for _, f := range files {
		sum, err := p.Hash(filepath.Join(root, filepath.FromSlash(f.rel)), tee)
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", f.rel, err)
		}
		fmt.Fprintf(digest, "%s\x00%d\x00%s\n", f.rel, f.size, sum)
	}
	return Prefix + hex.EncodeToString(digest.Sum(nil)), nil
}
