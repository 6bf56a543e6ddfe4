// Package manifest reads and rewrites dataset_infos.json.
//
// The manifest is a JSON object with a single top-level key naming the
// dataset. Its value carries the split table, the task templates, and the
// aggregate counts the validator reconciles against disk:
//
//	{
//	    "my-dataset": {
//	        "description": "", "builder_name": "", "config_name": "",
//	        "splits": {"train": {"dataset_name": "train.json", "num_examples": 10, "num_bytes": 2048}, ...},
//	        "task_templates": [{"task": "detection", "labels": ["cat", "dog"]}],
//	        "dataset_size": 30, "size_in_bytes": 6144
//	    }
//	}
//
// Keys keep their document order through a load/save cycle; split order
// drives the order annotation files are checked in.
package manifest

import (
	"fmt"

	"github.com/spf13/afero"

	"cocovalidate/internal/fsprobe"
	"cocovalidate/internal/jsonobj"
)

// FileName is the manifest's name inside the dataset root.
const FileName = "dataset_infos.json"

// Keys inside the dataset entry.
const (
	KeySplits        = "splits"
	KeyTaskTemplates = "task_templates"
	KeyDescription   = "description"
	KeyBuilderName   = "builder_name"
	KeyConfigName    = "config_name"
	KeyDatasetSize   = "dataset_size"
	KeySizeInBytes   = "size_in_bytes"

	KeyDatasetName = "dataset_name"
	KeyNumExamples = "num_examples"
	KeyNumBytes    = "num_bytes"

	KeyTask   = "task"
	KeyLabels = "labels"
)

// RequiredKeys must be present in the dataset entry.
var RequiredKeys = []string{KeySplits, KeyTaskTemplates}

// OptionalKeys are expected but may be filled in with "" by auto-fix.
var OptionalKeys = []string{KeyDescription, KeyBuilderName, KeyConfigName}

// RequiredSplits must appear in the split table.
var RequiredSplits = []string{"train", "test", "validation"}

// TaskKinds are the accepted values of task_templates[0].task.
var TaskKinds = []string{"detection", "classification", "keypoints"}

// Manifest is a parsed dataset_infos.json.
type Manifest struct {
	// Name is the dataset name (the first top-level key).
	Name string

	// Info is the object stored under Name. Edits to it are written back by
	// Marshal.
	Info *jsonobj.Object

	root *jsonobj.Object
}

// Parse decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	root, err := jsonobj.Parse(data)
	if err != nil {
		return nil, err
	}
	if root.Len() == 0 {
		return nil, fmt.Errorf("the top-level object is empty")
	}
	name := root.Keys()[0]
	info, err := root.Child(name)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	return &Manifest{Name: name, Info: info, root: root}, nil
}

// Load reads and parses the manifest at path.
func Load(fsys afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Marshal renders the manifest with four-space indentation.
func (m *Manifest) Marshal() ([]byte, error) {
	return jsonobj.Indent(m.root)
}

// Save atomically rewrites the manifest at path.
func (m *Manifest) Save(p *fsprobe.Probe, path string) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := p.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Split is one entry of the split table.
type Split struct {
	Name string

	// Entry is nil when the split's value is not a JSON object.
	Entry *jsonobj.Object
}

// DatasetName returns the annotation file name the split points at.
func (s Split) DatasetName() (string, bool) {
	if s.Entry == nil {
		return "", false
	}
	return s.Entry.String(KeyDatasetName)
}

// HasSplits reports whether the split table exists and is an object.
func (m *Manifest) HasSplits() bool {
	_, err := m.Info.Child(KeySplits)
	return err == nil
}

// Splits returns the split table in document order. A missing or malformed
// table yields no splits.
func (m *Manifest) Splits() []Split {
	table, err := m.Info.Child(KeySplits)
	if err != nil {
		return nil
	}
	var out []Split
	for _, name := range table.Keys() {
		entry, err := table.Child(name)
		if err != nil {
			entry = nil
		}
		out = append(out, Split{Name: name, Entry: entry})
	}
	return out
}

// Split looks up one split by name.
func (m *Manifest) Split(name string) (Split, bool) {
	for _, s := range m.Splits() {
		if s.Name == name {
			return s, true
		}
	}
	return Split{}, false
}

// TaskTemplates decodes task_templates as a list of objects.
func (m *Manifest) TaskTemplates() ([]*jsonobj.Object, error) {
	return m.Info.Objects(KeyTaskTemplates)
}

// Labels decodes the labels of a task template. ok is false when the key is
// absent.
func Labels(template *jsonobj.Object) (labels []string, ok bool, err error) {
	ok, err = template.Get(KeyLabels, &labels)
	return labels, ok, err
}
