package manifest_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"cocovalidate/internal/fsprobe"
	"cocovalidate/internal/manifest"
)

const sample = `{
  "pets": {
    "description": "cats and dogs",
    "splits": {
      "train": {"dataset_name": "train.json", "num_examples": 2},
      "validation": {"dataset_name": "val.json"},
      "test": {"dataset_name": "test.json", "num_bytes": "big"},
      "extra": 5
    },
    "task_templates": [{"task": "detection", "labels": ["cat", "dog"]}],
    "dataset_size": 4
  }
}`

func TestParse(t *testing.T) {
	m, err := manifest.Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Name != "pets" {
		t.Errorf("Name = %q", m.Name)
	}
	if !m.HasSplits() {
		t.Fatal("HasSplits = false")
	}

	var names []string
	for _, s := range m.Splits() {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{"train", "validation", "test", "extra"}, names); diff != "" {
		t.Errorf("split order (-want +got):\n%s", diff)
	}

	train, ok := m.Split("train")
	if !ok {
		t.Fatal("train split missing")
	}
	if name, ok := train.DatasetName(); !ok || name != "train.json" {
		t.Errorf("train dataset_name = %q, %v", name, ok)
	}
	extra, _ := m.Split("extra")
	if extra.Entry != nil {
		t.Error("non-object split should have nil Entry")
	}
	if _, ok := extra.DatasetName(); ok {
		t.Error("non-object split should have no dataset_name")
	}

	tmpls, err := m.TaskTemplates()
	if err != nil || len(tmpls) != 1 {
		t.Fatalf("TaskTemplates = %d, %v", len(tmpls), err)
	}
	labels, ok, err := manifest.Labels(tmpls[0])
	if err != nil || !ok {
		t.Fatalf("Labels: %v %v", ok, err)
	}
	if diff := cmp.Diff([]string{"cat", "dog"}, labels); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	for name, in := range map[string]string{
		"syntax":     `{"pets": `,
		"empty":      `{}`,
		"array":      `[1, 2]`,
		"non-object": `{"pets": [1]}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := manifest.Parse([]byte(in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSaveRoundTripKeepsOrderAndEdits(t *testing.T) {
	fsys := afero.NewMemMapFs()
	p := fsprobe.New(fsys)
	if err := afero.WriteFile(fsys, "/ds/dataset_infos.json", []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Load(fsys, "/ds/dataset_infos.json")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Info.Set(manifest.KeyDatasetSize, 48); err != nil {
		t.Fatal(err)
	}
	if err := m.Info.Set(manifest.KeyConfigName, ""); err != nil {
		t.Fatal(err)
	}
	val, _ := m.Split("validation")
	if err := val.Entry.Set(manifest.KeyNumExamples, 7); err != nil {
		t.Fatal(err)
	}
	if err := m.Save(p, "/ds/dataset_infos.json"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, _ := afero.ReadFile(fsys, "/ds/dataset_infos.json")
	if !strings.HasPrefix(string(data), "{\n    \"pets\": {\n        \"description\"") {
		t.Errorf("unexpected layout:\n%s", data)
	}

	again, err := manifest.Load(fsys, "/ds/dataset_infos.json")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if v, present, isInt := again.Info.Int(manifest.KeyDatasetSize); !present || !isInt || v != 48 {
		t.Errorf("dataset_size = %d (%v, %v)", v, present, isInt)
	}
	val, _ = again.Split("validation")
	if v, _, _ := val.Entry.Int(manifest.KeyNumExamples); v != 7 {
		t.Errorf("validation num_examples = %d", v)
	}
	want := []string{"description", "splits", "task_templates", "dataset_size", "config_name"}
	if diff := cmp.Diff(want, again.Info.Keys()); diff != "" {
		t.Errorf("key order (-want +got):\n%s", diff)
	}
}
