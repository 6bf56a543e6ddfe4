package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"cocovalidate/internal/report"
)

// CLI behavior
//
//  1. The root command validates; `validate` is the same command.
//  2. -af is accepted as --auto-fix.
//  3. A missing dataset path prints "Path does not exists: <path>" and exits 1.
//  4. Findings never change the exit code; only fatal errors do.
//  5. A valid dataset ends with the signed validation mark.

const dataset = "/ds"

// fixture writes a three-split dataset with one annotated image per split.
func fixture(t *testing.T) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	put := func(rel, content string) {
		t.Helper()
		if err := afero.WriteFile(fsys, path.Join(dataset, rel), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	putJSON := func(rel string, v any) {
		t.Helper()
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		put(rel, string(data))
	}

	put("thumbnail.jpg", "thumb")
	splits := map[string]any{}
	files := []struct{ split, image, content string }{
		{"train", "a.jpg", "aa"},
		{"test", "b.jpg", "bbb"},
		{"validation", "c.jpg", "cccc"},
	}
	total := 0
	for _, f := range files {
		put("images/"+f.image, f.content)
		putJSON("annotations/"+f.split+".json", map[string]any{
			"images":      []any{map[string]any{"id": 1, "file_name": f.image}},
			"annotations": []any{map[string]any{"id": 1, "image_id": 1, "category_id": 1}},
			"categories":  []any{map[string]any{"id": 1, "name": "cat"}},
		})
		splits[f.split] = map[string]any{
			"dataset_name": f.split + ".json",
			"num_examples": 1,
			"num_bytes":    len(f.content),
		}
		total += len(f.content)
	}
	putJSON("dataset_infos.json", map[string]any{"cats": map[string]any{
		"description":    "",
		"builder_name":   "",
		"config_name":    "",
		"splits":         splits,
		"task_templates": []any{map[string]any{"task": "detection", "labels": []string{"cat"}}},
		"dataset_size":   3,
		"size_in_bytes":  total,
	}})
	return fsys
}

type result struct {
	code   int
	stdout string
	stderr string
}

func invoke(t *testing.T, fsys afero.Fs, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	c := newCLI(strings.NewReader(stdin), &out, &errOut)
	c.fs = fsys
	code := run(context.Background(), c, args)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func TestRewriteArgs(t *testing.T) {
	got := rewriteArgs([]string{"-d", "x", "-af", "-afx", "-y"})
	want := []string{"-d", "x", "--auto-fix", "-afx", "-y"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rewriteArgs (-want +got):\n%s", diff)
	}
}

func TestHelpListsSubcommands(t *testing.T) {
	res := invoke(t, afero.NewMemMapFs(), "", "--help")
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	for _, name := range []string{"validate", "sign", "watch", "--dataset_path", "--auto-fix"} {
		if !strings.Contains(res.stdout, name) {
			t.Errorf("help output missing %q", name)
		}
	}
}

func TestMissingDatasetFlag(t *testing.T) {
	res := invoke(t, afero.NewMemMapFs(), "")
	if res.code != 1 {
		t.Errorf("exit %d, want 1", res.code)
	}
	if !strings.Contains(res.stderr, "dataset_path") {
		t.Errorf("stderr = %q", res.stderr)
	}
}

func TestMissingDatasetPath(t *testing.T) {
	res := invoke(t, afero.NewMemMapFs(), "", "-d", "/nope")
	if res.code != 1 {
		t.Errorf("exit %d, want 1", res.code)
	}
	if res.stdout != "Path does not exists: /nope\n" {
		t.Errorf("stdout = %q", res.stdout)
	}
}

func TestValidDatasetIsSigned(t *testing.T) {
	for _, args := range [][]string{
		{"-d", dataset},
		{"validate", "-d", dataset},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			fsys := fixture(t)
			res := invoke(t, fsys, "", args...)
			if res.code != 0 {
				t.Fatalf("exit %d: %s", res.code, res.stderr)
			}
			want := []string{
				report.Center("cocovalidate (v"+version+") - dataset validation utility", report.Width, ' '),
				"",
				report.Center(" Messages: ", report.Width, '-'),
				"",
				report.Center(" Summary: ", report.Width, '-'),
				"No critical errors found",
				"Creating dataset signature ...",
			}
			lines := strings.Split(strings.TrimSuffix(res.stdout, "\n"), "\n")
			if len(lines) != len(want)+1 {
				t.Fatalf("stdout:\n%s", res.stdout)
			}
			if diff := cmp.Diff(want, lines[:len(want)]); diff != "" {
				t.Errorf("stdout (-want +got):\n%s", diff)
			}
			if !strings.HasPrefix(lines[len(want)], "Validation passed and signed: sha256:") {
				t.Errorf("last line = %q", lines[len(want)])
			}
		})
	}
}

func TestInvalidDatasetExitsZero(t *testing.T) {
	fsys := fixture(t)
	if err := fsys.Remove(dataset + "/dataset_infos.json"); err != nil {
		t.Fatal(err)
	}
	res := invoke(t, fsys, "", "-d", dataset)
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	for _, want := range []string{
		"ERROR: \"dataset_infos.json\" does not exist\n",
		"CRITICAL: ^^^^^ Validation stopped due to a critical error\n",
		"Dataset not validated, 1 error(s) found.\n",
	} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, res.stdout)
		}
	}
}

func TestHeader(t *testing.T) {
	banner := "cocovalidate (v" + version + ") - dataset validation utility"
	const args = "Validating dataset with args: dataset_path=/ds"

	quiet := strings.SplitN(invoke(t, fixture(t), "", "-d", dataset).stdout, "\n", 3)
	if len(quiet) < 2 || strings.TrimSpace(quiet[0]) != banner {
		t.Fatalf("stdout without -v starts with %q", quiet)
	}
	if strings.HasPrefix(quiet[1], args) {
		t.Error("args line printed without -v")
	}

	verbose := strings.SplitN(invoke(t, fixture(t), "", "-d", dataset, "-v").stdout, "\n", 3)
	if len(verbose) < 2 || strings.TrimSpace(verbose[0]) != banner {
		t.Fatalf("stdout with -v starts with %q", verbose)
	}
	if !strings.HasPrefix(verbose[1], args) {
		t.Errorf("args line = %q", verbose[1])
	}
}

func TestAutoFixAsksOnStdin(t *testing.T) {
	fsys := fixture(t)
	// A second, unannotated image in train.json.
	doc := `{"images": [{"id": 1, "file_name": "a.jpg"}, {"id": 2, "file_name": "z.jpg"}],
		"annotations": [{"id": 1, "image_id": 1, "category_id": 1}],
		"categories": [{"id": 1, "name": "cat"}]}`
	if err := afero.WriteFile(fsys, dataset+"/annotations/train.json", []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fsys, dataset+"/images/z.jpg", []byte("zzzzz"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := invoke(t, fsys, "y\n", "-d", dataset, "-af")
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	if !strings.Contains(res.stdout, `remove all images without annotations from the "train.json" annotation file?`) {
		t.Errorf("question not asked:\n%s", res.stdout)
	}
	if ok, _ := afero.Exists(fsys, dataset+"/images/z.jpg"); ok {
		t.Error("z.jpg should be deleted")
	}
	if !strings.Contains(res.stdout, "Validation passed and signed: ") {
		t.Errorf("dataset not signed after repair:\n%s", res.stdout)
	}
}

func TestSignCommand(t *testing.T) {
	fsys := fixture(t)
	a := invoke(t, fsys, "", "sign", "-d", dataset)
	b := invoke(t, fsys, "", "sign", "-d", dataset)
	if a.code != 0 || !strings.HasPrefix(a.stdout, "sha256:") {
		t.Fatalf("sign: exit %d stdout %q stderr %q", a.code, a.stdout, a.stderr)
	}
	if a.stdout != b.stdout {
		t.Errorf("signature not stable: %q vs %q", a.stdout, b.stdout)
	}
}

func TestReportFlag(t *testing.T) {
	fsys := fixture(t)
	res := invoke(t, fsys, "", "-d", dataset, "--report", "/out/report.md")
	if res.code != 0 {
		t.Fatalf("exit %d: %s", res.code, res.stderr)
	}
	data, err := afero.ReadFile(fsys, "/out/report.md")
	if err != nil {
		t.Fatal(err)
	}
	rest, ok := strings.CutPrefix(string(data), "---\n")
	if !ok {
		t.Fatalf("report has no frontmatter:\n%s", data)
	}
	fm, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		t.Fatalf("frontmatter is not closed:\n%s", data)
	}
	for _, want := range []string{"dataset: /ds\n", "valid: true\n", "errors: 0\n", "signature: sha256:"} {
		if !strings.Contains(fm+"\n", want) {
			t.Errorf("frontmatter missing %q:\n%s", want, fm)
		}
	}
	if !strings.Contains(body, "| train | `train.json` | 1 | 2 B |") {
		t.Errorf("body:\n%s", body)
	}
}

func TestBadSettingsIsFatal(t *testing.T) {
	fsys := fixture(t)
	if err := afero.WriteFile(fsys, dataset+"/.cocovalidate/settings.yaml", []byte("max_runs: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res := invoke(t, fsys, "", "-d", dataset)
	if res.code != 1 || !strings.Contains(res.stderr, "max_runs") {
		t.Errorf("exit %d stderr %q", res.code, res.stderr)
	}
}
