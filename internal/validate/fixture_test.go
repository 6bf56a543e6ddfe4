package validate_test

// fixture_test.go: in-memory datasets for the validator tests.
//
// build writes a dataset whose manifest agrees with its files; tests then
// break one thing and assert on what the validator reports.

import (
	"encoding/json"
	"fmt"
	"path"
	"testing"

	"github.com/spf13/afero"

	"cocovalidate/internal/jsonobj"
	"cocovalidate/internal/validate"
)

const root = "/data"

type img struct {
	name    string
	content string
}

type splitDef struct {
	name   string
	file   string
	images []img
}

type cocoImage struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
}

type cocoAnnotation struct {
	ID         int64 `json:"id"`
	ImageID    int64 `json:"image_id"`
	CategoryID int64 `json:"category_id"`
}

type cocoCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type cocoDoc struct {
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

var labels = []string{"cat", "dog"}

// cocoFor annotates every image once with category 1.
func cocoFor(images []img) cocoDoc {
	doc := cocoDoc{Categories: []cocoCategory{{ID: 1, Name: "cat"}, {ID: 2, Name: "dog"}}}
	for i, im := range images {
		id := int64(i + 1)
		doc.Images = append(doc.Images, cocoImage{ID: id, FileName: im.name})
		doc.Annotations = append(doc.Annotations, cocoAnnotation{ID: 100 + id, ImageID: id, CategoryID: 1})
	}
	return doc
}

func writeFile(t *testing.T, fsys afero.Fs, rel, content string) {
	t.Helper()
	if err := afero.WriteFile(fsys, path.Join(root, rel), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeJSON(t *testing.T, fsys afero.Fs, rel string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, fsys, rel, string(data))
}

func readFile(t *testing.T, fsys afero.Fs, rel string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path.Join(root, rel))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func exists(fsys afero.Fs, rel string) bool {
	_, err := fsys.Stat(path.Join(root, rel))
	return err == nil
}

func defaultSplits() []splitDef {
	return []splitDef{
		{name: "train", file: "train.json", images: []img{{"t1.jpg", "train one"}, {"t2.jpg", "train two!"}}},
		{name: "test", file: "test.json", images: []img{{"s1.jpg", "test one"}}},
		{name: "validation", file: "validation.json", images: []img{{"sub/v1.jpg", "validation one"}}},
	}
}

// build writes images, annotation files, a thumbnail and a manifest that
// agrees with all of them.
func build(t *testing.T, splits []splitDef) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "thumbnail.jpg", "thumb")

	table := jsonobj.New()
	var total, totalBytes int64
	for _, s := range splits {
		var bytes int64
		for _, im := range s.images {
			writeFile(t, fsys, "images/"+im.name, im.content)
			bytes += int64(len(im.content))
		}
		writeJSON(t, fsys, "annotations/"+s.file, cocoFor(s.images))

		entry := jsonobj.New()
		mustSet(t, entry, "dataset_name", s.file)
		mustSet(t, entry, "num_examples", len(s.images))
		mustSet(t, entry, "num_bytes", bytes)
		mustSet(t, table, s.name, entry)
		total += int64(len(s.images))
		totalBytes += bytes
	}

	info := jsonobj.New()
	mustSet(t, info, "description", "pets")
	mustSet(t, info, "builder_name", "coco")
	mustSet(t, info, "config_name", "default")
	mustSet(t, info, "splits", table)
	mustSet(t, info, "task_templates", []map[string]any{{"task": "detection", "labels": labels}})
	mustSet(t, info, "dataset_size", total)
	mustSet(t, info, "size_in_bytes", totalBytes)

	doc := jsonobj.New()
	mustSet(t, doc, "pets", info)
	data, err := jsonobj.Indent(doc)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, fsys, "dataset_infos.json", string(data))
	return fsys
}

func mustSet(t *testing.T, o *jsonobj.Object, key string, v any) {
	t.Helper()
	if err := o.Set(key, v); err != nil {
		t.Fatal(err)
	}
}

// editManifest loads the manifest, applies edit to the dataset object and
// writes it back.
func editManifest(t *testing.T, fsys afero.Fs, edit func(info *jsonobj.Object)) {
	t.Helper()
	doc, err := jsonobj.Parse([]byte(readFile(t, fsys, "dataset_infos.json")))
	if err != nil {
		t.Fatal(err)
	}
	info, err := doc.Child("pets")
	if err != nil {
		t.Fatal(err)
	}
	edit(info)
	data, err := jsonobj.Indent(doc)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, fsys, "dataset_infos.json", string(data))
}

func jsonUnmarshal(data string, v any) error {
	return json.Unmarshal([]byte(data), v)
}

func newValidator(t *testing.T, fsys afero.Fs, mutate ...func(*validate.Options)) *validate.Validator {
	t.Helper()
	opts := validate.Options{Root: root, WorkDir: root, AutoFixPrompt: true, Fs: fsys}
	for _, m := range mutate {
		m(&opts)
	}
	v, err := validate.New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func autoFix(o *validate.Options) {
	o.AutoFix = true
	o.AutoFixPrompt = false
}

func names(prefix string, from, to int, content string) []img {
	var out []img
	for i := from; i < to; i++ {
		out = append(out, img{fmt.Sprintf("%s%03d.jpg", prefix, i), fmt.Sprintf("%s-%d", content, i)})
	}
	return out
}
