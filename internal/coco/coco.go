// Package coco reads and rewrites COCO annotation files.
//
// Only the fields the validator reasons about are typed (ids, file names,
// category names). Every other field of every object, and every other
// top-level key (info, licenses, ...), is carried through untouched so a
// repaired file differs from the original only where a repair changed it.
package coco

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"cocovalidate/internal/fsprobe"
	"cocovalidate/internal/jsonobj"
)

// Image is one images[] entry.
type Image struct {
	ID       int64
	FileName string

	obj *jsonobj.Object
}

// Annotation is one annotations[] entry.
type Annotation struct {
	ID         int64
	ImageID    int64
	CategoryID int64

	obj *jsonobj.Object
}

// SetImageID points the annotation at another image.
func (a *Annotation) SetImageID(id int64) {
	a.ImageID = id
	if a.obj != nil {
		_ = a.obj.Set("image_id", id)
	}
}

// Category is one categories[] entry.
type Category struct {
	ID   int64
	Name string

	obj *jsonobj.Object
}

// File is a parsed COCO annotation file.
type File struct {
	Images      []Image
	Annotations []Annotation
	Categories  []Category

	root *jsonobj.Object

	// imagesOnly files came from ParseImages and cannot be marshaled.
	imagesOnly bool
}

// ErrImagesOnly is returned when marshaling a file read by ParseImages.
var ErrImagesOnly = errors.New("coco: file was read without annotations and categories")

// Parse decodes a COCO document. Syntax errors and structural errors
// (missing arrays, missing or mistyped ids) are both returned as errors.
func Parse(data []byte) (*File, error) {
	root, err := jsonobj.Parse(data)
	if err != nil {
		return nil, err
	}
	f := &File{root: root}

	if f.Images, err = parseImages(root); err != nil {
		return nil, err
	}

	anns, err := section(root, "annotations")
	if err != nil {
		return nil, err
	}
	for i, obj := range anns {
		ann := Annotation{obj: obj}
		if err := field(obj, "id", &ann.ID); err != nil {
			return nil, fmt.Errorf("annotations[%d]: %w", i, err)
		}
		if err := field(obj, "image_id", &ann.ImageID); err != nil {
			return nil, fmt.Errorf("annotations[%d]: %w", i, err)
		}
		if err := field(obj, "category_id", &ann.CategoryID); err != nil {
			return nil, fmt.Errorf("annotations[%d]: %w", i, err)
		}
		f.Annotations = append(f.Annotations, ann)
	}

	cats, err := section(root, "categories")
	if err != nil {
		return nil, err
	}
	for i, obj := range cats {
		cat := Category{obj: obj}
		if err := field(obj, "id", &cat.ID); err != nil {
			return nil, fmt.Errorf("categories[%d]: %w", i, err)
		}
		if err := field(obj, "name", &cat.Name); err != nil {
			return nil, fmt.Errorf("categories[%d]: %w", i, err)
		}
		f.Categories = append(f.Categories, cat)
	}
	return f, nil
}

// ParseImages decodes only the images[] array of a COCO document. The rest
// of the document may be missing or malformed; the result has no
// annotations or categories and cannot be saved.
func ParseImages(data []byte) (*File, error) {
	root, err := jsonobj.Parse(data)
	if err != nil {
		return nil, err
	}
	images, err := parseImages(root)
	if err != nil {
		return nil, err
	}
	return &File{Images: images, root: root, imagesOnly: true}, nil
}

func parseImages(root *jsonobj.Object) ([]Image, error) {
	objs, err := section(root, "images")
	if err != nil {
		return nil, err
	}
	var images []Image
	for i, obj := range objs {
		img := Image{obj: obj}
		if err := field(obj, "id", &img.ID); err != nil {
			return nil, fmt.Errorf("images[%d]: %w", i, err)
		}
		if err := field(obj, "file_name", &img.FileName); err != nil {
			return nil, fmt.Errorf("images[%d]: %w", i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func section(root *jsonobj.Object, key string) ([]*jsonobj.Object, error) {
	if !root.Has(key) {
		return nil, fmt.Errorf("missing %q key", key)
	}
	objs, err := root.Objects(key)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", key, err)
	}
	return objs, nil
}

func field(obj *jsonobj.Object, key string, dst any) error {
	ok, err := obj.Get(key, dst)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("missing %q key", key)
	}
	return nil
}

// Load reads and parses the COCO file at path.
func Load(fsys afero.Fs, path string) (*File, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadImages reads the images[] array of the COCO file at path.
func LoadImages(fsys afero.Fs, path string) (*File, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	return ParseImages(data)
}

// Marshal renders the file with four-space indentation, reflecting the
// current Images, Annotations and Categories slices.
func (f *File) Marshal() ([]byte, error) {
	if f.imagesOnly {
		return nil, ErrImagesOnly
	}
	root := f.root
	if root == nil {
		root = jsonobj.New()
	}
	images := make([]*jsonobj.Object, len(f.Images))
	for i, img := range f.Images {
		images[i] = img.object()
	}
	anns := make([]*jsonobj.Object, len(f.Annotations))
	for i, a := range f.Annotations {
		anns[i] = a.object()
	}
	cats := make([]*jsonobj.Object, len(f.Categories))
	for i, c := range f.Categories {
		cats[i] = c.object()
	}
	if err := root.Set("images", images); err != nil {
		return nil, err
	}
	if err := root.Set("annotations", anns); err != nil {
		return nil, err
	}
	if err := root.Set("categories", cats); err != nil {
		return nil, err
	}
	f.root = root
	return jsonobj.Indent(root)
}

// Save atomically rewrites the COCO file at path.
func (f *File) Save(p *fsprobe.Probe, path string) error {
	data, err := f.Marshal()
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := p.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (img Image) object() *jsonobj.Object {
	if img.obj != nil {
		return img.obj
	}
	o := jsonobj.New()
	_ = o.Set("id", img.ID)
	_ = o.Set("file_name", img.FileName)
	return o
}

func (a Annotation) object() *jsonobj.Object {
	if a.obj != nil {
		return a.obj
	}
	o := jsonobj.New()
	_ = o.Set("id", a.ID)
	_ = o.Set("image_id", a.ImageID)
	_ = o.Set("category_id", a.CategoryID)
	return o
}

func (c Category) object() *jsonobj.Object {
	if c.obj != nil {
		return c.obj
	}
	o := jsonobj.New()
	_ = o.Set("id", c.ID)
	_ = o.Set("name", c.Name)
	return o
}
