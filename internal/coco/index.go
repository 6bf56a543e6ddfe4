package coco

import "sort"

// ImageIDs returns images[].id in file order.
func (f *File) ImageIDs() []int64 {
	out := make([]int64, len(f.Images))
	for i, img := range f.Images {
		out[i] = img.ID
	}
	return out
}

// AnnotationIDs returns annotations[].id in file order.
func (f *File) AnnotationIDs() []int64 {
	out := make([]int64, len(f.Annotations))
	for i, a := range f.Annotations {
		out[i] = a.ID
	}
	return out
}

// CategoryIDs returns categories[].id in file order.
func (f *File) CategoryIDs() []int64 {
	out := make([]int64, len(f.Categories))
	for i, c := range f.Categories {
		out[i] = c.ID
	}
	return out
}

// CategoryNames returns the set of categories[].name.
func (f *File) CategoryNames() map[string]bool {
	out := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		out[c.Name] = true
	}
	return out
}

// FileNames returns images[].file_name in file order.
func (f *File) FileNames() []string {
	out := make([]string, len(f.Images))
	for i, img := range f.Images {
		out[i] = img.FileName
	}
	return out
}

// AnnotationCounts maps each image id to the number of annotations on it.
func (f *File) AnnotationCounts() map[int64]int {
	out := make(map[int64]int, len(f.Images))
	for _, a := range f.Annotations {
		out[a.ImageID]++
	}
	return out
}

// Unannotated returns the images no annotation points at, in file order.
func (f *File) Unannotated() []Image {
	counts := f.AnnotationCounts()
	var out []Image
	for _, img := range f.Images {
		if counts[img.ID] == 0 {
			out = append(out, img)
		}
	}
	return out
}

// RedirectAnnotations moves every annotation on image from to image to and
// returns how many moved.
func (f *File) RedirectAnnotations(from, to int64) int {
	if from == to {
		return 0
	}
	n := 0
	for i := range f.Annotations {
		if f.Annotations[i].ImageID == from {
			f.Annotations[i].SetImageID(to)
			n++
		}
	}
	return n
}

// RemoveImages drops every image for which drop returns true and returns
// the removed entries in file order.
func (f *File) RemoveImages(drop func(Image) bool) []Image {
	var kept, removed []Image
	for _, img := range f.Images {
		if drop(img) {
			removed = append(removed, img)
			continue
		}
		kept = append(kept, img)
	}
	f.Images = kept
	return removed
}

// HasDuplicates reports whether ids contains a repeated value.
func HasDuplicates(ids []int64) bool {
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}

// Missing returns the values of ids that are not in allowed, deduplicated
// and sorted ascending.
func Missing(ids, allowed []int64) []int64 {
	set := make(map[int64]bool, len(allowed))
	for _, id := range allowed {
		set[id] = true
	}
	seen := make(map[int64]bool)
	var out []int64
	for _, id := range ids {
		if !set[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
