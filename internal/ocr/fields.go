package ocr

import "sort"

// FieldDef is a named rectangular region on a page. Coordinates are pixel
// positions on the rasterized page; x2/y2 are the bottom-right corner.
// The ID is carried verbatim into results - downstream consumers map it to
// fixed export tags, so casing and spelling must survive untouched.
type FieldDef struct {
	ID          string  `json:"id"`
	X1          float64 `json:"x1"`
	Y1          float64 `json:"y1"`
	X2          float64 `json:"x2"`
	Y2          float64 `json:"y2"`
	Type        string  `json:"type,omitempty"`
	IsMultiline bool    `json:"isMultiline,omitempty"`
	Page        int     `json:"page,omitempty"`
}

// Valid reports whether the region has positive width and height.
// Invalid regions are skipped with an empty result, never a hard error.
func (f FieldDef) Valid() bool {
	return f.X2 > f.X1 && f.Y2 > f.Y1
}

// FieldSource supplies field definitions to an extraction call. It is a sum
// of the two wire shapes: a flat list for single-page use, or a per-page set
// for multi-page documents. The shape is resolved once here rather than by
// type inspection inside the extractor.
type FieldSource struct {
	flat  []FieldDef
	pages map[int][]FieldDef
}

// FlatFields builds a FieldSource from a single flat field list.
func FlatFields(fields []FieldDef) FieldSource {
	return FieldSource{flat: fields}
}

// PageFields builds a FieldSource from a page-number keyed field set.
// Page numbers are 1-based.
func PageFields(pages map[int][]FieldDef) FieldSource {
	return FieldSource{pages: pages}
}

// Empty reports whether the source carries no field definitions at all.
func (s FieldSource) Empty() bool {
	if len(s.flat) > 0 {
		return false
	}
	for _, fields := range s.pages {
		if len(fields) > 0 {
			return false
		}
	}
	return true
}

// PageOne returns the fields to use against a single page image: the flat
// list if that is what was supplied, otherwise the page-1 entry.
func (s FieldSource) PageOne() []FieldDef {
	if s.flat != nil {
		return s.flat
	}
	return s.pages[1]
}

// ForPage returns the fields declared for the given 1-based page number.
func (s FieldSource) ForPage(n int) []FieldDef {
	if s.pages != nil {
		return s.pages[n]
	}
	if n == 1 {
		return s.flat
	}
	return nil
}

// Pages returns the declared page numbers in ascending order. A flat source
// declares only page 1.
func (s FieldSource) Pages() []int {
	if s.pages == nil {
		if len(s.flat) > 0 {
			return []int{1}
		}
		return nil
	}
	nums := make([]int, 0, len(s.pages))
	for n := range s.pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}
