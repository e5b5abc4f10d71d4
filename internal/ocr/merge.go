package ocr

import "sort"

// PageResult pairs a page number with the field values extracted from it.
type PageResult struct {
	Page   int
	Fields map[string]string
}

// MergePages combines per-page field maps into a single result. Pages are
// applied in ascending page-number order and later pages overwrite earlier
// ones on key collision, so a field id declared on several pages resolves
// to the value from the highest-numbered page that declares it.
func MergePages(pages []PageResult) map[string]string {
	sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })

	merged := make(map[string]string)
	for _, p := range pages {
		for id, text := range p.Fields {
			merged[id] = text
		}
	}
	return merged
}
