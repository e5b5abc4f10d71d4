// Package schema validates and parses the field-definition wire shapes.
// Validation happens once at the boundary; the engine only ever sees
// well-formed FieldDefs.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/formscan/formscan/internal/ocr"
)

const fieldListSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["id", "x1", "y1", "x2", "y2"],
		"properties": {
			"id": {"type": "string", "minLength": 1},
			"x1": {"type": "number"},
			"y1": {"type": "number"},
			"x2": {"type": "number"},
			"y2": {"type": "number"},
			"type": {"type": "string"},
			"isMultiline": {"type": "boolean"},
			"page": {"type": "integer", "minimum": 1}
		}
	}
}`

const pageSetSchema = `{
	"type": "object",
	"propertyNames": {"pattern": "^[0-9]+$"},
	"additionalProperties": ` + fieldListSchema + `
}`

var (
	fieldList = jsonschema.MustCompileString("field_list.json", fieldListSchema)
	pageSet   = jsonschema.MustCompileString("page_set.json", pageSetSchema)
)

// ParseFieldList parses a flat JSON array of field definitions.
func ParseFieldList(data []byte) ([]ocr.FieldDef, error) {
	if err := validate(fieldList, data); err != nil {
		return nil, &ocr.InputError{Reason: fmt.Sprintf("invalid field parameters: %v", err)}
	}
	var fields []ocr.FieldDef
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &ocr.InputError{Reason: fmt.Sprintf("invalid field parameters: %v", err)}
	}
	return fields, nil
}

// ParsePageSet parses the per-page wire shape: a JSON object keyed by page
// number strings ("1", "2", ...), each holding a field list. Page numbers
// are 1-based.
func ParsePageSet(data []byte) (map[int][]ocr.FieldDef, error) {
	if err := validate(pageSet, data); err != nil {
		return nil, &ocr.InputError{Reason: fmt.Sprintf("invalid page parameters: %v", err)}
	}
	var raw map[string][]ocr.FieldDef
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ocr.InputError{Reason: fmt.Sprintf("invalid page parameters: %v", err)}
	}

	pages := make(map[int][]ocr.FieldDef, len(raw))
	for key, fields := range raw {
		n, err := strconv.Atoi(key)
		if err != nil || n < 1 {
			return nil, &ocr.InputError{Reason: fmt.Sprintf("invalid page number: %q", key)}
		}
		pages[n] = fields
	}
	return pages, nil
}

func validate(s *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
