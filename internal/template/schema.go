package template

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Schema field types accepted by the validator.
const (
	FieldTypeString  = "string"
	FieldTypeNumber  = "number"
	FieldTypeBoolean = "boolean"
	FieldTypeArray   = "array"
	FieldTypeObject  = "object"
)

// ValidFieldType reports whether t is a declarable schema field type.
func ValidFieldType(t string) bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeBoolean, FieldTypeArray, FieldTypeObject:
		return true
	}
	return false
}

// ValidateOutput checks parsed executor output against the declared schema.
// Arrays and objects are checked structurally only; nested fields are not
// validated in this schema version. A nil schema or an empty field list with
// strict validation off always passes.
func ValidateOutput(schema *OutputSchema, parsed map[string]any) (bool, []string) {
	if schema == nil {
		return true, nil
	}

	var errs []string
	for _, f := range schema.Fields {
		v, ok := parsed[f.FieldName]
		if !ok {
			if f.Required {
				errs = append(errs, fmt.Sprintf("field %s is required but missing", f.FieldName))
			}
			continue
		}
		if actual := jsonTypeOf(v); !typeMatches(f.FieldType, v) {
			errs = append(errs, fmt.Sprintf("field %s expected %s, got %s", f.FieldName, f.FieldType, actual))
		}
	}

	if schema.StrictValidation {
		declared := make(map[string]struct{}, len(schema.Fields))
		for _, f := range schema.Fields {
			declared[f.FieldName] = struct{}{}
		}
		extra := make([]string, 0)
		for k := range parsed {
			if _, ok := declared[k]; !ok {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		for _, k := range extra {
			errs = append(errs, fmt.Sprintf("field %s is not declared in the schema", k))
		}
	}

	return len(errs) == 0, errs
}

func typeMatches(declared string, v any) bool {
	switch declared {
	case FieldTypeString:
		_, ok := v.(string)
		return ok
	case FieldTypeNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64, json.Number:
			return true
		}
		return false
	case FieldTypeBoolean:
		_, ok := v.(bool)
		return ok
	case FieldTypeArray:
		_, ok := v.([]any)
		return ok
	case FieldTypeObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

func jsonTypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return FieldTypeString
	case bool:
		return FieldTypeBoolean
	case float64, float32, int, int32, int64, json.Number:
		return FieldTypeNumber
	case []any:
		return FieldTypeArray
	case map[string]any:
		return FieldTypeObject
	default:
		return fmt.Sprintf("%T", v)
	}
}
