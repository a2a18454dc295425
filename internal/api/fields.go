package api

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// FilterFields maps a partial update body onto column assignments.
// allowed maps accepted JSON keys to their column names; keys absent
// from the body are left out so the stored value is unchanged. Nested
// objects and arrays are re-encoded as JSON blob values.
func FilterFields(body map[string]any, allowed map[string]string) map[string]any {
	fields := map[string]any{}
	for key, column := range allowed {
		val, ok := body[key]
		if !ok {
			continue
		}
		switch val.(type) {
		case map[string]any, []any:
			raw, err := json.Marshal(val)
			if err != nil {
				continue
			}
			fields[column] = datatypes.JSON(raw)
		default:
			fields[column] = val
		}
	}
	return fields
}
