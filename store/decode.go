package store

import (
	"encoding/base64"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// decodeValue turns a raw driver.Value into the JSON-ish Go representation
// evalcond operates on: nil, bool, float64, string, map[string]any, []any.
// jsonColumn is true only for values extracted from an analyzer's JSON
// value column; path/pathlist results are always plain text and are never
// run through the JSON parser. A BLOB column (always []byte from the
// driver) is never textual and is always base64-encoded rather than run
// through decodeText, regardless of jsonColumn.
func decodeValue(raw any, jsonColumn bool) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case int64:
		return float64(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil
		}
		return v, nil
	case bool:
		return v, nil
	case []byte:
		return base64.StdEncoding.EncodeToString(v), nil
	case string:
		return decodeText(v, jsonColumn), nil
	default:
		return nil, fmt.Errorf("store: unsupported column value type %T", raw)
	}
}

// decodeText parses a JSON-column text value structurally via gjson so
// object/array results stay usable by evalcond's "in" comparisons. Text that
// is not valid JSON (e.g. a string extracted with ->>) and a plain text
// column (e.g. result.path) are returned unparsed.
func decodeText(s string, jsonColumn bool) any {
	if !jsonColumn {
		return s
	}
	if !gjson.Valid(s) {
		return s
	}
	return gjsonToGo(gjson.Parse(s))
}

func gjsonToGo(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num
	case gjson.String:
		return r.Str
	case gjson.JSON:
		if r.IsArray() {
			out := make([]any, 0)
			for _, e := range r.Array() {
				out = append(out, gjsonToGo(e))
			}
			return out
		}
		out := map[string]any{}
		r.ForEach(func(key, value gjson.Result) bool {
			out[key.String()] = gjsonToGo(value)
			return true
		})
		return out
	default:
		return r.Value()
	}
}
