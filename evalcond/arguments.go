package evalcond

import (
	"encoding/json"

	"github.com/tidwall/sjson"

	"github.com/cruxfw/faaf/compile"
)

// ArgumentSlot pairs an object key with the compiled statement that
// produces its value: "filename" first, then "argument1", "argument2", …
// in configuration order.
type ArgumentSlot struct {
	Key  string
	Stmt compile.Statement
}

// BuildArguments assembles the JSON object passed to an analyzer. Each
// slot's value is materialized exactly as an Access value in Evaluate: a
// zero-row statement yields JSON null rather than an error.
func BuildArguments(slots []ArgumentSlot, src RowSource) (json.RawMessage, error) {
	doc := "{}"
	for _, slot := range slots {
		if !slot.Stmt.Bind.Ready() {
			return nil, newError(ErrBindMissing, "argument statement evaluated before its bind requirement was satisfied")
		}
		value, found, err := src.QueryScalar(slot.Stmt)
		if err != nil {
			return nil, err
		}
		if !found {
			value = nil
		}

		next, err := sjson.Set(doc, slot.Key, value)
		if err != nil {
			return nil, err
		}
		doc = next
	}
	return json.RawMessage(doc), nil
}

// Overlay adds the relative_path and absolute_path keys the Orchestrator
// attaches after BuildArguments, using the same sjson-based assembly.
func Overlay(args json.RawMessage, relativePath, absolutePath string) (json.RawMessage, error) {
	doc := string(args)
	doc, err := sjson.Set(doc, "relative_path", relativePath)
	if err != nil {
		return nil, err
	}
	doc, err = sjson.Set(doc, "absolute_path", absolutePath)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(doc), nil
}
