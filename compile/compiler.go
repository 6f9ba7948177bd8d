package compile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cruxfw/faaf/expr"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Compile lowers a single expr.Access to a prepared Statement. The table
// name embedded in the analyzer-name branch must already be a valid
// identifier; Compile re-validates it defensively, since it is
// string-interpolated into the SQL text rather than bound as a parameter.
func Compile(acc expr.Access) (Statement, error) {
	switch acc.Base {
	case "path":
		if len(acc.Path) > 0 {
			return Statement{}, newError(ErrUnsupported, "path accessor does not accept a path suffix")
		}
		return Statement{
			SQL:  "SELECT path FROM result WHERE id = ?1",
			Bind: requiredResultID(),
		}, nil

	case "pathlist":
		if len(acc.Path) > 0 {
			return Statement{}, newError(ErrUnsupported, "pathlist accessor does not accept a path suffix")
		}
		return Statement{
			SQL:  "SELECT path FROM result",
			Bind: requiredNone(),
		}, nil

	default:
		if !identifierPattern.MatchString(acc.Base) {
			return Statement{}, newError(ErrBadIdentifier, fmt.Sprintf("analyzer name %q is not a valid identifier", acc.Base))
		}
		jsonPath, err := compileJSONPath(acc.Path)
		if err != nil {
			return Statement{}, err
		}
		sql := fmt.Sprintf(
			"SELECT analyzer.value->>'%s' FROM %s AS analyzer JOIN result ON analyzer.result_id = result.id WHERE result.id = ?1",
			jsonPath, acc.Base,
		)
		return Statement{SQL: sql, Bind: requiredResultID(), JSONValue: true}, nil
	}
}

// compileJSONPath synthesizes the SQLite JSON path operand from an
// AccessPath list: a Key appends ".k", an Index(Int) appends "[i]", an
// Index(Access) is rejected, and the first element (if any) must be a Key
// — this rejects shapes like "analyzer[5]".
func compileJSONPath(path []expr.AccessPath) (string, error) {
	if len(path) == 0 {
		return "$", nil
	}
	if _, ok := path[0].(expr.KeyPath); !ok {
		return "", newError(ErrUnsupported, "first accessor path element must be a key")
	}

	var b strings.Builder
	b.WriteString("$")
	for _, p := range path {
		switch v := p.(type) {
		case expr.KeyPath:
			if !identifierPattern.MatchString(string(v)) {
				return "", newError(ErrBadIdentifier, fmt.Sprintf("json key %q is not a valid identifier", string(v)))
			}
			b.WriteString(".")
			b.WriteString(string(v))
		case expr.IndexPath:
			switch idx := v.Index.(type) {
			case expr.IntIndex:
				b.WriteString("[")
				b.WriteString(strconv.Itoa(int(idx)))
				b.WriteString("]")
			case expr.AccessIndex:
				return "", newError(ErrUnsupported, "json array does not accept non-integer index")
			default:
				return "", newError(ErrUnsupported, "unrecognized index value")
			}
		default:
			return "", newError(ErrUnsupported, "unrecognized access path element")
		}
	}
	return b.String(), nil
}
