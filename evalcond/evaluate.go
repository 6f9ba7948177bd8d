// Package evalcond implements the Condition Evaluator and Argument
// Assembler: it materializes the two sides of a condition (or one argument
// accessor) to a JSON-ish Go value and compares or assembles them. A
// zero-row accessor result is not an error — it short-circuits a condition
// to false and materializes an argument to JSON null.
package evalcond

import (
	"math"

	"github.com/spf13/cast"

	"github.com/cruxfw/faaf/compile"
	"github.com/cruxfw/faaf/expr"
)

// RowSource executes a compiled accessor statement against the store and
// returns its single decoded column, or found=false for zero rows.
type RowSource interface {
	QueryScalar(stmt compile.Statement) (value any, found bool, err error)
}

// Evaluate runs one Condition against the statements its two Value sides
// compiled to, if any. left/right are nil exactly when the matching side of
// cond is a Literal.
func Evaluate(cond expr.Condition, left, right *compile.Statement, src RowSource) (bool, error) {
	leftVal, leftZero, err := materialize(cond.Left, left, src)
	if err != nil {
		return false, err
	}
	rightVal, rightZero, err := materialize(cond.Right, right, src)
	if err != nil {
		return false, err
	}
	if leftZero || rightZero {
		return false, nil
	}
	return compare(cond.Op, leftVal, rightVal)
}

// materialize resolves one Value side to a JSON-ish Go value. zeroRows is
// true only when v is an Access whose statement returned no rows.
func materialize(v expr.Value, stmt *compile.Statement, src RowSource) (value any, zeroRows bool, err error) {
	switch val := v.(type) {
	case expr.Literal:
		if stmt != nil {
			return nil, false, newError(ErrShapeMismatch, "literal value paired with a compiled statement")
		}
		return literalToJSON(val), false, nil

	case expr.Access:
		if stmt == nil {
			return nil, false, newError(ErrShapeMismatch, "accessor value missing a compiled statement")
		}
		if !stmt.Bind.Ready() {
			return nil, false, newError(ErrBindMissing, "statement evaluated before its bind requirement was satisfied")
		}
		v, found, err := src.QueryScalar(*stmt)
		if err != nil {
			return nil, false, err
		}
		if !found {
			return nil, true, nil
		}
		return v, false, nil

	default:
		return nil, false, newError(ErrShapeMismatch, "unrecognized value kind")
	}
}

func literalToJSON(l expr.Literal) any {
	switch l.Kind {
	case expr.LiteralInt:
		return float64(l.Int)
	case expr.LiteralFloat:
		if math.IsNaN(l.Float) || math.IsInf(l.Float, 0) {
			return float64(0)
		}
		return l.Float
	case expr.LiteralString:
		return l.Str
	case expr.LiteralBool:
		return l.Bool
	default:
		return nil
	}
}

func compare(op expr.Operator, left, right any) (bool, error) {
	switch op {
	case expr.OpEqual:
		return jsonEqual(left, right), nil
	case expr.OpNotEqual:
		return !jsonEqual(left, right), nil
	case expr.OpLess, expr.OpLessEq, expr.OpGreater, expr.OpGreaterEq:
		return compareNumeric(op, left, right)
	case expr.OpIn:
		return compareIn(left, right)
	default:
		return false, newError(ErrTypeMismatch, "unrecognized operator")
	}
}

// compareNumeric compares as int64 when both sides are exact integers,
// falling back to float64 otherwise; cast.ToFloat64E supplies the
// coercion in the float path rather than a bespoke type switch.
func compareNumeric(op expr.Operator, left, right any) (bool, error) {
	if li, lok := asExactInt64(left); lok {
		if ri, rok := asExactInt64(right); rok {
			return compareOrdered(op, li, ri), nil
		}
	}

	if !isNumeric(left) || !isNumeric(right) {
		return false, newError(ErrTypeMismatch, "comparison requires two numeric operands")
	}
	lf, lErr := cast.ToFloat64E(left)
	rf, rErr := cast.ToFloat64E(right)
	if lErr != nil || rErr != nil {
		return false, newError(ErrTypeMismatch, "comparison requires two numeric operands")
	}
	return compareOrdered(op, lf, rf), nil
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, int64, int:
		return true
	default:
		return false
	}
}

func asExactInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		if n == math.Trunc(n) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func compareOrdered[T int64 | float64](op expr.Operator, left, right T) bool {
	switch op {
	case expr.OpLess:
		return left < right
	case expr.OpLessEq:
		return left <= right
	case expr.OpGreater:
		return left > right
	case expr.OpGreaterEq:
		return left >= right
	default:
		return false
	}
}

// compareIn treats the left operand as the container and the right operand
// as the thing being searched for, consistently across all three shapes:
// (String, String) substring, (Object, String) key containment, (Array,
// any) element equality.
func compareIn(left, right any) (bool, error) {
	switch l := left.(type) {
	case string:
		if r, ok := right.(string); ok {
			return containsSubstring(l, r), nil
		}
	case map[string]any:
		if r, ok := right.(string); ok {
			_, exists := l[r]
			return exists, nil
		}
	case []any:
		for _, elem := range l {
			if jsonEqual(elem, right) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, newError(ErrTypeMismatch, "\"in\" requires (string, string), (object, string), or (array, any)")
}

func containsSubstring(haystack, needle string) bool {
	return len(needle) == 0 || indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func jsonEqual(a, b any) bool {
	af, aIsNum := numericOf(a)
	bf, bIsNum := numericOf(b)
	if aIsNum && bIsNum {
		return af == bf
	}

	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !jsonEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !jsonEqual(v, bvv) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func numericOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
