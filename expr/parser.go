package expr

import (
	"math"
	"strconv"
	"strings"
)

// ParseCondition parses a single `left op right [chain]` line. The chain
// token is optional and, when present, is parsed and retained but never
// changes the result: the core treats every condition list as AND-joined
// (see config.Load, which rejects the "or" chain at load time).
func ParseCondition(input string) (*Condition, error) {
	s := skipWS(input)

	leftVal, rest, ok, err := parseValue(s)
	if err != nil {
		return nil, err
	}
	if !ok {
		if strings.TrimSpace(s) == "" {
			return nil, newParseError(ErrTruncated, s)
		}
		return nil, newParseError(ErrInvalidLeftValue, s)
	}
	if err := rejectGluedLiteral(leftVal, rest, ErrInvalidLeftValue); err != nil {
		return nil, err
	}
	s = skipWS(rest)

	if s == "" {
		return nil, newParseError(ErrTruncated, s)
	}
	op, rest, ok := parseOperator(s)
	if !ok {
		return nil, newParseError(ErrInvalidOperator, s)
	}
	s = skipWS(rest)

	if s == "" {
		return nil, newParseError(ErrTruncated, s)
	}
	rightVal, rest, ok, err := parseValue(s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newParseError(ErrInvalidRightValue, s)
	}
	if err := rejectGluedLiteral(rightVal, rest, ErrInvalidRightValue); err != nil {
		return nil, err
	}
	s = skipWS(rest)

	if s == "" {
		return &Condition{Left: leftVal, Op: op, Right: rightVal}, nil
	}

	chain, rest, ok := parseChain(s)
	if !ok {
		return nil, newParseError(ErrInvalidChain, s)
	}
	s = skipWS(rest)
	if s != "" {
		return nil, newParseError(ErrInvalidChain, s)
	}
	return &Condition{Left: leftVal, Op: op, Right: rightVal, Chain: &chain}, nil
}

// ParseArgument parses a single configuration argument. Per the grammar an
// argument is an accessor only, never a bare literal.
func ParseArgument(input string) (*Argument, error) {
	s := skipWS(input)

	acc, rest, ok, err := parseAccess(s)
	if err != nil {
		return nil, err
	}
	if !ok {
		if strings.TrimSpace(s) == "" {
			return nil, newParseError(ErrTruncated, s)
		}
		return nil, newParseError(ErrInvalidLeftValue, s)
	}
	s = skipWS(rest)
	if s != "" {
		return nil, newParseError(ErrTrailingData, s)
	}
	return &Argument{Access: acc}, nil
}

// rejectGluedLiteral guards against a literal parse stopping mid-token, e.g.
// "111aaa" parsing as the int literal 111 followed by the bare word "aaa"
// with no separating whitespace. Accessors are exempt: accessKey already
// consumes greedily, so anything left over after one is a genuine new
// token, not an ambiguous continuation.
func rejectGluedLiteral(v Value, rest string, kind ErrorKind) error {
	if _, isLit := v.(Literal); !isLit {
		return nil
	}
	if rest == "" {
		return nil
	}
	if skipWS(rest) != rest {
		return nil
	}
	if isIdentChar(rest[0]) {
		return newParseError(kind, rest)
	}
	return nil
}

func skipWS(s string) string {
	return strings.TrimLeft(s, " \t\n\r")
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentChar(b byte) bool {
	return isAlpha(b) || isDigit(b) || b == '_'
}

func parseSign(s string) (neg bool, rest string) {
	if strings.HasPrefix(s, "-") {
		return true, s[1:]
	}
	if strings.HasPrefix(s, "+") {
		return false, s[1:]
	}
	return false, s
}

func takeDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func parseValue(s string) (Value, string, bool, error) {
	lit, rest, ok, err := parseLiteral(s)
	if err != nil {
		return nil, s, false, err
	}
	if ok {
		return lit, rest, true, nil
	}
	acc, rest, ok, err := parseAccess(s)
	if err != nil {
		return nil, s, false, err
	}
	if ok {
		return acc, rest, true, nil
	}
	return nil, s, false, nil
}

// parseLiteral tries float before int so that "1.5" is not consumed as the
// integer 1, then string, bool, null.
func parseLiteral(s string) (Literal, string, bool, error) {
	if f, rest, ok := parseFloatLit(s); ok {
		return Literal{Kind: LiteralFloat, Float: f}, rest, true, nil
	}
	if i, rest, ok, err := parseIntLit(s); err != nil {
		return Literal{}, s, false, err
	} else if ok {
		return Literal{Kind: LiteralInt, Int: i}, rest, true, nil
	}
	if str, rest, ok := parseStringLit(s); ok {
		return Literal{Kind: LiteralString, Str: str}, rest, true, nil
	}
	if b, rest, ok := parseBoolLit(s); ok {
		return Literal{Kind: LiteralBool, Bool: b}, rest, true, nil
	}
	if rest, ok := parseNullLit(s); ok {
		return Literal{Kind: LiteralNull}, rest, true, nil
	}
	return Literal{}, s, false, nil
}

func parseIntLit(s string) (int32, string, bool, error) {
	neg, r := parseSign(s)
	digits, rest := takeDigits(r)
	if digits == "" {
		return 0, s, false, nil
	}
	val, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, s, false, newParseError(ErrIntOverflow, s)
	}
	if neg {
		val = -val
	}
	if val > math.MaxInt32 || val < math.MinInt32 {
		return 0, s, false, newParseError(ErrIntOverflow, s)
	}
	return int32(val), rest, true, nil
}

// parseFloatLit requires both an integer part and a fractional part:
// "123." and ".5" are not floats.
func parseFloatLit(s string) (float64, string, bool) {
	neg, r := parseSign(s)
	intDigits, r2 := takeDigits(r)
	if intDigits == "" {
		return 0, s, false
	}
	if !strings.HasPrefix(r2, ".") {
		return 0, s, false
	}
	r3 := r2[1:]
	fracDigits, r4 := takeDigits(r3)
	if fracDigits == "" {
		return 0, s, false
	}
	val, err := strconv.ParseFloat(intDigits+"."+fracDigits, 64)
	if err != nil {
		return 0, s, false
	}
	if neg {
		val = -val
	}
	return val, r4, true
}

func parseStringLit(s string) (string, string, bool) {
	if !strings.HasPrefix(s, "\"") {
		return "", s, false
	}
	rest := s[1:]
	idx := strings.IndexByte(rest, '"')
	if idx < 0 {
		return "", s, false
	}
	return rest[:idx], rest[idx+1:], true
}

func parseBoolLit(s string) (bool, string, bool) {
	if strings.HasPrefix(s, "true") {
		return true, s[4:], true
	}
	if strings.HasPrefix(s, "false") {
		return false, s[5:], true
	}
	return false, s, false
}

func parseNullLit(s string) (string, bool) {
	if strings.HasPrefix(s, "null") {
		return s[4:], true
	}
	return s, false
}

func parseAccessKey(s string) (string, string, bool) {
	if s == "" || !isAlpha(s[0]) {
		return "", s, false
	}
	i := 1
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return s[:i], s[i:], true
}

// parseBracket scans a balanced "[...]" pair by counting depth and returns
// the inner slice and the text following the closing bracket.
func parseBracket(s string) (inner, rest string, ok bool, err error) {
	if s == "" || s[0] != '[' {
		return "", s, false, nil
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return s[1:i], s[i+1:], true, nil
			}
			if depth < 0 {
				return "", s, false, newParseError(ErrUnmatchedBracket, s[i:])
			}
		}
	}
	return "", s, false, newParseError(ErrUnmatchedBracket, s)
}

// parseAccessIndex parses one "[...]" step. The bracket contents must be
// wholly consumed by either an int or a nested accessor; strings, floats,
// bools, and null are rejected as indices.
func parseAccessIndex(s string) (IndexValue, string, bool, error) {
	inner, rest, ok, err := parseBracket(s)
	if err != nil {
		return nil, s, false, err
	}
	if !ok {
		return nil, s, false, nil
	}
	if iv, r2, ok2, err2 := parseIntLit(inner); err2 != nil {
		return nil, s, false, err2
	} else if ok2 && r2 == "" {
		return IntIndex(iv), rest, true, nil
	}
	if acc, r2, ok2, err2 := parseAccess(inner); err2 != nil {
		return nil, s, false, err2
	} else if ok2 && r2 == "" {
		return AccessIndex{Access: acc}, rest, true, nil
	}
	return nil, s, false, newParseError(ErrInvalidDataInArray, inner)
}

func parseContinuousIndices(s string) ([]AccessPath, string, error) {
	var paths []AccessPath
	for {
		idx, rest, ok, err := parseAccessIndex(s)
		if err != nil {
			return paths, s, err
		}
		if !ok {
			return paths, s, nil
		}
		paths = append(paths, IndexPath{Index: idx})
		s = rest
	}
}

// parseAccess parses a base key followed by any number of index steps,
// then a loop of ".key" steps each optionally followed by more indices.
func parseAccess(s string) (Access, string, bool, error) {
	base, rest, ok := parseAccessKey(s)
	if !ok {
		return Access{}, s, false, nil
	}
	s = rest

	var path []AccessPath
	idxPaths, rest2, err := parseContinuousIndices(s)
	if err != nil {
		return Access{}, s, false, err
	}
	path = append(path, idxPaths...)
	s = rest2

	for strings.HasPrefix(s, ".") {
		afterDot := s[1:]
		key, rest3, ok := parseAccessKey(afterDot)
		if !ok {
			return Access{}, s, false, newParseError(ErrDotNotFollowedByKey, afterDot)
		}
		path = append(path, KeyPath(key))
		s = rest3

		idxPaths2, rest4, err := parseContinuousIndices(s)
		if err != nil {
			return Access{}, s, false, err
		}
		path = append(path, idxPaths2...)
		s = rest4
	}

	return Access{Base: base, Path: path}, s, true, nil
}

func parseOperator(s string) (Operator, string, bool) {
	switch {
	case strings.HasPrefix(s, "=="):
		return OpEqual, s[2:], true
	case strings.HasPrefix(s, "!="):
		return OpNotEqual, s[2:], true
	case strings.HasPrefix(s, "<="):
		return OpLessEq, s[2:], true
	case strings.HasPrefix(s, ">="):
		return OpGreaterEq, s[2:], true
	case strings.HasPrefix(s, "<"):
		return OpLess, s[1:], true
	case strings.HasPrefix(s, ">"):
		return OpGreater, s[1:], true
	case strings.HasPrefix(s, "in"):
		return OpIn, s[2:], true
	default:
		return 0, s, false
	}
}

func parseChain(s string) (Chain, string, bool) {
	if strings.HasPrefix(s, "and") {
		return ChainAnd, s[3:], true
	}
	if strings.HasPrefix(s, "or") {
		return ChainOr, s[2:], true
	}
	return 0, s, false
}
