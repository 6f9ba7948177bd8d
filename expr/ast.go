// Package expr implements the accessor/condition expression language used
// by analyzer configuration: literals, accessors, comparison operators, and
// the small chain grammar that joins conditions.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// LiteralKind tags the concrete shape held by a Literal value.
type LiteralKind int

const (
	LiteralInt LiteralKind = iota
	LiteralFloat
	LiteralString
	LiteralBool
	LiteralNull
)

// Literal is a self-evaluating scalar: exactly one of its fields is
// meaningful, selected by Kind.
type Literal struct {
	Kind LiteralKind
	Int  int32
	Float float64
	Str  string
	Bool bool
}

func (Literal) value() {}

func (l Literal) String() string {
	switch l.Kind {
	case LiteralInt:
		return strconv.FormatInt(int64(l.Int), 10)
	case LiteralFloat:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case LiteralString:
		return strconv.Quote(l.Str)
	case LiteralBool:
		return strconv.FormatBool(l.Bool)
	default:
		return "null"
	}
}

// IndexValue is the payload of a bracketed index: either a literal integer
// or a nested accessor.
type IndexValue interface {
	indexValue()
	String() string
}

// IntIndex is an integer array/position index, e.g. the `5` in `foo[5]`.
type IntIndex int32

func (IntIndex) indexValue()    {}
func (i IntIndex) String() string { return strconv.FormatInt(int64(i), 10) }

// AccessIndex is a nested accessor used as an index, e.g. the `bar.baz` in
// `foo[bar.baz]`.
type AccessIndex struct {
	Access Access
}

func (AccessIndex) indexValue()      {}
func (a AccessIndex) String() string { return a.Access.String() }

// AccessPath is one step after the base of an accessor: a dotted key or a
// bracketed index.
type AccessPath interface {
	accessPath()
	String() string
}

// KeyPath is the `.key` step of an accessor.
type KeyPath string

func (KeyPath) accessPath()      {}
func (k KeyPath) String() string { return "." + string(k) }

// IndexPath is the `[index]` step of an accessor.
type IndexPath struct {
	Index IndexValue
}

func (IndexPath) accessPath()      {}
func (p IndexPath) String() string { return "[" + p.Index.String() + "]" }

// Access is an accessor expression: a base identifier followed by zero or
// more key/index steps. Path is nil when the accessor is a bare base, e.g.
// `pathlist`.
type Access struct {
	Base string
	Path []AccessPath
}

func (Access) value() {}

func (a Access) String() string {
	var b strings.Builder
	b.WriteString(a.Base)
	for _, p := range a.Path {
		b.WriteString(p.String())
	}
	return b.String()
}

// Value is either a Literal or an Access, the two shapes the grammar's
// `value` production can produce.
type Value interface {
	value()
	fmt.Stringer
}

// Operator is a condition's comparison operator.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpLess
	OpLessEq
	OpGreater
	OpGreaterEq
	OpIn
)

func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "=="
	case OpNotEqual:
		return "!="
	case OpLess:
		return "<"
	case OpLessEq:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEq:
		return ">="
	case OpIn:
		return "in"
	default:
		return "?"
	}
}

// Chain is the boolean connective following a condition. The core only
// implements AND semantics; OR is recognized by the grammar and rejected at
// load time (see config.Load).
type Chain int

const (
	ChainAnd Chain = iota
	ChainOr
)

func (c Chain) String() string {
	if c == ChainOr {
		return "or"
	}
	return "and"
}

// Condition is one parsed `left op right [chain]` line.
type Condition struct {
	Left  Value
	Op    Operator
	Right Value
	Chain *Chain // nil when no chain token followed
}

func (c Condition) String() string {
	var b strings.Builder
	b.WriteString(c.Left.String())
	b.WriteString(" ")
	b.WriteString(c.Op.String())
	b.WriteString(" ")
	b.WriteString(c.Right.String())
	if c.Chain != nil {
		b.WriteString(" ")
		b.WriteString(c.Chain.String())
	}
	return b.String()
}

// Argument is one parsed configuration argument. Per the grammar, an
// argument is an accessor, never a bare literal.
type Argument struct {
	Access Access
}

func (a Argument) String() string { return a.Access.String() }
