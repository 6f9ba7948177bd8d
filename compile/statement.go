// Package compile lowers expr.Access AST nodes into prepared SQL text plus
// a deferred-binding requirement, per the base/path dispatch table: `path`
// resolves the current result row, `pathlist` resolves every row, and
// anything else is routed to an analyzer-name lookup through that
// analyzer's JSON value column.
package compile

// BindState is the two-state machine a Statement's bind requirement moves
// through: Required until the Orchestrator supplies a result id, Provided
// after.
type BindState int

const (
	BindRequired BindState = iota
	BindProvided
)

// BindRequirement is the set of placeholders a compiled statement needs
// before it can be executed. Every placeholder in this grammar is a result
// id, so ResultIDs is either empty (nothing to bind, e.g. pathlist) or
// holds one slot. While State is BindRequired the slot values are
// meaningless; Bind fills them and flips the state to BindProvided.
type BindRequirement struct {
	State     BindState
	ResultIDs []int64
}

func requiredResultID() BindRequirement {
	return BindRequirement{State: BindRequired, ResultIDs: []int64{0}}
}

func requiredNone() BindRequirement {
	return BindRequirement{State: BindRequired, ResultIDs: nil}
}

// Bind supplies the current result id to every placeholder slot, returning
// a new, Provided BindRequirement. A statement with zero slots (pathlist)
// still needs this call to move to BindProvided.
func (b BindRequirement) Bind(resultID int64) BindRequirement {
	vals := make([]int64, len(b.ResultIDs))
	for i := range vals {
		vals[i] = resultID
	}
	return BindRequirement{State: BindProvided, ResultIDs: vals}
}

// Ready reports whether the requirement is satisfied, i.e. Bind has been
// applied. A BindRequired statement is not ready even when it has no slots.
func (b BindRequirement) Ready() bool {
	return b.State == BindProvided
}

// Statement is a compiled accessor: prepared SQL text awaiting the bind
// parameters described by Bind. JSONValue marks statements whose single
// result column is extracted from an analyzer's JSON value column (as
// opposed to the plain TEXT `path` column), so the store knows whether to
// attempt a structural JSON decode of the returned value.
type Statement struct {
	SQL       string
	Bind      BindRequirement
	JSONValue bool
}

// WithResultID returns a copy of s with its bind requirement satisfied by
// resultID. Rebinding is legal and expected: the Orchestrator rebinds every
// analyzer's statements once per firmware entry.
func (s Statement) WithResultID(resultID int64) Statement {
	s.Bind = s.Bind.Bind(resultID)
	return s
}
