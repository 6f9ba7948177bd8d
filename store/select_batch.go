package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cruxfw/faaf/compile"
	"github.com/cruxfw/faaf/config"
	"github.com/cruxfw/faaf/evalcond"
	"github.com/cruxfw/faaf/expr"
)

// QueryScalar implements evalcond.RowSource: it runs stmt, scans its
// single result column, and decodes it per decodeValue. Zero rows is
// reported as found=false, not an error.
func (t *Tx) QueryScalar(stmt compile.Statement) (any, bool, error) {
	var args []any
	if len(stmt.Bind.ResultIDs) > 0 {
		args = append(args, stmt.Bind.ResultIDs[0])
	}

	var raw any
	err := t.tx.QueryRow(stmt.SQL, args...).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapIO(fmt.Sprintf("execute statement %q", stmt.SQL), err)
	}

	decoded, err := decodeValue(raw, stmt.JSONValue)
	if err != nil {
		return nil, false, wrapIO("decode statement result", err)
	}
	return decoded, true, nil
}

type conditionSelector struct {
	cond  expr.Condition
	left  *compile.Statement
	right *compile.Statement
}

type analyzerSelectors struct {
	arguments  []evalcond.ArgumentSlot
	conditions []conditionSelector
}

// SelectBatch holds every compiled accessor statement for a configuration,
// keyed by analyzer name, ready to be bound once per firmware entry.
type SelectBatch struct {
	tx        *Tx
	analyzers map[string]*analyzerSelectors
}

// PrepareSelects compiles every argument and condition accessor for every
// analyzer in cfg. `filename` is compiled as the implicit first argument.
func (s *Store) PrepareSelects(tx *Tx, cfg *config.Config) (*SelectBatch, error) {
	sb := &SelectBatch{tx: tx, analyzers: make(map[string]*analyzerSelectors, len(cfg.Analyzers))}

	filenameStmt, err := compile.Compile(expr.Access{Base: "path"})
	if err != nil {
		return nil, &Error{Kind: ErrCompile, Message: "compile implicit filename accessor", Err: err}
	}

	for _, a := range cfg.Analyzers {
		as := &analyzerSelectors{
			arguments: []evalcond.ArgumentSlot{{Key: "filename", Stmt: filenameStmt}},
		}

		for i, arg := range a.Arguments {
			stmt, err := compile.Compile(arg.Access)
			if err != nil {
				return nil, &Error{Kind: ErrCompile, Message: fmt.Sprintf("analyzer %q argument %d", a.Name, i+1), Err: err}
			}
			as.arguments = append(as.arguments, evalcond.ArgumentSlot{
				Key:  fmt.Sprintf("argument%d", i+1),
				Stmt: stmt,
			})
		}

		for _, cond := range a.Conditions {
			cs := conditionSelector{cond: cond}
			if acc, ok := cond.Left.(expr.Access); ok {
				stmt, err := compile.Compile(acc)
				if err != nil {
					return nil, &Error{Kind: ErrCompile, Message: fmt.Sprintf("analyzer %q condition left side", a.Name), Err: err}
				}
				cs.left = &stmt
			}
			if acc, ok := cond.Right.(expr.Access); ok {
				stmt, err := compile.Compile(acc)
				if err != nil {
					return nil, &Error{Kind: ErrCompile, Message: fmt.Sprintf("analyzer %q condition right side", a.Name), Err: err}
				}
				cs.right = &stmt
			}
			as.conditions = append(as.conditions, cs)
		}

		sb.analyzers[a.Name] = as
	}

	return sb, nil
}

func (sb *SelectBatch) lookup(name string) (*analyzerSelectors, error) {
	as, ok := sb.analyzers[name]
	if !ok {
		return nil, &Error{Kind: ErrNoAnalyzerName, Message: name}
	}
	return as, nil
}

// Bind supplies resultID to every statement's bind requirement for the
// named analyzer.
func (sb *SelectBatch) Bind(name string, resultID int64) error {
	as, err := sb.lookup(name)
	if err != nil {
		return err
	}
	for i := range as.arguments {
		as.arguments[i].Stmt = as.arguments[i].Stmt.WithResultID(resultID)
	}
	for i := range as.conditions {
		if as.conditions[i].left != nil {
			bound := as.conditions[i].left.WithResultID(resultID)
			as.conditions[i].left = &bound
		}
		if as.conditions[i].right != nil {
			bound := as.conditions[i].right.WithResultID(resultID)
			as.conditions[i].right = &bound
		}
	}
	return nil
}

// EvaluateConditions runs every condition for the named analyzer and
// AND-reduces the results.
func (sb *SelectBatch) EvaluateConditions(name string) (bool, error) {
	as, err := sb.lookup(name)
	if err != nil {
		return false, err
	}
	for _, cs := range as.conditions {
		pass, err := evalcond.Evaluate(cs.cond, cs.left, cs.right, sb.tx)
		if err != nil {
			return false, err
		}
		if !pass {
			return false, nil
		}
	}
	return true, nil
}

// BuildArguments assembles the JSON argument object for the named
// analyzer.
func (sb *SelectBatch) BuildArguments(name string) (json.RawMessage, error) {
	as, err := sb.lookup(name)
	if err != nil {
		return nil, err
	}
	return evalcond.BuildArguments(as.arguments, sb.tx)
}
