package evalcond_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cruxfw/faaf/compile"
	"github.com/cruxfw/faaf/evalcond"
	"github.com/cruxfw/faaf/expr"
)

type fakeRowSource struct {
	values map[string]any
}

func (f *fakeRowSource) QueryScalar(stmt compile.Statement) (any, bool, error) {
	v, ok := f.values[stmt.SQL]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func readyStmt(sql string) compile.Statement {
	s := compile.Statement{SQL: sql}
	return s.WithResultID(1)
}

func intLit(n int32) expr.Literal { return expr.Literal{Kind: expr.LiteralInt, Int: n} }
func strLit(s string) expr.Literal {
	return expr.Literal{Kind: expr.LiteralString, Str: s}
}

func accessOf(base string) expr.Access { return expr.Access{Base: base} }

func TestEvaluate_LiteralEquality(t *testing.T) {
	cond := expr.Condition{Left: intLit(5), Op: expr.OpEqual, Right: intLit(5)}
	pass, err := evalcond.Evaluate(cond, nil, nil, &fakeRowSource{})
	require.NoError(t, err)
	require.True(t, pass)
}

func TestEvaluate_AccessVsLiteral(t *testing.T) {
	src := &fakeRowSource{values: map[string]any{"select mime": "application/x-pie-executable"}}
	stmt := readyStmt("select mime")
	cond := expr.Condition{Left: accessOf("basic"), Op: expr.OpEqual, Right: strLit("application/x-pie-executable")}

	pass, err := evalcond.Evaluate(cond, &stmt, nil, src)
	require.NoError(t, err)
	require.True(t, pass)
}

func TestEvaluate_ZeroRowShortCircuitsToFalse(t *testing.T) {
	src := &fakeRowSource{}
	stmt := readyStmt("select missing")
	cond := expr.Condition{Left: accessOf("a"), Op: expr.OpEqual, Right: intLit(1)}

	pass, err := evalcond.Evaluate(cond, &stmt, nil, src)
	require.NoError(t, err)
	require.False(t, pass)
}

func TestEvaluate_ShapeMismatchLiteralWithStatement(t *testing.T) {
	stmt := readyStmt("select x")
	cond := expr.Condition{Left: intLit(1), Op: expr.OpEqual, Right: intLit(1)}

	_, err := evalcond.Evaluate(cond, &stmt, nil, &fakeRowSource{})
	require.Error(t, err)
	var e *evalcond.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, evalcond.ErrShapeMismatch, e.Kind)
}

func TestEvaluate_ShapeMismatchAccessWithoutStatement(t *testing.T) {
	cond := expr.Condition{Left: accessOf("a"), Op: expr.OpEqual, Right: intLit(1)}

	_, err := evalcond.Evaluate(cond, nil, nil, &fakeRowSource{})
	require.Error(t, err)
	var e *evalcond.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, evalcond.ErrShapeMismatch, e.Kind)
}

func TestEvaluate_BindMissing(t *testing.T) {
	unbound := compile.Statement{SQL: "select x"}
	cond := expr.Condition{Left: accessOf("a"), Op: expr.OpEqual, Right: intLit(1)}

	_, err := evalcond.Evaluate(cond, &unbound, nil, &fakeRowSource{})
	require.Error(t, err)
	var e *evalcond.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, evalcond.ErrBindMissing, e.Kind)
}

func TestEvaluate_IntegerComparisonExact(t *testing.T) {
	cond := expr.Condition{Left: intLit(10), Op: expr.OpGreater, Right: intLit(5)}
	pass, err := evalcond.Evaluate(cond, nil, nil, &fakeRowSource{})
	require.NoError(t, err)
	require.True(t, pass)
}

func TestEvaluate_FloatFallbackComparison(t *testing.T) {
	src := &fakeRowSource{values: map[string]any{"select size": 5.5}}
	stmt := readyStmt("select size")
	cond := expr.Condition{Left: accessOf("basic"), Op: expr.OpGreater, Right: expr.Literal{Kind: expr.LiteralFloat, Float: 5.4}}

	pass, err := evalcond.Evaluate(cond, &stmt, nil, src)
	require.NoError(t, err)
	require.True(t, pass)
}

func TestEvaluate_TypeMismatchOnNonNumericComparison(t *testing.T) {
	src := &fakeRowSource{values: map[string]any{"select size": "big"}}
	stmt := readyStmt("select size")
	cond := expr.Condition{Left: accessOf("basic"), Op: expr.OpGreater, Right: intLit(5000)}

	_, err := evalcond.Evaluate(cond, &stmt, nil, src)
	require.Error(t, err)
	var e *evalcond.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, evalcond.ErrTypeMismatch, e.Kind)
}

func TestEvaluate_InStringSubstring(t *testing.T) {
	src := &fakeRowSource{values: map[string]any{"select name": "exec_a"}}
	stmt := readyStmt("select name")
	cond := expr.Condition{Left: accessOf("basic"), Op: expr.OpIn, Right: strLit("exec_")}

	pass, err := evalcond.Evaluate(cond, &stmt, nil, src)
	require.NoError(t, err)
	require.True(t, pass)
}

func TestEvaluate_InObjectKeyContainment(t *testing.T) {
	src := &fakeRowSource{values: map[string]any{
		"select obj": map[string]any{"mime": "x"},
	}}
	stmt := readyStmt("select obj")
	cond := expr.Condition{Left: accessOf("basic"), Op: expr.OpIn, Right: strLit("mime")}

	pass, err := evalcond.Evaluate(cond, &stmt, nil, src)
	require.NoError(t, err)
	require.True(t, pass)
}

func TestEvaluate_InArrayElementEquality(t *testing.T) {
	src := &fakeRowSource{values: map[string]any{
		"select arr": []any{float64(1), float64(2), float64(3)},
	}}
	stmt := readyStmt("select arr")
	cond := expr.Condition{Left: accessOf("basic"), Op: expr.OpIn, Right: intLit(2)}

	pass, err := evalcond.Evaluate(cond, &stmt, nil, src)
	require.NoError(t, err)
	require.True(t, pass)
}

func TestEvaluate_InRejectsUnsupportedShape(t *testing.T) {
	src := &fakeRowSource{values: map[string]any{"select x": float64(5)}}
	stmt := readyStmt("select x")
	cond := expr.Condition{Left: accessOf("basic"), Op: expr.OpIn, Right: intLit(2)}

	_, err := evalcond.Evaluate(cond, &stmt, nil, src)
	require.Error(t, err)
	var e *evalcond.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, evalcond.ErrTypeMismatch, e.Kind)
}

func TestBuildArguments_FilenameAndZeroRowNull(t *testing.T) {
	filenameStmt := readyStmt("select path")
	missingStmt := readyStmt("select missing")
	src := &fakeRowSource{values: map[string]any{"select path": "/bin/exec_a"}}

	slots := []evalcond.ArgumentSlot{
		{Key: "filename", Stmt: filenameStmt},
		{Key: "argument1", Stmt: missingStmt},
	}

	args, err := evalcond.BuildArguments(slots, src)
	require.NoError(t, err)
	require.JSONEq(t, `{"filename":"/bin/exec_a","argument1":null}`, string(args))
}

func TestBuildArguments_BindMissing(t *testing.T) {
	unbound := compile.Statement{SQL: "select x"}
	slots := []evalcond.ArgumentSlot{{Key: "argument1", Stmt: unbound}}

	_, err := evalcond.BuildArguments(slots, &fakeRowSource{})
	require.Error(t, err)
	var e *evalcond.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, evalcond.ErrBindMissing, e.Kind)
}

func TestOverlay_AddsRelativeAndAbsolutePath(t *testing.T) {
	out, err := evalcond.Overlay([]byte(`{"filename":"/bin/x"}`), "/bin/x", "/firmware/bin/x")
	require.NoError(t, err)
	require.JSONEq(t, `{"filename":"/bin/x","relative_path":"/bin/x","absolute_path":"/firmware/bin/x"}`, string(out))
}
