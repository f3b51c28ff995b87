package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doof-lang/doof/ast"
	"github.com/doof-lang/doof/bytecode"
	"github.com/doof-lang/doof/errors"
	"github.com/doof-lang/doof/sema"
)

// build accumulates the validator metadata a test program needs. Tests
// construct syntax trees by hand and register expression types and call
// dispatch records as they go.
type build struct {
	info *sema.Info
}

func newBuild(globals ...string) *build {
	b := &build{info: sema.NewInfo()}
	b.info.Globals = globals
	return b
}

func (b *build) typed(e ast.Expr, t *sema.Type) ast.Expr {
	b.info.ExprTypes[e] = t
	return e
}

func (b *build) intExpr(e ast.Expr) ast.Expr {
	return b.typed(e, &sema.Type{Kind: sema.KindInt})
}

func (b *build) intLit(v int64) ast.Expr {
	return b.intExpr(&ast.IntLit{Value: v})
}

func (b *build) strLit(s string) ast.Expr {
	return b.typed(&ast.StringLit{Value: s}, &sema.Type{Kind: sema.KindString})
}

func (b *build) ident(name string, t *sema.Type) ast.Expr {
	return b.typed(&ast.Ident{Name: name}, t)
}

func (b *build) intIdent(name string) ast.Expr {
	return b.ident(name, &sema.Type{Kind: sema.KindInt})
}

func (b *build) binary(operator string, x, y ast.Expr, t *sema.Type) ast.Expr {
	return b.typed(&ast.Binary{Op: operator, X: x, Y: y}, t)
}

func (b *build) call(fun ast.Expr, ci *sema.CallInfo, args ...ast.Expr) *ast.Call {
	wrapped := make([]*ast.Arg, len(args))
	for i, a := range args {
		wrapped[i] = &ast.Arg{Value: a}
	}
	c := &ast.Call{Fun: fun, Args: wrapped}
	b.info.Calls[c] = ci
	return c
}

func (b *build) funcDecl(name string, params []string, info *sema.FunctionInfo, body ...ast.Stmt) *ast.FuncDecl {
	ps := make([]*ast.Param, len(params))
	for i, p := range params {
		ps[i] = &ast.Param{Name: p}
	}
	decl := &ast.FuncDecl{Name: name, Params: ps, Body: &ast.Block{Stmts: body}}
	if info.Boxed == nil {
		info.Boxed = map[string]bool{}
	}
	b.info.Functions[decl] = info
	return decl
}

func (b *build) compile(t *testing.T, stmts ...ast.Stmt) *bytecode.Document {
	t.Helper()
	doc, err := Compile(&ast.Program{Stmts: stmts}, b.info, Config{SourceFile: "test.doof"})
	require.NoError(t, err)
	return doc
}

func (b *build) compileErr(t *testing.T, stmts ...ast.Stmt) *errors.CompileError {
	t.Helper()
	_, err := Compile(&ast.Program{Stmts: stmts}, b.info, Config{SourceFile: "test.doof"})
	require.Error(t, err)
	ce, ok := err.(*errors.CompileError)
	require.True(t, ok, "expected CompileError, got %T: %v", err, err)
	return ce
}

func mnemonics(doc *bytecode.Document) []string {
	out := make([]string, len(doc.Instructions))
	for i, inst := range doc.Instructions {
		out[i] = inst.Mnemonic
	}
	return out
}

func targetOf(t *testing.T, doc *bytecode.Document, idx int) int {
	t.Helper()
	return doc.Instructions[idx].Instruction().Target(idx)
}

func TestEmptyProgram(t *testing.T) {
	doc := newBuild().compile(t)
	assert.Equal(t, []string{"HALT"}, mnemonics(doc))
	assert.Equal(t, 0, doc.EntryPoint)
	require.Len(t, doc.Functions, 1)
	assert.Equal(t, "__main__", doc.Functions[0].Name)
	assert.Equal(t, 0, doc.Functions[0].Address)
	assert.Equal(t, 1, doc.Functions[0].End)
}

func TestGlobalVarDecl(t *testing.T) {
	b := newBuild("x")
	doc := b.compile(t, &ast.VarDecl{Name: "x", Value: b.intLit(1)})
	assert.Equal(t, []string{"LOAD_INT", "STORE_GLOBAL", "HALT"}, mnemonics(doc))
	assert.Equal(t, 1, doc.GlobalCount)
	store := doc.Instructions[1].Instruction()
	assert.Equal(t, uint16(0), store.BC())
}

func TestWhileLoopShape(t *testing.T) {
	b := newBuild("i")
	cond := b.binary("<", b.intIdent("i"), b.intLit(3), &sema.Type{Kind: sema.KindBool})
	body := &ast.Assign{
		Target: b.intIdent("i"),
		Op:     "=",
		Value:  b.binary("+", b.intIdent("i"), b.intLit(1), &sema.Type{Kind: sema.KindInt}),
	}
	doc := b.compile(t, &ast.While{Cond: cond, Body: &ast.Block{Stmts: []ast.Stmt{body}}})

	assert.Equal(t, []string{
		"LOAD_GLOBAL", "LOAD_INT", "LT_INT", "JUMP_IF_FALSE",
		"LOAD_GLOBAL", "LOAD_INT", "ADD_INT", "MOVE", "STORE_GLOBAL",
		"JUMP", "HALT",
	}, mnemonics(doc))

	// The exit branch lands on HALT; the back edge lands on the test.
	assert.Equal(t, 10, targetOf(t, doc, 3))
	assert.Equal(t, 0, targetOf(t, doc, 9))

	// Branch offsets are relative to the branch itself; jump offsets to
	// the following instruction.
	assert.Equal(t, 7, doc.Instructions[3].Instruction().Offset())
	assert.Equal(t, -10, doc.Instructions[9].Instruction().Offset())

	require.NoError(t, bytecode.Verify(doc))
}

func TestIfElseShape(t *testing.T) {
	b := newBuild("flag", "x")
	cond := b.ident("flag", &sema.Type{Kind: sema.KindBool})
	doc := b.compile(t, &ast.If{
		Cond: cond,
		Then: &ast.Block{Stmts: []ast.Stmt{
			&ast.Assign{Target: b.intIdent("x"), Op: "=", Value: b.intLit(1)},
		}},
		Else: &ast.Block{Stmts: []ast.Stmt{
			&ast.Assign{Target: b.intIdent("x"), Op: "=", Value: b.intLit(2)},
		}},
	})
	assert.Equal(t, []string{
		"LOAD_GLOBAL", "JUMP_IF_FALSE",
		"LOAD_INT", "STORE_GLOBAL", "JUMP",
		"LOAD_INT", "STORE_GLOBAL", "HALT",
	}, mnemonics(doc))
	assert.Equal(t, 5, targetOf(t, doc, 1))
	assert.Equal(t, 7, targetOf(t, doc, 4))
}

func TestStringConstantsDeduplicate(t *testing.T) {
	b := newBuild("a", "b", "c")
	doc := b.compile(t,
		&ast.VarDecl{Name: "a", Value: b.strLit("hello")},
		&ast.VarDecl{Name: "b", Value: b.strLit("hello")},
		&ast.VarDecl{Name: "c", Value: b.strLit("world")},
	)
	require.Len(t, doc.Constants, 2)
	assert.Equal(t, "hello", doc.Constants[0].Str)
	assert.Equal(t, "world", doc.Constants[1].Str)
}

func TestFunctionCompileAndCall(t *testing.T) {
	b := newBuild("r")
	body := &ast.Return{Value: b.binary("+",
		b.intIdent("a"), b.intIdent("b"), &sema.Type{Kind: sema.KindInt})}
	decl := b.funcDecl("add", []string{"a", "b"},
		&sema.FunctionInfo{Name: "add", Params: []string{"a", "b"}}, body)

	callExpr := b.call(&ast.Ident{Name: "add"},
		&sema.CallInfo{Kind: sema.DispatchFunction, Name: "add", ParamNames: []string{"a", "b"}},
		b.intLit(1), b.intLit(2))
	b.intExpr(callExpr)

	doc := b.compile(t, decl, &ast.VarDecl{Name: "r", Value: callExpr})

	assert.Equal(t, []string{
		"LOAD_INT", "LOAD_INT", "CALL", "MOVE", "STORE_GLOBAL", "HALT",
		"ADD_INT", "RETURN",
	}, mnemonics(doc))

	// Arguments stage contiguously; the call addresses the block base.
	assert.Equal(t, doc.Instructions[0].A+1, doc.Instructions[1].A)
	assert.Equal(t, doc.Instructions[0].A, doc.Instructions[2].A)

	require.Len(t, doc.Functions, 2)
	fn := doc.Functions[1]
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, 6, fn.Address)
	assert.Equal(t, 8, fn.End)
	assert.Equal(t, 2, fn.ParamCount)
	assert.Equal(t, 4, fn.RegisterCount)
	require.NoError(t, bytecode.Verify(doc))
}

func TestNamedArgumentReorderUsesTemporaries(t *testing.T) {
	b := newBuild()
	decl := b.funcDecl("sub", []string{"a", "b"},
		&sema.FunctionInfo{Name: "sub", Params: []string{"a", "b"}, ReturnsVoid: true})

	c := &ast.Call{Fun: &ast.Ident{Name: "sub"}, Args: []*ast.Arg{
		{Name: "b", Value: b.intLit(4)},
		{Name: "a", Value: b.intLit(10)},
	}}
	b.info.Calls[c] = &sema.CallInfo{
		Kind: sema.DispatchFunction, Name: "sub", ParamNames: []string{"a", "b"},
	}
	b.typed(c, &sema.Type{Kind: sema.KindVoid})

	doc := b.compile(t, decl, &ast.ExprStmt{X: c})
	entry := mnemonics(doc)[:doc.Functions[0].End]
	assert.Equal(t, []string{
		"LOAD_INT", "LOAD_INT", "MOVE", "MOVE", "CALL", "HALT",
	}, entry)

	// Written order is preserved: 4 loads first, then moves place b=4
	// after a=10 in the staged block.
	base := doc.Instructions[4].A
	assert.Equal(t, base+1, doc.Instructions[2].A)
	assert.Equal(t, base, doc.Instructions[3].A)
}

func TestPositionalArgumentsStageDirectly(t *testing.T) {
	b := newBuild()
	decl := b.funcDecl("sub", []string{"a", "b"},
		&sema.FunctionInfo{Name: "sub", Params: []string{"a", "b"}, ReturnsVoid: true})
	c := b.call(&ast.Ident{Name: "sub"},
		&sema.CallInfo{Kind: sema.DispatchFunction, Name: "sub", ParamNames: []string{"a", "b"}},
		b.intLit(10), b.intLit(4))
	b.typed(c, &sema.Type{Kind: sema.KindVoid})

	doc := b.compile(t, decl, &ast.ExprStmt{X: c})
	entry := mnemonics(doc)[:doc.Functions[0].End]
	assert.Equal(t, []string{"LOAD_INT", "LOAD_INT", "CALL", "HALT"}, entry)
}

func TestWrongArgumentCount(t *testing.T) {
	b := newBuild()
	decl := b.funcDecl("one", []string{"a"},
		&sema.FunctionInfo{Name: "one", Params: []string{"a"}, ReturnsVoid: true})
	c := b.call(&ast.Ident{Name: "one"},
		&sema.CallInfo{Kind: sema.DispatchFunction, Name: "one", ParamNames: []string{"a"}})
	b.typed(c, &sema.Type{Kind: sema.KindVoid})

	ce := b.compileErr(t, decl, &ast.ExprStmt{X: c})
	assert.Equal(t, errors.E2009, ce.Code)
}

func TestMissingDispatchMetadata(t *testing.T) {
	b := newBuild()
	c := &ast.Call{Fun: &ast.Ident{Name: "mystery"}}
	ce := b.compileErr(t, &ast.ExprStmt{X: c})
	assert.Equal(t, errors.E2002, ce.Code)
}

func mapType(key, elem sema.Kind) *sema.Type {
	return &sema.Type{
		Kind: sema.KindMap,
		Key:  &sema.Type{Kind: key},
		Elem: &sema.Type{Kind: elem},
	}
}

func TestUnknownMapMethodYieldsNull(t *testing.T) {
	b := newBuild("m")
	recv := b.ident("m", mapType(sema.KindString, sema.KindInt))
	c := b.call(&ast.Member{X: recv, Name: "frobnicate"},
		&sema.CallInfo{Kind: sema.DispatchCollectionMethod, Name: "frobnicate"},
		b.intLit(1))
	b.typed(c, &sema.Type{Kind: sema.KindNull})

	doc := b.compile(t, &ast.ExprStmt{X: c})
	assert.Equal(t, []string{"LOAD_GLOBAL", "LOAD_INT", "LOAD_NULL", "HALT"}, mnemonics(doc))
}

func TestUnknownSetMethodYieldsFalse(t *testing.T) {
	b := newBuild("s")
	recv := b.ident("s", &sema.Type{
		Kind: sema.KindSet, Elem: &sema.Type{Kind: sema.KindString},
	})
	c := b.call(&ast.Member{X: recv, Name: "frobnicate"},
		&sema.CallInfo{Kind: sema.DispatchCollectionMethod, Name: "frobnicate"})
	b.typed(c, &sema.Type{Kind: sema.KindBool})

	doc := b.compile(t, &ast.ExprStmt{X: c})
	assert.Equal(t, []string{"LOAD_GLOBAL", "LOAD_FALSE", "HALT"}, mnemonics(doc))
}

func TestIntKeyedMapUsesIntOpcodes(t *testing.T) {
	b := newBuild("m")
	recv := b.ident("m", mapType(sema.KindInt, sema.KindString))
	c := b.call(&ast.Member{X: recv, Name: "get"},
		&sema.CallInfo{Kind: sema.DispatchCollectionMethod, Name: "get"},
		b.intLit(7))
	b.typed(c, &sema.Type{Kind: sema.KindString})

	doc := b.compile(t, &ast.ExprStmt{X: c})
	assert.Contains(t, mnemonics(doc), "MAP_GET_INT")
	assert.NotContains(t, mnemonics(doc), "MAP_GET")
}

func TestStringKeyedMapUsesGenericOpcodes(t *testing.T) {
	b := newBuild("m")
	recv := b.ident("m", mapType(sema.KindString, sema.KindInt))
	c := b.call(&ast.Member{X: recv, Name: "set"},
		&sema.CallInfo{Kind: sema.DispatchCollectionMethod, Name: "set"},
		b.strLit("k"), b.intLit(1))
	b.typed(c, &sema.Type{Kind: sema.KindVoid})

	doc := b.compile(t, &ast.ExprStmt{X: c})
	assert.Contains(t, mnemonics(doc), "MAP_SET")
}

func TestSwitchNullDiscriminantIsFatal(t *testing.T) {
	b := newBuild()
	sw := &ast.Switch{
		Value: b.typed(&ast.NullLit{}, &sema.Type{Kind: sema.KindNull}),
		Cases: []*ast.SwitchCase{{
			Exprs: []ast.Expr{b.intLit(1)},
			Body:  &ast.Block{},
		}},
	}
	ce := b.compileErr(t, sw)
	assert.Equal(t, errors.E2010, ce.Code)
}

func TestSwitchNullCaseIsFatal(t *testing.T) {
	b := newBuild()
	sw := &ast.Switch{
		Value: b.intLit(1),
		Cases: []*ast.SwitchCase{{
			Exprs: []ast.Expr{b.typed(&ast.NullLit{}, &sema.Type{Kind: sema.KindNull})},
			Body:  &ast.Block{},
		}},
	}
	ce := b.compileErr(t, sw)
	assert.Equal(t, errors.E2010, ce.Code)
}

func TestSwitchPromotesIntDiscriminantAgainstFloatCase(t *testing.T) {
	b := newBuild()
	sw := &ast.Switch{
		Value: b.intLit(1),
		Cases: []*ast.SwitchCase{{
			Exprs: []ast.Expr{b.typed(&ast.FloatLit{Value: 1.5}, &sema.Type{Kind: sema.KindFloat})},
			Body:  &ast.Block{},
		}},
	}
	doc := b.compile(t, sw)
	ms := mnemonics(doc)
	assert.Contains(t, ms, "INT_TO_FLOAT")
	assert.Contains(t, ms, "EQ_FLOAT")
	assert.NotContains(t, ms, "EQ_INT")
}

func TestSwitchStringRangeCase(t *testing.T) {
	b := newBuild()
	sw := &ast.Switch{
		Value: b.strLit("m"),
		Cases: []*ast.SwitchCase{{
			Low: b.strLit("a"), High: b.strLit("n"),
			Body: &ast.Block{},
		}},
	}
	doc := b.compile(t, sw)
	ms := mnemonics(doc)
	// disc >= low mirrors to low <= disc; the upper bound is a plain <.
	assert.Contains(t, ms, "LE_STRING")
	assert.Contains(t, ms, "LT_STRING")
	require.NoError(t, bytecode.Verify(doc))
}

func TestSwitchRangePromotesIntBoundsAgainstFloatDiscriminant(t *testing.T) {
	b := newBuild()
	sw := &ast.Switch{
		Value: b.typed(&ast.FloatLit{Value: 2.5}, &sema.Type{Kind: sema.KindFloat}),
		Cases: []*ast.SwitchCase{{
			Low: b.intLit(1), High: b.intLit(5), Inclusive: true,
			Body: &ast.Block{},
		}},
	}
	doc := b.compile(t, sw)
	ms := mnemonics(doc)
	assert.Contains(t, ms, "INT_TO_FLOAT")
	assert.Contains(t, ms, "GE_FLOAT")
	assert.Contains(t, ms, "LE_FLOAT")
	assert.NotContains(t, ms, "GE_INT")
	require.NoError(t, bytecode.Verify(doc))
}

func TestSwitchNullRangeBoundIsFatal(t *testing.T) {
	b := newBuild()
	sw := &ast.Switch{
		Value: b.intLit(1),
		Cases: []*ast.SwitchCase{{
			Low:  b.typed(&ast.NullLit{}, &sema.Type{Kind: sema.KindNull}),
			High: b.intLit(5),
			Body: &ast.Block{},
		}},
	}
	ce := b.compileErr(t, sw)
	assert.Equal(t, errors.E2010, ce.Code)
}

func TestBreakOutsideLoop(t *testing.T) {
	ce := newBuild().compileErr(t, &ast.Break{})
	assert.Equal(t, errors.E2003, ce.Code)
}

func TestContinueOutsideLoop(t *testing.T) {
	ce := newBuild().compileErr(t, &ast.Continue{})
	assert.Equal(t, errors.E2004, ce.Code)
}

func TestContinueInsideSwitchIsRejected(t *testing.T) {
	b := newBuild()
	sw := &ast.Switch{
		Value: b.intLit(1),
		Cases: []*ast.SwitchCase{{
			Exprs: []ast.Expr{b.intLit(1)},
			Body:  &ast.Block{Stmts: []ast.Stmt{&ast.Continue{}}},
		}},
	}
	ce := b.compileErr(t, sw)
	assert.Equal(t, errors.E2004, ce.Code)
}

func TestBreakInsideSwitchTargetsSwitchEnd(t *testing.T) {
	b := newBuild()
	sw := &ast.Switch{
		Value: b.intLit(1),
		Cases: []*ast.SwitchCase{{
			Exprs: []ast.Expr{b.intLit(1)},
			Body:  &ast.Block{Stmts: []ast.Stmt{&ast.Break{}}},
		}},
	}
	doc := b.compile(t, sw)
	require.NoError(t, bytecode.Verify(doc))
}

func TestUndefinedVariableHasLocation(t *testing.T) {
	b := newBuild()
	e := b.intExpr(&ast.Ident{Position: ast.Position{Line: 3, Column: 7}, Name: "nope"})
	ce := b.compileErr(t, &ast.ExprStmt{X: e})
	assert.Equal(t, errors.E2001, ce.Code)
	assert.Equal(t, "test.doof", ce.Filename)
	assert.Equal(t, 3, ce.Line)
	assert.Equal(t, 7, ce.Column)
	assert.Contains(t, ce.Error(), "compile error:")
	assert.Contains(t, ce.Error(), "location: test.doof:3:7")
}

func TestReturnAtTopLevel(t *testing.T) {
	ce := newBuild().compileErr(t, &ast.Return{})
	assert.Equal(t, errors.E2006, ce.Code)
}

func TestCaptureCellBoxing(t *testing.T) {
	b := newBuild("r")

	// n is mutated by the nested lambda, so it is boxed into a cell.
	lambdaBody := &ast.Block{Stmts: []ast.Stmt{
		&ast.Assign{
			Target: b.intIdent("n"),
			Op:     "=",
			Value:  b.binary("+", b.intIdent("n"), b.intLit(1), &sema.Type{Kind: sema.KindInt}),
		},
		&ast.Return{Value: b.intIdent("n")},
	}}
	lam := &ast.Lambda{Body: lambdaBody}
	b.info.Lambdas[lam] = &sema.LambdaInfo{
		Captures: []sema.Capture{{Name: "n", Boxed: true}},
		Boxed:    map[string]bool{},
	}
	b.typed(lam, &sema.Type{Kind: sema.KindLambda})

	gCall := b.call(b.typed(&ast.Ident{Name: "g"}, &sema.Type{Kind: sema.KindLambda}),
		&sema.CallInfo{Kind: sema.DispatchLambda})
	b.intExpr(gCall)

	decl := b.funcDecl("counter", nil, &sema.FunctionInfo{
		Name:   "counter",
		Locals: []string{"n", "g"},
		Boxed:  map[string]bool{"n": true},
	},
		&ast.VarDecl{Name: "n", Value: b.intLit(0)},
		&ast.VarDecl{Name: "g", Value: lam},
		&ast.Return{Value: gCall},
	)

	callCounter := b.call(&ast.Ident{Name: "counter"},
		&sema.CallInfo{Kind: sema.DispatchFunction, Name: "counter"})
	b.intExpr(callCounter)

	doc := b.compile(t, decl, &ast.VarDecl{Name: "r", Value: callCounter})
	ms := mnemonics(doc)
	assert.Contains(t, ms, "CELL_NEW")
	assert.Contains(t, ms, "NEW_LAMBDA")
	assert.Contains(t, ms, "LAMBDA_CAPTURE")
	assert.Contains(t, ms, "CELL_GET")
	assert.Contains(t, ms, "CELL_SET")
	assert.Contains(t, ms, "CALL_LAMBDA")

	var lambdaDesc *bytecode.FunctionDesc
	for i := range doc.Functions {
		if doc.Functions[i].CaptureCount == 1 {
			lambdaDesc = &doc.Functions[i]
		}
	}
	require.NotNil(t, lambdaDesc)
	require.NoError(t, bytecode.Verify(doc))
}

func TestArrayHigherOrderMethodGeneratesHelper(t *testing.T) {
	b := newBuild("a")
	recv := b.ident("a", &sema.Type{
		Kind: sema.KindArray, Elem: &sema.Type{Kind: sema.KindInt},
	})
	lam := &ast.Lambda{
		Params: []*ast.Param{{Name: "x"}},
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.Return{Value: b.binary("*",
				b.intIdent("x"), b.intLit(2), &sema.Type{Kind: sema.KindInt})},
		}},
	}
	b.info.Lambdas[lam] = &sema.LambdaInfo{Params: []string{"x"}, Boxed: map[string]bool{}}
	b.typed(lam, &sema.Type{Kind: sema.KindLambda})

	c := b.call(&ast.Member{X: recv, Name: "map"},
		&sema.CallInfo{Kind: sema.DispatchCollectionMethod, Name: "map"}, lam)
	b.typed(c, &sema.Type{Kind: sema.KindArray, Elem: &sema.Type{Kind: sema.KindInt}})

	doc := b.compile(t, &ast.ExprStmt{X: c})
	names := make([]string, len(doc.Functions))
	for i, fn := range doc.Functions {
		names[i] = fn.Name
	}
	assert.Contains(t, names, "__array_map")
	assert.Contains(t, mnemonics(doc), "ITER_NEW")
	assert.Contains(t, mnemonics(doc), "ITER_NEXT")
	require.NoError(t, bytecode.Verify(doc))
}

func TestReduceRequiresTwoArguments(t *testing.T) {
	b := newBuild("a")
	recv := b.ident("a", &sema.Type{
		Kind: sema.KindArray, Elem: &sema.Type{Kind: sema.KindInt},
	})
	c := b.call(&ast.Member{X: recv, Name: "reduce"},
		&sema.CallInfo{Kind: sema.DispatchCollectionMethod, Name: "reduce"},
		b.intLit(0))
	b.intExpr(c)

	ce := b.compileErr(t, &ast.ExprStmt{X: c})
	assert.Equal(t, errors.E2009, ce.Code)
}

func TestVoidFunctionGetsImplicitNullReturn(t *testing.T) {
	b := newBuild()
	decl := b.funcDecl("noop", nil,
		&sema.FunctionInfo{Name: "noop", ReturnsVoid: true})
	doc := b.compile(t, decl)
	fn := doc.Functions[1]
	body := mnemonics(doc)[fn.Address:fn.End]
	assert.Equal(t, []string{"LOAD_NULL", "RETURN"}, body)
}

// A body ending in `if cond { return }` already closes with RETURN, but
// the false branch falls through past it; the function still needs a
// trailing return inside its own bracket.
func TestTrailingConditionalReturnStaysInFunction(t *testing.T) {
	b := newBuild()
	decl := b.funcDecl("maybe", []string{"flag"},
		&sema.FunctionInfo{Name: "maybe", Params: []string{"flag"}, ReturnsVoid: true},
		&ast.If{
			Cond: b.ident("flag", &sema.Type{Kind: sema.KindBool}),
			Then: &ast.Block{Stmts: []ast.Stmt{&ast.Return{}}},
		},
	)
	doc := b.compile(t, decl)
	fn := doc.Functions[1]
	body := mnemonics(doc)[fn.Address:fn.End]
	assert.Equal(t, []string{
		"JUMP_IF_FALSE", "LOAD_NULL", "RETURN", "LOAD_NULL", "RETURN",
	}, body)
	assert.Equal(t, fn.Address+3, targetOf(t, doc, fn.Address))
	require.NoError(t, bytecode.Verify(doc))
}

func TestDocumentMetadata(t *testing.T) {
	b := newBuild()
	clock := func() time.Time {
		return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	}
	doc, err := Compile(&ast.Program{}, b.info, Config{
		SourceFile:      "app.doof",
		CompilerVersion: "1.2.3",
		Clock:           clock,
	})
	require.NoError(t, err)
	assert.Equal(t, bytecode.Version, doc.Version)
	assert.Equal(t, "app.doof", doc.Metadata.SourceFile)
	assert.Equal(t, "2026-08-25T12:00:00Z", doc.Metadata.GeneratedAt)
	assert.Equal(t, "1.2.3", doc.Metadata.CompilerVersion)
	assert.NotEmpty(t, doc.Metadata.BuildID)
}

func TestDebugTablesArePopulated(t *testing.T) {
	b := newBuild("x")
	doc := b.compile(t, &ast.VarDecl{
		Position: ast.Position{Line: 2, Column: 1},
		Name:     "x",
		Value:    b.intLit(5),
	})
	require.NotEmpty(t, doc.Debug.SourceMap)
	assert.Equal(t, 2, doc.Debug.SourceMap[0].Line)
	assert.Equal(t, []string{"test.doof"}, doc.Debug.Files)
	require.NotEmpty(t, doc.Debug.Functions)
	assert.Equal(t, "__main__", doc.Debug.Functions[0].Name)
}
