package compiler

import (
	"github.com/doof-lang/doof/ast"
	"github.com/doof-lang/doof/bytecode"
	"github.com/doof-lang/doof/errors"
	"github.com/doof-lang/doof/op"
	"github.com/doof-lang/doof/sema"
)

func (fs *funcState) arrayLit(e *ast.ArrayLit) (int, bool, error) {
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(op.NewArray, uint8(t), 0, 0)
	for _, elem := range e.Elems {
		v, vTemp, err := fs.expr(elem)
		if err != nil {
			return 0, false, err
		}
		fs.ctx.emit(op.ArrayPush, uint8(t), uint8(v), 0)
		if err := fs.release(v, vTemp); err != nil {
			return 0, false, err
		}
	}
	return t, true, nil
}

func (fs *funcState) mapLit(e *ast.MapLit) (int, bool, error) {
	litType := fs.c.info.TypeOf(e)
	setOp := fs.mapSetOp(litType)
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(op.NewMap, uint8(t), 0, 0)
	for _, entry := range e.Entries {
		k, kTemp, err := fs.expr(entry.Key)
		if err != nil {
			return 0, false, err
		}
		v, vTemp, err := fs.expr(entry.Value)
		if err != nil {
			return 0, false, err
		}
		fs.ctx.emit(setOp, uint8(t), uint8(k), uint8(v))
		if err := fs.release(v, vTemp); err != nil {
			return 0, false, err
		}
		if err := fs.release(k, kTemp); err != nil {
			return 0, false, err
		}
	}
	return t, true, nil
}

func (fs *funcState) setLit(e *ast.SetLit) (int, bool, error) {
	litType := fs.c.info.TypeOf(e)
	addOp := op.SetAdd
	if fs.intElem(litType) {
		addOp = op.SetAddInt
	}
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(op.NewSet, uint8(t), 0, 0)
	for _, elem := range e.Elems {
		v, vTemp, err := fs.expr(elem)
		if err != nil {
			return 0, false, err
		}
		fs.ctx.emit(addOp, uint8(t), uint8(v), 0)
		if err := fs.release(v, vTemp); err != nil {
			return 0, false, err
		}
	}
	return t, true, nil
}

// Integer-keyed maps and integer sets use dedicated opcodes so the VM can
// keep them unboxed.

func (fs *funcState) intKey(t *sema.Type) bool {
	return t != nil && t.Key != nil && t.Key.Kind == sema.KindInt
}

func (fs *funcState) intElem(t *sema.Type) bool {
	return t != nil && t.Elem != nil && t.Elem.Kind == sema.KindInt
}

func (fs *funcState) mapGetOp(t *sema.Type) op.Code {
	if fs.intKey(t) {
		return op.MapGetInt
	}
	return op.MapGet
}

func (fs *funcState) mapSetOp(t *sema.Type) op.Code {
	if fs.intKey(t) {
		return op.MapSetInt
	}
	return op.MapSet
}

func (fs *funcState) mapHasOp(t *sema.Type) op.Code {
	if fs.intKey(t) {
		return op.MapHasInt
	}
	return op.MapHas
}

func (fs *funcState) mapDeleteOp(t *sema.Type) op.Code {
	if fs.intKey(t) {
		return op.MapDeleteInt
	}
	return op.MapDelete
}

// collectionCall lowers a method call on an array, map, set, or string
// receiver. Map and set receivers tolerate unknown method names: the call
// still evaluates its receiver and arguments, then yields null for maps
// and false for sets without touching the collection.
func (fs *funcState) collectionCall(e *ast.Call, ci *sema.CallInfo) (int, bool, error) {
	m, ok := e.Fun.(*ast.Member)
	if !ok {
		return 0, false, fs.errorf(e.Pos(), errors.E2002,
			"collection method call %s has no receiver", e.Fun)
	}
	recvType := fs.c.info.TypeOf(m.X)
	switch recvType.Kind {
	case sema.KindArray:
		return fs.arrayMethod(e, m, ci.Name)
	case sema.KindMap:
		return fs.mapMethod(e, m, ci.Name, recvType)
	case sema.KindSet:
		return fs.setMethod(e, m, ci.Name, recvType)
	case sema.KindString:
		return fs.stringMethod(e, m, ci.Name)
	default:
		return 0, false, fs.errorf(e.Pos(), errors.E2006,
			"no method %q on %s", ci.Name, recvType.Kind)
	}
}

func (fs *funcState) arrayMethod(e *ast.Call, m *ast.Member, name string) (int, bool, error) {
	switch name {
	case "push":
		if err := fs.checkArity(e, name, 1); err != nil {
			return 0, false, err
		}
		recv, recvTemp, err := fs.expr(m.X)
		if err != nil {
			return 0, false, err
		}
		v, vTemp, err := fs.expr(e.Args[0].Value)
		if err != nil {
			return 0, false, err
		}
		fs.ctx.emit(op.ArrayPush, uint8(recv), uint8(v), 0)
		if err := fs.release(v, vTemp); err != nil {
			return 0, false, err
		}
		if err := fs.release(recv, recvTemp); err != nil {
			return 0, false, err
		}
		return fs.nullResult(e.Pos())
	case "forEach", "map", "filter":
		if err := fs.checkArity(e, name, 1); err != nil {
			return 0, false, err
		}
		return fs.arrayHelperCall(e, m, "__array_"+name, nil)
	case "reduce":
		// reduce requires the seed and the combining function, in that order.
		if err := fs.checkArity(e, name, 2); err != nil {
			return 0, false, err
		}
		return fs.arrayHelperCall(e, m, "__array_reduce", nil)
	default:
		return 0, false, fs.errorf(e.Pos(), errors.E2011,
			"array has no method %q", name)
	}
}

// arrayHelperCall lowers a higher-order array method as a call to a
// synthesized routine taking the receiver and then the written arguments
// positionally.
func (fs *funcState) arrayHelperCall(e *ast.Call, m *ast.Member, helper string, _ []string) (int, bool, error) {
	fi, err := fs.c.ensureHelper(helper, 1+len(e.Args))
	if err != nil {
		return 0, false, fs.locate(err, e.Pos())
	}
	slots := 1 + len(e.Args)
	base, err := fs.regs.AllocBlock(slots)
	if err != nil {
		return 0, false, fs.locate(err, e.Pos())
	}
	if err := fs.exprTo(m.X, base); err != nil {
		return 0, false, err
	}
	for i, arg := range e.Args {
		if arg.Name != "" {
			return 0, false, fs.errorf(arg.Pos(), errors.E2009,
				"named argument %q is not supported here", arg.Name)
		}
		if err := fs.exprTo(arg.Value, base+1+i); err != nil {
			return 0, false, err
		}
	}
	fnConst, err := fs.ctx.constant(bytecode.FunctionConstant(fi))
	if err != nil {
		return 0, false, fs.locate(err, e.Pos())
	}
	fs.ctx.emitBC(op.Call, uint8(base), fnConst)
	return fs.finishCall(base, slots)
}

func (fs *funcState) mapMethod(e *ast.Call, m *ast.Member, name string, recvType *sema.Type) (int, bool, error) {
	type shape struct {
		arity  int
		code   op.Code
		result bool // opcode writes a result register
	}
	shapes := map[string]shape{
		"get":    {1, fs.mapGetOp(recvType), true},
		"set":    {2, fs.mapSetOp(recvType), false},
		"has":    {1, fs.mapHasOp(recvType), true},
		"delete": {1, fs.mapDeleteOp(recvType), true},
		"size":   {0, op.MapSize, true},
		"keys":   {0, op.MapKeys, true},
		"values": {0, op.MapValues, true},
	}
	sh, known := shapes[name]
	if !known {
		return fs.unknownCollectionMethod(e, m, op.LoadNull)
	}
	if err := fs.checkArity(e, name, sh.arity); err != nil {
		return 0, false, err
	}
	recv, recvTemp, err := fs.expr(m.X)
	if err != nil {
		return 0, false, err
	}
	args := make([]int, sh.arity)
	argTemps := make([]bool, sh.arity)
	for i := 0; i < sh.arity; i++ {
		args[i], argTemps[i], err = fs.expr(e.Args[i].Value)
		if err != nil {
			return 0, false, err
		}
	}
	var result int
	resultTemp := false
	switch name {
	case "set":
		fs.ctx.emit(sh.code, uint8(recv), uint8(args[0]), uint8(args[1]))
	case "size", "keys", "values":
		result, err = fs.temp(e.Pos())
		if err != nil {
			return 0, false, err
		}
		resultTemp = true
		fs.ctx.emit(sh.code, uint8(result), uint8(recv), 0)
	default:
		result, err = fs.temp(e.Pos())
		if err != nil {
			return 0, false, err
		}
		resultTemp = true
		fs.ctx.emit(sh.code, uint8(result), uint8(recv), uint8(args[0]))
	}
	for i := sh.arity - 1; i >= 0; i-- {
		if err := fs.release(args[i], argTemps[i]); err != nil {
			return 0, false, err
		}
	}
	if err := fs.release(recv, recvTemp); err != nil {
		return 0, false, err
	}
	if !sh.result {
		return fs.nullResult(e.Pos())
	}
	return result, resultTemp, nil
}

func (fs *funcState) setMethod(e *ast.Call, m *ast.Member, name string, recvType *sema.Type) (int, bool, error) {
	intElem := fs.intElem(recvType)
	pick := func(generic, intVariant op.Code) op.Code {
		if intElem {
			return intVariant
		}
		return generic
	}
	switch name {
	case "add":
		if err := fs.checkArity(e, name, 1); err != nil {
			return 0, false, err
		}
		recv, recvTemp, err := fs.expr(m.X)
		if err != nil {
			return 0, false, err
		}
		v, vTemp, err := fs.expr(e.Args[0].Value)
		if err != nil {
			return 0, false, err
		}
		fs.ctx.emit(pick(op.SetAdd, op.SetAddInt), uint8(recv), uint8(v), 0)
		if err := fs.release(v, vTemp); err != nil {
			return 0, false, err
		}
		if err := fs.release(recv, recvTemp); err != nil {
			return 0, false, err
		}
		return fs.nullResult(e.Pos())
	case "has", "delete":
		if err := fs.checkArity(e, name, 1); err != nil {
			return 0, false, err
		}
		code := pick(op.SetHas, op.SetHasInt)
		if name == "delete" {
			code = pick(op.SetDelete, op.SetDeleteInt)
		}
		recv, recvTemp, err := fs.expr(m.X)
		if err != nil {
			return 0, false, err
		}
		v, vTemp, err := fs.expr(e.Args[0].Value)
		if err != nil {
			return 0, false, err
		}
		t, err := fs.temp(e.Pos())
		if err != nil {
			return 0, false, err
		}
		fs.ctx.emit(code, uint8(t), uint8(recv), uint8(v))
		if err := fs.release(v, vTemp); err != nil {
			return 0, false, err
		}
		if err := fs.release(recv, recvTemp); err != nil {
			return 0, false, err
		}
		return t, true, nil
	case "size":
		if err := fs.checkArity(e, name, 0); err != nil {
			return 0, false, err
		}
		recv, recvTemp, err := fs.expr(m.X)
		if err != nil {
			return 0, false, err
		}
		t, err := fs.temp(e.Pos())
		if err != nil {
			return 0, false, err
		}
		fs.ctx.emit(op.SetSize, uint8(t), uint8(recv), 0)
		if err := fs.release(recv, recvTemp); err != nil {
			return 0, false, err
		}
		return t, true, nil
	default:
		return fs.unknownCollectionMethod(e, m, op.LoadFalse)
	}
}

func (fs *funcState) stringMethod(e *ast.Call, m *ast.Member, name string) (int, bool, error) {
	if name != "length" {
		return 0, false, fs.errorf(e.Pos(), errors.E2011,
			"string has no method %q", name)
	}
	if err := fs.checkArity(e, name, 0); err != nil {
		return 0, false, err
	}
	recv, recvTemp, err := fs.expr(m.X)
	if err != nil {
		return 0, false, err
	}
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(op.StringLen, uint8(t), uint8(recv), 0)
	if err := fs.release(recv, recvTemp); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

// unknownCollectionMethod keeps the permissive contract for map and set
// receivers: the receiver and arguments are still evaluated for their
// side effects, and the call quietly produces the fallback value.
func (fs *funcState) unknownCollectionMethod(e *ast.Call, m *ast.Member, fallback op.Code) (int, bool, error) {
	recv, recvTemp, err := fs.expr(m.X)
	if err != nil {
		return 0, false, err
	}
	if err := fs.release(recv, recvTemp); err != nil {
		return 0, false, err
	}
	for _, arg := range e.Args {
		v, vTemp, err := fs.expr(arg.Value)
		if err != nil {
			return 0, false, err
		}
		if err := fs.release(v, vTemp); err != nil {
			return 0, false, err
		}
	}
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(fallback, uint8(t), 0, 0)
	return t, true, nil
}

func (fs *funcState) nullResult(pos ast.Position) (int, bool, error) {
	t, err := fs.temp(pos)
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(op.LoadNull, uint8(t), 0, 0)
	return t, true, nil
}

func (fs *funcState) checkArity(e *ast.Call, name string, want int) error {
	if len(e.Args) != want {
		return fs.errorf(e.Pos(), errors.E2009,
			"%s requires %d argument(s), have %d", name, want, len(e.Args))
	}
	for _, arg := range e.Args {
		if arg.Name != "" {
			return fs.errorf(arg.Pos(), errors.E2009,
				"named argument %q is not supported here", arg.Name)
		}
	}
	return nil
}

// ensureHelper registers a synthesized support routine, generating its
// body later alongside queued lambdas.
func (c *Compiler) ensureHelper(name string, paramCount int) (int, error) {
	if fi, ok := c.helpers[name]; ok {
		return fi, nil
	}
	desc := &bytecode.FunctionDesc{
		Name:       name,
		Address:    -1,
		ParamCount: paramCount,
	}
	fi := c.ctx.addFunction(desc)
	c.helpers[name] = fi
	c.helperQueue = append(c.helperQueue, name)
	return fi, nil
}

// generateHelper emits the body of one synthesized routine. These are
// written directly against the register file: parameters arrive at r1
// upward, the rest of the frame is scratch.
func (c *Compiler) generateHelper(name string) error {
	desc := c.ctx.functions[c.helpers[name]]
	desc.Address = c.ctx.position()
	switch name {
	case "__array_forEach":
		c.emitArrayForEach(desc)
	case "__array_map":
		c.emitArrayMap(desc)
	case "__array_filter":
		c.emitArrayFilter(desc)
	case "__array_reduce":
		c.emitArrayReduce(desc)
	default:
		return errors.New(errors.E2011, "unknown support routine %q", name)
	}
	desc.End = c.ctx.position()
	c.ctx.debug.addFunction(name, desc.Address, desc.End, desc.ParamCount)
	return nil
}

// emitArrayForEach: (arr r1, fn r2) -> null. Calls fn once per element.
func (c *Compiler) emitArrayForEach(desc *bytecode.FunctionDesc) {
	ctx := c.ctx
	top, end := ctx.createLabel(), ctx.createLabel()
	ctx.emit(op.IterNew, 3, 1, op.IterKindArray)
	ctx.setLabel(top)
	ctx.emitJump(op.IterNext, 3, end)
	ctx.emit(op.IterValue, 4, 3, 0)
	ctx.emit(op.CallLambda, 4, 2, 1)
	ctx.emitJump(op.Jump, 0, top)
	ctx.setLabel(end)
	ctx.emit(op.LoadNull, 0, 0, 0)
	ctx.emit(op.Return, 0, 0, 0)
	desc.RegisterCount = 5
}

// emitArrayMap: (arr r1, fn r2) -> new array of fn(elem).
func (c *Compiler) emitArrayMap(desc *bytecode.FunctionDesc) {
	ctx := c.ctx
	top, end := ctx.createLabel(), ctx.createLabel()
	ctx.emit(op.NewArray, 3, 0, 0)
	ctx.emit(op.IterNew, 4, 1, op.IterKindArray)
	ctx.setLabel(top)
	ctx.emitJump(op.IterNext, 4, end)
	ctx.emit(op.IterValue, 5, 4, 0)
	ctx.emit(op.CallLambda, 5, 2, 1)
	ctx.emit(op.ArrayPush, 3, 5, 0)
	ctx.emitJump(op.Jump, 0, top)
	ctx.setLabel(end)
	ctx.emit(op.Return, 3, 0, 0)
	desc.RegisterCount = 6
}

// emitArrayFilter: (arr r1, fn r2) -> new array of elements where fn is
// true. The element is kept in r5 while the predicate runs in r6.
func (c *Compiler) emitArrayFilter(desc *bytecode.FunctionDesc) {
	ctx := c.ctx
	top, end := ctx.createLabel(), ctx.createLabel()
	ctx.emit(op.NewArray, 3, 0, 0)
	ctx.emit(op.IterNew, 4, 1, op.IterKindArray)
	ctx.setLabel(top)
	ctx.emitJump(op.IterNext, 4, end)
	ctx.emit(op.IterValue, 5, 4, 0)
	ctx.emit(op.Move, 6, 5, 0)
	ctx.emit(op.CallLambda, 6, 2, 1)
	ctx.emitJump(op.JumpIfFalse, 6, top)
	ctx.emit(op.ArrayPush, 3, 5, 0)
	ctx.emitJump(op.Jump, 0, top)
	ctx.setLabel(end)
	ctx.emit(op.Return, 3, 0, 0)
	desc.RegisterCount = 7
}

// emitArrayReduce: (arr r1, init r2, fn r3) -> folded value. The
// accumulator lives in r2 and is re-staged for each call.
func (c *Compiler) emitArrayReduce(desc *bytecode.FunctionDesc) {
	ctx := c.ctx
	top, end := ctx.createLabel(), ctx.createLabel()
	ctx.emit(op.IterNew, 4, 1, op.IterKindArray)
	ctx.setLabel(top)
	ctx.emitJump(op.IterNext, 4, end)
	ctx.emit(op.Move, 5, 2, 0)
	ctx.emit(op.IterValue, 6, 4, 0)
	ctx.emit(op.CallLambda, 5, 3, 2)
	ctx.emit(op.Move, 2, 5, 0)
	ctx.emitJump(op.Jump, 0, top)
	ctx.setLabel(end)
	ctx.emit(op.Return, 2, 0, 0)
	desc.RegisterCount = 7
}
