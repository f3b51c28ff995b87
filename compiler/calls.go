package compiler

import (
	"github.com/doof-lang/doof/ast"
	"github.com/doof-lang/doof/bytecode"
	"github.com/doof-lang/doof/errors"
	"github.com/doof-lang/doof/op"
	"github.com/doof-lang/doof/sema"
)

// call lowers a call site using the validator's dispatch record. Arguments
// are staged in a contiguous register block; the callee's result lands in
// the first slot of that block.
func (fs *funcState) call(e *ast.Call) (int, bool, error) {
	ci, ok := fs.c.info.Calls[e]
	if !ok {
		return 0, false, fs.errorf(e.Pos(), errors.E2002,
			"no dispatch metadata for call to %s", e.Fun)
	}
	switch ci.Kind {
	case sema.DispatchIntrinsic:
		return fs.callIntrinsic(e, ci)
	case sema.DispatchFunction:
		return fs.callFunction(e, ci)
	case sema.DispatchStaticMethod:
		return fs.callStatic(e, ci)
	case sema.DispatchInstanceMethod:
		return fs.callInstance(e, ci)
	case sema.DispatchExternMethod:
		return fs.callExtern(e, ci)
	case sema.DispatchCollectionMethod:
		return fs.collectionCall(e, ci)
	case sema.DispatchUnionMethod:
		return fs.callUnion(e, ci)
	case sema.DispatchLambda:
		return fs.callLambda(e, ci)
	default:
		return 0, false, fs.errorf(e.Pos(), errors.E2002,
			"call to %s has dispatch kind %s", e.Fun, ci.Kind)
	}
}

// stageArgs evaluates call arguments into a freshly allocated contiguous
// block, with the receiver (when non-negative) in slot zero. Named
// arguments are placed positionally; when the written order differs from
// the positional order, every argument is evaluated to a temporary first
// so written-order evaluation is preserved, then moved into place.
func (fs *funcState) stageArgs(pos ast.Position, receiver int, args []*ast.Arg, paramNames []string) (int, int, error) {
	positions, err := fs.argPositions(pos, args, paramNames)
	if err != nil {
		return 0, 0, err
	}
	offset := 0
	if receiver >= 0 {
		offset = 1
	}
	slots := len(args) + offset
	if slots == 0 {
		slots = 1 // the result still needs a slot
	}
	base, err := fs.regs.AllocBlock(slots)
	if err != nil {
		return 0, 0, fs.locate(err, pos)
	}
	if receiver >= 0 && receiver != base {
		fs.ctx.emit(op.Move, uint8(base), uint8(receiver), 0)
	}

	ordered := true
	for i, p := range positions {
		if p != i {
			ordered = false
			break
		}
	}
	if ordered {
		for i, arg := range args {
			if err := fs.exprTo(arg.Value, base+offset+i); err != nil {
				return 0, 0, err
			}
		}
		return base, slots, nil
	}

	// Reordered named arguments: evaluate in written order, place after.
	temps := make([]int, len(args))
	for i, arg := range args {
		t, err := fs.temp(arg.Pos())
		if err != nil {
			return 0, 0, err
		}
		temps[i] = t
		if err := fs.exprTo(arg.Value, t); err != nil {
			return 0, 0, err
		}
	}
	for i := range args {
		fs.ctx.emit(op.Move, uint8(base+offset+positions[i]), uint8(temps[i]), 0)
	}
	for i := len(temps) - 1; i >= 0; i-- {
		if err := fs.regs.Free(temps[i]); err != nil {
			return 0, 0, err
		}
	}
	return base, slots, nil
}

// argPositions maps each written argument to its positional slot and
// validates arity against the declared parameter list when one is known.
func (fs *funcState) argPositions(pos ast.Position, args []*ast.Arg, paramNames []string) ([]int, error) {
	positions := make([]int, len(args))
	if len(paramNames) == 0 {
		for _, arg := range args {
			if arg.Name != "" {
				return nil, fs.errorf(arg.Pos(), errors.E2009,
					"named argument %q is not supported here", arg.Name)
			}
		}
		for i := range args {
			positions[i] = i
		}
		return positions, nil
	}
	if len(args) != len(paramNames) {
		return nil, fs.errorf(pos, errors.E2009,
			"call requires %d arguments, have %d", len(paramNames), len(args))
	}
	used := make([]bool, len(paramNames))
	for i, arg := range args {
		p := i
		if arg.Name != "" {
			p = -1
			for j, name := range paramNames {
				if name == arg.Name {
					p = j
					break
				}
			}
			if p < 0 {
				return nil, fs.errorf(arg.Pos(), errors.E2009,
					"no parameter named %q", arg.Name)
			}
		}
		if used[p] {
			return nil, fs.errorf(arg.Pos(), errors.E2009,
				"parameter %q bound twice", paramNames[p])
		}
		used[p] = true
		positions[i] = p
	}
	return positions, nil
}

// finishCall releases every staged slot except the result slot and hands
// the result back as a temporary.
func (fs *funcState) finishCall(base, slots int) (int, bool, error) {
	if slots > 1 {
		if err := fs.regs.FreeBlock(base+1, slots-1); err != nil {
			return 0, false, err
		}
	}
	return base, true, nil
}

func (fs *funcState) callFunction(e *ast.Call, ci *sema.CallInfo) (int, bool, error) {
	fi, ok := fs.ctx.funcByName[ci.Name]
	if !ok {
		return 0, false, fs.errorf(e.Pos(), errors.E2011, "unknown function %q", ci.Name)
	}
	base, slots, err := fs.stageArgs(e.Pos(), -1, e.Args, ci.ParamNames)
	if err != nil {
		return 0, false, err
	}
	fnConst, err := fs.ctx.constant(bytecode.FunctionConstant(fi))
	if err != nil {
		return 0, false, fs.locate(err, e.Pos())
	}
	fs.ctx.emitBC(op.Call, uint8(base), fnConst)
	return fs.finishCall(base, slots)
}

func (fs *funcState) callStatic(e *ast.Call, ci *sema.CallInfo) (int, bool, error) {
	qualified := ci.Class + "." + ci.Name
	fi, ok := fs.ctx.funcByName[qualified]
	if !ok {
		return 0, false, fs.errorf(e.Pos(), errors.E2011, "unknown method %q", qualified)
	}
	base, slots, err := fs.stageArgs(e.Pos(), -1, e.Args, ci.ParamNames)
	if err != nil {
		return 0, false, err
	}
	fnConst, err := fs.ctx.constant(bytecode.FunctionConstant(fi))
	if err != nil {
		return 0, false, fs.locate(err, e.Pos())
	}
	fs.ctx.emitBC(op.CallStatic, uint8(base), fnConst)
	return fs.finishCall(base, slots)
}

func (fs *funcState) callInstance(e *ast.Call, ci *sema.CallInfo) (int, bool, error) {
	recv, recvTemp, err := fs.receiver(e)
	if err != nil {
		return 0, false, err
	}
	qualified := ci.Class + "." + ci.Name
	fi, ok := fs.ctx.funcByName[qualified]
	if !ok {
		return 0, false, fs.errorf(e.Pos(), errors.E2011, "unknown method %q", qualified)
	}
	base, slots, err := fs.stageArgs(e.Pos(), recv, e.Args, ci.ParamNames)
	if err != nil {
		return 0, false, err
	}
	if err := fs.release(recv, recvTemp); err != nil {
		return 0, false, err
	}
	fnConst, err := fs.ctx.constant(bytecode.FunctionConstant(fi))
	if err != nil {
		return 0, false, fs.locate(err, e.Pos())
	}
	fs.ctx.emitBC(op.CallMethod, uint8(base), fnConst)
	return fs.finishCall(base, slots)
}

// callExtern lowers a call into the VM's native surface. The target is
// identified by its qualified name; the VM resolves it at load time.
func (fs *funcState) callExtern(e *ast.Call, ci *sema.CallInfo) (int, bool, error) {
	static := false
	if classInfo, ok := fs.c.info.Classes[ci.Class]; ok {
		if mi, ok := classInfo.Methods[ci.Name]; ok {
			static = mi.Static
		}
	}
	recv := -1
	recvTemp := false
	if !static {
		var err error
		recv, recvTemp, err = fs.receiver(e)
		if err != nil {
			return 0, false, err
		}
	}
	base, slots, err := fs.stageArgs(e.Pos(), recv, e.Args, ci.ParamNames)
	if err != nil {
		return 0, false, err
	}
	if recv >= 0 {
		if err := fs.release(recv, recvTemp); err != nil {
			return 0, false, err
		}
	}
	nameConst, err := fs.ctx.constant(bytecode.StringConstant(ci.Class + "." + ci.Name))
	if err != nil {
		return 0, false, fs.locate(err, e.Pos())
	}
	fs.ctx.emitBC(op.CallNative, uint8(base), nameConst)
	return fs.finishCall(base, slots)
}

// callUnion lowers a method call on a union-typed receiver. The concrete
// class is unknown until run time, so the method is dispatched by name.
func (fs *funcState) callUnion(e *ast.Call, ci *sema.CallInfo) (int, bool, error) {
	recv, recvTemp, err := fs.receiver(e)
	if err != nil {
		return 0, false, err
	}
	base, slots, err := fs.stageArgs(e.Pos(), recv, e.Args, ci.ParamNames)
	if err != nil {
		return 0, false, err
	}
	if err := fs.release(recv, recvTemp); err != nil {
		return 0, false, err
	}
	nameConst, err := fs.ctx.constant(bytecode.StringConstant(ci.Name))
	if err != nil {
		return 0, false, fs.locate(err, e.Pos())
	}
	fs.ctx.emitBC(op.CallDynamic, uint8(base), nameConst)
	return fs.finishCall(base, slots)
}

func (fs *funcState) callLambda(e *ast.Call, ci *sema.CallInfo) (int, bool, error) {
	fn, fnTemp, err := fs.expr(e.Fun)
	if err != nil {
		return 0, false, err
	}
	base, slots, err := fs.stageArgs(e.Pos(), -1, e.Args, ci.ParamNames)
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(op.CallLambda, uint8(base), uint8(fn), uint8(len(e.Args)))
	if err := fs.release(fn, fnTemp); err != nil {
		return 0, false, err
	}
	return fs.finishCall(base, slots)
}

// receiver extracts and lowers the receiver of a method call. A bare
// identifier target inside a method body is an implicit-this call.
func (fs *funcState) receiver(e *ast.Call) (int, bool, error) {
	if m, ok := e.Fun.(*ast.Member); ok {
		return fs.expr(m.X)
	}
	reg, ok := fs.regs.Lookup("this")
	if !ok {
		return 0, false, fs.errorf(e.Pos(), errors.E2002,
			"instance method call %s has no receiver", e.Fun)
	}
	return reg, false, nil
}

var intrinsicIDs = map[string]op.Intrinsic{
	"print":   op.IntrinsicPrint,
	"println": op.IntrinsicPrintln,
	"len":     op.IntrinsicLen,
	"str":     op.IntrinsicStr,
	"typeof":  op.IntrinsicTypeOf,
	"panic":   op.IntrinsicPanic,
}

// intrinsicArity maps fixed-arity intrinsics; print and println are
// variadic and absent.
var intrinsicArity = map[string]int{
	"len":    1,
	"str":    1,
	"typeof": 1,
	"panic":  1,
}

// callIntrinsic lowers a built-in call. len over a collection of known
// type uses the typed length opcode instead of the generic intrinsic.
func (fs *funcState) callIntrinsic(e *ast.Call, ci *sema.CallInfo) (int, bool, error) {
	if ci.Name == "len" && len(e.Args) == 1 {
		if reg, temp, ok, err := fs.typedLen(e.Args[0].Value); ok || err != nil {
			return reg, temp, err
		}
	}
	id, ok := intrinsicIDs[ci.Name]
	if !ok {
		return 0, false, fs.errorf(e.Pos(), errors.E2011, "unknown intrinsic %q", ci.Name)
	}
	if want, fixed := intrinsicArity[ci.Name]; fixed && len(e.Args) != want {
		return 0, false, fs.errorf(e.Pos(), errors.E2009,
			"%s requires %d argument(s), have %d", ci.Name, want, len(e.Args))
	}
	base, slots, err := fs.stageArgs(e.Pos(), -1, e.Args, nil)
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(op.CallIntrinsic, uint8(base), uint8(id), uint8(len(e.Args)))
	return fs.finishCall(base, slots)
}

func (fs *funcState) typedLen(arg ast.Expr) (int, bool, bool, error) {
	var code op.Code
	switch fs.c.info.TypeOf(arg).Kind {
	case sema.KindArray:
		code = op.ArrayLen
	case sema.KindString:
		code = op.StringLen
	case sema.KindMap:
		code = op.MapSize
	case sema.KindSet:
		code = op.SetSize
	default:
		return 0, false, false, nil
	}
	src, srcTemp, err := fs.expr(arg)
	if err != nil {
		return 0, false, true, err
	}
	t, err := fs.temp(arg.Pos())
	if err != nil {
		return 0, false, true, err
	}
	fs.ctx.emit(code, uint8(t), uint8(src), 0)
	if err := fs.release(src, srcTemp); err != nil {
		return 0, false, true, err
	}
	return t, true, true, nil
}
