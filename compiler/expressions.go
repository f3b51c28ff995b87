package compiler

import (
	"math"

	"github.com/doof-lang/doof/ast"
	"github.com/doof-lang/doof/bytecode"
	"github.com/doof-lang/doof/errors"
	"github.com/doof-lang/doof/op"
	"github.com/doof-lang/doof/sema"
)

// expr lowers an expression and returns the register holding its value.
// The second result reports whether the register is a temporary the caller
// must release; a variable's home register comes back non-temporary so
// plain reads cost no MOVE.
func (fs *funcState) expr(e ast.Expr) (int, bool, error) {
	switch e := e.(type) {
	case *ast.Ident:
		return fs.loadVar(e.Pos(), e.Name)
	case *ast.This:
		reg, ok := fs.regs.Lookup("this")
		if !ok {
			return 0, false, fs.errorf(e.Pos(), errors.E2001, "this outside instance method")
		}
		return reg, false, nil
	case *ast.NullLit:
		t, err := fs.temp(e.Pos())
		if err != nil {
			return 0, false, err
		}
		fs.ctx.emit(op.LoadNull, uint8(t), 0, 0)
		return t, true, nil
	case *ast.BoolLit:
		t, err := fs.temp(e.Pos())
		if err != nil {
			return 0, false, err
		}
		code := op.LoadFalse
		if e.Value {
			code = op.LoadTrue
		}
		fs.ctx.emit(code, uint8(t), 0, 0)
		return t, true, nil
	case *ast.IntLit:
		return fs.intValue(e.Pos(), e.Value)
	case *ast.CharLit:
		return fs.intValue(e.Pos(), int64(e.Value))
	case *ast.FloatLit:
		return fs.constValue(e.Pos(), bytecode.FloatConstant(e.Value))
	case *ast.StringLit:
		return fs.constValue(e.Pos(), bytecode.StringConstant(e.Value))
	case *ast.Binary:
		return fs.binary(e)
	case *ast.Unary:
		return fs.unary(e)
	case *ast.Call:
		return fs.call(e)
	case *ast.Member:
		return fs.member(e)
	case *ast.Index:
		return fs.index(e)
	case *ast.Lambda:
		t, err := fs.temp(e.Pos())
		if err != nil {
			return 0, false, err
		}
		if err := fs.lambdaValue(e, t); err != nil {
			return 0, false, err
		}
		return t, true, nil
	case *ast.New:
		return fs.newObject(e)
	case *ast.ArrayLit:
		return fs.arrayLit(e)
	case *ast.MapLit:
		return fs.mapLit(e)
	case *ast.SetLit:
		return fs.setLit(e)
	case *ast.RangeLit:
		return 0, false, fs.errorf(e.Pos(), errors.E2006,
			"range is only valid in for-in and switch cases")
	default:
		return 0, false, fs.errorf(e.Pos(), errors.E2006, "unsupported expression %T", e)
	}
}

// exprTo lowers an expression directly into dst. Literals and lambdas
// write their destination operand directly; everything else evaluates
// normally and moves only when the result landed elsewhere.
func (fs *funcState) exprTo(e ast.Expr, dst int) error {
	switch e := e.(type) {
	case *ast.NullLit:
		fs.ctx.emit(op.LoadNull, uint8(dst), 0, 0)
		return nil
	case *ast.BoolLit:
		code := op.LoadFalse
		if e.Value {
			code = op.LoadTrue
		}
		fs.ctx.emit(code, uint8(dst), 0, 0)
		return nil
	case *ast.IntLit:
		return fs.intInto(e.Pos(), e.Value, dst)
	case *ast.CharLit:
		return fs.intInto(e.Pos(), int64(e.Value), dst)
	case *ast.FloatLit:
		return fs.constInto(e.Pos(), bytecode.FloatConstant(e.Value), dst)
	case *ast.StringLit:
		return fs.constInto(e.Pos(), bytecode.StringConstant(e.Value), dst)
	case *ast.Lambda:
		return fs.lambdaValue(e, dst)
	}
	reg, temp, err := fs.expr(e)
	if err != nil {
		return err
	}
	if reg != dst {
		fs.ctx.emit(op.Move, uint8(dst), uint8(reg), 0)
	}
	return fs.release(reg, temp)
}

func (fs *funcState) temp(pos ast.Position) (int, error) {
	t, err := fs.regs.AllocTemp()
	if err != nil {
		return 0, fs.locate(err, pos)
	}
	return t, nil
}

// intValue loads an integer, using the LOAD_INT immediate form when the
// value fits in the signed 16-bit operand and the pool otherwise.
func (fs *funcState) intValue(pos ast.Position, v int64) (int, bool, error) {
	t, err := fs.temp(pos)
	if err != nil {
		return 0, false, err
	}
	if err := fs.intInto(pos, v, t); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

func (fs *funcState) intInto(pos ast.Position, v int64, dst int) error {
	if v >= math.MinInt16 && v <= math.MaxInt16 {
		fs.ctx.emitBC(op.LoadInt, uint8(dst), uint16(int16(v)))
		return nil
	}
	return fs.constInto(pos, bytecode.IntConstant(v), dst)
}

func (fs *funcState) constValue(pos ast.Position, c bytecode.Constant) (int, bool, error) {
	t, err := fs.temp(pos)
	if err != nil {
		return 0, false, err
	}
	if err := fs.constInto(pos, c, t); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

func (fs *funcState) constInto(pos ast.Position, c bytecode.Constant, dst int) error {
	ci, err := fs.ctx.constant(c)
	if err != nil {
		return fs.locate(err, pos)
	}
	fs.ctx.emitBC(op.LoadConst, uint8(dst), ci)
	return nil
}

// loadVar resolves a name against, in order, the frame's registers, the
// global table, and the declared functions. A named function used as a
// value becomes a capture-free lambda over it.
func (fs *funcState) loadVar(pos ast.Position, name string) (int, bool, error) {
	if reg, ok := fs.regs.Lookup(name); ok {
		if fs.isBoxed(name) {
			t, err := fs.temp(pos)
			if err != nil {
				return 0, false, err
			}
			fs.ctx.emit(op.CellGet, uint8(t), uint8(reg), 0)
			return t, true, nil
		}
		return reg, false, nil
	}
	if gi, ok := fs.ctx.globals[name]; ok {
		t, err := fs.temp(pos)
		if err != nil {
			return 0, false, err
		}
		fs.ctx.emitBC(op.LoadGlobal, uint8(t), uint16(gi))
		return t, true, nil
	}
	if fi, ok := fs.ctx.funcByName[name]; ok {
		ci, err := fs.ctx.constant(bytecode.FunctionConstant(fi))
		if err != nil {
			return 0, false, fs.locate(err, pos)
		}
		t, err := fs.temp(pos)
		if err != nil {
			return 0, false, err
		}
		fs.ctx.emitBC(op.NewLambda, uint8(t), ci)
		return t, true, nil
	}
	return 0, false, fs.errorf(pos, errors.E2001, "undefined variable %q", name)
}

func (fs *funcState) storeVar(pos ast.Position, name string, src int) error {
	if reg, ok := fs.regs.Lookup(name); ok {
		if fs.isBoxed(name) {
			fs.ctx.emit(op.CellSet, uint8(reg), uint8(src), 0)
			return nil
		}
		if reg != src {
			fs.ctx.emit(op.Move, uint8(reg), uint8(src), 0)
		}
		return nil
	}
	if gi, ok := fs.ctx.globals[name]; ok {
		fs.ctx.emitBC(op.StoreGlobal, uint8(src), uint16(gi))
		return nil
	}
	return fs.errorf(pos, errors.E2001, "undefined variable %q", name)
}

// isBoxed reports whether reads and writes of the name go through a
// capture cell: either this frame boxed it for nested lambdas, or it is a
// boxed capture received from the enclosing frame.
func (fs *funcState) isBoxed(name string) bool {
	if fs.boxed[name] {
		return true
	}
	if fs.captured != nil {
		return fs.captured[name].Boxed
	}
	return false
}

// condFalse lowers a condition for flow: control jumps to label when the
// condition is false and falls through when it is true. Short-circuit
// operators branch directly without materializing a boolean.
func (fs *funcState) condFalse(e ast.Expr, label string) error {
	switch e := e.(type) {
	case *ast.Binary:
		switch e.Op {
		case "&&":
			if err := fs.condFalse(e.X, label); err != nil {
				return err
			}
			return fs.condFalse(e.Y, label)
		case "||":
			through := fs.ctx.createLabel()
			if err := fs.condTrue(e.X, through); err != nil {
				return err
			}
			if err := fs.condFalse(e.Y, label); err != nil {
				return err
			}
			fs.ctx.setLabel(through)
			return nil
		}
		if operand, eq, ok := fs.nullCompare(e); ok {
			reg, temp, err := fs.expr(operand)
			if err != nil {
				return err
			}
			if eq {
				// x == null is false when x is not null.
				through := fs.ctx.createLabel()
				fs.ctx.emitJump(op.JumpIfNull, uint8(reg), through)
				fs.ctx.emitJump(op.Jump, 0, label)
				fs.ctx.setLabel(through)
			} else {
				fs.ctx.emitJump(op.JumpIfNull, uint8(reg), label)
			}
			return fs.release(reg, temp)
		}
	case *ast.Unary:
		if e.Op == "!" {
			return fs.condTrue(e.X, label)
		}
	case *ast.BoolLit:
		if !e.Value {
			fs.ctx.emitJump(op.Jump, 0, label)
		}
		return nil
	}
	reg, temp, err := fs.expr(e)
	if err != nil {
		return err
	}
	fs.ctx.emitJump(op.JumpIfFalse, uint8(reg), label)
	return fs.release(reg, temp)
}

// condTrue is the dual of condFalse: jump to label when true, fall
// through when false.
func (fs *funcState) condTrue(e ast.Expr, label string) error {
	switch e := e.(type) {
	case *ast.Binary:
		switch e.Op {
		case "&&":
			through := fs.ctx.createLabel()
			if err := fs.condFalse(e.X, through); err != nil {
				return err
			}
			if err := fs.condTrue(e.Y, label); err != nil {
				return err
			}
			fs.ctx.setLabel(through)
			return nil
		case "||":
			if err := fs.condTrue(e.X, label); err != nil {
				return err
			}
			return fs.condTrue(e.Y, label)
		}
		if operand, eq, ok := fs.nullCompare(e); ok {
			reg, temp, err := fs.expr(operand)
			if err != nil {
				return err
			}
			if eq {
				fs.ctx.emitJump(op.JumpIfNull, uint8(reg), label)
			} else {
				through := fs.ctx.createLabel()
				fs.ctx.emitJump(op.JumpIfNull, uint8(reg), through)
				fs.ctx.emitJump(op.Jump, 0, label)
				fs.ctx.setLabel(through)
			}
			return fs.release(reg, temp)
		}
	case *ast.Unary:
		if e.Op == "!" {
			return fs.condFalse(e.X, label)
		}
	case *ast.BoolLit:
		if e.Value {
			fs.ctx.emitJump(op.Jump, 0, label)
		}
		return nil
	}
	reg, temp, err := fs.expr(e)
	if err != nil {
		return err
	}
	fs.ctx.emitJump(op.JumpIfTrue, uint8(reg), label)
	return fs.release(reg, temp)
}

// nullCompare matches `x == null` and `x != null`, which lower to
// JUMP_IF_NULL in flow context.
func (fs *funcState) nullCompare(e *ast.Binary) (ast.Expr, bool, bool) {
	if e.Op != "==" && e.Op != "!=" {
		return nil, false, false
	}
	if _, ok := e.Y.(*ast.NullLit); ok {
		return e.X, e.Op == "==", true
	}
	if _, ok := e.X.(*ast.NullLit); ok {
		return e.Y, e.Op == "==", true
	}
	return nil, false, false
}

func (fs *funcState) binary(e *ast.Binary) (int, bool, error) {
	switch e.Op {
	case "&&", "||":
		return fs.boolValue(e)
	case "==", "!=", "<", "<=", ">", ">=":
		return fs.comparison(e)
	case "+", "-", "*", "/", "%":
		return fs.arithmetic(e)
	default:
		return 0, false, fs.errorf(e.Pos(), errors.E2006, "unsupported operator %q", e.Op)
	}
}

// boolValue materializes a short-circuit expression used for its value.
func (fs *funcState) boolValue(e *ast.Binary) (int, bool, error) {
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	falseLabel := fs.ctx.createLabel()
	end := fs.ctx.createLabel()
	if err := fs.condFalse(e, falseLabel); err != nil {
		return 0, false, err
	}
	fs.ctx.emit(op.LoadTrue, uint8(t), 0, 0)
	fs.ctx.emitJump(op.Jump, 0, end)
	fs.ctx.setLabel(falseLabel)
	fs.ctx.emit(op.LoadFalse, uint8(t), 0, 0)
	fs.ctx.setLabel(end)
	return t, true, nil
}

func (fs *funcState) comparison(e *ast.Binary) (int, bool, error) {
	xKind := fs.operandKind(e.X)
	yKind := fs.operandKind(e.Y)

	x, xTemp, err := fs.expr(e.X)
	if err != nil {
		return 0, false, err
	}
	y, yTemp, err := fs.expr(e.Y)
	if err != nil {
		return 0, false, err
	}

	kind := xKind
	if xKind.IsNumeric() && yKind.IsNumeric() {
		kind, _ = sema.Promote(xKind, yKind)
		if x, xTemp, err = fs.widen(x, xTemp, xKind, kind, e.X.Pos()); err != nil {
			return 0, false, err
		}
		if y, yTemp, err = fs.widen(y, yTemp, yKind, kind, e.Y.Pos()); err != nil {
			return 0, false, err
		}
	}
	code, swap, err := fs.cmpOp(e.Op, kind, e.Pos())
	if err != nil {
		return 0, false, err
	}
	if swap {
		x, y = y, x
	}
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(code, uint8(t), uint8(x), uint8(y))
	if err := fs.release(y, yTemp); err != nil {
		return 0, false, err
	}
	if err := fs.release(x, xTemp); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

func (fs *funcState) arithmetic(e *ast.Binary) (int, bool, error) {
	xKind := fs.operandKind(e.X)
	yKind := fs.operandKind(e.Y)

	if e.Op == "+" && (xKind == sema.KindString || yKind == sema.KindString) {
		return fs.concat(e, xKind, yKind)
	}
	promoted, ok := sema.Promote(xKind, yKind)
	if !ok {
		return 0, false, fs.errorf(e.Pos(), errors.E2010,
			"operator %q requires numeric operands, have %s and %s", e.Op, xKind, yKind)
	}
	x, xTemp, err := fs.expr(e.X)
	if err != nil {
		return 0, false, err
	}
	if x, xTemp, err = fs.widen(x, xTemp, xKind, promoted, e.X.Pos()); err != nil {
		return 0, false, err
	}
	y, yTemp, err := fs.expr(e.Y)
	if err != nil {
		return 0, false, err
	}
	if y, yTemp, err = fs.widen(y, yTemp, yKind, promoted, e.Y.Pos()); err != nil {
		return 0, false, err
	}
	code, err := fs.arithOp(e.Op, promoted, e.Pos())
	if err != nil {
		return 0, false, err
	}
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(code, uint8(t), uint8(x), uint8(y))
	if err := fs.release(y, yTemp); err != nil {
		return 0, false, err
	}
	if err := fs.release(x, xTemp); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

// concat lowers string +, converting a non-string operand to its string
// form first.
func (fs *funcState) concat(e *ast.Binary, xKind, yKind sema.Kind) (int, bool, error) {
	x, xTemp, err := fs.expr(e.X)
	if err != nil {
		return 0, false, err
	}
	x, xTemp, err = fs.stringify(x, xTemp, xKind, e.X.Pos())
	if err != nil {
		return 0, false, err
	}
	y, yTemp, err := fs.expr(e.Y)
	if err != nil {
		return 0, false, err
	}
	y, yTemp, err = fs.stringify(y, yTemp, yKind, e.Y.Pos())
	if err != nil {
		return 0, false, err
	}
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(op.ConcatString, uint8(t), uint8(x), uint8(y))
	if err := fs.release(y, yTemp); err != nil {
		return 0, false, err
	}
	if err := fs.release(x, xTemp); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

func (fs *funcState) unary(e *ast.Unary) (int, bool, error) {
	src, srcTemp, err := fs.expr(e.X)
	if err != nil {
		return 0, false, err
	}
	var code op.Code
	switch e.Op {
	case "-":
		switch fs.operandKind(e.X) {
		case sema.KindInt:
			code = op.NegInt
		case sema.KindFloat, sema.KindDouble:
			code = op.NegFloat
		default:
			return 0, false, fs.errorf(e.Pos(), errors.E2010,
				"operator %q requires a numeric operand", e.Op)
		}
	case "!":
		code = op.Not
	default:
		return 0, false, fs.errorf(e.Pos(), errors.E2006, "unsupported operator %q", e.Op)
	}
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(code, uint8(t), uint8(src), 0)
	if err := fs.release(src, srcTemp); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

func (fs *funcState) member(e *ast.Member) (int, bool, error) {
	if ident, ok := e.X.(*ast.Ident); ok {
		if ei, ok := fs.c.info.Enums[ident.Name]; ok {
			return fs.enumValue(e, ei)
		}
	}
	recvType := fs.c.info.TypeOf(e.X)
	switch recvType.Kind {
	case sema.KindObject:
		fieldIdx, err := fs.fieldIndex(e)
		if err != nil {
			return 0, false, err
		}
		recv, recvTemp, err := fs.expr(e.X)
		if err != nil {
			return 0, false, err
		}
		t, err := fs.temp(e.Pos())
		if err != nil {
			return 0, false, err
		}
		fs.ctx.emit(op.GetField, uint8(t), uint8(recv), uint8(fieldIdx))
		if err := fs.release(recv, recvTemp); err != nil {
			return 0, false, err
		}
		return t, true, nil
	case sema.KindArray, sema.KindString, sema.KindMap, sema.KindSet:
		return fs.lengthProperty(e, recvType.Kind)
	default:
		return 0, false, fs.errorf(e.Pos(), errors.E2006,
			"no property %q on %s", e.Name, recvType.Kind)
	}
}

func (fs *funcState) lengthProperty(e *ast.Member, kind sema.Kind) (int, bool, error) {
	var code op.Code
	switch {
	case kind == sema.KindArray && e.Name == "length":
		code = op.ArrayLen
	case kind == sema.KindString && e.Name == "length":
		code = op.StringLen
	case kind == sema.KindMap && e.Name == "size":
		code = op.MapSize
	case kind == sema.KindSet && e.Name == "size":
		code = op.SetSize
	default:
		return 0, false, fs.errorf(e.Pos(), errors.E2006,
			"no property %q on %s", e.Name, kind)
	}
	recv, recvTemp, err := fs.expr(e.X)
	if err != nil {
		return 0, false, err
	}
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(code, uint8(t), uint8(recv), 0)
	if err := fs.release(recv, recvTemp); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

func (fs *funcState) enumValue(e *ast.Member, ei *sema.EnumInfo) (int, bool, error) {
	ev, ok := ei.Values[e.Name]
	if !ok {
		return 0, false, fs.errorf(e.Pos(), errors.E2011,
			"enum %s has no member %q", ei.Name, e.Name)
	}
	if ei.Backing == sema.KindString {
		return fs.constValue(e.Pos(), bytecode.StringConstant(ev.Str))
	}
	return fs.intValue(e.Pos(), ev.Int)
}

func (fs *funcState) fieldIndex(e *ast.Member) (int, error) {
	className := fs.c.info.TypeOf(e.X).Name
	ci, ok := fs.c.info.Classes[className]
	if !ok {
		return 0, fs.errorf(e.Pos(), errors.E2011, "unknown class %q", className)
	}
	idx := ci.FieldIndex(e.Name)
	if idx < 0 {
		return 0, fs.errorf(e.Pos(), errors.E2011,
			"class %s has no field %q", className, e.Name)
	}
	return idx, nil
}

func (fs *funcState) index(e *ast.Index) (int, bool, error) {
	recvType := fs.c.info.TypeOf(e.X)
	recv, recvTemp, err := fs.expr(e.X)
	if err != nil {
		return 0, false, err
	}
	key, keyTemp, err := fs.expr(e.Index)
	if err != nil {
		return 0, false, err
	}
	var code op.Code
	switch recvType.Kind {
	case sema.KindArray:
		code = op.ArrayGet
	case sema.KindString:
		code = op.StringGet
	case sema.KindMap:
		code = fs.mapGetOp(recvType)
	default:
		return 0, false, fs.errorf(e.Pos(), errors.E2006, "cannot index %s", recvType.Kind)
	}
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(code, uint8(t), uint8(recv), uint8(key))
	if err := fs.release(key, keyTemp); err != nil {
		return 0, false, err
	}
	if err := fs.release(recv, recvTemp); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

// newObject lowers instantiation: allocate the object, then run the
// constructor as an instance method call when the class declares one.
func (fs *funcState) newObject(e *ast.New) (int, bool, error) {
	classIdx, ok := fs.ctx.classByName[e.Class]
	if !ok {
		return 0, false, fs.errorf(e.Pos(), errors.E2011, "unknown class %q", e.Class)
	}
	ci, err := fs.ctx.constant(bytecode.ClassConstant(classIdx))
	if err != nil {
		return 0, false, fs.locate(err, e.Pos())
	}
	t, err := fs.temp(e.Pos())
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emitBC(op.NewObject, uint8(t), ci)

	classInfo := fs.c.info.Classes[e.Class]
	ctor := (*sema.MethodInfo)(nil)
	if classInfo != nil {
		ctor = classInfo.Methods["constructor"]
	}
	if ctor == nil {
		if len(e.Args) > 0 {
			return 0, false, fs.errorf(e.Pos(), errors.E2009,
				"class %s has no constructor but %d arguments were given", e.Class, len(e.Args))
		}
		return t, true, nil
	}
	base, n, err := fs.stageArgs(e.Pos(), t, e.Args, ctor.Params)
	if err != nil {
		return 0, false, err
	}
	if classInfo.Extern {
		nameConst, err := fs.ctx.constant(bytecode.StringConstant(e.Class + ".constructor"))
		if err != nil {
			return 0, false, fs.locate(err, e.Pos())
		}
		fs.ctx.emitBC(op.CallNative, uint8(base), nameConst)
	} else {
		fi, ok := fs.ctx.funcByName[e.Class+".constructor"]
		if !ok {
			return 0, false, fs.errorf(e.Pos(), errors.E2011,
				"class %s constructor was not declared", e.Class)
		}
		fnConst, err := fs.ctx.constant(bytecode.FunctionConstant(fi))
		if err != nil {
			return 0, false, fs.locate(err, e.Pos())
		}
		fs.ctx.emitBC(op.CallMethod, uint8(base), fnConst)
	}
	if err := fs.regs.FreeBlock(base, n); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

// operandKind resolves the comparison/arithmetic kind of an operand,
// mapping enums to their backing representation and chars to ints only
// where the operator table requires it.
func (fs *funcState) operandKind(e ast.Expr) sema.Kind {
	t := fs.c.info.TypeOf(e)
	if t.Kind == sema.KindEnum {
		if ei, ok := fs.c.info.Enums[t.Name]; ok {
			return ei.Backing
		}
	}
	return t.Kind
}

// widen converts an int operand up to float when the promoted kind
// requires it. Float and double share a runtime representation, so only
// the int case emits code.
func (fs *funcState) widen(reg int, temp bool, from, to sema.Kind, pos ast.Position) (int, bool, error) {
	if from != sema.KindInt || to == sema.KindInt {
		return reg, temp, nil
	}
	t, err := fs.temp(pos)
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(op.IntToFloat, uint8(t), uint8(reg), 0)
	if err := fs.release(reg, temp); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

// stringify converts a value to its string form for concatenation.
func (fs *funcState) stringify(reg int, temp bool, kind sema.Kind, pos ast.Position) (int, bool, error) {
	var code op.Code
	switch kind {
	case sema.KindString:
		return reg, temp, nil
	case sema.KindInt:
		code = op.IntToString
	case sema.KindFloat, sema.KindDouble:
		code = op.FloatToString
	case sema.KindBool:
		code = op.BoolToString
	case sema.KindChar:
		code = op.CharToString
	default:
		code = op.ToString
	}
	t, err := fs.temp(pos)
	if err != nil {
		return 0, false, err
	}
	fs.ctx.emit(code, uint8(t), uint8(reg), 0)
	if err := fs.release(reg, temp); err != nil {
		return 0, false, err
	}
	return t, true, nil
}

// toStringReg is stringify for callers that track the operand kind
// separately from the expression.
func (fs *funcState) toStringReg(reg int, kind sema.Kind, pos ast.Position) (int, bool, error) {
	return fs.stringify(reg, false, kind, pos)
}

// cmpOp selects the typed comparison opcode. String and char carry only
// the Eq/Ne/Lt/Le forms; > and >= lower to the mirrored < and <= with
// swapped operands.
func (fs *funcState) cmpOp(operator string, kind sema.Kind, pos ast.Position) (op.Code, bool, error) {
	type entry struct {
		code op.Code
		swap bool
	}
	var table map[string]entry
	switch kind {
	case sema.KindInt:
		table = map[string]entry{
			"==": {op.EqInt, false}, "!=": {op.NeInt, false},
			"<": {op.LtInt, false}, "<=": {op.LeInt, false},
			">": {op.GtInt, false}, ">=": {op.GeInt, false},
		}
	case sema.KindFloat, sema.KindDouble:
		table = map[string]entry{
			"==": {op.EqFloat, false}, "!=": {op.NeFloat, false},
			"<": {op.LtFloat, false}, "<=": {op.LeFloat, false},
			">": {op.GtFloat, false}, ">=": {op.GeFloat, false},
		}
	case sema.KindString:
		table = map[string]entry{
			"==": {op.EqString, false}, "!=": {op.NeString, false},
			"<": {op.LtString, false}, "<=": {op.LeString, false},
			">": {op.LtString, true}, ">=": {op.LeString, true},
		}
	case sema.KindChar:
		table = map[string]entry{
			"==": {op.EqChar, false}, "!=": {op.NeChar, false},
			"<": {op.LtChar, false}, "<=": {op.LeChar, false},
			">": {op.LtChar, true}, ">=": {op.LeChar, true},
		}
	case sema.KindBool:
		table = map[string]entry{
			"==": {op.EqBool, false}, "!=": {op.NeBool, false},
		}
	default:
		table = map[string]entry{
			"==": {op.EqObject, false}, "!=": {op.NeObject, false},
		}
	}
	e, ok := table[operator]
	if !ok {
		return op.Invalid, false, fs.errorf(pos, errors.E2010,
			"operator %q is not defined for %s", operator, kind)
	}
	return e.code, e.swap, nil
}

// arithOp selects the typed arithmetic opcode. Modulo is integer-only.
func (fs *funcState) arithOp(operator string, kind sema.Kind, pos ast.Position) (op.Code, error) {
	switch kind {
	case sema.KindInt:
		switch operator {
		case "+":
			return op.AddInt, nil
		case "-":
			return op.SubInt, nil
		case "*":
			return op.MulInt, nil
		case "/":
			return op.DivInt, nil
		case "%":
			return op.ModInt, nil
		}
	case sema.KindFloat, sema.KindDouble:
		switch operator {
		case "+":
			return op.AddFloat, nil
		case "-":
			return op.SubFloat, nil
		case "*":
			return op.MulFloat, nil
		case "/":
			return op.DivFloat, nil
		}
	}
	return op.Invalid, fs.errorf(pos, errors.E2010,
		"operator %q is not defined for %s", operator, kind)
}

// eqOp selects the equality opcode used by switch case tests.
func (fs *funcState) eqOp(kind sema.Kind, pos ast.Position) (op.Code, error) {
	code, _, err := fs.cmpOp("==", kind, pos)
	return code, err
}
