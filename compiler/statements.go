package compiler

import (
	"github.com/doof-lang/doof/ast"
	"github.com/doof-lang/doof/errors"
	"github.com/doof-lang/doof/op"
	"github.com/doof-lang/doof/sema"
)

func (fs *funcState) stmt(s ast.Stmt) error {
	fs.ctx.setLocation(s.Pos())
	switch s := s.(type) {
	case *ast.Block:
		return fs.block(s)
	case *ast.VarDecl:
		return fs.varDecl(s)
	case *ast.Assign:
		return fs.assign(s)
	case *ast.ExprStmt:
		reg, temp, err := fs.expr(s.X)
		if err != nil {
			return err
		}
		return fs.release(reg, temp)
	case *ast.If:
		return fs.ifStmt(s)
	case *ast.While:
		return fs.whileStmt(s)
	case *ast.For:
		return fs.forStmt(s)
	case *ast.ForIn:
		return fs.forInStmt(s)
	case *ast.Switch:
		return fs.switchStmt(s)
	case *ast.Break:
		return fs.breakStmt(s)
	case *ast.Continue:
		return fs.continueStmt(s)
	case *ast.Return:
		return fs.returnStmt(s)
	case *ast.FuncDecl, *ast.ClassDecl:
		// Declarations are hoisted and compiled separately; nested
		// declarations are not part of the language.
		return fs.errorf(s.Pos(), errors.E2006, "declaration is not allowed here")
	default:
		return fs.errorf(s.Pos(), errors.E2006, "unsupported statement %T", s)
	}
}

func (fs *funcState) block(b *ast.Block) error {
	fs.ctx.debug.enterScope(fs.ctx.position())
	for _, s := range b.Stmts {
		if err := fs.stmt(s); err != nil {
			return err
		}
	}
	fs.ctx.debug.exitScope(fs.ctx.position())
	return nil
}

// varDecl lowers a declaration. At the top level the name lives in a
// global slot; inside a function it was pre-assigned a register. A local
// that nested lambdas capture and mutate gets a fresh cell instead of a
// plain value.
func (fs *funcState) varDecl(s *ast.VarDecl) error {
	if fs.isEntry {
		gi, ok := fs.ctx.globals[s.Name]
		if !ok {
			return fs.errorf(s.Pos(), errors.E2001, "undeclared global %q", s.Name)
		}
		tmp, err := fs.regs.AllocTemp()
		if err != nil {
			return fs.errorf(s.Pos(), errors.E2007, "%v", err)
		}
		if s.Value != nil {
			if err := fs.exprTo(s.Value, tmp); err != nil {
				return err
			}
		} else {
			fs.ctx.emit(op.LoadNull, uint8(tmp), 0, 0)
		}
		fs.ctx.emitBC(op.StoreGlobal, uint8(tmp), uint16(gi))
		return fs.regs.Free(tmp)
	}

	reg, err := fs.regs.Variable(s.Name)
	if err != nil {
		return fs.locate(err, s.Pos())
	}
	if fs.boxed[s.Name] {
		tmp, err := fs.regs.AllocTemp()
		if err != nil {
			return fs.errorf(s.Pos(), errors.E2007, "%v", err)
		}
		if s.Value != nil {
			if err := fs.exprTo(s.Value, tmp); err != nil {
				return err
			}
		} else {
			fs.ctx.emit(op.LoadNull, uint8(tmp), 0, 0)
		}
		fs.ctx.emit(op.CellNew, uint8(reg), uint8(tmp), 0)
		return fs.regs.Free(tmp)
	}
	if s.Value == nil {
		fs.ctx.emit(op.LoadNull, uint8(reg), 0, 0)
		return nil
	}
	return fs.exprTo(s.Value, reg)
}

func (fs *funcState) assign(s *ast.Assign) error {
	switch target := s.Target.(type) {
	case *ast.Ident:
		return fs.assignIdent(s, target)
	case *ast.Member:
		return fs.assignMember(s, target)
	case *ast.Index:
		return fs.assignIndex(s, target)
	default:
		return fs.errorf(s.Pos(), errors.E2006, "cannot assign to %s", s.Target)
	}
}

func (fs *funcState) assignIdent(s *ast.Assign, target *ast.Ident) error {
	tmp, err := fs.regs.AllocTemp()
	if err != nil {
		return fs.errorf(s.Pos(), errors.E2007, "%v", err)
	}
	if s.Op == "=" {
		if err := fs.exprTo(s.Value, tmp); err != nil {
			return err
		}
	} else {
		if err := fs.compoundValue(s, target, tmp); err != nil {
			return err
		}
	}
	if err := fs.storeVar(target.Pos(), target.Name, tmp); err != nil {
		return err
	}
	return fs.regs.Free(tmp)
}

func (fs *funcState) assignMember(s *ast.Assign, target *ast.Member) error {
	recv, recvTemp, err := fs.expr(target.X)
	if err != nil {
		return err
	}
	fieldIdx, err := fs.fieldIndex(target)
	if err != nil {
		return err
	}
	tmp, err := fs.regs.AllocTemp()
	if err != nil {
		return fs.errorf(s.Pos(), errors.E2007, "%v", err)
	}
	if s.Op == "=" {
		if err := fs.exprTo(s.Value, tmp); err != nil {
			return err
		}
	} else {
		fs.ctx.emit(op.GetField, uint8(tmp), uint8(recv), uint8(fieldIdx))
		if err := fs.applyCompound(s, target, tmp); err != nil {
			return err
		}
	}
	fs.ctx.emit(op.SetField, uint8(recv), uint8(fieldIdx), uint8(tmp))
	if err := fs.regs.Free(tmp); err != nil {
		return err
	}
	return fs.release(recv, recvTemp)
}

func (fs *funcState) assignIndex(s *ast.Assign, target *ast.Index) error {
	recv, recvTemp, err := fs.expr(target.X)
	if err != nil {
		return err
	}
	key, keyTemp, err := fs.expr(target.Index)
	if err != nil {
		return err
	}
	tmp, err := fs.regs.AllocTemp()
	if err != nil {
		return fs.errorf(s.Pos(), errors.E2007, "%v", err)
	}
	recvType := fs.c.info.TypeOf(target.X)
	if s.Op == "=" {
		if err := fs.exprTo(s.Value, tmp); err != nil {
			return err
		}
	} else {
		switch recvType.Kind {
		case sema.KindArray:
			fs.ctx.emit(op.ArrayGet, uint8(tmp), uint8(recv), uint8(key))
		case sema.KindMap:
			fs.ctx.emit(fs.mapGetOp(recvType), uint8(tmp), uint8(recv), uint8(key))
		default:
			return fs.errorf(s.Pos(), errors.E2006,
				"compound assignment through %s index", recvType.Kind)
		}
		if err := fs.applyCompound(s, target, tmp); err != nil {
			return err
		}
	}
	switch recvType.Kind {
	case sema.KindArray:
		fs.ctx.emit(op.ArraySet, uint8(recv), uint8(key), uint8(tmp))
	case sema.KindMap:
		fs.ctx.emit(fs.mapSetOp(recvType), uint8(recv), uint8(key), uint8(tmp))
	default:
		return fs.errorf(s.Pos(), errors.E2006, "cannot index-assign %s", recvType.Kind)
	}
	if err := fs.regs.Free(tmp); err != nil {
		return err
	}
	if err := fs.release(key, keyTemp); err != nil {
		return err
	}
	return fs.release(recv, recvTemp)
}

// compoundValue computes `target op value` into dst for an identifier
// target: load the current value, then fold the right side in.
func (fs *funcState) compoundValue(s *ast.Assign, target *ast.Ident, dst int) error {
	cur, curTemp, err := fs.loadVar(target.Pos(), target.Name)
	if err != nil {
		return err
	}
	if cur != dst {
		fs.ctx.emit(op.Move, uint8(dst), uint8(cur), 0)
	}
	if err := fs.release(cur, curTemp); err != nil {
		return err
	}
	return fs.applyCompound(s, target, dst)
}

// applyCompound folds `dst = dst op s.Value` for a compound assignment.
// The operand type is the target's resolved type.
func (fs *funcState) applyCompound(s *ast.Assign, target ast.Expr, dst int) error {
	rhs, rhsTemp, err := fs.expr(s.Value)
	if err != nil {
		return err
	}
	kind := fs.c.info.TypeOf(target).Kind
	opStr := s.Op[:len(s.Op)-1] // "+=" -> "+"
	if kind == sema.KindString && opStr == "+" {
		conv, _, err := fs.toStringReg(rhs, fs.c.info.TypeOf(s.Value).Kind, s.Value.Pos())
		if err != nil {
			return err
		}
		fs.ctx.emit(op.ConcatString, uint8(dst), uint8(dst), uint8(conv))
		if conv != rhs {
			if err := fs.regs.Free(conv); err != nil {
				return err
			}
		}
		return fs.release(rhs, rhsTemp)
	}
	code, err := fs.arithOp(opStr, kind, s.Pos())
	if err != nil {
		return err
	}
	fs.ctx.emit(code, uint8(dst), uint8(dst), uint8(rhs))
	return fs.release(rhs, rhsTemp)
}

func (fs *funcState) ifStmt(s *ast.If) error {
	elseLabel := fs.ctx.createLabel()
	if err := fs.condFalse(s.Cond, elseLabel); err != nil {
		return err
	}
	if err := fs.block(s.Then); err != nil {
		return err
	}
	if s.Else == nil {
		fs.ctx.setLabel(elseLabel)
		return nil
	}
	endLabel := fs.ctx.createLabel()
	fs.ctx.emitJump(op.Jump, 0, endLabel)
	fs.ctx.setLabel(elseLabel)
	if err := fs.stmt(s.Else); err != nil {
		return err
	}
	fs.ctx.setLabel(endLabel)
	return nil
}

func (fs *funcState) whileStmt(s *ast.While) error {
	top := fs.ctx.createLabel()
	end := fs.ctx.createLabel()
	fs.ctx.setLabel(top)
	fs.ctx.pushLoop(loopContext{continueLabel: top, breakLabel: end, kind: loopWhile})
	defer fs.ctx.popLoop()
	if err := fs.condFalse(s.Cond, end); err != nil {
		return err
	}
	if err := fs.block(s.Body); err != nil {
		return err
	}
	fs.ctx.emitJump(op.Jump, 0, top)
	fs.ctx.setLabel(end)
	return nil
}

func (fs *funcState) forStmt(s *ast.For) error {
	if s.Init != nil {
		if err := fs.stmt(s.Init); err != nil {
			return err
		}
	}
	top := fs.ctx.createLabel()
	post := fs.ctx.createLabel()
	end := fs.ctx.createLabel()
	fs.ctx.setLabel(top)
	fs.ctx.pushLoop(loopContext{continueLabel: post, breakLabel: end, kind: loopFor})
	defer fs.ctx.popLoop()
	if s.Cond != nil {
		if err := fs.condFalse(s.Cond, end); err != nil {
			return err
		}
	}
	if err := fs.block(s.Body); err != nil {
		return err
	}
	fs.ctx.setLabel(post)
	if s.Post != nil {
		if err := fs.stmt(s.Post); err != nil {
			return err
		}
	}
	fs.ctx.emitJump(op.Jump, 0, top)
	fs.ctx.setLabel(end)
	return nil
}

func (fs *funcState) forInStmt(s *ast.ForIn) error {
	if r, ok := s.Iterable.(*ast.RangeLit); ok {
		return fs.forRange(s, r)
	}
	return fs.forIter(s)
}

// forRange lowers iteration over an integer range as a counter loop with
// no iterator object.
func (fs *funcState) forRange(s *ast.ForIn, r *ast.RangeLit) error {
	counter, err := fs.regs.AllocTemp()
	if err != nil {
		return fs.errorf(s.Pos(), errors.E2007, "%v", err)
	}
	limit, err := fs.regs.AllocTemp()
	if err != nil {
		return fs.errorf(s.Pos(), errors.E2007, "%v", err)
	}
	if err := fs.exprTo(r.Low, counter); err != nil {
		return err
	}
	if err := fs.exprTo(r.High, limit); err != nil {
		return err
	}
	cond, err := fs.regs.AllocTemp()
	if err != nil {
		return fs.errorf(s.Pos(), errors.E2007, "%v", err)
	}
	one, err := fs.regs.AllocTemp()
	if err != nil {
		return fs.errorf(s.Pos(), errors.E2007, "%v", err)
	}
	fs.ctx.emitBC(op.LoadInt, uint8(one), 1)

	top := fs.ctx.createLabel()
	cont := fs.ctx.createLabel()
	end := fs.ctx.createLabel()
	fs.ctx.setLabel(top)
	exitTest := op.GeInt
	if r.Inclusive {
		exitTest = op.GtInt
	}
	fs.ctx.emit(exitTest, uint8(cond), uint8(counter), uint8(limit))
	fs.ctx.emitJump(op.JumpIfTrue, uint8(cond), end)
	if err := fs.storeVar(s.Value.Pos(), s.Value.Name, counter); err != nil {
		return err
	}
	fs.ctx.pushLoop(loopContext{continueLabel: cont, breakLabel: end, kind: loopForIn})
	err = fs.block(s.Body)
	fs.ctx.popLoop()
	if err != nil {
		return err
	}
	fs.ctx.setLabel(cont)
	fs.ctx.emit(op.AddInt, uint8(counter), uint8(counter), uint8(one))
	fs.ctx.emitJump(op.Jump, 0, top)
	fs.ctx.setLabel(end)
	for _, reg := range []int{one, cond, limit, counter} {
		if err := fs.regs.Free(reg); err != nil {
			return err
		}
	}
	return nil
}

// forIter lowers iteration over an array, map, set, or string through the
// iterator opcodes. ITER_NEXT advances the iterator and jumps out when it
// is exhausted. Two-variable form binds the key as well; single-variable
// map iteration binds keys.
func (fs *funcState) forIter(s *ast.ForIn) error {
	iterType := fs.c.info.TypeOf(s.Iterable)
	var kind int
	switch iterType.Kind {
	case sema.KindArray:
		kind = op.IterKindArray
	case sema.KindMap:
		kind = op.IterKindMap
	case sema.KindSet:
		kind = op.IterKindSet
	case sema.KindString:
		kind = op.IterKindString
	default:
		return fs.errorf(s.Iterable.Pos(), errors.E2006,
			"cannot iterate over %s", iterType.Kind)
	}
	src, srcTemp, err := fs.expr(s.Iterable)
	if err != nil {
		return err
	}
	iter, err := fs.regs.AllocTemp()
	if err != nil {
		return fs.errorf(s.Pos(), errors.E2007, "%v", err)
	}
	val, err := fs.regs.AllocTemp()
	if err != nil {
		return fs.errorf(s.Pos(), errors.E2007, "%v", err)
	}
	fs.ctx.emit(op.IterNew, uint8(iter), uint8(src), uint8(kind))

	top := fs.ctx.createLabel()
	end := fs.ctx.createLabel()
	fs.ctx.setLabel(top)
	fs.ctx.emitJump(op.IterNext, uint8(iter), end)
	if s.Key != nil {
		fs.ctx.emit(op.IterKey, uint8(val), uint8(iter), 0)
		if err := fs.storeVar(s.Key.Pos(), s.Key.Name, val); err != nil {
			return err
		}
		fs.ctx.emit(op.IterValue, uint8(val), uint8(iter), 0)
		if err := fs.storeVar(s.Value.Pos(), s.Value.Name, val); err != nil {
			return err
		}
	} else {
		valueOp := op.IterValue
		if iterType.Kind == sema.KindMap {
			valueOp = op.IterKey
		}
		fs.ctx.emit(valueOp, uint8(val), uint8(iter), 0)
		if err := fs.storeVar(s.Value.Pos(), s.Value.Name, val); err != nil {
			return err
		}
	}
	fs.ctx.pushLoop(loopContext{continueLabel: top, breakLabel: end, kind: loopForIn})
	err = fs.block(s.Body)
	fs.ctx.popLoop()
	if err != nil {
		return err
	}
	fs.ctx.emitJump(op.Jump, 0, top)
	fs.ctx.setLabel(end)
	if err := fs.regs.Free(val); err != nil {
		return err
	}
	if err := fs.regs.Free(iter); err != nil {
		return err
	}
	return fs.release(src, srcTemp)
}

// switchStmt lowers a switch: the discriminant is evaluated once, case
// tests run in declaration order, and the first match wins. There is no
// fallthrough; break exits early.
func (fs *funcState) switchStmt(s *ast.Switch) error {
	discKind := fs.discriminantKind(s.Value)
	switch discKind {
	case sema.KindNull, sema.KindVoid, sema.KindInvalid:
		return fs.errorf(s.Value.Pos(), errors.E2010,
			"switch discriminant cannot be %s", discKind)
	}
	disc, discTemp, err := fs.expr(s.Value)
	if err != nil {
		return err
	}
	cond, err := fs.regs.AllocTemp()
	if err != nil {
		return fs.errorf(s.Pos(), errors.E2007, "%v", err)
	}

	end := fs.ctx.createLabel()
	fs.ctx.pushLoop(loopContext{breakLabel: end, kind: loopSwitch})
	defer fs.ctx.popLoop()

	bodyLabels := make([]string, len(s.Cases))
	var defaultLabel string
	for i, cs := range s.Cases {
		bodyLabels[i] = fs.ctx.createLabel()
		if cs.Default {
			defaultLabel = bodyLabels[i]
		}
	}
	for i, cs := range s.Cases {
		if cs.Default {
			continue
		}
		for _, test := range cs.Exprs {
			if err := fs.switchCaseTest(test, disc, discKind, cond, bodyLabels[i]); err != nil {
				return err
			}
		}
		if cs.Low != nil {
			if err := fs.switchRangeTest(cs, disc, discKind, cond, bodyLabels[i]); err != nil {
				return err
			}
		}
	}
	if defaultLabel != "" {
		fs.ctx.emitJump(op.Jump, 0, defaultLabel)
	} else {
		fs.ctx.emitJump(op.Jump, 0, end)
	}
	for i, cs := range s.Cases {
		fs.ctx.setLabel(bodyLabels[i])
		if err := fs.block(cs.Body); err != nil {
			return err
		}
		fs.ctx.emitJump(op.Jump, 0, end)
	}
	fs.ctx.setLabel(end)
	if err := fs.regs.Free(cond); err != nil {
		return err
	}
	return fs.release(disc, discTemp)
}

// switchCaseTest emits one exact-match case test. Numeric kinds reconcile
// through the promotion table; a null or void typed case is fatal.
func (fs *funcState) switchCaseTest(test ast.Expr, disc int, discKind sema.Kind, cond int, body string) error {
	testKind := fs.operandKind(test)
	switch testKind {
	case sema.KindNull, sema.KindVoid, sema.KindInvalid:
		return fs.errorf(test.Pos(), errors.E2010,
			"switch case cannot compare against %s", testKind)
	}
	kind := discKind
	if testKind != discKind {
		promoted, ok := sema.Promote(discKind, testKind)
		if !ok {
			return fs.errorf(test.Pos(), errors.E2010,
				"cannot compare %s case against %s discriminant", testKind, discKind)
		}
		kind = promoted
	}
	t, tTemp, err := fs.expr(test)
	if err != nil {
		return err
	}
	if t, tTemp, err = fs.widen(t, tTemp, testKind, kind, test.Pos()); err != nil {
		return err
	}
	lhs, lhsTemp, err := fs.widen(disc, false, discKind, kind, test.Pos())
	if err != nil {
		return err
	}
	eq, err := fs.eqOp(kind, test.Pos())
	if err != nil {
		return err
	}
	fs.ctx.emit(eq, uint8(cond), uint8(lhs), uint8(t))
	fs.ctx.emitJump(op.JumpIfTrue, uint8(cond), body)
	if err := fs.release(lhs, lhsTemp); err != nil {
		return err
	}
	return fs.release(t, tTemp)
}

// switchRangeTest emits `low <= disc < high` (or <= high when inclusive),
// jumping to the body label on a match. Each bound reconciles against the
// discriminant the same way exact-match cases do.
func (fs *funcState) switchRangeTest(cs *ast.SwitchCase, disc int, discKind sema.Kind, cond int, body string) error {
	skip := fs.ctx.createLabel()
	if err := fs.switchBoundTest(cs.Low, disc, discKind, cond, ">=", op.JumpIfFalse, skip); err != nil {
		return err
	}
	upper := "<"
	if cs.Inclusive {
		upper = "<="
	}
	if err := fs.switchBoundTest(cs.High, disc, discKind, cond, upper, op.JumpIfTrue, body); err != nil {
		return err
	}
	fs.ctx.setLabel(skip)
	return nil
}

// switchBoundTest compares the discriminant against one range bound and
// branches on the outcome. Numeric kinds reconcile through the promotion
// table; null, void, or unordered bound kinds are fatal.
func (fs *funcState) switchBoundTest(bound ast.Expr, disc int, discKind sema.Kind, cond int, operator string, branch op.Code, target string) error {
	boundKind := fs.operandKind(bound)
	switch boundKind {
	case sema.KindNull, sema.KindVoid, sema.KindInvalid:
		return fs.errorf(bound.Pos(), errors.E2010,
			"switch range bound cannot be %s", boundKind)
	}
	kind := discKind
	if boundKind != discKind {
		promoted, ok := sema.Promote(discKind, boundKind)
		if !ok {
			return fs.errorf(bound.Pos(), errors.E2010,
				"cannot compare %s bound against %s discriminant", boundKind, discKind)
		}
		kind = promoted
	}
	cmp, swap, err := fs.cmpOp(operator, kind, bound.Pos())
	if err != nil {
		return err
	}
	b, bTemp, err := fs.expr(bound)
	if err != nil {
		return err
	}
	if b, bTemp, err = fs.widen(b, bTemp, boundKind, kind, bound.Pos()); err != nil {
		return err
	}
	lhs, lhsTemp, err := fs.widen(disc, false, discKind, kind, bound.Pos())
	if err != nil {
		return err
	}
	x, y := lhs, b
	if swap {
		x, y = y, x
	}
	fs.ctx.emit(cmp, uint8(cond), uint8(x), uint8(y))
	fs.ctx.emitJump(branch, uint8(cond), target)
	if err := fs.release(lhs, lhsTemp); err != nil {
		return err
	}
	return fs.release(b, bTemp)
}

// discriminantKind resolves the comparison kind for a switch value. An
// enum discriminant compares by its backing representation.
func (fs *funcState) discriminantKind(e ast.Expr) sema.Kind {
	t := fs.c.info.TypeOf(e)
	if t.Kind == sema.KindEnum {
		if ei, ok := fs.c.info.Enums[t.Name]; ok {
			return ei.Backing
		}
	}
	return t.Kind
}

func (fs *funcState) breakStmt(s *ast.Break) error {
	loop := fs.ctx.currentLoop()
	if loop == nil {
		return fs.errorf(s.Pos(), errors.E2003, "break outside loop or switch")
	}
	fs.ctx.emitJump(op.Jump, 0, loop.breakLabel)
	return nil
}

func (fs *funcState) continueStmt(s *ast.Continue) error {
	loop := fs.ctx.currentLoop()
	if loop == nil {
		return fs.errorf(s.Pos(), errors.E2004, "continue outside loop")
	}
	if loop.kind == loopSwitch {
		return fs.errorf(s.Pos(), errors.E2004, "continue inside switch")
	}
	fs.ctx.emitJump(op.Jump, 0, loop.continueLabel)
	return nil
}

func (fs *funcState) returnStmt(s *ast.Return) error {
	if fs.isEntry {
		return fs.errorf(s.Pos(), errors.E2006, "return outside function")
	}
	if s.Value == nil {
		fs.ctx.emit(op.LoadNull, 0, 0, 0)
		fs.ctx.emit(op.Return, 0, 0, 0)
		return nil
	}
	reg, temp, err := fs.expr(s.Value)
	if err != nil {
		return err
	}
	fs.ctx.emit(op.Return, uint8(reg), 0, 0)
	return fs.release(reg, temp)
}

// release frees a register only if it was a temporary.
func (fs *funcState) release(reg int, temp bool) error {
	if !temp {
		return nil
	}
	return fs.regs.Free(reg)
}

// locate attaches a position to an unlocated compile error.
func (fs *funcState) locate(err error, pos ast.Position) error {
	return fs.c.located(err, pos)
}
