package compiler

import (
	"fmt"

	"github.com/doof-lang/doof/ast"
	"github.com/doof-lang/doof/bytecode"
	"github.com/doof-lang/doof/errors"
	"github.com/doof-lang/doof/op"
	"github.com/doof-lang/doof/sema"
)

// funcState is the per-frame lowering state: the register layout, the
// boxed-name set, and whether the frame is the unit's entry code. All
// statement and expression lowering methods hang off it.
type funcState struct {
	c    *Compiler
	ctx  *Context
	regs *RegisterAllocator

	name        string
	boxed       map[string]bool
	returnsVoid bool
	isEntry     bool

	// captured maps capture names to their metadata for the frame of a
	// lambda; nil for functions and entry code.
	captured map[string]sema.Capture
}

// newFuncState sets up the register layout for one frame. For entry code
// declared names live in global slots, not registers, so only the return
// slot is reserved.
func (c *Compiler) newFuncState(info *sema.FunctionInfo, captures []sema.Capture, isEntry bool) (*funcState, error) {
	fs := &funcState{
		c:           c,
		ctx:         c.ctx,
		regs:        NewRegisterAllocator(),
		name:        info.Name,
		boxed:       info.Boxed,
		returnsVoid: info.ReturnsVoid,
		isEntry:     isEntry,
	}
	if fs.boxed == nil {
		fs.boxed = map[string]bool{}
	}
	var params, locals, captureNames []string
	if !isEntry {
		params = info.Params
		locals = info.Locals
	}
	if len(captures) > 0 {
		fs.captured = map[string]sema.Capture{}
		for _, cap := range captures {
			captureNames = append(captureNames, cap.Name)
			fs.captured[cap.Name] = cap
		}
	}
	if err := fs.regs.Setup(params, captureNames, locals, info.HasThis); err != nil {
		return nil, err
	}
	return fs, nil
}

// prologue boxes every parameter that some nested lambda captures and
// mutates: the parameter's register is rebound from the incoming value to
// a fresh cell holding it.
func (fs *funcState) prologue(params []string) error {
	for _, name := range params {
		if !fs.boxed[name] {
			continue
		}
		reg, _ := fs.regs.Lookup(name)
		tmp, err := fs.regs.AllocTemp()
		if err != nil {
			return err
		}
		fs.ctx.emit(op.Move, uint8(tmp), uint8(reg), 0)
		fs.ctx.emit(op.CellNew, uint8(reg), uint8(tmp), 0)
		if err := fs.regs.Free(tmp); err != nil {
			return err
		}
	}
	return nil
}

// compileFuncDecl lowers a named function, or a method when class is set.
func (c *Compiler) compileFuncDecl(decl *ast.FuncDecl, class string) error {
	info, ok := c.info.Functions[decl]
	if !ok {
		return c.located(errors.New(errors.E2002,
			"no function metadata for %q", decl.Name), decl.Pos())
	}
	qualified := decl.Name
	if class != "" {
		qualified = class + "." + decl.Name
	}
	fi, ok := c.ctx.funcByName[qualified]
	if !ok {
		return c.located(errors.New(errors.E2002,
			"function %q was not declared", qualified), decl.Pos())
	}
	desc := c.ctx.functions[fi]

	fs, err := c.newFuncState(info, nil, false)
	if err != nil {
		return c.located(err, decl.Pos())
	}
	desc.Address = c.ctx.position()
	desc.HasThis = info.HasThis
	c.ctx.setLocation(decl.Pos())
	if err := fs.prologue(info.Params); err != nil {
		return c.located(err, decl.Pos())
	}
	if err := fs.block(decl.Body); err != nil {
		return err
	}
	fs.implicitReturn()
	desc.End = c.ctx.position()
	desc.RegisterCount = fs.regs.Used()
	c.ctx.debug.addFunction(qualified, desc.Address, desc.End, desc.ParamCount)
	fs.recordFrameVariables(desc.Address, desc.End, info.Params, info.Locals)
	return nil
}

func (c *Compiler) compileClassMethods(decl *ast.ClassDecl) error {
	for _, m := range decl.Methods {
		if err := c.compileFuncDecl(m, decl.Name); err != nil {
			return err
		}
	}
	return nil
}

// implicitReturn closes a body that can fall off its end. Void functions
// and value functions whose tail is unreachable both get a return of null;
// the validator guarantees value-returning paths end in explicit returns.
// A trailing RETURN alone is not enough to skip: when a label binds at
// the stream end, some branch in the body falls through to here and
// still needs an instruction to land on.
func (fs *funcState) implicitReturn() {
	if n := len(fs.ctx.instructions); n > 0 && !fs.ctx.tailLabel {
		if fs.ctx.instructions[n-1].Opcode == op.Return {
			return
		}
	}
	fs.ctx.emit(op.LoadNull, 0, 0, 0)
	fs.ctx.emit(op.Return, 0, 0, 0)
}

// recordFrameVariables emits variable debug rows for the frame's named
// registers, live across the whole function bracket.
func (fs *funcState) recordFrameVariables(start, end int, params, locals []string) {
	if this, ok := fs.regs.Lookup("this"); ok {
		fs.ctx.debug.addVariable("this", "", this, start, end)
	}
	for _, name := range params {
		if reg, ok := fs.regs.Lookup(name); ok {
			fs.ctx.debug.addVariable(name, "", reg, start, end)
		}
	}
	for _, name := range locals {
		if reg, ok := fs.regs.Lookup(name); ok {
			fs.ctx.debug.addVariable(name, "", reg, start, end)
		}
	}
}

// lambdaValue lowers a lambda expression at its creation site: allocate
// the function descriptor, queue the body, emit NEW_LAMBDA, then one
// LAMBDA_CAPTURE per capture in declared order. Boxed captures pass the
// enclosing frame's cell register so both frames share one cell; unboxed
// captures copy the current value.
func (fs *funcState) lambdaValue(node *ast.Lambda, dst int) error {
	meta, ok := fs.c.info.Lambdas[node]
	if !ok {
		return fs.errorf(node.Pos(), errors.E2002, "no lambda metadata at this call site")
	}
	desc := &bytecode.FunctionDesc{
		Address:      -1,
		ParamCount:   len(meta.Params),
		CaptureCount: len(meta.Captures),
	}
	fi := fs.ctx.addFunction(desc)
	desc.Name = fmt.Sprintf("__lambda_%d", fi)
	fs.c.lambdaQueue = append(fs.c.lambdaQueue, &pendingLambda{node: node, meta: meta, desc: desc})

	ci, err := fs.ctx.constant(bytecode.FunctionConstant(fi))
	if err != nil {
		return fs.errorf(node.Pos(), errors.E2008, "%v", err)
	}
	fs.ctx.emitBC(op.NewLambda, uint8(dst), ci)
	for slot, cap := range meta.Captures {
		src, ok := fs.regs.Lookup(cap.Name)
		if !ok {
			return fs.errorf(node.Pos(), errors.E2001,
				"captured variable %q is not in scope", cap.Name)
		}
		fs.ctx.emit(op.LambdaCapture, uint8(dst), uint8(src), uint8(slot))
	}
	return nil
}

// compileLambdaBody lowers one queued lambda. The frame lays out params,
// then captures, then locals; the VM copies argument and capture values
// into place before the first instruction runs.
func (c *Compiler) compileLambdaBody(pl *pendingLambda) error {
	info := &sema.FunctionInfo{
		Name:        pl.desc.Name,
		Params:      pl.meta.Params,
		Locals:      pl.meta.Locals,
		ReturnsVoid: pl.meta.ReturnsVoid,
		Boxed:       pl.meta.Boxed,
	}
	fs, err := c.newFuncState(info, pl.meta.Captures, false)
	if err != nil {
		return c.located(err, pl.node.Pos())
	}
	pl.desc.Address = c.ctx.position()
	c.ctx.setLocation(pl.node.Pos())
	if err := fs.prologue(pl.meta.Params); err != nil {
		return c.located(err, pl.node.Pos())
	}
	if err := fs.block(pl.node.Body); err != nil {
		return err
	}
	fs.implicitReturn()
	pl.desc.End = c.ctx.position()
	pl.desc.RegisterCount = fs.regs.Used()
	c.ctx.debug.addFunction(pl.desc.Name, pl.desc.Address, pl.desc.End, pl.desc.ParamCount)
	fs.recordFrameVariables(pl.desc.Address, pl.desc.End, pl.meta.Params, pl.meta.Locals)
	return nil
}

// errorf builds a compile error carrying the unit's file and a position.
func (fs *funcState) errorf(pos ast.Position, code errors.ErrorCode, format string, args ...any) error {
	err := errors.New(code, format, args...)
	err.Filename = fs.c.cfg.SourceFile
	err.Line = pos.Line
	err.Column = pos.Column
	return err
}
