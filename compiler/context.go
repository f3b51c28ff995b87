package compiler

import (
	"fmt"

	"github.com/doof-lang/doof/ast"
	"github.com/doof-lang/doof/bytecode"
	"github.com/doof-lang/doof/errors"
	"github.com/doof-lang/doof/op"
)

// maxConstants bounds the constant pool: pool indices travel in the
// 16-bit b/c field.
const maxConstants = 1 << 16

// loopKind distinguishes entries on the loop-context stack. Switch pushes
// an entry so break resolves to its end label, but it is not a loop and
// continue is rejected against it.
type loopKind int

const (
	loopWhile loopKind = iota
	loopFor
	loopForIn
	loopSwitch
)

// loopContext is one entry of the loop-context stack. The innermost entry
// governs break and continue.
type loopContext struct {
	continueLabel string
	breakLabel    string
	kind          loopKind
}

// pendingJump records an emitted jump whose target label was not yet
// bound. All pending jumps are resolved in one pass once every label in
// the unit is known.
type pendingJump struct {
	instruction int
	label       string
}

// constantPool is the deduplicated constant table. Structural equality of
// (type, value) maps to a stable index.
type constantPool struct {
	values []bytecode.Constant
	index  map[string]int
}

func newConstantPool() *constantPool {
	return &constantPool{index: map[string]int{}}
}

// add returns the existing index on structural match, otherwise appends.
func (p *constantPool) add(c bytecode.Constant) (int, error) {
	key := c.Key()
	if idx, ok := p.index[key]; ok {
		return idx, nil
	}
	if len(p.values) >= maxConstants {
		return 0, errors.New(errors.E2008, "constant pool exceeded %d entries", maxConstants)
	}
	idx := len(p.values)
	p.values = append(p.values, c)
	p.index[key] = idx
	return idx, nil
}

// Context owns all mutable state of one compilation unit: the append-only
// instruction buffer, constant pool, label table, deferred-jump list,
// function/class tables, loop-context stack, and the debug accumulator.
// It is created per unit, threaded explicitly through every lowering
// function, and discarded after serialization.
type Context struct {
	instructions []bytecode.Instruction
	pool         *constantPool
	labels       map[string]int
	pending      []pendingJump
	labelSeq     int
	loops        []loopContext
	debug        *debugBuilder

	functions []*bytecode.FunctionDesc
	classes   []*bytecode.ClassDesc

	funcByName  map[string]int // function name -> function table index
	classByName map[string]int // class name -> class table index

	globals     map[string]int
	globalNames []string

	// Current source location, recorded per emitted instruction while set.
	curLoc ast.Position

	// tailLabel is set when a label binds at the current stream end and
	// clears on the next emit. While set, some branch targets the
	// not-yet-emitted next instruction.
	tailLabel bool
}

func newContext(sourceFile string) *Context {
	return &Context{
		pool:        newConstantPool(),
		labels:      map[string]int{},
		funcByName:  map[string]int{},
		classByName: map[string]int{},
		globals:     map[string]int{},
		debug:       newDebugBuilder(sourceFile),
	}
}

// position returns the index of the next instruction to be emitted.
func (ctx *Context) position() int {
	return len(ctx.instructions)
}

// setLocation activates a source location; subsequent emits record source
// map rows until the location changes.
func (ctx *Context) setLocation(pos ast.Position) {
	ctx.curLoc = pos
}

// emit appends one instruction and, if a source location is active,
// records a source-map row keyed to the new instruction index.
func (ctx *Context) emit(opcode op.Code, a, b, c uint8) int {
	idx := len(ctx.instructions)
	ctx.instructions = append(ctx.instructions, bytecode.Instruction{Opcode: opcode, A: a, B: b, C: c})
	ctx.tailLabel = false
	if ctx.curLoc.IsValid() {
		ctx.debug.addSourceMapRow(idx, ctx.curLoc)
	}
	return idx
}

// emitBC appends an instruction whose b/c pair holds a 16-bit index or
// immediate.
func (ctx *Context) emitBC(opcode op.Code, a uint8, bc uint16) int {
	return ctx.emit(opcode, a, uint8(bc>>8), uint8(bc))
}

// emitJump appends a placeholder-offset jump and records a pending jump
// against the given label.
func (ctx *Context) emitJump(opcode op.Code, reg uint8, label string) int {
	idx := ctx.emit(opcode, reg, 0, 0)
	ctx.pending = append(ctx.pending, pendingJump{instruction: idx, label: label})
	return idx
}

// createLabel generates the next sequential symbolic label name.
func (ctx *Context) createLabel() string {
	name := fmt.Sprintf("L%d", ctx.labelSeq)
	ctx.labelSeq++
	return name
}

// setLabel binds a label to the current instruction index.
func (ctx *Context) setLabel(name string) {
	ctx.labels[name] = len(ctx.instructions)
	ctx.tailLabel = true
}

// resolvePendingJumps runs once, after all instructions for the unit are
// emitted. Branch opcodes resolve their offset against the instruction's
// own index; every other jump-bearing opcode resolves against the next
// instruction. The downstream interpreter depends on this exact split.
func (ctx *Context) resolvePendingJumps() error {
	for _, pj := range ctx.pending {
		target, ok := ctx.labels[pj.label]
		if !ok {
			return errors.New(errors.E2005, "unresolved label %q", pj.label)
		}
		inst := &ctx.instructions[pj.instruction]
		var offset int
		if op.IsBranch(inst.Opcode) {
			offset = target - pj.instruction
		} else {
			offset = target - (pj.instruction + 1)
		}
		if err := inst.SetOffset(offset); err != nil {
			return errors.New(errors.E2005, "%s at instruction %d: %v",
				op.Name(inst.Opcode), pj.instruction, err)
		}
	}
	ctx.pending = ctx.pending[:0]
	return nil
}

// constant interns a value in the pool and returns its index.
func (ctx *Context) constant(c bytecode.Constant) (uint16, error) {
	idx, err := ctx.pool.add(c)
	if err != nil {
		return 0, err
	}
	return uint16(idx), nil
}

// pushLoop pushes a loop or switch context.
func (ctx *Context) pushLoop(lc loopContext) {
	ctx.loops = append(ctx.loops, lc)
}

// popLoop removes the innermost loop context.
func (ctx *Context) popLoop() {
	ctx.loops = ctx.loops[:len(ctx.loops)-1]
}

// currentLoop returns the innermost loop context, or nil.
func (ctx *Context) currentLoop() *loopContext {
	if len(ctx.loops) == 0 {
		return nil
	}
	return &ctx.loops[len(ctx.loops)-1]
}

// addFunction appends a function descriptor and returns its index.
func (ctx *Context) addFunction(desc *bytecode.FunctionDesc) int {
	desc.Index = len(ctx.functions)
	ctx.functions = append(ctx.functions, desc)
	return desc.Index
}

// addGlobal registers a global variable slot.
func (ctx *Context) addGlobal(name string) int {
	if idx, ok := ctx.globals[name]; ok {
		return idx
	}
	idx := len(ctx.globalNames)
	ctx.globals[name] = idx
	ctx.globalNames = append(ctx.globalNames, name)
	return idx
}
