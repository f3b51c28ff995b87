package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doof-lang/doof/bytecode"
	"github.com/doof-lang/doof/errors"
	"github.com/doof-lang/doof/op"
)

// Branches encode target-source while plain jumps encode target-(source+1).
// The resolved offsets must reflect that split exactly.
func TestJumpResolutionAsymmetry(t *testing.T) {
	ctx := newContext("test.doof")
	top := ctx.createLabel()
	end := ctx.createLabel()

	ctx.setLabel(top)                      // instruction 0
	ctx.emitJump(op.JumpIfFalse, 3, end)   // 0
	ctx.emit(op.Nop, 0, 0, 0)              // 1
	ctx.emitJump(op.Jump, 0, top)          // 2
	ctx.setLabel(end)                      // instruction 3
	ctx.emit(op.Halt, 0, 0, 0)             // 3

	require.NoError(t, ctx.resolvePendingJumps())

	branch := ctx.instructions[0]
	assert.Equal(t, 3, branch.Offset(), "branch offset is target - source")
	assert.Equal(t, 3, branch.Target(0))

	jump := ctx.instructions[2]
	assert.Equal(t, -3, jump.Offset(), "jump offset is target - (source + 1)")
	assert.Equal(t, 0, jump.Target(2))
}

func TestIterNextUsesJumpBase(t *testing.T) {
	ctx := newContext("test.doof")
	end := ctx.createLabel()
	ctx.emitJump(op.IterNext, 2, end) // 0
	ctx.emit(op.Nop, 0, 0, 0)         // 1
	ctx.setLabel(end)                 // 2
	ctx.emit(op.Halt, 0, 0, 0)

	require.NoError(t, ctx.resolvePendingJumps())
	assert.Equal(t, 1, ctx.instructions[0].Offset())
	assert.Equal(t, 2, ctx.instructions[0].Target(0))
}

func TestUnresolvedLabel(t *testing.T) {
	ctx := newContext("test.doof")
	ctx.emitJump(op.Jump, 0, "L99")
	err := ctx.resolvePendingJumps()
	require.Error(t, err)
	ce, ok := err.(*errors.CompileError)
	require.True(t, ok)
	assert.Equal(t, errors.E2005, ce.Code)
}

func TestJumpOffsetOverflow(t *testing.T) {
	ctx := newContext("test.doof")
	far := ctx.createLabel()
	ctx.emitJump(op.Jump, 0, far)
	for i := 0; i < 40000; i++ {
		ctx.emit(op.Nop, 0, 0, 0)
	}
	ctx.setLabel(far)
	err := ctx.resolvePendingJumps()
	require.Error(t, err)
	ce, ok := err.(*errors.CompileError)
	require.True(t, ok)
	assert.Equal(t, errors.E2005, ce.Code)
}

func TestConstantPoolDeduplication(t *testing.T) {
	ctx := newContext("test.doof")
	a, err := ctx.constant(bytecode.StringConstant("hello"))
	require.NoError(t, err)
	b, err := ctx.constant(bytecode.StringConstant("hello"))
	require.NoError(t, err)
	c, err := ctx.constant(bytecode.StringConstant("world"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, ctx.pool.values, 2)
}

func TestConstantPoolKeysByTypeAndValue(t *testing.T) {
	ctx := newContext("test.doof")
	i, err := ctx.constant(bytecode.IntConstant(1))
	require.NoError(t, err)
	f, err := ctx.constant(bytecode.FloatConstant(1))
	require.NoError(t, err)
	fn, err := ctx.constant(bytecode.FunctionConstant(1))
	require.NoError(t, err)
	assert.NotEqual(t, i, f)
	assert.NotEqual(t, i, fn)
	assert.Len(t, ctx.pool.values, 3)
}

func TestGlobalSlotsAreStable(t *testing.T) {
	ctx := newContext("test.doof")
	assert.Equal(t, 0, ctx.addGlobal("a"))
	assert.Equal(t, 1, ctx.addGlobal("b"))
	assert.Equal(t, 0, ctx.addGlobal("a"))
	assert.Equal(t, []string{"a", "b"}, ctx.globalNames)
}

func TestLoopContextStack(t *testing.T) {
	ctx := newContext("test.doof")
	assert.Nil(t, ctx.currentLoop())
	ctx.pushLoop(loopContext{breakLabel: "L0", kind: loopWhile})
	ctx.pushLoop(loopContext{breakLabel: "L1", kind: loopSwitch})
	assert.Equal(t, "L1", ctx.currentLoop().breakLabel)
	ctx.popLoop()
	assert.Equal(t, "L0", ctx.currentLoop().breakLabel)
	ctx.popLoop()
	assert.Nil(t, ctx.currentLoop())
}
