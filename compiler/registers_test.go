package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameLayout(t *testing.T) {
	r := NewRegisterAllocator()
	err := r.Setup([]string{"a", "b"}, nil, []string{"x", "y"}, false)
	require.NoError(t, err)

	a, err := r.Variable("a")
	require.NoError(t, err)
	assert.Equal(t, 1, a)
	b, err := r.Variable("b")
	require.NoError(t, err)
	assert.Equal(t, 2, b)
	x, err := r.Variable("x")
	require.NoError(t, err)
	assert.Equal(t, 3, x)
	y, err := r.Variable("y")
	require.NoError(t, err)
	assert.Equal(t, 4, y)
	assert.Equal(t, 5, r.FirstTemp())
}

func TestFrameLayoutWithReceiver(t *testing.T) {
	r := NewRegisterAllocator()
	err := r.Setup([]string{"v"}, nil, nil, true)
	require.NoError(t, err)

	this, err := r.Variable("this")
	require.NoError(t, err)
	assert.Equal(t, 1, this)
	v, err := r.Variable("v")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestCapturesBetweenParamsAndLocals(t *testing.T) {
	r := NewRegisterAllocator()
	err := r.Setup([]string{"p"}, []string{"c1", "c2"}, []string{"l"}, false)
	require.NoError(t, err)

	for name, want := range map[string]int{"p": 1, "c1": 2, "c2": 3, "l": 4} {
		reg, err := r.Variable(name)
		require.NoError(t, err)
		assert.Equal(t, want, reg, name)
	}
}

func TestUndefinedVariableIsFatal(t *testing.T) {
	r := NewRegisterAllocator()
	require.NoError(t, r.Setup(nil, nil, nil, false))
	_, err := r.Variable("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestTempAllocationReusesFreedSlots(t *testing.T) {
	r := NewRegisterAllocator()
	require.NoError(t, r.Setup([]string{"a"}, nil, nil, false))

	t1, err := r.AllocTemp()
	require.NoError(t, err)
	t2, err := r.AllocTemp()
	require.NoError(t, err)
	assert.Equal(t, r.FirstTemp(), t1)
	assert.Equal(t, t1+1, t2)

	require.NoError(t, r.Free(t1))
	t3, err := r.AllocTemp()
	require.NoError(t, err)
	assert.Equal(t, t1, t3)
}

func TestFreeBelowBoundaryIsFatal(t *testing.T) {
	r := NewRegisterAllocator()
	require.NoError(t, r.Setup([]string{"a"}, nil, nil, false))

	reg, err := r.Variable("a")
	require.NoError(t, err)
	assert.Error(t, r.Free(reg))
	assert.Error(t, r.Free(0))
}

func TestDoubleFreeIsFatal(t *testing.T) {
	r := NewRegisterAllocator()
	require.NoError(t, r.Setup(nil, nil, nil, false))

	tmp, err := r.AllocTemp()
	require.NoError(t, err)
	require.NoError(t, r.Free(tmp))
	assert.Error(t, r.Free(tmp))
}

func TestBlockAllocationIsContiguous(t *testing.T) {
	r := NewRegisterAllocator()
	require.NoError(t, r.Setup(nil, nil, nil, false))

	t1, err := r.AllocTemp()
	require.NoError(t, err)
	t2, err := r.AllocTemp()
	require.NoError(t, err)
	require.NoError(t, r.Free(t1))

	// The hole at t1 is too small for a block of three; it must start
	// after t2.
	base, err := r.AllocBlock(3)
	require.NoError(t, err)
	assert.Equal(t, t2+1, base)
	require.NoError(t, r.FreeBlock(base, 3))

	base2, err := r.AllocBlock(1)
	require.NoError(t, err)
	assert.Equal(t, t1, base2)
}

func TestUsedTracksHighWater(t *testing.T) {
	r := NewRegisterAllocator()
	require.NoError(t, r.Setup([]string{"a", "b"}, nil, nil, false))
	assert.Equal(t, 3, r.Used())

	tmp, err := r.AllocTemp()
	require.NoError(t, err)
	assert.Equal(t, 4, r.Used())
	require.NoError(t, r.Free(tmp))
	assert.Equal(t, 4, r.Used())
}

func TestRegisterExhaustion(t *testing.T) {
	r := NewRegisterAllocator()
	require.NoError(t, r.Setup(nil, nil, nil, false))
	for i := r.FirstTemp(); i < maxRegisters; i++ {
		_, err := r.AllocTemp()
		require.NoError(t, err)
	}
	_, err := r.AllocTemp()
	assert.Error(t, err)
}
