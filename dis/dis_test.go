package dis

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doof-lang/doof/bytecode"
	"github.com/doof-lang/doof/errors"
	"github.com/doof-lang/doof/op"
)

func init() {
	color.NoColor = true
}

func inst(code op.Code, a, b, c uint8) bytecode.InstructionDoc {
	return bytecode.InstructionDoc{
		Opcode:   uint8(code),
		Mnemonic: op.Name(code),
		A:        a,
		B:        b,
		C:        c,
	}
}

func jump(code op.Code, a uint8, offset int) bytecode.InstructionDoc {
	i := bytecode.Instruction{Opcode: code, A: a}
	if err := i.SetOffset(offset); err != nil {
		panic(err)
	}
	return inst(code, i.A, i.B, i.C)
}

func sampleDoc() *bytecode.Document {
	return &bytecode.Document{
		Version: bytecode.Version,
		Constants: []bytecode.Constant{
			bytecode.StringConstant("hi"),
		},
		Functions: []bytecode.FunctionDesc{
			{Name: "__main__", Address: 0, End: 5, RegisterCount: 3},
		},
		Instructions: []bytecode.InstructionDoc{
			inst(op.LoadConst, 1, 0, 0),
			inst(op.LoadInt, 2, 0, 7),
			jump(op.JumpIfFalse, 2, 2),
			jump(op.Jump, 0, -4),
			inst(op.Halt, 0, 0, 0),
		},
	}
}

func TestDisassemble(t *testing.T) {
	out, err := Disassemble(sampleDoc())
	require.NoError(t, err)
	require.Len(t, out, 5)

	assert.Equal(t, "LOAD_CONST", out[0].Mnemonic)
	assert.Equal(t, `"hi"`, out[0].Annotation)
	assert.Equal(t, -1, out[0].Target)

	assert.Equal(t, "LOAD_INT", out[1].Mnemonic)
	assert.Equal(t, "7", out[1].Annotation)

	// The branch resolves against its own index, the jump against the
	// following instruction.
	assert.Equal(t, 4, out[2].Target)
	assert.Equal(t, "-> 4", out[2].Annotation)
	assert.Equal(t, 0, out[3].Target)
	assert.Equal(t, "-> 0", out[3].Annotation)

	assert.Equal(t, "HALT", out[4].Mnemonic)
	assert.Equal(t, -1, out[4].Target)
}

func TestDisassembleGlobalsAndIntrinsics(t *testing.T) {
	doc := &bytecode.Document{
		Functions: []bytecode.FunctionDesc{
			{Name: "__main__", Address: 0, End: 3},
		},
		Instructions: []bytecode.InstructionDoc{
			inst(op.LoadGlobal, 1, 0, 2),
			inst(op.CallIntrinsic, 1, uint8(op.IntrinsicPrintln), 1),
			inst(op.Halt, 0, 0, 0),
		},
	}
	out, err := Disassemble(doc)
	require.NoError(t, err)
	assert.Equal(t, "global_2", out[0].Annotation)
	assert.Equal(t, "println", out[1].Annotation)
}

func TestDisassembleUnknownOpcode(t *testing.T) {
	doc := &bytecode.Document{
		Instructions: []bytecode.InstructionDoc{
			{Opcode: 250, Mnemonic: "???"},
		},
	}
	_, err := Disassemble(doc)
	require.Error(t, err)
	ce, ok := err.(*errors.CompileError)
	require.True(t, ok)
	assert.Equal(t, errors.E2012, ce.Code)
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(sampleDoc(), &buf))
	listing := buf.String()

	assert.Contains(t, listing, "== __main__ (params=0, registers=3) [0, 5)")
	assert.Contains(t, listing, "LOAD_CONST")
	assert.Contains(t, listing, `; "hi"`)
	assert.Contains(t, listing, "; -> 4")
	assert.Contains(t, listing, "HALT")
}
