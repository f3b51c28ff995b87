package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doof-lang/doof/op"
)

func validDoc() *Document {
	jump := Instruction{Opcode: op.Jump}
	if err := jump.SetOffset(-2); err != nil {
		panic(err)
	}
	return &Document{
		Version:   Version,
		Constants: []Constant{StringConstant("x"), FunctionConstant(0)},
		Functions: []FunctionDesc{
			{Index: 0, Name: "__main__", Address: 0, End: 3, RegisterCount: 2},
		},
		GlobalCount: 1,
		Instructions: []InstructionDoc{
			{Opcode: uint8(op.LoadConst), Mnemonic: "LOAD_CONST", A: 1},
			{Opcode: uint8(op.Jump), Mnemonic: "JUMP", B: jump.B, C: jump.C},
			{Opcode: uint8(op.Halt), Mnemonic: "HALT"},
		},
	}
}

func TestVerifyValidDocument(t *testing.T) {
	require.NoError(t, Verify(validDoc()))
}

func TestVerifyUnknownOpcode(t *testing.T) {
	doc := validDoc()
	doc.Instructions[0].Opcode = 250
	err := Verify(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown opcode byte 250")
}

func TestVerifyMnemonicMismatch(t *testing.T) {
	doc := validDoc()
	doc.Instructions[2].Mnemonic = "NOP"
	err := Verify(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `mnemonic "NOP" does not match opcode HALT`)
}

func TestVerifyJumpOutOfStream(t *testing.T) {
	doc := validDoc()
	far := Instruction{Opcode: op.Jump}
	require.NoError(t, far.SetOffset(100))
	doc.Instructions[1].B = far.B
	doc.Instructions[1].C = far.C
	err := Verify(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside stream")
}

func TestVerifyConstantOutOfRange(t *testing.T) {
	doc := validDoc()
	doc.Instructions[0].C = 9
	err := Verify(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references constant 9 of 2")
}

func TestVerifyGlobalOutOfRange(t *testing.T) {
	doc := validDoc()
	doc.Instructions[0] = InstructionDoc{
		Opcode: uint8(op.LoadGlobal), Mnemonic: "LOAD_GLOBAL", A: 1, C: 4,
	}
	err := Verify(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references global 4 of 1")
}

func TestVerifyFunctionConstantOutOfRange(t *testing.T) {
	doc := validDoc()
	doc.Constants[1] = FunctionConstant(7)
	err := Verify(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references function 7 of 1")
}

func TestVerifyBadFunctionBracket(t *testing.T) {
	doc := validDoc()
	doc.Functions[0].End = 99
	err := Verify(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid bracket")
}

func TestVerifyBadEntryPoint(t *testing.T) {
	doc := validDoc()
	doc.EntryPoint = 2
	err := Verify(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry point is 2")
}

func TestVerifyAccumulatesFindings(t *testing.T) {
	doc := validDoc()
	doc.Instructions[0].C = 9
	doc.EntryPoint = 2
	err := Verify(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references constant")
	assert.Contains(t, err.Error(), "entry point")
}
