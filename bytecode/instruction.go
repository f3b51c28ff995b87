// Package bytecode defines the wire representation of compiled doof code:
// fixed-format instructions, the deduplicated constant pool, function and
// class descriptors, debug tables, and the versioned JSON artifact that the
// doof virtual machine consumes.
package bytecode

import (
	"fmt"
	"math"

	"github.com/doof-lang/doof/op"
)

// Instruction is one fixed three-operand instruction. The b and c bytes
// combine into a single 16-bit field for constant indices, immediates, and
// signed jump offsets (b holds the high byte).
type Instruction struct {
	Opcode op.Code
	A      uint8
	B      uint8
	C      uint8
}

// BC returns the combined 16-bit b/c field.
func (i Instruction) BC() uint16 {
	return uint16(i.B)<<8 | uint16(i.C)
}

// SetBC stores a 16-bit value into the b/c byte pair.
func (i *Instruction) SetBC(v uint16) {
	i.B = uint8(v >> 8)
	i.C = uint8(v)
}

// Offset returns the b/c field decoded as a signed 16-bit jump offset.
func (i Instruction) Offset() int {
	return int(int16(i.BC()))
}

// SetOffset encodes a signed jump offset two's-complement into b/c. The
// offset must fit a signed 16-bit range.
func (i *Instruction) SetOffset(offset int) error {
	if offset < math.MinInt16 || offset > math.MaxInt16 {
		return fmt.Errorf("jump offset %d exceeds signed 16-bit range", offset)
	}
	i.SetBC(uint16(int16(offset)))
	return nil
}

// Target returns the instruction index a jump-bearing instruction at index
// src transfers control to, applying the interpreter's asymmetric offset
// base: branches add the offset to the instruction's own index, all other
// jumps add it to the next instruction's index.
func (i Instruction) Target(src int) int {
	if op.IsBranch(i.Opcode) {
		return src + i.Offset()
	}
	return src + 1 + i.Offset()
}

// String renders the instruction with its mnemonic.
func (i Instruction) String() string {
	return fmt.Sprintf("%s a=%d b=%d c=%d", op.Name(i.Opcode), i.A, i.B, i.C)
}
