// Package dis supports analysis of doof bytecode by disassembling it.
// This works with the opcodes defined in the op package and the document
// format defined in the bytecode package.
package dis

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/doof-lang/doof/bytecode"
	"github.com/doof-lang/doof/errors"
	"github.com/doof-lang/doof/op"
)

// Instruction is one decoded instruction with its resolved annotation.
type Instruction struct {
	Index      int
	Opcode     op.Code
	Mnemonic   string
	A, B, C    uint8
	Annotation string

	// Target is the resolved jump target index, or -1 for instructions
	// that do not jump.
	Target int
}

// Disassemble decodes every instruction of a document. An opcode byte
// outside the instruction table is an error.
func Disassemble(doc *bytecode.Document) ([]Instruction, error) {
	out := make([]Instruction, 0, len(doc.Instructions))
	for idx, id := range doc.Instructions {
		inst := id.Instruction()
		info := op.GetInfo(inst.Opcode)
		if info.Name == "" {
			return nil, errors.New(errors.E2012,
				"instruction %d: unknown opcode byte %d", idx, id.Opcode)
		}
		d := Instruction{
			Index:    idx,
			Opcode:   inst.Opcode,
			Mnemonic: info.Name,
			A:        inst.A,
			B:        inst.B,
			C:        inst.C,
			Target:   -1,
		}
		if info.IsJump {
			d.Target = inst.Target(idx)
			d.Annotation = fmt.Sprintf("-> %d", d.Target)
		} else {
			d.Annotation = annotate(doc, inst)
		}
		out = append(out, d)
	}
	return out, nil
}

func annotate(doc *bytecode.Document, inst bytecode.Instruction) string {
	switch inst.Opcode {
	case op.LoadConst, op.NewObject, op.NewLambda,
		op.Call, op.CallMethod, op.CallStatic, op.CallNative, op.CallDynamic:
		ci := int(inst.BC())
		if ci < len(doc.Constants) {
			return doc.Constants[ci].String()
		}
	case op.LoadInt:
		return fmt.Sprintf("%d", inst.Offset())
	case op.LoadGlobal, op.StoreGlobal:
		return fmt.Sprintf("global_%d", inst.BC())
	case op.CallIntrinsic:
		return op.Intrinsic(inst.B).String()
	}
	return ""
}

var (
	headerColor   = color.New(color.FgMagenta, color.Bold)
	mnemonicColor = color.New(color.Bold)
	annotColor    = color.New(color.FgCyan)
)

// Print writes a listing of the document grouped by function bracket.
// Colors follow the fatih/color global switch, so redirected output comes
// out plain.
func Print(doc *bytecode.Document, w io.Writer) error {
	instructions, err := Disassemble(doc)
	if err != nil {
		return err
	}
	for _, fn := range doc.Functions {
		headerColor.Fprintf(w, "== %s", fn.Name)
		fmt.Fprintf(w, " (params=%d, registers=%d) [%d, %d)\n",
			fn.ParamCount, fn.RegisterCount, fn.Address, fn.End)
		for _, d := range instructions {
			if d.Index < fn.Address || d.Index >= fn.End {
				continue
			}
			printInstruction(w, d)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func printInstruction(w io.Writer, d Instruction) {
	fmt.Fprintf(w, "%5d  ", d.Index)
	mnemonicColor.Fprintf(w, "%-16s", d.Mnemonic)
	fmt.Fprintf(w, " %3d %3d %3d", d.A, d.B, d.C)
	if d.Annotation != "" {
		fmt.Fprint(w, "  ; ")
		annotColor.Fprint(w, d.Annotation)
	}
	fmt.Fprintln(w)
}
