package bytecode

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/doof-lang/doof/op"
)

// Verify lints a finished document: every jump must land inside the
// instruction stream, every constant reference must be in range, and every
// function bracket must be well formed. Unlike compilation, verification
// is not fail-fast: all findings are accumulated and returned together.
func Verify(doc *Document) error {
	var result *multierror.Error
	count := len(doc.Instructions)

	for idx, id := range doc.Instructions {
		inst := id.Instruction()
		info := op.GetInfo(inst.Opcode)
		if info.Name == "" {
			result = multierror.Append(result, fmt.Errorf(
				"instruction %d: unknown opcode byte %d", idx, id.Opcode))
			continue
		}
		if id.Mnemonic != info.Name {
			result = multierror.Append(result, fmt.Errorf(
				"instruction %d: mnemonic %q does not match opcode %s", idx, id.Mnemonic, info.Name))
		}
		if op.IsJump(inst.Opcode) {
			target := inst.Target(idx)
			if target < 0 || target >= count {
				result = multierror.Append(result, fmt.Errorf(
					"instruction %d: %s jumps to %d, outside stream of %d instructions",
					idx, info.Name, target, count))
			}
		}
		switch inst.Opcode {
		case op.LoadConst, op.NewObject, op.Call, op.CallMethod, op.CallStatic,
			op.CallNative, op.CallDynamic, op.NewLambda:
			if int(inst.BC()) >= len(doc.Constants) {
				result = multierror.Append(result, fmt.Errorf(
					"instruction %d: %s references constant %d of %d",
					idx, info.Name, inst.BC(), len(doc.Constants)))
			}
		case op.LoadGlobal, op.StoreGlobal:
			if int(inst.BC()) >= doc.GlobalCount {
				result = multierror.Append(result, fmt.Errorf(
					"instruction %d: %s references global %d of %d",
					idx, info.Name, inst.BC(), doc.GlobalCount))
			}
		}
	}

	for _, c := range doc.Constants {
		switch c.Kind {
		case ConstFunction:
			if c.Index < 0 || c.Index >= len(doc.Functions) {
				result = multierror.Append(result, fmt.Errorf(
					"constant references function %d of %d", c.Index, len(doc.Functions)))
			}
		case ConstClass:
			if c.Index < 0 || c.Index >= len(doc.Classes) {
				result = multierror.Append(result, fmt.Errorf(
					"constant references class %d of %d", c.Index, len(doc.Classes)))
			}
		}
	}

	for _, fn := range doc.Functions {
		if fn.Address < 0 || fn.End > count || fn.Address > fn.End {
			result = multierror.Append(result, fmt.Errorf(
				"function %q has invalid bracket [%d, %d)", fn.Name, fn.Address, fn.End))
		}
	}

	if doc.EntryPoint != 0 {
		result = multierror.Append(result, fmt.Errorf(
			"entry point is %d, want 0", doc.EntryPoint))
	}

	return result.ErrorOrNil()
}
