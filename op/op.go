// Package op defines the opcodes emitted by the doof compiler and executed
// by the doof virtual machine. The mnemonic-to-byte mapping here is a wire
// format contract: any change to an assigned byte is a breaking change for
// every previously generated bytecode artifact.
package op

import "fmt"

// Code is a single-byte opcode identifying an operation.
type Code uint8

const (
	Invalid Code = 0

	// Execution
	Nop  Code = 1
	Halt Code = 2

	// Jumps. Jump and IterNext add their offset to the instruction pointer
	// after it has advanced past the instruction; the conditional branches
	// add it to the instruction's own index. See IsBranch.
	Jump        Code = 10
	JumpIfTrue  Code = 11
	JumpIfFalse Code = 12
	JumpIfNull  Code = 13

	// Load / move
	LoadConst Code = 20
	LoadInt   Code = 21
	LoadNull  Code = 22
	LoadTrue  Code = 23
	LoadFalse Code = 24
	Move      Code = 25

	// Globals
	LoadGlobal  Code = 30
	StoreGlobal Code = 31

	// Integer arithmetic
	AddInt Code = 40
	SubInt Code = 41
	MulInt Code = 42
	DivInt Code = 43
	ModInt Code = 44
	NegInt Code = 45

	// Float arithmetic
	AddFloat Code = 50
	SubFloat Code = 51
	MulFloat Code = 52
	DivFloat Code = 53
	NegFloat Code = 54

	// Integer comparison
	EqInt Code = 60
	NeInt Code = 61
	LtInt Code = 62
	LeInt Code = 63
	GtInt Code = 64
	GeInt Code = 65

	// Float comparison
	EqFloat Code = 70
	NeFloat Code = 71
	LtFloat Code = 72
	LeFloat Code = 73
	GtFloat Code = 74
	GeFloat Code = 75

	// String comparison
	EqString Code = 80
	NeString Code = 81
	LtString Code = 82
	LeString Code = 83

	// Char comparison
	EqChar Code = 86
	NeChar Code = 87
	LtChar Code = 88
	LeChar Code = 89

	// Bool / object comparison
	EqBool   Code = 92
	NeBool   Code = 93
	EqObject Code = 94
	NeObject Code = 95

	// Logic
	Not Code = 98

	// Conversions
	IntToFloat    Code = 100
	FloatToInt    Code = 101
	IntToString   Code = 102
	FloatToString Code = 103
	BoolToString  Code = 104
	CharToString  Code = 105
	ToString      Code = 106

	// Strings
	ConcatString Code = 110
	StringLen    Code = 111
	StringGet    Code = 112

	// Arrays
	NewArray  Code = 120
	ArrayGet  Code = 121
	ArraySet  Code = 122
	ArrayPush Code = 123
	ArrayLen  Code = 124

	// Maps (generic key)
	NewMap    Code = 130
	MapGet    Code = 131
	MapSet    Code = 132
	MapHas    Code = 133
	MapDelete Code = 134
	MapSize   Code = 135
	MapKeys   Code = 136
	MapValues Code = 137

	// Maps (integer key)
	MapGetInt    Code = 140
	MapSetInt    Code = 141
	MapHasInt    Code = 142
	MapDeleteInt Code = 143

	// Sets (generic element)
	NewSet    Code = 150
	SetAdd    Code = 151
	SetHas    Code = 152
	SetDelete Code = 153
	SetSize   Code = 154

	// Sets (integer element)
	SetAddInt    Code = 156
	SetHasInt    Code = 157
	SetDeleteInt Code = 158

	// Objects
	NewObject Code = 160
	GetField  Code = 161
	SetField  Code = 162

	// Calls
	Call          Code = 170
	CallMethod    Code = 171
	CallStatic    Code = 172
	CallNative    Code = 173
	CallIntrinsic Code = 174
	CallDynamic   Code = 175
	Return        Code = 176

	// Closures
	NewLambda     Code = 180
	LambdaCapture Code = 181
	CallLambda    Code = 182
	CellNew       Code = 183
	CellGet       Code = 184
	CellSet       Code = 185

	// Iteration. IterNext jumps by its b/c offset when the iterator is
	// exhausted.
	IterNew   Code = 190
	IterNext  Code = 191
	IterValue Code = 192
	IterKey   Code = 193
)

// Iterator kinds carried in the c operand of IterNew.
const (
	IterKindArray  = 0
	IterKindMap    = 1
	IterKindSet    = 2
	IterKindString = 3
)

// Intrinsic identifies a built-in routine invoked via CallIntrinsic.
type Intrinsic uint8

const (
	IntrinsicPrint   Intrinsic = 1
	IntrinsicPrintln Intrinsic = 2
	IntrinsicLen     Intrinsic = 3
	IntrinsicStr     Intrinsic = 4
	IntrinsicTypeOf  Intrinsic = 5
	IntrinsicPanic   Intrinsic = 6
)

// String returns the mnemonic of the intrinsic.
func (i Intrinsic) String() string {
	switch i {
	case IntrinsicPrint:
		return "print"
	case IntrinsicPrintln:
		return "println"
	case IntrinsicLen:
		return "len"
	case IntrinsicStr:
		return "str"
	case IntrinsicTypeOf:
		return "typeof"
	case IntrinsicPanic:
		return "panic"
	default:
		return ""
	}
}

// Info describes an opcode.
type Info struct {
	Code     Code
	Name     string
	IsJump   bool // instruction carries a jump offset in b/c
	IsBranch bool // offset is relative to the instruction's own index
}

var infos = make([]Info, 256)

var byName = map[string]Code{}

func init() {
	type opInfo struct {
		op     Code
		name   string
		jump   bool
		branch bool
	}
	ops := []opInfo{
		{Nop, "NOP", false, false},
		{Halt, "HALT", false, false},
		{Jump, "JUMP", true, false},
		{JumpIfTrue, "JUMP_IF_TRUE", true, true},
		{JumpIfFalse, "JUMP_IF_FALSE", true, true},
		{JumpIfNull, "JUMP_IF_NULL", true, true},
		{LoadConst, "LOAD_CONST", false, false},
		{LoadInt, "LOAD_INT", false, false},
		{LoadNull, "LOAD_NULL", false, false},
		{LoadTrue, "LOAD_TRUE", false, false},
		{LoadFalse, "LOAD_FALSE", false, false},
		{Move, "MOVE", false, false},
		{LoadGlobal, "LOAD_GLOBAL", false, false},
		{StoreGlobal, "STORE_GLOBAL", false, false},
		{AddInt, "ADD_INT", false, false},
		{SubInt, "SUB_INT", false, false},
		{MulInt, "MUL_INT", false, false},
		{DivInt, "DIV_INT", false, false},
		{ModInt, "MOD_INT", false, false},
		{NegInt, "NEG_INT", false, false},
		{AddFloat, "ADD_FLOAT", false, false},
		{SubFloat, "SUB_FLOAT", false, false},
		{MulFloat, "MUL_FLOAT", false, false},
		{DivFloat, "DIV_FLOAT", false, false},
		{NegFloat, "NEG_FLOAT", false, false},
		{EqInt, "EQ_INT", false, false},
		{NeInt, "NE_INT", false, false},
		{LtInt, "LT_INT", false, false},
		{LeInt, "LE_INT", false, false},
		{GtInt, "GT_INT", false, false},
		{GeInt, "GE_INT", false, false},
		{EqFloat, "EQ_FLOAT", false, false},
		{NeFloat, "NE_FLOAT", false, false},
		{LtFloat, "LT_FLOAT", false, false},
		{LeFloat, "LE_FLOAT", false, false},
		{GtFloat, "GT_FLOAT", false, false},
		{GeFloat, "GE_FLOAT", false, false},
		{EqString, "EQ_STRING", false, false},
		{NeString, "NE_STRING", false, false},
		{LtString, "LT_STRING", false, false},
		{LeString, "LE_STRING", false, false},
		{EqChar, "EQ_CHAR", false, false},
		{NeChar, "NE_CHAR", false, false},
		{LtChar, "LT_CHAR", false, false},
		{LeChar, "LE_CHAR", false, false},
		{EqBool, "EQ_BOOL", false, false},
		{NeBool, "NE_BOOL", false, false},
		{EqObject, "EQ_OBJECT", false, false},
		{NeObject, "NE_OBJECT", false, false},
		{Not, "NOT", false, false},
		{IntToFloat, "INT_TO_FLOAT", false, false},
		{FloatToInt, "FLOAT_TO_INT", false, false},
		{IntToString, "INT_TO_STRING", false, false},
		{FloatToString, "FLOAT_TO_STRING", false, false},
		{BoolToString, "BOOL_TO_STRING", false, false},
		{CharToString, "CHAR_TO_STRING", false, false},
		{ToString, "TO_STRING", false, false},
		{ConcatString, "CONCAT_STRING", false, false},
		{StringLen, "STRING_LEN", false, false},
		{StringGet, "STRING_GET", false, false},
		{NewArray, "NEW_ARRAY", false, false},
		{ArrayGet, "ARRAY_GET", false, false},
		{ArraySet, "ARRAY_SET", false, false},
		{ArrayPush, "ARRAY_PUSH", false, false},
		{ArrayLen, "ARRAY_LEN", false, false},
		{NewMap, "NEW_MAP", false, false},
		{MapGet, "MAP_GET", false, false},
		{MapSet, "MAP_SET", false, false},
		{MapHas, "MAP_HAS", false, false},
		{MapDelete, "MAP_DELETE", false, false},
		{MapSize, "MAP_SIZE", false, false},
		{MapKeys, "MAP_KEYS", false, false},
		{MapValues, "MAP_VALUES", false, false},
		{MapGetInt, "MAP_GET_INT", false, false},
		{MapSetInt, "MAP_SET_INT", false, false},
		{MapHasInt, "MAP_HAS_INT", false, false},
		{MapDeleteInt, "MAP_DELETE_INT", false, false},
		{NewSet, "NEW_SET", false, false},
		{SetAdd, "SET_ADD", false, false},
		{SetHas, "SET_HAS", false, false},
		{SetDelete, "SET_DELETE", false, false},
		{SetSize, "SET_SIZE", false, false},
		{SetAddInt, "SET_ADD_INT", false, false},
		{SetHasInt, "SET_HAS_INT", false, false},
		{SetDeleteInt, "SET_DELETE_INT", false, false},
		{NewObject, "NEW_OBJECT", false, false},
		{GetField, "GET_FIELD", false, false},
		{SetField, "SET_FIELD", false, false},
		{Call, "CALL", false, false},
		{CallMethod, "CALL_METHOD", false, false},
		{CallStatic, "CALL_STATIC", false, false},
		{CallNative, "CALL_NATIVE", false, false},
		{CallIntrinsic, "CALL_INTRINSIC", false, false},
		{CallDynamic, "CALL_DYNAMIC", false, false},
		{Return, "RETURN", false, false},
		{NewLambda, "NEW_LAMBDA", false, false},
		{LambdaCapture, "LAMBDA_CAPTURE", false, false},
		{CallLambda, "CALL_LAMBDA", false, false},
		{CellNew, "CELL_NEW", false, false},
		{CellGet, "CELL_GET", false, false},
		{CellSet, "CELL_SET", false, false},
		{IterNew, "ITER_NEW", false, false},
		{IterNext, "ITER_NEXT", true, false},
		{IterValue, "ITER_VALUE", false, false},
		{IterKey, "ITER_KEY", false, false},
	}
	for _, o := range ops {
		infos[o.op] = Info{
			Code:     o.op,
			Name:     o.name,
			IsJump:   o.jump,
			IsBranch: o.branch,
		}
		byName[o.name] = o.op
	}
}

// GetInfo returns information about the given opcode.
func GetInfo(code Code) Info {
	return infos[code]
}

// Name returns the mnemonic for the given opcode, or "INVALID" if the
// opcode is not part of the instruction set.
func Name(code Code) string {
	info := infos[code]
	if info.Name == "" {
		return "INVALID"
	}
	return info.Name
}

// FromMnemonic returns the opcode for the given mnemonic. An unknown
// mnemonic is an error: the instruction table is closed.
func FromMnemonic(name string) (Code, error) {
	code, ok := byName[name]
	if !ok {
		return Invalid, fmt.Errorf("unknown opcode mnemonic %q", name)
	}
	return code, nil
}

// IsJump returns true if the opcode carries a jump offset in its b/c
// operand pair.
func IsJump(code Code) bool {
	return infos[code].IsJump
}

// IsBranch reports whether the opcode resolves its jump offset against the
// instruction's own index rather than the next instruction. The downstream
// interpreter applies branch offsets before advancing the instruction
// pointer, so for branches offset = target - source, while for every other
// jump-bearing opcode offset = target - (source + 1). This asymmetry is
// load-bearing for wire compatibility.
func IsBranch(code Code) bool {
	return infos[code].IsBranch
}
