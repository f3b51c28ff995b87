package bytecode

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ConstKind classifies a constant pool entry.
type ConstKind string

const (
	ConstInt      ConstKind = "int"
	ConstFloat    ConstKind = "float"
	ConstString   ConstKind = "string"
	ConstFunction ConstKind = "function"
	ConstClass    ConstKind = "class"
)

// Constant is one constant pool entry. Exactly one value field is
// meaningful, selected by Kind. Function and class constants hold an index
// into the document's function or class tables.
type Constant struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Str   string
	Index int
}

// IntConstant returns an integer constant.
func IntConstant(v int64) Constant { return Constant{Kind: ConstInt, Int: v} }

// FloatConstant returns a float constant.
func FloatConstant(v float64) Constant { return Constant{Kind: ConstFloat, Float: v} }

// StringConstant returns a string constant.
func StringConstant(v string) Constant { return Constant{Kind: ConstString, Str: v} }

// FunctionConstant returns a constant referencing the function table.
func FunctionConstant(index int) Constant { return Constant{Kind: ConstFunction, Index: index} }

// ClassConstant returns a constant referencing the class table.
func ClassConstant(index int) Constant { return Constant{Kind: ConstClass, Index: index} }

// Key returns the structural identity of the constant, used by the
// compiler's pool to deduplicate by (type, value).
func (c Constant) Key() string {
	switch c.Kind {
	case ConstInt:
		return "i:" + strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return "f:" + strconv.FormatFloat(c.Float, 'b', -1, 64)
	case ConstString:
		return "s:" + c.Str
	case ConstFunction:
		return "fn:" + strconv.Itoa(c.Index)
	case ConstClass:
		return "cl:" + strconv.Itoa(c.Index)
	}
	return "?"
}

// String renders the constant value for disassembly annotations.
func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.Int, 10)
	case ConstFloat:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	case ConstString:
		return strconv.Quote(c.Str)
	case ConstFunction:
		return fmt.Sprintf("function#%d", c.Index)
	case ConstClass:
		return fmt.Sprintf("class#%d", c.Index)
	}
	return "?"
}

type constantDoc struct {
	Type  ConstKind       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the constant as a {type, value} pair.
func (c Constant) MarshalJSON() ([]byte, error) {
	var value any
	switch c.Kind {
	case ConstInt:
		value = c.Int
	case ConstFloat:
		value = c.Float
	case ConstString:
		value = c.Str
	case ConstFunction, ConstClass:
		value = c.Index
	default:
		return nil, fmt.Errorf("unknown constant kind: %q", c.Kind)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(constantDoc{Type: c.Kind, Value: raw})
}

// UnmarshalJSON decodes a {type, value} pair.
func (c *Constant) UnmarshalJSON(data []byte) error {
	var doc constantDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	c.Kind = doc.Type
	switch doc.Type {
	case ConstInt:
		return json.Unmarshal(doc.Value, &c.Int)
	case ConstFloat:
		return json.Unmarshal(doc.Value, &c.Float)
	case ConstString:
		return json.Unmarshal(doc.Value, &c.Str)
	case ConstFunction, ConstClass:
		return json.Unmarshal(doc.Value, &c.Index)
	}
	return fmt.Errorf("unknown constant kind: %q", doc.Type)
}

// FunctionDesc describes one compiled function in the linear instruction
// stream. Address and End bracket its instructions; RegisterCount is the
// frame size the VM must reserve.
type FunctionDesc struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	Address       int    `json:"address"`
	End           int    `json:"end"`
	ParamCount    int    `json:"paramCount"`
	CaptureCount  int    `json:"captureCount,omitempty"`
	RegisterCount int    `json:"registerCount"`
	HasThis       bool   `json:"hasThis,omitempty"`
}

// MethodRef binds a method name to its compiled function.
type MethodRef struct {
	Name          string `json:"name"`
	FunctionIndex int    `json:"functionIndex"`
	Static        bool   `json:"static,omitempty"`
}

// ClassDesc describes one class: its field layout and method table. Extern
// classes carry no method function indices; their methods resolve against
// the VM's native surface by name.
type ClassDesc struct {
	Index   int         `json:"index"`
	Name    string      `json:"name"`
	Extern  bool        `json:"extern,omitempty"`
	Fields  []string    `json:"fields"`
	Methods []MethodRef `json:"methods"`
}
