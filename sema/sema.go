// Package sema carries the validation metadata the bytecode compiler
// consumes: resolved expression types, call dispatch records, class and
// enum metadata, and capture analysis results. The external validator
// produces one Info per compilation unit; the compiler treats it as a
// read-only oracle and performs no inference of its own.
package sema

import (
	"github.com/doof-lang/doof/ast"
)

// Kind classifies a resolved type.
type Kind int

const (
	KindInvalid Kind = iota
	KindVoid
	KindNull
	KindBool
	KindInt
	KindFloat
	KindDouble
	KindChar
	KindString
	KindObject
	KindArray
	KindMap
	KindSet
	KindEnum
	KindLambda
	KindUnion
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindVoid:    "void",
	KindNull:    "null",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindDouble:  "double",
	KindChar:    "char",
	KindString:  "string",
	KindObject:  "object",
	KindArray:   "array",
	KindMap:     "map",
	KindSet:     "set",
	KindEnum:    "enum",
	KindLambda:  "lambda",
	KindUnion:   "union",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// IsNumeric returns true for int, float, and double.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat || k == KindDouble
}

// Promote reconciles two numeric kinds using the fixed promotion table:
// int < float < double. It returns false if either kind is not numeric.
func Promote(a, b Kind) (Kind, bool) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return KindInvalid, false
	}
	if a == KindDouble || b == KindDouble {
		return KindDouble, true
	}
	if a == KindFloat || b == KindFloat {
		return KindFloat, true
	}
	return KindInt, true
}

// Type is a resolved type. Elem and Key are populated for container types,
// Name for object, enum, and union types.
type Type struct {
	Kind Kind
	Elem *Type // array element, set element, map value
	Key  *Type // map key
	Name string
}

func (t *Type) String() string {
	if t == nil {
		return "invalid"
	}
	if t.Name != "" {
		return t.Name
	}
	return t.Kind.String()
}

// DispatchKind is the externally resolved classification of a call site.
type DispatchKind int

const (
	DispatchInvalid DispatchKind = iota
	DispatchIntrinsic
	DispatchFunction
	DispatchStaticMethod
	DispatchInstanceMethod
	DispatchExternMethod
	DispatchCollectionMethod
	DispatchUnionMethod
	DispatchLambda
)

var dispatchNames = map[DispatchKind]string{
	DispatchInvalid:          "invalid",
	DispatchIntrinsic:        "intrinsic",
	DispatchFunction:         "function",
	DispatchStaticMethod:     "static-method",
	DispatchInstanceMethod:   "instance-method",
	DispatchExternMethod:     "extern-method",
	DispatchCollectionMethod: "collection-method",
	DispatchUnionMethod:      "union-method",
	DispatchLambda:           "lambda",
}

func (k DispatchKind) String() string {
	if s, ok := dispatchNames[k]; ok {
		return s
	}
	return "invalid"
}

// CallInfo is the validator's record for one call site.
type CallInfo struct {
	Kind DispatchKind

	// Name is the resolved target: function name, method name, intrinsic
	// name, or collection method name.
	Name string

	// Class is set for static, instance, and extern method calls.
	Class string

	// ParamNames lists the declared parameter names in positional order,
	// used to place named arguments. Empty for collection methods and
	// intrinsics.
	ParamNames []string
}

// MethodInfo describes one method of a class or extern class.
type MethodInfo struct {
	Name   string
	Static bool
	Params []string
}

// ClassInfo describes a class declaration or an extern class binding.
type ClassInfo struct {
	Name   string
	Extern bool
	Fields []string
	// Methods is keyed by method name. Extern classes carry metadata only;
	// their method bodies live in the VM's native surface.
	Methods map[string]*MethodInfo
}

// FieldIndex returns the slot index of the named field, or -1.
func (c *ClassInfo) FieldIndex(name string) int {
	for i, f := range c.Fields {
		if f == name {
			return i
		}
	}
	return -1
}

// EnumInfo describes an enum and the backing representation the validator
// chose for it. String-backed enums compare with string equality; integer
// backed enums compare with integer equality.
type EnumInfo struct {
	Name    string
	Backing Kind // KindString or KindInt
	// Values maps member name to its backing value. For string backing the
	// Str field is set; for int backing the Int field is set.
	Values map[string]EnumValue
}

// EnumValue is one enum member's backing value.
type EnumValue struct {
	Str string
	Int int64
}

// FunctionInfo is the validator's pre-scan of one function or method:
// declared parameters, every local declared anywhere in the body, and the
// set of locals that some closure captures and mutates (those get boxed
// into capture cells).
type FunctionInfo struct {
	Name        string
	Params      []string
	Locals      []string
	HasThis     bool
	ReturnsVoid bool
	// Boxed lists params/locals that are captured and mutated by a nested
	// lambda. Reads and writes of these names go through a capture cell.
	Boxed map[string]bool
}

// Capture describes one value captured by a lambda. Boxed captures refer
// to a shared cell; unboxed captures are copied at lambda creation.
type Capture struct {
	Name  string
	Boxed bool
}

// LambdaInfo is the validator's record for one lambda expression.
type LambdaInfo struct {
	Params      []string
	Locals      []string
	Captures    []Capture
	ReturnsVoid bool
	// Boxed lists the lambda's own params/locals that inner lambdas
	// capture and mutate.
	Boxed map[string]bool
}

// Info is the complete oracle for one compilation unit.
type Info struct {
	// ExprTypes records the resolved type of every expression.
	ExprTypes map[ast.Expr]*Type

	// Calls records dispatch metadata for every call site.
	Calls map[*ast.Call]*CallInfo

	// Functions records the pre-scan for every declared function/method.
	Functions map[*ast.FuncDecl]*FunctionInfo

	// Lambdas records capture metadata for every lambda expression.
	Lambdas map[*ast.Lambda]*LambdaInfo

	// Entry is the pre-scan for the unit's top-level entry code.
	Entry *FunctionInfo

	Classes map[string]*ClassInfo
	Enums   map[string]*EnumInfo

	// Globals lists global variable names in slot order.
	Globals []string
}

// NewInfo returns an empty Info with all maps initialized.
func NewInfo() *Info {
	return &Info{
		ExprTypes: map[ast.Expr]*Type{},
		Calls:     map[*ast.Call]*CallInfo{},
		Functions: map[*ast.FuncDecl]*FunctionInfo{},
		Lambdas:   map[*ast.Lambda]*LambdaInfo{},
		Entry:     &FunctionInfo{Name: "__main__", ReturnsVoid: true, Boxed: map[string]bool{}},
		Classes:   map[string]*ClassInfo{},
		Enums:     map[string]*EnumInfo{},
	}
}

// TypeOf returns the resolved type of the given expression, or a type with
// KindInvalid if the validator did not record one.
func (info *Info) TypeOf(e ast.Expr) *Type {
	if t, ok := info.ExprTypes[e]; ok {
		return t
	}
	return &Type{Kind: KindInvalid}
}

// GlobalIndex returns the slot of the named global, or -1.
func (info *Info) GlobalIndex(name string) int {
	for i, g := range info.Globals {
		if g == name {
			return i
		}
	}
	return -1
}
