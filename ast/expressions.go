package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Ident is a reference to a named binding: a parameter, local, global,
// function, class, or enum name. Resolution is the validator's job.
type Ident struct {
	Position Position
	Name     string
}

func (x *Ident) exprNode()      {}
func (x *Ident) Pos() Position  { return x.Position }
func (x *Ident) String() string { return x.Name }

// This refers to the implicit receiver inside an instance method.
type This struct {
	Position Position
}

func (x *This) exprNode()      {}
func (x *This) Pos() Position  { return x.Position }
func (x *This) String() string { return "this" }

// NullLit is the null literal.
type NullLit struct {
	Position Position
}

func (x *NullLit) exprNode()      {}
func (x *NullLit) Pos() Position  { return x.Position }
func (x *NullLit) String() string { return "null" }

// BoolLit is a boolean literal.
type BoolLit struct {
	Position Position
	Value    bool
}

func (x *BoolLit) exprNode()      {}
func (x *BoolLit) Pos() Position  { return x.Position }
func (x *BoolLit) String() string { return strconv.FormatBool(x.Value) }

// IntLit is an integer literal.
type IntLit struct {
	Position Position
	Value    int64
}

func (x *IntLit) exprNode()      {}
func (x *IntLit) Pos() Position  { return x.Position }
func (x *IntLit) String() string { return strconv.FormatInt(x.Value, 10) }

// FloatLit is a floating point literal. The validator decides whether it
// is float or double precision; the compiler reads that from sema.
type FloatLit struct {
	Position Position
	Value    float64
}

func (x *FloatLit) exprNode()      {}
func (x *FloatLit) Pos() Position  { return x.Position }
func (x *FloatLit) String() string { return strconv.FormatFloat(x.Value, 'g', -1, 64) }

// StringLit is a string literal.
type StringLit struct {
	Position Position
	Value    string
}

func (x *StringLit) exprNode()      {}
func (x *StringLit) Pos() Position  { return x.Position }
func (x *StringLit) String() string { return strconv.Quote(x.Value) }

// CharLit is a character literal.
type CharLit struct {
	Position Position
	Value    rune
}

func (x *CharLit) exprNode()      {}
func (x *CharLit) Pos() Position  { return x.Position }
func (x *CharLit) String() string { return strconv.QuoteRune(x.Value) }

// Binary is an infix operation, including the short-circuit operators
// "&&" and "||".
type Binary struct {
	Position Position
	Op       string
	X, Y     Expr
}

func (x *Binary) exprNode()      {}
func (x *Binary) Pos() Position  { return x.Position }
func (x *Binary) String() string { return fmt.Sprintf("(%s %s %s)", x.X, x.Op, x.Y) }

// Unary is a prefix operation: "-" or "!".
type Unary struct {
	Position Position
	Op       string
	X        Expr
}

func (x *Unary) exprNode()      {}
func (x *Unary) Pos() Position  { return x.Position }
func (x *Unary) String() string { return fmt.Sprintf("(%s%s)", x.Op, x.X) }

// Arg is a call argument, optionally named. Named arguments may appear in
// any order; the compiler preserves lexical evaluation order regardless.
type Arg struct {
	Position Position
	Name     string // "" for positional
	Value    Expr
}

func (a *Arg) Pos() Position { return a.Position }
func (a *Arg) String() string {
	if a.Name == "" {
		return a.Value.String()
	}
	return fmt.Sprintf("%s: %s", a.Name, a.Value)
}

// Call invokes a function, method, intrinsic, or lambda value. The target
// shape (Ident or Member) is syntactic only; the dispatch category comes
// from the validator's call metadata.
type Call struct {
	Position Position
	Fun      Expr
	Args     []*Arg
}

func (x *Call) exprNode()     {}
func (x *Call) Pos() Position { return x.Position }
func (x *Call) String() string {
	parts := make([]string, len(x.Args))
	for i, a := range x.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", x.Fun, strings.Join(parts, ", "))
}

// Member accesses a field, method, or enum value: x.Name.
type Member struct {
	Position Position
	X        Expr
	Name     string
}

func (x *Member) exprNode()      {}
func (x *Member) Pos() Position  { return x.Position }
func (x *Member) String() string { return fmt.Sprintf("%s.%s", x.X, x.Name) }

// Index accesses an array element or map entry: x[index].
type Index struct {
	Position Position
	X        Expr
	Index    Expr
}

func (x *Index) exprNode()      {}
func (x *Index) Pos() Position  { return x.Position }
func (x *Index) String() string { return fmt.Sprintf("%s[%s]", x.X, x.Index) }

// Lambda is an anonymous function expression. Its captures are described
// by the validator's lambda metadata.
type Lambda struct {
	Position Position
	Params   []*Param
	Body     *Block
}

func (x *Lambda) exprNode()     {}
func (x *Lambda) Pos() Position { return x.Position }
func (x *Lambda) String() string {
	names := make([]string, len(x.Params))
	for i, p := range x.Params {
		names[i] = p.Name
	}
	return fmt.Sprintf("(%s) => %s", strings.Join(names, ", "), x.Body)
}

// New instantiates a class: new ClassName(args).
type New struct {
	Position Position
	Class    string
	Args     []*Arg
}

func (x *New) exprNode()     {}
func (x *New) Pos() Position { return x.Position }
func (x *New) String() string {
	parts := make([]string, len(x.Args))
	for i, a := range x.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("new %s(%s)", x.Class, strings.Join(parts, ", "))
}

// ArrayLit is an array literal.
type ArrayLit struct {
	Position Position
	Elems    []Expr
}

func (x *ArrayLit) exprNode()     {}
func (x *ArrayLit) Pos() Position { return x.Position }
func (x *ArrayLit) String() string {
	parts := make([]string, len(x.Elems))
	for i, e := range x.Elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MapEntry is one key/value pair of a map literal.
type MapEntry struct {
	Key   Expr
	Value Expr
}

// MapLit is a map literal.
type MapLit struct {
	Position Position
	Entries  []MapEntry
}

func (x *MapLit) exprNode()     {}
func (x *MapLit) Pos() Position { return x.Position }
func (x *MapLit) String() string {
	parts := make([]string, len(x.Entries))
	for i, e := range x.Entries {
		parts[i] = fmt.Sprintf("%s: %s", e.Key, e.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// SetLit is a set literal.
type SetLit struct {
	Position Position
	Elems    []Expr
}

func (x *SetLit) exprNode()     {}
func (x *SetLit) Pos() Position { return x.Position }
func (x *SetLit) String() string {
	parts := make([]string, len(x.Elems))
	for i, e := range x.Elems {
		parts[i] = e.String()
	}
	return "#{" + strings.Join(parts, ", ") + "}"
}

// RangeLit is a literal integer range, usable in for-in statements and
// switch range cases: low..high (exclusive) or low..=high (inclusive).
type RangeLit struct {
	Position  Position
	Low, High Expr
	Inclusive bool
}

func (x *RangeLit) exprNode()     {}
func (x *RangeLit) Pos() Position { return x.Position }
func (x *RangeLit) String() string {
	if x.Inclusive {
		return fmt.Sprintf("%s..=%s", x.Low, x.High)
	}
	return fmt.Sprintf("%s..%s", x.Low, x.High)
}
