package ast

import (
	"fmt"
	"strings"
)

// Block is a braced sequence of statements.
type Block struct {
	Position Position
	Stmts    []Stmt
}

func (s *Block) stmtNode()      {}
func (s *Block) Pos() Position  { return s.Position }
func (s *Block) String() string { return "{ " + stmtsString(s.Stmts) + " }" }

// VarDecl declares a variable, optionally with an initializer. At the top
// level it declares a global; inside a function it declares a local that
// was pre-scanned by the validator.
type VarDecl struct {
	Position Position
	Name     string
	Value    Expr // may be nil
	Const    bool
}

func (s *VarDecl) stmtNode()     {}
func (s *VarDecl) Pos() Position { return s.Position }
func (s *VarDecl) String() string {
	kw := "var"
	if s.Const {
		kw = "const"
	}
	if s.Value == nil {
		return fmt.Sprintf("%s %s", kw, s.Name)
	}
	return fmt.Sprintf("%s %s = %s", kw, s.Name, s.Value)
}

// Assign assigns a value to an identifier, member, or index target. Op is
// "=" or a compound operator such as "+=".
type Assign struct {
	Position Position
	Target   Expr
	Op       string
	Value    Expr
}

func (s *Assign) stmtNode()      {}
func (s *Assign) Pos() Position  { return s.Position }
func (s *Assign) String() string { return fmt.Sprintf("%s %s %s", s.Target, s.Op, s.Value) }

// ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	X Expr
}

func (s *ExprStmt) stmtNode()      {}
func (s *ExprStmt) Pos() Position  { return s.X.Pos() }
func (s *ExprStmt) String() string { return s.X.String() }

// If is a conditional with an optional else branch. Else is either a
// *Block or another *If (else-if chain).
type If struct {
	Position Position
	Cond     Expr
	Then     *Block
	Else     Stmt // nil, *Block, or *If
}

func (s *If) stmtNode()     {}
func (s *If) Pos() Position { return s.Position }
func (s *If) String() string {
	if s.Else == nil {
		return fmt.Sprintf("if (%s) %s", s.Cond, s.Then)
	}
	return fmt.Sprintf("if (%s) %s else %s", s.Cond, s.Then, s.Else)
}

// While is a pre-test loop.
type While struct {
	Position Position
	Cond     Expr
	Body     *Block
}

func (s *While) stmtNode()      {}
func (s *While) Pos() Position  { return s.Position }
func (s *While) String() string { return fmt.Sprintf("while (%s) %s", s.Cond, s.Body) }

// For is a C-style loop. Init and Post may be nil; Cond may be nil for an
// infinite loop.
type For struct {
	Position Position
	Init     Stmt
	Cond     Expr
	Post     Stmt
	Body     *Block
}

func (s *For) stmtNode()     {}
func (s *For) Pos() Position { return s.Position }
func (s *For) String() string {
	return fmt.Sprintf("for (%s; %s; %s) %s", nodeOr(s.Init), nodeOr(s.Cond), nodeOr(s.Post), s.Body)
}

// ForIn iterates a range, array, map, set, or string. Key is only set for
// two-variable map iteration.
type ForIn struct {
	Position Position
	Key      *Ident // may be nil
	Value    *Ident
	Iterable Expr
	Body     *Block
}

func (s *ForIn) stmtNode()     {}
func (s *ForIn) Pos() Position { return s.Position }
func (s *ForIn) String() string {
	if s.Key != nil {
		return fmt.Sprintf("for (%s, %s in %s) %s", s.Key, s.Value, s.Iterable, s.Body)
	}
	return fmt.Sprintf("for (%s in %s) %s", s.Value, s.Iterable, s.Body)
}

// SwitchCase is one arm of a switch statement. Either Exprs holds one or
// more exact-match tests, or Low/High describe a range test, or Default is
// set. Cases are tried in declaration order; there is no fallthrough.
type SwitchCase struct {
	Position  Position
	Exprs     []Expr
	Low, High Expr // range test when both set
	Inclusive bool // range includes High
	Default   bool
	Body      *Block
}

func (c *SwitchCase) Pos() Position { return c.Position }

// Switch evaluates its discriminant once and runs the first matching case.
type Switch struct {
	Position Position
	Value    Expr
	Cases    []*SwitchCase
}

func (s *Switch) stmtNode()      {}
func (s *Switch) Pos() Position  { return s.Position }
func (s *Switch) String() string { return fmt.Sprintf("switch (%s) { ... }", s.Value) }

// Break exits the innermost loop or switch.
type Break struct {
	Position Position
}

func (s *Break) stmtNode()      {}
func (s *Break) Pos() Position  { return s.Position }
func (s *Break) String() string { return "break" }

// Continue resumes the innermost loop. It is rejected inside a switch.
type Continue struct {
	Position Position
}

func (s *Continue) stmtNode()      {}
func (s *Continue) Pos() Position  { return s.Position }
func (s *Continue) String() string { return "continue" }

// Return exits the current function. Value is nil for a bare return.
type Return struct {
	Position Position
	Value    Expr
}

func (s *Return) stmtNode()     {}
func (s *Return) Pos() Position { return s.Position }
func (s *Return) String() string {
	if s.Value == nil {
		return "return"
	}
	return fmt.Sprintf("return %s", s.Value)
}

// Param is a declared function or lambda parameter.
type Param struct {
	Position Position
	Name     string
}

func (p *Param) Pos() Position  { return p.Position }
func (p *Param) String() string { return p.Name }

// FuncDecl declares a named function or a class method.
type FuncDecl struct {
	Position Position
	Name     string
	Params   []*Param
	Body     *Block
}

func (s *FuncDecl) stmtNode()     {}
func (s *FuncDecl) Pos() Position { return s.Position }
func (s *FuncDecl) String() string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.Name
	}
	return fmt.Sprintf("function %s(%s) %s", s.Name, strings.Join(names, ", "), s.Body)
}

// FieldDecl declares an instance field of a class.
type FieldDecl struct {
	Position Position
	Name     string
}

func (f *FieldDecl) Pos() Position  { return f.Position }
func (f *FieldDecl) String() string { return f.Name }

// ClassDecl declares a class with fields and methods. Static methods are
// identified via the validator's method metadata, not syntactically here.
type ClassDecl struct {
	Position Position
	Name     string
	Fields   []*FieldDecl
	Methods  []*FuncDecl
}

func (s *ClassDecl) stmtNode()      {}
func (s *ClassDecl) Pos() Position  { return s.Position }
func (s *ClassDecl) String() string { return fmt.Sprintf("class %s { ... }", s.Name) }

func stmtsString(stmts []Stmt) string {
	parts := make([]string, len(stmts))
	for i, s := range stmts {
		parts[i] = s.String()
	}
	return strings.Join(parts, "; ")
}

func nodeOr(n Node) string {
	if n == nil {
		return ""
	}
	return n.String()
}
