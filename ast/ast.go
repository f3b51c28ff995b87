// Package ast defines the validated syntax tree representation of doof
// code, as produced by the external parser and validator. The bytecode
// compiler consumes these nodes read-only; all name, type, and dispatch
// resolution is attached separately via the sema package.
package ast

import "fmt"

// Position identifies a location in a source file. Line and Column are
// 1-based; a zero Position means "unknown".
type Position struct {
	Line   int
	Column int
}

// IsValid returns true if the position carries real location information.
func (p Position) IsValid() bool { return p.Line > 0 }

// String returns the position in line:column form.
func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// Node represents a portion of the syntax tree. All nodes have position
// information indicating where they appear in the source code.
type Node interface {
	// Pos returns the position of the first character belonging to the node.
	Pos() Position

	// String returns a human friendly representation of the Node. This
	// should be similar to the original source code, but not necessarily
	// identical.
	String() string
}

// Stmt represents a statement node. Statements cause side effects but do
// not evaluate to a value.
type Stmt interface {
	Node
	stmtNode()
}

// Expr represents an expression node. Expressions evaluate to a value and
// may be embedded within other expressions.
type Expr interface {
	Node
	exprNode()
}

// Program is the root of a validated compilation unit. Function and class
// declarations may appear interleaved with executable top-level statements;
// the top-level statements form the unit's entry code.
type Program struct {
	Stmts []Stmt
}

func (p *Program) Pos() Position {
	if len(p.Stmts) > 0 {
		return p.Stmts[0].Pos()
	}
	return Position{}
}

func (p *Program) String() string { return stmtsString(p.Stmts) }
