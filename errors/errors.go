// Package errors defines the error types reported by the doof bytecode
// compiler. Compilation is fail-fast: the first fatal condition aborts the
// unit and nothing is emitted for it.
package errors

import (
	"fmt"
	"strings"
)

// ErrorCode identifies a category of compile error. The E2xxx family is
// reserved for the bytecode backend.
type ErrorCode string

const (
	E2001 ErrorCode = "E2001" // Undefined variable
	E2002 ErrorCode = "E2002" // Missing call dispatch metadata
	E2003 ErrorCode = "E2003" // Invalid break statement
	E2004 ErrorCode = "E2004" // Invalid continue statement
	E2005 ErrorCode = "E2005" // Jump offset out of range
	E2006 ErrorCode = "E2006" // Unsupported statement or expression
	E2007 ErrorCode = "E2007" // Register allocation failure
	E2008 ErrorCode = "E2008" // Too many constants
	E2009 ErrorCode = "E2009" // Wrong argument count
	E2010 ErrorCode = "E2010" // Invalid comparison type
	E2011 ErrorCode = "E2011" // Unknown class or method metadata
	E2012 ErrorCode = "E2012" // Unknown opcode mnemonic
)

var codeDescriptions = map[ErrorCode]string{
	E2001: "undefined variable",
	E2002: "missing call dispatch metadata",
	E2003: "invalid break statement",
	E2004: "invalid continue statement",
	E2005: "jump offset out of range",
	E2006: "unsupported statement or expression",
	E2007: "register allocation failure",
	E2008: "too many constants",
	E2009: "wrong argument count",
	E2010: "invalid comparison type",
	E2011: "unknown class or method metadata",
	E2012: "unknown opcode mnemonic",
}

// Describe returns the short description for an error code.
func Describe(code ErrorCode) string {
	return codeDescriptions[code]
}

// CompileError is a fatal compilation error with source context.
type CompileError struct {
	Code     ErrorCode
	Message  string
	Filename string
	Line     int
	Column   int
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString("compile error: ")
	b.WriteString(e.Message)
	if e.Filename != "" || e.Line > 0 {
		b.WriteString("\n\nlocation: ")
		if e.Filename != "" {
			b.WriteString(e.Filename)
			b.WriteString(":")
		}
		fmt.Fprintf(&b, "%d:%d", e.Line, e.Column)
	}
	return b.String()
}

// New creates a CompileError without source context.
func New(code ErrorCode, format string, args ...any) *CompileError {
	return &CompileError{Code: code, Message: fmt.Sprintf(format, args...)}
}
