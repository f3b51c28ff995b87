package compiler

import (
	"github.com/doof-lang/doof/ast"
	"github.com/doof-lang/doof/bytecode"
)

// debugBuilder accumulates the debug tables for one compilation unit.
// Rows are appended as lowering proceeds, so each table comes out sorted
// by instruction index without a separate sort pass.
type debugBuilder struct {
	sourceMap []bytecode.SourceMapEntry
	functions []bytecode.FunctionDebug
	variables []bytecode.VariableDebug
	scopes    []bytecode.ScopeDebug
	files     []string
	fileIndex map[string]int

	// Scope bracketing state for the frame currently being lowered.
	openScopes []int
	depth      int
}

func newDebugBuilder(sourceFile string) *debugBuilder {
	b := &debugBuilder{fileIndex: map[string]int{}}
	b.fileID(sourceFile)
	return b
}

func (b *debugBuilder) fileID(name string) int {
	if idx, ok := b.fileIndex[name]; ok {
		return idx
	}
	idx := len(b.files)
	b.files = append(b.files, name)
	b.fileIndex[name] = idx
	return idx
}

// addSourceMapRow records a source location for one instruction. Adjacent
// duplicates are collapsed: a run of instructions lowered from the same
// statement gets one row, keyed to the run's first instruction.
func (b *debugBuilder) addSourceMapRow(instruction int, pos ast.Position) {
	if n := len(b.sourceMap); n > 0 {
		last := b.sourceMap[n-1]
		if last.Line == pos.Line && last.Column == pos.Column {
			return
		}
	}
	b.sourceMap = append(b.sourceMap, bytecode.SourceMapEntry{
		Instruction: instruction,
		File:        0,
		Line:        pos.Line,
		Column:      pos.Column,
	})
}

// addFunction records the instruction bracket of one compiled function.
func (b *debugBuilder) addFunction(name string, start, end, paramCount int) {
	b.functions = append(b.functions, bytecode.FunctionDebug{
		Name:             name,
		StartInstruction: start,
		EndInstruction:   end,
		ParamCount:       paramCount,
	})
}

// addVariable records a named variable's register and live window.
func (b *debugBuilder) addVariable(name, typeName string, register, start, end int) {
	b.variables = append(b.variables, bytecode.VariableDebug{
		Name:     name,
		Type:     typeName,
		Register: register,
		Start:    start,
		End:      end,
	})
}

// enterScope opens a lexical scope bracket at the given instruction.
func (b *debugBuilder) enterScope(start int) {
	b.depth++
	b.scopes = append(b.scopes, bytecode.ScopeDebug{Start: start, End: -1, Depth: b.depth})
	b.openScopes = append(b.openScopes, len(b.scopes)-1)
}

// exitScope closes the innermost open scope bracket.
func (b *debugBuilder) exitScope(end int) {
	n := len(b.openScopes)
	if n == 0 {
		return
	}
	idx := b.openScopes[n-1]
	b.openScopes = b.openScopes[:n-1]
	b.scopes[idx].End = end
	b.depth--
}

// build finalizes the tables. Any scope still open is closed at the end of
// the stream.
func (b *debugBuilder) build(streamEnd int) bytecode.DebugInfo {
	for len(b.openScopes) > 0 {
		b.exitScope(streamEnd)
	}
	return bytecode.DebugInfo{
		SourceMap: b.sourceMap,
		Functions: b.functions,
		Variables: b.variables,
		Scopes:    b.scopes,
		Files:     b.files,
	}
}
