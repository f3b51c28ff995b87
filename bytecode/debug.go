package bytecode

// SourceMapEntry ties one instruction to the source location it was
// generated from. File indexes into DebugInfo.Files.
type SourceMapEntry struct {
	Instruction int `json:"instruction"`
	File        int `json:"file"`
	Line        int `json:"line"`
	Column      int `json:"column"`
}

// FunctionDebug brackets the instruction range of one function.
type FunctionDebug struct {
	Name             string `json:"name"`
	StartInstruction int    `json:"startInstruction"`
	EndInstruction   int    `json:"endInstruction"`
	ParamCount       int    `json:"paramCount"`
}

// VariableDebug records where a named variable lives and the instruction
// window during which the register holds it.
type VariableDebug struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Register int    `json:"register"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// ScopeDebug brackets a lexical scope's instruction range.
type ScopeDebug struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Depth int `json:"depth"`
}

// DebugInfo aggregates all debug tables of a document.
type DebugInfo struct {
	SourceMap []SourceMapEntry `json:"sourceMap"`
	Functions []FunctionDebug  `json:"functions"`
	Variables []VariableDebug  `json:"variables"`
	Scopes    []ScopeDebug     `json:"scopes"`
	Files     []string         `json:"files"`
}

// LocationOf returns the source map entry for the given instruction index,
// or false if none was recorded.
func (d *DebugInfo) LocationOf(instruction int) (SourceMapEntry, bool) {
	// Entries are appended in instruction order; binary search is not
	// worth it at typical unit sizes.
	for _, e := range d.SourceMap {
		if e.Instruction == instruction {
			return e, true
		}
		if e.Instruction > instruction {
			break
		}
	}
	return SourceMapEntry{}, false
}
