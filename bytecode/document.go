package bytecode

import (
	"encoding/json"
	"fmt"

	"github.com/doof-lang/doof/op"
)

// Version is the artifact format version. It changes only when the
// document structure changes incompatibly.
const Version = 1

// Metadata describes how and from what a document was produced.
type Metadata struct {
	SourceFile      string `json:"sourceFile"`
	GeneratedAt     string `json:"generatedAt"`
	CompilerVersion string `json:"compilerVersion"`
	BuildID         string `json:"buildId,omitempty"`
}

// InstructionDoc is the serialized form of one instruction. The mnemonic
// and comment are redundant with the opcode byte and exist for human and
// tooling consumption; the VM decodes opcode/a/b/c only.
type InstructionDoc struct {
	Opcode   uint8  `json:"opcode"`
	Mnemonic string `json:"mnemonic"`
	A        uint8  `json:"a"`
	B        uint8  `json:"b"`
	C        uint8  `json:"c"`
	Comment  string `json:"comment,omitempty"`
}

// Instruction converts the serialized form back to the compact form.
func (d InstructionDoc) Instruction() Instruction {
	return Instruction{Opcode: op.Code(d.Opcode), A: d.A, B: d.B, C: d.C}
}

// Document is the complete bytecode artifact for one compilation unit.
// This is the wire contract consumed by the doof VM and must remain
// byte-stable across compiler changes.
type Document struct {
	Version      int              `json:"version"`
	Metadata     Metadata         `json:"metadata"`
	Constants    []Constant       `json:"constants"`
	Functions    []FunctionDesc   `json:"functions"`
	Classes      []ClassDesc      `json:"classes"`
	EntryPoint   int              `json:"entryPoint"`
	GlobalCount  int              `json:"globalCount"`
	Instructions []InstructionDoc `json:"instructions"`
	Debug        DebugInfo        `json:"debug"`
}

// Marshal encodes the document as indented JSON. Field order is fixed by
// the struct definitions, so output is deterministic for a given document.
func Marshal(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Unmarshal decodes a JSON document and checks its version.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("unsupported bytecode version %d (want %d)", doc.Version, Version)
	}
	return &doc, nil
}
