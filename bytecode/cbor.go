package bytecode

import (
	"github.com/fxamacker/cbor/v2"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	// Core deterministic encoding keeps the binary container as stable as
	// the JSON one.
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// cborConstant mirrors Constant's JSON {type, value} shape for CBOR.
type cborConstant struct {
	Type  ConstKind `cbor:"type"`
	Int   int64     `cbor:"int,omitempty"`
	Float float64   `cbor:"float,omitempty"`
	Str   string    `cbor:"str,omitempty"`
	Index int       `cbor:"index,omitempty"`
}

type cborDocument struct {
	Version      int              `cbor:"version"`
	Metadata     Metadata         `cbor:"metadata"`
	Constants    []cborConstant   `cbor:"constants"`
	Functions    []FunctionDesc   `cbor:"functions"`
	Classes      []ClassDesc      `cbor:"classes"`
	EntryPoint   int              `cbor:"entryPoint"`
	GlobalCount  int              `cbor:"globalCount"`
	Instructions []InstructionDoc `cbor:"instructions"`
	Debug        DebugInfo        `cbor:"debug"`
}

// EncodeCBOR encodes the document in a compact deterministic CBOR
// container holding the same content as the JSON artifact.
func EncodeCBOR(doc *Document) ([]byte, error) {
	constants := make([]cborConstant, len(doc.Constants))
	for i, c := range doc.Constants {
		constants[i] = cborConstant{
			Type: c.Kind, Int: c.Int, Float: c.Float, Str: c.Str, Index: c.Index,
		}
	}
	return cborEnc.Marshal(cborDocument{
		Version:      doc.Version,
		Metadata:     doc.Metadata,
		Constants:    constants,
		Functions:    doc.Functions,
		Classes:      doc.Classes,
		EntryPoint:   doc.EntryPoint,
		GlobalCount:  doc.GlobalCount,
		Instructions: doc.Instructions,
		Debug:        doc.Debug,
	})
}

// DecodeCBOR decodes a CBOR container produced by EncodeCBOR.
func DecodeCBOR(data []byte) (*Document, error) {
	var cd cborDocument
	if err := cborDec.Unmarshal(data, &cd); err != nil {
		return nil, err
	}
	constants := make([]Constant, len(cd.Constants))
	for i, c := range cd.Constants {
		constants[i] = Constant{
			Kind: c.Type, Int: c.Int, Float: c.Float, Str: c.Str, Index: c.Index,
		}
	}
	return &Document{
		Version:      cd.Version,
		Metadata:     cd.Metadata,
		Constants:    constants,
		Functions:    cd.Functions,
		Classes:      cd.Classes,
		EntryPoint:   cd.EntryPoint,
		GlobalCount:  cd.GlobalCount,
		Instructions: cd.Instructions,
		Debug:        cd.Debug,
	}, nil
}
