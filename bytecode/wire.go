package bytecode

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/understudy-io/understudy/op"
)

// FormatVersion is the container format version written by Marshal and
// accepted by Unmarshal.
const FormatVersion byte = 1

// Ext is the conventional file extension for unit containers.
const Ext = ".cunit"

// magic identifies a unit container. It precedes the version byte and the
// CBOR-encoded body.
var magic = [4]byte{'U', 'N', 'I', 'T'}

// cborEncMode uses canonical mode so that encoding a given unit always
// produces identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type wireUnit struct {
	ID              string         `cbor:"1,keyasint,omitempty"`
	Name            string         `cbor:"2,keyasint"`
	CompilerVersion string         `cbor:"3,keyasint,omitempty"`
	Filename        string         `cbor:"4,keyasint,omitempty"`
	Uses            []string       `cbor:"5,keyasint,omitempty"`
	Constants       []wireConstant `cbor:"6,keyasint,omitempty"`
	Methods         []wireMethod   `cbor:"7,keyasint"`
}

type wireConstant struct {
	Kind   uint8  `cbor:"1,keyasint"`
	Int    int64  `cbor:"2,keyasint,omitempty"`
	Str    string `cbor:"3,keyasint,omitempty"`
	Bool   bool   `cbor:"4,keyasint,omitempty"`
	Unit   string `cbor:"5,keyasint,omitempty"`
	Method string `cbor:"6,keyasint,omitempty"`
}

type wireMethod struct {
	Name         string   `cbor:"1,keyasint"`
	NumParams    int      `cbor:"2,keyasint,omitempty"`
	LocalNames   []string `cbor:"3,keyasint,omitempty"`
	Instructions []uint16 `cbor:"4,keyasint,omitempty"`
}

// Marshal serializes a Unit to container bytes: a 4 byte magic, a format
// version byte, and a canonical CBOR body.
func Marshal(u *Unit) ([]byte, error) {
	w := wireUnit{
		ID:              u.id,
		Name:            u.name,
		CompilerVersion: u.compilerVersion,
		Filename:        u.filename,
		Uses:            u.uses,
		Constants:       make([]wireConstant, 0, len(u.constants)),
		Methods:         make([]wireMethod, 0, len(u.methods)),
	}
	for _, c := range u.constants {
		w.Constants = append(w.Constants, wireConstant{
			Kind:   uint8(c.Kind),
			Int:    c.Int,
			Str:    c.Str,
			Bool:   c.Bool,
			Unit:   c.Unit,
			Method: c.Method,
		})
	}
	for _, m := range u.methods {
		instructions := make([]uint16, len(m.instructions))
		for i, instr := range m.instructions {
			instructions[i] = uint16(instr)
		}
		w.Methods = append(w.Methods, wireMethod{
			Name:         m.name,
			NumParams:    m.numParams,
			LocalNames:   m.localNames,
			Instructions: instructions,
		})
	}
	body, err := cborEncMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal unit: %w", err)
	}
	out := make([]byte, 0, len(magic)+1+len(body))
	out = append(out, magic[:]...)
	out = append(out, FormatVersion)
	out = append(out, body...)
	return out, nil
}

// Unmarshal deserializes and verifies a Unit from container bytes. The
// returned error is a *FormatError whenever the data is malformed.
func Unmarshal(data []byte) (*Unit, error) {
	if len(data) < len(magic)+1 {
		return nil, NewFormatError("container too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:len(magic)], magic[:]) {
		return nil, NewFormatError("bad magic bytes")
	}
	if version := data[len(magic)]; version != FormatVersion {
		return nil, NewFormatError("unsupported format version %d", version)
	}
	var w wireUnit
	if err := cbor.Unmarshal(data[len(magic)+1:], &w); err != nil {
		return nil, &FormatError{message: "invalid container encoding", cause: err}
	}
	constants := make([]Constant, 0, len(w.Constants))
	for _, c := range w.Constants {
		constants = append(constants, Constant{
			Kind:   ConstKind(c.Kind),
			Int:    c.Int,
			Str:    c.Str,
			Bool:   c.Bool,
			Unit:   c.Unit,
			Method: c.Method,
		})
	}
	methods := make([]*Method, 0, len(w.Methods))
	for _, m := range w.Methods {
		instructions := make([]op.Code, len(m.Instructions))
		for i, instr := range m.Instructions {
			instructions[i] = op.Code(instr)
		}
		methods = append(methods, &Method{
			name:         m.Name,
			numParams:    m.NumParams,
			localNames:   m.LocalNames,
			instructions: instructions,
		})
	}
	unit := NewUnit(UnitParams{
		ID:              w.ID,
		Name:            w.Name,
		CompilerVersion: w.CompilerVersion,
		Filename:        w.Filename,
		Uses:            w.Uses,
		Constants:       constants,
		Methods:         methods,
	})
	if err := Verify(unit); err != nil {
		return nil, err
	}
	return unit, nil
}
