// Package bytecode defines the compiled representation of units along with
// the container format used to store and exchange them.
package bytecode

import "github.com/understudy-io/understudy/op"

// Unit represents one compiled unit: its methods, constant pool, and the
// names of the units it links against. It is immutable after creation and
// safe for concurrent use.
type Unit struct {
	id              string
	name            string
	compilerVersion string
	filename        string
	uses            []string
	constants       []Constant
	methods         []*Method
	methodIndex     map[string]*Method
}

// UnitParams contains parameters for creating a new Unit.
type UnitParams struct {
	ID              string
	Name            string
	CompilerVersion string
	Filename        string
	Uses            []string
	Constants       []Constant
	Methods         []*Method
}

// NewUnit creates a new immutable Unit from the given parameters.
// Input slices are copied to ensure immutability.
func NewUnit(params UnitParams) *Unit {
	u := &Unit{
		id:              params.ID,
		name:            params.Name,
		compilerVersion: params.CompilerVersion,
		filename:        params.Filename,
		uses:            copyStrings(params.Uses),
		constants:       copyConstants(params.Constants),
		methods:         copyMethods(params.Methods),
		methodIndex:     make(map[string]*Method, len(params.Methods)),
	}
	for _, m := range u.methods {
		u.methodIndex[m.name] = m
	}
	return u
}

// ID returns the identifier assigned to this unit when it was compiled.
func (u *Unit) ID() string {
	return u.id
}

// Name returns the full dotted name of the unit.
func (u *Unit) Name() string {
	return u.name
}

// CompilerVersion returns the version of the toolchain that produced this
// unit, e.g. "1.4.0".
func (u *Unit) CompilerVersion() string {
	return u.compilerVersion
}

// Filename returns the name of the source file the unit was compiled from.
func (u *Unit) Filename() string {
	return u.filename
}

// UseCount returns the number of units this unit links against.
func (u *Unit) UseCount() int {
	return len(u.uses)
}

// UseAt returns the name of the linked unit at the given index.
func (u *Unit) UseAt(index int) string {
	return u.uses[index]
}

// Uses returns a copy of the names of all units this unit links against.
func (u *Unit) Uses() []string {
	return copyStrings(u.uses)
}

// ConstantCount returns the number of constant pool entries.
func (u *Unit) ConstantCount() int {
	return len(u.constants)
}

// ConstantAt returns the constant pool entry at the given index.
func (u *Unit) ConstantAt(index int) Constant {
	return u.constants[index]
}

// MethodCount returns the number of methods declared by the unit.
func (u *Unit) MethodCount() int {
	return len(u.methods)
}

// MethodAt returns the method at the given index, in declaration order.
func (u *Unit) MethodAt(index int) *Method {
	return u.methods[index]
}

// Method returns the named method, if the unit declares it.
func (u *Unit) Method(name string) (*Method, bool) {
	m, ok := u.methodIndex[name]
	return m, ok
}

// Method is the compiled body of a single unit method. The first NumParams
// local slots hold the method's parameters. It is immutable after creation.
type Method struct {
	name         string
	numParams    int
	localNames   []string
	instructions []op.Code
}

// MethodParams contains parameters for creating a new Method.
type MethodParams struct {
	Name         string
	NumParams    int
	LocalNames   []string
	Instructions []op.Code
}

// NewMethod creates a new immutable Method from the given parameters.
// Input slices are copied to ensure immutability.
func NewMethod(params MethodParams) *Method {
	return &Method{
		name:         params.Name,
		numParams:    params.NumParams,
		localNames:   copyStrings(params.LocalNames),
		instructions: copyInstructions(params.Instructions),
	}
}

// Name returns the method name.
func (m *Method) Name() string {
	return m.name
}

// NumParams returns the number of parameters the method declares.
func (m *Method) NumParams() int {
	return m.numParams
}

// NumLocals returns the number of local slots the method requires,
// including its parameters.
func (m *Method) NumLocals() int {
	return len(m.localNames)
}

// LocalNameAt returns the name of the local variable in the given slot.
func (m *Method) LocalNameAt(index int) string {
	return m.localNames[index]
}

// ParamNames returns a copy of the method's parameter names.
func (m *Method) ParamNames() []string {
	return copyStrings(m.localNames[:m.numParams])
}

// InstructionCount returns the number of instruction slots, counting both
// opcodes and operands.
func (m *Method) InstructionCount() int {
	return len(m.instructions)
}

// InstructionAt returns the instruction slot at the given index.
func (m *Method) InstructionAt(index int) op.Code {
	return m.instructions[index]
}

func copyStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func copyConstants(s []Constant) []Constant {
	if len(s) == 0 {
		return nil
	}
	out := make([]Constant, len(s))
	copy(out, s)
	return out
}

func copyMethods(s []*Method) []*Method {
	if len(s) == 0 {
		return nil
	}
	out := make([]*Method, len(s))
	copy(out, s)
	return out
}

func copyInstructions(s []op.Code) []op.Code {
	if len(s) == 0 {
		return nil
	}
	out := make([]op.Code, len(s))
	copy(out, s)
	return out
}
