package bytecode

import "github.com/understudy-io/understudy/op"

// InstructionIter iterates over the instructions of a compiled method.
type InstructionIter struct {
	method *Method
	pos    int
}

// NewInstructionIter creates a new instruction iterator for the given method.
func NewInstructionIter(method *Method) *InstructionIter {
	return &InstructionIter{method: method}
}

// Next returns the next instruction and its operands.
// Returns false when there are no more instructions.
func (i *InstructionIter) Next() ([]op.Code, bool) {
	if i.pos >= i.method.InstructionCount() {
		return nil, false
	}
	opcode := i.method.InstructionAt(i.pos)
	i.pos++

	info := op.GetInfo(opcode)
	if info.OperandCount == 0 {
		return []op.Code{opcode}, true
	}
	instr := make([]op.Code, info.OperandCount+1)
	instr[0] = opcode

	for j := 0; j < info.OperandCount; j++ {
		if i.pos >= i.method.InstructionCount() {
			return instr[:j+1], true
		}
		instr[j+1] = i.method.InstructionAt(i.pos)
		i.pos++
	}
	return instr, true
}

// All returns all instructions as a newly allocated slice.
// This is a convenience method that collects all results from Next().
func (i *InstructionIter) All() [][]op.Code {
	var results [][]op.Code
	for {
		instr, ok := i.Next()
		if !ok {
			break
		}
		results = append(results, instr)
	}
	return results
}
