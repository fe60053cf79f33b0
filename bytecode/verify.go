package bytecode

import "github.com/understudy-io/understudy/op"

// Verify checks the structural integrity of a unit: method names are unique,
// instruction streams are well formed, and all operand references are in
// range. Units produced by the compiler always verify; this guards against
// hand-built or corrupted containers reaching the interpreter.
func Verify(u *Unit) error {
	if u.name == "" {
		return NewFormatError("unit name is empty")
	}
	uses := make(map[string]bool, len(u.uses))
	for _, use := range u.uses {
		if use == "" {
			return NewFormatError("unit %q has an empty uses entry", u.name)
		}
		uses[use] = true
	}
	seen := make(map[string]bool, len(u.methods))
	for _, m := range u.methods {
		if m.name == "" {
			return NewFormatError("unit %q has a method with an empty name", u.name)
		}
		if seen[m.name] {
			return NewFormatError("unit %q declares method %q twice", u.name, m.name)
		}
		seen[m.name] = true
		if m.numParams < 0 || m.numParams > len(m.localNames) {
			return NewFormatError(
				"method %q declares %d params but only %d locals",
				m.name, m.numParams, len(m.localNames))
		}
		if err := verifyInstructions(u, m, uses); err != nil {
			return err
		}
	}
	return nil
}

func verifyInstructions(u *Unit, m *Method, uses map[string]bool) error {
	n := len(m.instructions)
	for i := 0; i < n; {
		code := m.instructions[i]
		info := op.GetInfo(code)
		if info.Name == "" {
			return NewFormatError("unknown opcode %d at offset %d in method %q",
				code, i, m.name)
		}
		if i+info.OperandCount >= n && info.OperandCount > 0 {
			return NewFormatError("truncated instruction stream in method %q", m.name)
		}
		switch code {
		case op.LoadConst:
			if err := checkConstIndex(u, m, i); err != nil {
				return err
			}
		case op.Call:
			if err := checkConstKind(u, m, i, ConstString,
				"call target must be a string constant"); err != nil {
				return err
			}
		case op.CallUnit:
			if err := checkConstKind(u, m, i, ConstMethodRef,
				"call target must be a method ref constant"); err != nil {
				return err
			}
			ref := u.constants[m.instructions[i+1]]
			if !uses[ref.Unit] {
				return NewFormatError(
					"method %q calls unit %q which is not declared in uses",
					m.name, ref.Unit)
			}
		case op.LoadFast, op.StoreFast:
			if slot := int(m.instructions[i+1]); slot >= len(m.localNames) {
				return NewFormatError("local slot %d out of range in method %q",
					slot, m.name)
			}
		case op.JumpForward, op.PopJumpForwardIfFalse, op.PopJumpForwardIfTrue:
			delta := int(m.instructions[i+1])
			if delta == 0 || i+delta >= n {
				return NewFormatError(
					"jump target %d out of range in method %q", i+delta, m.name)
			}
		case op.JumpBackward:
			delta := int(m.instructions[i+1])
			if delta == 0 || i-delta < 0 {
				return NewFormatError(
					"jump target %d out of range in method %q", i-delta, m.name)
			}
		}
		i += 1 + info.OperandCount
	}
	return nil
}

func checkConstIndex(u *Unit, m *Method, i int) error {
	if idx := int(m.instructions[i+1]); idx >= len(u.constants) {
		return NewFormatError("constant index %d out of range in method %q",
			idx, m.name)
	}
	return nil
}

func checkConstKind(u *Unit, m *Method, i int, kind ConstKind, msg string) error {
	if err := checkConstIndex(u, m, i); err != nil {
		return err
	}
	if c := u.constants[m.instructions[i+1]]; c.Kind != kind {
		return NewFormatError("%s in method %q", msg, m.name)
	}
	return nil
}
