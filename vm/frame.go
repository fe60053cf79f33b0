package vm

import (
	"github.com/understudy-io/understudy/bytecode"
)

// DefaultFrameLocals is the number of local variables that can be stored
// directly in the frame's fixed storage array, avoiding heap allocation.
const DefaultFrameLocals = 8

type frame struct {
	unit       *Executable
	method     *bytecode.Method
	returnAddr int
	returnSp   int
	storage    [DefaultFrameLocals]Value
	locals     []Value
	extended   []Value
}

// activate prepares the frame to run a method, saving the caller's
// instruction and stack pointers. Local slots start out nil.
func (f *frame) activate(unit *Executable, method *bytecode.Method, returnAddr, returnSp int) {
	f.unit = unit
	f.method = method
	f.returnAddr = returnAddr
	f.returnSp = returnSp

	count := method.NumLocals()
	if count > DefaultFrameLocals {
		// Reuse the extended slice from a previous activation if it is
		// large enough.
		if cap(f.extended) >= count {
			f.extended = f.extended[:count]
			for i := range f.extended {
				f.extended[i] = Value{}
			}
		} else {
			f.extended = make([]Value, count)
		}
		f.locals = f.extended
	} else {
		for i := 0; i < count; i++ {
			f.storage[i] = Value{}
		}
		f.locals = f.storage[:count]
	}
}
