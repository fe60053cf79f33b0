package vm

// Policy screens sensitive builtin operations before they run. Check
// receives the operation name and its subject, such as ("env", "HOME")
// for an environment read. Returning an error aborts the builtin with
// that error, unchanged. Machines without a policy allow everything.
type Policy interface {
	Check(op, name string) error
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(op, name string) error

// Check calls the wrapped function.
func (f PolicyFunc) Check(op, name string) error {
	return f(op, name)
}

func (m *Machine) checkPolicy(op, name string) error {
	if m.policy == nil {
		return nil
	}
	return m.policy.Check(op, name)
}
