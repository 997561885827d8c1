package mdr

import "fmt"

// InvalidInputError reports a shape or count mismatch in the run inputs.
// It is raised before the first iteration starts; no partial output exists
// when it is returned.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// RegistrationError reports a registration engine failure for a single
// frame. It is fatal to the run: an unregistered frame would silently
// corrupt every subsequent model fit, so the loop stops instead of
// continuing with a poisoned stack.
type RegistrationError struct {
	Frame     int
	Iteration int
	Err       error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration failed for frame %d at iteration %d: %v", e.Frame, e.Iteration, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// AssemblyError reports a shape mismatch between accumulated products at
// result-assembly time. It indicates an internal invariant violation and
// should never occur given correct component behavior.
type AssemblyError struct {
	Reason string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("result assembly: %s", e.Reason)
}
