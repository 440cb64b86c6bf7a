package bytecode

import "fmt"

// DecodeError carries the class and, when known, the method being decoded
type DecodeError struct {
	Class  string
	Method string
	Err    error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Class == "":
		return fmt.Sprintf("failed to decode classfile: %v", e.Err)
	case e.Method == "":
		return fmt.Sprintf("failed to decode class %s: %v", e.Class, e.Err)
	default:
		return fmt.Sprintf("failed to decode class %s, method %s: %v", e.Class, e.Method, e.Err)
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MemberError locates a parse failure inside a field_info or method_info.
// Name and Descriptor are empty when the failure precedes them.
type MemberError struct {
	Name       string
	Descriptor string
	IsMethod   bool
	Err        error
}

func (e *MemberError) Error() string {
	return e.Err.Error()
}

func (e *MemberError) Unwrap() error {
	return e.Err
}
