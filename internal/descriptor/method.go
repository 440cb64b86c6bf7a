package descriptor

import (
	"slices"
	"strings"
)

// MethodKey identifies a method within a class: name plus parameter and return types.
// The static flag is deliberately not part of it.
type MethodKey string

// Method describes a method signature. Two methods are Equal when name, parameters
// and return type match; IsStatic is compared separately by callers.
type Method struct {
	name   string
	params []Type
	ret    Type
	static bool
	raw    string
}

// ClassInit is the static initializer, used for "class must be loaded and initialized" edges
var ClassInit = Method{name: "<clinit>", ret: Void, static: true, raw: "()V"}

// NewMethod builds a method descriptor from already-parsed parts
func NewMethod(name string, ret Type, params []Type, isStatic bool) Method {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range params {
		sb.WriteString(p.Raw())
	}
	sb.WriteByte(')')
	sb.WriteString(ret.Raw())

	return Method{
		name:   name,
		params: slices.Clone(params),
		ret:    ret,
		static: isStatic,
		raw:    sb.String(),
	}
}

func (m Method) Name() string          { return m.name }
func (m Method) ReturnType() Type      { return m.ret }
func (m Method) IsStatic() bool        { return m.static }
func (m Method) Params() []Type        { return slices.Clone(m.params) }
func (m Method) ParamCount() int       { return len(m.params) }
func (m Method) RawDescriptor() string { return m.raw }

// Key returns the identity of m inside a class' method table
func (m Method) Key() MethodKey {
	return MethodKey(m.name + m.raw)
}

// Equal compares name, parameters and return type, ignoring static-ness
func (m Method) Equal(o Method) bool {
	return m.Key() == o.Key()
}

// WithStatic returns a copy of m with the given static flag
func (m Method) WithStatic(isStatic bool) Method {
	m.static = isStatic
	return m
}

// PrettyWithoutReturn renders "name(int, java.lang.String)"
func (m Method) PrettyWithoutReturn() string {
	parts := make([]string, len(m.params))
	for i, p := range m.params {
		parts[i] = p.String()
	}
	return m.name + "(" + strings.Join(parts, ", ") + ")"
}

// String renders "static void name(int)" style signatures
func (m Method) String() string {
	s := m.ret.String() + " " + m.PrettyWithoutReturn()
	if m.static {
		return "static " + s
	}
	return s
}
