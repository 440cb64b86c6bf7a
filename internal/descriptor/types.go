package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

/*
*	Field and method descriptors are described in the JVM specification, §4.3
*	https://docs.oracle.com/javase/specs/jvms/se21/html/jvms-4.html#jvms-4.3
 */

// ErrMalformedDescriptor is returned (wrapped) for any raw encoding that is not a valid descriptor
var ErrMalformedDescriptor = errors.New("malformed descriptor")

// Type is one of Primitive, ClassType or ArrayType.
// All variants are comparable values, so == on two Types is structural.
type Type interface {
	// Raw returns the canonical encoded form, e.g. "I", "Ljava/lang/String;", "[[J"
	Raw() string
	// String returns the display form, e.g. "int", "java.lang.String", "long[][]"
	String() string

	isType()
}

type Primitive struct {
	code byte
	name string
}

var (
	Byte    = Primitive{'B', "byte"}
	Short   = Primitive{'S', "short"}
	Int     = Primitive{'I', "int"}
	Long    = Primitive{'J', "long"}
	Float   = Primitive{'F', "float"}
	Double  = Primitive{'D', "double"}
	Boolean = Primitive{'Z', "boolean"}
	Char    = Primitive{'C', "char"}

	// Void is only valid as a method return type
	Void = Primitive{'V', "void"}
)

var primitives = map[byte]Primitive{
	Byte.code:    Byte,
	Short.code:   Short,
	Int.code:     Int,
	Long.code:    Long,
	Float.code:   Float,
	Double.code:  Double,
	Boolean.code: Boolean,
	Char.code:    Char,
}

// Primitives returns the eight field-type primitives in encoding order B S I J F D Z C
func Primitives() []Primitive {
	return []Primitive{Byte, Short, Int, Long, Float, Double, Boolean, Char}
}

func (p Primitive) Code() byte     { return p.code }
func (p Primitive) Raw() string    { return string(p.code) }
func (p Primitive) String() string { return p.name }
func (Primitive) isType()          {}

// ClassType is a reference to a class by its canonical dotted name
type ClassType struct {
	name string
}

// MustClassName builds a ClassType from a dotted or slashed binary name.
// It panics when name is empty or still carries the ';' terminator.
func MustClassName(name string) ClassType {
	ct, err := newClassType(name)
	if err != nil {
		panic(err)
	}
	return ct
}

func newClassType(name string) (ClassType, error) {
	if name == "" {
		return ClassType{}, fmt.Errorf("%w: empty class name", ErrMalformedDescriptor)
	}
	if strings.HasSuffix(name, ";") {
		return ClassType{}, fmt.Errorf("%w: class name %q ends with ';'", ErrMalformedDescriptor, name)
	}
	return ClassType{name: strings.ReplaceAll(name, "/", ".")}, nil
}

// Name returns the dotted class name, e.g. "java.lang.String"
func (c ClassType) Name() string { return c.name }

// InternalName returns the slashed form used inside classfiles, e.g. "java/lang/String"
func (c ClassType) InternalName() string { return strings.ReplaceAll(c.name, ".", "/") }

func (c ClassType) Raw() string    { return "L" + c.InternalName() + ";" }
func (c ClassType) String() string { return c.name }
func (c ClassType) IsZero() bool   { return c.name == "" }
func (ClassType) isType()          {}

// Package returns the package part of the name, or "" for the default package
func (c ClassType) Package() string {
	if i := strings.LastIndexByte(c.name, '.'); i >= 0 {
		return c.name[:i]
	}
	return ""
}

// SimpleName returns the part after the last '.'
func (c ClassType) SimpleName() string {
	if i := strings.LastIndexByte(c.name, '.'); i >= 0 {
		return c.name[i+1:]
	}
	return c.name
}

// ArrayType is an array of a non-array element type with Dimensions() >= 1
type ArrayType struct {
	elem Type
	dims int
}

// NewArrayType wraps elem in dims dimensions. Nested arrays are flattened.
func NewArrayType(elem Type, dims int) ArrayType {
	if inner, ok := elem.(ArrayType); ok {
		return ArrayType{elem: inner.elem, dims: inner.dims + dims}
	}
	return ArrayType{elem: elem, dims: dims}
}

func (a ArrayType) Element() Type   { return a.elem }
func (a ArrayType) Dimensions() int { return a.dims }
func (a ArrayType) Raw() string     { return strings.Repeat("[", a.dims) + a.elem.Raw() }
func (a ArrayType) String() string  { return a.elem.String() + strings.Repeat("[]", a.dims) }
func (ArrayType) isType()           {}

// Equal reports whether a and b describe the same type
func Equal(a, b Type) bool {
	switch x := a.(type) {
	case Primitive:
		y, ok := b.(Primitive)
		return ok && x.code == y.code
	case ClassType:
		y, ok := b.(ClassType)
		return ok && x.name == y.name
	case ArrayType:
		y, ok := b.(ArrayType)
		return ok && x.dims == y.dims && Equal(x.elem, y.elem)
	default:
		return a == nil && b == nil
	}
}

// IsReference reports whether t is a class or array type
func IsReference(t Type) bool {
	_, isPrimitive := t.(Primitive)
	return t != nil && !isPrimitive
}
