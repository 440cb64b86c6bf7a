package model

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/mabhi256/jlinkcheck/internal/descriptor"
)

// ErrDuplicateMethod signals two methods with the same descriptor in one class
var ErrDuplicateMethod = errors.New("duplicate method")

// CalledMethod is an outgoing invocation from a method body
type CalledMethod struct {
	Owner  descriptor.ClassType
	Method descriptor.Method // static flag reflects the invoke instruction
	Line   int

	// Exception types of the catch blocks enclosing the call site, sorted by name
	CaughtExceptions []descriptor.ClassType
}

func (c CalledMethod) IsStatic() bool { return c.Method.IsStatic() }

// Catches reports whether any enclosing handler catches one of the given types
func (c CalledMethod) Catches(types ...descriptor.ClassType) bool {
	return catchesAny(c.CaughtExceptions, types)
}

func (c CalledMethod) String() string {
	return fmt.Sprintf("%s.%s", c.Owner, c.Method.PrettyWithoutReturn())
}

// AccessedField is an outgoing getfield/putfield/getstatic/putstatic
type AccessedField struct {
	Owner    descriptor.ClassType
	Field    descriptor.Field
	IsStatic bool
	Line     int

	CaughtExceptions []descriptor.ClassType
}

func (f AccessedField) Catches(types ...descriptor.ClassType) bool {
	return catchesAny(f.CaughtExceptions, types)
}

func (f AccessedField) String() string {
	return fmt.Sprintf("%s.%s", f.Owner, f.Field.Name())
}

func catchesAny(caught, types []descriptor.ClassType) bool {
	for _, t := range types {
		if slices.Contains(caught, t) {
			return true
		}
	}
	return false
}

// SortCaught sorts and deduplicates a caught-exception list in place
func SortCaught(caught []descriptor.ClassType) []descriptor.ClassType {
	slices.SortFunc(caught, compareClass)
	return slices.Compact(caught)
}

// DeclaredMethod is a method body together with its outgoing edges
type DeclaredMethod struct {
	Descriptor descriptor.Method
	Line       int // line of the last instruction seen, best effort
	Calls      []CalledMethod
	Fields     []AccessedField
}

func (m *DeclaredMethod) IsStatic() bool { return m.Descriptor.IsStatic() }

// DeclaredClass is the decoded shape of one class. It is never modified after Build.
type DeclaredClass struct {
	name    descriptor.ClassType
	parents []descriptor.ClassType
	loaded  []descriptor.ClassType
	methods map[descriptor.MethodKey]*DeclaredMethod
	fields  map[descriptor.Field]struct{}
}

func (c *DeclaredClass) Name() descriptor.ClassType { return c.name }

// Parents returns the superclass and interfaces, sorted by name
func (c *DeclaredClass) Parents() []descriptor.ClassType { return slices.Clone(c.parents) }

// LoadedClasses returns classes referenced through class literals
func (c *DeclaredClass) LoadedClasses() []descriptor.ClassType { return slices.Clone(c.loaded) }

// Method looks up a declared method by identity, ignoring static-ness
func (c *DeclaredClass) Method(m descriptor.Method) (*DeclaredMethod, bool) {
	dm, ok := c.methods[m.Key()]
	return dm, ok
}

// Methods returns declared methods ordered by name, then descriptor
func (c *DeclaredClass) Methods() []*DeclaredMethod {
	methods := make([]*DeclaredMethod, 0, len(c.methods))
	for _, m := range c.methods {
		methods = append(methods, m)
	}
	slices.SortFunc(methods, func(a, b *DeclaredMethod) int {
		return cmp.Or(
			cmp.Compare(a.Descriptor.Name(), b.Descriptor.Name()),
			cmp.Compare(a.Descriptor.RawDescriptor(), b.Descriptor.RawDescriptor()),
		)
	})
	return methods
}

func (c *DeclaredClass) MethodCount() int { return len(c.methods) }

func (c *DeclaredClass) HasField(f descriptor.Field) bool {
	_, ok := c.fields[f]
	return ok
}

// Fields returns declared fields ordered by name, then type
func (c *DeclaredClass) Fields() []descriptor.Field {
	fields := make([]descriptor.Field, 0, len(c.fields))
	for f := range c.fields {
		fields = append(fields, f)
	}
	slices.SortFunc(fields, func(a, b descriptor.Field) int {
		return cmp.Or(cmp.Compare(a.Name(), b.Name()), cmp.Compare(a.Type().Raw(), b.Type().Raw()))
	})
	return fields
}

// ClassBuilder accumulates the parts of a DeclaredClass
type ClassBuilder struct {
	class *DeclaredClass
}

func NewClassBuilder(name descriptor.ClassType) *ClassBuilder {
	return &ClassBuilder{
		class: &DeclaredClass{
			name:    name,
			methods: make(map[descriptor.MethodKey]*DeclaredMethod),
			fields:  make(map[descriptor.Field]struct{}),
		},
	}
}

func (b *ClassBuilder) Parents(parents ...descriptor.ClassType) *ClassBuilder {
	b.class.parents = append(b.class.parents, parents...)
	return b
}

func (b *ClassBuilder) Loads(classes ...descriptor.ClassType) *ClassBuilder {
	b.class.loaded = append(b.class.loaded, classes...)
	return b
}

func (b *ClassBuilder) Fields(fields ...descriptor.Field) *ClassBuilder {
	for _, f := range fields {
		b.class.fields[f] = struct{}{}
	}
	return b
}

// AddMethod fails with ErrDuplicateMethod when the descriptor is already present
func (b *ClassBuilder) AddMethod(m *DeclaredMethod) error {
	key := m.Descriptor.Key()
	if _, exists := b.class.methods[key]; exists {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateMethod, m.Descriptor.PrettyWithoutReturn(), b.class.name)
	}
	b.class.methods[key] = m
	return nil
}

// Build finalizes the class. The builder must not be used afterwards.
func (b *ClassBuilder) Build() *DeclaredClass {
	c := b.class
	b.class = nil

	c.parents = sortedClasses(c.parents)
	c.loaded = sortedClasses(c.loaded)
	return c
}

func sortedClasses(classes []descriptor.ClassType) []descriptor.ClassType {
	slices.SortFunc(classes, compareClass)
	return slices.Compact(classes)
}

func compareClass(a, b descriptor.ClassType) int {
	return cmp.Compare(a.Name(), b.Name())
}
