package linkage

import (
	"fmt"

	"github.com/mabhi256/jlinkcheck/internal/descriptor"
)

type Category int

const (
	ClassNotFound Category = iota
	MethodSignatureNotFound
	FieldNotFound
)

var categoryNames = map[Category]string{
	ClassNotFound:           "class-not-found",
	MethodSignatureNotFound: "method-not-found",
	FieldNotFound:           "field-not-found",
}

func Categories() []Category {
	return []Category{ClassNotFound, MethodSignatureNotFound, FieldNotFound}
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Title is the heading used in reports
func (c Category) Title() string {
	switch c {
	case ClassNotFound:
		return "Class not found"
	case MethodSignatureNotFound:
		return "Method not found"
	case FieldNotFound:
		return "Field not found"
	default:
		return c.String()
	}
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(text []byte) error {
	for cat, name := range categoryNames {
		if name == string(text) {
			*c = cat
			return nil
		}
	}
	return fmt.Errorf("unknown conflict category %q", text)
}

// Dependency is the call site or field access a conflict is about.
// Exactly one of TargetMethod and TargetField is set.
type Dependency struct {
	FromClass  descriptor.ClassType
	FromMethod descriptor.Method
	Line       int

	TargetClass  descriptor.ClassType
	TargetMethod *descriptor.Method
	TargetField  *descriptor.Field
}

func (d Dependency) IsField() bool {
	return d.TargetField != nil
}

// Source renders the calling side, "com.Root.main(java.lang.String[]):12"
func (d Dependency) Source() string {
	s := fmt.Sprintf("%s.%s", d.FromClass, d.FromMethod.PrettyWithoutReturn())
	if d.Line > 0 {
		s = fmt.Sprintf("%s:%d", s, d.Line)
	}
	return s
}

// Target renders the referenced member, "com.d.Foo.foo()" or "com.d.Foo.count"
func (d Dependency) Target() string {
	switch {
	case d.TargetMethod != nil:
		return fmt.Sprintf("%s.%s", d.TargetClass, d.TargetMethod.PrettyWithoutReturn())
	case d.TargetField != nil:
		return fmt.Sprintf("%s.%s", d.TargetClass, d.TargetField.Name())
	default:
		return d.TargetClass.String()
	}
}

// Conflict is one predicted linkage error
type Conflict struct {
	Category   Category
	Dependency Dependency
	UsedBy     string // artifact whose code makes the reference
	ExistsIn   string // artifact supplying the target, or model.UnknownArtifactName
	Reason     string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s: %s (used by %s, from %s)", c.Category.Title(), c.Dependency.Target(), c.UsedBy, c.Dependency.Source())
}
