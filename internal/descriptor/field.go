package descriptor

// Field identifies a field by name and type. It is comparable and can be used as a set key.
type Field struct {
	name string
	typ  Type
}

func NewField(name string, typ Type) Field {
	return Field{name: name, typ: typ}
}

func (f Field) Name() string   { return f.name }
func (f Field) Type() Type     { return f.typ }
func (f Field) String() string { return f.typ.String() + " " + f.name }
