package bytecode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mabhi256/jlinkcheck/internal/descriptor"
	"github.com/mabhi256/jlinkcheck/internal/model"
)

// Owners whose signature-polymorphic methods are linked by the JVM itself,
// so the descriptor at the call site never matches a real declaration
var intrinsicOwners = map[string]struct{}{
	"java/lang/invoke/MethodHandle": {},
	"java/lang/invoke/VarHandle":    {},
}

// Decoder turns classfiles into DeclaredClass values.
// It is safe for concurrent use as long as the cache is.
type Decoder struct {
	cache *descriptor.Cache
}

func NewDecoder(cache *descriptor.Cache) *Decoder {
	if cache == nil {
		cache = descriptor.NewCache(0)
	}
	return &Decoder{cache: cache}
}

func (d *Decoder) Cache() *descriptor.Cache {
	return d.cache
}

func (d *Decoder) Decode(data []byte) (*model.DeclaredClass, error) {
	cf, err := ParseClassFile(data)
	if err != nil {
		decodeErr := &DecodeError{Err: err}
		if cf != nil {
			decodeErr.Class = strings.ReplaceAll(cf.ThisClass, "/", ".")
		}
		var memberErr *MemberError
		if errors.As(err, &memberErr) && memberErr.IsMethod {
			decodeErr.Method = memberErr.Name + memberErr.Descriptor
		}
		return nil, decodeErr
	}
	return d.DecodeClassFile(cf)
}

// DecodeClassFile builds a DeclaredClass from an already parsed classfile
func (d *Decoder) DecodeClassFile(cf *ClassFile) (*model.DeclaredClass, error) {
	fail := func(method string, err error) error {
		return &DecodeError{Class: strings.ReplaceAll(cf.ThisClass, "/", "."), Method: method, Err: err}
	}

	name, err := d.cache.ParseClassName(cf.ThisClass)
	if err != nil {
		return nil, fail("", err)
	}
	builder := model.NewClassBuilder(name)

	// java/lang/Object has no super_class, so it ends up with no parents
	if cf.SuperClass != "" {
		super, err := d.cache.ParseClassName(cf.SuperClass)
		if err != nil {
			return nil, fail("", fmt.Errorf("super class: %w", err))
		}
		builder.Parents(super)
	}
	for _, iface := range cf.Interfaces {
		parent, err := d.cache.ParseClassName(iface)
		if err != nil {
			return nil, fail("", fmt.Errorf("interface: %w", err))
		}
		builder.Parents(parent)
	}

	for _, f := range cf.Fields {
		field, err := d.cache.ParseField(f.Name, f.Descriptor)
		if err != nil {
			return nil, fail("", err)
		}
		builder.Fields(field)
	}

	for i := range cf.Methods {
		m := &cf.Methods[i]
		declared, loads, err := d.decodeMethod(cf.Pool, m)
		if err != nil {
			return nil, fail(m.Name+m.Descriptor, err)
		}
		builder.Loads(loads...)
		if err := builder.AddMethod(declared); err != nil {
			return nil, fail(m.Name+m.Descriptor, err)
		}
	}

	return builder.Build(), nil
}

// methodWalker collects the outgoing edges of one method body
type methodWalker struct {
	cache    *descriptor.Cache
	pool     *ConstantPool
	handlers []ExceptionHandler
	lines    map[int]int

	line   int
	calls  []model.CalledMethod
	fields []model.AccessedField
	loads  []descriptor.ClassType
}

func (d *Decoder) decodeMethod(pool *ConstantPool, m *MemberInfo) (*model.DeclaredMethod, []descriptor.ClassType, error) {
	var desc descriptor.Method
	if m.Name == descriptor.ClassInit.Name() && m.Descriptor == descriptor.ClassInit.RawDescriptor() {
		desc = descriptor.ClassInit
	} else {
		var err error
		if desc, err = d.cache.ParseMethod(m.Descriptor, m.Name, m.IsStatic()); err != nil {
			return nil, nil, err
		}
	}

	declared := &model.DeclaredMethod{Descriptor: desc}
	if m.Code == nil {
		return declared, nil, nil
	}

	w := &methodWalker{
		cache:    d.cache,
		pool:     pool,
		handlers: m.Code.ExceptionTable,
		lines:    make(map[int]int, len(m.Code.LineNumbers)),
	}
	// The table may list a pc more than once; the last entry wins
	for _, ln := range m.Code.LineNumbers {
		w.lines[int(ln.StartPC)] = int(ln.Line)
	}

	if err := ForEachInstruction(m.Code.Code, w.visit); err != nil {
		return nil, nil, err
	}

	declared.Line = w.line
	declared.Calls = w.calls
	declared.Fields = w.fields
	return declared, w.loads, nil
}

func (w *methodWalker) visit(insn Instruction) error {
	if line, ok := w.lines[insn.PC]; ok {
		w.line = line
	}

	switch insn.Opcode {
	case OpInvokeVirtual, OpInvokeSpecial, OpInvokeStatic, OpInvokeInterface:
		return w.visitInvoke(insn)
	case OpGetStatic, OpPutStatic, OpGetField, OpPutField:
		return w.visitFieldAccess(insn)
	case OpLdc:
		return w.visitLdc(uint16(insn.U1()))
	case OpLdcW:
		return w.visitLdc(insn.U2())
	}
	return nil
}

func (w *methodWalker) visitInvoke(insn Instruction) error {
	ref, err := w.pool.MemberRef(insn.U2())
	if err != nil {
		return fmt.Errorf("invoke at pc %d: %w", insn.PC, err)
	}

	// Array methods (clone and Object's) are not modelled
	if isArrayOwner(ref.Owner) {
		return nil
	}
	if _, ok := intrinsicOwners[ref.Owner]; ok {
		return nil
	}

	owner, err := w.cache.ParseClassName(ref.Owner)
	if err != nil {
		return fmt.Errorf("invoke at pc %d: %w", insn.PC, err)
	}
	method, err := w.cache.ParseMethod(ref.Descriptor, ref.Name, insn.Opcode == OpInvokeStatic)
	if err != nil {
		return fmt.Errorf("invoke at pc %d: %w", insn.PC, err)
	}

	caught, err := w.caughtAt(insn.PC)
	if err != nil {
		return err
	}

	w.calls = append(w.calls, model.CalledMethod{
		Owner:            owner,
		Method:           method,
		Line:             w.line,
		CaughtExceptions: caught,
	})
	return nil
}

func (w *methodWalker) visitFieldAccess(insn Instruction) error {
	ref, err := w.pool.MemberRef(insn.U2())
	if err != nil {
		return fmt.Errorf("field access at pc %d: %w", insn.PC, err)
	}
	if isArrayOwner(ref.Owner) {
		return nil
	}

	owner, err := w.cache.ParseClassName(ref.Owner)
	if err != nil {
		return fmt.Errorf("field access at pc %d: %w", insn.PC, err)
	}
	field, err := w.cache.ParseField(ref.Name, ref.Descriptor)
	if err != nil {
		return fmt.Errorf("field access at pc %d: %w", insn.PC, err)
	}

	caught, err := w.caughtAt(insn.PC)
	if err != nil {
		return err
	}

	w.fields = append(w.fields, model.AccessedField{
		Owner:            owner,
		Field:            field,
		IsStatic:         insn.Opcode == OpGetStatic || insn.Opcode == OpPutStatic,
		Line:             w.line,
		CaughtExceptions: caught,
	})
	return nil
}

// visitLdc records class literals such as Foo.class or Foo[].class
func (w *methodWalker) visitLdc(index uint16) error {
	c, err := w.pool.Get(index)
	if err != nil {
		return fmt.Errorf("ldc: %w", err)
	}
	if c.Tag != TagClass {
		return nil
	}

	name, err := w.pool.Utf8(c.Index1)
	if err != nil {
		return fmt.Errorf("ldc: %w", err)
	}

	if !isArrayOwner(name) {
		ct, err := w.cache.ParseClassName(name)
		if err != nil {
			return fmt.Errorf("ldc: %w", err)
		}
		w.loads = append(w.loads, ct)
		return nil
	}

	t, err := w.cache.ParseType(name)
	if err != nil {
		return fmt.Errorf("ldc: %w", err)
	}
	arr, ok := t.(descriptor.ArrayType)
	if !ok {
		return nil
	}
	// int[].class loads nothing beyond the platform
	if ct, ok := arr.Element().(descriptor.ClassType); ok {
		w.loads = append(w.loads, ct)
	}
	return nil
}

// caughtAt returns the sorted catch types of every handler guarding pc
func (w *methodWalker) caughtAt(pc int) ([]descriptor.ClassType, error) {
	var caught []descriptor.ClassType
	for _, h := range w.handlers {
		if h.CatchType == "" || !h.Protects(pc) {
			continue
		}
		ct, err := w.cache.ParseClassName(h.CatchType)
		if err != nil {
			return nil, fmt.Errorf("catch type: %w", err)
		}
		caught = append(caught, ct)
	}
	if len(caught) == 0 {
		return nil, nil
	}
	return model.SortCaught(caught), nil
}

func isArrayOwner(name string) bool {
	return strings.HasPrefix(name, "[")
}
