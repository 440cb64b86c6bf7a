// Package classtest assembles small classfiles for tests.
package classtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Java 8 unless overridden with Version
const DefaultMajorVersion = 52

const (
	AccPublic   uint16 = 0x0001
	AccStatic   uint16 = 0x0008
	AccAbstract uint16 = 0x0400
)

// ClassWriter builds a classfile with a deduplicated constant pool.
// Names use internal form ("com/example/Foo").
type ClassWriter struct {
	major      uint16
	access     uint16
	pool       [][]byte
	slots      uint16
	index      map[string]uint16
	this       uint16
	super      uint16
	interfaces []uint16
	fields     [][]byte
	methods    [][]byte
}

// New starts a public class. An empty super leaves super_class at 0, as java/lang/Object does.
func New(name, super string, interfaces ...string) *ClassWriter {
	w := &ClassWriter{
		major:  DefaultMajorVersion,
		access: AccPublic,
		slots:  1,
		index:  make(map[string]uint16),
	}
	w.this = w.Class(name)
	if super != "" {
		w.super = w.Class(super)
	}
	for _, iface := range interfaces {
		w.interfaces = append(w.interfaces, w.Class(iface))
	}
	return w
}

func (w *ClassWriter) Version(major uint16) *ClassWriter {
	w.major = major
	return w
}

func (w *ClassWriter) add(key string, slots uint16, entry []byte) uint16 {
	if i, ok := w.index[key]; ok {
		return i
	}
	i := w.slots
	w.pool = append(w.pool, entry)
	w.slots += slots
	w.index[key] = i
	return i
}

func u2(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

func (w *ClassWriter) Utf8(s string) uint16 {
	entry := append([]byte{1}, u2(uint16(len(s)))...)
	return w.add("utf8:"+s, 1, append(entry, s...))
}

func (w *ClassWriter) Class(name string) uint16 {
	return w.add("class:"+name, 1, append([]byte{7}, u2(w.Utf8(name))...))
}

func (w *ClassWriter) StringConst(s string) uint16 {
	return w.add("string:"+s, 1, append([]byte{8}, u2(w.Utf8(s))...))
}

func (w *ClassWriter) Integer(v int32) uint16 {
	return w.add(fmt.Sprintf("int:%d", v), 1, binary.BigEndian.AppendUint32([]byte{3}, uint32(v)))
}

// Long takes two pool slots
func (w *ClassWriter) Long(v int64) uint16 {
	return w.add(fmt.Sprintf("long:%d", v), 2, binary.BigEndian.AppendUint64([]byte{5}, uint64(v)))
}

func (w *ClassWriter) NameAndType(name, desc string) uint16 {
	entry := append([]byte{12}, u2(w.Utf8(name))...)
	return w.add("nat:"+name+":"+desc, 1, append(entry, u2(w.Utf8(desc))...))
}

func (w *ClassWriter) ref(tag byte, owner, name, desc string) uint16 {
	entry := append([]byte{tag}, u2(w.Class(owner))...)
	entry = append(entry, u2(w.NameAndType(name, desc))...)
	return w.add(fmt.Sprintf("ref%d:%s.%s:%s", tag, owner, name, desc), 1, entry)
}

func (w *ClassWriter) Fieldref(owner, name, desc string) uint16 {
	return w.ref(9, owner, name, desc)
}

func (w *ClassWriter) Methodref(owner, name, desc string) uint16 {
	return w.ref(10, owner, name, desc)
}

func (w *ClassWriter) InterfaceMethodref(owner, name, desc string) uint16 {
	return w.ref(11, owner, name, desc)
}

func (w *ClassWriter) Field(access uint16, name, desc string) *ClassWriter {
	var b bytes.Buffer
	b.Write(u2(access))
	b.Write(u2(w.Utf8(name)))
	b.Write(u2(w.Utf8(desc)))
	b.Write(u2(0))
	w.fields = append(w.fields, b.Bytes())
	return w
}

// Method adds a method. A nil body produces a method without a Code attribute.
func (w *ClassWriter) Method(access uint16, name, desc string, body func(c *Code)) *ClassWriter {
	var b bytes.Buffer
	b.Write(u2(access))
	b.Write(u2(w.Utf8(name)))
	b.Write(u2(w.Utf8(desc)))

	if body == nil {
		b.Write(u2(0))
		w.methods = append(w.methods, b.Bytes())
		return w
	}

	c := &Code{w: w}
	body(c)
	attr := c.attribute()

	b.Write(u2(1))
	b.Write(u2(w.Utf8("Code")))
	b.Write(binary.BigEndian.AppendUint32(nil, uint32(len(attr))))
	b.Write(attr)
	w.methods = append(w.methods, b.Bytes())
	return w
}

func (w *ClassWriter) Bytes() []byte {
	var b bytes.Buffer
	b.Write([]byte{0xCA, 0xFE, 0xBA, 0xBE})
	b.Write(u2(0))
	b.Write(u2(w.major))

	b.Write(u2(w.slots))
	for _, entry := range w.pool {
		b.Write(entry)
	}

	b.Write(u2(w.access))
	b.Write(u2(w.this))
	b.Write(u2(w.super))

	b.Write(u2(uint16(len(w.interfaces))))
	for _, i := range w.interfaces {
		b.Write(u2(i))
	}

	b.Write(u2(uint16(len(w.fields))))
	for _, f := range w.fields {
		b.Write(f)
	}

	b.Write(u2(uint16(len(w.methods))))
	for _, m := range w.methods {
		b.Write(m)
	}

	b.Write(u2(0))
	return b.Bytes()
}

type handler struct {
	start, end, target uint16
	catchType          string
}

type lineEntry struct {
	pc, line uint16
}

// Code assembles a method body
type Code struct {
	w        *ClassWriter
	code     []byte
	handlers []handler
	lines    []lineEntry
}

func (c *Code) PC() int {
	return len(c.code)
}

func (c *Code) Emit(op byte, operands ...byte) *Code {
	c.code = append(c.code, op)
	c.code = append(c.code, operands...)
	return c
}

func (c *Code) emitIndex(op byte, index uint16) *Code {
	return c.Emit(op, u2(index)...)
}

// Line marks the current pc with a source line
func (c *Code) Line(line int) *Code {
	c.lines = append(c.lines, lineEntry{pc: uint16(c.PC()), line: uint16(line)})
	return c
}

// Try protects [start, end) with a handler at target. An empty catch type is a finally block.
func (c *Code) Try(start, end, target int, catchType string) *Code {
	c.handlers = append(c.handlers, handler{
		start:     uint16(start),
		end:       uint16(end),
		target:    uint16(target),
		catchType: catchType,
	})
	return c
}

func (c *Code) InvokeStatic(owner, name, desc string) *Code {
	return c.emitIndex(0xb8, c.w.Methodref(owner, name, desc))
}

func (c *Code) InvokeVirtual(owner, name, desc string) *Code {
	return c.emitIndex(0xb6, c.w.Methodref(owner, name, desc))
}

func (c *Code) InvokeSpecial(owner, name, desc string) *Code {
	return c.emitIndex(0xb7, c.w.Methodref(owner, name, desc))
}

func (c *Code) InvokeInterface(owner, name, desc string, argSlots byte) *Code {
	return c.Emit(0xb9, append(u2(c.w.InterfaceMethodref(owner, name, desc)), argSlots+1, 0)...)
}

func (c *Code) GetStatic(owner, name, desc string) *Code {
	return c.emitIndex(0xb2, c.w.Fieldref(owner, name, desc))
}

func (c *Code) PutStatic(owner, name, desc string) *Code {
	return c.emitIndex(0xb3, c.w.Fieldref(owner, name, desc))
}

func (c *Code) GetField(owner, name, desc string) *Code {
	return c.emitIndex(0xb4, c.w.Fieldref(owner, name, desc))
}

// LdcClass loads a class literal, using ldc_w when the index does not fit a byte
func (c *Code) LdcClass(name string) *Code {
	index := c.w.Class(name)
	if index <= 0xff {
		return c.Emit(0x12, byte(index))
	}
	return c.emitIndex(0x13, index)
}

func (c *Code) LdcString(s string) *Code {
	index := c.w.StringConst(s)
	if index <= 0xff {
		return c.Emit(0x12, byte(index))
	}
	return c.emitIndex(0x13, index)
}

func (c *Code) Pop() *Code    { return c.Emit(0x57) }
func (c *Code) Return() *Code { return c.Emit(0xb1) }

func (c *Code) attribute() []byte {
	var b bytes.Buffer
	b.Write(u2(8)) // max_stack
	b.Write(u2(8)) // max_locals
	b.Write(binary.BigEndian.AppendUint32(nil, uint32(len(c.code))))
	b.Write(c.code)

	b.Write(u2(uint16(len(c.handlers))))
	for _, h := range c.handlers {
		b.Write(u2(h.start))
		b.Write(u2(h.end))
		b.Write(u2(h.target))
		if h.catchType == "" {
			b.Write(u2(0))
		} else {
			b.Write(u2(c.w.Class(h.catchType)))
		}
	}

	if len(c.lines) == 0 {
		b.Write(u2(0))
		return b.Bytes()
	}

	b.Write(u2(1))
	b.Write(u2(c.w.Utf8("LineNumberTable")))
	b.Write(binary.BigEndian.AppendUint32(nil, uint32(2+4*len(c.lines))))
	b.Write(u2(uint16(len(c.lines))))
	for _, ln := range c.lines {
		b.Write(u2(ln.pc))
		b.Write(u2(ln.line))
	}
	return b.Bytes()
}
