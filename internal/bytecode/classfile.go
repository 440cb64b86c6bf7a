package bytecode

import (
	"errors"
	"fmt"
)

/*
*	ClassFile structure described here
*	https://docs.oracle.com/javase/specs/jvms/se21/html/jvms-4.html#jvms-4.1
*
*	u4             magic (0xCAFEBABE)
*	u2             minor_version
*	u2             major_version
*	u2             constant_pool_count
*	cp_info        constant_pool[constant_pool_count-1]
*	u2             access_flags
*	u2             this_class
*	u2             super_class
*	u2             interfaces_count
*	u2             interfaces[interfaces_count]
*	u2             fields_count
*	field_info     fields[fields_count]
*	u2             methods_count
*	method_info    methods[methods_count]
*	u2             attributes_count
*	attribute_info attributes[attributes_count]
 */

const classMagic uint32 = 0xCAFEBABE

// Access flags
const (
	AccPublic    uint16 = 0x0001
	AccStatic    uint16 = 0x0008
	AccInterface uint16 = 0x0200
	AccAbstract  uint16 = 0x0400
	AccModule    uint16 = 0x8000
)

var ErrBadMagic = errors.New("not a classfile")

type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         *ConstantPool
	AccessFlags  uint16
	ThisClass    string   // internal name
	SuperClass   string   // empty for java/lang/Object and module-info
	Interfaces   []string // internal names
	Fields       []MemberInfo
	Methods      []MemberInfo
}

// MemberInfo is a field_info or method_info entry
type MemberInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Code        *CodeAttribute // methods only, nil for abstract and native
}

func (m *MemberInfo) IsStatic() bool {
	return m.AccessFlags&AccStatic != 0
}

type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionHandler
	LineNumbers    []LineNumber
}

// ExceptionHandler protects code in [StartPC, EndPC)
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType string // internal name, empty for finally blocks
}

func (h ExceptionHandler) Protects(pc int) bool {
	return int(h.StartPC) <= pc && pc < int(h.EndPC)
}

type LineNumber struct {
	StartPC uint16
	Line    uint16
}

// PeekVersion reads only the header, so callers can skip classes they cannot verify
func PeekVersion(data []byte) (major, minor uint16, err error) {
	r := NewReader(data)
	magic, err := r.ReadU4()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != classMagic {
		return 0, 0, fmt.Errorf("%w: magic 0x%08X", ErrBadMagic, magic)
	}
	if minor, err = r.ReadU2(); err != nil {
		return 0, 0, fmt.Errorf("failed to read minor version: %w", err)
	}
	if major, err = r.ReadU2(); err != nil {
		return 0, 0, fmt.Errorf("failed to read major version: %w", err)
	}
	return major, minor, nil
}

// ParseClassFile parses the structural parts of a classfile needed for linkage analysis.
// Once this_class is resolved, a failure also returns the partially parsed ClassFile.
func ParseClassFile(data []byte) (*ClassFile, error) {
	major, minor, err := PeekVersion(data)
	if err != nil {
		return nil, err
	}

	r := NewReader(data)
	if err := r.Skip(8); err != nil {
		return nil, err
	}

	cf := &ClassFile{MajorVersion: major, MinorVersion: minor}

	if cf.Pool, err = parseConstantPool(r); err != nil {
		return nil, fmt.Errorf("failed to parse constant pool: %w", err)
	}

	if cf.AccessFlags, err = r.ReadU2(); err != nil {
		return nil, fmt.Errorf("failed to read access flags: %w", err)
	}

	thisIndex, err := r.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("failed to read this_class: %w", err)
	}
	if cf.ThisClass, err = cf.Pool.ClassName(thisIndex); err != nil {
		return nil, fmt.Errorf("failed to resolve this_class: %w", err)
	}

	superIndex, err := r.ReadU2()
	if err != nil {
		return cf, fmt.Errorf("failed to read super_class: %w", err)
	}
	if superIndex != 0 {
		if cf.SuperClass, err = cf.Pool.ClassName(superIndex); err != nil {
			return cf, fmt.Errorf("failed to resolve super_class: %w", err)
		}
	}

	interfaceCount, err := r.ReadU2()
	if err != nil {
		return cf, fmt.Errorf("failed to read interfaces count: %w", err)
	}
	cf.Interfaces = make([]string, 0, interfaceCount)
	for i := 0; i < int(interfaceCount); i++ {
		index, err := r.ReadU2()
		if err != nil {
			return cf, fmt.Errorf("failed to read interface %d: %w", i, err)
		}
		name, err := cf.Pool.ClassName(index)
		if err != nil {
			return cf, fmt.Errorf("failed to resolve interface %d: %w", i, err)
		}
		cf.Interfaces = append(cf.Interfaces, name)
	}

	if cf.Fields, err = parseMembers(r, cf.Pool, false); err != nil {
		return cf, fmt.Errorf("failed to parse fields: %w", err)
	}

	if cf.Methods, err = parseMembers(r, cf.Pool, true); err != nil {
		return cf, fmt.Errorf("failed to parse methods: %w", err)
	}

	// Class-level attributes (SourceFile, InnerClasses, ...) carry nothing we need
	if err := skipAttributes(r); err != nil {
		return cf, fmt.Errorf("failed to parse class attributes: %w", err)
	}

	return cf, nil
}

func parseMembers(r *Reader, pool *ConstantPool, isMethod bool) ([]MemberInfo, error) {
	count, err := r.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("failed to read count: %w", err)
	}

	members := make([]MemberInfo, 0, count)
	for i := 0; i < int(count); i++ {
		member, err := parseMember(r, pool, isMethod)
		if err != nil {
			return nil, &MemberError{
				Name:       member.Name,
				Descriptor: member.Descriptor,
				IsMethod:   isMethod,
				Err:        fmt.Errorf("member %d: %w", i, err),
			}
		}
		members = append(members, member)
	}
	return members, nil
}

/*
parseMember parses a field_info or method_info:

u2             access_flags
u2             name_index
u2             descriptor_index
u2             attributes_count
attribute_info attributes[attributes_count]
*/
func parseMember(r *Reader, pool *ConstantPool, isMethod bool) (MemberInfo, error) {
	var m MemberInfo
	var err error

	if m.AccessFlags, err = r.ReadU2(); err != nil {
		return m, fmt.Errorf("failed to read access flags: %w", err)
	}

	nameIndex, err := r.ReadU2()
	if err != nil {
		return m, fmt.Errorf("failed to read name index: %w", err)
	}
	if m.Name, err = pool.Utf8(nameIndex); err != nil {
		return m, fmt.Errorf("failed to resolve name: %w", err)
	}

	descIndex, err := r.ReadU2()
	if err != nil {
		return m, fmt.Errorf("failed to read descriptor index: %w", err)
	}
	if m.Descriptor, err = pool.Utf8(descIndex); err != nil {
		return m, fmt.Errorf("failed to resolve descriptor of %s: %w", m.Name, err)
	}

	attrCount, err := r.ReadU2()
	if err != nil {
		return m, fmt.Errorf("failed to read attributes count of %s: %w", m.Name, err)
	}

	for i := 0; i < int(attrCount); i++ {
		name, body, err := readAttribute(r, pool)
		if err != nil {
			return m, fmt.Errorf("attribute %d of %s: %w", i, m.Name, err)
		}

		if isMethod && name == "Code" {
			if m.Code, err = parseCode(body, pool); err != nil {
				return m, fmt.Errorf("failed to parse Code of %s%s: %w", m.Name, m.Descriptor, err)
			}
		}
	}

	return m, nil
}

// readAttribute returns an attribute's name and body
func readAttribute(r *Reader, pool *ConstantPool) (string, []byte, error) {
	nameIndex, err := r.ReadU2()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read attribute name: %w", err)
	}
	name, err := pool.Utf8(nameIndex)
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve attribute name: %w", err)
	}

	length, err := r.ReadU4()
	if err != nil {
		return "", nil, fmt.Errorf("failed to read length of %s: %w", name, err)
	}

	body, err := r.ReadNBytes(int(length))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read body of %s: %w", name, err)
	}
	return name, body, nil
}

func skipAttributes(r *Reader) error {
	count, err := r.ReadU2()
	if err != nil {
		return err
	}
	for i := 0; i < int(count); i++ {
		if err := r.Skip(2); err != nil {
			return err
		}
		length, err := r.ReadU4()
		if err != nil {
			return err
		}
		if err := r.Skip(int(length)); err != nil {
			return err
		}
	}
	return nil
}

/*
parseCode parses a Code attribute body:

u2  max_stack
u2  max_locals
u4  code_length
u1  code[code_length]
u2  exception_table_length
{   u2 start_pc; u2 end_pc; u2 handler_pc; u2 catch_type; } exception_table[...]
u2  attributes_count
attribute_info attributes[attributes_count]
*/
func parseCode(body []byte, pool *ConstantPool) (*CodeAttribute, error) {
	r := NewReader(body)
	code := &CodeAttribute{}
	var err error

	if code.MaxStack, err = r.ReadU2(); err != nil {
		return nil, fmt.Errorf("failed to read max_stack: %w", err)
	}
	if code.MaxLocals, err = r.ReadU2(); err != nil {
		return nil, fmt.Errorf("failed to read max_locals: %w", err)
	}

	codeLength, err := r.ReadU4()
	if err != nil {
		return nil, fmt.Errorf("failed to read code_length: %w", err)
	}
	if code.Code, err = r.ReadNBytes(int(codeLength)); err != nil {
		return nil, fmt.Errorf("failed to read code: %w", err)
	}

	handlerCount, err := r.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("failed to read exception table length: %w", err)
	}
	code.ExceptionTable = make([]ExceptionHandler, 0, handlerCount)
	for i := 0; i < int(handlerCount); i++ {
		h, err := parseExceptionHandler(r, pool)
		if err != nil {
			return nil, fmt.Errorf("exception handler %d: %w", i, err)
		}
		code.ExceptionTable = append(code.ExceptionTable, h)
	}

	attrCount, err := r.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("failed to read code attributes count: %w", err)
	}
	for i := 0; i < int(attrCount); i++ {
		name, attrBody, err := readAttribute(r, pool)
		if err != nil {
			return nil, fmt.Errorf("code attribute %d: %w", i, err)
		}
		if name == "LineNumberTable" {
			lines, err := parseLineNumbers(attrBody)
			if err != nil {
				return nil, fmt.Errorf("failed to parse LineNumberTable: %w", err)
			}
			code.LineNumbers = append(code.LineNumbers, lines...)
		}
	}

	return code, nil
}

func parseExceptionHandler(r *Reader, pool *ConstantPool) (ExceptionHandler, error) {
	var h ExceptionHandler
	var err error

	if h.StartPC, err = r.ReadU2(); err != nil {
		return h, err
	}
	if h.EndPC, err = r.ReadU2(); err != nil {
		return h, err
	}
	if h.HandlerPC, err = r.ReadU2(); err != nil {
		return h, err
	}

	catchIndex, err := r.ReadU2()
	if err != nil {
		return h, err
	}
	if catchIndex != 0 {
		if h.CatchType, err = pool.ClassName(catchIndex); err != nil {
			return h, fmt.Errorf("failed to resolve catch type: %w", err)
		}
	}
	return h, nil
}

func parseLineNumbers(body []byte) ([]LineNumber, error) {
	r := NewReader(body)
	count, err := r.ReadU2()
	if err != nil {
		return nil, err
	}

	lines := make([]LineNumber, 0, count)
	for i := 0; i < int(count); i++ {
		startPC, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		line, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		lines = append(lines, LineNumber{StartPC: startPC, Line: line})
	}
	return lines, nil
}
