package bytecode

import (
	"fmt"
	"unicode"
	"unicode/utf16"
)

/*
*	Constant pool layout described here
*	https://docs.oracle.com/javase/specs/jvms/se21/html/jvms-4.html#jvms-4.4
 */

type ConstantTag uint8

const (
	TagUtf8               ConstantTag = 1
	TagInteger            ConstantTag = 3
	TagFloat              ConstantTag = 4
	TagLong               ConstantTag = 5
	TagDouble             ConstantTag = 6
	TagClass              ConstantTag = 7
	TagString             ConstantTag = 8
	TagFieldref           ConstantTag = 9
	TagMethodref          ConstantTag = 10
	TagInterfaceMethodref ConstantTag = 11
	TagNameAndType        ConstantTag = 12
	TagMethodHandle       ConstantTag = 15
	TagMethodType         ConstantTag = 16
	TagDynamic            ConstantTag = 17
	TagInvokeDynamic      ConstantTag = 18
	TagModule             ConstantTag = 19
	TagPackage            ConstantTag = 20
)

func (t ConstantTag) String() string {
	switch t {
	case TagUtf8:
		return "Utf8"
	case TagInteger:
		return "Integer"
	case TagFloat:
		return "Float"
	case TagLong:
		return "Long"
	case TagDouble:
		return "Double"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagInterfaceMethodref:
		return "InterfaceMethodref"
	case TagNameAndType:
		return "NameAndType"
	case TagMethodHandle:
		return "MethodHandle"
	case TagMethodType:
		return "MethodType"
	case TagDynamic:
		return "Dynamic"
	case TagInvokeDynamic:
		return "InvokeDynamic"
	case TagModule:
		return "Module"
	case TagPackage:
		return "Package"
	default:
		return fmt.Sprintf("ConstantTag(%d)", uint8(t))
	}
}

// Constant is one constant pool slot. Which fields are set depends on Tag:
// Utf8 uses Text; Class, String, MethodType, Module and Package use Index1;
// refs, NameAndType, Dynamic and InvokeDynamic use Index1 and Index2;
// MethodHandle stores the reference kind in Index1 and the reference in Index2;
// numeric constants use Value.
type Constant struct {
	Tag    ConstantTag
	Text   string
	Index1 uint16
	Index2 uint16
	Value  uint64
}

// ConstantPool is indexed from 1; slot 0 and the slot after a Long or Double are empty
type ConstantPool struct {
	entries []Constant
}

// MemberRef is a resolved Fieldref, Methodref or InterfaceMethodref
type MemberRef struct {
	Tag        ConstantTag
	Owner      string // internal name, or an array descriptor
	Name       string
	Descriptor string
}

func parseConstantPool(r *Reader) (*ConstantPool, error) {
	count, err := r.ReadU2()
	if err != nil {
		return nil, fmt.Errorf("failed to read constant pool count: %w", err)
	}

	pool := &ConstantPool{entries: make([]Constant, count)}
	for i := 1; i < int(count); i++ {
		c, err := parseConstant(r)
		if err != nil {
			return nil, fmt.Errorf("constant pool entry %d: %w", i, err)
		}
		pool.entries[i] = c

		// 8-byte constants take up two slots
		if c.Tag == TagLong || c.Tag == TagDouble {
			i++
		}
	}

	return pool, nil
}

func parseConstant(r *Reader) (Constant, error) {
	rawTag, err := r.ReadU1()
	if err != nil {
		return Constant{}, fmt.Errorf("failed to read tag: %w", err)
	}
	tag := ConstantTag(rawTag)
	c := Constant{Tag: tag}

	switch tag {
	case TagUtf8:
		length, err := r.ReadU2()
		if err != nil {
			return c, fmt.Errorf("failed to read utf8 length: %w", err)
		}
		data, err := r.ReadNBytes(int(length))
		if err != nil {
			return c, fmt.Errorf("failed to read utf8 data: %w", err)
		}
		c.Text = decodeModifiedUTF8(data)

	case TagInteger, TagFloat:
		v, err := r.ReadU4()
		if err != nil {
			return c, err
		}
		c.Value = uint64(v)

	case TagLong, TagDouble:
		v, err := r.ReadU8()
		if err != nil {
			return c, err
		}
		c.Value = v

	case TagClass, TagString, TagMethodType, TagModule, TagPackage:
		if c.Index1, err = r.ReadU2(); err != nil {
			return c, err
		}

	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
		if c.Index1, err = r.ReadU2(); err != nil {
			return c, err
		}
		if c.Index2, err = r.ReadU2(); err != nil {
			return c, err
		}

	case TagMethodHandle:
		kind, err := r.ReadU1()
		if err != nil {
			return c, err
		}
		c.Index1 = uint16(kind)
		if c.Index2, err = r.ReadU2(); err != nil {
			return c, err
		}

	default:
		return c, fmt.Errorf("unknown constant tag %d", rawTag)
	}

	return c, nil
}

func (p *ConstantPool) Len() int {
	return len(p.entries)
}

// Get returns the entry at index, failing on out-of-range or empty slots
func (p *ConstantPool) Get(index uint16) (Constant, error) {
	if index == 0 || int(index) >= len(p.entries) {
		return Constant{}, fmt.Errorf("constant pool index %d out of range [1, %d)", index, len(p.entries))
	}
	c := p.entries[index]
	if c.Tag == 0 {
		return Constant{}, fmt.Errorf("constant pool index %d is an unusable slot", index)
	}
	return c, nil
}

func (p *ConstantPool) expect(index uint16, tags ...ConstantTag) (Constant, error) {
	c, err := p.Get(index)
	if err != nil {
		return c, err
	}
	for _, t := range tags {
		if c.Tag == t {
			return c, nil
		}
	}
	return c, fmt.Errorf("constant pool index %d: expected %v, found %s", index, tags, c.Tag)
}

func (p *ConstantPool) Utf8(index uint16) (string, error) {
	c, err := p.expect(index, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

// ClassName resolves a CONSTANT_Class to its internal name (or array descriptor)
func (p *ConstantPool) ClassName(index uint16) (string, error) {
	c, err := p.expect(index, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.Index1)
}

func (p *ConstantPool) NameAndType(index uint16) (name, descriptor string, err error) {
	c, err := p.expect(index, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8(c.Index1); err != nil {
		return "", "", err
	}
	if descriptor, err = p.Utf8(c.Index2); err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// MemberRef resolves a field or method reference
func (p *ConstantPool) MemberRef(index uint16) (MemberRef, error) {
	c, err := p.expect(index, TagFieldref, TagMethodref, TagInterfaceMethodref)
	if err != nil {
		return MemberRef{}, err
	}

	owner, err := p.ClassName(c.Index1)
	if err != nil {
		return MemberRef{}, fmt.Errorf("owner of %s: %w", c.Tag, err)
	}

	name, desc, err := p.NameAndType(c.Index2)
	if err != nil {
		return MemberRef{}, fmt.Errorf("name and type of %s: %w", c.Tag, err)
	}

	return MemberRef{Tag: c.Tag, Owner: owner, Name: name, Descriptor: desc}, nil
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8 (JVMS §4.4.7),
// where NUL is two bytes and supplementary characters are surrogate pairs
func decodeModifiedUTF8(data []byte) string {
	ascii := true
	for _, b := range data {
		if b >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(data)
	}

	units := make([]uint16, 0, len(data))
	for i := 0; i < len(data); {
		b := data[i]
		switch {
		case b < 0x80:
			units = append(units, uint16(b))
			i++
		case b&0xE0 == 0xC0 && i+1 < len(data):
			units = append(units, uint16(b&0x1F)<<6|uint16(data[i+1]&0x3F))
			i += 2
		case b&0xF0 == 0xE0 && i+2 < len(data):
			units = append(units, uint16(b&0x0F)<<12|uint16(data[i+1]&0x3F)<<6|uint16(data[i+2]&0x3F))
			i += 3
		default:
			units = append(units, uint16(unicode.ReplacementChar))
			i++
		}
	}
	return string(utf16.Decode(units))
}
