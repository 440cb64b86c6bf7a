package bytecode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jlinkcheck/internal/bytecode/classtest"
	"github.com/mabhi256/jlinkcheck/internal/descriptor"
	"github.com/mabhi256/jlinkcheck/internal/model"
)

func class(name string) descriptor.ClassType {
	return descriptor.MustClassName(name)
}

func decode(t *testing.T, w *classtest.ClassWriter) *model.DeclaredClass {
	t.Helper()
	c, err := NewDecoder(descriptor.NewCache(0)).Decode(w.Bytes())
	require.NoError(t, err)
	return c
}

func method(t *testing.T, c *model.DeclaredClass, name, desc string) *model.DeclaredMethod {
	t.Helper()
	m, err := descriptor.NewCache(0).ParseMethod(desc, name, false)
	require.NoError(t, err)
	dm, ok := c.Method(m)
	require.True(t, ok, "method %s%s not declared", name, desc)
	return dm
}

func TestParseClassFile_Structure(t *testing.T) {
	w := classtest.New("com/example/Foo", "com/example/Base", "java/io/Serializable", "java/lang/Runnable").
		Version(61).
		Field(classtest.AccPublic, "count", "I").
		Field(classtest.AccStatic, "names", "[Ljava/lang/String;").
		Method(classtest.AccPublic|classtest.AccAbstract, "run", "()V", nil).
		Method(classtest.AccStatic, "make", "(IJ)Lcom/example/Foo;", func(c *classtest.Code) {
			c.Emit(0x01).Emit(0xb0) // aconst_null, areturn
		})
	w.Long(1 << 40) // takes two slots, later indices must still resolve

	cf, err := ParseClassFile(w.Bytes())
	require.NoError(t, err)

	assert.Equal(t, uint16(61), cf.MajorVersion)
	assert.Equal(t, "com/example/Foo", cf.ThisClass)
	assert.Equal(t, "com/example/Base", cf.SuperClass)
	assert.Equal(t, []string{"java/io/Serializable", "java/lang/Runnable"}, cf.Interfaces)

	require.Len(t, cf.Fields, 2)
	assert.Equal(t, "names", cf.Fields[1].Name)
	assert.True(t, cf.Fields[1].IsStatic())

	require.Len(t, cf.Methods, 2)
	assert.Nil(t, cf.Methods[0].Code)
	require.NotNil(t, cf.Methods[1].Code)
	assert.Equal(t, []byte{0x01, 0xb0}, cf.Methods[1].Code.Code)
}

func TestParseClassFile_LongTakesTwoSlots(t *testing.T) {
	w := classtest.New("com/example/Foo", "java/lang/Object")
	long := w.Long(42)
	after := w.Class("com/example/After")

	cf, err := ParseClassFile(w.Bytes())
	require.NoError(t, err)

	c, err := cf.Pool.Get(long)
	require.NoError(t, err)
	assert.Equal(t, TagLong, c.Tag)
	assert.Equal(t, uint64(42), c.Value)

	_, err = cf.Pool.Get(long + 1)
	assert.Error(t, err, "slot after a long is unusable")

	name, err := cf.Pool.ClassName(after)
	require.NoError(t, err)
	assert.Equal(t, "com/example/After", name)
}

func TestPeekVersion(t *testing.T) {
	major, minor, err := PeekVersion(classtest.New("A", "java/lang/Object").Version(65).Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint16(65), major)
	assert.Equal(t, uint16(0), minor)

	_, _, err = PeekVersion([]byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 52})
	assert.ErrorIs(t, err, ErrBadMagic)

	_, _, err = PeekVersion([]byte{0xca, 0xfe})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecode_Parents(t *testing.T) {
	object := decode(t, classtest.New("java/lang/Object", ""))
	assert.Empty(t, object.Parents())

	foo := decode(t, classtest.New("com/example/Foo", "java/lang/Object", "java/lang/Runnable"))
	assert.Equal(t, class("com.example.Foo"), foo.Name())
	assert.Equal(t, []descriptor.ClassType{class("java.lang.Object"), class("java.lang.Runnable")}, foo.Parents())
}

func TestDecode_Fields(t *testing.T) {
	c := decode(t, classtest.New("com/example/Foo", "java/lang/Object").
		Field(classtest.AccPublic, "count", "J").
		Field(classtest.AccStatic, "grid", "[[I"))

	assert.True(t, c.HasField(descriptor.NewField("count", descriptor.Long)))
	assert.True(t, c.HasField(descriptor.NewField("grid", descriptor.NewArrayType(descriptor.Int, 2))))
	assert.False(t, c.HasField(descriptor.NewField("count", descriptor.Int)))
}

func TestDecode_Calls(t *testing.T) {
	c := decode(t, classtest.New("com/example/Root", "java/lang/Object").
		Method(classtest.AccStatic|classtest.AccPublic, "main", "([Ljava/lang/String;)V", func(c *classtest.Code) {
			c.Line(10).InvokeStatic("com/d/Foo", "foo", "()V")
			c.Line(11).InvokeVirtual("com/d/Bar", "bar", "(I)Ljava/lang/String;")
			c.InvokeSpecial("java/lang/Object", "<init>", "()V")
			c.InvokeInterface("java/util/List", "size", "()I", 0)
			c.Line(14).InvokeVirtual("[I", "clone", "()Ljava/lang/Object;")
			c.InvokeVirtual("java/lang/invoke/MethodHandle", "invokeExact", "(I)I")
			c.Return()
		}))

	main := method(t, c, "main", "([Ljava/lang/String;)V")
	assert.True(t, main.IsStatic())
	assert.Equal(t, 14, main.Line, "line of the last instruction seen")

	require.Len(t, main.Calls, 4, "array and intrinsic owners are skipped")

	assert.Equal(t, class("com.d.Foo"), main.Calls[0].Owner)
	assert.Equal(t, "foo", main.Calls[0].Method.Name())
	assert.True(t, main.Calls[0].IsStatic())
	assert.Equal(t, 10, main.Calls[0].Line)

	assert.Equal(t, "com.d.Bar.bar(int)", main.Calls[1].String())
	assert.False(t, main.Calls[1].IsStatic())
	assert.Equal(t, 11, main.Calls[1].Line)

	assert.False(t, main.Calls[2].IsStatic(), "invokespecial is an instance call")
	assert.Equal(t, class("java.util.List"), main.Calls[3].Owner)
	assert.False(t, main.Calls[3].IsStatic())
}

func TestDecode_FieldAccesses(t *testing.T) {
	c := decode(t, classtest.New("com/example/Root", "java/lang/Object").
		Method(classtest.AccPublic, "read", "()V", func(c *classtest.Code) {
			c.GetStatic("java/lang/System", "out", "Ljava/io/PrintStream;").Pop()
			c.Emit(0x2a).GetField("com/example/Other", "size", "I").Pop()
			c.Emit(0x01).PutStatic("com/example/Other", "cache", "Ljava/util/Map;")
			c.Return()
		}))

	read := method(t, c, "read", "()V")
	require.Len(t, read.Fields, 3)

	assert.Equal(t, class("java.lang.System"), read.Fields[0].Owner)
	assert.Equal(t, descriptor.NewField("out", class("java.io.PrintStream")), read.Fields[0].Field)
	assert.True(t, read.Fields[0].IsStatic)

	assert.False(t, read.Fields[1].IsStatic)
	assert.Equal(t, "com.example.Other.size", read.Fields[1].String())
	assert.True(t, read.Fields[2].IsStatic)
}

func TestDecode_ClassLiterals(t *testing.T) {
	c := decode(t, classtest.New("com/example/Root", "java/lang/Object").
		Method(classtest.AccStatic, "<clinit>", "()V", func(c *classtest.Code) {
			c.LdcClass("com/example/Loaded").Pop()
			c.LdcClass("[[Lcom/example/Element;").Pop()
			c.LdcClass("[I").Pop()
			c.LdcString("com/example/NotAClass").Pop()
			c.Return()
		}))

	assert.Equal(t, []descriptor.ClassType{class("com.example.Element"), class("com.example.Loaded")}, c.LoadedClasses())

	clinit, ok := c.Method(descriptor.ClassInit)
	require.True(t, ok)
	assert.Equal(t, descriptor.ClassInit, clinit.Descriptor)
}

func TestDecode_CaughtExceptions(t *testing.T) {
	c := decode(t, classtest.New("com/example/Root", "java/lang/Object").
		Method(classtest.AccStatic, "guarded", "()V", func(c *classtest.Code) {
			start := c.PC()
			c.InvokeStatic("com/d/Foo", "inside", "()V") // pc 0
			c.InvokeStatic("com/d/Foo", "nested", "()V") // pc 3
			end := c.PC()
			c.InvokeStatic("com/d/Foo", "outside", "()V") // pc 6, the end boundary
			c.Return()
			handler := c.PC()
			c.Pop().Return()

			c.Try(start, end, handler, "java/lang/NoSuchMethodError")
			c.Try(3, end, handler, "java/lang/NoClassDefFoundError")
			c.Try(start, end, handler, "") // finally
		}))

	calls := method(t, c, "guarded", "()V").Calls
	require.Len(t, calls, 3)

	assert.Equal(t, []descriptor.ClassType{class("java.lang.NoSuchMethodError")}, calls[0].CaughtExceptions)
	assert.Equal(t, []descriptor.ClassType{
		class("java.lang.NoClassDefFoundError"),
		class("java.lang.NoSuchMethodError"),
	}, calls[1].CaughtExceptions)
	assert.Empty(t, calls[2].CaughtExceptions, "end_pc is exclusive")
}

func TestDecode_DuplicateMethod(t *testing.T) {
	w := classtest.New("com/example/Dup", "java/lang/Object").
		Method(classtest.AccPublic, "foo", "()V", nil).
		Method(classtest.AccStatic, "foo", "()V", nil)

	_, err := NewDecoder(nil).Decode(w.Bytes())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDuplicateMethod)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "com.example.Dup", decodeErr.Class)
	assert.Equal(t, "foo()V", decodeErr.Method)
}

func TestDecode_MalformedDescriptor(t *testing.T) {
	w := classtest.New("com/example/Bad", "java/lang/Object").
		Method(classtest.AccPublic, "bad", "(LFoo)V", nil)

	_, err := NewDecoder(nil).Decode(w.Bytes())
	assert.ErrorIs(t, err, descriptor.ErrMalformedDescriptor)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "bad(LFoo)V", decodeErr.Method)
}

func TestDecode_Truncated(t *testing.T) {
	data := classtest.New("com/example/Foo", "java/lang/Object").Bytes()

	_, err := NewDecoder(nil).Decode(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrTruncated)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "com.example.Foo", decodeErr.Class)
	assert.Empty(t, decodeErr.Method)
}

func TestDecode_TruncatedMethodBody(t *testing.T) {
	data := classtest.New("com/example/Foo", "java/lang/Object").
		Method(classtest.AccPublic, "m", "()V", func(c *classtest.Code) { c.Return() }).
		Bytes()

	_, err := NewDecoder(nil).Decode(data[:len(data)-4])
	assert.ErrorIs(t, err, ErrTruncated)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "com.example.Foo", decodeErr.Class)
	assert.Equal(t, "m()V", decodeErr.Method)
	assert.Contains(t, err.Error(), "failed to decode class com.example.Foo, method m()V")
}

func TestForEachInstruction_VariableLength(t *testing.T) {
	code := []byte{
		0xaa, 0, 0, 0, // tableswitch at 0, three bytes of padding
		0, 0, 0, 0, // default
		0, 0, 0, 0, // low
		0, 0, 0, 1, // high
		0, 0, 0, 0, 0, 0, 0, 0, // two offsets
		0x00,       // nop at 24
		0xab, 0, 0, // lookupswitch at 25, two bytes of padding
		0, 0, 0, 0, // default
		0, 0, 0, 1, // npairs
		0, 0, 0, 5, 0, 0, 0, 0, // one pair
		0xc4, 0x15, 0, 1, // wide iload at 44
		0xc4, 0x84, 0, 1, 0, 2, // wide iinc at 48
		0xb1, // return at 54
	}

	var pcs []int
	err := ForEachInstruction(code, func(insn Instruction) error {
		pcs = append(pcs, insn.PC)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 24, 25, 44, 48, 54}, pcs)
}

func TestForEachInstruction_Invalid(t *testing.T) {
	err := ForEachInstruction([]byte{0x00, 0xcb}, func(Instruction) error { return nil })
	assert.ErrorContains(t, err, "invalid opcode 0xcb at pc 1")

	err = ForEachInstruction([]byte{0xb8, 0x00}, func(Instruction) error { return nil })
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestForEachInstruction_SwitchRangeOverflow(t *testing.T) {
	// low = MinInt32, high = MaxInt32: 2^32 entries, which wraps to zero in 32 bits
	code := []byte{
		0xaa, 0, 0, 0, // tableswitch at 0
		0, 0, 0, 0, // default
		0x80, 0, 0, 0, // low
		0x7f, 0xff, 0xff, 0xff, // high
		0xb1, 0xb1, 0xb1, 0xb1,
	}

	var visited int
	err := ForEachInstruction(code, func(Instruction) error {
		visited++
		return nil
	})
	assert.ErrorIs(t, err, ErrTruncated)
	assert.Zero(t, visited)

	lookup := []byte{
		0xab, 0, 0, 0, // lookupswitch at 0
		0, 0, 0, 0, // default
		0x7f, 0xff, 0xff, 0xff, // npairs
	}
	err = ForEachInstruction(lookup, func(Instruction) error { return nil })
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeModifiedUTF8(t *testing.T) {
	assert.Equal(t, "plain", decodeModifiedUTF8([]byte("plain")))
	assert.Equal(t, "a\x00b", decodeModifiedUTF8([]byte{'a', 0xC0, 0x80, 'b'}))
	assert.Equal(t, "é", decodeModifiedUTF8([]byte{0xC3, 0xA9}))

	// U+1F600 as a surrogate pair, each half three bytes
	assert.Equal(t, "\U0001F600", decodeModifiedUTF8([]byte{0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}))
}
