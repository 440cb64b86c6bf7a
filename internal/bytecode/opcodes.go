package bytecode

import (
	"encoding/binary"
	"fmt"
)

/*
*	Instruction set described here
*	https://docs.oracle.com/javase/specs/jvms/se21/html/jvms-6.html
 */

// Opcodes the decoder looks at. Everything else is only measured and skipped.
const (
	OpLdc             byte = 0x12
	OpLdcW            byte = 0x13
	OpTableSwitch     byte = 0xaa
	OpLookupSwitch    byte = 0xab
	OpGetStatic       byte = 0xb2
	OpPutStatic       byte = 0xb3
	OpGetField        byte = 0xb4
	OpPutField        byte = 0xb5
	OpInvokeVirtual   byte = 0xb6
	OpInvokeSpecial   byte = 0xb7
	OpInvokeStatic    byte = 0xb8
	OpInvokeInterface byte = 0xb9
	OpInvokeDynamic   byte = 0xba
	OpWide            byte = 0xc4
	OpIinc            byte = 0x84
)

// Fixed instruction lengths including the opcode byte. Zero marks either an
// undefined opcode or one with a variable length (switches and wide).
var instructionLengths = func() [256]uint8 {
	var t [256]uint8
	set := func(from, to byte, length uint8) {
		for op := int(from); op <= int(to); op++ {
			t[op] = length
		}
	}

	set(0x00, 0x0f, 1) // nop .. dconst_1
	set(0x10, 0x10, 2) // bipush
	set(0x11, 0x11, 3) // sipush
	set(0x12, 0x12, 2) // ldc
	set(0x13, 0x14, 3) // ldc_w, ldc2_w
	set(0x15, 0x19, 2) // iload .. aload
	set(0x1a, 0x35, 1) // iload_0 .. saload
	set(0x36, 0x3a, 2) // istore .. astore
	set(0x3b, 0x83, 1) // istore_0 .. lxor
	set(0x84, 0x84, 3) // iinc
	set(0x85, 0x98, 1) // i2l .. dcmpg
	set(0x99, 0xa8, 3) // ifeq .. jsr
	set(0xa9, 0xa9, 2) // ret
	set(0xac, 0xb1, 1) // ireturn .. return
	set(0xb2, 0xb8, 3) // getstatic .. invokestatic
	set(0xb9, 0xba, 5) // invokeinterface, invokedynamic
	set(0xbb, 0xbb, 3) // new
	set(0xbc, 0xbc, 2) // newarray
	set(0xbd, 0xbd, 3) // anewarray
	set(0xbe, 0xbf, 1) // arraylength, athrow
	set(0xc0, 0xc1, 3) // checkcast, instanceof
	set(0xc2, 0xc3, 1) // monitorenter, monitorexit
	set(0xc5, 0xc5, 4) // multianewarray
	set(0xc6, 0xc7, 3) // ifnull, ifnonnull
	set(0xc8, 0xc9, 5) // goto_w, jsr_w
	set(0xca, 0xca, 1) // breakpoint
	set(0xfe, 0xff, 1) // impdep1, impdep2
	return t
}()

// Instruction is one decoded instruction. Operands aliases the code array.
type Instruction struct {
	PC       int
	Opcode   byte
	Operands []byte
}

// U1 returns the first operand byte
func (i Instruction) U1() uint8 {
	return i.Operands[0]
}

// U2 returns the first two operand bytes as a constant pool index
func (i Instruction) U2() uint16 {
	return binary.BigEndian.Uint16(i.Operands)
}

// ForEachInstruction walks the code array once, in order
func ForEachInstruction(code []byte, visit func(Instruction) error) error {
	for pc := 0; pc < len(code); {
		length, err := instructionLength(code, pc)
		if err != nil {
			return err
		}
		if pc+length > len(code) {
			return fmt.Errorf("%w: instruction 0x%02x at pc %d overruns code (length %d)", ErrTruncated, code[pc], pc, len(code))
		}

		insn := Instruction{PC: pc, Opcode: code[pc], Operands: code[pc+1 : pc+length]}
		if err := visit(insn); err != nil {
			return err
		}
		pc += length
	}
	return nil
}

func instructionLength(code []byte, pc int) (int, error) {
	op := code[pc]
	if n := instructionLengths[op]; n != 0 {
		return int(n), nil
	}

	switch op {
	case OpTableSwitch:
		// default, low, high, then (high - low + 1) jump offsets
		base := pc + 1 + switchPadding(pc)
		low, err := readI4At(code, base+4)
		if err != nil {
			return 0, err
		}
		high, err := readI4At(code, base+8)
		if err != nil {
			return 0, err
		}
		if high < low {
			return 0, fmt.Errorf("tableswitch at pc %d: high %d < low %d", pc, high, low)
		}
		return switchLength(code, pc, base+12, int64(high)-int64(low)+1, 4)

	case OpLookupSwitch:
		// default, npairs, then npairs (match, offset) pairs
		base := pc + 1 + switchPadding(pc)
		pairs, err := readI4At(code, base+4)
		if err != nil {
			return 0, err
		}
		if pairs < 0 {
			return 0, fmt.Errorf("lookupswitch at pc %d: negative pair count %d", pc, pairs)
		}
		return switchLength(code, pc, base+8, int64(pairs), 8)

	case OpWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("%w: wide at pc %d", ErrTruncated, pc)
		}
		if code[pc+1] == OpIinc {
			return 6, nil
		}
		return 4, nil
	}

	return 0, fmt.Errorf("invalid opcode 0x%02x at pc %d", op, pc)
}

// switchLength sizes a switch whose jump table starts at offset tableStart.
// Entry counts come from the classfile, so the table is checked against the code in 64 bits.
func switchLength(code []byte, pc, tableStart int, entries, entrySize int64) (int, error) {
	end := int64(tableStart) + entries*entrySize
	if end > int64(len(code)) {
		return 0, fmt.Errorf("%w: switch at pc %d has %d entries past end of code", ErrTruncated, pc, entries)
	}
	return int(end) - pc, nil
}

// switchPadding is the number of bytes after the opcode needed to 4-byte-align the operands
func switchPadding(pc int) int {
	return (4 - (pc+1)%4) % 4
}

func readI4At(code []byte, offset int) (int32, error) {
	if offset < 0 || offset+4 > len(code) {
		return 0, fmt.Errorf("%w: switch operand at offset %d", ErrTruncated, offset)
	}
	return int32(binary.BigEndian.Uint32(code[offset:])), nil
}
