package umvm

import (
	"fmt"
	"strings"

	"go.brendoncarroll.net/exp/slices2"

	"myceliumweb.org/um/internal/bitpack"
	"myceliumweb.org/um/spec"
)

// I is a decoded instruction.
// Only the fields used by the Op's Form are meaningful; the others are zero.
type I struct {
	Op spec.Op
	A  uint8
	B  uint8
	C  uint8
	// Value is the immediate of LoadValue
	Value Word
}

// ABC returns a three register instruction
func ABC(op spec.Op, a, b, c uint8) I {
	return I{Op: op, A: a, B: b, C: c}
}

// Imm returns a LoadValue instruction
func Imm(a uint8, value Word) I {
	return I{Op: spec.LoadValue, A: a, Value: value}
}

// Decode extracts the fields of an instruction word.
// It never fails: an undefined opcode is reported when the instruction is executed.
func Decode(w Word) I {
	op := spec.Op(bitpack.Getu(w, spec.OpBits, spec.OpShift))
	if op == spec.LoadValue {
		return I{
			Op:    op,
			A:     uint8(bitpack.Getu(w, spec.RegBits, spec.ValueRegShift)),
			Value: bitpack.Getu(w, spec.ValueBits, 0),
		}
	}
	return I{
		Op: op,
		A:  uint8(bitpack.Getu(w, spec.RegBits, spec.RegAShift)),
		B:  uint8(bitpack.Getu(w, spec.RegBits, spec.RegBShift)),
		C:  uint8(bitpack.Getu(w, spec.RegBits, spec.RegCShift)),
	}
}

// Encode is the inverse of Decode, bits not covered by a field are zero.
// Encode panics if a field does not fit in its width.
func Encode(ix I) Word {
	w := bitpack.Newu(0, spec.OpBits, spec.OpShift, Word(ix.Op))
	if ix.Op == spec.LoadValue {
		w = bitpack.Newu(w, spec.RegBits, spec.ValueRegShift, Word(ix.A))
		return bitpack.Newu(w, spec.ValueBits, 0, ix.Value)
	}
	w = bitpack.Newu(w, spec.RegBits, spec.RegAShift, Word(ix.A))
	w = bitpack.Newu(w, spec.RegBits, spec.RegBShift, Word(ix.B))
	return bitpack.Newu(w, spec.RegBits, spec.RegCShift, Word(ix.C))
}

// EncodeAll encodes a sequence of instructions
func EncodeAll(ixs ...I) []Word {
	return slices2.Map(ixs, Encode)
}

// String prints the Op followed by the operands it uses.
func (ix I) String() string {
	info := ix.Op.Info()
	if !ix.Op.Valid() {
		// unknown operations show every field
		info.Reads = spec.RegA | spec.RegB | spec.RegC
	}
	sb := strings.Builder{}
	sb.WriteString(ix.Op.String())
	if info.Form == spec.FormAValue {
		fmt.Fprintf(&sb, " a=%d value=%d", ix.A, ix.Value)
		return sb.String()
	}
	used := info.Reads | info.Writes
	for _, f := range []struct {
		reg  spec.Reg
		name string
		val  uint8
	}{
		{spec.RegA, "a", ix.A},
		{spec.RegB, "b", ix.B},
		{spec.RegC, "c", ix.C},
	} {
		if used&f.reg != 0 {
			fmt.Fprintf(&sb, " %s=%d", f.name, f.val)
		}
	}
	return sb.String()
}
