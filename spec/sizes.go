package spec

const (
	// WordBits is the size of a register, a segment slot, and an instruction in bits.
	WordBits = 32
	// NumRegisters is the number of general purpose registers.
	NumRegisters = 8

	// OpBits is the number of bits needed to encode an Op
	OpBits = 4
	// OpShift is the position of the lowest bit of the Op
	OpShift = WordBits - OpBits

	// RegBits is the size of a register field in bits
	RegBits = 3

	// Three register form.
	RegAShift = 6
	RegBShift = 3
	RegCShift = 0

	// Load Value form.
	// The register is right below the Op, the value fills the rest of the word.
	ValueRegShift = OpShift - RegBits
	ValueBits     = ValueRegShift
	// MaxValue is the largest value which can be loaded by LoadValue
	MaxValue = 1<<ValueBits - 1
)
