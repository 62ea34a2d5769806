// package spec contains the operations of the Universal Machine and the layout of an instruction word
package spec

// Op is an operation, selected by the top OpBits of an instruction word.
//
//go:generate go run golang.org/x/tools/cmd/stringer -type=Op
type Op uint8

const (
	// CMov: if R[C] != 0 then R[A] = R[B]
	CMov Op = iota
	// Index: R[A] = segment[R[B]][R[C]]
	Index
	// Amend: segment[R[A]][R[B]] = R[C]
	Amend
	// Add: R[A] = R[B] + R[C] (mod 2^32)
	Add
	// Mul: R[A] = R[B] * R[C] (mod 2^32)
	Mul
	// Div: R[A] = R[B] / R[C], unsigned.  R[C] == 0 is a fault.
	Div
	// NAND: R[A] = ^(R[B] & R[C])
	NAND
	// Halt stops the machine.
	Halt
	// Map: R[B] = id of a new zeroed segment with R[C] words
	Map
	// Unmap releases segment R[C] so its id can be reused.
	Unmap
	// Output writes the low byte of R[C]
	Output
	// Input reads a byte into R[C], or all ones at the end of input.
	Input
	// LoadProgram replaces segment 0 with a copy of segment R[B] (unless R[B] == 0)
	// and sets the program counter to R[C].
	LoadProgram
	// LoadValue: R[A] = value
	// It is the only operation using FormAValue.
	LoadValue
)

// NumOps is the number of defined operations.
// Op values in [NumOps, 1<<OpBits) have no handler.
const NumOps = int(LoadValue) + 1

// Valid returns true if the operation has a handler.
func (o Op) Valid() bool {
	return int(o) < NumOps
}
