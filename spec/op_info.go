package spec

// Form is the layout of the operand fields in an instruction word.
type Form uint8

const (
	// FormABC has registers A, B and C in the low 9 bits.
	FormABC Form = iota
	// FormAValue has register A right below the Op and an immediate value below that.
	FormAValue
)

// Reg names a register field of an instruction.
type Reg uint8

const (
	RegA Reg = 1 << iota
	RegB
	RegC
)

// Info is information about Operations
type Info struct {
	Form Form `json:"form"`
	// Reads is the set of register fields whose registers are read.
	Reads Reg `json:"reads"`
	// Writes is the set of register fields whose registers may be written.
	Writes Reg `json:"writes"`
}

func (o Op) Info() Info {
	if !o.Valid() {
		return Info{}
	}
	return infos[o]
}

// Form returns the operand layout used by the operation
func (o Op) Form() Form {
	return o.Info().Form
}

var infos = [NumOps]Info{
	CMov:  {Reads: RegB | RegC, Writes: RegA},
	Index: {Reads: RegB | RegC, Writes: RegA},
	Amend: {Reads: RegA | RegB | RegC},
	Add:   {Reads: RegB | RegC, Writes: RegA},
	Mul:   {Reads: RegB | RegC, Writes: RegA},
	Div:   {Reads: RegB | RegC, Writes: RegA},
	NAND:  {Reads: RegB | RegC, Writes: RegA},
	Halt:  {},

	Map:   {Reads: RegC, Writes: RegB},
	Unmap: {Reads: RegC},

	Output: {Reads: RegC},
	Input:  {Writes: RegC},

	LoadProgram: {Reads: RegB | RegC},
	LoadValue:   {Form: FormAValue, Writes: RegA},
}
