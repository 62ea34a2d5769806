package umvm

import (
	"errors"
	"fmt"
	"strings"
)

// Fatal conditions.  A Machine which has faulted with one of these cannot be resumed.
var (
	ErrInvalidOp        = errors.New("invalid opcode")
	ErrPCOutOfRange     = errors.New("program counter outside of segment 0")
	ErrUnmappedSegment  = errors.New("segment is not mapped")
	ErrOutOfBounds      = errors.New("offset outside of segment")
	ErrDivideByZero     = errors.New("division by zero")
	ErrUnmapReserved    = errors.New("segment 0 cannot be unmapped")
	ErrSegmentTooLarge  = errors.New("segment larger than the configured maximum")
	ErrIDSpaceExhausted = errors.New("no segment ids left")
	ErrIO               = errors.New("i/o error")
)

var (
	// ErrHalted is returned by Step after the machine has executed Halt.
	ErrHalted = errors.New("machine has halted")
	// ErrStepLimit is returned by Exec when the step budget ran out before Halt.
	// The machine has not faulted and can keep running.
	ErrStepLimit = errors.New("step limit reached")
)

// TraceEntry is an instruction word and the address it was fetched from.
type TraceEntry struct {
	PC   uint32 `json:"pc"`
	Word Word   `json:"word"`
}

func (te TraceEntry) String() string {
	return fmt.Sprintf("%08x: %08x %v", te.PC, te.Word, Decode(te.Word))
}

// Fault is the error latched by a Machine when execution cannot continue.
type Fault struct {
	// PC is the address of the faulting instruction, or the address which
	// could not be fetched when Fetch is true.
	PC    uint32
	Fetch bool
	Word  Word
	Instr I
	Err   error

	// Recent holds the last instructions executed before the fault, oldest first.
	// The faulting instruction is the last entry.
	Recent []TraceEntry
}

func (f *Fault) Error() string {
	if f.Fetch {
		return fmt.Sprintf("um: fault fetching pc=%d: %v", f.PC, f.Err)
	}
	return fmt.Sprintf("um: fault at pc=%d (%v): %v", f.PC, f.Instr, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Backtrace formats Recent, one instruction per line.
func (f *Fault) Backtrace() string {
	sb := strings.Builder{}
	for _, te := range f.Recent {
		sb.WriteString(te.String())
		sb.WriteString("\n")
	}
	return sb.String()
}
