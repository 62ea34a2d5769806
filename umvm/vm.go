// package umvm contains an implementation of the Universal Machine
package umvm

import (
	"context"
	"io"
	"slices"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"myceliumweb.org/um/internal/ringbuf"
	"myceliumweb.org/um/spec"
)

type Word = uint32

const (
	WordBits  = spec.WordBits
	WordBytes = WordBits / 8
)

const (
	DefaultTraceDepth = 16

	// ctxCheckMask controls how often Run looks at the context.
	ctxCheckMask = 1<<12 - 1
	// burstSteps is the number of steps Exec runs between checks.
	burstSteps = 1 << 20
)

type Config struct {
	// Input is read one byte at a time by the Input operation.
	// nil is an empty stream.
	Input io.Reader
	// Output receives one byte per Output operation.
	// nil discards.
	Output io.Writer

	// TraceDepth is the number of recently executed instructions kept for Fault reports.
	TraceDepth int
	// MaxSegmentWords limits the size of a single Map request.  0 is unlimited.
	MaxSegmentWords uint32
}

func DefaultConfig() Config {
	return Config{TraceDepth: DefaultTraceDepth}
}

// Machine is the state of a Universal Machine.
// All of its state is owned by the goroutine calling Run, Exec or Step.
type Machine struct {
	cfg Config

	regs [spec.NumRegisters]Word
	pc   uint32
	// segs is indexed by segment id. segs[0] is the program.
	segs      []segment
	free      []Word
	highWater Word

	port  port
	trace ringbuf.RingBuf[TraceEntry]
	stats Stats

	// cur is the instruction being executed
	cur    TraceEntry
	halted bool
	err    error
}

// New creates a Machine with prog in segment 0.
// prog is copied; self modifying programs do not change the caller's slice.
func New(prog []Word, cfg Config) *Machine {
	vm := &Machine{
		cfg:   cfg,
		port:  newPort(cfg.Input, cfg.Output),
		trace: ringbuf.New[TraceEntry](max(cfg.TraceDepth, 0)),
	}
	vm.Reset(prog)
	return vm
}

// Reset returns the machine to its initial state with prog in segment 0.
// The configured Input and Output are kept.
func (vm *Machine) Reset(prog []Word) {
	vm.regs = [spec.NumRegisters]Word{}
	vm.pc = 0
	clear(vm.segs)
	vm.segs = append(vm.segs[:0], segment{words: slices.Clone(prog), live: true})
	vm.free = vm.free[:0]
	vm.highWater = 0
	vm.trace.Clear()
	vm.stats = Stats{LiveSegments: 1, PeakLiveSegments: 1}
	vm.cur = TraceEntry{}
	vm.halted = false
	vm.err = nil
}

// Run executes the machine for a maximum of maxSteps.
// The number of steps taken is returned.
// If Run returns 0, then nothing happened and the machine has halted, faulted, or ctx is done.
func (vm *Machine) Run(ctx context.Context, maxSteps uint64) (steps uint64) {
	for i := uint64(0); i < maxSteps; i++ {
		if !vm.isAlive() {
			return i
		}
		if i&ctxCheckMask == ctxCheckMask && ctx.Err() != nil {
			return i
		}
		vm.cycle()
	}
	return maxSteps
}

// Exec runs the machine until it halts, faults, or has taken maxSteps steps.
// maxSteps == 0 means no limit.
// Exec returns nil after Halt, the *Fault if the machine faulted, ErrStepLimit if
// the budget ran out, and ctx.Err() if the context was cancelled.
// A blocked Input read is not interrupted by cancelling ctx.
func (vm *Machine) Exec(ctx context.Context, maxSteps uint64) error {
	start := vm.stats.Steps
	for {
		burst := uint64(burstSteps)
		if maxSteps > 0 {
			taken := vm.stats.Steps - start
			if taken >= maxSteps {
				break
			}
			burst = min(burst, maxSteps-taken)
		}
		vm.Run(ctx, burst)
		switch {
		case vm.halted:
			logctx.Debug(ctx, "machine halted", zap.Uint64("steps", vm.stats.Steps))
			return nil
		case vm.err != nil:
			logctx.Debug(ctx, "machine faulted", zap.Uint64("steps", vm.stats.Steps), zap.Error(vm.err))
			return vm.err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if vm.halted {
		return nil
	}
	return ErrStepLimit
}

// Main runs the machine until it halts or faults.
func (vm *Machine) Main(ctx context.Context) error {
	return vm.Exec(ctx, 0)
}

// Step executes a single instruction.
func (vm *Machine) Step() error {
	if vm.halted {
		return ErrHalted
	}
	if vm.err != nil {
		return vm.err
	}
	vm.cycle()
	return vm.err
}

// cycle fetches, decodes and executes one instruction.
func (vm *Machine) cycle() {
	prog := vm.segs[0].words
	if uint64(vm.pc) >= uint64(len(prog)) {
		vm.err = &Fault{
			PC:     vm.pc,
			Fetch:  true,
			Err:    ErrPCOutOfRange,
			Recent: vm.trace.AppendTo(nil),
		}
		return
	}
	vm.cur = TraceEntry{PC: vm.pc, Word: prog[vm.pc]}
	// it is important to adjust the program counter before the instruction so
	// that the instruction can override it.
	vm.pc++
	vm.trace.PushBack(vm.cur)
	vm.stats.Steps++
	vm.step(Decode(vm.cur.Word))
}

func (vm *Machine) step(ix I) {
	if ix.Op.Valid() {
		vm.stats.Ops[ix.Op]++
	}
	r := &vm.regs
	switch ix.Op {
	case spec.CMov:
		if r[ix.C] != 0 {
			r[ix.A] = r[ix.B]
		}
	case spec.Add:
		r[ix.A] = r[ix.B] + r[ix.C]
	case spec.Mul:
		r[ix.A] = r[ix.B] * r[ix.C]
	case spec.Div:
		if r[ix.C] == 0 {
			vm.fail(ErrDivideByZero)
			return
		}
		r[ix.A] = r[ix.B] / r[ix.C]
	case spec.NAND:
		r[ix.A] = ^(r[ix.B] & r[ix.C])
	case spec.LoadValue:
		r[ix.A] = ix.Value
	case spec.Halt:
		vm.halted = true

	// segments
	case spec.Index:
		vm.index(ix)
	case spec.Amend:
		vm.amend(ix)
	case spec.Map:
		vm.mapSegment(ix)
	case spec.Unmap:
		vm.unmapSegment(ix)
	case spec.LoadProgram:
		vm.loadProgram(ix)

	// ports
	case spec.Output:
		vm.output(ix)
	case spec.Input:
		vm.input(ix)

	default:
		vm.fail(ErrInvalidOp)
	}
}

// fail latches err as a Fault for the current instruction.
// The machine will not execute anything else.
func (vm *Machine) fail(err error) {
	vm.err = &Fault{
		PC:     vm.cur.PC,
		Word:   vm.cur.Word,
		Instr:  Decode(vm.cur.Word),
		Err:    err,
		Recent: vm.trace.AppendTo(nil),
	}
}

func (vm *Machine) isAlive() bool {
	return !vm.halted && vm.err == nil
}

// Err returns the Fault which stopped the machine, if any.
func (vm *Machine) Err() error {
	return vm.err
}

// Halted returns true after the machine has executed Halt.
func (vm *Machine) Halted() bool {
	return vm.halted
}

// PC returns the address of the next instruction to fetch
func (vm *Machine) PC() uint32 {
	return vm.pc
}

// Reg returns the value of register i
func (vm *Machine) Reg(i int) Word {
	return vm.regs[i]
}

// SetReg sets the value of register i
func (vm *Machine) SetReg(i int, x Word) {
	vm.regs[i] = x
}

// Regs returns a copy of the register file
func (vm *Machine) Regs() [spec.NumRegisters]Word {
	return vm.regs
}

// Steps returns the number of instructions executed since the last Reset.
func (vm *Machine) Steps() uint64 {
	return vm.stats.Steps
}
