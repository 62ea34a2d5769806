package umvm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"myceliumweb.org/um/internal/testutil"
	"myceliumweb.org/um/spec"
)

var halt = ABC(spec.Halt, 0, 0, 0)

func runProg(t testing.TB, cfg Config, setup func(vm *Machine), prog ...I) (*Machine, error) {
	vm := New(EncodeAll(prog...), cfg)
	if setup != nil {
		setup(vm)
	}
	err := vm.Main(testutil.Context(t))
	return vm, err
}

func TestVM(t *testing.T) {
	t.Parallel()
	type testCase struct {
		Name  string
		Setup func(vm *Machine)
		Prog  []I

		// End is the value of registers after the machine halts
		End map[int]Word
	}
	tcs := []testCase{
		{
			Name: "CMov taken",
			Setup: func(vm *Machine) {
				vm.SetReg(1, 5)
				vm.SetReg(2, 1)
			},
			Prog: []I{ABC(spec.CMov, 0, 1, 2), halt},
			End:  map[int]Word{0: 5},
		},
		{
			Name: "CMov not taken",
			Setup: func(vm *Machine) {
				vm.SetReg(0, 9)
				vm.SetReg(1, 5)
			},
			Prog: []I{ABC(spec.CMov, 0, 1, 2), halt},
			End:  map[int]Word{0: 9},
		},
		{
			Name: "Add wraps",
			Setup: func(vm *Machine) {
				vm.SetReg(1, 0xFFFF_FFFF)
				vm.SetReg(2, 0xFFFF_FFFF)
			},
			Prog: []I{ABC(spec.Add, 0, 1, 2), halt},
			End:  map[int]Word{0: 0xFFFF_FFFE},
		},
		{
			Name: "Mul wraps",
			Setup: func(vm *Machine) {
				vm.SetReg(1, 0x1_0000)
				vm.SetReg(2, 0x1_0000)
				vm.SetReg(4, 0xFFFF_FFFF)
				vm.SetReg(5, 2)
			},
			Prog: []I{ABC(spec.Mul, 0, 1, 2), ABC(spec.Mul, 3, 4, 5), halt},
			End:  map[int]Word{0: 0, 3: 0xFFFF_FFFE},
		},
		{
			Name: "Div truncates",
			Setup: func(vm *Machine) {
				vm.SetReg(1, 7)
				vm.SetReg(2, 2)
				vm.SetReg(4, 0xFFFF_FFFF)
				vm.SetReg(5, 0x1_0000)
			},
			Prog: []I{ABC(spec.Div, 0, 1, 2), ABC(spec.Div, 3, 4, 5), halt},
			End:  map[int]Word{0: 3, 3: 0xFFFF},
		},
		{
			Name: "NAND",
			Setup: func(vm *Machine) {
				vm.SetReg(1, 0xF0F0_F0F0)
				vm.SetReg(2, 0xFF00_FF00)
			},
			Prog: []I{ABC(spec.NAND, 0, 1, 2), ABC(spec.NAND, 3, 4, 4), halt},
			End:  map[int]Word{0: 0x0FFF_0FFF, 3: 0xFFFF_FFFF},
		},
		{
			Name: "LoadValue",
			Prog: []I{Imm(3, spec.MaxValue), Imm(7, 72), halt},
			End:  map[int]Word{3: 0x1FF_FFFF, 7: 72},
		},
		{
			Name: "Map Amend Index",
			Prog: []I{
				Imm(1, 4),
				ABC(spec.Map, 0, 2, 1),
				Imm(3, 2),
				Imm(4, 99),
				ABC(spec.Amend, 2, 3, 4),
				ABC(spec.Index, 5, 2, 3),
				halt,
			},
			End: map[int]Word{2: 1, 5: 99},
		},
		{
			Name: "LoadProgram jump",
			Prog: []I{
				Imm(1, 4),
				ABC(spec.LoadProgram, 0, 0, 1),
				Imm(2, 111),
				Imm(2, 222),
				halt,
			},
			End: map[int]Word{1: 4, 2: 0},
		},
		{
			Name: "Loop",
			Prog: []I{
				Imm(1, 3),
				Imm(2, 1),
				ABC(spec.NAND, 7, 0, 0), // r7 = -1
				Imm(3, 4),
				// loop:
				ABC(spec.Add, 1, 1, 7),
				ABC(spec.Add, 6, 6, 2),
				Imm(4, 10),
				ABC(spec.CMov, 4, 3, 1),
				ABC(spec.LoadProgram, 0, 0, 4),
				Imm(5, 77),
				// exit:
				halt,
			},
			End: map[int]Word{1: 0, 6: 3, 5: 0},
		},
	}
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			vm, err := runProg(t, DefaultConfig(), tc.Setup, tc.Prog...)
			require.NoError(t, err)
			require.True(t, vm.Halted())
			for i, x := range tc.End {
				require.Equal(t, x, vm.Reg(i), "r%d", i)
			}
		})
	}
}

func TestHello(t *testing.T) {
	t.Parallel()
	out := bytes.Buffer{}
	prog := EncodeAll(Imm(0, 72), ABC(spec.Output, 0, 0, 0), halt)
	vm := New(prog, Config{Output: &out})
	require.NoError(t, vm.Main(testutil.Context(t)))
	require.Equal(t, "H", out.String())
	require.Equal(t, uint64(3), vm.Steps())
}

func TestOutputTruncates(t *testing.T) {
	t.Parallel()
	out := bytes.Buffer{}
	_, err := runProg(t, Config{Output: &out}, func(vm *Machine) {
		vm.SetReg(0, 0x141)
	}, ABC(spec.Output, 0, 0, 0), halt)
	require.NoError(t, err)
	require.Equal(t, "A", out.String())
}

func TestInput(t *testing.T) {
	t.Parallel()
	in := strings.NewReader("ab")
	vm, err := runProg(t, Config{Input: in}, nil,
		ABC(spec.Input, 0, 0, 1),
		ABC(spec.Input, 0, 0, 2),
		ABC(spec.Input, 0, 0, 3),
		ABC(spec.Input, 0, 0, 4),
		halt,
	)
	require.NoError(t, err)
	require.Equal(t, Word('a'), vm.Reg(1))
	require.Equal(t, Word('b'), vm.Reg(2))
	require.Equal(t, EOF, vm.Reg(3))
	require.Equal(t, Word(0xFFFF_FFFF), vm.Reg(4))
}

func TestInputNoStream(t *testing.T) {
	t.Parallel()
	vm, err := runProg(t, DefaultConfig(), nil, ABC(spec.Input, 0, 0, 5), halt)
	require.NoError(t, err)
	require.Equal(t, EOF, vm.Reg(5))
}

type onlyReader struct{ r *strings.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

func TestInputReaderReadsOneByte(t *testing.T) {
	t.Parallel()
	r := strings.NewReader("xyz")
	vm, err := runProg(t, Config{Input: onlyReader{r}}, nil, ABC(spec.Input, 0, 0, 0), halt)
	require.NoError(t, err)
	require.Equal(t, Word('x'), vm.Reg(0))
	// nothing was read ahead
	require.Equal(t, 2, r.Len())
}

type errReadWriter struct{}

func (errReadWriter) Read([]byte) (int, error)  { return 0, errors.New("broken") }
func (errReadWriter) Write([]byte) (int, error) { return 0, errors.New("broken") }

func TestIOErrors(t *testing.T) {
	t.Parallel()
	_, err := runProg(t, Config{Output: errReadWriter{}}, nil, ABC(spec.Output, 0, 0, 0), halt)
	require.ErrorIs(t, err, ErrIO)

	vm, err := runProg(t, Config{Input: errReadWriter{}}, func(vm *Machine) {
		vm.SetReg(0, 3)
	}, ABC(spec.Input, 0, 0, 0), halt)
	require.ErrorIs(t, err, ErrIO)
	require.Equal(t, Word(3), vm.Reg(0))
}

func TestFaults(t *testing.T) {
	t.Parallel()
	type testCase struct {
		Name  string
		Setup func(vm *Machine)
		Prog  []Word
		Err   error
		// Reg0 is the value of r0 after the fault
		Reg0 Word
	}
	tcs := []testCase{
		{
			Name: "Div by zero",
			Setup: func(vm *Machine) {
				vm.SetReg(0, 42)
				vm.SetReg(1, 7)
			},
			Prog: EncodeAll(ABC(spec.Div, 0, 1, 2), halt),
			Err:  ErrDivideByZero,
			Reg0: 42,
		},
		{
			Name: "Invalid op 14",
			Prog: []Word{0xE000_0000},
			Err:  ErrInvalidOp,
		},
		{
			Name: "Invalid op 15",
			Prog: []Word{0xF000_0000},
			Err:  ErrInvalidOp,
		},
		{
			Name: "Index unmapped",
			Setup: func(vm *Machine) {
				vm.SetReg(0, 42)
				vm.SetReg(1, 3)
			},
			Prog: EncodeAll(ABC(spec.Index, 0, 1, 2), halt),
			Err:  ErrUnmappedSegment,
			Reg0: 42,
		},
		{
			Name: "Index out of bounds",
			Setup: func(vm *Machine) {
				vm.SetReg(0, 42)
				vm.SetReg(2, 2)
			},
			// segment 0 has 2 words
			Prog: EncodeAll(ABC(spec.Index, 0, 1, 2), halt),
			Err:  ErrOutOfBounds,
			Reg0: 42,
		},
		{
			Name: "Amend unmapped",
			Setup: func(vm *Machine) {
				vm.SetReg(0, 1)
			},
			Prog: EncodeAll(ABC(spec.Amend, 0, 1, 2), halt),
			Err:  ErrUnmappedSegment,
			Reg0: 1,
		},
		{
			Name: "Amend out of bounds",
			Setup: func(vm *Machine) {
				vm.SetReg(1, 0xFFFF_FFFF)
			},
			Prog: EncodeAll(ABC(spec.Amend, 0, 1, 2), halt),
			Err:  ErrOutOfBounds,
		},
		{
			Name: "Unmap 0",
			Prog: EncodeAll(ABC(spec.Unmap, 0, 0, 0), halt),
			Err:  ErrUnmapReserved,
		},
		{
			Name: "Unmap never mapped",
			Setup: func(vm *Machine) {
				vm.SetReg(0, 5)
			},
			Prog: EncodeAll(ABC(spec.Unmap, 0, 0, 0), halt),
			Err:  ErrUnmappedSegment,
			Reg0: 5,
		},
		{
			Name: "Unmap twice",
			Prog: EncodeAll(
				ABC(spec.Map, 0, 1, 0),
				ABC(spec.Unmap, 0, 0, 1),
				ABC(spec.Unmap, 0, 0, 1),
				halt,
			),
			Err: ErrUnmappedSegment,
		},
		{
			Name: "LoadProgram unmapped",
			Setup: func(vm *Machine) {
				vm.SetReg(1, 9)
			},
			Prog: EncodeAll(ABC(spec.LoadProgram, 0, 1, 0), halt),
			Err:  ErrUnmappedSegment,
		},
		{
			Name: "Run off the end",
			Prog: EncodeAll(Imm(0, 1)),
			Err:  ErrPCOutOfRange,
			Reg0: 1,
		},
		{
			Name: "Empty program",
			Prog: nil,
			Err:  ErrPCOutOfRange,
		},
		{
			Name: "Jump past the end",
			Setup: func(vm *Machine) {
				vm.SetReg(0, 100)
			},
			Prog: EncodeAll(ABC(spec.LoadProgram, 0, 1, 0), halt),
			Err:  ErrPCOutOfRange,
			Reg0: 100,
		},
	}
	for _, tc := range tcs {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			t.Parallel()
			vm := New(tc.Prog, DefaultConfig())
			if tc.Setup != nil {
				tc.Setup(vm)
			}
			err := vm.Main(testutil.Context(t))
			require.ErrorIs(t, err, tc.Err)
			var fault *Fault
			require.ErrorAs(t, err, &fault)
			require.Equal(t, err, vm.Err())
			require.False(t, vm.Halted())
			require.Equal(t, tc.Reg0, vm.Reg(0))

			// the machine cannot be resumed
			require.Equal(t, err, vm.Step())
			require.Equal(t, uint64(0), vm.Run(context.Background(), 10))
		})
	}
}

func TestFaultReport(t *testing.T) {
	t.Parallel()
	prog := EncodeAll(Imm(1, 1), Imm(2, 2), Imm(3, 3), ABC(spec.Div, 0, 1, 4))
	vm := New(prog, Config{TraceDepth: 2})
	err := vm.Main(testutil.Context(t))
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	require.False(t, fault.Fetch)
	require.Equal(t, uint32(3), fault.PC)
	require.Equal(t, prog[3], fault.Word)
	require.Equal(t, ABC(spec.Div, 0, 1, 4), fault.Instr)
	require.Equal(t, []TraceEntry{{PC: 2, Word: prog[2]}, {PC: 3, Word: prog[3]}}, fault.Recent)
	require.Contains(t, fault.Error(), "pc=3")
	require.Contains(t, fault.Error(), "division by zero")
	require.Equal(t, 2, strings.Count(fault.Backtrace(), "\n"))

	vm = New(EncodeAll(Imm(1, 1)), Config{})
	err = vm.Main(testutil.Context(t))
	require.ErrorAs(t, err, &fault)
	require.True(t, fault.Fetch)
	require.Equal(t, uint32(1), fault.PC)
	require.Empty(t, fault.Recent)
}

func TestStepHalted(t *testing.T) {
	t.Parallel()
	vm := New(EncodeAll(Imm(0, 1), halt, Imm(0, 2)), DefaultConfig())
	require.NoError(t, vm.Step())
	require.NoError(t, vm.Step())
	require.True(t, vm.Halted())
	require.ErrorIs(t, vm.Step(), ErrHalted)
	require.Equal(t, Word(1), vm.Reg(0))
	require.Equal(t, uint32(2), vm.PC())
	require.NoError(t, vm.Main(testutil.Context(t)))
}

func TestExecStepLimit(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	// r0 == 0, so this jumps to itself forever
	vm := New(EncodeAll(ABC(spec.LoadProgram, 0, 0, 0)), DefaultConfig())
	require.ErrorIs(t, vm.Exec(ctx, 100), ErrStepLimit)
	require.Equal(t, uint64(100), vm.Steps())
	require.NoError(t, vm.Err())
	require.ErrorIs(t, vm.Exec(ctx, 50), ErrStepLimit)
	require.Equal(t, uint64(150), vm.Steps())
}

func TestExecCancel(t *testing.T) {
	t.Parallel()
	ctx, cf := context.WithCancel(testutil.Context(t))
	cf()
	vm := New(EncodeAll(ABC(spec.LoadProgram, 0, 0, 0)), DefaultConfig())
	require.ErrorIs(t, vm.Main(ctx), context.Canceled)
	require.NoError(t, vm.Err())
	require.False(t, vm.Halted())
}

func TestReset(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	prog := EncodeAll(Imm(0, 5), ABC(spec.Map, 0, 1, 0), halt)
	vm := New(prog, DefaultConfig())
	require.NoError(t, vm.Main(ctx))
	require.Equal(t, Word(1), vm.HighWater())

	vm.Reset(EncodeAll(Imm(2, 9), halt))
	require.Equal(t, [spec.NumRegisters]Word{}, vm.Regs())
	require.Equal(t, uint32(0), vm.PC())
	require.Equal(t, Word(0), vm.HighWater())
	require.False(t, vm.Mapped(1))
	require.False(t, vm.Halted())
	require.Equal(t, uint64(0), vm.Steps())
	require.NoError(t, vm.Main(ctx))
	require.Equal(t, Word(9), vm.Reg(2))
}

func TestProgramCopied(t *testing.T) {
	t.Parallel()
	ctx := testutil.Context(t)
	// overwrite the first word of the program with 0
	prog := EncodeAll(Imm(1, 7), ABC(spec.Amend, 0, 0, 0), halt)
	orig := append([]Word{}, prog...)
	vm1 := New(prog, DefaultConfig())
	vm2 := New(prog, DefaultConfig())
	require.NoError(t, vm1.Main(ctx))

	seg0, ok := vm1.Segment(0)
	require.True(t, ok)
	require.Equal(t, Word(0), seg0[0])
	require.Equal(t, orig, prog)

	require.NoError(t, vm2.Main(ctx))
	require.Equal(t, Word(7), vm2.Reg(1))
}

func TestStats(t *testing.T) {
	t.Parallel()
	vm, err := runProg(t, DefaultConfig(), nil,
		Imm(0, 2),
		ABC(spec.Map, 0, 1, 0),
		ABC(spec.Map, 0, 2, 0),
		ABC(spec.Unmap, 0, 0, 1),
		ABC(spec.Add, 3, 3, 3),
		halt,
	)
	require.NoError(t, err)
	st := vm.Stats()
	require.Equal(t, uint64(6), st.Steps)
	require.Equal(t, uint64(2), st.Ops[spec.Map])
	require.Equal(t, uint64(1), st.Ops[spec.Halt])
	require.Equal(t, uint64(2), st.Maps)
	require.Equal(t, uint64(1), st.Unmaps)
	require.Equal(t, 2, st.LiveSegments)
	require.Equal(t, 3, st.PeakLiveSegments)

	buf := bytes.Buffer{}
	_, err = st.WriteTo(&buf)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "Map")
	require.NotContains(t, buf.String(), "Div")
	require.Contains(t, buf.String(), "[registers]")
	require.Contains(t, buf.String(), "[segments]")
	require.NotContains(t, buf.String(), "[io]")
}

func TestOpGroups(t *testing.T) {
	t.Parallel()
	var all []spec.Op
	for _, g := range opGroups() {
		all = append(all, g.ops...)
	}
	require.ElementsMatch(t, spec.All(), all)
	require.Contains(t, opGroups()[0].ops, spec.NAND)
	require.Equal(t, spec.AllIO(), opGroups()[2].ops)
}
