package umvm

import (
	"errors"
	"fmt"
	"io"
)

// EOF is written to the Input register at the end of the input stream.
const EOF = ^Word(0)

// port moves single bytes between the machine and its streams.
// Nothing is buffered here; a reader or writer which buffers does so on its own.
type port struct {
	in  io.Reader
	out io.Writer
	buf [1]byte
}

func newPort(in io.Reader, out io.Writer) port {
	if in == nil {
		in = eofReader{}
	}
	if out == nil {
		out = io.Discard
	}
	return port{in: in, out: out}
}

// readByte returns io.EOF at the end of the stream
func (p *port) readByte() (byte, error) {
	if br, ok := p.in.(io.ByteReader); ok {
		return br.ReadByte()
	}
	if _, err := io.ReadFull(p.in, p.buf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return 0, err
	}
	return p.buf[0], nil
}

func (p *port) writeByte(b byte) error {
	if bw, ok := p.out.(io.ByteWriter); ok {
		return bw.WriteByte(b)
	}
	p.buf[0] = b
	_, err := p.out.Write(p.buf[:])
	return err
}

// output writes the low byte of R[C]
func (vm *Machine) output(ix I) {
	if err := vm.port.writeByte(byte(vm.regs[ix.C])); err != nil {
		vm.fail(fmt.Errorf("output: %w: %w", ErrIO, err))
	}
}

// input reads a byte into R[C], or EOF at the end of the stream
func (vm *Machine) input(ix I) {
	b, err := vm.port.readByte()
	switch {
	case errors.Is(err, io.EOF):
		vm.regs[ix.C] = EOF
	case err != nil:
		vm.fail(fmt.Errorf("input: %w: %w", ErrIO, err))
	default:
		vm.regs[ix.C] = Word(b)
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) {
	return 0, io.EOF
}
