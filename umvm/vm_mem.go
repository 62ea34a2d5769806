package umvm

import (
	"fmt"
	"math"
	"slices"
)

// segment is an entry in the segment table.
// An unmapped segment has no words and is not live.
type segment struct {
	words []Word
	live  bool
}

// lookup returns the words of a mapped segment
func (vm *Machine) lookup(id Word) ([]Word, error) {
	if uint64(id) >= uint64(len(vm.segs)) || !vm.segs[id].live {
		return nil, fmt.Errorf("segment %d: %w", id, ErrUnmappedSegment)
	}
	return vm.segs[id].words, nil
}

func (vm *Machine) slot(id, offset Word) (*Word, error) {
	words, err := vm.lookup(id)
	if err != nil {
		return nil, err
	}
	if uint64(offset) >= uint64(len(words)) {
		return nil, fmt.Errorf("segment %d offset %d (len=%d): %w", id, offset, len(words), ErrOutOfBounds)
	}
	return &words[offset], nil
}

// index: R[A] = segment[R[B]][R[C]]
func (vm *Machine) index(ix I) {
	p, err := vm.slot(vm.regs[ix.B], vm.regs[ix.C])
	if err != nil {
		vm.fail(err)
		return
	}
	vm.regs[ix.A] = *p
}

// amend: segment[R[A]][R[B]] = R[C]
func (vm *Machine) amend(ix I) {
	p, err := vm.slot(vm.regs[ix.A], vm.regs[ix.B])
	if err != nil {
		vm.fail(err)
		return
	}
	*p = vm.regs[ix.C]
}

// mapSegment creates a zeroed segment of R[C] words and writes its id to R[B].
// The most recently unmapped id is reused before a new id is assigned.
func (vm *Machine) mapSegment(ix I) {
	n := vm.regs[ix.C]
	if lim := vm.cfg.MaxSegmentWords; lim > 0 && n > lim {
		vm.fail(fmt.Errorf("%d words, max %d: %w", n, lim, ErrSegmentTooLarge))
		return
	}
	id, err := vm.allocID()
	if err != nil {
		vm.fail(err)
		return
	}
	vm.segs[id] = segment{words: make([]Word, n), live: true}
	vm.regs[ix.B] = id

	vm.stats.Maps++
	vm.stats.LiveSegments++
	vm.stats.PeakLiveSegments = max(vm.stats.PeakLiveSegments, vm.stats.LiveSegments)
}

func (vm *Machine) allocID() (Word, error) {
	if l := len(vm.free); l > 0 {
		id := vm.free[l-1]
		vm.free = vm.free[:l-1]
		return id, nil
	}
	if vm.highWater == math.MaxUint32 {
		return 0, ErrIDSpaceExhausted
	}
	vm.highWater++
	vm.segs = append(vm.segs, segment{})
	return vm.highWater, nil
}

// unmapSegment releases segment R[C] and makes its id available to Map.
func (vm *Machine) unmapSegment(ix I) {
	id := vm.regs[ix.C]
	if id == 0 {
		vm.fail(ErrUnmapReserved)
		return
	}
	if _, err := vm.lookup(id); err != nil {
		vm.fail(err)
		return
	}
	vm.segs[id] = segment{}
	vm.free = append(vm.free, id)

	vm.stats.Unmaps++
	vm.stats.LiveSegments--
}

// loadProgram replaces segment 0 with a copy of segment R[B] unless R[B] is 0,
// then jumps to R[C].
// Nothing changes if R[B] is not mapped.
func (vm *Machine) loadProgram(ix I) {
	if id := vm.regs[ix.B]; id != 0 {
		words, err := vm.lookup(id)
		if err != nil {
			vm.fail(err)
			return
		}
		vm.segs[0].words = slices.Clone(words)
		vm.stats.ProgramLoads++
	}
	vm.pc = vm.regs[ix.C]
}

// Segment returns a copy of the words in segment id, and false if it is not mapped.
func (vm *Machine) Segment(id Word) ([]Word, bool) {
	words, err := vm.lookup(id)
	if err != nil {
		return nil, false
	}
	return slices.Clone(words), true
}

// Mapped returns true if id designates a live segment.
func (vm *Machine) Mapped(id Word) bool {
	_, err := vm.lookup(id)
	return err == nil
}

// HighWater returns the largest segment id ever assigned.
func (vm *Machine) HighWater() Word {
	return vm.highWater
}

// FreeIDs returns the ids waiting to be reused, the next one to be reused is last.
func (vm *Machine) FreeIDs() []Word {
	return slices.Clone(vm.free)
}
