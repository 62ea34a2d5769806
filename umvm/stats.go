package umvm

import (
	"fmt"
	"io"
	"slices"

	"myceliumweb.org/um/spec"
)

// Stats are counters maintained while the machine runs
type Stats struct {
	Steps uint64 `json:"steps"`
	// Ops counts executed instructions by operation
	Ops [spec.NumOps]uint64 `json:"ops"`

	Maps         uint64 `json:"maps"`
	Unmaps       uint64 `json:"unmaps"`
	ProgramLoads uint64 `json:"program_loads"`

	// LiveSegments includes segment 0
	LiveSegments     int `json:"live_segments"`
	PeakLiveSegments int `json:"peak_live_segments"`
}

func (vm *Machine) Stats() Stats {
	return vm.stats
}

// WriteTo prints the counters as a table, one section per group of operations.
// Operations which were never executed are left out.
func (s Stats) WriteTo(w io.Writer) (int64, error) {
	var total int64
	printf := func(format string, args ...any) error {
		n, err := fmt.Fprintf(w, format, args...)
		total += int64(n)
		return err
	}
	if err := printf("%-12s %d\n", "steps", s.Steps); err != nil {
		return total, err
	}
	for _, g := range opGroups() {
		var ran bool
		for _, op := range g.ops {
			ran = ran || s.Ops[op] > 0
		}
		if !ran {
			continue
		}
		if err := printf("[%s]\n", g.name); err != nil {
			return total, err
		}
		for _, op := range g.ops {
			if s.Ops[op] == 0 {
				continue
			}
			if err := printf("  %-12v %d\n", op, s.Ops[op]); err != nil {
				return total, err
			}
		}
	}
	err := printf("segments     maps=%d unmaps=%d live=%d peak=%d loads=%d\n",
		s.Maps, s.Unmaps, s.LiveSegments, s.PeakLiveSegments, s.ProgramLoads)
	return total, err
}

type opGroup struct {
	name string
	ops  []spec.Op
}

// opGroups partitions spec.All into register, segment and io operations.
func opGroups() []opGroup {
	seg, ports := spec.AllSegment(), spec.AllIO()
	var reg []spec.Op
	for _, op := range spec.All() {
		if !slices.Contains(seg, op) && !slices.Contains(ports, op) {
			reg = append(reg, op)
		}
	}
	return []opGroup{
		{name: "registers", ops: reg},
		{name: "segments", ops: seg},
		{name: "io", ops: ports},
	}
}
