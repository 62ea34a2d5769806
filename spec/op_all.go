package spec

// All returns every operation which has a handler, in opcode order.
func All() (ret []Op) {
	for i := 0; i < NumOps; i++ {
		ret = append(ret, Op(i))
	}
	return ret
}

// AllSegment contains all the operations that manipulate the segment table
func AllSegment() []Op {
	return []Op{Index, Amend, Map, Unmap, LoadProgram}
}

// AllIO contains all the operations that touch the byte streams
func AllIO() []Op {
	return []Op{Output, Input}
}
