// package bitpack reads and writes unsigned bit fields packed into a 32 bit word.
//
// A field is described by its width in bits and the position of its least significant bit.
package bitpack

import "fmt"

type Word = uint32

const WordBits = 32

// Fitsu returns true if x can be represented in an unsigned field of width bits.
func Fitsu(x Word, width uint) bool {
	if width >= WordBits {
		return true
	}
	return x>>width == 0
}

// Getu returns the field of word with the given width and least significant bit.
func Getu(word Word, width, lsb uint) Word {
	checkField(width, lsb)
	return (word >> lsb) & mask(width)
}

// Newu returns word with the field replaced by value.
// Newu panics if value does not fit in the field.
func Newu(word Word, width, lsb uint, value Word) Word {
	checkField(width, lsb)
	if !Fitsu(value, width) {
		panic(fmt.Sprintf("bitpack: value %d does not fit in %d bits", value, width))
	}
	m := mask(width) << lsb
	return (word &^ m) | (value << lsb)
}

func mask(width uint) Word {
	if width >= WordBits {
		return ^Word(0)
	}
	return 1<<width - 1
}

func checkField(width, lsb uint) {
	if width+lsb > WordBits {
		panic(fmt.Sprintf("bitpack: out of bounds field. width=%d lsb=%d", width, lsb))
	}
}
