// package um is a Universal Machine: a register machine running 32 bit instruction words
// against a table of dynamically allocated segments.
//
// The machine itself lives in umvm, the operation table in spec.
package um

import (
	"encoding/base64"
	"fmt"

	"lukechampine.com/blake3"

	"myceliumweb.org/um/spec"
)

const (
	WordBits     = spec.WordBits
	WordBytes    = WordBits / 8
	NumRegisters = spec.NumRegisters
)

// Word is the unit of every register, segment slot and instruction.
type Word = uint32

const (
	FingerprintSize = 32
	// Base64Alphabet is used when encoding Fingerprints as base64 strings.
	// It is a URL and filepath safe encoding, which maintains ordering.
	Base64Alphabet = "-0123456789" + "ABCDEFGHIJKLMNOPQRSTUVWXYZ" + "_" + "abcdefghijklmnopqrstuvwxyz"
)

// Fingerprint identifies the contents of a program image
type Fingerprint [FingerprintSize]byte

var enc = base64.NewEncoding(Base64Alphabet).WithPadding(base64.NoPadding)

func (fp Fingerprint) String() string {
	return enc.EncodeToString(fp[:])
}

func (fp Fingerprint) IsZero() bool {
	return fp == (Fingerprint{})
}

// ParseFingerprint decodes the output of Fingerprint.String
func ParseFingerprint(x string) (ret Fingerprint, err error) {
	if enc.DecodedLen(len(x)) != FingerprintSize {
		return Fingerprint{}, fmt.Errorf("fingerprint must be %d base64 characters, have %d", enc.EncodedLen(FingerprintSize), len(x))
	}
	if _, err := enc.Decode(ret[:], []byte(x)); err != nil {
		return Fingerprint{}, err
	}
	return ret, nil
}

func (fp Fingerprint) MarshalText() ([]byte, error) {
	return []byte(fp.String()), nil
}

func (fp *Fingerprint) UnmarshalText(data []byte) error {
	x, err := ParseFingerprint(string(data))
	if err != nil {
		return err
	}
	*fp = x
	return nil
}

// Hash calculates the Fingerprint of x.
func Hash(x []byte) (ret Fingerprint) {
	h := blake3.New(FingerprintSize, nil)
	h.Write(x)
	h.Sum(ret[:0])
	return ret
}
