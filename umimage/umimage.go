// package umimage reads and writes program images.
//
// An image is a sequence of 32 bit big endian words, loaded verbatim into segment 0.
package umimage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"myceliumweb.org/um"
)

type Word = um.Word

// Image is a parsed program image
type Image struct {
	Words       []Word
	Fingerprint um.Fingerprint
	// Size is the size of the image in bytes
	Size int64
}

// Parse decodes data as a sequence of big endian words.
func Parse(data []byte) ([]Word, error) {
	if len(data)%um.WordBytes != 0 {
		return nil, fmt.Errorf("umimage: length %d is not a multiple of %d", len(data), um.WordBytes)
	}
	words := make([]Word, len(data)/um.WordBytes)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(data[i*um.WordBytes:])
	}
	return words, nil
}

// FromBytes parses data and computes its Fingerprint
func FromBytes(data []byte) (*Image, error) {
	words, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return &Image{
		Words:       words,
		Fingerprint: um.Hash(data),
		Size:        int64(len(data)),
	}, nil
}

// Read reads an entire image from r
func Read(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return FromBytes(data)
}

// Load reads the image file at p
func Load(p string) (*Image, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	img, err := FromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return img, nil
}

// Write writes words to w as an image
func Write(w io.Writer, words []Word) error {
	bw := bufio.NewWriter(w)
	var buf [um.WordBytes]byte
	for _, x := range words {
		binary.BigEndian.PutUint32(buf[:], x)
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Marshal returns the image bytes for words
func Marshal(words []Word) []byte {
	out := make([]byte, 0, len(words)*um.WordBytes)
	for _, x := range words {
		out = binary.BigEndian.AppendUint32(out, x)
	}
	return out
}
