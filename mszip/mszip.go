// Package mszip decodes MS-ZIP compressed cabinet data blocks. Each block is a
// complete deflate stream preceded by the "CK" signature; the history of the
// previous blocks is used as preset dictionary.
package mszip

import (
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"io"
)

const maxWindow = 1 << 15 // Maximum size of a DEFLATE window

var (
	// ErrInvalidHeader is returned for a block that does not start with "CK".
	ErrInvalidHeader = errors.New("invalid MS-ZIP header")
	// ErrBlockTooLong is returned for a block that inflates to more than its
	// declared size.
	ErrBlockTooLong = errors.New("mszip: block expands beyond its declared size")
)

// Decoder decompresses the blocks of one folder in order.
type Decoder struct {
	dict memoryReader
}

func checkBlockHeader(block []byte) error {
	if len(block) < 2 || block[0] != 0x43 || block[1] != 0x4B {
		return ErrInvalidHeader
	}
	return nil
}

// Decompress decodes the next block of the folder, which must expand to
// exactly size bytes.
func (d *Decoder) Decompress(block []byte, size int) ([]byte, error) {
	if err := checkBlockHeader(block); err != nil {
		return nil, err
	}
	reader := flate.NewReaderDict(bytes.NewReader(block[2:]), d.dict.B)
	defer reader.Close()

	out := make([]byte, size)
	if _, err := io.ReadFull(reader, out); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("mszip: %w", err)
	}
	var extra [1]byte
	if n, err := reader.Read(extra[:]); n > 0 {
		return nil, ErrBlockTooLong
	} else if err != io.EOF {
		if err == nil {
			err = io.ErrNoProgress
		}
		return nil, fmt.Errorf("mszip: %w", err)
	}
	d.dict.remember(out)
	return out, nil
}

// memoryReader remembers up to 32KiB of the last bytes decoded.
type memoryReader struct {
	B []byte
}

func (mr *memoryReader) remember(readData []byte) {
	if len(readData) >= maxWindow {
		if len(mr.B) != maxWindow {
			mr.B = make([]byte, maxWindow)
		}
		copy(mr.B, readData[len(readData)-maxWindow:])
		return
	}
	// Always copy, the caller owns readData
	b := make([]byte, 0, min(len(mr.B)+len(readData), maxWindow))
	if keep := maxWindow - len(readData); len(mr.B) > keep {
		b = append(b, mr.B[len(mr.B)-keep:]...)
	} else {
		b = append(b, mr.B...)
	}
	mr.B = append(b, readData...)
}
