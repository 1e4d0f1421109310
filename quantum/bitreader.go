package quantum

import (
	"bufio"
	"io"
)

// maxPadding is the number of zero bits that may be consumed past the end of
// the input before the stream is considered truncated.
const maxPadding = 16

// bitReader reads bits most significant first, one byte at a time. Reading
// past the end of the input yields zero bits.
type bitReader struct {
	r *bufio.Reader

	cachedData uint64
	cacheSize  int

	padding     int
	paddingUsed int
	err         error
}

func newBitReader(r io.Reader) *bitReader {
	return &bitReader{r: bufio.NewReaderSize(r, 4096)}
}

func (b *bitReader) readBits(c int) (uint32, error) {
	for c > b.cacheSize {
		var next byte
		if b.err == nil {
			var err error
			if next, err = b.r.ReadByte(); err != nil {
				b.err = err
			}
		}
		if b.err != nil {
			next = 0
			b.padding += 8
		}
		b.cachedData = b.cachedData<<8 | uint64(next)
		b.cacheSize += 8
	}
	result := uint32(b.cachedData >> (b.cacheSize - c) & (1<<c - 1))
	b.cacheSize -= c
	b.cachedData &= 1<<b.cacheSize - 1
	if b.cacheSize < b.padding {
		b.paddingUsed += b.padding - b.cacheSize
		b.padding = b.cacheSize
		if b.err != io.EOF {
			return 0, b.err
		}
		if b.paddingUsed > maxPadding {
			return 0, io.ErrUnexpectedEOF
		}
	}
	return result, nil
}

// alignByte drops bits up to the next byte boundary.
func (b *bitReader) alignByte() {
	b.cacheSize -= b.cacheSize % 8
	b.cachedData &= 1<<b.cacheSize - 1
	if b.padding > b.cacheSize {
		b.padding = b.cacheSize
	}
}
