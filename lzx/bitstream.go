package lzx

import (
	"bufio"
	"errors"
	"io"
)

// maxPadding is the number of zero bits that may be consumed past the end of
// the input before the stream is considered truncated.
const maxPadding = 16

// bitStream reads 16-bit little-endian words, most significant bit first.
// Reading past the end of the input yields zero bits; an error is only
// reported once those zero bits are actually consumed.
type bitStream struct {
	Internal *bufio.Reader

	// Currently cached bits
	cachedData uint64
	// Number of bits cached in cachedData
	cacheSize int

	// Number of zero bits at the bottom of cachedData that were not read from the input
	padding int
	// Number of padding bits consumed so far
	paddingUsed int
	err         error
}

func newBitStream(r io.Reader) *bitStream {
	return &bitStream{Internal: bufio.NewReaderSize(r, 4096)}
}

func (b *bitStream) ReadBits(c int) (uint32, error) {
	bits, err := b.PeekBits(c)
	if err != nil {
		return 0, err
	}
	if err := b.consume(c); err != nil {
		return 0, err
	}
	return bits, nil
}

func (b *bitStream) PeekBits(c int) (uint32, error) {
	if c > 32 || c < 0 {
		return 0, errors.New("invalid bit read")
	}
	for c > b.cacheSize {
		// Read new data
		var nextData [2]byte
		if b.err == nil {
			if _, err := io.ReadFull(b.Internal, nextData[:]); err != nil {
				b.err = err
			}
		}
		if b.err != nil {
			nextData = [2]byte{}
			b.padding += 16
		}
		b.cachedData = b.cachedData<<16 | uint64(nextData[1])<<8 | uint64(nextData[0])
		b.cacheSize += 16
	}
	result := b.cachedData >> (b.cacheSize - c) & (1<<c - 1)
	return uint32(result), nil
}

func (b *bitStream) consume(c int) error {
	b.cacheSize -= c
	b.cachedData &= 1<<b.cacheSize - 1
	if b.cacheSize >= b.padding {
		return nil
	}
	b.paddingUsed += b.padding - b.cacheSize
	b.padding = b.cacheSize
	if b.err != io.EOF && b.err != io.ErrUnexpectedEOF {
		return b.err
	}
	if b.paddingUsed > maxPadding {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// Align drops bits up to the next 16-bit boundary.
func (b *bitStream) Align() {
	b.cacheSize -= b.cacheSize % 16 // Align to 16 bits
	b.cachedData &= 1<<b.cacheSize - 1
	if b.padding > b.cacheSize {
		b.padding = b.cacheSize
	}
}

// AlignBytes prepares the stream for reading raw bytes. If no bits are cached
// a whole 16-bit word of padding is skipped.
func (b *bitStream) AlignBytes() error {
	if b.cacheSize == 0 {
		if _, err := b.ReadBits(16); err != nil {
			return err
		}
	}
	b.cacheSize = 0
	b.cachedData = 0
	b.padding = 0
	return nil
}

// ReadRaw reads bytes directly from the input, bypassing the bit cache.
func (b *bitStream) ReadRaw(p []byte) error {
	if b.err != nil {
		return b.err
	}
	if _, err := io.ReadFull(b.Internal, p); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		b.err = err
		return err
	}
	return nil
}
