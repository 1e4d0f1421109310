// Package quantum implements a decoder for the Quantum compression format
// used in cabinet folders.
package quantum

import (
	"errors"
	"fmt"
	"io"
)

const (
	MinWindowBits = 10
	MaxWindowBits = 21

	frameSize = 32768
)

var errInvalidSelector = errors.New("quantum: invalid selector")

// Reader decompresses a Quantum stream. The input of every cabinet data block
// must be followed by a 0xFF trailer byte, which the decoder uses to realign
// at frame ends.
type Reader struct {
	bits *bitReader

	window     []byte
	windowMask uint32
	windowPos  uint32

	literals [4]*model
	model4   *model
	model5   *model
	model6   *model
	model6l  *model
	model7   *model

	h, l, c    uint16
	headerRead bool
	frameTodo  int

	size     int64
	produced int64

	pending []byte
	buf     []byte
	err     error
}

// NewReader returns a reader that decompresses size bytes from r using a
// window of 2^windowBits bytes.
func NewReader(r io.Reader, windowBits int, size int64) (*Reader, error) {
	if windowBits < MinWindowBits || windowBits > MaxWindowBits {
		return nil, fmt.Errorf("quantum: unsupported window size 2^%d", windowBits)
	}
	slots := windowBits * 2
	z := &Reader{
		bits:       newBitReader(r),
		window:     make([]byte, 1<<windowBits),
		windowMask: 1<<windowBits - 1,
		model4:     newModel(0, min(slots, 24)),
		model5:     newModel(0, min(slots, 36)),
		model6:     newModel(0, slots),
		model6l:    newModel(0, lengthSlots),
		model7:     newModel(0, 7),
		frameTodo:  frameSize,
		size:       size,
		buf:        make([]byte, 0, frameSize+lengthSlots+260),
	}
	for i := range z.literals {
		z.literals[i] = newModel(i*64, 64)
	}
	return z, nil
}

func (z *Reader) Read(p []byte) (int, error) {
	for len(z.pending) == 0 {
		if z.err != nil {
			return 0, z.err
		}
		if z.produced >= z.size {
			return 0, io.EOF
		}
		if err := z.decodeFrame(); err != nil {
			z.err = err
			return 0, err
		}
	}
	n := copy(p, z.pending)
	z.pending = z.pending[n:]
	return n, nil
}

// decodeFrame decodes the rest of the current frame, or as much of it as
// is needed to reach the end of the stream.
func (z *Reader) decodeFrame() error {
	if !z.headerRead {
		z.h = 0xFFFF
		z.l = 0
		c, err := z.bits.readBits(16)
		if err != nil {
			return err
		}
		z.c = uint16(c)
		z.headerRead = true
	}

	want := int(min(int64(z.frameTodo), z.size-z.produced))
	out := z.buf[:0]
	for len(out) < want {
		selector, err := z.symbol(z.model7)
		if err != nil {
			return err
		}
		if selector < 4 {
			sym, err := z.symbol(z.literals[selector])
			if err != nil {
				return err
			}
			out = z.emit(out, byte(sym))
			z.frameTodo--
			continue
		}

		var matchOffset uint32
		var matchLength int
		switch selector {
		case 4:
			matchOffset, err = z.offset(z.model4)
			matchLength = 3
		case 5:
			matchOffset, err = z.offset(z.model5)
			matchLength = 4
		case 6:
			var sym uint16
			if sym, err = z.symbol(z.model6l); err != nil {
				return err
			}
			var extra uint32
			if extra, err = z.bits.readBits(int(lengthExtra[sym])); err != nil {
				return err
			}
			matchLength = int(lengthBase[sym]) + int(extra) + 5
			matchOffset, err = z.offset(z.model6)
		default:
			return errInvalidSelector
		}
		if err != nil {
			return err
		}
		total := z.produced + int64(len(out))
		if matchOffset > uint32(len(z.window)) || int64(matchOffset) > total {
			return fmt.Errorf("quantum: match offset %d beyond decoded data", matchOffset)
		}
		z.frameTodo -= matchLength
		for i := 0; i < matchLength; i++ {
			out = z.emit(out, z.window[(z.windowPos-matchOffset)&z.windowMask])
		}
	}
	if z.frameTodo < 0 {
		return fmt.Errorf("quantum: match crosses frame boundary at %d", z.produced+int64(len(out)))
	}

	if z.frameTodo == 0 {
		// Realign to the next data block trailer
		z.bits.alignByte()
		for {
			b, err := z.bits.readBits(8)
			if err != nil {
				return err
			}
			if b == 0xFF {
				break
			}
		}
		z.headerRead = false
		z.frameTodo = frameSize
	}

	if len(out) > want {
		out = out[:want]
	}
	z.pending = out
	z.produced += int64(len(out))
	return nil
}

func (z *Reader) emit(out []byte, b byte) []byte {
	z.window[z.windowPos] = b
	z.windowPos = (z.windowPos + 1) & z.windowMask
	return append(out, b)
}

func (z *Reader) offset(m *model) (uint32, error) {
	sym, err := z.symbol(m)
	if err != nil {
		return 0, err
	}
	extra, err := z.bits.readBits(int(positionExtra[sym]))
	if err != nil {
		return 0, err
	}
	return positionBase[sym] + extra + 1, nil
}

// symbol decodes one symbol with the arithmetic decoder and adapts m.
func (z *Reader) symbol(m *model) (uint16, error) {
	rng := uint32(z.h-z.l) + 1
	symf := uint16(((uint32(z.c-z.l)+1)*uint32(m.syms[0].cumfreq) - 1) / rng)

	i := 1
	for ; i < m.entries; i++ {
		if m.syms[i].cumfreq <= symf {
			break
		}
	}
	sym := m.syms[i-1].sym

	total := uint32(m.syms[0].cumfreq)
	l := z.l
	z.h = l + uint16(uint32(m.syms[i-1].cumfreq)*rng/total) - 1
	z.l = l + uint16(uint32(m.syms[i].cumfreq)*rng/total)

	for j := i - 1; j >= 0; j-- {
		m.syms[j].cumfreq += 8
	}
	if m.syms[0].cumfreq > 3800 {
		m.update()
	}

	for {
		if z.l&0x8000 != z.h&0x8000 {
			if z.l&0x4000 != 0 && z.h&0x4000 == 0 {
				// underflow case
				z.c ^= 0x4000
				z.l &= 0x3FFF
				z.h |= 0x4000
			} else {
				break
			}
		}
		z.l <<= 1
		z.h = z.h<<1 | 1
		bit, err := z.bits.readBits(1)
		if err != nil {
			return 0, err
		}
		z.c = z.c<<1 | uint16(bit)
	}
	return sym, nil
}
