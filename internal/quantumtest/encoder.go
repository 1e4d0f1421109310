// Package quantumtest produces Quantum compressed streams for tests. The
// encoder mirrors the adaptive models of the decoder and writes each 32 KiB
// frame as a separate byte slice, as stored in one cabinet data block.
package quantumtest

import (
	"fmt"
	"math/rand/v2"
)

const FrameSize = 32768

var (
	positionBase  [42]uint32
	positionExtra [42]uint8
	lengthBase    [27]int
	lengthExtra   [27]uint8
)

func init() {
	offset := uint32(0)
	for i := range positionBase {
		positionBase[i] = offset
		if i >= 2 {
			positionExtra[i] = uint8((i - 2) >> 1)
		}
		offset += 1 << positionExtra[i]
	}
	length := 0
	for i := 0; i < 26; i++ {
		lengthBase[i] = length
		if i >= 2 {
			lengthExtra[i] = uint8((i - 2) >> 2)
		}
		length += 1 << lengthExtra[i]
	}
	lengthBase[26] = 254
}

type symbol struct {
	sym     uint16
	cumfreq uint16
}

type model struct {
	shiftsLeft int
	entries    int
	syms       []symbol
}

func newModel(start, length int) *model {
	m := &model{shiftsLeft: 4, entries: length, syms: make([]symbol, length+1)}
	for i := range m.syms {
		m.syms[i] = symbol{sym: uint16(start + i), cumfreq: uint16(length - i)}
	}
	return m
}

func (m *model) update() {
	m.shiftsLeft--
	if m.shiftsLeft != 0 {
		for i := m.entries - 1; i >= 0; i-- {
			m.syms[i].cumfreq >>= 1
			if m.syms[i].cumfreq <= m.syms[i+1].cumfreq {
				m.syms[i].cumfreq = m.syms[i+1].cumfreq + 1
			}
		}
		return
	}
	m.shiftsLeft = 50
	for i := 0; i < m.entries; i++ {
		m.syms[i].cumfreq -= m.syms[i+1].cumfreq
		m.syms[i].cumfreq++
		m.syms[i].cumfreq >>= 1
	}
	for i := 0; i < m.entries-1; i++ {
		for j := i + 1; j < m.entries; j++ {
			if m.syms[i].cumfreq < m.syms[j].cumfreq {
				m.syms[i], m.syms[j] = m.syms[j], m.syms[i]
			}
		}
	}
	for i := m.entries - 1; i >= 0; i-- {
		m.syms[i].cumfreq += m.syms[i+1].cumfreq
	}
}

// rawBits are extra bits the decoder reads directly from the input once it
// has consumed at bits of arithmetic code.
type rawBits struct {
	at    int
	value uint32
	n     int
}

// Encoder writes a Quantum stream.
type Encoder struct {
	// Selectors counts the encoded tokens per selector: 0-3 literals, 4-6 matches.
	Selectors [7]int

	windowBits int
	literals   [4]*model
	model4     *model
	model5     *model
	model6     *model
	model6l    *model
	model7     *model

	h, l   uint16
	follow int
	shifts int
	arith  []byte
	raw    []rawBits
	dirty  bool

	pos    int
	frames [][]byte
}

func NewEncoder(windowBits int) *Encoder {
	slots := windowBits * 2
	e := &Encoder{
		windowBits: windowBits,
		model4:     newModel(0, min(slots, 24)),
		model5:     newModel(0, min(slots, 36)),
		model6:     newModel(0, slots),
		model6l:    newModel(0, 27),
		model7:     newModel(0, 7),
		h:          0xFFFF,
	}
	for i := range e.literals {
		e.literals[i] = newModel(i*64, 64)
	}
	return e
}

func (e *Encoder) Literal(b byte) {
	sel := int(b >> 6)
	e.encode(e.model7, uint16(sel))
	e.encode(e.literals[sel], uint16(b))
	e.Selectors[sel]++
	e.advance(1)
}

// Match copies length bytes from offset bytes back. Lengths of 3 and 4 use
// the short match selectors.
func (e *Encoder) Match(offset, length int) {
	if offset < 1 || offset > e.MaxOffset(length) {
		panic(fmt.Sprintf("quantumtest: offset %d not encodable for length %d", offset, length))
	}
	switch {
	case length == 3:
		e.encode(e.model7, 4)
		e.offset(e.model4, offset)
		e.Selectors[4]++
	case length == 4:
		e.encode(e.model7, 5)
		e.offset(e.model5, offset)
		e.Selectors[5]++
	case length >= 5 && length <= 259:
		e.encode(e.model7, 6)
		v := length - 5
		slot := 26
		for s := 0; s < 26; s++ {
			if v >= lengthBase[s] && v < lengthBase[s]+1<<lengthExtra[s] {
				slot = s
				break
			}
		}
		e.encode(e.model6l, uint16(slot))
		e.rawBits(uint32(v-lengthBase[slot]), int(lengthExtra[slot]))
		e.offset(e.model6, offset)
		e.Selectors[6]++
	default:
		panic(fmt.Sprintf("quantumtest: invalid match length %d", length))
	}
	e.advance(length)
}

// MaxOffset returns the largest offset a match of the given length can use.
func (e *Encoder) MaxOffset(length int) int {
	m := e.model6
	switch length {
	case 3:
		m = e.model4
	case 4:
		m = e.model5
	}
	last := m.entries - 1
	return min(int(positionBase[last])+1<<positionExtra[last], 1<<e.windowBits)
}

// Frames finishes the current frame and returns all frames.
func (e *Encoder) Frames() [][]byte {
	if e.dirty {
		e.finishFrame()
	}
	return e.frames
}

func (e *Encoder) offset(m *model, offset int) {
	v := uint32(offset - 1)
	for s := 0; s < m.entries; s++ {
		if v >= positionBase[s] && v < positionBase[s]+1<<positionExtra[s] {
			e.encode(m, uint16(s))
			e.rawBits(v-positionBase[s], int(positionExtra[s]))
			return
		}
	}
	panic(fmt.Sprintf("quantumtest: offset %d out of model range", offset))
}

func (e *Encoder) advance(n int) {
	if e.pos/FrameSize != (e.pos+n-1)/FrameSize {
		panic("quantumtest: token crosses a frame boundary")
	}
	e.pos += n
	if e.pos%FrameSize == 0 {
		e.finishFrame()
	}
}

func (e *Encoder) encode(m *model, sym uint16) {
	e.dirty = true
	k := -1
	for i := 0; i < m.entries; i++ {
		if m.syms[i].sym == sym {
			k = i
			break
		}
	}
	if k < 0 {
		panic(fmt.Sprintf("quantumtest: symbol %d not in model", sym))
	}

	rng := uint32(e.h-e.l) + 1
	total := uint32(m.syms[0].cumfreq)
	l := e.l
	e.h = l + uint16(uint32(m.syms[k].cumfreq)*rng/total) - 1
	e.l = l + uint16(uint32(m.syms[k+1].cumfreq)*rng/total)

	for j := k; j >= 0; j-- {
		m.syms[j].cumfreq += 8
	}
	if m.syms[0].cumfreq > 3800 {
		m.update()
	}

	for {
		if e.l&0x8000 == e.h&0x8000 {
			e.bit(byte(e.h >> 15))
		} else if e.l&0x4000 != 0 && e.h&0x4000 == 0 {
			e.follow++
			e.l &= 0x3FFF
			e.h |= 0x4000
		} else {
			break
		}
		e.l <<= 1
		e.h = e.h<<1 | 1
		e.shifts++
	}
}

func (e *Encoder) bit(b byte) {
	e.arith = append(e.arith, b)
	for ; e.follow > 0; e.follow-- {
		e.arith = append(e.arith, b^1)
	}
}

// rawBits schedules bits the decoder reads past its 16-bit code register.
func (e *Encoder) rawBits(value uint32, n int) {
	if n > 0 {
		e.raw = append(e.raw, rawBits{at: 16 + e.shifts, value: value, n: n})
	}
}

func (e *Encoder) finishFrame() {
	// Sixteen bits pick a code value inside the final interval
	e.follow++
	if e.l&0x4000 == 0 {
		e.bit(0)
	} else {
		e.bit(1)
	}
	for i := 0; i < 14; i++ {
		e.arith = append(e.arith, 0)
	}

	var w bitWriter
	ri := 0
	for pos := 0; pos <= len(e.arith); pos++ {
		for ; ri < len(e.raw) && e.raw[ri].at == pos; ri++ {
			w.write(e.raw[ri].value, e.raw[ri].n)
		}
		if pos < len(e.arith) {
			w.write(uint32(e.arith[pos]), 1)
		}
	}
	e.frames = append(e.frames, w.bytes())

	e.h, e.l = 0xFFFF, 0
	e.follow, e.shifts = 0, 0
	e.arith, e.raw = nil, nil
	e.dirty = false
}

type bitWriter struct {
	out []byte
	acc byte
	n   int
}

func (w *bitWriter) write(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.acc = w.acc<<1 | byte(v>>i&1)
		w.n++
		if w.n == 8 {
			w.out = append(w.out, w.acc)
			w.acc, w.n = 0, 0
		}
	}
}

func (w *bitWriter) bytes() []byte {
	if w.n > 0 {
		w.out = append(w.out, w.acc<<(8-w.n))
		w.acc, w.n = 0, 0
	}
	return w.out
}

// Stream joins frames the way a cabinet folder presents them to the
// decoder: every frame is followed by a 0xFF trailer byte.
func Stream(frames [][]byte) []byte {
	var out []byte
	for _, f := range frames {
		out = append(out, f...)
		out = append(out, 0xFF)
	}
	return out
}

// Sample encodes size pseudo-random bytes mixing literals with matches of
// every selector, and returns the plain data with its encoder.
func Sample(windowBits, size int, seed uint64) ([]byte, *Encoder) {
	e := NewEncoder(windowBits)
	rnd := rand.New(rand.NewPCG(seed, uint64(windowBits)))
	var data []byte
	for len(data) < size {
		left := min(size-len(data), FrameSize-len(data)%FrameSize)
		length := 0
		switch rnd.IntN(6) {
		case 0:
			length = 3
		case 1:
			length = 4
		case 2:
			length = 5 + rnd.IntN(40)
		case 3:
			length = 5 + rnd.IntN(255)
			if rnd.IntN(8) == 0 {
				length = 259
			}
		}
		maxOffset := 0
		if length > 0 {
			maxOffset = min(len(data), e.MaxOffset(length))
		}
		if length == 0 || length > left || maxOffset == 0 {
			b := byte(rnd.IntN(256))
			e.Literal(b)
			data = append(data, b)
			continue
		}
		offset := 1 + rnd.IntN(maxOffset)
		e.Match(offset, length)
		for i := 0; i < length; i++ {
			data = append(data, data[len(data)-offset])
		}
	}
	return data, e
}
