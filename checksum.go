package cab

import "encoding/binary"

// computeChecksum folds p into seed. Whole 32-bit little-endian words are
// XORed in; a trailing partial word is assembled with its first byte most
// significant.
func computeChecksum(p []byte, seed uint32) uint32 {
	csum := seed
	for ; len(p) >= 4; p = p[4:] {
		csum ^= binary.LittleEndian.Uint32(p)
	}
	var tail uint32
	for _, b := range p {
		tail = tail<<8 | uint32(b)
	}
	return csum ^ tail
}

// checksumWriter computes the data block checksum over several writes. Bytes
// that do not fill a word are held back until more data arrives or Flush is
// called.
type checksumWriter struct {
	Checksum uint32

	pending [4]byte
	n       int
}

func (c *checksumWriter) Write(data []byte) (int, error) {
	written := len(data)
	if c.n > 0 {
		k := copy(c.pending[c.n:], data)
		c.n += k
		data = data[k:]
		if c.n < 4 {
			return written, nil
		}
		c.Checksum = computeChecksum(c.pending[:], c.Checksum)
		c.n = 0
	}
	whole := len(data) &^ 3
	if whole > 0 {
		c.Checksum = computeChecksum(data[:whole], c.Checksum)
	}
	c.n = copy(c.pending[:], data[whole:])
	return written, nil
}

// Flush folds in the held back bytes as a partial word.
func (c *checksumWriter) Flush() {
	if c.n > 0 {
		c.Checksum = computeChecksum(c.pending[:c.n], c.Checksum)
		c.n = 0
	}
}
