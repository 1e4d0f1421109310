package lzx

// SlidingWindow holds the last 2^n bytes of output. Match offsets count back
// from the next byte to be written.
type SlidingWindow struct {
	data []byte
	mask int
	pos  int
}

// NewWindow returns a window of size bytes; size must be a power of two.
func NewWindow(size int) *SlidingWindow {
	return &SlidingWindow{data: make([]byte, size), mask: size - 1}
}

func (s *SlidingWindow) Size() int {
	return len(s.data)
}

func (s *SlidingWindow) Add(b byte) {
	s.data[s.pos] = b
	s.pos = (s.pos + 1) & s.mask
}

// Write appends p to the window.
func (s *SlidingWindow) Write(p []byte) {
	for len(p) > 0 {
		n := copy(s.data[s.pos:], p)
		s.pos = (s.pos + n) & s.mask
		p = p[n:]
	}
}

// Copy repeats length bytes found offset bytes back, appending them to the
// window and to out. Source and destination may overlap.
func (s *SlidingWindow) Copy(offset, length int, out []byte) []byte {
	src := (s.pos - offset) & s.mask
	for ; length > 0; length-- {
		b := s.data[src]
		src = (src + 1) & s.mask
		s.Add(b)
		out = append(out, b)
	}
	return out
}
