// Package lzx implements a decoder for the LZX compression format used in
// cabinet folders.
package lzx

import (
	"fmt"
	"io"
)

const (
	MinWindowBits = 15
	MaxWindowBits = 21
)

// Reader decompresses an LZX stream. The output is produced in frames of
// 32 KiB; each frame ends on a 16-bit boundary of the input.
type Reader struct {
	stream *bitStream
	data   persistentData
	block  blockState

	size       int64 // total uncompressed size
	produced   int64 // bytes of all completed frames
	frameIndex int
	headerRead bool

	frame   []byte
	pending []byte
	err     error
}

// NewReader returns a reader that decompresses size bytes from r using a
// window of 2^windowBits bytes.
func NewReader(r io.Reader, windowBits int, size int64) (*Reader, error) {
	if windowBits < MinWindowBits || windowBits > MaxWindowBits {
		return nil, fmt.Errorf("lzx: unsupported window size 2^%d", windowBits)
	}
	return &Reader{
		stream: newBitStream(r),
		data: persistentData{
			Window:        NewWindow(1 << windowBits),
			R0:            1,
			R1:            1,
			R2:            1,
			MainLengths:   make([]byte, MainElements(windowBits)),
			LengthLengths: make([]byte, lengthTreeSize),
		},
		size:  size,
		frame: make([]byte, 0, frameSize),
	}, nil
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

func (z *Reader) decodeFrame() error {
	if !z.headerRead {
		intel, err := z.stream.ReadBits(1)
		if err != nil {
			return err
		}
		if intel == 1 {
			high, err := z.stream.ReadBits(16)
			if err != nil {
				return err
			}
			low, err := z.stream.ReadBits(16)
			if err != nil {
				return err
			}
			z.data.IntelFileSize = high<<16 | low
		}
		z.headerRead = true
	}

	want := int(min(int64(frameSize), z.size-z.produced))
	frame := z.frame[:0]
	for len(frame) < want {
		if z.block.Remaining == 0 {
			// Uncompressed blocks of odd length are padded to a 16-bit boundary
			if z.block.Type == uncompressed && z.block.Length&1 == 1 {
				var pad [1]byte
				if err := z.stream.ReadRaw(pad[:]); err != nil {
					return err
				}
			}
			if err := readBlockHeader(z.stream, &z.data, &z.block); err != nil {
				return err
			}
			continue
		}

		run := min(z.block.Remaining, want-len(frame))
		before := len(frame)
		var err error
		if z.block.Type == uncompressed {
			frame, err = copyUncompressed(z.stream, &z.data, run, frame)
		} else {
			frame, err = decodeRun(z.stream, &z.data, &z.block, run, z.produced+int64(before), frame)
		}
		if err != nil {
			return err
		}
		if len(frame)-before > run {
			return fmt.Errorf("lzx: match crosses block or frame boundary at %d", z.produced+int64(len(frame)))
		}
		z.block.Remaining -= run
	}

	// Frames end on a 16-bit boundary
	z.stream.Align()

	// The window keeps the untranslated bytes.
	if z.data.IntelStarted && z.data.IntelFileSize != 0 && z.frameIndex < maxIntelFrames && len(frame) > 10 {
		translateIntelCalls(frame, int32(z.produced), int32(z.data.IntelFileSize))
	}

	z.frame = frame
	z.pending = frame
	z.produced += int64(len(frame))
	z.frameIndex++
	return nil
}
