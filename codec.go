package cab

import (
	"errors"
	"fmt"
	"io"

	"github.com/secDre4mer/cabreader/lzx"
	"github.com/secDre4mer/cabreader/mszip"
	"github.com/secDre4mer/cabreader/quantum"
)

// maxBlockSize is the largest uncompressed size of a data block.
const maxBlockSize = 32768

// CompressionType is the compression word of a folder.
type CompressionType uint16

// Compression methods, stored in the low nibble of a CompressionType.
const (
	CompressionNone    CompressionType = 0
	CompressionMSZIP   CompressionType = 1
	CompressionQuantum CompressionType = 2
	CompressionLZX     CompressionType = 3
)

// Method returns the compression method without level and window size.
func (c CompressionType) Method() CompressionType {
	return c & 0x000F
}

// Level returns the Quantum compression level.
func (c CompressionType) Level() int {
	return int(c>>4) & 0xF
}

// WindowBits returns the base-2 logarithm of the Quantum or LZX window size.
func (c CompressionType) WindowBits() int {
	return int(c>>8) & 0x1F
}

func (c CompressionType) String() string {
	switch c.Method() {
	case CompressionNone:
		return "none"
	case CompressionMSZIP:
		return "mszip"
	case CompressionQuantum:
		return fmt.Sprintf("quantum:%d:%d", c.Level(), c.WindowBits())
	case CompressionLZX:
		return fmt.Sprintf("lzx:%d", c.WindowBits())
	}
	return fmt.Sprintf("unknown(%#04x)", uint16(c))
}

// validate returns a description of why the compression type cannot be
// decoded, or an empty string.
func (c CompressionType) validate() string {
	switch c.Method() {
	case CompressionNone, CompressionMSZIP:
		return ""
	case CompressionQuantum:
		if bits := c.WindowBits(); bits < quantum.MinWindowBits || bits > quantum.MaxWindowBits {
			return fmt.Sprintf("quantum window size 2^%d out of range", bits)
		}
		return ""
	case CompressionLZX:
		if bits := c.WindowBits(); bits < lzx.MinWindowBits || bits > lzx.MaxWindowBits {
			return fmt.Sprintf("lzx window size 2^%d out of range", bits)
		}
		return ""
	}
	return fmt.Sprintf("unknown compression method %d", c.Method())
}

// codec produces the uncompressed blocks of a folder in order.
type codec interface {
	// nextBlock returns the contents of the next block, which has size
	// uncompressed bytes.
	nextBlock(size int) ([]byte, error)
}

func newCodec(f *folder, src *blockSource) (codec, error) {
	switch f.compression.Method() {
	case CompressionNone:
		return &storedCodec{src: src}, nil
	case CompressionMSZIP:
		return &mszipCodec{src: src}, nil
	case CompressionQuantum:
		src.trailer = true
		r, err := quantum.NewReader(src, f.compression.WindowBits(), f.size)
		if err != nil {
			return nil, err
		}
		return &streamCodec{r: r}, nil
	case CompressionLZX:
		r, err := lzx.NewReader(src, f.compression.WindowBits(), f.size)
		if err != nil {
			return nil, err
		}
		return &streamCodec{r: r}, nil
	}
	return nil, &UnsupportedCodecError{Folder: f.index, Compression: f.compression, Msg: f.compression.validate()}
}

type storedCodec struct {
	src *blockSource
}

func (c *storedCodec) nextBlock(size int) ([]byte, error) {
	payload, err := c.src.nextPayload()
	if err != nil {
		return nil, err
	}
	if len(payload) != size {
		return nil, fmt.Errorf("stored block of %d bytes declares %d uncompressed bytes", len(payload), size)
	}
	return payload, nil
}

type mszipCodec struct {
	src     *blockSource
	decoder mszip.Decoder
}

func (c *mszipCodec) nextBlock(size int) ([]byte, error) {
	payload, err := c.src.nextPayload()
	if err != nil {
		return nil, err
	}
	out, err := c.decoder.Decompress(payload, size)
	if errors.Is(err, mszip.ErrInvalidHeader) {
		b := c.src.current()
		return nil, &FormatError{Unit: fmt.Sprintf("data block %d of folder %d", c.src.fetched-1, c.src.f.index), Offset: b.parts[0].offset, Msg: "missing MS-ZIP signature", Err: err}
	}
	return out, err
}

// streamCodec reads blocks from a decoder that consumes the payloads of the
// folder as one continuous stream.
type streamCodec struct {
	r io.Reader
}

func (c *streamCodec) nextBlock(size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(c.r, out); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return out, nil
}
