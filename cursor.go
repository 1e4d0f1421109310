package cab

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// maxNameLength is the longest name (without terminator) allowed for files,
// cabinets and disks.
const maxNameLength = 255

// byteCursor is a bounds-checked little-endian reader over a volume.
// Every failure is reported as a FormatError for the unit currently being parsed.
type byteCursor struct {
	r    *io.SectionReader
	off  int64
	unit string
}

func newCursor(r *io.SectionReader) *byteCursor {
	return &byteCursor{r: r, unit: "header"}
}

func (c *byteCursor) fail(at int64, msg string, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &FormatError{Unit: c.unit, Offset: at, Msg: msg, Err: err}
}

// read decodes a fixed-size little-endian structure.
func (c *byteCursor) read(data any) error {
	size := binary.Size(data)
	buf, err := c.bytes(size)
	if err != nil {
		return err
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, data); err != nil {
		return c.fail(c.off-int64(size), "decoding structure", err)
	}
	return nil
}

func (c *byteCursor) bytes(n int) ([]byte, error) {
	if n < 0 || c.off+int64(n) > c.r.Size() {
		return nil, c.fail(c.off, "structure exceeds volume", io.ErrUnexpectedEOF)
	}
	buf := make([]byte, n)
	if _, err := c.r.ReadAt(buf, c.off); err != nil && !(errors.Is(err, io.EOF) && c.off+int64(n) == c.r.Size()) {
		return nil, c.fail(c.off, "reading structure", err)
	}
	c.off += int64(n)
	return buf, nil
}

func (c *byteCursor) skip(n int64) error {
	return c.seek(c.off + n)
}

func (c *byteCursor) seek(off int64) error {
	if off < 0 || off > c.r.Size() {
		return c.fail(off, "offset outside volume", nil)
	}
	c.off = off
	return nil
}

// cstring reads a zero-terminated string and returns it without terminator.
func (c *byteCursor) cstring() ([]byte, error) {
	start := c.off
	var currentBufferSize = 16
	var out []byte
	for {
		remaining := c.r.Size() - c.off
		if remaining <= 0 {
			return nil, c.fail(start, "unterminated string", io.ErrUnexpectedEOF)
		}
		n := int64(currentBufferSize)
		if n > remaining {
			n = remaining
		}
		buffer, err := c.bytes(int(n))
		if err != nil {
			return nil, err
		}
		if i := bytes.IndexByte(buffer, 0); i >= 0 {
			out = append(out, buffer[:i]...)
			// Leave the cursor right after the terminating zero
			c.off = start + int64(len(out)) + 1
			break
		}
		out = append(out, buffer...)
		if len(out) > maxNameLength {
			break
		}
		currentBufferSize *= 2
	}
	if len(out) > maxNameLength {
		return nil, c.fail(start, "string too long", nil)
	}
	return out, nil
}
