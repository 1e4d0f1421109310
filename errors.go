package cab

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every typed error below matches one of these with errors.Is.
var (
	ErrFormat             = errors.New("cab: invalid format")
	ErrUnsupportedVersion = errors.New("cab: unsupported version")
	ErrUnsupportedCodec   = errors.New("cab: unsupported compression")
	ErrCorruptData        = errors.New("cab: corrupt data")
	ErrIncompleteSpan     = errors.New("cab: incomplete cabinet set")
	ErrClosed             = errors.New("cab: cabinet is closed")
)

// FormatError reports structurally invalid bytes in the unit being parsed.
type FormatError struct {
	Unit   string // header, folder, file, data block, ...
	Offset int64  // absolute offset in the volume, -1 if unknown
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	s := "cab: invalid " + e.Unit
	if e.Offset >= 0 {
		s += fmt.Sprintf(" at offset %d", e.Offset)
	}
	s += ": " + e.Msg
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *FormatError) Unwrap() error        { return e.Err }
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func formatError(unit string, offset int64, msg string) *FormatError {
	return &FormatError{Unit: unit, Offset: offset, Msg: msg}
}

// UnsupportedVersionError is returned for cabinets with a major version other than 1.
type UnsupportedVersionError struct {
	Major, Minor byte
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("cab: unsupported format version %d.%d", e.Major, e.Minor)
}

func (e *UnsupportedVersionError) Is(target error) bool { return target == ErrUnsupportedVersion }

// UnsupportedCodecError marks a folder whose compression cannot be decoded.
// Other folders of the same cabinet stay readable.
type UnsupportedCodecError struct {
	Folder      int
	Compression CompressionType
	Msg         string
}

func (e *UnsupportedCodecError) Error() string {
	return fmt.Sprintf("cab: folder %d: unsupported compression %s: %s", e.Folder, e.Compression, e.Msg)
}

func (e *UnsupportedCodecError) Is(target error) bool { return target == ErrUnsupportedCodec }

// CorruptDataError reports a data block that failed verification or decoding.
// Decoding of the folder stops at Block.
type CorruptDataError struct {
	Folder   int
	Block    int
	Expected uint32 // stored checksum, zero when the codec failed instead
	Actual   uint32
	Err      error
}

func (e *CorruptDataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cab: folder %d block %d: %v", e.Folder, e.Block, e.Err)
	}
	return fmt.Sprintf("cab: folder %d block %d: checksum mismatch (stored %08x, computed %08x)",
		e.Folder, e.Block, e.Expected, e.Actual)
}

func (e *CorruptDataError) Unwrap() error        { return e.Err }
func (e *CorruptDataError) Is(target error) bool { return target == ErrCorruptData }

// IncompleteSpanError is returned when opening a file whose data continues in a
// cabinet that was not supplied (or not supplied in spanning order).
type IncompleteSpanError struct {
	Folder  int
	Missing string // name of the cabinet that is needed, if known
	Next    bool   // true if the successor is missing, false for the predecessor
}

func (e *IncompleteSpanError) Error() string {
	dir := "previous"
	if e.Next {
		dir = "next"
	}
	s := fmt.Sprintf("cab: folder %d continues in %s cabinet", e.Folder, dir)
	if e.Missing != "" {
		s += fmt.Sprintf(" %q", e.Missing)
	}
	return s + " which was not supplied"
}

func (e *IncompleteSpanError) Is(target error) bool { return target == ErrIncompleteSpan }
