package cab

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"
)

// Entry is a read-only view of a file stored in a cabinet.
type Entry interface {
	Name() string
	Size() int64
	ModTime() time.Time
	Attributes() Attributes
	Open() (io.ReadCloser, error)
}

// Attributes are the MS-DOS style attributes of a file.
type Attributes uint16

const (
	AttributeReadOnly Attributes = 0x1
	AttributeHidden   Attributes = 0x2
	AttributeSystem   Attributes = 0x4
	AttributeArch     Attributes = 0x20
	AttributeExec     Attributes = 0x40
	AttributeNameUtf  Attributes = 0x80
)

func (a Attributes) String() string {
	flags := []byte("------")
	for i, attr := range []struct {
		a Attributes
		c byte
	}{{AttributeReadOnly, 'r'}, {AttributeHidden, 'h'}, {AttributeSystem, 's'}, {AttributeArch, 'a'}, {AttributeExec, 'x'}, {AttributeNameUtf, 'u'}} {
		if a&attr.a != 0 {
			flags[i] = attr.c
		}
	}
	return string(flags)
}

// File is a file stored in a cabinet.
type File struct {
	name         string
	modified     time.Time
	attributes   Attributes
	size         uint32
	offset       uint32
	continuation Continuation
	volume       *Volume

	folder *folder
}

var _ Entry = (*File)(nil)

// Name returns the stored name, which uses backslashes as path separators.
func (f *File) Name() string { return f.name }

func (f *File) Size() int64 { return int64(f.size) }

func (f *File) ModTime() time.Time { return f.modified }

func (f *File) Attributes() Attributes { return f.attributes }

// Continuation tells whether the file record was marked as continued from a
// previous or into a next cabinet.
func (f *File) Continuation() Continuation { return f.continuation }

// Folder returns the archive-wide index of the folder holding the file.
func (f *File) Folder() int { return f.folder.index }

// FolderOffset returns the offset of the file in the uncompressed folder.
func (f *File) FolderOffset() int64 { return int64(f.offset) }

// Compression returns the compression type of the folder holding the file.
func (f *File) Compression() CompressionType { return f.folder.compression }

// Volume returns the volume the file record was read from.
func (f *File) Volume() *Volume { return f.volume }

func (f *File) Open() (io.ReadCloser, error) {
	return f.OpenContext(context.Background())
}

// OpenContext returns a reader for the file contents. Decompression happens
// while reading; ctx is checked between data blocks.
func (f *File) OpenContext(ctx context.Context) (io.ReadCloser, error) {
	folder := f.folder
	if folder.cab.closed() {
		return nil, ErrClosed
	}
	if folder.err != nil {
		return nil, folder.err
	}
	end := int64(f.offset) + int64(f.size)
	if end > folder.size {
		if folder.incomplete != nil {
			return nil, folder.incomplete
		}
		return nil, formatError(fmt.Sprintf("file %q", f.name), 0,
			fmt.Sprintf("file range %d-%d exceeds folder size %d", f.offset, end, folder.size))
	}
	return &fileReader{ctx: ctx, file: f, pos: int64(f.offset), end: end}, nil
}

type fileReader struct {
	ctx    context.Context
	file   *File
	pos    int64
	end    int64
	cur    []byte
	closed bool
}

func (r *fileReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fs.ErrClosed
	}
	if len(r.cur) == 0 {
		if r.pos >= r.end {
			return 0, io.EOF
		}
		folder := r.file.folder
		if folder.cab.closed() {
			return 0, ErrClosed
		}
		k := folder.blockAt(r.pos)
		data, err := folder.blockData(r.ctx, k)
		if err != nil {
			return 0, err
		}
		b := folder.blocks[k]
		r.cur = data[r.pos-b.offset : min(int64(len(data)), r.end-b.offset)]
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	r.pos += int64(n)
	return n, nil
}

func (r *fileReader) Close() error {
	r.closed = true
	r.cur = nil
	return nil
}

func (f *File) Stat() fs.FileInfo {
	return FileInfo{f}
}

// FileInfo implements fs.FileInfo for a File.
type FileInfo struct {
	File *File
}

func (f FileInfo) Name() string {
	name := f.File.name
	return name[strings.LastIndexAny(name, `\/`)+1:]
}

func (f FileInfo) Size() int64 {
	return f.File.Size()
}

func (f FileInfo) Mode() fs.FileMode {
	mode := fs.FileMode(0o644)
	if f.File.attributes&AttributeReadOnly != 0 {
		mode = 0o444
	}
	if f.File.attributes&AttributeExec != 0 {
		mode |= 0o111
	}
	return mode
}

func (f FileInfo) ModTime() time.Time {
	return f.File.modified
}

func (f FileInfo) IsDir() bool {
	return false
}

func (f FileInfo) Sys() any {
	return f.File
}
