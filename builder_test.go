package cab

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// testBlock is one CFDATA entry. size is zero for the first part of a block
// split over two volumes.
type testBlock struct {
	payload []byte
	size    uint16
}

type testFolder struct {
	compression CompressionType
	blocks      []testBlock
}

type testFile struct {
	name   string
	size   uint32
	offset uint32
	folder uint16
	date   uint16
	time   uint16
	attrs  Attributes
}

// cabBuilder assembles a cabinet volume in memory.
type cabBuilder struct {
	folders []testFolder
	files   []testFile

	flags              Flags
	setID, index       uint16
	prevFile, prevDisk string
	nextFile, nextDisk string

	headerReserve []byte
	folderReserve uint8
	dataReserve   uint8
	noChecksums   bool

	// trailing bytes after the declared cabinet size, e.g. a signature
	trailer []byte
	// overrides the declared size if non-zero
	declaredSize uint32
	versionMajor byte
	versionMinor byte
}

func newBuilder() *cabBuilder {
	return &cabBuilder{versionMajor: 1, versionMinor: 3}
}

func (b *cabBuilder) addFolder(compression CompressionType, blocks ...testBlock) int {
	b.folders = append(b.folders, testFolder{compression: compression, blocks: blocks})
	return len(b.folders) - 1
}

func (b *cabBuilder) addFile(name string, folder int, offset, size uint32) *testFile {
	b.files = append(b.files, testFile{
		name:   name,
		size:   size,
		offset: offset,
		folder: uint16(folder),
		date:   (2021-1980)<<9 | 11<<5 | 2,
		time:   14<<11 | 34<<5 | 56/2,
		attrs:  AttributeArch,
	})
	return &b.files[len(b.files)-1]
}

func (b *cabBuilder) bytes() []byte {
	flags := b.flags
	reserve := len(b.headerReserve) > 0 || b.folderReserve > 0 || b.dataReserve > 0
	if reserve {
		flags |= FlagReservePresent
	}

	var head bytes.Buffer
	headerSize := 36
	if reserve {
		headerSize += 4 + len(b.headerReserve)
	}
	names := func(buf *bytes.Buffer) {
		if flags&FlagPreviousCabinet != 0 {
			buf.WriteString(b.prevFile + "\x00" + b.prevDisk + "\x00")
		}
		if flags&FlagNextCabinet != 0 {
			buf.WriteString(b.nextFile + "\x00" + b.nextDisk + "\x00")
		}
	}
	var nameBuf bytes.Buffer
	names(&nameBuf)
	headerSize += nameBuf.Len()

	folderSize := len(b.folders) * (8 + int(b.folderReserve))
	var fileBuf bytes.Buffer
	for _, f := range b.files {
		binary.Write(&fileBuf, binary.LittleEndian, cabinetFileEntryHeader{
			UncompressedFileSize:       f.size,
			UncompressedOffsetInFolder: f.offset,
			FolderIndex:                f.folder,
			Date:                       f.date,
			Time:                       f.time,
			Attributes:                 f.attrs,
		})
		fileBuf.WriteString(f.name)
		fileBuf.WriteByte(0)
	}
	coffFiles := headerSize + folderSize
	dataStart := coffFiles + fileBuf.Len()

	var folderBuf, dataBuf bytes.Buffer
	for _, folder := range b.folders {
		binary.Write(&folderBuf, binary.LittleEndian, cabinetFileFolderHeader{
			CoffCabStart:    uint32(dataStart + dataBuf.Len()),
			CfDataCount:     uint16(len(folder.blocks)),
			CompressionType: folder.compression,
		})
		folderBuf.Write(make([]byte, b.folderReserve))
		for _, block := range folder.blocks {
			entry := cabinetFileData{
				cabinetFileDataHeader: cabinetFileDataHeader{
					CompressedBytes:   uint16(len(block.payload)),
					UncompressedBytes: block.size,
				},
				reservedData: make([]byte, b.dataReserve),
			}
			if !b.noChecksums {
				entry.Checksum = dataChecksum(&entry, block.payload)
			}
			binary.Write(&dataBuf, binary.LittleEndian, entry.cabinetFileDataHeader)
			dataBuf.Write(entry.reservedData)
			dataBuf.Write(block.payload)
		}
	}

	total := dataStart + dataBuf.Len()
	declared := uint32(total)
	if b.declaredSize != 0 {
		declared = b.declaredSize
	}
	binary.Write(&head, binary.LittleEndian, cabinetFileHeader{
		Signature:            signature,
		Filesize:             declared,
		FirstFileEntryOffset: uint32(coffFiles),
		VersionMinor:         b.versionMinor,
		VersionMajor:         b.versionMajor,
		FolderCount:          uint16(len(b.folders)),
		FileCount:            uint16(len(b.files)),
		Flags:                flags,
		SetId:                b.setID,
		SetIndex:             b.index,
	})
	if reserve {
		binary.Write(&head, binary.LittleEndian, cabinetFileReservedSizes{
			ReservedHeaderSize:    uint16(len(b.headerReserve)),
			ReservedFolderSize:    b.folderReserve,
			ReservedDatablockSize: b.dataReserve,
		})
		head.Write(b.headerReserve)
	}
	head.Write(nameBuf.Bytes())
	head.Write(folderBuf.Bytes())
	head.Write(fileBuf.Bytes())
	head.Write(dataBuf.Bytes())
	head.Write(b.trailer)
	return head.Bytes()
}

// storedBlocks splits data into stored blocks of at most maxBlockSize bytes.
func storedBlocks(data []byte, blockSize int) []testBlock {
	var blocks []testBlock
	for len(data) > 0 {
		n := min(blockSize, len(data))
		blocks = append(blocks, testBlock{payload: data[:n], size: uint16(n)})
		data = data[n:]
	}
	return blocks
}

// mszipBlocks compresses data into MS-ZIP blocks, each using the previous
// output as dictionary.
func mszipBlocks(t *testing.T, data []byte) []testBlock {
	t.Helper()
	var blocks []testBlock
	var dict []byte
	for len(data) > 0 {
		n := min(maxBlockSize, len(data))
		var buf bytes.Buffer
		buf.WriteString("CK")
		w, err := flate.NewWriterDict(&buf, flate.DefaultCompression, dict)
		require.NoError(t, err)
		_, err = w.Write(data[:n])
		require.NoError(t, err)
		require.NoError(t, w.Close())
		blocks = append(blocks, testBlock{payload: buf.Bytes(), size: uint16(n)})
		dict = append(dict, data[:n]...)
		if len(dict) > maxBlockSize {
			dict = dict[len(dict)-maxBlockSize:]
		}
		data = data[n:]
	}
	return blocks
}

// lzxBitWriter writes 16-bit little-endian words, most significant bit first.
type lzxBitWriter struct {
	out []byte
	acc uint32
	n   int
}

func (w *lzxBitWriter) write(v uint32, bits int) {
	for i := bits - 1; i >= 0; i-- {
		w.acc = w.acc<<1 | (v>>i)&1
		w.n++
		if w.n == 16 {
			w.out = append(w.out, byte(w.acc), byte(w.acc>>8))
			w.acc, w.n = 0, 0
		}
	}
}

// lzxLiterals encodes data as a single verbatim LZX block for a 2^16 window,
// using a flat main tree so that every literal is its own 9-bit code.
func lzxLiterals(data []byte) []byte {
	var w lzxBitWriter
	pretree := func() {
		for i := 0; i < 20; i++ {
			if i < 12 {
				w.write(4, 4)
			} else {
				w.write(5, 4)
			}
		}
	}
	w.write(0, 1)
	w.write(1, 3)
	w.write(uint32(len(data)), 24)
	for interval := 0; interval < 2; interval++ {
		pretree()
		for i := 0; i < 256; i++ {
			w.write(8, 4)
		}
	}
	pretree()
	for i := 0; i < 249; i++ {
		w.write(0, 4)
	}
	for i, c := range data {
		w.write(uint32(c), 9)
		if (i+1)%maxBlockSize == 0 && w.n > 0 {
			w.write(0, 16-w.n)
		}
	}
	if w.n > 0 {
		w.write(0, 16-w.n)
	}
	return w.out
}
