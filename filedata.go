package cab

import (
	"encoding/binary"
	"errors"
	"io"
)

// block is one logical data block of a folder. A block split over two
// volumes is made of several parts, each with its own checksum.
type block struct {
	parts  []*cabinetFileData
	size   int   // uncompressed bytes
	offset int64 // uncompressed offset in the folder
}

// readPayload reads the compressed bytes of a block and verifies the checksum
// of every part.
func readPayload(b *block) ([]byte, *CorruptDataError) {
	var payload []byte
	for _, part := range b.parts {
		// Use a separate section reader to prevent races on the shared one
		reader := io.NewSectionReader(part.compressedData, 0, part.compressedData.Size())
		data := make([]byte, reader.Size())
		if _, err := io.ReadFull(reader, data); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, &CorruptDataError{Err: err}
		}
		if part.Checksum != 0 {
			if actual := dataChecksum(part, data); actual != part.Checksum {
				return nil, &CorruptDataError{Expected: part.Checksum, Actual: actual}
			}
		}
		payload = append(payload, data...)
	}
	return payload, nil
}

// dataChecksum computes the checksum over the payload followed by the data
// block header (minus checksum) and the reserved area.
func dataChecksum(entry *cabinetFileData, payload []byte) uint32 {
	var checksum checksumWriter
	checksum.Write(payload)
	checksum.Flush()
	binary.Write(&checksum, binary.LittleEndian, checksumlessEntry{
		entry.CompressedBytes,
		entry.UncompressedBytes,
	})
	checksum.Write(entry.reservedData)
	checksum.Flush()
	return checksum.Checksum
}

type checksumlessEntry struct {
	CompressedBytes   uint16
	UncompressedBytes uint16
}
