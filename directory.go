package cab

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"
)

type cabinetFileFolderHeader struct {
	CoffCabStart    uint32
	CfDataCount     uint16
	CompressionType CompressionType
	// Optional: Per-Folder reserved area
}

// cabinetFileFolder is a folder record as stored in one volume. Folders that
// span volumes are made of several of these.
type cabinetFileFolder struct {
	cabinetFileFolderHeader
	reservedData []byte

	index       int   // index within its volume
	offset      int64 // offset of the folder record
	dataEntries []cabinetFileData
	err         error // set when the data block headers could not be read
}

type cabinetFileEntryHeader struct {
	UncompressedFileSize       uint32
	UncompressedOffsetInFolder uint32
	FolderIndex                uint16
	Date                       uint16
	Time                       uint16
	Attributes                 Attributes
	// Followed by fileName, which is a zero-terminated string
}

type cabinetFileEntry struct {
	cabinetFileEntryHeader
	fileName     string
	continuation Continuation
	folder       int // resolved index into the volume's folders
}

type cabinetFileDataHeader struct {
	Checksum          uint32
	CompressedBytes   uint16
	UncompressedBytes uint16
	// Optional: Per-Datablock reserved area
	// Followed by compressed data bytes
}

type cabinetFileData struct {
	cabinetFileDataHeader
	reservedData   []byte
	compressedData *io.SectionReader
	offset         int64 // offset of the block header in its volume
}

// Folder index values of file entries that continue across volumes.
const (
	folderContinuedFromPrevious    = 0xFFFD
	folderContinuedToNext          = 0xFFFE
	folderContinuedPreviousAndNext = 0xFFFF
)

// Continuation tells whether a file starts in a previous cabinet or ends in
// the next one.
type Continuation uint8

const (
	ContinuedFromPrevious Continuation = 1 << iota
	ContinuedToNext
)

// decodeDirectory reads the folder, data block and file tables of a volume.
// Problems with the data blocks of a folder are kept on that folder; problems
// with the folder or file table fail the whole volume.
func decodeDirectory(cur *byteCursor, v *Volume, o *options) error {
	folders, err := readFolderEntries(cur, v.header.FolderCount, v.reserved.ReservedFolderSize)
	if err != nil {
		return err
	}

	// Look up data entries for each folder
	for _, folder := range folders {
		if err := cur.seek(int64(folder.CoffCabStart)); err != nil {
			folder.err = err
			continue
		}
		cur.unit = fmt.Sprintf("data block of folder %d", folder.index)
		folder.dataEntries, folder.err = readDataEntries(cur, folder.CfDataCount, v.reserved.ReservedDatablockSize)
	}
	v.folders = folders

	if err := cur.seek(int64(v.header.FirstFileEntryOffset)); err != nil {
		return err
	}
	v.files, err = readFileEntries(cur, v.header.FileCount, len(folders), o)
	if err != nil {
		return err
	}
	for _, f := range v.files {
		if f.continuation&ContinuedFromPrevious != 0 {
			v.continuesFromPrevious = true
		}
		if f.continuation&ContinuedToNext != 0 {
			v.continuesToNext = true
		}
	}
	return nil
}

func readFolderEntries(cur *byteCursor, folderCount uint16, reservedAreaSize uint8) ([]*cabinetFileFolder, error) {
	var folders []*cabinetFileFolder
	for i := 0; i < int(folderCount); i++ {
		cur.unit = fmt.Sprintf("folder %d", i)
		folder := &cabinetFileFolder{index: i, offset: cur.off}
		if err := cur.read(&folder.cabinetFileFolderHeader); err != nil {
			return nil, err
		}
		if reservedAreaSize != 0 {
			reserved, err := cur.bytes(int(reservedAreaSize))
			if err != nil {
				return nil, err
			}
			folder.reservedData = reserved
		}
		folders = append(folders, folder)
	}
	return folders, nil
}

func readDataEntries(cur *byteCursor, dataCount uint16, reservedAreaSize uint8) ([]cabinetFileData, error) {
	var dataEntries []cabinetFileData
	for i := 0; i < int(dataCount); i++ {
		dataEntry := cabinetFileData{offset: cur.off}
		if err := cur.read(&dataEntry.cabinetFileDataHeader); err != nil {
			return nil, err
		}
		if reservedAreaSize != 0 {
			reserved, err := cur.bytes(int(reservedAreaSize))
			if err != nil {
				return nil, err
			}
			dataEntry.reservedData = reserved
		}
		if dataEntry.UncompressedBytes > maxBlockSize {
			return nil, formatError(cur.unit, dataEntry.offset, "data block larger than 32 KiB")
		}

		// Store the compressed data as a reader and skip it
		dataEntry.compressedData = io.NewSectionReader(cur.r, cur.off, int64(dataEntry.CompressedBytes))
		if err := cur.skip(int64(dataEntry.CompressedBytes)); err != nil {
			return nil, err
		}
		dataEntries = append(dataEntries, dataEntry)
	}
	return dataEntries, nil
}

func readFileEntries(cur *byteCursor, fileCount uint16, folderCount int, o *options) ([]cabinetFileEntry, error) {
	var files []cabinetFileEntry
	for i := 0; i < int(fileCount); i++ {
		cur.unit = fmt.Sprintf("file %d", i)
		start := cur.off
		var file cabinetFileEntry
		if err := cur.read(&file.cabinetFileEntryHeader); err != nil {
			return nil, err
		}

		nameStart := cur.off
		rawName, err := cur.cstring()
		if err != nil {
			return nil, err
		}
		if file.Attributes&AttributeNameUtf != 0 {
			if !utf8.Valid(rawName) {
				return nil, formatError(cur.unit, nameStart, "file name is not valid UTF-8")
			}
			file.fileName = string(rawName)
		} else {
			decoded, err := o.nameEncoding.NewDecoder().Bytes(rawName)
			if err != nil {
				return nil, &FormatError{Unit: cur.unit, Offset: nameStart, Msg: "undecodable file name", Err: err}
			}
			file.fileName = string(decoded)
		}

		switch file.FolderIndex {
		case folderContinuedFromPrevious:
			file.continuation = ContinuedFromPrevious
			file.folder = 0
		case folderContinuedToNext:
			file.continuation = ContinuedToNext
			file.folder = folderCount - 1
		case folderContinuedPreviousAndNext:
			file.continuation = ContinuedFromPrevious | ContinuedToNext
			file.folder = 0
		default:
			file.folder = int(file.FolderIndex)
		}
		if file.folder < 0 || file.folder >= folderCount {
			return nil, formatError(cur.unit, start+8, "invalid folder reference")
		}
		files = append(files, file)
	}
	return files, nil
}

func parseCabTimestamp(cabDate uint16, cabTime uint16, loc *time.Location) time.Time {
	// See https://docs.microsoft.com/en-us/previous-versions//bb267310(v=vs.85)#cffile
	// cabDate is ((year–1980) << 9)+(month << 5)+(day)
	// cabTime is (hour << 11)+(minute << 5)+(seconds/2)
	year := int(cabDate>>9) + 1980
	month := int(cabDate>>5) & 0b1111
	day := int(cabDate) & 0b11111
	hour := int(cabTime >> 11)
	minute := int(cabTime>>5) & 0b111111
	seconds := int(cabTime&0b11111) * 2
	return time.Date(year, time.Month(month), day, hour, minute, seconds, 0, loc)
}
