package cab

import (
	"fmt"
	"io"
)

var signature = [4]byte{0x4D, 0x53, 0x43, 0x46} // MSCF

// Flags are the option indicators of a cabinet header.
type Flags uint16

const (
	FlagPreviousCabinet Flags = 1 << iota
	FlagNextCabinet
	FlagReservePresent
)

// Cabinet file header according to https://docs.microsoft.com/en-us/previous-versions//bb267310(v=vs.85)?redirectedfrom=MSDN#cfheader
type cabinetFileHeader struct {
	Signature            [4]byte
	_                    uint32
	Filesize             uint32
	_                    uint32
	FirstFileEntryOffset uint32
	_                    uint32
	VersionMinor         byte
	VersionMajor         byte
	FolderCount          uint16
	FileCount            uint16
	Flags                Flags
	SetId                uint16
	SetIndex             uint16
	// Optional: cabinetFileReservedSizes, if FlagReservePresent is set
	// Optional: Cabinet reserved area, if FlagReservePresent is set
	// Optional: Name of previous cabinet file
	// Optional: Name of previous disk
	// Optional: Name of next cabinet file
	// Optional: Name of next disk
}

type cabinetFileReservedSizes struct {
	ReservedHeaderSize    uint16
	ReservedFolderSize    uint8
	ReservedDatablockSize uint8
}

// MultiCabinetInfo links a cabinet to its neighbours in a cabinet set.
type MultiCabinetInfo struct {
	PreviousFile string
	PreviousDisk string
	NextFile     string
	NextDisk     string
	SetId        uint16 // ID of this multi-cabinet set; should be the same in all files in the set
	SetIndex     uint16 // Index of this cabinet in the multi-cabinet set
}

// decodeHeader parses the cabinet header of a volume and leaves the cursor at
// the first folder entry.
func decodeHeader(cur *byteCursor, v *Volume, o *options) error {
	cur.unit = "header"
	// The signature is checked before anything else is decoded
	var sig [4]byte
	if err := cur.read(&sig); err != nil {
		return err
	}
	if sig != signature {
		return formatError("header", 0, "CAB signature did not match")
	}
	if err := cur.seek(0); err != nil {
		return err
	}
	var cfHeader cabinetFileHeader
	if err := cur.read(&cfHeader); err != nil {
		return err
	}
	if cfHeader.VersionMajor != 1 {
		return &UnsupportedVersionError{Major: cfHeader.VersionMajor, Minor: cfHeader.VersionMinor}
	}
	if cfHeader.VersionMinor != 3 {
		o.logger.Warn().Str("volume", v.Name).
			Uint8("minor", cfHeader.VersionMinor).
			Msg("unexpected cabinet minor version")
	}

	actual := cur.r.Size()
	v.Size = actual
	if int64(cfHeader.FirstFileEntryOffset) > actual {
		return formatError("header", 16, "file table offset outside volume")
	}

	v.header = cfHeader
	v.VersionMajor = cfHeader.VersionMajor
	v.VersionMinor = cfHeader.VersionMinor
	v.Flags = cfHeader.Flags
	v.SetId = cfHeader.SetId
	v.SetIndex = cfHeader.SetIndex

	if cfHeader.Flags&FlagReservePresent != 0 {
		if err := cur.read(&v.reserved); err != nil {
			return err
		}
	}
	reservedHeaderBlock, err := cur.bytes(int(v.reserved.ReservedHeaderSize))
	if err != nil {
		return err
	}
	v.ReservedHeaderBlock = reservedHeaderBlock
	if len(reservedHeaderBlock) == signatureHeaderSize {
		v.SignatureHeader = parseSignatureHeader(reservedHeaderBlock)
	}
	if err := checkSize(v, o); err != nil {
		return err
	}

	names := []struct {
		flag       Flags
		file, disk *string
	}{
		{FlagPreviousCabinet, &v.PreviousFile, &v.PreviousDisk},
		{FlagNextCabinet, &v.NextFile, &v.NextDisk},
	}
	for _, n := range names {
		if cfHeader.Flags&n.flag == 0 {
			continue
		}
		if *n.file, err = readName(cur, o); err != nil {
			return err
		}
		if *n.disk, err = readName(cur, o); err != nil {
			return err
		}
	}
	return nil
}

// checkSize compares the declared cabinet size with the volume size. A signed
// cabinet carries its signature after the declared size.
func checkSize(v *Volume, o *options) error {
	declared := int64(v.header.Filesize)
	if v.SignatureHeader != nil && v.Size == declared+int64(v.SignatureHeader.SignatureSize) {
		return nil
	}
	if declared == v.Size {
		return nil
	}
	if o.strictSize {
		return formatError("header", 8, fmt.Sprintf("declared size %d does not match volume size %d", declared, v.Size))
	}
	o.logger.Warn().Str("volume", v.Name).
		Int64("declared", declared).
		Int64("actual", v.Size).
		Msg("cabinet size mismatch, trusting actual size")
	return nil
}

// readName reads a cabinet or disk name. These carry no UTF-8 flag and are
// decoded like ANSI file names.
func readName(cur *byteCursor, o *options) (string, error) {
	start := cur.off
	raw, err := cur.cstring()
	if err != nil {
		return "", err
	}
	name, err := o.nameEncoding.NewDecoder().Bytes(raw)
	if err != nil {
		return "", &FormatError{Unit: cur.unit, Offset: start, Msg: "undecodable name", Err: err}
	}
	return string(name), nil
}

// VolumeSource is one physical cabinet file of a set.
type VolumeSource struct {
	Name     string // file name, used to verify set links; may be empty
	ReaderAt io.ReaderAt
	Size     int64
}
