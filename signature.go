package cab

import (
	"encoding/binary"
	"io"
)

const signatureHeaderSize = 20

// SignatureHeader is the reserved header area written by Authenticode signing
// tools. The PKCS#7 signature is stored after the cabinet data, at CabinetSize.
type SignatureHeader struct {
	Unknown1           uint32
	CabinetSize        uint32
	SignatureSize      uint32
	Unknown2, Unknown3 uint32
}

func parseSignatureHeader(reserved []byte) *SignatureHeader {
	return &SignatureHeader{
		Unknown1:      binary.LittleEndian.Uint32(reserved[0:]),
		CabinetSize:   binary.LittleEndian.Uint32(reserved[4:]),
		SignatureSize: binary.LittleEndian.Uint32(reserved[8:]),
		Unknown2:      binary.LittleEndian.Uint32(reserved[12:]),
		Unknown3:      binary.LittleEndian.Uint32(reserved[16:]),
	}
}

// Signature returns the Authenticode signature blob of the volume, or nil if
// the volume is not signed.
func (v *Volume) Signature() ([]byte, error) {
	sh := v.SignatureHeader
	if sh == nil || sh.SignatureSize == 0 {
		return nil, nil
	}
	end := int64(sh.CabinetSize) + int64(sh.SignatureSize)
	if end > v.r.Size() {
		return nil, formatError("signature", int64(sh.CabinetSize), "signature exceeds volume")
	}
	sig := make([]byte, sh.SignatureSize)
	if _, err := v.r.ReadAt(sig, int64(sh.CabinetSize)); err != nil && err != io.EOF {
		return nil, err
	}
	return sig, nil
}
