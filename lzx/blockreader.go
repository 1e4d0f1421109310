package lzx

import (
	"encoding/binary"
	"fmt"
)

// persistentData is the decoder state that carries over from one block to the next.
type persistentData struct {
	Window     *SlidingWindow
	R0, R1, R2 uint32

	IntelStarted  bool
	IntelFileSize uint32

	// Code lengths are delta coded against those of the previous block.
	MainLengths   []byte
	LengthLengths []byte
}

type blockState struct {
	Type      blocktype
	Length    int
	Remaining int

	mainTree    *Tree
	lengthTree  *Tree
	alignedTree *Tree
}

func readBlockHeader(stream *bitStream, data *persistentData, block *blockState) error {
	// Read next block header
	blockType, err := stream.ReadBits(3)
	if err != nil {
		return err
	}
	blockSize, err := stream.ReadBits(24)
	if err != nil {
		return err
	}
	block.Type = blocktype(blockType)
	block.Length = int(blockSize)
	block.Remaining = int(blockSize)

	switch block.Type {
	case uncompressed:
		data.IntelStarted = true
		if err := stream.AlignBytes(); err != nil {
			return err
		}
		var offsets [12]byte
		if err := stream.ReadRaw(offsets[:]); err != nil {
			return err
		}
		data.R0 = binary.LittleEndian.Uint32(offsets[0:])
		data.R1 = binary.LittleEndian.Uint32(offsets[4:])
		data.R2 = binary.LittleEndian.Uint32(offsets[8:])
	case aligned, verbatim:
		if block.Type == aligned {
			block.alignedTree, err = readTree(stream, alignedTreeLengthSize, alignedTreeSize)
			if err != nil {
				return err
			}
			if block.alignedTree.Empty() {
				return errInvalidTree
			}
		}
		if err := readDeltaLengths(stream, data.MainLengths, 0, numChars); err != nil {
			return err
		}
		if err := readDeltaLengths(stream, data.MainLengths, numChars, len(data.MainLengths)); err != nil {
			return err
		}
		block.mainTree, err = buildTable(data.MainLengths)
		if err != nil {
			return err
		}
		if block.mainTree.Empty() {
			return errInvalidTree
		}
		if data.MainLengths[0xE8] != 0 {
			data.IntelStarted = true
		}
		if err := readDeltaLengths(stream, data.LengthLengths, 0, lengthTreeSize); err != nil {
			return err
		}
		// The length tree may legitimately be empty if no long matches occur.
		block.lengthTree, err = buildTable(data.LengthLengths)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("lzx: invalid block type %d", blockType)
	}
	return nil
}

// decodeRun decodes compressed symbols of a verbatim or aligned block until
// at least n bytes were produced, appending them to out. total is the number
// of bytes produced by the stream before this run.
func decodeRun(stream *bitStream, data *persistentData, block *blockState, n int, total int64, out []byte) ([]byte, error) {
	start := len(out)
	for len(out)-start < n {
		mainElement, err := block.mainTree.Decode(stream)
		if err != nil {
			return out, err
		}
		if mainElement < numChars {
			data.Window.Add(byte(mainElement))
			out = append(out, byte(mainElement))
			continue
		}

		mainElement -= numChars
		matchLength := int(mainElement & 7)
		if matchLength == 7 {
			footer, err := block.lengthTree.Decode(stream)
			if err != nil {
				return out, err
			}
			matchLength += int(footer)
		}
		matchLength += 2

		var matchOffset uint32
		switch slot := mainElement >> 3; slot {
		case 0:
			matchOffset = data.R0
		case 1:
			matchOffset = data.R1
			data.R1 = data.R0
			data.R0 = matchOffset
		case 2:
			matchOffset = data.R2
			data.R2 = data.R0
			data.R0 = matchOffset
		default:
			matchOffset, err = readOffset(stream, block, int(slot))
			if err != nil {
				return out, err
			}
			data.R2 = data.R1
			data.R1 = data.R0
			data.R0 = matchOffset
		}

		produced := total + int64(len(out)-start)
		if int64(matchOffset) > produced || int(matchOffset) > data.Window.Size() || matchOffset == 0 {
			return out, fmt.Errorf("lzx: match offset %d beyond decoded data", matchOffset)
		}
		out = data.Window.Copy(int(matchOffset), matchLength, out)
	}
	return out, nil
}

func readOffset(stream *bitStream, block *blockState, slot int) (uint32, error) {
	extra := int(extraBits[slot])
	offset := positionBase[slot] - 2
	if block.Type == verbatim {
		bits, err := stream.ReadBits(extra)
		if err != nil {
			return 0, err
		}
		return offset + bits, nil
	}
	switch {
	case extra > 3:
		bits, err := stream.ReadBits(extra - 3)
		if err != nil {
			return 0, err
		}
		alignedBits, err := block.alignedTree.Decode(stream)
		if err != nil {
			return 0, err
		}
		offset += bits<<3 + uint32(alignedBits)
	case extra == 3:
		alignedBits, err := block.alignedTree.Decode(stream)
		if err != nil {
			return 0, err
		}
		offset += uint32(alignedBits)
	case extra > 0:
		bits, err := stream.ReadBits(extra)
		if err != nil {
			return 0, err
		}
		offset += bits
	}
	return offset, nil
}

// copyUncompressed copies n bytes of an uncompressed block into the window.
func copyUncompressed(stream *bitStream, data *persistentData, n int, out []byte) ([]byte, error) {
	start := len(out)
	out = append(out, make([]byte, n)...)
	if err := stream.ReadRaw(out[start:]); err != nil {
		return out[:start], err
	}
	data.Window.Write(out[start:])
	return out, nil
}
