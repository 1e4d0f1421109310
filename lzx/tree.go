package lzx

import (
	"errors"
	"math"
)

var (
	errInvalidTree = errors.New("lzx: invalid tree lengths")
	errEmptyTree   = errors.New("lzx: symbol read from empty tree")
)

func readTree(stream *bitStream, lengthBits int, size int) (*Tree, error) {
	lengths, err := readLengths(stream, lengthBits, size)
	if err != nil {
		return nil, err
	}
	return buildTable(lengths)
}

func readLengths(stream *bitStream, lengthBits int, size int) ([]byte, error) {
	var lengths = make([]byte, size)
	for i := 0; i < len(lengths); i++ {
		treeEntry, err := stream.ReadBits(lengthBits)
		if err != nil {
			return nil, err
		}
		lengths[i] = uint8(treeEntry)
	}
	return lengths, nil
}

// buildTable builds a lookup table from canonical Huffman code lengths. The
// lengths must describe a complete code; a table without any codes is empty.
func buildTable(lengths []byte) (*Tree, error) {
	var maxLength byte
	for _, length := range lengths {
		if length > maxLength {
			maxLength = length
		}
	}
	if maxLength == 0 {
		return &Tree{PathLengths: lengths}, nil
	}
	if maxLength > 16 {
		return nil, errInvalidTree
	}

	// Plausibility check: lengths should have a total sum of the size
	code := 0
	for _, cl := range lengths {
		if cl > 0 {
			code += 1 << (maxLength - cl)
		}
	}

	if code != 1<<maxLength {
		return nil, errInvalidTree
	}

	huffmanTree := make([]uint16, 1<<maxLength)
	position := 0

	if len(lengths) > math.MaxUint16 {
		return nil, errors.New("lzx: too many codes")
	}

	for bit := uint8(1); bit <= maxLength; bit++ {
		amount := 1 << (maxLength - bit)
		for code := uint16(0); code < uint16(len(lengths)); code++ {
			if lengths[code] == bit {
				for j := 0; j < amount; j++ {
					huffmanTree[position] = code
					position++
				}
			}
		}
	}

	return &Tree{
		PathLengths: lengths,
		HuffmanTree: huffmanTree,
		MaxDepth:    int(maxLength),
	}, nil
}

type Tree struct {
	PathLengths []byte
	MaxDepth    int
	HuffmanTree []uint16
}

// Empty reports whether the tree has no codes at all.
func (t *Tree) Empty() bool {
	return t.MaxDepth == 0
}

func (t *Tree) Decode(stream *bitStream) (uint16, error) {
	if t.Empty() {
		return 0, errEmptyTree
	}
	// At most, we need as many bits as the max depth. Peek at this many bits to determine the code.
	nextBits, err := stream.PeekBits(t.MaxDepth)
	if err != nil {
		return 0, err
	}
	code := t.HuffmanTree[nextBits]
	// The actual amount of bits the code took is t.PathLengths[code].
	if err := stream.consume(int(t.PathLengths[code])); err != nil {
		return 0, err
	}
	return code, nil
}

// readDeltaLengths updates lengths[from:last] with a pretree encoded delta
// list. The lengths of the previous block serve as the base values.
func readDeltaLengths(stream *bitStream, lengths []byte, from, last int) error {
	preTree, err := readTree(stream, preTreeLengthSize, preTreeSize)
	if err != nil {
		return err
	}
	for i := from; i < last; {
		k, err := preTree.Decode(stream)
		if err != nil {
			return err
		}
		switch k {
		case 17, 18:
			var j uint32
			if k == 17 {
				j, err = stream.ReadBits(4)
				j += 4
			} else {
				j, err = stream.ReadBits(5)
				j += 20
			}
			if err != nil {
				return err
			}
			run := min(int(j), last-i)
			for ; run > 0; run-- {
				lengths[i] = 0
				i++
			}
		case 19:
			j, err := stream.ReadBits(1)
			if err != nil {
				return err
			}
			run := min(int(j)+4, last-i)
			k, err := preTree.Decode(stream)
			if err != nil {
				return err
			}
			if k > 16 {
				return errInvalidTree
			}
			m := uint8((uint16(lengths[i]) + 17 - k) % 17)
			for ; run > 0; run-- {
				lengths[i] = m
				i++
			}
		default:
			lengths[i] = uint8((uint16(lengths[i]) + 17 - k) % 17)
			i++
		}
	}
	return nil
}
