package lzx

type blocktype uint8

const (
	verbatim     blocktype = 1
	aligned      blocktype = 2
	uncompressed blocktype = 3
)

const (
	numChars        = 256
	preTreeSize     = 20
	lengthTreeSize  = 249
	alignedTreeSize = 8

	alignedTreeLengthSize = 3
	preTreeLengthSize     = 4

	frameSize = 32768

	// Intel call translation is only applied to the first 32768 frames (1 GiB).
	maxIntelFrames = 32768
)

// positionSlots holds the number of match position slots per window size,
// indexed by window bits minus 15.
var positionSlots = [...]int{30, 32, 34, 36, 38, 42, 50}

var (
	extraBits    [52]uint8
	positionBase [52]uint32
)

func init() {
	j := uint8(0)
	for i := 0; i < len(extraBits); i += 2 {
		extraBits[i] = j
		extraBits[i+1] = j
		if i != 0 && j < 17 {
			j++
		}
	}
	base := uint32(0)
	for i := range positionBase {
		positionBase[i] = base
		base += 1 << extraBits[i]
	}
}

// MainElements returns the size of the main tree for a window of 2^windowBits bytes.
func MainElements(windowBits int) int {
	return numChars + positionSlots[windowBits-MinWindowBits]<<3
}
