package quantum

const (
	positionSlots = 42
	lengthSlots   = 27
)

var (
	positionBase  [positionSlots]uint32
	positionExtra [positionSlots]uint8
	lengthBase    [lengthSlots]uint8
	lengthExtra   [lengthSlots]uint8
)

func init() {
	offset := uint32(0)
	for i := range positionBase {
		positionBase[i] = offset
		if i >= 2 {
			positionExtra[i] = uint8((i - 2) >> 1)
		}
		offset += 1 << positionExtra[i]
	}
	length := 0
	for i := 0; i < lengthSlots-1; i++ {
		lengthBase[i] = uint8(length)
		if i >= 2 {
			lengthExtra[i] = uint8((i - 2) >> 2)
		}
		length += 1 << lengthExtra[i]
	}
	// The last slot is a fixed length without extra bits.
	lengthBase[lengthSlots-1] = 254
	lengthExtra[lengthSlots-1] = 0
}
