package lzx

import "encoding/binary"

// translateIntelCalls undoes the E8 call translation of an x86 executable
// filter. curpos is the stream position of the first byte of frame.
func translateIntelCalls(frame []byte, curpos int32, fileSize int32) {
	if len(frame) <= 10 {
		return
	}
	end := len(frame) - 10
	for i := 0; i < end; {
		if frame[i] != 0xE8 {
			i++
			curpos++
			continue
		}
		absoluteOffset := int32(binary.LittleEndian.Uint32(frame[i+1:]))
		if absoluteOffset >= -curpos && absoluteOffset < fileSize {
			var relativeOffset int32
			if absoluteOffset >= 0 {
				relativeOffset = absoluteOffset - curpos
			} else {
				relativeOffset = absoluteOffset + fileSize
			}
			binary.LittleEndian.PutUint32(frame[i+1:], uint32(relativeOffset))
		}
		i += 5
		curpos += 5
	}
}
