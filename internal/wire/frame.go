package wire

import "encoding/binary"

// PeekType reads the 4-byte little-endian type tag from the start of a raw
// transport frame without consuming it. Returns an error if frame is
// shorter than a tag.
func PeekType(frame []byte) (Type, []byte, error) {
	if len(frame) < TagSize {
		return 0, nil, &ErrShortPacket{Type: 0, Got: len(frame), Want: TagSize}
	}
	t := Type(binary.LittleEndian.Uint32(frame))
	return t, frame[TagSize:], nil
}
