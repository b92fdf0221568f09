package util

// Cursor style little-endian readers. Every reader takes the buffer and the
// current cursor and returns the advanced cursor with the decoded value.
// Callers are expected to check bounds with HasBytes before reading.

// HasBytes reports whether buff holds n bytes starting at cursor.
func HasBytes(buff []byte, cursor int, n int) bool {
	return cursor >= 0 && n >= 0 && cursor <= len(buff) && len(buff)-cursor >= n
}

func ReadBytes(buff []byte, cursor int, offset int) (int, []byte) {
	if offset <= 0 {
		return cursor, nil
	}
	return cursor + offset, buff[cursor : cursor+offset]
}

// ReadBytesCopy is ReadBytes that detaches the result from buff.
func ReadBytesCopy(buff []byte, cursor int, offset int) (int, []byte) {
	cursor, tmp := ReadBytes(buff, cursor, offset)
	if tmp == nil {
		return cursor, []byte{}
	}
	return cursor, append([]byte(nil), tmp...)
}

func ReadByte(buff []byte, cursor int) (int, byte) {
	return cursor + 1, buff[cursor]
}

func ReadUB2(buff []byte, cursor int) (int, uint16) {
	i := uint16(buff[cursor])
	i |= uint16(buff[cursor+1]) << 8
	return cursor + 2, i
}

func ReadUB4(buff []byte, cursor int) (int, uint32) {
	i := uint32(buff[cursor])
	i |= uint32(buff[cursor+1]) << 8
	i |= uint32(buff[cursor+2]) << 16
	i |= uint32(buff[cursor+3]) << 24
	return cursor + 4, i
}

func ReadUB8(buff []byte, cursor int) (int, uint64) {
	i := uint64(buff[cursor])
	i |= uint64(buff[cursor+1]) << 8
	i |= uint64(buff[cursor+2]) << 16
	i |= uint64(buff[cursor+3]) << 24
	i |= uint64(buff[cursor+4]) << 32
	i |= uint64(buff[cursor+5]) << 40
	i |= uint64(buff[cursor+6]) << 48
	i |= uint64(buff[cursor+7]) << 56
	return cursor + 8, i
}

func ReadUB8Long(buff []byte, cursor int) (int, int64) {
	cursor, i := ReadUB8(buff, cursor)
	return cursor, int64(i)
}

// ReadUBN reads a 4 or 8 byte little-endian value widened to uint64. The
// narrow and wide file layouts differ only in this width.
func ReadUBN(buff []byte, cursor int, width int) (int, uint64) {
	if width == 4 {
		cursor, i := ReadUB4(buff, cursor)
		return cursor, uint64(i)
	}
	return ReadUB8(buff, cursor)
}

// ReadUBSized reads an unsigned little-endian value of 1, 2, 4 or 8 bytes.
func ReadUBSized(buff []byte, cursor int, size int) (int, uint64) {
	switch size {
	case 1:
		cursor, b := ReadByte(buff, cursor)
		return cursor, uint64(b)
	case 2:
		cursor, i := ReadUB2(buff, cursor)
		return cursor, uint64(i)
	case 4:
		cursor, i := ReadUB4(buff, cursor)
		return cursor, uint64(i)
	default:
		return ReadUB8(buff, cursor)
	}
}
