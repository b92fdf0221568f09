package util

// Little-endian appenders, the mirror of the cursor readers. They are used to
// build fixture images and test payloads.

func WriteUB2(buff []byte, i uint16) []byte {
	return append(buff, byte(i), byte(i>>8))
}

func WriteUB4(buff []byte, i uint32) []byte {
	return append(buff, byte(i), byte(i>>8), byte(i>>16), byte(i>>24))
}

func WriteUB8(buff []byte, i uint64) []byte {
	buff = WriteUB4(buff, uint32(i))
	return WriteUB4(buff, uint32(i>>32))
}

// WriteUBN appends i as 4 or 8 bytes.
func WriteUBN(buff []byte, i uint64, width int) []byte {
	if width == 4 {
		return WriteUB4(buff, uint32(i))
	}
	return WriteUB8(buff, i)
}

// PutUB2 stores i at buff[cursor:].
func PutUB2(buff []byte, cursor int, i uint16) {
	buff[cursor] = byte(i)
	buff[cursor+1] = byte(i >> 8)
}

func PutUB4(buff []byte, cursor int, i uint32) {
	buff[cursor] = byte(i)
	buff[cursor+1] = byte(i >> 8)
	buff[cursor+2] = byte(i >> 16)
	buff[cursor+3] = byte(i >> 24)
}

func PutUB8(buff []byte, cursor int, i uint64) {
	PutUB4(buff, cursor, uint32(i))
	PutUB4(buff, cursor+4, uint32(i>>32))
}

func PutUBN(buff []byte, cursor int, i uint64, width int) {
	if width == 4 {
		PutUB4(buff, cursor, uint32(i))
		return
	}
	PutUB8(buff, cursor, i)
}

// AppendByte returns size zero bytes.
func AppendByte(size int) []byte {
	return make([]byte, size)
}
