package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadUB(t *testing.T) {
	buff := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}

	cursor, u16 := ReadUB2(buff, 0)
	assert.Equal(t, 2, cursor)
	assert.Equal(t, uint16(0x0201), u16)

	cursor, u32 := ReadUB4(buff, cursor)
	assert.Equal(t, 6, cursor)
	assert.Equal(t, uint32(0x06050403), u32)

	cursor, u64 := ReadUB8(buff, 1)
	assert.Equal(t, 9, cursor)
	assert.Equal(t, uint64(0x0908070605040302), u64)
}

func TestReadUBN(t *testing.T) {
	buff := WriteUB8(nil, 0x1122334455667788)

	_, narrow := ReadUBN(buff, 0, 4)
	assert.Equal(t, uint64(0x55667788), narrow)

	_, wide := ReadUBN(buff, 0, 8)
	assert.Equal(t, uint64(0x1122334455667788), wide)
}

func TestReadUBSized(t *testing.T) {
	buff := []byte{0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA, 0x99, 0x88}
	for _, tc := range []struct {
		size int
		want uint64
	}{
		{1, 0xFF},
		{2, 0xEEFF},
		{4, 0xCCDDEEFF},
		{8, 0x8899AABBCCDDEEFF},
	} {
		cursor, v := ReadUBSized(buff, 0, tc.size)
		assert.Equal(t, tc.size, cursor)
		assert.Equal(t, tc.want, v)
	}
}

func TestHasBytes(t *testing.T) {
	buff := make([]byte, 10)
	assert.True(t, HasBytes(buff, 0, 10))
	assert.True(t, HasBytes(buff, 10, 0))
	assert.False(t, HasBytes(buff, 8, 4))
	assert.False(t, HasBytes(buff, -1, 1))
	assert.False(t, HasBytes(buff, 11, 0))
}

func TestReadBytesCopy(t *testing.T) {
	buff := []byte("hello")
	_, out := ReadBytesCopy(buff, 1, 3)
	buff[1] = 'X'
	assert.Equal(t, []byte("ell"), out)

	_, empty := ReadBytesCopy(buff, 0, 0)
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)
}

func TestPutUB(t *testing.T) {
	buff := make([]byte, 16)
	PutUB2(buff, 0, 0xBEEF)
	PutUB4(buff, 2, 0xDEADBEEF)
	PutUBN(buff, 6, 0x0102030405060708, 8)

	_, a := ReadUB2(buff, 0)
	_, b := ReadUB4(buff, 2)
	_, c := ReadUB8(buff, 6)
	assert.Equal(t, uint16(0xBEEF), a)
	assert.Equal(t, uint32(0xDEADBEEF), b)
	assert.Equal(t, uint64(0x0102030405060708), c)
}
