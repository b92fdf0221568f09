package blocks

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/util"
)

func makeHeader(wide bool, crypt byte) []byte {
	if wide {
		buf := make([]byte, common.HEADER_UNICODE_SIZE)
		copy(buf, "!BDN")
		copy(buf[8:], "SM")
		util.PutUB2(buf, common.HEADER_VERSION_OFFSET, 23)
		util.PutUB8(buf, 216, 0x1000)
		util.PutUB8(buf, 224, 0x4400)
		util.PutUB8(buf, 232, 0x2000)
		util.PutUB8(buf, 240, 0x4600)
		buf[common.HEADER_UNICODE_CRYPT_OFFSET] = crypt
		return buf
	}
	buf := make([]byte, common.HEADER_ANSI_SIZE)
	copy(buf, "!BDN")
	copy(buf[8:], "SM")
	util.PutUB2(buf, common.HEADER_VERSION_OFFSET, 14)
	util.PutUB4(buf, 184, 0x1000)
	util.PutUB4(buf, 188, 0x4400)
	util.PutUB4(buf, 192, 0x2000)
	util.PutUB4(buf, 196, 0x4600)
	buf[common.HEADER_ANSI_CRYPT_OFFSET] = crypt
	return buf
}

func TestParseHeader(t *testing.T) {
	for _, tc := range []struct {
		name  string
		wide  bool
		crypt byte
	}{
		{"ansi", false, common.CRYPT_NONE},
		{"unicode", true, common.CRYPT_PERMUTE},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h, err := ParseHeader(makeHeader(tc.wide, tc.crypt))
			require.NoError(t, err)
			assert.Equal(t, tc.wide, h.Wide)
			assert.Equal(t, tc.crypt, h.CryptMethod)
			assert.Equal(t, BlockRef{ID: 0x1000, Offset: 0x4400}, h.NodeBTreeRoot)
			assert.Equal(t, BlockRef{ID: 0x2000, Offset: 0x4600}, h.BlockBTree)
			if tc.wide {
				assert.Equal(t, 8, h.IDWidth())
				assert.Equal(t, common.MAX_BLOCK_DATA_UNICODE, h.MaxBlockData())
			} else {
				assert.Equal(t, 4, h.IDWidth())
			}
		})
	}
}

func TestParseHeaderErrors(t *testing.T) {
	bad := makeHeader(true, 0)
	copy(bad, "XXXX")
	_, err := ParseHeader(bad)
	assert.True(t, errors.Is(err, common.ErrBadFormatMarker))

	bad = makeHeader(true, 0)
	util.PutUB2(bad, common.HEADER_VERSION_OFFSET, 19)
	_, err = ParseHeader(bad)
	assert.True(t, errors.Is(err, common.ErrBadFormatMarker))

	_, err = ParseHeader(makeHeader(true, common.CRYPT_CYCLIC))
	assert.True(t, errors.Is(err, common.ErrUnsupportedCrypt))

	_, err = ParseHeader(makeHeader(true, 0)[:300])
	assert.True(t, errors.Is(err, common.ErrTruncatedData))

	_, err = ParseHeader([]byte("!BDN"))
	assert.True(t, errors.Is(err, common.ErrTruncatedData))
}

func TestPermuteRoundTrip(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	enc := append([]byte{}, data...)
	EncodePermute(enc)
	assert.NotEqual(t, data, enc)
	DecodePermute(enc)
	assert.Equal(t, data, enc)

	// a few known table entries
	probe := []byte{0x00, 0x41, 0x36}
	DecodePermute(probe)
	assert.Equal(t, []byte{0x47, 0x00, 0x01}, probe)
}
