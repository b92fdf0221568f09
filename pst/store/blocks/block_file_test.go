package blocks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xpst/pst/common"
)

func testImage() []byte {
	img := makeHeader(true, common.CRYPT_NONE)
	payload := make([]byte, 1024)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	return append(img, payload...)
}

func TestBlockFileFromBytes(t *testing.T) {
	img := testImage()
	for _, codec := range []string{CodecNone, CodecSnappy, CodecLZ4} {
		t.Run(codec, func(t *testing.T) {
			bf, err := NewBlockFileFromBytes(img, Options{CacheSize: 8, CacheCodec: codec})
			require.NoError(t, err)
			assert.Equal(t, int64(len(img)), bf.Size())
			assert.True(t, bf.Header().Wide)

			for i := 0; i < 2; i++ {
				got, err := bf.ReadAt(600, 100)
				require.NoError(t, err)
				assert.Equal(t, img[600:700], got)
				got[0] ^= 0xFF // the caller owns the copy
			}
			assert.Equal(t, 1, bf.cache.Len())

			_, err = bf.ReadAt(uint64(len(img)-10), 11)
			assert.True(t, errors.Is(err, common.ErrTruncatedData))

			require.NoError(t, bf.Close())
			_, err = bf.ReadAt(0, 1)
			assert.True(t, errors.Is(err, common.ErrClosed))
		})
	}
}

func TestBlockFileFingerprint(t *testing.T) {
	a, err := NewBlockFileFromBytes(testImage(), Options{})
	require.NoError(t, err)
	other := testImage()
	other[len(other)-1] ^= 1
	b, err := NewBlockFileFromBytes(other, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestOpenBlockFile(t *testing.T) {
	img := testImage()
	path := filepath.Join(t.TempDir(), "test.pst")
	require.NoError(t, os.WriteFile(path, img, 0644))

	for _, useMmap := range []bool{false, true} {
		bf, err := OpenBlockFile(path, Options{UseMmap: useMmap})
		require.NoError(t, err)
		got, err := bf.ReadAt(1000, 24)
		require.NoError(t, err)
		assert.Equal(t, img[1000:1024], got)
		assert.Equal(t, path, bf.GetFilePath())
		assert.NotZero(t, bf.Fingerprint())
		require.NoError(t, bf.Close())
	}

	_, err := OpenBlockFile(filepath.Join(t.TempDir(), "missing.pst"), Options{})
	assert.Error(t, err)
}

func TestBlockCacheNil(t *testing.T) {
	c, err := NewBlockCache(0, CodecSnappy)
	require.NoError(t, err)
	assert.Nil(t, c)
	c.Put(1, []byte{1})
	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	_, err = NewBlockCache(4, "zstd")
	assert.Error(t, err)
}
