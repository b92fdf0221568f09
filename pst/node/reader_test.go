package node

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/index"
	"github.com/zhukovaskychina/xpst/pst/pstfake"
	"github.com/zhukovaskychina/xpst/pst/store/blocks"
	"github.com/zhukovaskychina/xpst/util"
)

func newReader(t *testing.T, b *pstfake.Builder) *Reader {
	bf, err := blocks.NewBlockFileFromBytes(b.Bytes(), blocks.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bf.Close() })
	return NewReader(bf, index.NewOffsetIndex(bf))
}

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

func TestReaderChains(t *testing.T) {
	for _, wide := range []bool{false, true} {
		for _, crypt := range []byte{common.CRYPT_NONE, common.CRYPT_PERMUTE} {
			t.Run(fmt.Sprintf("wide=%v/crypt=%d", wide, crypt), func(t *testing.T) {
				b := pstfake.NewBuilder(wide, crypt)
				single := b.AddBlock([]byte("single block"))
				data := pattern(1000)
				chain := b.AddChain(data, 300)

				big := pattern(2500)
				var lower []uint64
				for start := 0; start < len(big); start += 1000 {
					end := start + 1000
					if end > len(big) {
						end = len(big)
					}
					lower = append(lower, b.AddChain(big[start:end], 256))
				}
				xx := b.AddXBlock(lower...)

				r := newReader(t, b)
				s, err := r.OpenBlockID(single)
				require.NoError(t, err)
				assert.Equal(t, "single block", string(s.ReadAll()))

				s, err = r.OpenBlockID(chain)
				require.NoError(t, err)
				assert.Len(t, s.Blocks(), 4)
				assert.Equal(t, data, s.ReadAll())

				s, err = r.OpenBlockID(xx)
				require.NoError(t, err)
				assert.Equal(t, int64(len(big)), s.Len())
				assert.True(t, bytes.Equal(big, s.ReadAll()))
			})
		}
	}
}

func TestReaderCipherToggle(t *testing.T) {
	b := pstfake.NewBuilder(true, common.CRYPT_PERMUTE)
	bid := b.AddBlock([]byte("secret"))
	r := newReader(t, b)
	entry, err := r.offsets.Lookup(bid)
	require.NoError(t, err)

	raw, err := r.OpenWithCipher(entry, false)
	require.NoError(t, err)
	encoded := []byte("secret")
	blocks.EncodePermute(encoded)
	assert.Equal(t, encoded, raw.ReadAll())

	plain, err := r.Open(entry)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(plain.ReadAll()))
}

func TestReaderBadXBlock(t *testing.T) {
	b := pstfake.NewBuilder(true, common.CRYPT_NONE)
	d1 := b.AddBlock([]byte("abc"))

	// lcbTotal disagrees with the chain
	raw := []byte{common.BLOCK_TYPE_XBLOCK, 1}
	raw = util.WriteUB2(raw, 1)
	raw = util.WriteUB4(raw, 99)
	raw = util.WriteUB8(raw, d1)
	wrongTotal := b.AddInternalBlock(raw)

	// unknown block type
	raw = []byte{0x07, 1, 0, 0, 0, 0, 0, 0}
	wrongType := b.AddInternalBlock(raw)

	// references a missing block
	raw = []byte{common.BLOCK_TYPE_XBLOCK, 1}
	raw = util.WriteUB2(raw, 1)
	raw = util.WriteUB4(raw, 3)
	raw = util.WriteUB8(raw, 0x4000)
	dangling := b.AddInternalBlock(raw)

	r := newReader(t, b)
	_, err := r.OpenBlockID(wrongTotal)
	assert.True(t, errors.Is(err, common.ErrTruncatedData))
	_, err = r.OpenBlockID(wrongType)
	assert.True(t, errors.Is(err, common.ErrBadFormatMarker))
	_, err = r.OpenBlockID(dangling)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestLocalDescriptors(t *testing.T) {
	for _, wide := range []bool{false, true} {
		t.Run(fmt.Sprintf("wide=%v", wide), func(t *testing.T) {
			b := pstfake.NewBuilder(wide, common.CRYPT_PERMUTE)
			v1 := b.AddBlock([]byte("first value"))
			v2 := b.AddChain(pattern(900), 400)
			v3 := b.AddBlock([]byte("third"))
			nested := b.AddSubnodes(pstfake.Subnode{NID: 0x41, Data: v3})

			left := b.AddSubnodes(
				pstfake.Subnode{NID: 0x20, Data: v1},
				pstfake.Subnode{NID: 0x3F, Data: v2},
			)
			right := b.AddSubnodes(pstfake.Subnode{NID: 0x85, Data: v3, Sub: nested})
			root := b.AddSubnodeIndex(
				pstfake.SubnodeRef{NID: 0x20, BID: left},
				pstfake.SubnodeRef{NID: 0x85, BID: right},
			)

			r := newReader(t, b)
			locals, err := r.LocalDescriptors(root)
			require.NoError(t, err)
			assert.Equal(t, []uint64{0x20, 0x3F, 0x85}, locals.IDs())

			item, ok := locals.Lookup(0x3F)
			require.True(t, ok)
			s, err := r.OpenLocal(item)
			require.NoError(t, err)
			assert.Equal(t, pattern(900), s.ReadAll())

			item, ok = locals.Lookup(0x85)
			require.True(t, ok)
			assert.Equal(t, nested, item.SubNodeID)
			inner, err := r.LocalDescriptors(item.SubNodeID)
			require.NoError(t, err)
			s, err = r.OpenLocal(inner[0x41])
			require.NoError(t, err)
			assert.Equal(t, "third", string(s.ReadAll()))

			_, ok = locals.Lookup(0x99)
			assert.False(t, ok)

			empty, err := r.LocalDescriptors(0)
			require.NoError(t, err)
			assert.Empty(t, empty)

			var nilMap LocalDescriptorMap
			_, ok = nilMap.Lookup(0x20)
			assert.False(t, ok)
		})
	}
}

func TestLocalDescriptorsBadBlock(t *testing.T) {
	b := pstfake.NewBuilder(true, common.CRYPT_NONE)
	notSubnode := b.AddInternalBlock([]byte{common.BLOCK_TYPE_XBLOCK, 1, 0, 0, 0, 0, 0, 0})
	r := newReader(t, b)
	_, err := r.LocalDescriptors(notSubnode)
	assert.True(t, errors.Is(err, common.ErrBadFormatMarker))
}
