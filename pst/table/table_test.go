package table

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xpst/logger"
	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/node"
	"github.com/zhukovaskychina/xpst/pst/props"
	"github.com/zhukovaskychina/xpst/pst/pstfake"
)

func stream(blocks ...[]byte) *node.NodeInputStream {
	return node.NewNodeInputStream(blocks)
}

// memOpener serves local descriptor values from memory, keyed by data id.
type memOpener map[uint64][][]byte

func (m memOpener) OpenLocal(item node.LocalDescriptorItem) (*node.NodeInputStream, error) {
	b, ok := m[item.DataNodeID]
	if !ok {
		return nil, errors.Wrapf(common.ErrNotFound, "block 0x%X", item.DataNodeID)
	}
	return node.NewNodeInputStream(b), nil
}

func TestHeapOnNode(t *testing.T) {
	h := pstfake.NewHeap(common.HN_CLIENT_PC)
	a := h.Alloc([]byte("alpha"))
	b := h.Alloc(nil)
	c := h.Alloc([]byte("gamma!"))
	h.Root = a

	heap, err := NewHeapOnNode(stream(h.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, byte(common.HN_CLIENT_PC), heap.ClientSig)
	assert.Equal(t, a, heap.UserRoot)

	got, err := heap.Get(a)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))
	got, err = heap.Get(b)
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = heap.GetCopy(c)
	require.NoError(t, err)
	assert.Equal(t, "gamma!", string(got))

	_, err = heap.Get(0x80)
	assert.True(t, errors.Is(err, common.ErrTruncatedData))
	_, err = heap.Get(0x21)
	assert.True(t, errors.Is(err, common.ErrBadFormatMarker))
	_, err = heap.Get(1 << 16)
	assert.True(t, errors.Is(err, common.ErrBadFormatMarker))
	_, err = heap.Get(1<<16 | 0x20)
	assert.True(t, errors.Is(err, common.ErrTruncatedData))

	raw := h.Bytes()
	raw[2] = 0x00
	_, err = NewHeapOnNode(stream(raw))
	assert.True(t, errors.Is(err, common.ErrBadFormatMarker))
	_, err = NewHeapOnNode(stream([]byte{1, 2, 3}))
	assert.True(t, errors.Is(err, common.ErrTruncatedData))
}

func sampleEntries() []pstfake.PCEntry {
	return []pstfake.PCEntry{
		{Tag: 0x0E08, Type: common.PT_LONG, Value: 12345},
		{Tag: 0x0E1F, Type: common.PT_BOOLEAN, Value: 1},
		{Tag: common.PR_DISPLAY_NAME, Type: common.PT_STRING8, Data: []byte("Hello")},
		{Tag: 0x0E06, Type: common.PT_SYSTIME, Data: []byte{0, 0, 0, 0, 0, 0, 0, 0}},
		{Tag: 0x1000, Type: common.PT_UNICODE, Value: 0x8A1},
		{Tag: 0x0FFF, Type: common.PT_BINARY, Data: []byte{}},
	}
}

func TestParseBC(t *testing.T) {
	for _, fanout := range []int{0, 2} {
		pm, err := ParseBC(stream(pstfake.BuildPCIndexed(fanout, sampleEntries()...)))
		require.NoError(t, err)
		require.Len(t, pm, 6)

		item := pm[0x0E08]
		assert.Equal(t, props.KindInline, item.Value.Kind)
		assert.Equal(t, uint32(12345), item.Value.Inline)

		item = pm[common.PR_DISPLAY_NAME]
		assert.Equal(t, props.KindLocalHeap, item.Value.Kind)
		assert.Equal(t, "Hello", string(item.Value.Data))

		item = pm[0x1000]
		assert.True(t, item.IsExternal())
		assert.Equal(t, uint32(0x8A1), item.Value.Ref)

		assert.Equal(t, props.KindLocalHeap, pm[0x0FFF].Value.Kind)
		assert.Equal(t, []uint16{0x0E06, 0x0E08, 0x0E1F, 0x0FFF, 0x1000, common.PR_DISPLAY_NAME}, pm.Tags())
	}
}

func TestParseBCCopiesHeapValues(t *testing.T) {
	raw := pstfake.BuildPC(pstfake.PCEntry{Tag: 0x3001, Type: common.PT_STRING8, Data: []byte("Hello")})
	pm, err := ParseBC(stream(raw))
	require.NoError(t, err)
	for i := range raw {
		raw[i] = 0
	}
	assert.Equal(t, "Hello", string(pm[0x3001].Value.Data))
}

func TestParseBCInlineNeverExternal(t *testing.T) {
	// an int32 whose slot happens to look like a subnode id
	raw := pstfake.BuildPC(pstfake.PCEntry{Tag: 0x3602, Type: common.PT_LONG, Value: 0x8A1})
	pm, err := ParseBC(stream(raw))
	require.NoError(t, err)
	item := pm[0x3602]
	assert.False(t, item.IsExternal())
	assert.Equal(t, props.KindInline, item.Value.Kind)

	r := props.NewResolver(pm, nil, nil)
	v, err := r.GetInt(0x3602, 0)
	require.NoError(t, err)
	assert.Equal(t, 0x8A1, v)
}

func TestParseBCDuplicateTagLastWins(t *testing.T) {
	raw := pstfake.BuildPC(
		pstfake.PCEntry{Tag: 0x3602, Type: common.PT_LONG, Value: 1},
		pstfake.PCEntry{Tag: 0x3602, Type: common.PT_LONG, Value: 2},
	)
	pm, err := ParseBC(stream(raw))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pm[0x3602].Value.Inline)
}

func TestParseBCEmpty(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf, "warn")
	defer logger.SetOutput(logrus.StandardLogger().Out, "warn")

	pm, err := ParseBC(stream(pstfake.BuildPC()))
	require.NoError(t, err)
	assert.Empty(t, pm)
	assert.Contains(t, buf.String(), common.ErrEmptyTable.Error())
}

func TestParseBCWrongType(t *testing.T) {
	tc := &pstfake.TableContext{Columns: []pstfake.TCColumn{{Tag: common.PR_LTP_ROW_ID, Type: common.PT_LONG}}}
	raw, _ := tc.Build()
	_, err := ParseBC(stream(raw))
	assert.True(t, errors.Is(err, common.ErrBadTableType))
	assert.True(t, common.IsParseError(err))

	_, err = Parse7C(stream(pstfake.BuildPC()), nil, nil)
	assert.True(t, errors.Is(err, common.ErrBadTableType))
}

func TestBTHRejectsCycles(t *testing.T) {
	h := pstfake.NewHeap(common.HN_CLIENT_PC)
	// an index record whose child is its own allocation
	index := h.Alloc([]byte{0x01, 0x30, 0x20, 0x00, 0x00, 0x00})
	require.Equal(t, uint32(0x20), index)
	h.Root = h.Alloc([]byte{common.HN_CLIENT_BTH, 2, 6, 255, 0x20, 0x00, 0x00, 0x00})

	_, err := ParseBC(stream(h.Bytes()))
	assert.True(t, errors.Is(err, common.ErrBadFormatMarker))
}
