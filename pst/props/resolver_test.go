package props

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/smartystreets/assertions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/node"
	"github.com/zhukovaskychina/xpst/util"
)

type memOpener map[uint64][][]byte

func (m memOpener) OpenLocal(item node.LocalDescriptorItem) (*node.NodeInputStream, error) {
	b, ok := m[item.DataNodeID]
	if !ok {
		return nil, errors.Wrapf(common.ErrNotFound, "block 0x%X", item.DataNodeID)
	}
	return node.NewNodeInputStream(b), nil
}

func heapItem(tag, typ uint16, data []byte) PropertyItem {
	return PropertyItem{Tag: tag, Type: typ, Value: LocalHeap(data)}
}

func inlineItem(tag, typ uint16, v uint32) PropertyItem {
	return PropertyItem{Tag: tag, Type: typ, Value: Inline(v)}
}

func utf16(s string) []byte {
	var out []byte
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func TestNewPropertyItem(t *testing.T) {
	heap := func(hid uint32) ([]byte, error) {
		if hid == 0x20 {
			return []byte("heap"), nil
		}
		return nil, errors.Wrap(common.ErrTruncatedData, "no such hid")
	}
	for _, tc := range []struct {
		name string
		typ  uint16
		slot uint32
		kind ValueKind
	}{
		{"int32 inline", common.PT_LONG, 0x20, KindInline},
		{"int32 looks external", common.PT_LONG, 0x8A1, KindInline},
		{"bool", common.PT_BOOLEAN, 1, KindInline},
		{"string on heap", common.PT_STRING8, 0x20, KindLocalHeap},
		{"empty", common.PT_BINARY, 0, KindLocalHeap},
		{"subnode", common.PT_BINARY, 0x8A1, KindExternal},
	} {
		t.Run(tc.name, func(t *testing.T) {
			item, err := NewPropertyItem(0x1234, tc.typ, tc.slot, heap)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, item.Value.Kind)
			assert.Equal(t, tc.kind == KindExternal, item.IsExternal())
		})
	}
	_, err := NewPropertyItem(0x1234, common.PT_BINARY, 0x40, heap)
	assert.True(t, errors.Is(err, common.ErrTruncatedData))
}

func TestGetScalars(t *testing.T) {
	pm := PropertyMap{
		0x0001: inlineItem(0x0001, common.PT_LONG, uint32(0xFFFFFFFE)),
		0x0002: inlineItem(0x0002, common.PT_SHORT, 0xFFFF),
		0x0003: inlineItem(0x0003, common.PT_BOOLEAN, 1),
		0x0004: inlineItem(0x0004, common.PT_FLOAT, math.Float32bits(1.5)),
		0x0005: heapItem(0x0005, common.PT_DOUBLE, util.WriteUB8(nil, math.Float64bits(-2.25))),
		0x0006: heapItem(0x0006, common.PT_LONGLONG, util.WriteUB8(nil, 1<<40)),
		0x0007: heapItem(0x0007, common.PT_CURRENCY, util.WriteUB8(nil, 123456)),
	}
	r := NewResolver(pm, nil, nil)

	v, err := r.GetInt(0x0001, 0)
	require.NoError(t, err)
	assert.Equal(t, -2, v)
	v, err = r.GetInt(0x0002, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, v)
	v, err = r.GetInt(0x9999, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	b, err := r.GetBool(0x0003, false)
	require.NoError(t, err)
	assert.True(t, b)
	b, err = r.GetBool(0x9999, false)
	require.NoError(t, err)
	assert.False(t, b)

	f, err := r.GetDouble(0x0004, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)
	f, err = r.GetDouble(0x0005, 0)
	require.NoError(t, err)
	assert.Equal(t, -2.25, f)
	f, err = r.GetDouble(0x9999, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f)

	l, err := r.GetLong(0x0006, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<40), l)

	c, err := r.GetCurrency(0x0007)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.3456").Equal(c), c.String())
}

func TestGetDate(t *testing.T) {
	when := time.Date(2009, 7, 25, 0, 0, 0, 0, time.UTC)
	low, high := util.TimeToFiletime(when)
	raw := util.WriteUB4(util.WriteUB4(nil, low), high)
	pm := PropertyMap{
		0x0E06: heapItem(0x0E06, common.PT_SYSTIME, raw),
		0x0E07: heapItem(0x0E07, common.PT_SYSTIME, make([]byte, 8)),
	}
	r := NewResolver(pm, nil, nil)

	got, ok, err := r.GetDate(0x0E06)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, when.Equal(got))

	got, ok, err = r.GetDate(0x0E07)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), got.Unix())

	_, ok, err = r.GetDate(0x9999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetString(t *testing.T) {
	pm := PropertyMap{
		common.PR_DISPLAY_NAME: heapItem(common.PR_DISPLAY_NAME, common.PT_STRING8, []byte("Hello")),
		0x0037:                 heapItem(0x0037, common.PT_UNICODE, append(utf16("Sub\x00ject"), 0, 0)),
		0x0038:                 heapItem(0x0038, common.PT_STRING8, []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2, 0}),
		0x0039:                 heapItem(0x0039, common.PT_STRING8, []byte{0xD6, 0xD0, 0xCE, 0xC4}),
		0x003A:                 heapItem(0x003A, common.PT_BINARY, []byte{0xDE, 0xAD}),
	}
	r := NewResolver(pm, nil, nil)

	s, err := r.GetString(common.PR_DISPLAY_NAME, 0)
	require.NoError(t, err)
	assert.Empty(t, assertions.ShouldEqual(s, "Hello"))

	s, err = r.GetStringOr(0x9999, "")
	require.NoError(t, err)
	assert.Equal(t, "", s)

	s, err = r.GetString(0x0037, 0)
	require.NoError(t, err)
	assert.Equal(t, "Subject", s)

	s, err = r.GetString(0x0038, 1251)
	require.NoError(t, err)
	assert.Equal(t, "Привет", s)

	s, err = r.GetString(0x0039, 936)
	require.NoError(t, err)
	assert.Equal(t, "中文", s)

	s, err = r.GetString(0x003A, 0)
	require.NoError(t, err)
	assert.Equal(t, "dead", s)
}

func TestCodepageSelection(t *testing.T) {
	pm := PropertyMap{
		0x0038:                      heapItem(0x0038, common.PT_STRING8, []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}),
		common.PR_INTERNET_CODEPAGE: inlineItem(common.PR_INTERNET_CODEPAGE, common.PT_LONG, 1251),
	}
	r := NewResolver(pm, nil, nil)
	assert.Equal(t, 1251, r.Codepage())
	s, err := r.GetString(0x0038, 0)
	require.NoError(t, err)
	assert.Equal(t, "Привет", s)

	pm[common.PR_MESSAGE_CODEPAGE] = inlineItem(common.PR_MESSAGE_CODEPAGE, common.PT_LONG, 1252)
	assert.Equal(t, 1252, r.Codepage())

	r = NewResolver(PropertyMap{}, nil, nil)
	r.DefaultCodepage = 932
	assert.Equal(t, 932, r.Codepage())
	assert.True(t, SupportedCodepage(932))
	assert.False(t, SupportedCodepage(12345))
	assert.Equal(t, 1252, NewResolver(nil, nil, nil).Codepage())
}

func TestExternalValues(t *testing.T) {
	body := []byte("a value spread over several blocks")
	opener := memOpener{0x100: {body[:10], body[10:20], body[20:]}}
	locals := node.LocalDescriptorMap{0x8A1: {ID: 0x8A1, DataNodeID: 0x100}}
	pm := PropertyMap{
		0x1000: {Tag: 0x1000, Type: common.PT_STRING8, Value: External(0x8A1)},
		0x1001: {Tag: 0x1001, Type: common.PT_BINARY, Value: External(0x8C1)},
		0x1002: {Tag: 0x1002, Type: common.PT_STRING8, Value: External(0x8C1)},
	}
	r := NewResolver(pm, locals, opener)

	s, err := r.GetString(0x1000, 0)
	require.NoError(t, err)
	assert.Equal(t, string(body), s)

	bin, err := r.GetBinary(0x1001)
	require.NoError(t, err)
	assert.Nil(t, bin)

	_, err = r.GetString(0x1002, 0)
	assert.True(t, errors.Is(err, common.ErrMissingDescriptor))

	// no local map at all
	_, err = NewResolver(pm, nil, nil).GetString(0x1000, 0)
	assert.True(t, errors.Is(err, common.ErrMissingDescriptor))

	bin, err = r.GetBinary(0x9999)
	require.NoError(t, err)
	assert.Nil(t, bin)
}

func TestGetGUIDAndStrings(t *testing.T) {
	raw := []byte{
		0x33, 0x22, 0x11, 0x00, 0x55, 0x44, 0x77, 0x66,
		0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF,
	}
	var mv []byte
	mv = util.WriteUB4(mv, 2)
	mv = util.WriteUB4(mv, 12)
	mv = util.WriteUB4(mv, 12+6)
	mv = append(mv, utf16("one")...)
	mv = append(mv, utf16("two")...)

	pm := PropertyMap{
		0x0FF9: heapItem(0x0FF9, common.PT_CLSID, raw),
		0x8000: heapItem(0x8000, common.PT_MV_UNICODE, mv),
		0x8001: heapItem(0x8001, common.PT_LONG, nil),
	}
	r := NewResolver(pm, nil, nil)

	id, ok, err := r.GetGUID(0x0FF9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff"), id)

	list, err := r.GetStrings(0x8000)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, list)

	_, err = r.GetStrings(0x8001)
	assert.Error(t, err)
}
