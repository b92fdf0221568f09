// Package pages decodes the fixed 512-byte b-tree pages shared by the offset
// index and the descriptor index.
package pages

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/util"
)

// BTreePage is one decoded page. Records are left raw, their layout depends
// on the tree and the level.
type BTreePage struct {
	raw       []byte
	wide      bool
	PageType  byte
	Count     int
	MaxCount  int
	EntrySize int
	Level     int
}

// ParsePage validates the page trailer against the expected tree type.
func ParsePage(raw []byte, wide bool, expectType byte) (*BTreePage, error) {
	if len(raw) < common.BTREE_PAGE_SIZE {
		return nil, errors.Wrapf(common.ErrTruncatedData, "btree page: %d bytes", len(raw))
	}
	meta, typeOffset := common.PAGE_ANSI_META_OFFSET, common.PAGE_ANSI_TYPE_OFFSET
	if wide {
		meta, typeOffset = common.PAGE_UNICODE_META_OFFSET, common.PAGE_UNICODE_TYPE_OFFSET
	}
	p := &BTreePage{
		raw:       raw,
		wide:      wide,
		PageType:  raw[typeOffset],
		Count:     int(raw[meta]),
		MaxCount:  int(raw[meta+1]),
		EntrySize: int(raw[meta+2]),
		Level:     int(raw[meta+3]),
	}
	if p.PageType != expectType || raw[typeOffset+1] != expectType {
		return nil, errors.Wrapf(common.ErrBadFormatMarker,
			"btree page type 0x%02X, want 0x%02X", p.PageType, expectType)
	}
	if p.EntrySize == 0 || p.Count*p.EntrySize > meta {
		return nil, errors.Wrapf(common.ErrBadFormatMarker,
			"btree page holds %d entries of %d bytes", p.Count, p.EntrySize)
	}
	if p.Level > 0 && p.EntrySize < p.keyWidth()*3 {
		return nil, errors.Wrapf(common.ErrBadFormatMarker, "intermediate entry size %d", p.EntrySize)
	}
	if p.Level == 0 && p.EntrySize < p.leafWidth() {
		return nil, errors.Wrapf(common.ErrBadFormatMarker, "leaf entry size %d, want at least %d", p.EntrySize, p.leafWidth())
	}
	return p, nil
}

// leafWidth is the smallest leaf record: id, offset, size and refcount for
// the offset index; id, data, sub and parent for the descriptor index.
func (p *BTreePage) leafWidth() int {
	if p.PageType == common.PAGE_TYPE_NBT {
		return 3*p.keyWidth() + 4
	}
	return 2*p.keyWidth() + 4
}

func (p *BTreePage) keyWidth() int {
	if p.wide {
		return 8
	}
	return 4
}

func (p *BTreePage) IsLeaf() bool {
	return p.Level == 0
}

// Record returns the raw bytes of entry i.
func (p *BTreePage) Record(i int) []byte {
	start := i * p.EntrySize
	return p.raw[start : start+p.EntrySize]
}

// Key reads the leading key of entry i; both trees start every record with
// the key.
func (p *BTreePage) Key(i int) uint64 {
	_, key := util.ReadUBN(p.Record(i), 0, p.keyWidth())
	return key
}

// Child returns the (block id, file offset) reference of intermediate entry
// i.
func (p *BTreePage) Child(i int) (bid uint64, offset uint64) {
	rec := p.Record(i)
	w := p.keyWidth()
	cursor, bid := util.ReadUBN(rec, w, w)
	_, offset = util.ReadUBN(rec, cursor, w)
	return bid, offset
}

// SearchChild returns the index of the last entry whose key is <= key, or -1
// when every key is greater.
func (p *BTreePage) SearchChild(key uint64) int {
	lo, hi := 0, p.Count
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if p.Key(mid) <= key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

// SearchExact binary searches a leaf for key.
func (p *BTreePage) SearchExact(key uint64, mask uint64) (int, bool) {
	lo, hi := 0, p.Count
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		k := p.Key(mid) &^ mask
		switch {
		case k == key:
			return mid, true
		case k < key:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return -1, false
}
