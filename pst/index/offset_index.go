package index

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/store/blocks"
	"github.com/zhukovaskychina/xpst/util"
)

// OffsetIndex is the block b-tree: block id -> file offset, size and
// reference count.
type OffsetIndex struct {
	tree *btree
}

func NewOffsetIndex(file *blocks.BlockFile) *OffsetIndex {
	root := file.Header().BlockBTree.Offset
	return &OffsetIndex{
		tree: newBTree(file, root, common.PAGE_TYPE_BBT, common.BID_RESERVED_BIT),
	}
}

// Lookup fails with ErrNotFound when id is absent.
func (oi *OffsetIndex) Lookup(id uint64) (OffsetIndexEntry, error) {
	rec, err := oi.tree.find(id)
	if err != nil {
		return OffsetIndexEntry{}, errors.WithMessagef(err, "offset index lookup 0x%X", id)
	}
	return decodeOffsetEntry(rec, oi.tree.wide)
}

// Walk visits every leaf entry in id order.
func (oi *OffsetIndex) Walk(fn func(OffsetIndexEntry) error) error {
	return oi.tree.walkLeaves(func(rec []byte) error {
		entry, err := decodeOffsetEntry(rec, oi.tree.wide)
		if err != nil {
			return err
		}
		return fn(entry)
	})
}

// 窄格式: id 4, offset 4, size 2, ref 2; 宽格式: id 8, offset 8, size 2, ref 2
func decodeOffsetEntry(rec []byte, wide bool) (OffsetIndexEntry, error) {
	width := 4
	if wide {
		width = 8
	}
	if !util.HasBytes(rec, 0, 2*width+4) {
		return OffsetIndexEntry{}, errors.Wrapf(common.ErrTruncatedData, "offset entry of %d bytes", len(rec))
	}
	var e OffsetIndexEntry
	cursor, id := util.ReadUBN(rec, 0, width)
	cursor, e.FileOffset = util.ReadUBN(rec, cursor, width)
	cursor, e.Size = util.ReadUB2(rec, cursor)
	_, e.RefCount = util.ReadUB2(rec, cursor)
	e.ID = id
	return e, nil
}
