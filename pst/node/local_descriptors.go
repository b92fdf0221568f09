package node

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/util"
)

// LocalDescriptorItem is one entry of an object's local descriptor (subnode)
// tree. SubNodeID is non-zero when the item has a subtree of its own, as an
// embedded message attachment does.
type LocalDescriptorItem struct {
	ID         uint64
	DataNodeID uint64
	SubNodeID  uint64
}

// LocalDescriptorMap maps local ids to their items.
type LocalDescriptorMap map[uint64]LocalDescriptorItem

// Lookup is nil-safe.
func (m LocalDescriptorMap) Lookup(id uint64) (LocalDescriptorItem, bool) {
	if m == nil {
		return LocalDescriptorItem{}, false
	}
	item, ok := m[id]
	return item, ok
}

// IDs returns the local ids in ascending order.
func (m LocalDescriptorMap) IDs() []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// LocalDescriptors walks the SLBLOCK/SIBLOCK tree rooted at subBid. A zero
// subBid yields an empty map.
func (r *Reader) LocalDescriptors(subBid uint64) (LocalDescriptorMap, error) {
	out := make(LocalDescriptorMap)
	if subBid == 0 {
		return out, nil
	}
	if err := r.walkLocal(subBid, 0, out); err != nil {
		return nil, errors.WithMessagef(err, "local descriptor tree 0x%X", subBid)
	}
	return out, nil
}

// 头部: btype(1) cLevel(1) cEnt(2)，宽格式再加 4 字节填充
// SLENTRY: nid, bidData, bidSub; SIENTRY: nid, bid
func (r *Reader) walkLocal(bid uint64, depth int, out LocalDescriptorMap) error {
	if depth > common.MAX_BTREE_DEPTH {
		return errors.Wrapf(common.ErrBadFormatMarker, "local descriptor tree deeper than %d", common.MAX_BTREE_DEPTH)
	}
	entry, err := r.offsets.Lookup(bid)
	if err != nil {
		return err
	}
	raw, err := r.readRaw(entry)
	if err != nil {
		return err
	}

	width := r.file.Header().IDWidth()
	headerSize := 4
	if width == 8 {
		headerSize = 8
	}
	if !util.HasBytes(raw, 0, headerSize) {
		return errors.Wrapf(common.ErrTruncatedData, "local descriptor block 0x%X: %d bytes", bid, len(raw))
	}
	cursor, btype := util.ReadByte(raw, 0)
	cursor, level := util.ReadByte(raw, cursor)
	_, count := util.ReadUB2(raw, cursor)
	if btype != common.BLOCK_TYPE_SLBLOCK {
		return errors.Wrapf(common.ErrBadFormatMarker, "local descriptor block 0x%X has type 0x%02X", bid, btype)
	}

	entrySize := 3 * width
	if level > 0 {
		entrySize = 2 * width
	}
	cursor = headerSize
	if !util.HasBytes(raw, cursor, int(count)*entrySize) {
		return errors.Wrapf(common.ErrTruncatedData, "local descriptor block 0x%X lists %d entries", bid, count)
	}
	for i := 0; i < int(count); i++ {
		var nid uint64
		cursor, nid = util.ReadUBN(raw, cursor, width)
		nid &= 0xFFFFFFFF
		if level > 0 {
			var child uint64
			cursor, child = util.ReadUBN(raw, cursor, width)
			if err := r.walkLocal(child, depth+1, out); err != nil {
				return err
			}
			continue
		}
		item := LocalDescriptorItem{ID: nid}
		cursor, item.DataNodeID = util.ReadUBN(raw, cursor, width)
		cursor, item.SubNodeID = util.ReadUBN(raw, cursor, width)
		out[nid] = item
	}
	return nil
}
