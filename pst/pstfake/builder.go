// Package pstfake assembles small PST images in memory for tests. Both the
// narrow and the wide layouts are produced; blocks may be permute-encoded and
// the two b-trees are laid out over as many levels as the leaf capacity
// requires.
package pstfake

import (
	"sort"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/store/blocks"
	"github.com/zhukovaskychina/xpst/util"
)

const headerArea = 1024

type fakeBlock struct {
	bid      uint64
	data     []byte
	internal bool
	refs     uint16
}

// NodeEntry is one descriptor index record.
type NodeEntry struct {
	NID    uint64
	Data   uint64
	Sub    uint64
	Parent uint64
}

// Subnode is an SLENTRY.
type Subnode struct {
	NID  uint64
	Data uint64
	Sub  uint64
}

// SubnodeRef is an SIENTRY pointing at a lower SLBLOCK.
type SubnodeRef struct {
	NID uint64
	BID uint64
}

type Builder struct {
	wide         bool
	crypt        byte
	leafCapacity int

	blocks       []fakeBlock
	nodes        []NodeEntry
	nextExternal uint64
	nextInternal uint64
}

// NewBuilder starts an empty image. crypt is written to the header; with
// CRYPT_PERMUTE external blocks are stored encoded.
func NewBuilder(wide bool, crypt byte) *Builder {
	return &Builder{wide: wide, crypt: crypt, nextExternal: 1, nextInternal: 1}
}

// SetLeafCapacity bounds the number of entries per b-tree page so that small
// trees still get intermediate levels.
func (b *Builder) SetLeafCapacity(n int) *Builder {
	b.leafCapacity = n
	return b
}

func (b *Builder) Wide() bool {
	return b.wide
}

func (b *Builder) width() int {
	if b.wide {
		return 8
	}
	return 4
}

// AddBlock stores a data block and returns its id.
func (b *Builder) AddBlock(data []byte) uint64 {
	bid := b.nextExternal << 2
	b.nextExternal++
	b.blocks = append(b.blocks, fakeBlock{bid: bid, data: append([]byte{}, data...), refs: 2})
	return bid
}

// AddInternalBlock stores raw bytes under an internal block id.
func (b *Builder) AddInternalBlock(data []byte) uint64 {
	bid := b.nextInternal<<2 | common.BID_INTERNAL_BIT
	b.nextInternal++
	b.blocks = append(b.blocks, fakeBlock{bid: bid, data: append([]byte{}, data...), internal: true, refs: 2})
	return bid
}

func (b *Builder) blockByID(bid uint64) *fakeBlock {
	for i := range b.blocks {
		if b.blocks[i].bid == bid {
			return &b.blocks[i]
		}
	}
	return nil
}

// logicalSize is the number of data bytes reachable from bid.
func (b *Builder) logicalSize(bid uint64) int {
	blk := b.blockByID(bid)
	if blk == nil {
		return 0
	}
	if !blk.internal {
		return len(blk.data)
	}
	_, total := util.ReadUB4(blk.data, 4)
	return int(total)
}

// AddXBlock lists children in order. Children that are themselves internal
// make it an XXBLOCK.
func (b *Builder) AddXBlock(children ...uint64) uint64 {
	level := byte(1)
	total := 0
	for _, c := range children {
		if c&common.BID_INTERNAL_BIT != 0 {
			level = 2
		}
		total += b.logicalSize(c)
	}
	raw := []byte{common.BLOCK_TYPE_XBLOCK, level}
	raw = util.WriteUB2(raw, uint16(len(children)))
	raw = util.WriteUB4(raw, uint32(total))
	for _, c := range children {
		raw = util.WriteUBN(raw, c, b.width())
	}
	return b.AddInternalBlock(raw)
}

// AddChain splits data into blocks of at most blockSize bytes. A single
// block is returned as is, more become an XBLOCK.
func (b *Builder) AddChain(data []byte, blockSize int) uint64 {
	if len(data) <= blockSize {
		return b.AddBlock(data)
	}
	var ids []uint64
	for start := 0; start < len(data); start += blockSize {
		end := start + blockSize
		if end > len(data) {
			end = len(data)
		}
		ids = append(ids, b.AddBlock(data[start:end]))
	}
	return b.AddXBlock(ids...)
}

func (b *Builder) subnodeHeader(level byte, count int) []byte {
	raw := []byte{common.BLOCK_TYPE_SLBLOCK, level}
	raw = util.WriteUB2(raw, uint16(count))
	if b.wide {
		raw = util.WriteUB4(raw, 0)
	}
	return raw
}

// AddSubnodes writes an SLBLOCK.
func (b *Builder) AddSubnodes(items ...Subnode) uint64 {
	raw := b.subnodeHeader(0, len(items))
	for _, it := range items {
		raw = util.WriteUBN(raw, it.NID, b.width())
		raw = util.WriteUBN(raw, it.Data, b.width())
		raw = util.WriteUBN(raw, it.Sub, b.width())
	}
	return b.AddInternalBlock(raw)
}

// AddSubnodeIndex writes an SIBLOCK over lower SLBLOCKs.
func (b *Builder) AddSubnodeIndex(refs ...SubnodeRef) uint64 {
	raw := b.subnodeHeader(1, len(refs))
	for _, r := range refs {
		raw = util.WriteUBN(raw, r.NID, b.width())
		raw = util.WriteUBN(raw, r.BID, b.width())
	}
	return b.AddInternalBlock(raw)
}

// AddNode registers a descriptor.
func (b *Builder) AddNode(nid, data, sub, parent uint64) {
	b.nodes = append(b.nodes, NodeEntry{NID: nid, Data: data, Sub: sub, Parent: parent})
}

// Bytes lays the image out: header, blocks, then the two b-trees.
func (b *Builder) Bytes() []byte {
	img := make([]byte, headerArea)

	sorted := append([]fakeBlock{}, b.blocks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].bid < sorted[j].bid })

	offsets := make(map[uint64]uint64, len(sorted))
	for _, blk := range sorted {
		offsets[blk.bid] = uint64(len(img))
		data := append([]byte{}, blk.data...)
		if !blk.internal && b.crypt == common.CRYPT_PERMUTE {
			blocks.EncodePermute(data)
		}
		img = append(img, data...)
	}

	w := b.width()
	var bbt [][]byte
	var bbtKeys []uint64
	for _, blk := range sorted {
		var rec []byte
		rec = util.WriteUBN(rec, blk.bid, w)
		rec = util.WriteUBN(rec, offsets[blk.bid], w)
		rec = util.WriteUB2(rec, uint16(len(blk.data)))
		rec = util.WriteUB2(rec, blk.refs)
		if b.wide {
			rec = util.WriteUB4(rec, 0)
		}
		bbt = append(bbt, rec)
		bbtKeys = append(bbtKeys, blk.bid)
	}

	nodes := append([]NodeEntry{}, b.nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].NID < nodes[j].NID })
	var nbt [][]byte
	var nbtKeys []uint64
	for _, n := range nodes {
		var rec []byte
		rec = util.WriteUBN(rec, n.NID, w)
		rec = util.WriteUBN(rec, n.Data, w)
		rec = util.WriteUBN(rec, n.Sub, w)
		rec = util.WriteUB4(rec, uint32(n.Parent))
		if b.wide {
			rec = util.WriteUB4(rec, 0)
		}
		nbt = append(nbt, rec)
		nbtKeys = append(nbtKeys, n.NID)
	}

	var bbtRoot, nbtRoot uint64
	img, bbtRoot = b.writeTree(img, common.PAGE_TYPE_BBT, bbtKeys, bbt)
	img, nbtRoot = b.writeTree(img, common.PAGE_TYPE_NBT, nbtKeys, nbt)

	b.writeHeader(img, bbtRoot, nbtRoot)
	return img
}

func (b *Builder) writeHeader(img []byte, bbtRoot, nbtRoot uint64) {
	copy(img[0:], common.HEADER_MAGIC)
	copy(img[8:], common.HEADER_MAGIC_CLIENT)
	w := b.width()
	if b.wide {
		util.PutUB2(img, common.HEADER_VERSION_OFFSET, common.VERSION_UNICODE_MIN)
		util.PutUBN(img, common.HEADER_UNICODE_NBT_ROOT_OFFSET-w, nbtRoot, w)
		util.PutUBN(img, common.HEADER_UNICODE_NBT_ROOT_OFFSET, nbtRoot, w)
		util.PutUBN(img, common.HEADER_UNICODE_BBT_ROOT_OFFSET-w, bbtRoot, w)
		util.PutUBN(img, common.HEADER_UNICODE_BBT_ROOT_OFFSET, bbtRoot, w)
		img[common.HEADER_UNICODE_CRYPT_OFFSET] = b.crypt
		return
	}
	util.PutUB2(img, common.HEADER_VERSION_OFFSET, common.VERSION_ANSI_MIN)
	util.PutUBN(img, common.HEADER_ANSI_NBT_ROOT_OFFSET-w, nbtRoot, w)
	util.PutUBN(img, common.HEADER_ANSI_NBT_ROOT_OFFSET, nbtRoot, w)
	util.PutUBN(img, common.HEADER_ANSI_BBT_ROOT_OFFSET-w, bbtRoot, w)
	util.PutUBN(img, common.HEADER_ANSI_BBT_ROOT_OFFSET, bbtRoot, w)
	img[common.HEADER_ANSI_CRYPT_OFFSET] = b.crypt
}

func (b *Builder) pageLayout() (meta, typeOffset int) {
	if b.wide {
		return common.PAGE_UNICODE_META_OFFSET, common.PAGE_UNICODE_TYPE_OFFSET
	}
	return common.PAGE_ANSI_META_OFFSET, common.PAGE_ANSI_TYPE_OFFSET
}

// writeTree appends the leaves, then each intermediate level, and returns
// the offset of the root page. Pages are 512-byte aligned; the page offset
// doubles as the page's block id.
func (b *Builder) writeTree(img []byte, pageType byte, keys []uint64, records [][]byte) ([]byte, uint64) {
	w := b.width()
	meta, _ := b.pageLayout()

	entrySize := 2*w + 4
	if pageType == common.PAGE_TYPE_NBT {
		entrySize = 3*w + 4
	}
	if b.wide {
		entrySize += 4
	}

	level := 0
	for {
		capacity := meta / entrySize
		if b.leafCapacity > 0 && b.leafCapacity < capacity {
			capacity = b.leafCapacity
		}
		if capacity < 2 {
			capacity = 2
		}

		var nextKeys []uint64
		var nextRecords [][]byte
		for start := 0; start < len(records) || start == 0; start += capacity {
			end := start + capacity
			if end > len(records) {
				end = len(records)
			}
			for len(img)%common.BTREE_PAGE_SIZE != 0 {
				img = append(img, 0)
			}
			offset := uint64(len(img))
			img = append(img, b.page(pageType, level, entrySize, meta/entrySize, records[start:end])...)

			var key uint64
			if start < len(keys) {
				key = keys[start]
			}
			var rec []byte
			rec = util.WriteUBN(rec, key, w)
			rec = util.WriteUBN(rec, offset, w)
			rec = util.WriteUBN(rec, offset, w)
			nextKeys = append(nextKeys, key)
			nextRecords = append(nextRecords, rec)
			if end >= len(records) {
				break
			}
		}
		if len(nextRecords) == 1 {
			_, root := util.ReadUBN(nextRecords[0], 2*w, w)
			return img, root
		}
		keys, records = nextKeys, nextRecords
		entrySize = 3 * w
		level++
	}
}

func (b *Builder) page(pageType byte, level, entrySize, maxCount int, records [][]byte) []byte {
	p := make([]byte, common.BTREE_PAGE_SIZE)
	cursor := 0
	for _, rec := range records {
		copy(p[cursor:], rec)
		cursor += entrySize
	}
	meta, typeOffset := b.pageLayout()
	p[meta] = byte(len(records))
	p[meta+1] = byte(maxCount)
	p[meta+2] = byte(entrySize)
	p[meta+3] = byte(level)
	p[typeOffset] = pageType
	p[typeOffset+1] = pageType
	return p
}

// AddPropertyNode stores a property context as the data block of nid.
func (b *Builder) AddPropertyNode(nid, parent uint64, entries ...PCEntry) uint64 {
	data := b.AddBlock(BuildPC(entries...))
	b.AddNode(nid, data, 0, parent)
	return data
}

// AddTableNode stores a table context as the data block of nid. A row
// matrix kept in a subnode gets its own blocks and SLBLOCK.
func (b *Builder) AddTableNode(nid, parent uint64, tc *TableContext) {
	heap, rowBlocks := tc.Build()
	var sub uint64
	if tc.RowsNID != 0 {
		var ids []uint64
		for _, rb := range rowBlocks {
			ids = append(ids, b.AddBlock(rb))
		}
		var data uint64
		switch len(ids) {
		case 0:
			data = b.AddBlock(nil)
		case 1:
			data = ids[0]
		default:
			data = b.AddXBlock(ids...)
		}
		sub = b.AddSubnodes(Subnode{NID: uint64(tc.RowsNID), Data: data})
	}
	b.AddNode(nid, b.AddBlock(heap), sub, parent)
}
