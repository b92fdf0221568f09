package pstfake

import (
	"sort"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/util"
)

// Heap is a single-block heap-on-node.
type Heap struct {
	ClientSig byte
	Root      uint32
	allocs    [][]byte
}

func NewHeap(clientSig byte) *Heap {
	return &Heap{ClientSig: clientSig}
}

// Alloc appends an allocation and returns its heap id.
func (h *Heap) Alloc(data []byte) uint32 {
	h.allocs = append(h.allocs, append([]byte{}, data...))
	return uint32(len(h.allocs)) << 5
}

// Bytes renders the header, the allocations and the trailing page map.
func (h *Heap) Bytes() []byte {
	raw := make([]byte, common.HN_HEADER_SIZE)
	raw[2] = common.HN_SIGNATURE
	raw[3] = h.ClientSig
	util.PutUB4(raw, 4, h.Root)

	starts := make([]uint16, 0, len(h.allocs)+1)
	for _, a := range h.allocs {
		starts = append(starts, uint16(len(raw)))
		raw = append(raw, a...)
	}
	starts = append(starts, uint16(len(raw)))
	if len(raw)%2 == 1 {
		raw = append(raw, 0)
	}
	util.PutUB2(raw, 0, uint16(len(raw)))
	raw = util.WriteUB2(raw, uint16(len(h.allocs)))
	raw = util.WriteUB2(raw, 0)
	for _, s := range starts {
		raw = util.WriteUB2(raw, s)
	}
	return raw
}

// PCEntry is one property context record. Data, when set, is stored on the
// heap; otherwise Value is written to the slot as is, which covers inline
// values and subnode references.
type PCEntry struct {
	Tag   uint16
	Type  uint16
	Value uint32
	Data  []byte
}

// BuildPC renders a property context with a flat BTH.
func BuildPC(entries ...PCEntry) []byte {
	return BuildPCIndexed(0, entries...)
}

// BuildPCIndexed splits the records into leaves of fanout records under one
// index level. A fanout of 0 keeps a single leaf.
func BuildPCIndexed(fanout int, entries ...PCEntry) []byte {
	h := NewHeap(common.HN_CLIENT_PC)
	sorted := append([]PCEntry{}, entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tag < sorted[j].Tag })

	var records [][]byte
	for _, e := range sorted {
		slot := e.Value
		if e.Data != nil {
			slot = h.Alloc(e.Data)
		}
		var rec []byte
		rec = util.WriteUB2(rec, e.Tag)
		rec = util.WriteUB2(rec, e.Type)
		rec = util.WriteUB4(rec, slot)
		records = append(records, rec)
	}

	levels := byte(0)
	var root uint32
	switch {
	case len(records) == 0:
	case fanout <= 0 || fanout >= len(records):
		root = h.Alloc(concat(records))
	default:
		var index []byte
		for start := 0; start < len(records); start += fanout {
			end := start + fanout
			if end > len(records) {
				end = len(records)
			}
			leaf := h.Alloc(concat(records[start:end]))
			index = append(index, records[start][0:2]...)
			index = util.WriteUB4(index, leaf)
		}
		root = h.Alloc(index)
		levels = 1
	}
	h.Root = h.Alloc([]byte{common.HN_CLIENT_BTH, 2, 6, levels, byte(root), byte(root >> 8), byte(root >> 16), byte(root >> 24)})
	return h.Bytes()
}

func concat(parts [][]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// TCColumn declares a table column. Layout is computed by the builder.
type TCColumn struct {
	Tag  uint16
	Type uint16
}

// TCCell is one present cell. Fixed types use Value; variable types use
// Data (heap) or NID (subnode).
type TCCell struct {
	Value uint64
	Data  []byte
	NID   uint32
}

// TableContext describes a table. Rows map tags to cells; a missing tag
// leaves the column's existence bit unset. With RowsNID set the row matrix
// is returned separately for storage in that subnode, RowsPerBlock rows per
// block.
type TableContext struct {
	Columns      []TCColumn
	Rows         []map[uint16]TCCell
	RowsNID      uint32
	RowsPerBlock int
}

type tcLayout struct {
	col    TCColumn
	offset int
	size   int
	bit    int
}

func cellSize(t uint16) int {
	switch n := common.FixedSize(t); n {
	case 1, 2, 4, 8:
		return n
	}
	return 4
}

// Build returns the heap bytes and, when the row matrix lives in a subnode,
// its blocks.
func (tc *TableContext) Build() ([]byte, [][]byte) {
	h := NewHeap(common.HN_CLIENT_TC)

	// 8 and 4 byte cells first, then 2, then 1, then the existence bitmap
	layout := make([]tcLayout, len(tc.Columns))
	offset := 0
	var ends [3]int
	for gi, sizes := range [][]int{{8, 4}, {2}, {1}} {
		for _, want := range sizes {
			for i, c := range tc.Columns {
				if cellSize(c.Type) != want {
					continue
				}
				layout[i] = tcLayout{col: c, offset: offset, size: want, bit: i}
				offset += want
			}
		}
		ends[gi] = offset
	}
	cebSize := (len(tc.Columns) + 7) / 8
	rowSize := offset + cebSize

	var rows [][]byte
	for _, cells := range tc.Rows {
		row := make([]byte, rowSize)
		for _, l := range layout {
			cell, ok := cells[l.col.Tag]
			if !ok {
				continue
			}
			row[offset+l.bit/8] |= 0x80 >> (l.bit % 8)
			value := cell.Value
			switch {
			case cell.Data != nil:
				value = uint64(h.Alloc(cell.Data))
			case cell.NID != 0:
				value = uint64(cell.NID)
			}
			switch l.size {
			case 1:
				row[l.offset] = byte(value)
			case 2:
				util.PutUB2(row, l.offset, uint16(value))
			case 4:
				util.PutUB4(row, l.offset, uint32(value))
			case 8:
				util.PutUB8(row, l.offset, value)
			}
		}
		rows = append(rows, row)
	}

	var hnidRows uint32
	var rowBlocks [][]byte
	switch {
	case tc.RowsNID != 0:
		hnidRows = tc.RowsNID
		per := tc.RowsPerBlock
		if per <= 0 {
			per = len(rows)
		}
		for start := 0; start < len(rows); start += per {
			end := start + per
			if end > len(rows) {
				end = len(rows)
			}
			rowBlocks = append(rowBlocks, concat(rows[start:end]))
		}
	case len(rows) > 0:
		hnidRows = h.Alloc(concat(rows))
	}

	info := []byte{common.HN_CLIENT_TC, byte(len(tc.Columns))}
	info = util.WriteUB2(info, uint16(ends[0]))
	info = util.WriteUB2(info, uint16(ends[1]))
	info = util.WriteUB2(info, uint16(ends[2]))
	info = util.WriteUB2(info, uint16(rowSize))
	info = util.WriteUB4(info, 0)
	info = util.WriteUB4(info, hnidRows)
	info = util.WriteUB4(info, 0)
	for _, l := range layout {
		info = util.WriteUB4(info, uint32(l.col.Tag)<<16|uint32(l.col.Type))
		info = util.WriteUB2(info, uint16(l.offset))
		info = append(info, byte(l.size), byte(l.bit))
	}
	h.Root = h.Alloc(info)
	return h.Bytes(), rowBlocks
}
