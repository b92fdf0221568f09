package table

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/node"
	"github.com/zhukovaskychina/xpst/pst/props"
	"github.com/zhukovaskychina/xpst/util"
)

// ColumnDescriptor is a TCOLDESC: tag(4) ibData(2) cbData(1) iBit(1). The
// 32-bit tag holds the type in its low half.
type ColumnDescriptor struct {
	PropertyTag uint16
	ValueType   uint16
	DataOffset  uint16
	DataSize    uint8
	BitIndex    uint8
}

// ColumnValue is one present cell of a single-column scan.
type ColumnValue struct {
	Row  int
	Item props.PropertyItem
}

// Table7C is a parsed table context. Rows are fixed-stride records in the
// row matrix; each row carries a cell existence bitmap at cebOffset.
type Table7C struct {
	Columns []ColumnDescriptor

	rowSize   int
	cebOffset int
	rowBlocks [][]byte
	rowStarts []int
	rowCount  int
	heap      *HeapOnNode
}

// Parse7C decodes a table context. locals and opener are needed only when
// the row matrix lives in a subnode. A filter tag keeps a single column.
//
// TCINFO: bType(1) cCols(1) rgib[4](8) hidRowIndex(4) hnidRows(4)
// hidIndex(4) rgTCOLDESC[cCols]
func Parse7C(stream *node.NodeInputStream, locals node.LocalDescriptorMap, opener props.LocalOpener, filter ...uint16) (*Table7C, error) {
	heap, err := NewHeapOnNode(stream)
	if err != nil {
		return nil, err
	}
	if heap.ClientSig != common.HN_CLIENT_TC {
		return nil, errors.Wrapf(common.ErrBadTableType, "client signature 0x%02X, want 0x%02X",
			heap.ClientSig, common.HN_CLIENT_TC)
	}
	info, err := heap.Get(heap.UserRoot)
	if err != nil {
		return nil, errors.WithMessage(err, "tcinfo")
	}
	if len(info) < common.TCINFO_HEADER_SIZE {
		return nil, errors.Wrapf(common.ErrTruncatedData, "tcinfo: %d bytes", len(info))
	}
	if info[0] != common.HN_CLIENT_TC {
		return nil, errors.Wrapf(common.ErrBadFormatMarker, "tcinfo type 0x%02X", info[0])
	}
	colCount := int(info[1])
	cursor := 2
	var rgib [4]uint16
	for i := range rgib {
		cursor, rgib[i] = util.ReadUB2(info, cursor)
	}
	cursor += 4 // hidRowIndex
	cursor, rowsRef := util.ReadUB4(info, cursor)
	cursor += 4 // hidIndex

	if !util.HasBytes(info, cursor, colCount*common.TCOLDESC_SIZE) {
		return nil, errors.Wrapf(common.ErrTruncatedData, "tcinfo lists %d columns in %d bytes", colCount, len(info))
	}

	t := &Table7C{
		rowSize:   int(rgib[3]),
		cebOffset: int(rgib[2]),
		heap:      heap,
	}
	if t.cebOffset+(colCount+7)/8 > t.rowSize {
		return nil, errors.Wrapf(common.ErrBadFormatMarker, "row size %d cannot hold bitmap at %d", t.rowSize, t.cebOffset)
	}
	for i := 0; i < colCount; i++ {
		var col ColumnDescriptor
		var tag uint32
		cursor, tag = util.ReadUB4(info, cursor)
		cursor, col.DataOffset = util.ReadUB2(info, cursor)
		cursor, col.DataSize = util.ReadByte(info, cursor)
		cursor, col.BitIndex = util.ReadByte(info, cursor)
		col.ValueType = uint16(tag)
		col.PropertyTag = uint16(tag >> 16)
		if err := t.checkColumn(col, colCount); err != nil {
			return nil, err
		}
		if len(filter) > 0 && col.PropertyTag != filter[0] {
			continue
		}
		t.Columns = append(t.Columns, col)
	}

	if err := t.loadRows(rowsRef, locals, opener); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table7C) checkColumn(col ColumnDescriptor, colCount int) error {
	if int(col.BitIndex) >= colCount {
		return errors.Wrapf(common.ErrBadFormatMarker, "column 0x%04X bit %d of %d columns",
			col.PropertyTag, col.BitIndex, colCount)
	}
	if int(col.DataOffset)+int(col.DataSize) > t.rowSize {
		return errors.Wrapf(common.ErrBadFormatMarker, "column 0x%04X at %d+%d beyond row size %d",
			col.PropertyTag, col.DataOffset, col.DataSize, t.rowSize)
	}
	switch {
	case common.IsInlineType(col.ValueType):
		if col.DataSize != 1 && col.DataSize != 2 && col.DataSize != 4 {
			return errors.Wrapf(common.ErrBadFormatMarker, "column 0x%04X inline size %d", col.PropertyTag, col.DataSize)
		}
	case col.DataSize != 4 && col.DataSize != 8:
		return errors.Wrapf(common.ErrBadFormatMarker, "column 0x%04X size %d", col.PropertyTag, col.DataSize)
	}
	return nil
}

// loadRows locates the row matrix: a heap allocation, or a subnode whose
// blocks each hold a whole number of rows.
func (t *Table7C) loadRows(rowsRef uint32, locals node.LocalDescriptorMap, opener props.LocalOpener) error {
	switch {
	case rowsRef == 0:
		return nil
	case props.IsHID(rowsRef):
		data, err := t.heap.GetCopy(rowsRef)
		if err != nil {
			return errors.WithMessage(err, "row matrix")
		}
		t.rowBlocks = [][]byte{data}
	default:
		item, ok := locals.Lookup(uint64(rowsRef))
		if !ok || opener == nil {
			return errors.Wrapf(common.ErrMissingDescriptor, "row matrix in local descriptor 0x%X", rowsRef)
		}
		stream, err := opener.OpenLocal(item)
		if err != nil {
			return errors.WithMessage(err, "row matrix")
		}
		t.rowBlocks = stream.Blocks()
	}
	if t.rowSize == 0 {
		return errors.Wrap(common.ErrBadFormatMarker, "row matrix present with row size 0")
	}
	t.rowStarts = make([]int, len(t.rowBlocks))
	for i, b := range t.rowBlocks {
		t.rowStarts[i] = t.rowCount
		t.rowCount += len(b) / t.rowSize
	}
	return nil
}

func (t *Table7C) RowCount() uint32 {
	return uint32(t.rowCount)
}

func (t *Table7C) row(i int) []byte {
	bi := sort.Search(len(t.rowStarts), func(k int) bool { return t.rowStarts[k] > i }) - 1
	for bi < len(t.rowBlocks)-1 && i-t.rowStarts[bi] >= len(t.rowBlocks[bi])/t.rowSize {
		bi++
	}
	start := (i - t.rowStarts[bi]) * t.rowSize
	return t.rowBlocks[bi][start : start+t.rowSize]
}

func (t *Table7C) checkRange(start, count int) (int, error) {
	if start < 0 || start > t.rowCount {
		return 0, errors.Errorf("row %d out of range, table has %d rows", start, t.rowCount)
	}
	if count < 0 || start+count > t.rowCount {
		count = t.rowCount - start
	}
	return count, nil
}

// GetRows materializes count rows from start. Columns whose existence bit
// is unset are absent from the row map.
func (t *Table7C) GetRows(start, count int) ([]props.PropertyMap, error) {
	count, err := t.checkRange(start, count)
	if err != nil {
		return nil, err
	}
	out := make([]props.PropertyMap, 0, count)
	for i := start; i < start+count; i++ {
		row := t.row(i)
		m := make(props.PropertyMap, len(t.Columns))
		for _, col := range t.Columns {
			if !t.present(row, col) {
				continue
			}
			item, err := t.cell(row, col)
			if err != nil {
				return nil, errors.WithMessagef(err, "row %d", i)
			}
			m[col.PropertyTag] = item
		}
		out = append(out, m)
	}
	return out, nil
}

// GetRow is GetRows for a single row.
func (t *Table7C) GetRow(i int) (props.PropertyMap, error) {
	if i < 0 || i >= t.rowCount {
		return nil, errors.Errorf("row %d out of range, table has %d rows", i, t.rowCount)
	}
	rows, err := t.GetRows(i, 1)
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// GetColumnValues scans one column without building a map per row.
func (t *Table7C) GetColumnValues(tag uint16, start, count int) ([]ColumnValue, error) {
	count, err := t.checkRange(start, count)
	if err != nil {
		return nil, err
	}
	var col *ColumnDescriptor
	for i := range t.Columns {
		if t.Columns[i].PropertyTag == tag {
			col = &t.Columns[i]
			break
		}
	}
	if col == nil {
		return nil, nil
	}
	out := make([]ColumnValue, 0, count)
	for i := start; i < start+count; i++ {
		row := t.row(i)
		if !t.present(row, *col) {
			continue
		}
		item, err := t.cell(row, *col)
		if err != nil {
			return nil, errors.WithMessagef(err, "row %d", i)
		}
		out = append(out, ColumnValue{Row: i, Item: item})
	}
	return out, nil
}

// 存在位图按 MSB 优先
func (t *Table7C) present(row []byte, col ColumnDescriptor) bool {
	b := row[t.cebOffset+int(col.BitIndex)/8]
	return b&(0x80>>(col.BitIndex%8)) != 0
}

// Fixed values up to eight bytes sit in the row; anything else is an HNID.
func (t *Table7C) cell(row []byte, col ColumnDescriptor) (props.PropertyItem, error) {
	raw := row[col.DataOffset : int(col.DataOffset)+int(col.DataSize)]
	if common.IsInlineType(col.ValueType) {
		_, v := util.ReadUBSized(raw, 0, int(col.DataSize))
		return props.PropertyItem{Tag: col.PropertyTag, Type: col.ValueType, Value: props.Inline(uint32(v))}, nil
	}
	if col.DataSize == 8 {
		return props.PropertyItem{
			Tag:   col.PropertyTag,
			Type:  col.ValueType,
			Value: props.LocalHeap(append([]byte{}, raw...)),
		}, nil
	}
	_, slot := util.ReadUB4(raw, 0)
	return props.NewPropertyItem(col.PropertyTag, col.ValueType, slot, t.heap.GetCopy)
}
