package table

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/logger"
	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/node"
	"github.com/zhukovaskychina/xpst/pst/props"
	"github.com/zhukovaskychina/xpst/util"
)

const (
	pcKeySize   = 2
	pcEntrySize = 6
)

// ParseBC decodes a property context (one row). Each BTH record is
// tag(2) type(2) valueOrRef(4). Values stored on the heap are copied, the
// returned map holds no reference into the stream.
//
// A table without records is logged and returned empty: real files carry
// them.
func ParseBC(stream *node.NodeInputStream) (props.PropertyMap, error) {
	heap, err := NewHeapOnNode(stream)
	if err != nil {
		return nil, err
	}
	if heap.ClientSig != common.HN_CLIENT_PC {
		return nil, errors.Wrapf(common.ErrBadTableType, "client signature 0x%02X, want 0x%02X",
			heap.ClientSig, common.HN_CLIENT_PC)
	}
	hdr, err := heap.ReadBTHHeader(heap.UserRoot)
	if err != nil {
		return nil, err
	}
	if hdr.KeySize != pcKeySize || hdr.EntrySize != pcEntrySize {
		return nil, errors.Wrapf(common.ErrBadFormatMarker, "property context record %d+%d bytes",
			hdr.KeySize, hdr.EntrySize)
	}
	records, err := heap.BTHRecords(hdr)
	if err != nil {
		return nil, err
	}

	out := make(props.PropertyMap, len(records))
	if len(records) == 0 {
		logger.Warnf("%v: property context at heap root 0x%X has no rows", common.ErrEmptyTable, heap.UserRoot)
		return out, nil
	}
	for _, rec := range records {
		cursor, tag := util.ReadUB2(rec, 0)
		cursor, valueType := util.ReadUB2(rec, cursor)
		_, slot := util.ReadUB4(rec, cursor)
		item, err := props.NewPropertyItem(tag, valueType, slot, heap.GetCopy)
		if err != nil {
			return nil, errors.WithMessagef(err, "property 0x%04X", tag)
		}
		out[tag] = item
	}
	return out, nil
}
