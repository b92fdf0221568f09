// Package table decodes heap-on-node structures: the heap itself, the
// b-tree on heap, and the two table kinds built on them.
package table

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/node"
	"github.com/zhukovaskychina/xpst/util"
)

// HeapOnNode addresses the allocations of a node by heap id. The first
// block starts with the HN header:
//
//	ibHnpm(2) bSig(1) bClientSig(1) hidUserRoot(4) rgbFillLevel(4)
//
// Later blocks start with just ibHnpm. ibHnpm points at the page map:
// cAlloc(2) cFree(2) rgibAlloc[cAlloc+1].
type HeapOnNode struct {
	blocks    [][]byte
	ClientSig byte
	UserRoot  uint32
}

func NewHeapOnNode(stream *node.NodeInputStream) (*HeapOnNode, error) {
	blocks := stream.Blocks()
	if len(blocks) == 0 || len(blocks[0]) < common.HN_HEADER_SIZE {
		return nil, errors.Wrapf(common.ErrTruncatedData, "heap-on-node: %d bytes", stream.Len())
	}
	first := blocks[0]
	if first[2] != common.HN_SIGNATURE {
		return nil, errors.Wrapf(common.ErrBadFormatMarker, "heap-on-node signature 0x%02X", first[2])
	}
	h := &HeapOnNode{
		blocks:    blocks,
		ClientSig: first[3],
	}
	_, h.UserRoot = util.ReadUB4(first, 4)
	return h, nil
}

// Get returns the allocation hid points to. The slice aliases the heap.
func (h *HeapOnNode) Get(hid uint32) ([]byte, error) {
	if hid&common.NID_TYPE_MASK != common.NID_TYPE_HID {
		return nil, errors.Wrapf(common.ErrBadFormatMarker, "0x%X is not a heap id", hid)
	}
	blockIndex := int(hid >> 16)
	allocIndex := int(hid>>5) & 0x7FF
	if allocIndex == 0 {
		return nil, errors.Wrapf(common.ErrBadFormatMarker, "heap id 0x%X has index 0", hid)
	}
	if blockIndex >= len(h.blocks) {
		return nil, errors.Wrapf(common.ErrTruncatedData, "heap id 0x%X: block %d of %d", hid, blockIndex, len(h.blocks))
	}
	block := h.blocks[blockIndex]
	if len(block) < 2 {
		return nil, errors.Wrapf(common.ErrTruncatedData, "heap block %d: %d bytes", blockIndex, len(block))
	}
	_, pageMap := util.ReadUB2(block, 0)
	cursor := int(pageMap)
	if !util.HasBytes(block, cursor, 4) {
		return nil, errors.Wrapf(common.ErrTruncatedData, "heap block %d: page map at %d", blockIndex, pageMap)
	}
	cursor, count := util.ReadUB2(block, cursor)
	cursor += 2 // cFree
	if allocIndex > int(count) {
		return nil, errors.Wrapf(common.ErrTruncatedData, "heap id 0x%X: block %d has %d allocations", hid, blockIndex, count)
	}
	if !util.HasBytes(block, cursor, (int(count)+1)*2) {
		return nil, errors.Wrapf(common.ErrTruncatedData, "heap block %d: page map of %d entries", blockIndex, count)
	}
	_, start := util.ReadUB2(block, cursor+(allocIndex-1)*2)
	_, end := util.ReadUB2(block, cursor+allocIndex*2)
	if start > end || int(end) > len(block) {
		return nil, errors.Wrapf(common.ErrTruncatedData, "heap id 0x%X spans %d..%d", hid, start, end)
	}
	return block[start:end], nil
}

// GetCopy is Get detached from the heap buffers.
func (h *HeapOnNode) GetCopy(hid uint32) ([]byte, error) {
	b, err := h.Get(hid)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, b...), nil
}
