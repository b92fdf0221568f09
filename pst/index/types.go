package index

import (
	"fmt"

	"github.com/zhukovaskychina/xpst/pst/common"
)

// OffsetIndexEntry locates one physical block.
type OffsetIndexEntry struct {
	ID         uint64
	FileOffset uint64
	Size       uint16
	RefCount   uint16
}

// IsInternal reports whether the block holds a list of other block ids
// rather than node data.
func (e OffsetIndexEntry) IsInternal() bool {
	return e.ID&common.BID_INTERNAL_BIT != 0
}

func (e OffsetIndexEntry) String() string {
	return fmt.Sprintf("block{id=0x%X offset=0x%X size=%d ref=%d}", e.ID, e.FileOffset, e.Size, e.RefCount)
}

// DescriptorEntry maps a logical object to its data block and optional local
// descriptor tree.
type DescriptorEntry struct {
	DescriptorID              uint64
	DataNodeID                uint64
	LocalDescriptorTreeNodeID uint64
	ParentDescriptorID        uint64
}

// NodeType is the type tag carried in the low bits of the descriptor id.
func (e DescriptorEntry) NodeType() uint8 {
	return common.NodeType(e.DescriptorID)
}

func (e DescriptorEntry) HasLocalDescriptors() bool {
	return e.LocalDescriptorTreeNodeID != 0
}

func (e DescriptorEntry) String() string {
	return fmt.Sprintf("node{id=0x%X data=0x%X sub=0x%X parent=0x%X}",
		e.DescriptorID, e.DataNodeID, e.LocalDescriptorTreeNodeID, e.ParentDescriptorID)
}
