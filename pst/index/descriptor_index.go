package index

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/logger"
	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/store/blocks"
	"github.com/zhukovaskychina/xpst/util"
)

// ChildMap groups descriptor entries by parent id.
type ChildMap map[uint64][]DescriptorEntry

// childMapCache memoizes full scans per file fingerprint so that several
// stores opened on the same file share one scan.
var childMapCache = struct {
	sync.Mutex
	maps map[uint64]ChildMap
}{maps: make(map[uint64]ChildMap)}

// DescriptorIndex is the node b-tree: descriptor id -> data block, local
// descriptor tree and parent.
type DescriptorIndex struct {
	tree        *btree
	fingerprint uint64

	childOnce sync.Once
	children  ChildMap
	childErr  error
}

func NewDescriptorIndex(file *blocks.BlockFile) *DescriptorIndex {
	root := file.Header().NodeBTreeRoot.Offset
	return &DescriptorIndex{
		tree:        newBTree(file, root, common.PAGE_TYPE_NBT, 0),
		fingerprint: file.Fingerprint(),
	}
}

// Lookup fails with ErrNotFound when id is absent.
func (di *DescriptorIndex) Lookup(id uint64) (DescriptorEntry, error) {
	rec, err := di.tree.find(id)
	if err != nil {
		return DescriptorEntry{}, errors.WithMessagef(err, "descriptor index lookup 0x%X", id)
	}
	return decodeDescriptorEntry(rec, di.tree.wide)
}

// Walk visits every descriptor in id order.
func (di *DescriptorIndex) Walk(fn func(DescriptorEntry) error) error {
	return di.tree.walkLeaves(func(rec []byte) error {
		entry, err := decodeDescriptorEntry(rec, di.tree.wide)
		if err != nil {
			return err
		}
		return fn(entry)
	})
}

// BuildChildMap scans every leaf once. The result is shared and must be
// treated as read-only.
func (di *DescriptorIndex) BuildChildMap() (ChildMap, error) {
	di.childOnce.Do(func() {
		childMapCache.Lock()
		cached, ok := childMapCache.maps[di.fingerprint]
		childMapCache.Unlock()
		if ok {
			di.children = cached
			return
		}

		children := make(ChildMap)
		total := 0
		err := di.Walk(func(e DescriptorEntry) error {
			children[e.ParentDescriptorID] = append(children[e.ParentDescriptorID], e)
			total++
			return nil
		})
		if err != nil {
			di.childErr = errors.WithMessage(err, "build descriptor child map")
			return
		}
		logger.Debugf("descriptor child map built: %d descriptors, %d parents", total, len(children))

		childMapCache.Lock()
		childMapCache.maps[di.fingerprint] = children
		childMapCache.Unlock()
		di.children = children
	})
	return di.children, di.childErr
}

// Children returns the descriptors whose parent is parentID, in id order. A
// parent never seen in the index yields an empty list.
func (di *DescriptorIndex) Children(parentID uint64) ([]DescriptorEntry, error) {
	children, err := di.BuildChildMap()
	if err != nil {
		return nil, err
	}
	list := children[parentID]
	out := make([]DescriptorEntry, 0, len(list))
	for _, e := range list {
		// 根文件夹的父节点是它自己
		if e.DescriptorID == parentID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ForgetChildMaps drops the process wide scan cache.
func ForgetChildMaps() {
	childMapCache.Lock()
	childMapCache.maps = make(map[uint64]ChildMap)
	childMapCache.Unlock()
}

// 窄格式: nid 4, data 4, sub 4, parent 4; 宽格式: nid 8, data 8, sub 8, parent 4, padding 4
func decodeDescriptorEntry(rec []byte, wide bool) (DescriptorEntry, error) {
	width := 4
	if wide {
		width = 8
	}
	if !util.HasBytes(rec, 0, 3*width+4) {
		return DescriptorEntry{}, errors.Wrapf(common.ErrTruncatedData, "descriptor entry of %d bytes", len(rec))
	}
	var e DescriptorEntry
	cursor, nid := util.ReadUBN(rec, 0, width)
	cursor, e.DataNodeID = util.ReadUBN(rec, cursor, width)
	cursor, e.LocalDescriptorTreeNodeID = util.ReadUBN(rec, cursor, width)
	_, parent := util.ReadUB4(rec, cursor)
	e.DescriptorID = nid & 0xFFFFFFFF
	e.ParentDescriptorID = uint64(parent)
	return e, nil
}
