package index

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/store/blocks"
	"github.com/zhukovaskychina/xpst/pst/store/pages"
)

// btree walks one of the two on-disk page trees. It never mutates and may be
// shared between readers.
type btree struct {
	file     *blocks.BlockFile
	wide     bool
	root     uint64
	pageType byte
	keyMask  uint64
}

func newBTree(file *blocks.BlockFile, root uint64, pageType byte, keyMask uint64) *btree {
	return &btree{
		file:     file,
		wide:     file.Header().Wide,
		root:     root,
		pageType: pageType,
		keyMask:  keyMask,
	}
}

func (t *btree) readPage(offset uint64) (*pages.BTreePage, error) {
	raw, err := t.file.ReadAt(offset, common.BTREE_PAGE_SIZE)
	if err != nil {
		return nil, err
	}
	page, err := pages.ParsePage(raw, t.wide, t.pageType)
	if err != nil {
		return nil, errors.WithMessagef(err, "page at 0x%X", offset)
	}
	return page, nil
}

// find descends from the root to the leaf that may hold key and returns the
// matching raw record.
func (t *btree) find(key uint64) ([]byte, error) {
	key &^= t.keyMask
	offset := t.root
	for depth := 0; depth < common.MAX_BTREE_DEPTH; depth++ {
		page, err := t.readPage(offset)
		if err != nil {
			return nil, err
		}
		if page.IsLeaf() {
			i, ok := page.SearchExact(key, t.keyMask)
			if !ok {
				return nil, errors.Wrapf(common.ErrNotFound, "key 0x%X", key)
			}
			return page.Record(i), nil
		}
		i := page.SearchChild(key)
		if i < 0 {
			return nil, errors.Wrapf(common.ErrNotFound, "key 0x%X below page minimum", key)
		}
		_, offset = page.Child(i)
	}
	return nil, errors.Wrapf(common.ErrBadFormatMarker, "btree deeper than %d levels", common.MAX_BTREE_DEPTH)
}

// walkLeaves visits every leaf record in key order.
func (t *btree) walkLeaves(fn func(rec []byte) error) error {
	visited := make(map[uint64]struct{})
	return t.walk(t.root, 0, visited, fn)
}

func (t *btree) walk(offset uint64, depth int, visited map[uint64]struct{}, fn func(rec []byte) error) error {
	if depth >= common.MAX_BTREE_DEPTH {
		return errors.Wrapf(common.ErrBadFormatMarker, "btree deeper than %d levels", common.MAX_BTREE_DEPTH)
	}
	if _, ok := visited[offset]; ok {
		return errors.Wrapf(common.ErrBadFormatMarker, "btree page 0x%X referenced twice", offset)
	}
	visited[offset] = struct{}{}

	page, err := t.readPage(offset)
	if err != nil {
		return err
	}
	for i := 0; i < page.Count; i++ {
		if page.IsLeaf() {
			if err := fn(page.Record(i)); err != nil {
				return err
			}
			continue
		}
		_, child := page.Child(i)
		if err := t.walk(child, depth+1, visited, fn); err != nil {
			return err
		}
	}
	return nil
}
