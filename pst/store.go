// Package pst opens a PST file and exposes its objects. The Store owns the
// file and both indices; property maps, tables and local descriptor maps are
// values handed to the caller and never point back into the Store.
package pst

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/logger"
	"github.com/zhukovaskychina/xpst/pst/index"
	"github.com/zhukovaskychina/xpst/pst/lzfu"
	"github.com/zhukovaskychina/xpst/pst/node"
	"github.com/zhukovaskychina/xpst/pst/props"
	"github.com/zhukovaskychina/xpst/pst/store/blocks"
	"github.com/zhukovaskychina/xpst/pst/table"
)

type Options struct {
	UseMmap         bool
	CacheSize       int
	CacheCodec      string
	DefaultCodepage int
}

// Store is a read-only PST file. Lookups may be shared between goroutines;
// node streams and Objects may not.
type Store struct {
	file        *blocks.BlockFile
	offsets     *index.OffsetIndex
	descriptors *index.DescriptorIndex
	nodes       *node.Reader
	opts        Options
}

// Open reads the header of path and prepares both indices.
func Open(path string, opts Options) (*Store, error) {
	file, err := blocks.OpenBlockFile(path, opts.blockOptions())
	if err != nil {
		return nil, err
	}
	return newStore(file, opts), nil
}

// OpenBytes serves the store from an in-memory image.
func OpenBytes(buff []byte, opts Options) (*Store, error) {
	file, err := blocks.NewBlockFileFromBytes(buff, opts.blockOptions())
	if err != nil {
		return nil, err
	}
	return newStore(file, opts), nil
}

func (o Options) blockOptions() blocks.Options {
	return blocks.Options{UseMmap: o.UseMmap, CacheSize: o.CacheSize, CacheCodec: o.CacheCodec}
}

func newStore(file *blocks.BlockFile, opts Options) *Store {
	offsets := index.NewOffsetIndex(file)
	s := &Store{
		file:        file,
		offsets:     offsets,
		descriptors: index.NewDescriptorIndex(file),
		nodes:       node.NewReader(file, offsets),
		opts:        opts,
	}
	h := file.Header()
	logger.Infof("pst store %s: wide=%v crypt=%d size=%d", file.GetFilePath(), h.Wide, h.CryptMethod, file.Size())
	return s
}

func (s *Store) Close() error {
	return s.file.Close()
}

func (s *Store) Header() blocks.Header {
	return s.file.Header()
}

func (s *Store) FilePath() string {
	return s.file.GetFilePath()
}

// ResolveDescriptor fails with ErrNotFound for unknown ids.
func (s *Store) ResolveDescriptor(id uint64) (index.DescriptorEntry, error) {
	return s.descriptors.Lookup(id)
}

func (s *Store) LookupOffset(id uint64) (index.OffsetIndexEntry, error) {
	return s.offsets.Lookup(id)
}

// OpenNodeStream reads the block chain rooted at entry.
func (s *Store) OpenNodeStream(entry index.OffsetIndexEntry) (*node.NodeInputStream, error) {
	return s.nodes.Open(entry)
}

// OpenNodeStreamCipher is OpenNodeStream with decryption chosen by the
// caller.
func (s *Store) OpenNodeStreamCipher(entry index.OffsetIndexEntry, decrypt bool) (*node.NodeInputStream, error) {
	return s.nodes.OpenWithCipher(entry, decrypt)
}

// OpenDescriptorStream opens the data node of a descriptor.
func (s *Store) OpenDescriptorStream(d index.DescriptorEntry) (*node.NodeInputStream, error) {
	stream, err := s.nodes.OpenBlockID(d.DataNodeID)
	if err != nil {
		return nil, errors.WithMessagef(err, "descriptor 0x%X", d.DescriptorID)
	}
	return stream, nil
}

func (s *Store) OpenLocalStream(item node.LocalDescriptorItem) (*node.NodeInputStream, error) {
	return s.nodes.OpenLocal(item)
}

// LocalDescriptors walks the local descriptor tree of d.
func (s *Store) LocalDescriptors(d index.DescriptorEntry) (node.LocalDescriptorMap, error) {
	return s.nodes.LocalDescriptors(d.LocalDescriptorTreeNodeID)
}

// LocalDescriptorsOf walks a nested tree, such as the one of an embedded
// message attachment.
func (s *Store) LocalDescriptorsOf(item node.LocalDescriptorItem) (node.LocalDescriptorMap, error) {
	return s.nodes.LocalDescriptors(item.SubNodeID)
}

func (s *Store) ParsePropertyTable(stream *node.NodeInputStream) (props.PropertyMap, error) {
	return table.ParseBC(stream)
}

// ParseRowTable parses a table context. locals resolves a row matrix kept in
// a subnode; filter keeps a single column.
func (s *Store) ParseRowTable(stream *node.NodeInputStream, locals node.LocalDescriptorMap, filter ...uint16) (*table.Table7C, error) {
	return table.Parse7C(stream, locals, s.nodes, filter...)
}

// PropertyResolver binds a property map to its local descriptors.
func (s *Store) PropertyResolver(pm props.PropertyMap, locals node.LocalDescriptorMap) *props.Resolver {
	r := props.NewResolver(pm, locals, s.nodes)
	r.DefaultCodepage = s.opts.DefaultCodepage
	return r
}

// GetChildDescriptors scans the descriptor index for children of parentID.
// The scan runs once per file.
func (s *Store) GetChildDescriptors(parentID uint64) ([]index.DescriptorEntry, error) {
	return s.descriptors.Children(parentID)
}

func (s *Store) DecodeCompressedRTF(b []byte) (string, error) {
	return lzfu.Decode(b)
}

// Walk visits every descriptor in id order.
func (s *Store) Walk(fn func(index.DescriptorEntry) error) error {
	return s.descriptors.Walk(fn)
}

// CountBlocks scans the offset index.
func (s *Store) CountBlocks() (external, internal int, err error) {
	err = s.offsets.Walk(func(e index.OffsetIndexEntry) error {
		if e.IsInternal() {
			internal++
		} else {
			external++
		}
		return nil
	})
	return external, internal, err
}

func (s *Store) tableForDescriptor(id uint64, filter ...uint16) (*table.Table7C, error) {
	d, err := s.ResolveDescriptor(id)
	if err != nil {
		return nil, err
	}
	stream, err := s.OpenDescriptorStream(d)
	if err != nil {
		return nil, err
	}
	locals, err := s.LocalDescriptors(d)
	if err != nil {
		return nil, err
	}
	t, err := s.ParseRowTable(stream, locals, filter...)
	if err != nil {
		return nil, errors.WithMessagef(err, "table 0x%X", id)
	}
	return t, nil
}

// ensure the node reader satisfies the resolver's opener
var _ props.LocalOpener = (*node.Reader)(nil)
