package blocks

import (
	"bytes"
	"io"
	"strings"

	"github.com/golang/snappy"
	arc "github.com/hashicorp/golang-lru/arc/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// 缓存条目的压缩方式
const (
	CodecNone   = "none"
	CodecSnappy = "snappy"
	CodecLZ4    = "lz4"
)

// BlockCache keeps recently read raw blocks keyed by file offset. Entries are
// optionally compressed to bound the memory held by large stores. It is safe
// for concurrent use.
type BlockCache struct {
	codec string
	cache *arc.ARCCache[uint64, []byte]
}

// NewBlockCache returns nil when size is not positive, a nil cache is a
// valid no-op cache.
func NewBlockCache(size int, codec string) (*BlockCache, error) {
	if size <= 0 {
		return nil, nil
	}
	codec = strings.ToLower(strings.TrimSpace(codec))
	switch codec {
	case "":
		codec = CodecNone
	case CodecNone, CodecSnappy, CodecLZ4:
	default:
		return nil, errors.Errorf("unknown cache codec %q", codec)
	}
	c, err := arc.NewARC[uint64, []byte](size)
	if err != nil {
		return nil, errors.Wrap(err, "create block cache")
	}
	return &BlockCache{codec: codec, cache: c}, nil
}

// Get returns a private copy of the cached block.
func (bc *BlockCache) Get(offset uint64) ([]byte, bool) {
	if bc == nil {
		return nil, false
	}
	stored, ok := bc.cache.Get(offset)
	if !ok {
		return nil, false
	}
	out, err := bc.decode(stored)
	if err != nil {
		bc.cache.Remove(offset)
		return nil, false
	}
	return out, true
}

// Put stores a copy of data.
func (bc *BlockCache) Put(offset uint64, data []byte) {
	if bc == nil {
		return
	}
	stored, err := bc.encode(data)
	if err != nil {
		return
	}
	bc.cache.Add(offset, stored)
}

func (bc *BlockCache) Len() int {
	if bc == nil {
		return 0
	}
	return bc.cache.Len()
}

func (bc *BlockCache) encode(data []byte) ([]byte, error) {
	switch bc.codec {
	case CodecSnappy:
		return snappy.Encode(nil, data), nil
	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return append([]byte(nil), data...), nil
	}
}

func (bc *BlockCache) decode(stored []byte) ([]byte, error) {
	switch bc.codec {
	case CodecSnappy:
		return snappy.Decode(nil, stored)
	case CodecLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(stored)))
	default:
		return append([]byte(nil), stored...), nil
	}
}
