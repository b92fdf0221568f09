package blocks

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/mmap"

	"github.com/zhukovaskychina/xpst/logger"
	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/util"
)

// Options controls how a BlockFile reaches the underlying bytes.
type Options struct {
	UseMmap    bool
	CacheSize  int    // number of cached blocks, 0 disables the cache
	CacheCodec string // none, snappy or lz4
}

// BlockFile is a read-only random-access view of a PST file. Reads are
// served from a memory mapping, a plain *os.File or an in-memory buffer.
// ReadAt is safe for concurrent use.
type BlockFile struct {
	mu       sync.RWMutex
	reader   io.ReaderAt
	closer   io.Closer
	filePath string
	size     int64
	header   Header
	cache    *BlockCache
	closed   bool

	fingerprint uint64
}

// OpenBlockFile opens path and parses its header.
func OpenBlockFile(filePath string, opts Options) (*BlockFile, error) {
	bf := &BlockFile{filePath: filePath}
	if opts.UseMmap {
		m, err := mmap.Open(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "mmap %s", filePath)
		}
		bf.reader, bf.closer, bf.size = m, m, int64(m.Len())
	} else {
		f, err := os.Open(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", filePath)
		}
		stat, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, errors.Wrapf(err, "stat %s", filePath)
		}
		bf.reader, bf.closer, bf.size = f, f, stat.Size()
	}
	if stat, err := os.Stat(filePath); err == nil {
		mtime := util.WriteUB8(nil, uint64(stat.ModTime().UnixNano()))
		bf.fingerprint = util.Fingerprint([]byte(filePath), mtime)
	}
	if err := bf.init(opts); err != nil {
		_ = bf.Close()
		return nil, err
	}
	return bf, nil
}

// NewBlockFileFromBytes serves reads from buff. The buffer must not be
// modified while the BlockFile is in use.
func NewBlockFileFromBytes(buff []byte, opts Options) (*BlockFile, error) {
	bf := &BlockFile{
		reader:   bytes.NewReader(buff),
		filePath: ":memory:",
		size:     int64(len(buff)),

		fingerprint: util.HashCode(buff),
	}
	if err := bf.init(opts); err != nil {
		return nil, err
	}
	return bf, nil
}

func (bf *BlockFile) init(opts Options) error {
	cache, err := NewBlockCache(opts.CacheSize, opts.CacheCodec)
	if err != nil {
		return err
	}
	bf.cache = cache

	n := int64(common.HEADER_UNICODE_SIZE)
	if n > bf.size {
		n = bf.size
	}
	raw := make([]byte, n)
	if _, err := bf.reader.ReadAt(raw, 0); err != nil && err != io.EOF {
		return errors.Wrap(err, "read header")
	}
	header, err := ParseHeader(raw)
	if err != nil {
		return err
	}
	bf.header = header
	if bf.closer != nil {
		size := util.WriteUB8(nil, uint64(bf.size))
		bf.fingerprint = util.Fingerprint(util.WriteUB8(nil, bf.fingerprint), size, raw)
	}
	logger.Debugf("opened %s: version=%d wide=%v crypt=%d nbt=0x%X bbt=0x%X",
		bf.filePath, header.Version, header.Wide, header.CryptMethod,
		header.NodeBTreeRoot.Offset, header.BlockBTree.Offset)
	return nil
}

// Close releases the mapping or file handle.
func (bf *BlockFile) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	if bf.closed {
		return nil
	}
	bf.closed = true
	if bf.closer != nil {
		return bf.closer.Close()
	}
	return nil
}

func (bf *BlockFile) GetFilePath() string {
	return bf.filePath
}

func (bf *BlockFile) Size() int64 {
	return bf.size
}

func (bf *BlockFile) Header() Header {
	return bf.header
}

// Fingerprint identifies the file contents for process wide caches: the
// path, modification time, size and header of a file, or the whole buffer of
// an in-memory image.
func (bf *BlockFile) Fingerprint() uint64 {
	return bf.fingerprint
}

// ReadAt returns a private copy of size bytes at offset. Fewer available
// bytes fail with ErrTruncatedData.
func (bf *BlockFile) ReadAt(offset uint64, size int) ([]byte, error) {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	if bf.closed {
		return nil, common.ErrClosed
	}
	if size < 0 || offset > uint64(bf.size) || uint64(bf.size)-offset < uint64(size) {
		return nil, errors.Wrapf(common.ErrTruncatedData,
			"read %d bytes at 0x%X beyond file size 0x%X", size, offset, bf.size)
	}
	if cached, ok := bf.cache.Get(offset); ok && len(cached) == size {
		return cached, nil
	}
	buf := make([]byte, size)
	if _, err := bf.reader.ReadAt(buf, int64(offset)); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read %d bytes at 0x%X", size, offset)
	}
	bf.cache.Put(offset, buf)
	return buf, nil
}
