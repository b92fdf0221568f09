package node

import (
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
)

// NodeInputStream is a seekable reader over the logical bytes of a node,
// the concatenation of its data blocks after decryption. It is not safe for
// concurrent use.
type NodeInputStream struct {
	blocks [][]byte
	starts []int64
	length int64
	pos    int64
}

var (
	_ io.Reader = (*NodeInputStream)(nil)
	_ io.Seeker = (*NodeInputStream)(nil)
)

// NewNodeInputStream wraps already decoded blocks. The stream takes
// ownership of the slices.
func NewNodeInputStream(blocks [][]byte) *NodeInputStream {
	s := &NodeInputStream{
		blocks: blocks,
		starts: make([]int64, len(blocks)),
	}
	for i, b := range blocks {
		s.starts[i] = s.length
		s.length += int64(len(b))
	}
	return s
}

// Len is the total logical length.
func (s *NodeInputStream) Len() int64 {
	return s.length
}

// Position returns the current read offset.
func (s *NodeInputStream) Position() int64 {
	return s.pos
}

// Blocks exposes the per-block views; heap ids address allocations per block.
func (s *NodeInputStream) Blocks() [][]byte {
	return s.blocks
}

func (s *NodeInputStream) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = s.length + offset
	default:
		return s.pos, errors.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return s.pos, errors.Errorf("seek: negative position %d", abs)
	}
	s.pos = abs
	return abs, nil
}

func (s *NodeInputStream) Read(p []byte) (int, error) {
	if s.pos >= s.length {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) && s.pos < s.length {
		bi := s.blockAt(s.pos)
		within := s.pos - s.starts[bi]
		c := copy(p[n:], s.blocks[bi][within:])
		n += c
		s.pos += int64(c)
	}
	return n, nil
}

// ReadExact reads exactly n bytes or fails with ErrTruncatedData without
// moving the cursor.
func (s *NodeInputStream) ReadExact(n int) ([]byte, error) {
	if n < 0 || s.length-s.pos < int64(n) {
		return nil, errors.Wrapf(common.ErrTruncatedData,
			"need %d bytes at %d, node holds %d", n, s.pos, s.length)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s, buf); err != nil {
		return nil, errors.Wrap(common.ErrTruncatedData, err.Error())
	}
	return buf, nil
}

// ReadAll returns a copy of the whole node regardless of the cursor.
func (s *NodeInputStream) ReadAll() []byte {
	out := make([]byte, 0, s.length)
	for _, b := range s.blocks {
		out = append(out, b...)
	}
	return out
}

func (s *NodeInputStream) blockAt(pos int64) int {
	// 第一个起始偏移大于 pos 的块的前一个
	i := sort.Search(len(s.starts), func(i int) bool { return s.starts[i] > pos })
	i--
	// 跳过空块
	for i < len(s.blocks)-1 && pos-s.starts[i] >= int64(len(s.blocks[i])) {
		i++
	}
	return i
}
