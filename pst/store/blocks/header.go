package blocks

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/util"
)

// Header is the decoded fixed-offset file header. Only the fields needed to
// reach both b-trees are kept.
type Header struct {
	Version       uint16
	Wide          bool
	CryptMethod   byte
	NodeBTreeRoot BlockRef // descriptor index
	BlockBTree    BlockRef // offset index
}

// BlockRef pairs a block id with its absolute file offset.
type BlockRef struct {
	ID     uint64
	Offset uint64
}

// IDWidth is 8 for the wide layout and 4 for the narrow one.
func (h Header) IDWidth() int {
	if h.Wide {
		return 8
	}
	return 4
}

// MaxBlockData is the payload capacity of one data block.
func (h Header) MaxBlockData() int {
	if h.Wide {
		return common.MAX_BLOCK_DATA_UNICODE
	}
	return common.MAX_BLOCK_DATA_ANSI
}

// HeaderSize returns the number of bytes ParseHeader needs for the layout
// announced by the version field of buff.
func HeaderSize(buff []byte) int {
	if len(buff) < common.HEADER_VERSION_OFFSET+2 {
		return common.HEADER_UNICODE_SIZE
	}
	_, ver := util.ReadUB2(buff, common.HEADER_VERSION_OFFSET)
	if ver >= common.VERSION_UNICODE_MIN {
		return common.HEADER_UNICODE_SIZE
	}
	return common.HEADER_ANSI_SIZE
}

// ParseHeader validates the magic numbers and reads the b-tree roots.
func ParseHeader(buff []byte) (Header, error) {
	var h Header
	if len(buff) < common.HEADER_VERSION_OFFSET+2 {
		return h, errors.Wrapf(common.ErrTruncatedData, "header: %d bytes", len(buff))
	}
	if string(buff[0:4]) != common.HEADER_MAGIC {
		return h, errors.Wrapf(common.ErrBadFormatMarker, "header magic %q", buff[0:4])
	}
	if string(buff[8:10]) != common.HEADER_MAGIC_CLIENT {
		return h, errors.Wrapf(common.ErrBadFormatMarker, "client magic %q", buff[8:10])
	}
	_, h.Version = util.ReadUB2(buff, common.HEADER_VERSION_OFFSET)

	var nbtOffset, bbtOffset, cryptOffset int
	switch {
	case h.Version >= common.VERSION_UNICODE_MIN:
		h.Wide = true
		nbtOffset = common.HEADER_UNICODE_NBT_ROOT_OFFSET
		bbtOffset = common.HEADER_UNICODE_BBT_ROOT_OFFSET
		cryptOffset = common.HEADER_UNICODE_CRYPT_OFFSET
	case h.Version == common.VERSION_ANSI_MIN || h.Version == common.VERSION_ANSI_MAX:
		nbtOffset = common.HEADER_ANSI_NBT_ROOT_OFFSET
		bbtOffset = common.HEADER_ANSI_BBT_ROOT_OFFSET
		cryptOffset = common.HEADER_ANSI_CRYPT_OFFSET
	default:
		return h, errors.Wrapf(common.ErrBadFormatMarker, "unsupported version %d", h.Version)
	}
	if len(buff) < HeaderSize(buff) {
		return h, errors.Wrapf(common.ErrTruncatedData, "header: %d bytes, need %d", len(buff), HeaderSize(buff))
	}

	width := h.IDWidth()
	// BREF 是 (bid, ib)，根偏移前面紧跟着 bid
	_, h.NodeBTreeRoot.ID = util.ReadUBN(buff, nbtOffset-width, width)
	_, h.NodeBTreeRoot.Offset = util.ReadUBN(buff, nbtOffset, width)
	_, h.BlockBTree.ID = util.ReadUBN(buff, bbtOffset-width, width)
	_, h.BlockBTree.Offset = util.ReadUBN(buff, bbtOffset, width)
	h.CryptMethod = buff[cryptOffset]

	if h.CryptMethod != common.CRYPT_NONE && h.CryptMethod != common.CRYPT_PERMUTE {
		return h, errors.Wrapf(common.ErrUnsupportedCrypt, "method 0x%02X", h.CryptMethod)
	}
	return h, nil
}
