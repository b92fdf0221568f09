package node

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/index"
	"github.com/zhukovaskychina/xpst/pst/store/blocks"
	"github.com/zhukovaskychina/xpst/util"
)

// Reader turns offset index entries and local descriptor items into node
// streams.
type Reader struct {
	file    *blocks.BlockFile
	offsets *index.OffsetIndex
	crypt   byte
}

func NewReader(file *blocks.BlockFile, offsets *index.OffsetIndex) *Reader {
	return &Reader{
		file:    file,
		offsets: offsets,
		crypt:   file.Header().CryptMethod,
	}
}

// Open reads the node rooted at entry, decrypting data blocks when the file
// declares the permute cipher.
func (r *Reader) Open(entry index.OffsetIndexEntry) (*NodeInputStream, error) {
	return r.OpenWithCipher(entry, r.crypt == common.CRYPT_PERMUTE)
}

// OpenWithCipher is Open with the cipher toggled explicitly for this node.
func (r *Reader) OpenWithCipher(entry index.OffsetIndexEntry, decrypt bool) (*NodeInputStream, error) {
	var out [][]byte
	if err := r.collect(entry, decrypt, 0, &out); err != nil {
		return nil, errors.WithMessagef(err, "open node block 0x%X", entry.ID)
	}
	return NewNodeInputStream(out), nil
}

// OpenBlockID looks the block up first.
func (r *Reader) OpenBlockID(bid uint64) (*NodeInputStream, error) {
	entry, err := r.offsets.Lookup(bid)
	if err != nil {
		return nil, err
	}
	return r.Open(entry)
}

// OpenLocal reads the value of a local descriptor, following its block chain.
func (r *Reader) OpenLocal(item LocalDescriptorItem) (*NodeInputStream, error) {
	stream, err := r.OpenBlockID(item.DataNodeID)
	if err != nil {
		return nil, errors.WithMessagef(err, "local descriptor 0x%X", item.ID)
	}
	return stream, nil
}

func (r *Reader) readRaw(entry index.OffsetIndexEntry) ([]byte, error) {
	return r.file.ReadAt(entry.FileOffset, int(entry.Size))
}

// collect appends the data blocks below entry in order. XBLOCK (level 1) and
// XXBLOCK (level 2) share one layout:
// btype(1) cLevel(1) cEnt(2) lcbTotal(4) rgbid[cEnt].
func (r *Reader) collect(entry index.OffsetIndexEntry, decrypt bool, depth int, out *[][]byte) error {
	raw, err := r.readRaw(entry)
	if err != nil {
		return err
	}
	if !entry.IsInternal() {
		if decrypt {
			blocks.DecodePermute(raw)
		}
		*out = append(*out, raw)
		return nil
	}
	if depth > 2 {
		return errors.Wrapf(common.ErrBadFormatMarker, "block chain deeper than two levels at 0x%X", entry.ID)
	}

	width := r.file.Header().IDWidth()
	if !util.HasBytes(raw, 0, 8) {
		return errors.Wrapf(common.ErrTruncatedData, "xblock 0x%X: %d bytes", entry.ID, len(raw))
	}
	cursor, btype := util.ReadByte(raw, 0)
	cursor, level := util.ReadByte(raw, cursor)
	cursor, count := util.ReadUB2(raw, cursor)
	cursor, total := util.ReadUB4(raw, cursor)
	if btype != common.BLOCK_TYPE_XBLOCK || level < 1 || level > 2 {
		return errors.Wrapf(common.ErrBadFormatMarker, "block 0x%X: type 0x%02X level %d", entry.ID, btype, level)
	}
	if !util.HasBytes(raw, cursor, int(count)*width) {
		return errors.Wrapf(common.ErrTruncatedData, "xblock 0x%X lists %d ids", entry.ID, count)
	}

	before := 0
	for _, b := range *out {
		before += len(b)
	}
	for i := 0; i < int(count); i++ {
		var bid uint64
		cursor, bid = util.ReadUBN(raw, cursor, width)
		child, err := r.offsets.Lookup(bid)
		if err != nil {
			return err
		}
		if level == 2 && !child.IsInternal() {
			return errors.Wrapf(common.ErrBadFormatMarker, "xxblock 0x%X references data block 0x%X", entry.ID, bid)
		}
		if err := r.collect(child, decrypt, depth+1, out); err != nil {
			return err
		}
	}
	after := 0
	for _, b := range *out {
		after += len(b)
	}
	if after-before != int(total) {
		return errors.Wrapf(common.ErrTruncatedData, "xblock 0x%X declares %d bytes, chain holds %d",
			entry.ID, total, after-before)
	}
	return nil
}
