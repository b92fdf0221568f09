package table

import (
	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/util"
)

// BTHHeader: bType(1) cbKey(1) cbEnt(1) bIdxLevels(1) hidRoot(4)
type BTHHeader struct {
	KeySize   int
	EntrySize int
	Levels    int
	Root      uint32
}

func (h *HeapOnNode) ReadBTHHeader(hid uint32) (BTHHeader, error) {
	var hdr BTHHeader
	raw, err := h.Get(hid)
	if err != nil {
		return hdr, errors.WithMessage(err, "bth header")
	}
	if len(raw) < 8 {
		return hdr, errors.Wrapf(common.ErrTruncatedData, "bth header: %d bytes", len(raw))
	}
	if raw[0] != common.HN_CLIENT_BTH {
		return hdr, errors.Wrapf(common.ErrBadFormatMarker, "bth type 0x%02X", raw[0])
	}
	hdr.KeySize = int(raw[1])
	hdr.EntrySize = int(raw[2])
	hdr.Levels = int(raw[3])
	_, hdr.Root = util.ReadUB4(raw, 4)
	if hdr.KeySize == 0 {
		return hdr, errors.Wrap(common.ErrBadFormatMarker, "bth key size 0")
	}
	return hdr, nil
}

// BTHRecords returns the leaf records (key followed by data) in key order,
// descending through index levels when present.
func (h *HeapOnNode) BTHRecords(hdr BTHHeader) ([][]byte, error) {
	if hdr.Root == 0 {
		return nil, nil
	}
	var out [][]byte
	visited := make(map[uint32]struct{})
	if err := h.bthLevel(hdr, hdr.Root, hdr.Levels, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *HeapOnNode) bthLevel(hdr BTHHeader, hid uint32, level int, visited map[uint32]struct{}, out *[][]byte) error {
	if _, ok := visited[hid]; ok {
		return errors.Wrapf(common.ErrBadFormatMarker, "bth allocation 0x%X referenced twice", hid)
	}
	visited[hid] = struct{}{}

	raw, err := h.Get(hid)
	if err != nil {
		return err
	}
	size := hdr.KeySize + hdr.EntrySize
	if level > 0 {
		size = hdr.KeySize + 4
	}
	for cursor := 0; cursor+size <= len(raw); cursor += size {
		rec := raw[cursor : cursor+size]
		if level == 0 {
			*out = append(*out, rec)
			continue
		}
		_, next := util.ReadUB4(rec, hdr.KeySize)
		if err := h.bthLevel(hdr, next, level-1, visited, out); err != nil {
			return err
		}
	}
	return nil
}
