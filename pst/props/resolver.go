package props

import (
	"encoding/hex"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/pst/node"
	"github.com/zhukovaskychina/xpst/util"
)

// LocalOpener opens the value stream behind a local descriptor.
type LocalOpener interface {
	OpenLocal(item node.LocalDescriptorItem) (*node.NodeInputStream, error)
}

// Resolver answers typed queries over one object's property map. Missing
// properties yield the default and no error; an external value whose local
// descriptor is absent fails with ErrMissingDescriptor, except in GetBinary.
type Resolver struct {
	Props           PropertyMap
	Locals          node.LocalDescriptorMap
	Opener          LocalOpener
	DefaultCodepage int
}

func NewResolver(props PropertyMap, locals node.LocalDescriptorMap, opener LocalOpener) *Resolver {
	return &Resolver{Props: props, Locals: locals, Opener: opener}
}

func (r *Resolver) Has(tag uint16) bool {
	_, ok := r.Props[tag]
	return ok
}

// valueBytes materializes a value, reading the whole block chain of an
// external value.
func (r *Resolver) valueBytes(item PropertyItem) ([]byte, error) {
	switch item.Value.Kind {
	case KindInline:
		return item.InlineBytes(), nil
	case KindLocalHeap:
		return item.Value.Data, nil
	}
	local, ok := r.Locals.Lookup(uint64(item.Value.Ref))
	if !ok || r.Opener == nil {
		return nil, errors.Wrapf(common.ErrMissingDescriptor,
			"property 0x%04X references local descriptor 0x%X", item.Tag, item.Value.Ref)
	}
	stream, err := r.Opener.OpenLocal(local)
	if err != nil {
		return nil, errors.WithMessagef(err, "property 0x%04X", item.Tag)
	}
	return stream.ReadAll(), nil
}

func (r *Resolver) GetInt(tag uint16, def int) (int, error) {
	item, ok := r.Props[tag]
	if !ok {
		return def, nil
	}
	if item.Value.Kind == KindInline {
		switch item.Type {
		case common.PT_SHORT:
			return int(int16(item.Value.Inline)), nil
		case common.PT_BOOLEAN, common.PT_NULL:
			return int(item.Value.Inline & 0xFF), nil
		}
		return int(int32(item.Value.Inline)), nil
	}
	b, err := r.valueBytes(item)
	if err != nil {
		return def, err
	}
	switch {
	case len(b) >= 4:
		_, v := util.ReadUB4(b, 0)
		return int(int32(v)), nil
	case len(b) >= 2:
		_, v := util.ReadUB2(b, 0)
		return int(int16(v)), nil
	case len(b) == 1:
		return int(b[0]), nil
	}
	return def, nil
}

func (r *Resolver) GetBool(tag uint16, def bool) (bool, error) {
	item, ok := r.Props[tag]
	if !ok {
		return def, nil
	}
	if item.Value.Kind == KindInline {
		return item.Value.Inline&0xFF != 0, nil
	}
	b, err := r.valueBytes(item)
	if err != nil {
		return def, err
	}
	if len(b) == 0 {
		return def, nil
	}
	return b[0] != 0, nil
}

func (r *Resolver) GetDouble(tag uint16, def float64) (float64, error) {
	item, ok := r.Props[tag]
	if !ok {
		return def, nil
	}
	if item.Value.Kind == KindInline {
		return float64(math.Float32frombits(item.Value.Inline)), nil
	}
	b, err := r.valueBytes(item)
	if err != nil {
		return def, err
	}
	switch {
	case len(b) >= 8:
		_, v := util.ReadUB8(b, 0)
		return math.Float64frombits(v), nil
	case len(b) >= 4:
		_, v := util.ReadUB4(b, 0)
		return float64(math.Float32frombits(v)), nil
	}
	return def, nil
}

func (r *Resolver) GetLong(tag uint16, def int64) (int64, error) {
	item, ok := r.Props[tag]
	if !ok {
		return def, nil
	}
	if item.Value.Kind == KindInline {
		return int64(int32(item.Value.Inline)), nil
	}
	b, err := r.valueBytes(item)
	if err != nil {
		return def, err
	}
	switch {
	case len(b) >= 8:
		_, v := util.ReadUB8Long(b, 0)
		return v, nil
	case len(b) >= 4:
		_, v := util.ReadUB4(b, 0)
		return int64(int32(v)), nil
	}
	return def, nil
}

// GetDate decodes a FILETIME. ok is false when the property is absent or too
// short to hold one.
func (r *Resolver) GetDate(tag uint16) (t time.Time, ok bool, err error) {
	item, found := r.Props[tag]
	if !found {
		return time.Time{}, false, nil
	}
	b, err := r.valueBytes(item)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(b) < 8 {
		return time.Time{}, false, nil
	}
	cursor, low := util.ReadUB4(b, 0)
	_, high := util.ReadUB4(b, cursor)
	return util.FiletimeToTime(low, high), true, nil
}

// GetString decodes a string property. A codepage of 0 selects the object's
// own code page. Non-string types render as a hex placeholder.
func (r *Resolver) GetString(tag uint16, codepage int) (string, error) {
	item, ok := r.Props[tag]
	if !ok {
		return "", nil
	}
	b, err := r.valueBytes(item)
	if err != nil {
		return "", err
	}
	switch item.Type {
	case common.PT_UNICODE:
		return DecodeUnicode(b), nil
	case common.PT_STRING8:
		if codepage <= 0 {
			codepage = r.Codepage()
		}
		return DecodeCodepage(b, codepage), nil
	}
	return hex.EncodeToString(b), nil
}

// GetStringOr is GetString with the object's code page and a default for
// absent properties.
func (r *Resolver) GetStringOr(tag uint16, def string) (string, error) {
	if !r.Has(tag) {
		return def, nil
	}
	return r.GetString(tag, 0)
}

// GetBinary returns nil with no error when the value is external and its
// local descriptor cannot be found.
func (r *Resolver) GetBinary(tag uint16) ([]byte, error) {
	item, ok := r.Props[tag]
	if !ok {
		return nil, nil
	}
	b, err := r.valueBytes(item)
	if err != nil {
		if errors.Is(err, common.ErrMissingDescriptor) {
			return nil, nil
		}
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// GetCurrency decodes a PT_CURRENCY value: a signed 64-bit count of
// ten-thousandths.
func (r *Resolver) GetCurrency(tag uint16) (decimal.Decimal, error) {
	v, err := r.GetLong(tag, 0)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(v, -4), nil
}

// GetGUID decodes a 16-byte Windows GUID (first three fields little-endian).
func (r *Resolver) GetGUID(tag uint16) (uuid.UUID, bool, error) {
	item, ok := r.Props[tag]
	if !ok {
		return uuid.Nil, false, nil
	}
	b, err := r.valueBytes(item)
	if err != nil {
		return uuid.Nil, false, err
	}
	if len(b) < 16 {
		return uuid.Nil, false, nil
	}
	return GUIDFromBytes(b), true, nil
}

// GUIDFromBytes reorders the mixed-endian Windows layout into RFC 4122 order.
func GUIDFromBytes(b []byte) uuid.UUID {
	var id uuid.UUID
	id[0], id[1], id[2], id[3] = b[3], b[2], b[1], b[0]
	id[4], id[5] = b[5], b[4]
	id[6], id[7] = b[7], b[6]
	copy(id[8:], b[8:16])
	return id
}

// GetStrings decodes multi-valued string properties: a count, count 32-bit
// offsets, then the packed strings.
func (r *Resolver) GetStrings(tag uint16) ([]string, error) {
	item, ok := r.Props[tag]
	if !ok {
		return nil, nil
	}
	if item.Type != common.PT_MV_UNICODE && item.Type != common.PT_MV_STRING8 {
		return nil, errors.Errorf("property 0x%04X has type 0x%04X, not a string list", tag, item.Type)
	}
	b, err := r.valueBytes(item)
	if err != nil {
		return nil, err
	}
	if len(b) < 4 {
		return nil, nil
	}
	cursor, count := util.ReadUB4(b, 0)
	if !util.HasBytes(b, cursor, int(count)*4) {
		return nil, errors.Wrapf(common.ErrTruncatedData, "property 0x%04X lists %d strings", tag, count)
	}
	offsets := make([]int, count+1)
	for i := 0; i < int(count); i++ {
		var off uint32
		cursor, off = util.ReadUB4(b, cursor)
		offsets[i] = int(off)
	}
	offsets[count] = len(b)

	out := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		start, end := offsets[i], offsets[i+1]
		if start > end || end > len(b) {
			return nil, errors.Wrapf(common.ErrTruncatedData, "property 0x%04X string %d", tag, i)
		}
		if item.Type == common.PT_MV_UNICODE {
			out = append(out, DecodeUnicode(b[start:end]))
		} else {
			out = append(out, DecodeCodepage(b[start:end], r.Codepage()))
		}
	}
	return out, nil
}

// Codepage picks the message code page, then the internet code page, then
// the configured default.
func (r *Resolver) Codepage() int {
	for _, tag := range []uint16{common.PR_MESSAGE_CODEPAGE, common.PR_INTERNET_CODEPAGE} {
		if item, ok := r.Props[tag]; ok && item.Value.Kind == KindInline && item.Value.Inline != 0 {
			return int(item.Value.Inline)
		}
	}
	if r.DefaultCodepage > 0 {
		return r.DefaultCodepage
	}
	return common.DEFAULT_CODEPAGE
}
