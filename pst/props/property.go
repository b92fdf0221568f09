package props

import (
	"fmt"
	"sort"

	"github.com/zhukovaskychina/xpst/pst/common"
	"github.com/zhukovaskychina/xpst/util"
)

// ValueKind says where the bytes of a property value live.
type ValueKind uint8

const (
	// KindInline: the 32-bit slot holds the value itself.
	KindInline ValueKind = iota + 1
	// KindLocalHeap: the bytes were copied out of the owning node.
	KindLocalHeap
	// KindExternal: the slot holds a local descriptor id.
	KindExternal
)

func (k ValueKind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindLocalHeap:
		return "heap"
	case KindExternal:
		return "external"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// PropertyValue is one of Inline, LocalHeap or External.
type PropertyValue struct {
	Kind   ValueKind
	Inline uint32
	Data   []byte
	Ref    uint32
}

func Inline(v uint32) PropertyValue {
	return PropertyValue{Kind: KindInline, Inline: v}
}

// LocalHeap takes ownership of data; pass a copy when the source buffer is
// shared.
func LocalHeap(data []byte) PropertyValue {
	if data == nil {
		data = []byte{}
	}
	return PropertyValue{Kind: KindLocalHeap, Data: data}
}

func External(ref uint32) PropertyValue {
	return PropertyValue{Kind: KindExternal, Ref: ref}
}

// PropertyItem is one decoded property.
type PropertyItem struct {
	Tag   uint16
	Type  uint16
	Value PropertyValue
}

// NewPropertyItem classifies the raw 32-bit slot of a property record. Inline
// kinds never become external whatever heap holds; for the other kinds
// resolveHeap is asked for HIDs and anything else is a local descriptor id.
func NewPropertyItem(tag, valueType uint16, slot uint32, resolveHeap func(hid uint32) ([]byte, error)) (PropertyItem, error) {
	item := PropertyItem{Tag: tag, Type: valueType}
	switch {
	case common.IsInlineType(valueType):
		item.Value = Inline(slot)
	case slot == 0:
		item.Value = LocalHeap(nil)
	case IsHID(slot):
		data, err := resolveHeap(slot)
		if err != nil {
			return item, err
		}
		item.Value = LocalHeap(data)
	default:
		item.Value = External(slot)
	}
	return item, nil
}

// IsHID reports whether an HNID addresses the heap rather than a subnode.
func IsHID(hnid uint32) bool {
	return hnid&common.NID_TYPE_MASK == common.NID_TYPE_HID
}

// IsExternal says a lookup in the local descriptor tree is needed.
func (p PropertyItem) IsExternal() bool {
	return p.Value.Kind == KindExternal
}

// InlineBytes renders an inline slot as its four little-endian bytes.
func (p PropertyItem) InlineBytes() []byte {
	return util.WriteUB4(nil, p.Value.Inline)
}

func (p PropertyItem) String() string {
	switch p.Value.Kind {
	case KindInline:
		return fmt.Sprintf("0x%04X/0x%04X inline 0x%X", p.Tag, p.Type, p.Value.Inline)
	case KindExternal:
		return fmt.Sprintf("0x%04X/0x%04X external 0x%X", p.Tag, p.Type, p.Value.Ref)
	}
	return fmt.Sprintf("0x%04X/0x%04X heap %d bytes", p.Tag, p.Type, len(p.Value.Data))
}

// PropertyMap is keyed by property tag.
type PropertyMap map[uint16]PropertyItem

func (m PropertyMap) Get(tag uint16) (PropertyItem, bool) {
	item, ok := m[tag]
	return item, ok
}

// Tags returns the tags in ascending order.
func (m PropertyMap) Tags() []uint16 {
	tags := make([]uint16, 0, len(m))
	for tag := range m {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
