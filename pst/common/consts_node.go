package common

// 文件头
const (
	HEADER_MAGIC        = "!BDN"
	HEADER_MAGIC_CLIENT = "SM"

	HEADER_VERSION_OFFSET = 10

	HEADER_ANSI_SIZE    = 512
	HEADER_UNICODE_SIZE = 564

	// ANSI 文件头中的字段偏移
	HEADER_ANSI_NBT_ROOT_OFFSET = 188
	HEADER_ANSI_BBT_ROOT_OFFSET = 196
	HEADER_ANSI_CRYPT_OFFSET    = 461

	// Unicode 文件头中的字段偏移
	HEADER_UNICODE_NBT_ROOT_OFFSET = 224
	HEADER_UNICODE_BBT_ROOT_OFFSET = 240
	HEADER_UNICODE_CRYPT_OFFSET    = 513
)

// wVer values. Anything below VERSION_UNICODE_MIN is the narrow layout.
const (
	VERSION_ANSI_MIN    = 14
	VERSION_ANSI_MAX    = 15
	VERSION_UNICODE_MIN = 23
)

const (
	CRYPT_NONE    = 0x00
	CRYPT_PERMUTE = 0x01
	CRYPT_CYCLIC  = 0x02
)

// B-tree 页面
const (
	BTREE_PAGE_SIZE = 512

	PAGE_TYPE_BBT = 0x80 // block b-tree, the offset index
	PAGE_TYPE_NBT = 0x81 // node b-tree, the descriptor index

	// 页面尾部元数据偏移
	PAGE_ANSI_META_OFFSET    = 496
	PAGE_ANSI_TYPE_OFFSET    = 500
	PAGE_UNICODE_META_OFFSET = 488
	PAGE_UNICODE_TYPE_OFFSET = 496

	MAX_BTREE_DEPTH = 16
)

// block id 的低两位
const (
	BID_RESERVED_BIT = 0x1
	BID_INTERNAL_BIT = 0x2
)

// 内部块类型
const (
	BLOCK_TYPE_XBLOCK  = 0x01
	BLOCK_TYPE_SLBLOCK = 0x02

	MAX_BLOCK_DATA_ANSI    = 8180
	MAX_BLOCK_DATA_UNICODE = 8176
)

// NID 的低5位是节点类型
const (
	NID_TYPE_MASK = 0x1F

	NID_TYPE_HID                 = 0x00
	NID_TYPE_INTERNAL            = 0x01
	NID_TYPE_NORMAL_FOLDER       = 0x02
	NID_TYPE_SEARCH_FOLDER       = 0x03
	NID_TYPE_NORMAL_MESSAGE      = 0x04
	NID_TYPE_ATTACHMENT          = 0x05
	NID_TYPE_SEARCH_UPDATE_QUEUE = 0x06
	NID_TYPE_SEARCH_CRITERIA     = 0x07
	NID_TYPE_ASSOC_MESSAGE       = 0x08
	NID_TYPE_CONTENTS_TABLE_IDX  = 0x0A
	NID_TYPE_RECEIVE_FOLDER      = 0x0B
	NID_TYPE_OUTGOING_QUEUE      = 0x0C
	NID_TYPE_HIERARCHY_TABLE     = 0x0D
	NID_TYPE_CONTENTS_TABLE      = 0x0E
	NID_TYPE_ASSOC_CONTENTS      = 0x0F
	NID_TYPE_SEARCH_CONTENTS     = 0x10
	NID_TYPE_ATTACHMENT_TABLE    = 0x11
	NID_TYPE_RECIPIENT_TABLE     = 0x12
	NID_TYPE_SEARCH_TABLE_INDEX  = 0x13
	NID_TYPE_LTP                 = 0x1F
)

// 固定节点
const (
	NID_MESSAGE_STORE  = 0x21
	NID_NAME_TO_ID_MAP = 0x61
	NID_ROOT_FOLDER    = 0x122
)

// Heap-on-node
const (
	HN_SIGNATURE = 0xEC

	HN_CLIENT_TC  = 0x7C
	HN_CLIENT_BTH = 0xB5
	HN_CLIENT_PC  = 0xBC

	HN_HEADER_SIZE      = 12
	HN_PAGE_HEADER_SIZE = 2

	TCINFO_HEADER_SIZE = 22
	TCOLDESC_SIZE      = 8
)

// 属性类型
const (
	PT_UNSPECIFIED = 0x0000
	PT_NULL        = 0x0001
	PT_SHORT       = 0x0002
	PT_LONG        = 0x0003
	PT_FLOAT       = 0x0004
	PT_DOUBLE      = 0x0005
	PT_CURRENCY    = 0x0006
	PT_APPTIME     = 0x0007
	PT_ERROR       = 0x000A
	PT_BOOLEAN     = 0x000B
	PT_OBJECT      = 0x000D
	PT_LONGLONG    = 0x0014
	PT_STRING8     = 0x001E
	PT_UNICODE     = 0x001F
	PT_SYSTIME     = 0x0040
	PT_CLSID       = 0x0048
	PT_SVREID      = 0x00FB
	PT_SRESTRICT   = 0x00FD
	PT_ACTIONS     = 0x00FE
	PT_BINARY      = 0x0102

	PT_MV_FLAG    = 0x1000
	PT_MV_LONG    = 0x1003
	PT_MV_STRING8 = 0x101E
	PT_MV_UNICODE = 0x101F
	PT_MV_BINARY  = 0x1102
)

// 常用属性标签
const (
	PR_SUBJECT             = 0x0037
	PR_MESSAGE_CLASS       = 0x001A
	PR_RTF_COMPRESSED      = 0x1009
	PR_DISPLAY_NAME        = 0x3001
	PR_CONTENT_COUNT       = 0x3602
	PR_CONTENT_UNREAD      = 0x3603
	PR_SUBFOLDERS          = 0x360A
	PR_CONTAINER_CLASS     = 0x3613
	PR_INTERNET_CODEPAGE   = 0x3FDE
	PR_MESSAGE_CODEPAGE    = 0x3FFD
	PR_IPM_SUBTREE_ENTRYID = 0x35E0
	PR_RECORD_KEY          = 0x0FF9
	PR_LTP_ROW_ID          = 0x67F2
	PR_LTP_ROW_VERSION     = 0x67F3
)

const DEFAULT_CODEPAGE = 1252

// IsInlineType reports whether values of type t are always stored inline in
// the 32-bit slot of a property record and never dereferenced.
func IsInlineType(t uint16) bool {
	switch t {
	case PT_NULL, PT_SHORT, PT_LONG, PT_FLOAT, PT_ERROR, PT_BOOLEAN:
		return true
	}
	return false
}

// FixedSize returns the stored width of a fixed-size type, or 0 for variable
// width types.
func FixedSize(t uint16) int {
	switch t {
	case PT_NULL, PT_BOOLEAN:
		return 1
	case PT_SHORT:
		return 2
	case PT_LONG, PT_FLOAT, PT_ERROR:
		return 4
	case PT_DOUBLE, PT_CURRENCY, PT_APPTIME, PT_LONGLONG, PT_SYSTIME:
		return 8
	case PT_CLSID:
		return 16
	}
	return 0
}

// NodeType extracts the type bits of a node id.
func NodeType(nid uint64) uint8 {
	return uint8(nid & NID_TYPE_MASK)
}

// MakeNID replaces the type bits of nid.
func MakeNID(nid uint64, nodeType uint8) uint64 {
	return nid&^NID_TYPE_MASK | uint64(nodeType)
}

// IsFolderType covers normal and search folders.
func IsFolderType(nodeType uint8) bool {
	return nodeType == NID_TYPE_NORMAL_FOLDER || nodeType == NID_TYPE_SEARCH_FOLDER
}
