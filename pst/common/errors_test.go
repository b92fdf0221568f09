package common

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsParseError(t *testing.T) {
	assert.True(t, IsParseError(errors.Wrap(ErrBadTableType, "node 0x21")))
	assert.True(t, IsParseError(errors.Wrapf(errors.Wrap(ErrTruncatedData, "row 3"), "table %d", 7)))
	assert.False(t, IsParseError(errors.Wrap(ErrNotFound, "nid 0x122")))
	assert.False(t, IsParseError(io.ErrUnexpectedEOF))
	assert.False(t, IsParseError(nil))
}

func TestNodeType(t *testing.T) {
	assert.Equal(t, uint8(NID_TYPE_NORMAL_FOLDER), NodeType(NID_ROOT_FOLDER))
	assert.Equal(t, uint64(0x12D), MakeNID(NID_ROOT_FOLDER, NID_TYPE_HIERARCHY_TABLE))
	assert.Equal(t, uint64(0x12E), MakeNID(NID_ROOT_FOLDER, NID_TYPE_CONTENTS_TABLE))
	assert.True(t, IsFolderType(NodeType(0x8022)))
	assert.False(t, IsFolderType(NodeType(0x200024)))
}

func TestIsInlineType(t *testing.T) {
	for _, pt := range []uint16{PT_NULL, PT_SHORT, PT_LONG, PT_FLOAT, PT_ERROR, PT_BOOLEAN} {
		assert.True(t, IsInlineType(pt), "type 0x%04X", pt)
	}
	for _, pt := range []uint16{PT_DOUBLE, PT_LONGLONG, PT_SYSTIME, PT_UNICODE, PT_BINARY, PT_MV_UNICODE} {
		assert.False(t, IsInlineType(pt), "type 0x%04X", pt)
	}
}
