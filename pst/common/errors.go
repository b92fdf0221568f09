package common

import (
	"errors"
)

// Errors are node scoped: a failure reading one object never poisons the
// store, callers may skip the failing object and continue.
var (
	ErrNotFound              = errors.New("pst: id not found in index")
	ErrBadTableType          = errors.New("pst: unexpected table type")
	ErrBadFormatMarker       = errors.New("pst: bad format marker")
	ErrTruncatedData         = errors.New("pst: truncated data")
	ErrMissingDescriptor     = errors.New("pst: missing local descriptor")
	ErrDecompressionMismatch = errors.New("pst: decompressed size mismatch")
	ErrEmptyTable            = errors.New("pst: empty property table")
	ErrUnsupportedCrypt      = errors.New("pst: unsupported encryption method")
	ErrClosed                = errors.New("pst: store is closed")
)

// IsParseError reports whether err describes malformed node content, as
// opposed to an index miss or an I/O failure.
func IsParseError(err error) bool {
	if err == nil {
		return false
	}
	for _, kind := range []error{
		ErrBadTableType,
		ErrBadFormatMarker,
		ErrTruncatedData,
		ErrMissingDescriptor,
		ErrEmptyTable,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
