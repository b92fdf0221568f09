package util

import "time"

// 1601-01-01 到 1970-01-01 之间的 100ns 间隔数
const filetimeUnixDelta = 116444736000000000

// FiletimeToTime converts a Windows FILETIME given as its low and high 32-bit
// halves. An all-zero FILETIME maps to the Unix epoch, not to 1601.
func FiletimeToTime(low, high uint32) time.Time {
	if low == 0 && high == 0 {
		return time.Unix(0, 0).UTC()
	}
	ticks := int64(uint64(high)<<32 | uint64(low))
	ticks -= filetimeUnixDelta
	return time.Unix(ticks/10000000, (ticks%10000000)*100).UTC()
}

// TimeToFiletime is the inverse of FiletimeToTime for non-epoch values.
func TimeToFiletime(t time.Time) (low, high uint32) {
	ticks := uint64(t.UnixNano()/100 + filetimeUnixDelta)
	return uint32(ticks), uint32(ticks >> 32)
}
