package store

import (
	"fmt"
	"strings"
	"time"
)

const keySep = ":"

// IntKey encodes v so that lexical order matches numeric order.
func IntKey(v int64) string {
	return fmt.Sprintf("%020d", uint64(v)^(1<<63))
}

// TimeKey encodes t with nanosecond precision, ordered by time.
func TimeKey(t time.Time) string {
	return IntKey(t.UnixNano())
}

// Compose joins index parts. Parts must not contain ':'.
func Compose(parts ...string) string {
	return strings.Join(parts, keySep)
}

// Prefix returns the range of values starting with the composed parts.
func Prefix(parts ...string) Range {
	p := Compose(parts...) + keySep
	return Range{Lower: p, Upper: p[:len(p)-1] + string(rune(keySep[0]+1))}
}

// Before returns the range of values strictly lower than upper.
func Before(upper string) Range {
	return Range{Upper: upper}
}
