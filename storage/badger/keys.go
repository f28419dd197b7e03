package badger

import (
	"encoding/binary"

	"github.com/poiesic/advisor/core"
)

// Key prefixes for different data types
const (
	vectorPrefix = "vec:"
	recordPrefix = "rec:"
	metaKey      = "meta:index"
)

// makeIDKey builds prefix + big-endian ID so keys sort by ID.
func makeIDKey(prefix string, id core.ID) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeVectorKey generates a key for a vector by record ID.
func makeVectorKey(id core.ID) []byte {
	return makeIDKey(vectorPrefix, id)
}

// makeRecordKey generates a key for a lookup table entry by record ID.
func makeRecordKey(id core.ID) []byte {
	return makeIDKey(recordPrefix, id)
}

// idFromKey extracts the record ID from a prefixed key.
func idFromKey(prefix string, key []byte) (core.ID, bool) {
	if len(key) != len(prefix)+8 || string(key[:len(prefix)]) != prefix {
		return 0, false
	}
	return core.ID(binary.BigEndian.Uint64(key[len(prefix):])), true
}
