// Package layout is the canonical codec for every persisted record.
//
// Each record is an 8-byte tag followed by fixed-offset little-endian
// fields. The offset tables in this package are the wire contract shared by
// the structured and raw entry points; both decode through the functions
// here, so a schema change lands in one place.
package layout

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ppiankov/oraclegate/internal/model"
)

// TagSize is the width of the leading record tag. The engine never
// interprets tag contents.
const TagSize = 8

// ErrShortRecord is returned when a buffer is smaller than its layout.
var ErrShortRecord = errors.New("record too short")

// Tag returns the record tag for name: the first 8 bytes of
// sha256("account:<name>").
func Tag(name string) [TagSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var t [TagSize]byte
	copy(t[:], sum[:TagSize])
	return t
}

var (
	ConfigTag       = Tag("Config")
	PolicyRecordTag = Tag("PolicyRecord")
	RegistryTag     = Tag("RegionFeedRegistry")
	DisasterTag     = Tag("DisasterEvent")
	PriceStateTag   = Tag("PriceValidationState")
	FeedResultTag   = Tag("FeedResult")
)

// body returns the field region of a tagged record, or ErrShortRecord.
func body(data []byte, size int, record string) ([]byte, error) {
	if len(data) < TagSize+size {
		return nil, fmt.Errorf("%s: %w: need %d bytes, have %d", record, ErrShortRecord, TagSize+size, len(data))
	}
	return data[TagSize : TagSize+size], nil
}

// alloc returns a zeroed tagged buffer of the given body size.
func alloc(tag [TagSize]byte, size int) []byte {
	buf := make([]byte, TagSize+size)
	copy(buf, tag[:])
	return buf
}

func u64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}

func putU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

func i64(b []byte, off int) int64 {
	return int64(binary.LittleEndian.Uint64(b[off : off+8]))
}

func putI64(b []byte, off int, v int64) {
	binary.LittleEndian.PutUint64(b[off:off+8], uint64(v))
}

func u32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

func putU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

func addr(b []byte, off int) model.Address {
	var a model.Address
	copy(a[:], b[off:off+model.AddressSize])
	return a
}

func putAddr(b []byte, off int, a model.Address) {
	copy(b[off:off+model.AddressSize], a[:])
}

func boolean(b []byte, off int) bool {
	return b[off] != 0
}

func putBool(b []byte, off int, v bool) {
	if v {
		b[off] = 1
	} else {
		b[off] = 0
	}
}
