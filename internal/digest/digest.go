// Package digest computes deterministic content fingerprints used to name
// snapshots, modules, and blobs throughout the versioned plane.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Algo is the pinned digest algorithm. Changing it is a breaking,
// versioned change: every stored ID embeds it as a prefix so readers can
// detect a mismatch instead of silently miscomparing IDs from different
// algorithm generations.
const Algo = "sha256"

// ID is a digest formatted as "<algo>:<hex>".
type ID string

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Empty reports whether the ID carries no content.
func (id ID) Empty() bool {
	return id == ""
}

// Hex returns the hex portion of the ID, without the algorithm prefix.
func (id ID) Hex() string {
	_, hex, ok := strings.Cut(string(id), ":")
	if !ok {
		return string(id)
	}
	return hex
}

// Of hashes a single byte slice and returns its digest ID.
func Of(data []byte) ID {
	sum := sha256.Sum256(data)
	return ID(fmt.Sprintf("%s:%s", Algo, hex.EncodeToString(sum[:])))
}

// OfString hashes a UTF-8 string.
func OfString(s string) ID {
	return Of([]byte(s))
}

// Builder accumulates byte fragments and parts into a single deterministic
// digest. Unlike hashing a naive concatenation, each part is length-prefixed
// so that ("ab", "c") and ("a", "bc") never collide.
type Builder struct {
	h *sha256hash
}

type sha256hash struct {
	buf []byte
}

// NewBuilder returns an empty digest builder.
func NewBuilder() *Builder {
	return &Builder{h: &sha256hash{}}
}

// WriteString appends a length-framed string to the digest input.
func (b *Builder) WriteString(s string) *Builder {
	return b.WriteBytes([]byte(s))
}

// WriteBytes appends a length-framed byte slice to the digest input.
func (b *Builder) WriteBytes(data []byte) *Builder {
	var lenBuf [8]byte
	putUint64(lenBuf[:], uint64(len(data)))
	b.h.buf = append(b.h.buf, lenBuf[:]...)
	b.h.buf = append(b.h.buf, data...)
	return b
}

// WriteStrings appends a sequence of strings in the given order. Callers
// that need order-independence must sort before calling this (see
// WriteSortedStrings).
func (b *Builder) WriteStrings(strs ...string) *Builder {
	var lenBuf [8]byte
	putUint64(lenBuf[:], uint64(len(strs)))
	b.h.buf = append(b.h.buf, lenBuf[:]...)
	for _, s := range strs {
		b.WriteString(s)
	}
	return b
}

// WriteSortedStrings sorts a copy of strs and writes them in that order,
// so the resulting digest does not depend on map/slice iteration order.
func (b *Builder) WriteSortedStrings(strs []string) *Builder {
	sorted := append([]string(nil), strs...)
	sort.Strings(sorted)
	return b.WriteStrings(sorted...)
}

// Sum finalizes the builder and returns the digest ID.
func (b *Builder) Sum() ID {
	return Of(b.h.buf)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// Verify reports whether data hashes to want, returning a descriptive error
// on mismatch (used to detect corrupted content-addressed storage, §7
// DigestMismatch).
func Verify(data []byte, want ID) error {
	got := Of(data)
	if got != want {
		return fmt.Errorf("digest mismatch: expected %s, got %s", want, got)
	}
	return nil
}
