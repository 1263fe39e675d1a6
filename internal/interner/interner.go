// Package interner implements the process-local, append-only bidirectional
// mapping between strings and dense 32-bit IDs that backs every other
// PathDB table (§4.1).
package interner

import (
	"fmt"
	"sync"
)

// ID is a dense, strictly increasing string ID. IDs are never reused and
// never truncated: interning the same string twice always returns the same
// ID, and no string is ever removed from the table.
type ID uint32

// Invalid is returned by lookups that fail to find a match.
const Invalid ID = ^ID(0)

// Interner is a single-writer, multi-reader string table. It is safe for
// concurrent use: Intern takes a write lock only when a string is new,
// Lookup/IDOf take a read lock.
type Interner struct {
	mu      sync.RWMutex
	strings []string
	ids     map[string]ID
}

// New returns an empty interner.
func New() *Interner {
	return &Interner{
		ids: make(map[string]ID),
	}
}

// Intern assigns s its dense ID, or returns the existing one. Idempotent.
func (in *Interner) Intern(s string) ID {
	in.mu.RLock()
	if id, ok := in.ids[s]; ok {
		in.mu.RUnlock()
		return id
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()
	// Re-check under the write lock: another goroutine may have interned s
	// between the RUnlock above and this Lock.
	if id, ok := in.ids[s]; ok {
		return id
	}
	if len(in.strings) >= int(Invalid) {
		panic("interner: string ID space exhausted")
	}
	id := ID(len(in.strings))
	in.strings = append(in.strings, s)
	in.ids[s] = id
	return id
}

// Lookup returns the string for id, or ("", false) if id was never issued.
func (in *Interner) Lookup(id ID) (string, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(id) >= len(in.strings) {
		return "", false
	}
	return in.strings[id], true
}

// MustLookup panics if id is unknown; used where callers already hold an ID
// they obtained from this same interner and a miss indicates a bug.
func (in *Interner) MustLookup(id ID) string {
	s, ok := in.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("interner: unknown id %d", id))
	}
	return s
}

// IDOf returns the ID already assigned to s without interning it.
func (in *Interner) IDOf(s string) (ID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	id, ok := in.ids[s]
	return id, ok
}

// Len returns the number of interned strings.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.strings)
}

// Each calls fn for every interned string in insertion (ID) order. fn must
// not call back into the interner.
func (in *Interner) Each(fn func(id ID, s string)) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	for i, s := range in.strings {
		fn(ID(i), s)
	}
}

// Snapshot returns a copy of the insertion-ordered string table, suitable
// for the snapshot codec (§4.12) or for reconstructing an interner with
// identical IDs via Restore.
func (in *Interner) Snapshot() []string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]string, len(in.strings))
	copy(out, in.strings)
	return out
}

// Restore rebuilds an interner from an insertion-ordered string table,
// assigning IDs by position. Used by the snapshot codec decoder so decoded
// entity/relation IDs line up with the original encoder's IDs.
func Restore(strings []string) *Interner {
	in := &Interner{
		strings: append([]string(nil), strings...),
		ids:     make(map[string]ID, len(strings)),
	}
	for i, s := range in.strings {
		in.ids[s] = ID(i)
	}
	return in
}
