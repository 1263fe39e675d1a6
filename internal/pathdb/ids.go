// Package pathdb implements the in-memory property graph described in
// spec §3-§4: a string interner, a columnar entity store, a relation
// (edge) store, an equivalence store, and the generation counter that
// drives the async secondary-index rebuild model in package index.
package pathdb

import "github.com/axiograph/axiograph/internal/interner"

// StrID is a string ID issued by the PathDB's interner.
type StrID = interner.ID

// EntityID is a dense, strictly increasing entity ID.
type EntityID uint32

// RelationID is a dense, strictly increasing relation (edge) ID.
type RelationID uint32

// InvalidEntity marks the absence of an entity.
const InvalidEntity EntityID = ^EntityID(0)

// Attr is a (key, value) attribute pair, both interned strings.
type Attr struct {
	Key   string
	Value string
}
