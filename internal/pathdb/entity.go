package pathdb

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/axiograph/axiograph/internal/interner"
)

// EntityStore is the columnar attribute table plus per-entity type tag
// described in §4.2. Attribute values are interned strings stored
// column-major: attrByKey[keyID][entityID] = valueID.
type EntityStore struct {
	mu sync.RWMutex

	in *interner.Interner

	// types[entityID] = interned type name ID. Grows by one slot per
	// add_entity call; entity IDs are assigned by a strictly increasing
	// counter (len(types) after append).
	types []StrID

	// virtualTypes records secondary type memberships (mark_virtual_type),
	// used only by the type index: entity -> extra type IDs beyond its
	// primary type.
	virtualTypes map[EntityID][]StrID

	// attrByKey[keyID][entityID] = valueID.
	attrByKey map[StrID]map[EntityID]StrID

	// valueIndex[keyID][valueID] = bitmap of entities, the inverse of
	// attrByKey for a given key, maintained incrementally to support
	// entities_with_attr_value without a scan.
	valueIndex map[StrID]map[StrID]*roaring.Bitmap
}

// NewEntityStore creates an empty entity store backed by in.
func NewEntityStore(in *interner.Interner) *EntityStore {
	return &EntityStore{
		in:           in,
		virtualTypes: make(map[EntityID][]StrID),
		attrByKey:    make(map[StrID]map[EntityID]StrID),
		valueIndex:   make(map[StrID]map[StrID]*roaring.Bitmap),
	}
}

// Add interns typeName and every attribute, assigns the next entity ID, and
// updates the columnar attribute map. Implements §4.2 add_entity.
func (s *EntityStore) Add(typeName string, attrs []Attr) EntityID {
	typeID := s.in.Intern(typeName)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := EntityID(len(s.types))
	s.types = append(s.types, typeID)

	for _, a := range attrs {
		keyID := s.in.Intern(a.Key)
		valID := s.in.Intern(a.Value)
		s.setAttrLocked(id, keyID, valID)
	}
	return id
}

// SetAttr interns key/value and records attrByKey[key][id] = value,
// overwriting any previous value for that key on this entity.
func (s *EntityStore) SetAttr(id EntityID, key, value string) {
	keyID := s.in.Intern(key)
	valID := s.in.Intern(value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAttrLocked(id, keyID, valID)
}

func (s *EntityStore) setAttrLocked(id EntityID, keyID, valID StrID) {
	col, ok := s.attrByKey[keyID]
	if !ok {
		col = make(map[EntityID]StrID)
		s.attrByKey[keyID] = col
	}
	if prev, had := col[id]; had {
		if idx := s.valueIndex[keyID]; idx != nil {
			if bm := idx[prev]; bm != nil {
				bm.Remove(uint32(id))
			}
		}
	}
	col[id] = valID

	idx, ok := s.valueIndex[keyID]
	if !ok {
		idx = make(map[StrID]*roaring.Bitmap)
		s.valueIndex[keyID] = idx
	}
	bm, ok := idx[valID]
	if !ok {
		bm = roaring.New()
		idx[valID] = bm
	}
	bm.Add(uint32(id))
}

// MarkVirtualType records a secondary type membership for id, used by the
// type index (§4.2 mark_virtual_type).
func (s *EntityStore) MarkVirtualType(id EntityID, extraType string) {
	typeID := s.in.Intern(extraType)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.virtualTypes[id] = append(s.virtualTypes[id], typeID)
}

// VirtualTypes returns the secondary type IDs recorded for id.
func (s *EntityStore) VirtualTypes(id EntityID) []StrID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]StrID(nil), s.virtualTypes[id]...)
}

// GetType returns the primary type ID of id, or (0, false) if id is not
// live.
func (s *EntityStore) GetType(id EntityID) (StrID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) >= len(s.types) {
		return 0, false
	}
	return s.types[id], true
}

// Len returns the number of live entities.
func (s *EntityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.types)
}

// GetAttr returns the interned value ID of entity id's keyID attribute, or
// (0, false) if unset.
func (s *EntityStore) GetAttr(id EntityID, keyID StrID) (StrID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.attrByKey[keyID]
	if !ok {
		return 0, false
	}
	v, ok := col[id]
	return v, ok
}

// EntitiesWithAttrValue returns the bitmap of entities whose keyID
// attribute equals valueID (§4.2).
func (s *EntityStore) EntitiesWithAttrValue(keyID, valueID StrID) *roaring.Bitmap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.valueIndex[keyID]
	if !ok {
		return roaring.New()
	}
	bm, ok := idx[valueID]
	if !ok {
		return roaring.New()
	}
	return bm.Clone()
}

// AttrColumn returns a snapshot copy of the attrByKey[keyID] column
// (entityID -> valueID), used by index builders that need to scan a whole
// column (e.g. the fact index scanning axi_relation).
func (s *EntityStore) AttrColumn(keyID StrID) map[EntityID]StrID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.attrByKey[keyID]
	if !ok {
		return nil
	}
	out := make(map[EntityID]StrID, len(col))
	for k, v := range col {
		out[k] = v
	}
	return out
}

// EachType calls fn for every live entity with its primary type ID, in ID
// order. Used by the type index builder.
func (s *EntityStore) EachType(fn func(id EntityID, typeID StrID)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, t := range s.types {
		fn(EntityID(i), t)
	}
}

// AttrIDs is an interned (key, value) attribute pair, used where callers
// need the raw interned form rather than the decoded strings AttrString
// returns — chiefly the snapshot codec, which serializes interned IDs
// directly since Restore reconstructs an interner assigning the same IDs.
type AttrIDs struct {
	Key   StrID
	Value StrID
}

// AllAttrs returns every attribute set on entity id, in no particular
// order. Used by the snapshot codec to serialize a full entity record.
func (s *EntityStore) AllAttrs(id EntityID) []AttrIDs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []AttrIDs
	for keyID, col := range s.attrByKey {
		if v, ok := col[id]; ok {
			out = append(out, AttrIDs{Key: keyID, Value: v})
		}
	}
	return out
}
