package pathdb

import (
	"fmt"
	"sync"

	"github.com/axiograph/axiograph/internal/interner"
)

// Relation is a reified directed edge: a relation-type ID, a source and
// target entity, a confidence in [0,1], and an ordered attribute set (§3).
type Relation struct {
	ID         RelationID
	TypeID     StrID
	Source     EntityID
	Target     EntityID
	Confidence float64
	Attrs      []Attr
}

// RelationStore holds the immutable, densely-ID'd edge table plus the
// per-source secondary structure used for primary traversal (§4.3).
type RelationStore struct {
	mu sync.RWMutex

	in      *interner.Interner
	live    func(EntityID) bool
	records []Relation

	// outgoingBy[source][relTypeID] = relation IDs in insertion order.
	outgoingBy map[EntityID]map[StrID][]RelationID
}

// NewRelationStore creates an empty relation store. live reports whether an
// entity ID currently exists, used to validate endpoints on Add.
func NewRelationStore(in *interner.Interner, live func(EntityID) bool) *RelationStore {
	return &RelationStore{
		in:         in,
		live:       live,
		outgoingBy: make(map[EntityID]map[StrID][]RelationID),
	}
}

// Add interns relType and attrs, validates that source/target are live
// entities, and appends an immutable edge record (§4.3 add_relation).
func (s *RelationStore) Add(relType string, source, target EntityID, confidence float64, attrs []Attr) (RelationID, error) {
	if !s.live(source) {
		return 0, fmt.Errorf("pathdb: relation source entity %d is not live", source)
	}
	if !s.live(target) {
		return 0, fmt.Errorf("pathdb: relation target entity %d is not live", target)
	}
	if confidence < 0 || confidence > 1 {
		return 0, fmt.Errorf("pathdb: relation confidence %v out of range [0,1]", confidence)
	}

	typeID := s.in.Intern(relType)
	internedAttrs := make([]Attr, len(attrs))
	copy(internedAttrs, attrs)
	for _, a := range attrs {
		s.in.Intern(a.Key)
		s.in.Intern(a.Value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := RelationID(len(s.records))
	s.records = append(s.records, Relation{
		ID:         id,
		TypeID:     typeID,
		Source:     source,
		Target:     target,
		Confidence: confidence,
		Attrs:      internedAttrs,
	})

	bySource, ok := s.outgoingBy[source]
	if !ok {
		bySource = make(map[StrID][]RelationID)
		s.outgoingBy[source] = bySource
	}
	bySource[typeID] = append(bySource[typeID], id)

	return id, nil
}

// Get returns the relation record for id.
func (s *RelationStore) Get(id RelationID) (Relation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) >= len(s.records) {
		return Relation{}, false
	}
	return s.records[id], true
}

// Len returns the number of relations.
func (s *RelationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// OutgoingIDs returns the relation IDs of edges leaving source with the
// given relation-type ID, in insertion order.
func (s *RelationStore) OutgoingIDs(source EntityID, relTypeID StrID) []RelationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bySource, ok := s.outgoingBy[source]
	if !ok {
		return nil
	}
	ids := bySource[relTypeID]
	out := make([]RelationID, len(ids))
	copy(out, ids)
	return out
}

// Outgoing returns the edge records of edges leaving source with the given
// relation-type ID (§4.3 outgoing).
func (s *RelationStore) Outgoing(source EntityID, relTypeID StrID) []Relation {
	ids := s.OutgoingIDs(source, relTypeID)
	if len(ids) == 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Relation, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	return out
}

// HasEdge reports whether there is an edge source -relType-> target
// (§4.3 has_edge).
func (s *RelationStore) HasEdge(source EntityID, relTypeID StrID, target EntityID) bool {
	for _, r := range s.Outgoing(source, relTypeID) {
		if r.Target == target {
			return true
		}
	}
	return false
}

// Each calls fn for every relation in ID order.
func (s *RelationStore) Each(fn func(Relation)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		fn(r)
	}
}
