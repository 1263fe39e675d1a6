package pathdb

import (
	"sync"

	"github.com/axiograph/axiograph/internal/interner"
)

// EquivPair is one side of an equivalence adjacency entry: the other
// entity and the (interned) equivalence type.
type EquivPair struct {
	Other EntityID
	Type  StrID
}

// EquivalenceStore is the undirected, typed adjacency described in §3: for
// each entity, a list of (other_entity, equivalence_type_id). Symmetric by
// construction — adding a<->b inserts both directions atomically.
type EquivalenceStore struct {
	mu   sync.RWMutex
	in   *interner.Interner
	adj  map[EntityID][]EquivPair
}

// NewEquivalenceStore creates an empty equivalence store.
func NewEquivalenceStore(in *interner.Interner) *EquivalenceStore {
	return &EquivalenceStore{
		in:  in,
		adj: make(map[EntityID][]EquivPair),
	}
}

// Add records that a and b are equivalent under equivType, in both
// directions.
func (s *EquivalenceStore) Add(a, b EntityID, equivType string) {
	typeID := s.in.Intern(equivType)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adj[a] = append(s.adj[a], EquivPair{Other: b, Type: typeID})
	if a != b {
		s.adj[b] = append(s.adj[b], EquivPair{Other: a, Type: typeID})
	}
}

// Of returns the equivalence adjacency list for entity id.
func (s *EquivalenceStore) Of(id EntityID) []EquivPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]EquivPair, len(s.adj[id]))
	copy(out, s.adj[id])
	return out
}

// AreEquivalent reports whether a and b share at least one equivalence
// edge of the given type.
func (s *EquivalenceStore) AreEquivalent(a, b EntityID, equivType string) bool {
	typeID, ok := s.in.IDOf(equivType)
	if !ok {
		return false
	}
	for _, p := range s.Of(a) {
		if p.Other == b && p.Type == typeID {
			return true
		}
	}
	return false
}

// EachCanonicalPair calls fn once per logical Add(a, b, type) call that
// built this store, rather than once per adjacency-list entry (which
// would visit every symmetric pair twice). Used by the snapshot codec,
// which must replay exactly the original Add calls to reproduce
// identical adjacency without doubling edges.
func (s *EquivalenceStore) EachCanonicalPair(fn func(a, b EntityID, typeID StrID)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for a, pairs := range s.adj {
		for _, p := range pairs {
			if a <= p.Other {
				fn(a, p.Other, p.Type)
			}
		}
	}
}
