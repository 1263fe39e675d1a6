package pathdb

import (
	"sync"
	"sync/atomic"

	"github.com/axiograph/axiograph/internal/interner"
)

// DBToken identifies one PathDB image. Typed-builder witnesses (package
// builder) embed the token of the image they were checked against, so a
// witness minted for one image can never be silently replayed against a
// different one (§4.10, §9 "witnesses instead of runtime checks").
type DBToken uint64

var nextDBToken atomic.Uint64

// PathDB is a consistent in-memory image: an interner, an entity column
// store, a relation table, and an equivalence table, plus the mutation
// generation counter that the secondary indexes in package index key their
// staleness off of (§3 Snapshot, §4.4, §5).
type PathDB struct {
	token DBToken

	Interner    *interner.Interner
	Entities    *EntityStore
	Relations   *RelationStore
	Equivalence *EquivalenceStore

	mu         sync.Mutex // single-writer mutation lock (§5)
	generation atomic.Uint64
}

// New returns an empty PathDB image with a fresh, globally unique token.
func New() *PathDB {
	return Restore(interner.New())
}

// Restore returns a PathDB image with empty entity/relation/equivalence
// stores backed by an already-populated interner (typically one built by
// interner.Restore) and a fresh image token. Used by the snapshot codec:
// the caller replays Entities.Add/Relations.Add/Equivalence.Add calls in
// the original encoder's order, which — since entity and relation IDs are
// assigned by strictly increasing insertion order — reproduces identical
// IDs for identical input.
func Restore(in *interner.Interner) *PathDB {
	db := &PathDB{
		token:    DBToken(nextDBToken.Add(1)),
		Interner: in,
	}
	db.Entities = NewEntityStore(in)
	db.Relations = NewRelationStore(in, db.liveEntity)
	db.Equivalence = NewEquivalenceStore(in)
	return db
}

func (db *PathDB) liveEntity(id EntityID) bool {
	_, ok := db.Entities.GetType(id)
	return ok
}

// Token returns the image's identity token.
func (db *PathDB) Token() DBToken {
	return db.token
}

// Generation returns the current mutation generation. It increases by
// exactly one per call to Mutate whose fn returns nil.
func (db *PathDB) Generation() uint64 {
	return db.generation.Load()
}

// Mutate serializes writer-side mutations behind the single-writer lock and
// bumps the generation counter exactly once per call, regardless of how
// many entities/relations fn adds. Readers observing the new generation are
// guaranteed to see every mutation fn performed (§5 ordering guarantees).
// When fn returns an error the counter is not bumped and the error is
// returned; anything fn added before failing stays in the image.
func (db *PathDB) Mutate(fn func(db *PathDB) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := fn(db); err != nil {
		return err
	}
	db.generation.Add(1)
	return nil
}

// AddEntity is a convenience wrapper that mutates the image to add a single
// entity and returns its ID.
func (db *PathDB) AddEntity(typeName string, attrs []Attr) (EntityID, error) {
	var id EntityID
	err := db.Mutate(func(db *PathDB) error {
		id = db.Entities.Add(typeName, attrs)
		return nil
	})
	return id, err
}

// AddRelation is a convenience wrapper that mutates the image to add a
// single relation and returns its ID.
func (db *PathDB) AddRelation(relType string, source, target EntityID, confidence float64, attrs []Attr) (RelationID, error) {
	var id RelationID
	var addErr error
	err := db.Mutate(func(db *PathDB) error {
		id, addErr = db.Relations.Add(relType, source, target, confidence, attrs)
		return addErr
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
