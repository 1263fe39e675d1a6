// Package snapshot implements the full-image codec for a PathDB: a
// self-describing, versioned encoding of the interner table plus every
// entity, relation, and equivalence record, sufficient to reconstruct a
// PathDB with identical entity and relation IDs to the original.
package snapshot

import (
	"fmt"
	"sort"

	"github.com/axiograph/axiograph/internal/interner"
	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/fxamacker/cbor/v2"
)

// CurrentVersion is the snapshot format version this package writes. A
// decoder that sees a higher version than it understands must refuse to
// load rather than guess at the encoding.
const CurrentVersion = 1

// Attr is an interned (key, value) attribute pair as stored in a
// snapshot record.
type Attr struct {
	Key   pathdb.StrID `cbor:"key"`
	Value pathdb.StrID `cbor:"value"`
}

// Entity is one entity's full snapshot record: its interned type and
// every attribute set on it, plus any secondary (virtual) type IDs.
type Entity struct {
	Type         pathdb.StrID   `cbor:"type"`
	Attrs        []Attr         `cbor:"attrs,omitempty"`
	VirtualTypes []pathdb.StrID `cbor:"virtual_types,omitempty"`
}

// Relation is one relation's full snapshot record.
type Relation struct {
	Type       pathdb.StrID    `cbor:"type"`
	Source     pathdb.EntityID `cbor:"source"`
	Target     pathdb.EntityID `cbor:"target"`
	Confidence float64         `cbor:"confidence"`
	Attrs      []Attr          `cbor:"attrs,omitempty"`
}

// Equivalence is one canonical equivalence pair (a <= b) as recorded by a
// single original Add(a, b, type) call.
type Equivalence struct {
	A    pathdb.EntityID `cbor:"a"`
	B    pathdb.EntityID `cbor:"b"`
	Type pathdb.StrID    `cbor:"type"`
}

// Snapshot is the self-describing, fully-decoded full-image form. Encode/
// Decode convert it to/from bytes; Take/Restore convert it to/from a live
// PathDB.
type Snapshot struct {
	Version     int           `cbor:"version"`
	Strings     []string      `cbor:"strings"`
	Entities    []Entity      `cbor:"entities"`
	Relations   []Relation    `cbor:"relations"`
	Equivalence []Equivalence `cbor:"equivalence"`
}

// Take captures a full-image snapshot of db. The result is independent of
// db: later mutations to db are not reflected in an already-taken
// Snapshot.
func Take(db *pathdb.PathDB) *Snapshot {
	snap := &Snapshot{
		Version: CurrentVersion,
		Strings: db.Interner.Snapshot(),
	}

	n := db.Entities.Len()
	snap.Entities = make([]Entity, n)
	for id := 0; id < n; id++ {
		eid := pathdb.EntityID(id)
		typeID, _ := db.Entities.GetType(eid)
		rec := Entity{Type: typeID}
		for _, a := range db.Entities.AllAttrs(eid) {
			rec.Attrs = append(rec.Attrs, Attr{Key: a.Key, Value: a.Value})
		}
		// AllAttrs iterates a map: sort for a deterministic, re-snapshot-
		// stable encoding (map order would otherwise make Take non-
		// idempotent on the same image).
		sort.Slice(rec.Attrs, func(i, j int) bool {
			if rec.Attrs[i].Key != rec.Attrs[j].Key {
				return rec.Attrs[i].Key < rec.Attrs[j].Key
			}
			return rec.Attrs[i].Value < rec.Attrs[j].Value
		})
		rec.VirtualTypes = db.Entities.VirtualTypes(eid)
		snap.Entities[id] = rec
	}

	db.Relations.Each(func(r pathdb.Relation) {
		rec := Relation{
			Type:       r.TypeID,
			Source:     r.Source,
			Target:     r.Target,
			Confidence: r.Confidence,
		}
		for _, a := range r.Attrs {
			keyID, _ := db.Interner.IDOf(a.Key)
			valID, _ := db.Interner.IDOf(a.Value)
			rec.Attrs = append(rec.Attrs, Attr{Key: keyID, Value: valID})
		}
		snap.Relations = append(snap.Relations, rec)
	})

	db.Equivalence.EachCanonicalPair(func(a, b pathdb.EntityID, typeID pathdb.StrID) {
		snap.Equivalence = append(snap.Equivalence, Equivalence{A: a, B: b, Type: typeID})
	})
	// EachCanonicalPair iterates a map: sort for the same re-snapshot-
	// stability reason as the entity attribute sort above.
	sort.Slice(snap.Equivalence, func(i, j int) bool {
		ei, ej := snap.Equivalence[i], snap.Equivalence[j]
		if ei.A != ej.A {
			return ei.A < ej.A
		}
		if ei.B != ej.B {
			return ei.B < ej.B
		}
		return ei.Type < ej.Type
	})

	return snap
}

// Restore rebuilds a PathDB from snap. Entity and relation IDs in the
// rebuilt image are identical to the image Take captured them from,
// since both the interner and the entity/relation stores assign IDs by
// strictly increasing insertion order.
func Restore(snap *Snapshot) (*pathdb.PathDB, error) {
	if snap.Version != CurrentVersion {
		return nil, fmt.Errorf("snapshot: unsupported version %d (this build understands %d)", snap.Version, CurrentVersion)
	}

	in := interner.Restore(snap.Strings)
	db := pathdb.Restore(in)

	lookup := func(id pathdb.StrID) (string, error) {
		s, ok := in.Lookup(id)
		if !ok {
			return "", fmt.Errorf("snapshot: dangling string id %d", id)
		}
		return s, nil
	}
	decodeAttrs := func(attrs []Attr) ([]pathdb.Attr, error) {
		out := make([]pathdb.Attr, len(attrs))
		for i, a := range attrs {
			k, err := lookup(a.Key)
			if err != nil {
				return nil, err
			}
			v, err := lookup(a.Value)
			if err != nil {
				return nil, err
			}
			out[i] = pathdb.Attr{Key: k, Value: v}
		}
		return out, nil
	}

	for i, rec := range snap.Entities {
		typeName, err := lookup(rec.Type)
		if err != nil {
			return nil, err
		}
		attrs, err := decodeAttrs(rec.Attrs)
		if err != nil {
			return nil, err
		}
		id := db.Entities.Add(typeName, attrs)
		if int(id) != i {
			return nil, fmt.Errorf("snapshot: entity id drift: expected %d, got %d", i, id)
		}
		for _, vt := range rec.VirtualTypes {
			vtName, err := lookup(vt)
			if err != nil {
				return nil, err
			}
			db.Entities.MarkVirtualType(id, vtName)
		}
	}

	for i, rec := range snap.Relations {
		relType, err := lookup(rec.Type)
		if err != nil {
			return nil, err
		}
		attrs, err := decodeAttrs(rec.Attrs)
		if err != nil {
			return nil, err
		}
		id, err := db.Relations.Add(relType, rec.Source, rec.Target, rec.Confidence, attrs)
		if err != nil {
			return nil, fmt.Errorf("snapshot: replaying relation %d: %w", i, err)
		}
		if int(id) != i {
			return nil, fmt.Errorf("snapshot: relation id drift: expected %d, got %d", i, id)
		}
	}

	for _, rec := range snap.Equivalence {
		typeName, err := lookup(rec.Type)
		if err != nil {
			return nil, err
		}
		db.Equivalence.Add(rec.A, rec.B, typeName)
	}

	return db, nil
}

// Encode serializes snap to its on-disk `.axpd` form: CBOR, for a
// compact binary full-image encoding rather than a textual one now that
// checkpoints are written routinely by every WAL commit.
func Encode(snap *Snapshot) ([]byte, error) {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("snapshot: building encode mode: %w", err)
	}
	return mode.Marshal(snap)
}

// Decode parses the on-disk `.axpd` CBOR form back into a Snapshot.
func Decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot: decoding: %w", err)
	}
	return &snap, nil
}
