package index

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/axiograph/axiograph/internal/pathdb"
)

// TypeIndex maps a (primary or virtual) type ID to the bitmap of entities
// carrying it.
type TypeIndex struct {
	byType map[pathdb.StrID]*roaring.Bitmap
}

// TypeIndexCache is a generation-gated, rebuild-on-demand TypeIndex.
type TypeIndexCache struct {
	c   *cache[*TypeIndex]
	db  *pathdb.PathDB
}

// NewTypeIndexCache creates a type index cache bound to db.
func NewTypeIndexCache(db *pathdb.PathDB) *TypeIndexCache {
	return &TypeIndexCache{c: newCache[*TypeIndex](), db: db}
}

func buildTypeIndex(db *pathdb.PathDB) *TypeIndex {
	idx := &TypeIndex{byType: make(map[pathdb.StrID]*roaring.Bitmap)}
	add := func(id pathdb.EntityID, typeID pathdb.StrID) {
		bm, ok := idx.byType[typeID]
		if !ok {
			bm = roaring.New()
			idx.byType[typeID] = bm
		}
		bm.Add(uint32(id))
	}
	db.Entities.EachType(func(id pathdb.EntityID, typeID pathdb.StrID) {
		add(id, typeID)
		for _, extra := range db.Entities.VirtualTypes(id) {
			add(id, extra)
		}
	})
	return idx
}

func scanEntitiesOfType(db *pathdb.PathDB, typeID pathdb.StrID) *roaring.Bitmap {
	out := roaring.New()
	db.Entities.EachType(func(id pathdb.EntityID, primary pathdb.StrID) {
		if primary == typeID {
			out.Add(uint32(id))
			return
		}
		for _, extra := range db.Entities.VirtualTypes(id) {
			if extra == typeID {
				out.Add(uint32(id))
				return
			}
		}
	})
	return out
}

// EntitiesOfType returns the bitmap of entities whose primary or virtual
// type is typeID.
func (tc *TypeIndexCache) EntitiesOfType(typeID pathdb.StrID) *roaring.Bitmap {
	return withIndexOrFallback(
		tc.c, tc.db,
		func() *TypeIndex { return buildTypeIndex(tc.db) },
		func() *roaring.Bitmap { return scanEntitiesOfType(tc.db, typeID) },
		func(idx *TypeIndex) *roaring.Bitmap {
			bm, ok := idx.byType[typeID]
			if !ok {
				return roaring.New()
			}
			return bm.Clone()
		},
	)
}
