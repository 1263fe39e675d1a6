package index

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/axiograph/axiograph/internal/pathdb"
)

// MaxPathDepth bounds every path traversal in this package: queries
// asking for more hops than this are truncated rather than run
// unbounded, since nothing here rejects cyclic graphs.
const MaxPathDepth = 32

// Reachable performs a bounded-depth breadth-first search from start,
// following only edges of relation type relType, and returns the set of
// entities reached within maxDepth hops (start itself is never
// included). maxDepth is clamped to MaxPathDepth.
func Reachable(db *pathdb.PathDB, start pathdb.EntityID, relType pathdb.StrID, maxDepth int) *roaring.Bitmap {
	if maxDepth > MaxPathDepth {
		maxDepth = MaxPathDepth
	}
	out := roaring.New()
	if maxDepth <= 0 {
		return out
	}

	visited := map[pathdb.EntityID]bool{start: true}
	frontier := []pathdb.EntityID{start}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []pathdb.EntityID
		for _, id := range frontier {
			for _, rel := range db.Relations.Outgoing(id, relType) {
				if visited[rel.Target] {
					continue
				}
				visited[rel.Target] = true
				out.Add(uint32(rel.Target))
				next = append(next, rel.Target)
			}
		}
		frontier = next
	}
	return out
}

// ReachableVia is Reachable but follows a sequence of relation types in
// order, one hop per step (a fixed-length path pattern rather than a
// single relation type repeated). Each step's frontier becomes the next
// step's start set.
func ReachableVia(db *pathdb.PathDB, start pathdb.EntityID, relTypes []pathdb.StrID) *roaring.Bitmap {
	frontier := []pathdb.EntityID{start}
	for _, relType := range relTypes {
		seen := make(map[pathdb.EntityID]bool)
		var next []pathdb.EntityID
		for _, id := range frontier {
			for _, rel := range db.Relations.Outgoing(id, relType) {
				if !seen[rel.Target] {
					seen[rel.Target] = true
					next = append(next, rel.Target)
				}
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	out := roaring.New()
	for _, id := range frontier {
		out.Add(uint32(id))
	}
	return out
}
