package pathdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddEntityAssignsDenseIDs(t *testing.T) {
	db := New()
	a, err := db.AddEntity("Person", []Attr{{Key: "name", Value: "Alice"}})
	require.NoError(t, err)
	b, err := db.AddEntity("Person", []Attr{{Key: "name", Value: "Bob"}})
	require.NoError(t, err)

	require.Equal(t, EntityID(0), a)
	require.Equal(t, EntityID(1), b)

	typeName, ok := db.TypeName(a)
	require.True(t, ok)
	require.Equal(t, "Person", typeName)

	name, ok := db.AttrString(a, "name")
	require.True(t, ok)
	require.Equal(t, "Alice", name)
}

func TestGenerationBumpsOncePerMutate(t *testing.T) {
	db := New()
	require.EqualValues(t, 0, db.Generation())

	err := db.Mutate(func(db *PathDB) error {
		db.Entities.Add("Person", nil)
		db.Entities.Add("Person", nil)
		return nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, db.Generation())
}

func TestAddRelationValidatesEndpoints(t *testing.T) {
	db := New()
	a, _ := db.AddEntity("Person", nil)
	b, _ := db.AddEntity("Person", nil)

	relID, err := db.AddRelation("Parent", a, b, 1.0, nil)
	require.NoError(t, err)
	require.EqualValues(t, 0, relID)

	_, err = db.AddRelation("Parent", a, EntityID(999), 1.0, nil)
	require.Error(t, err)

	_, err = db.AddRelation("Parent", a, b, 1.5, nil)
	require.Error(t, err)
}

func TestOutgoingAndHasEdge(t *testing.T) {
	db := New()
	a, _ := db.AddEntity("Person", nil)
	b, _ := db.AddEntity("Person", nil)
	c, _ := db.AddEntity("Person", nil)

	_, err := db.AddRelation("parent", a, b, 1.0, nil)
	require.NoError(t, err)
	_, err = db.AddRelation("parent", a, c, 1.0, nil)
	require.NoError(t, err)

	relID, ok := db.RelTypeID("parent")
	require.True(t, ok)

	out := db.Relations.Outgoing(a, relID)
	require.Len(t, out, 2)

	require.True(t, db.Relations.HasEdge(a, relID, b))
	require.False(t, db.Relations.HasEdge(b, relID, a))
}

func TestEntitiesWithAttrValue(t *testing.T) {
	db := New()
	a, _ := db.AddEntity("Person", []Attr{{Key: "city", Value: "NYC"}})
	b, _ := db.AddEntity("Person", []Attr{{Key: "city", Value: "NYC"}})
	_, _ = db.AddEntity("Person", []Attr{{Key: "city", Value: "SF"}})

	keyID, _ := db.Interner.IDOf("city")
	valID, _ := db.Interner.IDOf("NYC")
	bm := db.Entities.EntitiesWithAttrValue(keyID, valID)

	require.True(t, bm.Contains(uint32(a)))
	require.True(t, bm.Contains(uint32(b)))
	require.EqualValues(t, 2, bm.GetCardinality())
}

func TestEquivalenceIsSymmetric(t *testing.T) {
	db := New()
	a, _ := db.AddEntity("Person", nil)
	b, _ := db.AddEntity("Person", nil)

	db.Equivalence.Add(a, b, "same_as")

	require.True(t, db.Equivalence.AreEquivalent(a, b, "same_as"))
	require.True(t, db.Equivalence.AreEquivalent(b, a, "same_as"))
	require.False(t, db.Equivalence.AreEquivalent(a, b, "other"))
}
