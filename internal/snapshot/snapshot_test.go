package snapshot_test

import (
	"testing"

	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/axiograph/axiograph/internal/snapshot"
	"github.com/stretchr/testify/require"
)

func buildSample(t *testing.T) *pathdb.PathDB {
	t.Helper()
	db := pathdb.New()
	err := db.Mutate(func(db *pathdb.PathDB) error {
		alice := db.Entities.Add("Person", []pathdb.Attr{{Key: "name", Value: "alice"}})
		bob := db.Entities.Add("Person", []pathdb.Attr{{Key: "name", Value: "bob"}})
		db.Entities.MarkVirtualType(alice, "Employee")
		if _, err := db.Relations.Add("knows", alice, bob, 0.9, []pathdb.Attr{{Key: "since", Value: "2020"}}); err != nil {
			return err
		}
		db.Equivalence.Add(alice, bob, "same_as")
		return nil
	})
	require.NoError(t, err)
	return db
}

func TestTakeRestoreRoundTripsIdentically(t *testing.T) {
	db := buildSample(t)
	snap := snapshot.Take(db)

	restored, err := snapshot.Restore(snap)
	require.NoError(t, err)

	require.Equal(t, db.Entities.Len(), restored.Entities.Len())
	require.Equal(t, db.Relations.Len(), restored.Relations.Len())

	for id := 0; id < db.Entities.Len(); id++ {
		origType, _ := db.TypeName(pathdb.EntityID(id))
		gotType, _ := restored.TypeName(pathdb.EntityID(id))
		require.Equal(t, origType, gotType)

		origName, _ := db.AttrString(pathdb.EntityID(id), "name")
		gotName, _ := restored.AttrString(pathdb.EntityID(id), "name")
		require.Equal(t, origName, gotName)
	}

	snap2 := snapshot.Take(restored)
	require.Equal(t, snap, snap2)
}

func TestEncodeDecodeRoundTrips(t *testing.T) {
	db := buildSample(t)
	snap := snapshot.Take(db)

	data, err := snapshot.Encode(snap)
	require.NoError(t, err)

	decoded, err := snapshot.Decode(data)
	require.NoError(t, err)
	require.Equal(t, snap, decoded)

	restored, err := snapshot.Restore(decoded)
	require.NoError(t, err)
	require.Equal(t, db.Entities.Len(), restored.Entities.Len())
}

func TestRestoreRejectsUnknownVersion(t *testing.T) {
	snap := &snapshot.Snapshot{Version: 999}
	_, err := snapshot.Restore(snap)
	require.Error(t, err)
}
