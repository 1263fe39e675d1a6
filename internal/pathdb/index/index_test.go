package index_test

import (
	"testing"
	"time"

	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/axiograph/axiograph/internal/pathdb/index"
	"github.com/stretchr/testify/require"
)

func TestTokenizeCamelCaseAndPunctuation(t *testing.T) {
	require.Equal(t, []string{"payment", "service"}, index.Tokenize("PaymentService"))
	require.Equal(t, []string{"acme", "corp", "ltd"}, index.Tokenize("Acme_Corp.ltd"))
}

func TestTokenizeDropsStopwordsAndShortTokens(t *testing.T) {
	toks := index.Tokenize("the cat is on a mat")
	require.Equal(t, []string{"cat", "mat"}, toks)
}

func TestTypeIndexEventuallyConsistent(t *testing.T) {
	db := pathdb.New()
	a, err := db.AddEntity("Person", nil)
	require.NoError(t, err)
	_, err = db.AddEntity("Company", nil)
	require.NoError(t, err)

	tc := index.NewTypeIndexCache(db)
	typeID, ok := db.Interner.IDOf("Person")
	require.True(t, ok)

	bm := tc.EntitiesOfType(typeID)
	require.True(t, bm.Contains(uint32(a)))
	require.EqualValues(t, 1, bm.GetCardinality())

	// Give the async rebuild goroutine a moment, then re-query: once the
	// background build lands the cached path takes over.
	time.Sleep(20 * time.Millisecond)
	bm2 := tc.EntitiesOfType(typeID)
	require.True(t, bm2.Contains(uint32(a)))
}

func TestTextIndexQueryAnyAndAll(t *testing.T) {
	db := pathdb.New()
	a, err := db.AddEntity("Doc", []pathdb.Attr{{Key: "body", Value: "PaymentService outage"}})
	require.NoError(t, err)
	_, err = db.AddEntity("Doc", []pathdb.Attr{{Key: "body", Value: "unrelated text"}})
	require.NoError(t, err)

	tic := index.NewTextIndexCache(db)
	bodyKey, ok := db.Interner.IDOf("body")
	require.True(t, ok)

	any := tic.QueryAny(bodyKey, []string{"payment", "nonexistent"})
	require.True(t, any.Contains(uint32(a)))

	all := tic.QueryAll(bodyKey, []string{"payment", "service"})
	require.True(t, all.Contains(uint32(a)))

	none := tic.QueryAll(bodyKey, []string{"payment", "nonexistent"})
	require.EqualValues(t, 0, none.GetCardinality())
}

func TestReachableBoundedBFS(t *testing.T) {
	db := pathdb.New()
	a, _ := db.AddEntity("N", nil)
	b, _ := db.AddEntity("N", nil)
	c, _ := db.AddEntity("N", nil)
	_, err := db.AddRelation("next", a, b, 1, nil)
	require.NoError(t, err)
	_, err = db.AddRelation("next", b, c, 1, nil)
	require.NoError(t, err)

	relID, _ := db.RelTypeID("next")

	oneHop := index.Reachable(db, a, relID, 1)
	require.True(t, oneHop.Contains(uint32(b)))
	require.False(t, oneHop.Contains(uint32(c)))

	twoHops := index.Reachable(db, a, relID, 2)
	require.True(t, twoHops.Contains(uint32(b)))
	require.True(t, twoHops.Contains(uint32(c)))
}
