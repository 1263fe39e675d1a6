package axiograph_test

import (
	"testing"

	"github.com/axiograph/axiograph"
	"github.com/stretchr/testify/require"
)

const sampleModule = `module org

schema org:
  object Person
  object Company
  relation employs(employer: Company, employee: Person)

instance i of org:
  Person = {alice}
  Company = {acme}
  employs = {(employer=acme, employee=alice)}
`

func TestPromoteThenCommitThenBuild(t *testing.T) {
	dir := t.TempDir()

	snapID, err := axiograph.Promote(dir, sampleModule, "initial import", axiograph.QualityFast, nil)
	require.NoError(t, err)
	require.False(t, snapID.Empty())

	resolved, err := axiograph.ResolveAccepted(dir, "latest")
	require.NoError(t, err)
	require.Equal(t, snapID, resolved)

	chunks := []axiograph.Chunk{{
		ChunkID:    axiograph.NewChunkID(),
		DocumentID: "doc-1",
		Text:       "Alice works at Acme.",
		Metadata:   map[string]string{"about_type": "Person", "about_name": "alice"},
	}}
	walID, err := axiograph.Commit(dir, "latest", chunks, nil, nil, "evidence overlay", nil)
	require.NoError(t, err)
	require.False(t, walID.Empty())

	db, _, err := axiograph.BuildImage(dir, "latest")
	require.NoError(t, err)
	require.NotNil(t, db)
}

func TestConstants(t *testing.T) {
	require.Equal(t, axiograph.QualityProfile("off"), axiograph.QualityOff)
	require.Equal(t, axiograph.QualityProfile("fast"), axiograph.QualityFast)
	require.Equal(t, axiograph.QualityProfile("strict"), axiograph.QualityStrict)
	require.Equal(t, axiograph.ProposalKind("entity"), axiograph.ProposalEntity)
	require.Equal(t, axiograph.ProposalKind("relation"), axiograph.ProposalRelation)
}
