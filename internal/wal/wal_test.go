package wal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/axiograph/axiograph/internal/accepted"
	"github.com/axiograph/axiograph/internal/config"
	"github.com/axiograph/axiograph/internal/wal"
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

func promoteSample(t *testing.T, dir string) {
	t.Helper()
	_, err := accepted.Promote(dir, sampleModule, "", config.QualityOff, nil)
	require.NoError(t, err)
}

func TestCommitAdvancesHEADAndRecordsOps(t *testing.T) {
	dir := t.TempDir()
	promoteSample(t, dir)

	chunks := []accepted.Chunk{{
		ChunkID:    accepted.NewChunkID(),
		DocumentID: "doc-1",
		Text:       "Alice works at Acme.",
		SpanID:     "doc-1:0",
		Metadata:   map[string]string{"about_type": "Person", "about_name": "alice"},
	}}

	id, err := wal.Commit(dir, "latest", chunks, nil, nil, "first overlay", nil)
	require.NoError(t, err)
	require.False(t, id.Empty())

	head, err := wal.ReadHEAD(dir)
	require.NoError(t, err)
	require.Equal(t, id, head)

	rec, err := wal.ReadSnapshotRecord(dir, id)
	require.NoError(t, err)
	require.Len(t, rec.Ops, 1)
	require.Equal(t, wal.OpImportChunks, rec.Ops[0].Kind)
	require.True(t, rec.PreviousSnapshotID.Empty())
}

func TestCommitOpsAreCumulativeAcrossSnapshots(t *testing.T) {
	dir := t.TempDir()
	promoteSample(t, dir)

	chunk1 := []accepted.Chunk{{ChunkID: accepted.NewChunkID(), DocumentID: "d1", Text: "first"}}
	id1, err := wal.Commit(dir, "latest", chunk1, nil, nil, "", nil)
	require.NoError(t, err)

	chunk2 := []accepted.Chunk{{ChunkID: accepted.NewChunkID(), DocumentID: "d2", Text: "second"}}
	id2, err := wal.Commit(dir, "latest", chunk2, nil, nil, "", nil)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	rec2, err := wal.ReadSnapshotRecord(dir, id2)
	require.NoError(t, err)
	require.Len(t, rec2.Ops, 2)
	require.Equal(t, id1, rec2.PreviousSnapshotID)
}

func TestCommitStartsFreshLineageWhenAcceptedBaseChanges(t *testing.T) {
	dir := t.TempDir()
	promoteSample(t, dir)

	chunk1 := []accepted.Chunk{{ChunkID: accepted.NewChunkID(), DocumentID: "d1", Text: "first"}}
	_, err := wal.Commit(dir, "latest", chunk1, nil, nil, "", nil)
	require.NoError(t, err)

	secondModule := `module geo

schema geo:
  object City

instance i of geo:
  City = {springfield}
`
	_, err = accepted.Promote(dir, secondModule, "", config.QualityOff, nil)
	require.NoError(t, err)

	chunk2 := []accepted.Chunk{{ChunkID: accepted.NewChunkID(), DocumentID: "d2", Text: "second"}}
	id2, err := wal.Commit(dir, "latest", chunk2, nil, nil, "", nil)
	require.NoError(t, err)

	rec2, err := wal.ReadSnapshotRecord(dir, id2)
	require.NoError(t, err)
	require.Len(t, rec2.Ops, 1, "ops should restart fresh, not inherit the prior accepted base's op chain")
}

func TestBuildFastPathReusesCheckpoint(t *testing.T) {
	dir := t.TempDir()
	promoteSample(t, dir)

	chunks := []accepted.Chunk{{ChunkID: accepted.NewChunkID(), DocumentID: "d1", Text: "evidence"}}
	id, err := wal.Commit(dir, "latest", chunks, nil, nil, "", nil)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "image.axpd")
	require.NoError(t, wal.Build(dir, string(id), out, wal.BuildOptions{}))

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))

	rebuiltOut := filepath.Join(t.TempDir(), "rebuilt.axpd")
	require.NoError(t, wal.Build(dir, string(id), rebuiltOut, wal.BuildOptions{Rebuild: true}))

	rebuiltInfo, err := os.Stat(rebuiltOut)
	require.NoError(t, err)
	require.Greater(t, rebuiltInfo.Size(), int64(0))
}

func TestCommitDeduplicatesIdenticalBlobs(t *testing.T) {
	dir := t.TempDir()
	promoteSample(t, dir)

	chunks := []accepted.Chunk{{ChunkID: "fixed-id", DocumentID: "d1", Text: "same text"}}
	id1, err := wal.Commit(dir, "latest", chunks, nil, nil, "", nil)
	require.NoError(t, err)

	rec1, err := wal.ReadSnapshotRecord(dir, id1)
	require.NoError(t, err)

	dir2 := t.TempDir()
	promoteSample(t, dir2)
	id2, err := wal.Commit(dir2, "latest", chunks, nil, nil, "", nil)
	require.NoError(t, err)
	rec2, err := wal.ReadSnapshotRecord(dir2, id2)
	require.NoError(t, err)

	require.Equal(t, rec1.Ops[0].BlobDigest, rec2.Ops[0].BlobDigest)
}

func TestResolveAcceptsHeadLatestFullAndPrefix(t *testing.T) {
	dir := t.TempDir()
	promoteSample(t, dir)

	chunks := []accepted.Chunk{{ChunkID: accepted.NewChunkID(), DocumentID: "d1", Text: "evidence"}}
	id, err := wal.Commit(dir, "latest", chunks, nil, nil, "", nil)
	require.NoError(t, err)

	for _, ref := range []string{"HEAD", "latest", string(id), id.Hex()[:8]} {
		resolved, err := wal.Resolve(dir, ref)
		require.NoError(t, err, "ref %q", ref)
		require.Equal(t, id, resolved)
	}
}

func TestCommitWithEmbeddingsAttachesVector(t *testing.T) {
	dir := t.TempDir()
	promoteSample(t, dir)

	embeddings := []wal.Embedding{{EntityName: "alice", Vector: []float32{0.1, 0.2, 0.3}}}
	id, err := wal.Commit(dir, "latest", nil, nil, embeddings, "", nil)
	require.NoError(t, err)

	rec, err := wal.ReadSnapshotRecord(dir, id)
	require.NoError(t, err)
	require.Len(t, rec.Ops, 1)
	require.Equal(t, wal.OpImportEmbeddings, rec.Ops[0].Kind)
}
