package wal

import "github.com/axiograph/axiograph/internal/digest"

// OpKind discriminates the three overlay ops a WAL snapshot can replay.
type OpKind string

const (
	OpImportChunks     OpKind = "ImportChunks"
	OpImportProposals  OpKind = "ImportProposals"
	OpImportEmbeddings OpKind = "ImportEmbeddings"
)

// Op is one overlay operation: apply the content-addressed blob at Path
// (whose content must hash to BlobDigest) to the live PathDB. Ops are
// pure with respect to the accepted plane: applying one never reads or
// mutates anything outside its own blob and the base image.
type Op struct {
	Kind       OpKind    `json:"kind"`
	BlobDigest digest.ID `json:"blob_digest"`
	Path       string    `json:"path"`
}

// SnapshotRecord is the on-disk WAL snapshot: its accepted-plane base
// and the full, cumulative list of ops replayed from that base to reach
// this point (not just this commit's increment), so `build` can always
// reconstruct a snapshot from the accepted base plus SnapshotRecord.Ops
// alone.
type SnapshotRecord struct {
	PreviousSnapshotID digest.ID `json:"previous_snapshot_id,omitempty"`
	AcceptedSnapshotID digest.ID `json:"accepted_snapshot_id"`
	Ops                []Op      `json:"ops"`
}

// LogEvent is one line of pathdb_wal.log.jsonl: a durable record of one
// commit.
type LogEvent struct {
	Action             string    `json:"action"`
	SnapshotID         digest.ID `json:"snapshot_id"`
	PreviousSnapshotID digest.ID `json:"prev,omitempty"`
	AcceptedSnapshotID digest.ID `json:"accepted_snapshot_id"`
	Message            string    `json:"message,omitempty"`
	OpCount            int       `json:"op_count"`
	CreatedAtUnixSecs  int64     `json:"created_at_unix_secs"`
}

// Embedding is a minimal externally-produced vector attached to an
// entity by name. The core stores it content-addressed and applies it
// as a comma-joined vector string on a self-loop relation of the named
// entity, but does not itself
// index or search vectors — that remains an external collaborator's
// concern per the core's non-goals.
type Embedding struct {
	EntityName string    `json:"entity_name"`
	Vector     []float32 `json:"vector"`
}
