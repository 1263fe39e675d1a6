// Package axiograph provides a minimal public API for programmatic
// access to an Axiograph knowledge graph: promoting modules into the
// accepted plane, committing evidence overlays onto the WAL, and
// materializing queryable PathDB images from either.
//
// Most callers embedding Axiograph need only this surface; the
// internal/ subpackages remain importable directly for anything more
// specialized (custom constraint checks, a different quality profile,
// direct PathDB access).
package axiograph

import (
	"log/slog"

	"github.com/axiograph/axiograph/internal/accepted"
	"github.com/axiograph/axiograph/internal/config"
	"github.com/axiograph/axiograph/internal/digest"
	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/axiograph/axiograph/internal/wal"
)

// Core types for working with modules, chunks, and proposals
type (
	Chunk          = accepted.Chunk
	Proposal       = accepted.Proposal
	ProposalKind   = accepted.ProposalKind
	Embedding      = wal.Embedding
	QualityProfile = config.QualityProfile
	SnapshotID     = digest.ID
	PathDB         = pathdb.PathDB
)

// Quality profile constants
const (
	QualityOff    = config.QualityOff
	QualityFast   = config.QualityFast
	QualityStrict = config.QualityStrict
)

// Proposal kind constants
const (
	ProposalEntity   = accepted.ProposalEntity
	ProposalRelation = accepted.ProposalRelation
)

// NewChunkID and NewProposalID mint fresh IDs for evidence-plane records.
func NewChunkID() string    { return accepted.NewChunkID() }
func NewProposalID() string { return accepted.NewProposalID() }

// LoadConfig reads the accepted-plane layout and quality profile from
// dir/axiograph.yaml, falling back to defaults if absent.
func LoadConfig(dir string) config.AcceptedPlaneConfig {
	return config.Load(dir)
}

// Promote parses, typechecks, constraint-checks, and (per profile)
// quality-gates candidateText, then stores it as a new module in the
// accepted plane rooted at dir, returning the new snapshot ID.
func Promote(dir, candidateText, message string, profile QualityProfile, logger *slog.Logger) (SnapshotID, error) {
	return accepted.Promote(dir, candidateText, message, profile, logger)
}

// ResolveAccepted turns an accepted-plane snapshot reference ("HEAD",
// "latest", a full ID, or a unique prefix) into a concrete snapshot ID.
func ResolveAccepted(dir, ref string) (SnapshotID, error) {
	return accepted.Resolve(dir, ref)
}

// BuildImage reconstructs the PathDB image for an accepted-plane
// snapshot in memory.
func BuildImage(dir, ref string) (*PathDB, SnapshotID, error) {
	return accepted.BuildImage(dir, ref)
}

// BuildFromSnapshot materializes an accepted-plane snapshot to an
// `.axpd` file at out.
func BuildFromSnapshot(dir, ref, out string) error {
	return accepted.BuildFromSnapshot(dir, ref, out)
}

// Commit applies an evidence overlay (chunks, proposals, embeddings) on
// top of the WAL state built on the accepted-plane snapshot named by
// acceptedRef, returning the new WAL snapshot ID.
func Commit(dir, acceptedRef string, chunks []Chunk, proposals []Proposal, embeddings []Embedding, message string, logger *slog.Logger) (SnapshotID, error) {
	return wal.Commit(dir, acceptedRef, chunks, proposals, embeddings, message, logger)
}

// ResolveWAL turns a WAL snapshot reference into a concrete snapshot ID.
func ResolveWAL(dir, ref string) (SnapshotID, error) {
	return wal.Resolve(dir, ref)
}

// BuildWAL materializes an `.axpd` file for a WAL snapshot.
func BuildWAL(dir, snapshotID, out string, rebuild bool) error {
	return wal.Build(dir, snapshotID, out, wal.BuildOptions{Rebuild: rebuild})
}
