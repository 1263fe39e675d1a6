// Package wal implements the PathDB write-ahead log: an append-only
// overlay store of evidence-plane ops (document chunks, proposals,
// embeddings) layered on top of a named accepted-plane snapshot, with
// checkpoints for fast checkout of any given overlay state.
package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/axiograph/axiograph/internal/accepted"
	"github.com/axiograph/axiograph/internal/digest"
	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/axiograph/axiograph/internal/pathdb/index"
	"github.com/axiograph/axiograph/internal/snapshot"
)

// Error kinds surfaced by the WAL (§7). They mirror the accepted plane's
// sentinels of the same names but are distinct values: errors.Is against
// accepted.ErrSnapshotNotFound does not match a WAL error.
var (
	ErrSnapshotAmbiguous = errors.New("wal: snapshot id is ambiguous")
	ErrSnapshotNotFound  = errors.New("wal: snapshot not found")
)

func rootOf(acceptedDir string) string { return filepath.Join(acceptedDir, "pathdb") }
func headPath(acceptedDir string) string { return filepath.Join(rootOf(acceptedDir), "HEAD") }
func blobsDir(acceptedDir string) string { return filepath.Join(rootOf(acceptedDir), "blobs") }
func snapshotsDir(acceptedDir string) string {
	return filepath.Join(rootOf(acceptedDir), "snapshots")
}
func checkpointsDir(acceptedDir string) string {
	return filepath.Join(rootOf(acceptedDir), "checkpoints")
}
func logPath(acceptedDir string) string {
	return filepath.Join(acceptedDir, "pathdb_wal.log.jsonl")
}

func filenameForm(id digest.ID) string {
	return strings.Replace(string(id), ":", "_", 1)
}

func snapshotPath(acceptedDir string, id digest.ID) string {
	return filepath.Join(snapshotsDir(acceptedDir), filenameForm(id)+".json")
}

func checkpointPath(acceptedDir string, id digest.ID) string {
	return filepath.Join(checkpointsDir(acceptedDir), filenameForm(id)+".axpd")
}

func blobPath(acceptedDir string, d digest.ID, ext string) string {
	return filepath.Join(blobsDir(acceptedDir), filenameForm(d)+"."+ext)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("wal: creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("wal: creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("wal: writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("wal: closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("wal: replacing %s: %w", path, err)
	}
	return os.Chmod(path, perm)
}

func appendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("wal: creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 - caller-controlled directory
	if err != nil {
		return fmt.Errorf("wal: opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	_, err = f.Write(append(line, '\n'))
	return err
}

// writeBlobIfAbsent content-addresses data under blobs/<digest>.<ext>,
// a no-op if that exact content is already stored.
func writeBlobIfAbsent(acceptedDir string, data []byte, ext string) (digest.ID, error) {
	d := digest.Of(data)
	path := blobPath(acceptedDir, d, ext)
	if _, err := os.Stat(path); err == nil {
		return d, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("wal: checking blob %s: %w", path, err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return d, nil
}

// ReadHEAD returns the WAL's current snapshot ID, or "" if nothing has
// been committed yet.
func ReadHEAD(acceptedDir string) (digest.ID, error) {
	data, err := os.ReadFile(headPath(acceptedDir)) // #nosec G304 - caller-controlled directory
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("wal: reading HEAD: %w", err)
	}
	return digest.ID(strings.TrimSpace(string(data))), nil
}

func writeHEAD(acceptedDir string, id digest.ID) error {
	return writeFileAtomic(headPath(acceptedDir), []byte(string(id)+"\n"), 0o644)
}

// ReadSnapshotRecord loads the WAL snapshot record for id.
func ReadSnapshotRecord(acceptedDir string, id digest.ID) (*SnapshotRecord, error) {
	data, err := os.ReadFile(snapshotPath(acceptedDir, id)) // #nosec G304 - caller-controlled directory
	if err != nil {
		return nil, fmt.Errorf("wal: %w: reading snapshot %s: %v", ErrSnapshotNotFound, id, err)
	}
	var rec SnapshotRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("wal: decoding snapshot %s: %w", id, err)
	}
	return &rec, nil
}

// computeSnapshotID fingerprints (prev, accepted base, ops) so the ID
// depends only on content and replay order, matching §3's WAL snapshot
// determinism requirement.
func computeSnapshotID(prev, acceptedBase digest.ID, ops []Op) digest.ID {
	b := digest.NewBuilder().
		WriteString("axi_wal_snapshot_v1").
		WriteString(string(prev)).
		WriteString(string(acceptedBase))
	for _, op := range ops {
		b.WriteString(string(op.Kind)).WriteString(string(op.BlobDigest)).WriteString(op.Path)
	}
	return b.Sum()
}

// loadBase reconstructs the PathDB to replay onto: the prior WAL head's
// checkpoint when its accepted base matches acceptedID (fast path, no
// replay needed — the checkpoint already reflects every prior op), else
// a fresh accepted-plane image with the prior op chain replayed onto it,
// else (no prior WAL head, or a differing accepted base) a bare
// accepted-plane image with no prior ops.
func loadBase(acceptedDir string, acceptedID digest.ID, logger *slog.Logger) (*pathdb.PathDB, []Op, error) {
	priorID, err := ReadHEAD(acceptedDir)
	if err != nil {
		return nil, nil, err
	}
	if priorID == "" {
		db, _, err := accepted.BuildImage(acceptedDir, string(acceptedID))
		return db, nil, err
	}

	priorRec, err := ReadSnapshotRecord(acceptedDir, priorID)
	if err != nil {
		return nil, nil, err
	}
	if priorRec.AcceptedSnapshotID != acceptedID {
		logger.Info("wal: accepted base changed, starting a fresh overlay lineage",
			"previous_base", string(priorRec.AcceptedSnapshotID), "new_base", string(acceptedID))
		db, _, err := accepted.BuildImage(acceptedDir, string(acceptedID))
		return db, nil, err
	}

	if data, err := os.ReadFile(checkpointPath(acceptedDir, priorID)); err == nil { // #nosec G304 - caller-controlled directory
		snap, err := snapshot.Decode(data)
		if err != nil {
			return nil, nil, fmt.Errorf("wal: decoding checkpoint %s: %w", priorID, err)
		}
		db, err := snapshot.Restore(snap)
		if err != nil {
			return nil, nil, fmt.Errorf("wal: restoring checkpoint %s: %w", priorID, err)
		}
		return db, priorRec.Ops, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("wal: reading checkpoint %s: %w", priorID, err)
	}

	db, _, err := accepted.BuildImage(acceptedDir, string(acceptedID))
	if err != nil {
		return nil, nil, err
	}
	if err := replayOps(acceptedDir, db, priorRec.Ops); err != nil {
		return nil, nil, err
	}
	return db, priorRec.Ops, nil
}

// Commit resolves acceptedRef against the accepted plane rooted at
// acceptedDir, applies chunks/proposals/embeddings as new overlay ops on
// top of the prior WAL state, and advances the WAL HEAD under
// acceptedDir/pathdb.
func Commit(acceptedDir, acceptedRef string, chunks []accepted.Chunk, proposals []accepted.Proposal, embeddings []Embedding, message string, logger *slog.Logger) (digest.ID, error) {
	if logger == nil {
		logger = slog.Default()
	}

	acceptedID, err := accepted.Resolve(acceptedDir, acceptedRef)
	if err != nil {
		return "", err
	}
	if acceptedID == "" {
		return "", fmt.Errorf("wal: accepted plane at %s has no promotions to build on", acceptedDir)
	}

	priorID, err := ReadHEAD(acceptedDir)
	if err != nil {
		return "", err
	}
	db, priorOps, err := loadBase(acceptedDir, acceptedID, logger)
	if err != nil {
		return "", err
	}

	newOps, err := applyNewOps(acceptedDir, db, chunks, proposals, embeddings)
	if err != nil {
		return "", err
	}
	allOps := append(append([]Op{}, priorOps...), newOps...)

	warmIndexes(db)

	snapshotID := computeSnapshotID(priorID, acceptedID, allOps)

	rec := &SnapshotRecord{
		PreviousSnapshotID: priorID,
		AcceptedSnapshotID: acceptedID,
		Ops:                allOps,
	}
	recData, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	recPath := snapshotPath(acceptedDir, snapshotID)
	switch existing, readErr := os.ReadFile(recPath); { // #nosec G304 - path derived from a content digest
	case readErr == nil:
		var existingRec SnapshotRecord
		if err := json.Unmarshal(existing, &existingRec); err != nil {
			return "", fmt.Errorf("wal: decoding existing snapshot %s: %w", recPath, err)
		}
		if !reflect.DeepEqual(existingRec.Ops, allOps) || existingRec.AcceptedSnapshotID != acceptedID {
			return "", fmt.Errorf("wal: snapshot %s already recorded with a different op set", snapshotID)
		}
	case errors.Is(readErr, os.ErrNotExist):
		if err := writeFileAtomic(recPath, recData, 0o644); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("wal: reading snapshot %s: %w", recPath, readErr)
	}

	cpPath := checkpointPath(acceptedDir, snapshotID)
	if _, err := os.Stat(cpPath); errors.Is(err, os.ErrNotExist) {
		snap := snapshot.Take(db)
		data, err := snapshot.Encode(snap)
		if err != nil {
			return "", fmt.Errorf("wal: encoding checkpoint: %w", err)
		}
		if err := writeFileAtomic(cpPath, data, 0o644); err != nil {
			return "", err
		}
	}

	if err := writeHEAD(acceptedDir, snapshotID); err != nil {
		return "", err
	}

	event := LogEvent{
		Action:             "commit",
		SnapshotID:         snapshotID,
		PreviousSnapshotID: priorID,
		AcceptedSnapshotID: acceptedID,
		Message:            message,
		OpCount:            len(allOps),
		CreatedAtUnixSecs:  time.Now().Unix(),
	}
	eventData, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	if err := appendLine(logPath(acceptedDir), eventData); err != nil {
		return "", err
	}

	logger.Info("committed WAL overlay", "snapshot_id", string(snapshotID), "ops", len(allOps))
	return snapshotID, nil
}

// BuildOptions controls how Build materializes a WAL snapshot.
type BuildOptions struct {
	// Rebuild forces the slow path (replay from the accepted base) even
	// when a checkpoint already exists.
	Rebuild bool
}

// Build materializes an `.axpd` for a WAL snapshot at out. Fast path: if
// a checkpoint exists and options.Rebuild is false, hard-link (falling
// back to a copy across filesystems) it out. Slow path: reconstruct the
// base PathDB from the referenced accepted snapshot and replay the
// snapshot's ops in order.
func Build(acceptedDir, snapshotID, out string, options BuildOptions) error {
	id, err := Resolve(acceptedDir, snapshotID)
	if err != nil {
		return err
	}

	cpPath := checkpointPath(acceptedDir, id)
	if !options.Rebuild {
		if _, err := os.Stat(cpPath); err == nil {
			return linkOrCopy(cpPath, out)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("wal: checking checkpoint %s: %w", cpPath, err)
		}
	}

	rec, err := ReadSnapshotRecord(acceptedDir, id)
	if err != nil {
		return err
	}
	db, _, err := accepted.BuildImage(acceptedDir, string(rec.AcceptedSnapshotID))
	if err != nil {
		return err
	}
	if err := replayOps(acceptedDir, db, rec.Ops); err != nil {
		return err
	}
	warmIndexes(db)

	snap := snapshot.Take(db)
	data, err := snapshot.Encode(snap)
	if err != nil {
		return fmt.Errorf("wal: encoding snapshot: %w", err)
	}
	return os.WriteFile(out, data, 0o644) // #nosec G306 - caller-chosen output path
}

// Resolve turns a WAL snapshot reference ("HEAD"/"latest", full ID, or
// unique prefix) into a concrete snapshot ID.
func Resolve(acceptedDir, ref string) (digest.ID, error) {
	if ref == "" || ref == "HEAD" || ref == "latest" {
		return ReadHEAD(acceptedDir)
	}
	candidate := strings.TrimSuffix(ref, ".json")
	candidate = strings.Replace(candidate, "_", ":", 1)

	entries, err := os.ReadDir(snapshotsDir(acceptedDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSnapshotNotFound, ref)
		}
		return "", fmt.Errorf("wal: listing snapshots: %w", err)
	}
	var matches []digest.ID
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		id := digest.ID(strings.Replace(name, "_", ":", 1))
		if string(id) == candidate || strings.HasPrefix(string(id), candidate) || strings.HasPrefix(id.Hex(), candidate) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrSnapshotNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d snapshots", ErrSnapshotAmbiguous, ref, len(matches))
	}
}

func linkOrCopy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("wal: creating %s: %w", filepath.Dir(dst), err)
	}
	_ = os.Remove(dst)
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src) // #nosec G304 - path derived from a content digest
	if err != nil {
		return fmt.Errorf("wal: opening checkpoint %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dst) // #nosec G304 - caller-chosen output path
	if err != nil {
		return fmt.Errorf("wal: creating %s: %w", dst, err)
	}
	defer func() { _ = out.Close() }()
	_, err = io.Copy(out, in)
	return err
}

// warmIndexes creates a type, text and fact index cache over db and runs
// one fact-index build against db's final generation. The caches are
// local to this call and are not kept, so a later reader's own cache
// still builds its index on first use.
func warmIndexes(db *pathdb.PathDB) {
	index.NewTypeIndexCache(db)
	index.NewTextIndexCache(db)
	index.NewFactIndexCache(db).WithIndex(func(*index.FactIndex) {})
}
