// Package accepted implements the accepted plane: the content-addressed,
// append-only store of canonical, reviewed `.axi` modules, gated by
// typechecking and structured-constraint checking before a candidate is
// ever promoted into HEAD.
package accepted

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/axiograph/axiograph/internal/axi/ast"
	"github.com/axiograph/axiograph/internal/axi/parser"
	"github.com/axiograph/axiograph/internal/cert"
	"github.com/axiograph/axiograph/internal/config"
	"github.com/axiograph/axiograph/internal/constraints"
	"github.com/axiograph/axiograph/internal/digest"
	"github.com/axiograph/axiograph/internal/importer"
	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/axiograph/axiograph/internal/typecheck"
	"github.com/cenkalti/backoff/v4"
)

// ManifestVersion is the manifest format this package writes.
const ManifestVersion = 1

// Error kinds surfaced by the accepted plane (§7).
var (
	ErrDigestMismatch    = errors.New("accepted: digest mismatch")
	ErrSnapshotCollision = errors.New("accepted: snapshot collision")
	ErrSnapshotAmbiguous = errors.New("accepted: snapshot id is ambiguous")
	ErrSnapshotNotFound  = errors.New("accepted: snapshot not found")
	ErrUnknownConstraint = errors.New("accepted: module contains an unstructured constraint")
)

var sanitizePattern = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeName(name string) string {
	s := sanitizePattern.ReplaceAllString(name, "_")
	if s == "" {
		return "_"
	}
	return s
}

func filenameForm(id digest.ID) string {
	return strings.Replace(string(id), ":", "_", 1)
}

func headPath(dir string) string { return filepath.Join(dir, "HEAD") }

func manifestPath(dir string, id digest.ID) string {
	return filepath.Join(dir, "snapshots", filenameForm(id)+".json")
}

func modulePath(dir, moduleName string, d digest.ID) string {
	return filepath.Join(dir, "modules", sanitizeName(moduleName), filenameForm(d)+".axi")
}

func certPath(dir, moduleName string, d digest.ID) string {
	return filepath.Join(dir, "certs", fmt.Sprintf("%s__%s__axi_constraints_ok_v1.json", sanitizeName(moduleName), filenameForm(d)))
}

func logPath(dir string) string { return filepath.Join(dir, "accepted_plane.log.jsonl") }

// ReadHEAD returns the accepted plane's current snapshot ID, or "" if
// nothing has been promoted yet.
func ReadHEAD(dir string) (digest.ID, error) {
	data, err := os.ReadFile(headPath(dir)) // #nosec G304 - caller-controlled directory
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("accepted: reading HEAD: %w", err)
	}
	return digest.ID(strings.TrimSpace(string(data))), nil
}

func writeHEAD(dir string, id digest.ID) error {
	return writeFileAtomic(headPath(dir), []byte(string(id)+"\n"), 0o644)
}

// ReadManifest loads the manifest for snapshot id.
func ReadManifest(dir string, id digest.ID) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath(dir, id)) // #nosec G304 - caller-controlled directory
	if err != nil {
		return nil, fmt.Errorf("accepted: %w: reading manifest %s: %v", ErrSnapshotNotFound, id, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("accepted: decoding manifest %s: %w", id, err)
	}
	return &m, nil
}

// ReadModuleText loads the canonical text stored for ref, verifying it
// still hashes to ref.ModuleDigest.
func ReadModuleText(ref ModuleRef) (string, error) {
	data, err := os.ReadFile(ref.StoredPath) // #nosec G304 - path recorded by a trusted manifest
	if err != nil {
		return "", fmt.Errorf("accepted: reading module %s: %w", ref.StoredPath, err)
	}
	if err := digest.Verify(data, ref.ModuleDigest); err != nil {
		return "", fmt.Errorf("accepted: %w: %v", ErrDigestMismatch, err)
	}
	return string(data), nil
}

func sameModules(a, b map[string]ModuleRef) bool {
	return reflect.DeepEqual(a, b)
}

// computeSnapshotID fingerprints (version_tag, prev, sorted(name, digest,
// path)) so the ID depends only on content, never on write order or
// timestamps (§3 Snapshot determinism). The path is taken relative to dir,
// so the same promotions into two different directories yield the same ID.
func computeSnapshotID(dir string, prev digest.ID, modules map[string]ModuleRef) digest.ID {
	triples := make([]string, 0, len(modules))
	for name, ref := range modules {
		stored := ref.StoredPath
		if rel, err := filepath.Rel(dir, stored); err == nil {
			stored = filepath.ToSlash(rel)
		}
		triples = append(triples, name+"\x00"+string(ref.ModuleDigest)+"\x00"+stored)
	}
	sort.Strings(triples)

	b := digest.NewBuilder().WriteString("axi_accepted_snapshot_v1").WriteString(string(prev))
	for _, t := range triples {
		b.WriteString(t)
	}
	return b.Sum()
}

// runQualityGate imports mod into a fresh in-memory image and reports any
// error the import pipeline surfaces as a lint failure. "strict" and
// "fast" currently run the identical pipeline: the corpus this package is
// grounded on exposes no separate warning/info-severity lint findings
// beyond pass/fail import, so "strict" is reserved for a future,
// stricter profile rather than silently aliased away.
func runQualityGate(mod *ast.Module, profile config.QualityProfile) error {
	db := pathdb.New()
	_, err := importer.Import(db, mod)
	return err
}

// Promote runs the full promotion pipeline against candidateText and, on
// success, advances dir's HEAD to the resulting snapshot ID.
func Promote(dir, candidateText, message string, profile config.QualityProfile, logger *slog.Logger) (digest.ID, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mod, err := parser.Parse(candidateText)
	if err != nil {
		return "", fmt.Errorf("accepted: parsing candidate: %w", err)
	}
	if _, err := typecheck.Module(mod); err != nil {
		return "", fmt.Errorf("accepted: candidate does not typecheck: %w", err)
	}
	constraintsProof, err := constraints.Module(mod)
	if err != nil {
		return "", fmt.Errorf("accepted: candidate violates its constraints: %w", err)
	}

	if profile != config.QualityOff {
		if err := runQualityGate(mod, profile); err != nil {
			return "", fmt.Errorf("accepted: quality gate (%s) rejected candidate: %w", profile, err)
		}
	}

	moduleDigest := digest.OfString(candidateText)

	env, err := cert.ConstraintsOK(constraintsProof, candidateText)
	if err != nil {
		return "", fmt.Errorf("accepted: building constraints certificate: %w", err)
	}
	certData, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return "", fmt.Errorf("accepted: marshaling certificate: %w", err)
	}
	cPath := certPath(dir, mod.Name, moduleDigest)
	if err := writeFileAtomic(cPath, certData, 0o644); err != nil {
		return "", err
	}

	mPath := modulePath(dir, mod.Name, moduleDigest)
	switch existing, readErr := os.ReadFile(mPath); { // #nosec G304 - path derived from a content digest
	case readErr == nil:
		if digest.OfString(string(existing)) != moduleDigest {
			return "", fmt.Errorf("accepted: %w: stored module %s no longer hashes to %s", ErrDigestMismatch, mPath, moduleDigest)
		}
		logger.Debug("module content already stored", "path", mPath)
	case errors.Is(readErr, os.ErrNotExist):
		if err := writeFileAtomic(mPath, []byte(candidateText), 0o644); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("accepted: reading stored module %s: %w", mPath, readErr)
	}

	// Advancing HEAD is a read-build-write sequence racing any other
	// concurrent promoter against the same directory. Retry with backoff
	// instead of silently clobbering a concurrent advance: each attempt
	// rebuilds its manifest against the freshest HEAD and only commits if
	// HEAD hasn't moved again in the meantime.
	var snapshotID digest.ID
	var prevID digest.ID
	retryErr := backoff.Retry(func() error {
		var err error
		prevID, err = ReadHEAD(dir)
		if err != nil {
			return backoff.Permanent(err)
		}
		modules := map[string]ModuleRef{}
		if prevID != "" {
			prevManifest, err := ReadManifest(dir, prevID)
			if err != nil {
				return backoff.Permanent(err)
			}
			for name, ref := range prevManifest.Modules {
				modules[name] = ref
			}
		}
		modules[mod.Name] = ModuleRef{ModuleDigest: moduleDigest, StoredPath: mPath}

		sid := computeSnapshotID(dir, prevID, modules)
		manifest := &Manifest{
			Version:            ManifestVersion,
			SnapshotID:         sid,
			PreviousSnapshotID: prevID,
			CreatedAtUnixSecs:  time.Now().Unix(),
			Modules:            modules,
		}
		manifestData, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return backoff.Permanent(err)
		}
		mfPath := manifestPath(dir, sid)
		switch existing, readErr := os.ReadFile(mfPath); { // #nosec G304 - path derived from a content digest
		case readErr == nil:
			var existingManifest Manifest
			if err := json.Unmarshal(existing, &existingManifest); err != nil {
				return backoff.Permanent(fmt.Errorf("accepted: decoding existing manifest %s: %w", mfPath, err))
			}
			if !sameModules(existingManifest.Modules, modules) {
				return backoff.Permanent(fmt.Errorf("accepted: %w: snapshot %s already recorded with a different module set", ErrSnapshotCollision, sid))
			}
		case errors.Is(readErr, os.ErrNotExist):
			if err := writeFileAtomic(mfPath, manifestData, 0o644); err != nil {
				return backoff.Permanent(err)
			}
		default:
			return backoff.Permanent(fmt.Errorf("accepted: reading manifest %s: %w", mfPath, readErr))
		}

		current, err := ReadHEAD(dir)
		if err != nil {
			return backoff.Permanent(err)
		}
		if current != prevID {
			return fmt.Errorf("accepted: HEAD advanced from %s to %s during promotion", prevID, current)
		}
		if err := writeHEAD(dir, sid); err != nil {
			return backoff.Permanent(err)
		}
		snapshotID = sid
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if retryErr != nil {
		return "", retryErr
	}

	event := LogEvent{
		Action:              "promote",
		SnapshotID:          snapshotID,
		PreviousSnapshotID:  prevID,
		ModuleName:          mod.Name,
		ModuleDigest:        moduleDigest,
		StoredModulePath:    mPath,
		Message:             message,
		QualityProfile:      string(profile),
		ConstraintsCertPath: cPath,
		ConstraintsOK:       true,
		CreatedAtUnixSecs:   time.Now().Unix(),
	}
	eventData, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	if err := appendLine(logPath(dir), eventData); err != nil {
		return "", err
	}

	logger.Info("promoted module", "module", mod.Name, "snapshot_id", string(snapshotID))
	return snapshotID, nil
}

// Resolve turns a user-supplied snapshot reference into a concrete
// snapshot ID: the literal "HEAD"/"latest", a full ID (with or without
// its "algo:" prefix), a unique prefix, or a filename form ("algo_hex").
func Resolve(dir, ref string) (digest.ID, error) {
	if ref == "" || ref == "HEAD" || ref == "latest" {
		return ReadHEAD(dir)
	}

	candidate := strings.TrimSuffix(ref, ".json")
	candidate = strings.Replace(candidate, "_", ":", 1)

	entries, err := os.ReadDir(filepath.Join(dir, "snapshots"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("accepted: %w: %s", ErrSnapshotNotFound, ref)
		}
		return "", fmt.Errorf("accepted: listing snapshots: %w", err)
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
		return "", fmt.Errorf("accepted: %w: %s", ErrSnapshotNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("accepted: %w: %s matches %d snapshots", ErrSnapshotAmbiguous, ref, len(matches))
	}
}
