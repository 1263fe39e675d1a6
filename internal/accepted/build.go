package accepted

import (
	"fmt"
	"os"
	"sort"

	"github.com/axiograph/axiograph/internal/axi/parser"
	"github.com/axiograph/axiograph/internal/digest"
	"github.com/axiograph/axiograph/internal/importer"
	"github.com/axiograph/axiograph/internal/meta"
	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/axiograph/axiograph/internal/snapshot"
)

// BuildFromSnapshot materializes a PathDB image (an `.axpd` file) from a
// named accepted snapshot: every stored module is parsed and imported,
// and each module's own canonical text is embedded as a DocChunk so a
// query against the resulting image always has textual evidence to
// ground its answers in, even before any external chunker has run.
// This is the fallback materialization path and the reproducibility
// check: re-running it against the same snapshot ID always yields a
// byte-identical `.axpd`.
func BuildFromSnapshot(dir, idOrLatest, out string) error {
	db, _, err := BuildImage(dir, idOrLatest)
	if err != nil {
		return err
	}

	snap := snapshot.Take(db)
	data, err := snapshot.Encode(snap)
	if err != nil {
		return fmt.Errorf("accepted: encoding snapshot: %w", err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil { // #nosec G306 - caller-chosen output path
		return fmt.Errorf("accepted: writing %s: %w", out, err)
	}
	return nil
}

// BuildImage resolves idOrLatest and reconstructs the corresponding
// accepted-plane PathDB image in memory, without writing an `.axpd`
// file. Used directly by BuildFromSnapshot and by the WAL package, which
// needs an in-memory base image to replay overlay ops onto.
func BuildImage(dir, idOrLatest string) (*pathdb.PathDB, digest.ID, error) {
	id, err := Resolve(dir, idOrLatest)
	if err != nil {
		return nil, "", err
	}
	if id == "" {
		return nil, "", fmt.Errorf("accepted: %w: accepted plane at %s has no promotions yet", ErrSnapshotNotFound, dir)
	}
	manifest, err := ReadManifest(dir, id)
	if err != nil {
		return nil, "", err
	}

	names := make([]string, 0, len(manifest.Modules))
	for name := range manifest.Modules {
		names = append(names, name)
	}
	sort.Strings(names)

	db := pathdb.New()
	for _, name := range names {
		ref := manifest.Modules[name]
		text, err := ReadModuleText(ref)
		if err != nil {
			return nil, "", err
		}
		mod, err := parser.Parse(text)
		if err != nil {
			return nil, "", fmt.Errorf("accepted: reparsing stored module %s: %w", name, err)
		}
		res, err := importer.Import(db, mod)
		if err != nil {
			return nil, "", fmt.Errorf("accepted: reimporting stored module %s: %w", name, err)
		}
		if err := embedModuleChunk(db, name, text, res.ModuleEntity); err != nil {
			return nil, "", err
		}
	}

	return db, id, nil
}

// embedModuleChunk writes one DocChunk entity holding a module's own
// canonical text, linked back to that module's meta-plane entity via
// RelChunkAbout, so every promoted module carries its own verbatim
// evidence inside the materialized image.
func embedModuleChunk(db *pathdb.PathDB, moduleName, text string, moduleEntity pathdb.EntityID) error {
	chunkID := string(digest.OfString(text))
	return db.Mutate(func(db *pathdb.PathDB) error {
		entID := db.Entities.Add(meta.TypeDocChunk, []pathdb.Attr{
			{Key: meta.AttrChunkID, Value: chunkID},
			{Key: meta.AttrChunkDocID, Value: moduleName},
			{Key: meta.AttrChunkText, Value: text},
			{Key: meta.AttrChunkSpanID, Value: "module:" + moduleName},
		})
		_, err := db.Relations.Add(meta.RelChunkAbout, entID, moduleEntity, 1, nil)
		return err
	})
}
