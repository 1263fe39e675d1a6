package wal

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/axiograph/axiograph/internal/accepted"
	"github.com/axiograph/axiograph/internal/digest"
	"github.com/axiograph/axiograph/internal/meta"
	"github.com/axiograph/axiograph/internal/pathdb"
)

// applyNewOps content-addresses each non-empty overlay input as its own
// blob and applies it to db, returning the Ops recording what it did.
func applyNewOps(acceptedDir string, db *pathdb.PathDB, chunks []accepted.Chunk, proposals []accepted.Proposal, embeddings []Embedding) ([]Op, error) {
	var ops []Op

	if len(chunks) > 0 {
		op, err := writeAndApply(acceptedDir, OpImportChunks, chunks, func() error { return applyChunks(db, chunks) })
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if len(proposals) > 0 {
		op, err := writeAndApply(acceptedDir, OpImportProposals, proposals, func() error { return applyProposals(db, proposals) })
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if len(embeddings) > 0 {
		op, err := writeAndApply(acceptedDir, OpImportEmbeddings, embeddings, func() error { return applyEmbeddings(db, embeddings) })
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func writeAndApply(acceptedDir string, kind OpKind, payload any, apply func() error) (Op, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Op{}, fmt.Errorf("wal: marshaling %s payload: %w", kind, err)
	}
	d, err := writeBlobIfAbsent(acceptedDir, data, "json")
	if err != nil {
		return Op{}, err
	}
	if err := apply(); err != nil {
		return Op{}, fmt.Errorf("wal: applying %s: %w", kind, err)
	}
	return Op{Kind: kind, BlobDigest: d, Path: blobPath(acceptedDir, d, "json")}, nil
}

// replayOps reloads each op's blob from disk, verifies it still hashes
// to the digest recorded for it, and reapplies it to db in order.
func replayOps(acceptedDir string, db *pathdb.PathDB, ops []Op) error {
	for _, op := range ops {
		data, err := os.ReadFile(op.Path) // #nosec G304 - path recorded by a trusted WAL snapshot
		if err != nil {
			return fmt.Errorf("wal: reading blob %s: %w", op.Path, err)
		}
		if err := digest.Verify(data, op.BlobDigest); err != nil {
			return fmt.Errorf("wal: replaying %s: %w", op.Path, err)
		}
		switch op.Kind {
		case OpImportChunks:
			var chunks []accepted.Chunk
			if err := json.Unmarshal(data, &chunks); err != nil {
				return fmt.Errorf("wal: decoding chunk blob %s: %w", op.Path, err)
			}
			if err := applyChunks(db, chunks); err != nil {
				return err
			}
		case OpImportProposals:
			var proposals []accepted.Proposal
			if err := json.Unmarshal(data, &proposals); err != nil {
				return fmt.Errorf("wal: decoding proposal blob %s: %w", op.Path, err)
			}
			if err := applyProposals(db, proposals); err != nil {
				return err
			}
		case OpImportEmbeddings:
			var embeddings []Embedding
			if err := json.Unmarshal(data, &embeddings); err != nil {
				return fmt.Errorf("wal: decoding embedding blob %s: %w", op.Path, err)
			}
			if err := applyEmbeddings(db, embeddings); err != nil {
				return err
			}
		default:
			return fmt.Errorf("wal: unknown op kind %q", op.Kind)
		}
	}
	return nil
}

// applyChunks writes one DocChunk entity per chunk and links it to the
// entity its metadata names, when "about_type"/"about_name" resolve
// against a live entity of that type and name.
func applyChunks(db *pathdb.PathDB, chunks []accepted.Chunk) error {
	for _, c := range chunks {
		attrs := []pathdb.Attr{
			{Key: meta.AttrChunkID, Value: c.ChunkID},
			{Key: meta.AttrChunkDocID, Value: c.DocumentID},
			{Key: meta.AttrChunkText, Value: c.Text},
			{Key: meta.AttrChunkSpanID, Value: c.SpanID},
		}
		if c.Page != nil {
			attrs = append(attrs, pathdb.Attr{Key: "axi_chunk_page", Value: strconv.Itoa(*c.Page)})
		}
		for k, v := range c.Metadata {
			attrs = append(attrs, pathdb.Attr{Key: "axi_chunk_md_" + k, Value: v})
		}

		aboutType, hasType := c.Metadata["about_type"]
		aboutName, hasName := c.Metadata["about_name"]

		var entID pathdb.EntityID
		if err := db.Mutate(func(db *pathdb.PathDB) error {
			entID = db.Entities.Add(meta.TypeDocChunk, attrs)
			return nil
		}); err != nil {
			return err
		}

		if hasType && hasName {
			if target, ok := findEntityByTypeAndName(db, aboutType, aboutName); ok {
				if err := db.Mutate(func(db *pathdb.PathDB) error {
					_, err := db.Relations.Add(meta.RelChunkAbout, entID, target, 1, nil)
					return err
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// applyProposals writes one entity-proposal node per proposal, carrying
// its confidence and rationale as attributes, and — for relation
// proposals whose source/target already resolve to live entities — a
// best-effort relation edge at the proposed confidence. Proposals are
// evidence-plane data: nothing here mutates the accepted plane or
// retroactively alters an already-promoted module.
func applyProposals(db *pathdb.PathDB, proposals []accepted.Proposal) error {
	for _, p := range proposals {
		attrs := []pathdb.Attr{
			{Key: meta.AttrProposalID, Value: p.ProposalID},
			{Key: meta.AttrProposalConfidence, Value: strconv.FormatFloat(p.Confidence, 'g', -1, 64)},
			{Key: meta.AttrProposalRationale, Value: p.PublicRationale},
		}
		switch p.Kind {
		case accepted.ProposalEntity:
			attrs = append(attrs,
				pathdb.Attr{Key: meta.MetaAttrName, Value: p.EntityName},
				pathdb.Attr{Key: "axi_proposal_entity_type", Value: p.EntityType},
			)
		case accepted.ProposalRelation:
			attrs = append(attrs,
				pathdb.Attr{Key: "axi_proposal_rel_type", Value: p.RelType},
				pathdb.Attr{Key: "axi_proposal_source", Value: p.Source},
				pathdb.Attr{Key: "axi_proposal_target", Value: p.Target},
			)
		}

		var propID pathdb.EntityID
		if err := db.Mutate(func(db *pathdb.PathDB) error {
			propID = db.Entities.Add(meta.TypeEntityProposal, attrs)
			return nil
		}); err != nil {
			return err
		}

		if p.Kind == accepted.ProposalRelation && p.Source != "" && p.Target != "" {
			src, srcOK := findEntityByName(db, p.Source)
			dst, dstOK := findEntityByName(db, p.Target)
			if srcOK && dstOK {
				if err := db.Mutate(func(db *pathdb.PathDB) error {
					_, err := db.Relations.Add("axi_proposed:"+p.RelType, src, dst, p.Confidence, nil)
					return err
				}); err != nil {
					return err
				}
			}
		}
		_ = propID
	}
	return nil
}

// applyEmbeddings attaches each embedding's vector to the entity it
// names, as a comma-joined axi_embedding_vector attribute on a self-loop
// axi_has_embedding relation; an embedding whose entity name does not
// resolve is skipped. The core does not index or search vectors itself
// (see Embedding's doc comment).
func applyEmbeddings(db *pathdb.PathDB, embeddings []Embedding) error {
	for _, e := range embeddings {
		target, ok := findEntityByName(db, e.EntityName)
		if !ok {
			continue
		}
		parts := make([]string, len(e.Vector))
		for i, v := range e.Vector {
			parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
		}
		if err := db.Mutate(func(db *pathdb.PathDB) error {
			_, err := db.Relations.Add("axi_has_embedding", target, target, 1, []pathdb.Attr{
				{Key: "axi_embedding_vector", Value: strings.Join(parts, ",")},
			})
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func findEntityByTypeAndName(db *pathdb.PathDB, typeName, name string) (pathdb.EntityID, bool) {
	var found pathdb.EntityID
	ok := false
	db.Entities.EachType(func(id pathdb.EntityID, _ pathdb.StrID) {
		if ok {
			return
		}
		if tn, tok := db.TypeName(id); tok && tn == typeName {
			if n, nok := db.AttrString(id, meta.MetaAttrName); nok && n == name {
				found, ok = id, true
			}
		}
	})
	return found, ok
}

func findEntityByName(db *pathdb.PathDB, name string) (pathdb.EntityID, bool) {
	var found pathdb.EntityID
	ok := false
	db.Entities.EachType(func(id pathdb.EntityID, _ pathdb.StrID) {
		if ok {
			return
		}
		if n, nok := db.AttrString(id, meta.MetaAttrName); nok && n == name {
			found, ok = id, true
		}
	})
	return found, ok
}
