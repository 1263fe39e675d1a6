package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/axiograph/axiograph/internal/meta"
	"github.com/axiograph/axiograph/internal/pathdb"
)

// FactKeySignature names one key-constrained lookup: a schema, a
// relation within it, and the ordered field names the key ranges over.
type FactKeySignature struct {
	SchemaID   pathdb.StrID
	RelationID pathdb.StrID
	KeyFields  []pathdb.StrID
}

// FactIndex is the fast-path lookup structure over reified fact nodes:
// by relation, by (schema, relation), by context, by (context, schema,
// relation), and — when the meta-plane declares Key constraints — by
// key field values.
type FactIndex struct {
	byRelation             map[pathdb.StrID]*roaring.Bitmap
	bySchemaRelation       map[schemaRelationKey]*roaring.Bitmap
	byContext              map[pathdb.EntityID]*roaring.Bitmap
	byContextSchemaRelation map[contextSchemaRelationKey]*roaring.Bitmap
	keyIndex               map[string]map[string][]pathdb.EntityID // sig encoding -> values encoding -> facts
}

type schemaRelationKey struct {
	schema, relation pathdb.StrID
}

type contextSchemaRelationKey struct {
	context          pathdb.EntityID
	schema, relation pathdb.StrID
}

// FactsByRelation returns the union across schemas of fact nodes whose
// axi_relation attribute equals relationID.
func (fi *FactIndex) FactsByRelation(relationID pathdb.StrID) *roaring.Bitmap {
	if bm, ok := fi.byRelation[relationID]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// FactsBySchemaRelation returns fact nodes with the given (schema,
// relation) pair.
func (fi *FactIndex) FactsBySchemaRelation(schemaID, relationID pathdb.StrID) *roaring.Bitmap {
	if bm, ok := fi.bySchemaRelation[schemaRelationKey{schemaID, relationID}]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// FactsByContext returns fact nodes asserted within contextEntity.
func (fi *FactIndex) FactsByContext(contextEntity pathdb.EntityID) *roaring.Bitmap {
	if bm, ok := fi.byContext[contextEntity]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// FactsByContextSchemaRelation narrows FactsByContext to one (schema,
// relation) pair.
func (fi *FactIndex) FactsByContextSchemaRelation(contextEntity pathdb.EntityID, schemaID, relationID pathdb.StrID) *roaring.Bitmap {
	k := contextSchemaRelationKey{contextEntity, schemaID, relationID}
	if bm, ok := fi.byContextSchemaRelation[k]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// LookupKey resolves a key-constrained relation's fact node(s) for a
// specific assignment of key field values, returning nil if sig was
// never built (no Key constraint declared that shape) or values is a
// miss.
func (fi *FactIndex) LookupKey(sig FactKeySignature, values []pathdb.EntityID) []pathdb.EntityID {
	byVal, ok := fi.keyIndex[encodeSig(sig)]
	if !ok {
		return nil
	}
	return byVal[encodeValues(values)]
}

func encodeSig(sig FactKeySignature) string {
	b := make([]byte, 0, 32)
	b = appendUint(b, uint64(sig.SchemaID))
	b = append(b, ':')
	b = appendUint(b, uint64(sig.RelationID))
	for _, f := range sig.KeyFields {
		b = append(b, ':')
		b = appendUint(b, uint64(f))
	}
	return string(b)
}

func encodeValues(values []pathdb.EntityID) string {
	b := make([]byte, 0, 32)
	for i, v := range values {
		if i > 0 {
			b = append(b, ':')
		}
		b = appendUint(b, uint64(v))
	}
	return string(b)
}

func appendUint(b []byte, v uint64) []byte {
	start := len(b)
	if v == 0 {
		return append(b, '0')
	}
	for v > 0 {
		b = append(b, byte('0'+v%10))
		v /= 10
	}
	for i, j := start, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}

// FactIndexCache is a generation-gated, rebuild-on-demand FactIndex.
type FactIndexCache struct {
	c  *cache[*FactIndex]
	db *pathdb.PathDB
}

// NewFactIndexCache creates a fact index cache bound to db.
func NewFactIndexCache(db *pathdb.PathDB) *FactIndexCache {
	return &FactIndexCache{c: newCache[*FactIndex](), db: db}
}

// WithIndex runs use against the current fact index, rebuilding
// asynchronously and falling back to a synchronous column scan
// (buildFactIndex run inline) when the cache is stale. Unlike the type
// and text indexes, the fallback here is simply building the whole
// index inline rather than a narrower scan, since a fact-index query
// is rarely answerable without a relation/schema scan anyway.
func (fc *FactIndexCache) WithIndex(use func(*FactIndex)) {
	withIndexOrFallback(
		fc.c, fc.db,
		func() *FactIndex { return buildFactIndex(fc.db) },
		func() struct{} { use(buildFactIndex(fc.db)); return struct{}{} },
		func(fi *FactIndex) struct{} { use(fi); return struct{}{} },
	)
}

func buildFactIndex(db *pathdb.PathDB) *FactIndex {
	fi := &FactIndex{
		byRelation:              make(map[pathdb.StrID]*roaring.Bitmap),
		bySchemaRelation:        make(map[schemaRelationKey]*roaring.Bitmap),
		byContext:               make(map[pathdb.EntityID]*roaring.Bitmap),
		byContextSchemaRelation: make(map[contextSchemaRelationKey]*roaring.Bitmap),
		keyIndex:                make(map[string]map[string][]pathdb.EntityID),
	}

	relationKeyID, ok := db.Interner.IDOf(meta.AttrAxiRelation)
	if !ok {
		return fi
	}
	schemaKeyID, hasSchemaKey := db.Interner.IDOf(meta.AttrAxiSchema)
	contextRelID, hasContextRel := db.Interner.IDOf(meta.RelFactInContext)

	relCol := db.Entities.AttrColumn(relationKeyID)

	addBitmap := func(m map[pathdb.StrID]*roaring.Bitmap, key pathdb.StrID, entity pathdb.EntityID) {
		bm, ok := m[key]
		if !ok {
			bm = roaring.New()
			m[key] = bm
		}
		bm.Add(uint32(entity))
	}

	for entityID, relationID := range relCol {
		addBitmap(fi.byRelation, relationID, entityID)

		var schemaID pathdb.StrID
		haveSchema := false
		if hasSchemaKey {
			if v, ok := db.Entities.GetAttr(entityID, schemaKeyID); ok {
				schemaID, haveSchema = v, true
				k := schemaRelationKey{schemaID, relationID}
				bm, ok := fi.bySchemaRelation[k]
				if !ok {
					bm = roaring.New()
					fi.bySchemaRelation[k] = bm
				}
				bm.Add(uint32(entityID))
			}
		}

		if hasContextRel {
			for _, rel := range db.Relations.Outgoing(entityID, contextRelID) {
				bm, ok := fi.byContext[rel.Target]
				if !ok {
					bm = roaring.New()
					fi.byContext[rel.Target] = bm
				}
				bm.Add(uint32(entityID))

				if haveSchema {
					k := contextSchemaRelationKey{rel.Target, schemaID, relationID}
					bm2, ok := fi.byContextSchemaRelation[k]
					if !ok {
						bm2 = roaring.New()
						fi.byContextSchemaRelation[k] = bm2
					}
					bm2.Add(uint32(entityID))
				}
			}
		}
	}

	buildKeyIndex(db, fi)
	return fi
}

// buildKeyIndex is best-effort: a missing or empty meta-plane simply
// means no key lookups are built, not an error.
func buildKeyIndex(db *pathdb.PathDB, fi *FactIndex) {
	metaIdx, err := meta.BuildIndex(db)
	if err != nil || len(metaIdx.Schemas) == 0 {
		return
	}

	// Deterministic iteration: sort schema and relation names before
	// building, even though the result only depends on field contents,
	// to keep the build reproducible for tests and for any future
	// structural digesting of the index itself.
	schemaNames := make([]string, 0, len(metaIdx.Schemas))
	for name := range metaIdx.Schemas {
		schemaNames = append(schemaNames, name)
	}
	sort.Strings(schemaNames)

	for _, schemaName := range schemaNames {
		schema := metaIdx.Schemas[schemaName]
		schemaID, ok := db.Interner.IDOf(schemaName)
		if !ok {
			continue
		}

		relNames := make([]string, 0, len(schema.Relations))
		for name := range schema.Relations {
			relNames = append(relNames, name)
		}
		sort.Strings(relNames)

		for _, relName := range relNames {
			decl := schema.Relations[relName]
			relationID, ok := db.Interner.IDOf(relName)
			if !ok {
				continue
			}
			facts, ok := fi.bySchemaRelation[schemaRelationKey{schemaID, relationID}]
			if !ok {
				continue
			}

			for _, c := range decl.Constraints {
				if c.Kind != meta.ConstraintKey || len(c.Fields) == 0 || len(c.Fields) > 8 {
					continue
				}
				keyFieldIDs, ok := internFields(db, c.Fields)
				if !ok {
					continue
				}
				sig := FactKeySignature{SchemaID: schemaID, RelationID: relationID, KeyFields: keyFieldIDs}
				sigKey := encodeSig(sig)
				byVal, ok := fi.keyIndex[sigKey]
				if !ok {
					byVal = make(map[string][]pathdb.EntityID)
					fi.keyIndex[sigKey] = byVal
				}

				it := facts.Iterator()
				for it.HasNext() {
					fact := pathdb.EntityID(it.Next())
					values, ok := keyValuesOf(db, fact, c.Fields)
					if !ok {
						continue
					}
					valKey := encodeEntityValues(values)
					byVal[valKey] = append(byVal[valKey], fact)
				}
			}
		}
	}

	for _, byVal := range fi.keyIndex {
		for _, facts := range byVal {
			sort.Slice(facts, func(i, j int) bool { return facts[i] < facts[j] })
		}
	}
}

func internFields(db *pathdb.PathDB, fields []string) ([]pathdb.StrID, bool) {
	out := make([]pathdb.StrID, 0, len(fields))
	for _, f := range fields {
		id, ok := db.Interner.IDOf(f)
		if !ok {
			return nil, false
		}
		out = append(out, id)
	}
	return out, true
}

func keyValuesOf(db *pathdb.PathDB, fact pathdb.EntityID, fields []string) ([]pathdb.EntityID, bool) {
	out := make([]pathdb.EntityID, 0, len(fields))
	for _, field := range fields {
		edges := db.OutgoingByName(fact, field)
		if len(edges) == 0 {
			return nil, false
		}
		out = append(out, edges[0].Target)
	}
	return out, true
}

func encodeEntityValues(values []pathdb.EntityID) string {
	b := make([]byte, 0, 32)
	for i, v := range values {
		if i > 0 {
			b = append(b, ':')
		}
		b = appendUint(b, uint64(v))
	}
	return string(b)
}
