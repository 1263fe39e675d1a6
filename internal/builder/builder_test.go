package builder_test

import (
	"testing"

	"github.com/axiograph/axiograph/internal/builder"
	"github.com/axiograph/axiograph/internal/meta"
	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/stretchr/testify/require"
)

func setupSchema(t *testing.T) (*pathdb.PathDB, *meta.Index) {
	t.Helper()
	db := pathdb.New()
	err := db.Mutate(func(db *pathdb.PathDB) error {
		schemaID := db.Entities.Add(meta.TypeSchema, []pathdb.Attr{{Key: meta.MetaAttrName, Value: "org"}})
		person := db.Entities.Add(meta.TypeObject, []pathdb.Attr{{Key: meta.MetaAttrName, Value: "Person"}})
		company := db.Entities.Add(meta.TypeObject, []pathdb.Attr{{Key: meta.MetaAttrName, Value: "Company"}})
		db.Relations.Add(meta.RelSchemaHasObject, schemaID, person, 1, nil)
		db.Relations.Add(meta.RelSchemaHasObject, schemaID, company, 1, nil)

		relDecl := db.Entities.Add(meta.TypeRelationDecl, []pathdb.Attr{{Key: meta.MetaAttrName, Value: "employs"}})
		db.Relations.Add(meta.RelSchemaHasRelation, schemaID, relDecl, 1, nil)

		fEmployer := db.Entities.Add(meta.TypeFieldDecl, []pathdb.Attr{
			{Key: meta.MetaAttrName, Value: "employer"},
			{Key: meta.AttrFieldIndex, Value: "0"},
		})
		fEmployee := db.Entities.Add(meta.TypeFieldDecl, []pathdb.Attr{
			{Key: meta.MetaAttrName, Value: "employee"},
			{Key: meta.AttrFieldIndex, Value: "1"},
		})
		db.Relations.Add(meta.RelRelationHasField, relDecl, fEmployer, 1, nil)
		db.Relations.Add(meta.RelRelationHasField, relDecl, fEmployee, 1, nil)
		return nil
	})
	require.NoError(t, err)

	idx, err := meta.BuildIndex(db)
	require.NoError(t, err)
	return db, idx
}

func TestSchemaBuilderEntityAndFact(t *testing.T) {
	db, idx := setupSchema(t)
	sb, err := builder.NewSchemaBuilder(db, idx, "org")
	require.NoError(t, err)

	acme, err := sb.Entity("Company", "acme", nil)
	require.NoError(t, err)
	alice, err := sb.Entity("Person", "alice", nil)
	require.NoError(t, err)

	fact, err := sb.Fact("employs", []builder.FieldAssignment{
		{Field: "employer", Entity: acme},
		{Field: "employee", Entity: alice},
	})
	require.NoError(t, err)

	id, err := fact.ID(db)
	require.NoError(t, err)
	typeName, ok := db.TypeName(id)
	require.True(t, ok)
	require.Equal(t, "axi_fact", typeName)
}

func TestWitnessMismatchAcrossImages(t *testing.T) {
	db, idx := setupSchema(t)
	sb, err := builder.NewSchemaBuilder(db, idx, "org")
	require.NoError(t, err)
	acme, err := sb.Entity("Company", "acme", nil)
	require.NoError(t, err)

	other := pathdb.New()
	_, err = acme.ID(other)
	require.Error(t, err)
}

func TestEntityRejectsUnknownType(t *testing.T) {
	db, idx := setupSchema(t)
	sb, err := builder.NewSchemaBuilder(db, idx, "org")
	require.NoError(t, err)
	_, err = sb.Entity("Planet", "earth", nil)
	require.Error(t, err)
}

// setupSchemaWithCtx is setupSchema's "employs" relation plus a ctx
// field, so Fact/CommitIntoExisting can be exercised against the
// axi_fact_in_context wiring.
func setupSchemaWithCtx(t *testing.T) (*pathdb.PathDB, *meta.Index) {
	t.Helper()
	db := pathdb.New()
	err := db.Mutate(func(db *pathdb.PathDB) error {
		schemaID := db.Entities.Add(meta.TypeSchema, []pathdb.Attr{{Key: meta.MetaAttrName, Value: "org"}})
		person := db.Entities.Add(meta.TypeObject, []pathdb.Attr{{Key: meta.MetaAttrName, Value: "Person"}})
		company := db.Entities.Add(meta.TypeObject, []pathdb.Attr{{Key: meta.MetaAttrName, Value: "Company"}})
		doc := db.Entities.Add(meta.TypeObject, []pathdb.Attr{{Key: meta.MetaAttrName, Value: "Doc"}})
		db.Relations.Add(meta.RelSchemaHasObject, schemaID, person, 1, nil)
		db.Relations.Add(meta.RelSchemaHasObject, schemaID, company, 1, nil)
		db.Relations.Add(meta.RelSchemaHasObject, schemaID, doc, 1, nil)

		relDecl := db.Entities.Add(meta.TypeRelationDecl, []pathdb.Attr{{Key: meta.MetaAttrName, Value: "employs"}})
		db.Relations.Add(meta.RelSchemaHasRelation, schemaID, relDecl, 1, nil)

		fEmployer := db.Entities.Add(meta.TypeFieldDecl, []pathdb.Attr{
			{Key: meta.MetaAttrName, Value: "employer"},
			{Key: meta.AttrFieldIndex, Value: "0"},
		})
		fEmployee := db.Entities.Add(meta.TypeFieldDecl, []pathdb.Attr{
			{Key: meta.MetaAttrName, Value: "employee"},
			{Key: meta.AttrFieldIndex, Value: "1"},
		})
		fCtx := db.Entities.Add(meta.TypeFieldDecl, []pathdb.Attr{
			{Key: meta.MetaAttrName, Value: "ctx"},
			{Key: meta.AttrFieldIndex, Value: "2"},
		})
		db.Relations.Add(meta.RelRelationHasField, relDecl, fEmployer, 1, nil)
		db.Relations.Add(meta.RelRelationHasField, relDecl, fEmployee, 1, nil)
		db.Relations.Add(meta.RelRelationHasField, relDecl, fCtx, 1, nil)
		return nil
	})
	require.NoError(t, err)

	idx, err := meta.BuildIndex(db)
	require.NoError(t, err)
	return db, idx
}

func TestFactWithCtxFieldWiresFactInContextEdge(t *testing.T) {
	db, idx := setupSchemaWithCtx(t)
	sb, err := builder.NewSchemaBuilder(db, idx, "org")
	require.NoError(t, err)

	acme, err := sb.Entity("Company", "acme", nil)
	require.NoError(t, err)
	alice, err := sb.Entity("Person", "alice", nil)
	require.NoError(t, err)
	report, err := sb.Entity("Doc", "report1", nil)
	require.NoError(t, err)

	fact, err := sb.Fact("employs", []builder.FieldAssignment{
		{Field: "employer", Entity: acme},
		{Field: "employee", Entity: alice},
		{Field: "ctx", Entity: report},
	})
	require.NoError(t, err)

	factID, err := fact.ID(db)
	require.NoError(t, err)
	edges := db.OutgoingByName(factID, meta.RelFactInContext)
	require.Len(t, edges, 1)
	reportID, err := report.ID(db)
	require.NoError(t, err)
	require.Equal(t, reportID, edges[0].Target)
}

func TestFactWithoutCtxFieldAddsNoFactInContextEdge(t *testing.T) {
	db, idx := setupSchema(t)
	sb, err := builder.NewSchemaBuilder(db, idx, "org")
	require.NoError(t, err)

	acme, err := sb.Entity("Company", "acme", nil)
	require.NoError(t, err)
	alice, err := sb.Entity("Person", "alice", nil)
	require.NoError(t, err)

	fact, err := sb.Fact("employs", []builder.FieldAssignment{
		{Field: "employer", Entity: acme},
		{Field: "employee", Entity: alice},
	})
	require.NoError(t, err)

	factID, err := fact.ID(db)
	require.NoError(t, err)
	edges := db.OutgoingByName(factID, meta.RelFactInContext)
	require.Len(t, edges, 0)
}

func TestCommitIntoExistingAddsMissingFieldIdempotently(t *testing.T) {
	db, idx := setupSchemaWithCtx(t)
	sb, err := builder.NewSchemaBuilder(db, idx, "org")
	require.NoError(t, err)

	acme, err := sb.Entity("Company", "acme", nil)
	require.NoError(t, err)
	alice, err := sb.Entity("Person", "alice", nil)
	require.NoError(t, err)
	report, err := sb.Entity("Doc", "report1", nil)
	require.NoError(t, err)

	fact, err := sb.Fact("employs", []builder.FieldAssignment{
		{Field: "employer", Entity: acme},
		{Field: "employee", Entity: alice},
		{Field: "ctx", Entity: report},
	})
	require.NoError(t, err)
	factID, err := fact.ID(db)
	require.NoError(t, err)

	// Re-committing the exact same field values must succeed (idempotent
	// merge): nothing conflicts, so no new edges are added.
	_, err = sb.CommitIntoExisting(factID, "employs", []builder.FieldAssignment{
		{Field: "employer", Entity: acme},
		{Field: "employee", Entity: alice},
		{Field: "ctx", Entity: report},
	})
	require.NoError(t, err)

	edges := db.OutgoingByName(factID, "employer")
	require.Len(t, edges, 1)
	ctxEdges := db.OutgoingByName(factID, meta.RelFactInContext)
	require.Len(t, ctxEdges, 1)
}

func TestCommitIntoExistingRejectsConflictingValue(t *testing.T) {
	db, idx := setupSchemaWithCtx(t)
	sb, err := builder.NewSchemaBuilder(db, idx, "org")
	require.NoError(t, err)

	acme, err := sb.Entity("Company", "acme", nil)
	require.NoError(t, err)
	other, err := sb.Entity("Company", "other", nil)
	require.NoError(t, err)
	alice, err := sb.Entity("Person", "alice", nil)
	require.NoError(t, err)
	report, err := sb.Entity("Doc", "report1", nil)
	require.NoError(t, err)

	fact, err := sb.Fact("employs", []builder.FieldAssignment{
		{Field: "employer", Entity: acme},
		{Field: "employee", Entity: alice},
		{Field: "ctx", Entity: report},
	})
	require.NoError(t, err)
	factID, err := fact.ID(db)
	require.NoError(t, err)

	_, err = sb.CommitIntoExisting(factID, "employs", []builder.FieldAssignment{
		{Field: "employer", Entity: other},
		{Field: "employee", Entity: alice},
		{Field: "ctx", Entity: report},
	})
	require.Error(t, err)
	var fieldErr *builder.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "employer", fieldErr.Field)
}
