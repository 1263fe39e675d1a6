package meta_test

import (
	"testing"

	"github.com/axiograph/axiograph/internal/meta"
	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/stretchr/testify/require"
)

func buildSimpleSchema(t *testing.T) (*pathdb.PathDB, string) {
	t.Helper()
	db := pathdb.New()
	err := db.Mutate(func(db *pathdb.PathDB) error {
		schemaID := db.Entities.Add(meta.TypeSchema, []pathdb.Attr{
			{Key: meta.MetaAttrName, Value: "people2"},
		})

		person := db.Entities.Add(meta.TypeObject, []pathdb.Attr{
			{Key: meta.MetaAttrName, Value: "Person"},
		})
		employee := db.Entities.Add(meta.TypeObject, []pathdb.Attr{
			{Key: meta.MetaAttrName, Value: "Employee"},
		})
		_, _ = db.Relations.Add(meta.RelSchemaHasObject, schemaID, person, 1, nil)
		_, _ = db.Relations.Add(meta.RelSchemaHasObject, schemaID, employee, 1, nil)

		subtype := db.Entities.Add(meta.TypeSubtype, []pathdb.Attr{
			{Key: meta.AttrSubtypeSub, Value: "Employee"},
			{Key: meta.AttrSubtypeSup, Value: "Person"},
		})
		_, _ = db.Relations.Add(meta.RelSchemaHasSubtype, schemaID, subtype, 1, nil)

		relDecl := db.Entities.Add(meta.TypeRelationDecl, []pathdb.Attr{
			{Key: meta.MetaAttrName, Value: "employs"},
		})
		_, _ = db.Relations.Add(meta.RelSchemaHasRelation, schemaID, relDecl, 1, nil)
		return nil
	})
	require.NoError(t, err)
	return db, "people2"
}

func TestBuildIndexAndSubtyping(t *testing.T) {
	db, schemaName := buildSimpleSchema(t)
	idx, err := meta.BuildIndex(db)
	require.NoError(t, err)

	schema, ok := idx.Schemas[schemaName]
	require.True(t, ok)
	require.ElementsMatch(t, []string{"Employee", "Person"}, schema.Objects)
	require.True(t, schema.IsSubtype("Employee", "Person"))
	require.True(t, schema.IsSubtype("Person", "Person"))
	require.False(t, schema.IsSubtype("Person", "Employee"))

	_, ok = schema.Relations["employs"]
	require.True(t, ok)
}
