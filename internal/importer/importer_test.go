package importer_test

import (
	"testing"

	"github.com/axiograph/axiograph/internal/axi/parser"
	"github.com/axiograph/axiograph/internal/importer"
	"github.com/axiograph/axiograph/internal/meta"
	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/stretchr/testify/require"
)

const sample = `module org

schema org:
  object Person
  object Company
  relation employs(employer: Company, employee: Person)

theory rules on org:
  constraint key employs(employee)

instance i of org:
  Person = {alice, bob}
  Company = {acme}
  employs = {(employer=acme, employee=alice), (employer=acme, employee=bob)}
`

func TestImportWritesMetaAndFactPlane(t *testing.T) {
	mod, err := parser.Parse(sample)
	require.NoError(t, err)

	db := pathdb.New()
	res, err := importer.Import(db, mod)
	require.NoError(t, err)
	require.NotZero(t, res.ModuleEntity)

	schemaID, ok := res.SchemaByName["org"]
	require.True(t, ok)
	tn, ok := db.TypeName(schemaID)
	require.True(t, ok)
	require.Equal(t, meta.TypeSchema, tn)

	idx, err := meta.BuildIndex(db)
	require.NoError(t, err)
	schema, ok := idx.Schemas["org"]
	require.True(t, ok)
	require.Contains(t, schema.Objects, "Person")
	require.Contains(t, schema.Objects, "Company")

	decl, ok := schema.Relations["employs"]
	require.True(t, ok)
	require.Equal(t, []string{"employer", "employee"}, decl.Fields)
	require.Len(t, decl.Constraints, 1)
	require.Equal(t, meta.ConstraintKey, decl.Constraints[0].Kind)
	require.Equal(t, []string{"employee"}, decl.Constraints[0].Fields)

	var factCount int
	db.Entities.EachType(func(id pathdb.EntityID, _ pathdb.StrID) {
		if tn, ok := db.TypeName(id); ok && tn == "axi_fact" {
			factCount++
		}
	})
	require.Equal(t, 2, factCount)
}

func TestImportRejectsConstraintViolation(t *testing.T) {
	bad := `module org

schema org:
  object Person
  object Company
  relation employs(employer: Company, employee: Person)

theory rules on org:
  constraint key employs(employee)

instance i of org:
  Person = {alice}
  Company = {acme, other}
  employs = {(employer=acme, employee=alice), (employer=other, employee=alice)}
`
	mod, err := parser.Parse(bad)
	require.NoError(t, err)

	db := pathdb.New()
	_, err = importer.Import(db, mod)
	require.Error(t, err)
}

func TestImportRejectsUnknownEntityReference(t *testing.T) {
	mod, err := parser.Parse(sample)
	require.NoError(t, err)
	mod.Instances[0].Relations[0].Tuples[0].Fields[0].Value = "ghost"

	db := pathdb.New()
	_, err = importer.Import(db, mod)
	require.Error(t, err)
}
