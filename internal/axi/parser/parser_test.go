package parser_test

import (
	"testing"

	"github.com/axiograph/axiograph/internal/axi/ast"
	"github.com/axiograph/axiograph/internal/axi/parser"
	"github.com/stretchr/testify/require"
)

const sample = `module people

schema org:
  object Person
  object Company
  subtype Employee < Person
  relation employs(employer: Company, employee: Person)

theory org_rules on org:
  constraint key employs(employer, employee)
  constraint symmetric knows
  constraint custom prose goes here

instance acme of org:
  Person = {alice, bob}
  Company = {acme}
  employs = {(employer=acme, employee=alice), (employer=acme, employee=bob)}
`

func TestParseFullModule(t *testing.T) {
	mod, err := parser.Parse(sample)
	require.NoError(t, err)
	require.Equal(t, "people", mod.Name)

	require.Len(t, mod.Schemas, 1)
	schema := mod.Schemas[0]
	require.Equal(t, "org", schema.Name)
	require.ElementsMatch(t, []string{"Person", "Company"}, schema.Objects)
	require.Equal(t, []ast.Subtype{{Sub: "Employee", Sup: "Person"}}, schema.Subtypes)
	require.Len(t, schema.Relations, 1)
	require.Equal(t, "employs", schema.Relations[0].Name)
	require.Equal(t, []ast.Field{
		{Name: "employer", Type: "Company"},
		{Name: "employee", Type: "Person"},
	}, schema.Relations[0].Fields)

	require.Len(t, mod.Theories, 1)
	theory := mod.Theories[0]
	require.Equal(t, "org", theory.Schema)
	require.Len(t, theory.Constraints, 3)
	require.Equal(t, ast.ConstraintKey, theory.Constraints[0].Kind)
	require.Equal(t, []string{"employer", "employee"}, theory.Constraints[0].Fields)
	require.Equal(t, ast.ConstraintSymmetric, theory.Constraints[1].Kind)
	require.Equal(t, ast.ConstraintUnknown, theory.Constraints[2].Kind)

	require.Len(t, mod.Instances, 1)
	inst := mod.Instances[0]
	require.Equal(t, "acme", inst.Name)
	require.Equal(t, "org", inst.Schema)
	require.Len(t, inst.Objects, 2)
	require.Len(t, inst.Relations, 1)
	require.Len(t, inst.Relations[0].Tuples, 2)
	require.Equal(t, "acme", inst.Relations[0].Tuples[0].Fields[0].Value)
}

func TestParseRejectsMalformedSubtype(t *testing.T) {
	_, err := parser.Parse("module m\n\nschema s:\n  subtype NoSup\n")
	require.Error(t, err)
}
