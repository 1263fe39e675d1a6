package exporter_test

import (
	"testing"

	"github.com/axiograph/axiograph/internal/axi/parser"
	"github.com/axiograph/axiograph/internal/exporter"
	"github.com/axiograph/axiograph/internal/importer"
	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/stretchr/testify/require"
)

const sample = `module org

schema org:
  object Person
  object Company
  subtype Employee < Person
  relation employs(employer: Company, employee: Person)

theory rules on org:
  constraint key employs(employee)

instance i of org:
  Person = {alice, bob}
  Company = {acme}
  employs = {(employer=acme, employee=alice), (employer=acme, employee=bob)}
`

func TestExportRoundTripsThroughReimport(t *testing.T) {
	mod, err := parser.Parse(sample)
	require.NoError(t, err)

	db := pathdb.New()
	_, err = importer.Import(db, mod)
	require.NoError(t, err)

	text, err := exporter.Export(db, "org")
	require.NoError(t, err)
	require.Contains(t, text, "module org")
	require.Contains(t, text, "object Company")
	require.Contains(t, text, "object Person")
	require.Contains(t, text, "relation employs(employer: Company, employee: Person)")
	require.Contains(t, text, "instance i of org:")

	reparsed, err := parser.Parse(text)
	require.NoError(t, err)
	require.Equal(t, "org", reparsed.Name)

	db2 := pathdb.New()
	_, err = importer.Import(db2, reparsed)
	require.NoError(t, err)

	text2, err := exporter.Export(db2, "org")
	require.NoError(t, err)
	require.Equal(t, text, text2)
}

func TestExportUnknownModuleErrors(t *testing.T) {
	db := pathdb.New()
	_, err := exporter.Export(db, "ghost")
	require.Error(t, err)
}
