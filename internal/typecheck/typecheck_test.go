package typecheck_test

import (
	"testing"

	"github.com/axiograph/axiograph/internal/axi/parser"
	"github.com/axiograph/axiograph/internal/typecheck"
	"github.com/stretchr/testify/require"
)

const validModule = `module people

schema org:
  object Person
  object Company
  subtype Employee < Person
  relation employs(employer: Company, employee: Person)

instance acme of org:
  Company = {acme}
  Employee = {alice}
  employs = {(employer=acme, employee=alice)}
`

func TestModuleTypechecksCleanlyWithSubtypeUpgrade(t *testing.T) {
	mod, err := parser.Parse(validModule)
	require.NoError(t, err)

	proof, err := typecheck.Module(mod)
	require.NoError(t, err)
	require.Equal(t, "Employee", proof.InstanceTypes["acme"]["alice"])
	require.Equal(t, 1, proof.ProofCounts["acme"])
}

const badFieldType = `module bad

schema org:
  object Person
  object Company
  relation employs(employer: Company, employee: Person)

instance x of org:
  Person = {alice, acme}
  employs = {(employer=acme, employee=alice)}
`

func TestModuleRejectsFieldTypeMismatch(t *testing.T) {
	mod, err := parser.Parse(badFieldType)
	require.NoError(t, err)
	_, err = typecheck.Module(mod)
	require.Error(t, err)
}
