package constraints_test

import (
	"testing"

	"github.com/axiograph/axiograph/internal/axi/parser"
	"github.com/axiograph/axiograph/internal/constraints"
	"github.com/stretchr/testify/require"
)

const symmetricClosureOK = `module g

schema net:
  object Node
  relation knows(a: Node, b: Node)

theory rules on net:
  constraint symmetric knows

instance i of net:
  Node = {alice, bob}
  knows = {(a=alice, b=bob), (a=bob, b=alice)}
`

func TestSymmetricConstraintHolds(t *testing.T) {
	mod, err := parser.Parse(symmetricClosureOK)
	require.NoError(t, err)
	_, err = constraints.Module(mod)
	require.NoError(t, err)
}

// A symmetric constraint never fails on its own (§4.9): it computes a
// closure. Without any key/functional constraint checked against that
// closure, an unswapped tuple set is just as acceptable as a closed one.
const symmetricAloneNeverFails = `module g

schema net:
  object Node
  relation knows(a: Node, b: Node)

theory rules on net:
  constraint symmetric knows

instance i of net:
  Node = {alice, bob}
  knows = {(a=alice, b=bob)}
`

func TestSymmetricConstraintAloneNeverFails(t *testing.T) {
	mod, err := parser.Parse(symmetricAloneNeverFails)
	require.NoError(t, err)
	_, err = constraints.Module(mod)
	require.NoError(t, err)
}

const keyOK = `module g

schema org:
  object Person
  object Company
  relation employs(employer: Company, employee: Person)

theory rules on org:
  constraint key employs(employee)

instance i of org:
  Person = {alice, bob}
  Company = {acme, other}
  employs = {(employer=acme, employee=alice), (employer=other, employee=bob)}
`

func TestKeyConstraintHolds(t *testing.T) {
	mod, err := parser.Parse(keyOK)
	require.NoError(t, err)
	_, err = constraints.Module(mod)
	require.NoError(t, err)
}

const unknownConstraint = `module g

schema org:
  object Person
  relation likes(a: Person, b: Person)

theory rules on org:
  constraint some made up prose

instance i of org:
  Person = {alice}
  likes = {}
`

func TestUnknownConstraintIsHardRejected(t *testing.T) {
	mod, err := parser.Parse(unknownConstraint)
	require.NoError(t, err)
	_, err = constraints.Module(mod)
	require.Error(t, err)
}

// E2 from the testable-properties scenarios: extending a baseline
// family module's theory with `constraint key Parent(child)` and a
// duplicated `child` value must be rejected.
const familyKeyViolation = `module Family

schema Fam:
  object Person
  relation Parent(child: Person, parent: Person)

theory Rules on Fam:
  constraint key Parent(child)

instance FT of Fam:
  Person = {Alice, Bob, Carol}
  Parent = {(child=Bob, parent=Alice), (child=Carol, parent=Alice), (child=Bob, parent=Carol)}
`

func TestKeyConstraintViolation(t *testing.T) {
	mod, err := parser.Parse(familyKeyViolation)
	require.NoError(t, err)
	_, err = constraints.Module(mod)
	require.ErrorContains(t, err, "KeyViolation")
}

// E3 from the testable-properties scenarios: a `where`-scoped symmetric
// closure turns an otherwise-functional relation non-functional.
const symmetricWhereFunctionalViolation = `module g

schema S:
  object T
  object K
  relation R(a: T, b: T, kind: K)

theory Rules on S:
  constraint symmetric R where kind in {k1}
  constraint key R(a, b, kind)
  constraint functional R.a -> R.b

instance i of S:
  T = {x, y, z}
  K = {k1, k2}
  R = {(a=x, b=y, kind=k1), (a=x, b=z, kind=k2)}
`

func TestSymmetricWhereClosureProducesFunctionalViolation(t *testing.T) {
	mod, err := parser.Parse(symmetricWhereFunctionalViolation)
	require.NoError(t, err)
	_, err = constraints.Module(mod)
	require.ErrorContains(t, err, "FunctionalViolation")
}

const symmetricWhereEmptyTrivial = `module g

schema S:
  object T
  object K
  relation R(a: T, b: T, kind: K)

theory Rules on S:
  constraint symmetric R where kind in {}
  constraint functional R.a -> R.b

instance i of S:
  T = {x, y}
  K = {k1}
  R = {(a=x, b=y, kind=k1)}
`

func TestSymmetricWhereEmptySetIsTriviallySatisfied(t *testing.T) {
	mod, err := parser.Parse(symmetricWhereEmptyTrivial)
	require.NoError(t, err)
	_, err = constraints.Module(mod)
	require.NoError(t, err)
}

const transitiveClosureFunctionalViolation = `module g

schema S:
  object T
  relation Before(a: T, b: T)

theory Rules on S:
  constraint transitive Before
  constraint functional Before.a -> Before.b

instance i of S:
  T = {x, y, z, w}
  Before = {(a=x, b=y), (a=y, b=z), (a=x, b=w)}
`

func TestTransitiveClosureProducesFunctionalViolation(t *testing.T) {
	mod, err := parser.Parse(transitiveClosureFunctionalViolation)
	require.NoError(t, err)
	_, err = constraints.Module(mod)
	require.ErrorContains(t, err, "FunctionalViolation")
}
