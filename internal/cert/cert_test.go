package cert_test

import (
	"testing"

	"github.com/axiograph/axiograph/internal/axi/parser"
	"github.com/axiograph/axiograph/internal/cert"
	"github.com/axiograph/axiograph/internal/constraints"
	"github.com/axiograph/axiograph/internal/typecheck"
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
  Person = {alice}
  Company = {acme}
  employs = {(employer=acme, employee=alice)}
`

func TestWellTypedCertificateRoundTripsAndVerifies(t *testing.T) {
	mod, err := parser.Parse(sample)
	require.NoError(t, err)
	proof, err := typecheck.Module(mod)
	require.NoError(t, err)

	env, err := cert.WellTyped(proof, sample)
	require.NoError(t, err)
	require.Equal(t, cert.KindWellTyped, env.Kind)

	require.NoError(t, cert.VerifyWellTyped(env, sample))
	require.Error(t, cert.VerifyWellTyped(env, sample+"\n# tampered\n"))
}

func TestConstraintsOKCertificateRoundTripsAndVerifies(t *testing.T) {
	mod, err := parser.Parse(sample)
	require.NoError(t, err)
	proof, err := constraints.Module(mod)
	require.NoError(t, err)

	env, err := cert.ConstraintsOK(proof, sample)
	require.NoError(t, err)
	require.NoError(t, cert.VerifyConstraintsOK(env, sample))
}

func TestDecodeRejectsWrongKind(t *testing.T) {
	mod, err := parser.Parse(sample)
	require.NoError(t, err)
	proof, err := typecheck.Module(mod)
	require.NoError(t, err)
	env, err := cert.WellTyped(proof, sample)
	require.NoError(t, err)

	_, err = env.DecodeConstraintsOK()
	require.Error(t, err)
}

func TestPathEquivCertificateHoldsUnderReassociationAndIdentity(t *testing.T) {
	p := cert.Step("a", "knows", "b")
	q := cert.Step("b", "knows", "c")

	left := cert.Trans(
		cert.Trans(
			cert.Trans(cert.Reflexive("a"), p),
			q,
		),
		cert.Reflexive("c"),
	)
	right := cert.Trans(p, cert.Trans(cert.Reflexive("b"), q))

	proof, err := cert.ProvePathEquiv(left, right)
	require.NoError(t, err)
	require.Equal(t, "trans", proof.Normalized.Kind)
	require.Equal(t, "a", proof.Normalized.Left.From)
	require.Equal(t, "c", proof.Normalized.Right.To)

	env, err := cert.PathEquiv(proof)
	require.NoError(t, err)
	require.NoError(t, cert.VerifyPathEquiv(env))
}

func TestPathEquivRejectsNonEquivalentPaths(t *testing.T) {
	left := cert.Step("a", "knows", "b")
	right := cert.Step("a", "likes", "b")
	_, err := cert.ProvePathEquiv(left, right)
	require.Error(t, err)
}
