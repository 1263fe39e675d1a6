package accepted_test

import (
	"path/filepath"
	"testing"

	"github.com/axiograph/axiograph/internal/accepted"
	"github.com/axiograph/axiograph/internal/config"
	"github.com/stretchr/testify/require"
)

const sampleModule = `module org

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

const secondModule = `module geo

schema geo:
  object City

instance i of geo:
  City = {springfield}
`

func TestPromoteWritesManifestCertAndAdvancesHEAD(t *testing.T) {
	dir := t.TempDir()

	id, err := accepted.Promote(dir, sampleModule, "initial import", config.QualityFast, nil)
	require.NoError(t, err)
	require.False(t, id.Empty())

	head, err := accepted.ReadHEAD(dir)
	require.NoError(t, err)
	require.Equal(t, id, head)

	manifest, err := accepted.ReadManifest(dir, id)
	require.NoError(t, err)
	require.Contains(t, manifest.Modules, "org")
	require.True(t, manifest.PreviousSnapshotID.Empty())

	text, err := accepted.ReadModuleText(manifest.Modules["org"])
	require.NoError(t, err)
	require.Equal(t, sampleModule, text)
}

func TestPromoteIsDeterministicAcrossFreshDirectories(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()

	idA, err := accepted.Promote(dirA, sampleModule, "", config.QualityOff, nil)
	require.NoError(t, err)
	idB, err := accepted.Promote(dirB, sampleModule, "a different message entirely", config.QualityOff, nil)
	require.NoError(t, err)

	require.Equal(t, idA, idB)
}

func TestPromoteSecondModuleChainsFromPrevious(t *testing.T) {
	dir := t.TempDir()

	id1, err := accepted.Promote(dir, sampleModule, "", config.QualityOff, nil)
	require.NoError(t, err)

	id2, err := accepted.Promote(dir, secondModule, "", config.QualityOff, nil)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	manifest, err := accepted.ReadManifest(dir, id2)
	require.NoError(t, err)
	require.Contains(t, manifest.Modules, "org")
	require.Contains(t, manifest.Modules, "geo")
	require.Equal(t, id1, manifest.PreviousSnapshotID)
}

func TestPromoteRejectsConstraintViolation(t *testing.T) {
	dir := t.TempDir()
	bad := `module org

schema org:
  object Person
  object Company
  relation employs(employer: Company, employee: Person)

theory rules on org:
  constraint key employs(employee)

instance i of org:
  Person = {alice}
  Company = {acme, initech}
  employs = {(employer=acme, employee=alice), (employer=initech, employee=alice)}
`
	_, err := accepted.Promote(dir, bad, "", config.QualityOff, nil)
	require.Error(t, err)

	head, err := accepted.ReadHEAD(dir)
	require.NoError(t, err)
	require.True(t, head.Empty())
}

func TestResolveAcceptsHeadLatestFullAndPrefix(t *testing.T) {
	dir := t.TempDir()
	id, err := accepted.Promote(dir, sampleModule, "", config.QualityOff, nil)
	require.NoError(t, err)

	for _, ref := range []string{"HEAD", "latest", string(id), id.Hex()[:8]} {
		resolved, err := accepted.Resolve(dir, ref)
		require.NoError(t, err, "ref %q", ref)
		require.Equal(t, id, resolved)
	}
}

func TestBuildFromSnapshotMaterializesAxpd(t *testing.T) {
	dir := t.TempDir()
	_, err := accepted.Promote(dir, sampleModule, "", config.QualityOff, nil)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "image.axpd")
	require.NoError(t, accepted.BuildFromSnapshot(dir, "latest", out))

	out2 := filepath.Join(t.TempDir(), "image2.axpd")
	require.NoError(t, accepted.BuildFromSnapshot(dir, "latest", out2))
}
