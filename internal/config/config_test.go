package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/axiograph/axiograph/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg := config.Load(t.TempDir())
	require.Equal(t, ".axiograph", cfg.AcceptedDir)
	require.Equal(t, config.QualityFast, cfg.QualityProfile)
}

func TestLoadReadsYamlFields(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "axiograph.yaml"), []byte("accepted-dir: /var/axiograph\nquality-profile: strict\n"), 0o600)
	require.NoError(t, err)

	cfg := config.Load(dir)
	require.Equal(t, "/var/axiograph", cfg.AcceptedDir)
	require.Equal(t, config.QualityStrict, cfg.QualityProfile)
}

func TestLoadFallsBackToDefaultProfileOnUnknownValue(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "axiograph.yaml"), []byte("quality-profile: bogus\n"), 0o600)
	require.NoError(t, err)

	cfg := config.Load(dir)
	require.Equal(t, config.QualityFast, cfg.QualityProfile)
}
