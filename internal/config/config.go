// Package config loads the accepted-plane and WAL directory layout plus
// the quality-gate profile from a YAML file, read directly rather than
// through any global singleton so it is safe to call before any process
// init has run.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// QualityProfile selects how strict the quality gate is during
// promotion: off skips it; fast and strict both re-import the candidate
// into a fresh image and block on any import error. strict adds no check
// of its own: the gate has no warning-level findings, so there are no
// warnings for it to treat as blocking.
type QualityProfile string

const (
	QualityOff    QualityProfile = "off"
	QualityFast   QualityProfile = "fast"
	QualityStrict QualityProfile = "strict"
)

// Valid reports whether p is one of the known profiles.
func (p QualityProfile) Valid() bool {
	switch p {
	case QualityOff, QualityFast, QualityStrict:
		return true
	default:
		return false
	}
}

// AcceptedPlaneConfig is the subset of fields read directly from
// axiograph.yaml: where the accepted plane and its WAL live on disk, and
// which quality profile gates promotion by default.
type AcceptedPlaneConfig struct {
	AcceptedDir    string         `yaml:"accepted-dir"`
	QualityProfile QualityProfile `yaml:"quality-profile"`
}

// defaults applied when the file is missing or a field is left blank.
func defaults() AcceptedPlaneConfig {
	return AcceptedPlaneConfig{
		AcceptedDir:    ".axiograph",
		QualityProfile: QualityFast,
	}
}

// Load reads axiograph.yaml from dir and returns an AcceptedPlaneConfig.
// A missing or unparsable file yields the defaults rather than an error:
// callers that need before any other component is initialized (before a
// PathDB exists, before logging is configured) must never fail here.
func Load(dir string) AcceptedPlaneConfig {
	cfg := defaults()

	path := filepath.Join(dir, "axiograph.yaml")
	data, err := os.ReadFile(path) // #nosec G304 - caller-controlled directory
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaults()
	}
	if !cfg.QualityProfile.Valid() {
		cfg.QualityProfile = QualityFast
	}
	return cfg
}
