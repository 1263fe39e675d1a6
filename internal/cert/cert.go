// Package cert implements the certificate envelope: a portable,
// independently re-verifiable proof object wrapping the result of a
// typecheck, a constraint check, or a path-equivalence derivation, each
// anchored to the module content (or snapshot) it was produced against.
package cert

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/axiograph/axiograph/internal/axi/parser"
	"github.com/axiograph/axiograph/internal/constraints"
	"github.com/axiograph/axiograph/internal/digest"
	"github.com/axiograph/axiograph/internal/typecheck"
)

// Kind identifies the proof shape a certificate envelope carries.
type Kind string

const (
	KindWellTyped     Kind = "axi_well_typed_v1"
	KindConstraintsOK Kind = "axi_constraints_ok_v1"
	KindPathEquiv     Kind = "path_equiv_v2"
)

// Anchor ties a certificate to the content it was produced against, so a
// verifier can reject a certificate replayed against different content.
type Anchor struct {
	ModuleDigest digest.ID `json:"module_digest,omitempty"`
	SnapshotID   digest.ID `json:"snapshot_id,omitempty"`
}

// Envelope is the portable certificate: a kind tag, an opaque
// kind-specific proof payload, and an anchor. Proof is kept as raw JSON
// rather than a concrete struct so Envelope itself has one stable shape
// regardless of which kind it carries.
type Envelope struct {
	Kind   Kind            `json:"kind"`
	Proof  json.RawMessage `json:"proof"`
	Anchor Anchor          `json:"anchor"`
}

func wrap(kind Kind, proof any, anchor Anchor) (*Envelope, error) {
	data, err := json.Marshal(proof)
	if err != nil {
		return nil, fmt.Errorf("cert: marshaling %s proof: %w", kind, err)
	}
	return &Envelope{Kind: kind, Proof: data, Anchor: anchor}, nil
}

// WellTyped wraps a typecheck.Proof, anchored to the digest of the
// module text it was produced from.
func WellTyped(proof *typecheck.Proof, moduleText string) (*Envelope, error) {
	return wrap(KindWellTyped, proof, Anchor{ModuleDigest: digest.OfString(moduleText)})
}

// ConstraintsOK wraps a constraints.Proof, anchored the same way.
func ConstraintsOK(proof *constraints.Proof, moduleText string) (*Envelope, error) {
	return wrap(KindConstraintsOK, proof, Anchor{ModuleDigest: digest.OfString(moduleText)})
}

// PathEquiv wraps a PathEquivProof. Path-equivalence proofs are not
// anchored to module text (they concern path expressions, not a
// module), so Anchor is left empty unless the caller fills it in
// separately.
func PathEquiv(proof *PathEquivProof) (*Envelope, error) {
	return wrap(KindPathEquiv, proof, Anchor{})
}

func (e *Envelope) decode(kind Kind, out any) error {
	if e.Kind != kind {
		return fmt.Errorf("cert: envelope carries kind %s, not %s", e.Kind, kind)
	}
	if err := json.Unmarshal(e.Proof, out); err != nil {
		return fmt.Errorf("cert: decoding %s proof: %w", kind, err)
	}
	return nil
}

// DecodeWellTyped extracts the wrapped typecheck.Proof.
func (e *Envelope) DecodeWellTyped() (*typecheck.Proof, error) {
	var p typecheck.Proof
	if err := e.decode(KindWellTyped, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodeConstraintsOK extracts the wrapped constraints.Proof.
func (e *Envelope) DecodeConstraintsOK() (*constraints.Proof, error) {
	var p constraints.Proof
	if err := e.decode(KindConstraintsOK, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DecodePathEquiv extracts the wrapped PathEquivProof.
func (e *Envelope) DecodePathEquiv() (*PathEquivProof, error) {
	var p PathEquivProof
	if err := e.decode(KindPathEquiv, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// VerifyWellTyped independently re-derives a well-typed certificate from
// moduleText and reports an error unless it matches env exactly and
// env's anchor matches moduleText's digest.
func VerifyWellTyped(env *Envelope, moduleText string) error {
	if env.Anchor.ModuleDigest != digest.OfString(moduleText) {
		return fmt.Errorf("cert: module digest mismatch: certificate is not anchored to this text")
	}
	proof, err := env.DecodeWellTyped()
	if err != nil {
		return err
	}
	mod, err := parser.Parse(moduleText)
	if err != nil {
		return fmt.Errorf("cert: reparsing anchored text: %w", err)
	}
	fresh, err := typecheck.Module(mod)
	if err != nil {
		return fmt.Errorf("cert: module no longer typechecks: %w", err)
	}
	if !reflect.DeepEqual(fresh, proof) {
		return fmt.Errorf("cert: recomputed typecheck proof does not match certificate")
	}
	return nil
}

// VerifyConstraintsOK independently re-derives a constraints-ok
// certificate from moduleText and reports an error unless it matches.
func VerifyConstraintsOK(env *Envelope, moduleText string) error {
	if env.Anchor.ModuleDigest != digest.OfString(moduleText) {
		return fmt.Errorf("cert: module digest mismatch: certificate is not anchored to this text")
	}
	proof, err := env.DecodeConstraintsOK()
	if err != nil {
		return err
	}
	mod, err := parser.Parse(moduleText)
	if err != nil {
		return fmt.Errorf("cert: reparsing anchored text: %w", err)
	}
	fresh, err := constraints.Module(mod)
	if err != nil {
		return fmt.Errorf("cert: module no longer satisfies its constraints: %w", err)
	}
	if !reflect.DeepEqual(fresh, proof) {
		return fmt.Errorf("cert: recomputed constraints proof does not match certificate")
	}
	return nil
}

// VerifyPathEquiv independently re-derives the wrapped path-equivalence
// proof from its own Left/Right expressions and reports an error unless
// it matches env exactly.
func VerifyPathEquiv(env *Envelope) error {
	proof, err := env.DecodePathEquiv()
	if err != nil {
		return err
	}
	fresh, err := ProvePathEquiv(proof.Left, proof.Right)
	if err != nil {
		return fmt.Errorf("cert: paths no longer prove equivalent: %w", err)
	}
	if !reflect.DeepEqual(fresh, proof) {
		return fmt.Errorf("cert: recomputed path-equivalence proof does not match certificate")
	}
	return nil
}
