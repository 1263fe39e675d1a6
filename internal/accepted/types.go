package accepted

import (
	"github.com/axiograph/axiograph/internal/digest"
	"github.com/google/uuid"
)

// ModuleRef is where one module's canonical text is stored and the
// digest it must hash to.
type ModuleRef struct {
	ModuleDigest digest.ID `json:"module_digest"`
	StoredPath   string    `json:"stored_path"`
}

// Manifest is the accepted-plane snapshot manifest: the full
// name -> (digest, path) mapping live at this point in the log, plus a
// link to the snapshot it was built from.
type Manifest struct {
	Version            int                  `json:"version"`
	SnapshotID         digest.ID            `json:"snapshot_id"`
	PreviousSnapshotID digest.ID            `json:"previous_snapshot_id,omitempty"`
	CreatedAtUnixSecs  int64                `json:"created_at_unix_secs"`
	Modules            map[string]ModuleRef `json:"modules"`
}

// LogEvent is one line of accepted_plane.log.jsonl: a durable record of
// one promotion, independent of the manifest files (which are
// overwritten-by-new-snapshot, never appended to).
type LogEvent struct {
	Action              string    `json:"action"`
	SnapshotID           digest.ID `json:"snapshot_id"`
	PreviousSnapshotID   digest.ID `json:"prev,omitempty"`
	ModuleName           string    `json:"module_name"`
	ModuleDigest         digest.ID `json:"module_digest"`
	StoredModulePath     string    `json:"stored_module_path"`
	Message              string    `json:"message,omitempty"`
	QualityProfile       string    `json:"quality_profile,omitempty"`
	ConstraintsCertPath  string    `json:"constraints_cert_path,omitempty"`
	ConstraintsOK        bool      `json:"constraints_ok"`
	CreatedAtUnixSecs    int64     `json:"created_at_unix_secs"`
}

// Chunk is an externally-produced document span, imported verbatim and
// linked to an entity when Metadata's "about_type"/"about_name" keys
// resolve against the target schema.
type Chunk struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text"`
	SpanID     string            `json:"span_id"`
	Page       *int              `json:"page,omitempty"`
	BBox       []float64         `json:"bbox,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewChunkID mints a fresh chunk identifier for a collaborator that
// doesn't already have one.
func NewChunkID() string { return uuid.NewString() }

// ProposalKind discriminates the two proposal shapes: a new entity or a
// new relation tuple.
type ProposalKind string

const (
	ProposalEntity   ProposalKind = "entity"
	ProposalRelation ProposalKind = "relation"
)

// Proposal is an externally-produced candidate entity or relation tuple,
// carrying its own confidence and evidence so it can be validated
// against a cloned snapshot before acceptance. Kind discriminates which
// of the Entity*/Relation* fields apply, matching the flat-tagged-struct
// convention used for PathExpr so the type round-trips through
// encoding/json without custom marshaling.
type Proposal struct {
	ProposalID      string       `json:"proposal_id"`
	Kind            ProposalKind `json:"kind"`
	Confidence      float64      `json:"confidence"`
	Evidence        []string     `json:"evidence,omitempty"`
	PublicRationale string       `json:"public_rationale"`
	SchemaHint      string       `json:"schema_hint,omitempty"`

	// Entity fields (Kind == ProposalEntity).
	EntityID         string            `json:"entity_id,omitempty"`
	EntityType       string            `json:"entity_type,omitempty"`
	EntityName       string            `json:"entity_name,omitempty"`
	EntityAttributes map[string]string `json:"entity_attributes,omitempty"`

	// Relation fields (Kind == ProposalRelation).
	RelationID         string            `json:"relation_id,omitempty"`
	RelType            string            `json:"rel_type,omitempty"`
	Source             string            `json:"source,omitempty"`
	Target             string            `json:"target,omitempty"`
	RelationAttributes map[string]string `json:"relation_attributes,omitempty"`
}

// NewProposalID mints a fresh proposal identifier.
func NewProposalID() string { return uuid.NewString() }
