// Package meta defines the reserved meta-plane vocabulary: the attribute
// and relation names used to encode a canonical `.axi` module's schemas,
// theories, and instances as ordinary PathDB entities and edges, plus
// Index, the read-side view other packages (the builder, the importer,
// the fact index, the exporter) build over that encoding.
package meta

// Reserved attribute keys. Every attribute an .axi import writes onto a
// meta-plane or fact-plane entity uses one of these names, so that any
// PathDB image — regardless of which module produced it — exposes the
// same meta-plane shape to readers.
const (
	AttrAxiSchema   = "axi_schema"   // fact node -> owning schema name
	AttrAxiRelation = "axi_relation" // fact node -> relation name
	AttrAxiFactID   = "axi_fact_id"  // fact node -> deterministic fact identity string

	MetaAttrID   = "meta_id"   // any meta entity -> globally unique meta id
	MetaAttrName = "meta_name" // any meta entity -> its declared name

	AttrSubtypeSub       = "meta_subtype_sub"
	AttrSubtypeSup       = "meta_subtype_sup"
	AttrSubtypeInclusion = "meta_subtype_inclusion"

	AttrConstraintIndex       = "meta_constraint_index"
	AttrConstraintKind        = "meta_constraint_kind"
	AttrConstraintText        = "meta_constraint_text"
	AttrConstraintCarriers    = "meta_constraint_carriers"    // comma-joined field names
	AttrConstraintParams      = "meta_constraint_params"      // comma-joined field names
	AttrConstraintWhereField  = "meta_constraint_where_field"
	AttrConstraintWhereValues = "meta_constraint_where_values" // comma-joined literal values

	AttrRelationContext  = "meta_relation_context"  // relation decl -> @context annotation's type name
	AttrRelationTemporal = "meta_relation_temporal" // relation decl -> @temporal annotation's type name

	AttrEquationIndex = "meta_equation_index"
	AttrEquationLHS   = "meta_equation_lhs"
	AttrEquationRHS   = "meta_equation_rhs"

	AttrRewriteRuleIndex       = "meta_rewrite_rule_index"
	AttrRewriteRuleOrientation = "meta_rewrite_rule_orientation"
	AttrRewriteRuleVars        = "meta_rewrite_rule_vars"
	AttrRewriteRuleLHS         = "meta_rewrite_rule_lhs"
	AttrRewriteRuleRHS         = "meta_rewrite_rule_rhs"

	AttrFieldIndex = "meta_field_index"
	AttrFieldType  = "meta_field_type"

	AttrInstanceSchema = "meta_instance_schema"

	AttrChunkID     = "axi_chunk_id"
	AttrChunkDocID  = "axi_chunk_document_id"
	AttrChunkText   = "axi_chunk_text"
	AttrChunkSpanID = "axi_chunk_span_id"

	AttrProposalID         = "axi_proposal_id"
	AttrProposalConfidence = "axi_proposal_confidence"
	AttrProposalRationale  = "axi_proposal_rationale"
)

// Reserved entity types: the PathDB type name of each meta-plane entity
// (fact and instance entities use other type names).
const (
	TypeModule       = "axi_meta_module"
	TypeSchema       = "axi_meta_schema"
	TypeObject       = "axi_meta_object"
	TypeSubtype      = "axi_meta_subtype"
	TypeRelationDecl = "axi_meta_relation"
	TypeFieldDecl    = "axi_meta_field"
	TypeTheory       = "axi_meta_theory"
	TypeConstraint   = "axi_meta_constraint"
	TypeEquation     = "axi_meta_equation"
	TypeRewriteRule  = "axi_meta_rewrite_rule"
	TypeInstance     = "axi_meta_instance"

	// Evidence-plane entity types, written by the WAL's overlay ops
	// rather than by module import.
	TypeDocChunk       = "axi_evidence_chunk"
	TypeEntityProposal = "axi_evidence_entity_proposal"
)

// Reserved relation (edge) type names connecting meta-plane entities.
const (
	RelHasSchema          = "meta_has_schema"
	RelSchemaHasObject    = "meta_schema_has_object"
	RelSchemaHasSubtype   = "meta_schema_has_subtype"
	RelSchemaHasRelation  = "meta_schema_has_relation"
	RelSchemaHasTheory    = "meta_schema_has_theory"
	RelRelationHasField   = "meta_relation_has_field"
	RelTheoryHasConstraint = "meta_theory_has_constraint"
	RelTheoryHasEquation  = "meta_theory_has_equation"
	RelTheoryHasRewrite   = "meta_theory_has_rewrite_rule"
	RelHasInstance        = "meta_has_instance"
	RelInstanceHasEntity  = "meta_instance_has_entity" // instance -> one of its object-assignment entities
	RelInstanceHasFact    = "meta_instance_has_fact"   // instance -> one of its reified fact nodes
	RelFactOf             = "meta_fact_of"             // fact node -> the relation decl it instantiates
	RelConstraintAppliesTo = "meta_constraint_applies_to" // constraint -> relation decl it constrains
	RelFactInContext      = "axi_fact_in_context"

	RelChunkAbout = "axi_chunk_about" // evidence chunk -> entity it documents
)

// ModuleMetaID returns the deterministic MetaAttrID value for a module's
// top-level meta entity. Import does not look for an existing entity
// with this value, so importing the same module name twice creates two
// module entities that carry the same ID.
func ModuleMetaID(moduleName string) string {
	return "module:" + moduleName
}
