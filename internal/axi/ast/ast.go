// Package ast defines the parsed representation of a canonical `.axi`
// module: its schemas (objects, subtypes, relations), theories
// (constraints, equations, rewrite rules), and instances (object and
// relation tuple assignments).
package ast

// Module is the top-level parsed unit: one `module <name>` block.
type Module struct {
	Name      string
	Schemas   []*Schema
	Theories  []*Theory
	Instances []*Instance
}

// Field is one relation field declaration: a name and its declared
// object type.
type Field struct {
	Name string
	Type string
}

// RelationDecl declares an n-ary relation over a schema's object types.
// Context and Temporal carry the type name named by an optional
// `@context <Type>` / `@temporal <Type>` annotation on the declaration;
// both are empty when the relation carries no such dimension.
type RelationDecl struct {
	Name     string
	Fields   []Field
	Context  string
	Temporal string
}

// Subtype declares that Sub is included in Sup, optionally via a named
// inclusion morphism.
type Subtype struct {
	Sub       string
	Sup       string
	Inclusion string
}

// Schema is one `schema <name>:` block.
type Schema struct {
	Name      string
	Objects   []string
	Subtypes  []Subtype
	Relations []RelationDecl
}

// ConstraintKind mirrors meta.ConstraintKind without importing package
// meta, so the parser has no dependency on the importer's target
// representation.
type ConstraintKind int

const (
	ConstraintUnknown ConstraintKind = iota
	ConstraintKey
	ConstraintFunctional
	ConstraintSymmetric
	ConstraintTransitive
)

// Constraint is one theory constraint line. Fields is populated for Key
// (all key fields, in order) and Functional (`[src, dst]`). Carriers and
// Params hold the symmetric/transitive constraint's explicit `carriers
// (a,b)` / `param (p1,...)` clauses, if given; an empty Carriers means
// the checker must default to the relation's first two declared fields.
// WhereField/WhereValues hold a symmetric constraint's `where field in
// {v,...}` clause, if given. Text always carries the original source
// line verbatim so Unknown constraints (and any recognized one) can be
// re-emitted byte-for-byte by the exporter.
type Constraint struct {
	Kind        ConstraintKind
	Relation    string
	Fields      []string
	Carriers    []string
	Params      []string
	WhereField  string
	WhereValues []string
	Text        string
}

// Equation is a `equation <name>: lhs = rhs` theory entry.
type Equation struct {
	Name string
	LHS  string
	RHS  string
}

// RewriteRule is a `rewrite <name>: ...` theory entry.
type RewriteRule struct {
	Name        string
	Orientation string // "forward" unless stated otherwise
	Vars        string
	LHS         string
	RHS         string
}

// Theory is one `theory <name> on <schema>:` block.
type Theory struct {
	Name        string
	Schema      string
	Constraints []Constraint
	Equations   []Equation
	Rewrites    []RewriteRule
}

// ObjectAssignment is one `<ObjectType> = {name1, name2, ...}` line
// inside an instance block.
type ObjectAssignment struct {
	ObjectType string
	Names      []string
}

// FieldValue is one `field = value` pair inside a relation tuple.
type FieldValue struct {
	Field string
	Value string
}

// Tuple is one `(field1 = value1, field2 = value2, ...)` relation
// assignment entry.
type Tuple struct {
	Fields []FieldValue
}

// RelationAssignment is one `<relation> = {(...), (...)}` line inside an
// instance block.
type RelationAssignment struct {
	Relation string
	Tuples   []Tuple
}

// Instance is one `instance <name> of <schema>:` block.
type Instance struct {
	Name               string
	Schema             string
	Objects            []ObjectAssignment
	Relations          []RelationAssignment
}
