// Package builder implements the typed builder pattern for materializing
// schema-conformant entities and reified fact nodes into a PathDB image:
// every value handed back to a caller is a witness token carrying the
// PathDB's identity token, so a witness minted against one image can
// never be silently replayed against another.
package builder

import (
	"fmt"

	"github.com/axiograph/axiograph/internal/meta"
	"github.com/axiograph/axiograph/internal/pathdb"
)

// ErrTokenMismatch is returned by a witness accessor when called against
// a PathDB other than the one that minted it.
type ErrTokenMismatch struct {
	Want, Got pathdb.DBToken
}

func (e *ErrTokenMismatch) Error() string {
	return fmt.Sprintf("builder: witness minted for image token %d used against image token %d", e.Want, e.Got)
}

// FieldError reports a fact field that could not be written: either a
// value was supplied twice for one field, a relation's declared field
// was never assigned, or commit_into_existing found the new value
// disagreeing with a value the fact already carries.
type FieldError struct {
	Relation string
	Field    string
	Reason   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("FieldError: relation %s field %s: %s", e.Relation, e.Field, e.Reason)
}

// ctxFieldName is the schema field whose presence on a relation triggers
// the axi_fact_in_context edge (§3, §8 property 4).
const ctxFieldName = "ctx"

// TypedEntity is a witnessed reference to an entity known (at the time
// it was built) to conform to a specific schema object type.
type TypedEntity struct {
	id    pathdb.EntityID
	typ   string
	token pathdb.DBToken
}

// ID returns the underlying entity ID if db is the image this witness
// was minted against, else ErrTokenMismatch.
func (e TypedEntity) ID(db *pathdb.PathDB) (pathdb.EntityID, error) {
	if db.Token() != e.token {
		return 0, &ErrTokenMismatch{Want: e.token, Got: db.Token()}
	}
	return e.id, nil
}

// Type returns the object type this witness was built against.
func (e TypedEntity) Type() string { return e.typ }

// TypedFact is a witnessed reference to a reified fact node.
type TypedFact struct {
	id       pathdb.EntityID
	relation string
	token    pathdb.DBToken
}

// ID returns the underlying fact-node entity ID if db is the image this
// witness was minted against, else ErrTokenMismatch.
func (f TypedFact) ID(db *pathdb.PathDB) (pathdb.EntityID, error) {
	if db.Token() != f.token {
		return 0, &ErrTokenMismatch{Want: f.token, Got: db.Token()}
	}
	return f.id, nil
}

// SchemaBuilder mints entities and facts conforming to one schema within
// db. It is the only supported way to add schema-plane data to a PathDB
// image: Entity checks the type name against the schema's declared
// objects and subtype closure, and Fact/CommitIntoExisting check the
// relation and its field names, before touching db.
type SchemaBuilder struct {
	db     *pathdb.PathDB
	schema *meta.Schema
}

// NewSchemaBuilder returns a builder scoped to schema within metaIdx,
// or an error if the schema is not declared in metaIdx.
func NewSchemaBuilder(db *pathdb.PathDB, metaIdx *meta.Index, schemaName string) (*SchemaBuilder, error) {
	schema, ok := metaIdx.Schemas[schemaName]
	if !ok {
		return nil, fmt.Errorf("builder: unknown schema %q", schemaName)
	}
	return &SchemaBuilder{db: db, schema: schema}, nil
}

// Entity creates an entity of typeName with the given name and extra
// attributes, returning a witness. Every call adds a new entity: an
// existing entity with the same name is not looked up or reused.
// typeName must be declared (directly or as a subtype of a declared
// object) in the builder's schema.
func (b *SchemaBuilder) Entity(typeName, name string, attrs []pathdb.Attr) (TypedEntity, error) {
	found := false
	for _, obj := range b.schema.Objects {
		if b.schema.IsSubtype(typeName, obj) || typeName == obj {
			found = true
			break
		}
	}
	if !found {
		return TypedEntity{}, fmt.Errorf("builder: schema %s has no object type %q", b.schema.Name, typeName)
	}

	full := append([]pathdb.Attr{
		{Key: meta.AttrAxiSchema, Value: b.schema.Name},
		{Key: meta.MetaAttrName, Value: name},
	}, attrs...)

	var id pathdb.EntityID
	err := b.db.Mutate(func(db *pathdb.PathDB) error {
		id = db.Entities.Add(typeName, full)
		return nil
	})
	if err != nil {
		return TypedEntity{}, err
	}
	return TypedEntity{id: id, typ: typeName, token: b.db.Token()}, nil
}

// FieldAssignment is one field-name -> entity-witness pair used to
// build a fact node's field edges.
type FieldAssignment struct {
	Field  string
	Entity TypedEntity
}

// Fact reifies one tuple of relationName as a fact node: an entity
// carrying axi_schema/axi_relation attributes plus one outgoing edge per
// declared field, named after the field, pointing at the field's
// assigned entity. Every field the relation declares must be present in
// assignments exactly once. The assigned entities' types are not compared
// with the fields' declared types here: meta.RelationDecl carries field
// names only.
func (b *SchemaBuilder) Fact(relationName string, assignments []FieldAssignment) (TypedFact, error) {
	decl, byField, err := b.resolveAssignments(relationName, assignments)
	if err != nil {
		return TypedFact{}, err
	}

	var factID pathdb.EntityID
	err = b.db.Mutate(func(db *pathdb.PathDB) error {
		factID = db.Entities.Add("axi_fact", []pathdb.Attr{
			{Key: meta.AttrAxiSchema, Value: b.schema.Name},
			{Key: meta.AttrAxiRelation, Value: relationName},
		})
		for _, f := range decl.Fields {
			a := byField[f]
			targetID, err := a.Entity.ID(db)
			if err != nil {
				return err
			}
			if _, err := db.Relations.Add(f, factID, targetID, 1.0, nil); err != nil {
				return fmt.Errorf("field %s: %w", f, err)
			}
		}
		if ctx, ok := byField[ctxFieldName]; ok {
			ctxID, err := ctx.Entity.ID(db)
			if err != nil {
				return err
			}
			if _, err := db.Relations.Add(meta.RelFactInContext, factID, ctxID, 1.0, nil); err != nil {
				return fmt.Errorf("field %s: %w", ctxFieldName, err)
			}
		}
		return nil
	})
	if err != nil {
		return TypedFact{}, err
	}

	return TypedFact{id: factID, relation: relationName, token: b.db.Token()}, nil
}

// resolveAssignments validates assignments against relationName's
// declared fields, returning the relation decl and a by-field lookup
// ready for writing. Shared by Fact and CommitIntoExisting.
func (b *SchemaBuilder) resolveAssignments(relationName string, assignments []FieldAssignment) (*meta.RelationDecl, map[string]FieldAssignment, error) {
	decl, ok := b.schema.Relations[relationName]
	if !ok {
		return nil, nil, fmt.Errorf("builder: schema %s has no relation %q", b.schema.Name, relationName)
	}

	byField := make(map[string]FieldAssignment, len(assignments))
	for _, a := range assignments {
		if _, dup := byField[a.Field]; dup {
			return nil, nil, &FieldError{Relation: relationName, Field: a.Field, Reason: "assigned twice"}
		}
		byField[a.Field] = a
	}
	for _, f := range decl.Fields {
		if _, ok := byField[f]; !ok {
			return nil, nil, &FieldError{Relation: relationName, Field: f, Reason: "missing"}
		}
	}
	return decl, byField, nil
}

// CommitIntoExisting idempotently merges assignments into the fact node
// factID, which must already be a reified fact of relationName (§4.10,
// §8 idempotence law). A field the fact does not yet carry is added,
// including the ctx -> axi_fact_in_context edge when relationName
// declares a ctx field and it is being added for the first time. A
// field the fact already carries must name the same entity as before;
// disagreement is rejected with a FieldError and nothing is written.
func (b *SchemaBuilder) CommitIntoExisting(factID pathdb.EntityID, relationName string, assignments []FieldAssignment) (TypedFact, error) {
	decl, byField, err := b.resolveAssignments(relationName, assignments)
	if err != nil {
		return TypedFact{}, err
	}

	if tn, ok := b.db.TypeName(factID); !ok || tn != "axi_fact" {
		return TypedFact{}, fmt.Errorf("builder: entity %d is not a fact node", factID)
	}
	if rel, ok := b.db.AttrString(factID, meta.AttrAxiRelation); !ok || rel != relationName {
		return TypedFact{}, fmt.Errorf("builder: entity %d is not a fact of relation %q", factID, relationName)
	}

	err = b.db.Mutate(func(db *pathdb.PathDB) error {
		// Every field is checked for a conflict before any edge is added.
		type newEdge struct {
			field, relType string
			target         pathdb.EntityID
		}
		var missing []newEdge
		for _, f := range decl.Fields {
			a := byField[f]
			targetID, err := a.Entity.ID(db)
			if err != nil {
				return err
			}
			existing := db.OutgoingByName(factID, f)
			if len(existing) == 0 {
				missing = append(missing, newEdge{f, f, targetID})
				continue
			}
			if existing[0].Target != targetID {
				return &FieldError{Relation: relationName, Field: f, Reason: "conflicts with existing value"}
			}
		}
		if ctx, ok := byField[ctxFieldName]; ok {
			ctxID, err := ctx.Entity.ID(db)
			if err != nil {
				return err
			}
			existing := db.OutgoingByName(factID, meta.RelFactInContext)
			if len(existing) == 0 {
				missing = append(missing, newEdge{ctxFieldName, meta.RelFactInContext, ctxID})
			} else if existing[0].Target != ctxID {
				return &FieldError{Relation: relationName, Field: ctxFieldName, Reason: "conflicts with existing value"}
			}
		}
		for _, e := range missing {
			if _, err := db.Relations.Add(e.relType, factID, e.target, 1.0, nil); err != nil {
				return fmt.Errorf("field %s: %w", e.field, err)
			}
		}
		return nil
	})
	if err != nil {
		return TypedFact{}, err
	}

	return TypedFact{id: factID, relation: relationName, token: b.db.Token()}, nil
}
