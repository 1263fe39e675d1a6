// Package importer materializes a parsed, typechecked `.axi` module into
// a PathDB image: one meta-plane entity per schema/object/subtype/
// relation/field/theory/constraint/equation/rewrite-rule declaration,
// and one entity per instance object plus one reified fact node per
// relation tuple, built through package builder so every instance value
// is schema-validated before it ever reaches the graph.
package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/axiograph/axiograph/internal/axi/ast"
	"github.com/axiograph/axiograph/internal/builder"
	"github.com/axiograph/axiograph/internal/constraints"
	"github.com/axiograph/axiograph/internal/meta"
	"github.com/axiograph/axiograph/internal/pathdb"
	"github.com/axiograph/axiograph/internal/typecheck"
)

// Result carries the entity IDs of everything Import wrote, indexed the
// way callers (the accepted-plane promotion pipeline, the exporter)
// need to find them again.
type Result struct {
	ModuleEntity pathdb.EntityID
	SchemaByName map[string]pathdb.EntityID
}

// Import typechecks and constraint-checks mod, then writes it into db.
// It refuses to write anything if either check fails: a PathDB image
// never observes a partially-imported module.
func Import(db *pathdb.PathDB, mod *ast.Module) (*Result, error) {
	if _, err := typecheck.Module(mod); err != nil {
		return nil, fmt.Errorf("importer: %w", err)
	}
	if _, err := constraints.Module(mod); err != nil {
		return nil, fmt.Errorf("importer: %w", err)
	}

	res := &Result{SchemaByName: make(map[string]pathdb.EntityID)}

	relDeclByName := make(map[string]pathdb.EntityID)     // "schema.relation" -> decl entity
	fieldDeclByName := make(map[string]pathdb.EntityID)   // "schema.relation.field" -> field entity

	err := db.Mutate(func(db *pathdb.PathDB) error {
		moduleID := db.Entities.Add(meta.TypeModule, []pathdb.Attr{
			{Key: meta.MetaAttrID, Value: meta.ModuleMetaID(mod.Name)},
			{Key: meta.MetaAttrName, Value: mod.Name},
		})
		res.ModuleEntity = moduleID

		for _, schema := range mod.Schemas {
			schemaID := db.Entities.Add(meta.TypeSchema, []pathdb.Attr{
				{Key: meta.MetaAttrName, Value: schema.Name},
			})
			res.SchemaByName[schema.Name] = schemaID
			if _, err := db.Relations.Add(meta.RelHasSchema, moduleID, schemaID, 1, nil); err != nil {
				return err
			}

			objEntity := make(map[string]pathdb.EntityID, len(schema.Objects))
			for _, obj := range schema.Objects {
				id := db.Entities.Add(meta.TypeObject, []pathdb.Attr{{Key: meta.MetaAttrName, Value: obj}})
				objEntity[obj] = id
				if _, err := db.Relations.Add(meta.RelSchemaHasObject, schemaID, id, 1, nil); err != nil {
					return err
				}
			}

			for _, st := range schema.Subtypes {
				id := db.Entities.Add(meta.TypeSubtype, []pathdb.Attr{
					{Key: meta.AttrSubtypeSub, Value: st.Sub},
					{Key: meta.AttrSubtypeSup, Value: st.Sup},
					{Key: meta.AttrSubtypeInclusion, Value: st.Inclusion},
				})
				if _, err := db.Relations.Add(meta.RelSchemaHasSubtype, schemaID, id, 1, nil); err != nil {
					return err
				}
			}

			for _, rel := range schema.Relations {
				relAttrs := []pathdb.Attr{{Key: meta.MetaAttrName, Value: rel.Name}}
				if rel.Context != "" {
					relAttrs = append(relAttrs, pathdb.Attr{Key: meta.AttrRelationContext, Value: rel.Context})
				}
				if rel.Temporal != "" {
					relAttrs = append(relAttrs, pathdb.Attr{Key: meta.AttrRelationTemporal, Value: rel.Temporal})
				}
				relID := db.Entities.Add(meta.TypeRelationDecl, relAttrs)
				relDeclByName[schema.Name+"."+rel.Name] = relID
				if _, err := db.Relations.Add(meta.RelSchemaHasRelation, schemaID, relID, 1, nil); err != nil {
					return err
				}
				for i, f := range rel.Fields {
					fieldID := db.Entities.Add(meta.TypeFieldDecl, []pathdb.Attr{
						{Key: meta.MetaAttrName, Value: f.Name},
						{Key: meta.AttrFieldIndex, Value: strconv.Itoa(i)},
						{Key: meta.AttrFieldType, Value: f.Type},
					})
					fieldDeclByName[schema.Name+"."+rel.Name+"."+f.Name] = fieldID
					if _, err := db.Relations.Add(meta.RelRelationHasField, relID, fieldID, 1, nil); err != nil {
						return err
					}
				}
			}
		}

		for _, theory := range mod.Theories {
			schemaID, ok := res.SchemaByName[theory.Schema]
			if !ok {
				return fmt.Errorf("importer: theory %s references unknown schema %s", theory.Name, theory.Schema)
			}
			theoryID := db.Entities.Add(meta.TypeTheory, []pathdb.Attr{{Key: meta.MetaAttrName, Value: theory.Name}})
			if _, err := db.Relations.Add(meta.RelSchemaHasTheory, schemaID, theoryID, 1, nil); err != nil {
				return err
			}

			for i, c := range theory.Constraints {
				kindStr := constraintKindString(c.Kind)
				cAttrs := []pathdb.Attr{
					{Key: meta.AttrConstraintIndex, Value: strconv.Itoa(i)},
					{Key: meta.AttrConstraintKind, Value: kindStr},
					{Key: meta.AttrConstraintText, Value: c.Text},
				}
				if len(c.Carriers) > 0 {
					cAttrs = append(cAttrs, pathdb.Attr{Key: meta.AttrConstraintCarriers, Value: strings.Join(c.Carriers, ",")})
				}
				if len(c.Params) > 0 {
					cAttrs = append(cAttrs, pathdb.Attr{Key: meta.AttrConstraintParams, Value: strings.Join(c.Params, ",")})
				}
				if c.WhereField != "" {
					cAttrs = append(cAttrs, pathdb.Attr{Key: meta.AttrConstraintWhereField, Value: c.WhereField})
					cAttrs = append(cAttrs, pathdb.Attr{Key: meta.AttrConstraintWhereValues, Value: strings.Join(c.WhereValues, ",")})
				}
				cid := db.Entities.Add(meta.TypeConstraint, cAttrs)
				if _, err := db.Relations.Add(meta.RelTheoryHasConstraint, theoryID, cid, 1, nil); err != nil {
					return err
				}
				if relID, ok := relDeclByName[theory.Schema+"."+c.Relation]; ok {
					if _, err := db.Relations.Add(meta.RelConstraintAppliesTo, cid, relID, 1, nil); err != nil {
						return err
					}
					for _, fname := range c.Fields {
						if fid, ok := fieldDeclByName[theory.Schema+"."+c.Relation+"."+fname]; ok {
							if _, err := db.Relations.Add(meta.RelRelationHasField, cid, fid, 1, nil); err != nil {
								return err
							}
						}
					}
				}
			}

			for i, eq := range theory.Equations {
				eid := db.Entities.Add(meta.TypeEquation, []pathdb.Attr{
					{Key: meta.MetaAttrName, Value: eq.Name},
					{Key: meta.AttrEquationIndex, Value: strconv.Itoa(i)},
					{Key: meta.AttrEquationLHS, Value: eq.LHS},
					{Key: meta.AttrEquationRHS, Value: eq.RHS},
				})
				if _, err := db.Relations.Add(meta.RelTheoryHasEquation, theoryID, eid, 1, nil); err != nil {
					return err
				}
			}

			for i, rw := range theory.Rewrites {
				rid := db.Entities.Add(meta.TypeRewriteRule, []pathdb.Attr{
					{Key: meta.MetaAttrName, Value: rw.Name},
					{Key: meta.AttrRewriteRuleIndex, Value: strconv.Itoa(i)},
					{Key: meta.AttrRewriteRuleOrientation, Value: rw.Orientation},
					{Key: meta.AttrRewriteRuleVars, Value: rw.Vars},
					{Key: meta.AttrRewriteRuleLHS, Value: rw.LHS},
					{Key: meta.AttrRewriteRuleRHS, Value: rw.RHS},
				})
				if _, err := db.Relations.Add(meta.RelTheoryHasRewrite, theoryID, rid, 1, nil); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	metaIdx, err := meta.BuildIndex(db)
	if err != nil {
		return nil, fmt.Errorf("importer: rebuilding meta index: %w", err)
	}

	for _, inst := range mod.Instances {
		if err := importInstance(db, metaIdx, res, inst); err != nil {
			return nil, err
		}
	}

	return res, nil
}

func constraintKindString(k ast.ConstraintKind) string {
	switch k {
	case ast.ConstraintKey:
		return "key"
	case ast.ConstraintFunctional:
		return "functional"
	case ast.ConstraintSymmetric:
		return "symmetric"
	case ast.ConstraintTransitive:
		return "transitive"
	default:
		return "unknown"
	}
}

func importInstance(db *pathdb.PathDB, metaIdx *meta.Index, res *Result, inst *ast.Instance) error {
	sb, err := builder.NewSchemaBuilder(db, metaIdx, inst.Schema)
	if err != nil {
		return fmt.Errorf("importer: instance %s: %w", inst.Name, err)
	}

	var instanceID pathdb.EntityID
	err = db.Mutate(func(db *pathdb.PathDB) error {
		instanceID = db.Entities.Add(meta.TypeInstance, []pathdb.Attr{
			{Key: meta.MetaAttrName, Value: inst.Name},
			{Key: meta.AttrInstanceSchema, Value: inst.Schema},
		})
		_, err := db.Relations.Add(meta.RelHasInstance, res.ModuleEntity, instanceID, 1, nil)
		return err
	})
	if err != nil {
		return err
	}

	entities := make(map[string]builder.TypedEntity)
	for _, assign := range inst.Objects {
		for _, name := range assign.Names {
			e, err := sb.Entity(assign.ObjectType, name, nil)
			if err != nil {
				return fmt.Errorf("importer: instance %s: %w", inst.Name, err)
			}
			entities[name] = e
			entID, err := e.ID(db)
			if err != nil {
				return err
			}
			if err := db.Mutate(func(db *pathdb.PathDB) error {
				_, err := db.Relations.Add(meta.RelInstanceHasEntity, instanceID, entID, 1, nil)
				return err
			}); err != nil {
				return err
			}
		}
	}

	for _, ra := range inst.Relations {
		for _, tup := range ra.Tuples {
			var assignments []builder.FieldAssignment
			for _, fv := range tup.Fields {
				e, ok := entities[fv.Value]
				if !ok {
					return fmt.Errorf("importer: instance %s: relation %s references unknown entity %s", inst.Name, ra.Relation, fv.Value)
				}
				assignments = append(assignments, builder.FieldAssignment{Field: fv.Field, Entity: e})
			}
			fact, err := sb.Fact(ra.Relation, assignments)
			if err != nil {
				return fmt.Errorf("importer: instance %s: %w", inst.Name, err)
			}
			factID, err := fact.ID(db)
			if err != nil {
				return err
			}
			if err := db.Mutate(func(db *pathdb.PathDB) error {
				_, err := db.Relations.Add(meta.RelInstanceHasFact, instanceID, factID, 1, nil)
				return err
			}); err != nil {
				return err
			}
		}
	}

	return nil
}
