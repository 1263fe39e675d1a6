// Package typecheck implements the module well-formedness judgment: it
// checks that every schema is internally consistent (unique object
// types, subtype edges whose supertype is a declared type — a subtype
// line itself declares its subtype name —, relation fields referencing
// declared object types) and that every instance's object
// and relation assignments are well-typed against its schema, producing
// a Proof recording the entity types it resolved along the way.
package typecheck

import (
	"fmt"
	"sort"

	"github.com/axiograph/axiograph/internal/axi/ast"
)

// SchemaIndex is the per-schema well-formedness view used while
// typechecking instances of that schema: its declared object set, its
// relation declarations by name, and the subtype closure.
type SchemaIndex struct {
	Name           string
	Objects        map[string]bool
	Relations      map[string]ast.RelationDecl
	directSupertypes map[string][]string
}

// IsSubtype reports sub == sup or sub related to sup via the reflexive-
// transitive closure of declared subtype edges.
func (s *SchemaIndex) IsSubtype(sub, sup string) bool {
	if sub == sup {
		return true
	}
	seen := map[string]bool{sub: true}
	stack := []string{sub}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, parent := range s.directSupertypes[cur] {
			if parent == sup {
				return true
			}
			if !seen[parent] {
				seen[parent] = true
				stack = append(stack, parent)
			}
		}
	}
	return false
}

// RelatedTypesIncludingSelf returns t, every supertype of t and every
// subtype of t under the transitive closure of declared subtype edges —
// the candidate set considered when resolving which declared type an
// ambiguous entity reference belongs to.
func (s *SchemaIndex) RelatedTypesIncludingSelf(t string) []string {
	seen := map[string]bool{t: true}
	var up func(string)
	up = func(cur string) {
		for _, p := range s.directSupertypes[cur] {
			if !seen[p] {
				seen[p] = true
				up(p)
			}
		}
	}
	up(t)
	for sub := range s.directSupertypes {
		if !seen[sub] && s.IsSubtype(sub, t) {
			seen[sub] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func buildSchemaIndex(schema *ast.Schema) (*SchemaIndex, error) {
	idx := &SchemaIndex{
		Name:             schema.Name,
		Objects:          make(map[string]bool),
		Relations:        make(map[string]ast.RelationDecl),
		directSupertypes: make(map[string][]string),
	}
	for _, obj := range schema.Objects {
		if idx.Objects[obj] {
			return nil, fmt.Errorf("typecheck: schema %s declares object %s twice", schema.Name, obj)
		}
		idx.Objects[obj] = true
	}
	// A subtype line declares its subtype name as an object type of the
	// schema; its supertype must be declared (as an object or a subtype).
	for _, st := range schema.Subtypes {
		idx.Objects[st.Sub] = true
	}
	for _, st := range schema.Subtypes {
		if !idx.Objects[st.Sup] {
			return nil, fmt.Errorf("typecheck: schema %s: subtype %s < %s references undeclared object %s", schema.Name, st.Sub, st.Sup, st.Sup)
		}
		idx.directSupertypes[st.Sub] = append(idx.directSupertypes[st.Sub], st.Sup)
	}
	for _, rel := range schema.Relations {
		if _, dup := idx.Relations[rel.Name]; dup {
			return nil, fmt.Errorf("typecheck: schema %s declares relation %s twice", schema.Name, rel.Name)
		}
		for _, f := range rel.Fields {
			if !idx.Objects[f.Type] {
				return nil, fmt.Errorf("typecheck: schema %s: relation %s field %s has undeclared type %s", schema.Name, rel.Name, f.Name, f.Type)
			}
		}
		idx.Relations[rel.Name] = rel
	}
	return idx, nil
}

// EntityTypes maps an instance's resolved entity names to the most
// specific declared object type encountered for each, accumulated
// across every object assignment in the instance (the permissive-import
// simulation: a name first seen under a supertype and later re-asserted
// under one of its subtypes is upgraded, not treated as a conflict).
type EntityTypes map[string]string

func resolveEntityTypes(schema *SchemaIndex, inst *ast.Instance) (EntityTypes, error) {
	types := make(EntityTypes)
	for _, assign := range inst.Objects {
		if !schema.Objects[assign.ObjectType] {
			return nil, fmt.Errorf("typecheck: instance %s: undeclared object type %s", inst.Name, assign.ObjectType)
		}
		for _, name := range assign.Names {
			existing, ok := types[name]
			if !ok {
				types[name] = assign.ObjectType
				continue
			}
			if existing == assign.ObjectType {
				continue
			}
			if schema.IsSubtype(assign.ObjectType, existing) {
				types[name] = assign.ObjectType // more specific
				continue
			}
			if schema.IsSubtype(existing, assign.ObjectType) {
				continue // existing is already more specific
			}
			return nil, fmt.Errorf("typecheck: instance %s: entity %s assigned incompatible types %s and %s", inst.Name, name, existing, assign.ObjectType)
		}
	}
	return types, nil
}

// Proof records the result of successfully typechecking one module: for
// each instance, the entity types it resolved and the relation tuple
// count it validated. A Proof is only ever returned for a module that
// typechecked cleanly — any violation returns an error instead.
type Proof struct {
	ModuleName    string
	InstanceTypes map[string]EntityTypes // instance name -> resolved entity types
	ProofCounts   map[string]int         // instance name -> number of tuples validated
}

// Module typechecks mod in full: every schema must be internally
// consistent, and every instance must resolve cleanly against its
// schema's object/relation declarations.
func Module(mod *ast.Module) (*Proof, error) {
	schemas := make(map[string]*SchemaIndex, len(mod.Schemas))
	for _, s := range mod.Schemas {
		idx, err := buildSchemaIndex(s)
		if err != nil {
			return nil, err
		}
		schemas[s.Name] = idx
	}

	proof := &Proof{
		ModuleName:    mod.Name,
		InstanceTypes: make(map[string]EntityTypes),
		ProofCounts:   make(map[string]int),
	}

	for _, inst := range mod.Instances {
		schema, ok := schemas[inst.Schema]
		if !ok {
			return nil, fmt.Errorf("typecheck: instance %s references undeclared schema %s", inst.Name, inst.Schema)
		}
		types, err := resolveEntityTypes(schema, inst)
		if err != nil {
			return nil, err
		}

		count := 0
		for _, relAssign := range inst.Relations {
			decl, ok := schema.Relations[relAssign.Relation]
			if !ok {
				return nil, fmt.Errorf("typecheck: instance %s references undeclared relation %s", inst.Name, relAssign.Relation)
			}
			for _, tup := range relAssign.Tuples {
				if err := checkTuple(schema, decl, types, tup); err != nil {
					return nil, fmt.Errorf("typecheck: instance %s relation %s: %w", inst.Name, relAssign.Relation, err)
				}
				count++
			}
		}

		proof.InstanceTypes[inst.Name] = types
		proof.ProofCounts[inst.Name] = count
	}

	return proof, nil
}

func checkTuple(schema *SchemaIndex, decl ast.RelationDecl, types EntityTypes, tup ast.Tuple) error {
	declared := make(map[string]string, len(decl.Fields))
	for _, f := range decl.Fields {
		declared[f.Name] = f.Type
	}
	seen := make(map[string]bool, len(tup.Fields))
	for _, fv := range tup.Fields {
		fieldType, ok := declared[fv.Field]
		if !ok {
			return fmt.Errorf("unknown field %s", fv.Field)
		}
		if seen[fv.Field] {
			return fmt.Errorf("field %s assigned twice in one tuple", fv.Field)
		}
		seen[fv.Field] = true

		valueType, ok := types[fv.Value]
		if !ok {
			return fmt.Errorf("field %s references unresolved entity %s", fv.Field, fv.Value)
		}
		if !schema.IsSubtype(valueType, fieldType) {
			return fmt.Errorf("field %s expects type %s, got %s (entity %s)", fv.Field, fieldType, valueType, fv.Value)
		}
	}
	for _, f := range decl.Fields {
		if !seen[f.Name] {
			return fmt.Errorf("missing field %s", f.Name)
		}
	}
	return nil
}
