package meta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/axiograph/axiograph/internal/pathdb"
)

// ConstraintKind is one of the four checkable theory constraint shapes;
// anything the parser could not classify is Unknown and is a hard reject
// for the constraints checker rather than silently ignored.
type ConstraintKind int

const (
	ConstraintUnknown ConstraintKind = iota
	ConstraintKey
	ConstraintFunctional
	ConstraintSymmetric
	ConstraintTransitive
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintKey:
		return "key"
	case ConstraintFunctional:
		return "functional"
	case ConstraintSymmetric:
		return "symmetric"
	case ConstraintTransitive:
		return "transitive"
	default:
		return "unknown"
	}
}

// Constraint is one theory constraint attached to a relation. Fields
// holds the Key/Functional field list; Carriers/Params/WhereField/
// WhereValues hold a Symmetric/Transitive constraint's `carriers`,
// `param`, and `where` clauses (empty when the clause was omitted, in
// which case the checker falls back to the relation's first two
// declared fields as carriers).
type Constraint struct {
	Kind        ConstraintKind
	Fields      []string
	Carriers    []string
	Params      []string
	WhereField  string
	WhereValues []string
	Text        string // verbatim source text, preserved even for recognized kinds
}

// RelationDecl is a schema relation declaration: its ordered field
// names, its optional `@context`/`@temporal` annotation (the named
// type, empty if absent), and the constraints that apply to it.
type RelationDecl struct {
	ID          pathdb.EntityID
	Name        string
	Fields      []string
	Context     string
	Temporal    string
	Constraints []Constraint
}

// Schema is one schema's meta-plane view: its object types, its subtype
// declarations, and its relation declarations (each carrying its own
// constraints, since constraints are declared per-relation within a
// schema's theory).
type Schema struct {
	ID              pathdb.EntityID
	Name            string
	Objects         []string
	directSubtypes  map[string][]string // sub -> immediate supertypes
	Relations       map[string]*RelationDecl
}

// IsSubtype reports whether sub is sub == sup, or is related to sup by
// the reflexive-transitive closure of declared subtype edges.
func (s *Schema) IsSubtype(sub, sup string) bool {
	if sub == sup {
		return true
	}
	seen := map[string]bool{sub: true}
	stack := []string{sub}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, parent := range s.directSubtypes[cur] {
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

// RelatedTypesIncludingSelf returns t plus every supertype and subtype of
// t reachable through declared subtype edges — the candidate set used by
// the typechecker's permissive-import entity resolution.
func (s *Schema) RelatedTypesIncludingSelf(t string) []string {
	seen := map[string]bool{t: true}
	var walk func(string)
	walk = func(cur string) {
		for _, parent := range s.directSubtypes[cur] {
			if !seen[parent] {
				seen[parent] = true
				walk(parent)
			}
		}
	}
	walk(t)
	for sub := range s.directSubtypes {
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

// Index is the read-side view of every schema encoded in a PathDB's
// meta-plane, keyed by schema name.
type Index struct {
	Schemas map[string]*Schema
}

// BuildIndex scans db for meta-plane entities and assembles an Index. It
// is tolerant of a PathDB with no meta-plane at all (returns an empty
// Index, not an error) since not every PathDB has imported a schema
// module yet.
func BuildIndex(db *pathdb.PathDB) (*Index, error) {
	idx := &Index{Schemas: make(map[string]*Schema)}

	var schemaEntities []pathdb.EntityID
	db.Entities.EachType(func(id pathdb.EntityID, _ pathdb.StrID) {
		if tn, ok := db.TypeName(id); ok && tn == TypeSchema {
			schemaEntities = append(schemaEntities, id)
		}
	})

	for _, sid := range schemaEntities {
		name, ok := db.AttrString(sid, MetaAttrName)
		if !ok {
			return nil, fmt.Errorf("meta: schema entity %d missing %s", sid, MetaAttrName)
		}
		schema := &Schema{
			ID:             sid,
			Name:           name,
			directSubtypes: make(map[string][]string),
			Relations:      make(map[string]*RelationDecl),
		}

		for _, rel := range db.OutgoingByName(sid, RelSchemaHasObject) {
			if objName, ok := db.AttrString(rel.Target, MetaAttrName); ok {
				schema.Objects = append(schema.Objects, objName)
			}
		}
		sort.Strings(schema.Objects)

		for _, rel := range db.OutgoingByName(sid, RelSchemaHasSubtype) {
			sub, subOK := db.AttrString(rel.Target, AttrSubtypeSub)
			sup, supOK := db.AttrString(rel.Target, AttrSubtypeSup)
			if subOK && supOK && sub != "" && sup != "" {
				schema.directSubtypes[sub] = append(schema.directSubtypes[sub], sup)
			}
		}

		for _, rel := range db.OutgoingByName(sid, RelSchemaHasRelation) {
			rid := rel.Target
			rname, ok := db.AttrString(rid, MetaAttrName)
			if !ok {
				return nil, fmt.Errorf("meta: relation decl %d missing %s", rid, MetaAttrName)
			}
			decl := &RelationDecl{ID: rid, Name: rname}
			decl.Fields = fieldsOf(db, rid)
			decl.Context, _ = db.AttrString(rid, AttrRelationContext)
			decl.Temporal, _ = db.AttrString(rid, AttrRelationTemporal)
			schema.Relations[rname] = decl
		}

		for _, rel := range db.OutgoingByName(sid, RelSchemaHasTheory) {
			for _, crel := range db.OutgoingByName(rel.Target, RelTheoryHasConstraint) {
				c := constraintOf(db, crel.Target)
				targets := db.OutgoingByName(crel.Target, RelConstraintAppliesTo)
				for _, t := range targets {
					if rname, ok := db.AttrString(t.Target, MetaAttrName); ok {
						if decl, ok := schema.Relations[rname]; ok {
							decl.Constraints = append(decl.Constraints, c)
						}
					}
				}
			}
		}

		idx.Schemas[name] = schema
	}

	return idx, nil
}

func fieldsOf(db *pathdb.PathDB, relDecl pathdb.EntityID) []string {
	edges := db.OutgoingByName(relDecl, RelRelationHasField)
	type indexed struct {
		idx  int
		name string
	}
	var fields []indexed
	for _, e := range edges {
		name, _ := db.AttrString(e.Target, MetaAttrName)
		idxStr, _ := db.AttrString(e.Target, AttrFieldIndex)
		n := 1 << 30
		fmt.Sscanf(idxStr, "%d", &n)
		fields = append(fields, indexed{idx: n, name: name})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].idx < fields[j].idx })
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.name
	}
	return out
}

func constraintOf(db *pathdb.PathDB, cid pathdb.EntityID) Constraint {
	kindStr, _ := db.AttrString(cid, AttrConstraintKind)
	text, _ := db.AttrString(cid, AttrConstraintText)
	c := Constraint{Text: text}
	switch kindStr {
	case "key":
		c.Kind = ConstraintKey
	case "functional":
		c.Kind = ConstraintFunctional
	case "symmetric":
		c.Kind = ConstraintSymmetric
	case "transitive":
		c.Kind = ConstraintTransitive
	default:
		c.Kind = ConstraintUnknown
	}
	if c.Kind == ConstraintKey || c.Kind == ConstraintFunctional {
		for _, rel := range db.OutgoingByName(cid, RelRelationHasField) {
			if name, ok := db.AttrString(rel.Target, MetaAttrName); ok {
				c.Fields = append(c.Fields, name)
			}
		}
	}
	if c.Kind == ConstraintSymmetric || c.Kind == ConstraintTransitive {
		c.Carriers = splitCommaList(db, cid, AttrConstraintCarriers)
		c.Params = splitCommaList(db, cid, AttrConstraintParams)
	}
	if c.Kind == ConstraintSymmetric {
		c.WhereField, _ = db.AttrString(cid, AttrConstraintWhereField)
		c.WhereValues = splitCommaList(db, cid, AttrConstraintWhereValues)
	}
	return c
}

func splitCommaList(db *pathdb.PathDB, id pathdb.EntityID, attr string) []string {
	s, ok := db.AttrString(id, attr)
	if !ok || s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

