// Package exporter re-emits canonical `.axi` module text from a PathDB's
// meta-plane: the inverse of package importer. Exporting, re-parsing,
// and re-importing the result must reproduce the same meta-plane and
// instance data — this package exists to make that round trip hold.
package exporter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/axiograph/axiograph/internal/meta"
	"github.com/axiograph/axiograph/internal/pathdb"
)

// Export renders the canonical `.axi` text for the module named
// moduleName found in db's meta-plane. It returns an error if no such
// module was ever imported.
func Export(db *pathdb.PathDB, moduleName string) (string, error) {
	moduleID, ok := findModule(db, moduleName)
	if !ok {
		return "", fmt.Errorf("exporter: no meta module %q in PathDB (import a canonical module first)", moduleName)
	}

	schemaRels := db.OutgoingByName(moduleID, meta.RelHasSchema)
	if len(schemaRels) == 0 {
		return "", fmt.Errorf("exporter: meta module %q has no schemas", moduleName)
	}

	type namedID struct {
		name string
		id   pathdb.EntityID
	}
	var schemas []namedID
	for _, rel := range schemaRels {
		name, ok := db.AttrString(rel.Target, meta.MetaAttrName)
		if !ok {
			return "", fmt.Errorf("exporter: schema entity %d missing name", rel.Target)
		}
		schemas = append(schemas, namedID{name, rel.Target})
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].name < schemas[j].name })

	var out strings.Builder
	fmt.Fprintf(&out, "module %s\n\n", moduleName)

	for _, schema := range schemas {
		fmt.Fprintf(&out, "schema %s:\n", schema.name)

		var objNames []string
		for _, rel := range db.OutgoingByName(schema.id, meta.RelSchemaHasObject) {
			if n, ok := db.AttrString(rel.Target, meta.MetaAttrName); ok {
				objNames = append(objNames, n)
			}
		}
		sort.Strings(objNames)
		for _, obj := range objNames {
			fmt.Fprintf(&out, "  object %s\n", obj)
		}

		var subtypeLines []string
		for _, rel := range db.OutgoingByName(schema.id, meta.RelSchemaHasSubtype) {
			sub, _ := db.AttrString(rel.Target, meta.AttrSubtypeSub)
			sup, _ := db.AttrString(rel.Target, meta.AttrSubtypeSup)
			if sub == "" || sup == "" {
				continue
			}
			incl, _ := db.AttrString(rel.Target, meta.AttrSubtypeInclusion)
			if strings.TrimSpace(incl) == "" {
				subtypeLines = append(subtypeLines, fmt.Sprintf("  subtype %s < %s\n", sub, sup))
			} else {
				subtypeLines = append(subtypeLines, fmt.Sprintf("  subtype %s < %s as %s\n", sub, sup, incl))
			}
		}
		sort.Strings(subtypeLines)
		for _, line := range subtypeLines {
			out.WriteString(line)
		}

		relations, err := sortedRelationDecls(db, schema.id)
		if err != nil {
			return "", err
		}
		for _, rel := range relations {
			fields, err := relationFields(db, rel.id)
			if err != nil {
				return "", err
			}
			context, _ := db.AttrString(rel.id, meta.AttrRelationContext)
			temporal, _ := db.AttrString(rel.id, meta.AttrRelationTemporal)
			out.WriteString(formatRelationDecl(rel.name, fields, context, temporal))
		}

		out.WriteString("\n")
	}

	for _, schema := range schemas {
		theoryRels := db.OutgoingByName(schema.id, meta.RelSchemaHasTheory)
		if len(theoryRels) == 0 {
			continue
		}
		var theories []namedID
		for _, rel := range theoryRels {
			name, ok := db.AttrString(rel.Target, meta.MetaAttrName)
			if !ok {
				return "", fmt.Errorf("exporter: theory entity %d missing name", rel.Target)
			}
			theories = append(theories, namedID{name, rel.Target})
		}
		sort.Slice(theories, func(i, j int) bool { return theories[i].name < theories[j].name })

		for _, theory := range theories {
			fmt.Fprintf(&out, "theory %s on %s:\n", theory.name, schema.name)

			for _, cid := range sortedByIndex(db, theory.id, meta.RelTheoryHasConstraint, meta.AttrConstraintIndex) {
				out.WriteString("  ")
				out.WriteString(formatConstraint(db, cid))
				out.WriteString("\n")
			}

			for _, eid := range sortedByIndex(db, theory.id, meta.RelTheoryHasEquation, meta.AttrEquationIndex) {
				ename, _ := db.AttrString(eid, meta.MetaAttrName)
				lhs, _ := db.AttrString(eid, meta.AttrEquationLHS)
				rhs, _ := db.AttrString(eid, meta.AttrEquationRHS)
				fmt.Fprintf(&out, "  equation %s:\n", ename)
				fmt.Fprintf(&out, "    %s =\n", lhs)
				fmt.Fprintf(&out, "    %s\n", rhs)
			}

			for _, rid := range sortedByIndex(db, theory.id, meta.RelTheoryHasRewrite, meta.AttrRewriteRuleIndex) {
				rname, _ := db.AttrString(rid, meta.MetaAttrName)
				orientation, _ := db.AttrString(rid, meta.AttrRewriteRuleOrientation)
				if orientation == "" {
					orientation = "forward"
				}
				vars, _ := db.AttrString(rid, meta.AttrRewriteRuleVars)
				lhs, _ := db.AttrString(rid, meta.AttrRewriteRuleLHS)
				rhs, _ := db.AttrString(rid, meta.AttrRewriteRuleRHS)

				fmt.Fprintf(&out, "  rewrite %s:\n", rname)
				if orientation != "forward" {
					fmt.Fprintf(&out, "    orientation: %s\n", orientation)
				}
				if strings.TrimSpace(vars) != "" {
					fmt.Fprintf(&out, "    vars: %s\n", vars)
				}
				fmt.Fprintf(&out, "    lhs: %s\n", lhs)
				fmt.Fprintf(&out, "    rhs: %s\n", rhs)
			}

			out.WriteString("\n")
		}
	}

	var instances []namedID
	instanceSchema := make(map[pathdb.EntityID]string)
	for _, rel := range db.OutgoingByName(moduleID, meta.RelHasInstance) {
		name, ok := db.AttrString(rel.Target, meta.MetaAttrName)
		if !ok {
			return "", fmt.Errorf("exporter: instance entity %d missing name", rel.Target)
		}
		schemaName, ok := db.AttrString(rel.Target, meta.AttrInstanceSchema)
		if !ok {
			return "", fmt.Errorf("exporter: instance entity %d missing %s", rel.Target, meta.AttrInstanceSchema)
		}
		instances = append(instances, namedID{name, rel.Target})
		instanceSchema[rel.Target] = schemaName
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].name < instances[j].name })

	schemaByName := make(map[string]pathdb.EntityID, len(schemas))
	for _, s := range schemas {
		schemaByName[s.name] = s.id
	}

	for _, inst := range instances {
		schemaName := instanceSchema[inst.id]
		schemaID, ok := schemaByName[schemaName]
		if !ok {
			return "", fmt.Errorf("exporter: instance %q references missing schema %q", inst.name, schemaName)
		}

		fmt.Fprintf(&out, "instance %s of %s:\n", inst.name, schemaName)

		entitiesByType := make(map[string][]string)
		for _, rel := range db.OutgoingByName(inst.id, meta.RelInstanceHasEntity) {
			typeName, ok := db.TypeName(rel.Target)
			if !ok {
				continue
			}
			name, ok := db.AttrString(rel.Target, meta.MetaAttrName)
			if !ok {
				continue
			}
			entitiesByType[typeName] = append(entitiesByType[typeName], name)
		}

		var objNames []string
		for _, rel := range db.OutgoingByName(schemaID, meta.RelSchemaHasObject) {
			if n, ok := db.AttrString(rel.Target, meta.MetaAttrName); ok {
				objNames = append(objNames, n)
			}
		}
		sort.Strings(objNames)
		for _, obj := range objNames {
			names := entitiesByType[obj]
			sort.Strings(names)
			fmt.Fprintf(&out, "  %s = %s\n", obj, formatIdentSet(names))
		}

		out.WriteString("\n")

		relations, err := sortedRelationDecls(db, schemaID)
		if err != nil {
			return "", err
		}

		factsByRelation := make(map[string][]pathdb.EntityID)
		for _, rel := range db.OutgoingByName(inst.id, meta.RelInstanceHasFact) {
			rname, ok := db.AttrString(rel.Target, meta.AttrAxiRelation)
			if !ok {
				continue
			}
			factsByRelation[rname] = append(factsByRelation[rname], rel.Target)
		}

		for _, rel := range relations {
			fields, err := relationFields(db, rel.id)
			if err != nil {
				return "", err
			}

			type fidTuple struct {
				fid string
				id  pathdb.EntityID
			}
			var tuples []fidTuple
			for _, fid := range factsByRelation[rel.name] {
				fidStr, ok := db.AttrString(fid, meta.AttrAxiFactID)
				if !ok || fidStr == "" {
					fidStr = fmt.Sprintf("id:%d", fid)
				}
				tuples = append(tuples, fidTuple{fidStr, fid})
			}
			sort.Slice(tuples, func(i, j int) bool { return tuples[i].fid < tuples[j].fid })

			var rendered []string
			for _, t := range tuples {
				r, err := renderTupleInstance(db, t.id, fields)
				if err != nil {
					return "", err
				}
				rendered = append(rendered, r)
			}

			fmt.Fprintf(&out, "  %s = %s\n", rel.name, formatTupleSet(rendered))
		}

		out.WriteString("\n")
	}

	return out.String(), nil
}

func findModule(db *pathdb.PathDB, moduleName string) (pathdb.EntityID, bool) {
	wantID := meta.ModuleMetaID(moduleName)
	var found pathdb.EntityID
	var ok bool
	db.Entities.EachType(func(id pathdb.EntityID, _ pathdb.StrID) {
		if ok {
			return
		}
		tn, typeOK := db.TypeName(id)
		if !typeOK || tn != meta.TypeModule {
			return
		}
		if v, vok := db.AttrString(id, meta.MetaAttrID); vok && v == wantID {
			found, ok = id, true
		}
	})
	return found, ok
}

type relDecl struct {
	name string
	id   pathdb.EntityID
}

func sortedRelationDecls(db *pathdb.PathDB, schemaID pathdb.EntityID) ([]relDecl, error) {
	var out []relDecl
	for _, rel := range db.OutgoingByName(schemaID, meta.RelSchemaHasRelation) {
		name, ok := db.AttrString(rel.Target, meta.MetaAttrName)
		if !ok {
			return nil, fmt.Errorf("exporter: relation decl %d missing name", rel.Target)
		}
		out = append(out, relDecl{name, rel.Target})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func sortedByIndex(db *pathdb.PathDB, from pathdb.EntityID, relType, indexAttr string) []pathdb.EntityID {
	type indexed struct {
		idx int
		id  pathdb.EntityID
	}
	var items []indexed
	for _, rel := range db.OutgoingByName(from, relType) {
		idx := 1 << 30
		if s, ok := db.AttrString(rel.Target, indexAttr); ok {
			if n, err := strconv.Atoi(s); err == nil {
				idx = n
			}
		}
		items = append(items, indexed{idx, rel.Target})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].idx != items[j].idx {
			return items[i].idx < items[j].idx
		}
		return items[i].id < items[j].id
	})
	out := make([]pathdb.EntityID, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

type field struct {
	name string
	typ  string
}

func relationFields(db *pathdb.PathDB, relDeclID pathdb.EntityID) ([]field, error) {
	type indexed struct {
		idx   int
		field field
	}
	var items []indexed
	for _, rel := range db.OutgoingByName(relDeclID, meta.RelRelationHasField) {
		name, _ := db.AttrString(rel.Target, meta.MetaAttrName)
		typ, _ := db.AttrString(rel.Target, meta.AttrFieldType)
		idx := 1 << 30
		if s, ok := db.AttrString(rel.Target, meta.AttrFieldIndex); ok {
			if n, err := strconv.Atoi(s); err == nil {
				idx = n
			}
		}
		items = append(items, indexed{idx, field{name, typ}})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })
	out := make([]field, len(items))
	for i, it := range items {
		out[i] = it.field
	}
	return out, nil
}

func formatRelationDecl(name string, fields []field, context, temporal string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s", f.name, f.typ)
	}
	decl := fmt.Sprintf("  relation %s(%s)", name, strings.Join(parts, ", "))
	if context != "" {
		decl += fmt.Sprintf(" @context %s", context)
	}
	if temporal != "" {
		decl += fmt.Sprintf(" @temporal %s", temporal)
	}
	return decl + "\n"
}

func formatConstraint(db *pathdb.PathDB, cid pathdb.EntityID) string {
	if text, ok := db.AttrString(cid, meta.AttrConstraintText); ok && text != "" {
		return text
	}
	kind, _ := db.AttrString(cid, meta.AttrConstraintKind)
	var fieldNames []string
	for _, rel := range db.OutgoingByName(cid, meta.RelRelationHasField) {
		if n, ok := db.AttrString(rel.Target, meta.MetaAttrName); ok {
			fieldNames = append(fieldNames, n)
		}
	}
	relName := ""
	if rels := db.OutgoingByName(cid, meta.RelConstraintAppliesTo); len(rels) > 0 {
		relName, _ = db.AttrString(rels[0].Target, meta.MetaAttrName)
	}
	return fmt.Sprintf("%s(%s) on %s", kind, strings.Join(fieldNames, ", "), relName)
}

func formatIdentSet(names []string) string {
	return "{" + strings.Join(names, ", ") + "}"
}

func formatTupleSet(tuples []string) string {
	return "{" + strings.Join(tuples, ", ") + "}"
}

func renderTupleInstance(db *pathdb.PathDB, factID pathdb.EntityID, fields []field) (string, error) {
	parts := make([]string, len(fields))
	for i, f := range fields {
		rels := db.OutgoingByName(factID, f.name)
		if len(rels) == 0 {
			return "", fmt.Errorf("exporter: fact %d missing field edge %s", factID, f.name)
		}
		name, ok := db.AttrString(rels[0].Target, meta.MetaAttrName)
		if !ok {
			return "", fmt.Errorf("exporter: fact %d field %s target %d missing name", factID, f.name, rels[0].Target)
		}
		parts[i] = fmt.Sprintf("%s=%s", f.name, name)
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}
