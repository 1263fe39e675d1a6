// Package constraints checks the four theory constraint shapes —
// key, functional, symmetric, and transitive — against an instance's
// relation tuple assignments, under the transitive/symmetric closure
// those constraints themselves impose. An Unknown constraint (theory
// text the parser couldn't classify) is always a hard rejection: this
// package never silently ignores a constraint it cannot verify.
package constraints

import (
	"fmt"
	"sort"
	"strings"

	"github.com/axiograph/axiograph/internal/axi/ast"
)

// Proof records that every theory constraint attached to mod's schemas
// held for every instance of those schemas.
type Proof struct {
	ModuleName      string
	CheckedRelations map[string]int // "<instance>.<relation>" -> constraints checked
}

// Module checks every theory's constraints against the tuple data of
// every instance of the theory's schema.
func Module(mod *ast.Module) (*Proof, error) {
	proof := &Proof{ModuleName: mod.Name, CheckedRelations: make(map[string]int)}

	relFields := make(map[string]map[string][]string) // schema -> relation -> field order
	for _, s := range mod.Schemas {
		relFields[s.Name] = make(map[string][]string)
		for _, rel := range s.Relations {
			var names []string
			for _, f := range rel.Fields {
				names = append(names, f.Name)
			}
			relFields[s.Name][rel.Name] = names
		}
	}

	for _, theory := range mod.Theories {
		for _, c := range theory.Constraints {
			if c.Kind == ast.ConstraintUnknown {
				return nil, fmt.Errorf("constraints: theory %s: unrecognized constraint cannot be verified: %q", theory.Name, c.Text)
			}
		}
	}

	for _, inst := range mod.Instances {
		tuplesByRel := make(map[string][]ast.Tuple)
		for _, ra := range inst.Relations {
			tuplesByRel[ra.Relation] = ra.Tuples
		}

		for _, theory := range mod.Theories {
			if theory.Schema != inst.Schema {
				continue
			}

			byRelation := make(map[string][]ast.Constraint)
			for _, c := range theory.Constraints {
				byRelation[c.Relation] = append(byRelation[c.Relation], c)
			}

			for relName, cs := range byRelation {
				fields := relFields[theory.Schema][relName]
				base := toTuples(tuplesByRel[relName])

				// Pass 1: fold every symmetric/transitive constraint's
				// closure into the working tuple set. Neither kind can
				// itself fail (§4.9); key/functional checks below run
				// against the resulting closure, not the raw tuples.
				working := make(map[string]tuple)
				for _, t := range base {
					working[keyOf(t, fields)] = t
				}
				for _, c := range cs {
					switch c.Kind {
					case ast.ConstraintSymmetric:
						carriers := defaultCarriers(c.Carriers, fields)
						closure, projFields := symmetricClosure(fields, base, carriers, c.Params, c.WhereField, c.WhereValues)
						for _, t := range closure {
							working[keyOf(t, projFields)] = t
						}
					case ast.ConstraintTransitive:
						carriers := defaultCarriers(c.Carriers, fields)
						closure, projFields := transitiveClosure(fields, base, carriers, c.Params)
						for _, t := range closure {
							working[keyOf(t, projFields)] = t
						}
					}
				}
				closed := make([]tuple, 0, len(working))
				for _, t := range working {
					closed = append(closed, t)
				}

				// Pass 2: run key/functional against the closure.
				for _, c := range cs {
					key := inst.Name + "." + relName
					var err error
					switch c.Kind {
					case ast.ConstraintKey:
						err = checkKey(c.Fields, closed)
					case ast.ConstraintFunctional:
						if len(c.Fields) != 2 {
							err = fmt.Errorf("malformed functional constraint on %s: expected src/dst fields, got %v", relName, c.Fields)
						} else {
							err = checkFunctional(c.Fields[0], c.Fields[1], closed)
						}
					}
					if err != nil {
						return nil, fmt.Errorf("constraints: instance %s relation %s: %s constraint violated: %w", inst.Name, relName, c.Kind, err)
					}
					proof.CheckedRelations[key]++
				}
			}
		}
	}

	return proof, nil
}

// tuple is a field-name -> value projection of one relation tuple, used
// throughout closure computation so a projected (carrier/param-only)
// tuple and a full tuple share a representation.
type tuple map[string]string

func toTuples(ts []ast.Tuple) []tuple {
	out := make([]tuple, len(ts))
	for i, t := range ts {
		out[i] = tupleMap(t)
	}
	return out
}

// defaultCarriers returns explicit when non-empty, else the relation's
// first two declared fields — the convention a `symmetric`/`transitive`
// constraint falls back to when it declares no `carriers (a,b)` clause.
func defaultCarriers(explicit, fields []string) []string {
	if len(explicit) == 2 {
		return explicit
	}
	if len(fields) >= 2 {
		return fields[:2]
	}
	return explicit
}

func project(t tuple, fields []string) tuple {
	out := make(tuple, len(fields))
	for _, f := range fields {
		out[f] = t[f]
	}
	return out
}

func cloneTuple(t tuple) tuple {
	out := make(tuple, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// symmetricClosure computes the closure of tuples under swapping
// carriers[0]/carriers[1], following axiograph-pathdb's
// symmetric_closure: when params is non-empty the working fields narrow
// to carriers ∪ params (dropping everything else); otherwise the full
// relFields projection is kept. whereField/whereValues, when set,
// restrict which original tuples contribute their swapped pair; an
// empty whereValues with whereField set means no tuple swaps (the
// constraint still can't fail — it's just trivially satisfied).
func symmetricClosure(relFields []string, tuples []tuple, carriers, params []string, whereField string, whereValues []string) ([]tuple, []string) {
	left, right := carriers[0], carriers[1]

	projFields := relFields
	if len(params) > 0 {
		allowed := make(map[string]bool, len(params)+2)
		allowed[left], allowed[right] = true, true
		for _, p := range params {
			allowed[p] = true
		}
		projFields = nil
		for _, f := range relFields {
			if allowed[f] {
				projFields = append(projFields, f)
			}
		}
	}

	seen := make(map[string]bool)
	var out []tuple
	add := func(t tuple) {
		k := keyOf(t, projFields)
		if !seen[k] {
			seen[k] = true
			out = append(out, t)
		}
	}

	for _, full := range tuples {
		proj := project(full, projFields)
		add(proj)

		apply := whereField == ""
		if whereField != "" {
			for _, v := range whereValues {
				if full[whereField] == v {
					apply = true
					break
				}
			}
		}
		if apply {
			swapped := cloneTuple(proj)
			swapped[left], swapped[right] = proj[right], proj[left]
			add(swapped)
		}
	}
	return out, projFields
}

// transitivePairs computes the transitive closure of the adjacency
// adj (src -> []dst) as a flat set of (src, dst) pairs, mirroring
// axiograph-pathdb's transitive_pairs breadth-first walk.
func transitivePairs(adj map[string][]string) [][2]string {
	var out [][2]string
	srcs := make([]string, 0, len(adj))
	for src := range adj {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)
	for _, src := range srcs {
		visited := make(map[string]bool)
		queue := append([]string{}, adj[src]...)
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			if visited[v] {
				continue
			}
			visited[v] = true
			out = append(out, [2]string{src, v})
			queue = append(queue, adj[v]...)
		}
	}
	return out
}

// transitiveClosure computes the closure of tuples under transitivity
// of the carrier pair, grouped by the param fiber (the tuple's values
// for every declared param field) when params is non-empty, or
// globally when it's empty — mirroring axiograph-pathdb's
// transitive_closure.
func transitiveClosure(relFields []string, tuples []tuple, carriers, params []string) ([]tuple, []string) {
	c0, c1 := carriers[0], carriers[1]

	if len(params) == 0 {
		adj := make(map[string][]string)
		for _, full := range tuples {
			adj[full[c0]] = append(adj[full[c0]], full[c1])
		}
		var out []tuple
		for _, pr := range transitivePairs(adj) {
			out = append(out, tuple{c0: pr[0], c1: pr[1]})
		}
		return out, []string{c0, c1}
	}

	allowed := make(map[string]bool, len(params)+2)
	allowed[c0], allowed[c1] = true, true
	for _, p := range params {
		allowed[p] = true
	}
	var projFields []string
	for _, f := range relFields {
		if allowed[f] {
			projFields = append(projFields, f)
		}
	}

	type fiber struct {
		vals []string
		adj  map[string][]string
	}
	fibers := make(map[string]*fiber)
	var fiberOrder []string
	for _, full := range tuples {
		vals := make([]string, len(params))
		for i, p := range params {
			vals[i] = full[p]
		}
		fk := strings.Join(vals, "\x00")
		fb, ok := fibers[fk]
		if !ok {
			fb = &fiber{vals: vals, adj: make(map[string][]string)}
			fibers[fk] = fb
			fiberOrder = append(fiberOrder, fk)
		}
		fb.adj[full[c0]] = append(fb.adj[full[c0]], full[c1])
	}
	sort.Strings(fiberOrder)

	seen := make(map[string]bool)
	var out []tuple
	for _, fk := range fiberOrder {
		fb := fibers[fk]
		for _, pr := range transitivePairs(fb.adj) {
			t := make(tuple, len(projFields))
			for i, p := range params {
				t[p] = fb.vals[i]
			}
			t[c0], t[c1] = pr[0], pr[1]
			k := keyOf(t, projFields)
			if !seen[k] {
				seen[k] = true
				out = append(out, t)
			}
		}
	}
	return out, projFields
}

func tupleMap(t ast.Tuple) tuple {
	m := make(tuple, len(t.Fields))
	for _, fv := range t.Fields {
		m[fv.Field] = fv.Value
	}
	return m
}

func keyOf(m tuple, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + "=" + m[f]
	}
	sort.Strings(parts)
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "|"
		}
		out += p
	}
	return out
}

// checkKey requires that no two distinct tuples share the same values
// for fields: the key fields must uniquely determine the whole tuple.
// A 0-field key is malformed.
func checkKey(fields []string, tuples []tuple) error {
	if len(fields) == 0 {
		return fmt.Errorf("malformed key constraint: no fields declared")
	}
	seen := make(map[string]tuple)
	for _, t := range tuples {
		k := keyOf(t, fields)
		if prev, ok := seen[k]; ok {
			if !sameTuple(prev, t) {
				return fmt.Errorf("KeyViolation: key %v not unique: two distinct tuples share key %s", fields, k)
			}
			continue
		}
		seen[k] = t
	}
	return nil
}

// checkFunctional requires that the projection (src, dst) is a
// function: every tuple sharing a src value must agree on dst.
func checkFunctional(src, dst string, tuples []tuple) error {
	seen := make(map[string]string)
	for _, t := range tuples {
		s, d := t[src], t[dst]
		if prev, ok := seen[s]; ok {
			if prev != d {
				return fmt.Errorf("FunctionalViolation: %s=%s maps to both %s=%s and %s=%s", src, s, dst, prev, dst, d)
			}
			continue
		}
		seen[s] = d
	}
	return nil
}

func sameTuple(a, b tuple) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
