// Package parser implements a hand-written recursive-descent parser for
// the canonical `.axi` module grammar: a line-oriented, indentation-
// blocked format for schemas, theories, and instances. Within a line,
// the structural punctuation of relation declarations, subtype
// declarations, and tuple assignments is tokenized by the character-
// level Lexer in lexer.go; across lines, indentation determines block
// membership the way a Python-style scanner would.
package parser

import (
	"fmt"
	"strings"

	"github.com/axiograph/axiograph/internal/axi/ast"
)

// Parse parses the full text of a `.axi` module.
func Parse(text string) (*ast.Module, error) {
	lines := splitLines(text)
	p := &parser{lines: lines}
	return p.parseModule()
}

type line struct {
	indent int
	text   string // trimmed content, no leading/trailing whitespace
	lineNo int
}

func splitLines(text string) []line {
	var out []line
	for i, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimRight(raw, " \t\r")
		content := strings.TrimLeft(trimmed, " \t")
		if content == "" {
			continue
		}
		indent := len(trimmed) - len(content)
		out = append(out, line{indent: indent, text: content, lineNo: i + 1})
	}
	return out
}

type parser struct {
	lines []line
	pos   int
}

func (p *parser) errAt(l line, format string, args ...interface{}) error {
	return fmt.Errorf("axi: line %d: %s", l.lineNo, fmt.Sprintf(format, args...))
}

func (p *parser) atEnd() bool { return p.pos >= len(p.lines) }

func (p *parser) peek() (line, bool) {
	if p.atEnd() {
		return line{}, false
	}
	return p.lines[p.pos], true
}

// takeBlock consumes every following line with indent strictly greater
// than baseIndent, returning them as a slice of lines.
func (p *parser) takeBlock(baseIndent int) []line {
	var block []line
	for !p.atEnd() && p.lines[p.pos].indent > baseIndent {
		block = append(block, p.lines[p.pos])
		p.pos++
	}
	return block
}

func (p *parser) parseModule() (*ast.Module, error) {
	mod := &ast.Module{}

	first, ok := p.peek()
	if !ok || !strings.HasPrefix(first.text, "module ") {
		return nil, fmt.Errorf("axi: expected `module <name>` as the first statement")
	}
	mod.Name = strings.TrimSpace(strings.TrimPrefix(first.text, "module "))
	p.pos++

	for !p.atEnd() {
		l := p.lines[p.pos]
		switch {
		case strings.HasPrefix(l.text, "schema "):
			p.pos++
			schema, err := p.parseSchema(l)
			if err != nil {
				return nil, err
			}
			mod.Schemas = append(mod.Schemas, schema)
		case strings.HasPrefix(l.text, "theory "):
			p.pos++
			theory, err := p.parseTheory(l)
			if err != nil {
				return nil, err
			}
			mod.Theories = append(mod.Theories, theory)
		case strings.HasPrefix(l.text, "instance "):
			p.pos++
			inst, err := p.parseInstance(l)
			if err != nil {
				return nil, err
			}
			mod.Instances = append(mod.Instances, inst)
		default:
			return nil, p.errAt(l, "unexpected top-level statement %q", l.text)
		}
	}

	return mod, nil
}

func (p *parser) parseSchema(header line) (*ast.Schema, error) {
	name := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(header.text, "schema ")), ":")
	schema := &ast.Schema{Name: name}

	for _, l := range p.takeBlock(header.indent) {
		switch {
		case strings.HasPrefix(l.text, "object "):
			schema.Objects = append(schema.Objects, strings.TrimSpace(strings.TrimPrefix(l.text, "object ")))
		case strings.HasPrefix(l.text, "subtype "):
			sub, err := parseSubtype(l)
			if err != nil {
				return nil, err
			}
			schema.Subtypes = append(schema.Subtypes, sub)
		case strings.HasPrefix(l.text, "relation "):
			decl, err := parseRelationDecl(l)
			if err != nil {
				return nil, err
			}
			schema.Relations = append(schema.Relations, decl)
		default:
			return nil, p.errAt(l, "unexpected schema statement %q", l.text)
		}
	}
	return schema, nil
}

// parseSubtype parses `subtype Sub < Sup` or `subtype Sub < Sup as incl`.
func parseSubtype(l line) (ast.Subtype, error) {
	body := strings.TrimPrefix(l.text, "subtype ")
	parts := strings.SplitN(body, "<", 2)
	if len(parts) != 2 {
		return ast.Subtype{}, fmt.Errorf("axi: line %d: malformed subtype declaration %q", l.lineNo, l.text)
	}
	sub := strings.TrimSpace(parts[0])
	rest := strings.TrimSpace(parts[1])
	sup := rest
	var incl string
	if idx := strings.Index(rest, " as "); idx >= 0 {
		sup = strings.TrimSpace(rest[:idx])
		incl = strings.TrimSpace(rest[idx+len(" as "):])
	}
	return ast.Subtype{Sub: sub, Sup: sup, Inclusion: incl}, nil
}

// parseRelationDecl parses `relation name(field1: Type1, field2: Type2)
// [ @context Ctx ] [ @temporal Time ]`.
func parseRelationDecl(l line) (ast.RelationDecl, error) {
	body := strings.TrimPrefix(l.text, "relation ")
	open := strings.Index(body, "(")
	close := strings.LastIndex(body, ")")
	if open < 0 || close < open {
		return ast.RelationDecl{}, fmt.Errorf("axi: line %d: malformed relation declaration %q", l.lineNo, l.text)
	}
	name := strings.TrimSpace(body[:open])
	inner := body[open+1 : close]

	decl := ast.RelationDecl{Name: name}
	if strings.TrimSpace(inner) != "" {
		for _, part := range strings.Split(inner, ",") {
			kv := strings.SplitN(part, ":", 2)
			if len(kv) != 2 {
				return ast.RelationDecl{}, fmt.Errorf("axi: line %d: malformed field %q in relation %s", l.lineNo, part, name)
			}
			decl.Fields = append(decl.Fields, ast.Field{
				Name: strings.TrimSpace(kv[0]),
				Type: strings.TrimSpace(kv[1]),
			})
		}
	}

	trailer := strings.Fields(strings.TrimSpace(body[close+1:]))
	for i := 0; i < len(trailer); i++ {
		switch trailer[i] {
		case "@context":
			if i+1 < len(trailer) {
				decl.Context = trailer[i+1]
				i++
			}
		case "@temporal":
			if i+1 < len(trailer) {
				decl.Temporal = trailer[i+1]
				i++
			}
		}
	}
	return decl, nil
}

func (p *parser) parseTheory(header line) (*ast.Theory, error) {
	// `theory <name> on <schema>:`
	body := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(header.text, "theory ")), ":")
	idx := strings.Index(body, " on ")
	if idx < 0 {
		return nil, fmt.Errorf("axi: line %d: malformed theory header %q (expected `theory <name> on <schema>:`)", header.lineNo, header.text)
	}
	theory := &ast.Theory{
		Name:   strings.TrimSpace(body[:idx]),
		Schema: strings.TrimSpace(body[idx+len(" on "):]),
	}

	block := p.takeBlock(header.indent)
	i := 0
	for i < len(block) {
		l := block[i]
		switch {
		case strings.HasPrefix(l.text, "equation "):
			eq, consumed, err := parseEquation(block, i)
			if err != nil {
				return nil, err
			}
			theory.Equations = append(theory.Equations, eq)
			i += consumed
		case strings.HasPrefix(l.text, "rewrite "):
			rw, consumed, err := parseRewrite(block, i)
			if err != nil {
				return nil, err
			}
			theory.Rewrites = append(theory.Rewrites, rw)
			i += consumed
		default:
			if !strings.HasPrefix(l.text, "constraint ") {
				return nil, p.errAt(l, "unexpected theory statement %q", l.text)
			}
			theory.Constraints = append(theory.Constraints, parseConstraint(l))
			i++
		}
	}
	return theory, nil
}

// parseConstraint classifies one `constraint ...` line. Recognized
// shapes are `constraint key R(f1, f2, ...)`, `constraint functional
// R.src -> R.dst`, `constraint symmetric R [carriers (a,b)] [param
// (p1,...)] [where field in {v,...}]`, and `constraint transitive R
// [carriers (a,b)] [param (p1,...)]`; anything else is preserved
// verbatim as Unknown so the constraints checker can still hard-reject
// it without the parser having silently dropped it.
func parseConstraint(l line) ast.Constraint {
	body := strings.TrimSpace(strings.TrimPrefix(l.text, "constraint "))
	head := strings.Fields(body)
	if len(head) == 0 {
		return ast.Constraint{Kind: ast.ConstraintUnknown, Text: l.text}
	}

	switch head[0] {
	case "key":
		rest := strings.TrimSpace(strings.TrimPrefix(body, "key"))
		if rel, fields, ok := splitRelationCall(rest); ok {
			return ast.Constraint{Kind: ast.ConstraintKey, Relation: rel, Fields: fields, Text: l.text}
		}
	case "functional":
		rest := strings.TrimSpace(strings.TrimPrefix(body, "functional"))
		if rel, fields, ok := splitFunctionalArrow(rest); ok {
			return ast.Constraint{Kind: ast.ConstraintFunctional, Relation: rel, Fields: fields, Text: l.text}
		}
	case "symmetric":
		rest := strings.TrimSpace(strings.TrimPrefix(body, "symmetric"))
		if rel, rest, ok := splitLeadingIdent(rest); ok {
			carriers, rest, _ := extractParenClause(rest, "carriers")
			params, rest, _ := extractParenClause(rest, "param")
			whereField, whereValues, _ := extractWhereClause(rest)
			return ast.Constraint{
				Kind:        ast.ConstraintSymmetric,
				Relation:    rel,
				Carriers:    carriers,
				Params:      params,
				WhereField:  whereField,
				WhereValues: whereValues,
				Text:        l.text,
			}
		}
	case "transitive":
		rest := strings.TrimSpace(strings.TrimPrefix(body, "transitive"))
		if rel, rest, ok := splitLeadingIdent(rest); ok {
			carriers, rest, _ := extractParenClause(rest, "carriers")
			params, _, _ := extractParenClause(rest, "param")
			return ast.Constraint{
				Kind:     ast.ConstraintTransitive,
				Relation: rel,
				Carriers: carriers,
				Params:   params,
				Text:     l.text,
			}
		}
	}
	return ast.Constraint{Kind: ast.ConstraintUnknown, Text: l.text}
}

// splitRelationCall parses `R(f1, f2, ...)`, returning the relation
// name and its comma-separated field list (nil for `R()`).
func splitRelationCall(s string) (string, []string, bool) {
	open := strings.Index(s, "(")
	close := strings.LastIndex(s, ")")
	if open < 0 || close < open {
		return "", nil, false
	}
	rel := strings.TrimSpace(s[:open])
	if rel == "" {
		return "", nil, false
	}
	inner := s[open+1 : close]
	var fields []string
	if strings.TrimSpace(inner) != "" {
		for _, f := range strings.Split(inner, ",") {
			fields = append(fields, strings.TrimSpace(f))
		}
	}
	return rel, fields, true
}

// splitFunctionalArrow parses `R.src -> R.dst`, requiring both sides to
// name the same relation.
func splitFunctionalArrow(s string) (string, []string, bool) {
	arrow := strings.Index(s, "->")
	if arrow < 0 {
		return "", nil, false
	}
	lhsRel, srcField, ok := splitDotted(s[:arrow])
	if !ok {
		return "", nil, false
	}
	rhsRel, dstField, ok := splitDotted(s[arrow+2:])
	if !ok || rhsRel != lhsRel {
		return "", nil, false
	}
	return lhsRel, []string{srcField, dstField}, true
}

func splitDotted(s string) (string, string, bool) {
	idx := strings.LastIndex(s, ".")
	if idx < 0 {
		return "", "", false
	}
	rel := strings.TrimSpace(s[:idx])
	field := strings.TrimSpace(s[idx+1:])
	if rel == "" || field == "" {
		return "", "", false
	}
	return rel, field, true
}

// splitLeadingIdent splits s into its first whitespace-delimited token
// and the (trimmed) remainder.
func splitLeadingIdent(s string) (string, string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", false
	}
	idx := strings.IndexAny(s, " \t")
	if idx < 0 {
		return s, "", true
	}
	return s[:idx], strings.TrimSpace(s[idx:]), true
}

// extractParenClause finds `<keyword> (a, b, ...)` anywhere in s,
// returning its comma-separated contents and s with that clause
// excised. ok is false (items nil, remainder == s) when keyword isn't
// present.
func extractParenClause(s, keyword string) (items []string, remainder string, ok bool) {
	idx := strings.Index(s, keyword+" (")
	prefixLen := len(keyword) + 2
	if idx < 0 {
		idx = strings.Index(s, keyword+"(")
		prefixLen = len(keyword) + 1
		if idx < 0 {
			return nil, s, false
		}
	}
	open := idx + prefixLen - 1
	close := strings.Index(s[open:], ")")
	if close < 0 {
		return nil, s, false
	}
	close += open

	inner := s[open+1 : close]
	if strings.TrimSpace(inner) != "" {
		for _, p := range strings.Split(inner, ",") {
			items = append(items, strings.TrimSpace(p))
		}
	}
	remainder = strings.TrimSpace(s[:idx] + " " + s[close+1:])
	return items, remainder, true
}

// extractWhereClause finds `where <field> in {v1, v2, ...}` in s and
// returns the field name and value set.
func extractWhereClause(s string) (field string, values []string, ok bool) {
	idx := strings.Index(s, "where ")
	if idx < 0 {
		return "", nil, false
	}
	rest := strings.TrimSpace(s[idx+len("where "):])
	inIdx := strings.Index(rest, " in ")
	if inIdx < 0 {
		return "", nil, false
	}
	field = strings.TrimSpace(rest[:inIdx])
	setPart := strings.TrimSpace(rest[inIdx+len(" in "):])
	open := strings.Index(setPart, "{")
	close := strings.LastIndex(setPart, "}")
	if open < 0 || close < open {
		return "", nil, false
	}
	inner := setPart[open+1 : close]
	if strings.TrimSpace(inner) != "" {
		for _, v := range strings.Split(inner, ",") {
			values = append(values, strings.TrimSpace(v))
		}
	}
	return field, values, true
}

// parseEquation consumes `equation <name>:`, then its two indented body
// lines (lhs ending in `=`, then rhs).
func parseEquation(block []line, i int) (ast.Equation, int, error) {
	header := block[i]
	name := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(header.text, "equation ")), ":")
	eq := ast.Equation{Name: name}

	j := i + 1
	if j < len(block) && block[j].indent > header.indent {
		eq.LHS = strings.TrimSuffix(strings.TrimSpace(block[j].text), "=")
		j++
	}
	if j < len(block) && block[j].indent > header.indent {
		eq.RHS = strings.TrimSpace(block[j].text)
		j++
	}
	return eq, j - i, nil
}

// parseRewrite consumes `rewrite <name>:` and its `key: value` body
// lines (orientation, vars, lhs, rhs — lhs/rhs are mandatory).
func parseRewrite(block []line, i int) (ast.RewriteRule, int, error) {
	header := block[i]
	name := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(header.text, "rewrite ")), ":")
	rw := ast.RewriteRule{Name: name, Orientation: "forward"}

	j := i + 1
	for j < len(block) && block[j].indent > header.indent {
		kv := strings.SplitN(block[j].text, ":", 2)
		if len(kv) != 2 {
			return ast.RewriteRule{}, 0, fmt.Errorf("axi: line %d: malformed rewrite body line %q", block[j].lineNo, block[j].text)
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		switch key {
		case "orientation":
			rw.Orientation = val
		case "vars":
			rw.Vars = val
		case "lhs":
			rw.LHS = val
		case "rhs":
			rw.RHS = val
		default:
			return ast.RewriteRule{}, 0, fmt.Errorf("axi: line %d: unknown rewrite field %q", block[j].lineNo, key)
		}
		j++
	}
	if rw.LHS == "" || rw.RHS == "" {
		return ast.RewriteRule{}, 0, fmt.Errorf("axi: line %d: rewrite %s needs both lhs and rhs", header.lineNo, name)
	}
	return rw, j - i, nil
}

func (p *parser) parseInstance(header line) (*ast.Instance, error) {
	body := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(header.text, "instance ")), ":")
	idx := strings.Index(body, " of ")
	if idx < 0 {
		return nil, fmt.Errorf("axi: line %d: malformed instance header %q (expected `instance <name> of <schema>:`)", header.lineNo, header.text)
	}
	inst := &ast.Instance{
		Name:   strings.TrimSpace(body[:idx]),
		Schema: strings.TrimSpace(body[idx+len(" of "):]),
	}

	for _, l := range p.takeBlock(header.indent) {
		eqIdx := strings.Index(l.text, "=")
		if eqIdx < 0 {
			return nil, p.errAt(l, "malformed instance assignment %q", l.text)
		}
		lhs := strings.TrimSpace(l.text[:eqIdx])
		rhs := strings.TrimSpace(l.text[eqIdx+1:])

		if strings.HasPrefix(rhs, "{(") || (strings.HasPrefix(rhs, "{") && strings.Contains(rhs, "(")) {
			tuples, err := parseTupleSet(l, rhs)
			if err != nil {
				return nil, err
			}
			inst.Relations = append(inst.Relations, ast.RelationAssignment{Relation: lhs, Tuples: tuples})
			continue
		}

		names, err := parseIdentSet(l, rhs)
		if err != nil {
			return nil, err
		}
		inst.Objects = append(inst.Objects, ast.ObjectAssignment{ObjectType: lhs, Names: names})
	}
	return inst, nil
}

// parseIdentSet parses `{name1, name2, ...}` (or `{}`).
func parseIdentSet(l line, text string) ([]string, error) {
	toks, err := Tokenize(text)
	if err != nil {
		return nil, fmt.Errorf("axi: line %d: %w", l.lineNo, err)
	}
	if len(toks) == 0 || toks[0].Type != TokLBrace || toks[len(toks)-1].Type != TokRBrace {
		return nil, fmt.Errorf("axi: line %d: expected `{...}` set literal, got %q", l.lineNo, text)
	}
	var names []string
	for _, t := range toks[1 : len(toks)-1] {
		if t.Type == TokIdent {
			names = append(names, t.Value)
		}
	}
	return names, nil
}

// parseTupleSet parses `{(f1=v1, f2=v2), (f3=v3)}` (or `{}`).
func parseTupleSet(l line, text string) ([]ast.Tuple, error) {
	toks, err := Tokenize(text)
	if err != nil {
		return nil, fmt.Errorf("axi: line %d: %w", l.lineNo, err)
	}
	if len(toks) == 0 || toks[0].Type != TokLBrace || toks[len(toks)-1].Type != TokRBrace {
		return nil, fmt.Errorf("axi: line %d: expected `{...}` tuple set literal, got %q", l.lineNo, text)
	}
	body := toks[1 : len(toks)-1]

	var tuples []ast.Tuple
	i := 0
	for i < len(body) {
		if body[i].Type != TokLParen {
			return nil, fmt.Errorf("axi: line %d: expected `(` starting tuple, got %q", l.lineNo, body[i].Value)
		}
		i++
		var tup ast.Tuple
		for i < len(body) && body[i].Type != TokRParen {
			if body[i].Type == TokComma {
				i++
				continue
			}
			if body[i].Type != TokIdent || i+2 >= len(body) || body[i+1].Type != TokEquals {
				return nil, fmt.Errorf("axi: line %d: expected `field = value` in tuple", l.lineNo)
			}
			field := body[i].Value
			value := body[i+2].Value
			tup.Fields = append(tup.Fields, ast.FieldValue{Field: field, Value: value})
			i += 3
		}
		if i >= len(body) {
			return nil, fmt.Errorf("axi: line %d: unterminated tuple", l.lineNo)
		}
		i++ // consume ')'
		tuples = append(tuples, tup)
		if i < len(body) && body[i].Type == TokComma {
			i++
		}
	}
	return tuples, nil
}
