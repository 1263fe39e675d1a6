package cert

import "fmt"

// PathExpr is a path expression over named entities and relation types:
// a single Step, the sequential composition Trans of two sub-paths, or
// the identity path Reflexive at one entity. Kind discriminates which
// fields are meaningful; this flat, tagged-struct shape (rather than an
// interface with custom JSON marshaling) keeps Envelope's proof payload
// trivially round-trippable through encoding/json.
type PathExpr struct {
	Kind string `json:"kind"` // "step", "trans", or "reflexive"

	// Step fields.
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	RelType string `json:"rel_type,omitempty"`

	// Reflexive field.
	Entity string `json:"entity,omitempty"`

	// Trans fields.
	Left  *PathExpr `json:"left,omitempty"`
	Right *PathExpr `json:"right,omitempty"`
}

// Step builds a one-hop path expression.
func Step(from, relType, to string) *PathExpr {
	return &PathExpr{Kind: "step", From: from, RelType: relType, To: to}
}

// Trans builds the sequential composition of left then right.
func Trans(left, right *PathExpr) *PathExpr {
	return &PathExpr{Kind: "trans", Left: left, Right: right}
}

// Reflexive builds the identity path at entity.
func Reflexive(entity string) *PathExpr {
	return &PathExpr{Kind: "reflexive", Entity: entity}
}

// PathEquivProof records that left and right normalize to the same
// path, plus the rewrite-rule labels applied while normalizing each
// side, so a verifier can see *how* equivalence was established and not
// just that it was.
type PathEquivProof struct {
	Left            *PathExpr `json:"left"`
	Right           *PathExpr `json:"right"`
	Normalized      *PathExpr `json:"normalized"`
	LeftDerivation  []string  `json:"left_derivation"`
	RightDerivation []string  `json:"right_derivation"`
}

// ProvePathEquiv normalizes left and right and succeeds only if they
// normalize to the same path.
func ProvePathEquiv(left, right *PathExpr) (*PathEquivProof, error) {
	leftNorm, leftDerivation := Normalize(left)
	rightNorm, rightDerivation := Normalize(right)
	if !pathExprEqual(leftNorm, rightNorm) {
		return nil, fmt.Errorf("cert: paths do not normalize to the same form (%s vs %s)", render(leftNorm), render(rightNorm))
	}
	return &PathEquivProof{
		Left:            left,
		Right:           right,
		Normalized:      leftNorm,
		LeftDerivation:  leftDerivation,
		RightDerivation: rightDerivation,
	}, nil
}

// Normalize reduces e to a canonical right-associated chain of Steps:
// every Reflexive is eliminated (composing with identity is a no-op)
// and every Trans nesting is flattened and re-associated, so two path
// expressions built with different parenthesization or different
// identity insertions normalize to the same value whenever they denote
// the same path.
func Normalize(e *PathExpr) (*PathExpr, []string) {
	var derivation []string
	steps := flatten(e, &derivation)
	return rebuild(steps), derivation
}

func flatten(e *PathExpr, derivation *[]string) []*PathExpr {
	switch e.Kind {
	case "reflexive":
		*derivation = append(*derivation, fmt.Sprintf("identity_elim(%s)", e.Entity))
		return nil
	case "step":
		return []*PathExpr{e}
	case "trans":
		if e.Left.Kind == "trans" || e.Right.Kind == "trans" {
			*derivation = append(*derivation, "assoc")
		}
		left := flatten(e.Left, derivation)
		right := flatten(e.Right, derivation)
		return append(left, right...)
	default:
		return []*PathExpr{e}
	}
}

func rebuild(steps []*PathExpr) *PathExpr {
	if len(steps) == 0 {
		return nil
	}
	result := steps[len(steps)-1]
	for i := len(steps) - 2; i >= 0; i-- {
		result = &PathExpr{Kind: "trans", Left: steps[i], Right: result}
	}
	return result
}

func pathExprEqual(a, b *PathExpr) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case "step":
		return a.From == b.From && a.To == b.To && a.RelType == b.RelType
	case "reflexive":
		return a.Entity == b.Entity
	case "trans":
		return pathExprEqual(a.Left, b.Left) && pathExprEqual(a.Right, b.Right)
	default:
		return false
	}
}

func render(e *PathExpr) string {
	if e == nil {
		return "<empty>"
	}
	switch e.Kind {
	case "step":
		return fmt.Sprintf("%s-%s->%s", e.From, e.RelType, e.To)
	case "reflexive":
		return fmt.Sprintf("id(%s)", e.Entity)
	case "trans":
		return fmt.Sprintf("(%s ; %s)", render(e.Left), render(e.Right))
	default:
		return "?"
	}
}
