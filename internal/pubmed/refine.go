package pubmed

import "strings"

// Direction tells Refine whether to widen or tighten the previous expression.
type Direction int

const (
	Keep Direction = iota
	Broaden
	Narrow
)

const (
	broadenClause = "review[pt]"
	recencyClause = `("last+5+years"[PDat])`
)

// ParseDirection maps the refinementType values the model sends
// ("increase", "decrease", "keep") to a Direction. Anything unrecognised is Keep.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "increase", "broaden":
		return Broaden
	case "decrease", "narrow":
		return Narrow
	default:
		return Keep
	}
}

// String returns the wire name of the direction.
func (d Direction) String() string {
	switch d {
	case Broaden:
		return "increase"
	case Narrow:
		return "decrease"
	default:
		return "keep"
	}
}

// Refine derives a new expression from the previous one. originalQuery is
// accepted for symmetry with the refine capability but does not influence the
// rewrite.
func Refine(originalQuery, previous string, dir Direction, extraCriteria string) string {
	switch dir {
	case Broaden:
		terms := strings.Split(previous, And)
		if len(terms) > 1 {
			// the last term is usually the most specific one
			return strings.Join(terms[:len(terms)-1], And)
		}
		return terms[0] + Or + broadenClause
	case Narrow:
		if extra := Convert(extraCriteria); extra != "" {
			return previous + And + extra
		}
		return previous + And + recencyClause
	default:
		return previous
	}
}
