package query

import (
	"fmt"

	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
	"github.com/louisbranch/spar/internal/spar/content"
)

// EntryFields are the entry attributes a content query can reference.
var EntryFields = Fields{
	"event_id":       FieldString,
	"title":          FieldString,
	"pack":           FieldString,
	"generator_type": FieldString,
	"severity_lo":    FieldInt,
	"severity_hi":    FieldInt,
	"cooldown_event": FieldInt,
	"weight":         FieldDouble,
	"tags":           FieldStringList,
}

// Query is a compiled entry filter.
type Query struct {
	source string
	expr   *expr.Expr
}

// Compile parses filter against EntryFields. Syntax errors are reported as
// INVALID_SELECTION.
func Compile(filter string) (*Query, error) {
	e, err := Parse(filter, EntryFields)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeInvalidSelection,
			"invalid content query", map[string]string{"query": filter}, err)
	}
	return &Query{source: filter, expr: e}, nil
}

// String returns the source expression.
func (q *Query) String() string {
	return q.source
}

// Match reports whether e satisfies the query.
func (q *Query) Match(e content.Entry) (bool, error) {
	ok, err := Evaluate(q.expr, entryResolver(e))
	if err != nil {
		return false, fmt.Errorf("evaluate %q on %s: %w", q.source, e.ID, err)
	}
	return ok, nil
}

// Apply returns the entries matching filter, in input order.
func Apply(entries []content.Entry, filter string) ([]content.Entry, error) {
	q, err := Compile(filter)
	if err != nil {
		return nil, err
	}
	out := make([]content.Entry, 0, len(entries))
	for _, e := range entries {
		ok, err := q.Match(e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func entryResolver(e content.Entry) Resolver {
	return func(name string) (any, bool) {
		switch name {
		case "event_id":
			return e.ID, true
		case "title":
			return e.Title, true
		case "pack":
			return e.Pack, true
		case "generator_type":
			return string(e.GeneratorType), true
		case "severity_lo":
			return e.SeverityBand.Lo, true
		case "severity_hi":
			return e.SeverityBand.Hi, true
		case "cooldown_event":
			return e.CooldownEvent, true
		case "weight":
			return e.Weight, true
		case "tags":
			return e.Tags, true
		default:
			return nil, false
		}
	}
}
