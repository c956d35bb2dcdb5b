package index

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/quidnu/subtubular/internal/domain"
)

// UnknownFieldError reports a query term scoped to a field the shard's
// schema does not contain. Valid enumerates every searchable field,
// including the per-caption-track dynamic ones.
type UnknownFieldError struct {
	Field string
	Valid []string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q, valid fields are: %s", e.Field, strings.Join(e.Valid, ", "))
}

// queryTerm is one parsed term, optionally scoped to a field.
type queryTerm struct {
	field string // empty: search all fields
	text  string
}

// parseTerms splits a query on whitespace and extracts field scopes of the
// form "field:term". A colon inside the first segment scopes the term; a
// bare leading colon is kept as text.
func parseTerms(q string) []queryTerm {
	var terms []queryTerm
	for _, raw := range strings.Fields(q) {
		if i := strings.Index(raw, ":"); i > 0 && i < len(raw)-1 {
			terms = append(terms, queryTerm{field: raw[:i], text: raw[i+1:]})
			continue
		}
		terms = append(terms, queryTerm{text: raw})
	}
	return terms
}

// validateFields checks every scoped term against the shard's searchable
// fields and returns an UnknownFieldError for the first miss.
func validateFields(terms []queryTerm, fields []string) error {
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f] = true
	}
	for _, t := range terms {
		if t.field != "" && !known[t.field] {
			return &UnknownFieldError{Field: t.field, Valid: fields}
		}
	}
	return nil
}

// buildQuery assembles the fuzzy query: per term and field, a fuzzy match
// query (edit distance per Fuzziness) or'd with an infix wildcard so a term
// buried inside a compound token ("lasting" in "ever-lasting") still hits.
// Terms combine disjunctively; any matching term qualifies a document.
func buildQuery(terms []queryTerm, fields []string) query.Query {
	perTerm := make([]query.Query, 0, len(terms))
	for _, t := range terms {
		target := fields
		if t.field != "" {
			target = []string{t.field}
		}
		distance, _ := Fuzziness(t.text)
		perField := make([]query.Query, 0, len(target)*2)
		for _, f := range target {
			mq := bleve.NewMatchQuery(t.text)
			mq.SetField(f)
			mq.SetFuzziness(distance)
			perField = append(perField, mq)

			wq := bleve.NewWildcardQuery("*" + strings.ToLower(t.text) + "*")
			wq.SetField(f)
			perField = append(perField, wq)
		}
		perTerm = append(perTerm, bleve.NewDisjunctionQuery(perField...))
	}
	if len(perTerm) == 1 {
		return perTerm[0]
	}
	return bleve.NewDisjunctionQuery(perTerm...)
}

// searchableFields lists a shard's indexed fields: the static schema plus
// whatever caption languages its documents carry.
func searchableFields(idx interface{ Fields() ([]string, error) }) ([]string, error) {
	raw, err := idx.Fields()
	if err != nil {
		return nil, fmt.Errorf("list index fields: %w", err)
	}
	seen := make(map[string]bool, len(raw)+len(domain.StaticFields))
	fields := make([]string, 0, len(raw)+len(domain.StaticFields))
	for _, f := range domain.StaticFields {
		seen[f] = true
		fields = append(fields, f)
	}
	for _, f := range raw {
		if f == "_all" || seen[f] {
			continue
		}
		seen[f] = true
		fields = append(fields, f)
	}
	return fields, nil
}
