package search

import (
	"sort"

	"github.com/quidnu/subtubular/internal/domain"
)

// MapKeywordMatches remaps match spans against the concatenated keyword
// field back to the individual keywords. The start offset of each keyword
// inside the concatenation is reconstructed as the running sum of prior
// keyword lengths; each span is attributed to the last keyword whose start
// is at or before the span's start and re-expressed relative to it. Spans
// reaching past the keyword's end are clipped to it.
func MapKeywordMatches(keywords []string, spans []domain.Span) []domain.KeywordMatch {
	if len(keywords) == 0 || len(spans) == 0 {
		return nil
	}

	starts := make([]int, len(keywords))
	total := 0
	for i, k := range keywords {
		starts[i] = total
		total += len(k)
	}

	byKeyword := make(map[int][]domain.Span)
	var order []int
	for _, s := range spans {
		if s.Start < 0 || s.Start >= total || s.Length <= 0 {
			continue
		}
		i := sort.Search(len(starts), func(j int) bool { return starts[j] > s.Start }) - 1
		local := s.Start - starts[i]
		if local >= len(keywords[i]) {
			continue
		}
		length := s.Length
		if local+length > len(keywords[i]) {
			length = len(keywords[i]) - local
		}
		if _, seen := byKeyword[i]; !seen {
			order = append(order, i)
		}
		byKeyword[i] = append(byKeyword[i], domain.Span{Start: local, Length: length})
	}

	matches := make([]domain.KeywordMatch, 0, len(order))
	for _, i := range order {
		matches = append(matches, domain.KeywordMatch{
			Index:       i,
			MatchedText: domain.MatchedText{Text: keywords[i], Spans: byKeyword[i]},
		})
	}
	return matches
}
