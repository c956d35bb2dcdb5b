package search

import (
	"testing"

	"github.com/quidnu/subtubular/internal/domain"
)

func TestMapKeywordMatches(t *testing.T) {
	// Concatenation "everlastinglove": "ever" starts at 0,
	// "lastinglove" at 4.
	keywords := []string{"ever", "lastinglove"}

	matches := MapKeywordMatches(keywords, []domain.Span{{Start: 4, Length: 7}})
	if len(matches) != 1 {
		t.Fatalf("matches = %+v, want one", matches)
	}
	m := matches[0]
	if m.Index != 1 || m.Text != "lastinglove" {
		t.Errorf("match = %+v, want keyword 1", m)
	}
	if len(m.Spans) != 1 || m.Spans[0] != (domain.Span{Start: 0, Length: 7}) {
		t.Errorf("spans = %v, want local offset 0 length 7", m.Spans)
	}
}

func TestMapKeywordMatchesClipsAtBoundary(t *testing.T) {
	// A span crossing from "ever" into "lastinglove" is attributed to
	// "ever" and clipped at its end.
	matches := MapKeywordMatches([]string{"ever", "lastinglove"}, []domain.Span{{Start: 2, Length: 6}})
	if len(matches) != 1 {
		t.Fatalf("matches = %+v, want one", matches)
	}
	m := matches[0]
	if m.Index != 0 {
		t.Errorf("Index = %d, want 0", m.Index)
	}
	if len(m.Spans) != 1 || m.Spans[0] != (domain.Span{Start: 2, Length: 2}) {
		t.Errorf("spans = %v, want start 2 length 2", m.Spans)
	}
}

func TestMapKeywordMatchesGroupsByKeyword(t *testing.T) {
	keywords := []string{"abc", "defg"}
	matches := MapKeywordMatches(keywords, []domain.Span{
		{Start: 0, Length: 2},
		{Start: 4, Length: 2},
		{Start: 1, Length: 1},
	})
	if len(matches) != 2 {
		t.Fatalf("matches = %+v, want two", matches)
	}
	if matches[0].Index != 0 || len(matches[0].Spans) != 2 {
		t.Errorf("first keyword match = %+v", matches[0])
	}
	if matches[1].Index != 1 || len(matches[1].Spans) != 1 {
		t.Errorf("second keyword match = %+v", matches[1])
	}
}

func TestMapKeywordMatchesIgnoresOutOfRange(t *testing.T) {
	matches := MapKeywordMatches([]string{"abc"}, []domain.Span{
		{Start: -1, Length: 2},
		{Start: 3, Length: 1},
		{Start: 0, Length: 0},
	})
	if len(matches) != 0 {
		t.Errorf("matches = %+v, want none", matches)
	}
}

func TestMapKeywordMatchesEmptyInput(t *testing.T) {
	if m := MapKeywordMatches(nil, []domain.Span{{Start: 0, Length: 1}}); m != nil {
		t.Errorf("matches = %+v", m)
	}
	if m := MapKeywordMatches([]string{"a"}, nil); m != nil {
		t.Errorf("matches = %+v", m)
	}
}
