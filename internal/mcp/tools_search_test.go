package mcp

import (
	"context"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/quidnu/subtubular/internal/domain"
)

func textOf(t *testing.T, result *sdk.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("got %d content blocks", len(result.Content))
	}
	tc, ok := result.Content[0].(*sdk.TextContent)
	if !ok {
		t.Fatalf("content = %T", result.Content[0])
	}
	return tc.Text
}

func TestHandleRejectsEmptyQuery(t *testing.T) {
	h := NewSearchHandler(ServerConfig{})

	result, _, err := h.Handle(context.Background(), nil, SearchArgument{Query: "  "})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !result.IsError {
		t.Error("empty query not flagged as error")
	}
}

func TestHandleRejectsMissingScope(t *testing.T) {
	h := NewSearchHandler(ServerConfig{})

	result, _, err := h.Handle(context.Background(), nil, SearchArgument{Query: "love"})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !result.IsError {
		t.Error("scopeless query not flagged as error")
	}
	if !strings.Contains(textOf(t, result), "scope") {
		t.Errorf("message = %q", textOf(t, result))
	}
}

func TestHandleRejectsUnknownOrdering(t *testing.T) {
	h := NewSearchHandler(ServerConfig{})

	result, _, err := h.Handle(context.Background(), nil, SearchArgument{
		Query:   "love",
		Videos:  []string{"v1"},
		OrderBy: "views",
	})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !result.IsError {
		t.Error("unknown ordering not flagged as error")
	}
}

func TestFormatResultsEmpty(t *testing.T) {
	result := formatResults(nil, nil, "love")
	if result.IsError {
		t.Error("no results is not an error")
	}
	if !strings.Contains(textOf(t, result), "No results found") {
		t.Errorf("text = %q", textOf(t, result))
	}
}

func TestFormatResultsHighlights(t *testing.T) {
	results := []*domain.SearchResult{
		{
			Video: &domain.Video{ID: "v1", Title: "Lasting Love"},
			Score: 1.25,
			TitleMatches: &domain.MatchedText{
				Text:  "Lasting Love",
				Spans: []domain.Span{{Start: 8, Length: 4}},
			},
			CaptionMatches: []domain.CaptionMatch{
				{Language: "en", MatchedText: domain.MatchedText{Text: "all about love", Spans: []domain.Span{{Start: 10, Length: 4}}}},
			},
		},
	}

	text := textOf(t, formatResults(results, nil, "love"))
	for _, want := range []string{
		"Found 1 results for 'love'",
		"### 1. Lasting **Love** (v1)",
		"**Score**: 1.2500",
		"en captions: all about **love**",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
}

func TestFormatResultsAppendsScopeWarnings(t *testing.T) {
	scope := &domain.Scope{Type: domain.ScopeChannel, ID: "UC1"}
	scope.Notify("search failed")

	text := textOf(t, formatResults(nil, []*domain.Scope{scope}, "love"))
	if !strings.Contains(text, "Warning for channel UC1: search failed") {
		t.Errorf("text = %q", text)
	}
}

func TestCreateServerRegistersSearchTool(t *testing.T) {
	s := CreateServer(ServerConfig{Name: "subtubular", Version: "test"})
	if s == nil {
		t.Fatal("CreateServer returned nil")
	}
}
