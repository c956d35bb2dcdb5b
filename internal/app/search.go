package app

import (
	"context"
	"fmt"
	"io"

	"github.com/quidnu/subtubular/internal/domain"
	"github.com/quidnu/subtubular/internal/pipeline"
	"github.com/quidnu/subtubular/internal/search"
)

// SearchRequest is one search invocation as parsed from the CLI.
type SearchRequest struct {
	ScopeRequest

	Query     string
	OrderBy   string
	Ascending bool
}

const snippetPad = 40

// Search runs the query across the requested scopes and streams formatted
// results to out as they arrive. Per-scope failures are reported after the
// run and returned joined.
func (a *App) Search(ctx context.Context, req SearchRequest, out io.Writer) error {
	scopes, err := a.buildScopes(req.ScopeRequest)
	if err != nil {
		return err
	}
	by, err := search.ParseOrderBy(req.OrderBy)
	if err != nil {
		return err
	}
	order := search.Order{By: by, Ascending: req.Ascending}

	task := a.Pipeline.SearchTask(req.Query, order, a.Settings.MaxResults)
	count := 0
	runErr := pipeline.Run(ctx, scopes, task, func(r *domain.SearchResult) error {
		count++
		writeResult(out, count, r)
		return nil
	})

	reportNotifications(scopes)
	fmt.Fprintf(out, "\n%d results\n", count)
	return runErr
}

func writeResult(w io.Writer, n int, r *domain.SearchResult) {
	title := r.Video.Title
	if r.TitleMatches != nil {
		title = r.TitleMatches.Highlight("*", "*")
	}
	fmt.Fprintf(w, "%d. %s (%s)  score %.2f", n, title, r.Video.ID, r.Score)
	if r.Video.Uploaded != nil {
		fmt.Fprintf(w, "  uploaded %s", r.Video.Uploaded.Format("2006-01-02"))
	}
	fmt.Fprintln(w)

	if r.DescMatches != nil {
		for _, s := range snippets(*r.DescMatches, snippetPad) {
			fmt.Fprintf(w, "   in description: %s\n", s)
		}
	}
	for _, km := range r.KeywordMatches {
		fmt.Fprintf(w, "   in keyword #%d: %s\n", km.Index+1, km.Highlight("*", "*"))
	}
	for _, cm := range r.CaptionMatches {
		for _, s := range snippets(cm.MatchedText, snippetPad) {
			fmt.Fprintf(w, "   in %s captions: %s\n", cm.Language, s)
		}
	}
}

// snippets renders one context window per matched span, the span itself
// marked with asterisks.
func snippets(m domain.MatchedText, pad int) []string {
	out := make([]string, 0, len(m.Spans))
	for _, s := range m.Spans {
		start := max(s.Start-pad, 0)
		end := min(s.End()+pad, len(m.Text))

		text := m.Text[start:s.Start] + "*" + m.Text[s.Start:s.End()] + "*" + m.Text[s.End():end]
		if start > 0 {
			text = "..." + text
		}
		if end < len(m.Text) {
			text = text + "..."
		}
		out = append(out, text)
	}
	return out
}
