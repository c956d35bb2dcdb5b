package app

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/quidnu/subtubular/internal/domain"
	"github.com/quidnu/subtubular/internal/pipeline"
)

// ListKeywords aggregates the keywords of the requested scopes' videos and
// writes them to out, most frequent first.
func (a *App) ListKeywords(ctx context.Context, req ScopeRequest, out io.Writer) error {
	scopes, err := a.buildScopes(req)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	var keywords []string
	task := a.Pipeline.ListTask(func(v *domain.Video) bool { return len(v.Keywords) > 0 })
	runErr := pipeline.Run(ctx, scopes, task, func(v *domain.Video) error {
		for _, k := range v.Keywords {
			if counts[k] == 0 {
				keywords = append(keywords, k)
			}
			counts[k]++
		}
		return nil
	})

	reportNotifications(scopes)

	sort.SliceStable(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	for _, k := range keywords {
		fmt.Fprintf(out, "%4d  %s\n", counts[k], k)
	}
	return runErr
}
