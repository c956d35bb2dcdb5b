package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/quidnu/subtubular/internal/domain"
	"github.com/quidnu/subtubular/internal/pipeline"
	"github.com/quidnu/subtubular/internal/search"
)

// SearchArgument defines search parameters.
type SearchArgument struct {
	Query     string   `json:"query" jsonschema_description:"Search terms. Prefix a term with title:, keywords:, description: or captions.<language>: to restrict it to one field"`
	Channels  []string `json:"channels,omitempty" jsonschema_description:"Channel ids to search"`
	Playlists []string `json:"playlists,omitempty" jsonschema_description:"Playlist ids to search"`
	Videos    []string `json:"videos,omitempty" jsonschema_description:"Explicit video ids to search"`
	OrderBy   string   `json:"order_by,omitempty" jsonschema_description:"Result ordering: score (default) or uploaded"`
}

// SearchHandler handles the search_videos MCP tool.
type SearchHandler struct {
	pipeline   *pipeline.Pipeline
	freshness  time.Duration
	maxResults int
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(cfg ServerConfig) *SearchHandler {
	return &SearchHandler{
		pipeline:   cfg.Pipeline,
		freshness:  cfg.Freshness,
		maxResults: cfg.MaxResults,
	}
}

// Handle executes the search and returns formatted results.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgument) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("Query cannot be empty"), nil, nil
	}

	scopes := h.buildScopes(args)
	if len(scopes) == 0 {
		return errorResult("No scope given: pass channels, playlists or videos"), nil, nil
	}

	by, err := search.ParseOrderBy(args.OrderBy)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}

	task := h.pipeline.SearchTask(args.Query, search.Order{By: by}, h.maxResults)
	var results []*domain.SearchResult
	runErr := pipeline.Run(ctx, scopes, task, func(r *domain.SearchResult) error {
		results = append(results, r)
		return nil
	})
	if runErr != nil && len(results) == 0 {
		return errorResult(fmt.Sprintf("Search failed: %s", runErr)), nil, nil
	}

	return formatResults(results, scopes, args.Query), nil, nil
}

func (h *SearchHandler) buildScopes(args SearchArgument) []*domain.Scope {
	var scopes []*domain.Scope
	for _, id := range args.Channels {
		scopes = append(scopes, &domain.Scope{Type: domain.ScopeChannel, ID: id, Freshness: h.freshness})
	}
	for _, id := range args.Playlists {
		scopes = append(scopes, &domain.Scope{Type: domain.ScopePlaylist, ID: id, Freshness: h.freshness})
	}
	if len(args.Videos) > 0 {
		scopes = append(scopes, &domain.Scope{Type: domain.ScopeVideos, VideoIDs: args.Videos, Freshness: h.freshness})
	}
	return scopes
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// formatResults formats search results for the MCP response, highlighting
// matched spans in bold. Per-scope failures are appended as warnings so
// partial results stay usable.
func formatResults(results []*domain.SearchResult, scopes []*domain.Scope, queryStr string) *mcp.CallToolResult {
	var sb strings.Builder

	if len(results) == 0 {
		sb.WriteString(fmt.Sprintf("No results found for query: %s\n", queryStr))
	} else {
		sb.WriteString(fmt.Sprintf("Found %d results for '%s':\n\n", len(results), queryStr))
	}

	for i, r := range results {
		title := r.Video.Title
		if r.TitleMatches != nil {
			title = r.TitleMatches.Highlight("**", "**")
		}
		sb.WriteString(fmt.Sprintf("### %d. %s (%s)\n", i+1, title, r.Video.ID))
		sb.WriteString(fmt.Sprintf("**Score**: %.4f\n", r.Score))
		if r.Video.Uploaded != nil {
			sb.WriteString(fmt.Sprintf("**Uploaded**: %s\n", r.Video.Uploaded.Format("2006-01-02")))
		}

		if r.DescMatches != nil {
			sb.WriteString(fmt.Sprintf("- description: %s\n", r.DescMatches.Highlight("**", "**")))
		}
		for _, km := range r.KeywordMatches {
			sb.WriteString(fmt.Sprintf("- keyword #%d: %s\n", km.Index+1, km.Highlight("**", "**")))
		}
		for _, cm := range r.CaptionMatches {
			sb.WriteString(fmt.Sprintf("- %s captions: %s\n", cm.Language, cm.Highlight("**", "**")))
		}
		sb.WriteString("\n")
	}

	for _, s := range scopes {
		for _, n := range s.Notifications() {
			sb.WriteString(fmt.Sprintf("Warning for %s: %s", s, n.Message))
			for _, err := range n.Errors {
				sb.WriteString(fmt.Sprintf(": %s", err))
			}
			sb.WriteString("\n")
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: sb.String()}},
	}
}

// GetToolDefinition returns the MCP tool definition.
func (h *SearchHandler) GetToolDefinition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_videos",
		Description: "Fuzzy full-text search across the titles, descriptions, keywords and caption transcripts of the given channels, playlists or videos",
	}
}

// RegisterSearchTool registers the search tool with an MCP server.
func RegisterSearchTool(server *mcp.Server, cfg ServerConfig) {
	handler := NewSearchHandler(cfg)
	mcp.AddTool(server, handler.GetToolDefinition(), handler.Handle)
}
