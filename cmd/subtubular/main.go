package main

import (
	"os"

	"github.com/quidnu/subtubular/internal/app"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "subtubular"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:     programName,
		Short:   "Search YouTube captions and metadata",
		Long:    "SubTubular indexes the titles, descriptions, keywords and caption transcripts of channels, playlists and videos for fuzzy full-text search",
		Version: version,
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	app.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(
		newSearchCmd(version),
		newKeywordsCmd(version),
		newMCPCmd(version),
		newClearIndexCmd(version),
	)
	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

func newSearchCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the videos of channels, playlists or explicit video ids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := app.SearchRequest{
				ScopeRequest: scopeRequest(cmd.Flags()),
				Query:        args[0],
			}
			req.OrderBy, _ = cmd.Flags().GetString("order-by")
			req.Ascending, _ = cmd.Flags().GetBool("asc")
			return app.RunSearch(cmd.Context(), app.DefaultRunParams(), cmd.Flags(), version, req)
		},
	}
	app.RegisterScopeFlags(cmd.Flags())
	cmd.Flags().String("order-by", "score", "Result ordering: score or uploaded")
	cmd.Flags().Bool("asc", false, "Sort ascending instead of descending")
	return cmd
}

func newKeywordsCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "List the keywords of the scopes' videos by frequency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunKeywords(cmd.Context(), app.DefaultRunParams(), cmd.Flags(), version, scopeRequest(cmd.Flags()))
		},
	}
	app.RegisterScopeFlags(cmd.Flags())
	return cmd
}

func newMCPCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve search as an MCP tool over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunMCP(cmd.Context(), app.DefaultRunParams(), cmd.Flags(), version)
		},
	}
}

func newClearIndexCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-index",
		Short: "Remove shard indexes and cached video lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req app.ClearRequest
			req.Channels, _ = cmd.Flags().GetStringSlice("channel")
			req.Playlists, _ = cmd.Flags().GetStringSlice("playlist")
			req.Videos, _ = cmd.Flags().GetBool("videos")
			req.NotAccessedFor, _ = cmd.Flags().GetDuration("not-accessed-for")
			req.Simulate, _ = cmd.Flags().GetBool("simulate")
			return app.RunClearIndex(cmd.Context(), app.DefaultRunParams(), cmd.Flags(), version, req)
		},
	}
	cmd.Flags().StringSliceP("channel", "c", nil, "Channel ids to clear (repeatable)")
	cmd.Flags().StringSliceP("playlist", "p", nil, "Playlist ids to clear (repeatable)")
	cmd.Flags().BoolP("videos", "v", false, "Clear the shared collection of explicitly searched videos")
	cmd.Flags().Duration("not-accessed-for", 0, "Only clear what was not accessed for this long")
	cmd.Flags().Bool("simulate", false, "List what would be cleared without clearing it")
	return cmd
}

func scopeRequest(flags *pflag.FlagSet) app.ScopeRequest {
	var req app.ScopeRequest
	req.Channels, _ = flags.GetStringSlice("channel")
	req.Playlists, _ = flags.GetStringSlice("playlist")
	req.VideoIDs, _ = flags.GetStringSlice("videos")
	req.Skip, _ = flags.GetInt("skip")
	req.Take, _ = flags.GetInt("take")
	return req
}
