package app

import (
	"context"
	"log/slog"

	"github.com/spf13/pflag"
)

// RunSearch executes the search subcommand with the provided dependencies
func RunSearch(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string, req SearchRequest) error {
	a, err := Setup(params, flags, version)
	if err != nil {
		return err
	}
	defer closeApp(a)
	return a.Search(ctx, req, outOf(params))
}

// RunKeywords executes the keywords subcommand with the provided dependencies
func RunKeywords(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string, req ScopeRequest) error {
	a, err := Setup(params, flags, version)
	if err != nil {
		return err
	}
	defer closeApp(a)
	return a.ListKeywords(ctx, req, outOf(params))
}

// RunClearIndex executes the clear-index subcommand with the provided dependencies
func RunClearIndex(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string, req ClearRequest) error {
	a, err := Setup(params, flags, version)
	if err != nil {
		return err
	}
	defer closeApp(a)
	return a.ClearIndex(ctx, req, outOf(params))
}

// RunMCP executes the mcp subcommand with the provided dependencies
func RunMCP(ctx context.Context, params RunParams, flags *pflag.FlagSet, version string) error {
	a, err := Setup(params, flags, version)
	if err != nil {
		return err
	}
	defer closeApp(a)
	return a.ServeMCP(ctx, version, params.CustomIOTransport)
}

func closeApp(a *App) {
	if err := a.Close(); err != nil {
		slog.Error("Failed to close storage", "error", err)
	}
}
