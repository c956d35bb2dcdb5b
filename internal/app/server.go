package app

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	mcputil "github.com/quidnu/subtubular/internal/mcp"
)

// ServeMCP runs the MCP server over the given transport, or stdio when none
// is provided, until the context ends or the client disconnects.
func (a *App) ServeMCP(ctx context.Context, version string, transport mcp.Transport) error {
	server := mcputil.CreateServer(mcputil.ServerConfig{
		Name:       "subtubular",
		Version:    version,
		Pipeline:   a.Pipeline,
		Freshness:  a.Settings.CacheFreshness,
		MaxResults: a.Settings.MaxResults,
	})

	if transport == nil {
		transport = &mcp.StdioTransport{}
	}
	return server.Run(ctx, transport)
}
