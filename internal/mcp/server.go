// Package mcp exposes the search pipeline as MCP tools for use from
// assistants speaking the Model Context Protocol.
package mcp

import (
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/quidnu/subtubular/internal/pipeline"
)

// ServerConfig contains configuration for creating an MCP server
type ServerConfig struct {
	Name    string
	Version string

	Pipeline   *pipeline.Pipeline
	Freshness  time.Duration
	MaxResults int
}

// CreateServer creates and configures the MCP server
func CreateServer(cfg ServerConfig) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	RegisterSearchTool(s, cfg)

	return s
}
