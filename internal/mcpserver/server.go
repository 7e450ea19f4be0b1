// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes wssync tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/wssync/internal/apperr"
	"github.com/starford/wssync/internal/syncservice"
)

const catalogueFormatURI = "wssync://catalogue-format"

// Server wraps the MCP server with wssync tools.
type Server struct {
	mcp *server.MCPServer
	svc *syncservice.Service
}

// New creates a new MCP server with all wssync tools registered.
func New(svc *syncservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"wssync",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_workspaces",
		mcp.WithDescription("List the workspaces found under the source root and whether each is mirrored."),
	), s.listWorkspaces)

	s.mcp.AddTool(mcp.NewTool("get_catalogue",
		mcp.WithDescription("Return the catalogue JSON currently published in the target tree."),
	), s.getCatalogue)

	s.mcp.AddTool(mcp.NewTool("get_entry",
		mcp.WithDescription("Return a single catalogue entry by its numeric id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Catalogue entry id (1-based)")),
	), s.getEntry)

	s.mcp.AddTool(mcp.NewTool("run_sync",
		mcp.WithDescription("Copy new or updated workspace files into the target tree and "+
			"rebuild the catalogue if anything was copied."),
	), s.runSync)

	// Resource: catalogue format.
	s.mcp.AddResource(
		mcp.NewResource(catalogueFormatURI, "Catalogue Format",
			mcp.WithResourceDescription("How workspace metadata files map onto catalogue entries."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCatalogueFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listWorkspaces(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.Workspaces(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func (s *Server) getCatalogue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := s.svc.Catalogue(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(entries)
}

func (s *Server) getEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid id: %s", raw)), nil
	}
	e, err := s.svc.Entry(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %d", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(e)
}

func (s *Server) runSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Sync(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("workspaces: %d, copied: %d, catalogue rebuilt: %t",
		len(res.Workspaces), len(res.Copied), res.Rebuilt)), nil
}

func (s *Server) readCatalogueFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      catalogueFormatURI,
			MIMEType: "text/markdown",
			Text:     CatalogueFormat,
		},
	}, nil
}
