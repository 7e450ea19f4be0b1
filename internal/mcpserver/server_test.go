package mcpserver

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/wssync/internal/runner"
	"github.com/starford/wssync/internal/syncservice"
	"github.com/starford/wssync/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	src := t.TempDir()
	testutil.WriteWorkspace(t, filepath.Join(src, "ws1"), testutil.Meta{Title: "Harbour", Author: "Ana"})

	_, store := testutil.TestTarget(t)
	r := runner.New(store, runner.Settings{SourceRoot: src}, runner.WithLogger(testutil.Logger()))
	return New(syncservice.NewService(r, nil, testutil.Logger()), "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_workspaces":
		result, err = srv.listWorkspaces(ctx, req)
	case "get_catalogue":
		result, err = srv.getCatalogue(ctx, req)
	case "get_entry":
		result, err = srv.getEntry(ctx, req)
	case "run_sync":
		result, err = srv.runSync(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestRunSyncThenCatalogue(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "run_sync", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("run_sync error: %s", resultText(r))
	}
	if text := resultText(r); text != "workspaces: 1, copied: 5, catalogue rebuilt: true" {
		t.Errorf("run_sync = %q", text)
	}

	r = callTool(t, srv, "get_catalogue", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, `"title": "Harbour"`) {
		t.Errorf("catalogue = %q", text)
	}
}

func TestGetEntry(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "run_sync", map[string]interface{}{})

	r := callTool(t, srv, "get_entry", map[string]interface{}{"id": "1"})
	if r.IsError || !strings.Contains(resultText(r), `"author": "Ana"`) {
		t.Errorf("get_entry = %q", resultText(r))
	}

	r = callTool(t, srv, "get_entry", map[string]interface{}{"id": "9"})
	if !r.IsError {
		t.Error("expected error for missing entry")
	}

	r = callTool(t, srv, "get_entry", map[string]interface{}{"id": "x"})
	if !r.IsError {
		t.Error("expected error for invalid id")
	}
}

func TestListWorkspaces(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_workspaces", map[string]interface{}{})
	if text := resultText(r); !strings.Contains(text, `"name": "ws1"`) {
		t.Errorf("list_workspaces = %q", text)
	}
}
