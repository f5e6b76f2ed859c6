package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/history"
	"github.com/starford/orgsync/internal/issue"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/syncer"
	"github.com/starford/orgsync/internal/testutil"
)

func testServer(t *testing.T) (*Server, *testutil.Provider) {
	t.Helper()

	_, store := testutil.TestStore(t)
	iss := testutil.Issue(3, "Add dark mode")
	iss.Labels = []string{"feature"}
	stub := &testutil.Provider{Issues: []issue.Issue{iss}}
	svc := syncer.New(stub, store,
		syncer.WithHistory(testutil.TestHistory(t)),
		syncer.WithLogger(testutil.Quiet()),
	)
	return New(svc, syncer.DefaultOptions("o/r", "issues.org")), stub
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// called directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "sync_issues":
		result, err = srv.syncIssues(ctx, req)
	case "inspect_document":
		result, err = srv.inspectDocument(ctx, req)
	case "read_document":
		result, err = srv.readDocument(ctx, req)
	case "list_documents":
		result, err = srv.listDocuments(ctx, req)
	case "list_runs":
		result, err = srv.listRuns(ctx, req)
	case "get_format_contract":
		result, err = srv.getFormatContract(ctx, req)
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

func TestSyncAndReadDocument(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "sync_issues", map[string]any{})
	if r.IsError {
		t.Fatalf("sync failed: %s", resultText(r))
	}
	var res syncer.Result
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Written || res.Report.Added != 1 {
		t.Errorf("result = %+v", res)
	}

	r = callTool(t, srv, "read_document", map[string]any{})
	if !strings.Contains(resultText(r), "* TODO Add dark mode :LINK:feature:") {
		t.Errorf("document = %q", resultText(r))
	}
}

func TestSyncDryRun(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "sync_issues", map[string]any{"dry_run": true, "state": "open"})
	if r.IsError {
		t.Fatalf("sync failed: %s", resultText(r))
	}
	r = callTool(t, srv, "read_document", map[string]any{})
	if !r.IsError {
		t.Error("dry run should not create the document")
	}
}

func TestSyncSourceErrorCarriesHint(t *testing.T) {
	srv, stub := testServer(t)
	stub.Err = &apperr.SourceError{Provider: "gitea", Kind: apperr.ErrAuth, Status: 401, Hint: "Check the Gitea token"}

	r := callTool(t, srv, "sync_issues", map[string]any{})
	if !r.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(resultText(r), "hint: Check the Gitea token") {
		t.Errorf("text = %q", resultText(r))
	}
}

func TestInspectDocument(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "inspect_document", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing document")
	}

	callTool(t, srv, "sync_issues", map[string]any{})
	r = callTool(t, srv, "inspect_document", map[string]any{"headings": true})
	if r.IsError {
		t.Fatalf("inspect failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, `"linked": 1`) || !strings.Contains(text, `"number": 3`) {
		t.Errorf("summary = %s", text)
	}
}

func TestListAndReadDocuments(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_documents", map[string]any{})
	if !strings.HasPrefix(resultText(r), "no outlines found") {
		t.Errorf("empty = %q", resultText(r))
	}

	callTool(t, srv, "sync_issues", map[string]any{})
	r = callTool(t, srv, "list_documents", map[string]any{})
	var docs []models.DocumentInfo
	if err := json.Unmarshal([]byte(resultText(r)), &docs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(docs) != 1 || docs[0].Path != "issues.org" || docs[0].Checksum == "" {
		t.Errorf("documents = %+v", docs)
	}

	r = callTool(t, srv, "read_document", map[string]any{"path": "missing.org"})
	if !r.IsError || !strings.Contains(resultText(r), "missing.org") {
		t.Errorf("missing = %q", resultText(r))
	}
	r = callTool(t, srv, "read_document", map[string]any{"path": "../escape.org"})
	if !r.IsError {
		t.Error("path outside the root should fail")
	}
}

func TestListRuns(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_runs", map[string]any{})
	if resultText(r) != "no runs recorded" {
		t.Errorf("empty runs = %q", resultText(r))
	}

	callTool(t, srv, "sync_issues", map[string]any{})
	r = callTool(t, srv, "list_runs", map[string]any{"limit": 5})
	var runs []history.Run
	if err := json.Unmarshal([]byte(resultText(r)), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 || runs[0].Repo != "o/r" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestFormatContract(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "get_format_contract", map[string]any{})
	if !strings.Contains(resultText(r), ":GITHUB_NUMBER:") {
		t.Error("contract should name the match key")
	}

	contents, err := srv.readFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d", len(contents))
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != FormatURI {
		t.Errorf("resource = %+v", contents[0])
	}
}
