// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes orgsync tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/history"
	"github.com/starford/orgsync/internal/issue"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/syncer"
)

// FormatURI is the resource URI of the outline format contract.
const FormatURI = "orgsync://format"

// Service is the part of the syncer the tools call.
type Service interface {
	Sync(ctx context.Context, opts syncer.Options) (*syncer.Result, error)
	Document(path string) (*syncer.DocumentDetail, error)
	Documents() ([]models.DocumentInfo, error)
	Inspect(path string, headings bool) (*models.DocumentSummary, error)
	Runs(limit int) ([]history.Run, error)
}

// Server wraps the MCP server with orgsync tools.
type Server struct {
	mcp      *server.MCPServer
	svc      Service
	defaults syncer.Options
}

// New creates a new MCP server with all orgsync tools registered. defaults
// fill in whatever a tool call leaves out.
func New(svc Service, defaults syncer.Options) *Server {
	s := &Server{svc: svc, defaults: defaults}

	s.mcp = server.NewMCPServer(
		"orgsync",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("sync_issues",
		mcp.WithDescription("Fetch the repository's issues and merge them into the Org outline. "+
			"Returns the merge report. Set dry_run to preview without writing."),
		mcp.WithString("repo", mcp.Description("Repository as owner/name (defaults to the configured repo)")),
		mcp.WithString("state", mcp.Description("Issue state filter"), mcp.Enum("all", "open", "closed")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of issues (0 for the provider default)")),
		mcp.WithBoolean("comments", mcp.Description("Include issue comments as child headings")),
		mcp.WithBoolean("dry_run", mcp.Description("Merge without writing the file")),
	), s.syncIssues)

	s.mcp.AddTool(mcp.NewTool("inspect_document",
		mcp.WithDescription("Summarize the outline: metadata, heading counts and, optionally, every heading."),
		mcp.WithBoolean("headings", mcp.Description("List every heading with its level, state, tags and issue number")),
		mcp.WithString("path", mcp.Description("Outline relative to the document root (defaults to the synced one)")),
	), s.inspectDocument)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full text of the Org outline."),
		mcp.WithString("path", mcp.Description("Outline relative to the document root (defaults to the synced one)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the .org files under the document root with size, checksum and modification time."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent sync runs with their reports, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.listRuns)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the outline format contract. "+
			"Read it before editing the document by hand so the next sync keeps your changes."),
	), s.getFormatContract)

	// Resource: outline format contract.
	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Outline Format Contract",
			mcp.WithResourceDescription("Structure of the Org outline maintained by orgsync."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func (s *Server) syncIssues(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := s.defaults
	opts.Repo = req.GetString("repo", opts.Repo)
	opts.State = issue.StateFilter(req.GetString("state", string(opts.State)))
	opts.Limit = req.GetInt("limit", opts.Limit)
	opts.Comments = req.GetBool("comments", opts.Comments)
	opts.DryRun = req.GetBool("dry_run", false)
	if opts.Repo == "" {
		return mcp.NewToolResultError("repo is required"), nil
	}

	res, err := s.svc.Sync(ctx, opts)
	if err != nil {
		msg := err.Error()
		if hint := apperr.HintFor(err); hint != "" {
			msg += "\nhint: " + hint
		}
		return mcp.NewToolResultError(msg), nil
	}
	return jsonResult(res)
}

func (s *Server) inspectDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", s.defaults.Document)
	sum, err := s.svc.Inspect(path, req.GetBool("headings", false))
	if err != nil {
		return documentError(path, err), nil
	}
	return jsonResult(sum)
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", s.defaults.Document)
	doc, err := s.svc.Document(path)
	if err != nil {
		return documentError(path, err), nil
	}
	return mcp.NewToolResultText(doc.Content), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.svc.Documents()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("no outlines found (run sync_issues first)"), nil
	}
	return jsonResult(docs)
}

func (s *Server) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := s.svc.Runs(req.GetInt("limit", 0))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError("sync history is disabled"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("no runs recorded"), nil
	}
	return jsonResult(runs)
}

func (s *Server) getFormatContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     FormatContract,
		},
	}, nil
}

func documentError(path string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s (run sync_issues first)", path))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
