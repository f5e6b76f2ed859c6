package api

import (
	"github.com/starford/orgsync/internal/history"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/syncer"
)

// SyncRequest is the request body for POST /sync. Omitted fields fall back
// to the server's configured defaults.
type SyncRequest struct {
	Repo     string `json:"repo,omitempty" example:"octocat/Hello-World"`
	State    string `json:"state,omitempty" example:"open"`
	Limit    *int   `json:"limit,omitempty" example:"100"`
	Comments *bool  `json:"comments,omitempty"`
	DryRun   bool   `json:"dry_run,omitempty"`
	Backup   *bool  `json:"backup,omitempty"`
}

// SyncResponse is the result of a sync (aliased from the domain layer).
type SyncResponse = syncer.Result

// DocumentDetail is the raw outline response.
type DocumentDetail = syncer.DocumentDetail

// DocumentSummary is the structural overview of the outline.
type DocumentSummary = models.DocumentSummary

// DocumentListResponse lists the outline files under the document root.
type DocumentListResponse struct {
	Documents []models.DocumentInfo `json:"documents" validate:"required"`
}

// RunListResponse wraps recent sync runs.
type RunListResponse struct {
	Runs []history.Run `json:"runs" validate:"required"`
}

// errorWithHint is returned for failures of the issue source.
type errorWithHint struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}
