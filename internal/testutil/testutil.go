// Package testutil provides shared test helpers for document stores,
// history databases and issue providers.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/history"
	"github.com/starford/orgsync/internal/issue"
	"github.com/starford/orgsync/internal/provider"
	"github.com/starford/orgsync/internal/storage"
)

// TestHistory creates a temporary history database that is automatically closed.
func TestHistory(t *testing.T) *history.DB {
	t.Helper()
	db, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary document directory with a storage provider.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Quiet returns a logger that discards everything.
func Quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Issue returns an open issue with fixed timestamps.
func Issue(number int, title string) issue.Issue {
	return issue.Issue{
		Number:    number,
		Title:     title,
		State:     issue.StateOpen,
		CreatedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC),
		Author:    "alice",
	}
}

// Provider is an in-memory issue provider. It records the options of the
// last FetchIssues call.
type Provider struct {
	mu     sync.Mutex
	Issues []issue.Issue
	Err    error
	Last   provider.FetchOptions
	Calls  int
}

var _ provider.Provider = (*Provider)(nil)

// Kind reports github.
func (p *Provider) Kind() provider.Kind { return provider.KindGitHub }

// FetchIssues returns Issues or Err.
func (p *Provider) FetchIssues(_ context.Context, _ issue.Repo, opts provider.FetchOptions) ([]issue.Issue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	p.Last = opts
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Issues, nil
}

// FetchIssue returns the issue with number.
func (p *Provider) FetchIssue(_ context.Context, _ issue.Repo, number int, _ bool) (*issue.Issue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	for i := range p.Issues {
		if p.Issues[i].Number == number {
			iss := p.Issues[i]
			return &iss, nil
		}
	}
	return nil, apperr.ErrNotFound
}

// CheckConnection returns Err.
func (p *Provider) CheckConnection(context.Context) error { return p.Err }

// Close is a no-op.
func (p *Provider) Close() error { return nil }
