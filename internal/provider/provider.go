// Package provider fetches issues from a tracker. GitHub is reached through
// the gh CLI, Gitea through its REST API.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/starford/orgsync/internal/issue"
)

// Kind names a provider implementation.
type Kind string

const (
	KindGitHub Kind = "github"
	KindGitea  Kind = "gitea"
)

// DefaultTimeout bounds one CLI invocation or HTTP request.
const DefaultTimeout = 60 * time.Second

// FetchOptions narrows a FetchIssues call. A zero Limit means no limit.
type FetchOptions struct {
	State           issue.StateFilter
	Limit           int
	IncludeComments bool
}

// Provider is an issue source. Errors caused by the source are returned as
// *apperr.SourceError.
type Provider interface {
	Kind() Kind
	FetchIssues(ctx context.Context, repo issue.Repo, opts FetchOptions) ([]issue.Issue, error)
	FetchIssue(ctx context.Context, repo issue.Repo, number int, includeComments bool) (*issue.Issue, error)
	CheckConnection(ctx context.Context) error
	Close() error
}

// Config selects and configures a provider.
type Config struct {
	Kind       Kind
	Timeout    time.Duration
	GiteaURL   string
	GiteaToken string
	// CacheSize is the number of comment lists the Gitea provider keeps.
	CacheSize int
	Logger    *slog.Logger
}

// New returns the provider named by cfg.Kind. An empty kind means GitHub.
func New(cfg Config) (Provider, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	switch cfg.Kind {
	case "", KindGitHub:
		return NewGitHub(cfg.Timeout, cfg.Logger), nil
	case KindGitea:
		return NewGitea(cfg.GiteaURL, cfg.GiteaToken, cfg.Timeout, cfg.CacheSize, cfg.Logger)
	default:
		return nil, fmt.Errorf("provider: unknown kind %q", cfg.Kind)
	}
}

func stateOrAll(f issue.StateFilter) issue.StateFilter {
	if f == "" {
		return issue.FilterAll
	}
	return f
}

func parseState(s string) issue.State {
	st, err := issue.ParseState(s)
	if err != nil {
		return issue.StateOpen
	}
	return st
}

func sortComments(cs []issue.Comment) {
	slices.SortStableFunc(cs, func(a, b issue.Comment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
