// Package syncer runs a sync: fetch issues, merge them into the outline and
// replace the file when something changed.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/history"
	"github.com/starford/orgsync/internal/issue"
	"github.com/starford/orgsync/internal/merge"
	"github.com/starford/orgsync/internal/org"
	"github.com/starford/orgsync/internal/provider"
	"github.com/starford/orgsync/internal/storage"
)

// Options describes one sync.
type Options struct {
	Repo     string
	Document string // path relative to the storage root
	State    issue.StateFilter
	Limit    int
	Comments bool
	DryRun   bool
	Backup   bool
	LinkTag  bool
}

// DefaultOptions returns the options of a plain "sync REPO" call.
func DefaultOptions(repo, document string) Options {
	return Options{
		Repo:     repo,
		Document: document,
		State:    issue.FilterAll,
		Comments: true,
		Backup:   true,
		LinkTag:  true,
	}
}

// Result is the outcome of a sync.
type Result struct {
	RunID    string        `json:"run_id,omitempty"`
	Repo     string        `json:"repo"`
	Document string        `json:"document"`
	Report   *merge.Report `json:"report"`
	DryRun   bool          `json:"dry_run"`
	Created  bool          `json:"created"`
	Written  bool          `json:"written"`
	Backup   string        `json:"backup,omitempty"`
	// Output is the rendered document. It is set even for dry runs.
	Output string `json:"-"`
}

// Syncer coordinates provider, storage and history.
type Syncer struct {
	provider provider.Provider
	store    storage.Provider
	history  history.Store
	logger   *slog.Logger
	now      func() time.Time
	notify   func(*Result)

	mu sync.Mutex
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithHistory records every run in h.
func WithHistory(h history.Store) Option {
	return func(s *Syncer) {
		s.history = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) {
		s.logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		s.now = now
	}
}

// WithNotify calls fn after every successful sync.
func WithNotify(fn func(*Result)) Option {
	return func(s *Syncer) {
		s.notify = fn
	}
}

// New creates a Syncer.
func New(p provider.Provider, store storage.Provider, opts ...Option) *Syncer {
	s := &Syncer{
		provider: p,
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the issue provider.
func (s *Syncer) Provider() provider.Provider { return s.provider }

// Sync runs one sync. Concurrent calls are serialized.
func (s *Syncer) Sync(ctx context.Context, opts Options) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	res, err := s.sync(ctx, opts)
	if err != nil {
		s.logger.Error("sync: failed", slog.String("repo", opts.Repo), slog.String("error", err.Error()))
		s.record(opts, started, nil, err)
		return nil, err
	}
	res.RunID = s.record(opts, started, res, nil)
	if s.notify != nil {
		s.notify(res)
	}
	return res, nil
}

func (s *Syncer) sync(ctx context.Context, opts Options) (*Result, error) {
	repo, err := issue.ParseRepo(opts.Repo)
	if err != nil {
		return nil, err
	}
	if opts.State == "" {
		opts.State = issue.FilterAll
	}
	if err := opts.State.Validate(); err != nil {
		return nil, fmt.Errorf("sync: state filter: %w", err)
	}

	s.logger.Info("sync: starting",
		slog.String("repo", repo.String()),
		slog.String("document", opts.Document),
		slog.String("provider", string(s.provider.Kind())),
		slog.String("state", string(opts.State)),
		slog.Int("limit", opts.Limit),
		slog.Bool("comments", opts.Comments))

	issues, err := s.provider.FetchIssues(ctx, repo, provider.FetchOptions{
		State:           opts.State,
		Limit:           opts.Limit,
		IncludeComments: opts.Comments,
	})
	if err != nil {
		return nil, err
	}

	data, err := s.store.Read(opts.Document)
	missing := errors.Is(err, apperr.ErrNotFound)
	if err != nil && !missing {
		return nil, fmt.Errorf("%w: %w", apperr.ErrDocumentRead, err)
	}
	if missing {
		s.logger.Info("sync: no existing document, creating", slog.String("document", opts.Document))
	}
	doc := org.Parse(string(data))

	engine := merge.New(
		merge.WithLinkTag(opts.LinkTag),
		merge.WithComments(opts.Comments),
		merge.WithLogger(s.logger),
	)
	forest, report := engine.Merge(issues, doc.Headings)
	s.logger.Info("sync: merged", slog.String("summary", report.Summary()))

	fresh := missing || len(data) == 0
	header := doc.Preamble
	if fresh {
		header = Header(repo, s.now())
	} else if report.HasChanges() {
		header, _ = org.SetDirective(header, "SYNC_TIME", syncTime(s.now()))
	}

	res := &Result{
		Repo:     repo.String(),
		Document: opts.Document,
		Report:   report,
		DryRun:   opts.DryRun,
		Created:  missing,
		Output:   org.RenderForest(forest, header),
	}
	if opts.DryRun {
		s.logger.Info("sync: dry run, not writing")
		return res, nil
	}
	if !report.HasChanges() && !missing {
		s.logger.Info("sync: no changes to write")
		return res, nil
	}

	if opts.Backup && !missing {
		bak, err := s.store.Backup(opts.Document)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrBackup, err)
		}
		res.Backup = bak
		s.logger.Info("sync: backup created", slog.String("path", bak))
	}
	if err := s.store.Write(opts.Document, []byte(res.Output)); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrDocumentWrite, err)
	}
	res.Written = true
	s.logger.Info("sync: document written",
		slog.String("document", opts.Document),
		slog.Int("headings", len(forest)))
	return res, nil
}

// record stores the run when history is enabled. Failures are logged only.
func (s *Syncer) record(opts Options, started time.Time, res *Result, syncErr error) string {
	if s.history == nil {
		return ""
	}
	run := &history.Run{
		Repo:       opts.Repo,
		Provider:   string(s.provider.Kind()),
		Document:   opts.Document,
		StartedAt:  started,
		FinishedAt: s.now(),
		DryRun:     opts.DryRun,
	}
	if res != nil {
		run.Written = res.Written
		run.Backup = res.Backup
		run.Report = *res.Report
	}
	if syncErr != nil {
		run.Error = syncErr.Error()
	}
	id, err := s.history.RecordRun(run)
	if err != nil {
		s.logger.Warn("sync: record history failed", slog.String("error", err.Error()))
		return ""
	}
	return id
}

// Header returns the directive lines written at the top of a new document.
// The trailing empty line separates it from the first heading.
func Header(repo issue.Repo, now time.Time) []string {
	return []string{
		org.Directive("TITLE", "GitHub Issues: "+repo.String()),
		org.Directive("DESCRIPTION", "GitHub issues synced from "+repo.String()),
		org.Directive("STARTUP", "overview"),
		org.Directive("SYNC_REPO", repo.String()),
		org.Directive("SYNC_TIME", syncTime(now)),
		"",
	}
}

func syncTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// CheckConnection verifies provider access.
func (s *Syncer) CheckConnection(ctx context.Context) error {
	return s.provider.CheckConnection(ctx)
}

// Runs returns recent sync runs. It fails with apperr.ErrNotFound when
// history is disabled.
func (s *Syncer) Runs(limit int) ([]history.Run, error) {
	if s.history == nil {
		return nil, fmt.Errorf("sync: history disabled: %w", apperr.ErrNotFound)
	}
	return s.history.ListRuns(limit)
}

// Run returns one sync run with its entries.
func (s *Syncer) Run(id string) (*history.Run, error) {
	if s.history == nil {
		return nil, fmt.Errorf("sync: history disabled: %w", apperr.ErrNotFound)
	}
	return s.history.GetRun(id)
}
