package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/issue"
)

const (
	ghMaxRetries   = 3
	ghRetryDelay   = 2 * time.Second
	ghDefaultLimit = 1000
	ghAuthTimeout  = 10 * time.Second
)

var ghFields = []string{
	"number", "title", "body", "state", "stateReason",
	"createdAt", "updatedAt", "closedAt",
	"author", "assignees", "labels", "milestone", "url",
}

// Runner executes an external command and returns its output streams.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// GitHub fetches issues by running the gh CLI.
type GitHub struct {
	run        Runner
	lookPath   func(string) (string, error)
	timeout    time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

// GitHubOption configures a GitHub provider.
type GitHubOption func(*GitHub)

// WithRunner replaces the command runner.
func WithRunner(r Runner) GitHubOption {
	return func(g *GitHub) {
		g.run = r
		g.lookPath = func(string) (string, error) { return "gh", nil }
	}
}

// WithRetryDelay sets the base delay between retries after a timeout.
func WithRetryDelay(d time.Duration) GitHubOption {
	return func(g *GitHub) {
		g.retryDelay = d
	}
}

// NewGitHub returns a gh-backed provider.
func NewGitHub(timeout time.Duration, logger *slog.Logger, opts ...GitHubOption) *GitHub {
	g := &GitHub{
		run:        execRunner,
		lookPath:   exec.LookPath,
		timeout:    timeout,
		retryDelay: ghRetryDelay,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GitHub) Kind() Kind { return KindGitHub }

func (g *GitHub) Close() error { return nil }

// CheckConnection verifies that gh is installed and logged in.
func (g *GitHub) CheckConnection(ctx context.Context) error {
	if _, err := g.lookPath("gh"); err != nil {
		return ghNotFound(err)
	}
	ctx, cancel := context.WithTimeout(ctx, ghAuthTimeout)
	defer cancel()
	_, stderr, err := g.run(ctx, "gh", "auth", "status")
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return ghNotFound(err)
	}
	msg := strings.TrimSpace(string(stderr))
	if ctx.Err() != nil {
		msg = "auth check timed out"
	}
	return &apperr.SourceError{
		Provider: string(KindGitHub),
		Kind:     apperr.ErrAuth,
		Message:  msg,
		Hint:     "Run 'gh auth login' to authenticate with GitHub",
		Err:      err,
	}
}

// FetchIssues runs gh issue list and returns the issues sorted by number.
func (g *GitHub) FetchIssues(ctx context.Context, repo issue.Repo, opts FetchOptions) ([]issue.Issue, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = ghDefaultLimit
	}
	args := []string{
		"issue", "list",
		"-R", repo.String(),
		"--state", string(stateOrAll(opts.State)),
		"--json", ghFieldList(opts.IncludeComments),
		"--limit", strconv.Itoa(limit),
	}
	g.logger.Info("github: fetching issues",
		slog.String("repo", repo.String()),
		slog.String("state", string(stateOrAll(opts.State))),
		slog.Int("limit", limit))

	out, err := g.gh(ctx, args...)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, nil
	}
	var raw []ghIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, ghInvalidJSON(err)
	}
	issues := make([]issue.Issue, 0, len(raw))
	for _, r := range raw {
		issues = append(issues, r.toIssue())
	}
	issue.SortByNumber(issues)
	g.logger.Info("github: fetched issues", slog.Int("count", len(issues)))
	return issues, nil
}

// FetchIssue runs gh issue view for one issue.
func (g *GitHub) FetchIssue(ctx context.Context, repo issue.Repo, number int, includeComments bool) (*issue.Issue, error) {
	out, err := g.gh(ctx,
		"issue", "view", strconv.Itoa(number),
		"-R", repo.String(),
		"--json", ghFieldList(includeComments))
	if err != nil {
		return nil, err
	}
	var raw ghIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, ghInvalidJSON(err)
	}
	iss := raw.toIssue()
	return &iss, nil
}

func ghFieldList(comments bool) string {
	fields := ghFields
	if comments {
		fields = append(fields[:len(fields):len(fields)], "comments")
	}
	return strings.Join(fields, ",")
}

// gh runs one gh command with a per-attempt timeout. Timeouts are retried
// with a linearly growing delay; other failures are classified from stderr.
func (g *GitHub) gh(ctx context.Context, args ...string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		g.logger.Debug("github: running gh", slog.String("args", strings.Join(args, " ")))
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		stdout, stderr, err := g.run(cctx, "gh", args...)
		timedOut := ctx.Err() == nil &&
			(errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded))
		cancel()

		switch {
		case err == nil:
			return stdout, nil
		case errors.Is(err, exec.ErrNotFound):
			return nil, ghNotFound(err)
		case timedOut:
			if attempt >= ghMaxRetries {
				return nil, &apperr.SourceError{
					Provider: string(KindGitHub),
					Kind:     apperr.ErrTimeout,
					Message:  fmt.Sprintf("gh command timed out after %s", g.timeout),
					Hint:     "Try reducing the number of issues with --limit or check your network",
				}
			}
			g.logger.Warn("github: command timed out, retrying",
				slog.Int("attempt", attempt+1), slog.Int("max", ghMaxRetries))
			if err := sleepCtx(ctx, g.retryDelay*time.Duration(attempt+1)); err != nil {
				return nil, err
			}
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, classifyGH(string(stderr), err)
		}
	}
}

// classifyGH maps gh's stderr to a source error.
func classifyGH(stderr string, cause error) error {
	msg := strings.TrimSpace(stderr)
	lower := strings.ToLower(msg)
	e := &apperr.SourceError{Provider: string(KindGitHub), Message: msg, Err: cause}
	switch {
	case strings.Contains(lower, "not logged in") || strings.Contains(lower, "authentication"):
		e.Kind = apperr.ErrAuth
		e.Hint = "Run 'gh auth login' to authenticate with GitHub"
	case strings.Contains(lower, "rate limit"):
		e.Kind = apperr.ErrRateLimited
		e.Hint = "Wait a few minutes and try again"
	case strings.Contains(lower, "could not resolve") || strings.Contains(lower, "network"):
		e.Kind = apperr.ErrNetwork
		e.Hint = "Check your internet connection and try again"
	case strings.Contains(lower, "not found") || strings.Contains(lower, "404"):
		e.Kind = apperr.ErrNotFound
		e.Status = 404
		e.Hint = "Check that the repository exists and you have access to it"
	case strings.Contains(lower, "403"):
		e.Kind = apperr.ErrSourceAPI
		e.Status = 403
		e.Hint = "Check that the repository exists and you have access to it"
	default:
		e.Kind = apperr.ErrSourceAPI
	}
	return e
}

func ghNotFound(err error) error {
	return &apperr.SourceError{
		Provider: string(KindGitHub),
		Kind:     apperr.ErrCLINotFound,
		Message:  "gh not found",
		Hint:     "Install it from https://cli.github.com/ and ensure it's in your PATH",
		Err:      err,
	}
}

func ghInvalidJSON(err error) error {
	return &apperr.SourceError{
		Provider: string(KindGitHub),
		Kind:     apperr.ErrSourceAPI,
		Message:  "invalid JSON response",
		Err:      err,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type ghUser struct {
	Login string `json:"login"`
}

type ghComment struct {
	ID        string     `json:"id"`
	Author    *ghUser    `json:"author"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
	URL       string     `json:"url"`
}

type ghIssue struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	State       string     `json:"state"`
	StateReason string     `json:"stateReason"`
	CreatedAt   *time.Time `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
	ClosedAt    *time.Time `json:"closedAt"`
	Author      *ghUser    `json:"author"`
	Assignees   []ghUser   `json:"assignees"`
	Labels      []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Milestone *struct {
		Title string `json:"title"`
	} `json:"milestone"`
	URL      string      `json:"url"`
	Comments []ghComment `json:"comments"`
}

func login(u *ghUser) string {
	if u == nil || u.Login == "" {
		return "unknown"
	}
	return u.Login
}

func (r ghIssue) toIssue() issue.Issue {
	iss := issue.Issue{
		Number:      r.Number,
		Title:       r.Title,
		Body:        r.Body,
		State:       parseState(r.State),
		StateReason: r.StateReason,
		CreatedAt:   derefTime(r.CreatedAt),
		UpdatedAt:   derefTime(r.UpdatedAt),
		ClosedAt:    derefTime(r.ClosedAt),
		Author:      login(r.Author),
		URL:         r.URL,
	}
	for _, a := range r.Assignees {
		iss.Assignees = append(iss.Assignees, a.Login)
	}
	for _, l := range r.Labels {
		iss.Labels = append(iss.Labels, l.Name)
	}
	if r.Milestone != nil {
		iss.Milestone = r.Milestone.Title
	}
	for _, c := range r.Comments {
		iss.Comments = append(iss.Comments, issue.Comment{
			ID:        c.ID,
			Author:    login(c.Author),
			Body:      c.Body,
			CreatedAt: c.CreatedAt.UTC(),
			UpdatedAt: derefTime(c.UpdatedAt),
			URL:       c.URL,
		})
	}
	sortComments(iss.Comments)
	return iss
}
