package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/issue"
)

const (
	giteaPageSize  = 50
	giteaCacheSize = 512
)

// Gitea fetches issues from a Gitea instance's REST API.
type Gitea struct {
	baseURL  string
	token    string
	client   *http.Client
	pageSize int
	comments *lru.Cache[string, []issue.Comment]
	logger   *slog.Logger
}

// NewGitea returns a provider for the Gitea instance at baseURL.
func NewGitea(baseURL, token string, timeout time.Duration, cacheSize int, logger *slog.Logger) (*Gitea, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("provider: gitea url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("provider: gitea url: %w", err)
	}
	if cacheSize <= 0 {
		cacheSize = giteaCacheSize
	}
	cache, err := lru.New[string, []issue.Comment](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("provider: comment cache: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gitea{
		baseURL:  baseURL + "/api/v1",
		token:    token,
		client:   &http.Client{Timeout: timeout},
		pageSize: giteaPageSize,
		comments: cache,
		logger:   logger,
	}, nil
}

func (g *Gitea) Kind() Kind { return KindGitea }

// Close drops idle connections and the comment cache.
func (g *Gitea) Close() error {
	g.client.CloseIdleConnections()
	g.comments.Purge()
	return nil
}

// CheckConnection checks the token against /user. Instances that hide
// /user fall back to /version.
func (g *Gitea) CheckConnection(ctx context.Context) error {
	var user giteaUser
	err := g.get(ctx, "/user", nil, &user)
	if errors.Is(err, apperr.ErrNotFound) {
		var v struct {
			Version string `json:"version"`
		}
		return g.get(ctx, "/version", nil, &v)
	}
	return err
}

// FetchIssues pages through the repository's issues (pull requests
// excluded) and returns them sorted by number.
func (g *Gitea) FetchIssues(ctx context.Context, repo issue.Repo, opts FetchOptions) ([]issue.Issue, error) {
	pageSize := g.pageSize
	if opts.Limit > 0 && opts.Limit < pageSize {
		pageSize = opts.Limit
	}
	state := stateOrAll(opts.State)
	g.logger.Info("gitea: fetching issues",
		slog.String("repo", repo.String()),
		slog.String("state", string(state)),
		slog.Int("limit", opts.Limit))

	var issues []issue.Issue
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("state", string(state))
		q.Set("type", "issues")
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(pageSize))

		var raw []giteaIssue
		if err := g.get(ctx, repoPath(repo, "issues"), q, &raw); err != nil {
			return nil, err
		}
		if len(raw) == 0 {
			break
		}
		for _, r := range raw {
			iss := r.toIssue()
			if opts.IncludeComments {
				iss.Comments = g.fetchComments(ctx, repo, r.Number, r.UpdatedAt)
			}
			issues = append(issues, iss)
		}
		if opts.Limit > 0 && len(issues) >= opts.Limit {
			break
		}
		if len(raw) < pageSize {
			break
		}
	}
	issue.SortByNumber(issues)
	if opts.Limit > 0 && len(issues) > opts.Limit {
		issues = issues[:opts.Limit]
	}
	g.logger.Info("gitea: fetched issues", slog.Int("count", len(issues)))
	return issues, nil
}

// FetchIssue returns one issue.
func (g *Gitea) FetchIssue(ctx context.Context, repo issue.Repo, number int, includeComments bool) (*issue.Issue, error) {
	var raw giteaIssue
	if err := g.get(ctx, repoPath(repo, "issues", strconv.Itoa(number)), nil, &raw); err != nil {
		return nil, err
	}
	iss := raw.toIssue()
	if includeComments {
		iss.Comments = g.fetchComments(ctx, repo, number, raw.UpdatedAt)
	}
	return &iss, nil
}

// fetchComments returns the comments of one issue. Failures other than
// transport-level ones degrade to no comments.
func (g *Gitea) fetchComments(ctx context.Context, repo issue.Repo, number int, updated *time.Time) []issue.Comment {
	key := fmt.Sprintf("%s#%d@%s", repo, number, derefTime(updated).Format(time.RFC3339))
	if cs, ok := g.comments.Get(key); ok {
		return cs
	}
	var raw []giteaComment
	if err := g.get(ctx, repoPath(repo, "issues", strconv.Itoa(number), "comments"), nil, &raw); err != nil {
		g.logger.Warn("gitea: fetch comments failed",
			slog.Int("number", number), slog.String("error", err.Error()))
		return nil
	}
	cs := make([]issue.Comment, 0, len(raw))
	for _, c := range raw {
		cs = append(cs, c.toComment())
	}
	sortComments(cs)
	g.comments.Add(key, cs)
	return cs
}

func repoPath(repo issue.Repo, parts ...string) string {
	segs := []string{"repos", url.PathEscape(repo.Owner), url.PathEscape(repo.Name)}
	segs = append(segs, parts...)
	return "/" + strings.Join(segs, "/")
}

func (g *Gitea) get(ctx context.Context, path string, q url.Values, out any) error {
	u := g.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("provider: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "token "+g.token)
	}

	g.logger.Debug("gitea: request", slog.String("path", path))
	resp, err := g.client.Do(req)
	if err != nil {
		return g.transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return g.transportError(ctx, err)
	}
	if err := statusError(resp.StatusCode, path, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &apperr.SourceError{
			Provider: string(KindGitea),
			Kind:     apperr.ErrSourceAPI,
			Message:  "invalid JSON response",
			Err:      err,
		}
	}
	return nil
}

func (g *Gitea) transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &apperr.SourceError{
			Provider: string(KindGitea),
			Kind:     apperr.ErrTimeout,
			Message:  fmt.Sprintf("request timed out after %s", g.client.Timeout),
			Hint:     "Check that the Gitea server is reachable",
			Err:      err,
		}
	}
	return &apperr.SourceError{
		Provider: string(KindGitea),
		Kind:     apperr.ErrNetwork,
		Message:  "failed to connect to " + g.baseURL,
		Hint:     "Check your internet connection and the Gitea URL",
		Err:      err,
	}
}

// statusError maps an HTTP status to a source error, or nil below 400.
func statusError(status int, path string, body []byte) error {
	if status < 400 {
		return nil
	}
	e := &apperr.SourceError{Provider: string(KindGitea), Status: status}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = apperr.ErrAuth
		e.Message = "invalid or expired API token"
		e.Hint = "Set a valid token with --gitea-token or GITEA_TOKEN"
	case status == http.StatusForbidden:
		if strings.Contains(strings.ToLower(string(body)), "rate limit") {
			e.Kind = apperr.ErrRateLimited
			e.Message = "rate limit exceeded"
			e.Hint = "Wait a few minutes and try again"
		} else {
			e.Kind = apperr.ErrAuth
			e.Message = "access forbidden"
			e.Hint = "Check that the token has access to the repository"
		}
	case status == http.StatusNotFound:
		e.Kind = apperr.ErrNotFound
		e.Message = "not found: " + path
		e.Hint = "Check that the repository exists and you have access to it"
	default:
		e.Kind = apperr.ErrSourceAPI
		e.Message = apiMessage(body)
	}
	return e
}

func apiMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &m) == nil && m.Message != "" {
		return m.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

type giteaUser struct {
	Login    string `json:"login"`
	Username string `json:"username"`
}

func (u *giteaUser) name() string {
	switch {
	case u == nil:
		return "unknown"
	case u.Login != "":
		return u.Login
	case u.Username != "":
		return u.Username
	default:
		return "unknown"
	}
}

type giteaComment struct {
	ID        int64      `json:"id"`
	User      *giteaUser `json:"user"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
	HTMLURL   string     `json:"html_url"`
}

func (c giteaComment) toComment() issue.Comment {
	return issue.Comment{
		ID:        strconv.FormatInt(c.ID, 10),
		Author:    c.User.name(),
		Body:      c.Body,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: derefTime(c.UpdatedAt),
		URL:       c.HTMLURL,
	}
}

type giteaIssue struct {
	Number    int         `json:"number"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	State     string      `json:"state"`
	CreatedAt *time.Time  `json:"created_at"`
	UpdatedAt *time.Time  `json:"updated_at"`
	ClosedAt  *time.Time  `json:"closed_at"`
	User      *giteaUser  `json:"user"`
	Assignees []giteaUser `json:"assignees"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Milestone *struct {
		Title string `json:"title"`
	} `json:"milestone"`
	HTMLURL string `json:"html_url"`
}

func (r giteaIssue) toIssue() issue.Issue {
	iss := issue.Issue{
		Number:    r.Number,
		Title:     r.Title,
		Body:      r.Body,
		State:     parseState(r.State),
		CreatedAt: derefTime(r.CreatedAt),
		UpdatedAt: derefTime(r.UpdatedAt),
		ClosedAt:  derefTime(r.ClosedAt),
		Author:    r.User.name(),
		URL:       r.HTMLURL,
	}
	for i := range r.Assignees {
		iss.Assignees = append(iss.Assignees, r.Assignees[i].name())
	}
	for _, l := range r.Labels {
		iss.Labels = append(iss.Labels, l.Name)
	}
	if r.Milestone != nil {
		iss.Milestone = r.Milestone.Title
	}
	return iss
}
