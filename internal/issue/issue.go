// Package issue defines the issue records fetched from a tracker.
package issue

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/orgsync/internal/apperr"
)

// State is the remote state of an issue.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// ParseState maps tracker spellings ("OPEN", "closed") to a State.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return StateOpen, nil
	case "closed":
		return StateClosed, nil
	default:
		return "", fmt.Errorf("issue: unknown state %q", s)
	}
}

// StateFilter selects which issues a fetch returns.
type StateFilter string

const (
	FilterAll    StateFilter = "all"
	FilterOpen   StateFilter = "open"
	FilterClosed StateFilter = "closed"
)

// Validate implements validation.Validatable.
func (f StateFilter) Validate() error {
	return validation.Validate(string(f), validation.Required, validation.In("all", "open", "closed"))
}

// Comment is one comment on an issue.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	URL       string    `json:"url,omitempty"`
}

// Issue is an immutable snapshot of one tracker issue.
type Issue struct {
	Number      int       `json:"number"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	State       State     `json:"state"`
	StateReason string    `json:"state_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ClosedAt    time.Time `json:"closed_at,omitzero"`
	Author      string    `json:"author"`
	Assignees   []string  `json:"assignees,omitempty"`
	Labels      []string  `json:"labels,omitempty"`
	Milestone   string    `json:"milestone,omitempty"`
	URL         string    `json:"url"`
	Comments    []Comment `json:"comments,omitempty"`
}

// IsClosed reports whether the issue is closed.
func (i *Issue) IsClosed() bool {
	return i.State == StateClosed
}

// SortByNumber sorts issues by ascending number in place.
func SortByNumber(issues []Issue) {
	slices.SortFunc(issues, func(a, b Issue) int {
		return cmp.Compare(a.Number, b.Number)
	})
}

var repoRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// Repo identifies a repository as owner/name.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo validates an owner/name string.
func ParseRepo(s string) (Repo, error) {
	s = strings.TrimSpace(s)
	err := validation.Validate(s,
		validation.Required,
		validation.Match(repoRe),
	)
	if err != nil {
		return Repo{}, fmt.Errorf("%w: %q: use owner/repo, e.g. octocat/Hello-World", apperr.ErrInvalidRepo, s)
	}
	owner, name, _ := strings.Cut(s, "/")
	return Repo{Owner: owner, Name: name}, nil
}
