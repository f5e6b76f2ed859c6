package merge

import (
	"fmt"
	"strings"
)

// Action classifies what a merge did with one entry.
type Action string

const (
	ActionAdded     Action = "added"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionPreserved Action = "preserved"
)

// Entry is one line of the change log.
type Entry struct {
	Number  int    `json:"number" yaml:"number"`
	Title   string `json:"title" yaml:"title"`
	Action  Action `json:"action" yaml:"action"`
	Details string `json:"details,omitempty" yaml:"details,omitempty"`
}

// Report summarises a merge.
type Report struct {
	TotalIssues   int      `json:"total_issues" yaml:"total_issues"`
	TotalHeadings int      `json:"total_headings" yaml:"total_headings"`
	Added         int      `json:"added" yaml:"added"`
	Updated       int      `json:"updated" yaml:"updated"`
	Unchanged     int      `json:"unchanged" yaml:"unchanged"`
	Preserved     int      `json:"preserved" yaml:"preserved"`
	Entries       []Entry  `json:"entries,omitempty" yaml:"entries,omitempty"`
	Errors        []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// HasChanges reports whether the merged forest differs from the previous one.
func (r *Report) HasChanges() bool {
	return r.Added > 0 || r.Updated > 0
}

// Summary returns a one-line description such as
// "2 added, 1 updated, 5 unchanged, 3 preserved".
func (r *Report) Summary() string {
	s := fmt.Sprintf("%d added, %d updated, %d unchanged, %d preserved",
		r.Added, r.Updated, r.Unchanged, r.Preserved)
	if n := len(r.Errors); n > 0 {
		s += fmt.Sprintf(" (%d warnings)", n)
	}
	return s
}

// Filter returns the entries with one of the given actions.
func (r *Report) Filter(actions ...Action) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		for _, a := range actions {
			if e.Action == a {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func (r *Report) record(number int, title string, action Action, details string) {
	switch action {
	case ActionAdded:
		r.Added++
	case ActionUpdated:
		r.Updated++
	case ActionUnchanged:
		r.Unchanged++
	case ActionPreserved:
		r.Preserved++
	}
	r.Entries = append(r.Entries, Entry{Number: number, Title: title, Action: action, Details: details})
}

func (r *Report) warn(format string, args ...any) {
	r.Errors = append(r.Errors, strings.TrimSpace(fmt.Sprintf(format, args...)))
}
