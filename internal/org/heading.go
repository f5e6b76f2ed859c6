// Package org models the subset of Org-mode used by issue outlines: a forest
// of headings with a TODO keyword, tags, a property drawer and free-form
// content. It parses text into that forest and renders it back, emitting the
// original bytes for every node nobody touched.
package org

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// Reserved property keys and tags.
const (
	// MatchKeyProperty holds the issue number a heading is linked to.
	MatchKeyProperty = "GITHUB_NUMBER"
	// UpdatedProperty holds the last-known remote modification time.
	UpdatedProperty = "GITHUB_UPDATED"
	// StateProperty holds the last-known remote state string.
	StateProperty = "GITHUB_STATE"
	// LinkTag marks a heading as machine-linked.
	LinkTag = "LINK"
)

// State is the TODO keyword of a heading.
type State int

const (
	StateNone State = iota
	StateTodo
	StateDone
)

// Keyword returns the keyword text, "" for StateNone.
func (s State) Keyword() string {
	switch s {
	case StateTodo:
		return "TODO"
	case StateDone:
		return "DONE"
	default:
		return ""
	}
}

func (s State) String() string {
	if s == StateNone {
		return "-"
	}
	return s.Keyword()
}

func parseState(keyword string) State {
	switch keyword {
	case "TODO":
		return StateTodo
	case "DONE":
		return StateDone
	default:
		return StateNone
	}
}

// Heading is one node of the outline.
type Heading struct {
	Level      int
	Title      string
	State      State
	Tags       []string
	Properties *Properties
	// Closed is the timestamp of a CLOSED: planning entry, brackets included.
	Closed string
	// Planning holds the other planning entries, such as
	// "SCHEDULED: <2024-02-01 Thu>", in source order.
	Planning string
	Content  string
	Children []*Heading

	// Line is the 1-based line of the heading in its source, 0 if synthesized.
	Line int
	// Verbatim is the exact source text of the node without its children.
	// Empty means the node must be rendered from its fields.
	Verbatim string
}

// MatchKey returns the raw match key value.
func (h *Heading) MatchKey() (string, bool) {
	v, ok := h.Properties.Get(MatchKeyProperty)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Number returns the match key as an issue number.
func (h *Heading) Number() (int, error) {
	v, ok := h.MatchKey()
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(v)
}

// IsLinked reports whether the heading carries a match key.
func (h *Heading) IsLinked() bool {
	_, ok := h.MatchKey()
	return ok
}

// LastUpdated parses the stored remote modification time.
func (h *Heading) LastUpdated() (time.Time, bool) {
	v, ok := h.Properties.Get(UpdatedProperty)
	if !ok {
		return time.Time{}, false
	}
	t, err := ParseTimestamp(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// HasTag reports whether tag is present, ignoring case.
func (h *Heading) HasTag(tag string) bool {
	return slices.ContainsFunc(h.Tags, func(t string) bool {
		return strings.EqualFold(t, tag)
	})
}

// Clone returns a copy whose slices and properties can be changed without
// affecting h. Children are shared.
func (h *Heading) Clone() *Heading {
	c := *h
	c.Tags = slices.Clone(h.Tags)
	c.Properties = h.Properties.Clone()
	c.Children = slices.Clone(h.Children)
	return &c
}

// Walk visits every heading of the forest in document order. Returning false
// from fn skips the children of that heading.
func Walk(forest []*Heading, fn func(h *Heading) bool) {
	for _, h := range forest {
		if fn(h) {
			Walk(h.Children, fn)
		}
	}
}

// Flatten returns all headings of the forest in document order.
func Flatten(forest []*Heading) []*Heading {
	var out []*Heading
	Walk(forest, func(h *Heading) bool {
		out = append(out, h)
		return true
	})
	return out
}

// FindByProperty returns the first heading whose property key equals value.
func FindByProperty(forest []*Heading, key, value string) *Heading {
	var found *Heading
	Walk(forest, func(h *Heading) bool {
		if found != nil {
			return false
		}
		if v, ok := h.Properties.Get(key); ok && v == value {
			found = h
			return false
		}
		return true
	})
	return found
}

// FindByNumber returns the heading linked to issue number n.
func FindByNumber(forest []*Heading, n int) *Heading {
	return FindByProperty(forest, MatchKeyProperty, strconv.Itoa(n))
}
