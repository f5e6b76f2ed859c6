package org

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestProperties_Order(t *testing.T) {
	p := NewProperties()
	p.Set("b", "1")
	p.Set("A", "2")
	p.Set("c", "3")
	p.Set("B", "4")
	if diff := cmp.Diff([]string{"B", "A", "C"}, p.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
	if p.Value("b") != "4" {
		t.Errorf("b = %q, want 4", p.Value("b"))
	}
	p.Delete("a")
	if p.Has("A") || p.Len() != 2 {
		t.Errorf("after delete: %v", p.Keys())
	}
}

func TestProperties_NilSafe(t *testing.T) {
	var p *Properties
	if p.Len() != 0 || p.Has("X") || p.Keys() != nil {
		t.Error("nil properties not empty")
	}
	if c := p.Clone(); c.Len() != 0 {
		t.Error("clone of nil not empty")
	}
}

func TestHeading_Clone(t *testing.T) {
	h := Parse("* TODO A :x:\n:PROPERTIES:\n:GITHUB_NUMBER: 3\n:END:\n** child\n").Headings[0]
	c := h.Clone()
	c.Tags[0] = "y"
	c.Properties.Set("GITHUB_NUMBER", "4")
	c.Children = append(c.Children, &Heading{Level: 2, Title: "new"})
	if h.Tags[0] != "x" || h.Properties.Value(MatchKeyProperty) != "3" || len(h.Children) != 1 {
		t.Errorf("clone shares state with original: %+v", h)
	}
	if c.Children[0] != h.Children[0] {
		t.Error("children should be shared by pointer")
	}
}

func TestHeading_MatchKey(t *testing.T) {
	doc := Parse(`* A
:PROPERTIES:
:GITHUB_NUMBER: 12
:GITHUB_UPDATED: [2024-01-02 Tue 03:04]
:END:
** B
:PROPERTIES:
:GITHUB_NUMBER: abc
:END:
* C
:PROPERTIES:
:GITHUB_NUMBER:
:END:
`)
	a, b, c := doc.Headings[0], doc.Headings[0].Children[0], doc.Headings[1]
	if n, err := a.Number(); err != nil || n != 12 {
		t.Errorf("A.Number() = %d, %v", n, err)
	}
	if _, err := b.Number(); err == nil {
		t.Error("B.Number() should fail for a non-numeric key")
	}
	if !b.IsLinked() {
		t.Error("B has a match key")
	}
	if c.IsLinked() {
		t.Error("an empty match key is not a match key")
	}
	ts, ok := a.LastUpdated()
	if !ok || !ts.Equal(time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)) {
		t.Errorf("LastUpdated = %v, %v", ts, ok)
	}
	if got := FindByNumber(doc.Headings, 12); got != a {
		t.Errorf("FindByNumber = %+v", got)
	}
	if got := FindByProperty(doc.Headings, MatchKeyProperty, "abc"); got != b {
		t.Errorf("FindByProperty = %+v", got)
	}
	if n := len(Flatten(doc.Headings)); n != 3 {
		t.Errorf("Flatten = %d headings, want 3", n)
	}
}
