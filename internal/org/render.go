package org

import (
	"strings"
)

// propertyColumn is the width a short ":KEY:" is padded to before its value.
const propertyColumn = 10

// Render returns the text of h and its descendants. A heading with Verbatim
// text emits it unchanged; others are synthesized from their fields.
// Children are always rendered on their own terms.
func Render(h *Heading) string {
	var segs []string
	appendSegments(&segs, h)
	return strings.Join(segs, "\n")
}

// RenderForest renders header lines followed by every heading of forest.
// An empty header emits nothing before the first heading.
func RenderForest(forest []*Heading, header []string) string {
	var segs []string
	if len(header) > 0 {
		segs = append(segs, strings.Join(header, "\n"))
	}
	for _, h := range forest {
		appendSegments(&segs, h)
	}
	return strings.Join(segs, "\n")
}

func appendSegments(segs *[]string, h *Heading) {
	if h.Verbatim != "" {
		*segs = append(*segs, h.Verbatim)
	} else {
		*segs = append(*segs, synthesize(h))
	}
	for _, c := range h.Children {
		appendSegments(segs, c)
	}
}

// RenderNode renders h without its children.
func RenderNode(h *Heading) string {
	if h.Verbatim != "" {
		return h.Verbatim
	}
	return synthesize(h)
}

func synthesize(h *Heading) string {
	lines := []string{HeadingLine(h)}
	if p := planningLine(h); p != "" {
		lines = append(lines, p)
	}
	if h.Properties.Len() > 0 {
		lines = append(lines, ":PROPERTIES:")
		h.Properties.Each(func(k, v string) {
			lines = append(lines, PropertyLine(k, v))
		})
		lines = append(lines, ":END:")
	}
	if c := joinContent(strings.Split(h.Content, "\n")); c != "" {
		lines = append(lines, c)
	}
	return strings.Join(lines, "\n") + "\n"
}

// planningLine renders CLOSED (for DONE headings only) followed by the other
// planning entries.
func planningLine(h *Heading) string {
	var parts []string
	if h.State == StateDone && h.Closed != "" {
		parts = append(parts, "CLOSED: "+h.Closed)
	}
	if p := strings.TrimSpace(h.Planning); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// TitleFor returns title as it must be stored so a heading carrying tags
// parses back to the same title. Without tags, a trailing ":word:" run would
// be read as a tag cluster, so its final colons are dropped.
func TitleFor(title string, tags []string) string {
	if FormatTags(tags) != "" || !tailTagsRe.MatchString(title) {
		return title
	}
	return strings.TrimRight(title, ":")
}

// HeadingLine renders the heading line of h: stars, keyword, title and tags.
func HeadingLine(h *Heading) string {
	level := max(h.Level, 1)
	var b strings.Builder
	b.WriteString(strings.Repeat("*", level))
	b.WriteByte(' ')
	if kw := h.State.Keyword(); kw != "" {
		b.WriteString(kw)
		b.WriteByte(' ')
	}
	b.WriteString(h.Title)
	if tags := FormatTags(h.Tags); tags != "" {
		b.WriteByte(' ')
		b.WriteString(tags)
	}
	return b.String()
}

// PropertyLine renders one metadata line.
func PropertyLine(key, value string) string {
	k := ":" + canonicalKey(key) + ":"
	if value == "" {
		return k
	}
	if pad := propertyColumn - len(k); pad > 0 {
		k += strings.Repeat(" ", pad)
	}
	return k + " " + value
}
