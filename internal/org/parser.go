package org

import (
	"strings"
)

// Document is a parsed outline file: the lines before the first heading and
// the heading forest.
type Document struct {
	// Preamble holds the lines before the first heading. Nil when the text
	// starts with a heading or is empty.
	Preamble []string
	Headings []*Heading
}

// Render returns the document text. For a Document produced by Parse and not
// modified since, the result equals the parsed text.
func (d *Document) Render() string {
	return RenderForest(d.Headings, d.Preamble)
}

// Metadata returns the #+KEY: directives of the preamble.
func (d *Document) Metadata() map[string]string {
	return directives(d.Preamble)
}

// Parse splits text into a preamble and a heading forest. It never fails:
// lines it cannot interpret become content or preamble.
func Parse(text string) *Document {
	doc := &Document{}
	if text == "" {
		return doc
	}
	lines := strings.Split(text, "\n")

	first := len(lines)
	for i, line := range lines {
		if isHeadingLine(line) {
			first = i
			break
		}
	}
	if first > 0 {
		doc.Preamble = lines[:first:first]
	}

	var flat []*Heading
	for start := first; start < len(lines); {
		end := start + 1
		for end < len(lines) && !isHeadingLine(lines[end]) {
			end++
		}
		flat = append(flat, parseNode(lines[start:end], start+1))
		start = end
	}
	doc.Headings = buildTree(flat)
	return doc
}

// ParseHeadings is Parse without the preamble.
func ParseHeadings(text string) []*Heading {
	return Parse(text).Headings
}

// parseNode reads one heading line and the lines it owns up to the next
// heading. lineNo is the 1-based line of the heading.
func parseNode(lines []string, lineNo int) *Heading {
	hl := classifyLine(lines[0])
	h := &Heading{
		Level:      hl.level,
		Title:      hl.title,
		State:      hl.state,
		Tags:       hl.tags,
		Properties: NewProperties(),
		Line:       lineNo,
		Verbatim:   strings.Join(lines, "\n"),
	}

	i := 1
	if i < len(lines) && classifyLine(lines[i]).kind == linePlanning {
		if items, ok := splitPlanning(lines[i]); ok {
			var other []string
			for _, it := range items {
				if it.key == "CLOSED" {
					h.Closed = it.value
					continue
				}
				other = append(other, it.key+": "+it.value)
			}
			h.Planning = strings.Join(other, " ")
			i++
		}
	}
	if i < len(lines) && classifyLine(lines[i]).kind == lineDrawerStart {
		if end := drawerEnd(lines, i); end > 0 {
			for _, line := range lines[i+1 : end] {
				if c := classifyLine(line); c.kind == lineProperty {
					h.Properties.Set(c.key, c.value)
				}
			}
			i = end + 1
		}
	}
	h.Content = joinContent(lines[i:])
	return h
}

// drawerEnd returns the index of the :END: line closing the drawer opened at
// start, or -1 when the drawer is not closed before the node ends.
func drawerEnd(lines []string, start int) int {
	for j := start + 1; j < len(lines); j++ {
		if classifyLine(lines[j]).kind == lineDrawerEnd {
			return j
		}
	}
	return -1
}

func joinContent(lines []string) string {
	n := len(lines)
	for n > 0 && strings.TrimSpace(lines[n-1]) == "" {
		n--
	}
	return strings.Join(lines[:n], "\n")
}

// buildTree groups a flat, ordered heading list into a forest. A heading
// becomes the child of the nearest preceding heading with a lower level.
func buildTree(flat []*Heading) []*Heading {
	var roots, stack []*Heading
	for _, h := range flat {
		for len(stack) > 0 && stack[len(stack)-1].Level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, h)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, h)
		}
		stack = append(stack, h)
	}
	return roots
}
