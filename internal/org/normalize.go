package org

import (
	"regexp"
	"strings"
)

var spaceRun = regexp.MustCompile(` {2,}`)

// Normalize canonicalises rendered text for comparison. Line endings become
// LF and trailing whitespace is stripped. Runs of spaces on heading and
// property lines collapse to one. Leading and trailing blank lines are
// dropped.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		if isHeadingLine(line) || propertyRe.MatchString(line) {
			line = spaceRun.ReplaceAllString(line, " ")
		}
		lines[i] = line
	}
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

// Equivalent reports whether a and b render the same after Normalize.
func Equivalent(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
