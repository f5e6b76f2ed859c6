package org

import "strings"

// ExtractMetadata returns the #+KEY: value directives that precede the first
// heading of text. Keys are upper-cased; a repeated key keeps its last value.
func ExtractMetadata(text string) map[string]string {
	var pre []string
	for _, line := range strings.Split(text, "\n") {
		if isHeadingLine(line) {
			break
		}
		pre = append(pre, line)
	}
	return directives(pre)
}

func directives(lines []string) map[string]string {
	out := make(map[string]string)
	for _, line := range lines {
		if m := directiveRe.FindStringSubmatch(strings.TrimRight(line, "\r")); m != nil {
			out[strings.ToUpper(m[1])] = strings.TrimSpace(m[2])
		}
	}
	return out
}

// Directive renders a #+KEY: value line.
func Directive(key, value string) string {
	return "#+" + strings.ToUpper(key) + ": " + value
}

// SetDirective returns a copy of lines with every #+KEY: line replaced by
// the new value, and whether any line matched. Empty input yields nil.
func SetDirective(lines []string, key, value string) ([]string, bool) {
	if len(lines) == 0 {
		return nil, false
	}
	out := make([]string, len(lines))
	copy(out, lines)
	found := false
	for i, line := range out {
		m := directiveRe.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil || !strings.EqualFold(m[1], key) {
			continue
		}
		next := Directive(key, value)
		if strings.HasSuffix(line, "\r") {
			next += "\r"
		}
		out[i] = next
		found = true
	}
	return out, found
}
