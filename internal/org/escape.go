package org

import (
	"regexp"
	"strings"
)

// escapePrefix neutralises a line that would otherwise be read as syntax.
const escapePrefix = ", "

var (
	starLineRe  = regexp.MustCompile(`^\*+(\s|$)`)
	keyLineRe   = regexp.MustCompile(`^:[A-Za-z_][A-Za-z0-9_-]*:`)
	tagInvalid  = regexp.MustCompile(`[^\p{L}\p{N}_@#%]+`)
	linkEscaper = strings.NewReplacer("[[", `\[\[`, "]]", `\]\]`)
)

// EscapeContent makes externally authored text safe to embed as heading
// content. A line that would be read as Org syntax gets ", " inserted after
// its indentation. Link brackets are backslash-escaped.
func EscapeContent(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = linkEscaper.Replace(escapeLine(line))
	}
	return strings.Join(lines, "\n")
}

func escapeLine(line string) string {
	body := strings.TrimLeft(line, " \t")
	if body == "" || !needsEscape(body) {
		return line
	}
	indent := line[:len(line)-len(body)]
	return indent + escapePrefix + body
}

func needsEscape(body string) bool {
	return strings.HasPrefix(body, "#") ||
		starLineRe.MatchString(body) ||
		keyLineRe.MatchString(body)
}

// SanitizeTag turns a label name into a tag: every run of characters outside
// the tag alphabet (letters, digits, _ @ # %) becomes one underscore and
// surrounding underscores are trimmed. The result may be empty.
func SanitizeTag(name string) string {
	return strings.Trim(tagInvalid.ReplaceAllString(name, "_"), "_")
}

// FormatTags renders a tag cluster such as ":bug:LINK:". Empty tags are
// dropped; an empty list renders as "".
func FormatTags(tags []string) string {
	var kept []string
	for _, t := range tags {
		if t != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return ":" + strings.Join(kept, ":") + ":"
}
