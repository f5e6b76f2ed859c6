package org

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	fenceRe      = regexp.MustCompile("^\\s*(```+|~~~+)\\s*([^`\\s]*)")
	quoteRe      = regexp.MustCompile(`^\s*>\s?(.*)$`)
	bulletRe     = regexp.MustCompile(`^(\s*)[*+](\s+)`)
	codeSpanRe   = regexp.MustCompile("`([^`]+)`")
	imageRe      = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	boldStarRe   = regexp.MustCompile(`\*\*([^*]+?)\*\*`)
	boldUnderRe  = regexp.MustCompile(`__([^_]+?)__`)
	italicStarRe = regexp.MustCompile(`\*([^*\s](?:[^*]*[^*\s])?)\*`)
	italicUndRe  = regexp.MustCompile(`(^|[^\w])_([^_\s](?:[^_]*[^_\s])?)_([^\w]|$)`)
	strikeRe     = regexp.MustCompile(`~~([^~]+?)~~`)
	placeholder  = regexp.MustCompile("\x00([0-9]+)\x00")
)

// boldMark stands in for a bold delimiter until italics are converted.
const boldMark = "\x01"

// ConvertMarkdown rewrites Markdown as found in issue bodies into Org
// markup and escapes the result so it can be embedded as content.
// Unterminated code fences are closed at the end of the text.
func ConvertMarkdown(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")

	var (
		out     []string
		fence   string
		inQuote bool
	)
	for _, line := range strings.Split(text, "\n") {
		if fence != "" {
			if isFenceClose(line, fence) {
				out = append(out, "#+END_SRC")
				fence = ""
				continue
			}
			out = append(out, EscapeContent(line))
			continue
		}

		if m := fenceRe.FindStringSubmatch(line); m != nil {
			if inQuote {
				out = append(out, "#+END_QUOTE")
				inQuote = false
			}
			fence = m[1]
			begin := "#+BEGIN_SRC"
			if m[2] != "" {
				begin += " " + m[2]
			}
			out = append(out, begin)
			continue
		}

		if m := quoteRe.FindStringSubmatch(line); m != nil {
			if !inQuote {
				out = append(out, "#+BEGIN_QUOTE")
				inQuote = true
			}
			out = append(out, convertLine(m[1]))
			continue
		}
		if inQuote {
			out = append(out, "#+END_QUOTE")
			inQuote = false
		}
		out = append(out, convertLine(line))
	}
	if fence != "" {
		out = append(out, "#+END_SRC")
	}
	if inQuote {
		out = append(out, "#+END_QUOTE")
	}
	return strings.Join(out, "\n")
}

func isFenceClose(line, fence string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, fence) && strings.Trim(t, fence[:1]) == ""
}

// convertLine converts the inline markup of one line and escapes it.
// Generated links and code spans are swapped for placeholders while the line
// is escaped so their brackets survive.
func convertLine(line string) string {
	var tokens []string
	hold := func(tok string) string {
		tokens = append(tokens, tok)
		return "\x00" + strconv.Itoa(len(tokens)-1) + "\x00"
	}

	line = bulletRe.ReplaceAllString(line, "${1}-${2}")
	line = codeSpanRe.ReplaceAllStringFunc(line, func(s string) string {
		return hold("~" + codeSpanRe.FindStringSubmatch(s)[1] + "~")
	})
	line = imageRe.ReplaceAllStringFunc(line, func(s string) string {
		return hold("[[" + imageRe.FindStringSubmatch(s)[2] + "]]")
	})
	line = linkRe.ReplaceAllStringFunc(line, func(s string) string {
		m := linkRe.FindStringSubmatch(s)
		return hold("[[" + m[2] + "][" + m[1] + "]]")
	})
	line = boldStarRe.ReplaceAllString(line, boldMark+"${1}"+boldMark)
	line = boldUnderRe.ReplaceAllString(line, boldMark+"${1}"+boldMark)
	line = italicStarRe.ReplaceAllString(line, "/${1}/")
	line = italicUndRe.ReplaceAllString(line, "${1}/${2}/${3}")
	line = strikeRe.ReplaceAllString(line, "+${1}+")
	line = strings.ReplaceAll(line, boldMark, "*")

	line = EscapeContent(line)
	return placeholder.ReplaceAllStringFunc(line, func(s string) string {
		i, err := strconv.Atoi(placeholder.FindStringSubmatch(s)[1])
		if err != nil || i >= len(tokens) {
			return s
		}
		return tokens[i]
	})
}
