package merge

import (
	"regexp"
	"strings"

	"github.com/starford/orgsync/internal/org"
)

// SyncMarker separates synchronized text from text a user appended below it.
const SyncMarker = "# --- End of GitHub synced content ---"

var commentTitleRe = regexp.MustCompile(`^Comment by @\S+ \[[^\]]+\]$`)

// UserText returns the text following the sync marker line in content, with
// the marker's line break removed. Content without a marker has no
// recoverable user text.
func UserText(content string) string {
	offset := 0
	for offset <= len(content) {
		end := strings.IndexByte(content[offset:], '\n')
		line := content[offset:]
		if end >= 0 {
			line = content[offset : offset+end]
		}
		if strings.TrimSpace(line) == SyncMarker {
			if end < 0 {
				return ""
			}
			rest := content[offset+end+1:]
			if strings.TrimSpace(rest) == "" {
				return ""
			}
			return rest
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return ""
}

// syncedContent lays out converted machine text, the marker, then carried
// user text.
func syncedContent(body, userText string) string {
	var lines []string
	if body = strings.TrimSpace(body); body != "" {
		lines = append(lines, org.ConvertMarkdown(body), "")
	}
	lines = append(lines, SyncMarker)
	if userText != "" {
		lines = append(lines, userText)
	}
	return strings.Join(lines, "\n")
}

// isComment reports whether h is a synthesized comment node.
func isComment(h *org.Heading) bool {
	return !h.IsLinked() && commentTitleRe.MatchString(h.Title)
}

// sanitizeTitle folds a title onto one line.
func sanitizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}
