package org

import (
	"regexp"
	"strings"
)

var (
	headingRe = regexp.MustCompile(
		`^(\*+)` + // level
			`\s+` +
			`(?:(TODO|DONE)\s+)?` + // keyword
			`(.+?)` + // title
			`(?:\s+(:[\p{L}\p{N}_@#%:]+:))?` + // tag cluster
			`\s*$`)
	drawerStartRe = regexp.MustCompile(`(?i)^\s*:PROPERTIES:\s*$`)
	drawerEndRe   = regexp.MustCompile(`(?i)^\s*:END:\s*$`)
	propertyRe    = regexp.MustCompile(`^\s*:([A-Za-z0-9_-]+):\s*(.*?)\s*$`)
	planningRe    = regexp.MustCompile(`^\s*(CLOSED|SCHEDULED|DEADLINE):\s*(.*?)\s*$`)
	planItemRe    = regexp.MustCompile(`(CLOSED|SCHEDULED|DEADLINE):\s*(<[^>]*>|\[[^\]]*\])`)
	tailTagsRe    = regexp.MustCompile(`\s:[\p{L}\p{N}_@#%:]+:$`)
	directiveRe   = regexp.MustCompile(`^#\+([A-Za-z_]+):\s*(.*)$`)
)

type lineKind int

const (
	lineOther lineKind = iota
	lineHeading
	linePlanning
	lineDrawerStart
	lineProperty
	lineDrawerEnd
)

// classified is one source line after classification. Only the fields of
// its kind are set.
type classified struct {
	kind lineKind

	level int
	state State
	title string
	tags  []string

	key   string
	value string
}

// classifyLine is the single place that knows the line syntax.
func classifyLine(line string) classified {
	if m := headingRe.FindStringSubmatch(line); m != nil {
		return classified{
			kind:  lineHeading,
			level: len(m[1]),
			state: parseState(m[2]),
			title: strings.TrimSpace(m[3]),
			tags:  splitTags(m[4]),
		}
	}
	if drawerStartRe.MatchString(line) {
		return classified{kind: lineDrawerStart}
	}
	if drawerEndRe.MatchString(line) {
		return classified{kind: lineDrawerEnd}
	}
	if m := propertyRe.FindStringSubmatch(line); m != nil {
		return classified{kind: lineProperty, key: strings.ToUpper(m[1]), value: m[2]}
	}
	if m := planningRe.FindStringSubmatch(line); m != nil {
		return classified{kind: linePlanning, key: m[1], value: m[2]}
	}
	return classified{kind: lineOther}
}

// planItem is one KEYWORD: timestamp entry of a planning line.
type planItem struct {
	key   string
	value string
}

// splitPlanning reads every entry of a planning line. ok is false when the
// line holds anything besides well-formed entries.
func splitPlanning(line string) (items []planItem, ok bool) {
	rest := strings.TrimSpace(line)
	for rest != "" {
		loc := planItemRe.FindStringSubmatchIndex(rest)
		if loc == nil || loc[0] != 0 {
			return nil, false
		}
		items = append(items, planItem{key: rest[loc[2]:loc[3]], value: rest[loc[4]:loc[5]]})
		rest = strings.TrimSpace(rest[loc[1]:])
	}
	return items, len(items) > 0
}

func isHeadingLine(line string) bool {
	return headingRe.MatchString(line)
}

func splitTags(cluster string) []string {
	if cluster == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(strings.Trim(cluster, ":"), ":") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
