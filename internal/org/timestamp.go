package org

import (
	"fmt"
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 Mon 15:04"

// FormatTimestamp renders t as an Org timestamp in UTC. Active timestamps use
// angle brackets, inactive ones square brackets.
func FormatTimestamp(t time.Time, active bool) string {
	s := t.UTC().Format(timestampLayout)
	if active {
		return "<" + s + ">"
	}
	return "[" + s + "]"
}

// Inactive is FormatTimestamp(t, false).
func Inactive(t time.Time) string {
	return FormatTimestamp(t, false)
}

// ParseTimestamp reads a timestamp written by FormatTimestamp, with or
// without brackets, or an RFC 3339 value left by older documents.
func ParseTimestamp(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, fmt.Errorf("org: empty timestamp")
	}
	if n := len(v); n >= 2 && (v[0] == '[' && v[n-1] == ']' || v[0] == '<' && v[n-1] == '>') {
		v = strings.TrimSpace(v[1 : n-1])
	}
	if t, err := time.Parse(timestampLayout, v); err == nil {
		return t, nil
	}
	// Day names are informative only; accept a date and time without one.
	if t, err := time.Parse("2006-01-02 15:04", v); err == nil {
		return t, nil
	}
	if fields := strings.Fields(v); len(fields) == 3 {
		if t, err := time.Parse("2006-01-02 15:04", fields[0]+" "+fields[2]); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("org: unrecognised timestamp %q", s)
}
