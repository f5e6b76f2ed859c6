// Package models defines the shared value types of orgsync.
package models

import "time"

// DocumentInfo describes an outline file on disk.
type DocumentInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HeadingSummary is a flattened view of one heading, as listed by the
// parse command and the document endpoints.
type HeadingSummary struct {
	Line   int               `json:"line" yaml:"line"`
	Level  int               `json:"level" yaml:"level"`
	State  string            `json:"state,omitempty" yaml:"state,omitempty"`
	Title  string            `json:"title" yaml:"title"`
	Tags   []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Number int               `json:"number,omitempty" yaml:"number,omitempty"`
	Linked bool              `json:"linked" yaml:"linked"`
	Props  map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// DocumentSummary is the structural overview of a parsed outline.
type DocumentSummary struct {
	Path          string            `json:"path" yaml:"path"`
	Metadata      map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	TotalHeadings int               `json:"total_headings" yaml:"total_headings"`
	TopLevel      int               `json:"top_level" yaml:"top_level"`
	Linked        int               `json:"linked" yaml:"linked"`
	Open          int               `json:"open" yaml:"open"`
	Done          int               `json:"done" yaml:"done"`
	Headings      []HeadingSummary  `json:"headings,omitempty" yaml:"headings,omitempty"`
}
