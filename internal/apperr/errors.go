package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	ErrInvalidRepo = errors.New("invalid repository")

	// Source access.
	ErrAuth        = errors.New("authentication failed")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrNetwork     = errors.New("network error")
	ErrTimeout     = errors.New("timed out")
	ErrCLINotFound = errors.New("command not found")
	ErrSourceAPI   = errors.New("api error")

	// Document storage.
	ErrDocumentRead  = errors.New("document read failed")
	ErrDocumentWrite = errors.New("document write failed")
	ErrBackup        = errors.New("backup failed")
)

// SourceError is a failure reported by an issue provider. Kind is one of the
// source access sentinels above and is matched by errors.Is.
type SourceError struct {
	Provider string
	Kind     error
	Status   int
	Message  string
	Hint     string
	Err      error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *SourceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// HintFor returns the actionable hint attached to err, if any.
func HintFor(err error) string {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Hint
	}
	return ""
}
