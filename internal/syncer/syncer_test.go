package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/issue"
	"github.com/starford/orgsync/internal/storage"
	"github.com/starford/orgsync/internal/testutil"
)

var clock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func issueOne() issue.Issue {
	return issue.Issue{
		Number:    1,
		Title:     "Crash on start",
		Body:      "It fails.",
		State:     issue.StateOpen,
		CreatedAt: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC),
		Author:    "alice",
		URL:       "https://github.com/o/r/issues/1",
	}
}

type env struct {
	dir    string
	store  *storage.FS
	fp     *testutil.Provider
	syncer *Syncer
	notes  []*Result
}

func newEnv(t *testing.T, issues ...issue.Issue) *env {
	t.Helper()
	e := &env{fp: &testutil.Provider{Issues: issues}}
	e.dir, e.store = testutil.TestStore(t)

	e.syncer = New(e.fp, e.store,
		WithHistory(testutil.TestHistory(t)),
		WithLogger(testutil.Quiet()),
		WithClock(func() time.Time { return clock }),
		WithNotify(func(r *Result) { e.notes = append(e.notes, r) }),
	)
	return e
}

func (e *env) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestSync_CreatesDocument(t *testing.T) {
	e := newEnv(t, issueOne())

	res, err := e.syncer.Sync(context.Background(), DefaultOptions("o/r", "issues.org"))
	require.NoError(t, err)
	require.True(t, res.Created)
	require.True(t, res.Written)
	require.Empty(t, res.Backup)
	require.Equal(t, 1, res.Report.Added)
	require.NotEmpty(t, res.RunID)

	got := e.read(t, "issues.org")
	require.True(t, strings.HasPrefix(got, `#+TITLE: GitHub Issues: o/r
#+DESCRIPTION: GitHub issues synced from o/r
#+STARTUP: overview
#+SYNC_REPO: o/r
#+SYNC_TIME: 2024-05-01T12:00:00Z

* TODO Crash on start :LINK:
`), got)
	require.Equal(t, got, res.Output)

	require.True(t, e.fp.Last.IncludeComments)
	require.Equal(t, issue.FilterAll, e.fp.Last.State)
	require.Len(t, e.notes, 1)
}

func TestSync_NoChangesLeavesFileAlone(t *testing.T) {
	e := newEnv(t, issueOne())
	ctx := context.Background()
	_, err := e.syncer.Sync(ctx, DefaultOptions("o/r", "issues.org"))
	require.NoError(t, err)
	first := e.read(t, "issues.org")

	res, err := e.syncer.Sync(ctx, DefaultOptions("o/r", "issues.org"))
	require.NoError(t, err)
	require.False(t, res.Written)
	require.False(t, res.Report.HasChanges())
	require.Equal(t, first, e.read(t, "issues.org"))
	require.NoFileExists(t, filepath.Join(e.dir, "issues.org.bak"))

	runs, err := e.syncer.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestSync_UpdateKeepsPreambleAndBacksUp(t *testing.T) {
	e := newEnv(t)
	old := `#+TITLE: My board
#+SYNC_TIME: 2020-01-01T00:00:00Z
Some intro the user wrote.

* Notes
keep me

* TODO Old title :LINK:
:PROPERTIES:
:GITHUB_NUMBER: 1
:GITHUB_STATE: open
:GITHUB_UPDATED: [2024-01-01 Mon 00:00]
:END:
Old body

# --- End of GitHub synced content ---
my notes
`
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "issues.org"), []byte(old), 0o644))

	iss := issueOne()
	iss.State = issue.StateClosed
	iss.ClosedAt = iss.UpdatedAt
	e.fp.Issues = []issue.Issue{iss}

	res, err := e.syncer.Sync(context.Background(), DefaultOptions("o/r", "issues.org"))
	require.NoError(t, err)
	require.True(t, res.Written)
	require.Equal(t, "issues.org.bak", res.Backup)
	require.Equal(t, 1, res.Report.Updated)
	require.Equal(t, old, e.read(t, "issues.org.bak"))

	got := e.read(t, "issues.org")
	require.True(t, strings.HasPrefix(got, `#+TITLE: My board
#+SYNC_TIME: 2024-05-01T12:00:00Z
Some intro the user wrote.

* Notes
keep me

* DONE Crash on start :LINK:
`), got)
	require.Contains(t, got, "# --- End of GitHub synced content ---\nmy notes\n")

	run, err := e.syncer.Run(res.RunID)
	require.NoError(t, err)
	require.True(t, run.Written)
	require.Equal(t, 1, run.Report.Preserved)
	require.Len(t, run.Report.Entries, 1)
}

func TestSync_DryRunDoesNotWrite(t *testing.T) {
	e := newEnv(t, issueOne())
	opts := DefaultOptions("o/r", "issues.org")
	opts.DryRun = true

	res, err := e.syncer.Sync(context.Background(), opts)
	require.NoError(t, err)
	require.False(t, res.Written)
	require.True(t, res.Report.HasChanges())
	require.Contains(t, res.Output, "* TODO Crash on start")
	require.NoFileExists(t, filepath.Join(e.dir, "issues.org"))
}

func TestSync_NoBackupOption(t *testing.T) {
	e := newEnv(t, issueOne())
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "issues.org"), []byte("* Mine\n"), 0o644))

	opts := DefaultOptions("o/r", "issues.org")
	opts.Backup = false
	opts.Comments = false
	res, err := e.syncer.Sync(context.Background(), opts)
	require.NoError(t, err)
	require.True(t, res.Written)
	require.Empty(t, res.Backup)
	require.NoFileExists(t, filepath.Join(e.dir, "issues.org.bak"))
	require.False(t, e.fp.Last.IncludeComments)
	require.True(t, strings.HasPrefix(e.read(t, "issues.org"), "* Mine\n\n* TODO Crash on start"))
}

func TestSync_InvalidRepo(t *testing.T) {
	e := newEnv(t, issueOne())
	_, err := e.syncer.Sync(context.Background(), DefaultOptions("not-a-repo", "issues.org"))
	require.ErrorIs(t, err, apperr.ErrInvalidRepo)
	require.Zero(t, e.fp.Calls)
}

func TestSync_InvalidState(t *testing.T) {
	e := newEnv(t, issueOne())
	opts := DefaultOptions("o/r", "issues.org")
	opts.State = "merged"
	_, err := e.syncer.Sync(context.Background(), opts)
	require.Error(t, err)
	require.Zero(t, e.fp.Calls)
}

func TestSync_SourceErrorSurfacedAndRecorded(t *testing.T) {
	e := newEnv(t)
	e.fp.Err = &apperr.SourceError{Provider: "github", Kind: apperr.ErrAuth, Hint: "Run 'gh auth login'"}

	_, err := e.syncer.Sync(context.Background(), DefaultOptions("o/r", "issues.org"))
	require.ErrorIs(t, err, apperr.ErrAuth)
	require.NoFileExists(t, filepath.Join(e.dir, "issues.org"))
	require.Empty(t, e.notes)

	runs, err := e.syncer.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Contains(t, runs[0].Error, "authentication failed")
}

func TestSyncer_HistoryDisabled(t *testing.T) {
	_, store := testutil.TestStore(t)
	s := New(&testutil.Provider{Issues: []issue.Issue{issueOne()}}, store, WithLogger(testutil.Quiet()))

	res, err := s.Sync(context.Background(), DefaultOptions("o/r", "issues.org"))
	require.NoError(t, err)
	require.Empty(t, res.RunID)

	_, err = s.Runs(5)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSummarize(t *testing.T) {
	text := `#+TITLE: Board
* Notes
** TODO Sub task
* DONE Fixed :LINK:bug:
:PROPERTIES:
:GITHUB_NUMBER: 4
:END:
`
	sum := Summarize("issues.org", text, true)
	require.Equal(t, "Board", sum.Metadata["TITLE"])
	require.Equal(t, 3, sum.TotalHeadings)
	require.Equal(t, 2, sum.TopLevel)
	require.Equal(t, 1, sum.Linked)
	require.Equal(t, 1, sum.Open)
	require.Equal(t, 1, sum.Done)
	require.Len(t, sum.Headings, 3)
	require.Equal(t, 4, sum.Headings[2].Number)
	require.Equal(t, []string{"LINK", "bug"}, sum.Headings[2].Tags)
	require.Equal(t, 2, sum.Headings[1].Level)

	brief := Summarize("issues.org", text, false)
	require.Nil(t, brief.Headings)
	require.Equal(t, 3, brief.TotalHeadings)
}

func TestSyncer_Document(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "issues.org"), []byte("* A\n"), 0o644))

	doc, err := e.syncer.Document("issues.org")
	require.NoError(t, err)
	require.Equal(t, "* A\n", doc.Content)
	require.NotEmpty(t, doc.Checksum)

	_, err = e.syncer.Document("missing.org")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	sum, err := e.syncer.Inspect("issues.org", false)
	require.NoError(t, err)
	require.Equal(t, 1, sum.TotalHeadings)
}
