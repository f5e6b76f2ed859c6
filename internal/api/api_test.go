package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/orgsync/internal/apperr"
	"github.com/starford/orgsync/internal/issue"
	"github.com/starford/orgsync/internal/syncer"
	"github.com/starford/orgsync/internal/testutil"
)

type testEnv struct {
	dir    string
	stub   *testutil.Provider
	router http.Handler
}

// newTestEnv sets up a temp document dir, SQLite history, syncer and router.
// An empty token means auth is disabled.
func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	return newTestEnvSSE(t, token, nil)
}

func newTestEnvSSE(t *testing.T, token string, sse http.Handler) *testEnv {
	t.Helper()

	dir, store := testutil.TestStore(t)
	stub := &testutil.Provider{Issues: []issue.Issue{{
		Number:    7,
		Title:     "Login broken",
		Body:      "Steps to reproduce.",
		State:     issue.StateOpen,
		CreatedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 3, 2, 9, 15, 0, 0, time.UTC),
		Author:    "bob",
		URL:       "https://github.com/o/r/issues/7",
	}}}
	svc := syncer.New(stub, store,
		syncer.WithHistory(testutil.TestHistory(t)),
		syncer.WithLogger(testutil.Quiet()),
	)
	defaults := syncer.DefaultOptions("o/r", "issues.org")
	return &testEnv{
		dir:    dir,
		stub:   stub,
		router: NewRouter(svc, defaults, token != "", token, sse),
	}
}

func (e *testEnv) do(method, target, body, token string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestSyncAndGetDocument(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/sync", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("sync status = %d, body = %s", w.Code, w.Body.String())
	}
	var res SyncResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if !res.Written || !res.Created {
		t.Errorf("written = %v, created = %v, want both true", res.Written, res.Created)
	}
	if res.Report == nil || res.Report.Added != 1 {
		t.Errorf("report = %+v, want one added", res.Report)
	}

	w = env.do(http.MethodGet, "/document", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var doc DocumentDetail
	_ = json.Unmarshal(w.Body.Bytes(), &doc)
	if !strings.Contains(doc.Content, "* TODO Login broken :LINK:") {
		t.Errorf("content = %q", doc.Content)
	}
	if w.Header().Get("ETag") != `"`+doc.Checksum+`"` {
		t.Errorf("etag = %q, checksum = %q", w.Header().Get("ETag"), doc.Checksum)
	}
}

func TestGetDocument_NotModified(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(http.MethodPost, "/sync", "", "")

	w := env.do(http.MethodGet, "/document", "", "")
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req := httptest.NewRequest(http.MethodGet, "/document", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Errorf("status = %d, want 304", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("304 body = %q", w.Body.String())
	}
}

func TestSync_DryRunOverrides(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/sync", `{"dry_run":true,"state":"open","limit":5,"comments":false}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("sync status = %d, body = %s", w.Code, w.Body.String())
	}
	var res SyncResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Written || !res.DryRun {
		t.Errorf("written = %v, dry_run = %v", res.Written, res.DryRun)
	}
	if env.stub.Last.State != issue.FilterOpen || env.stub.Last.Limit != 5 || env.stub.Last.IncludeComments {
		t.Errorf("fetch options = %+v", env.stub.Last)
	}
	if _, err := os.Stat(filepath.Join(env.dir, "issues.org")); !os.IsNotExist(err) {
		t.Error("dry run should not write the document")
	}
}

func TestSync_BadRequests(t *testing.T) {
	env := newTestEnv(t, "")

	cases := map[string]string{
		"bad json":  `{`,
		"bad state": `{"state":"merged"}`,
		"bad repo":  `{"repo":"nope"}`,
		"unknown":   `{"labels":["bug"]}`,
	}
	for name, body := range cases {
		w := env.do(http.MethodPost, "/sync", body, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, w.Code)
		}
	}
}

func TestSync_SourceErrorIsBadGateway(t *testing.T) {
	env := newTestEnv(t, "")
	env.stub.Err = &apperr.SourceError{Provider: "github", Kind: apperr.ErrAuth, Hint: "Run 'gh auth login'"}

	w := env.do(http.MethodPost, "/sync", "", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var body errorWithHint
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Hint != "Run 'gh auth login'" {
		t.Errorf("hint = %q", body.Hint)
	}
	if !strings.Contains(body.Error, "authentication failed") {
		t.Errorf("error = %q", body.Error)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	env := newTestEnv(t, "")

	for _, target := range []string{"/document", "/document/headings"} {
		w := env.do(http.MethodGet, target, "", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s = %d, want 404", target, w.Code)
		}
	}
}

func TestGetHeadings(t *testing.T) {
	env := newTestEnv(t, "")
	if w := env.do(http.MethodPost, "/sync", "", ""); w.Code != http.StatusOK {
		t.Fatalf("sync = %d", w.Code)
	}

	w := env.do(http.MethodGet, "/document/headings", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("headings = %d", w.Code)
	}
	var sum DocumentSummary
	_ = json.Unmarshal(w.Body.Bytes(), &sum)
	if sum.Linked != 1 || sum.Open != 1 {
		t.Errorf("linked = %d, open = %d", sum.Linked, sum.Open)
	}
	if len(sum.Headings) == 0 || sum.Headings[0].Number != 7 {
		t.Errorf("headings = %+v", sum.Headings)
	}
	if sum.Metadata["SYNC_REPO"] != "o/r" {
		t.Errorf("metadata = %v", sum.Metadata)
	}
}

func TestListDocuments(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodGet, "/documents", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"documents":[]`) {
		t.Fatalf("empty = %d %s", w.Code, w.Body.String())
	}

	env.do(http.MethodPost, "/sync", "", "")
	if err := os.WriteFile(filepath.Join(env.dir, "archive.org"), []byte("* Old\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w = env.do(http.MethodGet, "/documents", "", "")
	var list DocumentListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Documents) != 2 || list.Documents[0].Path != "archive.org" || list.Documents[1].Path != "issues.org" {
		t.Errorf("documents = %+v", list.Documents)
	}
}

func TestRuns(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(http.MethodPost, "/sync", "", "")
	env.do(http.MethodPost, "/sync", `{"dry_run":true}`, "")

	w := env.do(http.MethodGet, "/runs?limit=1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("runs = %d", w.Code)
	}
	var list RunListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(list.Runs))
	}
	if !list.Runs[0].DryRun {
		t.Error("newest run should be the dry run")
	}

	w = env.do(http.MethodGet, "/runs/"+list.Runs[0].ID, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("run = %d", w.Code)
	}

	w = env.do(http.MethodGet, "/runs/does-not-exist", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing run = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_TokenMode(t *testing.T) {
	env := newTestEnv(t, "secret")

	if w := env.do(http.MethodGet, "/runs", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}
	if w := env.do(http.MethodGet, "/runs", "", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := env.do(http.MethodGet, "/runs", "", "secret"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
	if w := env.do(http.MethodGet, "/runs?access_token=secret", "", ""); w.Code != http.StatusOK {
		t.Errorf("query token = %d, want 200", w.Code)
	}
	if w := env.do(http.MethodPost, "/sync?access_token=secret", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("query token on POST = %d, want 401", w.Code)
	}
	w := env.do(http.MethodGet, "/runs", "", "wrong")
	if got := w.Header().Get("WWW-Authenticate"); got == "" {
		t.Error("401 should carry WWW-Authenticate")
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	env := newTestEnv(t, "")

	if w := env.do(http.MethodGet, "/runs", "", ""); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	env := newTestEnvSSE(t, "secret", blockingSSE)

	if w := env.do(http.MethodGet, "/events", "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	env := newTestEnvSSE(t, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}

func TestSSEEvents_NotMounted(t *testing.T) {
	env := newTestEnv(t, "")

	if w := env.do(http.MethodGet, "/events", "", ""); w.Code != http.StatusNotFound {
		t.Errorf("events without handler = %d, want 404", w.Code)
	}
}
