// Package merge reconciles a parsed outline with a fresh issue list. It
// never drops a node and never touches a node that has no match key.
package merge

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/starford/orgsync/internal/issue"
	"github.com/starford/orgsync/internal/org"
)

// Managed property keys besides the reserved org keys.
const (
	PropURL       = "URL"
	PropCreated   = "CREATED"
	PropAuthor    = "AUTHOR"
	PropAssignees = "ASSIGNEES"
	PropMilestone = "MILESTONE"
	PropClosed    = "CLOSED"
	PropComments  = "COMMENTS"
)

// Engine merges issue lists into outlines. It holds no per-merge state and
// may be shared.
type Engine struct {
	linkTag  bool
	comments bool
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLinkTag controls whether synthesized headings carry the LINK tag.
func WithLinkTag(on bool) Option {
	return func(e *Engine) {
		e.linkTag = on
	}
}

// WithComments controls comment children. When off, existing comment
// children are carried untouched and none are synthesized.
func WithComments(on bool) Option {
	return func(e *Engine) {
		e.comments = on
	}
}

// WithLogger sets the logger for data-quality warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an Engine with the LINK tag and comments enabled.
func New(opts ...Option) *Engine {
	e := &Engine{linkTag: true, comments: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the state of one Merge call.
type run struct {
	*Engine
	index   map[int]*issue.Issue
	claimed map[int]bool
	report  *Report
}

// Merge returns a new forest reflecting issues and a report of what changed.
// previous is never modified; unchanged subtrees are shared with it.
func (e *Engine) Merge(issues []issue.Issue, previous []*org.Heading) ([]*org.Heading, *Report) {
	r := &run{
		Engine:  e,
		index:   make(map[int]*issue.Issue, len(issues)),
		claimed: make(map[int]bool),
		report:  &Report{TotalIssues: len(issues), TotalHeadings: len(previous)},
	}
	for i := range issues {
		n := issues[i].Number
		if _, dup := r.index[n]; dup {
			r.logger.Warn("merge: duplicate issue in input", slog.Int("number", n))
			r.report.warn("issue #%d listed more than once; using the first record", n)
			continue
		}
		r.index[n] = &issues[i]
	}

	walked, _ := r.walk(previous, true)
	out := slices.Clone(walked)

	var fresh []int
	for n := range maps.Keys(r.index) {
		if !r.claimed[n] {
			fresh = append(fresh, n)
		}
	}
	slices.Sort(fresh)
	for _, n := range fresh {
		iss := r.index[n]
		out = append(out, r.build(iss, nil, nil))
		r.report.record(n, iss.Title, ActionAdded, "")
	}
	return out, r.report
}

// walk visits nodes in document order and returns the resulting siblings.
// The input slice is returned as is when nothing below it changed.
func (r *run) walk(nodes []*org.Heading, top bool) ([]*org.Heading, bool) {
	if len(nodes) == 0 {
		return nodes, false
	}
	out := make([]*org.Heading, len(nodes))
	changed := false
	for i, h := range nodes {
		out[i] = r.visit(h, top)
		changed = changed || out[i] != h
	}
	if !changed {
		return nodes, false
	}
	return out, true
}

func (r *run) visit(h *org.Heading, top bool) *org.Heading {
	key, linked := h.MatchKey()
	if !linked {
		if top {
			r.report.Preserved++
		}
		return r.withChildren(h)
	}

	n, err := strconv.Atoi(key)
	if err != nil {
		r.logger.Warn("merge: invalid match key",
			slog.String("key", key), slog.Int("line", h.Line))
		r.report.warn("line %d: match key %q is not an issue number; heading preserved", h.Line, key)
		r.report.record(0, h.Title, ActionPreserved, "invalid match key")
		return r.withChildren(h)
	}
	if r.claimed[n] {
		r.logger.Warn("merge: duplicate match key",
			slog.Int("number", n), slog.Int("line", h.Line))
		r.report.warn("line %d: issue #%d already linked earlier in the document; heading preserved", h.Line, n)
		r.report.record(n, h.Title, ActionPreserved, "duplicate match key")
		return r.withChildren(h)
	}
	r.claimed[n] = true

	iss, ok := r.index[n]
	if !ok {
		r.report.record(n, h.Title, ActionPreserved, "not in issue list")
		return r.withChildren(h)
	}
	next, action, details := r.reconcile(iss, h)
	r.report.record(n, next.Title, action, details)
	return next
}

// withChildren returns h, or a copy of it when a descendant changed. The copy
// keeps h's verbatim text since its own lines are untouched.
func (r *run) withChildren(h *org.Heading) *org.Heading {
	kids, changed := r.walk(h.Children, false)
	if !changed {
		return h
	}
	c := h.Clone()
	c.Children = kids
	return c
}

func (r *run) reconcile(iss *issue.Issue, old *org.Heading) (*org.Heading, Action, string) {
	kids, kidsChanged := r.walk(old.Children, false)
	keep := func() *org.Heading {
		if !kidsChanged {
			return old
		}
		c := old.Clone()
		c.Children = kids
		return c
	}

	if upToDate(iss, old) {
		return keep(), ActionUnchanged, ""
	}
	fresh := r.build(iss, old, kids)
	if org.Equivalent(ownText(old, kids), ownText(fresh, fresh.Children)) {
		return keep(), ActionUnchanged, ""
	}
	return fresh, ActionUpdated, r.describe(iss, old, kids, fresh)
}

// upToDate applies the skip rule: the stored modification time, at minute
// precision, is not older than the issue's and the stored state matches.
func upToDate(iss *issue.Issue, old *org.Heading) bool {
	stored, ok := old.LastUpdated()
	if !ok {
		return false
	}
	if stored.Truncate(time.Minute).Before(iss.UpdatedAt.Truncate(time.Minute)) {
		return false
	}
	state := strings.TrimSpace(old.Properties.Value(org.StateProperty))
	return strings.EqualFold(state, string(iss.State))
}

// ownText is the rendering compared for unchanged detection: the node's own
// lines plus its comment children.
func ownText(h *org.Heading, children []*org.Heading) string {
	var b strings.Builder
	b.WriteString(org.RenderNode(h))
	for _, c := range children {
		if isComment(c) {
			b.WriteString("\n")
			b.WriteString(org.Render(c))
		}
	}
	return b.String()
}

// build synthesizes the heading for iss. old and kids are nil for a new
// issue; otherwise user tags, properties, trailing text and children of old
// are carried over.
func (r *run) build(iss *issue.Issue, old *org.Heading, kids []*org.Heading) *org.Heading {
	level := 1
	props := org.NewProperties()
	var oldTags []string
	var oldContent, planning string
	if old != nil {
		level = old.Level
		props = old.Properties.Clone()
		oldTags = old.Tags
		oldContent = old.Content
		planning = old.Planning
	}

	title := sanitizeTitle(iss.Title)
	if title == "" {
		title = fmt.Sprintf("Issue #%d", iss.Number)
	}
	tags := r.tags(iss, oldTags)
	h := &org.Heading{
		Level:      level,
		Title:      org.TitleFor(title, tags),
		State:      org.StateTodo,
		Tags:       tags,
		Planning:   planning,
		Properties: r.properties(iss, props),
		Content:    syncedContent(iss.Body, UserText(oldContent)),
		Children:   r.children(iss, level, kids),
	}
	if iss.IsClosed() {
		h.State = org.StateDone
		h.Closed = stamp(iss.ClosedAt)
	}
	return h
}

func (r *run) tags(iss *issue.Issue, oldTags []string) []string {
	var tags []string
	seen := make(map[string]bool)
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	if r.linkTag {
		add(org.LinkTag)
	}
	labels := make(map[string]bool, len(iss.Labels))
	for _, l := range iss.Labels {
		t := org.SanitizeTag(l)
		labels[t] = true
		add(t)
	}
	for _, t := range oldTags {
		if strings.EqualFold(t, org.LinkTag) || labels[t] {
			continue
		}
		add(t)
	}
	return tags
}

type property struct {
	key, value string
}

// properties refreshes the managed keys of props in place. Existing keys
// keep their position, absent values remove the key, new keys are appended.
func (r *run) properties(iss *issue.Issue, props *org.Properties) *org.Properties {
	managed := []property{
		{org.MatchKeyProperty, strconv.Itoa(iss.Number)},
		{PropURL, iss.URL},
		{org.StateProperty, string(iss.State)},
		{org.UpdatedProperty, stamp(iss.UpdatedAt)},
		{PropCreated, stamp(iss.CreatedAt)},
		{PropAuthor, iss.Author},
		{PropAssignees, strings.Join(iss.Assignees, ", ")},
		{PropMilestone, iss.Milestone},
		{PropClosed, ""},
	}
	if iss.IsClosed() {
		managed[len(managed)-1].value = stamp(iss.ClosedAt)
	}
	if r.comments {
		count := ""
		if n := len(iss.Comments); n > 0 {
			count = strconv.Itoa(n)
		}
		managed = append(managed, property{PropComments, count})
	}

	known := make(map[string]bool, len(managed))
	for _, p := range managed {
		known[p.key] = true
	}
	for _, k := range props.Keys() {
		if strings.HasPrefix(k, "GITHUB_") && !known[k] {
			props.Delete(k)
		}
	}
	for _, p := range managed {
		if p.value == "" {
			props.Delete(p.key)
			continue
		}
		props.Set(p.key, p.value)
	}
	return props
}

// children lays out fresh comment nodes first, then surviving old comment
// nodes that carry user text or children, then all other old children.
func (r *run) children(iss *issue.Issue, level int, kids []*org.Heading) []*org.Heading {
	if !r.comments {
		return slices.Clone(kids)
	}
	var oldComments, rest []*org.Heading
	for _, k := range kids {
		if isComment(k) {
			oldComments = append(oldComments, k)
		} else {
			rest = append(rest, k)
		}
	}

	comments := slices.Clone(iss.Comments)
	slices.SortStableFunc(comments, func(a, b issue.Comment) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	used := make([]bool, len(oldComments))
	var out []*org.Heading
	for _, c := range comments {
		title := commentTitle(c)
		var prev *org.Heading
		for i, oc := range oldComments {
			if !used[i] && oc.Title == title {
				used[i] = true
				prev = oc
				break
			}
		}
		out = append(out, commentNode(c, title, level+1, prev))
	}
	for i, oc := range oldComments {
		if used[i] {
			continue
		}
		if UserText(oc.Content) != "" || len(oc.Children) > 0 {
			out = append(out, oc)
			continue
		}
		r.logger.Debug("merge: dropping stale comment", slog.String("title", oc.Title))
	}
	return append(out, rest...)
}

func commentNode(c issue.Comment, title string, level int, prev *org.Heading) *org.Heading {
	var user string
	var kids []*org.Heading
	if prev != nil {
		user = UserText(prev.Content)
		kids = prev.Children
	}
	h := &org.Heading{
		Level:      level,
		Title:      title,
		Properties: org.NewProperties(),
		Content:    syncedContent(c.Body, user),
		Children:   kids,
	}
	if prev != nil && org.Equivalent(org.RenderNode(prev), org.RenderNode(h)) {
		return prev
	}
	return h
}

func commentTitle(c issue.Comment) string {
	author := strings.Join(strings.Fields(c.Author), "_")
	if author == "" {
		author = "ghost"
	}
	return fmt.Sprintf("Comment by @%s %s", author, org.Inactive(c.CreatedAt))
}

func (r *run) describe(iss *issue.Issue, old *org.Heading, kids []*org.Heading, fresh *org.Heading) string {
	var changes []string
	if fresh.Title != old.Title {
		changes = append(changes, "title")
	}
	prev := strings.ToLower(strings.TrimSpace(old.Properties.Value(org.StateProperty)))
	if prev != string(iss.State) {
		if prev == "" {
			prev = "none"
		}
		changes = append(changes, fmt.Sprintf("state (%s -> %s)", prev, iss.State))
	}
	if r.comments {
		n, err := strconv.Atoi(old.Properties.Value(PropComments))
		if err != nil {
			n = 0
			for _, k := range kids {
				if isComment(k) {
					n++
				}
			}
		}
		if n < len(iss.Comments) {
			changes = append(changes, "new comments")
		}
	}
	if len(changes) == 0 {
		return "content updated"
	}
	return strings.Join(changes, ", ")
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return org.Inactive(t)
}
