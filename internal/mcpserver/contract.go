package mcpserver

// FormatContract describes the Org outline that orgsync maintains, so LLM
// consumers know which parts of the file they may edit.
const FormatContract = `# orgsync Outline Format

orgsync keeps an Org-mode file in step with the issues of one repository.
Each issue is one heading. Headings without the match key are never touched.

## Linked issue heading

` + "```" + `org
* TODO Login fails on Safari :LINK:bug:frontend:
:PROPERTIES:
:GITHUB_NUMBER: 42
:GITHUB_STATE: open
:GITHUB_UPDATED: [2024-03-02 Sat 09:15]
:URL: https://github.com/owner/repo/issues/42
:CREATED: [2024-03-01 Fri 08:00]
:AUTHOR: alice
:ASSIGNEES: bob
:COMMENTS: 1
:END:
Issue body converted from Markdown.

# --- End of GitHub synced content ---
Your own notes go here and survive every sync.

** Comment by @bob [2024-03-02 Sat 09:15]
Comment text.
` + "```" + `

Closed issues use ` + "`" + `DONE` + "`" + ` and carry a ` + "`" + `CLOSED: [...]` + "`" + ` planning line.

## Rules

1. **The match key is ` + "`" + `:GITHUB_NUMBER:` + "`" + `.** Do not edit or remove it on a linked
   heading. A heading is linked when it has this property and the ` + "`" + `LINK` + "`" + ` tag.
2. **Machine text** sits above the marker line
   ` + "`" + `# --- End of GitHub synced content ---` + "`" + ` and is rewritten on each sync.
   Everything below the marker is preserved.
3. **Tags**: ` + "`" + `LINK` + "`" + ` comes first, then issue labels, then your own tags.
   Your own tags are kept.
4. **Properties**: orgsync refreshes GITHUB_*, URL, CREATED, AUTHOR, ASSIGNEES,
   MILESTONE, CLOSED and COMMENTS. Other properties are kept in place.
5. **Children**: ` + "`" + `Comment by @user [...]` + "`" + ` children are synthesized. Any other
   child heading you add is kept.
6. **Unlinked headings** (no match key) and the preamble before the first
   heading are left byte for byte. Only ` + "`" + `#+SYNC_TIME:` + "`" + ` is refreshed when
   something changed.
7. Body lines that begin with ` + "`" + `*` + "`" + ` or ` + "`" + `#+` + "`" + ` are escaped with a leading ` + "`" + `, ` + "`" + `.
8. **Encoding** is UTF-8 with a trailing newline.

## Tools

- ` + "`" + `sync_issues` + "`" + ` runs a sync. Use ` + "`" + `dry_run` + "`" + ` to preview the report.
- ` + "`" + `inspect_document` + "`" + ` summarizes the outline structure.
- ` + "`" + `read_document` + "`" + ` returns the raw file.
- ` + "`" + `list_documents` + "`" + ` lists the other outlines under the document root.
- ` + "`" + `list_runs` + "`" + ` shows recent syncs with their reports.
`
