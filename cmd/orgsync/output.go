package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/orgsync/internal/history"
	"github.com/starford/orgsync/internal/merge"
	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/syncer"
)

const (
	formatTable = "table"
	formatYAML  = "yaml"
	formatJSON  = "json"
)

func printResult(w io.Writer, res *syncer.Result, path string) {
	switch {
	case res.DryRun:
		fmt.Fprintf(w, "Dry run for %s, %s not written\n", res.Repo, path)
	case res.Written && res.Created:
		fmt.Fprintf(w, "Created %s from %s\n", path, res.Repo)
	case res.Written:
		fmt.Fprintf(w, "Updated %s from %s\n", path, res.Repo)
	default:
		fmt.Fprintf(w, "%s is up to date with %s\n", path, res.Repo)
	}
	fmt.Fprintln(w, res.Report.Summary())
	printEntries(w, res.Report.Filter(merge.ActionAdded, merge.ActionUpdated))
	for _, e := range res.Report.Errors {
		fmt.Fprintf(w, "warning: %s\n", e)
	}
	if res.Backup != "" {
		fmt.Fprintf(w, "Backup: %s\n", res.Backup)
	}
}

func printEntries(w io.Writer, entries []merge.Entry) {
	for _, e := range entries {
		line := fmt.Sprintf("  %-9s #%d %s", e.Action, e.Number, e.Title)
		if e.Details != "" {
			line += " (" + e.Details + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func printSummary(w io.Writer, sum *models.DocumentSummary, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(sum); err != nil {
			return err
		}
		return enc.Close()
	case formatTable, "":
		return printSummaryTable(w, sum)
	default:
		return fmt.Errorf("unknown format %q (table, yaml, json)", format)
	}
}

func printSummaryTable(w io.Writer, sum *models.DocumentSummary) error {
	fmt.Fprintf(w, "File: %s\n", sum.Path)
	for _, k := range slices.Sorted(maps.Keys(sum.Metadata)) {
		fmt.Fprintf(w, "  %s: %s\n", k, sum.Metadata[k])
	}
	fmt.Fprintf(w, "Headings: %d (%d top level, %d linked, %d TODO, %d DONE)\n",
		sum.TotalHeadings, sum.TopLevel, sum.Linked, sum.Open, sum.Done)
	if len(sum.Headings) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tLEVEL\tSTATE\tISSUE\tTITLE\tTAGS")
	for _, h := range sum.Headings {
		number := ""
		if h.Number > 0 {
			number = "#" + strconv.Itoa(h.Number)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s%s\t%s\n",
			h.Line, h.Level, h.State, number,
			strings.Repeat("  ", h.Level-1), h.Title, strings.Join(h.Tags, ","))
	}
	return tw.Flush()
}

func printRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tREPO\tSTATUS\tSUMMARY")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Repo, runStatus(&r), r.Report.Summary())
	}
	tw.Flush()
}

func printRun(w io.Writer, r *history.Run) {
	fmt.Fprintf(w, "Run %s\n", r.ID)
	fmt.Fprintf(w, "  Repo:     %s (%s)\n", r.Repo, r.Provider)
	fmt.Fprintf(w, "  Document: %s\n", r.Document)
	fmt.Fprintf(w, "  Started:  %s\n", r.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  Status:   %s\n", runStatus(r))
	if r.Error != "" {
		fmt.Fprintf(w, "  Error:    %s\n", r.Error)
		return
	}
	fmt.Fprintf(w, "  Summary:  %s\n", r.Report.Summary())
	printEntries(w, r.Report.Filter(merge.ActionAdded, merge.ActionUpdated, merge.ActionUnchanged))
}

func runStatus(r *history.Run) string {
	switch {
	case r.Error != "":
		return "failed"
	case r.DryRun:
		return "dry-run"
	case r.Written:
		return "written"
	default:
		return "unchanged"
	}
}
