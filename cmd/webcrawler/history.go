package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nao1215/webcrawler/internal/config"
	"github.com/nao1215/webcrawler/internal/database"
	"github.com/nao1215/webcrawler/internal/report"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of runs "history list" shows by default.
const defaultHistoryLimit = 20

// errNoHistory is returned when no run has been recorded yet.
var errNoHistory = errors.New("no crawl history recorded yet (run 'webcrawler crawl' first)")

// NewHistoryCmd creates the history command and its subcommands.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded crawl runs",
		Long: `History shows the crawl runs recorded in the local history database.

Examples:
  # List the most recent runs
  webcrawler history list

  # Show one run with its pages and the URLs that were not crawled
  webcrawler history show 3

  # Export a run as Markdown
  webcrawler history show 3 --markdown > run-3.md

  # Compare the pages of two runs
  webcrawler history diff 2 3`,
	}

	cmd.PersistentFlags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDiffCmd())

	return cmd
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output in Markdown format")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryListCmd,
	}
	cmd.Flags().IntP("limit", "n", defaultHistoryLimit, "Maximum number of runs to list (0 lists all)")
	addOutputFlags(cmd)
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run in detail",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
	addOutputFlags(cmd)
	return cmd
}

func newHistoryDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff OLD_RUN_ID NEW_RUN_ID",
		Short: "Compare the pages of two runs",
		Long: `Diff lists the URLs that appear only in one of two runs and the URLs whose
content changed between them. Content is compared by hash.`,
		Args: cobra.ExactArgs(2),
		RunE: runHistoryDiffCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")
	return cmd
}

// openHistory opens an existing history database.
func openHistory(cmd *cobra.Command) (*database.HistoryDB, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if errors.Is(err, database.ErrDatabaseNotFound) {
		return nil, errNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, nil
}

// historyWriter picks the report writer matching the output flags.
func historyWriter(cmd *cobra.Command) (report.Writer, error) {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		return report.NewJSONWriter(out, report.WithPrettyPrint()), nil
	case markdownOutput:
		return report.NewMarkdownWriter(out), nil
	default:
		return report.NewTableWriter(out), nil
	}
}

func parseRunID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run ID %q: must be a positive integer", arg)
	}
	return id, nil
}

func runHistoryListCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	w, err := historyWriter(cmd)
	if err != nil {
		return err
	}

	db, err := openHistory(cmd)
	if errors.Is(err, errNoHistory) {
		return w.WriteRuns(nil)
	}
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	return w.WriteRuns(runs)
}

func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	runID, err := parseRunID(args[0])
	if err != nil {
		return err
	}
	w, err := historyWriter(cmd)
	if err != nil {
		return err
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	rep, err := loadRunReport(cmd.Context(), db, runID)
	if err != nil {
		return err
	}
	return w.WriteRun(rep)
}

// loadRunReport collects a run with its pages and failures.
func loadRunReport(ctx context.Context, db *database.HistoryDB, runID int64) (report.RunReport, error) {
	run, err := db.GetRun(ctx, runID)
	if err != nil {
		return report.RunReport{}, err
	}
	pages, err := db.RunPages(ctx, runID)
	if err != nil {
		return report.RunReport{}, err
	}
	failures, err := db.RunFailures(ctx, runID)
	if err != nil {
		return report.RunReport{}, err
	}
	return report.RunReport{Run: *run, Pages: pages, Failures: failures}, nil
}

// RunDiff is the difference between the pages of two runs.
type RunDiff struct {
	// PreviousRun and CurrentRun are the compared run IDs.
	PreviousRun int64 `json:"previous_run"`
	CurrentRun  int64 `json:"current_run"`

	// NewPages were crawled only in the current run.
	NewPages []string `json:"new_pages"`

	// RemovedPages were crawled only in the previous run.
	RemovedPages []string `json:"removed_pages"`

	// ChangedPages were crawled in both runs with different content.
	ChangedPages []string `json:"changed_pages"`

	// UnchangedCount is the number of pages with identical content.
	UnchangedCount int `json:"unchanged_count"`
}

// compareRuns diffs two page sets by URL and content hash. The URL lists
// are sorted.
func compareRuns(previousID, currentID int64, previous, current []database.Page) RunDiff {
	diff := RunDiff{
		PreviousRun:  previousID,
		CurrentRun:   currentID,
		NewPages:     []string{},
		RemovedPages: []string{},
		ChangedPages: []string{},
	}

	previousHashes := make(map[string]string, len(previous))
	for _, p := range previous {
		previousHashes[p.URL] = p.ContentHash
	}

	seen := make(map[string]struct{}, len(current))
	for _, p := range current {
		seen[p.URL] = struct{}{}
		hash, ok := previousHashes[p.URL]
		switch {
		case !ok:
			diff.NewPages = append(diff.NewPages, p.URL)
		case hash != p.ContentHash:
			diff.ChangedPages = append(diff.ChangedPages, p.URL)
		default:
			diff.UnchangedCount++
		}
	}
	for _, p := range previous {
		if _, ok := seen[p.URL]; !ok {
			diff.RemovedPages = append(diff.RemovedPages, p.URL)
		}
	}

	sort.Strings(diff.NewPages)
	sort.Strings(diff.RemovedPages)
	sort.Strings(diff.ChangedPages)
	return diff
}

func runHistoryDiffCmd(cmd *cobra.Command, args []string) error {
	previousID, err := parseRunID(args[0])
	if err != nil {
		return err
	}
	currentID, err := parseRunID(args[1])
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	for _, id := range []int64{previousID, currentID} {
		if _, err := db.GetRun(ctx, id); err != nil {
			return err
		}
	}
	previous, err := db.RunPages(ctx, previousID)
	if err != nil {
		return err
	}
	current, err := db.RunPages(ctx, currentID)
	if err != nil {
		return err
	}

	diff := compareRuns(previousID, currentID, previous, current)
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(diff)
	}
	return writeDiffTable(cmd.OutOrStdout(), diff)
}

// writeDiffTable renders a diff as a go-pretty table.
func writeDiffTable(w io.Writer, diff RunDiff) error {
	if len(diff.NewPages)+len(diff.RemovedPages)+len(diff.ChangedPages) == 0 {
		_, err := fmt.Fprintf(w, "Runs #%d and #%d crawled the same %d page(s) with identical content.\n",
			diff.PreviousRun, diff.CurrentRun, diff.UnchangedCount)
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run #%d -> Run #%d", diff.PreviousRun, diff.CurrentRun)
	t.AppendHeader(table.Row{"Change", "URL"})
	for _, u := range diff.NewPages {
		t.AppendRow(table.Row{"new", u})
	}
	for _, u := range diff.ChangedPages {
		t.AppendRow(table.Row{"changed", u})
	}
	for _, u := range diff.RemovedPages {
		t.AppendRow(table.Row{"removed", u})
	}
	t.AppendFooter(table.Row{"unchanged", diff.UnchangedCount})
	t.Render()
	return nil
}
