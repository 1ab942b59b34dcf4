package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"saltmigrate/internal/logging"
	"saltmigrate/internal/report"
	"saltmigrate/internal/runlog"
)

var (
	runsExtension string
	runsMode      string
	runsLimit     int
	runsOlderThan time.Duration
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded migration runs",
	Long: `List the migration runs recorded in ` + stateDirName + `/runs.db, newest
first.

Examples:
  saltmigrate runs
  saltmigrate runs --extension mysql --mode rewrite
  saltmigrate runs show 4f1c
  saltmigrate runs prune --older-than 720h`,
	Run: runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run including its stored report",
	Long: `Show a single run. The ID may be abbreviated to any unique prefix, such
as the one printed by the run listing.`,
	Args: cobra.ExactArgs(1),
	Run:  runRunsShow,
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old finished runs",
	Run:   runRunsPrune,
}

func init() {
	runsCmd.Flags().StringVar(&runsExtension, "extension", "", "Only list runs for this extension")
	runsCmd.Flags().StringVar(&runsMode, "mode", "", "Only list runs with this mode (plan, rewrite)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
	runsPruneCmd.Flags().DurationVar(&runsOlderThan, "older-than", 30*24*time.Hour, "Delete finished runs older than this")
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}

// mustOpenStore opens the run log with a discard logger so store
// housekeeping does not interleave with the listing output.
func mustOpenStore() *runlog.Store {
	store, err := runlog.OpenStore(stateDirName, logging.NewDiscardLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening run log: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runRunsList(cmd *cobra.Command, args []string) {
	store := mustOpenStore()
	defer store.Close()

	runs, err := store.ListRuns(runlog.ListOptions{
		Extension: runsExtension,
		Mode:      runlog.Mode(runsMode),
		Limit:     runsLimit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing runs: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}
	report.RunsTable(os.Stdout, runs)
}

// resolveRun accepts a full run ID or any unique prefix of one.
func resolveRun(store *runlog.Store, id string) (*runlog.Run, error) {
	run, err := store.GetRun(id)
	if err == nil {
		return run, nil
	}
	runs, listErr := store.ListRuns(runlog.ListOptions{Limit: 100})
	if listErr != nil {
		return nil, err
	}
	var match *runlog.Run
	for _, r := range runs {
		if !strings.HasPrefix(r.ID, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("run ID %s is ambiguous", id)
		}
		match = r
	}
	if match == nil {
		return nil, err
	}
	return match, nil
}

func runRunsShow(cmd *cobra.Command, args []string) {
	store := mustOpenStore()
	defer store.Close()

	run, err := resolveRun(store, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run:          %s\n", run.ID)
	fmt.Printf("Extension:    %s\n", run.Extension)
	fmt.Printf("Mode:         %s\n", run.Mode)
	fmt.Printf("Fingerprint:  %s\n", run.Fingerprint)
	fmt.Printf("Started:      %s\n", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Printf("Finished:     %s (%s)\n", run.FinishedAt.Format(time.RFC3339), run.Duration().Round(time.Millisecond))
	}
	fmt.Printf("Candidates:   %d\n", run.Candidates)
	fmt.Printf("Renames:      %d\n", run.Renames)
	fmt.Printf("Conflicts:    %d\n", run.Conflicts)
	fmt.Printf("Files changed: %d\n", run.FilesChanged)
	if run.Error != "" {
		fmt.Printf("Error:        %s\n", run.Error)
	}

	payload, err := store.GetReport(run.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading report: %v\n", err)
		os.Exit(1)
	}
	if len(payload) == 0 {
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
	fmt.Println(buf.String())
}

func runRunsPrune(cmd *cobra.Command, args []string) {
	store := mustOpenStore()
	defer store.Close()

	removed, err := store.CleanupOldRuns(runsOlderThan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error pruning runs: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d runs.\n", removed)
}
