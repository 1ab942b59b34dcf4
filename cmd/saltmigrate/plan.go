package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"saltmigrate/internal/report"
	"saltmigrate/internal/runlog"
)

var (
	planMatch   []string
	planInclude []string
	planExclude []string
	planAvoid   bool
)

var planCmd = &cobra.Command{
	Use:   "plan [name]",
	Short: "Compute and report the migration without touching any files",
	Long: `Select the paths belonging to an extension, resolve their new locations
and report the outcome, including the git filter-repo arguments that
perform the path extraction.

The extension name is taken from the argument or detected from the
extension checkout (copier answers or pyproject).

Examples:
  saltmigrate plan mysql
  saltmigrate plan mysql -m mysql -m mysql_support
  saltmigrate plan mysql -i 'salt/modules/mysql_*' -e 'doc/*'
  saltmigrate plan --avoid-collisions mysql`,
	Args: cobra.MaximumNArgs(1),
	Run:  runPlan,
}

func init() {
	planCmd.Flags().StringArrayVarP(&planMatch, "match", "m", nil, "Substring to select paths by (repeatable, default: the extension name)")
	planCmd.Flags().StringArrayVarP(&planInclude, "include", "i", nil, "Glob of paths to include even when the drop pattern hits (repeatable)")
	planCmd.Flags().StringArrayVarP(&planExclude, "exclude", "e", nil, "Glob of paths to exclude (repeatable)")
	planCmd.Flags().BoolVar(&planAvoid, "avoid-collisions", false, "Rename all arriving tests instead of probing for collisions")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) {
	start := time.Now()
	cfg := mustLoadConfig()
	logger, closer := mustBuildLogger(cfg)
	defer closer.Close()

	in := mustBuildMigration(args, planMatch, planInclude, planExclude, planAvoid, cfg, logger)
	res := in.result
	run := runlog.NewRun(in.name, runlog.ModePlan)

	printer := report.NewPrinter(os.Stdout)
	printer.Summary(res, res.PredictedNonPytests(cfg.SaltPath), in.dest)

	fmt.Println()
	fmt.Println("Extract the paths with git filter-repo:")
	for _, arg := range res.Migration.FilterRepoArgs() {
		fmt.Println("  " + arg)
	}

	finishRun(run, res)
	recordRun(run, res, logger)
	logger.Debug("plan completed",
		"extension", in.name,
		"candidates", len(res.Migration.Candidates()),
		"durationMs", time.Since(start).Milliseconds())
}
