package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"saltmigrate/internal/migrate"
	"saltmigrate/internal/pysrc"
	"saltmigrate/internal/report"
	"saltmigrate/internal/rewrite"
	"saltmigrate/internal/runlog"
)

var (
	rewriteMatch   []string
	rewriteInclude []string
	rewriteExclude []string
	rewriteAvoid   bool
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [name]",
	Short: "Rewrite the extracted sources in the extension checkout",
	Long: `Run the source rewrites over an extension checkout that already holds
the extracted paths: module and tests.support imports, unittest.mock
patch() targets and __utils__ indirections. Findings that need manual
follow-up are reported and the run is recorded in the run log.

The filter flags must match the ones the plan was made with, otherwise
the recomputed rename table will not line up with the checkout.

Examples:
  saltmigrate rewrite mysql
  saltmigrate rewrite --dest saltext-mysql mysql`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRewrite,
}

func init() {
	rewriteCmd.Flags().StringArrayVarP(&rewriteMatch, "match", "m", nil, "Substring to select paths by (repeatable, default: the extension name)")
	rewriteCmd.Flags().StringArrayVarP(&rewriteInclude, "include", "i", nil, "Glob of paths to include even when the drop pattern hits (repeatable)")
	rewriteCmd.Flags().StringArrayVarP(&rewriteExclude, "exclude", "e", nil, "Glob of paths to exclude (repeatable)")
	rewriteCmd.Flags().BoolVar(&rewriteAvoid, "avoid-collisions", false, "Rename all arriving tests instead of probing for collisions")
	rootCmd.AddCommand(rewriteCmd)
}

func runRewrite(cmd *cobra.Command, args []string) {
	start := time.Now()
	cfg := mustLoadConfig()
	logger, closer := mustBuildLogger(cfg)
	defer closer.Close()

	in := mustBuildMigration(args, rewriteMatch, rewriteInclude, rewriteExclude, rewriteAvoid, cfg, logger)
	res := in.result

	if _, err := os.Stat(in.dest); err != nil {
		fmt.Fprintf(os.Stderr, "Error: extension checkout %s not found, run `saltmigrate plan` and extract the paths first\n", in.dest)
		os.Exit(1)
	}

	run := runlog.NewRun(in.name, runlog.ModeRewrite)
	ctx := newContext()
	parser := pysrc.NewParser()

	logger.Info("rewriting module references", "extension", in.name, "dest", in.dest)
	imports := rewrite.NewImportRewriter(parser, in.dest, res.Migration.ModuleImports(), res.Migration.TestSupportImports(), logger)
	changed, err := imports.Tree(ctx)
	if err != nil {
		failRun(run, res, logger, fmt.Errorf("rewriting module references: %w", err))
	}
	res.FilesChanged = changed

	logger.Info("rewriting __utils__ calls", "extension", in.name)
	index, err := rewrite.NewModuleIndex(ctx, parser, cfg.SaltPath, in.dest, in.name, pysrc.EnvGlobalSet(cfg.Rewrite.EnvGlobals))
	if err != nil {
		failRun(run, res, logger, fmt.Errorf("indexing utility modules: %w", err))
	}
	dunder := rewrite.NewDunderRewriter(parser, index, in.dest, logger)
	if err := dunder.Tree(ctx); err != nil {
		failRun(run, res, logger, fmt.Errorf("rewriting __utils__ calls: %w", err))
	}
	res.Dunder = dunder.Result()

	printer := report.NewPrinter(os.Stdout)
	printer.RewriteWarnings(res.Dunder)
	printer.Summary(res, res.SurvivingNonPytests(in.dest), in.dest)

	finishRun(run, res)
	recordRun(run, res, logger)
	logger.Debug("rewrite completed",
		"extension", in.name,
		"filesChanged", changed,
		"rewrittenCalls", res.Dunder.Rewritten,
		"durationMs", time.Since(start).Milliseconds())
}

// failRun records the failed run before exiting.
func failRun(run *runlog.Run, res *migrate.Result, logger *slog.Logger, err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	run.Fail(err)
	recordRun(run, res, logger)
	os.Exit(1)
}
