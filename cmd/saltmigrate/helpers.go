package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"saltmigrate/internal/config"
	"saltmigrate/internal/logging"
	"saltmigrate/internal/migrate"
	"saltmigrate/internal/project"
	"saltmigrate/internal/relocate"
	"saltmigrate/internal/runlog"
)

// stateDirName holds the run log database, next to the config file.
const stateDirName = ".saltmigrate"

// mustLoadConfig loads .saltmigrate.yaml, folds the CLI flags on top and
// validates the result. Flags win over file and environment values.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if saltFlag != "" {
		cfg.SaltPath = saltFlag
	}
	if destFlag != "" {
		cfg.DestPath = destFlag
	}
	if analysisFlag != "" {
		cfg.AnalysisDir = analysisFlag
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	if logFileFlag != "" {
		cfg.Logging.File = logFileFlag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error in configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// mustBuildLogger wires the console sink and the optional log file.
func mustBuildLogger(cfg *config.Config) (*slog.Logger, io.Closer) {
	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	return logger, closer
}

// resolveExtName takes the extension name from the argument list or detects
// it from project metadata in the extension checkout.
func resolveExtName(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	roots := []string{"."}
	if cfg.DestPath != "" {
		roots = []string{cfg.DestPath, "."}
	}
	for _, root := range roots {
		name, err := project.DetectName(root)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, project.ErrNoProject) {
			return "", err
		}
	}
	return "", fmt.Errorf("extension name neither given nor detectable: %w", project.ErrNoProject)
}

// saltTreeExists probes the Salt checkout, which stands in for the filtered
// tree the renames will be applied to.
func saltTreeExists(saltRoot string) relocate.ExistsFunc {
	return func(p relocate.Path) bool {
		_, err := os.Stat(filepath.Join(saltRoot, filepath.FromSlash(p.String())))
		return err == nil
	}
}

// migrationInputs bundles what the plan and rewrite commands share.
type migrationInputs struct {
	name   string
	dest   string
	result *migrate.Result
}

// mustBuildMigration resolves the extension name, selects the candidate
// paths from the analysis reports and builds the rename table. CLI filter
// flags override the configured ones wholesale, not per entry.
func mustBuildMigration(args, match, include, exclude []string, avoid bool, cfg *config.Config, logger *slog.Logger) *migrationInputs {
	name, err := resolveExtName(args, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(match) == 0 {
		match = cfg.Filter.Match
	}
	if len(include) == 0 {
		include = cfg.Filter.Include
	}
	if len(exclude) == 0 {
		exclude = cfg.Filter.Exclude
	}
	avoid = avoid || cfg.Filter.AvoidCollisions

	filter, err := migrate.NewFilter(name, match, include, exclude, cfg.Filter.DropPattern, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building path filter: %v\n", err)
		os.Exit(1)
	}
	candidates, err := filter.Candidates(cfg.AnalysisPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error selecting paths: %v\n", err)
		os.Exit(1)
	}
	m, err := migrate.NewMigration(name, candidates, saltTreeExists(cfg.SaltPath), avoid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving paths: %v\n", err)
		os.Exit(1)
	}
	res := migrate.NewResult(m)
	res.ContainerTests = migrate.DetectContainerTests(cfg.SaltPath, m.TestFiles())

	return &migrationInputs{
		name:   name,
		dest:   cfg.DestFor(name),
		result: res,
	}
}

func newContext() context.Context {
	return context.Background()
}

// finishRun copies the migration counters onto the run record and marks it
// complete.
func finishRun(run *runlog.Run, res *migrate.Result) {
	table := res.Migration.Table()
	run.Fingerprint = table.Fingerprint()
	run.Candidates = len(res.Migration.Candidates())
	run.Renames = table.Len()
	run.Conflicts = len(table.Conflicts())
	run.FilesChanged = res.FilesChanged
	run.Complete()
}

// recordRun stores the run outcome. A broken run log never fails the
// command itself.
func recordRun(run *runlog.Run, res *migrate.Result, logger *slog.Logger) {
	store, err := runlog.OpenStore(stateDirName, logger)
	if err != nil {
		logger.Warn("run log unavailable", "error", err)
		return
	}
	defer store.Close()
	if err := store.RecordRun(run, buildRunReport(res)); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
}

// runReport is the compressed payload stored with each run. It carries
// everything `runs show` needs to replay the summary without the checkout.
type runReport struct {
	Extension      string              `json:"extension"`
	Outcomes       []reportOutcome     `json:"outcomes"`
	ModuleTypes    []string            `json:"moduleTypes,omitempty"`
	LoaderTypes    []string            `json:"loaderTypes,omitempty"`
	FilterRepoArgs []string            `json:"filterRepoArgs,omitempty"`
	Missed         map[string][]string `json:"missed,omitempty"`
	MissedCritical map[string][]string `json:"missedCritical,omitempty"`
	Partial        map[string][]string `json:"partial,omitempty"`
	RewrittenCalls int                 `json:"rewrittenCalls,omitempty"`
	ContainerTests bool                `json:"containerTests,omitempty"`
}

type reportOutcome struct {
	Outcome string `json:"outcome"`
	Old     string `json:"old"`
	New     string `json:"new,omitempty"`
	Wanted  string `json:"wanted,omitempty"`
}

func buildRunReport(res *migrate.Result) *runReport {
	outcomes := res.Outcomes()
	rows := make([]reportOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		row := reportOutcome{Outcome: string(o.Outcome), Old: o.Old.String()}
		if o.Outcome != migrate.OutcomeKeep {
			row.New = o.New.String()
		}
		if o.Outcome == migrate.OutcomeConflict {
			row.Wanted = o.Wanted.String()
		}
		rows = append(rows, row)
	}
	return &runReport{
		Extension:      res.Migration.ExtName(),
		Outcomes:       rows,
		ModuleTypes:    res.Migration.ModuleTypes(),
		LoaderTypes:    res.Migration.LoaderTypes(),
		FilterRepoArgs: res.Migration.FilterRepoArgs(),
		Missed:         res.Dunder.MissedModules(),
		MissedCritical: res.Dunder.MissedCriticalModules(),
		Partial:        res.Dunder.PartialModules(),
		RewrittenCalls: res.Dunder.Rewritten,
		ContainerTests: res.ContainerTests,
	}
}
