package main

import (
	"github.com/spf13/cobra"

	"saltmigrate/internal/version"
)

var (
	saltFlag     string
	destFlag     string
	analysisFlag string
	logLevelFlag string
	logFileFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "saltmigrate",
	Short: "saltmigrate - Salt extension migration helper",
	Long: `saltmigrate plans and applies the extraction of a Salt extension out of
the Salt monolith. It selects the paths that belong to the extension,
resolves their new locations including test-file collisions, and
rewrites module references, tests.support imports, patch() targets and
__utils__ indirections in the extracted sources.

The path extraction itself is done by git filter-repo; saltmigrate
computes the arguments for it and reports everything that needs manual
attention afterwards.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("saltmigrate version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&saltFlag, "salt", "", "Salt checkout to migrate out of (default \"salt\")")
	rootCmd.PersistentFlags().StringVar(&destFlag, "dest", "", "Extension checkout to operate on (default \"saltext-<name>\")")
	rootCmd.PersistentFlags().StringVar(&analysisFlag, "analysis", "", "git filter-repo analysis directory (default \"<salt>/.git/filter-repo/analysis\")")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (default \"info\")")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Also write JSON logs to this file")
}
