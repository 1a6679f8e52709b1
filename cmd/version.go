package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/spigell/resume-ranker/internal/config"
)

// Actual version can be specified in build command.
var version = "unknown"

// buildVersion falls back to the module version recorded by `go install`.
func buildVersion() string {
	if version != "unknown" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s version: %s\n", app, buildVersion())
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			d := config.DefaultMatching()
			fmt.Fprintf(out, "strategy: %s, candidates to score: %d, batch size: %d, workers: %d\n",
				d.Strategy, d.CandidatesToScore, d.BatchSize, d.ParallelWorkers)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolP("verbose", "v", false, "also print the matching defaults")
}
