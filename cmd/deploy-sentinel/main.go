package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "deploy-sentinel",
	Short: "Tiered-variant deployment orchestrator with guaranteed rollback",
	Long: `deploy-sentinel pushes a reduced-capability variant of a deployable
artifact to a cloud environment, verifies the deployment against an
ordered chain of health endpoints, and unconditionally restores the
original artifact afterwards, whether the run succeeded, failed,
timed out or was interrupted.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"deploy-sentinel version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("deploy-sentinel version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
