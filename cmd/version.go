package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"backy/internal/orchestrator"
)

var (
	buildTime string
	gitCommit string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print backy's version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("backy %s\n", orchestrator.ToolVersion)
		if buildTime != "" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
		if gitCommit != "" {
			fmt.Printf("  commit: %s\n", gitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// SetVersionInfo records build-time metadata injected via -ldflags, mirroring
// the teacher's main.go wiring.
func SetVersionInfo(bt, gc string) {
	buildTime = bt
	gitCommit = gc
}
