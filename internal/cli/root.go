// Package cli implements the orgweave command tree.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/OrgWeave/OrgWeave/internal/cli.version=1.2.3"
	version = "0.9.0"
	logo    = "\n" +
		"   ___              _       __\n" +
		"  / _ \\ _ __ __ _  | |     / /__  ____ __   _____\n" +
		" | | | | '__/ _` | | | /| / / _ \\/ __ `/ | / / _ \\\n" +
		" | |_| | | | (_| | | |/ |/ /  __/ /_/ /| |/ /  __/\n" +
		"  \\___/|_|  \\__, | |__/|__/\\___/\\__,_/ |___/\\___/\n" +
		"            |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "orgweave",
	Short: "OrgWeave - AI organization task orchestration",
	Long: color.CyanString(logo) +
		"\nTrees of AI role nodes that execute tasks by recursive delegation,\nresponse aggregation, and human-in-the-loop review.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(orgCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(hitlCmd)
}
