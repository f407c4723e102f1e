// Package cmd implements the reins CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "🐎"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "reins",
	Short: logo + " reins — assistant memory daemon",
	Long:  logo + " reins — memory consolidation and daily briefings for a personal assistant",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(memoryCmd)
}
