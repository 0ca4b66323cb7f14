// Runbox — natural-language command execution with a validation boundary.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "runbox",
	Short: "Runbox — turn natural-language instructions into sandboxed commands.",
	Long: `Runbox translates natural-language instructions into python, shell, or git
command lists, validates every command against a workspace boundary, and runs
them in a resource-limited process sandbox. Nothing executes unless the whole
command list passed validation.`,
	RunE:          runServe, // Default to gateway mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, execCmd, runCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
