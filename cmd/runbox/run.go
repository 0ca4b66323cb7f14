package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	goutils "github.com/jkaninda/go-utils"
	"github.com/spf13/cobra"

	"github.com/acheng/runbox/internal/config"
)

var (
	runWorkDir    string
	runConfigPath string
	runDebug      bool
	runNoHistory  bool
)

var runCmd = &cobra.Command{
	Use:   "run [instruction]",
	Short: "Translate a natural-language instruction and execute it",
	Long: `Send an instruction to the configured LLM provider, validate the
commands it proposes, and run them inside the workspace sandbox.

Examples:
  runbox run "create a hello.py that prints Hello World and run it"
  runbox run -d myproject "show the last five git commits"

Exit codes:
  0  all commands succeeded
  1  a command failed or translation was unavailable
  2  the proposed commands were rejected by validation`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runWorkDir, "dir", "d", "", "working directory, relative to the project root")
	runCmd.Flags().StringVar(&runConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "enable debug logging")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "do not record this execution")
}

func runRun(_ *cobra.Command, args []string) error {
	logger := newLogger(runDebug)

	cfg, err := config.Load(goutils.Env("RUNBOX_CONFIG", runConfigPath))
	if err != nil {
		return err
	}

	sc, err := initShared(cfg, logger, !runNoHistory)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	if sc.Translator == nil {
		fmt.Fprintln(os.Stderr, "Error: no LLM provider configured (set ANTHROPIC_API_KEY or OPENAI_API_KEY)")
		os.Exit(ExitFailure)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instruction := strings.Join(args, " ")
	report, err := sc.Engine.HandleNaturalLanguage(ctx, instruction, runWorkDir)
	if err != nil {
		return exitForError(err)
	}

	printReport(report)
	if !report.OverallSuccess {
		os.Exit(ExitFailure)
	}
	return nil
}
