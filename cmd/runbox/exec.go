package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	goutils "github.com/jkaninda/go-utils"
	"github.com/spf13/cobra"

	"github.com/acheng/runbox/internal/command"
	"github.com/acheng/runbox/internal/config"
	"github.com/acheng/runbox/internal/executor"
	"github.com/acheng/runbox/internal/workspace"
)

// Exit codes shared by the one-shot commands.
const (
	ExitSuccess  = 0
	ExitFailure  = 1
	ExitRejected = 2
)

var (
	execCategory   string
	execWorkDir    string
	execConfigPath string
	execDebug      bool
	execNoHistory  bool
)

var execCmd = &cobra.Command{
	Use:   "exec [commands...]",
	Short: "Execute pre-classified commands without translation",
	Long: `Execute one or more commands of a declared category directly, skipping
natural-language translation. Commands still pass validation and run inside
the workspace sandbox.

Examples:
  runbox exec -c git "git status" "git log --oneline -5"
  runbox exec -c shell -d myproject "ls -la"
  runbox exec -c python "python3 hello.py"

Exit codes:
  0  all commands succeeded
  1  a command failed
  2  the command list was rejected by validation`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVarP(&execCategory, "category", "c", "", "command category: python, shell, or git (required)")
	execCmd.Flags().StringVarP(&execWorkDir, "dir", "d", "", "working directory, relative to the project root")
	execCmd.Flags().StringVar(&execConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	execCmd.Flags().BoolVar(&execDebug, "debug", false, "enable debug logging")
	execCmd.Flags().BoolVar(&execNoHistory, "no-history", false, "do not record this execution")

	_ = execCmd.MarkFlagRequired("category")
}

func runExec(_ *cobra.Command, args []string) error {
	logger := newLogger(execDebug)

	cfg, err := config.Load(goutils.Env("RUNBOX_CONFIG", execConfigPath))
	if err != nil {
		return err
	}

	sc, err := initShared(cfg, logger, !execNoHistory)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := sc.Engine.HandleDirect(ctx, execCategory, args, execWorkDir)
	if err != nil {
		return exitForError(err)
	}

	printReport(report)
	if !report.OverallSuccess {
		os.Exit(ExitFailure)
	}
	return nil
}

// exitForError prints the rejection and exits with the rejection code. The
// returned error is never reached; it keeps RunE signatures honest.
func exitForError(err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if isRejection(err) {
		os.Exit(ExitRejected)
	}
	os.Exit(ExitFailure)
	return err
}

func isRejection(err error) bool {
	return errors.Is(err, command.ErrUnrecognizedCategory) ||
		errors.Is(err, command.ErrMalformedCommandList) ||
		errors.Is(err, command.ErrPathEscape) ||
		errors.Is(err, command.ErrForbiddenOperation) ||
		errors.Is(err, command.ErrCategoryMismatch) ||
		errors.Is(err, workspace.ErrInvalidWorkspace)
}

// printReport writes a human-readable execution report to stdout.
func printReport(report *executor.Report) {
	for i, r := range report.Results {
		status := "ok"
		switch {
		case r.TimedOut:
			status = "timeout"
		case !r.Succeeded:
			status = fmt.Sprintf("exit %d", r.ExitCode)
		}
		fmt.Printf("[%d/%d] %s (%s)\n", i+1, len(report.Results), r.Command, status)
		if r.Stdout != "" {
			fmt.Print(r.Stdout)
			if r.Stdout[len(r.Stdout)-1] != '\n' {
				fmt.Println()
			}
		}
		if r.Stderr != "" {
			fmt.Fprint(os.Stderr, r.Stderr)
			if r.Stderr[len(r.Stderr)-1] != '\n' {
				fmt.Fprintln(os.Stderr)
			}
		}
	}
	if report.StoppedEarly {
		fmt.Println("stopped early: a command failed before the list finished")
	}
}
