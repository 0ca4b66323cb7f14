// Package executor runs a validated command spec against a resolved
// workspace, strictly sequentially, with fail-fast semantics: the first
// non-zero exit, timeout, or cancellation halts the remaining sequence.
//
// Commands run as literal argument vectors wherever possible. The shell
// category is the single place a shell interpreter is invoked per command
// string; python file-creation directives are performed by writing the file
// directly, never by handing the string to a shell.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/acheng/runbox/internal/command"
	"github.com/acheng/runbox/internal/sandbox"
	"github.com/acheng/runbox/internal/workspace"
)

// Config configures per-command execution.
type Config struct {
	CommandTimeout time.Duration // Wall-clock limit per command. Zero = sandbox default.
}

// Executor runs specs through the sandbox.
type Executor struct {
	sandbox sandbox.Sandbox
	config  Config
	logger  *slog.Logger
}

// New creates an Executor that delegates process isolation to the sandbox.
func New(sbx sandbox.Sandbox, cfg Config, logger *slog.Logger) *Executor {
	return &Executor{sandbox: sbx, config: cfg, logger: logger}
}

// Run executes spec.Commands in order inside ws. Each command's exit code,
// stdout, and stderr are captured; the first failure truncates the sequence
// and sets StoppedEarly. Already-completed results are always preserved,
// including when ctx is canceled mid-sequence.
func (e *Executor) Run(ctx context.Context, spec *command.Spec, ws *workspace.Workspace) *Report {
	results := make([]CommandResult, 0, len(spec.Commands))
	stoppedEarly := false

	for i, cmd := range spec.Commands {
		if ctx.Err() != nil {
			stoppedEarly = true
			break
		}

		res := e.runOne(ctx, spec.Category, cmd, ws)
		results = append(results, res)

		e.logger.Info("command executed",
			slog.String("category", string(spec.Category)),
			slog.String("command", cmd),
			slog.Int("exit_code", res.ExitCode),
			slog.Bool("succeeded", res.Succeeded),
			slog.Duration("duration", res.Duration),
		)

		if !res.Succeeded {
			if i < len(spec.Commands)-1 {
				stoppedEarly = true
			}
			break
		}
	}

	// Cancellation mid-run also truncates.
	if ctx.Err() != nil && len(results) < len(spec.Commands) {
		stoppedEarly = true
	}

	return NewReport(spec.Category, results, stoppedEarly)
}

// runOne dispatches a single command by category.
func (e *Executor) runOne(ctx context.Context, cat command.Category, cmd string, ws *workspace.Workspace) CommandResult {
	// Python file-creation directives are performed directly.
	if cat == command.CategoryPython {
		if fw, ok := command.ParseFileWrite(cmd); ok {
			return e.writeFile(cmd, fw, ws)
		}
	}

	argv, err := buildArgv(cat, cmd)
	if err != nil {
		// Validation should have caught this; record it as a failed result
		// rather than crashing the request.
		return CommandResult{Command: cmd, ExitCode: -1, Stderr: err.Error()}
	}

	res, err := e.sandbox.Execute(ctx, sandbox.ExecutionRequest{
		Command:    argv,
		WorkingDir: ws.Path,
		Timeout:    e.config.CommandTimeout,
	})
	if err != nil {
		// Context cancellation or a spawn failure. Either way the command
		// did not complete; record a failed result.
		return CommandResult{Command: cmd, ExitCode: -1, Stderr: err.Error()}
	}

	return CommandResult{
		Command:   cmd,
		ExitCode:  res.ExitCode,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		Succeeded: res.ExitCode == 0 && !res.TimedOut,
		TimedOut:  res.TimedOut,
		Duration:  res.Duration,
	}
}

// writeFile performs a python-category file-creation directive.
func (e *Executor) writeFile(cmd string, fw *command.FileWrite, ws *workspace.Workspace) CommandResult {
	target := fw.Path
	if !filepath.IsAbs(target) {
		target = filepath.Join(ws.Path, target)
	}
	// The validator already confined the path; re-check against the
	// workspace before touching the filesystem.
	if target != ws.Path && !strings.HasPrefix(target, ws.Path+string(filepath.Separator)) {
		return CommandResult{Command: cmd, ExitCode: -1, Stderr: fmt.Sprintf("target %s outside workspace", fw.Path)}
	}

	start := time.Now()
	var err error
	switch {
	case fw.Touch:
		// Like touch: create when missing, leave existing contents alone.
		var f *os.File
		f, err = os.OpenFile(target, os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			err = f.Close()
			now := time.Now()
			_ = os.Chtimes(target, now, now)
		}
	case fw.Append:
		var f *os.File
		f, err = os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			_, err = f.WriteString(fw.Content)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}
	default:
		err = os.WriteFile(target, []byte(fw.Content), 0644)
	}

	if err != nil {
		return CommandResult{Command: cmd, ExitCode: 1, Stderr: err.Error(), Duration: time.Since(start)}
	}
	return CommandResult{Command: cmd, ExitCode: 0, Succeeded: true, Duration: time.Since(start)}
}

// buildArgv turns a command string into the argv for its category.
func buildArgv(cat command.Category, cmd string) ([]string, error) {
	switch cat {
	case command.CategoryShell:
		// The one legitimate shell invocation: one interpreter per command
		// string, so pipes and redirects inside the workspace still work.
		return []string{"/bin/sh", "-c", cmd}, nil
	case command.CategoryPython:
		argv, ok := command.SplitWords(cmd)
		if !ok || len(argv) == 0 {
			return nil, fmt.Errorf("cannot tokenize python command")
		}
		// Normalize the interpreter name; python2 is long gone.
		if argv[0] == "python" {
			argv[0] = "python3"
		}
		return argv, nil
	case command.CategoryGit:
		argv, ok := command.SplitWords(cmd)
		if !ok || len(argv) == 0 {
			return nil, fmt.Errorf("cannot tokenize git command")
		}
		return argv, nil
	default:
		return nil, fmt.Errorf("unknown category %q", cat)
	}
}
