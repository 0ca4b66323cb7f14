// Package sandbox provides the isolated process environment every command
// runs in. Nothing executes directly on the host process's environment —
// each command gets its own process group, a sanitized environment, resource
// limits, and a bounded wall-clock timeout.
package sandbox

import (
	"context"
	"time"
)

// Sandbox executes a single command in an isolated environment.
type Sandbox interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

// ExecutionRequest defines what to run and under what constraints.
type ExecutionRequest struct {
	// Command is the literal argument vector (e.g. ["git", "status"]).
	// Shell-category callers put the interpreter here explicitly
	// (["/bin/sh", "-c", cmd]) — that is the only place a shell runs.
	Command []string

	// WorkingDir is the resolved workspace the command runs in.
	WorkingDir string

	// Env adds variables on top of the sanitized base environment.
	Env map[string]string

	// Timeout overrides the sandbox default. Zero = use default.
	Timeout time.Duration

	// Limits overrides resource limits. Zero values = sandbox defaults.
	Limits ResourceLimits
}

// ResourceLimits constrains the sandboxed process.
type ResourceLimits struct {
	MaxCPUSeconds int // CPU time limit (ulimit -t).
	MaxMemoryMB   int // Virtual memory limit in MB (ulimit -v).
}

// ExecutionResult captures the outcome of one sandboxed command.
//
// A non-zero exit code is not a Go error, and neither is a timeout: "the
// command ran and failed" is a normal outcome to report. TimedOut marks
// results produced by the wall-clock limit; the exit code is then the
// kill status of the process group.
type ExecutionResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}
