package executor

import (
	"time"

	"github.com/acheng/runbox/internal/command"
)

// CommandResult is the outcome of one executed command, in execution order.
type CommandResult struct {
	Command   string        `json:"command"`
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	Succeeded bool          `json:"succeeded"`
	TimedOut  bool          `json:"timed_out,omitempty"`
	Duration  time.Duration `json:"-"`
}

// Report is the full structured outcome of running a Spec.
type Report struct {
	Category       command.Category `json:"category"`
	Results        []CommandResult  `json:"results"`
	OverallSuccess bool             `json:"overall_success"`
	StoppedEarly   bool             `json:"stopped_early"`
}

// NewReport assembles per-command outcomes into a report. Pure assembly:
// OverallSuccess is the conjunction of all individual successes, and a
// truncated sequence is never an overall success.
func NewReport(category command.Category, results []CommandResult, stoppedEarly bool) *Report {
	overall := !stoppedEarly
	for _, r := range results {
		if !r.Succeeded {
			overall = false
			break
		}
	}
	return &Report{
		Category:       category,
		Results:        results,
		OverallSuccess: overall,
		StoppedEarly:   stoppedEarly,
	}
}
