package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/acheng/runbox/internal/command"
	"github.com/acheng/runbox/internal/sandbox"
	"github.com/acheng/runbox/internal/workspace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSandbox returns scripted results keyed by the last argv element.
type fakeSandbox struct {
	results map[string]*sandbox.ExecutionResult
	calls   []string
}

func (f *fakeSandbox) Execute(_ context.Context, req sandbox.ExecutionRequest) (*sandbox.ExecutionResult, error) {
	key := req.Command[len(req.Command)-1]
	f.calls = append(f.calls, key)
	if res, ok := f.results[key]; ok {
		return res, nil
	}
	return &sandbox.ExecutionResult{ExitCode: 0}, nil
}

func testWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	return &workspace.Workspace{Path: t.TempDir()}
}

func TestRun_AllSucceed(t *testing.T) {
	fake := &fakeSandbox{results: map[string]*sandbox.ExecutionResult{
		"first":  {Stdout: "one\n"},
		"second": {Stdout: "two\n"},
	}}
	e := New(fake, Config{}, testLogger())

	spec := &command.Spec{Category: command.CategoryShell, Commands: []string{"first", "second"}}
	report := e.Run(context.Background(), spec, testWorkspace(t))

	if !report.OverallSuccess {
		t.Error("overall success = false")
	}
	if report.StoppedEarly {
		t.Error("stopped early = true")
	}
	if len(report.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(report.Results))
	}
	if report.Results[0].Stdout != "one\n" || report.Results[1].Stdout != "two\n" {
		t.Error("results out of order or missing output")
	}
}

func TestRun_FailFast(t *testing.T) {
	fake := &fakeSandbox{results: map[string]*sandbox.ExecutionResult{
		"boom": {ExitCode: 2, Stderr: "bad\n"},
	}}
	e := New(fake, Config{}, testLogger())

	spec := &command.Spec{
		Category: command.CategoryShell,
		Commands: []string{"ok", "boom", "never"},
	}
	report := e.Run(context.Background(), spec, testWorkspace(t))

	if report.OverallSuccess {
		t.Error("overall success = true after a failure")
	}
	if !report.StoppedEarly {
		t.Error("stopped early = false with a command remaining")
	}
	if len(report.Results) != 2 {
		t.Fatalf("results = %d, want 2 (third command must not run)", len(report.Results))
	}
	if got := fake.calls; len(got) != 2 || got[1] != "boom" {
		t.Errorf("sandbox calls = %v", got)
	}
	if report.Results[1].ExitCode != 2 {
		t.Errorf("failing exit code = %d, want 2", report.Results[1].ExitCode)
	}
}

func TestRun_LastCommandFailure(t *testing.T) {
	fake := &fakeSandbox{results: map[string]*sandbox.ExecutionResult{
		"boom": {ExitCode: 1},
	}}
	e := New(fake, Config{}, testLogger())

	spec := &command.Spec{Category: command.CategoryShell, Commands: []string{"ok", "boom"}}
	report := e.Run(context.Background(), spec, testWorkspace(t))

	if report.OverallSuccess {
		t.Error("overall success = true")
	}
	// Nothing was left to run, so the sequence was not truncated.
	if report.StoppedEarly {
		t.Error("stopped early = true with no commands remaining")
	}
}

func TestRun_TimeoutResult(t *testing.T) {
	fake := &fakeSandbox{results: map[string]*sandbox.ExecutionResult{
		"slow": {ExitCode: -1, TimedOut: true},
	}}
	e := New(fake, Config{}, testLogger())

	spec := &command.Spec{Category: command.CategoryShell, Commands: []string{"slow", "after"}}
	report := e.Run(context.Background(), spec, testWorkspace(t))

	if len(report.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(report.Results))
	}
	if !report.Results[0].TimedOut {
		t.Error("timed out = false")
	}
	if report.Results[0].Succeeded {
		t.Error("a timed-out command must not count as succeeded")
	}
	if !report.StoppedEarly {
		t.Error("stopped early = false")
	}
}

func TestRun_CanceledContext(t *testing.T) {
	fake := &fakeSandbox{}
	e := New(fake, Config{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	spec := &command.Spec{Category: command.CategoryShell, Commands: []string{"a", "b"}}
	report := e.Run(ctx, spec, testWorkspace(t))

	if len(report.Results) != 0 {
		t.Errorf("results = %d, want 0", len(report.Results))
	}
	if !report.StoppedEarly {
		t.Error("stopped early = false")
	}
	if report.OverallSuccess {
		t.Error("overall success = true")
	}
}

func TestRun_PythonFileWrite(t *testing.T) {
	fake := &fakeSandbox{}
	e := New(fake, Config{}, testLogger())
	ws := testWorkspace(t)

	spec := &command.Spec{
		Category: command.CategoryPython,
		Commands: []string{`echo "print('Hello World')" > hello.py`},
	}
	report := e.Run(context.Background(), spec, ws)

	if !report.OverallSuccess {
		t.Fatalf("overall success = false: %+v", report.Results)
	}
	if len(fake.calls) != 0 {
		t.Errorf("file creation went through the sandbox: %v", fake.calls)
	}

	data, err := os.ReadFile(filepath.Join(ws.Path, "hello.py"))
	if err != nil {
		t.Fatalf("reading created file: %v", err)
	}
	if string(data) != "print('Hello World')\n" {
		t.Errorf("content = %q", data)
	}
}

func TestRun_PythonTouch(t *testing.T) {
	e := New(&fakeSandbox{}, Config{}, testLogger())
	ws := testWorkspace(t)

	keep := filepath.Join(ws.Path, "keep.py")
	if err := os.WriteFile(keep, []byte("print('precious')\n"), 0644); err != nil {
		t.Fatal(err)
	}

	spec := &command.Spec{
		Category: command.CategoryPython,
		Commands: []string{"touch keep.py", "touch fresh.py"},
	}
	report := e.Run(context.Background(), spec, ws)
	if !report.OverallSuccess {
		t.Fatalf("overall success = false: %+v", report.Results)
	}

	// touch on an existing file leaves its contents alone.
	data, err := os.ReadFile(keep)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "print('precious')\n" {
		t.Errorf("existing file content = %q, want it untouched", data)
	}

	// touch on a missing file creates it empty.
	data, err = os.ReadFile(filepath.Join(ws.Path, "fresh.py"))
	if err != nil {
		t.Fatalf("reading created file: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("new file content = %q, want empty", data)
	}
}

func TestRun_PythonFileAppend(t *testing.T) {
	e := New(&fakeSandbox{}, Config{}, testLogger())
	ws := testWorkspace(t)

	spec := &command.Spec{
		Category: command.CategoryPython,
		Commands: []string{
			`echo "print(1)" > out.py`,
			`echo "print(2)" >> out.py`,
		},
	}
	report := e.Run(context.Background(), spec, ws)
	if !report.OverallSuccess {
		t.Fatalf("overall success = false: %+v", report.Results)
	}

	data, err := os.ReadFile(filepath.Join(ws.Path, "out.py"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "print(1)\nprint(2)\n" {
		t.Errorf("content = %q", data)
	}
}

func TestRun_ShellEndToEnd(t *testing.T) {
	sbx := sandbox.NewProcessSandbox(sandbox.ProcessConfig{}, testLogger())
	e := New(sbx, Config{}, testLogger())
	ws := testWorkspace(t)

	spec := &command.Spec{
		Category: command.CategoryShell,
		Commands: []string{
			"mkdir demo",
			"echo created > demo/marker.txt",
			"cat demo/marker.txt",
		},
	}
	report := e.Run(context.Background(), spec, ws)

	if !report.OverallSuccess {
		t.Fatalf("overall success = false: %+v", report.Results)
	}
	if got := strings.TrimSpace(report.Results[2].Stdout); got != "created" {
		t.Errorf("cat output = %q", got)
	}
}

func TestRun_ShellFailureEndToEnd(t *testing.T) {
	sbx := sandbox.NewProcessSandbox(sandbox.ProcessConfig{}, testLogger())
	e := New(sbx, Config{}, testLogger())

	spec := &command.Spec{
		Category: command.CategoryShell,
		Commands: []string{"cat does-not-exist.txt", "echo never"},
	}
	report := e.Run(context.Background(), spec, testWorkspace(t))

	if report.OverallSuccess {
		t.Error("overall success = true")
	}
	if len(report.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(report.Results))
	}
	if report.Results[0].ExitCode == 0 {
		t.Error("exit code = 0 for a missing file")
	}
}

func TestBuildArgv(t *testing.T) {
	tests := []struct {
		cat  command.Category
		cmd  string
		want []string
	}{
		{command.CategoryShell, "ls -la | wc -l", []string{"/bin/sh", "-c", "ls -la | wc -l"}},
		{command.CategoryPython, "python3 hello.py", []string{"python3", "hello.py"}},
		{command.CategoryPython, "python hello.py", []string{"python3", "hello.py"}},
		{command.CategoryGit, `git commit -m "initial"`, []string{"git", "commit", "-m", "initial"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.cat, tt.cmd), func(t *testing.T) {
			got, err := buildArgv(tt.cat, tt.cmd)
			if err != nil {
				t.Fatalf("buildArgv() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("argv = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("argv = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
