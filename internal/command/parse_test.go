package command

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCat  Category
		wantCmds []string
		wantDir  string
	}{
		{
			name:     "plain json",
			raw:      `{"type": "shell", "commands": ["mkdir demo", "ls -la"]}`,
			wantCat:  CategoryShell,
			wantCmds: []string{"mkdir demo", "ls -la"},
		},
		{
			name:     "markdown fenced",
			raw:      "```json\n{\"type\": \"git\", \"commands\": [\"git status\"]}\n```",
			wantCat:  CategoryGit,
			wantCmds: []string{"git status"},
		},
		{
			name:     "bare fence without language tag",
			raw:      "```\n{\"type\": \"shell\", \"commands\": [\"pwd\"]}\n```",
			wantCat:  CategoryShell,
			wantCmds: []string{"pwd"},
		},
		{
			name:     "surrounding prose",
			raw:      "Here is what I would run:\n{\"type\": \"python\", \"commands\": [\"python3 hello.py\"]}\nLet me know how it goes.",
			wantCat:  CategoryPython,
			wantCmds: []string{"python3 hello.py"},
		},
		{
			name:     "capitalized keys and category",
			raw:      `{"Type": "Git", "Commands": ["git log --oneline -5"]}`,
			wantCat:  CategoryGit,
			wantCmds: []string{"git log --oneline -5"},
		},
		{
			name:     "category key alias",
			raw:      `{"category": "shell", "commands": ["ls"]}`,
			wantCat:  CategoryShell,
			wantCmds: []string{"ls"},
		},
		{
			name:     "work_dir field",
			raw:      `{"type": "shell", "commands": ["ls"], "work_dir": "myproject"}`,
			wantCat:  CategoryShell,
			wantCmds: []string{"ls"},
			wantDir:  "myproject",
		},
		{
			name:     "workdir key alias",
			raw:      `{"type": "shell", "commands": ["ls"], "workdir": "other"}`,
			wantCat:  CategoryShell,
			wantCmds: []string{"ls"},
			wantDir:  "other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if spec.Category != tt.wantCat {
				t.Errorf("category = %q, want %q", spec.Category, tt.wantCat)
			}
			if !reflect.DeepEqual(spec.Commands, tt.wantCmds) {
				t.Errorf("commands = %v, want %v", spec.Commands, tt.wantCmds)
			}
			if spec.WorkDir != tt.wantDir {
				t.Errorf("work_dir = %q, want %q", spec.WorkDir, tt.wantDir)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"no json at all", "I cannot do that.", ErrMalformedCommandList},
		{"unknown category", `{"type": "ruby", "commands": ["ruby x.rb"]}`, ErrUnrecognizedCategory},
		{"missing category", `{"commands": ["ls"]}`, ErrUnrecognizedCategory},
		{"empty category", `{"type": "", "commands": []}`, ErrUnrecognizedCategory},
		{"missing commands", `{"type": "shell"}`, ErrMalformedCommandList},
		{"empty commands", `{"type": "shell", "commands": []}`, ErrMalformedCommandList},
		{"blank command element", `{"type": "shell", "commands": ["ls", "  "]}`, ErrMalformedCommandList},
		{"commands not a list", `{"type": "shell", "commands": "ls"}`, ErrMalformedCommandList},
		{"commands list of objects", `{"type": "shell", "commands": [{"run": "ls"}]}`, ErrMalformedCommandList},
		{"truncated json", `{"type": "shell", "commands": ["ls"`, ErrMalformedCommandList},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	for _, s := range []string{"python", "Python", " SHELL ", "git", "GIT"} {
		if _, err := ParseCategory(s); err != nil {
			t.Errorf("ParseCategory(%q) error = %v", s, err)
		}
	}
	for _, s := range []string{"", "bash", "node", "python2"} {
		if _, err := ParseCategory(s); !errors.Is(err, ErrUnrecognizedCategory) {
			t.Errorf("ParseCategory(%q) error = %v, want ErrUnrecognizedCategory", s, err)
		}
	}
}
