package command

import (
	"reflect"
	"testing"
)

func TestSplitWords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "git status", []string{"git", "status"}},
		{"flags", "git log --oneline -5", []string{"git", "log", "--oneline", "-5"}},
		{"double quoted", `git commit -m "initial commit"`, []string{"git", "commit", "-m", "initial commit"}},
		{"single quoted", "echo 'a b'", []string{"echo", "a b"}},
		{"escaped space", `echo a\ b`, []string{"echo", "a b"}},
		{"quote inside double", `python3 -c "print('hi')"`, []string{"python3", "-c", "print('hi')"}},
		{"empty quotes", `git commit -m ""`, []string{"git", "commit", "-m", ""}},
		{"tabs and newlines", "a\tb\nc", []string{"a", "b", "c"}},
		{"empty", "", nil},
		{"spaces only", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SplitWords(tt.in)
			if !ok {
				t.Fatalf("SplitWords(%q) ok = false", tt.in)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitWords(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitWords_Malformed(t *testing.T) {
	for _, in := range []string{`echo "unterminated`, "echo 'unterminated", `echo trailing\`} {
		if _, ok := SplitWords(in); ok {
			t.Errorf("SplitWords(%q) ok = true, want false", in)
		}
	}
}

func TestHasMetacharacters(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ls -la", false},
		{"git status", false},
		{"ls | wc -l", true},
		{"true && rm x", true},
		{"echo hi; ls", true},
		{"cat < input", true},
		{"echo hi > out", true},
		{"echo `date`", true},
		{"echo $(date)", true},
		{"echo $HOME", true},
		{`echo "$HOME"`, true},
		{"echo '$HOME'", false},
		{"echo 'a|b'", false},
		{`git commit -m "fix (again)"`, false},
		{`git commit -m "a; b"`, false},
	}

	for _, tt := range tests {
		if got := HasMetacharacters(tt.in); got != tt.want {
			t.Errorf("HasMetacharacters(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
