// Package command defines the typed command specification that flows through
// the execution pipeline, and the parse/validate boundary that produces it.
//
// The parser is the only place raw LLM text is interpreted. Everything past
// it operates on a typed Spec — categories are a closed enum, commands are
// plain strings, and validation is purely structural (no I/O, no execution).
package command

import (
	"errors"
	"fmt"
	"strings"
)

// Category identifies which executor family a spec belongs to.
type Category string

const (
	CategoryPython Category = "python"
	CategoryShell  Category = "shell"
	CategoryGit    Category = "git"
)

// Sentinel errors for the parse/validate taxonomy. Handlers match with
// errors.Is to map each kind to a response; none of these ever reach
// execution.
var (
	ErrUnrecognizedCategory = errors.New("unrecognized command category")
	ErrMalformedCommandList = errors.New("malformed command list")
	ErrPathEscape           = errors.New("path escapes the project root")
	ErrForbiddenOperation   = errors.New("forbidden operation")
	ErrCategoryMismatch     = errors.New("command does not match category")
)

// ParseCategory normalizes a category token case-insensitively.
// Unknown tokens fail with ErrUnrecognizedCategory — the parser never
// guesses a default.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "python":
		return CategoryPython, nil
	case "shell":
		return CategoryShell, nil
	case "git":
		return CategoryGit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedCategory, s)
	}
}

// Spec is the typed representation of "what to run".
// Invariant: Commands is non-empty and each element is a single
// shell-invocable instruction string.
type Spec struct {
	Category Category `json:"category"`
	Commands []string `json:"commands"`
	WorkDir  string   `json:"work_dir,omitempty"` // Empty = project root.
}
