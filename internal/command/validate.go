package command

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Validator enforces category-specific structural safety rules on a Spec
// before anything is executed. Validation is pure — it inspects command
// strings only, touches no filesystem, and either passes the whole spec or
// fails the whole request. There is no partial validation.
//
// Shell rule set (resolving the informal safety claims of the original
// service into an explicit contract):
//
//   - Privileged or destructive executables are denied outright:
//     sudo, su, shutdown, reboot, halt, mkfs*, dd.
//   - rm with a recursive flag may not target /, the project root itself,
//     or any path that climbs out of the workspace.
//   - Redirection targets must stay inside the workspace: absolute paths
//     outside the project root and ".."-climbing paths are rejected.
//   - Write-capable commands (rm, mv, cp, tee, touch, mkdir, ln, chmod,
//     chown) may not take absolute-path arguments outside the project root.
//   - Everything else is allowed — the isolation model assumes cooperative
//     LLM output, not a hostile adversary.
type Validator struct {
	root string // Absolute project root.
}

// NewValidator creates a validator scoped to the given project root.
func NewValidator(root string) *Validator {
	return &Validator{root: filepath.Clean(root)}
}

// deniedExecutables are never allowed in shell-category commands.
var deniedExecutables = map[string]bool{
	"sudo":     true,
	"su":       true,
	"shutdown": true,
	"reboot":   true,
	"halt":     true,
	"dd":       true,
}

// writeCapable are shell executables whose path arguments mutate the
// filesystem, so their absolute-path arguments are confined to the root.
var writeCapable = map[string]bool{
	"rm":    true,
	"mv":    true,
	"cp":    true,
	"tee":   true,
	"touch": true,
	"mkdir": true,
	"ln":    true,
	"chmod": true,
	"chown": true,
}

// pythonInterpreters are the accepted argv[0] values for interpreter
// invocations in the python category.
var pythonInterpreters = map[string]bool{
	"python":  true,
	"python3": true,
}

// Validate checks every command in the spec against its category's rules.
// Returns nil on success; the spec value is never modified.
func (v *Validator) Validate(spec *Spec) error {
	if spec == nil || len(spec.Commands) == 0 {
		return fmt.Errorf("%w: empty spec", ErrMalformedCommandList)
	}

	for _, cmd := range spec.Commands {
		var err error
		switch spec.Category {
		case CategoryPython:
			err = v.validatePython(cmd)
		case CategoryShell:
			err = v.validateShell(cmd)
		case CategoryGit:
			err = v.validateGit(cmd)
		default:
			err = fmt.Errorf("%w: %q", ErrUnrecognizedCategory, spec.Category)
		}
		if err != nil {
			return fmt.Errorf("command %q: %w", cmd, err)
		}
	}
	return nil
}

// validatePython accepts interpreter invocations and .py file-creation
// directives, nothing else.
func (v *Validator) validatePython(cmd string) error {
	if fw, ok := ParseFileWrite(cmd); ok {
		if !strings.HasSuffix(fw.Path, ".py") {
			return fmt.Errorf("%w: file-creation target %q is not a .py file", ErrCategoryMismatch, fw.Path)
		}
		return v.checkPath(fw.Path)
	}

	if HasMetacharacters(cmd) {
		return fmt.Errorf("%w: shell metacharacters in python command", ErrCategoryMismatch)
	}
	args, ok := SplitWords(cmd)
	if !ok || len(args) == 0 {
		return fmt.Errorf("%w: cannot tokenize command", ErrCategoryMismatch)
	}
	if !pythonInterpreters[args[0]] {
		return fmt.Errorf("%w: %q is not a python interpreter invocation", ErrCategoryMismatch, args[0])
	}
	for _, a := range args[1:] {
		if err := v.checkPath(a); err != nil {
			return err
		}
	}
	return nil
}

// validateShell applies the deny rules documented on Validator.
func (v *Validator) validateShell(cmd string) error {
	segments, redirects, ok := scanShell(cmd)
	if !ok {
		return fmt.Errorf("%w: unbalanced quoting", ErrForbiddenOperation)
	}

	for _, target := range redirects {
		if err := v.checkPath(target); err != nil {
			return err
		}
	}

	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		exe := filepath.Base(seg[0])
		if deniedExecutables[exe] || strings.HasPrefix(exe, "mkfs") {
			return fmt.Errorf("%w: %s is not permitted", ErrForbiddenOperation, exe)
		}
		if exe == "rm" {
			if err := v.checkRecursiveRemove(seg); err != nil {
				return err
			}
		}
		if writeCapable[exe] {
			for _, a := range seg[1:] {
				if strings.HasPrefix(a, "-") {
					continue
				}
				if err := v.checkPath(a); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// validateGit accepts only direct git invocations.
func (v *Validator) validateGit(cmd string) error {
	if HasMetacharacters(cmd) {
		return fmt.Errorf("%w: shell metacharacters in git command", ErrCategoryMismatch)
	}
	args, ok := SplitWords(cmd)
	if !ok || len(args) == 0 {
		return fmt.Errorf("%w: cannot tokenize command", ErrCategoryMismatch)
	}
	if args[0] != "git" {
		return fmt.Errorf("%w: %q is not a git invocation", ErrCategoryMismatch, args[0])
	}
	for _, a := range args[1:] {
		if err := v.checkPath(a); err != nil {
			return err
		}
	}
	return nil
}

// checkRecursiveRemove rejects rm -r/-rf aimed at the root or anything
// climbing out of the workspace.
func (v *Validator) checkRecursiveRemove(args []string) error {
	recursive := false
	var targets []string
	for _, a := range args[1:] {
		if strings.HasPrefix(a, "-") {
			if strings.ContainsAny(a, "rR") {
				recursive = true
			}
			continue
		}
		targets = append(targets, a)
	}
	if !recursive {
		return nil
	}
	for _, t := range targets {
		clean := filepath.Clean(t)
		if clean == "/" || clean == v.root || clean == "." && len(targets) == 1 && t == "." {
			// "rm -rf ." from the workspace root deletes the workspace itself.
			return fmt.Errorf("%w: recursive deletion of the workspace root", ErrForbiddenOperation)
		}
		if err := v.checkPath(t); err != nil {
			return err
		}
	}
	return nil
}

// checkPath rejects tokens that resolve outside the project root:
// absolute paths not under the root, and ".."-climbing relative paths.
func (v *Validator) checkPath(tok string) error {
	if tok == "" || strings.HasPrefix(tok, "-") {
		return nil
	}
	if filepath.IsAbs(tok) {
		clean := filepath.Clean(tok)
		if clean != v.root && !strings.HasPrefix(clean, v.root+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s", ErrPathEscape, tok)
		}
		return nil
	}
	for _, part := range strings.Split(filepath.Clean(tok), string(filepath.Separator)) {
		if part == ".." {
			return fmt.Errorf("%w: %s", ErrPathEscape, tok)
		}
	}
	return nil
}

// scanShell splits a shell command into pipeline/chain segments and
// collects redirection targets. Quote-aware; ok=false on unbalanced quotes.
func scanShell(s string) (segments [][]string, redirects []string, ok bool) {
	var (
		cur       strings.Builder
		seg       []string
		inSingle  bool
		inDouble  bool
		redirNext bool
	)

	flushWord := func() {
		if cur.Len() == 0 {
			return
		}
		if redirNext {
			redirects = append(redirects, cur.String())
			redirNext = false
		} else {
			seg = append(seg, cur.String())
		}
		cur.Reset()
	}
	flushSegment := func() {
		flushWord()
		if len(seg) > 0 {
			segments = append(segments, seg)
			seg = nil
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && !inSingle:
			if i+1 < len(s) {
				i++
				cur.WriteByte(s[i])
			}
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle || inDouble:
			cur.WriteByte(c)
		case c == '>':
			flushWord()
			redirNext = true
			if i+1 < len(s) && s[i+1] == '>' {
				i++
			}
		case c == '|' || c == ';' || c == '&':
			flushSegment()
			redirNext = false
		case c == ' ' || c == '\t' || c == '\n':
			flushWord()
		default:
			cur.WriteByte(c)
		}
	}
	flushSegment()

	if inSingle || inDouble {
		return nil, nil, false
	}
	return segments, redirects, true
}
