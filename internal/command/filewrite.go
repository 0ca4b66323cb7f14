package command

import "strings"

// FileWrite is a file-creation directive recognized inside a python-category
// command, e.g.:
//
//	echo "print('Hello World')" > hello.py
//	touch scratch.py
//
// These are the only shell-looking forms the python category accepts. The
// executor performs them directly (writing the file itself) instead of
// handing the string to a shell, so no metacharacter expansion ever happens.
type FileWrite struct {
	Path    string // Target path as written (relative to the workspace).
	Content string // File content including the trailing newline echo adds.
	Append  bool   // True for >>.
	Touch   bool   // True for touch: create if missing, never truncate.
}

// ParseFileWrite recognizes a file-creation directive. ok=false means the
// command is not one — it may still be a valid interpreter invocation.
func ParseFileWrite(cmd string) (*FileWrite, bool) {
	trimmed := strings.TrimSpace(cmd)

	if rest, found := strings.CutPrefix(trimmed, "touch "); found {
		args, wordsOK := SplitWords(rest)
		if !wordsOK || len(args) != 1 {
			return nil, false
		}
		return &FileWrite{Path: args[0], Touch: true}, true
	}

	if !strings.HasPrefix(trimmed, "echo ") {
		return nil, false
	}

	// Locate the redirection operator outside quotes.
	opIdx, opLen := findRedirect(trimmed)
	if opIdx < 0 {
		return nil, false
	}

	contentPart := trimmed[len("echo "):opIdx]
	targetPart := trimmed[opIdx+opLen:]

	contentWords, ok := SplitWords(contentPart)
	if !ok {
		return nil, false
	}
	targetWords, ok := SplitWords(targetPart)
	if !ok || len(targetWords) != 1 {
		return nil, false
	}

	return &FileWrite{
		Path:    targetWords[0],
		Content: strings.Join(contentWords, " ") + "\n",
		Append:  opLen == 2,
	}, true
}

// findRedirect returns the index and length of the first unquoted > or >>
// operator, or (-1, 0) if none exists.
func findRedirect(s string) (int, int) {
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && !inSingle:
			i++
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == '>' && !inSingle && !inDouble:
			if i+1 < len(s) && s[i+1] == '>' {
				return i, 2
			}
			return i, 1
		}
	}
	return -1, 0
}
