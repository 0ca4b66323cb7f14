package command

import "strings"

// SplitWords splits a command string into an argument vector, honoring
// single quotes, double quotes, and backslash escapes the way a POSIX shell
// tokenizes them. It performs no expansion — the result is a literal argv,
// which is how python- and git-category commands are executed.
//
// Returns ok=false when the string cannot be tokenized unambiguously
// (unterminated quote, trailing backslash); callers treat that as a
// validation failure rather than guessing.
func SplitWords(s string) (args []string, ok bool) {
	var (
		cur      strings.Builder
		inWord   bool
		quote    rune // 0 = unquoted
		escaped  bool
	)

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
			inWord = true
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}

	if escaped || quote != 0 {
		return nil, false
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, true
}

// HasMetacharacters reports whether the command string contains shell
// metacharacters that SplitWords does not interpret (pipes, redirections,
// command chaining, substitution). Commands with metacharacters cannot be
// run as a literal argv.
func HasMetacharacters(s string) bool {
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && !inSingle:
			i++
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case inSingle:
		case c == '$' && inDouble:
			return true
		case inDouble:
		case strings.ContainsRune("|&;<>`$()", rune(c)):
			return true
		}
	}
	return false
}
