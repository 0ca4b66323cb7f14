package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parse converts raw LLM output into a typed Spec.
//
// The model is instructed to answer with a JSON envelope:
//
//	{"type": "shell", "commands": ["mkdir demo", "ls -la"]}
//
// LLM output is the most fragile boundary in the system, so Parse tolerates
// the usual formatting noise — surrounding prose, markdown code fences, and
// key-casing variance ("Type", "CATEGORY") — but it never fabricates
// anything: if no well-formed envelope with a recognized category and a
// non-empty string list can be extracted, it fails closed.
func Parse(raw string) (*Spec, error) {
	env, err := extractEnvelope(raw)
	if err != nil {
		return nil, err
	}

	catRaw, ok := lookupString(env, "type", "category")
	if !ok {
		return nil, fmt.Errorf("%w: no category field in response", ErrUnrecognizedCategory)
	}
	cat, err := ParseCategory(catRaw)
	if err != nil {
		return nil, err
	}

	cmds, err := lookupCommands(env)
	if err != nil {
		return nil, err
	}

	spec := &Spec{Category: cat, Commands: cmds}
	if wd, ok := lookupString(env, "work_dir", "workdir"); ok {
		spec.WorkDir = wd
	}
	return spec, nil
}

// extractEnvelope finds and unmarshals the JSON object in the raw text.
// It first tries the whole (fence-stripped) text, then the outermost
// balanced {...} region, so prose before or after the envelope is ignored.
func extractEnvelope(raw string) (map[string]json.RawMessage, error) {
	candidate := stripFences(strings.TrimSpace(raw))

	var env map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &env); err == nil {
		return env, nil
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrMalformedCommandList)
	}
	if err := json.Unmarshal([]byte(candidate[start:end+1]), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommandList, err)
	}
	return env, nil
}

// stripFences removes a surrounding markdown code fence (``` or ```json).
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // Drop the language tag line.
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// lookupString finds a string field by any of the given keys, matching
// key names case-insensitively.
func lookupString(env map[string]json.RawMessage, keys ...string) (string, bool) {
	for k, v := range env {
		for _, want := range keys {
			if strings.EqualFold(k, want) {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					return "", false
				}
				return s, true
			}
		}
	}
	return "", false
}

// lookupCommands extracts the non-empty ordered command list.
func lookupCommands(env map[string]json.RawMessage) ([]string, error) {
	var rawList json.RawMessage
	for k, v := range env {
		if strings.EqualFold(k, "commands") {
			rawList = v
			break
		}
	}
	if rawList == nil {
		return nil, fmt.Errorf("%w: commands field is absent", ErrMalformedCommandList)
	}

	var cmds []string
	if err := json.Unmarshal(rawList, &cmds); err != nil {
		return nil, fmt.Errorf("%w: commands is not a list of strings", ErrMalformedCommandList)
	}
	if len(cmds) == 0 {
		return nil, fmt.Errorf("%w: commands list is empty", ErrMalformedCommandList)
	}
	for i, c := range cmds {
		if strings.TrimSpace(c) == "" {
			return nil, fmt.Errorf("%w: command %d is blank", ErrMalformedCommandList, i)
		}
	}
	return cmds, nil
}
