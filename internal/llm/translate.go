package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrTranslationFailed wraps any provider failure — network error, provider
// error status, or an empty response. It short-circuits the request before
// the command parser ever runs, and is never retried here: retries are a
// caller policy.
var ErrTranslationFailed = errors.New("translation failed")

const translateMaxTokens = 1024

// translateSystemPrompt instructs the model to answer with nothing but the
// command envelope. The parser tolerates prose anyway, but a tight prompt
// keeps the fragile boundary narrow.
const translateSystemPrompt = `You translate a user's natural-language instruction into commands.

Respond with a single JSON object and nothing else:

{"type": "<python|shell|git>", "commands": ["<command>", ...]}

Rules:
- "type" must be exactly one of: python, shell, git.
- "commands" is an ordered list of single commands; never chain with && or ;.
- git commands must invoke the git executable.
- Use relative paths only; all work happens inside the current directory.
- If the instruction cannot be expressed as such commands, respond with {"type": "", "commands": []}.`

// Translator turns natural-language text into raw command-spec output using
// a single provider call per request.
type Translator struct {
	provider Provider
	logger   *slog.Logger
}

// NewTranslator creates a Translator backed by the given provider.
func NewTranslator(p Provider, logger *slog.Logger) *Translator {
	return &Translator{provider: p, logger: logger}
}

// Provider returns the backing provider's name, for logs and metric labels.
func (t *Translator) Provider() string {
	return t.provider.Name()
}

// Translate sends the instruction to the provider and returns the raw model
// output. The output is untrusted — the command parser owns interpreting it.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	resp, err := t.provider.SendMessage(ctx, &Request{
		SystemPrompt: translateSystemPrompt,
		Messages:     []Message{{Role: RoleUser, Content: text}},
		MaxTokens:    translateMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}
	if resp.Content == "" {
		return "", fmt.Errorf("%w: provider returned an empty response", ErrTranslationFailed)
	}

	t.logger.DebugContext(ctx, "translation completed",
		slog.String("provider", t.provider.Name()),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
	)

	return resp.Content, nil
}
