package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type stubProvider struct {
	resp *Response
	err  error
	got  *Request
}

func (s *stubProvider) SendMessage(_ context.Context, req *Request) (*Response, error) {
	s.got = req
	return s.resp, s.err
}

func (s *stubProvider) Name() string { return "stub" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTranslate(t *testing.T) {
	stub := &stubProvider{resp: &Response{Content: `{"type":"shell","commands":["ls"]}`}}
	tr := NewTranslator(stub, testLogger())

	out, err := tr.Translate(context.Background(), "list the files")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if out != stub.resp.Content {
		t.Errorf("output = %q", out)
	}

	// A single user message carrying the instruction, plus the system prompt.
	if stub.got.SystemPrompt == "" {
		t.Error("system prompt was empty")
	}
	if len(stub.got.Messages) != 1 || stub.got.Messages[0].Role != RoleUser {
		t.Errorf("messages = %+v", stub.got.Messages)
	}
	if stub.got.Messages[0].Content != "list the files" {
		t.Errorf("instruction = %q", stub.got.Messages[0].Content)
	}
}

func TestTranslate_ProviderError(t *testing.T) {
	stub := &stubProvider{err: errors.New("connection refused")}
	tr := NewTranslator(stub, testLogger())

	_, err := tr.Translate(context.Background(), "anything")
	if !errors.Is(err, ErrTranslationFailed) {
		t.Errorf("error = %v, want ErrTranslationFailed", err)
	}
}

func TestTranslate_EmptyResponse(t *testing.T) {
	stub := &stubProvider{resp: &Response{}}
	tr := NewTranslator(stub, testLogger())

	_, err := tr.Translate(context.Background(), "anything")
	if !errors.Is(err, ErrTranslationFailed) {
		t.Errorf("error = %v, want ErrTranslationFailed", err)
	}
}
