package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

// scriptRound is one GenerateContent call: fragments streamed through the
// callback, an optional final choice, and an optional returned error.
type scriptRound struct {
	fragments []string
	choice    string
	err       error
}

type scriptedLLM struct {
	rounds   []scriptRound
	attempts int
}

func (s *scriptedLLM) GenerateContent(ctx context.Context, _ []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	r := s.rounds[s.attempts]
	s.attempts++
	for _, f := range r.fragments {
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(f)); err != nil {
				return nil, err
			}
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	choice := r.choice
	if choice == "" {
		choice = strings.Join(r.fragments, "")
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: choice}}}, nil
}

func (s *scriptedLLM) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func TestStreamTextRetriesWhenNothingDelivered(t *testing.T) {
	backend := &scriptedLLM{rounds: []scriptRound{
		{err: errors.New("connection reset")},
		{fragments: []string{"Hello, ", "world"}},
	}}
	m := &Model{llm: backend, modelName: "scripted", retry: true}

	var got []string
	text, err := m.StreamText(context.Background(), "sys", "user", func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	if text != "Hello, world" {
		t.Errorf("StreamText() = %q, want %q", text, "Hello, world")
	}
	if joined := strings.Join(got, ""); joined != text {
		t.Errorf("delivered %q, want it to match returned text %q", joined, text)
	}
	if backend.attempts != 2 {
		t.Errorf("attempts = %d, want 2", backend.attempts)
	}
}

func TestStreamTextNoRetryAfterPartialDelivery(t *testing.T) {
	backend := &scriptedLLM{rounds: []scriptRound{
		{fragments: []string{"Hello, "}, err: errors.New("connection reset")},
		{fragments: []string{"Hello, ", "world"}},
	}}
	m := &Model{llm: backend, modelName: "scripted", retry: true}

	var got []string
	_, err := m.StreamText(context.Background(), "sys", "user", func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	if err == nil {
		t.Fatal("StreamText() error = nil, want failure after partial delivery")
	}
	if backend.attempts != 1 {
		t.Errorf("attempts = %d, want 1", backend.attempts)
	}
	if joined := strings.Join(got, ""); joined != "Hello, " {
		t.Errorf("delivered %q, want only the first attempt's fragments", joined)
	}
}

func TestStreamTextFallsBackToChoiceContent(t *testing.T) {
	backend := &scriptedLLM{rounds: []scriptRound{
		{choice: "Hello, world"},
	}}
	m := &Model{llm: backend, modelName: "scripted"}

	var got []string
	text, err := m.StreamText(context.Background(), "sys", "user", func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamText() error = %v", err)
	}
	if text != "Hello, world" {
		t.Errorf("StreamText() = %q, want %q", text, "Hello, world")
	}
	if len(got) != 1 || got[0] != "Hello, world" {
		t.Errorf("delivered %v, want the whole text exactly once", got)
	}
}
