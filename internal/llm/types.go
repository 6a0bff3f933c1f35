package llm

import (
	"context"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Config struct {
	Provider string
	BaseURL  string
	Timeout  time.Duration
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

type TranscriptionRequest struct {
	Audio    []byte
	Filename string
	Model    string
	Prompt   string
	Language string
}

// Completer issues one chat completion with the given credential. An empty
// string with a nil error means the provider answered but produced no text.
type Completer interface {
	Complete(ctx context.Context, apiKey string, req CompletionRequest) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, apiKey string, req TranscriptionRequest) (string, error)
}
