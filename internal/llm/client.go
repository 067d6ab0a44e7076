// Package llm holds the text-completion clients behind transcript summaries
// and the chatbot.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client completes a prompt.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
