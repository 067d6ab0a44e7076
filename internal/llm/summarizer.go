package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	summarySystemPrompt = "당신은 채팅 내용을 분석하고 요약하는 AI입니다."
	summaryPromptFormat = "다음 채팅 내용을 분석해주세요:\n\n%s\n\n" +
		"아래와 같이 요약과 3가지의 이유 형식으로 작성해주세요:\n" +
		"요약: [전체 대화의 짧은 요약]\n" +
		"이유:\n" +
		"- [위험도 판단 이유 1]\n" +
		"- [위험도 판단 이유 2]\n" +
		"- [위험도 판단 이유 3]\n"

	// longer transcripts keep only their tail
	defaultMaxTranscriptRunes = 60000
)

var ErrNoClient = errors.New("llm: summarizer has no client")

// Summarizer asks an LLM for a "요약/이유" summary of a transcript.
type Summarizer struct {
	client    Client
	model     string
	maxTokens int32
	maxRunes  int
}

func NewSummarizer(client Client, model string, maxTokens int) *Summarizer {
	return &Summarizer{client: client, model: model, maxTokens: int32(maxTokens), maxRunes: defaultMaxTranscriptRunes}
}

// Prompt builds the user prompt for a transcript.
func Prompt(transcript string) string {
	return fmt.Sprintf(summaryPromptFormat, transcript)
}

// Summarize returns the raw model text; parsing is the caller's job.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	if s == nil || s.client == nil {
		return "", ErrNoClient
	}
	resp, err := s.client.Complete(ctx, Request{
		Model:       s.model,
		System:      []string{summarySystemPrompt},
		Messages:    []Message{{Role: RoleUser, Content: Prompt(truncateRunes(transcript, s.maxRunes))}},
		MaxTokens:   s.maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("llm: summarize: %w", err)
	}
	return resp.Text, nil
}

// truncateRunes keeps the last max runes, starting at a line boundary when possible.
func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	tail := string(runes[len(runes)-max:])
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 && idx < len(tail)-1 {
		tail = tail[idx+1:]
	}
	return tail
}
