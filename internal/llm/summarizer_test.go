package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/safehug/pkg/logging"
)

type stubClient struct {
	calls int
	last  Request
	resp  Response
	err   error
}

func (s *stubClient) Complete(_ context.Context, req Request) (Response, error) {
	s.calls++
	s.last = req
	return s.resp, s.err
}

func TestSummarizerBuildsPrompt(t *testing.T) {
	stub := &stubClient{resp: Response{Text: "요약: x\n이유:\n- a"}}
	s := NewSummarizer(stub, "model-1", 256)

	out, err := s.Summarize(context.Background(), "[민수] [오전 9:30] 안녕")
	require.NoError(t, err)
	assert.Equal(t, "요약: x\n이유:\n- a", out)

	assert.Equal(t, "model-1", stub.last.Model)
	assert.Equal(t, int32(256), stub.last.MaxTokens)
	assert.Equal(t, []string{summarySystemPrompt}, stub.last.System)
	require.Len(t, stub.last.Messages, 1)
	assert.True(t, strings.HasPrefix(stub.last.Messages[0].Content, "다음 채팅 내용을 분석해주세요:\n\n[민수] [오전 9:30] 안녕"))
	assert.Contains(t, stub.last.Messages[0].Content, "요약: [전체 대화의 짧은 요약]")
}

func TestSummarizerErrors(t *testing.T) {
	var nilSummarizer *Summarizer
	_, err := nilSummarizer.Summarize(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoClient)

	boom := errors.New("boom")
	_, err = NewSummarizer(&stubClient{err: boom}, "", 0).Summarize(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 10))
	assert.Equal(t, "line3", truncateRunes("line1\nline2\nline3", 8))
	assert.Equal(t, "가나다", truncateRunes("가나다", 0))
}

func TestFallbackClient(t *testing.T) {
	primary := &stubClient{err: errors.New("primary down")}
	fallback := &stubClient{resp: Response{Text: "ok"}}
	c := NewFallbackClient(primary, fallback, logging.Discard())

	resp, err := c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, fallback.calls)

	primary.err = nil
	primary.resp = Response{Text: "primary"}
	resp, err = c.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Equal(t, 1, fallback.calls)
}

func TestFallbackClientWithoutFallback(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewFallbackClient(&stubClient{err: boom}, nil, logging.Discard()).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, boom)
}

func TestFallbackClientBothFail(t *testing.T) {
	second := errors.New("second")
	_, err := NewFallbackClient(&stubClient{err: errors.New("first")}, &stubClient{err: second}, logging.Discard()).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, second)
}
