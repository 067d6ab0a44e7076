package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/safehug/internal/chat"
	"github.com/wolfman30/safehug/internal/risk"
	"github.com/wolfman30/safehug/internal/transcript"
	"github.com/wolfman30/safehug/pkg/logging"
)

const pcTranscript = `민수 님과 카카오톡 대화
저장한 날짜 : 2024-03-05 21:14:09
--------------- 2024년 3월 4일 월요일 ---------------
[민수] [오후 9:00] 오늘 만나자
[윤정] [오후 9:01] 싫어
[민수] [오후 9:05] 안 나오면 찾아간다
--------------- 2024년 3월 5일 화요일 ---------------
[민수] [오전 8:00] 어디야
`

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(AnalyzerConfig{Subject: risk.DefaultSubject, Logger: logging.Discard()})
}

func TestRunEndToEnd(t *testing.T) {
	resp := &risk.ClassificationResponse{
		Messages: []risk.ClassifiedMessage{
			{Message: "싫어", Risks: []risk.ClassifiedRisk{{Type: "REJECTION", Level: "LOW"}}},
			{Message: "안 나오면 찾아간다", Risks: []risk.ClassifiedRisk{{Type: "THREAT", Level: "HIGH"}}},
			{Message: "어디야", Risks: []risk.ClassifiedRisk{{Type: "STALKING", Level: "MEDIUM"}}},
		},
		Keywords: []risk.ClassifiedKeyword{{Keyword: "찾아간다", Count: 1, Risk: "HIGH"}},
	}
	analyzedAt := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)

	out, err := newTestAnalyzer().Run(Input{
		Text:           pcTranscript,
		Classification: resp,
		SummaryText:    "요약: 만남 강요와 협박\n이유:\n- 거절 무시\n- 협박 발언\n- 위치 추궁",
		AnalyzedAt:     analyzedAt,
	})
	require.NoError(t, err)

	assert.Equal(t, chat.FormatPC, out.Format)
	require.Len(t, out.Messages, 4)
	assert.Equal(t, []chat.RiskEntry{{Type: chat.TypeCoercion, Level: chat.RiskLow}}, out.Messages[0].Risks)
	assert.Equal(t, 1, out.Escalations)

	// all four messages risky: (0.3+0.3+1.0+0.7)/4 = 0.575; keyword 1.0
	assert.InDelta(t, 70.25, out.Facts.RoomRiskScore, 1e-9)
	assert.Equal(t, chat.RiskHigh, out.Result.RoomRiskLevel)
	assert.Equal(t, 4, out.Result.MessageCount)
	assert.Equal(t, 11*60, out.Result.Duration)
	assert.InDelta(t, 100.0, out.Result.KeyPhrasePercent, 1e-9)

	assert.Equal(t, "만남 강요와 협박", out.Report.AIRisk.Description.Summary)
	assert.Len(t, out.Report.AIRisk.Description.Reasons, 3)
	assert.Equal(t, 4, out.Report.Summary.DangerMessages)
	assert.Len(t, out.Report.RiskCalendar, 2)
	assert.Equal(t, analyzedAt, out.Report.AnalyzedAt)
	assert.False(t, out.SummaryFallback)
}

func TestRunSingleDesktopMessage(t *testing.T) {
	text := "민수 님과 카카오톡 대화\n저장한 날짜 : 2024-01-01 10:00:00\n--------------- 2024년 1월 1일 월요일 ---------------\n[민수] [오전 9:30] 안녕"

	out, err := newTestAnalyzer().Run(Input{Text: text, Classification: &risk.ClassificationResponse{Messages: []risk.ClassifiedMessage{}}})
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "민수", out.Messages[0].Sender)
	assert.Equal(t, "안녕", out.Messages[0].Content)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 30, 0, 0, transcript.KST), out.Messages[0].SentAt)
	assert.Equal(t, chat.RiskNormal, out.Result.RoomRiskLevel)
	assert.True(t, out.SummaryFallback)
	assert.False(t, out.Report.AnalyzedAt.IsZero())
}

func TestRunHardFailures(t *testing.T) {
	a := newTestAnalyzer()

	_, err := a.Run(Input{Text: "not a transcript", Classification: &risk.ClassificationResponse{Messages: []risk.ClassifiedMessage{}}})
	assert.ErrorIs(t, err, transcript.ErrEmptyTranscript)

	_, err = a.Run(Input{Text: pcTranscript})
	assert.ErrorIs(t, err, risk.ErrMissingClassification)
}

func TestRunIsRepeatable(t *testing.T) {
	in := Input{
		Text:           pcTranscript,
		Classification: &risk.ClassificationResponse{Messages: []risk.ClassifiedMessage{{Message: "싫어", Risks: []risk.ClassifiedRisk{{Type: "REJECTION", Level: "LOW"}}}}},
		AnalyzedAt:     time.Unix(0, 0),
	}
	a := newTestAnalyzer()
	first, err := a.Run(in)
	require.NoError(t, err)
	second, err := a.Run(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
