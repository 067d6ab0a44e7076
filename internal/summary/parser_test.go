package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWellFormedIsIdempotent(t *testing.T) {
	text := "summary: X\nreasons:\n- r1\n- r2"
	first := Parse(text)
	second := Parse(text)

	assert.Equal(t, Result{Summary: "X", Reasons: []string{"r1", "r2"}}, first)
	assert.Equal(t, first, second)
}

func TestParseKoreanLabels(t *testing.T) {
	text := `요약: 상대방이 반복적으로 만남을 강요하는 대화입니다.
이유:
- 거절 의사를 무시함
- 위치를 반복해서 물어봄
- 협박성 표현이 포함됨`

	got := Parse(text)
	assert.False(t, got.Fallback)
	assert.Equal(t, "상대방이 반복적으로 만남을 강요하는 대화입니다.", got.Summary)
	assert.Equal(t, []string{"거절 의사를 무시함", "위치를 반복해서 물어봄", "협박성 표현이 포함됨"}, got.Reasons)
}

func TestParseSummaryOnNextLine(t *testing.T) {
	got := Parse("Summary:\n\n  짧은 요약  \nReasons:\n- a")
	assert.Equal(t, "짧은 요약", got.Summary)
	assert.Equal(t, []string{"a"}, got.Reasons)
}

func TestParseRepeatedInlineLabelTruncates(t *testing.T) {
	got := Parse("summary: 첫 요약 summary: 두번째\nreasons:\n- a")
	assert.Equal(t, "첫 요약", got.Summary)
}

func TestParseDeduplicatesReasons(t *testing.T) {
	got := Parse("요약: s\n이유:\n- a\n-  a \n- b\n- \n일반 문장")
	assert.Equal(t, []string{"a", "b"}, got.Reasons)
}

func TestParseSecondSummaryClosesReasons(t *testing.T) {
	got := Parse("요약: s\n이유:\n- a\n요약: t\n이유:\n- b")
	assert.Equal(t, "s", got.Summary)
	assert.Equal(t, []string{"a"}, got.Reasons)
}

func TestParseMarkdownDecoration(t *testing.T) {
	got := Parse("**요약:** 강요 정황\n### 이유:\n- 반복 요구")
	assert.Equal(t, "강요 정황", got.Summary)
	assert.Equal(t, []string{"반복 요구"}, got.Reasons)
}

func TestParseFallback(t *testing.T) {
	for _, text := range []string{"", "그냥 텍스트", "이유:\n- a", "요약:\n이유:\n- a"} {
		got := Parse(text)
		assert.True(t, got.Fallback, text)
		assert.Equal(t, FallbackSummary, got.Summary)
		assert.Equal(t, []string{"분석 서비스 일시적 오류", "잠시 후 다시 시도해주세요"}, got.Reasons)
	}
}

func TestFallbackReturnsCopy(t *testing.T) {
	f := Fallback()
	f.Reasons[0] = "changed"
	assert.Equal(t, "분석 서비스 일시적 오류", Fallback().Reasons[0])
}

func TestParseReasonsWithoutSummaryLabelFirst(t *testing.T) {
	got := Parse("이유:\n- a\n요약: s")
	assert.Equal(t, "s", got.Summary)
	assert.Equal(t, []string{"a"}, got.Reasons)
}
