package report

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/safehug/internal/chat"
)

var base = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func risky(minute int, level chat.RiskLevel, typ chat.RiskType) chat.Message {
	m := chat.Message{ID: int64(minute + 1), SentAt: base.Add(time.Duration(minute) * time.Minute), Risks: []chat.RiskEntry{}}
	if level != chat.RiskNormal || typ != chat.TypeNormal {
		m.Risks = []chat.RiskEntry{{Type: typ, Level: level}}
	}
	return m
}

func TestAggregateNoMessages(t *testing.T) {
	f := Aggregate(nil, []chat.KeywordStat{{Keyword: "x", Count: 10, Level: chat.RiskHigh}})
	assert.Equal(t, 0, f.Duration)
	assert.Equal(t, chat.RiskNormal, f.RoomRiskLevel)
	assert.Equal(t, 0, f.MessageCount)
	// keyword-only signal still feeds key-phrase percent
	assert.InDelta(t, 30.0, f.KeyPhrasePercent, 1e-9)

	f = Aggregate(nil, nil)
	assert.Equal(t, 0.0, f.KeyPhrasePercent)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 0, Duration([]chat.Message{risky(0, chat.RiskNormal, chat.TypeNormal)}))

	msgs := []chat.Message{risky(0, chat.RiskNormal, chat.TypeNormal), risky(95, chat.RiskNormal, chat.TypeNormal)}
	msgs[1].SentAt = msgs[1].SentAt.Add(59 * time.Second)
	assert.Equal(t, 95, Duration(msgs))

	reversed := []chat.Message{msgs[1], msgs[0]}
	assert.Equal(t, 0, Duration(reversed))
}

func TestAggregateScores(t *testing.T) {
	msgs := []chat.Message{
		risky(0, chat.RiskHigh, chat.TypeThreat),
		risky(1, chat.RiskMedium, chat.TypeInsult),
		risky(2, chat.RiskNormal, chat.TypeNormal),
		risky(3, chat.RiskLow, chat.TypeInsult),
	}
	keywords := []chat.KeywordStat{
		{Keyword: "죽어", Count: 3, Level: chat.RiskHigh},
		{Keyword: "바보", Count: 1, Level: chat.RiskLow},
	}

	f := Aggregate(msgs, keywords)
	assert.Equal(t, 4, f.MessageCount)
	assert.Equal(t, 3, f.DangerMessages)
	assert.Equal(t, 3, f.Duration)
	assert.InDelta(t, 0.75, f.MessageRiskRatio, 1e-9)
	assert.InDelta(t, 0.75, f.KeywordRiskRatio, 1e-9)
	assert.InDelta(t, 75.0, f.KeyPhrasePercent, 1e-9)
	assert.InDelta(t, 0.5, f.MessageRiskScore, 1e-9)
	assert.InDelta(t, 0.825, f.KeywordRiskScore, 1e-9)
	assert.InDelta(t, 59.75, f.RoomRiskScore, 1e-9)
	assert.Equal(t, chat.RiskMedium, f.RoomRiskLevel)
}

func TestAggregateAllHighIsHigh(t *testing.T) {
	msgs := []chat.Message{risky(0, chat.RiskHigh, chat.TypeThreat), risky(1, chat.RiskHigh, chat.TypeThreat)}
	f := Aggregate(msgs, nil)
	assert.InDelta(t, 70.0, f.RoomRiskScore, 1e-9)
	assert.Equal(t, chat.RiskHigh, f.RoomRiskLevel)
}

func TestLevelForScoreThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  chat.RiskLevel
	}{
		{0, chat.RiskNormal},
		{19.99, chat.RiskNormal},
		{20, chat.RiskLow},
		{39.9, chat.RiskLow},
		{40, chat.RiskMedium},
		{69.99, chat.RiskMedium},
		{70, chat.RiskHigh},
		{100, chat.RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForScore(tt.score), "score %v", tt.score)
	}
}

func TestLevelForScoreMonotonic(t *testing.T) {
	prev := chat.RiskNormal
	for s := 0.0; s <= 100; s += 0.25 {
		got := LevelForScore(s)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestKeyPhrasePercentBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	levels := []chat.RiskLevel{chat.RiskNormal, chat.RiskLow, chat.RiskMedium, chat.RiskHigh}
	for i := 0; i < 200; i++ {
		var msgs []chat.Message
		for j := 0; j < rng.Intn(20); j++ {
			msgs = append(msgs, risky(j, levels[rng.Intn(4)], chat.TypeInsult))
		}
		var kws []chat.KeywordStat
		for j := 0; j < rng.Intn(5); j++ {
			kws = append(kws, chat.KeywordStat{Keyword: "k", Count: rng.Intn(10), Level: levels[rng.Intn(4)]})
		}
		f := Aggregate(msgs, kws)
		assert.GreaterOrEqual(t, f.KeyPhrasePercent, 0.0)
		assert.LessOrEqual(t, f.KeyPhrasePercent, 100.0)
		assert.GreaterOrEqual(t, f.Duration, 0)
		assert.Equal(t, f, Aggregate(msgs, kws))
	}
}

func TestKeywordRatiosIgnoreZeroCounts(t *testing.T) {
	kws := []chat.KeywordStat{{Keyword: "a", Count: 0, Level: chat.RiskHigh}}
	assert.Equal(t, 0.0, KeywordRiskRatio(kws))
	assert.Equal(t, 0.0, KeywordRiskScore(kws))
}
