package report

import (
	"math"

	"github.com/wolfman30/safehug/internal/chat"
)

const (
	messageShare = 0.7
	keywordShare = 0.3

	highThreshold   = 70
	mediumThreshold = 40
	lowThreshold    = 20

	// absorbs float error such as 0.7*0.7+0.3*0.7 landing just under 0.7
	scoreEpsilon = 1e-9
)

// Facts are the numeric statistics computed once per transcript.
type Facts struct {
	MessageCount     int            `json:"messageCount"`
	DangerMessages   int            `json:"dangerMessages"`
	Duration         int            `json:"duration"`
	MessageRiskRatio float64        `json:"messageRiskRatio"`
	KeywordRiskRatio float64        `json:"keywordRiskRatio"`
	KeyPhrasePercent float64        `json:"keyPhrasePercent"`
	MessageRiskScore float64        `json:"messageRiskScore"`
	KeywordRiskScore float64        `json:"keywordRiskScore"`
	RoomRiskScore    float64        `json:"roomRiskScore"`
	RoomRiskLevel    chat.RiskLevel `json:"roomRiskLevel"`
}

// Aggregate derives Facts from merged messages and keyword stats.
// Messages are expected in chronological order.
func Aggregate(messages []chat.Message, keywords []chat.KeywordStat) Facts {
	f := Facts{
		MessageCount:     len(messages),
		DangerMessages:   DangerMessages(messages),
		Duration:         Duration(messages),
		MessageRiskRatio: MessageRiskRatio(messages),
		KeywordRiskRatio: KeywordRiskRatio(keywords),
		MessageRiskScore: MessageRiskScore(messages),
		KeywordRiskScore: KeywordRiskScore(keywords),
	}
	f.KeyPhrasePercent = KeyPhrasePercent(f.MessageRiskRatio, f.KeywordRiskRatio)
	f.RoomRiskScore = RoomRiskScore(f.MessageRiskScore, f.KeywordRiskScore)
	f.RoomRiskLevel = LevelForScore(f.RoomRiskScore)
	if len(messages) == 0 {
		f.RoomRiskLevel = chat.RiskNormal
	}
	return f
}

// Duration is the whole minutes between the first and last message.
func Duration(messages []chat.Message) int {
	if len(messages) < 2 {
		return 0
	}
	d := messages[len(messages)-1].SentAt.Sub(messages[0].SentAt)
	if d <= 0 {
		return 0
	}
	return int(d.Minutes())
}

// DangerMessages counts messages whose highest level is above NORMAL.
func DangerMessages(messages []chat.Message) int {
	n := 0
	for _, m := range messages {
		if m.IsRisky() {
			n++
		}
	}
	return n
}

func MessageRiskRatio(messages []chat.Message) float64 {
	if len(messages) == 0 {
		return 0
	}
	return float64(DangerMessages(messages)) / float64(len(messages))
}

// KeywordRiskRatio is the share of keyword occurrences at HIGH.
func KeywordRiskRatio(keywords []chat.KeywordStat) float64 {
	var high, total int
	for _, k := range keywords {
		total += k.Count
		if k.Level == chat.RiskHigh {
			high += k.Count
		}
	}
	if total <= 0 {
		return 0
	}
	return float64(high) / float64(total)
}

// KeyPhrasePercent blends the two ratios onto 0-100.
func KeyPhrasePercent(messageRatio, keywordRatio float64) float64 {
	return clampPercent((messageRatio*messageShare + keywordRatio*keywordShare) * 100)
}

// MessageRiskScore is the mean level weight over all messages.
func MessageRiskScore(messages []chat.Message) float64 {
	if len(messages) == 0 {
		return 0
	}
	var sum float64
	for _, m := range messages {
		sum += m.HighestRiskLevel().Weight()
	}
	return sum / float64(len(messages))
}

// KeywordRiskScore is the count-weighted mean level weight over keywords.
func KeywordRiskScore(keywords []chat.KeywordStat) float64 {
	var (
		weighted float64
		total    int
	)
	for _, k := range keywords {
		weighted += k.Level.Weight() * float64(k.Count)
		total += k.Count
	}
	if total <= 0 {
		return 0
	}
	return weighted / float64(total)
}

func RoomRiskScore(messageScore, keywordScore float64) float64 {
	return (messageScore*messageShare + keywordScore*keywordShare) * 100
}

// LevelForScore maps a room score onto the 70/40/20 thresholds.
func LevelForScore(score float64) chat.RiskLevel {
	score += scoreEpsilon
	switch {
	case score >= highThreshold:
		return chat.RiskHigh
	case score >= mediumThreshold:
		return chat.RiskMedium
	case score >= lowThreshold:
		return chat.RiskLow
	default:
		return chat.RiskNormal
	}
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
