package report

import (
	"time"

	"github.com/wolfman30/safehug/internal/chat"
)

// AnalysisResult holds the per-transcript facts kept with an analysis.
type AnalysisResult struct {
	RoomRiskLevel    chat.RiskLevel `json:"roomRiskLevel"`
	MessageCount     int            `json:"messageCount"`
	Duration         int            `json:"duration"`
	KeyPhrasePercent float64        `json:"keyPhrasePercent"`
	Summary          string         `json:"summary"`
	Reasons          []string       `json:"reasons"`
}

func NewAnalysisResult(f Facts, summary string, reasons []string) AnalysisResult {
	rs := make([]string, len(reasons))
	copy(rs, reasons)
	return AnalysisResult{
		RoomRiskLevel:    f.RoomRiskLevel,
		MessageCount:     f.MessageCount,
		Duration:         f.Duration,
		KeyPhrasePercent: f.KeyPhrasePercent,
		Summary:          summary,
		Reasons:          rs,
	}
}

// MessageView is how a message is rendered to API clients.
type MessageView struct {
	ID      int64            `json:"id"`
	Sender  string           `json:"sender"`
	Date    string           `json:"date"`
	Time    string           `json:"time"`
	Content string           `json:"content"`
	Risks   []chat.RiskEntry `json:"risks"`
}

// AnalysisView is the API representation of a stored analysis.
type AnalysisView struct {
	ID               string         `json:"id"`
	Report           Report         `json:"report"`
	Messages         []MessageView  `json:"messages"`
	RoomRiskLevel    chat.RiskLevel `json:"roomRiskLevel"`
	MessageCount     int            `json:"messageCount"`
	Duration         int            `json:"duration"`
	KeyPhrasePercent float64        `json:"keyPhrasePercent"`
}

func NewMessageViews(messages []chat.Message) []MessageView {
	out := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		risks := make([]chat.RiskEntry, len(m.Risks))
		copy(risks, m.Risks)
		out = append(out, MessageView{
			ID:      m.ID,
			Sender:  m.Sender,
			Date:    m.SentAt.Format(calendarDateLayout),
			Time:    m.SentAt.Format(time.TimeOnly),
			Content: m.Content,
			Risks:   risks,
		})
	}
	return out
}

func NewAnalysisView(id string, rep Report, result AnalysisResult, messages []chat.Message) AnalysisView {
	return AnalysisView{
		ID:               id,
		Report:           rep,
		Messages:         NewMessageViews(messages),
		RoomRiskLevel:    result.RoomRiskLevel,
		MessageCount:     result.MessageCount,
		Duration:         result.Duration,
		KeyPhrasePercent: result.KeyPhrasePercent,
	}
}
