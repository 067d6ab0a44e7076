package chat

import "time"

// Format is the export grammar a transcript is written in.
type Format string

const (
	FormatPC      Format = "PC"
	FormatMobile  Format = "MOBILE"
	FormatUnknown Format = "UNKNOWN"
)

// Message is one parsed chat line. Treat it as a value: use WithRisks to
// derive a message with different risks instead of editing Risks in place.
type Message struct {
	ID      int64       `json:"id"`
	Sender  string      `json:"sender"`
	SentAt  time.Time   `json:"sentAt"`
	Content string      `json:"content"`
	Risks   []RiskEntry `json:"risks"`
}

// WithRisks returns a copy of m whose risks are replaced by a copy of risks.
func (m Message) WithRisks(risks []RiskEntry) Message {
	out := m
	out.Risks = make([]RiskEntry, len(risks))
	copy(out.Risks, risks)
	return out
}

// HighestRiskLevel is the max level over the message's risks, or RiskNormal.
func (m Message) HighestRiskLevel() RiskLevel {
	highest := RiskNormal
	for _, r := range m.Risks {
		highest = MaxLevel(highest, r.Level)
	}
	return highest
}

// IsRisky reports whether the message carries any non-normal level.
func (m Message) IsRisky() bool {
	return m.HighestRiskLevel() != RiskNormal
}

// CloneMessages copies the slice and each message's risks.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.WithRisks(m.Risks)
	}
	return out
}
