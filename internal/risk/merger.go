package risk

import (
	"github.com/wolfman30/safehug/internal/chat"
	"github.com/wolfman30/safehug/pkg/logging"
)

// DefaultSubject is the sender whose rejections escalate the prior message.
const DefaultSubject = "윤정"

// Merged is the outcome of applying a classification to parsed messages.
type Merged struct {
	Messages    []chat.Message
	Keywords    []chat.KeywordStat
	Unmatched   int
	Defaulted   int
	Escalations int
}

// Merger applies classifier results to messages.
type Merger struct {
	subject string
	logger  *logging.Logger
}

// NewMerger builds a merger. An empty subject disables escalation.
func NewMerger(subject string, logger *logging.Logger) *Merger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Merger{subject: subject, logger: logger}
}

// Merge returns new message values carrying the classified risks; the
// input slice is left untouched.
//
// Each classification entry contributes only its first risk, which replaces
// the matched message's risks. Text lookup is exact and the last message
// with a given text wins. Once every entry is applied, a REJECTION from the
// subject replaces the preceding message's risk with COERCION one level
// above that message's highest level.
//
// Escalation runs as a second pass, so the outcome does not depend on the
// order of entries in resp. Applying it per entry instead would let a later
// entry for the preceding message overwrite the COERCION risk, or let an
// escalation read a level that had not been classified yet.
func (m *Merger) Merge(messages []chat.Message, resp *ClassificationResponse) (*Merged, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}

	out := chat.CloneMessages(messages)
	byText := make(map[string]int, len(out))
	for i, msg := range out {
		byText[msg.Content] = i
	}

	result := &Merged{Keywords: Keywords(resp)}
	rejected := make(map[int]bool)

	for _, entry := range resp.Messages {
		if len(entry.Risks) == 0 {
			continue
		}
		idx, ok := byText[entry.Message]
		if !ok {
			result.Unmatched++
			m.logger.Debug("classification entry matched no message", "message_id", entry.ID.String())
			continue
		}

		applied, known := entry.Risks[0].Entry()
		if !known {
			result.Defaulted++
			m.logger.Debug("unknown risk value defaulted to NORMAL", "type", entry.Risks[0].Type, "level", entry.Risks[0].Level)
		}
		out[idx] = out[idx].WithRisks([]chat.RiskEntry{applied})
		rejected[idx] = applied.Type == chat.TypeRejection
	}

	if m.subject != "" {
		for i := range out {
			if !rejected[i] || i == 0 || out[i].Sender != m.subject {
				continue
			}
			prev := out[i-1]
			escalated := chat.RiskEntry{Type: chat.TypeCoercion, Level: prev.HighestRiskLevel().Escalate()}
			out[i-1] = prev.WithRisks([]chat.RiskEntry{escalated})
			result.Escalations++
		}
	}

	if result.Unmatched > 0 {
		m.logger.Info("classification entries without a matching message", "unmatched", result.Unmatched, "entries", len(resp.Messages))
	}

	result.Messages = out
	return result, nil
}
