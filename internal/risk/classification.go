package risk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/wolfman30/safehug/internal/chat"
)

// ErrMissingClassification means the classifier response had no messages field.
var ErrMissingClassification = errors.New("risk: classification response missing messages")

// ClassificationResponse is the per-message classifier output.
// A nil Messages slice means the field was absent or null.
type ClassificationResponse struct {
	Messages []ClassifiedMessage `json:"messages"`
	Keywords []ClassifiedKeyword `json:"keywords"`
}

type ClassifiedMessage struct {
	ID      json.Number      `json:"id,omitempty"`
	Date    string           `json:"date,omitempty"`
	Message string           `json:"message"`
	Risks   []ClassifiedRisk `json:"risks"`
}

type ClassifiedRisk struct {
	Type  string `json:"type"`
	Level string `json:"level"`
}

type ClassifiedKeyword struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
	Risk    string `json:"risk"`
}

// Validate reports ErrMissingClassification for a nil response or nil Messages.
func (r *ClassificationResponse) Validate() error {
	if r == nil || r.Messages == nil {
		return ErrMissingClassification
	}
	return nil
}

// DecodeClassification reads and validates a classifier response body.
func DecodeClassification(r io.Reader) (*ClassificationResponse, error) {
	var resp ClassificationResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrMissingClassification, err)
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Entry converts a raw risk, defaulting unknown type or level to NORMAL.
// known is false when either field had to be defaulted.
func (c ClassifiedRisk) Entry() (entry chat.RiskEntry, known bool) {
	t, okType := chat.ParseRiskType(c.Type)
	l, okLevel := chat.ParseRiskLevel(c.Level)
	return chat.RiskEntry{Type: t, Level: l}, okType && okLevel
}

// Keywords converts classifier keyword stats. Unknown risk levels become
// NORMAL and negative counts are clamped to zero.
func Keywords(resp *ClassificationResponse) []chat.KeywordStat {
	if resp == nil {
		return []chat.KeywordStat{}
	}
	out := make([]chat.KeywordStat, 0, len(resp.Keywords))
	for _, k := range resp.Keywords {
		level, _ := chat.ParseRiskLevel(k.Risk)
		count := k.Count
		if count < 0 {
			count = 0
		}
		out = append(out, chat.KeywordStat{Keyword: k.Keyword, Count: count, Level: level})
	}
	return out
}
