package chat

import (
	"fmt"
	"strings"
)

// RiskLevel is the ordered severity of a message or transcript.
// The zero value is RiskNormal and the integer order is the severity order.
type RiskLevel int

const (
	RiskNormal RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

var riskLevelNames = [...]string{
	RiskNormal: "NORMAL",
	RiskLow:    "LOW",
	RiskMedium: "MEDIUM",
	RiskHigh:   "HIGH",
}

var riskLevelDisplay = [...]string{
	RiskNormal: "일반",
	RiskLow:    "주의",
	RiskMedium: "경고",
	RiskHigh:   "심각",
}

// ParseRiskLevel matches a level name case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range riskLevelNames {
		if n == name {
			return RiskLevel(i), true
		}
	}
	return RiskNormal, false
}

// Valid reports whether l is one of the four defined levels.
func (l RiskLevel) Valid() bool {
	return l >= RiskNormal && l <= RiskHigh
}

func (l RiskLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
	return riskLevelNames[l]
}

// DisplayName returns the Korean label shown in reports.
func (l RiskLevel) DisplayName() string {
	if !l.Valid() {
		return riskLevelDisplay[RiskNormal]
	}
	return riskLevelDisplay[l]
}

// Weight is the numeric contribution of a level to risk scores.
func (l RiskLevel) Weight() float64 {
	switch l {
	case RiskHigh:
		return 1.0
	case RiskMedium:
		return 0.7
	case RiskLow:
		return 0.3
	default:
		return 0
	}
}

// Escalate moves one step up the ladder, saturating at RiskHigh.
func (l RiskLevel) Escalate() RiskLevel {
	switch {
	case l >= RiskHigh:
		return RiskHigh
	case l < RiskNormal:
		return RiskLow
	default:
		return l + 1
	}
}

// MaxLevel returns the more severe of a and b.
func MaxLevel(a, b RiskLevel) RiskLevel {
	if b > a {
		return b
	}
	return a
}

func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts any level name; unknown names decode as RiskNormal.
func (l *RiskLevel) UnmarshalText(b []byte) error {
	*l, _ = ParseRiskLevel(string(b))
	return nil
}

// RiskType is the category of concerning content.
type RiskType int

const (
	TypeNormal RiskType = iota
	TypeSexual
	TypeStalking
	TypeCoercion
	TypeThreat
	TypePersonalInfo
	TypeDiscrimination
	TypeInsult
	TypeRejection
)

var riskTypeNames = [...]string{
	TypeNormal:         "NORMAL",
	TypeSexual:         "SEXUAL",
	TypeStalking:       "STALKING",
	TypeCoercion:       "COERCION",
	TypeThreat:         "THREAT",
	TypePersonalInfo:   "PERSONAL_INFO",
	TypeDiscrimination: "DISCRIMINATION",
	TypeInsult:         "INSULT",
	TypeRejection:      "REJECTION",
}

var riskTypeKorean = [...]string{
	TypeNormal:         "일반",
	TypeSexual:         "성적",
	TypeStalking:       "스토킹",
	TypeCoercion:       "강요",
	TypeThreat:         "협박",
	TypePersonalInfo:   "개인정보",
	TypeDiscrimination: "차별",
	TypeInsult:         "모욕",
	TypeRejection:      "거절",
}

// AllRiskTypes lists every risk type in declaration order.
func AllRiskTypes() []RiskType {
	out := make([]RiskType, len(riskTypeNames))
	for i := range riskTypeNames {
		out[i] = RiskType(i)
	}
	return out
}

// ParseRiskType matches a type name case-insensitively.
func ParseRiskType(s string) (RiskType, bool) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range riskTypeNames {
		if n == name {
			return RiskType(i), true
		}
	}
	return TypeNormal, false
}

func (t RiskType) Valid() bool {
	return t >= TypeNormal && int(t) < len(riskTypeNames)
}

func (t RiskType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("RiskType(%d)", int(t))
	}
	return riskTypeNames[t]
}

// KoreanName returns the label used in reports and advice.
func (t RiskType) KoreanName() string {
	if !t.Valid() {
		return riskTypeKorean[TypeNormal]
	}
	return riskTypeKorean[t]
}

func (t RiskType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts any type name; unknown names decode as TypeNormal.
func (t *RiskType) UnmarshalText(b []byte) error {
	*t, _ = ParseRiskType(string(b))
	return nil
}

// RiskEntry is one classified risk attached to a message.
type RiskEntry struct {
	Type  RiskType  `json:"type"`
	Level RiskLevel `json:"level"`
}

// KeywordStat is keyword frequency reported by the classifier.
type KeywordStat struct {
	Keyword string    `json:"keyword"`
	Count   int       `json:"count"`
	Level   RiskLevel `json:"risk"`
}
