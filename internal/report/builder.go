package report

import (
	"sort"
	"time"

	"github.com/wolfman30/safehug/internal/chat"
)

const calendarDateLayout = "2006-01-02"

// MainTypeStat is one risk type's count and peak level.
type MainTypeStat struct {
	Type  chat.RiskType  `json:"type"`
	Level chat.RiskLevel `json:"level"`
	Count int            `json:"count"`
}

// CalendarEntry is the peak level seen on one day.
type CalendarEntry struct {
	Date  string         `json:"date"`
	Level chat.RiskLevel `json:"level"`
	Label string         `json:"label"`
}

type Guide struct {
	Type   chat.RiskType  `json:"type"`
	Level  chat.RiskLevel `json:"level"`
	Advice []string       `json:"advice"`
}

type RiskDescription struct {
	Summary string   `json:"summary"`
	Reasons []string `json:"reasons"`
}

type AIRisk struct {
	Level       chat.RiskLevel  `json:"level"`
	Description RiskDescription `json:"description"`
}

type Summary struct {
	TotalMessages  int            `json:"totalMessages"`
	DangerMessages int            `json:"dangerMessages"`
	MainTypes      []MainTypeStat `json:"mainTypes"`
}

// Report is the synthesized safety report for one transcript.
type Report struct {
	RiskCalendar []CalendarEntry    `json:"riskCalendar"`
	Keywords     []chat.KeywordStat `json:"keywords"`
	AIRisk       AIRisk             `json:"aiRisk"`
	Guides       []Guide            `json:"guides"`
	Summary      Summary            `json:"summary"`
	AnalyzedAt   time.Time          `json:"analyzedAt"`
}

// MainTypes groups non-NORMAL risk entries by type. Output is ordered by
// count, then level, both descending, then type declaration order.
func MainTypes(messages []chat.Message) []MainTypeStat {
	byType := make(map[chat.RiskType]*MainTypeStat)
	for _, m := range messages {
		for _, r := range m.Risks {
			if r.Level == chat.RiskNormal {
				continue
			}
			stat, ok := byType[r.Type]
			if !ok {
				stat = &MainTypeStat{Type: r.Type, Level: r.Level}
				byType[r.Type] = stat
			}
			stat.Count++
			stat.Level = chat.MaxLevel(stat.Level, r.Level)
		}
	}

	out := make([]MainTypeStat, 0, len(byType))
	for _, stat := range byType {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// RiskCalendar reports the peak non-NORMAL level per calendar day of the
// message timestamps, oldest day first.
func RiskCalendar(messages []chat.Message) []CalendarEntry {
	byDay := make(map[string]chat.RiskLevel)
	for _, m := range messages {
		for _, r := range m.Risks {
			if r.Level == chat.RiskNormal {
				continue
			}
			day := m.SentAt.Format(calendarDateLayout)
			byDay[day] = chat.MaxLevel(byDay[day], r.Level)
		}
	}

	out := make([]CalendarEntry, 0, len(byDay))
	for day, level := range byDay {
		out = append(out, CalendarEntry{Date: day, Level: level, Label: level.DisplayName()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Guides attaches canned advice to each main type.
func Guides(mainTypes []MainTypeStat) []Guide {
	out := make([]Guide, 0, len(mainTypes))
	for _, mt := range mainTypes {
		out = append(out, Guide{Type: mt.Type, Level: mt.Level, Advice: Advice(mt.Type)})
	}
	return out
}

func NewAIRisk(level chat.RiskLevel, summary string, reasons []string) AIRisk {
	rs := make([]string, len(reasons))
	copy(rs, reasons)
	return AIRisk{Level: level, Description: RiskDescription{Summary: summary, Reasons: rs}}
}

// BuildInput is everything Build needs; all of it is read only.
type BuildInput struct {
	Messages   []chat.Message
	Keywords   []chat.KeywordStat
	Facts      Facts
	Summary    string
	Reasons    []string
	AnalyzedAt time.Time
}

// Build assembles the final report.
func Build(in BuildInput) Report {
	mainTypes := MainTypes(in.Messages)

	keywords := make([]chat.KeywordStat, len(in.Keywords))
	copy(keywords, in.Keywords)

	return Report{
		RiskCalendar: RiskCalendar(in.Messages),
		Keywords:     keywords,
		AIRisk:       NewAIRisk(in.Facts.RoomRiskLevel, in.Summary, in.Reasons),
		Guides:       Guides(mainTypes),
		Summary: Summary{
			TotalMessages:  len(in.Messages),
			DangerMessages: DangerMessages(in.Messages),
			MainTypes:      mainTypes,
		},
		AnalyzedAt: in.AnalyzedAt,
	}
}
