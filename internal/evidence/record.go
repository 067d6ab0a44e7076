package evidence

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wolfman30/safehug/internal/chat"
)

// ErrDuplicate is returned when an analysis already has an evidence record.
var ErrDuplicate = errors.New("evidence: analysis already saved as evidence")

const (
	maxTitleRunes = 100
	dateLayout    = "2006-01-02"
)

// Record is an analysis a signed-in user has kept as evidence, annotated
// with what they remember about the incident. One per analysis.
type Record struct {
	ID            string        `json:"id"`
	AnalysisID    string        `json:"analysis_id"`
	UserID        string        `json:"user_id"`
	Title         string        `json:"title"`
	Category      chat.RiskType `json:"category"`
	Tags          []string      `json:"tags"`
	IncidentStart string        `json:"incident_start,omitempty"`
	IncidentEnd   string        `json:"incident_end,omitempty"`
	IncidentTime  string        `json:"incident_time,omitempty"`
	Location      string        `json:"location,omitempty"`
	OffenderInfo  string        `json:"offender_info,omitempty"`
	Witnesses     []string      `json:"witnesses"`
	Emotions      []string      `json:"emotions"`
	OtherEmotion  string        `json:"other_emotion,omitempty"`
	Details       string        `json:"details,omitempty"`
	AnalyzedAt    time.Time     `json:"analyzed_at"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Draft is the caller-supplied part of a Record. Dates are YYYY-MM-DD.
type Draft struct {
	Title         string   `json:"title"`
	Category      string   `json:"category"`
	Tags          []string `json:"tags"`
	IncidentStart string   `json:"incident_start"`
	IncidentEnd   string   `json:"incident_end"`
	IncidentTime  string   `json:"incident_time"`
	Location      string   `json:"location"`
	OffenderInfo  string   `json:"offender_info"`
	Witnesses     []string `json:"witnesses"`
	Emotions      []string `json:"emotions"`
	OtherEmotion  string   `json:"other_emotion"`
	Details       string   `json:"details"`
}

// Record validates the draft and fills a Record. An empty category falls
// back to the given type.
func (d Draft) Record(fallback chat.RiskType) (Record, error) {
	rec := Record{
		Title:         strings.TrimSpace(d.Title),
		Category:      fallback,
		Tags:          cleanList(d.Tags),
		IncidentStart: strings.TrimSpace(d.IncidentStart),
		IncidentEnd:   strings.TrimSpace(d.IncidentEnd),
		IncidentTime:  strings.TrimSpace(d.IncidentTime),
		Location:      strings.TrimSpace(d.Location),
		OffenderInfo:  strings.TrimSpace(d.OffenderInfo),
		Witnesses:     cleanList(d.Witnesses),
		Emotions:      cleanList(d.Emotions),
		OtherEmotion:  strings.TrimSpace(d.OtherEmotion),
		Details:       strings.TrimSpace(d.Details),
	}
	if rec.Title == "" {
		return Record{}, fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(rec.Title) > maxTitleRunes {
		return Record{}, fmt.Errorf("%w: title longer than %d characters", ErrInvalidInput, maxTitleRunes)
	}
	if c := strings.TrimSpace(d.Category); c != "" {
		t, ok := chat.ParseRiskType(c)
		if !ok {
			return Record{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, c)
		}
		rec.Category = t
	}

	start, err := parseDate("incident_start", rec.IncidentStart)
	if err != nil {
		return Record{}, err
	}
	end, err := parseDate("incident_end", rec.IncidentEnd)
	if err != nil {
		return Record{}, err
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return Record{}, fmt.Errorf("%w: incident_end before incident_start", ErrInvalidInput)
	}
	return rec, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidInput, field)
	}
	return t, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SortOrder orders a history listing by analysis time.
type SortOrder string

const (
	SortNewest SortOrder = "desc"
	SortOldest SortOrder = "asc"
)

// ParseSortOrder accepts asc or desc in any case. Empty means newest first.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc":
		return SortNewest, nil
	case "asc":
		return SortOldest, nil
	default:
		return "", fmt.Errorf("%w: sort must be asc or desc", ErrInvalidInput)
	}
}

// ListFilter narrows a user's history. Category and Title match the saved
// evidence record, so setting either drops analyses that were never saved.
type ListFilter struct {
	Category *chat.RiskType
	// Title is a case-insensitive substring.
	Title string
	Sort  SortOrder
	Limit int
}
