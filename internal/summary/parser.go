// Package summary extracts the summary and reasons from free-text LLM output.
package summary

import (
	"regexp"
	"strings"
)

const (
	FallbackSummary = "대화 분석 중 오류가 발생했습니다. 다시 시도해주세요."
)

var fallbackReasons = []string{"분석 서비스 일시적 오류", "잠시 후 다시 시도해주세요"}

var (
	summaryLabel  = regexp.MustCompile(`(?i)^(?:요약|summary)\s*:\s*(.*)$`)
	reasonsLabel  = regexp.MustCompile(`(?i)^(?:이유|reasons?)\s*:\s*(.*)$`)
	inlineSummary = regexp.MustCompile(`(?i)(?:요약|summary)\s*:`)
)

// Result is the structured form of a summarization response.
type Result struct {
	Summary  string   `json:"summary"`
	Reasons  []string `json:"reasons"`
	Fallback bool     `json:"-"`
}

// Fallback is returned whenever no summary can be extracted.
func Fallback() Result {
	reasons := make([]string, len(fallbackReasons))
	copy(reasons, fallbackReasons)
	return Result{Summary: FallbackSummary, Reasons: reasons, Fallback: true}
}

// Parse never fails: text without a usable summary yields Fallback().
//
// Only the first summary label counts. Reasons are "-" lines after the
// reasons label, trimmed and de-duplicated; a second summary label ends the
// parse.
func Parse(text string) Result {
	var (
		summary     string
		haveSummary bool
		pending     bool
		inReasons   bool
		reasons     = []string{}
		seen        = map[string]bool{}
	)

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(stripDecoration(raw))
		if line == "" {
			continue
		}

		if m := summaryLabel.FindStringSubmatch(line); m != nil {
			if haveSummary || pending {
				break
			}
			inReasons = false
			inline := truncateAtLabel(m[1])
			if inline == "" {
				pending = true
				continue
			}
			summary, haveSummary = inline, true
			continue
		}

		if m := reasonsLabel.FindStringSubmatch(line); m != nil {
			pending = false
			inReasons = true
			if r, ok := reasonItem(m[1]); ok && !seen[r] {
				seen[r] = true
				reasons = append(reasons, r)
			}
			continue
		}

		if pending {
			summary, haveSummary, pending = truncateAtLabel(line), true, false
			continue
		}

		if inReasons {
			if r, ok := reasonItem(line); ok && !seen[r] {
				seen[r] = true
				reasons = append(reasons, r)
			}
		}
	}

	if !haveSummary || summary == "" {
		return Fallback()
	}
	return Result{Summary: summary, Reasons: reasons}
}

func truncateAtLabel(s string) string {
	if loc := inlineSummary.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	return strings.TrimSpace(s)
}

func reasonItem(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "-") {
		return "", false
	}
	item := strings.TrimSpace(strings.TrimPrefix(line, "-"))
	return item, item != ""
}

// stripDecoration drops markdown emphasis and heading marks around a line.
func stripDecoration(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "#")
	return strings.ReplaceAll(line, "**", "")
}
