// Package chatbot answers victims' questions through an LLM, steering the
// conversation by the kind of crisis the message describes.
package chatbot

import "strings"

// Crisis is the kind of emergency a message mentions. The zero value means
// none was detected.
type Crisis string

const (
	CrisisNone           Crisis = ""
	CrisisSuicide        Crisis = "SUICIDE"
	CrisisSexualViolence Crisis = "SEXUAL_VIOLENCE"
	CrisisViolence       Crisis = "VIOLENCE"
)

// Checked in order. Sexual violence comes before violence because
// "성폭력" contains "폭력".
var crisisKeywords = [...]struct {
	crisis   Crisis
	keywords []string
}{
	{CrisisSuicide, []string{"자살", "죽고싶다", "끝내고싶다"}},
	{CrisisSexualViolence, []string{"성폭력", "성추행", "성희롱", "성폭행"}},
	{CrisisViolence, []string{"폭력", "폭행", "협박", "위협"}},
}

// Detect returns the first crisis whose keywords appear in message.
func Detect(message string) Crisis {
	for _, c := range crisisKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(message, kw) {
				return c.crisis
			}
		}
	}
	return CrisisNone
}

const defaultPrompt = "당신은 성폭력 피해자를 돕는 전문 상담사입니다. 공감과 이해를 바탕으로 대화하며, " +
	"전문가의 도움을 받을 수 있도록 안내합니다. 위기 상황에서는 즉시 전문가의 도움을 받을 수 있도록 안내하고, " +
	"필요한 경우 경찰(112), 여성긴급전화(1366), 자살예방상담전화(1393) 등에 연락하도록 권장합니다."

// SystemPrompt returns the counsellor instructions for a crisis. The table
// is fixed at build time; unknown values get the general prompt.
func SystemPrompt(c Crisis) string {
	switch c {
	case CrisisSuicide:
		return "당신은 자살 위기 상황에 처한 사람을 돕는 전문 상담사입니다. 공감과 이해를 바탕으로 대화하며, " +
			"전문가의 도움을 받을 수 있도록 안내합니다. 위기 상황에서는 즉시 전문가의 도움을 받을 수 있도록 안내하고, " +
			"자살예방상담전화 1393이나 응급실을 방문하도록 권장합니다."
	case CrisisViolence:
		return "당신은 폭력 상황에 처한 사람을 돕는 전문 상담사입니다. 안전을 최우선으로 고려하며, " +
			"즉시 경찰(112)이나 여성긴급전화(1366)에 연락하도록 안내합니다. " +
			"증거 수집과 법적 대응 방법에 대해 안내하며, 전문가의 도움을 받을 수 있도록 지원합니다."
	case CrisisSexualViolence:
		return "당신은 성폭력 피해자를 돕는 전문 상담사입니다. 피해자의 감정을 공감하며, " +
			"성폭력상담전화(1366)나 경찰(112)에 즉시 연락하도록 안내합니다. " +
			"증거 수집과 법적 대응 방법에 대해 안내하며, 전문가의 도움을 받을 수 있도록 지원합니다."
	default:
		return defaultPrompt
	}
}

const maxOptions = 4

var baseOptions = [...]string{"다른 질문이 있어요", "상담 종료하기"}

// follow-up buttons offered when the reply mentions any of the triggers
var optionRules = [...]struct {
	triggers []string
	options  []string
}{
	{[]string{"자살", "죽고싶다"}, []string{"자살예방상담전화(1393) 연결하기", "응급실 방문 안내받기"}},
	{[]string{"폭력", "협박"}, []string{"경찰(112) 신고하기", "여성긴급전화(1366) 연결하기"}},
	{[]string{"성폭력", "성추행"}, []string{"성폭력상담전화(1366) 연결하기", "증거 수집 방법 안내받기"}},
	{[]string{"법률", "변호사"}, []string{"법률 상담이 필요해요"}},
	{[]string{"심리", "상담"}, []string{"심리 상담이 필요해요"}},
}

// Options picks up to four follow-up choices for a bot reply, base choices
// first, without duplicates.
func Options(reply string) []string {
	out := make([]string, 0, maxOptions)
	seen := map[string]bool{}
	add := func(opts ...string) {
		for _, o := range opts {
			if !seen[o] {
				seen[o] = true
				out = append(out, o)
			}
		}
	}
	add(baseOptions[:]...)
	for _, rule := range optionRules {
		for _, t := range rule.triggers {
			if strings.Contains(reply, t) {
				add(rule.options...)
				break
			}
		}
	}
	if len(out) > maxOptions {
		out = out[:maxOptions]
	}
	return out
}
