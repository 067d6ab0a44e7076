package report

import "github.com/wolfman30/safehug/internal/chat"

var adviceByType = map[chat.RiskType][3]string{
	chat.TypeSexual: {
		"해당 발언은 성적 수치심을 유발할 수 있는 표현입니다.",
		"반복되거나 노골적인 경우, 성희롱/성폭력에 해당될 수 있으므로 대화를 중단하고 증거를 확보하세요.",
		"필요 시 법률 상담 또는 여성긴급전화 1366에 연락하는 것을 권장합니다.",
	},
	chat.TypeStalking: {
		"특정 인물이 반복적으로 위치, 사생활, 일정을 묻거나 따라다니는 발언은 스토킹 범죄로 간주될 수 있습니다.",
		"의도적으로 거리를 두고, 대화 기록을 보관해 두세요.",
		"위험하다고 느껴진다면 경찰에 즉시 신고하거나 안전한 장소로 이동하세요.",
	},
	chat.TypeCoercion: {
		"상대가 반복적으로 원치 않는 행동을 하도록 강요하는 경우, 이는 의사 강요 및 협박에 해당될 수 있습니다.",
		"\"싫다\"는 의사를 명확히 표현하고, 강요가 지속된다면 대화를 중단하세요.",
		"특히 관계에서의 심리적 압박은 장기적으로 해로우며, 필요한 경우 상담 기관에 도움을 요청하세요.",
	},
	chat.TypeThreat: {
		"해당 표현은 명백한 협박 발언일 수 있으며, 형법상 범죄로 간주될 수 있습니다.",
		"위협이 현실화될 가능성이 있다면 대화 내용을 저장하고 즉시 경찰에 신고하세요.",
		"신변 보호 요청도 가능하니 가까운 경찰서나 관련 기관에 문의하세요.",
	},
	chat.TypePersonalInfo: {
		"사용자의 실명, 주소, 사진, SNS 계정 등 개인정보가 노출되었거나 위협받고 있습니다.",
		"개인정보 유출은 법적으로 보호받을 수 있으며, 상대가 이를 악용할 경우 형사처벌 대상이 됩니다.",
		"가능한 빠르게 캡처 및 로그를 저장하고 관련 기관에 신고하세요.",
	},
	chat.TypeDiscrimination: {
		"성별, 나이, 출신, 외모 등을 이유로 차별하거나 편견을 드러내는 표현은 사회적으로도 용인될 수 없는 언어폭력입니다.",
		"불쾌감을 느낀다면 대화를 멈추고, 신뢰할 수 있는 기관에 신고하거나 상담을 받아보세요.",
		"반복적 차별은 정서적 학대가 될 수 있습니다.",
	},
	chat.TypeInsult: {
		"상대의 발언은 인격을 훼손하거나 비하하는 표현일 수 있습니다.",
		"모욕죄는 형법상 고소 가능한 범죄로 분류되며, 증거가 될 수 있는 로그를 보관하는 것이 중요합니다.",
		"감정적으로 반응하기보다, 객관적인 증거 확보 후 대응하세요.",
	},
	chat.TypeRejection: {
		"사용자 또는 상대방이 거절 의사를 명확히 표현했음에도 불구하고 이를 무시하는 경우, 심리적 압박이나 위협이 될 수 있습니다.",
		"\"아니오\"라는 의사는 존중되어야 하며, 반복적으로 무시된다면 그 자체로 위험 신호입니다.",
		"계속적인 대화 요구나 집착은 스토킹으로 확장될 수 있으니 주의하세요.",
	},
}

var defaultAdvice = [3]string{
	"현재 대화는 특별한 위험 요소 없이 정상적인 수준의 언어로 판단됩니다.",
	"다만, 감정적 피로감이나 불편함이 느껴진다면 잠시 대화를 쉬어가는 것도 좋은 선택입니다.",
	"언제든지 도움이 필요하면 심리상담, 온라인 지원 서비스 등을 활용하세요.",
}

// Advice returns a fresh copy of the canned guidance for t.
// NORMAL and unmapped types get the generic list.
func Advice(t chat.RiskType) []string {
	items, ok := adviceByType[t]
	if !ok {
		items = defaultAdvice
	}
	return items[:]
}
