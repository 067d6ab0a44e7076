package transcript

import (
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/safehug/internal/chat"
)

var (
	titleLine       = regexp.MustCompile(`^(.*?) 님과 카카오톡 대화$`)
	pcSavedLine     = regexp.MustCompile(`^저장한 날짜 : (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})$`)
	mobileSavedLine = regexp.MustCompile(`^저장한 날짜 : (\d{4})년 (\d{1,2})월 (\d{1,2})일 (오전|오후) (\d{1,2}:\d{2})$`)
)

const pcSavedLayout = "2006-01-02 15:04:05"

// Header is the two-line preamble every export starts with.
type Header struct {
	Format  chat.Format
	Partner string
	SavedAt time.Time
}

// DetectFormat classifies text by its first two lines. It never fails;
// anything it does not recognise is chat.FormatUnknown.
func DetectFormat(text string) chat.Format {
	h, ok := readHeader(text, NewNormalizer(nil))
	if !ok {
		return chat.FormatUnknown
	}
	return h.Format
}

// ReadHeader returns the parsed header when text starts with a known one.
// SavedAt is expressed in loc (KST when nil).
func ReadHeader(text string, loc *time.Location) (Header, bool) {
	return readHeader(text, NewNormalizer(loc))
}

func readHeader(text string, norm Normalizer) (Header, bool) {
	first, rest, _ := strings.Cut(text, "\n")
	second, _, _ := strings.Cut(rest, "\n")
	first = cleanLine(strings.TrimPrefix(first, "\ufeff"))
	second = cleanLine(second)

	title := titleLine.FindStringSubmatch(first)
	if title == nil {
		return Header{}, false
	}
	partner := strings.TrimSpace(title[1])

	if m := pcSavedLine.FindStringSubmatch(second); m != nil {
		saved, err := time.ParseInLocation(pcSavedLayout, m[1], norm.location())
		if err != nil {
			return Header{}, false
		}
		return Header{Format: chat.FormatPC, Partner: partner, SavedAt: saved}, true
	}

	if m := mobileSavedLine.FindStringSubmatch(second); m != nil {
		day, err := KoreanDate(m[1], m[2], m[3])
		if err != nil {
			return Header{}, false
		}
		saved, err := norm.At(day, m[4], m[5])
		if err != nil {
			return Header{}, false
		}
		return Header{Format: chat.FormatMobile, Partner: partner, SavedAt: saved}, true
	}

	return Header{}, false
}

func cleanLine(line string) string {
	return strings.TrimRight(line, " \t\r")
}
