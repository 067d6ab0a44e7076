package transcript

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/safehug/internal/chat"
	"github.com/wolfman30/safehug/pkg/logging"
)

// ErrEmptyTranscript is returned when no message line could be parsed.
var ErrEmptyTranscript = errors.New("transcript: no messages parsed")

var (
	pcDateSeparator = regexp.MustCompile(`^-{3,}\s*(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일(?:\s*\S+요일)?\s*-{3,}$`)
	pcMessageLine   = regexp.MustCompile(`^\[(.*?)\]\s*\[(오전|오후)\s*(\d{1,2}:\d{2})\]\s*(.*)$`)
	mobileMessage   = regexp.MustCompile(`^(\d{4})년 (\d{1,2})월 (\d{1,2})일 (오전|오후) (\d{1,2}:\d{2}),\s*(.*?)\s*:\s*(.*)$`)
)

// Transcript is one export after detection and parsing.
type Transcript struct {
	Format   chat.Format
	Header   Header
	Messages []chat.Message
	// Skipped counts non-blank body lines that matched no grammar.
	Skipped int
}

// SkipObserver is told how many lines a parse skipped.
type SkipObserver func(format chat.Format, skipped int)

// Parser converts export text into ordered messages.
type Parser struct {
	norm     Normalizer
	logger   *logging.Logger
	observer SkipObserver
}

// Option configures a Parser.
type Option func(*Parser)

// WithLocation sets the zone message timestamps are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		p.norm = NewNormalizer(loc)
	}
}

// WithLogger sets the parser logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSkipObserver registers a callback invoked after each parse.
func WithSkipObserver(fn SkipObserver) Option {
	return func(p *Parser) {
		p.observer = fn
	}
}

// NewParser returns a parser; it holds no per-transcript state and is safe
// for concurrent use.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		norm:   NewNormalizer(nil),
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse detects the export format and parses every message line.
// Lines that fit no grammar are skipped; ErrEmptyTranscript is returned
// when nothing could be parsed.
func (p *Parser) Parse(text string) (*Transcript, error) {
	header, ok := readHeader(text, p.norm)
	if !ok {
		header = Header{Format: chat.FormatUnknown}
	}

	t := &Transcript{Format: header.Format, Header: header}
	lines := splitLines(text)

	switch header.Format {
	case chat.FormatPC:
		t.Messages, t.Skipped = p.parsePC(lines[2:], header)
	case chat.FormatMobile:
		t.Messages, t.Skipped = p.parseMobile(lines[2:])
	default:
		p.logger.Debug("unrecognised transcript header", "lines", len(lines))
	}

	if t.Skipped > 0 {
		p.logger.Warn("skipped unparseable transcript lines", "format", t.Format, "skipped", t.Skipped, "parsed", len(t.Messages))
	}
	if p.observer != nil {
		p.observer(t.Format, t.Skipped)
	}
	if len(t.Messages) == 0 {
		return nil, fmt.Errorf("%w (format %s)", ErrEmptyTranscript, t.Format)
	}
	return t, nil
}

// parsePC walks PC export lines. The current date starts at the header's
// saved-at day and moves with each date separator.
func (p *Parser) parsePC(lines []string, header Header) ([]chat.Message, int) {
	current := DateOf(header.SavedAt)
	var (
		msgs    []chat.Message
		skipped int
	)

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := pcDateSeparator.FindStringSubmatch(line); m != nil {
			day, err := KoreanDate(m[1], m[2], m[3])
			if err != nil {
				skipped++
				p.skip(i+3, line, err)
				continue
			}
			current = day
			continue
		}

		m := pcMessageLine.FindStringSubmatch(line)
		if m == nil {
			skipped++
			p.skip(i+3, line, nil)
			continue
		}
		sentAt, err := p.norm.At(current, m[2], m[3])
		if err != nil {
			skipped++
			p.skip(i+3, line, err)
			continue
		}
		msgs = append(msgs, newMessage(len(msgs), m[1], sentAt, m[4]))
	}
	return msgs, skipped
}

func (p *Parser) parseMobile(lines []string) ([]chat.Message, int) {
	var (
		msgs    []chat.Message
		skipped int
	)

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		m := mobileMessage.FindStringSubmatch(line)
		if m == nil {
			skipped++
			p.skip(i+3, line, nil)
			continue
		}
		day, err := KoreanDate(m[1], m[2], m[3])
		if err != nil {
			skipped++
			p.skip(i+3, line, err)
			continue
		}
		sentAt, err := p.norm.At(day, m[4], m[5])
		if err != nil {
			skipped++
			p.skip(i+3, line, err)
			continue
		}
		msgs = append(msgs, newMessage(len(msgs), m[6], sentAt, m[7]))
	}
	return msgs, skipped
}

func (p *Parser) skip(lineNo int, line string, err error) {
	if err != nil {
		p.logger.Debug("skipping transcript line", "line", lineNo, "text", line, "error", err)
		return
	}
	p.logger.Debug("skipping transcript line", "line", lineNo, "text", line)
}

func newMessage(index int, sender string, sentAt time.Time, content string) chat.Message {
	return chat.Message{
		ID:      int64(index + 1),
		Sender:  strings.TrimSpace(sender),
		SentAt:  sentAt,
		Content: content,
		Risks:   []chat.RiskEntry{},
	}
}

// splitLines always returns at least two entries so header slicing is safe.
func splitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	raw := strings.Split(text, "\n")
	for i, line := range raw {
		raw[i] = cleanLine(line)
	}
	for len(raw) < 2 {
		raw = append(raw, "")
	}
	return raw
}
