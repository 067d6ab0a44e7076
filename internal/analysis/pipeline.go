package analysis

import (
	"time"

	"github.com/wolfman30/safehug/internal/chat"
	"github.com/wolfman30/safehug/internal/report"
	"github.com/wolfman30/safehug/internal/risk"
	"github.com/wolfman30/safehug/internal/summary"
	"github.com/wolfman30/safehug/internal/transcript"
	"github.com/wolfman30/safehug/pkg/logging"
)

// Input is everything one pipeline run consumes. Classification and
// SummaryText are resolved by the caller beforehand.
type Input struct {
	Text           string
	Classification *risk.ClassificationResponse
	SummaryText    string
	AnalyzedAt     time.Time
}

// Outcome is the pipeline output for one transcript.
type Outcome struct {
	Format      chat.Format
	Header      transcript.Header
	Messages    []chat.Message
	Keywords    []chat.KeywordStat
	Facts       report.Facts
	Result      report.AnalysisResult
	Report      report.Report
	Skipped     int
	Unmatched   int
	Escalations int
	// SummaryFallback is set when the summary text was unusable.
	SummaryFallback bool
}

// Analyzer runs detect, parse, merge, aggregate and build synchronously.
// It is stateless between runs and safe for concurrent use.
type Analyzer struct {
	parser *transcript.Parser
	merger *risk.Merger
	logger *logging.Logger
	now    func() time.Time
}

// AnalyzerConfig tunes an Analyzer.
type AnalyzerConfig struct {
	Subject  string
	Location *time.Location
	Logger   *logging.Logger
	// OnSkipped receives the skipped line count of each parse.
	OnSkipped transcript.SkipObserver
}

func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Analyzer{
		parser: transcript.NewParser(
			transcript.WithLocation(cfg.Location),
			transcript.WithLogger(logger.Component("transcript")),
			transcript.WithSkipObserver(cfg.OnSkipped),
		),
		merger: risk.NewMerger(cfg.Subject, logger.Component("risk")),
		logger: logger,
		now:    time.Now,
	}
}

// Run returns transcript.ErrEmptyTranscript or risk.ErrMissingClassification
// on hard failure; everything else degrades into the report.
func (a *Analyzer) Run(in Input) (*Outcome, error) {
	parsed, err := a.parser.Parse(in.Text)
	if err != nil {
		return nil, err
	}

	merged, err := a.merger.Merge(parsed.Messages, in.Classification)
	if err != nil {
		return nil, err
	}

	facts := report.Aggregate(merged.Messages, merged.Keywords)
	sum := summary.Parse(in.SummaryText)

	analyzedAt := in.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = a.now()
	}

	rep := report.Build(report.BuildInput{
		Messages:   merged.Messages,
		Keywords:   merged.Keywords,
		Facts:      facts,
		Summary:    sum.Summary,
		Reasons:    sum.Reasons,
		AnalyzedAt: analyzedAt,
	})

	a.logger.Debug("pipeline finished",
		"format", parsed.Format,
		"messages", facts.MessageCount,
		"room_risk", facts.RoomRiskLevel,
		"room_score", facts.RoomRiskScore,
	)

	return &Outcome{
		Format:          parsed.Format,
		Header:          parsed.Header,
		Messages:        merged.Messages,
		Keywords:        merged.Keywords,
		Facts:           facts,
		Result:          report.NewAnalysisResult(facts, sum.Summary, sum.Reasons),
		Report:          rep,
		Skipped:         parsed.Skipped,
		Unmatched:       merged.Unmatched,
		Escalations:     merged.Escalations,
		SummaryFallback: sum.Fallback,
	}, nil
}
