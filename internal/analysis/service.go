package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/safehug/internal/audit"
	"github.com/wolfman30/safehug/internal/cache"
	"github.com/wolfman30/safehug/internal/chat"
	"github.com/wolfman30/safehug/internal/evidence"
	"github.com/wolfman30/safehug/internal/observability/metrics"
	"github.com/wolfman30/safehug/internal/report"
	"github.com/wolfman30/safehug/internal/risk"
	"github.com/wolfman30/safehug/internal/storage"
	"github.com/wolfman30/safehug/internal/transcript"
	"github.com/wolfman30/safehug/pkg/logging"
)

var (
	ErrEmptyUpload = errors.New("analysis: upload body is empty")
	ErrForbidden   = errors.New("analysis: upload belongs to another user")
)

type transcriptStore interface {
	PutTranscript(ctx context.Context, key, body string) error
	GetTranscript(ctx context.Context, ref string) (string, error)
	ArchiveReport(ctx context.Context, analysisID string, report any) (string, error)
}

type classifier interface {
	Classify(ctx context.Context, key string) (*risk.ClassificationResponse, error)
}

type summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

type evidenceRepository interface {
	CreateUpload(ctx context.Context, u *evidence.Upload) (*evidence.Upload, error)
	GetUpload(ctx context.Context, id string) (*evidence.Upload, error)
	SaveAnalysis(ctx context.Context, a *evidence.Analysis) error
	GetAnalysis(ctx context.Context, id string) (*evidence.Analysis, error)
	ListAnalysesByUser(ctx context.Context, userID string, filter evidence.ListFilter) ([]evidence.AnalysisSummary, error)
	CreateRecord(ctx context.Context, rec *evidence.Record) (*evidence.Record, error)
	GetRecordByAnalysis(ctx context.Context, analysisID string) (*evidence.Record, error)
}

type reportCache interface {
	Get(ctx context.Context, analysisID string) (*cache.Entry, error)
	Set(ctx context.Context, ownerID string, view report.AnalysisView) error
}

type auditLogger interface {
	Log(ctx context.Context, event audit.Event) error
	LogAnalysisCompleted(ctx context.Context, analysisID, uploadID, userID string, level chat.RiskLevel, types []chat.RiskType, details audit.Details) error
	LogAnalysisFailed(ctx context.Context, uploadID, userID string, cause error) error
}

// Deps are the collaborators a Service orchestrates. Cache, Audit,
// Summarizer and Metrics are optional.
type Deps struct {
	Store      transcriptStore
	Classifier classifier
	Summarizer summarizer
	Repository evidenceRepository
	Cache      reportCache
	Audit      auditLogger
	Metrics    *metrics.AnalysisMetrics
	Analyzer   *Analyzer
	Logger     *logging.Logger
}

// Service runs the analysis pipeline against stored uploads and persists
// the results.
type Service struct {
	store      transcriptStore
	classifier classifier
	summarizer summarizer
	repo       evidenceRepository
	cache      reportCache
	audit      auditLogger
	metrics    *metrics.AnalysisMetrics
	analyzer   *Analyzer
	tracer     trace.Tracer
	logger     *logging.Logger
}

func NewService(deps Deps) *Service {
	if deps.Store == nil {
		panic("analysis: transcript store cannot be nil")
	}
	if deps.Classifier == nil {
		panic("analysis: classifier cannot be nil")
	}
	if deps.Repository == nil {
		panic("analysis: evidence repository cannot be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	analyzer := deps.Analyzer
	if analyzer == nil {
		analyzer = NewAnalyzer(AnalyzerConfig{Subject: risk.DefaultSubject, Logger: logger})
	}
	return &Service{
		store:      deps.Store,
		classifier: deps.Classifier,
		summarizer: deps.Summarizer,
		repo:       deps.Repository,
		cache:      deps.Cache,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		analyzer:   analyzer,
		tracer:     otel.Tracer("safehug.internal.analysis"),
		logger:     logger,
	}
}

// Upload stores a raw export and records it. An empty userID makes the
// upload anonymous.
func (s *Service) Upload(ctx context.Context, userID, filename, body string) (*evidence.Upload, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyUpload
	}
	id := uuid.NewString()
	key := storage.TranscriptKey(id, filename)
	if err := s.store.PutTranscript(ctx, key, body); err != nil {
		return nil, err
	}
	upload, err := s.repo.CreateUpload(ctx, &evidence.Upload{
		ID:        id,
		UserID:    userID,
		S3Key:     key,
		Filename:  filename,
		SizeBytes: int64(len(body)),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.Event{EventType: audit.EventUploadReceived, UploadID: upload.ID, UserID: userID})
	s.logger.Info("upload stored", "upload_id", upload.ID, "s3_key", key, "anonymous", upload.Anonymous)
	return upload, nil
}

// Analyze runs the full pipeline for a stored upload.
func (s *Service) Analyze(ctx context.Context, uploadID, userID string) (view *report.AnalysisView, err error) {
	ctx, span := s.tracer.Start(ctx, "analysis.analyze", trace.WithAttributes(attribute.String("upload_id", uploadID)))
	defer span.End()
	started := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = failureStatus(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
			if s.audit != nil {
				if auditErr := s.audit.LogAnalysisFailed(ctx, uploadID, userID, err); auditErr != nil {
					s.logger.Warn("audit log failed", "error", auditErr, "upload_id", uploadID)
				}
			}
		}
		s.metrics.ObserveAnalysis(status, time.Since(started).Seconds())
	}()

	upload, err := s.repo.GetUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if !visibleTo(upload.UserID, userID) {
		return nil, ErrForbidden
	}

	text, err := s.store.GetTranscript(ctx, upload.S3Key)
	if err != nil {
		return nil, err
	}

	classification, summaryText, err := s.collect(ctx, upload.S3Key, text)
	if err != nil {
		return nil, err
	}

	out, err := s.analyzer.Run(Input{Text: text, Classification: classification, SummaryText: summaryText})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSkippedLines(string(out.Format), out.Skipped)
	s.metrics.ObserveUnmatched(out.Unmatched)

	analysisID := uuid.NewString()
	span.SetAttributes(
		attribute.String("analysis_id", analysisID),
		attribute.String("room_risk", out.Facts.RoomRiskLevel.String()),
		attribute.Int("messages", out.Facts.MessageCount),
	)

	record := evidence.NewAnalysis(analysisID, upload, out.Format, out.Header.Partner, out.Facts.RoomRiskScore, out.Result, out.Report, out.Messages)
	if key, archiveErr := s.store.ArchiveReport(ctx, analysisID, out.Report); archiveErr != nil {
		if !errors.Is(archiveErr, storage.ErrStoreDisabled) {
			s.logger.Warn("report archive failed", "error", archiveErr, "analysis_id", analysisID)
		}
	} else {
		record.ArchiveKey = key
	}

	if err := s.repo.SaveAnalysis(ctx, record); err != nil {
		return nil, err
	}

	rendered := record.View()
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, record.UserID, rendered); cacheErr != nil {
			s.logger.Warn("report cache write failed", "error", cacheErr, "analysis_id", analysisID)
		}
	}
	if s.audit != nil {
		types := make([]chat.RiskType, 0, len(out.Report.Summary.MainTypes))
		for _, mt := range out.Report.Summary.MainTypes {
			types = append(types, mt.Type)
		}
		if auditErr := s.audit.LogAnalysisCompleted(ctx, analysisID, upload.ID, upload.UserID, out.Facts.RoomRiskLevel, types, audit.Details{
			Format:        string(out.Format),
			MessageCount:  out.Facts.MessageCount,
			RoomRiskScore: out.Facts.RoomRiskScore,
			Skipped:       out.Skipped,
			Unmatched:     out.Unmatched,
		}); auditErr != nil {
			s.logger.Warn("audit log failed", "error", auditErr, "analysis_id", analysisID)
		}
	}
	s.metrics.ObserveRoomRisk(out.Facts.RoomRiskLevel.String())

	s.logger.Info("analysis completed",
		"analysis_id", analysisID,
		"upload_id", upload.ID,
		"format", out.Format,
		"messages", out.Facts.MessageCount,
		"room_risk", out.Facts.RoomRiskLevel,
		"summary_fallback", out.SummaryFallback,
	)
	return &rendered, nil
}

// collect runs the classifier and the summarizer concurrently. Only the
// classifier is required; a failed summary degrades to the fallback text.
func (s *Service) collect(ctx context.Context, key, text string) (*risk.ClassificationResponse, string, error) {
	var (
		wg             sync.WaitGroup
		classification *risk.ClassificationResponse
		classifyErr    error
		summaryText    string
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		classification, classifyErr = s.classifier.Classify(ctx, key)
	}()
	if s.summarizer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.summarizer.Summarize(ctx, text)
			if err != nil {
				s.logger.Warn("summary generation failed, using fallback", "error", err, "s3_key", key)
				return
			}
			summaryText = out
		}()
	}
	wg.Wait()

	if classifyErr != nil {
		return nil, "", fmt.Errorf("analysis: classify: %w", classifyErr)
	}
	return classification, summaryText, nil
}

// Get returns a stored analysis, reading through the cache. Ownership is
// enforced on both paths.
func (s *Service) Get(ctx context.Context, analysisID, userID string) (*report.AnalysisView, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.get", trace.WithAttributes(attribute.String("analysis_id", analysisID)))
	defer span.End()

	if s.cache != nil {
		entry, err := s.cache.Get(ctx, analysisID)
		switch {
		case err == nil:
			if !visibleTo(entry.OwnerID, userID) {
				return nil, ErrForbidden
			}
			s.logAudit(ctx, audit.Event{EventType: audit.EventReportViewed, AnalysisID: analysisID, UserID: userID})
			return &entry.View, nil
		case !errors.Is(err, cache.ErrMiss):
			s.logger.Warn("report cache read failed", "error", err, "analysis_id", analysisID)
		}
	}

	record, err := s.repo.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if !visibleTo(record.UserID, userID) {
		return nil, ErrForbidden
	}
	view := record.View()
	if s.cache != nil {
		if err := s.cache.Set(ctx, record.UserID, view); err != nil {
			s.logger.Warn("report cache write failed", "error", err, "analysis_id", analysisID)
		}
	}
	s.logAudit(ctx, audit.Event{EventType: audit.EventReportViewed, AnalysisID: analysisID, UserID: userID})
	return &view, nil
}

// visibleTo reports whether a caller may read something owned by ownerID.
// Anonymous records are readable by anyone holding the id.
func visibleTo(ownerID, userID string) bool {
	return ownerID == "" || ownerID == userID
}

// List returns a user's analyses, narrowed and ordered by filter.
func (s *Service) List(ctx context.Context, userID string, filter evidence.ListFilter) ([]evidence.AnalysisSummary, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	return s.repo.ListAnalysesByUser(ctx, userID, filter)
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event); err != nil {
		s.logger.Warn("audit log failed", "error", err, "event_type", event.EventType)
	}
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, transcript.ErrEmptyTranscript):
		return "empty_transcript"
	case errors.Is(err, risk.ErrMissingClassification):
		return "missing_classification"
	case errors.Is(err, evidence.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
