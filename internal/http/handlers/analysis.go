package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/safehug/internal/analysis"
	"github.com/wolfman30/safehug/internal/chat"
	"github.com/wolfman30/safehug/internal/evidence"
	"github.com/wolfman30/safehug/internal/http/middleware"
	"github.com/wolfman30/safehug/internal/jobs"
	"github.com/wolfman30/safehug/internal/report"
	"github.com/wolfman30/safehug/internal/risk"
	"github.com/wolfman30/safehug/internal/storage"
	"github.com/wolfman30/safehug/internal/transcript"
	"github.com/wolfman30/safehug/pkg/logging"
)

const defaultMaxUploadBytes = 10 << 20

type analysisService interface {
	Upload(ctx context.Context, userID, filename, body string) (*evidence.Upload, error)
	Analyze(ctx context.Context, uploadID, userID string) (*report.AnalysisView, error)
	Get(ctx context.Context, analysisID, userID string) (*report.AnalysisView, error)
	List(ctx context.Context, userID string, filter evidence.ListFilter) ([]evidence.AnalysisSummary, error)
	SaveEvidence(ctx context.Context, userID, analysisID string, draft evidence.Draft) (*evidence.Record, error)
	GetEvidence(ctx context.Context, userID, analysisID string) (*evidence.Record, error)
}

type jobPublisher interface {
	Enqueue(ctx context.Context, uploadID, userID string, opts ...jobs.PublishOption) (string, error)
}

type jobReader interface {
	GetJob(ctx context.Context, jobID string) (*jobs.Record, error)
}

// AnalysisHandler serves uploads, analyses and job status.
type AnalysisHandler struct {
	service        analysisService
	publisher      jobPublisher
	jobs           jobReader
	logger         *logging.Logger
	maxUploadBytes int64
}

// NewAnalysisHandler wires the handler. publisher and jobs may be nil, in
// which case async requests run synchronously.
func NewAnalysisHandler(service analysisService, publisher jobPublisher, jobs jobReader, logger *logging.Logger) *AnalysisHandler {
	if service == nil {
		panic("handlers: analysis service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AnalysisHandler{
		service:        service,
		publisher:      publisher,
		jobs:           jobs,
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
	}
}

type uploadResponse struct {
	UploadID  string `json:"upload_id"`
	Anonymous bool   `json:"anonymous"`
}

// Upload stores a raw KakaoTalk export.
// POST /uploads?filename=talk.txt
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		filename = "KakaoTalkChats.txt"
	}

	upload, err := h.service.Upload(r.Context(), middleware.UserID(r.Context()), filename, string(body))
	if err != nil {
		h.fail(w, "upload failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{UploadID: upload.ID, Anonymous: upload.Anonymous})
}

type createAnalysisRequest struct {
	UploadID string `json:"upload_id"`
	Async    bool   `json:"async"`
}

type jobAccepted struct {
	JobID string `json:"job_id"`
}

// CreateAnalysis analyzes an upload, inline or through the job queue.
// POST /analyses
func (h *AnalysisHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req createAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	req.UploadID = strings.TrimSpace(req.UploadID)
	if req.UploadID == "" {
		jsonError(w, "upload_id is required", http.StatusBadRequest)
		return
	}
	userID := middleware.UserID(r.Context())

	if req.Async && h.publisher != nil {
		jobID, err := h.publisher.Enqueue(r.Context(), req.UploadID, userID)
		if err != nil {
			h.fail(w, "enqueue failed", err)
			return
		}
		writeJSON(w, http.StatusAccepted, jobAccepted{JobID: jobID})
		return
	}

	view, err := h.service.Analyze(r.Context(), req.UploadID, userID)
	if err != nil {
		h.fail(w, "analysis failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetAnalysis returns a stored report.
// GET /analyses/{analysisID}
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "analysisID"))
	if id == "" {
		jsonError(w, "missing analysisID", http.StatusBadRequest)
		return
	}
	view, err := h.service.Get(r.Context(), id, middleware.UserID(r.Context()))
	if err != nil {
		h.fail(w, "get analysis failed", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetJob reports the state of an async analysis.
// GET /jobs/{jobID}
func (h *AnalysisHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		jsonError(w, "job tracking disabled", http.StatusServiceUnavailable)
		return
	}
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.fail(w, "get job failed", err)
		return
	}
	if job.UserID != "" && job.UserID != middleware.UserID(r.Context()) {
		jsonError(w, "forbidden", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ListMine returns the caller's analyses. category and title narrow the
// list to analyses saved as evidence; sort is asc or desc by analysis time.
// GET /me/analyses?limit=20&category=THREAT&title=협박&sort=asc
func (h *AnalysisHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := evidence.ListFilter{Title: q.Get("title")}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		category, ok := chat.ParseRiskType(raw)
		if !ok {
			jsonError(w, "invalid category", http.StatusBadRequest)
			return
		}
		filter.Category = &category
	}
	sort, err := evidence.ParseSortOrder(q.Get("sort"))
	if err != nil {
		jsonError(w, "invalid sort", http.StatusBadRequest)
		return
	}
	filter.Sort = sort

	list, err := h.service.List(r.Context(), middleware.UserID(r.Context()), filter)
	if err != nil {
		h.fail(w, "list analyses failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": list})
}

// SaveEvidence keeps one of the caller's analyses as an evidence record.
// POST /me/analyses/{analysisID}/evidence
func (h *AnalysisHandler) SaveEvidence(w http.ResponseWriter, r *http.Request) {
	var draft evidence.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	rec, err := h.service.SaveEvidence(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "analysisID"), draft)
	if err != nil {
		h.fail(w, "save evidence failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetEvidence returns the evidence record saved for one of the caller's analyses.
// GET /me/analyses/{analysisID}/evidence
func (h *AnalysisHandler) GetEvidence(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetEvidence(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "analysisID"))
	if err != nil {
		h.fail(w, "get evidence failed", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *AnalysisHandler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
		jsonError(w, "internal error", status)
		return
	}
	h.logger.Info(msg, "error", err, "status", status)
	jsonError(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, evidence.ErrNotFound), errors.Is(err, storage.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, analysis.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, evidence.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, analysis.ErrEmptyUpload), errors.Is(err, evidence.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, transcript.ErrEmptyTranscript):
		return http.StatusUnprocessableEntity
	case errors.Is(err, risk.ErrMissingClassification):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrStoreDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Health reports liveness.
// GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
