package evidence

import (
	"errors"
	"time"

	"github.com/wolfman30/safehug/internal/chat"
	"github.com/wolfman30/safehug/internal/report"
)

var (
	ErrNotFound     = errors.New("evidence: record not found")
	ErrInvalidInput = errors.New("evidence: invalid input")
)

// Upload is one stored chat export. Uploads without a user are anonymous
// and subject to retention cleanup.
type Upload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	S3Key     string    `json:"s3_key"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Anonymous bool      `json:"anonymous"`
	CreatedAt time.Time `json:"created_at"`
}

// Analysis is a persisted pipeline run.
type Analysis struct {
	ID            string
	UploadID      string
	UserID        string
	Format        chat.Format
	Partner       string
	RoomRiskScore float64
	Result        report.AnalysisResult
	Report        report.Report
	ArchiveKey    string
	Messages      []chat.Message
	CreatedAt     time.Time
}

// View renders the analysis for API clients.
func (a *Analysis) View() report.AnalysisView {
	return report.NewAnalysisView(a.ID, a.Report, a.Result, a.Messages)
}

// AnalysisSummary is a list entry for a user's history. The evidence fields
// are set once the analysis has been saved as a Record.
type AnalysisSummary struct {
	ID               string         `json:"id"`
	UploadID         string         `json:"upload_id"`
	Partner          string         `json:"partner"`
	RoomRiskLevel    chat.RiskLevel `json:"room_risk_level"`
	MessageCount     int            `json:"message_count"`
	KeyPhrasePercent float64        `json:"key_phrase_percent"`
	CreatedAt        time.Time      `json:"created_at"`
	EvidenceID       string         `json:"evidence_id,omitempty"`
	Title            string         `json:"title,omitempty"`
	Category         *chat.RiskType `json:"category,omitempty"`
}
