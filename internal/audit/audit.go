// Package audit keeps an append-only trail of evidence analyses.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/wolfman30/safehug/internal/chat"
)

// EventType names what happened to a piece of evidence.
type EventType string

const (
	EventUploadReceived    EventType = "evidence.upload_received"
	EventAnalysisCompleted EventType = "evidence.analysis_completed"
	EventAnalysisFailed    EventType = "evidence.analysis_failed"
	EventReportViewed      EventType = "evidence.report_viewed"
	EventRecordSaved       EventType = "evidence.record_saved"
	EventRetentionPurged   EventType = "evidence.retention_purged"
)

// Event is one immutable audit record.
type Event struct {
	ID            int64           `json:"id"`
	EventType     EventType       `json:"event_type"`
	AnalysisID    string          `json:"analysis_id,omitempty"`
	UploadID      string          `json:"upload_id,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	RoomRiskLevel string          `json:"room_risk_level,omitempty"`
	RiskTypes     []string        `json:"risk_types"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Details carries event-specific context.
type Details struct {
	Format        string  `json:"format,omitempty"`
	MessageCount  int     `json:"message_count,omitempty"`
	RoomRiskScore float64 `json:"room_risk_score,omitempty"`
	Skipped       int     `json:"skipped_lines,omitempty"`
	Unmatched     int     `json:"unmatched_ids,omitempty"`
	Error         string  `json:"error,omitempty"`
	Purged        int64   `json:"purged,omitempty"`
	EvidenceID    string  `json:"evidence_id,omitempty"`
}

// Service writes and reads audit events.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Log records an event. A nil service is a no-op.
func (s *Service) Log(ctx context.Context, event Event) error {
	if s == nil || s.db == nil {
		return nil
	}
	if event.EventType == "" {
		return errors.New("audit: event type required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	details := event.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	riskTypes := event.RiskTypes
	if riskTypes == nil {
		riskTypes = []string{}
	}

	query := `
		INSERT INTO evidence_audit_events (
			event_type, analysis_id, upload_id, user_id, room_risk_level, risk_types, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		string(event.EventType),
		nullString(event.AnalysisID),
		nullString(event.UploadID),
		nullString(event.UserID),
		nullString(event.RoomRiskLevel),
		pq.Array(riskTypes),
		[]byte(details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log event: %w", err)
	}
	return nil
}

// LogAnalysisCompleted records a finished analysis with the risk types it found.
func (s *Service) LogAnalysisCompleted(ctx context.Context, analysisID, uploadID, userID string, level chat.RiskLevel, types []chat.RiskType, details Details) error {
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}
	detailsJSON, _ := json.Marshal(details)
	return s.Log(ctx, Event{
		EventType:     EventAnalysisCompleted,
		AnalysisID:    analysisID,
		UploadID:      uploadID,
		UserID:        userID,
		RoomRiskLevel: level.String(),
		RiskTypes:     names,
		Details:       detailsJSON,
	})
}

func (s *Service) LogAnalysisFailed(ctx context.Context, uploadID, userID string, cause error) error {
	details := Details{}
	if cause != nil {
		details.Error = cause.Error()
	}
	detailsJSON, _ := json.Marshal(details)
	return s.Log(ctx, Event{
		EventType: EventAnalysisFailed,
		UploadID:  uploadID,
		UserID:    userID,
		Details:   detailsJSON,
	})
}

// ListByAnalysis returns an analysis' events, oldest first.
func (s *Service) ListByAnalysis(ctx context.Context, analysisID string) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, analysis_id, upload_id, user_id, room_risk_level, risk_types, details, created_at
		FROM evidence_audit_events
		WHERE analysis_id = $1
		ORDER BY created_at ASC, id ASC
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                                 Event
			eventType                         string
			analysis, upload, user, riskLevel sql.NullString
			details                           []byte
		)
		if err := rows.Scan(&e.ID, &eventType, &analysis, &upload, &user, &riskLevel,
			pq.Array(&e.RiskTypes), &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan event: %w", err)
		}
		e.EventType = EventType(eventType)
		e.AnalysisID = analysis.String
		e.UploadID = upload.String
		e.UserID = user.String
		e.RoomRiskLevel = riskLevel.String
		e.Details = json.RawMessage(details)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: failed to iterate events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
