package evidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/safehug/internal/chat"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// CreateRecord saves an analysis as evidence. A second record for the same
// analysis fails with ErrDuplicate.
func (r *Repository) CreateRecord(ctx context.Context, rec *Record) (*Record, error) {
	if rec == nil || rec.AnalysisID == "" || rec.UserID == "" {
		return nil, fmt.Errorf("%w: analysis id and user id required", ErrInvalidInput)
	}
	out := *rec
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.Tags = nonNil(out.Tags)
	out.Witnesses = nonNil(out.Witnesses)
	out.Emotions = nonNil(out.Emotions)

	err := r.db.QueryRow(ctx, `
		INSERT INTO evidence_records (
			id, analysis_id, user_id, title, category, tags,
			incident_start, incident_end, incident_time, location, offender_info,
			witnesses, emotions, other_emotion, details
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			NULLIF($7::text, '')::date, NULLIF($8::text, '')::date, $9, $10, $11,
			$12, $13, $14, $15
		)
		RETURNING created_at
	`,
		out.ID,
		out.AnalysisID,
		out.UserID,
		out.Title,
		out.Category.String(),
		out.Tags,
		out.IncidentStart,
		out.IncidentEnd,
		out.IncidentTime,
		out.Location,
		out.OffenderInfo,
		out.Witnesses,
		out.Emotions,
		out.OtherEmotion,
		out.Details,
	).Scan(&out.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return nil, ErrDuplicate
			case pgForeignKeyViolation:
				return nil, ErrNotFound
			}
		}
		return nil, fmt.Errorf("evidence: insert record: %w", err)
	}
	return &out, nil
}

// GetRecordByAnalysis loads the evidence record saved for an analysis.
func (r *Repository) GetRecordByAnalysis(ctx context.Context, analysisID string) (*Record, error) {
	var (
		rec      Record
		category string
	)
	err := r.db.QueryRow(ctx, `
		SELECT e.id, e.analysis_id, e.user_id, e.title, e.category, e.tags,
		       COALESCE(e.incident_start::text, ''), COALESCE(e.incident_end::text, ''),
		       e.incident_time, e.location, e.offender_info, e.witnesses, e.emotions,
		       e.other_emotion, e.details, a.created_at, e.created_at
		FROM evidence_records e
		JOIN chat_analyses a ON a.id = e.analysis_id
		WHERE e.analysis_id = $1
	`, analysisID).Scan(
		&rec.ID,
		&rec.AnalysisID,
		&rec.UserID,
		&rec.Title,
		&category,
		&rec.Tags,
		&rec.IncidentStart,
		&rec.IncidentEnd,
		&rec.IncidentTime,
		&rec.Location,
		&rec.OffenderInfo,
		&rec.Witnesses,
		&rec.Emotions,
		&rec.OtherEmotion,
		&rec.Details,
		&rec.AnalyzedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("evidence: select record: %w", err)
	}
	rec.Category, _ = chat.ParseRiskType(category)
	return &rec, nil
}
