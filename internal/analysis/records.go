package analysis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/wolfman30/safehug/internal/audit"
	"github.com/wolfman30/safehug/internal/chat"
	"github.com/wolfman30/safehug/internal/evidence"
)

// SaveEvidence keeps one of the caller's analyses as an evidence record.
// Anonymous analyses cannot be saved since retention purges them. Without
// a category the record takes the report's most frequent risk type.
func (s *Service) SaveEvidence(ctx context.Context, userID, analysisID string, draft evidence.Draft) (*evidence.Record, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	a, err := s.repo.GetAnalysis(ctx, strings.TrimSpace(analysisID))
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrForbidden
	}

	fallback := chat.TypeNormal
	if types := a.Report.Summary.MainTypes; len(types) > 0 {
		fallback = types[0].Type
	}
	rec, err := draft.Record(fallback)
	if err != nil {
		return nil, err
	}
	rec.AnalysisID = a.ID
	rec.UserID = userID
	rec.AnalyzedAt = a.CreatedAt

	saved, err := s.repo.CreateRecord(ctx, &rec)
	if err != nil {
		return nil, err
	}
	details, _ := json.Marshal(audit.Details{EvidenceID: saved.ID})
	s.logAudit(ctx, audit.Event{
		EventType:  audit.EventRecordSaved,
		AnalysisID: a.ID,
		UserID:     userID,
		RiskTypes:  []string{saved.Category.String()},
		Details:    details,
	})
	return saved, nil
}

// GetEvidence returns the caller's evidence record for an analysis.
func (s *Service) GetEvidence(ctx context.Context, userID, analysisID string) (*evidence.Record, error) {
	if userID == "" {
		return nil, ErrForbidden
	}
	rec, err := s.repo.GetRecordByAnalysis(ctx, strings.TrimSpace(analysisID))
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, ErrForbidden
	}
	return rec, nil
}
