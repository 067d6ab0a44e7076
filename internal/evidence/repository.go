package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/safehug/internal/chat"
	"github.com/wolfman30/safehug/internal/report"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository persists uploads and analyses in Postgres.
type Repository struct {
	db querier
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("evidence: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithDB(db querier) *Repository {
	if db == nil {
		panic("evidence: db required")
	}
	return &Repository{db: db}
}

// CreateUpload inserts an upload row, assigning an id when empty.
func (r *Repository) CreateUpload(ctx context.Context, u *Upload) (*Upload, error) {
	if u == nil || strings.TrimSpace(u.S3Key) == "" {
		return nil, fmt.Errorf("%w: s3 key required", ErrInvalidInput)
	}
	out := *u
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.Anonymous = out.UserID == ""

	query := `
		INSERT INTO chat_uploads (id, user_id, s3_key, filename, size_bytes, anonymous)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query,
		out.ID,
		nullable(out.UserID),
		out.S3Key,
		out.Filename,
		out.SizeBytes,
		out.Anonymous,
	).Scan(&out.CreatedAt); err != nil {
		return nil, fmt.Errorf("evidence: insert upload: %w", err)
	}
	return &out, nil
}

func (r *Repository) GetUpload(ctx context.Context, id string) (*Upload, error) {
	query := `
		SELECT id, COALESCE(user_id, ''), s3_key, filename, size_bytes, anonymous, created_at
		FROM chat_uploads
		WHERE id = $1
	`
	var u Upload
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&u.ID,
		&u.UserID,
		&u.S3Key,
		&u.Filename,
		&u.SizeBytes,
		&u.Anonymous,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("evidence: select upload: %w", err)
	}
	return &u, nil
}

// SaveAnalysis writes the analysis, its messages, their risks and the
// keyword stats in one transaction.
func (r *Repository) SaveAnalysis(ctx context.Context, a *Analysis) error {
	if a == nil || a.ID == "" || a.UploadID == "" {
		return fmt.Errorf("%w: analysis id and upload id required", ErrInvalidInput)
	}
	reportJSON, err := json.Marshal(a.Report)
	if err != nil {
		return fmt.Errorf("evidence: marshal report: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("evidence: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_analyses (
			id, upload_id, user_id, format, partner, room_risk_level, room_risk_score,
			message_count, duration_minutes, key_phrase_percent, summary, reasons, report, archive_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		a.ID,
		a.UploadID,
		nullable(a.UserID),
		string(a.Format),
		a.Partner,
		a.Result.RoomRiskLevel.String(),
		a.RoomRiskScore,
		a.Result.MessageCount,
		a.Result.Duration,
		a.Result.KeyPhrasePercent,
		a.Result.Summary,
		nonNil(a.Result.Reasons),
		reportJSON,
		a.ArchiveKey,
	)
	if err != nil {
		return fmt.Errorf("evidence: insert analysis: %w", err)
	}

	msgRows := make([][]any, 0, len(a.Messages))
	var riskRows [][]any
	for _, m := range a.Messages {
		msgRows = append(msgRows, []any{a.ID, m.ID, m.Sender, m.SentAt, m.Content})
		for i, risk := range m.Risks {
			riskRows = append(riskRows, []any{a.ID, m.ID, i, risk.Type.String(), risk.Level.String()})
		}
	}
	if len(msgRows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"chat_messages"},
			[]string{"analysis_id", "seq", "sender", "sent_at", "content"},
			pgx.CopyFromRows(msgRows)); err != nil {
			return fmt.Errorf("evidence: copy messages: %w", err)
		}
	}
	if len(riskRows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"message_risks"},
			[]string{"analysis_id", "seq", "ord", "risk_type", "risk_level"},
			pgx.CopyFromRows(riskRows)); err != nil {
			return fmt.Errorf("evidence: copy risks: %w", err)
		}
	}

	kwRows := make([][]any, 0, len(a.Report.Keywords))
	for _, k := range a.Report.Keywords {
		kwRows = append(kwRows, []any{a.ID, k.Keyword, k.Count, k.Level.String()})
	}
	if len(kwRows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"keyword_analyses"},
			[]string{"analysis_id", "keyword", "count", "risk_level"},
			pgx.CopyFromRows(kwRows)); err != nil {
			return fmt.Errorf("evidence: copy keywords: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("evidence: commit: %w", err)
	}
	return nil
}

// GetAnalysis loads an analysis with its messages and risks.
func (r *Repository) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	query := `
		SELECT id, upload_id, COALESCE(user_id, ''), format, partner, room_risk_level, room_risk_score,
		       message_count, duration_minutes, key_phrase_percent, summary, reasons, report, archive_key, created_at
		FROM chat_analyses
		WHERE id = $1
	`
	var (
		a          Analysis
		format     string
		level      string
		reportJSON []byte
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.UploadID,
		&a.UserID,
		&format,
		&a.Partner,
		&level,
		&a.RoomRiskScore,
		&a.Result.MessageCount,
		&a.Result.Duration,
		&a.Result.KeyPhrasePercent,
		&a.Result.Summary,
		&a.Result.Reasons,
		&reportJSON,
		&a.ArchiveKey,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("evidence: select analysis: %w", err)
	}
	a.Format = chat.Format(format)
	a.Result.RoomRiskLevel, _ = chat.ParseRiskLevel(level)
	if err := json.Unmarshal(reportJSON, &a.Report); err != nil {
		return nil, fmt.Errorf("evidence: decode report: %w", err)
	}

	messages, err := r.loadMessages(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Messages = messages
	return &a, nil
}

func (r *Repository) loadMessages(ctx context.Context, analysisID string) ([]chat.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT m.seq, m.sender, m.sent_at, m.content, r.risk_type, r.risk_level
		FROM chat_messages m
		LEFT JOIN message_risks r ON r.analysis_id = m.analysis_id AND r.seq = m.seq
		WHERE m.analysis_id = $1
		ORDER BY m.seq, r.ord
	`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("evidence: select messages: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var (
			m         chat.Message
			riskType  *string
			riskLevel *string
		)
		if err := rows.Scan(&m.ID, &m.Sender, &m.SentAt, &m.Content, &riskType, &riskLevel); err != nil {
			return nil, fmt.Errorf("evidence: scan message: %w", err)
		}

		// one row per risk; consecutive rows share a seq
		if n := len(out); n == 0 || out[n-1].ID != m.ID {
			m.Risks = []chat.RiskEntry{}
			out = append(out, m)
		}
		if riskType != nil && riskLevel != nil {
			t, _ := chat.ParseRiskType(*riskType)
			l, _ := chat.ParseRiskLevel(*riskLevel)
			last := &out[len(out)-1]
			last.Risks = append(last.Risks, chat.RiskEntry{Type: t, Level: l})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence: iterate messages: %w", err)
	}
	return out, nil
}

// ListAnalysesByUser returns the user's analyses with any saved evidence
// title and category, newest first unless the filter asks otherwise.
func (r *Repository) ListAnalysesByUser(ctx context.Context, userID string, filter ListFilter) ([]AnalysisSummary, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	direction := "DESC"
	if filter.Sort == SortOldest {
		direction = "ASC"
	}
	category := ""
	if filter.Category != nil {
		category = filter.Category.String()
	}

	query := fmt.Sprintf(`
		SELECT a.id, a.upload_id, a.partner, a.room_risk_level, a.message_count, a.key_phrase_percent, a.created_at,
		       COALESCE(e.id::text, ''), COALESCE(e.title, ''), COALESCE(e.category, '')
		FROM chat_analyses a
		LEFT JOIN evidence_records e ON e.analysis_id = a.id
		WHERE a.user_id = $1
		  AND ($2::text = '' OR e.category = $2)
		  AND ($3::text = '' OR strpos(lower(e.title), lower($3)) > 0)
		ORDER BY a.created_at %[1]s, a.id %[1]s
		LIMIT $4
	`, direction)
	rows, err := r.db.Query(ctx, query, userID, category, strings.TrimSpace(filter.Title), limit)
	if err != nil {
		return nil, fmt.Errorf("evidence: list analyses: %w", err)
	}
	defer rows.Close()

	out := []AnalysisSummary{}
	for rows.Next() {
		var (
			s        AnalysisSummary
			level    string
			category string
		)
		if err := rows.Scan(&s.ID, &s.UploadID, &s.Partner, &level, &s.MessageCount, &s.KeyPhrasePercent, &s.CreatedAt,
			&s.EvidenceID, &s.Title, &category); err != nil {
			return nil, fmt.Errorf("evidence: scan analysis summary: %w", err)
		}
		s.RoomRiskLevel, _ = chat.ParseRiskLevel(level)
		if s.EvidenceID != "" {
			t, _ := chat.ParseRiskType(category)
			s.Category = &t
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence: iterate analyses: %w", err)
	}
	return out, nil
}

// NewAnalysis assembles a record ready for SaveAnalysis.
func NewAnalysis(id string, upload *Upload, format chat.Format, partner string, score float64, result report.AnalysisResult, rep report.Report, messages []chat.Message) *Analysis {
	a := &Analysis{
		ID:            id,
		Format:        format,
		Partner:       partner,
		RoomRiskScore: score,
		Result:        result,
		Report:        rep,
		Messages:      messages,
		CreatedAt:     time.Now().UTC(),
	}
	if upload != nil {
		a.UploadID = upload.ID
		a.UserID = upload.UserID
	}
	return a
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
