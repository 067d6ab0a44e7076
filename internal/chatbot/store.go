package chatbot

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresLog appends exchanges to chatbot_logs.
type PostgresLog struct {
	db execer
}

func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	if pool == nil {
		panic("chatbot: pgx pool required")
	}
	return &PostgresLog{db: pool}
}

func (l *PostgresLog) Save(ctx context.Context, e Exchange) error {
	var userID any
	if e.UserID != "" {
		userID = e.UserID
	}
	_, err := l.db.Exec(ctx, `
		INSERT INTO chatbot_logs (user_id, session_id, crisis, message, response)
		VALUES ($1, $2, $3, $4, $5)
	`, userID, e.SessionID, string(e.Crisis), e.Message, e.Response)
	if err != nil {
		return fmt.Errorf("chatbot: insert log: %w", err)
	}
	return nil
}
