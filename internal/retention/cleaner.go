// Package retention removes anonymous evidence once it ages out.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wolfman30/safehug/internal/audit"
	"github.com/wolfman30/safehug/pkg/logging"
)

const (
	DefaultAnonymousAge = time.Hour
	DefaultInterval     = 30 * time.Minute
)

type db interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type reportEvictor interface {
	Delete(ctx context.Context, analysisIDs ...string) (int64, error)
}

type transcriptRemover interface {
	DeleteTranscript(ctx context.Context, key string) error
}

type auditLogger interface {
	Log(ctx context.Context, event audit.Event) error
}

type Config struct {
	AnonymousAge time.Duration
	Interval     time.Duration
}

// Cleaner deletes anonymous uploads, their analyses, cached reports and
// stored transcripts.
type Cleaner struct {
	db     db
	cache  reportEvictor
	store  transcriptRemover
	audit  auditLogger
	cfg    Config
	logger *logging.Logger
	now    func() time.Time
}

// NewCleaner wires a cleaner. cache, store and auditor may be nil.
func NewCleaner(db db, cache reportEvictor, store transcriptRemover, auditor auditLogger, cfg Config, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.AnonymousAge <= 0 {
		cfg.AnonymousAge = DefaultAnonymousAge
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Cleaner{
		db:     db,
		cache:  cache,
		store:  store,
		audit:  auditor,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type PurgeResult struct {
	Cutoff         time.Time
	Uploads        int64
	Analyses       int
	CacheEvicted   int64
	ObjectsDeleted int
}

// PurgeAnonymous deletes anonymous uploads created before now-olderThan.
// Database rows go in one transaction; cache and object deletion after
// commit are best-effort.
func (c *Cleaner) PurgeAnonymous(ctx context.Context, olderThan time.Duration) (PurgeResult, error) {
	if c == nil || c.db == nil {
		return PurgeResult{}, fmt.Errorf("retention: database not configured")
	}
	if olderThan <= 0 {
		olderThan = c.cfg.AnonymousAge
	}
	res := PurgeResult{Cutoff: c.now().Add(-olderThan)}

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("retention: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	uploadIDs, keys, analysisIDs, err := expiredUploads(ctx, tx, res.Cutoff)
	if err != nil {
		return PurgeResult{}, err
	}
	if len(uploadIDs) == 0 {
		return res, nil
	}

	// analyses, messages, risks and keywords cascade from the upload row
	res.Uploads, err = execRowsAffected(ctx, tx, `
		DELETE FROM chat_uploads WHERE id = ANY($1)
	`, uploadIDs)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("retention: delete uploads: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return PurgeResult{}, fmt.Errorf("retention: commit: %w", err)
	}
	res.Analyses = len(analysisIDs)

	if c.cache != nil && len(analysisIDs) > 0 {
		n, err := c.cache.Delete(ctx, analysisIDs...)
		if err != nil {
			c.logger.Warn("retention: cache eviction failed", "error", err, "analyses", len(analysisIDs))
		}
		res.CacheEvicted = n
	}
	if c.store != nil {
		for _, key := range keys {
			if err := c.store.DeleteTranscript(ctx, key); err != nil {
				c.logger.Warn("retention: transcript delete failed", "error", err, "s3_key", key)
				continue
			}
			res.ObjectsDeleted++
		}
	}

	if c.audit != nil {
		details, _ := json.Marshal(audit.Details{Purged: res.Uploads})
		if err := c.audit.Log(ctx, audit.Event{EventType: audit.EventRetentionPurged, Details: details}); err != nil {
			c.logger.Warn("retention: audit log failed", "error", err)
		}
	}

	c.logger.Info("retention purge completed",
		"cutoff", res.Cutoff,
		"uploads", res.Uploads,
		"analyses", res.Analyses,
		"cache_evicted", res.CacheEvicted,
		"objects_deleted", res.ObjectsDeleted,
	)
	return res, nil
}

func expiredUploads(ctx context.Context, tx pgx.Tx, cutoff time.Time) (uploadIDs, keys, analysisIDs []string, err error) {
	rows, err := tx.Query(ctx, `
		SELECT u.id::text, u.s3_key, a.id::text
		FROM chat_uploads u
		LEFT JOIN chat_analyses a ON a.upload_id = u.id
		WHERE u.anonymous AND u.created_at < $1
		ORDER BY u.created_at
		FOR UPDATE OF u
	`, cutoff)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("retention: select expired uploads: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var (
			uploadID, key string
			analysisID    *string
		)
		if err := rows.Scan(&uploadID, &key, &analysisID); err != nil {
			return nil, nil, nil, fmt.Errorf("retention: scan expired upload: %w", err)
		}
		if _, ok := seen[uploadID]; !ok {
			seen[uploadID] = struct{}{}
			uploadIDs = append(uploadIDs, uploadID)
			keys = append(keys, key)
		}
		if analysisID != nil {
			analysisIDs = append(analysisIDs, *analysisID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("retention: iterate expired uploads: %w", err)
	}
	return uploadIDs, keys, analysisIDs, nil
}

// Run purges on every interval tick until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil {
		return
	}
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.logger.Info("retention cleaner started", "interval", c.cfg.Interval, "anonymous_age", c.cfg.AnonymousAge)
	for {
		if _, err := c.PurgeAnonymous(ctx, c.cfg.AnonymousAge); err != nil {
			c.logger.Error("retention purge failed", "error", err)
		}
		select {
		case <-ctx.Done():
			c.logger.Info("retention cleaner stopped")
			return
		case <-ticker.C:
		}
	}
}

func execRowsAffected(ctx context.Context, tx pgx.Tx, query string, args ...any) (int64, error) {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
