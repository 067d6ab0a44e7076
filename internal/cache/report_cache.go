// Package cache keeps rendered analysis views in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/safehug/internal/report"
)

const (
	reportKeyPrefix = "analysis_report:"
	defaultTTL      = 24 * time.Hour
)

// ErrMiss is returned when no cached report exists.
var ErrMiss = errors.New("cache: miss")

// Key returns the Redis key holding an analysis' cached view.
func Key(analysisID string) string {
	return reportKeyPrefix + analysisID
}

// Entry is what the cache holds for one analysis. OwnerID is empty for
// anonymous analyses.
type Entry struct {
	OwnerID string              `json:"owner_id,omitempty"`
	View    report.AnalysisView `json:"view"`
}

// ReportCache stores analysis views and their owner as JSON with a TTL. A
// nil cache behaves as always empty.
type ReportCache struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ReportCache{
		redis:  client,
		tracer: otel.Tracer("safehug.internal.cache.report"),
		ttl:    ttl,
	}
}

func (c *ReportCache) Get(ctx context.Context, analysisID string) (*Entry, error) {
	if c == nil || c.redis == nil {
		return nil, ErrMiss
	}
	ctx, span := c.tracer.Start(ctx, "cache.report.get", trace.WithAttributes(attribute.String("analysis_id", analysisID)))
	defer span.End()

	raw, err := c.redis.Get(ctx, Key(analysisID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return nil, ErrMiss
		}
		span.RecordError(err)
		return nil, fmt.Errorf("cache: get report: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("cache: decode report: %w", err)
	}
	if entry.View.ID != analysisID {
		// bare view from an older writer; no owner to check
		return nil, ErrMiss
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &entry, nil
}

func (c *ReportCache) Set(ctx context.Context, ownerID string, view report.AnalysisView) error {
	if c == nil || c.redis == nil {
		return nil
	}
	if view.ID == "" {
		return errors.New("cache: analysis id required")
	}
	data, err := json.Marshal(Entry{OwnerID: ownerID, View: view})
	if err != nil {
		return fmt.Errorf("cache: marshal report: %w", err)
	}

	ctx, span := c.tracer.Start(ctx, "cache.report.set")
	defer span.End()

	if err := c.redis.Set(ctx, Key(view.ID), data, c.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("cache: set report: %w", err)
	}
	return nil
}

// Delete evicts the given analyses and reports how many keys existed.
func (c *ReportCache) Delete(ctx context.Context, analysisIDs ...string) (int64, error) {
	if c == nil || c.redis == nil || len(analysisIDs) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(analysisIDs))
	for _, id := range analysisIDs {
		keys = append(keys, Key(id))
	}
	n, err := c.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: delete reports: %w", err)
	}
	return n, nil
}
