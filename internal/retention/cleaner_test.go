package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/safehug/internal/audit"
	"github.com/wolfman30/safehug/internal/cache"
	"github.com/wolfman30/safehug/internal/report"
	"github.com/wolfman30/safehug/pkg/logging"
)

type fakeStore struct {
	deleted []string
	fail    map[string]bool
}

func (f *fakeStore) DeleteTranscript(_ context.Context, key string) error {
	if f.fail[key] {
		return errors.New("access denied")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeAudit struct{ events []audit.Event }

func (f *fakeAudit) Log(_ context.Context, e audit.Event) error {
	f.events = append(f.events, e)
	return nil
}

func TestPurgeAnonymousDeletesExpiredUploads(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reports := cache.NewReportCache(redisClient, time.Hour)
	require.NoError(t, reports.Set(context.Background(), "", report.AnalysisView{ID: "a-1"}))
	require.NoError(t, reports.Set(context.Background(), "", report.AnalysisView{ID: "keep"}))

	store := &fakeStore{fail: map[string]bool{"chat-files/u-2.txt": true}}
	auditor := &fakeAudit{}
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM chat_uploads u").WithArgs(cutoff).WillReturnRows(
		pgxmock.NewRows([]string{"id", "s3_key", "analysis_id"}).
			AddRow("u-1", "chat-files/u-1.txt", strPtr("a-1")).
			AddRow("u-1", "chat-files/u-1.txt", strPtr("a-1b")).
			AddRow("u-2", "chat-files/u-2.txt", nil),
	)
	mock.ExpectExec("DELETE FROM chat_uploads").WithArgs([]string{"u-1", "u-2"}).WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	c := NewCleaner(mock, reports, store, auditor, Config{}, logging.Discard())
	c.now = func() time.Time { return now }

	res, err := c.PurgeAnonymous(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, cutoff, res.Cutoff)
	assert.Equal(t, int64(2), res.Uploads)
	assert.Equal(t, 2, res.Analyses)
	assert.Equal(t, int64(1), res.CacheEvicted)
	assert.Equal(t, 1, res.ObjectsDeleted)
	assert.Equal(t, []string{"chat-files/u-1.txt"}, store.deleted)

	assert.False(t, mr.Exists(cache.Key("a-1")))
	assert.True(t, mr.Exists(cache.Key("keep")))

	require.Len(t, auditor.events, 1)
	assert.Equal(t, audit.EventRetentionPurged, auditor.events[0].EventType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeAnonymousNothingExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM chat_uploads u").WillReturnRows(pgxmock.NewRows([]string{"id", "s3_key", "analysis_id"}))
	mock.ExpectRollback()

	store := &fakeStore{}
	c := NewCleaner(mock, nil, store, nil, Config{}, logging.Discard())
	res, err := c.PurgeAnonymous(context.Background(), 2*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, res.Uploads)
	assert.Empty(t, store.deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeAnonymousDeleteFailureRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM chat_uploads u").WillReturnRows(
		pgxmock.NewRows([]string{"id", "s3_key", "analysis_id"}).AddRow("u-1", "chat-files/u-1.txt", nil),
	)
	mock.ExpectExec("DELETE FROM chat_uploads").WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	store := &fakeStore{}
	c := NewCleaner(mock, nil, store, nil, Config{}, logging.Discard())
	_, err = c.PurgeAnonymous(context.Background(), time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock timeout")
	assert.Empty(t, store.deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeAnonymousRequiresDB(t *testing.T) {
	_, err := NewCleaner(nil, nil, nil, nil, Config{}, nil).PurgeAnonymous(context.Background(), time.Hour)
	assert.Error(t, err)
}

func TestNewCleanerDefaults(t *testing.T) {
	c := NewCleaner(nil, nil, nil, nil, Config{}, nil)
	assert.Equal(t, DefaultAnonymousAge, c.cfg.AnonymousAge)
	assert.Equal(t, DefaultInterval, c.cfg.Interval)
}

func TestRunStopsOnCancel(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM chat_uploads u").WillReturnRows(pgxmock.NewRows([]string{"id", "s3_key", "analysis_id"}))
	mock.ExpectRollback()

	c := NewCleaner(mock, nil, nil, nil, Config{Interval: time.Hour}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}

func strPtr(s string) *string { return &s }
