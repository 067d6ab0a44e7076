package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/safehug/internal/audit"
	"github.com/wolfman30/safehug/internal/cache"
	"github.com/wolfman30/safehug/internal/chat"
	"github.com/wolfman30/safehug/internal/evidence"
	"github.com/wolfman30/safehug/internal/observability/metrics"
	"github.com/wolfman30/safehug/internal/report"
	"github.com/wolfman30/safehug/internal/risk"
	"github.com/wolfman30/safehug/internal/storage"
	"github.com/wolfman30/safehug/internal/transcript"
	"github.com/wolfman30/safehug/pkg/logging"
)

type fakeStore struct {
	objects    map[string]string
	archived   []string
	archiveErr error
}

func (f *fakeStore) PutTranscript(_ context.Context, key, body string) error {
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[key] = body
	return nil
}

func (f *fakeStore) GetTranscript(_ context.Context, ref string) (string, error) {
	body, ok := f.objects[ref]
	if !ok {
		return "", storage.ErrNotFound
	}
	return body, nil
}

func (f *fakeStore) ArchiveReport(_ context.Context, id string, _ any) (string, error) {
	if f.archiveErr != nil {
		return "", f.archiveErr
	}
	f.archived = append(f.archived, id)
	return "reports/" + id + ".json", nil
}

type fakeClassifier struct {
	resp *risk.ClassificationResponse
	err  error
}

func (f *fakeClassifier) Classify(context.Context, string) (*risk.ClassificationResponse, error) {
	return f.resp, f.err
}

type fakeSummarizer struct {
	text string
	err  error
}

func (f *fakeSummarizer) Summarize(context.Context, string) (string, error) {
	return f.text, f.err
}

type fakeRepo struct {
	mu       sync.Mutex
	uploads  map[string]*evidence.Upload
	analyses map[string]*evidence.Analysis
	records  map[string]*evidence.Record
	gets     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		uploads:  map[string]*evidence.Upload{},
		analyses: map[string]*evidence.Analysis{},
		records:  map[string]*evidence.Record{},
	}
}

func (f *fakeRepo) CreateUpload(_ context.Context, u *evidence.Upload) (*evidence.Upload, error) {
	out := *u
	out.Anonymous = out.UserID == ""
	f.uploads[out.ID] = &out
	return &out, nil
}

func (f *fakeRepo) GetUpload(_ context.Context, id string) (*evidence.Upload, error) {
	u, ok := f.uploads[id]
	if !ok {
		return nil, evidence.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) SaveAnalysis(_ context.Context, a *evidence.Analysis) error {
	f.analyses[a.ID] = a
	return nil
}

func (f *fakeRepo) GetAnalysis(_ context.Context, id string) (*evidence.Analysis, error) {
	f.mu.Lock()
	f.gets++
	f.mu.Unlock()
	a, ok := f.analyses[id]
	if !ok {
		return nil, evidence.ErrNotFound
	}
	return a, nil
}

func (f *fakeRepo) ListAnalysesByUser(_ context.Context, userID string, filter evidence.ListFilter) ([]evidence.AnalysisSummary, error) {
	var out []evidence.AnalysisSummary
	for _, a := range f.analyses {
		if a.UserID != userID {
			continue
		}
		rec := f.records[a.ID]
		if filter.Category != nil && (rec == nil || rec.Category != *filter.Category) {
			continue
		}
		out = append(out, evidence.AnalysisSummary{ID: a.ID, RoomRiskLevel: a.Result.RoomRiskLevel})
	}
	return out, nil
}

func (f *fakeRepo) CreateRecord(_ context.Context, rec *evidence.Record) (*evidence.Record, error) {
	if _, ok := f.records[rec.AnalysisID]; ok {
		return nil, evidence.ErrDuplicate
	}
	out := *rec
	out.ID = "e-" + rec.AnalysisID
	f.records[rec.AnalysisID] = &out
	return &out, nil
}

func (f *fakeRepo) GetRecordByAnalysis(_ context.Context, analysisID string) (*evidence.Record, error) {
	rec, ok := f.records[analysisID]
	if !ok {
		return nil, evidence.ErrNotFound
	}
	return rec, nil
}

type memCache struct {
	views map[string]cache.Entry
}

func (m *memCache) Get(_ context.Context, id string) (*cache.Entry, error) {
	e, ok := m.views[id]
	if !ok {
		return nil, cache.ErrMiss
	}
	return &e, nil
}

func (m *memCache) Set(_ context.Context, ownerID string, v report.AnalysisView) error {
	m.views[v.ID] = cache.Entry{OwnerID: ownerID, View: v}
	return nil
}

type recordingAudit struct {
	events    []audit.EventType
	completed []chat.RiskType
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) error {
	r.events = append(r.events, e.EventType)
	return nil
}

func (r *recordingAudit) LogAnalysisCompleted(_ context.Context, _, _, _ string, _ chat.RiskLevel, types []chat.RiskType, _ audit.Details) error {
	r.events = append(r.events, audit.EventAnalysisCompleted)
	r.completed = types
	return nil
}

func (r *recordingAudit) LogAnalysisFailed(context.Context, string, string, error) error {
	r.events = append(r.events, audit.EventAnalysisFailed)
	return nil
}

type serviceFixture struct {
	svc   *Service
	store *fakeStore
	repo  *fakeRepo
	cache *memCache
	audit *recordingAudit
}

func newServiceFixture(t *testing.T, cls *fakeClassifier, sum summarizer) serviceFixture {
	t.Helper()
	f := serviceFixture{
		store: &fakeStore{},
		repo:  newFakeRepo(),
		cache: &memCache{views: map[string]cache.Entry{}},
		audit: &recordingAudit{},
	}
	f.svc = NewService(Deps{
		Store:      f.store,
		Classifier: cls,
		Summarizer: sum,
		Repository: f.repo,
		Cache:      f.cache,
		Audit:      f.audit,
		Metrics:    metrics.NewAnalysisMetrics(prometheus.NewRegistry()),
		Analyzer:   newTestAnalyzer(),
		Logger:     logging.Discard(),
	})
	return f
}

func threatClassification() *risk.ClassificationResponse {
	return &risk.ClassificationResponse{
		Messages: []risk.ClassifiedMessage{
			{Message: "싫어", Risks: []risk.ClassifiedRisk{{Type: "REJECTION", Level: "LOW"}}},
			{Message: "안 나오면 찾아간다", Risks: []risk.ClassifiedRisk{{Type: "THREAT", Level: "HIGH"}}},
		},
		Keywords: []risk.ClassifiedKeyword{{Keyword: "찾아간다", Count: 1, Risk: "HIGH"}},
	}
}

func TestServiceUploadAndAnalyze(t *testing.T) {
	f := newServiceFixture(t, &fakeClassifier{resp: threatClassification()},
		&fakeSummarizer{text: "요약: 협박\n이유:\n- 찾아간다는 발언"})
	ctx := context.Background()

	upload, err := f.svc.Upload(ctx, "user-1", "talk.txt", pcTranscript)
	require.NoError(t, err)
	assert.False(t, upload.Anonymous)
	assert.Contains(t, f.store.objects, upload.S3Key)

	view, err := f.svc.Analyze(ctx, upload.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, view.MessageCount)
	assert.Equal(t, "협박", view.Report.AIRisk.Description.Summary)
	assert.Equal(t, []string{"찾아간다는 발언"}, view.Report.AIRisk.Description.Reasons)

	saved := f.repo.analyses[view.ID]
	require.NotNil(t, saved)
	assert.Equal(t, "민수", saved.Partner)
	assert.Equal(t, "reports/"+view.ID+".json", saved.ArchiveKey)
	require.Contains(t, f.cache.views, view.ID)
	assert.Equal(t, "user-1", f.cache.views[view.ID].OwnerID)
	assert.Equal(t, []audit.EventType{audit.EventUploadReceived, audit.EventAnalysisCompleted}, f.audit.events)
	assert.Contains(t, f.audit.completed, chat.TypeThreat)
}

func TestServiceAnalyzeSummaryFailureFallsBack(t *testing.T) {
	f := newServiceFixture(t, &fakeClassifier{resp: threatClassification()}, &fakeSummarizer{err: errors.New("bedrock throttled")})
	f.store.archiveErr = storage.ErrStoreDisabled
	ctx := context.Background()

	upload, err := f.svc.Upload(ctx, "", "talk.txt", pcTranscript)
	require.NoError(t, err)
	assert.True(t, upload.Anonymous)

	view, err := f.svc.Analyze(ctx, upload.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "대화 분석 중 오류가 발생했습니다. 다시 시도해주세요.", view.Report.AIRisk.Description.Summary)
	assert.Empty(t, f.repo.analyses[view.ID].ArchiveKey)
}

func TestServiceAnalyzeErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing classification", func(t *testing.T) {
		f := newServiceFixture(t, &fakeClassifier{}, nil)
		upload, err := f.svc.Upload(ctx, "", "talk.txt", pcTranscript)
		require.NoError(t, err)
		_, err = f.svc.Analyze(ctx, upload.ID, "")
		assert.ErrorIs(t, err, risk.ErrMissingClassification)
		assert.Contains(t, f.audit.events, audit.EventAnalysisFailed)
	})

	t.Run("empty transcript", func(t *testing.T) {
		f := newServiceFixture(t, &fakeClassifier{resp: threatClassification()}, nil)
		upload, err := f.svc.Upload(ctx, "", "talk.txt", "민수 님과 카카오톡 대화\n저장한 날짜 : 2024-03-05 21:14:09\n")
		require.NoError(t, err)
		_, err = f.svc.Analyze(ctx, upload.ID, "")
		assert.ErrorIs(t, err, transcript.ErrEmptyTranscript)
	})

	t.Run("classifier down", func(t *testing.T) {
		f := newServiceFixture(t, &fakeClassifier{err: errors.New("503")}, nil)
		upload, err := f.svc.Upload(ctx, "", "talk.txt", pcTranscript)
		require.NoError(t, err)
		_, err = f.svc.Analyze(ctx, upload.ID, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("other user's upload", func(t *testing.T) {
		f := newServiceFixture(t, &fakeClassifier{resp: threatClassification()}, nil)
		upload, err := f.svc.Upload(ctx, "owner", "talk.txt", pcTranscript)
		require.NoError(t, err)
		_, err = f.svc.Analyze(ctx, upload.ID, "intruder")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown upload", func(t *testing.T) {
		f := newServiceFixture(t, &fakeClassifier{resp: threatClassification()}, nil)
		_, err := f.svc.Analyze(ctx, "nope", "")
		assert.ErrorIs(t, err, evidence.ErrNotFound)
	})

	t.Run("empty body", func(t *testing.T) {
		f := newServiceFixture(t, &fakeClassifier{}, nil)
		_, err := f.svc.Upload(ctx, "", "talk.txt", "  \n")
		assert.ErrorIs(t, err, ErrEmptyUpload)
	})
}

func TestServiceGetReadsThroughCache(t *testing.T) {
	f := newServiceFixture(t, &fakeClassifier{resp: threatClassification()}, nil)
	ctx := context.Background()

	upload, err := f.svc.Upload(ctx, "user-1", "talk.txt", pcTranscript)
	require.NoError(t, err)
	view, err := f.svc.Analyze(ctx, upload.ID, "user-1")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, view.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)
	assert.Zero(t, f.repo.gets)

	delete(f.cache.views, view.ID)
	got, err = f.svc.Get(ctx, view.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, chat.RiskMedium, got.RoomRiskLevel)
	assert.Equal(t, 1, f.repo.gets)
	assert.Contains(t, f.cache.views, view.ID)

	delete(f.cache.views, view.ID)
	_, err = f.svc.Get(ctx, view.ID, "someone-else")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestServiceGetWarmCacheKeepsOwnership(t *testing.T) {
	f := newServiceFixture(t, &fakeClassifier{resp: threatClassification()}, nil)
	ctx := context.Background()

	upload, err := f.svc.Upload(ctx, "owner", "talk.txt", pcTranscript)
	require.NoError(t, err)
	view, err := f.svc.Analyze(ctx, upload.ID, "owner")
	require.NoError(t, err)
	require.Contains(t, f.cache.views, view.ID)

	_, err = f.svc.Get(ctx, view.ID, "intruder")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.Get(ctx, view.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, f.repo.gets)
	assert.NotContains(t, f.audit.events, audit.EventReportViewed)

	got, err := f.svc.Get(ctx, view.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)
	assert.Contains(t, f.audit.events, audit.EventReportViewed)
}

func TestServiceGetWarmCacheAnonymous(t *testing.T) {
	f := newServiceFixture(t, &fakeClassifier{resp: threatClassification()}, nil)
	ctx := context.Background()

	upload, err := f.svc.Upload(ctx, "", "talk.txt", pcTranscript)
	require.NoError(t, err)
	view, err := f.svc.Analyze(ctx, upload.ID, "")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, view.ID, "anyone")
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)
	assert.Zero(t, f.repo.gets)
}

func TestServiceList(t *testing.T) {
	f := newServiceFixture(t, &fakeClassifier{resp: threatClassification()}, nil)
	ctx := context.Background()

	_, err := f.svc.List(ctx, "", evidence.ListFilter{Limit: 10})
	assert.ErrorIs(t, err, ErrForbidden)

	upload, err := f.svc.Upload(ctx, "user-1", "talk.txt", pcTranscript)
	require.NoError(t, err)
	_, err = f.svc.Analyze(ctx, upload.ID, "user-1")
	require.NoError(t, err)

	list, err := f.svc.List(ctx, "user-1", evidence.ListFilter{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	threat := chat.TypeThreat
	list, err = f.svc.List(ctx, "user-1", evidence.ListFilter{Category: &threat})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestServiceSaveEvidence(t *testing.T) {
	f := newServiceFixture(t, &fakeClassifier{resp: threatClassification()}, nil)
	ctx := context.Background()

	upload, err := f.svc.Upload(ctx, "user-1", "talk.txt", pcTranscript)
	require.NoError(t, err)
	view, err := f.svc.Analyze(ctx, upload.ID, "user-1")
	require.NoError(t, err)

	rec, err := f.svc.SaveEvidence(ctx, "user-1", view.ID, evidence.Draft{Title: "찾아간다는 협박"})
	require.NoError(t, err)
	assert.Equal(t, view.ID, rec.AnalysisID)
	assert.Equal(t, "user-1", rec.UserID)
	// no category given: the report's leading risk type
	assert.Equal(t, view.Report.Summary.MainTypes[0].Type, rec.Category)
	assert.Contains(t, f.audit.events, audit.EventRecordSaved)

	_, err = f.svc.SaveEvidence(ctx, "user-1", view.ID, evidence.Draft{Title: "again"})
	assert.ErrorIs(t, err, evidence.ErrDuplicate)

	got, err := f.svc.GetEvidence(ctx, "user-1", view.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	list, err := f.svc.List(ctx, "user-1", evidence.ListFilter{Category: &rec.Category})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestServiceSaveEvidenceOwnership(t *testing.T) {
	f := newServiceFixture(t, &fakeClassifier{resp: threatClassification()}, nil)
	ctx := context.Background()

	owned, err := f.svc.Upload(ctx, "owner", "talk.txt", pcTranscript)
	require.NoError(t, err)
	ownedView, err := f.svc.Analyze(ctx, owned.ID, "owner")
	require.NoError(t, err)
	anon, err := f.svc.Upload(ctx, "", "talk.txt", pcTranscript)
	require.NoError(t, err)
	anonView, err := f.svc.Analyze(ctx, anon.ID, "")
	require.NoError(t, err)

	_, err = f.svc.SaveEvidence(ctx, "intruder", ownedView.ID, evidence.Draft{Title: "t"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.SaveEvidence(ctx, "", ownedView.ID, evidence.Draft{Title: "t"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.SaveEvidence(ctx, "owner", anonView.ID, evidence.Draft{Title: "t"})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.SaveEvidence(ctx, "owner", ownedView.ID, evidence.Draft{Title: ""})
	assert.ErrorIs(t, err, evidence.ErrInvalidInput)
	_, err = f.svc.SaveEvidence(ctx, "owner", "missing", evidence.Draft{Title: "t"})
	assert.ErrorIs(t, err, evidence.ErrNotFound)

	_, err = f.svc.SaveEvidence(ctx, "owner", ownedView.ID, evidence.Draft{Title: "t"})
	require.NoError(t, err)
	_, err = f.svc.GetEvidence(ctx, "intruder", ownedView.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestFailureStatus(t *testing.T) {
	assert.Equal(t, "empty_transcript", failureStatus(transcript.ErrEmptyTranscript))
	assert.Equal(t, "missing_classification", failureStatus(risk.ErrMissingClassification))
	assert.Equal(t, "not_found", failureStatus(evidence.ErrNotFound))
	assert.Equal(t, "error", failureStatus(errors.New("x")))
}
