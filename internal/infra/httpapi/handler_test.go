package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/footfallfinder/footfall-analysis-service/internal/analysis"
	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/footfallfinder/footfall-analysis-service/internal/infra/postgres"
	"github.com/footfallfinder/footfall-analysis-service/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	out   *usecase.AnalyzeOutput
	err   error
	calls []usecase.AnalyzeInput
}

func (a *fakeAnalyzer) Analyze(_ context.Context, in usecase.AnalyzeInput) (*usecase.AnalyzeOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, in)
	return a.out, a.err
}

type fakeCanceler struct{ keys []string }

func (f *fakeCanceler) Cancel(key string) bool {
	f.keys = append(f.keys, key)
	return true
}

type mockStorage struct{ mock.Mock }

func (m *mockStorage) UploadVideo(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return m.Called(ctx, key, r, size, contentType).Error(0)
}

func (m *mockStorage) DownloadVideo(ctx context.Context, key, dest string) error {
	return m.Called(ctx, key, dest).Error(0)
}

func (m *mockStorage) RemoveVideo(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockStorage) UploadArchive(ctx context.Context, key string, r io.Reader, size int64) error {
	return m.Called(ctx, key, r, size).Error(0)
}

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Create(ctx context.Context, job *entity.AnalysisJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockRepo) Update(ctx context.Context, job *entity.AnalysisJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.AnalysisJob, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*entity.AnalysisJob)
	return job, args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishAnalysisRequest(ctx context.Context, msg []byte) error {
	return m.Called(ctx, msg).Error(0)
}

type staticChecker struct{ err error }

func (c staticChecker) CheckFile(string) (string, error) {
	return "video/mp4", c.err
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, analyzer usecase.Analyzer, jobs *JobsBackend) (*gin.Engine, *SessionStore, *fakeCanceler) {
	t.Helper()
	sessions := NewSessionStore(time.Minute)
	canceler := &fakeCanceler{}
	h := NewHandler(analyzer, canceler, sessions, zap.NewNop(), HandlerConfig{
		MaxUploadBytes: 1 << 10,
		TempDir:        t.TempDir(),
		Jobs:           jobs,
	})
	return NewRouter(h, zap.NewNop()), sessions, canceler
}

func uploadRequest(t *testing.T, target, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("video", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestServer(t, &fakeAnalyzer{}, nil)
	rec, _ := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestDashboardFallsBackToDemo(t *testing.T) {
	r, _, _ := newTestServer(t, &fakeAnalyzer{}, nil)
	rec, env := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nobody/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var view dashboardView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "demo", view.Source)
	assert.Equal(t, analysis.Demo(), view.Result)
}

func TestCreateAnalysisStoresSessionResult(t *testing.T) {
	result := analysis.NewSynthesizer(20).Synthesize(2, []entity.Position{{X: 1, Y: 1}})
	analyzer := &fakeAnalyzer{out: &usecase.AnalyzeOutput{Result: result, FramesSampled: 10}}
	r, sessions, _ := newTestServer(t, analyzer, nil)

	req := uploadRequest(t, "/api/v1/analyses", "Clip.MP4", []byte("fake video"), nil)
	req.Header.Set(SessionHeader, "sess-1")
	rec, env := serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sess-1", rec.Header().Get(SessionHeader))

	var view analysisView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, 2, view.Result.TotalVisitors)
	assert.Equal(t, 10, view.FramesSampled)

	require.Len(t, analyzer.calls, 1)
	assert.Equal(t, "sess-1", analyzer.calls[0].Key)
	assert.Equal(t, "Clip.MP4", analyzer.calls[0].Identifier)
	assert.NoFileExists(t, analyzer.calls[0].VideoPath)

	stored, ok := sessions.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, result, stored)

	rec, env = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/sess-1/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var dash dashboardView
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, "analysis", dash.Source)
	assert.Equal(t, 2, dash.Result.TotalVisitors)
}

func TestCreateAnalysisAssignsSessionWhenMissing(t *testing.T) {
	analyzer := &fakeAnalyzer{out: &usecase.AnalyzeOutput{}}
	r, _, _ := newTestServer(t, analyzer, nil)

	rec, _ := serve(r, uploadRequest(t, "/api/v1/analyses", "a.mov", []byte("x"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(SessionHeader))
	assert.Equal(t, rec.Header().Get(SessionHeader), analyzer.calls[0].Key)
}

func TestCreateAnalysisRejectsBadUploads(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		status   int
	}{
		{"missing file", "", nil, http.StatusBadRequest},
		{"wrong extension", "notes.txt", []byte("hello"), http.StatusUnsupportedMediaType},
		{"too large", "big.mp4", bytes.Repeat([]byte{1}, 2<<10), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &fakeAnalyzer{out: &usecase.AnalyzeOutput{}}
			r, _, _ := newTestServer(t, analyzer, nil)

			rec, env := serve(r, uploadRequest(t, "/api/v1/analyses", tt.filename, tt.content, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status, env.Code)
			assert.Empty(t, analyzer.calls)
		})
	}
}

func TestCreateAnalysisMapsFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unsupported", entity.NewAnalysisError(entity.ErrUnsupportedInput, "check upload", errors.New("text/plain")), http.StatusUnsupportedMediaType},
		{"unreadable", entity.NewAnalysisError(entity.ErrUnreadableMedia, "metadata", errors.New("bad header")), http.StatusUnprocessableEntity},
		{"seek timeout", entity.NewAnalysisError(entity.ErrTimeout, "seek", errors.New("5s")), http.StatusUnprocessableEntity},
		{"rendering", entity.NewAnalysisError(entity.ErrRendering, "decode", errors.New("png")), http.StatusInternalServerError},
		{"superseded", fmt.Errorf("%w: %w", entity.ErrSuperseded, context.Canceled), http.StatusConflict},
		{"cancelled", context.Canceled, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, sessions, _ := newTestServer(t, &fakeAnalyzer{err: tt.err}, nil)

			req := uploadRequest(t, "/api/v1/analyses", "clip.mp4", []byte("x"), nil)
			req.Header.Set(SessionHeader, "s")
			rec, env := serve(r, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, env.Message)
			assert.Equal(t, 0, sessions.Len())
		})
	}
}

func TestDeleteSessionCancelsAndForgets(t *testing.T) {
	r, sessions, canceler := newTestServer(t, &fakeAnalyzer{}, nil)
	sessions.Put("s", entity.AnalysisResult{TotalVisitors: 3})

	rec, _ := serve(r, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/s", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s"}, canceler.keys)
	_, ok := sessions.Get("s")
	assert.False(t, ok)
}

func TestJobRoutesAbsentWithoutBackend(t *testing.T) {
	r, _, _ := newTestServer(t, &fakeAnalyzer{}, nil)
	rec, _ := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateJobQueuesUpload(t *testing.T) {
	storage := &mockStorage{}
	repo := &mockRepo{}
	pub := &mockPublisher{}
	jobs := &JobsBackend{Checker: staticChecker{}, Storage: storage, Repo: repo, Publisher: pub, MaxRetries: 3}
	r, _, _ := newTestServer(t, &fakeAnalyzer{}, jobs)

	storage.On("UploadVideo", mock.Anything, mock.MatchedBy(func(k string) bool {
		return len(k) > len("sess/") && k[:5] == "sess/"
	}), mock.Anything, int64(5), "video/mp4").Return(nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	pub.On("PublishAnalysisRequest", mock.Anything, mock.Anything).Return(nil)

	req := uploadRequest(t, "/api/v1/jobs", "store.mp4", []byte("video"), map[string]string{"email": "owner@shop.test"})
	req.Header.Set(SessionHeader, "sess")
	rec, env := serve(r, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var view jobView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, entity.JobStatusPending, view.Status)
	assert.Equal(t, 3, view.MaxAttempts)

	var msg entity.AnalysisRequestMessage
	require.NoError(t, json.Unmarshal(pub.Calls[0].Arguments.Get(1).([]byte), &msg))
	assert.Equal(t, view.ID, msg.JobID)
	assert.Equal(t, "store.mp4", msg.Identifier)
	assert.Equal(t, "owner@shop.test", msg.UserEmail)
	assert.Equal(t, "sess/"+view.ID.String()+".mp4", msg.VideoKey)

	storage.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestCreateJobCleansUpOnRepoFailure(t *testing.T) {
	storage, repo, pub := &mockStorage{}, &mockRepo{}, &mockPublisher{}
	jobs := &JobsBackend{Checker: staticChecker{}, Storage: storage, Repo: repo, Publisher: pub, MaxRetries: 3}
	r, _, _ := newTestServer(t, &fakeAnalyzer{}, jobs)

	var key string
	storage.On("UploadVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { key = args.String(1) }).Return(nil)
	storage.On("RemoveVideo", mock.Anything, mock.Anything).Return(nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	req := uploadRequest(t, "/api/v1/jobs", "store.mp4", []byte("video"), nil)
	req.Header.Set(SessionHeader, "sess")
	rec, _ := serve(r, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	storage.AssertCalled(t, "RemoveVideo", mock.Anything, key)
	pub.AssertNotCalled(t, "PublishAnalysisRequest", mock.Anything, mock.Anything)
}

func TestCreateJobCleansUpOnPublishFailure(t *testing.T) {
	storage, repo, pub := &mockStorage{}, &mockRepo{}, &mockPublisher{}
	jobs := &JobsBackend{Checker: staticChecker{}, Storage: storage, Repo: repo, Publisher: pub, MaxRetries: 3}
	r, _, _ := newTestServer(t, &fakeAnalyzer{}, jobs)

	var key string
	storage.On("UploadVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { key = args.String(1) }).Return(nil)
	storage.On("RemoveVideo", mock.Anything, mock.Anything).Return(nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)
	pub.On("PublishAnalysisRequest", mock.Anything, mock.Anything).Return(errors.New("channel closed"))

	req := uploadRequest(t, "/api/v1/jobs", "store.mp4", []byte("video"), nil)
	req.Header.Set(SessionHeader, "sess")
	rec, _ := serve(r, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	storage.AssertCalled(t, "RemoveVideo", mock.Anything, key)

	repo.AssertCalled(t, "Update", mock.Anything, mock.Anything)
	job := repo.Calls[len(repo.Calls)-1].Arguments.Get(1).(*entity.AnalysisJob)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Equal(t, key, job.VideoKey)
	assert.False(t, job.CanRetry())
}

func TestCreateJobRejectsNonVideo(t *testing.T) {
	storage := &mockStorage{}
	jobs := &JobsBackend{
		Checker:   staticChecker{err: entity.NewAnalysisError(entity.ErrUnsupportedInput, "check upload", errors.New("text/plain"))},
		Storage:   storage,
		Repo:      &mockRepo{},
		Publisher: &mockPublisher{},
	}
	r, _, _ := newTestServer(t, &fakeAnalyzer{}, jobs)

	rec, _ := serve(r, uploadRequest(t, "/api/v1/jobs", "fake.mp4", []byte("text"), nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	storage.AssertNotCalled(t, "UploadVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetJob(t *testing.T) {
	repo := &mockRepo{}
	jobs := &JobsBackend{Storage: &mockStorage{}, Repo: repo, Publisher: &mockPublisher{}}
	r, _, _ := newTestServer(t, &fakeAnalyzer{}, jobs)

	done := entity.NewAnalysisJob("sess", "sess/x.mp4", "x.mp4", 10, 3)
	done.MarkCompleted(entity.AnalysisResult{TotalVisitors: 4}, 10, 12.5, "sess/frames.zip")
	missing := uuid.New()
	repo.On("FindByID", mock.Anything, done.ID).Return(done, nil)
	repo.On("FindByID", mock.Anything, missing).Return(nil, postgres.ErrNotFound)

	rec, env := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+done.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var view jobView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, entity.JobStatusCompleted, view.Status)
	require.NotNil(t, view.Result)
	assert.Equal(t, 4, view.Result.TotalVisitors)

	rec, _ = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+missing.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionStoreReturnsCopies(t *testing.T) {
	s := NewSessionStore(time.Minute)
	r := entity.AnalysisResult{TotalVisitors: 1, FootfallData: []entity.FootfallPoint{{Hour: "8am", Count: 1}}}
	s.Put("a", r)

	got, ok := s.Get("a")
	require.True(t, ok)
	got.FootfallData[0].Count = 99

	again, _ := s.Get("a")
	assert.Equal(t, 1, again.FootfallData[0].Count)
	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
}
