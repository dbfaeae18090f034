package usecase

import (
	"context"
	"image"
	"io"
	"sync"

	"github.com/footfallfinder/footfall-analysis-service/internal/analysis"
	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type stubChecker struct{ err error }

func (c stubChecker) CheckFile(string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return "video/mp4", nil
}

type stubSampler struct {
	frames []image.Image
	err    error
	wait   bool

	mu    sync.Mutex
	calls int
}

func (s *stubSampler) Sample(ctx context.Context, _ string) (*analysis.SampleResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &analysis.SampleResult{Frames: s.frames, Duration: 10e9}, nil
}

func (s *stubSampler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// gatedSampler holds its first call until release is closed and returns no
// frames.
type gatedSampler struct {
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func (s *gatedSampler) Sample(ctx context.Context, _ string) (*analysis.SampleResult, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	if n == 1 {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &analysis.SampleResult{Duration: 10e9}, nil
}

func (s *gatedSampler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// scriptedDetector returns detections in order, then zero detections.
type scriptedDetector struct {
	script []entity.Detection
	err    error
	n      int
}

func (d *scriptedDetector) Detect(image.Image) (entity.Detection, error) {
	if d.err != nil {
		return entity.Detection{}, d.err
	}
	if d.n >= len(d.script) {
		return entity.Detection{}, nil
	}
	det := d.script[d.n]
	d.n++
	return det, nil
}

type mapScenarios map[string]entity.AnalysisResult

func (m mapScenarios) Lookup(id string) (entity.AnalysisResult, bool) {
	r, ok := m[id]
	return r.Clone(), ok
}

func frames(n int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		out[i] = image.NewRGBA(image.Rect(0, 0, 4, 4))
	}
	return out
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

type mockArchiver struct{ mock.Mock }

func (m *mockArchiver) ArchiveFrames(ctx context.Context, frames []image.Image, out string) error {
	return m.Called(ctx, frames, out).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishStatus(ctx context.Context, msg []byte) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockPublisher) PublishToDLQ(ctx context.Context, msg []byte, reason string) error {
	return m.Called(ctx, msg, reason).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) NotifyFailure(ctx context.Context, to, jobID, identifier, errMsg string) error {
	return m.Called(ctx, to, jobID, identifier, errMsg).Error(0)
}

type stubAnalyzer struct {
	out *AnalyzeOutput
	err error
	in  AnalyzeInput
	// run replaces the canned out/err when set.
	run func(ctx context.Context) (*AnalyzeOutput, error)
}

func (a *stubAnalyzer) Analyze(ctx context.Context, in AnalyzeInput) (*AnalyzeOutput, error) {
	a.in = in
	if a.run != nil {
		return a.run(ctx)
	}
	return a.out, a.err
}
