package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeatmapClamp(t *testing.T) {
	var h Heatmap
	h[0][0] = -3
	h[2][2] = 35
	h[4][4] = 12

	h.Clamp(20)

	assert.Equal(t, 0, h[0][0])
	assert.Equal(t, 20, h[2][2])
	assert.Equal(t, 12, h[4][4])
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	orig := AnalysisResult{
		FootfallData:  []FootfallPoint{{Hour: "8am", Count: 3}},
		TimeSpentData: []TimeSpentBucket{{Category: "< 5 min", Percentage: 100}},
	}
	cp := orig.Clone()
	cp.FootfallData[0].Count = 99
	cp.TimeSpentData[0].Percentage = 1
	cp.HeatmapData[0][0] = 7

	assert.Equal(t, 3, orig.FootfallData[0].Count)
	assert.Equal(t, 100, orig.TimeSpentData[0].Percentage)
	assert.Equal(t, 0, orig.HeatmapData[0][0])
}

func TestAnalysisErrorClassification(t *testing.T) {
	cause := errors.New("ffprobe: exit status 1")
	err := fmt.Errorf("open video: %w", NewAnalysisError(ErrUnreadableMedia, "metadata", cause))

	assert.ErrorIs(t, err, ErrUnreadableMedia)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsPermanent(err))
	assert.Contains(t, UserMessage(err), "could not be read")

	assert.False(t, IsPermanent(errors.New("minio down")))
	assert.Contains(t, UserMessage(NewAnalysisError(ErrUnsupportedInput, "validate", nil)), "video file")
}

func TestJobLifecycle(t *testing.T) {
	job := NewAnalysisJob("sess", "sess/a.mp4", "a.mp4", 10, 2)
	assert.Equal(t, JobStatusPending, job.Status)

	job.MarkProcessing()
	assert.Equal(t, 1, job.Attempt)
	assert.True(t, job.CanRetry())

	job.MarkFailed("boom")
	job.ExhaustRetries()
	assert.False(t, job.CanRetry())

	job.MarkCompleted(AnalysisResult{TotalVisitors: 4}, 10, 12.5, "k.zip")
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, 4, job.TotalVisitors)
	assert.Empty(t, job.ErrorMessage)
	assert.NotNil(t, job.CompletedAt)
}

func TestJobRequeueRefundsAttempt(t *testing.T) {
	job := NewAnalysisJob("sess", "sess/a.mp4", "a.mp4", 10, 1)
	job.MarkProcessing()
	assert.False(t, job.CanRetry())

	job.Requeue()
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Attempt)
	assert.True(t, job.CanRetry())

	job.Requeue()
	assert.Equal(t, 0, job.Attempt)
}
