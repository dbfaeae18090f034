package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflightReacquireCancelsPrevious(t *testing.T) {
	r := NewInflightRegistry()

	first, releaseFirst, err := r.Acquire(context.Background(), "session-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		_, release, err := r.Acquire(context.Background(), "session-1")
		if err == nil {
			defer release()
		}
		close(acquired)
	}()

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("first analysis was not cancelled by the re-upload")
	}
	assert.ErrorIs(t, first.Err(), context.Canceled)
	assert.ErrorIs(t, context.Cause(first), entity.ErrSuperseded)

	select {
	case <-acquired:
		t.Fatal("second acquire must wait for the first to release")
	case <-time.After(20 * time.Millisecond):
	}

	releaseFirst()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestInflightIndependentKeys(t *testing.T) {
	r := NewInflightRegistry()

	a, releaseA, err := r.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()
	_, releaseB, err := r.Acquire(context.Background(), "b")
	require.NoError(t, err)
	defer releaseB()

	assert.NoError(t, a.Err())
	assert.Equal(t, 2, r.Len())
}

func TestInflightReleaseIsIdempotent(t *testing.T) {
	r := NewInflightRegistry()

	_, release, err := r.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
	release()
	assert.Equal(t, 0, r.Len())
}

func TestInflightWaitHonoursCallerContext(t *testing.T) {
	r := NewInflightRegistry()
	_, release, err := r.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = r.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInflightCancelAndEmptyKey(t *testing.T) {
	r := NewInflightRegistry()

	ctx, release, err := r.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	assert.True(t, r.Cancel("k"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.ErrorIs(t, context.Cause(ctx), entity.ErrSuperseded)
	assert.False(t, r.Cancel("missing"))

	_, releaseEmpty, err := r.Acquire(context.Background(), "")
	require.NoError(t, err)
	releaseEmpty()
	assert.Equal(t, 1, r.Len())
}

func TestInflightParentCancelIsNotSuperseded(t *testing.T) {
	r := NewInflightRegistry()
	parent, stop := context.WithCancel(context.Background())

	ctx, release, err := r.Acquire(parent, "k")
	require.NoError(t, err)
	defer release()

	stop()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.NotErrorIs(t, context.Cause(ctx), entity.ErrSuperseded)
}
