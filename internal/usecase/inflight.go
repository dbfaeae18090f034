package usecase

import (
	"context"
	"sync"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
)

// InflightRegistry allows one analysis per resource key. Acquiring a key that
// is already held cancels the holder (a re-upload supersedes the previous
// upload) and waits for it to release before handing out a new context.
type InflightRegistry struct {
	mu      sync.Mutex
	entries map[string]*inflightEntry
}

type inflightEntry struct {
	cancel context.CancelCauseFunc
	done   chan struct{}
}

func NewInflightRegistry() *InflightRegistry {
	return &InflightRegistry{entries: make(map[string]*inflightEntry)}
}

// Acquire returns a context that is cancelled with cause entity.ErrSuperseded
// when a later Acquire or a Cancel on the same key arrives, and a release func
// that must be called when the work is done. An empty key is never serialized.
func (r *InflightRegistry) Acquire(ctx context.Context, key string) (context.Context, func(), error) {
	if key == "" {
		runCtx, cancel := context.WithCancel(ctx)
		return runCtx, cancel, nil
	}

	for {
		r.mu.Lock()
		prev, busy := r.entries[key]
		if !busy {
			runCtx, cancel := context.WithCancelCause(ctx)
			entry := &inflightEntry{cancel: cancel, done: make(chan struct{})}
			r.entries[key] = entry
			r.mu.Unlock()

			var once sync.Once
			release := func() {
				once.Do(func() {
					r.mu.Lock()
					if r.entries[key] == entry {
						delete(r.entries, key)
					}
					r.mu.Unlock()
					cancel(nil)
					close(entry.done)
				})
			}
			return runCtx, release, nil
		}
		prev.cancel(entity.ErrSuperseded)
		r.mu.Unlock()

		select {
		case <-prev.done:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

// Cancel stops whatever is running under key, if anything.
func (r *InflightRegistry) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key]
	if ok {
		entry.cancel(entity.ErrSuperseded)
	}
	return ok
}

func (r *InflightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
