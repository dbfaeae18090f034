package httpapi

import (
	"time"

	"github.com/footfallfinder/footfall-analysis-service/internal/domain/entity"
	"github.com/patrickmn/go-cache"
)

const defaultSessionTTL = time.Hour

// SessionStore keeps the latest analysis result per browser session.
// Entries expire after the TTL; a new upload replaces the previous result.
type SessionStore struct {
	cache *cache.Cache
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{cache: cache.New(ttl, 2*ttl)}
}

func (s *SessionStore) Put(sessionID string, result entity.AnalysisResult) {
	s.cache.SetDefault(sessionID, result.Clone())
}

func (s *SessionStore) Get(sessionID string) (entity.AnalysisResult, bool) {
	v, ok := s.cache.Get(sessionID)
	if !ok {
		return entity.AnalysisResult{}, false
	}
	result, ok := v.(entity.AnalysisResult)
	if !ok {
		return entity.AnalysisResult{}, false
	}
	return result.Clone(), true
}

// Delete drops the session's result and reports whether one existed.
func (s *SessionStore) Delete(sessionID string) bool {
	_, found := s.cache.Get(sessionID)
	s.cache.Delete(sessionID)
	return found
}

func (s *SessionStore) Len() int {
	return s.cache.ItemCount()
}
