package state

import (
	"sync"

	"go.uber.org/zap"

	"github.com/atinyakov/g3chat/internal/client/storage"
)

// APIKey holds the single active API key and mirrors it to storage.
type APIKey struct {
	mu  sync.RWMutex
	kv  storage.KV
	log *zap.Logger
	key *string
}

// NewAPIKey reads the active key slot of kv.
func NewAPIKey(kv storage.KV, log *zap.Logger) *APIKey {
	s := &APIKey{kv: kv, log: log}
	if v, ok := kv.Get(storage.KeyAPIKey); ok && v != "" {
		s.key = &v
	}
	return s
}

// SetAPIKey writes key through to storage, removing the slot for nil or "",
// then updates the in-memory value. Storage failures are logged only.
func (s *APIKey) SetAPIKey(key *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key != nil && *key != "" {
		if err := s.kv.Set(storage.KeyAPIKey, *key); err != nil {
			s.log.Warn("persist api key", zap.Error(err))
		}
		v := *key
		s.key = &v
		return
	}
	if err := s.kv.Remove(storage.KeyAPIKey); err != nil {
		s.log.Warn("remove api key", zap.Error(err))
	}
	s.key = nil
}

// APIKey returns the active key and whether one is set.
func (s *APIKey) APIKey() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return "", false
	}
	return *s.key, true
}
