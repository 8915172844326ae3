// Package secret caches the slice secret shared with the Observer.
//
// The secret is obtained lazily (or supplied at startup) and cached for
// the lifetime of the process. It is never written to disk by this
// package; persistence beyond the local in-memory cache is out of
// scope.
package secret

import "sync"

// Store is the process-wide slice secret cache.
type Store struct {
	mu     sync.RWMutex
	secret []byte
}

// NewStore creates an empty store, optionally seeded with a secret
// supplied at startup (e.g. from --slice_secret).
func NewStore(seed []byte) *Store {
	s := &Store{}
	if len(seed) > 0 {
		s.secret = append([]byte(nil), seed...)
	}
	return s
}

// Get returns a copy of the cached secret, and false if none is cached.
func (s *Store) Get() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.secret == nil {
		return nil, false
	}
	out := make([]byte, len(s.secret))
	copy(out, s.secret)
	return out, true
}

// Set caches secret, replacing whatever was cached before.
func (s *Store) Set(secret []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = append([]byte(nil), secret...)
}

// EnsureLoaded calls fetch and caches its result if no secret is cached
// yet. Concurrent callers may both call fetch; that only costs an extra
// HTTP round trip, since the cached value converges to whatever the
// Observer most recently handed out.
func (s *Store) EnsureLoaded(fetch func() ([]byte, error)) ([]byte, error) {
	if cur, ok := s.Get(); ok {
		return cur, nil
	}
	fetched, err := fetch()
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return nil, ErrEmptySecret
	}
	s.Set(fetched)
	return fetched, nil
}
